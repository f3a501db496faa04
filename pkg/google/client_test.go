package google

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/buyer-sync/internal/resilience"
)

func TestSearchText_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/places:searchText", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Goog-Api-Key"))
		assert.Equal(t, searchFieldMask, r.Header.Get("X-Goog-FieldMask"))

		var body searchTextRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "CHS Fargo Fargo ND", body.TextQuery)
		assert.Equal(t, 5, body.MaxResultCount)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(SearchTextResponse{
			Places: []Place{
				{
					ID:               "place-1",
					DisplayName:      DisplayName{Text: "CHS Fargo"},
					FormattedAddress: "100 Main St, Fargo, ND 58102",
					Location:         &LatLng{Latitude: 46.877, Longitude: -96.79},
				},
			},
		})
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	resp, err := client.SearchText(context.Background(), "CHS Fargo Fargo ND")

	require.NoError(t, err)
	require.Len(t, resp.Places, 1)
	assert.Equal(t, "place-1", resp.Places[0].ID)
	assert.Equal(t, "CHS Fargo", resp.Places[0].DisplayName.Text)
	require.NotNil(t, resp.Places[0].Location)
	assert.InDelta(t, 46.877, resp.Places[0].Location.Latitude, 0.0001)
}

func TestSearchText_NoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	resp, err := client.SearchText(context.Background(), "Nowhere Grain")

	require.NoError(t, err)
	assert.Empty(t, resp.Places)
}

func TestSearchText_TruncatesToMaxResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body searchTextRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, 2, body.MaxResultCount)

		_ = json.NewEncoder(w).Encode(SearchTextResponse{
			Places: []Place{{ID: "a"}, {ID: "b"}, {ID: "c"}},
		})
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL), WithMaxResults(2))
	resp, err := client.SearchText(context.Background(), "grain")

	require.NoError(t, err)
	require.Len(t, resp.Places, 2)
	assert.Equal(t, "b", resp.Places[1].ID)
}

func TestSearchText_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"API key invalid"}`))
	}))
	defer srv.Close()

	client := NewClient("bad-key", WithBaseURL(srv.URL))
	_, err := client.SearchText(context.Background(), "test")

	require.Error(t, err)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.True(t, apiErr.Unauthorized())
	assert.Contains(t, err.Error(), "403")
	assert.False(t, resilience.IsTransient(err), "auth failures are not transient")
}

func TestSearchText_InvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{invalid`))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := client.SearchText(context.Background(), "test")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal response")
}

func TestSearchText_MissingKeyShortCircuits(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		called = true
	}))
	defer srv.Close()

	client := NewClient("", WithBaseURL(srv.URL))
	_, err := client.SearchText(context.Background(), "test")

	assert.ErrorIs(t, err, ErrMissingAPIKey)
	assert.False(t, called)
}

func TestPlaceDetails_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/places/place-1", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Goog-Api-Key"))
		assert.Equal(t, detailsFieldMask, r.Header.Get("X-Goog-FieldMask"))

		_ = json.NewEncoder(w).Encode(Place{
			ID:                  "place-1",
			DisplayName:         DisplayName{Text: "CHS Fargo"},
			NationalPhoneNumber: "(701) 555-0100",
			WebsiteURI:          "https://www.chsinc.com/fargo",
			GoogleMapsURI:       "https://maps.google.com/?cid=1",
		})
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	place, err := client.PlaceDetails(context.Background(), "place-1")

	require.NoError(t, err)
	assert.Equal(t, "(701) 555-0100", place.NationalPhoneNumber)
	assert.Equal(t, "https://www.chsinc.com/fargo", place.WebsiteURI)
	assert.Equal(t, "https://maps.google.com/?cid=1", place.GoogleMapsURI)
}

func TestPlaceDetails_FillsMissingID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"displayName":{"text":"Elevator"}}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	place, err := client.PlaceDetails(context.Background(), "abc")

	require.NoError(t, err)
	assert.Equal(t, "abc", place.ID)
}

func TestPlaceDetails_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := client.PlaceDetails(context.Background(), "abc")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	assert.False(t, apiErr.Unauthorized())

	var te *resilience.TransientError
	require.True(t, errors.As(err, &te), "5xx is marked transient")
	assert.Equal(t, http.StatusServiceUnavailable, te.StatusCode)
}

func TestSearchText_RateLimitedIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := client.SearchText(context.Background(), "test")

	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
}

func TestPlaceDetails_EmptyID(t *testing.T) {
	client := NewClient("test-key")
	_, err := client.PlaceDetails(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "place id is required")
}

func TestPlaceDetails_MissingKey(t *testing.T) {
	client := NewClient("")
	_, err := client.PlaceDetails(context.Background(), "abc")
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestNewClient_Options(t *testing.T) {
	hc := &http.Client{}
	c := NewClient("k", WithBaseURL("http://x"), WithHTTPClient(hc), WithMaxResults(0)).(*httpClient)
	assert.Equal(t, "http://x", c.baseURL)
	assert.Same(t, hc, c.http)
	assert.Equal(t, defaultMaxResults, c.maxResults)
}
