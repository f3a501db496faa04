// Package google is a minimal client for the Google Places API (New): text
// search for candidate places and place details for contact data.
package google

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/buyer-sync/internal/resilience"
)

const (
	defaultBaseURL    = "https://places.googleapis.com/v1"
	defaultMaxResults = 5

	searchFieldMask  = "places.id,places.displayName,places.formattedAddress,places.location"
	detailsFieldMask = "id,displayName,formattedAddress,location,nationalPhoneNumber,websiteUri,googleMapsUri"
)

// ErrMissingAPIKey is returned by every call on a client built without a key.
var ErrMissingAPIKey = eris.New("google: api key is required")

// Client performs Google Places API operations.
type Client interface {
	SearchText(ctx context.Context, query string) (*SearchTextResponse, error)
	PlaceDetails(ctx context.Context, placeID string) (*Place, error)
}

// SearchTextResponse is the response from Places Text Search.
type SearchTextResponse struct {
	Places []Place `json:"places"`
}

// Place represents a place returned by the API. Search responses fill only
// the identity and location fields; details fill the contact fields too.
type Place struct {
	ID                  string      `json:"id"`
	DisplayName         DisplayName `json:"displayName"`
	FormattedAddress    string      `json:"formattedAddress,omitempty"`
	Location            *LatLng     `json:"location,omitempty"`
	NationalPhoneNumber string      `json:"nationalPhoneNumber,omitempty"`
	WebsiteURI          string      `json:"websiteUri,omitempty"`
	GoogleMapsURI       string      `json:"googleMapsUri,omitempty"`
}

// DisplayName holds the place's display name.
type DisplayName struct {
	Text string `json:"text"`
}

// LatLng is a WGS84 coordinate pair.
type LatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// APIError is a non-2xx response from the Places API.
type APIError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("google: %s: unexpected status %d: %s", e.Op, e.StatusCode, e.Body)
}

// Unauthorized reports whether the key was rejected.
func (e *APIError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		if url != "" {
			c.baseURL = strings.TrimRight(url, "/")
		}
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithMaxResults caps the number of candidates returned by SearchText.
func WithMaxResults(n int) Option {
	return func(c *httpClient) {
		if n > 0 {
			c.maxResults = n
		}
	}
}

type httpClient struct {
	apiKey     string
	baseURL    string
	maxResults int
	http       *http.Client
}

// NewClient creates a Google Places API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		maxResults: defaultMaxResults,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type searchTextRequest struct {
	TextQuery      string `json:"textQuery"`
	MaxResultCount int    `json:"maxResultCount,omitempty"`
}

func (c *httpClient) SearchText(ctx context.Context, query string) (*SearchTextResponse, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	body, err := json.Marshal(searchTextRequest{TextQuery: query, MaxResultCount: c.maxResults})
	if err != nil {
		return nil, eris.Wrap(err, "google: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/places:searchText", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "google: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-FieldMask", searchFieldMask)

	var result SearchTextResponse
	if err := c.do(req, "search text", &result); err != nil {
		return nil, err
	}

	if len(result.Places) > c.maxResults {
		result.Places = result.Places[:c.maxResults]
	}
	return &result, nil
}

func (c *httpClient) PlaceDetails(ctx context.Context, placeID string) (*Place, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if placeID == "" {
		return nil, eris.New("google: place id is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/places/"+url.PathEscape(placeID), nil)
	if err != nil {
		return nil, eris.Wrap(err, "google: create request")
	}
	req.Header.Set("X-Goog-FieldMask", detailsFieldMask)

	var place Place
	if err := c.do(req, "place details", &place); err != nil {
		return nil, err
	}
	if place.ID == "" {
		place.ID = placeID
	}
	return &place, nil
}

func (c *httpClient) do(req *http.Request, op string, out any) error {
	req.Header.Set("X-Goog-Api-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrapf(err, "google: %s: send request", op)
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrapf(err, "google: %s: read response", op)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{Op: op, StatusCode: resp.StatusCode, Body: string(respBody)}
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return resilience.NewTransientError(apiErr, resp.StatusCode)
		}
		return apiErr
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return eris.Wrapf(err, "google: %s: unmarshal response", op)
	}
	return nil
}
