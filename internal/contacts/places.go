package contacts

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/buyer-sync/internal/resilience"
	"github.com/sells-group/buyer-sync/pkg/google"
)

// PlaceDetail is the contact data for a chosen place.
type PlaceDetail struct {
	PlaceID          string   `json:"placeId"`
	Name             string   `json:"name,omitempty"`
	FormattedAddress string   `json:"formattedAddress,omitempty"`
	Phone            string   `json:"phone,omitempty"`
	Website          string   `json:"website,omitempty"`
	MapsURL          string   `json:"mapsUrl,omitempty"`
	Lat              *float64 `json:"lat,omitempty"`
	Lng              *float64 `json:"lng,omitempty"`
}

// PlaceSearcher finds candidate places and fetches their details.
type PlaceSearcher interface {
	Search(ctx context.Context, query string) ([]Candidate, error)
	Detail(ctx context.Context, placeID string) (*PlaceDetail, error)
}

// PlacesOptions tunes ResilientPlaces.
type PlacesOptions struct {
	// RateLimit is requests per second; zero or less disables limiting.
	RateLimit float64
	Retry     resilience.RetryConfig
	Circuit   resilience.CircuitBreakerConfig
}

// ResilientPlaces adapts a google.Client to PlaceSearcher, passing every
// call through a rate limiter, retries for transient failures, and a
// circuit breaker.
type ResilientPlaces struct {
	client  google.Client
	limiter *rate.Limiter
	retry   resilience.RetryConfig
	breaker *resilience.CircuitBreaker
}

// NewResilientPlaces wraps client.
func NewResilientPlaces(client google.Client, opts PlacesOptions) *ResilientPlaces {
	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}

	retryCfg := opts.Retry
	if retryCfg.ShouldRetry == nil {
		retryCfg.ShouldRetry = retryablePlacesError
	}

	circuitCfg := opts.Circuit
	if circuitCfg.ShouldTrip == nil {
		circuitCfg.ShouldTrip = retryablePlacesError
	}
	if circuitCfg.OnStateChange == nil {
		circuitCfg.OnStateChange = func(from, to resilience.CircuitState) {
			zap.L().Warn("places circuit breaker state change",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		}
	}

	return &ResilientPlaces{
		client:  client,
		limiter: rate.NewLimiter(limit, 1),
		retry:   retryCfg,
		breaker: resilience.NewCircuitBreaker(circuitCfg),
	}
}

// Search runs a text search and converts the results to candidates.
func (p *ResilientPlaces) Search(ctx context.Context, query string) ([]Candidate, error) {
	resp, err := callPlaces(ctx, p, "search_text", func(ctx context.Context) (*google.SearchTextResponse, error) {
		return p.client.SearchText(ctx, query)
	})
	if err != nil {
		return nil, err
	}

	out := make([]Candidate, 0, len(resp.Places))
	for _, pl := range resp.Places {
		if pl.ID == "" {
			continue
		}
		c := Candidate{
			PlaceID:          pl.ID,
			Name:             pl.DisplayName.Text,
			FormattedAddress: pl.FormattedAddress,
		}
		c.Lat, c.Lng = coords(pl.Location)
		out = append(out, c)
	}
	return out, nil
}

// Detail fetches contact details for placeID.
func (p *ResilientPlaces) Detail(ctx context.Context, placeID string) (*PlaceDetail, error) {
	pl, err := callPlaces(ctx, p, "place_details", func(ctx context.Context) (*google.Place, error) {
		return p.client.PlaceDetails(ctx, placeID)
	})
	if err != nil {
		return nil, err
	}

	d := &PlaceDetail{
		PlaceID:          pl.ID,
		Name:             pl.DisplayName.Text,
		FormattedAddress: pl.FormattedAddress,
		Phone:            pl.NationalPhoneNumber,
		Website:          pl.WebsiteURI,
		MapsURL:          pl.GoogleMapsURI,
	}
	if d.PlaceID == "" {
		d.PlaceID = placeID
	}
	d.Lat, d.Lng = coords(pl.Location)
	return d, nil
}

func callPlaces[T any](ctx context.Context, p *ResilientPlaces, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	cfg := p.retry
	if cfg.OnRetry == nil {
		cfg.OnRetry = resilience.RetryLogger("google_places", op)
	}
	return resilience.DoVal(ctx, cfg, func(ctx context.Context) (T, error) {
		if err := p.limiter.Wait(ctx); err != nil {
			var zero T
			return zero, err
		}
		return resilience.ExecuteVal(ctx, p.breaker, fn)
	})
}

// retryablePlacesError reports whether a Places failure is worth another
// attempt. Client errors, a missing key, and an open circuit are not.
func retryablePlacesError(err error) bool {
	if errors.Is(err, google.ErrMissingAPIKey) || errors.Is(err, resilience.ErrCircuitOpen) {
		return false
	}
	if resilience.IsTransient(err) {
		return true
	}
	var apiErr *google.APIError
	return errors.As(err, &apiErr) && resilience.IsTransientHTTPStatus(apiErr.StatusCode)
}

func coords(loc *google.LatLng) (*float64, *float64) {
	if loc == nil {
		return nil, nil
	}
	lat, lng := loc.Latitude, loc.Longitude
	return &lat, &lng
}
