// Package geocode converts free-text addresses to coordinates through
// an external geocoding provider, with a TTL result cache and
// client-level request pacing.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/fieldops/geosync/internal/domain"
)

// ProviderStatus is the status code returned by the geocoding provider.
type ProviderStatus string

const (
	StatusOK             ProviderStatus = "OK"
	StatusZeroResults    ProviderStatus = "ZERO_RESULTS"
	StatusOverQueryLimit ProviderStatus = "OVER_QUERY_LIMIT"
	StatusRequestDenied  ProviderStatus = "REQUEST_DENIED"
	StatusInvalidRequest ProviderStatus = "INVALID_REQUEST"
)

// Candidate is one candidate result from the provider. Only the first
// candidate is ever used.
type Candidate struct {
	FormattedAddress string             `json:"formatted_address"`
	Location         domain.Coordinates `json:"location"`
}

// Response is a provider response: a status plus, on OK, a list of
// candidates.
type Response struct {
	Status  ProviderStatus `json:"status"`
	Results []Candidate    `json:"results"`
}

// Provider resolves a free-text address against an external geocoding
// service.
type Provider interface {
	Geocode(ctx context.Context, address string) (*Response, error)
}

// HTTP transport defaults, matching the shared client configuration
// used by the other services.
const (
	defaultRequestTimeout      = 10 * time.Second
	defaultMaxIdleConnsPerHost = 10
	defaultIdleConnTimeout     = 90 * time.Second
)

// HTTPProvider calls a Google-style geocoding HTTP API.
type HTTPProvider struct {
	baseURL string
	apiKey  string
	region  string
	client  *http.Client
}

// ProviderOption configures an HTTPProvider.
type ProviderOption func(*HTTPProvider)

// WithRegion sets a region bias code sent with every request.
func WithRegion(region string) ProviderOption {
	return func(p *HTTPProvider) {
		p.region = region
	}
}

// NewHTTPProvider creates a provider for the given API endpoint. The
// underlying client always carries an explicit request timeout.
func NewHTTPProvider(baseURL, apiKey string, timeout time.Duration, opts ...ProviderOption) *HTTPProvider {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	p := &HTTPProvider{
		baseURL: baseURL,
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
				IdleConnTimeout:     defaultIdleConnTimeout,
			},
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// geometryPayload mirrors the provider's nested geometry object.
type geometryPayload struct {
	Location domain.Coordinates `json:"location"`
}

// resultPayload mirrors one element of the provider's results array.
type resultPayload struct {
	FormattedAddress string          `json:"formatted_address"`
	Geometry         geometryPayload `json:"geometry"`
}

// responsePayload mirrors the provider's top-level response body.
type responsePayload struct {
	Status  string          `json:"status"`
	Results []resultPayload `json:"results"`
}

// Geocode performs one HTTP geocoding request.
func (p *HTTPProvider) Geocode(ctx context.Context, address string) (*Response, error) {
	q := url.Values{}
	q.Set("address", address)
	if p.apiKey != "" {
		q.Set("key", p.apiKey)
	}
	if p.region != "" {
		q.Set("region", p.region)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build geocode request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocode request: unexpected HTTP status %d", resp.StatusCode)
	}

	var payload responsePayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode geocode response: %w", err)
	}

	out := &Response{Status: ProviderStatus(payload.Status)}
	for _, r := range payload.Results {
		out.Results = append(out.Results, Candidate{
			FormattedAddress: r.FormattedAddress,
			Location:         r.Geometry.Location,
		})
	}
	return out, nil
}
