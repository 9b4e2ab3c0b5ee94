package geocode

import (
	"context"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/fieldops/geosync/internal/domain"
	"github.com/fieldops/geosync/internal/geo"
	"github.com/fieldops/geosync/internal/logger"
)

// DefaultInterRequestDelay is the minimum spacing between outbound
// provider calls. This is the client-level rate limit; the backfill
// scheduler layers its own inter-update delay on top because record
// store writes have a separate, stricter quota.
const DefaultInterRequestDelay = 200 * time.Millisecond

// Client geocodes addresses through a Provider, consulting a TTL cache
// first and pacing outbound calls.
type Client struct {
	provider Provider
	cache    *resultCache
	limiter  *rate.Limiter
	logger   logger.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithCacheTTL overrides the cache TTL.
func WithCacheTTL(ttl time.Duration) ClientOption {
	return func(c *Client) {
		c.cache = newResultCache(ttl)
	}
}

// WithInterRequestDelay overrides the spacing between provider calls.
func WithInterRequestDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		if d <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// NewClient creates a geocoding client.
func NewClient(provider Provider, log logger.Logger, opts ...ClientOption) *Client {
	c := &Client{
		provider: provider,
		cache:    newResultCache(DefaultCacheTTL),
		limiter:  rate.NewLimiter(rate.Every(DefaultInterRequestDelay), 1),
		logger:   log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NormalizeAddress produces the cache key for an address: lower-cased
// with runs of whitespace collapsed to single spaces.
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.Join(strings.Fields(address), " "))
}

// Geocode resolves an address to coordinates. It never returns an
// error; failures are reported through the result's ErrorKind, and
// both successes and failures are cached before returning.
func (c *Client) Geocode(ctx context.Context, address string) domain.GeocodeResult {
	if strings.TrimSpace(address) == "" {
		return domain.GeocodeResult{
			Success:         false,
			ErrorKind:       domain.GeocodeErrInvalidInput,
			ErrorMessage:    "address is empty",
			OriginalAddress: address,
		}
	}

	key := NormalizeAddress(address)
	if cached, ok := c.cache.get(key); ok {
		c.logger.Debug("Geocode cache hit",
			logger.String("address", key),
			logger.Bool("success", cached.Success),
		)
		return cached
	}

	result := c.geocodeUncached(ctx, address)
	c.cache.put(key, result)
	return result
}

// geocodeUncached performs the paced provider call and maps the
// response to a result.
func (c *Client) geocodeUncached(ctx context.Context, address string) domain.GeocodeResult {
	if err := c.limiter.Wait(ctx); err != nil {
		return failure(address, domain.GeocodeErrTransport, "rate limiter wait interrupted: "+err.Error())
	}

	resp, err := c.provider.Geocode(ctx, address)
	if err != nil {
		// Transport failures are cached like any other outcome so a
		// failing endpoint is not hammered until the TTL expires.
		c.logger.Warn("Geocode provider call failed",
			logger.String("address", address),
			logger.Error(err),
		)
		return failure(address, domain.GeocodeErrTransport, "provider unreachable: "+err.Error())
	}

	if kind, msg, failed := classifyStatus(resp.Status); failed {
		c.logger.Debug("Geocode returned no coordinates",
			logger.String("address", address),
			logger.String("provider_status", string(resp.Status)),
		)
		return failure(address, kind, msg)
	}

	if len(resp.Results) == 0 {
		return failure(address, domain.GeocodeErrNoResults, "provider returned OK with no candidates")
	}

	first := resp.Results[0]
	if !geo.IsValid(first.Location.Lat, first.Location.Lng) {
		c.logger.Warn("Geocode returned out-of-range coordinates",
			logger.String("address", address),
			logger.Float64("lat", first.Location.Lat),
			logger.Float64("lng", first.Location.Lng),
		)
		return failure(address, domain.GeocodeErrInvalidCoordinates, "coordinates outside valid ranges")
	}

	return domain.GeocodeResult{
		Success:          true,
		Coordinates:      &domain.Coordinates{Lat: first.Location.Lat, Lng: first.Location.Lng},
		FormattedAddress: first.FormattedAddress,
		OriginalAddress:  address,
	}
}

// GeocodeMany resolves addresses strictly sequentially, returning
// results in input order. Pacing between provider calls comes from the
// client's limiter; cache hits do not consume limiter slots.
func (c *Client) GeocodeMany(ctx context.Context, addresses []string) []domain.GeocodeResult {
	results := make([]domain.GeocodeResult, 0, len(addresses))
	for _, address := range addresses {
		results = append(results, c.Geocode(ctx, address))
	}
	return results
}

// CacheSize returns the number of entries currently held by the cache.
func (c *Client) CacheSize() int {
	return c.cache.len()
}

// classifyStatus maps a non-OK provider status to an error kind and a
// human-readable message. The third return is false for StatusOK.
func classifyStatus(status ProviderStatus) (domain.GeocodeErrorKind, string, bool) {
	switch status {
	case StatusOK:
		return "", "", false
	case StatusZeroResults:
		return domain.GeocodeErrNoResults, "no results found for address", true
	case StatusOverQueryLimit:
		return domain.GeocodeErrQuotaExceeded, "geocoding query quota exceeded", true
	case StatusRequestDenied:
		return domain.GeocodeErrRequestDenied, "geocoding request denied by provider", true
	case StatusInvalidRequest:
		return domain.GeocodeErrInvalidRequest, "geocoding request rejected as invalid", true
	default:
		return domain.GeocodeErrUnknown, "unrecognized provider status: " + string(status), true
	}
}

func failure(address string, kind domain.GeocodeErrorKind, msg string) domain.GeocodeResult {
	return domain.GeocodeResult{
		Success:         false,
		ErrorKind:       kind,
		ErrorMessage:    msg,
		OriginalAddress: address,
	}
}
