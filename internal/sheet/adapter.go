package sheet

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/fieldops/geosync/internal/domain"
	"github.com/fieldops/geosync/internal/geo"
	"github.com/fieldops/geosync/internal/logger"
)

// Retry policy for quota-rejected coordinate writes: one initial
// attempt plus up to maxCoordinateRetries retries, doubling from
// initialRetryDelay (1s, 2s, 4s, 8s, 16s; worst case 31s of waiting).
// This is the only retrying code path in the service.
const (
	maxCoordinateRetries = 5
	initialRetryDelay    = time.Second
)

// Store exposes the record store operations the rest of the service
// uses.
type Store struct {
	transport  RowTransport
	logger     logger.Logger
	retryBase  time.Duration
	maxRetries uint64
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithRetryBaseDelay overrides the initial backoff delay. Used by
// tests to keep the doubling schedule without real seconds.
func WithRetryBaseDelay(d time.Duration) StoreOption {
	return func(s *Store) {
		if d > 0 {
			s.retryBase = d
		}
	}
}

// NewStore creates a record store adapter over the given transport.
func NewStore(transport RowTransport, log logger.Logger, opts ...StoreOption) *Store {
	s := &Store{
		transport:  transport,
		logger:     log,
		retryBase:  initialRetryDelay,
		maxRetries: maxCoordinateRetries,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchAll reads the full data range. Malformed rows (missing company
// name or address) are skipped and logged; they never abort the read.
func (s *Store) FetchAll(ctx context.Context) ([]domain.Location, error) {
	rows, err := s.transport.ReadRows(ctx)
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}

	locations := make([]domain.Location, 0, len(rows))
	for i, row := range rows {
		id := i + 1
		loc, parseErr := parseRow(id, row)
		if parseErr != nil {
			s.logger.Warn("Skipping malformed row",
				logger.Int("row", id),
				logger.Error(parseErr),
			)
			continue
		}
		locations = append(locations, *loc)
	}
	return locations, nil
}

// FetchOne reads a single location by id. A malformed row behaves like
// a missing one.
func (s *Store) FetchOne(ctx context.Context, id int) (*domain.Location, error) {
	if id < 1 {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}

	row, err := s.transport.ReadRow(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("read row %d: %w", id, err)
	}

	loc, parseErr := parseRow(id, row)
	if parseErr != nil {
		s.logger.Warn("Row exists but does not parse",
			logger.Int("row", id),
			logger.Error(parseErr),
		)
		return nil, fmt.Errorf("%w: row %d is malformed", ErrNotFound, id)
	}
	return loc, nil
}

// UpdateFields writes only the supplied fields of a location, then
// re-reads the row and returns the authoritative post-write state.
func (s *Store) UpdateFields(ctx context.Context, id int, update domain.LocationUpdate) (*domain.Location, error) {
	if update.Status != nil && !domain.ValidStatus(*update.Status) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, *update.Status)
	}
	if update.Notes != nil && len(*update.Notes) > domain.MaxNotesLength {
		return nil, fmt.Errorf("%w: %d > %d", ErrNotesTooLong, len(*update.Notes), domain.MaxNotesLength)
	}

	// Existence check before writing; also surfaces NotFound for
	// malformed rows.
	if _, err := s.FetchOne(ctx, id); err != nil {
		return nil, err
	}

	cells := make(map[int]string)
	if update.Status != nil {
		cells[ColStatus] = string(*update.Status)
	}
	if update.Notes != nil {
		cells[ColNotes] = *update.Notes
	}
	if update.FollowUpDate != nil {
		cells[ColFollowUpDate] = normalizeDate(*update.FollowUpDate)
	}

	if len(cells) > 0 {
		if err := s.transport.UpdateCells(ctx, id, cells); err != nil {
			return nil, fmt.Errorf("update row %d: %w", id, err)
		}
	}

	return s.FetchOne(ctx, id)
}

// UpdateCoordinates writes a geocoded pair back to the row. Invalid
// pairs fail fast without a write. Quota-rejected writes are retried
// with the doubling backoff; every other failure propagates
// immediately.
func (s *Store) UpdateCoordinates(ctx context.Context, id int, lat, lng float64) error {
	if !geo.IsValid(lat, lng) {
		return fmt.Errorf("%w: (%v, %v)", ErrInvalidCoordinates, lat, lng)
	}

	cells := map[int]string{
		ColLat: strconv.FormatFloat(lat, 'f', -1, 64),
		ColLng: strconv.FormatFloat(lng, 'f', -1, 64),
	}

	attempt := 0
	operation := func() error {
		attempt++
		err := s.transport.UpdateCells(ctx, id, cells)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrRateLimited) {
			s.logger.Warn("Coordinate write rate limited, will retry",
				logger.Int("row", id),
				logger.Int("attempt", attempt),
				logger.Error(err),
			)
			return err
		}
		return backoff.Permanent(err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.retryBase
	policy.Multiplier = 2
	policy.RandomizationFactor = 0
	policy.MaxInterval = s.retryBase * 16
	policy.MaxElapsedTime = 0

	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(policy, s.maxRetries), ctx))
	if err != nil {
		return fmt.Errorf("update coordinates for row %d: %w", id, err)
	}

	s.logger.Info("Coordinates written",
		logger.Int("row", id),
		logger.Float64("lat", lat),
		logger.Float64("lng", lng),
		logger.Int("attempts", attempt),
	)
	return nil
}

// parseRow converts one raw row into a Location. Rows missing the
// company name or address are invalid.
func parseRow(id int, cells []string) (*domain.Location, error) {
	padded := make([]string, columnCount)
	copy(padded, cells)

	name := padded[ColCompanyName]
	address := padded[ColAddress]
	if name == "" || address == "" {
		return nil, fmt.Errorf("row %d missing company name or address", id)
	}

	lat := parseCoordinate(padded[ColLat])
	lng := parseCoordinate(padded[ColLng])

	return &domain.Location{
		ID:           id,
		CompanyName:  name,
		Address:      address,
		Status:       domain.CoerceStatus(padded[ColStatus]),
		Notes:        padded[ColNotes],
		Lat:          lat,
		Lng:          lng,
		FollowUpDate: normalizeDate(padded[ColFollowUpDate]),
	}, nil
}

// parseCoordinate reads a stored coordinate cell; anything unparseable
// counts as unset.
func parseCoordinate(raw string) float64 {
	if raw == "" {
		return 0
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return v
}

// Date layouts accepted on read; output is always ISO-8601.
const (
	isoDateLayout = "2006-01-02"
	usDateLayout  = "01/02/2006"
)

// normalizeDate maps external date formats to ISO-8601. Unrecognized
// values pass through unchanged.
func normalizeDate(raw string) string {
	if raw == "" {
		return ""
	}
	if _, err := time.Parse(isoDateLayout, raw); err == nil {
		return raw
	}
	if t, err := time.Parse(usDateLayout, raw); err == nil {
		return t.Format(isoDateLayout)
	}
	return raw
}
