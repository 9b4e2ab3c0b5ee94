// Package scheduler coordinates backfill passes over records missing
// coordinates: single-flight locking, quota-friendly batching, and
// timer-based self-rescheduling.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/fieldops/geosync/internal/domain"
	"github.com/fieldops/geosync/internal/events"
	"github.com/fieldops/geosync/internal/geo"
	"github.com/fieldops/geosync/internal/logger"
)

// Defaults keep batches small and spacing generous: the external
// geocoding and record store APIs enforce low request quotas, and
// eventually backfilling everything matters more than speed.
const (
	DefaultBatchSize        = 3
	DefaultMinInterval      = 5 * time.Second
	DefaultInterUpdateDelay = time.Second
)

// Geocoder is the slice of the geocode client the scheduler needs.
type Geocoder interface {
	Geocode(ctx context.Context, address string) domain.GeocodeResult
}

// RecordStore is the slice of the record store adapter the scheduler
// needs.
type RecordStore interface {
	FetchAll(ctx context.Context) ([]domain.Location, error)
	UpdateCoordinates(ctx context.Context, id int, lat, lng float64) error
}

// EventPublisher broadcasts location events. Optional; a scheduler
// without one simply skips the broadcast.
type EventPublisher interface {
	PublishAsync(event events.LocationEvent)
}

// Backfill runs backfill passes. All lock state is owned by the
// instance; tests construct isolated instances instead of sharing
// globals.
type Backfill struct {
	logger   logger.Logger
	store    RecordStore
	geocoder Geocoder

	// Lock state. At most one pass holds inProgress at any instant;
	// lastRunAt only moves forward.
	mu         sync.Mutex
	inProgress bool
	lastRunAt  time.Time

	batchSize        int
	minInterval      time.Duration
	interUpdateDelay time.Duration

	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration)
	schedule func(d time.Duration, f func())

	publisher EventPublisher
	metrics   *Metrics
}

// New creates a backfill scheduler.
func New(store RecordStore, geocoder Geocoder, log logger.Logger, opts ...Option) *Backfill {
	b := &Backfill{
		logger:           log,
		store:            store,
		geocoder:         geocoder,
		batchSize:        DefaultBatchSize,
		minInterval:      DefaultMinInterval,
		interUpdateDelay: DefaultInterUpdateDelay,
		now:              time.Now,
		sleep:            sleepWithContext,
		schedule: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.metrics == nil {
		// Private registry so multiple instances never collide.
		b.metrics = NewMetrics(prometheus.NewRegistry())
	}
	return b
}

// passRun tracks the state of one pass through the state machine.
type passRun struct {
	id    string
	state PassState
}

// advance moves a pass to the next state, validating the transition.
func (b *Backfill) advance(p *passRun, to PassState) {
	if err := ValidateStateTransition(p.state, to); err != nil {
		b.logger.Error("Backfill state machine violated",
			logger.String("pass_id", p.id),
			logger.Error(err),
		)
	}
	p.state = to
}

// RunBackfillPass evaluates the record set and, if records are missing
// coordinates and no guard fires, processes one bounded batch and
// schedules a follow-up pass while work remains. It never returns an
// error and never panics into the caller; a trigger arriving mid-drain
// is a safe no-op.
func (b *Backfill) RunBackfillPass(ctx context.Context) {
	pass := &passRun{id: uuid.NewString(), state: StateIdle}
	b.advance(pass, StateEvaluating)

	missing, err := b.evaluate(ctx)
	if err != nil {
		b.logger.Error("Backfill evaluation failed",
			logger.String("pass_id", pass.id),
			logger.Error(err),
		)
		b.advance(pass, StateIdle)
		return
	}

	b.metrics.MissingRecords.Set(float64(len(missing)))
	if len(missing) == 0 {
		b.logger.Debug("No records missing coordinates",
			logger.String("pass_id", pass.id),
		)
		b.advance(pass, StateIdle)
		return
	}

	if reason, ok := b.tryAcquire(); !ok {
		b.advance(pass, StateSkipped)
		b.metrics.SkipsTotal.WithLabelValues(reason).Inc()
		b.logger.Info("Backfill pass skipped",
			logger.String("pass_id", pass.id),
			logger.String("reason", reason),
			logger.Int("missing", len(missing)),
		)
		b.advance(pass, StateIdle)
		return
	}
	b.advance(pass, StateAcquiring)

	// The release must run on every exit path of the running phase.
	defer func() {
		b.release()
		b.advance(pass, StateIdle)
	}()

	b.advance(pass, StateRunning)
	b.metrics.PassesTotal.Inc()
	start := b.now()

	b.processBatch(ctx, pass, missing)

	b.metrics.BatchDurationSeconds.Observe(b.now().Sub(start).Seconds())
	if sized, ok := b.geocoder.(interface{ CacheSize() int }); ok {
		b.metrics.GeocodeCacheEntries.Set(float64(sized.CacheSize()))
	}

	remaining := len(missing) - b.batchSize
	if remaining > 0 {
		b.metrics.ReschedulesTotal.Inc()
		b.logger.Info("Backfill work remains, scheduling follow-up pass",
			logger.String("pass_id", pass.id),
			logger.Int("remaining", remaining),
			logger.Duration("delay", b.minInterval),
		)
		b.schedule(b.minInterval, func() {
			b.RunBackfillPass(context.Background())
		})
	} else {
		b.logger.Info("Backfill queue drained",
			logger.String("pass_id", pass.id),
		)
	}
}

// evaluate fetches all records and filters to those whose coordinates
// are unset per the near-origin heuristic.
func (b *Backfill) evaluate(ctx context.Context) ([]domain.Location, error) {
	locations, err := b.store.FetchAll(ctx)
	if err != nil {
		return nil, err
	}

	var missing []domain.Location
	for _, loc := range locations {
		if geo.IsMissing(loc.Lat, loc.Lng) {
			missing = append(missing, loc)
		}
	}
	return missing, nil
}

// tryAcquire checks the guards in order and, if both pass, takes the
// lock and stamps lastRunAt. Returns the skip reason when a guard
// fires.
func (b *Backfill) tryAcquire() (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.inProgress {
		return SkipReasonLockHeld, false
	}

	now := b.now()
	if !b.lastRunAt.IsZero() && now.Sub(b.lastRunAt) < b.minInterval {
		return SkipReasonInterval, false
	}

	b.inProgress = true
	b.lastRunAt = now
	return "", true
}

// release clears the in-progress flag.
func (b *Backfill) release() {
	b.mu.Lock()
	b.inProgress = false
	b.mu.Unlock()
}

// processBatch geocodes and writes back the first batchSize records,
// strictly in order. A per-record failure is logged and the record is
// left queued for a later pass; the batch keeps going either way.
func (b *Backfill) processBatch(ctx context.Context, pass *passRun, missing []domain.Location) {
	batch := missing
	if len(batch) > b.batchSize {
		batch = batch[:b.batchSize]
	}

	for i, loc := range batch {
		b.processRecord(ctx, pass, loc)

		// Record store writes have a stricter quota than geocoding
		// reads; pause between records but not after the last one.
		if i < len(batch)-1 {
			b.sleep(ctx, b.interUpdateDelay)
		}
	}
}

// processRecord geocodes one record and writes the result back.
func (b *Backfill) processRecord(ctx context.Context, pass *passRun, loc domain.Location) {
	result := b.geocoder.Geocode(ctx, loc.Address)
	if !result.Success {
		b.metrics.RecordsFailedTotal.WithLabelValues(FailReasonGeocode).Inc()
		b.logger.Warn("Geocoding failed, record stays queued",
			logger.String("pass_id", pass.id),
			logger.Int("record_id", loc.ID),
			logger.String("error_kind", string(result.ErrorKind)),
			logger.String("error", result.ErrorMessage),
		)
		return
	}

	coords := result.Coordinates
	if geo.IsSuspicious(coords.Lat, coords.Lng) {
		b.metrics.RecordsFailedTotal.WithLabelValues(FailReasonSuspicious).Inc()
		b.logger.Warn("Discarding near-origin geocode result",
			logger.String("pass_id", pass.id),
			logger.Int("record_id", loc.ID),
			logger.Float64("lat", coords.Lat),
			logger.Float64("lng", coords.Lng),
		)
		return
	}

	if err := b.store.UpdateCoordinates(ctx, loc.ID, coords.Lat, coords.Lng); err != nil {
		b.metrics.RecordsFailedTotal.WithLabelValues(FailReasonWrite).Inc()
		b.logger.Error("Coordinate write failed, record stays queued",
			logger.String("pass_id", pass.id),
			logger.Int("record_id", loc.ID),
			logger.Error(err),
		)
		return
	}

	b.metrics.RecordsGeocodedTotal.Inc()
	b.logger.Info("Record backfilled",
		logger.String("pass_id", pass.id),
		logger.Int("record_id", loc.ID),
		logger.Float64("lat", coords.Lat),
		logger.Float64("lng", coords.Lng),
	)

	if b.publisher != nil {
		b.publisher.PublishAsync(events.LocationEvent{
			EventType:  events.CoordinatesBackfilled,
			LocationID: loc.ID,
			Payload: events.CoordinatesBackfilledPayload{
				Lat: coords.Lat,
				Lng: coords.Lng,
			},
		})
	}
}

// InProgress reports whether a pass currently holds the lock.
func (b *Backfill) InProgress() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.inProgress
}

// LastRunAt returns when the last running phase was acquired.
func (b *Backfill) LastRunAt() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastRunAt
}

// sleepWithContext pauses for d or until the context is done.
func sleepWithContext(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
