package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldops/geosync/internal/domain"
	"github.com/fieldops/geosync/internal/events"
	"github.com/fieldops/geosync/internal/logger"
)

type coordUpdate struct {
	id  int
	lat float64
	lng float64
}

type fakeStore struct {
	mu        sync.Mutex
	locations []domain.Location
	fetchErr  error
	updateErr map[int]error
	updates   []coordUpdate
}

func (s *fakeStore) FetchAll(ctx context.Context) ([]domain.Location, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	out := make([]domain.Location, len(s.locations))
	copy(out, s.locations)
	return out, nil
}

func (s *fakeStore) UpdateCoordinates(ctx context.Context, id int, lat, lng float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.updateErr[id]; ok {
		return err
	}
	s.updates = append(s.updates, coordUpdate{id: id, lat: lat, lng: lng})
	for i := range s.locations {
		if s.locations[i].ID == id {
			s.locations[i].Lat = lat
			s.locations[i].Lng = lng
		}
	}
	return nil
}

func (s *fakeStore) updateCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.updates)
}

type fakeGeocoder struct {
	mu      sync.Mutex
	results map[string]domain.GeocodeResult
	calls   []string
	block   chan struct{}
}

func (g *fakeGeocoder) Geocode(ctx context.Context, address string) domain.GeocodeResult {
	if g.block != nil {
		<-g.block
	}
	g.mu.Lock()
	g.calls = append(g.calls, address)
	g.mu.Unlock()
	if res, ok := g.results[address]; ok {
		return res
	}
	return domain.GeocodeResult{
		Success:         true,
		Coordinates:     &domain.Coordinates{Lat: 43.65, Lng: -79.38},
		OriginalAddress: address,
	}
}

func (g *fakeGeocoder) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

// sizedGeocoder mimics the geocode client's cache growing one entry
// per distinct address.
type sizedGeocoder struct {
	*fakeGeocoder
}

func (g *sizedGeocoder) CacheSize() int {
	return g.callCount()
}

type fakePublisher struct {
	mu     sync.Mutex
	events []events.LocationEvent
}

func (p *fakePublisher) PublishAsync(event events.LocationEvent) {
	p.mu.Lock()
	p.events = append(p.events, event)
	p.mu.Unlock()
}

func (p *fakePublisher) published() []events.LocationEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.LocationEvent, len(p.events))
	copy(out, p.events)
	return out
}

func missingLocations(n int) []domain.Location {
	locs := make([]domain.Location, 0, n)
	for i := 1; i <= n; i++ {
		locs = append(locs, domain.Location{
			ID:          i,
			CompanyName: "Acme",
			Address:     addrFor(i),
		})
	}
	return locs
}

func addrFor(i int) string {
	return string(rune('a'+i)) + " main st"
}

func newTestBackfill(t *testing.T, store *fakeStore, geocoder Geocoder, opts ...Option) (*Backfill, *Metrics) {
	t.Helper()
	metrics := NewMetrics(prometheus.NewRegistry())
	base := []Option{
		WithMetrics(metrics),
		WithSleep(func(ctx context.Context, d time.Duration) {}),
		WithScheduleFunc(func(d time.Duration, f func()) {}),
	}
	b := New(store, geocoder, logger.NewNop(), append(base, opts...)...)
	return b, metrics
}

func TestRunBackfillPass_NoMissingRecords(t *testing.T) {
	store := &fakeStore{locations: []domain.Location{
		{ID: 1, CompanyName: "Acme", Address: "1 main st", Lat: 43.65, Lng: -79.38},
	}}
	geocoder := &fakeGeocoder{}
	b, metrics := newTestBackfill(t, store, geocoder)

	b.RunBackfillPass(context.Background())

	assert.Zero(t, geocoder.callCount())
	assert.Zero(t, store.updateCount())
	assert.Zero(t, testutil.ToFloat64(metrics.PassesTotal))
	assert.False(t, b.InProgress())
}

func TestRunBackfillPass_FetchErrorIsSwallowed(t *testing.T) {
	store := &fakeStore{fetchErr: errors.New("read quota exceeded")}
	geocoder := &fakeGeocoder{}
	b, metrics := newTestBackfill(t, store, geocoder)

	b.RunBackfillPass(context.Background())

	assert.Zero(t, geocoder.callCount())
	assert.Zero(t, testutil.ToFloat64(metrics.PassesTotal))
	assert.False(t, b.InProgress())
}

func TestRunBackfillPass_BatchLimitAndReschedule(t *testing.T) {
	store := &fakeStore{locations: missingLocations(4)}
	geocoder := &fakeGeocoder{}

	var scheduled []time.Duration
	b, metrics := newTestBackfill(t, store, geocoder,
		WithScheduleFunc(func(d time.Duration, f func()) {
			scheduled = append(scheduled, d)
		}),
	)

	b.RunBackfillPass(context.Background())

	assert.Equal(t, 3, store.updateCount())
	assert.Equal(t, 3, geocoder.callCount())
	require.Len(t, scheduled, 1)
	assert.Equal(t, DefaultMinInterval, scheduled[0])
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.ReschedulesTotal))
	assert.Equal(t, float64(3), testutil.ToFloat64(metrics.RecordsGeocodedTotal))
}

func TestRunBackfillPass_DrainsQueueAcrossPasses(t *testing.T) {
	store := &fakeStore{locations: append(missingLocations(4), domain.Location{
		ID: 5, CompanyName: "Acme", Address: "5 main st", Lat: 45.42, Lng: -75.69,
	})}
	geocoder := &fakeGeocoder{}

	// Follow-up passes are queued and driven after the scheduling pass
	// has released the lock, with the clock jumped past the interval
	// guard at each reschedule.
	clock := time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)
	var followUps []func()
	b, metrics := newTestBackfill(t, store, geocoder,
		WithClock(func() time.Time { return clock }),
		WithScheduleFunc(func(d time.Duration, f func()) {
			clock = clock.Add(d)
			followUps = append(followUps, f)
		}),
	)

	b.RunBackfillPass(context.Background())
	for len(followUps) > 0 {
		next := followUps[0]
		followUps = followUps[1:]
		next()
	}

	assert.Equal(t, 4, store.updateCount())
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.PassesTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.ReschedulesTotal))
	assert.Equal(t, float64(4), testutil.ToFloat64(metrics.RecordsGeocodedTotal))
	assert.False(t, b.InProgress())
}

func TestRunBackfillPass_SingleFlight(t *testing.T) {
	store := &fakeStore{locations: missingLocations(1)}
	geocoder := &fakeGeocoder{block: make(chan struct{})}
	b, metrics := newTestBackfill(t, store, geocoder)

	done := make(chan struct{})
	go func() {
		b.RunBackfillPass(context.Background())
		close(done)
	}()

	require.Eventually(t, b.InProgress, time.Second, time.Millisecond)

	// The second trigger lands while the first pass is mid-geocode.
	b.RunBackfillPass(context.Background())
	assert.Equal(t, float64(1),
		testutil.ToFloat64(metrics.SkipsTotal.WithLabelValues(SkipReasonLockHeld)))

	close(geocoder.block)
	<-done

	assert.Equal(t, 1, store.updateCount())
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.PassesTotal))
	assert.False(t, b.InProgress())
}

func TestRunBackfillPass_MinIntervalSkip(t *testing.T) {
	store := &fakeStore{locations: missingLocations(5)}
	geocoder := &fakeGeocoder{}

	clock := time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)
	b, metrics := newTestBackfill(t, store, geocoder,
		WithClock(func() time.Time { return clock }),
	)

	b.RunBackfillPass(context.Background())
	require.Equal(t, 3, store.updateCount())

	// Same instant: the interval guard fires, nothing else runs.
	b.RunBackfillPass(context.Background())
	assert.Equal(t, 3, store.updateCount())
	assert.Equal(t, float64(1),
		testutil.ToFloat64(metrics.SkipsTotal.WithLabelValues(SkipReasonInterval)))

	// Past the interval the next pass proceeds.
	clock = clock.Add(DefaultMinInterval)
	b.RunBackfillPass(context.Background())
	assert.Equal(t, 5, store.updateCount())
}

func TestRunBackfillPass_SuspiciousResultDiscarded(t *testing.T) {
	store := &fakeStore{locations: missingLocations(1)}
	geocoder := &fakeGeocoder{results: map[string]domain.GeocodeResult{
		addrFor(1): {
			Success:     true,
			Coordinates: &domain.Coordinates{Lat: 0.001, Lng: -0.002},
		},
	}}
	b, metrics := newTestBackfill(t, store, geocoder)

	b.RunBackfillPass(context.Background())

	assert.Zero(t, store.updateCount())
	assert.Equal(t, float64(1),
		testutil.ToFloat64(metrics.RecordsFailedTotal.WithLabelValues(FailReasonSuspicious)))
}

func TestRunBackfillPass_RecordFailureDoesNotAbortBatch(t *testing.T) {
	store := &fakeStore{
		locations: missingLocations(3),
		updateErr: map[int]error{2: errors.New("write quota exceeded")},
	}
	geocoder := &fakeGeocoder{results: map[string]domain.GeocodeResult{
		addrFor(1): {Success: false, ErrorKind: domain.GeocodeErrNoResults},
	}}
	b, metrics := newTestBackfill(t, store, geocoder)

	b.RunBackfillPass(context.Background())

	// Record 1 fails to geocode, record 2 fails to write, record 3
	// still lands.
	assert.Equal(t, 1, store.updateCount())
	assert.Equal(t, 3, geocoder.callCount())
	assert.Equal(t, float64(1),
		testutil.ToFloat64(metrics.RecordsFailedTotal.WithLabelValues(FailReasonGeocode)))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(metrics.RecordsFailedTotal.WithLabelValues(FailReasonWrite)))
}

func TestRunBackfillPass_BroadcastsBackfilledCoordinates(t *testing.T) {
	store := &fakeStore{
		locations: missingLocations(3),
		updateErr: map[int]error{3: errors.New("write quota exceeded")},
	}
	geocoder := &fakeGeocoder{results: map[string]domain.GeocodeResult{
		addrFor(1): {Success: false, ErrorKind: domain.GeocodeErrNoResults},
		addrFor(2): {
			Success:     true,
			Coordinates: &domain.Coordinates{Lat: 43.65, Lng: -79.38},
		},
	}}
	publisher := &fakePublisher{}
	b, _ := newTestBackfill(t, store, geocoder, WithEventPublisher(publisher))

	b.RunBackfillPass(context.Background())

	// Record 1 fails to geocode and record 3 fails to write; only the
	// record that landed broadcasts.
	published := publisher.published()
	require.Len(t, published, 1)
	assert.Equal(t, events.CoordinatesBackfilled, published[0].EventType)
	assert.Equal(t, 2, published[0].LocationID)
	payload, ok := published[0].Payload.(events.CoordinatesBackfilledPayload)
	require.True(t, ok)
	assert.Equal(t, 43.65, payload.Lat)
	assert.Equal(t, -79.38, payload.Lng)
}

func TestRunBackfillPass_ExportsGeocodeCacheSize(t *testing.T) {
	store := &fakeStore{locations: missingLocations(2)}
	geocoder := &sizedGeocoder{fakeGeocoder: &fakeGeocoder{}}
	b, metrics := newTestBackfill(t, store, geocoder)

	b.RunBackfillPass(context.Background())

	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.GeocodeCacheEntries))
}

func TestRunBackfillPass_NoPublisherIsSafe(t *testing.T) {
	store := &fakeStore{locations: missingLocations(1)}
	b, _ := newTestBackfill(t, store, &fakeGeocoder{})

	b.RunBackfillPass(context.Background())

	assert.Equal(t, 1, store.updateCount())
}

func TestRunBackfillPass_PausesBetweenRecordsOnly(t *testing.T) {
	store := &fakeStore{locations: missingLocations(3)}
	geocoder := &fakeGeocoder{}

	var pauses []time.Duration
	b, _ := newTestBackfill(t, store, geocoder,
		WithSleep(func(ctx context.Context, d time.Duration) {
			pauses = append(pauses, d)
		}),
	)

	b.RunBackfillPass(context.Background())

	require.Len(t, pauses, 2)
	for _, d := range pauses {
		assert.Equal(t, DefaultInterUpdateDelay, d)
	}
}
