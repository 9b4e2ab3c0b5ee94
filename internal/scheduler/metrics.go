package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// MetricsNamespace is the namespace for all backfill metrics.
	MetricsNamespace = "geosync"

	// MetricsSubsystem is the subsystem for backfill metrics.
	MetricsSubsystem = "backfill"
)

// Skip reasons recorded on the skips counter.
const (
	SkipReasonLockHeld = "lock_held"
	SkipReasonInterval = "interval"
)

// Record failure reasons recorded on the failures counter.
const (
	FailReasonGeocode    = "geocode_failed"
	FailReasonSuspicious = "suspicious"
	FailReasonWrite      = "write_failed"
)

// Metrics holds all Prometheus metrics for the backfill scheduler.
type Metrics struct {
	PassesTotal          prometheus.Counter
	SkipsTotal           *prometheus.CounterVec
	RecordsGeocodedTotal prometheus.Counter
	RecordsFailedTotal   *prometheus.CounterVec
	ReschedulesTotal     prometheus.Counter
	MissingRecords       prometheus.Gauge
	GeocodeCacheEntries  prometheus.Gauge
	BatchDurationSeconds prometheus.Histogram
}

// NewMetrics creates and registers all backfill metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)

	return &Metrics{
		PassesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubsystem,
			Name:      "passes_total",
			Help:      "Total number of backfill passes that entered the running phase",
		}),
		SkipsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubsystem,
			Name:      "skips_total",
			Help:      "Total number of triggers skipped by a guard",
		}, []string{"reason"}),
		RecordsGeocodedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubsystem,
			Name:      "records_geocoded_total",
			Help:      "Total number of records whose coordinates were written back",
		}),
		RecordsFailedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubsystem,
			Name:      "records_failed_total",
			Help:      "Total number of records skipped within a batch",
		}, []string{"reason"}),
		ReschedulesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubsystem,
			Name:      "reschedules_total",
			Help:      "Total number of self-scheduled follow-up passes",
		}),
		MissingRecords: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubsystem,
			Name:      "missing_records",
			Help:      "Records without coordinates as of the last evaluation",
		}),
		GeocodeCacheEntries: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubsystem,
			Name:      "geocode_cache_entries",
			Help:      "Entries held by the geocode result cache as of the last batch",
		}),
		BatchDurationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubsystem,
			Name:      "batch_duration_seconds",
			Help:      "Duration of one running phase in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
	}
}
