package scheduler

import (
	"context"
	"time"
)

// Option configures a Backfill scheduler.
type Option func(*Backfill)

// WithBatchSize sets how many records one pass processes.
func WithBatchSize(n int) Option {
	return func(b *Backfill) {
		if n > 0 {
			b.batchSize = n
		}
	}
}

// WithMinInterval sets the minimum spacing between two running phases.
func WithMinInterval(d time.Duration) Option {
	return func(b *Backfill) {
		if d >= 0 {
			b.minInterval = d
		}
	}
}

// WithInterUpdateDelay sets the pause between records within a batch.
func WithInterUpdateDelay(d time.Duration) Option {
	return func(b *Backfill) {
		if d >= 0 {
			b.interUpdateDelay = d
		}
	}
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(b *Backfill) {
		if now != nil {
			b.now = now
		}
	}
}

// WithSleep overrides the inter-record sleep. Used by tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration)) Option {
	return func(b *Backfill) {
		if sleep != nil {
			b.sleep = sleep
		}
	}
}

// WithScheduleFunc overrides how follow-up passes are deferred. The
// default uses time.AfterFunc. Used by tests to run follow-ups
// synchronously.
func WithScheduleFunc(schedule func(d time.Duration, f func())) Option {
	return func(b *Backfill) {
		if schedule != nil {
			b.schedule = schedule
		}
	}
}

// WithEventPublisher attaches a broadcaster so map clients learn about
// newly backfilled coordinates without polling.
func WithEventPublisher(p EventPublisher) Option {
	return func(b *Backfill) {
		if p != nil {
			b.publisher = p
		}
	}
}

// WithMetrics attaches an externally registered metrics set.
func WithMetrics(m *Metrics) Option {
	return func(b *Backfill) {
		if m != nil {
			b.metrics = m
		}
	}
}
