// Package common wires the shared dependencies used by the geosync
// subcommands.
package common

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/fieldops/geosync/internal/config"
	"github.com/fieldops/geosync/internal/events"
	"github.com/fieldops/geosync/internal/geocode"
	"github.com/fieldops/geosync/internal/logger"
	"github.com/fieldops/geosync/internal/scheduler"
	"github.com/fieldops/geosync/internal/sheet"
)

// Deps holds the fully wired service dependencies.
type Deps struct {
	Config    *config.Config
	Logger    logger.Logger
	Store     *sheet.Store
	Geocoder  *geocode.Client
	Backfill  *scheduler.Backfill
	Publisher *events.Publisher
	Registry  *prometheus.Registry

	redisClient *redis.Client
}

// NewDeps loads configuration and builds every dependency. Redis is
// optional: with no address configured, event broadcasting is simply
// off.
func NewDeps(cfgFile string, debug bool, opts ...scheduler.Option) (*Deps, error) {
	// Phase 1: configuration
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if debug {
		cfg.Logger.Level = "debug"
		cfg.Logger.Development = true
		cfg.Logger.Format = "console"
	}

	// Phase 2: logger
	log, err := logger.New(cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	// Phase 3: external clients
	provider := geocode.NewHTTPProvider(
		cfg.Geocoder.BaseURL,
		cfg.Geocoder.APIKey,
		cfg.Geocoder.Timeout,
		geocode.WithRegion(cfg.Geocoder.Region),
	)
	geocoder := geocode.NewClient(provider, log,
		geocode.WithCacheTTL(cfg.Geocoder.CacheTTL),
		geocode.WithInterRequestDelay(cfg.Geocoder.InterRequestDelay),
	)

	transport := sheet.NewHTTPTransport(cfg.Sheet.BaseURL, cfg.Sheet.Timeout,
		sheet.WithAPIKey(cfg.Sheet.APIKey),
	)
	store := sheet.NewStore(transport, log)

	// Phase 4: optional Redis event broadcasting
	var (
		publisher   *events.Publisher
		redisClient *redis.Client
	)
	if cfg.Redis.Address != "" {
		redisClient, err = events.NewRedisClient(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		publisher = events.NewPublisher(redisClient, log)
	} else {
		log.Info("Redis not configured, event broadcasting disabled")
	}

	// Phase 5: metrics and scheduler
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	schedOpts := []scheduler.Option{
		scheduler.WithBatchSize(cfg.Scheduler.BatchSize),
		scheduler.WithMinInterval(cfg.Scheduler.MinInterval),
		scheduler.WithInterUpdateDelay(cfg.Scheduler.InterUpdateDelay),
		scheduler.WithMetrics(scheduler.NewMetrics(registry)),
	}
	if publisher != nil {
		schedOpts = append(schedOpts, scheduler.WithEventPublisher(publisher))
	}
	schedOpts = append(schedOpts, opts...)
	backfill := scheduler.New(store, geocoder, log, schedOpts...)

	return &Deps{
		Config:      cfg,
		Logger:      log,
		Store:       store,
		Geocoder:    geocoder,
		Backfill:    backfill,
		Publisher:   publisher,
		Registry:    registry,
		redisClient: redisClient,
	}, nil
}

// RedisClient returns the shared Redis client, or nil when Redis is
// not configured.
func (d *Deps) RedisClient() *redis.Client {
	return d.redisClient
}

// Close releases held connections and flushes logs.
func (d *Deps) Close() {
	if d.redisClient != nil {
		if err := d.redisClient.Close(); err != nil {
			d.Logger.Error("Failed to close redis client", logger.Error(err))
		}
	}
	_ = d.Logger.Sync()
}
