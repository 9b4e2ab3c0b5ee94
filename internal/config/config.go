// Package config provides configuration management for the geosync
// service. Values are loaded from an optional YAML file, overridden by
// environment variables, and validated before use.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/fieldops/geosync/internal/events"
	"github.com/fieldops/geosync/internal/logger"
)

// Server defaults.
const (
	DefaultServerAddress   = ":8090"
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
)

// Client defaults.
const (
	DefaultGeocoderTimeout = 10 * time.Second
	DefaultSheetTimeout    = 15 * time.Second
)

// Config represents the application configuration.
type Config struct {
	Server    ServerConfig       `mapstructure:"server"`
	Logger    logger.Config      `mapstructure:"logger"`
	Geocoder  GeocoderConfig     `mapstructure:"geocoder"`
	Sheet     SheetConfig        `mapstructure:"sheet"`
	Scheduler SchedulerConfig    `mapstructure:"scheduler"`
	Redis     events.RedisConfig `mapstructure:"redis"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// GeocoderConfig holds geocoding provider settings.
type GeocoderConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	APIKey            string        `mapstructure:"api_key"`
	Region            string        `mapstructure:"region"`
	Timeout           time.Duration `mapstructure:"timeout"`
	CacheTTL          time.Duration `mapstructure:"cache_ttl"`
	InterRequestDelay time.Duration `mapstructure:"inter_request_delay"`
}

// SheetConfig holds record store transport settings.
type SheetConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// SchedulerConfig holds backfill scheduler settings.
type SchedulerConfig struct {
	BatchSize        int           `mapstructure:"batch_size"`
	MinInterval      time.Duration `mapstructure:"min_interval"`
	InterUpdateDelay time.Duration `mapstructure:"inter_update_delay"`
	// CronSpec, when set, runs periodic backfill passes in addition to
	// the read-triggered ones. Standard 5-field cron or @every syntax.
	CronSpec string `mapstructure:"cron_spec"`
}

// Validation errors.
var (
	ErrMissingGeocoderURL = errors.New("geocoder base_url is required")
	ErrMissingSheetURL    = errors.New("sheet base_url is required")
)

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Geocoder.BaseURL == "" {
		return ErrMissingGeocoderURL
	}
	if c.Sheet.BaseURL == "" {
		return ErrMissingSheetURL
	}
	if c.Scheduler.BatchSize < 1 {
		return fmt.Errorf("scheduler batch_size must be positive, got %d", c.Scheduler.BatchSize)
	}
	if c.Scheduler.MinInterval < 0 {
		return fmt.Errorf("scheduler min_interval must not be negative, got %s", c.Scheduler.MinInterval)
	}
	return nil
}
