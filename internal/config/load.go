package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/fieldops/geosync/internal/geocode"
	"github.com/fieldops/geosync/internal/scheduler"
)

// envPrefix namespaces environment overrides, e.g. GEOSYNC_SHEET_BASE_URL.
const envPrefix = "GEOSYNC"

// Load reads configuration from the given file path. An empty path
// falls back to config.yaml in the working directory; a missing file
// is fine, defaults and environment variables still apply.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers default values so viper can report them and
// environment variables can override each one individually.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", DefaultServerAddress)
	v.SetDefault("server.read_timeout", DefaultReadTimeout)
	v.SetDefault("server.write_timeout", DefaultWriteTimeout)
	v.SetDefault("server.idle_timeout", DefaultIdleTimeout)
	v.SetDefault("server.shutdown_timeout", DefaultShutdownTimeout)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")

	v.SetDefault("geocoder.timeout", DefaultGeocoderTimeout)
	v.SetDefault("geocoder.cache_ttl", geocode.DefaultCacheTTL)
	v.SetDefault("geocoder.inter_request_delay", geocode.DefaultInterRequestDelay)

	v.SetDefault("sheet.timeout", DefaultSheetTimeout)

	v.SetDefault("scheduler.batch_size", scheduler.DefaultBatchSize)
	v.SetDefault("scheduler.min_interval", scheduler.DefaultMinInterval)
	v.SetDefault("scheduler.inter_update_delay", scheduler.DefaultInterUpdateDelay)

	v.SetDefault("redis.address", "")
	v.SetDefault("redis.db", 0)
}
