package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldops/geosync/internal/config"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
geocoder:
  base_url: https://geocode.example.com
sheet:
  base_url: https://sheet.example.com
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, config.DefaultServerAddress, cfg.Server.Address)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "json", cfg.Logger.Format)
	assert.Equal(t, 3, cfg.Scheduler.BatchSize)
	assert.Equal(t, 5*time.Second, cfg.Scheduler.MinInterval)
	assert.Equal(t, time.Second, cfg.Scheduler.InterUpdateDelay)
	assert.Equal(t, time.Hour, cfg.Geocoder.CacheTTL)
	assert.Equal(t, 200*time.Millisecond, cfg.Geocoder.InterRequestDelay)
	assert.Empty(t, cfg.Redis.Address)
}

func TestLoad_ReadsFileValues(t *testing.T) {
	path := writeConfigFile(t, `
server:
  address: ":9999"
logger:
  level: debug
  format: console
geocoder:
  base_url: https://geocode.example.com
  api_key: secret
  region: ca
sheet:
  base_url: https://sheet.example.com
  timeout: 5s
scheduler:
  batch_size: 10
  min_interval: 30s
  cron_spec: "@every 6h"
redis:
  address: localhost:6379
  db: 2
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Server.Address)
	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, "secret", cfg.Geocoder.APIKey)
	assert.Equal(t, "ca", cfg.Geocoder.Region)
	assert.Equal(t, 5*time.Second, cfg.Sheet.Timeout)
	assert.Equal(t, 10, cfg.Scheduler.BatchSize)
	assert.Equal(t, 30*time.Second, cfg.Scheduler.MinInterval)
	assert.Equal(t, "@every 6h", cfg.Scheduler.CronSpec)
	assert.Equal(t, "localhost:6379", cfg.Redis.Address)
	assert.Equal(t, 2, cfg.Redis.DB)
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `
geocoder:
  base_url: https://geocode.example.com
sheet:
  base_url: https://sheet.example.com
scheduler:
  batch_size: 3
`)

	t.Setenv("GEOSYNC_SCHEDULER_BATCH_SIZE", "7")
	t.Setenv("GEOSYNC_GEOCODER_API_KEY", "from-env")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Scheduler.BatchSize)
	assert.Equal(t, "from-env", cfg.Geocoder.APIKey)
}

func TestLoad_ValidationFailures(t *testing.T) {
	tests := []struct {
		name     string
		contents string
		wantErr  error
	}{
		{
			name: "missing geocoder url",
			contents: `
sheet:
  base_url: https://sheet.example.com
`,
			wantErr: config.ErrMissingGeocoderURL,
		},
		{
			name: "missing sheet url",
			contents: `
geocoder:
  base_url: https://geocode.example.com
`,
			wantErr: config.ErrMissingSheetURL,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := config.Load(writeConfigFile(t, tt.contents))
			assert.Nil(t, cfg)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLoad_NegativeBatchSizeRejected(t *testing.T) {
	path := writeConfigFile(t, `
geocoder:
  base_url: https://geocode.example.com
sheet:
  base_url: https://sheet.example.com
scheduler:
  batch_size: -1
`)

	cfg, err := config.Load(path)
	assert.Nil(t, cfg)
	assert.Error(t, err)
}

func TestLoad_MissingFileUsesDefaultsAndEnv(t *testing.T) {
	t.Setenv("GEOSYNC_GEOCODER_BASE_URL", "https://geocode.example.com")
	t.Setenv("GEOSYNC_SHEET_BASE_URL", "https://sheet.example.com")

	cfg, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "https://geocode.example.com", cfg.Geocoder.BaseURL)
	assert.Equal(t, config.DefaultServerAddress, cfg.Server.Address)
}
