package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "corridor.db", cfg.Store.DatabaseURL)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "2023", cfg.Census.Year)
	assert.Equal(t, "acs/acs5", cfg.Census.Dataset)
	assert.Equal(t, []int{2022, 2021, 2020}, cfg.Crashes.Years)
	assert.Len(t, cfg.Transit.Endpoints, 2)
	assert.Empty(t, cfg.CalibrationPath)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("CORRIDOR_STORE_DRIVER", "postgres")
	t.Setenv("CORRIDOR_SERVER_PORT", "9090")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestFetchConfig_Durations(t *testing.T) {
	fc := FetchConfig{TimeoutSecs: 12, RetryDelayMs: 250}
	assert.Equal(t, 12*time.Second, fc.Timeout())
	assert.Equal(t, 250*time.Millisecond, fc.RetryDelay())
}
