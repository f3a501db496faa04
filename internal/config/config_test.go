package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, int32(5), cfg.Store.MaxConns)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "https://places.googleapis.com/v1", cfg.Google.BaseURL)
	assert.InDelta(t, 5.0, cfg.Google.RateLimit, 0.001)
	assert.Equal(t, 5, cfg.Google.MaxResults)
	assert.Equal(t, 500, cfg.Sync.Limit)
	assert.Equal(t, 30, cfg.Sync.StaleDays)
	assert.Equal(t, 150, cfg.Sync.DelayMs)
	assert.Equal(t, "corridor", cfg.Sync.LaunchScope)
	assert.Equal(t, 90, cfg.Sync.AcceptanceBar)
	assert.Equal(t, 8, cfg.Website.TimeoutSecs)
	assert.Equal(t, 25000, cfg.Website.MaxBytes)
	assert.Equal(t, "BuyerSync/1.0 (+contact sync)", cfg.Website.UserAgent)
	assert.False(t, cfg.Website.RespectRobots)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 5, cfg.Circuit.FailureThreshold)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
  database_url: buyers.db
log:
  level: debug
  format: console
sync:
  stale_days: 14
  acceptance_bars:
    ethanol: 85
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "buyers.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 14, cfg.Sync.StaleDays)
	assert.Equal(t, 85, cfg.Sync.AcceptanceBars["ethanol"])
	// Defaults still apply for unset values
	assert.Equal(t, 500, cfg.Sync.Limit)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	t.Setenv("BUYERSYNC_STORE_DRIVER", "postgres")
	t.Setenv("BUYERSYNC_SYNC_LIMIT", "25")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, 25, cfg.Sync.Limit)
}

func TestLoadGoogleKeyFallbackEnv(t *testing.T) {
	chdirTemp(t)
	t.Setenv("GOOGLE_MAPS_API_KEY", "maps-key-123")
	t.Setenv("DATABASE_URL", "postgres://localhost/buyers")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "maps-key-123", cfg.Google.Key)
	assert.Equal(t, "postgres://localhost/buyers", cfg.Store.DatabaseURL)
}

func TestAcceptanceBarFor(t *testing.T) {
	c := SyncConfig{AcceptanceBar: 90, AcceptanceBars: map[string]int{"ethanol": 85}}
	assert.Equal(t, 85, c.AcceptanceBarFor("ethanol"))
	assert.Equal(t, 90, c.AcceptanceBarFor("elevator"))

	var empty SyncConfig
	assert.Equal(t, 90, empty.AcceptanceBarFor("elevator"))
}

func TestValidateSync_AllPresent(t *testing.T) {
	cfg := &Config{}
	cfg.Store.Driver = "postgres"
	cfg.Store.DatabaseURL = "postgres://localhost/test"
	cfg.Google.Key = "places-key"
	cfg.Sync.AcceptanceBar = 90

	assert.NoError(t, cfg.Validate("sync"))
}

func TestValidateSync_MissingFields(t *testing.T) {
	cfg := &Config{}
	cfg.Store.Driver = "postgres"

	err := cfg.Validate("sync")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")
	assert.Contains(t, err.Error(), "google.key is required")
}

func TestValidateSync_BadAcceptanceBars(t *testing.T) {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Google.Key = "k"
	cfg.Sync.AcceptanceBar = 101
	cfg.Sync.AcceptanceBars = map[string]int{"crush": -1}

	err := cfg.Validate("sync")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sync.acceptance_bar must be between 0 and 100")
	assert.Contains(t, err.Error(), "sync.acceptance_bars.crush")
}

func TestValidateReview_SQLiteNeedsNoURL(t *testing.T) {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	assert.NoError(t, cfg.Validate("review"))
	assert.NoError(t, cfg.Validate("report"))
}

func TestValidateUnsupportedDriver(t *testing.T) {
	cfg := &Config{}
	cfg.Store.Driver = "mysql"
	err := cfg.Validate("report")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `store.driver "mysql" is not supported`)
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := &Config{}
	err := cfg.Validate("unknown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestInitLoggerConsole(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	assert.Error(t, InitLogger(LogConfig{Level: "invalid", Format: "json"}))
}
