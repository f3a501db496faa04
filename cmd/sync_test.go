package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/buyer-sync/internal/config"
	"github.com/sells-group/buyer-sync/internal/contacts"
)

// newSyncFlagsCmd returns a command carrying the sync flags bound to the
// package-level variables, so Changed reflects only what the test sets.
func newSyncFlagsCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	c := &cobra.Command{Use: "sync"}
	c.Flags().IntVar(&syncLimit, "limit", 0, "")
	c.Flags().IntVar(&syncStaleDays, "stale-days", 0, "")
	c.Flags().IntVar(&syncDelayMs, "delay-ms", 0, "")
	require.NoError(t, c.Flags().Parse(args))
	return c
}

func TestSyncOptions_FromConfig(t *testing.T) {
	sc := config.SyncConfig{Limit: 100, StaleDays: 14, DelayMs: 250}
	got := syncOptions(newSyncFlagsCmd(t), sc)
	assert.Equal(t, contacts.Options{Limit: 100, StaleDays: 14, Delay: 250 * time.Millisecond}, got)
}

func TestSyncOptions_FlagsOverrideConfig(t *testing.T) {
	sc := config.SyncConfig{Limit: 100, StaleDays: 14, DelayMs: 250}
	got := syncOptions(newSyncFlagsCmd(t, "--limit", "5", "--stale-days", "3", "--delay-ms", "0"), sc)
	assert.Equal(t, contacts.Options{Limit: 5, StaleDays: 3, Delay: 0}, got)
}

func TestSyncOptions_Clamped(t *testing.T) {
	sc := config.SyncConfig{DelayMs: 150}
	got := syncOptions(newSyncFlagsCmd(t, "--limit", "99999", "--stale-days", "9999", "--delay-ms", "60000"), sc)
	assert.Equal(t, contacts.Options{Limit: 2000, StaleDays: 365, Delay: 5 * time.Second}, got)
}

func TestSyncOptions_ExplicitZeroAndNegativeFlagsClamped(t *testing.T) {
	sc := config.SyncConfig{Limit: 100, StaleDays: 14, DelayMs: 250}
	got := syncOptions(newSyncFlagsCmd(t, "--limit", "0", "--stale-days", "0", "--delay-ms", "-5"), sc)
	assert.Equal(t, contacts.Options{Limit: 1, StaleDays: 1, Delay: 0}, got)

	got = syncOptions(newSyncFlagsCmd(t, "--limit", "-3", "--stale-days", "-1"), sc)
	assert.Equal(t, 1, got.Limit)
	assert.Equal(t, 1, got.StaleDays)
	assert.Equal(t, 250*time.Millisecond, got.Delay, "unset flag keeps config")
}

func TestSyncOptions_UnsetConfigUsesDefaults(t *testing.T) {
	got := syncOptions(newSyncFlagsCmd(t), config.SyncConfig{DelayMs: -1})
	assert.Equal(t, contacts.Options{
		Limit:     contacts.DefaultLimit,
		StaleDays: contacts.DefaultStaleDays,
		Delay:     contacts.DefaultDelay,
	}, got)
}

func TestNewPlacesAndVerifier(t *testing.T) {
	c := &config.Config{}
	c.Google.Key = "k"
	c.Google.RateLimit = 2
	assert.NotNil(t, newPlaces(c))
	assert.NotNil(t, newWebsiteVerifier(config.WebsiteConfig{TimeoutSecs: 1, MaxBytes: 10, CacheTTLMins: 1}))
}

func TestInitStore_SQLite(t *testing.T) {
	prev := cfg
	t.Cleanup(func() { cfg = prev })

	cfg = &config.Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Store.DatabaseURL = filepath.Join(t.TempDir(), "cmd.db")

	st, err := initStore(context.Background())
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	runs, err := st.ListSyncRuns(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestInitStore_UnsupportedDriver(t *testing.T) {
	prev := cfg
	t.Cleanup(func() { cfg = prev })

	cfg = &config.Config{}
	cfg.Store.Driver = "mysql"

	_, err := initStore(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported store driver")
}
