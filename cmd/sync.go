package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/buyer-sync/internal/config"
	"github.com/sells-group/buyer-sync/internal/contacts"
	"github.com/sells-group/buyer-sync/internal/model"
	"github.com/sells-group/buyer-sync/internal/resilience"
	"github.com/sells-group/buyer-sync/pkg/google"
)

var (
	syncLimit     int
	syncStaleDays int
	syncDelayMs   int
	syncFormat    string
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Resolve and reconcile buyer facility contacts",
	Long:  "Runs one contact sync: searches Google Places for each stale facility in the launch scope, verifies the match, and commits, queues for review, or skips it.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("sync"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		syncer := contacts.NewSyncer(st, newPlaces(cfg), newWebsiteVerifier(cfg.Website), cfg.Sync)
		summary, runErr := syncer.Run(ctx, syncOptions(cmd, cfg.Sync))
		if summary != nil {
			if err := writeStructured(os.Stdout, syncFormat, summary); err != nil {
				return err
			}
		}
		if runErr != nil {
			return runErr
		}
		if summary.Status == model.RunStatusFailed {
			return eris.Errorf("sync run %s failed", summary.SyncRunID)
		}
		return nil
	},
}

func init() {
	syncCmd.Flags().IntVar(&syncLimit, "limit", 0, "max facilities to process, 1-2000 (default from sync.limit)")
	syncCmd.Flags().IntVar(&syncStaleDays, "stale-days", 0, "re-check contacts older than this many days, 1-365 (default from sync.stale_days)")
	syncCmd.Flags().IntVar(&syncDelayMs, "delay-ms", 0, "pause between facilities in ms, 0-5000 (default from sync.delay_ms)")
	syncCmd.Flags().StringVar(&syncFormat, "format", "json", "summary output format: json or yaml")
	rootCmd.AddCommand(syncCmd)
}

// syncOptions resolves run options. Config values get defaults when unset;
// a flag given on the command line is clamped into range as is, so
// --stale-days 0 means one day rather than the default.
func syncOptions(cmd *cobra.Command, sc config.SyncConfig) contacts.Options {
	opts := contacts.Options{
		Limit:     sc.Limit,
		StaleDays: sc.StaleDays,
		Delay:     time.Duration(sc.DelayMs) * time.Millisecond,
	}.Normalize()

	if cmd.Flags().Changed("limit") {
		opts.Limit = contacts.ClampLimit(syncLimit)
	}
	if cmd.Flags().Changed("stale-days") {
		opts.StaleDays = contacts.ClampStaleDays(syncStaleDays)
	}
	if cmd.Flags().Changed("delay-ms") {
		opts.Delay = contacts.ClampDelay(time.Duration(syncDelayMs) * time.Millisecond)
	}
	return opts
}

func newPlaces(c *config.Config) *contacts.ResilientPlaces {
	client := google.NewClient(c.Google.Key,
		google.WithBaseURL(c.Google.BaseURL),
		google.WithMaxResults(c.Google.MaxResults),
	)
	return contacts.NewResilientPlaces(client, contacts.PlacesOptions{
		RateLimit: c.Google.RateLimit,
		Retry:     resilience.FromConfig(c.Retry.MaxAttempts, c.Retry.InitialBackoffMs, c.Retry.MaxBackoffMs),
		Circuit:   resilience.FromCircuitConfig(c.Circuit.FailureThreshold, c.Circuit.ResetTimeoutSecs),
	})
}

func newWebsiteVerifier(wc config.WebsiteConfig) *contacts.WebsiteVerifier {
	return contacts.NewWebsiteVerifier(
		contacts.WithWebsiteTimeout(time.Duration(wc.TimeoutSecs)*time.Second),
		contacts.WithMaxBytes(wc.MaxBytes),
		contacts.WithUserAgent(wc.UserAgent),
		contacts.WithBodyCacheTTL(time.Duration(wc.CacheTTLMins)*time.Minute),
		contacts.WithRobots(wc.RespectRobots),
	)
}
