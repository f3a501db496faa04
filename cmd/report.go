package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/buyer-sync/internal/contacts"
)

var (
	reportScope  string
	reportFormat string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show contact verification coverage",
	Long:  "Counts contacts by tier, open review items, and phone+website coverage for a launch scope, along with the latest sync run.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("report"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		scope := reportScope
		if scope == "" {
			scope = cfg.Sync.LaunchScope
		}

		report, err := contacts.BuildReport(ctx, st, scope)
		if err != nil {
			return eris.Wrap(err, "report")
		}

		if reportFormat == "text" {
			formatReport(os.Stdout, report)
			return nil
		}
		return writeStructured(os.Stdout, reportFormat, report)
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportScope, "scope", "", "launch scope to measure (default from sync.launch_scope)")
	reportCmd.Flags().StringVar(&reportFormat, "format", "text", "output format: text, json, or yaml")
	rootCmd.AddCommand(reportCmd)
}
