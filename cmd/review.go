package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/buyer-sync/internal/review"
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Export and import the human review queue",
}

// -- review export --

var reviewExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write open review items to a CSV or XLSX sheet",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("review"); err != nil {
			return err
		}

		outPath, _ := cmd.Flags().GetString("out")
		formatName, _ := cmd.Flags().GetString("format")
		format := review.FormatForPath(outPath)
		if formatName != "" {
			f, err := review.ParseFormat(formatName)
			if err != nil {
				return err
			}
			format = f
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		var w io.Writer = os.Stdout
		if outPath != "" && outPath != "-" {
			f, err := os.Create(outPath)
			if err != nil {
				return eris.Wrap(err, "review export: create output")
			}
			defer f.Close() //nolint:errcheck
			w = f
		}

		n, err := review.Export(ctx, st, w, format)
		if err != nil {
			return err
		}
		if outPath != "" && outPath != "-" {
			fmt.Fprintf(os.Stderr, "Exported %d review items to %s\n", n, outPath)
		}
		return nil
	},
}

// -- review import --

var reviewImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Apply approved rows from a review sheet",
	Long:  "Reads a review sheet (CSV or XLSX) and, for each row with an approved phone or website, marks the contact verified, records manual_review provenance, and resolves the review item.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("review"); err != nil {
			return err
		}

		path := args[0]
		f, err := os.Open(path)
		if err != nil {
			return eris.Wrap(err, "review import: open file")
		}
		defer f.Close() //nolint:errcheck

		rows, err := review.ReadRows(f, review.FormatForPath(path))
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		res, err := review.NewImporter(st).Import(ctx, rows, filepath.Base(path))
		if err != nil {
			return err
		}

		format, _ := cmd.Flags().GetString("format")
		if err := writeStructured(os.Stdout, format, res); err != nil {
			return err
		}
		if res.Errored > 0 {
			return eris.Errorf("review import: %d rows failed", res.Errored)
		}
		return nil
	},
}

func init() {
	reviewExportCmd.Flags().String("out", "", "output file (default stdout); .xlsx selects XLSX")
	reviewExportCmd.Flags().String("format", "", "csv or xlsx (default from --out extension)")
	reviewImportCmd.Flags().String("format", "json", "result output format: json or yaml")

	reviewCmd.AddCommand(reviewExportCmd)
	reviewCmd.AddCommand(reviewImportCmd)
	rootCmd.AddCommand(reviewCmd)
}
