package main

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func subcommandNames(c *cobra.Command) map[string]bool {
	names := make(map[string]bool)
	for _, sub := range c.Commands() {
		names[sub.Name()] = true
	}
	return names
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := subcommandNames(rootCmd)
	for _, name := range []string{"sync", "migrate", "report", "runs", "review"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "buyer-sync", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestSyncCommand_Flags(t *testing.T) {
	tests := []struct {
		name string
		def  string
	}{
		{"limit", "0"},
		{"stale-days", "0"},
		{"delay-ms", "0"},
		{"format", "json"},
	}
	for _, tt := range tests {
		flag := syncCmd.Flags().Lookup(tt.name)
		require.NotNil(t, flag, "sync command should have --%s", tt.name)
		assert.Equal(t, tt.def, flag.DefValue, tt.name)
	}
}

func TestRunsCommand_HasSubcommands(t *testing.T) {
	names := subcommandNames(runsCmd)
	assert.True(t, names["list"])
	assert.True(t, names["show"])
}

func TestReviewCommand_HasSubcommands(t *testing.T) {
	names := subcommandNames(reviewCmd)
	assert.True(t, names["export"])
	assert.True(t, names["import"])

	require.NotNil(t, reviewExportCmd.Flags().Lookup("out"))
	require.NotNil(t, reviewExportCmd.Flags().Lookup("format"))
}

func TestReportCommand_Flags(t *testing.T) {
	flag := reportCmd.Flags().Lookup("format")
	require.NotNil(t, flag)
	assert.Equal(t, "text", flag.DefValue)
	require.NotNil(t, reportCmd.Flags().Lookup("scope"))
}
