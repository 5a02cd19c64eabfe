package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the mcpdock application.
// It is the entry point when the application is called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "mcpdock",
	Short: "Aggregating registry and runtime proxy for MCP servers",
	Long: `mcpdock keeps a searchable catalog of MCP servers, launches chosen
servers as child processes (containers or local commands), and re-exposes
their tools on a single aggregated MCP endpoint.

Start the aggregator with 'mcpdock serve', then mount servers through the
dock_* tools on its MCP surface or browse the catalog with
'mcpdock catalog'.`,
	// SilenceUsage prevents Cobra from printing the usage message on
	// errors handled by the application.
	SilenceUsage: true,
}

// SetVersion sets the version for the root command.
// Called from the main package to inject the build version.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "mcpdock version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
