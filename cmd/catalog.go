package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"mcpdock/internal/config"
	"mcpdock/internal/registry"
	"mcpdock/pkg/logging"
)

var catalogStateDir string

// catalogCmd groups the offline catalog commands. They read the catalog
// files directly; the aggregator server does not need to be running.
var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Browse the MCP server catalog",
}

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all catalog entries",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, _, err := loadCatalog(cmd)
		if err != nil {
			return err
		}
		renderEntries(catalog.List())
		return nil
	},
}

var catalogSearchLimit int

var catalogSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the catalog",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, _, err := loadCatalog(cmd)
		if err != nil {
			return err
		}

		results := catalog.Search(args[0], catalogSearchLimit)
		entries := make([]*registry.Entry, 0, len(results))
		for _, r := range results {
			entries = append(entries, r.Entry)
		}
		renderEntries(entries)
		return nil
	},
}

var catalogRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Re-read all catalog sources",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
		s.Suffix = " Refreshing catalog sources..."
		s.Start()

		catalog, refresher, err := loadCatalogWithRefresh(cmd, true)
		s.Stop()
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Refreshed %d sources, %d entries\n",
			len(refresher.SourceNames()), catalog.Len())
		return nil
	},
}

// loadCatalog builds a catalog from the configured sources, refreshing
// each once.
func loadCatalog(cmd *cobra.Command) (*registry.Catalog, *registry.Refresher, error) {
	return loadCatalogWithRefresh(cmd, false)
}

func loadCatalogWithRefresh(cmd *cobra.Command, force bool) (*registry.Catalog, *registry.Refresher, error) {
	logging.InitForCLI(logging.LevelWarn, os.Stderr)

	stateDir := catalogStateDir
	if stateDir == "" {
		stateDir = config.DefaultStateDir()
	}
	cfg, err := config.Load(stateDir)
	if err != nil {
		return nil, nil, err
	}

	catalog := registry.NewCatalog()
	sources := []registry.Source{
		registry.NewFileSource("custom", cfg.Catalog.CustomPath, registry.OriginCustom),
	}
	for name, path := range cfg.Catalog.SnapshotPaths {
		sources = append(sources, registry.NewFileSource(name, path, registry.OriginCustom))
	}
	refresher := registry.NewRefresher(catalog, sources, cfg.Catalog.TickInterval, cfg.Catalog.MinSourceInterval)

	ctx := cmd.Context()
	for _, name := range refresher.SourceNames() {
		if err := refresher.Refresh(ctx, name, force); err != nil {
			return nil, nil, fmt.Errorf("refresh source %s: %w", name, err)
		}
	}
	return catalog, refresher, nil
}

// renderEntries prints entries as a table.
func renderEntries(entries []*registry.Entry) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"ID", "Name", "Launch", "Origin", "Description"})

	for _, e := range entries {
		desc := e.Description
		if len(desc) > 60 {
			desc = desc[:57] + "..."
		}
		t.AppendRow(table.Row{e.ID, e.Name, e.Launch, e.Origin, desc})
	}
	t.Render()
}

func init() {
	rootCmd.AddCommand(catalogCmd)
	catalogCmd.AddCommand(catalogListCmd)
	catalogCmd.AddCommand(catalogSearchCmd)
	catalogCmd.AddCommand(catalogRefreshCmd)

	catalogCmd.PersistentFlags().StringVar(&catalogStateDir, "state-dir", "", "State directory (default ~/.config/mcpdock)")
	catalogSearchCmd.Flags().IntVar(&catalogSearchLimit, "limit", 20, "Maximum number of results")
}
