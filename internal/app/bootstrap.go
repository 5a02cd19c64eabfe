package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"mcpdock/internal/aggregator"
	"mcpdock/internal/clients"
	"mcpdock/internal/config"
	"mcpdock/internal/launcher"
	"mcpdock/internal/mounts"
	"mcpdock/internal/orchestrator"
	"mcpdock/internal/registry"
	"mcpdock/pkg/logging"
)

// Application bundles the wired components of a running mcpdock instance.
type Application struct {
	cfg config.Config

	catalog      *registry.Catalog
	refresher    *registry.Refresher
	customSource *registry.FileSource

	store   *mounts.Store
	manager *clients.Manager
	orch    *orchestrator.Orchestrator
	server  *aggregator.Server
}

// NewApplication performs the bootstrap sequence: logging, configuration,
// component wiring. Nothing is started yet; Run does that.
func NewApplication(appCfg *Config) (*Application, error) {
	appLogLevel := logging.LevelInfo
	if appCfg.Debug {
		appLogLevel = logging.LevelDebug
	}
	var logOutput io.Writer = os.Stdout
	if appCfg.Transport == config.MCPTransportStdio {
		// Stdout carries the MCP protocol in stdio mode; logs go to stderr.
		logOutput = os.Stderr
	}
	logging.InitForCLI(appLogLevel, logOutput)

	stateDir := appCfg.StateDir
	if stateDir == "" {
		stateDir = config.DefaultStateDir()
	}

	cfg, err := config.Load(stateDir)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	if appCfg.Transport != "" {
		cfg.Aggregator.Transport = appCfg.Transport
	}

	catalog := registry.NewCatalog()
	customSource := registry.NewFileSource("custom", cfg.Catalog.CustomPath, registry.OriginCustom)
	sources := []registry.Source{customSource}
	for _, name := range sortedSourceNames(cfg.Catalog.SnapshotPaths) {
		sources = append(sources, registry.NewFileSource(name, cfg.Catalog.SnapshotPaths[name], originForSource(name)))
	}
	refresher := registry.NewRefresher(catalog, sources, cfg.Catalog.TickInterval, cfg.Catalog.MinSourceInterval)

	store := mounts.NewStore(cfg.Mounts.StatePath)
	manager := clients.NewManager()
	l := launcher.New(cfg.Engine.Binary)
	toolRegistry := aggregator.NewToolRegistry()

	orch := orchestrator.New(catalog, store, manager, l, toolRegistry, orchestrator.Options{
		OnTransportDeath: orchestrator.TransportDeathPolicy(cfg.Mounts.OnTransportDeath),
		CallTimeout:      cfg.Mounts.CallTimeout,
	})

	control := aggregator.NewControlTools(orch, refresher)
	server := aggregator.NewServer(aggregator.Config{
		Host:      cfg.Aggregator.Host,
		Port:      cfg.Aggregator.Port,
		Transport: cfg.Aggregator.Transport,
		Version:   appCfg.Version,
	}, toolRegistry, control, nil)

	return &Application{
		cfg:          cfg,
		catalog:      catalog,
		refresher:    refresher,
		customSource: customSource,
		store:        store,
		manager:      manager,
		orch:         orch,
		server:       server,
	}, nil
}

// Run starts the aggregator, replays persisted mounts and drives the
// background refresher until the context is cancelled, then shuts
// everything down. Children are stopped but their mounts stay persisted
// for replay on the next start.
func (a *Application) Run(ctx context.Context) error {
	// Populate the catalog before replay so persisted mounts resolve.
	for _, name := range a.refresher.SourceNames() {
		if err := a.refresher.Refresh(ctx, name, false); err != nil {
			logging.Warn("App", "Initial refresh of source %s failed: %v", name, err)
		}
	}

	if err := a.server.Start(ctx); err != nil {
		return fmt.Errorf("start aggregator server: %w", err)
	}

	a.orch.Replay(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := a.refresher.Run(gctx)
		if err == context.Canceled {
			return nil
		}
		return err
	})
	g.Go(func() error {
		err := registry.WatchFile(gctx, a.refresher, a.customSource)
		if err == context.Canceled {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	err := g.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if stopErr := a.server.Stop(shutdownCtx); stopErr != nil {
		logging.Error("App", stopErr, "Error stopping aggregator server")
	}
	a.manager.Shutdown()

	return err
}

func sortedSourceNames(m map[string]string) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// originForSource maps well-known snapshot source names onto origin tags.
func originForSource(name string) registry.Origin {
	switch name {
	case "docker":
		return registry.OriginDocker
	case "mcpservers":
		return registry.OriginMCPServers
	case "mcp-official":
		return registry.OriginOfficial
	case "awesome":
		return registry.OriginAwesome
	default:
		return registry.OriginCustom
	}
}
