package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"mcpdock/pkg/logging"
)

// Default cadence for the background refresher: wake every tick, refresh
// any source whose last success is older than the minimum interval.
const (
	DefaultTickInterval      = 6 * time.Hour
	DefaultMinSourceInterval = 24 * time.Hour
)

// Refresher periodically re-fetches catalog sources. Refreshes run
// sequentially; a manual refresh honors the per-source minimum interval
// unless forced.
type Refresher struct {
	catalog *Catalog
	sources []Source

	tick        time.Duration
	minInterval time.Duration

	mu          sync.Mutex
	lastSuccess map[string]time.Time
}

// NewRefresher creates a refresher over the given sources. Zero durations
// select the defaults.
func NewRefresher(catalog *Catalog, sources []Source, tick, minInterval time.Duration) *Refresher {
	if tick <= 0 {
		tick = DefaultTickInterval
	}
	if minInterval <= 0 {
		minInterval = DefaultMinSourceInterval
	}
	return &Refresher{
		catalog:     catalog,
		sources:     sources,
		tick:        tick,
		minInterval: minInterval,
		lastSuccess: make(map[string]time.Time),
	}
}

// Run drives the refresh loop until the context is cancelled. An initial
// pass runs immediately so the catalog is populated at startup.
func (r *Refresher) Run(ctx context.Context) error {
	r.refreshAll(ctx, false)

	ticker := time.NewTicker(r.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.refreshAll(ctx, false)
		}
	}
}

// refreshAll walks the sources sequentially.
func (r *Refresher) refreshAll(ctx context.Context, force bool) {
	for _, src := range r.sources {
		if err := r.Refresh(ctx, src.Name(), force); err != nil {
			logging.Warn("Refresher", "Refresh of source %s failed: %v", src.Name(), err)
		}
	}
}

// Refresh re-fetches one source by name. Unless force is set, a source
// refreshed successfully within the minimum interval is skipped.
func (r *Refresher) Refresh(ctx context.Context, name string, force bool) error {
	var src Source
	for _, s := range r.sources {
		if s.Name() == name {
			src = s
			break
		}
	}
	if src == nil {
		return fmt.Errorf("unknown source %s", name)
	}

	r.mu.Lock()
	last := r.lastSuccess[name]
	r.mu.Unlock()

	if !force && !last.IsZero() && time.Since(last) < r.minInterval {
		logging.Debug("Refresher", "Skipping source %s, refreshed %s ago", name, time.Since(last).Round(time.Second))
		return nil
	}

	entries, err := src.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetch source %s: %w", name, err)
	}

	r.catalog.Upsert(entries)

	r.mu.Lock()
	r.lastSuccess[name] = time.Now()
	r.mu.Unlock()

	logging.Info("Refresher", "Refreshed source %s: %d entries (catalog now %d)", name, len(entries), r.catalog.Len())
	return nil
}

// SourceNames returns the configured source identifiers in order.
func (r *Refresher) SourceNames() []string {
	names := make([]string, 0, len(r.sources))
	for _, s := range r.sources {
		names = append(names, s.Name())
	}
	return names
}
