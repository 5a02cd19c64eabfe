package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mcpdock/internal/clients"
	"mcpdock/internal/launcher"
	"mcpdock/internal/mounts"
	"mcpdock/internal/registry"
	"mcpdock/internal/session"
	"mcpdock/internal/translate"
	"mcpdock/pkg/logging"
)

// ToolRegistry is the dynamic registration surface the orchestrator
// drives. Implemented by the aggregator.
type ToolRegistry interface {
	// RegisterMount registers a mount's invocables as one atomic batch.
	// On any collision nothing is registered and an error is returned.
	RegisterMount(ctx context.Context, handle string, tools []*translate.Invocable) error
	// UnregisterMount removes exactly the names RegisterMount added for
	// the handle and returns them. Unknown handles return nil.
	UnregisterMount(ctx context.Context, handle string) []string
}

// Spawner launches children with piped stdio. Implemented by
// launcher.Launcher; tests substitute fakes.
type Spawner interface {
	Spawn(ctx context.Context, spec launcher.Spec) (*launcher.Process, error)
}

// TransportDeathPolicy decides what happens when a mounted child's stdio
// transport dies.
type TransportDeathPolicy string

const (
	// DeathKeep leaves the mount in place; callers see per-call transport
	// errors until the mount is deactivated by hand.
	DeathKeep TransportDeathPolicy = "keep"
	// DeathUnmount deactivates the mount as soon as the transport dies.
	DeathUnmount TransportDeathPolicy = "unmount"
)

// Options tune orchestrator behavior.
type Options struct {
	// OnTransportDeath selects the policy for dead children. Default keep.
	OnTransportDeath TransportDeathPolicy
	// CallTimeout overrides the per-call tools/call deadline for sessions
	// created by this orchestrator. Zero keeps the session default.
	CallTimeout time.Duration
}

// Orchestrator owns the activate and deactivate flows.
type Orchestrator struct {
	catalog  *registry.Catalog
	store    *mounts.Store
	manager  *clients.Manager
	launcher Spawner
	tools    ToolRegistry
	opts     Options
}

// New wires an orchestrator from its collaborators.
func New(catalog *registry.Catalog, store *mounts.Store, manager *clients.Manager, l Spawner, tools ToolRegistry, opts Options) *Orchestrator {
	if opts.OnTransportDeath == "" {
		opts.OnTransportDeath = DeathKeep
	}
	return &Orchestrator{
		catalog:  catalog,
		store:    store,
		manager:  manager,
		launcher: l,
		tools:    tools,
		opts:     opts,
	}
}

// ActivateRequest carries the inputs of a mount request.
type ActivateRequest struct {
	EntryID string
	// Prefix overrides the default prefix derived from the entry id.
	Prefix string
	// Environment overlays the entry's own environment.
	Environment map[string]string
	// Launch overrides the descriptor's launch method for ambiguous
	// entries.
	Launch registry.LaunchMethod
}

// Store exposes the active-mount store for read-side consumers.
func (o *Orchestrator) Store() *mounts.Store { return o.store }

// Catalog exposes the catalog for read-side consumers.
func (o *Orchestrator) Catalog() *registry.Catalog { return o.catalog }

// Activate mounts an entry end to end: spawn, handshake, discovery,
// translation, registration, persistence. On success the returned mount
// is in the store and its tools are live on the aggregator.
func (o *Orchestrator) Activate(ctx context.Context, req ActivateRequest) (*mounts.Mount, error) {
	lock := o.store.EntryLock(req.EntryID)
	lock.Lock()
	defer lock.Unlock()

	entry, ok := o.catalog.Get(req.EntryID)
	if !ok {
		return nil, mountErr(KindEntryNotFound, req.EntryID, fmt.Errorf("no catalog entry"))
	}
	if _, active := o.store.Get(req.EntryID); active {
		return nil, mountErr(KindAlreadyActive, req.EntryID, nil)
	}

	prefix := req.Prefix
	if prefix == "" {
		prefix = mounts.DerivePrefix(req.EntryID)
	}
	if o.store.PrefixInUse(prefix) {
		return nil, mountErr(KindPrefixConflict, req.EntryID, fmt.Errorf("prefix %q already in use", prefix))
	}

	env := mergeEnv(entry, req.Environment)

	spec, err := launchSpec(entry, req.Launch, env)
	if err != nil {
		return nil, mountErr(KindLaunchFailed, req.EntryID, err)
	}

	proc, err := o.launcher.Spawn(ctx, spec)
	if err != nil {
		return nil, mountErr(KindLaunchFailed, req.EntryID, err)
	}

	var sessOpts []session.Option
	if o.opts.CallTimeout > 0 {
		sessOpts = append(sessOpts, session.WithCallTimeout(o.opts.CallTimeout))
	}
	sess := session.New(proc.Stdout, proc.Stdin, req.EntryID, sessOpts...)

	fail := func(kind ErrorKind, cause error) (*mounts.Mount, error) {
		_ = sess.Close()
		proc.Teardown()
		return nil, mountErr(kind, req.EntryID, cause)
	}

	if err := sess.Initialize(ctx); err != nil {
		if errors.Is(err, session.ErrTimeout) {
			return fail(KindTimeout, err)
		}
		return fail(KindInitFailed, err)
	}

	toolDefs, err := sess.ListTools(ctx)
	if err != nil {
		if errors.Is(err, session.ErrTimeout) {
			return fail(KindTimeout, err)
		}
		return fail(KindDiscoveryFailed, err)
	}

	// Resources and prompts are best-effort bookkeeping; a child without
	// either surface still mounts.
	var resourceNames, promptNames []string
	if resources, err := sess.ListResources(ctx); err != nil {
		logging.Debug("Orchestrator", "resources/list failed for %s: %v", req.EntryID, err)
	} else {
		for _, r := range resources {
			resourceNames = append(resourceNames, r.URI)
		}
	}
	if prompts, err := sess.ListPrompts(ctx); err != nil {
		logging.Debug("Orchestrator", "prompts/list failed for %s: %v", req.EntryID, err)
	} else {
		for _, p := range prompts {
			promptNames = append(promptNames, p.Name)
		}
	}

	var invocables []*translate.Invocable
	var toolNames []string
	for _, def := range toolDefs {
		inv, err := translate.Translate(def, prefix, proc.Handle, o.manager)
		if err != nil {
			logging.Warn("Orchestrator", "Skipping tool %q on %s: %v", def.Name, req.EntryID, err)
			continue
		}
		invocables = append(invocables, inv)
		toolNames = append(toolNames, def.Name)
	}

	if err := o.tools.RegisterMount(ctx, proc.Handle, invocables); err != nil {
		return fail(KindRegistrationFailed, err)
	}

	mount := &mounts.Mount{
		EntryID:     req.EntryID,
		Name:        entry.Name,
		Prefix:      prefix,
		Handle:      proc.Handle,
		Environment: env,
		Tools:       toolNames,
		Resources:   resourceNames,
		Prompts:     promptNames,
		MountedAt:   time.Now(),
	}

	if err := o.store.Add(mount); err != nil {
		o.tools.UnregisterMount(ctx, proc.Handle)
		return fail(KindPrefixConflict, err)
	}

	o.manager.Register(proc.Handle, sess, proc)

	if o.opts.OnTransportDeath == DeathUnmount {
		entryID := req.EntryID
		sess.SetTransportDeathHandler(func(cause error) {
			logging.Warn("Orchestrator", "Transport died for %s, unmounting: %v", entryID, cause)
			if err := o.Deactivate(context.Background(), entryID); err != nil {
				logging.Error("Orchestrator", err, "Auto-unmount of %s failed", entryID)
			}
		})
	}

	logging.Info("Orchestrator", "Mounted %s with prefix %s (%d tools, %d resources, %d prompts)",
		req.EntryID, prefix, len(toolNames), len(resourceNames), len(promptNames))
	return mount, nil
}

// Deactivate unmounts an entry: tools unregistered, session closed, child
// reaped, record removed and persisted.
func (o *Orchestrator) Deactivate(ctx context.Context, entryID string) error {
	lock := o.store.EntryLock(entryID)
	lock.Lock()
	defer lock.Unlock()

	mount, ok := o.store.Get(entryID)
	if !ok {
		return mountErr(KindEntryNotFound, entryID, fmt.Errorf("not mounted"))
	}

	removed := o.tools.UnregisterMount(ctx, mount.Handle)
	logging.Debug("Orchestrator", "Unregistered %d tools for %s", len(removed), entryID)

	o.manager.Remove(mount.Handle)

	if err := o.store.Remove(entryID); err != nil {
		return fmt.Errorf("remove mount %s from store: %w", entryID, err)
	}

	logging.Info("Orchestrator", "Unmounted %s", entryID)
	return nil
}

// Replay re-activates every persisted mount at startup. Each replayed
// mount re-spawns its child and re-runs discovery; persisted tool lists
// are not trusted. Entries that fail replay are dropped from the
// persisted set.
func (o *Orchestrator) Replay(ctx context.Context) {
	persisted, err := o.store.Load()
	if err != nil {
		logging.Error("Orchestrator", err, "Failed to load persisted mounts, starting empty")
		return
	}

	for _, m := range persisted {
		req := ActivateRequest{
			EntryID:     m.EntryID,
			Prefix:      m.Prefix,
			Environment: m.Environment,
		}
		if _, err := o.Activate(ctx, req); err != nil {
			logging.Warn("Orchestrator", "Replay of %s failed, dropping from persisted set: %v", m.EntryID, err)
		}
	}

	if err := o.store.Flush(); err != nil {
		logging.Error("Orchestrator", err, "Failed to rewrite mount state after replay")
	}
}

// mergeEnv overlays activation overrides on the entry's own environment.
func mergeEnv(entry *registry.Entry, overrides map[string]string) map[string]string {
	env := make(map[string]string)
	if entry.Command != nil {
		for k, v := range entry.Command.Env {
			env[k] = v
		}
	}
	for k, v := range overrides {
		env[k] = v
	}
	if len(env) == 0 {
		return nil
	}
	return env
}

// launchSpec fans out on the entry's launch method tag.
func launchSpec(entry *registry.Entry, override registry.LaunchMethod, env map[string]string) (launcher.Spec, error) {
	method := entry.Launch
	if override != "" {
		method = override
	}

	switch method {
	case registry.LaunchPodman:
		if entry.Image == "" {
			return launcher.Spec{}, fmt.Errorf("entry %s has no container image", entry.ID)
		}
		return launcher.Spec{
			Kind:  launcher.KindContainer,
			Image: entry.Image,
			Env:   env,
			Name:  entry.ID,
		}, nil
	case registry.LaunchStdioProxy:
		if entry.Command == nil || entry.Command.Command == "" {
			return launcher.Spec{}, fmt.Errorf("entry %s has no server command", entry.ID)
		}
		return launcher.Spec{
			Kind:    launcher.KindCommand,
			Command: entry.Command.Command,
			Args:    entry.Command.Args,
			Env:     env,
			Name:    entry.ID,
		}, nil
	case registry.LaunchRemoteHTTP:
		return launcher.Spec{}, fmt.Errorf("entry %s uses remote-http, which has no transport yet", entry.ID)
	default:
		return launcher.Spec{}, fmt.Errorf("entry %s has launch method %q", entry.ID, method)
	}
}
