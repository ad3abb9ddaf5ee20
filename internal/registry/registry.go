// Package registry owns the tenant map: discovery of store directories,
// slug uniqueness, the store→engine association, and safe full and
// partial reloads.
//
// Readers resolve webhooks against an immutable snapshot behind an
// atomic pointer, so lookups never lock and never observe a mix of old
// and new state. Writers serialize on a mutex, build aside, and swap
// once.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/storefrontd/internal/store"
)

var (
	// ErrNotFound indicates no store is registered under the slug.
	ErrNotFound = errors.New("store not found")

	// ErrSlugCollision indicates two directories map to the same slug.
	ErrSlugCollision = errors.New("slug collision")
)

// Engine is what the registry knows about a store's message handler.
// Everything else about engines is the factory caller's business.
type Engine interface {
	HandleUpdate(ctx context.Context, raw json.RawMessage) error
	Close(ctx context.Context) error
}

// Factory builds the engine for a freshly loaded store context.
type Factory func(ctx context.Context, sc *store.StoreContext) (Engine, error)

// snapshot is one immutable generation of the tenant map. The two maps
// always hold the same keys.
type snapshot struct {
	contexts map[string]*store.StoreContext
	engines  map[string]Engine
}

func emptySnapshot() *snapshot {
	return &snapshot{
		contexts: make(map[string]*store.StoreContext),
		engines:  make(map[string]Engine),
	}
}

// Registry maps slugs to store contexts and engines.
type Registry struct {
	root   string
	logger *zap.Logger

	mu      sync.Mutex
	current atomic.Pointer[snapshot]
}

// New creates a registry over the stores root directory. The map is
// empty until LoadAll runs.
func New(root string, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{root: root, logger: logger}
	r.current.Store(emptySnapshot())
	return r
}

// LoadAll scans the stores root and rebuilds the whole tenant map. One
// broken store never blocks the rest: it is logged under this scan's id
// and skipped. Engines from the previous generation are closed after
// the new snapshot is live. Returns the number of loaded stores.
func (r *Registry) LoadAll(ctx context.Context, factory Factory) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	scanID := uuid.New().String()
	logger := r.logger.With(zap.String("scan_id", scanID))

	entries, err := os.ReadDir(r.root)
	if err != nil {
		return 0, fmt.Errorf("reading stores root: %w", err)
	}

	next := emptySnapshot()
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		slug := strings.ToLower(entry.Name())

		// os.ReadDir sorts by name, so the first directory wins and
		// later claimants are dropped.
		if existing, ok := next.contexts[slug]; ok {
			logger.Warn("store skipped",
				zap.Error(ErrSlugCollision),
				zap.String("slug", slug),
				zap.String("dir", entry.Name()),
				zap.String("kept", existing.Root()))
			continue
		}

		sc, err := store.New(filepath.Join(r.root, entry.Name()), logger)
		if err != nil {
			logger.Warn("store skipped",
				zap.String("dir", entry.Name()),
				zap.Error(err))
			continue
		}

		eng, err := factory(ctx, sc)
		if err != nil {
			logger.Warn("engine build failed, store skipped",
				zap.String("slug", slug),
				zap.Error(err))
			continue
		}

		next.contexts[slug] = sc
		next.engines[slug] = eng
	}

	old := r.current.Load()
	r.current.Store(next)

	r.closeEngines(ctx, old.engines)

	logger.Info("stores loaded",
		zap.Int("count", len(next.contexts)),
		zap.Strings("slugs", keys(next.contexts)))
	return len(next.contexts), nil
}

// ReloadStore reloads a single tenant. Failures leave the previous
// context state and engine serving; on success only this tenant's slot
// changes and its old engine is closed after the swap.
func (r *Registry) ReloadStore(ctx context.Context, slug string, factory Factory) error {
	slug = strings.ToLower(slug)

	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.current.Load()
	sc, ok := cur.contexts[slug]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, slug)
	}

	if err := sc.Reload(); err != nil {
		return fmt.Errorf("reloading store %s: %w", slug, err)
	}

	eng, err := factory(ctx, sc)
	if err != nil {
		return fmt.Errorf("rebuilding engine for %s: %w", slug, err)
	}

	next := &snapshot{
		contexts: make(map[string]*store.StoreContext, len(cur.contexts)),
		engines:  make(map[string]Engine, len(cur.engines)),
	}
	for k, v := range cur.contexts {
		next.contexts[k] = v
	}
	for k, v := range cur.engines {
		next.engines[k] = v
	}
	next.engines[slug] = eng

	oldEngine := cur.engines[slug]
	r.current.Store(next)

	if err := oldEngine.Close(ctx); err != nil {
		r.logger.Warn("closing replaced engine",
			zap.String("slug", slug), zap.Error(err))
	}

	r.logger.Info("store reloaded", zap.String("slug", slug))
	return nil
}

// Store looks up a tenant context. Lookups are case-insensitive.
func (r *Registry) Store(slug string) (*store.StoreContext, bool) {
	sc, ok := r.current.Load().contexts[strings.ToLower(slug)]
	return sc, ok
}

// Engine looks up a tenant engine. Lookups are case-insensitive.
func (r *Registry) Engine(slug string) (Engine, bool) {
	eng, ok := r.current.Load().engines[strings.ToLower(slug)]
	return eng, ok
}

// Lookup returns a tenant's context and engine from a single snapshot,
// so a swap between the two reads cannot pair state from different
// generations. Lookups are case-insensitive.
func (r *Registry) Lookup(slug string) (*store.StoreContext, Engine, bool) {
	snap := r.current.Load()
	key := strings.ToLower(slug)
	sc, ok := snap.contexts[key]
	if !ok {
		return nil, nil, false
	}
	return sc, snap.engines[key], true
}

// Slugs returns all registered slugs, sorted.
func (r *Registry) Slugs() []string {
	return keys(r.current.Load().contexts)
}

// Len returns the number of registered stores.
func (r *Registry) Len() int {
	return len(r.current.Load().contexts)
}

// Close publishes an empty snapshot and closes every engine.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	old := r.current.Load()
	r.current.Store(emptySnapshot())

	var errs []error
	for slug, eng := range old.engines {
		if err := eng.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("closing engine %s: %w", slug, err))
		}
	}
	return errors.Join(errs...)
}

func (r *Registry) closeEngines(ctx context.Context, engines map[string]Engine) {
	for slug, eng := range engines {
		if err := eng.Close(ctx); err != nil {
			r.logger.Warn("closing replaced engine",
				zap.String("slug", slug), zap.Error(err))
		}
	}
}

func keys(m map[string]*store.StoreContext) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
