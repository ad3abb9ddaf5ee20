// Package watch reloads stores when their files change on disk. File
// edits inside a store debounce into a single-store reload; directories
// appearing or disappearing under the root trigger a full rescan.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/storefrontd/internal/registry"
)

// ErrWatcherFailed indicates the filesystem watcher failed to initialize.
var ErrWatcherFailed = errors.New("failed to initialize filesystem watcher")

// DefaultDebounce is how long the watcher waits after the last event
// before reloading, so editor save bursts collapse into one reload.
const DefaultDebounce = 2 * time.Second

// Watcher keeps the registry in sync with the stores root.
type Watcher struct {
	root     string
	reg      *registry.Registry
	factory  registry.Factory
	debounce time.Duration
	logger   *zap.Logger

	fsw      *fsnotify.Watcher
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	started  atomic.Bool

	mu         sync.Mutex
	dirty      map[string]struct{}
	structural bool
	watched    map[string]struct{}
}

// New creates a watcher over the stores root. The factory is used to
// rebuild engines for reloaded stores.
func New(root string, reg *registry.Registry, factory registry.Factory, debounce time.Duration, logger *zap.Logger) (*Watcher, error) {
	if reg == nil {
		return nil, fmt.Errorf("registry cannot be nil")
	}
	if factory == nil {
		return nil, fmt.Errorf("engine factory cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}

	return &Watcher{
		root:     root,
		reg:      reg,
		factory:  factory,
		debounce: debounce,
		logger:   logger,
		fsw:      fsw,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		dirty:    make(map[string]struct{}),
		watched:  make(map[string]struct{}),
	}, nil
}

// Start begins watching and spawns the event loop. Call Stop to clean up.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.fsw.Add(w.root); err != nil {
		return fmt.Errorf("watching stores root: %w", err)
	}

	entries, err := os.ReadDir(w.root)
	if err != nil {
		return fmt.Errorf("reading stores root: %w", err)
	}
	w.mu.Lock()
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		dir := filepath.Join(w.root, entry.Name())
		// Ignore errors, a dir that cannot be watched still reloads on rescan.
		_ = w.fsw.Add(dir)
		w.watched[dir] = struct{}{}
	}
	w.mu.Unlock()

	w.started.Store(true)
	go w.run(ctx)

	w.logger.Info("watching stores root",
		zap.String("root", w.root),
		zap.Duration("debounce", w.debounce),
	)
	return nil
}

// Stop stops the watcher and waits for the event loop to exit. Safe to
// call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stop)
		_ = w.fsw.Close()
		if w.started.Load() {
			<-w.done
		}
	})
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	pending := false

	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !w.mark(event) {
				continue
			}
			if pending && !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.debounce)
			pending = true
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", zap.Error(err))
		case <-timer.C:
			pending = false
			w.flush(ctx)
		}
	}
}

// mark classifies one filesystem event, reporting whether it should arm
// the debounce timer.
func (w *Watcher) mark(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if strings.HasPrefix(parts[0], ".") {
		return false
	}
	// Tenant-written state lives under data/ and must not feed back into
	// reloads.
	if len(parts) >= 2 && parts[1] == "data" {
		return false
	}

	if len(parts) == 1 {
		return w.markRoot(event)
	}

	slug := strings.ToLower(parts[0])
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.reg.Store(slug); ok {
		w.dirty[slug] = struct{}{}
	} else {
		// Files landing in a directory the registry has not loaded.
		w.structural = true
	}
	return true
}

// markRoot handles events on direct children of the stores root, where
// only directories appearing or disappearing matter.
func (w *Watcher) markRoot(event fsnotify.Event) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch {
	case event.Op&fsnotify.Create != 0:
		info, err := os.Stat(event.Name)
		if err != nil || !info.IsDir() {
			return false
		}
		_ = w.fsw.Add(event.Name)
		w.watched[event.Name] = struct{}{}
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		_, wasDir := w.watched[event.Name]
		delete(w.watched, event.Name)
		if !wasDir {
			slug := strings.ToLower(filepath.Base(event.Name))
			if _, known := w.reg.Store(slug); !known {
				return false
			}
		}
	default:
		// Writes to stray files in the root.
		return false
	}

	w.structural = true
	return true
}

// flush applies the accumulated marks. A structural change supersedes
// per-store reloads because the rescan rebuilds every engine anyway.
func (w *Watcher) flush(ctx context.Context) {
	w.mu.Lock()
	structural := w.structural
	slugs := make([]string, 0, len(w.dirty))
	for slug := range w.dirty {
		slugs = append(slugs, slug)
	}
	w.structural = false
	w.dirty = make(map[string]struct{})
	w.mu.Unlock()
	sort.Strings(slugs)

	if structural {
		count, err := w.reg.LoadAll(ctx, w.factory)
		if err != nil {
			w.logger.Error("store rescan failed", zap.Error(err))
			return
		}
		w.logger.Info("stores rescanned", zap.Int("stores", count))
		w.rewatch()
		return
	}

	for _, slug := range slugs {
		if err := w.reg.ReloadStore(ctx, slug, w.factory); err != nil {
			w.logger.Warn("store reload failed, keeping previous state",
				zap.String("store", slug),
				zap.Error(err),
			)
			continue
		}
		w.logger.Info("store reloaded from disk", zap.String("store", slug))
	}
}

// rewatch rebuilds the per-store watch set after a rescan.
func (w *Watcher) rewatch() {
	entries, err := os.ReadDir(w.root)
	if err != nil {
		w.logger.Warn("rereading stores root", zap.Error(err))
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.watched = make(map[string]struct{})
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		dir := filepath.Join(w.root, entry.Name())
		_ = w.fsw.Add(dir)
		w.watched[dir] = struct{}{}
	}
}
