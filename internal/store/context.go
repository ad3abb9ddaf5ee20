// Package store owns a single tenant's on-disk state: config, catalog, and
// prompts under one directory, with every file access confined to that
// directory tree.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"
)

// slugPattern validates store slugs derived from directory names.
var slugPattern = regexp.MustCompile(`^[a-z0-9_-]+$`)

const (
	dataDir  = "data"
	indexDir = "data/index"
)

// StoreContext is the gatekeeper for one store's files. It caches config,
// catalog, and prompts in memory; Reload replaces them atomically.
type StoreContext struct {
	root   string
	slug   string
	logger *zap.Logger

	mu      sync.RWMutex
	config  *StoreConfig
	catalog []Record
	prompts map[string]string
	vdb     *chromem.DB

	// saveMu serializes auxiliary writes under data/.
	saveMu sync.Mutex
}

// New builds a StoreContext rooted at rootPath. The slug is the lowercased
// directory name and must match slugPattern. Construction is all-or-nothing:
// config, catalog, and prompts all load and validate, or an error is
// returned and no context escapes.
func New(rootPath string, logger *zap.Logger) (*StoreContext, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	abs, err := filepath.Abs(rootPath)
	if err != nil {
		return nil, fmt.Errorf("resolving store root: %w", err)
	}
	// Canonicalize once so descendant checks are against the real path.
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}

	slug := strings.ToLower(filepath.Base(abs))
	if !slugPattern.MatchString(slug) {
		return nil, fmt.Errorf("%w: %q (use only a-z, 0-9, _, -)", ErrInvalidSlug, slug)
	}

	sc := &StoreContext{
		root:   abs,
		slug:   slug,
		logger: logger.With(zap.String("store", slug)),
	}

	st, err := sc.loadAll()
	if err != nil {
		return nil, err
	}
	sc.config = st.config
	sc.catalog = st.catalog
	sc.prompts = st.prompts

	sc.logger.Debug("store context initialized",
		zap.Int("products", len(sc.catalog)),
		zap.Int("filters", len(sc.config.Filters)),
	)
	return sc, nil
}

// loaded holds a fully parsed set of store files, built off to the side so
// a failed load never touches served state.
type loaded struct {
	config  *StoreConfig
	catalog []Record
	prompts map[string]string
}

func (sc *StoreContext) loadAll() (*loaded, error) {
	cfgData, err := sc.readRequired("config.json")
	if err != nil {
		return nil, err
	}
	cfg, err := parseStoreConfig(cfgData)
	if err != nil {
		return nil, fmt.Errorf("config.json: %w", err)
	}
	if cfg.ConfigVersion < MinConfigVersion {
		sc.logger.Warn("store config below minimum supported version",
			zap.Int("config_version", cfg.ConfigVersion),
			zap.Int("min_version", MinConfigVersion),
		)
	}

	prodData, err := sc.readRequired("products.json")
	if err != nil {
		return nil, err
	}
	catalog, err := parseCatalog(prodData)
	if err != nil {
		return nil, fmt.Errorf("products.json: %w", err)
	}

	promptData, err := sc.readRequired("prompts.json")
	if err != nil {
		return nil, err
	}
	prompts, err := parsePrompts(promptData)
	if err != nil {
		return nil, fmt.Errorf("prompts.json: %w", err)
	}

	return &loaded{config: cfg, catalog: catalog, prompts: prompts}, nil
}

func (sc *StoreContext) readRequired(name string) ([]byte, error) {
	data, err := sc.ReadFile(name)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrMissingFile, name)
	}
	return data, err
}

func parseCatalog(data []byte) ([]Record, error) {
	trimmed := strings.TrimSpace(string(data))
	if !strings.HasPrefix(trimmed, "[") {
		return nil, fmt.Errorf("%w: must be an array of objects", ErrSchema)
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchema, err)
	}
	for i := range records {
		if strings.TrimSpace(records[i].Name) == "" {
			return nil, fmt.Errorf("%w: record %d has no name", ErrSchema, i)
		}
	}
	return records, nil
}

func parsePrompts(data []byte) (map[string]string, error) {
	var prompts map[string]string
	if err := json.Unmarshal(data, &prompts); err != nil {
		return nil, fmt.Errorf("%w: must map names to string templates: %v", ErrSchema, err)
	}
	if prompts == nil {
		prompts = map[string]string{}
	}
	return prompts, nil
}

// ResolvePath resolves rel against the store root and verifies the result
// stays inside it, following symlinks on the existing portion so a link
// inside the tree cannot point outside it. Targets that do not exist yet
// are checked through their deepest existing ancestor, so a planted
// symlinked directory cannot route a pending write outside the root.
func (sc *StoreContext) ResolvePath(rel string) (string, error) {
	joined := filepath.Join(sc.root, rel)
	if !isWithin(sc.root, joined) {
		return "", fmt.Errorf("%w: %s", ErrPathEscape, rel)
	}
	resolved := resolveExisting(joined)
	if !isWithin(sc.root, resolved) {
		return "", fmt.Errorf("%w: %s", ErrPathEscape, rel)
	}
	return resolved, nil
}

// resolveExisting canonicalizes path. When the path itself does not exist,
// symlinks are resolved on the deepest existing ancestor and the missing
// remainder is re-joined onto it.
func resolveExisting(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}
	var rest []string
	for cur := path; ; {
		parent := filepath.Dir(cur)
		if parent == cur {
			return path
		}
		rest = append(rest, filepath.Base(cur))
		cur = parent
		if resolved, err := filepath.EvalSymlinks(cur); err == nil {
			for i := len(rest) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, rest[i])
			}
			return resolved
		}
	}
}

// isWithin reports whether path is base itself or a descendant of base.
func isWithin(base, path string) bool {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return false
	}
	return rel == "." || !strings.HasPrefix(rel, "..")
}

// Exists reports whether rel names an existing file inside the store.
// Paths that escape the store are reported as absent.
func (sc *StoreContext) Exists(rel string) bool {
	path, err := sc.ResolvePath(rel)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// ReadFile reads a file inside the store through the path guard.
func (sc *StoreContext) ReadFile(rel string) ([]byte, error) {
	path, err := sc.ResolvePath(rel)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

// SaveData writes v as indented JSON to name under the writable data/
// subtree, creating it on demand. The name is forced under data/ and the
// write is atomic (tmp + rename).
func (sc *StoreContext) SaveData(name string, v any) error {
	if name == "" {
		return fmt.Errorf("%w: empty data file name", ErrPathEscape)
	}
	if !strings.HasPrefix(name, dataDir+"/") {
		name = dataDir + "/" + name
	}

	path, err := sc.ResolvePath(name)
	if err != nil {
		return err
	}
	// The forced prefix alone is not enough: "data/../x" joins clean.
	if !isWithin(filepath.Join(sc.root, dataDir), path) {
		return fmt.Errorf("%w: %s", ErrPathEscape, name)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", name, err)
	}

	sc.saveMu.Lock()
	defer sc.saveMu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming %s: %w", name, err)
	}
	return nil
}

// Reload re-reads and re-validates all store files. On failure the prior
// state is left untouched. On success the new state is published atomically
// and the cached persisted-index handle is dropped.
func (sc *StoreContext) Reload() error {
	st, err := sc.loadAll()
	if err != nil {
		return err
	}

	sc.mu.Lock()
	sc.config = st.config
	sc.catalog = st.catalog
	sc.prompts = st.prompts
	sc.vdb = nil
	sc.mu.Unlock()

	sc.logger.Info("store context reloaded", zap.Int("products", len(st.catalog)))
	return nil
}

// VectorDB returns the persisted per-store index handle, opening it on
// first use and caching it until the next Reload. ok is false when no index
// exists on disk; absence is a normal state, not an error.
func (sc *StoreContext) VectorDB() (*chromem.DB, bool, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.vdb != nil {
		return sc.vdb, true, nil
	}

	path, err := sc.ResolvePath(indexDir)
	if err != nil {
		return nil, false, err
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}

	db, err := chromem.NewPersistentDB(path, false)
	if err != nil {
		return nil, false, fmt.Errorf("opening persisted index: %w", err)
	}
	sc.vdb = db
	return sc.vdb, true, nil
}

// Slug returns the store's slug.
func (sc *StoreContext) Slug() string { return sc.slug }

// Root returns the store's canonical root path.
func (sc *StoreContext) Root() string { return sc.root }

// Config returns the store's settings. Treat as read-only.
func (sc *StoreContext) Config() *StoreConfig {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.config
}

// Catalog returns the store's records. Treat as read-only.
func (sc *StoreContext) Catalog() []Record {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.catalog
}

// Prompts returns the store's response templates. Treat as read-only.
func (sc *StoreContext) Prompts() map[string]string {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.prompts
}

// Prompt returns the named template, or fallback when absent or empty.
func (sc *StoreContext) Prompt(name, fallback string) string {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	if v, ok := sc.prompts[name]; ok && v != "" {
		return v
	}
	return fallback
}

// Summary returns a one-line diagnostic overview.
func (sc *StoreContext) Summary() string {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return fmt.Sprintf("store[%s]: name=%q products=%d filters=%d",
		sc.slug, sc.config.StoreName, len(sc.catalog), len(sc.config.Filters))
}
