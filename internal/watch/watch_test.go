package watch

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/fyrsmithlabs/storefrontd/internal/registry"
	"github.com/fyrsmithlabs/storefrontd/internal/store"
)

const testDebounce = 50 * time.Millisecond

const testConfig = `{
	"bot_token": "123456:token",
	"store_name": "Test Store",
	"indexing_fields": ["name"],
	"filters": ["category"],
	"config_version": 1
}`

const testProducts = `[{"name": "Dog Food", "category": "Pets", "price": 250}]`

const testPrompts = `{"not_found": "Nothing found."}`

func writeStore(t *testing.T, root, name string) string {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	files := map[string]string{
		"config.json":   testConfig,
		"products.json": testProducts,
		"prompts.json":  testPrompts,
	}
	for f, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, f), []byte(content), 0o644))
	}
	return dir
}

type fakeEngine struct{}

func (fakeEngine) HandleUpdate(_ context.Context, _ json.RawMessage) error { return nil }

func (fakeEngine) Close(_ context.Context) error { return nil }

type testFactory struct {
	mu    sync.Mutex
	built map[string]int
}

func newTestFactory() *testFactory {
	return &testFactory{built: make(map[string]int)}
}

func (tf *testFactory) factory(_ context.Context, sc *store.StoreContext) (registry.Engine, error) {
	tf.mu.Lock()
	defer tf.mu.Unlock()
	tf.built[sc.Slug()]++
	return fakeEngine{}, nil
}

func (tf *testFactory) builds(slug string) int {
	tf.mu.Lock()
	defer tf.mu.Unlock()
	return tf.built[slug]
}

func setupWatcher(t *testing.T, stores ...string) (string, *registry.Registry, *testFactory) {
	t.Helper()
	root := t.TempDir()
	for _, name := range stores {
		writeStore(t, root, name)
	}
	reg := registry.New(root, zaptest.NewLogger(t))
	tf := newTestFactory()
	_, err := reg.LoadAll(context.Background(), tf.factory)
	require.NoError(t, err)

	w, err := New(root, reg, tf.factory, testDebounce, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(w.Stop)
	return root, reg, tf
}

func catalogSize(reg *registry.Registry, slug string) int {
	sc, ok := reg.Store(slug)
	if !ok {
		return -1
	}
	return len(sc.Catalog())
}

func TestNew(t *testing.T) {
	root := t.TempDir()
	reg := registry.New(root, zaptest.NewLogger(t))
	tf := newTestFactory()

	t.Run("applies default debounce", func(t *testing.T) {
		w, err := New(root, reg, tf.factory, 0, zaptest.NewLogger(t))
		require.NoError(t, err)
		assert.Equal(t, DefaultDebounce, w.debounce)
		w.Stop()
	})

	t.Run("returns error when registry is nil", func(t *testing.T) {
		_, err := New(root, nil, tf.factory, testDebounce, zaptest.NewLogger(t))
		assert.Error(t, err)
	})

	t.Run("returns error when factory is nil", func(t *testing.T) {
		_, err := New(root, reg, nil, testDebounce, zaptest.NewLogger(t))
		assert.Error(t, err)
	})

	t.Run("returns error when logger is nil", func(t *testing.T) {
		_, err := New(root, reg, tf.factory, testDebounce, nil)
		assert.Error(t, err)
	})
}

func TestWatcher_StartMissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "gone")
	reg := registry.New(root, zaptest.NewLogger(t))
	w, err := New(root, reg, newTestFactory().factory, testDebounce, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer w.Stop()

	assert.Error(t, w.Start(context.Background()))
}

func TestWatcher_FileChangeReloadsStore(t *testing.T) {
	root, reg, tf := setupWatcher(t, "acme-pets")

	grown := `[
		{"name": "Dog Food", "category": "Pets", "price": 250},
		{"name": "Cat Food", "category": "Pets", "price": 150}
	]`
	require.NoError(t, os.WriteFile(filepath.Join(root, "acme-pets", "products.json"), []byte(grown), 0o644))

	require.Eventually(t, func() bool {
		return catalogSize(reg, "acme-pets") == 2
	}, 2*time.Second, 10*time.Millisecond, "store was not reloaded")
	assert.Equal(t, 2, tf.builds("acme-pets"), "reload rebuilds the engine")
}

func TestWatcher_CoalescesEditBursts(t *testing.T) {
	root, reg, tf := setupWatcher(t, "acme-pets")

	grown := `[
		{"name": "Dog Food", "category": "Pets", "price": 250},
		{"name": "Cat Food", "category": "Pets", "price": 150}
	]`
	products := filepath.Join(root, "acme-pets", "products.json")
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(products, []byte(grown), 0o644))
	}

	require.Eventually(t, func() bool {
		return catalogSize(reg, "acme-pets") == 2
	}, 2*time.Second, 10*time.Millisecond)

	// No further reloads once the burst has settled.
	time.Sleep(4 * testDebounce)
	assert.Equal(t, 2, tf.builds("acme-pets"))
}

func TestWatcher_NewStoreTriggersRescan(t *testing.T) {
	root, reg, tf := setupWatcher(t, "acme-pets")

	writeStore(t, root, "vet-meds")

	require.Eventually(t, func() bool {
		return reg.Len() == 2
	}, 2*time.Second, 10*time.Millisecond, "new store was not picked up")
	assert.Equal(t, []string{"acme-pets", "vet-meds"}, reg.Slugs())
	assert.Equal(t, 1, tf.builds("vet-meds"))
	assert.Equal(t, 2, tf.builds("acme-pets"), "rescan rebuilds every engine")
}

func TestWatcher_RemovedStoreTriggersRescan(t *testing.T) {
	root, reg, _ := setupWatcher(t, "acme-pets", "vet-meds")

	require.NoError(t, os.RemoveAll(filepath.Join(root, "vet-meds")))

	require.Eventually(t, func() bool {
		return reg.Len() == 1
	}, 2*time.Second, 10*time.Millisecond, "removed store was not dropped")
	assert.Equal(t, []string{"acme-pets"}, reg.Slugs())
}

func TestWatcher_IgnoresDataWrites(t *testing.T) {
	_, reg, tf := setupWatcher(t, "acme-pets")

	sc, ok := reg.Store("acme-pets")
	require.True(t, ok)
	require.NoError(t, sc.SaveData("fsm_soft_patch.json", map[string]any{
		"troll_patterns": []string{"sell me the moon"},
	}))

	time.Sleep(4 * testDebounce)
	assert.Equal(t, 1, tf.builds("acme-pets"), "tenant-written state must not trigger reloads")
}

func TestWatcher_BrokenEditKeepsOldState(t *testing.T) {
	root, reg, tf := setupWatcher(t, "acme-pets")

	require.NoError(t, os.WriteFile(filepath.Join(root, "acme-pets", "products.json"), []byte("{broken"), 0o644))

	time.Sleep(4 * testDebounce)
	assert.Equal(t, 1, catalogSize(reg, "acme-pets"), "previous catalog still serving")
	assert.Equal(t, 1, tf.builds("acme-pets"), "no engine rebuild on a failed reload")
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	root := t.TempDir()
	writeStore(t, root, "acme-pets")
	reg := registry.New(root, zaptest.NewLogger(t))
	tf := newTestFactory()
	_, err := reg.LoadAll(context.Background(), tf.factory)
	require.NoError(t, err)

	w, err := New(root, reg, tf.factory, testDebounce, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))

	w.Stop()
	assert.NotPanics(t, w.Stop)

	grown := `[
		{"name": "Dog Food", "category": "Pets", "price": 250},
		{"name": "Cat Food", "category": "Pets", "price": 150}
	]`
	require.NoError(t, os.WriteFile(filepath.Join(root, "acme-pets", "products.json"), []byte(grown), 0o644))
	time.Sleep(4 * testDebounce)
	assert.Equal(t, 1, tf.builds("acme-pets"), "stopped watcher must not reload")
}
