package retrieval

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/storefrontd/internal/store"
	"github.com/fyrsmithlabs/storefrontd/internal/translate"
)

const testCatalog = `[
	{"name": "Royal Canin", "category": "Dog Food", "price": 250, "link": "https://shop.example/royal"},
	{"name": "Whiskas", "category": "Cat Food", "price": 99},
	{"name": "Leash", "price": 30}
]`

func newTestStore(t *testing.T, products string) *store.StoreContext {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "pet-shop")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	files := map[string]string{
		"config.json":   `{"bot_token":"123:abc","store_name":"Pet Shop","indexing_fields":["name"],"filters":["category"],"config_version":1}`,
		"products.json": products,
		"prompts.json":  `{"not_found":"Nothing found."}`,
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	sc, err := store.New(dir, zap.NewNop())
	require.NoError(t, err)
	return sc
}

// fakeProvider returns fixed vectors per exact text, so scores in these
// tests are chosen by hand. Unmapped texts get the fallback vector,
// orthogonal to everything in the catalog.
type fakeProvider struct {
	vectors      map[string][]float32
	docCalls     int
	queryCalls   int
	docsErr      error
	queryErr     error
	truncateDocs bool
}

func (f *fakeProvider) vec(text string) []float32 {
	if v, ok := f.vectors[text]; ok {
		return append([]float32(nil), v...)
	}
	return []float32{0, 0, 0, 1}
}

func (f *fakeProvider) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	f.docCalls++
	if f.docsErr != nil {
		return nil, f.docsErr
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = f.vec(text)
	}
	if f.truncateDocs && len(out) > 0 {
		out = out[:len(out)-1]
	}
	return out, nil
}

func (f *fakeProvider) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.queryCalls++
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.vec(text), nil
}

func (f *fakeProvider) Dimension() int { return 4 }
func (f *fakeProvider) Close() error   { return nil }

func newFakeProvider() *fakeProvider {
	return &fakeProvider{vectors: map[string][]float32{
		// Catalog texts, one axis each.
		"royal canin dog food": {1, 0, 0, 0},
		"whiskas cat food":     {0, 1, 0, 0},
		"leash ":               {0, 0, 1, 0},
		// Queries.
		"royal canin":     {1, 0, 0, 0},
		"dog food":        {1, 0, 0, 0},
		"a":               {1, 0, 0, 0},
		"half match":      {0.5, 0.5, 0.5, 0.5},
		"cat food please": {0, 0.5, 0.5, 0},
	}}
}

type fakeTranslator struct {
	out   string
	err   error
	calls int
	last  string
}

func (f *fakeTranslator) Translate(_ context.Context, text string) (string, error) {
	f.calls++
	f.last = text
	if f.err != nil {
		return "", f.err
	}
	if f.out == "" {
		return text, nil
	}
	return f.out, nil
}

func builtEngine(t *testing.T, provider *fakeProvider, translator *fakeTranslator) *Engine {
	t.Helper()
	sc := newTestStore(t, testCatalog)
	var tr translate.Translator
	if translator != nil {
		tr = translator
	}
	e := New(sc, provider, tr, Options{}, zap.NewNop())
	require.NoError(t, e.Build(context.Background()))
	return e
}

func TestEngine_Build(t *testing.T) {
	provider := newFakeProvider()
	e := builtEngine(t, provider, nil)

	assert.Equal(t, 3, e.IndexSize())
	assert.Equal(t, []string{"dog food", "cat food"}, e.Categories())
	assert.Equal(t, 1, provider.docCalls)
}

func TestEngine_Build_EmptyCatalog(t *testing.T) {
	provider := newFakeProvider()
	sc := newTestStore(t, `[]`)
	e := New(sc, provider, nil, Options{}, zap.NewNop())
	require.NoError(t, e.Build(context.Background()))

	assert.Equal(t, 0, e.IndexSize())
	assert.Equal(t, 0, provider.docCalls)

	res, err := e.Search(context.Background(), "anything at all")
	require.NoError(t, err)
	assert.Equal(t, StatusNoResults, res.Status)
	assert.Empty(t, res.Products)
	assert.Equal(t, 0, provider.queryCalls)
}

func TestEngine_Build_ProviderError(t *testing.T) {
	provider := newFakeProvider()
	provider.docsErr = errors.New("model exploded")
	sc := newTestStore(t, testCatalog)
	e := New(sc, provider, nil, Options{}, zap.NewNop())

	err := e.Build(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model exploded")
}

func TestEngine_Build_VectorCountMismatch(t *testing.T) {
	provider := newFakeProvider()
	provider.truncateDocs = true
	sc := newTestStore(t, testCatalog)
	e := New(sc, provider, nil, Options{}, zap.NewNop())

	err := e.Build(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vectors")
}

func TestEngine_Search_Success(t *testing.T) {
	e := builtEngine(t, newFakeProvider(), nil)

	res, err := e.Search(context.Background(), "royal canin")
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, res.Status)
	require.Len(t, res.Products, 1)
	assert.Equal(t, "Royal Canin", res.Products[0].Record.Name)
	assert.InDelta(t, 1.0, float64(res.Products[0].Score), 1e-5)
	assert.Empty(t, res.DetectedCategory)
	assert.Equal(t, []string{"dog food", "cat food"}, res.AvailableCategories)
}

func TestEngine_Search_ThresholdIsInclusive(t *testing.T) {
	// The query vector scores exactly 0.5 against every record; the
	// values are dyadic so no rounding sneaks in.
	e := builtEngine(t, newFakeProvider(), nil)

	res, err := e.Search(context.Background(), "half match")
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, res.Status)
	require.Len(t, res.Products, 3)
	for _, p := range res.Products {
		assert.Equal(t, float32(0.5), p.Score)
	}
	// Equal scores keep catalog order.
	assert.Equal(t, "Royal Canin", res.Products[0].Record.Name)
	assert.Equal(t, "Whiskas", res.Products[1].Record.Name)
	assert.Equal(t, "Leash", res.Products[2].Record.Name)
}

func TestEngine_Search_NoResultsBelowThreshold(t *testing.T) {
	e := builtEngine(t, newFakeProvider(), nil)

	res, err := e.Search(context.Background(), "completely unrelated gibberish")
	require.NoError(t, err)

	assert.Equal(t, StatusNoResults, res.Status)
	assert.Empty(t, res.Products)
	assert.Equal(t, []string{"dog food", "cat food"}, res.AvailableCategories)
}

func TestEngine_Search_CategoryGate(t *testing.T) {
	e := builtEngine(t, newFakeProvider(), nil)

	// Whiskas and the uncategorized Leash both score 0.70 here; the
	// detected category keeps only Whiskas.
	res, err := e.Search(context.Background(), "cat food please")
	require.NoError(t, err)

	assert.Equal(t, "cat food", res.DetectedCategory)
	assert.Equal(t, StatusSuccess, res.Status)
	require.Len(t, res.Products, 1)
	assert.Equal(t, "Whiskas", res.Products[0].Record.Name)
}

func TestEngine_Search_UsesTranslator(t *testing.T) {
	translator := &fakeTranslator{out: "dog food"}
	e := builtEngine(t, newFakeProvider(), translator)

	res, err := e.Search(context.Background(), "корм для собак")
	require.NoError(t, err)

	assert.Equal(t, 1, translator.calls)
	assert.Equal(t, "корм для собак", translator.last)
	assert.Equal(t, "dog food", res.DetectedCategory)
	require.Len(t, res.Products, 1)
	assert.Equal(t, "Royal Canin", res.Products[0].Record.Name)
}

func TestEngine_Search_TranslatorFailureFallsBack(t *testing.T) {
	translator := &fakeTranslator{err: errors.New("translator down")}
	e := builtEngine(t, newFakeProvider(), translator)

	res, err := e.Search(context.Background(), "royal canin")
	require.NoError(t, err)

	assert.Equal(t, 1, translator.calls)
	assert.Equal(t, StatusSuccess, res.Status)
	require.Len(t, res.Products, 1)
}

func TestEngine_Search_ShortQuerySkipsTranslation(t *testing.T) {
	translator := &fakeTranslator{out: "should never be used"}
	e := builtEngine(t, newFakeProvider(), translator)

	res, err := e.Search(context.Background(), "a")
	require.NoError(t, err)

	assert.Equal(t, 0, translator.calls)
	assert.Equal(t, StatusSuccess, res.Status)
}

func TestEngine_Search_EmbedFailure(t *testing.T) {
	provider := newFakeProvider()
	e := builtEngine(t, provider, nil)
	provider.queryErr = errors.New("provider gone")

	res, err := e.Search(context.Background(), "royal canin")
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrRetrievalFailure)
	assert.Contains(t, err.Error(), "provider gone")
}

func TestEngine_Search_RecordsMetrics(t *testing.T) {
	e := builtEngine(t, newFakeProvider(), nil)

	before := testutil.ToFloat64(searchesTotal.WithLabelValues("pet-shop", "success"))
	_, err := e.Search(context.Background(), "royal canin")
	require.NoError(t, err)
	after := testutil.ToFloat64(searchesTotal.WithLabelValues("pet-shop", "success"))

	assert.Equal(t, before+1, after)
}

func TestEngine_Search_SingleCategoryCatalog(t *testing.T) {
	// One product, one category. A query mentioning the category after
	// translation finds it; an off-catalog query comes back empty but
	// still names the categories the store does have.
	const catalog = `[{"name": "Licking mat", "category": "mats", "price": 500}]`
	provider := &fakeProvider{vectors: map[string][]float32{
		"licking mat mats": {1, 0, 0, 0},
		"show me mats":     {1, 0, 0, 0},
	}}

	t.Run("category match", func(t *testing.T) {
		translator := &fakeTranslator{out: "show me mats"}
		e := New(newTestStore(t, catalog), provider, translator, Options{}, zap.NewNop())
		require.NoError(t, e.Build(context.Background()))

		res, err := e.Search(context.Background(), "show me a mat")
		require.NoError(t, err)

		assert.Equal(t, StatusSuccess, res.Status)
		require.Len(t, res.Products, 1)
		assert.Equal(t, "Licking mat", res.Products[0].Record.Name)
		assert.Equal(t, "mats", res.DetectedCategory)
	})

	t.Run("off-catalog query", func(t *testing.T) {
		e := New(newTestStore(t, catalog), provider, nil, Options{}, zap.NewNop())
		require.NoError(t, e.Build(context.Background()))

		res, err := e.Search(context.Background(), "I want food for cats")
		require.NoError(t, err)

		assert.Equal(t, StatusNoResults, res.Status)
		assert.Empty(t, res.Products)
		assert.Empty(t, res.DetectedCategory)
		assert.Equal(t, []string{"mats"}, res.AvailableCategories)
	})
}

func TestDetectCategory(t *testing.T) {
	e := &Engine{categories: []string{"dog food", "cat food", "food"}}

	tests := []struct {
		query string
		want  string
	}{
		{"give me dog food", "dog food"},     // longest beats "food"
		{"cat food or dog food", "cat food"}, // equal length, lexicographic
		{"just food", "food"},
		{"something else entirely", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, e.detectCategory(tt.query), "query %q", tt.query)
	}
}

func TestEmbeddingText(t *testing.T) {
	sc := newTestStore(t, `[
		{"name": "Royal Canin", "category": "Dog Food",
		 "attributes": {"brand": "Royal", "weight": "2kg"}}
	]`)
	got := embeddingText(sc.Catalog()[0])
	assert.Equal(t, "royal canin dog food royal 2kg", got)
}
