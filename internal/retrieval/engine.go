// Package retrieval finds catalog records relevant to shopper text for a
// single store, combining embedding similarity with category
// disambiguation.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/storefrontd/internal/embeddings"
	"github.com/fyrsmithlabs/storefrontd/internal/store"
	"github.com/fyrsmithlabs/storefrontd/internal/translate"
	"github.com/fyrsmithlabs/storefrontd/internal/vecindex"
)

var tracer = otel.Tracer("storefrontd.retrieval")

// ErrRetrievalFailure indicates infrastructure broke mid-search. Distinct
// from a clean NO_RESULTS: a failed embedding must never read as "nothing
// matched".
var ErrRetrievalFailure = errors.New("retrieval failure")

const (
	// DefaultThreshold is the minimum similarity kept, inclusive.
	DefaultThreshold = 0.5

	// DefaultTopK is how many candidates the vector search returns.
	DefaultTopK = 5

	// DefaultMinQueryLen is the rune count below which a query skips
	// translation.
	DefaultMinQueryLen = 2
)

// Status reports how a search concluded.
type Status string

const (
	// StatusSuccess means at least one record survived filtering.
	StatusSuccess Status = "SUCCESS"
	// StatusNoResults means the search ran but nothing matched.
	StatusNoResults Status = "NO_RESULTS"
)

// Scored pairs a catalog record with its similarity score.
type Scored struct {
	Record store.Record
	Score  float32
}

// Result is the outcome of one search.
type Result struct {
	Status              Status
	Products            []Scored
	DetectedCategory    string
	AvailableCategories []string
}

// Options tune a retrieval engine. Zero values select the defaults.
type Options struct {
	Threshold   float32
	TopK        int
	MinQueryLen int
}

// Engine answers product queries for one store. Build constructs the
// index; after that the engine is read-only and safe for concurrent
// searches.
type Engine struct {
	slug       string
	sc         *store.StoreContext
	provider   embeddings.Provider
	translator translate.Translator
	logger     *zap.Logger

	threshold   float32
	topK        int
	minQueryLen int

	catalog    []store.Record
	index      *vecindex.Flat
	categories []string
}

// New prepares an engine over the store's catalog. Call Build before
// Search.
func New(sc *store.StoreContext, provider embeddings.Provider, translator translate.Translator, opts Options, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if translator == nil {
		translator = translate.Noop{}
	}
	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	topK := opts.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	minQueryLen := opts.MinQueryLen
	if minQueryLen <= 0 {
		minQueryLen = DefaultMinQueryLen
	}
	return &Engine{
		slug:        sc.Slug(),
		sc:          sc,
		provider:    provider,
		translator:  translator,
		logger:      logger,
		threshold:   threshold,
		topK:        topK,
		minQueryLen: minQueryLen,
	}
}

// Build snapshots the catalog, embeds every record, and constructs the
// index. An empty catalog builds no index; searches then report no
// results without touching the provider.
func (e *Engine) Build(ctx context.Context) error {
	catalog := e.sc.Catalog()
	e.catalog = catalog
	e.categories = collectCategories(catalog)

	if len(catalog) == 0 {
		e.index = nil
		e.logger.Info("empty catalog, retrieval index skipped",
			zap.String("store", e.slug))
		return nil
	}

	texts := make([]string, len(catalog))
	for i, rec := range catalog {
		texts[i] = embeddingText(rec)
	}

	vecs, err := e.provider.EmbedDocuments(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding catalog for %s: %w", e.slug, err)
	}
	if len(vecs) != len(texts) {
		return fmt.Errorf("embedding catalog for %s: got %d vectors for %d records", e.slug, len(vecs), len(texts))
	}

	index, err := vecindex.New(e.provider.Dimension())
	if err != nil {
		return fmt.Errorf("building index for %s: %w", e.slug, err)
	}
	for _, v := range vecs {
		vecindex.Normalize(v)
		if err := index.Add(v); err != nil {
			return fmt.Errorf("building index for %s: %w", e.slug, err)
		}
	}
	e.index = index

	e.logger.Info("retrieval index built",
		zap.String("store", e.slug),
		zap.Int("records", index.Len()),
		zap.Int("dimension", index.Dimension()),
		zap.Strings("categories", e.categories))
	return nil
}

// Search runs the full pipeline: translate, detect category, vector
// search, threshold and category filtering.
func (e *Engine) Search(ctx context.Context, query string) (*Result, error) {
	ctx, span := tracer.Start(ctx, "retrieval.Search")
	defer span.End()
	span.SetAttributes(attribute.String("store", e.slug))

	start := time.Now()

	translated := e.translateQuery(ctx, query)
	lowered := strings.ToLower(translated)
	detected := e.detectCategory(lowered)

	if e.index == nil || e.index.Len() == 0 {
		e.record(start, StatusNoResults)
		span.SetStatus(codes.Ok, "")
		return e.result(StatusNoResults, nil, detected), nil
	}

	qvec, err := e.provider.EmbedQuery(ctx, translated)
	if err != nil {
		e.recordError(start, span, err)
		return nil, fmt.Errorf("%w: embedding query: %v", ErrRetrievalFailure, err)
	}
	vecindex.Normalize(qvec)

	hits, err := e.index.Search(qvec, e.topK)
	if err != nil {
		e.recordError(start, span, err)
		return nil, fmt.Errorf("%w: %v", ErrRetrievalFailure, err)
	}

	var products []Scored
	for _, hit := range hits {
		if hit.Score < e.threshold {
			continue
		}
		rec := e.catalog[hit.Index]
		// Category gate: a detected category excludes everything else,
		// uncategorized records included.
		if detected != "" && strings.ToLower(rec.Category) != detected {
			continue
		}
		products = append(products, Scored{Record: rec, Score: hit.Score})
	}

	status := StatusNoResults
	if len(products) > 0 {
		status = StatusSuccess
	}
	e.record(start, status)

	span.SetAttributes(
		attribute.String("status", string(status)),
		attribute.String("detected_category", detected),
		attribute.Int("results", len(products)))
	span.SetStatus(codes.Ok, "")

	return e.result(status, products, detected), nil
}

// translateQuery normalizes the shopper's language. Translation is best
// effort: too-short input skips it, and a translator failure falls back
// to the raw query.
func (e *Engine) translateQuery(ctx context.Context, query string) string {
	if utf8.RuneCountInString(strings.TrimSpace(query)) < e.minQueryLen {
		return query
	}
	translated, err := e.translator.Translate(ctx, query)
	if err != nil {
		e.logger.Debug("translation failed, searching raw query",
			zap.String("store", e.slug), zap.Error(err))
		return query
	}
	if translated == "" {
		return query
	}
	return translated
}

// detectCategory finds a known category mentioned in the lowercased
// query. The longest match wins; equal lengths break lexicographically.
func (e *Engine) detectCategory(lowered string) string {
	var best string
	for _, cat := range e.categories {
		if !strings.Contains(lowered, cat) {
			continue
		}
		if len(cat) > len(best) || (len(cat) == len(best) && cat < best) {
			best = cat
		}
	}
	return best
}

func (e *Engine) result(status Status, products []Scored, detected string) *Result {
	return &Result{
		Status:              status,
		Products:            products,
		DetectedCategory:    detected,
		AvailableCategories: e.Categories(),
	}
}

func (e *Engine) record(start time.Time, status Status) {
	label := "no_results"
	if status == StatusSuccess {
		label = "success"
	}
	searchesTotal.WithLabelValues(e.slug, label).Inc()
	searchDuration.Observe(time.Since(start).Seconds())
}

func (e *Engine) recordError(start time.Time, span trace.Span, err error) {
	searchesTotal.WithLabelValues(e.slug, "error").Inc()
	searchDuration.Observe(time.Since(start).Seconds())
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// Categories returns the store's distinct categories in first-seen
// catalog order.
func (e *Engine) Categories() []string {
	return append([]string(nil), e.categories...)
}

// IndexSize returns how many records the index holds.
func (e *Engine) IndexSize() int {
	if e.index == nil {
		return 0
	}
	return e.index.Len()
}

func collectCategories(catalog []store.Record) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, rec := range catalog {
		cat := strings.ToLower(rec.Category)
		if cat == "" {
			continue
		}
		if _, ok := seen[cat]; ok {
			continue
		}
		seen[cat] = struct{}{}
		out = append(out, cat)
	}
	return out
}

// embeddingText is the canonical per-record index text: name, category,
// then every attribute value in catalog order.
func embeddingText(rec store.Record) string {
	parts := make([]string, 0, 2+rec.Attributes.Len())
	parts = append(parts, rec.Name, rec.Category)
	parts = append(parts, rec.Attributes.Values()...)
	return strings.ToLower(strings.Join(parts, " "))
}
