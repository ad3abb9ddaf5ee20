//go:build cgo

package embeddings

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	fastembed "github.com/anush008/fastembed-go"
)

// FastEmbedConfig holds configuration for the FastEmbed provider.
type FastEmbedConfig struct {
	// Model is the embedding model to use.
	// Supported: BAAI/bge-small-en-v1.5 (default), BAAI/bge-base-en-v1.5,
	// sentence-transformers/all-MiniLM-L6-v2, etc.
	Model string

	// CacheDir is the directory to cache downloaded model files.
	// Defaults to ./local_cache.
	CacheDir string

	// MaxLength is the maximum input sequence length. Defaults to 512.
	MaxLength int

	// BatchSize is the encode batch size for document embedding.
	// Defaults to 256.
	BatchSize int

	// ShowProgress enables download progress bars. Off by default,
	// which is what a daemon wants.
	ShowProgress bool
}

func (c FastEmbedConfig) withDefaults() FastEmbedConfig {
	if c.CacheDir == "" {
		c.CacheDir = filepath.Join(".", "local_cache")
	}
	if c.MaxLength == 0 {
		c.MaxLength = 512
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 256
	}
	return c
}

// FastEmbedProvider generates embeddings with local ONNX models.
// Encodes share the read lock; Close takes the write lock, so in-flight
// encodes finish before the model is destroyed.
type FastEmbedProvider struct {
	model     *fastembed.FlagEmbedding
	modelName string
	dimension int
	batchSize int
	mu        sync.RWMutex
	closed    bool
}

// modelMapping maps friendly model names to fastembed model constants.
var modelMapping = map[string]fastembed.EmbeddingModel{
	"BAAI/bge-small-en-v1.5":                 fastembed.BGESmallENV15,
	"BAAI/bge-small-en":                      fastembed.BGESmallEN,
	"BAAI/bge-base-en-v1.5":                  fastembed.BGEBaseENV15,
	"BAAI/bge-base-en":                       fastembed.BGEBaseEN,
	"BAAI/bge-small-zh-v1.5":                 fastembed.BGESmallZH,
	"sentence-transformers/all-MiniLM-L6-v2": fastembed.AllMiniLML6V2,
	// Also accept the fastembed model names directly
	"fast-bge-small-en-v1.5": fastembed.BGESmallENV15,
	"fast-bge-small-en":      fastembed.BGESmallEN,
	"fast-bge-base-en-v1.5":  fastembed.BGEBaseENV15,
	"fast-bge-base-en":       fastembed.BGEBaseEN,
	"fast-bge-small-zh-v1.5": fastembed.BGESmallZH,
	"fast-all-MiniLM-L6-v2":  fastembed.AllMiniLML6V2,
}

// modelDimensions maps fastembed models to their embedding dimensions.
var modelDimensions = map[fastembed.EmbeddingModel]int{
	fastembed.BGESmallENV15: 384,
	fastembed.BGESmallEN:    384,
	fastembed.BGEBaseENV15:  768,
	fastembed.BGEBaseEN:     768,
	fastembed.BGESmallZH:    512,
	fastembed.AllMiniLML6V2: 384,
}

// resolveModel accepts both friendly and native fastembed model names.
func resolveModel(name string) (fastembed.EmbeddingModel, error) {
	if m, ok := modelMapping[name]; ok {
		return m, nil
	}
	m := fastembed.EmbeddingModel(name)
	if _, known := modelDimensions[m]; known {
		return m, nil
	}
	return "", fmt.Errorf("%w: unsupported model %q (supported: BAAI/bge-small-en-v1.5, BAAI/bge-base-en-v1.5, sentence-transformers/all-MiniLM-L6-v2)", ErrInvalidConfig, name)
}

// fastEmbedModelDimension returns the dimension for a known model name,
// accepting both friendly and native fastembed names.
func fastEmbedModelDimension(model string) (int, bool) {
	m, err := resolveModel(model)
	if err != nil {
		return 0, false
	}
	return modelDimensions[m], true
}

// NewFastEmbedProvider loads an ONNX embedding model. The first load of
// a model downloads it into the cache dir, which can take a while.
func NewFastEmbedProvider(cfg FastEmbedConfig) (*FastEmbedProvider, error) {
	model, err := resolveModel(cfg.Model)
	if err != nil {
		return nil, err
	}

	cfg = cfg.withDefaults()
	showProgress := cfg.ShowProgress
	flagEmbed, err := fastembed.NewFlagEmbedding(&fastembed.InitOptions{
		Model:                model,
		CacheDir:             cfg.CacheDir,
		MaxLength:            cfg.MaxLength,
		ShowDownloadProgress: &showProgress,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing FastEmbed: %w", err)
	}

	return &FastEmbedProvider{
		model:     flagEmbed,
		modelName: cfg.Model,
		dimension: modelDimensions[model],
		batchSize: cfg.BatchSize,
	}, nil
}

// acquire takes the shared lock after checking the context and that the
// provider is still open. The returned release func drops the lock.
func (p *FastEmbedProvider) acquire(ctx context.Context) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return nil, ErrProviderClosed
	}
	return p.mu.RUnlock, nil
}

// EmbedDocuments embeds texts with the "passage: " prefix BGE models
// expect for documents.
func (p *FastEmbedProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}

	release, err := p.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	embeddings, err := p.model.PassageEmbed(texts, p.batchSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	return embeddings, nil
}

// EmbedQuery embeds one search query with the "query: " prefix BGE
// models expect for queries.
func (p *FastEmbedProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}

	release, err := p.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	embedding, err := p.model.QueryEmbed(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	return embedding, nil
}

// Dimension returns the embedding dimension for the current model.
func (p *FastEmbedProvider) Dimension() int {
	return p.dimension
}

// Close releases the ONNX model. Further encodes return
// ErrProviderClosed. Close is idempotent.
func (p *FastEmbedProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	if p.model != nil {
		return p.model.Destroy()
	}
	return nil
}
