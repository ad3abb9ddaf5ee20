package embeddings

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// DefaultModel is used when no embedding model is configured.
const DefaultModel = "BAAI/bge-small-en-v1.5"

var (
	// ErrEmptyInput indicates empty or nil input texts
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrInvalidConfig indicates invalid provider configuration
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmbeddingFailed indicates embedding generation failure
	ErrEmbeddingFailed = errors.New("embedding generation failed")

	// ErrProviderClosed indicates use of a provider after Close
	ErrProviderClosed = errors.New("embedding provider is closed")
)

// Provider is the interface for embedding providers.
type Provider interface {
	// EmbedDocuments generates embeddings for multiple texts.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	// EmbedQuery generates an embedding for a single query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	// Dimension returns the embedding dimension for the current model.
	Dimension() int
	// Close releases resources held by the provider.
	Close() error
}

// ProviderConfig holds configuration for creating an embedding provider.
type ProviderConfig struct {
	// Provider is the provider type: "fastembed" (default) or "openai".
	Provider string
	// Model is the embedding model name.
	Model string
	// BaseURL is the API base URL (openai provider only). Works for both
	// the OpenAI API and any OpenAI-compatible server such as TEI.
	BaseURL string
	// APIKey authenticates against the API (openai provider; optional for TEI).
	APIKey string
	// CacheDir is the model cache directory (fastembed only).
	CacheDir string
	// BatchSize is the encode batch size (fastembed only).
	BatchSize int
	// ShowProgress enables download progress output (fastembed only).
	ShowProgress bool
}

// NewProvider creates an embedding provider based on the configuration.
func NewProvider(cfg ProviderConfig) (Provider, error) {
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	switch cfg.Provider {
	case "fastembed", "":
		return NewFastEmbedProvider(FastEmbedConfig{
			Model:        model,
			CacheDir:     cfg.CacheDir,
			BatchSize:    cfg.BatchSize,
			ShowProgress: cfg.ShowProgress,
		})
	case "openai":
		return NewOpenAIProvider(OpenAIConfig{
			BaseURL: cfg.BaseURL,
			Model:   model,
			APIKey:  cfg.APIKey,
		})
	default:
		return nil, fmt.Errorf("%w: unknown provider %q (supported: fastembed, openai)", ErrInvalidConfig, cfg.Provider)
	}
}

// detectDimensionFromModel returns the embedding dimension for a model name.
// Falls back to 384 if the model is unknown.
func detectDimensionFromModel(model string) int {
	if dim, ok := fastEmbedModelDimension(model); ok {
		return dim
	}
	switch {
	case strings.Contains(model, "text-embedding-3-large"):
		return 3072
	case strings.Contains(model, "text-embedding-3-small"), strings.Contains(model, "ada-002"):
		return 1536
	case strings.Contains(model, "large"):
		return 1024
	case strings.Contains(model, "base"):
		return 768
	case strings.Contains(model, "small"), strings.Contains(model, "mini"):
		return 384
	default:
		return 384
	}
}
