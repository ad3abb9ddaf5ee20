package embeddings

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// OpenAIConfig holds configuration for the OpenAI-compatible provider.
type OpenAIConfig struct {
	// BaseURL is the base URL for the embedding API.
	// For OpenAI: https://api.openai.com/v1
	// For TEI: http://localhost:8080/v1
	BaseURL string

	// Model is the embedding model to use.
	// For OpenAI: text-embedding-3-small, text-embedding-3-large
	// For TEI: whatever model the server was started with
	Model string

	// APIKey is the API key (required for OpenAI, optional for TEI).
	APIKey string
}

// OpenAIProvider generates embeddings through any OpenAI-compatible
// HTTP endpoint via langchaingo.
type OpenAIProvider struct {
	embedder  *embeddings.EmbedderImpl
	modelName string
	dimension int
}

// NewOpenAIProvider creates a provider talking to an OpenAI-compatible API.
func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: base URL required", ErrInvalidConfig)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: model required", ErrInvalidConfig)
	}

	// langchaingo requires a token, use placeholder for servers that
	// do not check one (TEI).
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = "placeholder"
	}

	llm, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithModel(cfg.Model),
		openai.WithToken(apiKey),
	)
	if err != nil {
		return nil, fmt.Errorf("creating OpenAI client: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	return &OpenAIProvider{
		embedder:  embedder,
		modelName: cfg.Model,
		dimension: detectDimensionFromModel(cfg.Model),
	}, nil
}

// EmbedDocuments generates embeddings for multiple texts.
func (p *OpenAIProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}

	vectors, err := p.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	return vectors, nil
}

// EmbedQuery generates an embedding for a single query.
func (p *OpenAIProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}

	vector, err := p.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	return vector, nil
}

// Dimension returns the embedding dimension detected from the model name.
func (p *OpenAIProvider) Dimension() int {
	return p.dimension
}

// Close is a no-op since the provider holds no local resources.
func (p *OpenAIProvider) Close() error {
	return nil
}
