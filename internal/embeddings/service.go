package embeddings

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// DefaultEmbedTimeout bounds a single embedding call through the Service.
const DefaultEmbedTimeout = 30 * time.Second

// ServiceConfig holds configuration for the embedding service wrapper.
type ServiceConfig struct {
	// Model is the model label attached to metrics.
	Model string

	// Timeout is the per-call ceiling. Defaults to DefaultEmbedTimeout.
	Timeout time.Duration
}

// Service wraps a Provider with per-call timeouts and metrics.
// It implements Provider itself, so callers never need to know
// whether they hold the raw provider or the instrumented one.
type Service struct {
	provider Provider
	model    string
	timeout  time.Duration
	metrics  *Metrics
}

// NewService creates an instrumented wrapper around the given provider.
func NewService(provider Provider, cfg ServiceConfig, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultEmbedTimeout
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	return &Service{
		provider: provider,
		model:    model,
		timeout:  timeout,
		metrics:  NewMetrics(logger),
	}
}

// EmbedDocuments generates embeddings for multiple texts.
func (s *Service) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	var genErr error
	defer func() {
		s.metrics.RecordGeneration(ctx, s.model, "embed_documents", time.Since(start), len(texts), genErr)
	}()

	if len(texts) == 0 {
		genErr = fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
		return nil, genErr
	}

	vectors, err := s.provider.EmbedDocuments(ctx, texts)
	if err != nil {
		genErr = err
		return nil, genErr
	}

	return vectors, nil
}

// EmbedQuery generates an embedding for a single query.
func (s *Service) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	var genErr error
	defer func() {
		s.metrics.RecordGeneration(ctx, s.model, "embed_query", time.Since(start), 1, genErr)
	}()

	if text == "" {
		genErr = fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
		return nil, genErr
	}

	vector, err := s.provider.EmbedQuery(ctx, text)
	if err != nil {
		genErr = err
		return nil, genErr
	}

	return vector, nil
}

// Dimension returns the embedding dimension of the wrapped provider.
func (s *Service) Dimension() int {
	return s.provider.Dimension()
}

// Close closes the wrapped provider.
func (s *Service) Close() error {
	return s.provider.Close()
}
