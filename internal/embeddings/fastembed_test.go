//go:build cgo

package embeddings

import (
	"context"
	"errors"
	"os"
	"testing"
)

func skipWithoutONNX(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping FastEmbed test in short mode")
	}
	if _, err := os.Stat("/usr/lib/libonnxruntime.so"); os.IsNotExist(err) {
		if os.Getenv("ONNX_PATH") == "" {
			t.Skip("ONNX runtime not available")
		}
	}
}

func TestNewFastEmbedProvider(t *testing.T) {
	skipWithoutONNX(t)

	tests := []struct {
		name    string
		cfg     FastEmbedConfig
		wantDim int
	}{
		{
			name:    "default model",
			cfg:     FastEmbedConfig{Model: "BAAI/bge-small-en-v1.5"},
			wantDim: 384,
		},
		{
			name:    "fastembed model name",
			cfg:     FastEmbedConfig{Model: "fast-bge-small-en-v1.5"},
			wantDim: 384,
		},
		{
			name:    "base model",
			cfg:     FastEmbedConfig{Model: "BAAI/bge-base-en-v1.5"},
			wantDim: 768,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := NewFastEmbedProvider(tt.cfg)
			if err != nil {
				t.Fatalf("NewFastEmbedProvider() error = %v", err)
			}
			defer provider.Close()

			if provider.Dimension() != tt.wantDim {
				t.Errorf("Dimension() = %d, want %d", provider.Dimension(), tt.wantDim)
			}
		})
	}
}

func TestNewFastEmbedProvider_UnknownModel(t *testing.T) {
	_, err := NewFastEmbedProvider(FastEmbedConfig{Model: "nonexistent-model"})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestFastEmbedProvider_EmbedDocuments(t *testing.T) {
	skipWithoutONNX(t)

	provider, err := NewFastEmbedProvider(FastEmbedConfig{
		Model: "BAAI/bge-small-en-v1.5",
	})
	if err != nil {
		t.Fatalf("NewFastEmbedProvider() error = %v", err)
	}
	defer provider.Close()

	ctx := context.Background()

	t.Run("single document", func(t *testing.T) {
		embeddings, err := provider.EmbedDocuments(ctx, []string{"dog food"})
		if err != nil {
			t.Fatalf("EmbedDocuments() error = %v", err)
		}
		if len(embeddings) != 1 {
			t.Errorf("expected 1 embedding, got %d", len(embeddings))
		}
		if len(embeddings[0]) != 384 {
			t.Errorf("expected 384 dimensions, got %d", len(embeddings[0]))
		}
	})

	t.Run("multiple documents", func(t *testing.T) {
		texts := []string{"dog food royal canin", "cat toy mouse", "bird cage large"}
		embeddings, err := provider.EmbedDocuments(ctx, texts)
		if err != nil {
			t.Fatalf("EmbedDocuments() error = %v", err)
		}
		if len(embeddings) != 3 {
			t.Errorf("expected 3 embeddings, got %d", len(embeddings))
		}
	})
}

// The validation and lifecycle paths run before any model access, so they
// are exercised without ONNX present.

func TestFastEmbedProvider_EmptyInput(t *testing.T) {
	p := &FastEmbedProvider{dimension: 384, batchSize: 256}

	if _, err := p.EmbedDocuments(context.Background(), nil); !errors.Is(err, ErrEmptyInput) {
		t.Errorf("EmbedDocuments(nil) error = %v, want ErrEmptyInput", err)
	}
	if _, err := p.EmbedQuery(context.Background(), ""); !errors.Is(err, ErrEmptyInput) {
		t.Errorf("EmbedQuery(\"\") error = %v, want ErrEmptyInput", err)
	}
}

func TestFastEmbedProvider_ContextCanceled(t *testing.T) {
	p := &FastEmbedProvider{dimension: 384, batchSize: 256}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := p.EmbedDocuments(ctx, []string{"text"}); !errors.Is(err, context.Canceled) {
		t.Errorf("EmbedDocuments() error = %v, want context.Canceled", err)
	}
	if _, err := p.EmbedQuery(ctx, "text"); !errors.Is(err, context.Canceled) {
		t.Errorf("EmbedQuery() error = %v, want context.Canceled", err)
	}
}

func TestFastEmbedProvider_ClosedRejectsEncodes(t *testing.T) {
	p := &FastEmbedProvider{dimension: 384, batchSize: 256}

	if err := p.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if _, err := p.EmbedDocuments(context.Background(), []string{"text"}); !errors.Is(err, ErrProviderClosed) {
		t.Errorf("EmbedDocuments() after Close error = %v, want ErrProviderClosed", err)
	}
	if _, err := p.EmbedQuery(context.Background(), "text"); !errors.Is(err, ErrProviderClosed) {
		t.Errorf("EmbedQuery() after Close error = %v, want ErrProviderClosed", err)
	}

	// Close is idempotent
	if err := p.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestFastEmbedModelDimension(t *testing.T) {
	tests := []struct {
		model   string
		wantDim int
		wantOK  bool
	}{
		{"BAAI/bge-small-en-v1.5", 384, true},
		{"fast-bge-small-en-v1.5", 384, true},
		{"BAAI/bge-base-en-v1.5", 768, true},
		{"sentence-transformers/all-MiniLM-L6-v2", 384, true},
		{"BAAI/bge-small-zh-v1.5", 512, true},
		{"unknown-model", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			dim, ok := fastEmbedModelDimension(tt.model)
			if ok != tt.wantOK {
				t.Fatalf("fastEmbedModelDimension(%q) ok = %v, want %v", tt.model, ok, tt.wantOK)
			}
			if dim != tt.wantDim {
				t.Errorf("fastEmbedModelDimension(%q) = %d, want %d", tt.model, dim, tt.wantDim)
			}
		})
	}
}
