//go:build !cgo

package embeddings

import (
	"context"
	"errors"
)

// ErrFastEmbedNotAvailable is returned when the binary was built without
// CGO, which the ONNX runtime requires.
var ErrFastEmbedNotAvailable = errors.New("fastembed: not available (binary built without CGO support, use the openai provider instead)")

// FastEmbedConfig mirrors the CGO build so configs parse identically.
type FastEmbedConfig struct {
	Model        string
	CacheDir     string
	MaxLength    int
	BatchSize    int
	ShowProgress bool
}

// FastEmbedProvider is a stub for non-CGO builds; every operation
// reports ErrFastEmbedNotAvailable.
type FastEmbedProvider struct{}

func NewFastEmbedProvider(FastEmbedConfig) (*FastEmbedProvider, error) {
	return nil, ErrFastEmbedNotAvailable
}

func (p *FastEmbedProvider) EmbedDocuments(context.Context, []string) ([][]float32, error) {
	return nil, ErrFastEmbedNotAvailable
}

func (p *FastEmbedProvider) EmbedQuery(context.Context, string) ([]float32, error) {
	return nil, ErrFastEmbedNotAvailable
}

func (p *FastEmbedProvider) Dimension() int { return 0 }

func (p *FastEmbedProvider) Close() error { return nil }

// knownModelDimensions mirrors the CGO build's model tables so dimension
// detection keeps working for OpenAI-compatible servers that host these
// models.
var knownModelDimensions = map[string]int{
	"BAAI/bge-small-en-v1.5":                 384,
	"BAAI/bge-small-en":                      384,
	"BAAI/bge-base-en-v1.5":                  768,
	"BAAI/bge-base-en":                       768,
	"BAAI/bge-small-zh-v1.5":                 512,
	"sentence-transformers/all-MiniLM-L6-v2": 384,
	"fast-bge-small-en-v1.5":                 384,
	"fast-bge-small-en":                      384,
	"fast-bge-base-en-v1.5":                  768,
	"fast-bge-base-en":                       768,
	"fast-bge-small-zh-v1.5":                 512,
	"fast-all-MiniLM-L6-v2":                  384,
}

func fastEmbedModelDimension(model string) (int, bool) {
	dim, ok := knownModelDimensions[model]
	return dim, ok
}
