package embeddings

import (
	"context"

	chromem "github.com/philippgille/chromem-go"
)

// ChromemEmbeddingFunc adapts a Provider to chromem-go's embedding callback,
// so persisted per-store collections are queried with the same shared model
// that built them.
func ChromemEmbeddingFunc(p Provider) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return p.EmbedQuery(ctx, text)
	}
}
