//go:build cgo

package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/storefrontd/internal/embeddings"
)

// ensureONNXRuntime makes sure the ONNX runtime library is present before
// the fastembed provider starts, downloading it on first run.
func ensureONNXRuntime(ctx context.Context, logger *zap.Logger) error {
	_, err := embeddings.EnsureONNXRuntime(ctx, logger)
	return err
}
