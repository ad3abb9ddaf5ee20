//go:build !cgo

package main

import (
	"context"

	"go.uber.org/zap"
)

// ensureONNXRuntime is a no-op without cgo. The fastembed provider cannot
// be constructed in this build, and provider construction reports that.
func ensureONNXRuntime(ctx context.Context, logger *zap.Logger) error {
	return nil
}
