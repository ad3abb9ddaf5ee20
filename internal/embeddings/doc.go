// Package embeddings provides embedding generation via multiple providers.
//
// Supports FastEmbed (local ONNX inference) and OpenAI-compatible HTTP
// providers (OpenAI itself or a TEI server). A factory selects the provider
// at runtime and the Service wrapper adds per-call timeouts and metrics.
//
// The process constructs exactly one provider; all stores share it.
package embeddings
