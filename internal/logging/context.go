// internal/logging/context.go
package logging

import (
	"context"
	"fmt"
	"regexp"
	"unicode/utf8"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type (
	storeCtxKey   struct{}
	chatCtxKey    struct{}
	requestCtxKey struct{}
	loggerCtxKey  struct{}
)

// maxIDLen bounds slugs and request ids carried on contexts. Values
// longer than this never come from our own plumbing.
const maxIDLen = 128

var (
	// storeSlugPattern mirrors the registry's directory naming rules.
	storeSlugPattern = regexp.MustCompile(`^[a-z0-9_-]+$`)
	// idPattern covers request ids: alphanumeric, hyphen, underscore.
	idPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

// ContextFields extracts correlation fields from ctx: the active trace,
// the store slug, the Telegram chat, and the request id. Level methods
// on Logger call this for every entry.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 6)

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
		if sc.IsSampled() {
			fields = append(fields, zap.Bool("trace_sampled", true))
		}
	}

	if slug := StoreFromContext(ctx); slug != "" {
		fields = append(fields, zap.String("store.slug", slug))
	}
	if chatID, ok := ChatIDFromContext(ctx); ok {
		fields = append(fields, zap.Int64("chat.id", chatID))
	}
	if requestID := RequestIDFromContext(ctx); requestID != "" {
		fields = append(fields, zap.String("request.id", requestID))
	}

	return fields
}

// WithStore attaches a store slug to ctx. Panics on an empty or
// malformed slug; callers pass slugs the registry has already accepted.
func WithStore(ctx context.Context, slug string) context.Context {
	if slug == "" {
		panic("logging: store slug cannot be empty")
	}
	if len(slug) > maxIDLen || !storeSlugPattern.MatchString(slug) {
		panic(fmt.Sprintf("logging: invalid store slug %q", slug))
	}
	return context.WithValue(ctx, storeCtxKey{}, slug)
}

// StoreFromContext returns the store slug on ctx, or "".
func StoreFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(storeCtxKey{}).(string); ok {
		return s
	}
	return ""
}

// WithChatID attaches a Telegram chat id to ctx.
func WithChatID(ctx context.Context, chatID int64) context.Context {
	return context.WithValue(ctx, chatCtxKey{}, chatID)
}

// ChatIDFromContext returns the chat id on ctx, if one was attached.
func ChatIDFromContext(ctx context.Context) (int64, bool) {
	if id, ok := ctx.Value(chatCtxKey{}).(int64); ok {
		return id, true
	}
	return 0, false
}

// WithRequestID attaches a request id to ctx. Panics on ids that fail
// validation; the HTTP layer filters client-supplied ids first.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if err := validateID(requestID, "requestID"); err != nil {
		panic(fmt.Sprintf("logging: %v", err))
	}
	return context.WithValue(ctx, requestCtxKey{}, requestID)
}

// RequestIDFromContext returns the request id on ctx, or "".
func RequestIDFromContext(ctx context.Context) string {
	if r, ok := ctx.Value(requestCtxKey{}).(string); ok {
		return r
	}
	return ""
}

func validateID(id, name string) error {
	if id == "" {
		return fmt.Errorf("%s cannot be empty", name)
	}
	if !utf8.ValidString(id) {
		return fmt.Errorf("%s contains invalid UTF-8", name)
	}
	if len(id) > maxIDLen {
		return fmt.Errorf("%s exceeds max length %d", name, maxIDLen)
	}
	if !idPattern.MatchString(id) {
		return fmt.Errorf("%s contains invalid characters (must be alphanumeric, hyphen, underscore)", name)
	}
	return nil
}

// WithLogger stores logger on ctx for layers that cannot take one as a
// parameter.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// FromContext returns the logger on ctx, or a nop logger.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(*Logger); ok {
		return l
	}
	return &Logger{zap: zap.NewNop(), config: NewDefaultConfig()}
}
