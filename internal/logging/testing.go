// internal/logging/testing.go
package logging

import (
	"reflect"
	"regexp"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestLogger records every entry in memory so tests can assert on what a
// component logged without parsing encoder output.
type TestLogger struct {
	*Logger
	observed *observer.ObservedLogs
}

// NewTestLogger returns a logger capturing all levels down to trace.
// Entries skip the encoder, so fields arrive exactly as the call site
// built them.
func NewTestLogger() *TestLogger {
	core, observed := observer.New(TraceLevel)
	return &TestLogger{
		Logger: &Logger{
			zap:    zap.New(core),
			config: NewDefaultConfig(),
		},
		observed: observed,
	}
}

// All returns every captured entry in log order.
func (t *TestLogger) All() []observer.LoggedEntry {
	return t.observed.All()
}

// FilterMessage returns the captured entries whose message contains msg.
func (t *TestLogger) FilterMessage(msg string) *observer.ObservedLogs {
	return t.observed.FilterMessage(msg)
}

// Reset discards all captured entries.
func (t *TestLogger) Reset() {
	t.observed.TakeAll()
}

// AssertLogged fails tb unless an entry at level contains msgContains.
func (t *TestLogger) AssertLogged(tb testing.TB, level zapcore.Level, msgContains string) {
	tb.Helper()
	for _, entry := range t.observed.All() {
		if entry.Level == level && strings.Contains(entry.Message, msgContains) {
			return
		}
	}
	tb.Errorf("expected log at %v containing %q, logs: %+v", level, msgContains, t.observed.All())
}

// AssertNotLogged fails tb if any entry at level contains msgContains.
func (t *TestLogger) AssertNotLogged(tb testing.TB, level zapcore.Level, msgContains string) {
	tb.Helper()
	for _, entry := range t.observed.All() {
		if entry.Level == level && strings.Contains(entry.Message, msgContains) {
			tb.Errorf("unexpected log at %v containing %q", level, msgContains)
		}
	}
}

// AssertField fails tb unless some entry matching msg carries a field
// with the given key and value.
func (t *TestLogger) AssertField(tb testing.TB, msg, key string, expected interface{}) {
	tb.Helper()
	for _, entry := range t.observed.FilterMessage(msg).All() {
		for _, field := range entry.Context {
			if field.Key == key && fieldEquals(field, expected) {
				return
			}
		}
	}
	tb.Errorf("field %q=%v not found in message %q", key, expected, msg)
}

// fieldEquals compares an observed field against an expected value,
// unwrapping the zap field representation for the common scalar kinds.
func fieldEquals(field zapcore.Field, want interface{}) bool {
	switch field.Type {
	case zapcore.StringType:
		s, ok := want.(string)
		return ok && field.String == s
	case zapcore.Int64Type, zapcore.Int32Type, zapcore.Int16Type, zapcore.Int8Type:
		switch v := want.(type) {
		case int:
			return field.Integer == int64(v)
		case int64:
			return field.Integer == v
		}
		return false
	case zapcore.BoolType:
		b, ok := want.(bool)
		return ok && (field.Integer == 1) == b
	default:
		return reflect.DeepEqual(field.Interface, want)
	}
}

// secretScanner applies the default redaction rules to captured entries.
// Reusing the config keeps this helper and the production encoder in
// agreement about what counts as sensitive.
type secretScanner struct {
	keys     []string
	patterns []*regexp.Regexp
}

func newSecretScanner() *secretScanner {
	rules := NewDefaultConfig().Redaction
	s := &secretScanner{keys: make([]string, 0, len(rules.Fields))}
	for _, key := range rules.Fields {
		s.keys = append(s.keys, strings.ToLower(key))
	}
	for _, pattern := range rules.Patterns {
		s.patterns = append(s.patterns, regexp.MustCompile(pattern))
	}
	return s
}

func (s *secretScanner) sensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, k := range s.keys {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

func (s *secretScanner) matchesPattern(val string) bool {
	for _, re := range s.patterns {
		if re.MatchString(val) {
			return true
		}
	}
	return false
}

// AssertNoSecrets fails tb if any captured entry leaked a secret: a
// message or string field shaped like a credential, or a sensitive-keyed
// string field whose value is not a redaction marker. Fields built with
// Secret or RedactedString pass.
func (t *TestLogger) AssertNoSecrets(tb testing.TB) {
	tb.Helper()
	scan := newSecretScanner()

	for _, entry := range t.observed.All() {
		if scan.matchesPattern(entry.Message) {
			tb.Errorf("secret-shaped text in message: %q", entry.Message)
		}
		for _, field := range entry.Context {
			if field.Type != zapcore.StringType {
				continue
			}
			if scan.sensitiveKey(field.Key) && field.String != "" && !redactionMarker(field.String) {
				tb.Errorf("sensitive field %q logged in the clear: %q", field.Key, field.String)
			}
			if scan.matchesPattern(field.String) {
				tb.Errorf("secret-shaped text in field %q: %q", field.Key, field.String)
			}
		}
	}
}

// AssertTraceCorrelation fails tb unless some entry matching msg carries
// a trace_id field, meaning the call site passed a context with an
// active span.
func (t *TestLogger) AssertTraceCorrelation(tb testing.TB, msg string) {
	tb.Helper()
	for _, entry := range t.observed.FilterMessage(msg).All() {
		for _, field := range entry.Context {
			if field.Key == "trace_id" {
				return
			}
		}
	}
	tb.Errorf("message %q missing trace_id", msg)
}
