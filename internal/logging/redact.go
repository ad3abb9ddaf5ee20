// internal/logging/redact.go
package logging

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/fyrsmithlabs/storefrontd/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	redactedValue        = "[REDACTED]"
	redactedPatternValue = "[REDACTED:pattern]"

	// maxPatternLen bounds configured redaction regexes. A runaway
	// pattern runs against every string field of every entry.
	maxPatternLen = 200
)

// redactionMarker reports whether s is a substitution value produced by
// this package: "[REDACTED]", "[REDACTED:pattern]", or "[REDACTED:<len>]".
func redactionMarker(s string) bool {
	return strings.HasPrefix(s, "[REDACTED")
}

// secretMarshaler logs a config.Secret as its length only. Store configs
// carry bot tokens and API keys through this type.
type secretMarshaler struct {
	key string
	val config.Secret
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (s *secretMarshaler) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString(s.key, fmt.Sprintf("[REDACTED:%d]", len(s.val.Value())))
	return nil
}

// Secret builds a field for a config.Secret that logs length, not value.
func Secret(key string, val config.Secret) zap.Field {
	return zap.Object(key, &secretMarshaler{key: key, val: val})
}

// RedactedString builds a string field that logs length, not value. For
// values that arrive as plain strings, like the Authorization header on
// admin requests.
func RedactedString(key, val string) zap.Field {
	return zap.String(key, "[REDACTED:"+strconv.Itoa(len(val))+"]")
}

// RedactingEncoder intercepts field writes and blanks anything that
// looks like a credential, either by field name (bot_token, api_key)
// or by value shape (Telegram token, bearer header). It is the last
// line behind the config.Secret type; a token that reaches a log call
// as a plain string still never hits stdout.
type RedactingEncoder struct {
	zapcore.Encoder
	redactFields map[string]bool
	redactRegex  []*regexp.Regexp
}

// NewRedactingEncoder wraps base with the redaction rules from cfg.
// Pattern compilation failures surface here, at logger construction,
// not on the first matching entry.
func NewRedactingEncoder(base zapcore.Encoder, cfg RedactionConfig) (*RedactingEncoder, error) {
	if !cfg.Enabled {
		return &RedactingEncoder{Encoder: base}, nil
	}

	fields := make(map[string]bool, len(cfg.Fields))
	for _, f := range cfg.Fields {
		fields[strings.ToLower(f)] = true
	}

	patterns := make([]*regexp.Regexp, 0, len(cfg.Patterns))
	for _, p := range cfg.Patterns {
		if len(p) > maxPatternLen {
			return nil, fmt.Errorf("redaction pattern too long (max %d chars): %q", maxPatternLen, p)
		}
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redaction pattern %q: %w", p, err)
		}
		patterns = append(patterns, re)
	}

	return &RedactingEncoder{
		Encoder:      base,
		redactFields: fields,
		redactRegex:  patterns,
	}, nil
}

func (e *RedactingEncoder) shouldRedactKey(key string) bool {
	return e.redactFields[strings.ToLower(key)]
}

func (e *RedactingEncoder) matchesSecretPattern(val string) bool {
	for _, re := range e.redactRegex {
		if re.MatchString(val) {
			return true
		}
	}
	return false
}

// AddString redacts by field name first, then by value shape.
func (e *RedactingEncoder) AddString(key, val string) {
	switch {
	case e.shouldRedactKey(key):
		e.Encoder.AddString(key, redactedValue)
	case e.matchesSecretPattern(val):
		e.Encoder.AddString(key, redactedPatternValue)
	default:
		e.Encoder.AddString(key, val)
	}
}

// AddByteString redacts by field name.
func (e *RedactingEncoder) AddByteString(key string, val []byte) {
	if e.shouldRedactKey(key) {
		e.Encoder.AddByteString(key, []byte(redactedValue))
		return
	}
	e.Encoder.AddByteString(key, val)
}

// AddBinary redacts by field name.
func (e *RedactingEncoder) AddBinary(key string, val []byte) {
	if e.shouldRedactKey(key) {
		e.Encoder.AddBinary(key, []byte(redactedValue))
		return
	}
	e.Encoder.AddBinary(key, val)
}

// AddReflected replaces the whole reflected value when the key is
// sensitive. Nested secrets inside a reflected struct under a harmless
// key are not inspected; those go through zap.Object with their own
// marshaler.
func (e *RedactingEncoder) AddReflected(key string, val interface{}) error {
	if e.shouldRedactKey(key) {
		e.Encoder.AddString(key, redactedValue)
		return nil
	}
	return e.Encoder.AddReflected(key, val)
}

// AddArray replaces the whole array when the key is sensitive.
func (e *RedactingEncoder) AddArray(key string, arr zapcore.ArrayMarshaler) error {
	if e.shouldRedactKey(key) {
		e.Encoder.AddString(key, redactedValue)
		return nil
	}
	return e.Encoder.AddArray(key, arr)
}

// AddObject replaces the whole object when the key is sensitive.
func (e *RedactingEncoder) AddObject(key string, obj zapcore.ObjectMarshaler) error {
	if e.shouldRedactKey(key) {
		e.Encoder.AddString(key, redactedValue)
		return nil
	}
	return e.Encoder.AddObject(key, obj)
}

// Clone copies the encoder. Rule maps are immutable after construction
// and shared between clones.
func (e *RedactingEncoder) Clone() zapcore.Encoder {
	return &RedactingEncoder{
		Encoder:      e.Encoder.Clone(),
		redactFields: e.redactFields,
		redactRegex:  e.redactRegex,
	}
}
