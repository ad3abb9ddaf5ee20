// internal/config/types.go
package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// redactedPlaceholder replaces secret values in every serialized form.
// The logging package recognizes this prefix when scanning output for leaks.
const redactedPlaceholder = "[REDACTED]"

// Duration wraps time.Duration so config files and env vars can use
// human-readable values like "30s" or "5m". Negative durations are
// rejected at parse time; no timeout or interval in this daemon is
// meaningful below zero.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	if parsed < 0 {
		return fmt.Errorf("duration cannot be negative: %s", text)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration().String()), nil
}

// MarshalJSON implements json.Marshaler, rendering the duration as a
// string ("1m30s") rather than nanoseconds.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Duration().String())
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Secret holds credentials loaded from config: bot tokens, LLM and
// translation API keys. Every serialization path, including fmt verbs,
// yields the redacted form; only Value returns the real string. Code
// that needs the credential (the Telegram client, API request headers)
// calls Value at the point of use and nowhere else.
type Secret string

// redacted returns the placeholder for a set secret and "" otherwise,
// so empty optional credentials stay distinguishable from set ones.
func (s Secret) redacted() string {
	if s == "" {
		return ""
	}
	return redactedPlaceholder
}

// String implements fmt.Stringer. Always returns the redacted form.
func (s Secret) String() string {
	return s.redacted()
}

// GoString implements fmt.GoStringer so %#v does not leak either.
func (s Secret) GoString() string {
	return "Secret(" + redactedPlaceholder + ")"
}

// Value returns the actual secret value.
func (s Secret) Value() string {
	return string(s)
}

// IsSet returns true if the secret has a non-empty value.
func (s Secret) IsSet() bool {
	return s != ""
}

// MarshalJSON implements json.Marshaler. Always returns the redacted form.
func (s Secret) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.redacted())
}

// MarshalText implements encoding.TextMarshaler. Always returns the redacted form.
func (s Secret) MarshalText() ([]byte, error) {
	return []byte(s.redacted()), nil
}

// MarshalYAML implements yaml.Marshaler. Always returns the redacted form.
func (s Secret) MarshalYAML() (interface{}, error) {
	return s.redacted(), nil
}

// UnmarshalJSON implements json.Unmarshaler. Accepts raw secret values.
func (s *Secret) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = Secret(raw)
	return nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Accepts raw secret values.
func (s *Secret) UnmarshalText(text []byte) error {
	*s = Secret(text)
	return nil
}
