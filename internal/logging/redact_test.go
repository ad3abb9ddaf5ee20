package logging

import (
	"strings"
	"testing"

	"github.com/fyrsmithlabs/storefrontd/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

const leakedToken = "123456789:AAEhBOweik6ad9r_QXMENQjcrGbqCr4K-pc"

func TestSecret_LogsLengthOnly(t *testing.T) {
	enc := zapcore.NewMapObjectEncoder()
	Secret("bot_token", config.Secret(leakedToken)).AddTo(enc)

	obj, ok := enc.Fields["bot_token"].(map[string]interface{})
	require.True(t, ok, "expected nested object for bot_token")
	assert.Equal(t, "[REDACTED:45]", obj["bot_token"])
}

func TestRedactedString(t *testing.T) {
	field := RedactedString("authorization", "Bearer sk-ant-12345")

	assert.Equal(t, "authorization", field.Key)
	assert.Equal(t, "[REDACTED:19]", field.String)
}

func TestNewRedactingEncoder_DefaultRules(t *testing.T) {
	cfg := NewDefaultConfig()

	encoder, err := NewRedactingEncoder(newEncoder("json"), cfg.Redaction)
	require.NoError(t, err)
	require.NotNil(t, encoder)

	assert.Len(t, encoder.redactFields, len(cfg.Redaction.Fields))
	assert.Len(t, encoder.redactRegex, len(cfg.Redaction.Patterns))
}

func TestRedactingEncoder_Output(t *testing.T) {
	encoder, err := NewRedactingEncoder(newEncoder("json"), NewDefaultConfig().Redaction)
	require.NoError(t, err)

	encoder.AddString("bot_token", leakedToken)
	encoder.AddString("note", "token "+leakedToken+" rejected")
	encoder.AddString("auth", "Bearer abc123")
	encoder.AddString("store", "acme-pets")

	buf, err := encoder.EncodeEntry(zapcore.Entry{
		Level:   zapcore.InfoLevel,
		Message: "store loaded",
	}, nil)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"bot_token":"[REDACTED]"`)
	assert.Contains(t, out, `"note":"[REDACTED:pattern]"`)
	assert.Contains(t, out, `"auth":"[REDACTED:pattern]"`)
	assert.Contains(t, out, `"store":"acme-pets"`)
	assert.NotContains(t, out, leakedToken)
}

func TestRedactingEncoder_KeyMatchIsCaseInsensitive(t *testing.T) {
	encoder, err := NewRedactingEncoder(newEncoder("json"), NewDefaultConfig().Redaction)
	require.NoError(t, err)

	encoder.AddString("Bot_Token", "whatever")

	buf, err := encoder.EncodeEntry(zapcore.Entry{Message: "x"}, nil)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"Bot_Token":"[REDACTED]"`)
}

func TestNewRedactingEncoder_InvalidPattern(t *testing.T) {
	cfg := RedactionConfig{
		Enabled:  true,
		Fields:   []string{"bot_token"},
		Patterns: []string{`(?i)bearer\s+\S+`, "[invalid("},
	}

	encoder, err := NewRedactingEncoder(newEncoder("json"), cfg)
	require.Error(t, err)
	assert.Nil(t, encoder)
	assert.Contains(t, err.Error(), "invalid redaction pattern")
	assert.Contains(t, err.Error(), "[invalid(")
}

func TestNewRedactingEncoder_PatternTooLong(t *testing.T) {
	cfg := RedactionConfig{
		Enabled:  true,
		Patterns: []string{strings.Repeat("a", maxPatternLen+1)},
	}

	encoder, err := NewRedactingEncoder(newEncoder("json"), cfg)
	require.Error(t, err)
	assert.Nil(t, encoder)
	assert.Contains(t, err.Error(), "pattern too long")
}

func TestNewRedactingEncoder_DisabledSkipsCompilation(t *testing.T) {
	cfg := RedactionConfig{
		Enabled:  false,
		Patterns: []string{"[invalid("},
	}

	encoder, err := NewRedactingEncoder(newEncoder("json"), cfg)
	require.NoError(t, err)
	assert.NotNil(t, encoder)
}

func TestRedactingEncoder_AllFieldKinds(t *testing.T) {
	cfg := RedactionConfig{
		Enabled: true,
		Fields:  []string{"bot_token", "api_key", "certificate", "credentials", "recovery_codes"},
	}

	encoder, err := NewRedactingEncoder(newEncoder("json"), cfg)
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		encoder.AddString("bot_token", leakedToken)
		encoder.AddByteString("api_key", []byte("sk-live-123"))
		encoder.AddBinary("certificate", []byte{0x30, 0x82})
		_ = encoder.AddReflected("store", "acme-pets")
		_ = encoder.AddObject("credentials", zapcore.ObjectMarshalerFunc(func(zapcore.ObjectEncoder) error {
			return nil
		}))
		_ = encoder.AddArray("recovery_codes", zapcore.ArrayMarshalerFunc(func(zapcore.ArrayEncoder) error {
			return nil
		}))
	})

	buf, err := encoder.EncodeEntry(zapcore.Entry{Message: "x"}, nil)
	require.NoError(t, err)

	out := buf.String()
	assert.NotContains(t, out, leakedToken)
	assert.NotContains(t, out, "sk-live-123")
	assert.Contains(t, out, "acme-pets")
}

func TestRedactingEncoder_CloneKeepsRules(t *testing.T) {
	encoder, err := NewRedactingEncoder(newEncoder("json"), NewDefaultConfig().Redaction)
	require.NoError(t, err)

	clone, ok := encoder.Clone().(*RedactingEncoder)
	require.True(t, ok)

	clone.AddString("bot_token", leakedToken)
	buf, err := clone.EncodeEntry(zapcore.Entry{Message: "x"}, nil)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"bot_token":"[REDACTED]"`)
}
