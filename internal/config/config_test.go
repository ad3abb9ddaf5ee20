package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsOnly(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "./stores", cfg.Stores.Root)
	assert.Equal(t, "fastembed", cfg.Embeddings.Provider)
	assert.Equal(t, "BAAI/bge-small-en-v1.5", cfg.Embeddings.Model)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.InDelta(t, 0.5, cfg.Retrieval.ScoreThreshold, 1e-9)
	assert.Equal(t, 2, cfg.Retrieval.MinQueryLength)
	assert.Equal(t, "https://api.telegram.org", cfg.Telegram.APIBase)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout.Duration())
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Telemetry.Enabled)
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "storefrontd.yaml")
	content := `
server:
  port: 9999
stores:
  root: /var/lib/storefrontd/stores
retrieval:
  top_k: 3
  score_threshold: 0.7
embeddings:
  provider: openai
  base_url: http://tei:8080/v1
  timeout: 3s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "/var/lib/storefrontd/stores", cfg.Stores.Root)
	assert.Equal(t, 3, cfg.Retrieval.TopK)
	assert.InDelta(t, 0.7, cfg.Retrieval.ScoreThreshold, 1e-9)
	assert.Equal(t, "openai", cfg.Embeddings.Provider)
	assert.Equal(t, 3*time.Second, cfg.Embeddings.Timeout.Duration())
	// Unset fields still get defaults.
	assert.Equal(t, 2, cfg.Retrieval.MinQueryLength)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "storefrontd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9000\n"), 0o600))

	t.Setenv("STOREFRONTD_SERVER__PORT", "9001")
	t.Setenv("STOREFRONTD_STORES__ROOT", "/srv/stores")
	t.Setenv("STOREFRONTD_RETRIEVAL__SCORE_THRESHOLD", "0.42")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9001, cfg.Server.Port)
	assert.Equal(t, "/srv/stores", cfg.Stores.Root)
	assert.InDelta(t, 0.42, cfg.Retrieval.ScoreThreshold, 1e-9)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults pass",
			mutate: func(c *Config) {},
		},
		{
			name:    "bad port",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "invalid server port",
		},
		{
			name:    "empty stores root",
			mutate:  func(c *Config) { c.Stores.Root = "" },
			wantErr: "stores.root is required",
		},
		{
			name:    "unknown provider",
			mutate:  func(c *Config) { c.Embeddings.Provider = "word2vec" },
			wantErr: "unknown embeddings provider",
		},
		{
			name:    "threshold out of range",
			mutate:  func(c *Config) { c.Retrieval.ScoreThreshold = 1.5 },
			wantErr: "score_threshold",
		},
		{
			name:    "top_k zero",
			mutate:  func(c *Config) { c.Retrieval.TopK = -1 },
			wantErr: "top_k",
		},
		{
			name:    "llm negative rps",
			mutate:  func(c *Config) { c.LLM.RPS = -1 },
			wantErr: "llm.rps",
		},
		{
			name: "telemetry bad protocol",
			mutate: func(c *Config) {
				c.Telemetry.Enabled = true
				c.Telemetry.Protocol = "udp"
			},
			wantErr: "telemetry protocol",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg Config
			cfg.ApplyDefaults()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_FileTooLarge(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "huge.yaml")
	big := make([]byte, maxConfigFileSize+1)
	for i := range big {
		big[i] = '#'
	}
	require.NoError(t, os.WriteFile(path, big, 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}

func TestSecretRedaction(t *testing.T) {
	s := Secret("bot-token-12345")

	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "Secret([REDACTED])", s.GoString())
	assert.Equal(t, "bot-token-12345", s.Value())
	assert.True(t, s.IsSet())

	data, err := s.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `"[REDACTED]"`, string(data))

	var empty Secret
	assert.Equal(t, "", empty.String())
	assert.False(t, empty.IsSet())
}

func TestDuration(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("90s")))
	assert.Equal(t, 90*time.Second, d.Duration())

	require.Error(t, d.UnmarshalText([]byte("-5s")))
	require.Error(t, d.UnmarshalText([]byte("not-a-duration")))

	text, err := Duration(time.Minute).MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1m0s", string(text))
}
