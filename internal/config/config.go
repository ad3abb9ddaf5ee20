// Package config provides configuration loading for storefrontd.
//
// Configuration comes from a YAML file overridden by STOREFRONTD_* environment
// variables. Defaults are applied before validation, so a config file only
// needs to set what differs from them.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the complete storefrontd configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Stores     StoresConfig     `koanf:"stores"`
	Embeddings EmbeddingsConfig `koanf:"embeddings"`
	Retrieval  RetrievalConfig  `koanf:"retrieval"`
	Translator TranslatorConfig `koanf:"translator"`
	LLM        LLMConfig        `koanf:"llm"`
	Telegram   TelegramConfig   `koanf:"telegram"`
	Logging    LoggingConfig    `koanf:"logging"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ReadTimeout     Duration `koanf:"read_timeout"`
	WriteTimeout    Duration `koanf:"write_timeout"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
	MaxBodyBytes    int64    `koanf:"max_body_bytes"`
}

// StoresConfig locates the tenant root and controls automatic reloads.
type StoresConfig struct {
	Root  string      `koanf:"root"`
	Watch WatchConfig `koanf:"watch"`
}

// WatchConfig controls the filesystem watcher on the stores root.
type WatchConfig struct {
	Enabled  bool     `koanf:"enabled"`
	Debounce Duration `koanf:"debounce"`
}

// EmbeddingsConfig selects and configures the shared embedding provider.
type EmbeddingsConfig struct {
	// Provider is "fastembed" (local ONNX) or "openai" (OpenAI-compatible HTTP,
	// including TEI servers).
	Provider  string   `koanf:"provider"`
	Model     string   `koanf:"model"`
	CacheDir  string   `koanf:"cache_dir"`
	BatchSize int      `koanf:"batch_size"`
	BaseURL   string   `koanf:"base_url"`
	APIKey    Secret   `koanf:"api_key"`
	Timeout   Duration `koanf:"timeout"`
}

// RetrievalConfig tunes per-store semantic search.
type RetrievalConfig struct {
	TopK           int     `koanf:"top_k"`
	ScoreThreshold float64 `koanf:"score_threshold"`
	MinQueryLength int     `koanf:"min_query_length"`
}

// TranslatorConfig configures the query translator.
type TranslatorConfig struct {
	Enabled bool     `koanf:"enabled"`
	BaseURL string   `koanf:"base_url"`
	Model   string   `koanf:"model"`
	APIKey  Secret   `koanf:"api_key"`
	Timeout Duration `koanf:"timeout"`
}

// LLMConfig configures the chat-completion client used by the dialog layer.
type LLMConfig struct {
	BaseURL    string   `koanf:"base_url"`
	APIKey     Secret   `koanf:"api_key"`
	FastModel  string   `koanf:"fast_model"`
	HeavyModel string   `koanf:"heavy_model"`
	RPS        float64  `koanf:"rps"`
	Burst      int      `koanf:"burst"`
	MaxRetries int      `koanf:"max_retries"`
	Timeout    Duration `koanf:"timeout"`
}

// TelegramConfig configures the outbound Bot API client.
type TelegramConfig struct {
	APIBase string   `koanf:"api_base"`
	Timeout Duration `koanf:"timeout"`
}

// LoggingConfig holds the logging knobs exposed through the daemon config.
// The full logger configuration lives in internal/logging; main maps these
// onto it.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// TelemetryConfig holds the telemetry knobs exposed through the daemon config.
type TelemetryConfig struct {
	Enabled    bool    `koanf:"enabled"`
	Endpoint   string  `koanf:"endpoint"`
	Protocol   string  `koanf:"protocol"`
	Insecure   bool    `koanf:"insecure"`
	SampleRate float64 `koanf:"sample_rate"`
}

// ApplyDefaults fills in zero-valued fields with production-ready defaults.
func (c *Config) ApplyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = Duration(15 * time.Second)
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = Duration(30 * time.Second)
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = Duration(10 * time.Second)
	}
	if c.Server.MaxBodyBytes == 0 {
		c.Server.MaxBodyBytes = 1 << 20 // 1MB webhook payload cap
	}

	if c.Stores.Root == "" {
		c.Stores.Root = "./stores"
	}
	if c.Stores.Watch.Debounce == 0 {
		c.Stores.Watch.Debounce = Duration(2 * time.Second)
	}

	if c.Embeddings.Provider == "" {
		c.Embeddings.Provider = "fastembed"
	}
	if c.Embeddings.Model == "" {
		c.Embeddings.Model = "BAAI/bge-small-en-v1.5"
	}
	if c.Embeddings.CacheDir == "" {
		c.Embeddings.CacheDir = "./models"
	}
	if c.Embeddings.BatchSize == 0 {
		c.Embeddings.BatchSize = 32
	}
	if c.Embeddings.BaseURL == "" {
		c.Embeddings.BaseURL = "http://localhost:8081/v1"
	}
	if c.Embeddings.Timeout == 0 {
		c.Embeddings.Timeout = Duration(10 * time.Second)
	}

	if c.Retrieval.TopK == 0 {
		c.Retrieval.TopK = 5
	}
	if c.Retrieval.ScoreThreshold == 0 {
		c.Retrieval.ScoreThreshold = 0.5
	}
	if c.Retrieval.MinQueryLength == 0 {
		c.Retrieval.MinQueryLength = 2
	}

	if c.Translator.Model == "" {
		c.Translator.Model = "gpt-4o-mini"
	}
	if c.Translator.Timeout == 0 {
		c.Translator.Timeout = Duration(5 * time.Second)
	}

	if c.LLM.FastModel == "" {
		c.LLM.FastModel = "gpt-4o-mini"
	}
	if c.LLM.HeavyModel == "" {
		c.LLM.HeavyModel = "gpt-4o"
	}
	if c.LLM.RPS == 0 {
		c.LLM.RPS = 5
	}
	if c.LLM.Burst == 0 {
		c.LLM.Burst = 10
	}
	if c.LLM.MaxRetries == 0 {
		c.LLM.MaxRetries = 3
	}
	if c.LLM.Timeout == 0 {
		c.LLM.Timeout = Duration(30 * time.Second)
	}

	if c.Telegram.APIBase == "" {
		c.Telegram.APIBase = "https://api.telegram.org"
	}
	if c.Telegram.Timeout == 0 {
		c.Telegram.Timeout = Duration(10 * time.Second)
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}

	if c.Telemetry.Endpoint == "" {
		c.Telemetry.Endpoint = "localhost:4317"
	}
	if c.Telemetry.Protocol == "" {
		c.Telemetry.Protocol = "grpc"
	}
	if c.Telemetry.SampleRate == 0 {
		c.Telemetry.SampleRate = 1.0
	}
}

// Validate checks the configuration for errors. Call after ApplyDefaults.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		return errors.New("server shutdown timeout must be positive")
	}

	if c.Stores.Root == "" {
		return errors.New("stores.root is required")
	}

	switch c.Embeddings.Provider {
	case "fastembed", "openai":
	default:
		return fmt.Errorf("unknown embeddings provider %q (want fastembed or openai)", c.Embeddings.Provider)
	}
	if c.Embeddings.Timeout.Duration() <= 0 {
		return errors.New("embeddings.timeout must be positive")
	}

	if c.Retrieval.TopK < 1 {
		return fmt.Errorf("retrieval.top_k must be >= 1, got %d", c.Retrieval.TopK)
	}
	if c.Retrieval.ScoreThreshold < 0 || c.Retrieval.ScoreThreshold > 1 {
		return fmt.Errorf("retrieval.score_threshold must be in [0,1], got %g", c.Retrieval.ScoreThreshold)
	}
	if c.Retrieval.MinQueryLength < 1 {
		return fmt.Errorf("retrieval.min_query_length must be >= 1, got %d", c.Retrieval.MinQueryLength)
	}

	if c.Translator.Enabled && !c.Translator.APIKey.IsSet() && c.Translator.BaseURL == "" {
		return errors.New("translator requires api_key or base_url when enabled")
	}

	if c.LLM.RPS <= 0 {
		return fmt.Errorf("llm.rps must be positive, got %g", c.LLM.RPS)
	}
	if c.LLM.MaxRetries < 0 {
		return fmt.Errorf("llm.max_retries must be >= 0, got %d", c.LLM.MaxRetries)
	}

	if c.Telemetry.Enabled {
		if c.Telemetry.Endpoint == "" {
			return errors.New("telemetry.endpoint is required when telemetry is enabled")
		}
		switch c.Telemetry.Protocol {
		case "grpc", "http/protobuf":
		default:
			return fmt.Errorf("unknown telemetry protocol %q (want grpc or http/protobuf)", c.Telemetry.Protocol)
		}
		if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
			return fmt.Errorf("telemetry.sample_rate must be in [0,1], got %g", c.Telemetry.SampleRate)
		}
	}

	return nil
}
