// Package telemetry provides OpenTelemetry instrumentation for storefrontd.
package telemetry

import (
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/storefrontd/internal/config"
)

// Config holds telemetry settings. The daemon maps its own telemetry
// section onto this at startup; start from NewDefaultConfig rather than
// the zero value.
type Config struct {
	Enabled        bool           `koanf:"enabled"`
	Endpoint       string         `koanf:"endpoint"`
	Protocol       string         `koanf:"protocol"` // "grpc" (default) or "http/protobuf"
	ServiceName    string         `koanf:"service_name"`
	ServiceVersion string         `koanf:"service_version"`
	Insecure       bool           `koanf:"insecure"`        // plaintext connection, local collectors only
	TLSSkipVerify  bool           `koanf:"tls_skip_verify"` // accept internal CA certificates
	Sampling       SamplingConfig `koanf:"sampling"`
	Metrics        MetricsConfig  `koanf:"metrics"`
	Shutdown       ShutdownConfig `koanf:"shutdown"`
}

// SamplingConfig controls what fraction of webhook traces are recorded.
type SamplingConfig struct {
	Rate           float64 `koanf:"rate"`             // 0.0 to 1.0
	AlwaysOnErrors bool    `koanf:"always_on_errors"` // record error traces regardless of rate
}

// MetricsConfig controls OTLP metric export.
type MetricsConfig struct {
	Enabled        bool            `koanf:"enabled"`
	ExportInterval config.Duration `koanf:"export_interval"`
}

// ShutdownConfig bounds how long shutdown waits for pending exports.
type ShutdownConfig struct {
	Timeout config.Duration `koanf:"timeout"`
}

// NewDefaultConfig returns defaults tuned for a single-host deployment:
// telemetry off until an OTLP collector exists, full sampling once it
// is turned on.
func NewDefaultConfig() *Config {
	return &Config{
		Enabled:        false,
		Endpoint:       "localhost:4317",
		Protocol:       "grpc",
		ServiceName:    "storefrontd",
		ServiceVersion: "0.1.0",
		Insecure:       true, // local collector; production TLS sets this false
		Sampling: SamplingConfig{
			Rate:           1.0,
			AlwaysOnErrors: true,
		},
		Metrics: MetricsConfig{
			Enabled:        true,
			ExportInterval: config.Duration(15 * time.Second),
		},
		Shutdown: ShutdownConfig{
			Timeout: config.Duration(5 * time.Second),
		},
	}
}

// Validate checks the configuration. A disabled config is always valid.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}

	if c.Endpoint == "" {
		return fmt.Errorf("endpoint is required when telemetry is enabled")
	}
	switch c.Protocol {
	case "", "grpc", "http/protobuf":
	default:
		return fmt.Errorf("protocol must be %q or %q, got %q", "grpc", "http/protobuf", c.Protocol)
	}
	if c.ServiceName == "" {
		return fmt.Errorf("service_name is required when telemetry is enabled")
	}
	if c.ServiceVersion == "" {
		return fmt.Errorf("service_version is required when telemetry is enabled")
	}

	// Plaintext export stays restricted to loopback collectors; spans can
	// carry customer query text in attributes.
	if c.Insecure && !c.isLocalEndpoint() {
		return fmt.Errorf("insecure connections to remote endpoints are not allowed; set insecure=false for TLS or use a local endpoint (localhost/127.0.0.1)")
	}

	if c.Sampling.Rate < 0 || c.Sampling.Rate > 1 {
		return fmt.Errorf("sampling.rate must be between 0 and 1, got %f", c.Sampling.Rate)
	}
	if c.Metrics.Enabled && c.Metrics.ExportInterval.Duration() <= 0 {
		return fmt.Errorf("metrics.export_interval must be positive when metrics enabled")
	}
	if c.Shutdown.Timeout.Duration() <= 0 {
		return fmt.Errorf("shutdown.timeout must be positive")
	}
	return nil
}

// endpointHost extracts the host for the loopback check. Handles
// bracketed IPv6 ([::1]:4317), host:port, and bare hosts. Unbracketed
// IPv6 with a port is ambiguous and comes back unchanged.
func endpointHost(endpoint string) string {
	if strings.HasPrefix(endpoint, "[") {
		if idx := strings.Index(endpoint, "]"); idx != -1 {
			return endpoint[1:idx]
		}
	}
	if strings.Count(endpoint, ":") == 1 {
		return endpoint[:strings.LastIndex(endpoint, ":")]
	}
	return endpoint
}

// isLocalEndpoint reports whether the endpoint points at loopback.
func (c *Config) isLocalEndpoint() bool {
	host := endpointHost(c.Endpoint)
	switch {
	case host == "localhost", host == "::1":
		return true
	case strings.HasPrefix(host, "127."):
		return true
	case strings.HasPrefix(c.Endpoint, "::1"):
		// ::1:4317 keeps its colons after endpointHost.
		return true
	}
	return false
}
