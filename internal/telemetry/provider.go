package telemetry

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"google.golang.org/grpc/credentials"
)

// newResource identifies this storefrontd instance to the collector.
// The resource is built standalone rather than merged with
// resource.Default(), which pins a different semconv schema URL and
// would make the merge fail.
func newResource(cfg *Config) (*resource.Resource, error) {
	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	), nil
}

// effectiveProtocol folds an empty protocol onto the gRPC default.
func effectiveProtocol(cfg *Config) string {
	if cfg.Protocol == "" {
		return "grpc"
	}
	return cfg.Protocol
}

// skipVerifyTLS is used when the collector sits behind an internal CA
// and tls_skip_verify was set.
func skipVerifyTLS() *tls.Config {
	return &tls.Config{
		InsecureSkipVerify: true, //nolint:gosec // explicit tls_skip_verify opt-in
	}
}

// newSampler maps the configured rate onto an SDK sampler. Rates at or
// above 1.0 record every trace, zero and below record none. ParentBased
// keeps child spans (embed, vector search, LLM call) on the same
// decision as the webhook root span.
func newSampler(cfg SamplingConfig) trace.Sampler {
	var root trace.Sampler
	switch {
	case cfg.Rate >= 1.0:
		root = trace.AlwaysSample()
	case cfg.Rate <= 0:
		root = trace.NeverSample()
	default:
		root = trace.TraceIDRatioBased(cfg.Rate)
	}
	return trace.ParentBased(root)
}

// newTracerProvider wires span export over OTLP. Webhook handling and
// the search pipeline produce the spans; the batcher ships them.
func newTracerProvider(ctx context.Context, cfg *Config, res *resource.Resource) (*trace.TracerProvider, error) {
	var exporter trace.SpanExporter
	var err error

	switch effectiveProtocol(cfg) {
	case "http/protobuf":
		opts := []otlptracehttp.Option{
			// HTTP exporters take host:port, not a URL.
			otlptracehttp.WithEndpoint(stripScheme(cfg.Endpoint)),
		}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		} else if cfg.TLSSkipVerify {
			opts = append(opts, otlptracehttp.WithTLSClientConfig(skipVerifyTLS()))
		}
		exporter, err = otlptracehttp.New(ctx, opts...)
	default: // grpc
		opts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(cfg.Endpoint),
		}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		} else if cfg.TLSSkipVerify {
			opts = append(opts, otlptracegrpc.WithTLSCredentials(credentials.NewTLS(skipVerifyTLS())))
		}
		exporter, err = otlptracegrpc.New(ctx, opts...)
	}
	if err != nil {
		return nil, fmt.Errorf("creating trace exporter: %w", err)
	}

	return trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(res),
		trace.WithSampler(newSampler(cfg.Sampling)),
	), nil
}

// newMeterProvider wires periodic metric export over OTLP. Returns
// (nil, nil) when metrics are disabled; callers then fall through to
// the global no-op meter.
func newMeterProvider(ctx context.Context, cfg *Config, res *resource.Resource) (*metric.MeterProvider, error) {
	if !cfg.Metrics.Enabled {
		return nil, nil
	}

	// Cumulative temporality keeps OTLP export consistent with the
	// Prometheus counters the daemon serves on /metrics. The explicit
	// selector also wins over any OTEL_EXPORTER_OTLP_METRICS_TEMPORALITY_PREFERENCE
	// inherited from the environment.
	cumulative := func(metric.InstrumentKind) metricdata.Temporality {
		return metricdata.CumulativeTemporality
	}

	var exporter metric.Exporter
	var err error

	switch effectiveProtocol(cfg) {
	case "http/protobuf":
		opts := []otlpmetrichttp.Option{
			otlpmetrichttp.WithEndpoint(stripScheme(cfg.Endpoint)),
			otlpmetrichttp.WithTemporalitySelector(cumulative),
		}
		if cfg.Insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		} else if cfg.TLSSkipVerify {
			opts = append(opts, otlpmetrichttp.WithTLSClientConfig(skipVerifyTLS()))
		}
		exporter, err = otlpmetrichttp.New(ctx, opts...)
	default: // grpc
		opts := []otlpmetricgrpc.Option{
			otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
			otlpmetricgrpc.WithTemporalitySelector(cumulative),
		}
		if cfg.Insecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		} else if cfg.TLSSkipVerify {
			opts = append(opts, otlpmetricgrpc.WithTLSCredentials(credentials.NewTLS(skipVerifyTLS())))
		}
		exporter, err = otlpmetricgrpc.New(ctx, opts...)
	}
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	return metric.NewMeterProvider(
		metric.WithResource(res),
		metric.WithReader(
			metric.NewPeriodicReader(exporter,
				metric.WithInterval(cfg.Metrics.ExportInterval.Duration()),
			),
		),
	), nil
}

// stripScheme drops a leading http:// or https:// from an endpoint.
func stripScheme(endpoint string) string {
	endpoint = strings.TrimPrefix(endpoint, "https://")
	return strings.TrimPrefix(endpoint, "http://")
}

// TracerProviderOption configures TracerProvider creation.
type TracerProviderOption func(*tracerProviderOptions)

type tracerProviderOptions struct {
	exporter trace.SpanExporter
}

// WithTraceExporter substitutes an in-memory exporter in tests.
func WithTraceExporter(exp trace.SpanExporter) TracerProviderOption {
	return func(opts *tracerProviderOptions) {
		opts.exporter = exp
	}
}

// MeterProviderOption configures MeterProvider creation.
type MeterProviderOption func(*meterProviderOptions)

type meterProviderOptions struct {
	exporter metric.Exporter
}

// WithMetricExporter substitutes an in-memory exporter in tests.
func WithMetricExporter(exp metric.Exporter) MeterProviderOption {
	return func(opts *meterProviderOptions) {
		opts.exporter = exp
	}
}
