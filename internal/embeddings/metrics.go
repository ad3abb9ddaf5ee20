package embeddings

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const embeddingsInstrumentationName = "github.com/fyrsmithlabs/storefrontd/internal/embeddings"

// Bucket layouts sized for this workload: durations run from single-query
// embeds on a warm ONNX session to full catalog re-index batches; batch
// sizes run from one FAQ entry to a few hundred catalog chunks.
var (
	durationBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0}
	batchBuckets    = []float64{1, 2, 5, 10, 25, 50, 100, 250, 500}
)

// Metrics instruments embedding generation. An instrument that fails to
// register is logged once and left nil; RecordGeneration skips nil
// instruments, so a broken meter never blocks indexing.
type Metrics struct {
	logger    *zap.Logger
	duration  metric.Float64Histogram
	batchSize metric.Int64Histogram
	errors    metric.Int64Counter
}

// NewMetrics registers the embedding instruments on the global meter.
func NewMetrics(logger *zap.Logger) *Metrics {
	return newMetricsWithMeter(otel.Meter(embeddingsInstrumentationName), logger)
}

func newMetricsWithMeter(meter metric.Meter, logger *zap.Logger) *Metrics {
	m := &Metrics{logger: logger}

	var err error
	m.duration, err = meter.Float64Histogram(
		"storefrontd.embedding.generation_duration_seconds",
		metric.WithDescription("Duration of embedding generation in seconds, labeled by model and operation (embed_documents, embed_query)"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...),
	)
	if err != nil {
		m.instrumentFailed("duration histogram", err)
	}

	m.batchSize, err = meter.Int64Histogram(
		"storefrontd.embedding.batch_size",
		metric.WithDescription("Number of texts per embedding batch request"),
		metric.WithUnit("{text}"),
		metric.WithExplicitBucketBoundaries(batchBuckets...),
	)
	if err != nil {
		m.instrumentFailed("batch size histogram", err)
	}

	m.errors, err = meter.Int64Counter(
		"storefrontd.embedding.errors_total",
		metric.WithDescription("Total embedding generation errors by model and operation, including model loading and runtime failures"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		m.instrumentFailed("errors counter", err)
	}

	return m
}

func (m *Metrics) instrumentFailed(name string, err error) {
	m.logger.Warn("failed to create embedding instrument",
		zap.String("instrument", name),
		zap.Error(err),
	)
}

// RecordGeneration records one embed call: its duration, the batch size
// when texts were batched, and the error if the call failed.
func (m *Metrics) RecordGeneration(ctx context.Context, model, operation string, duration time.Duration, batchSize int, err error) {
	attrs := metric.WithAttributes(
		attribute.String("model", model),
		attribute.String("operation", operation),
	)

	if m.duration != nil {
		m.duration.Record(ctx, duration.Seconds(), attrs)
	}
	if batchSize > 0 && m.batchSize != nil {
		m.batchSize.Record(ctx, int64(batchSize), attrs)
	}
	if err != nil && m.errors != nil {
		m.errors.Add(ctx, 1, attrs)
	}
}
