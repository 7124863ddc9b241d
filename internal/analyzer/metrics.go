package analyzer

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/virail/studio/internal/platform/errs"
)

// MetricsRecorder records analysis metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordAnalysis records a finished run. aerr is nil on success.
	RecordAnalysis(ctx context.Context, inputType string, duration time.Duration, aerr *errs.AnalysisError)

	// RecordRetry records that a failed run of the given kind was retried.
	RecordRetry(ctx context.Context, kind errs.Kind)
}

// NoopMetrics discards everything.
type NoopMetrics struct{}

func (NoopMetrics) RecordAnalysis(context.Context, string, time.Duration, *errs.AnalysisError) {}
func (NoopMetrics) RecordRetry(context.Context, errs.Kind) {}

type otelMetrics struct {
	runs     metric.Int64Counter
	latency  metric.Float64Histogram
	failures metric.Int64Counter
	retries  metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("studio")

	runs, err := meter.Int64Counter("studio.analysis.runs",
		metric.WithDescription("Number of finished analysis runs"),
	)
	if err != nil {
		return nil, err
	}

	latency, err := meter.Float64Histogram("studio.analysis.latency_ms",
		metric.WithDescription("Analysis latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	failures, err := meter.Int64Counter("studio.analysis.failures",
		metric.WithDescription("Number of failed analysis runs by error kind"),
	)
	if err != nil {
		return nil, err
	}

	retries, err := meter.Int64Counter("studio.analysis.retries",
		metric.WithDescription("Number of retried analysis runs by error kind"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{runs: runs, latency: latency, failures: failures, retries: retries}, nil
}

// NewMetricsRecorder returns a MetricsRecorder backed by the global OTel
// meter provider, or a no-op recorder if the instruments cannot be created.
func NewMetricsRecorder(logger *zap.Logger) MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		logger.Warn("metrics initialization failed, using no-op recorder", zap.Error(err))
		return NoopMetrics{}
	}
	return m
}

func (m *otelMetrics) RecordAnalysis(ctx context.Context, inputType string, duration time.Duration, aerr *errs.AnalysisError) {
	attrs := []attribute.KeyValue{
		attribute.String("input_type", inputType),
		attribute.Bool("success", aerr == nil),
	}
	m.runs.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.latency.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))

	if aerr != nil {
		m.failures.Add(ctx, 1, metric.WithAttributes(
			attribute.String("input_type", inputType),
			attribute.String("kind", aerr.Kind.String()),
		))
	}
}

func (m *otelMetrics) RecordRetry(ctx context.Context, kind errs.Kind) {
	m.retries.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind.String())))
}
