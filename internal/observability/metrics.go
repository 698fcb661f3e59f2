package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/claw-gang/amendment-diff/internal/domain"
	"github.com/claw-gang/amendment-diff/internal/pipeline"
)

// Metrics holds OTel metric instruments for comparison runs.
type Metrics struct {
	ModelAttempts  metric.Int64Counter
	AttemptLatency metric.Float64Histogram
	Pages          metric.Int64Counter
	Runs           metric.Int64Counter
	RunDuration    metric.Float64Histogram
}

// NewMetrics creates the instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	return NewMetricsWithMeter(otel.Meter("amendment-diff"))
}

// NewMetricsWithMeter creates the instruments on meter.
func NewMetricsWithMeter(meter metric.Meter) (*Metrics, error) {
	modelAttempts, err := meter.Int64Counter("contracts.model.attempts",
		metric.WithDescription("Model calls by model and outcome"),
	)
	if err != nil {
		return nil, err
	}

	attemptLatency, err := meter.Float64Histogram("contracts.model.latency_seconds",
		metric.WithDescription("Latency of a single model call"),
	)
	if err != nil {
		return nil, err
	}

	pages, err := meter.Int64Counter("contracts.pages",
		metric.WithDescription("Parsed pages by side and status"),
	)
	if err != nil {
		return nil, err
	}

	runs, err := meter.Int64Counter("contracts.runs",
		metric.WithDescription("Finished comparison runs by outcome"),
	)
	if err != nil {
		return nil, err
	}

	runDuration, err := meter.Float64Histogram("contracts.run.duration_seconds",
		metric.WithDescription("Wall time of a comparison run"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		ModelAttempts:  modelAttempts,
		AttemptLatency: attemptLatency,
		Pages:          pages,
		Runs:           runs,
		RunDuration:    runDuration,
	}, nil
}

// RecordModelAttempt implements llm.AttemptMeter.
func (m *Metrics) RecordModelAttempt(ctx context.Context, model, outcome string, latency time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("model", model),
		attribute.String("outcome", outcome),
	)
	m.ModelAttempts.Add(ctx, 1, attrs)
	m.AttemptLatency.Record(ctx, latency.Seconds(), attrs)
}

// RecordPage implements parser.PageMeter.
func (m *Metrics) RecordPage(ctx context.Context, side, status string) {
	m.Pages.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("side", side),
			attribute.String("status", status),
		),
	)
}

// RunFinished implements pipeline.Observer.
func (m *Metrics) RunFinished(ctx context.Context, res pipeline.Result, err error) {
	outcome := "success"
	stage := ""
	if err != nil {
		outcome = "failure"
		if s, ok := domain.FailedStage(err); ok {
			stage = string(s)
		}
	}
	attrs := metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.String("stage", stage),
	)
	m.Runs.Add(ctx, 1, attrs)
	m.RunDuration.Record(ctx, res.Duration.Seconds(), attrs)
}
