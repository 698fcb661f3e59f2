// Package cloudwatch publishes comparison run metrics to AWS CloudWatch.
package cloudwatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	cw "github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/claw-gang/amendment-diff/internal/domain"
	"github.com/claw-gang/amendment-diff/internal/pipeline"
)

// DefaultNamespace is used when the publisher is created with an empty namespace.
const DefaultNamespace = "AmendmentDiff"

const publishTimeout = 10 * time.Second

// API is the subset of the CloudWatch client used by this package.
type API interface {
	PutMetricData(ctx context.Context, params *cw.PutMetricDataInput, optFns ...func(*cw.Options)) (*cw.PutMetricDataOutput, error)
}

// Publisher implements pipeline.Observer by writing one batch of metrics
// per finished run.
type Publisher struct {
	api       API
	namespace string
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a Publisher from an AWS config.
func New(cfg aws.Config, namespace string, logger *slog.Logger) *Publisher {
	return NewFromAPI(cw.NewFromConfig(cfg), namespace, logger)
}

// NewFromAPI creates a Publisher from an explicit API implementation (for testing).
func NewFromAPI(api API, namespace string, logger *slog.Logger) *Publisher {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{api: api, namespace: namespace, logger: logger, now: time.Now}
}

// RunFinished implements pipeline.Observer. Publish failures are logged,
// never returned to the run.
func (p *Publisher) RunFinished(ctx context.Context, res pipeline.Result, err error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if perr := p.Publish(ctx, res, err); perr != nil {
		p.logger.Warn("publish run metrics failed",
			"contract_id", res.Run.ContractID,
			"error", perr,
		)
	}
}

// Publish writes the metrics of one run.
func (p *Publisher) Publish(ctx context.Context, res pipeline.Result, runErr error) error {
	_, err := p.api.PutMetricData(ctx, &cw.PutMetricDataInput{
		Namespace:  aws.String(p.namespace),
		MetricData: p.datums(res, runErr),
	})
	if err != nil {
		return fmt.Errorf("cloudwatch: put metric data: %w", err)
	}
	return nil
}

func (p *Publisher) datums(res pipeline.Result, runErr error) []cwtypes.MetricDatum {
	ts := aws.Time(p.now().UTC())
	outcome := "success"
	if runErr != nil {
		outcome = "failure"
	}
	dims := []cwtypes.Dimension{{Name: aws.String("Outcome"), Value: aws.String(outcome)}}
	if stage, ok := domain.FailedStage(runErr); ok {
		dims = append(dims, cwtypes.Dimension{Name: aws.String("Stage"), Value: aws.String(string(stage))})
	}

	count := func(name string, v int) cwtypes.MetricDatum {
		return cwtypes.MetricDatum{
			MetricName: aws.String(name),
			Timestamp:  ts,
			Unit:       cwtypes.StandardUnitCount,
			Value:      aws.Float64(float64(v)),
		}
	}

	run := count("Runs", 1)
	run.Dimensions = dims
	duration := cwtypes.MetricDatum{
		MetricName: aws.String("RunDuration"),
		Dimensions: dims,
		Timestamp:  ts,
		Unit:       cwtypes.StandardUnitSeconds,
		Value:      aws.Float64(res.Duration.Seconds()),
	}

	return []cwtypes.MetricDatum{
		run,
		duration,
		count("PagesParsed", res.Original.PageCount+res.Amendment.PageCount),
		count("PagesFailed", len(res.Original.FailedPages())+len(res.Amendment.FailedPages())),
		count("PagesFallback", len(res.Original.FallbackPages())+len(res.Amendment.FallbackPages())),
	}
}
