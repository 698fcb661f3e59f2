// Package app wires configuration into runnable comparison components shared
// by every binary.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.temporal.io/sdk/client"

	"github.com/claw-gang/amendment-diff/internal/agents"
	"github.com/claw-gang/amendment-diff/internal/api"
	"github.com/claw-gang/amendment-diff/internal/config"
	awsconn "github.com/claw-gang/amendment-diff/internal/connectors/aws"
	"github.com/claw-gang/amendment-diff/internal/connectors/aws/cloudwatch"
	"github.com/claw-gang/amendment-diff/internal/llm"
	"github.com/claw-gang/amendment-diff/internal/observability"
	"github.com/claw-gang/amendment-diff/internal/parser"
	"github.com/claw-gang/amendment-diff/internal/pipeline"
	"github.com/claw-gang/amendment-diff/internal/ratelimit"
	"github.com/claw-gang/amendment-diff/internal/report"
	"github.com/claw-gang/amendment-diff/internal/temporal/activities"
	"github.com/claw-gang/amendment-diff/internal/temporal/codecs"
	"github.com/claw-gang/amendment-diff/internal/temporal/runner"
	"github.com/claw-gang/amendment-diff/internal/temporal/versioning"
	"github.com/claw-gang/amendment-diff/internal/tracing"
)

const budgetWindow = time.Hour

// Deps are the collaborators shared by every stage.
type Deps struct {
	Provider  llm.Provider
	Recorder  tracing.Recorder
	Metrics   *observability.Metrics // nil = no metrics
	Observers []pipeline.Observer
	Logger    *slog.Logger
}

// Stages are the pipeline stages built over one invoker.
type Stages struct {
	Invoker        *llm.Invoker
	Parser         *parser.Parser
	Contextualizer *agents.Contextualizer
	Extractor      *agents.Extractor
}

// NewProvider returns the model provider for cfg: the OpenAI-compatible
// client for every model, plus the local OCR engine for tesseract/ models
// when enabled and compiled in.
func NewProvider(cfg config.Config) llm.Provider {
	mux := llm.NewMux(llm.NewOpenAI(cfg.LLMBaseURL, cfg.LLMAPIKey, nil))
	if cfg.OCRFallback {
		if ocr, ok := llm.LocalOCR(); ok {
			mux.Handle(llm.LocalOCRPrefix, ocr)
		}
	}
	return mux
}

// BuildStages assembles the stages from cfg and deps.
func BuildStages(cfg config.Config, deps Deps) Stages {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	invOpts := []llm.Option{
		llm.WithLimiter(ratelimit.NewModelLimiter(ratelimit.ModelRates{
			Default:   cfg.ModelRPS,
			Overrides: cfg.ModelRPSOverrides,
		})),
		llm.WithBudget(ratelimit.NewCallBudget(cfg.ContractCallBudget, budgetWindow)),
		llm.WithRecorder(deps.Recorder),
		llm.WithTimeout(cfg.ModelCallTimeout),
		llm.WithLogger(logger),
	}
	parserOpts := []parser.Option{
		parser.WithRecorder(deps.Recorder),
		parser.WithLogger(logger),
	}
	if deps.Metrics != nil {
		invOpts = append(invOpts, llm.WithMeter(deps.Metrics))
		parserOpts = append(parserOpts, parser.WithMeter(deps.Metrics))
	}
	inv := llm.NewInvoker(deps.Provider, invOpts...)
	text := cfg.TextChain()
	return Stages{
		Invoker:        inv,
		Parser:         parser.New(parser.NewExtractor(inv, cfg.VisionChain()), cfg.ParserWorkers, parserOpts...),
		Contextualizer: agents.NewContextualizer(inv, text, logger),
		Extractor:      agents.NewExtractor(inv, text, logger),
	}
}

// NewOrchestrator builds the in-process runner.
func NewOrchestrator(cfg config.Config, deps Deps) *pipeline.Orchestrator {
	st := BuildStages(cfg, deps)
	opts := []pipeline.Option{
		pipeline.WithRecorder(deps.Recorder),
		pipeline.WithLogger(deps.Logger),
	}
	if deps.Metrics != nil {
		opts = append(opts, pipeline.WithObserver(deps.Metrics))
	}
	for _, obs := range deps.Observers {
		opts = append(opts, pipeline.WithObserver(obs))
	}
	return pipeline.New(st.Parser, st.Contextualizer, st.Extractor, opts...)
}

// NewActivities builds the Temporal activity set over the same stages.
func NewActivities(cfg config.Config, deps Deps) *activities.Activities {
	st := BuildStages(cfg, deps)
	return &activities.Activities{
		Parser:         st.Parser,
		Contextualizer: st.Contextualizer,
		Extractor:      st.Extractor,
		Recorder:       deps.Recorder,
	}
}

// App is a configured comparison service.
type App struct {
	Config   config.Config
	Logger   *slog.Logger
	Runner   pipeline.Runner
	Comparer api.Comparer
	// History is set only in temporal mode.
	History *runner.TemporalRunner

	closers []func(context.Context) error
}

// NewBase returns an App with no runner, for binaries that only need
// NewDeps and Close.
func NewBase(cfg config.Config, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	return &App{Config: cfg, Logger: logger}
}

// New builds an App from cfg. In local mode comparisons run in-process; in
// temporal mode they are submitted to the comparison workflow. Close
// releases everything New opened.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	a := NewBase(cfg, logger)
	logger = a.Logger

	if cfg.Mode == config.ModeTemporal {
		c, err := DialTemporal(cfg, logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func(context.Context) error { c.Close(); return nil })
		tr := runner.New(c, versioning.QueueComparison, versioning.QueuePages,
			runner.WithRecorder(a.newRecorder(ctx, "compare")))
		a.Runner, a.Comparer, a.History = tr, TemporalComparer{Runner: tr}, tr
		return a, nil
	}

	deps, err := a.NewDeps(ctx, "compare")
	if err != nil {
		_ = a.Close(ctx)
		return nil, err
	}
	if cfg.CloudWatchNamespace != "" {
		awsCfg, err := awsconn.LoadConfig(ctx, awsconn.Options{
			Region:      cfg.AWSRegion,
			Profile:     cfg.AWSProfile,
			RoleARN:     cfg.AWSRoleARN,
			SessionName: cfg.AWSRoleSessionName,
		})
		if err != nil {
			_ = a.Close(ctx)
			return nil, err
		}
		deps.Observers = append(deps.Observers, cloudwatch.New(awsCfg, cfg.CloudWatchNamespace, logger))
	}
	o := NewOrchestrator(cfg, deps)
	a.Runner, a.Comparer = o, LocalComparer{Orchestrator: o}
	return a, nil
}

// NewDeps builds the model provider, recorder and metrics for a component.
// Tracer shutdown is registered on the App.
func (a *App) NewDeps(ctx context.Context, component string) (Deps, error) {
	recorder := a.newRecorder(ctx, component)
	metrics, err := observability.NewMetrics()
	if err != nil {
		return Deps{}, fmt.Errorf("app: metrics: %w", err)
	}
	if a.Config.LLMAPIKey == "" {
		a.Logger.Warn("LLM_API_KEY is not set; model calls will be unauthenticated")
	}
	return Deps{
		Provider: NewProvider(a.Config),
		Recorder: recorder,
		Metrics:  metrics,
		Logger:   a.Logger,
	}, nil
}

// newRecorder returns the OTel recorder when tracing is enabled and the
// exporter starts, else the no-op recorder.
func (a *App) newRecorder(ctx context.Context, component string) tracing.Recorder {
	if !a.Config.OTelEnabled {
		return tracing.Nop()
	}
	shutdown, err := observability.InitTracer(ctx, component)
	if err != nil {
		a.Logger.Error("otel init failed", "error", err)
		return tracing.Nop()
	}
	a.closers = append(a.closers, shutdown)
	return tracing.NewOTel(observability.ServiceName)
}

// Close runs the shutdown hooks in reverse order.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i](ctx))
	}
	return errors.Join(errs...)
}

// DialTemporal connects to the Temporal frontend with the compressed
// payload converter and the slog adapter.
func DialTemporal(cfg config.Config, logger *slog.Logger) (client.Client, error) {
	c, err := client.Dial(client.Options{
		HostPort:      cfg.TemporalHostPort,
		Logger:        observability.NewTemporalSlogAdapter(logger),
		DataConverter: codecs.NewDataConverter(),
	})
	if err != nil {
		return nil, fmt.Errorf("app: dial temporal %s: %w", cfg.TemporalHostPort, err)
	}
	return c, nil
}

var (
	_ api.Comparer = LocalComparer{}
	_ api.Comparer = TemporalComparer{}
	_ api.History  = (*runner.TemporalRunner)(nil)
)

// LocalComparer reports in-process runs.
type LocalComparer struct {
	Orchestrator *pipeline.Orchestrator
}

// CompareReport implements Comparer.
func (c LocalComparer) CompareReport(ctx context.Context, originalFolder, amendmentFolder, contractID string) (report.Report, error) {
	res, err := c.Orchestrator.Compare(ctx, originalFolder, amendmentFolder, contractID)
	if err != nil {
		return report.Report{}, err
	}
	return report.FromResult(res), nil
}

// TemporalComparer reports workflow runs.
type TemporalComparer struct {
	Runner *runner.TemporalRunner
}

// CompareReport implements Comparer.
func (c TemporalComparer) CompareReport(ctx context.Context, originalFolder, amendmentFolder, contractID string) (report.Report, error) {
	res, err := c.Runner.Compare(ctx, originalFolder, amendmentFolder, contractID)
	if err != nil {
		return report.Report{}, err
	}
	return report.Report{
		ContractID: contractID,
		Summary:    res.Summary,
		Original:   res.Original,
		Amendment:  res.Amendment,
	}, nil
}
