// Package pipeline sequences the comparison stages: both folders are parsed
// in parallel, then the contextualization, extraction and validation stages
// run in order.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/claw-gang/amendment-diff/internal/agents"
	"github.com/claw-gang/amendment-diff/internal/domain"
	"github.com/claw-gang/amendment-diff/internal/parser"
	"github.com/claw-gang/amendment-diff/internal/tracing"
)

// RootSpan names the span that parents every stage of one run.
const RootSpan = "compare_contracts"

// State is a step of the run state machine.
type State string

const (
	StateIdle            State = "idle"
	StateParsing         State = "parsing"
	StateContextualizing State = "contextualizing"
	StateExtracting      State = "extracting"
	StateValidating      State = "validating"
	StateDone            State = "done"
	StateFailed          State = "failed"
)

// Runner compares an original contract folder with an amendment folder.
type Runner interface {
	Run(ctx context.Context, originalFolder, amendmentFolder, contractID string) (domain.ContractChangeSummary, error)
}

// Result is the detailed outcome of one run. Summary is set only when Err
// is nil.
type Result struct {
	Run       domain.PipelineRun            `json:"run"`
	Summary   domain.ContractChangeSummary  `json:"summary"`
	Original  domain.ExtractedText          `json:"original"`
	Amendment domain.ExtractedText          `json:"amendment"`
	Context   domain.ContextualizedContract `json:"context"`
	States    []State                       `json:"states"`
	Duration  time.Duration                 `json:"duration"`
}

// Observer is notified once per finished run.
type Observer interface {
	RunFinished(ctx context.Context, res Result, err error)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, res Result, err error)

func (f ObserverFunc) RunFinished(ctx context.Context, res Result, err error) { f(ctx, res, err) }

// Orchestrator is the in-process Runner.
type Orchestrator struct {
	parser         *parser.Parser
	contextualizer *agents.Contextualizer
	extractor      *agents.Extractor
	recorder       tracing.Recorder
	observers      []Observer
	logger         *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRecorder traces runs to r.
func WithRecorder(r tracing.Recorder) Option { return func(o *Orchestrator) { o.recorder = r } }

// WithObserver adds a run observer.
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) { o.observers = append(o.observers, obs) }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(o *Orchestrator) { o.logger = l } }

// New creates an Orchestrator from its stages.
func New(p *parser.Parser, c *agents.Contextualizer, e *agents.Extractor, opts ...Option) *Orchestrator {
	o := &Orchestrator{parser: p, contextualizer: c, extractor: e}
	for _, opt := range opts {
		opt(o)
	}
	o.recorder = tracing.OrNop(o.recorder)
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// Run implements Runner.
func (o *Orchestrator) Run(ctx context.Context, originalFolder, amendmentFolder, contractID string) (domain.ContractChangeSummary, error) {
	res, err := o.Compare(ctx, originalFolder, amendmentFolder, contractID)
	if err != nil {
		return domain.ContractChangeSummary{}, err
	}
	return res.Summary, nil
}

// Compare runs the pipeline and returns every intermediate artifact. Any
// stage failure is returned as a *domain.StageError wrapping the cause.
func (o *Orchestrator) Compare(ctx context.Context, originalFolder, amendmentFolder, contractID string) (Result, error) {
	res := Result{
		Run:    domain.NewPipelineRun(contractID, originalFolder, amendmentFolder),
		States: []State{StateIdle},
	}
	ctx = tracing.WithSession(ctx, contractID)
	ctx, root := o.recorder.Start(ctx, RootSpan, res.Run)
	log := o.logger.With("contract_id", contractID, "run_id", res.Run.RunID)

	err := o.compare(ctx, &res, log)
	res.Duration = time.Since(res.Run.StartedAt)
	if err != nil {
		res.States = append(res.States, StateFailed)
		res.Summary = domain.ContractChangeSummary{}
		stage, _ := domain.FailedStage(err)
		log.Error("comparison failed", "stage", string(stage), "error", err)
		root.End(nil, err)
	} else {
		res.States = append(res.States, StateDone)
		log.Info("comparison complete",
			"topics", len(res.Summary.TopicsTouched),
			"sections", len(res.Summary.SectionsChanged),
			"latency", res.Duration,
		)
		root.End(res.Summary, nil)
	}
	for _, obs := range o.observers {
		obs.RunFinished(ctx, res, err)
	}
	return res, err
}

func (o *Orchestrator) compare(ctx context.Context, res *Result, log *slog.Logger) error {
	contractID := res.Run.ContractID

	// Both folders are listed before any model call so an empty side fails fast.
	originalDocs, err := o.list(ctx, domain.SideOriginal, res.Run.OriginalFolder)
	if err != nil {
		return err
	}
	amendmentDocs, err := o.list(ctx, domain.SideAmendment, res.Run.AmendmentFolder)
	if err != nil {
		return err
	}

	res.States = append(res.States, StateParsing)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		out, err := runStage(gctx, o.recorder, domain.StageParseOriginal, res.Run.OriginalFolder, func(ctx context.Context) (domain.ExtractedText, error) {
			return o.parser.ParseDocuments(ctx, domain.SideOriginal, res.Run.OriginalFolder, originalDocs, contractID)
		})
		res.Original = out
		return err
	})
	g.Go(func() error {
		out, err := runStage(gctx, o.recorder, domain.StageParseAmendment, res.Run.AmendmentFolder, func(ctx context.Context) (domain.ExtractedText, error) {
			return o.parser.ParseDocuments(ctx, domain.SideAmendment, res.Run.AmendmentFolder, amendmentDocs, contractID)
		})
		res.Amendment = out
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("contracts parsed",
		"original_pages", res.Original.PageCount,
		"amendment_pages", res.Amendment.PageCount,
		"failed_pages", len(res.Original.FailedPages())+len(res.Amendment.FailedPages()),
	)

	res.States = append(res.States, StateContextualizing)
	res.Context, err = runStage(ctx, o.recorder, domain.StageContextualize, map[string]int{
		"original_chars":  len(res.Original.Text),
		"amendment_chars": len(res.Amendment.Text),
	}, func(ctx context.Context) (domain.ContextualizedContract, error) {
		return o.contextualizer.Contextualize(ctx, contractID, res.Original.Text, res.Amendment.Text)
	})
	if err != nil {
		return err
	}

	res.States = append(res.States, StateExtracting)
	summary, err := runStage(ctx, o.recorder, domain.StageExtract, res.Context, func(ctx context.Context) (domain.ContractChangeSummary, error) {
		return o.extractor.Extract(ctx, contractID, res.Context)
	})
	if err != nil {
		return err
	}

	res.States = append(res.States, StateValidating)
	_, err = runStage(ctx, o.recorder, domain.StageValidate, summary, func(context.Context) (struct{}, error) {
		return struct{}{}, domain.ValidateContractChangeSummary(summary)
	})
	if err != nil {
		return err
	}
	res.Summary = summary
	return nil
}

// list enumerates a folder, recording a failed parse stage span when the
// folder has no images.
func (o *Orchestrator) list(ctx context.Context, side domain.Side, folder string) ([]domain.ImageDocument, error) {
	docs, err := parser.List(folder)
	if err != nil {
		stage := domain.ParseStage(side)
		_, span := o.recorder.Start(ctx, string(stage), folder)
		span.End(nil, err)
		return nil, &domain.StageError{Stage: stage, Err: err}
	}
	return docs, nil
}

func runStage[T any](ctx context.Context, rec tracing.Recorder, stage domain.Stage, input any, fn func(context.Context) (T, error)) (T, error) {
	ctx, span := rec.Start(ctx, string(stage), input)
	out, err := fn(ctx)
	if err != nil {
		span.End(nil, err)
		var zero T
		return zero, &domain.StageError{Stage: stage, Err: err}
	}
	span.End(out, nil)
	return out, nil
}
