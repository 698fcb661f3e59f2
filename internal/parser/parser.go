package parser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/claw-gang/amendment-diff/internal/domain"
	"github.com/claw-gang/amendment-diff/internal/llm"
	"github.com/claw-gang/amendment-diff/internal/tracing"
)

// DefaultWorkers bounds concurrent page extractions when none is configured.
const DefaultWorkers = 4

// PageMeter receives one observation per parsed page.
type PageMeter interface {
	RecordPage(ctx context.Context, side string, status string)
}

// Parser extracts folders concurrently. All folders parsed through the same
// Parser share one pool of workers.
type Parser struct {
	extractor *Extractor
	sem       *semaphore.Weighted
	recorder  tracing.Recorder
	meter     PageMeter
	logger    *slog.Logger
}

// Option configures a Parser.
type Option func(*Parser)

// WithRecorder emits a parse_page span per page.
func WithRecorder(r tracing.Recorder) Option { return func(p *Parser) { p.recorder = r } }

// WithMeter records page outcome metrics.
func WithMeter(m PageMeter) Option { return func(p *Parser) { p.meter = m } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(p *Parser) { p.logger = l } }

// New creates a Parser running at most workers page extractions at once.
func New(extractor *Extractor, workers int, opts ...Option) *Parser {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	p := &Parser{extractor: extractor, sem: semaphore.NewWeighted(int64(workers))}
	for _, o := range opts {
		o(p)
	}
	p.recorder = tracing.OrNop(p.recorder)
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// ParseFolder lists folder and extracts every page.
func (p *Parser) ParseFolder(ctx context.Context, side domain.Side, folder, contractID string) (domain.ExtractedText, error) {
	docs, err := List(folder)
	if err != nil {
		return domain.ExtractedText{}, err
	}
	return p.ParseDocuments(ctx, side, folder, docs, contractID)
}

// ParseDocuments extracts docs concurrently. Each worker writes only its own
// slot, so the result is in ordinal order whatever the completion order.
// A page whose extraction fails gets a placeholder; only cancellation of ctx
// fails the whole folder.
func (p *Parser) ParseDocuments(ctx context.Context, side domain.Side, folder string, docs []domain.ImageDocument, contractID string) (domain.ExtractedText, error) {
	if len(docs) == 0 {
		return domain.ExtractedText{}, fmt.Errorf("parser: parse %s: %w", folder, domain.ErrNoImagesFound)
	}
	segments := make([]string, len(docs))
	pages := make([]domain.PageOutcome, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	for i, doc := range docs {
		g.Go(func() error {
			if err := p.sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer p.sem.Release(1)
			segments[i], pages[i] = p.parsePage(gctx, side, contractID, doc)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return domain.ExtractedText{}, fmt.Errorf("parser: parse %s: %w", folder, err)
	}
	return domain.NewExtractedText(side, folder, docs, segments, pages), nil
}

func (p *Parser) parsePage(ctx context.Context, side domain.Side, contractID string, doc domain.ImageDocument) (string, domain.PageOutcome) {
	ctx, span := p.recorder.Start(ctx, "parse_page", doc)
	span.SetAttribute("side", string(side))
	span.SetAttribute("page", doc.Ordinal)

	out := domain.PageOutcome{Ordinal: doc.Ordinal, Name: doc.Name}
	resp, err := p.extractor.Extract(ctx, contractID, doc)
	out.Attempts = len(resp.Attempts)

	var text string
	if err != nil {
		out.Status = domain.PageFailed
		out.Error = failureCause(err)
		text = domain.FailedPagePlaceholder(doc.Ordinal, out.Error)
		if ctx.Err() == nil {
			p.logger.Warn("page extraction failed",
				"contract_id", contractID,
				"side", string(side),
				"page", doc.Ordinal,
				"file", doc.Name,
				"error", err,
			)
		}
	} else {
		out.Model = resp.Model
		out.Status = domain.PageExtracted
		if resp.Model != p.extractor.Chain().Primary() {
			out.Status = domain.PageFallback
		}
		text = resp.Text
	}
	span.SetAttribute("status", string(out.Status))
	if p.meter != nil {
		p.meter.RecordPage(ctx, string(side), string(out.Status))
	}
	span.End(out, err)
	return text, out
}

func failureCause(err error) string {
	var ex *llm.ExhaustedError
	if errors.As(err, &ex) {
		return fmt.Sprintf("all %d model candidates failed, last: %s", len(ex.Attempts), ex.LastKind())
	}
	return err.Error()
}
