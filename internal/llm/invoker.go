package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/claw-gang/amendment-diff/internal/ratelimit"
	"github.com/claw-gang/amendment-diff/internal/tracing"
)

// AttemptMeter receives one observation per model attempt. outcome is "ok"
// or the FailureKind.
type AttemptMeter interface {
	RecordModelAttempt(ctx context.Context, model, outcome string, latency time.Duration)
}

// Invoker walks a Chain until one candidate answers with non-empty text.
type Invoker struct {
	provider Provider
	limiter  *ratelimit.ModelLimiter
	budget   *ratelimit.CallBudget
	recorder tracing.Recorder
	meter    AttemptMeter
	timeout  time.Duration
	logger   *slog.Logger
}

// Option configures an Invoker.
type Option func(*Invoker)

// WithLimiter rate-limits calls per model.
func WithLimiter(l *ratelimit.ModelLimiter) Option { return func(i *Invoker) { i.limiter = l } }

// WithBudget caps calls per contract.
func WithBudget(b *ratelimit.CallBudget) Option { return func(i *Invoker) { i.budget = b } }

// WithRecorder emits one model_call span per attempt.
func WithRecorder(r tracing.Recorder) Option { return func(i *Invoker) { i.recorder = r } }

// WithMeter records attempt metrics.
func WithMeter(m AttemptMeter) Option { return func(i *Invoker) { i.meter = m } }

// WithTimeout bounds each attempt. Zero disables the per-attempt timeout.
func WithTimeout(d time.Duration) Option { return func(i *Invoker) { i.timeout = d } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(i *Invoker) { i.logger = l } }

// NewInvoker creates an Invoker over provider.
func NewInvoker(provider Provider, opts ...Option) *Invoker {
	inv := &Invoker{provider: provider, timeout: 90 * time.Second}
	for _, o := range opts {
		o(inv)
	}
	inv.recorder = tracing.OrNop(inv.recorder)
	if inv.logger == nil {
		inv.logger = slog.Default()
	}
	return inv
}

// Recorder returns the recorder attempts are traced to.
func (inv *Invoker) Recorder() tracing.Recorder { return inv.recorder }

// Invoke tries each candidate in order. Transport errors, rate limits,
// timeouts, malformed and empty responses advance to the next candidate. An
// exhausted call budget stops the chain. Cancellation of ctx itself is
// returned as is, without trying further candidates.
func (inv *Invoker) Invoke(ctx context.Context, req Request, chain Chain) (Response, error) {
	if len(chain) == 0 {
		return Response{}, fmt.Errorf("llm: invoke: empty model chain")
	}
	attempts := make([]Attempt, 0, len(chain))
	for i, model := range chain {
		if err := ctx.Err(); err != nil {
			return Response{Attempts: attempts}, fmt.Errorf("llm: invoke: %w", err)
		}
		text, a := inv.attempt(ctx, req, model, i+1)
		attempts = append(attempts, a)
		if a.Kind == "" {
			return Response{Text: text, Model: model, Attempts: attempts}, nil
		}
		if err := ctx.Err(); err != nil {
			return Response{Attempts: attempts}, fmt.Errorf("llm: invoke: %w", err)
		}
		inv.logger.Warn("model attempt failed",
			"contract_id", req.ContractID,
			"call", req.Label,
			"model", model,
			"attempt", i+1,
			"kind", string(a.Kind),
			"error", a.Error,
		)
		if a.Kind == KindBudget {
			break
		}
	}
	return Response{Attempts: attempts}, &ExhaustedError{Attempts: attempts}
}

func (inv *Invoker) attempt(ctx context.Context, req Request, model string, n int) (string, Attempt) {
	ctx, span := inv.recorder.Start(ctx, "model_call", map[string]any{
		"call":    req.Label,
		"model":   model,
		"attempt": n,
	})
	span.SetAttribute("model", model)
	span.SetAttribute("attempt", n)

	start := time.Now()
	text, err := inv.call(ctx, req, model)
	a := Attempt{Model: model, Latency: time.Since(start)}
	if err != nil {
		a.Kind = Classify(err)
		a.Error = err.Error()
	}

	outcome := "ok"
	if a.Kind != "" {
		outcome = string(a.Kind)
	}
	span.SetAttribute("latency_ms", a.Latency.Milliseconds())
	span.SetAttribute("outcome", outcome)
	if inv.meter != nil {
		inv.meter.RecordModelAttempt(ctx, model, outcome, a.Latency)
	}
	if err != nil {
		span.End(nil, err)
		return "", a
	}
	span.End(map[string]int{"chars": len(text)}, nil)
	return text, a
}

func (inv *Invoker) call(ctx context.Context, req Request, model string) (string, error) {
	if err := inv.budget.Take(req.ContractID); err != nil {
		return "", err
	}
	if inv.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, inv.timeout)
		defer cancel()
	}
	if err := inv.limiter.Wait(ctx, model); err != nil {
		return "", err
	}
	text, err := inv.provider.Complete(ctx, Call{
		Model:  model,
		System: req.System,
		Prompt: req.Prompt,
		Image:  req.Image,
		Schema: req.Schema,
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", &ProviderError{Kind: KindEmpty, Msg: "empty response"}
	}
	return text, nil
}
