// Package tracing records pipeline stages and model attempts as a
// hierarchical trace. Recorders are passed explicitly to each component;
// there is no process-wide tracer.
package tracing

import (
	"context"
	"time"
)

// Status is the outcome of a span.
type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// Recorder starts spans. Implementations must be safe for concurrent use.
type Recorder interface {
	Start(ctx context.Context, name string, input any) (context.Context, Span)
}

// Span is one named, timed unit of work. End must be called exactly once.
type Span interface {
	// SetAttribute attaches a scalar attribute to the span.
	SetAttribute(key string, value any)
	// End closes the span with its output; a non-nil err marks it failed.
	End(output any, err error)
}

type (
	sessionKey struct{}
	userKey    struct{}
)

// WithSession returns a context carrying the session grouping key. Every span
// started beneath it is tagged with the session id.
func WithSession(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionKey{}, sessionID)
}

// SessionFromContext returns the session id set by WithSession.
func SessionFromContext(ctx context.Context) string {
	v, _ := ctx.Value(sessionKey{}).(string)
	return v
}

// WithUser returns a context carrying the authenticated caller. Spans started
// beneath it are attributed to that user.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey{}, userID)
}

// UserFromContext returns the user id set by WithUser.
func UserFromContext(ctx context.Context) string {
	v, _ := ctx.Value(userKey{}).(string)
	return v
}

// Nop returns a recorder that discards everything.
func Nop() Recorder { return nopRecorder{} }

type nopRecorder struct{}

func (nopRecorder) Start(ctx context.Context, _ string, _ any) (context.Context, Span) {
	return ctx, nopSpan{}
}

type nopSpan struct{}

func (nopSpan) SetAttribute(string, any) {}
func (nopSpan) End(any, error)           {}

// OrNop returns r, or the no-op recorder when r is nil.
func OrNop(r Recorder) Recorder {
	if r == nil {
		return Nop()
	}
	return r
}

// Record is a completed span as stored by the in-memory recorder.
type Record struct {
	TraceID    string         `json:"trace_id"`
	SpanID     string         `json:"span_id"`
	ParentID   string         `json:"parent_id,omitempty"`
	SessionID  string         `json:"session_id,omitempty"`
	UserID     string         `json:"user_id,omitempty"`
	Name       string         `json:"name"`
	Input      any            `json:"input,omitempty"`
	Output     any            `json:"output,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
	Status     Status         `json:"status"`
	Error      string         `json:"error,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	Duration   time.Duration  `json:"duration"`
}
