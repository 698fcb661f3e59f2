package tracing

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// maxPayloadBytes caps serialized input/output attributes. Page text can be large.
const maxPayloadBytes = 8 << 10

// OTel records spans through an OpenTelemetry tracer. Inputs and outputs are
// attached as JSON string attributes; the session id is exported as
// session.id (and the caller as user.id) so OTLP backends can group a
// contract's runs.
type OTel struct {
	tracer trace.Tracer
}

// NewOTel creates a recorder using the global tracer provider.
func NewOTel(instrumentation string) *OTel {
	return &OTel{tracer: otel.Tracer(instrumentation)}
}

// NewOTelWithTracer creates a recorder from an explicit tracer (for testing).
func NewOTelWithTracer(t trace.Tracer) *OTel {
	return &OTel{tracer: t}
}

func (o *OTel) Start(ctx context.Context, name string, input any) (context.Context, Span) {
	attrs := []attribute.KeyValue{attribute.String("input", payload(input))}
	if sid := SessionFromContext(ctx); sid != "" {
		attrs = append(attrs, attribute.String("session.id", sid))
	}
	if uid := UserFromContext(ctx); uid != "" {
		attrs = append(attrs, attribute.String("user.id", uid))
	}
	ctx, span := o.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, &otelSpan{span: span}
}

type otelSpan struct {
	span trace.Span
}

func (s *otelSpan) SetAttribute(key string, value any) {
	s.span.SetAttributes(toAttribute(key, value))
}

func (s *otelSpan) End(output any, err error) {
	if output != nil {
		s.span.SetAttributes(attribute.String("output", payload(output)))
	}
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	} else {
		s.span.SetStatus(codes.Ok, "")
	}
	s.span.End()
}

func toAttribute(key string, value any) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	case bool:
		return attribute.Bool(key, v)
	case []string:
		return attribute.StringSlice(key, v)
	case fmt.Stringer:
		return attribute.String(key, v.String())
	}
	return attribute.String(key, payload(value))
}

func payload(v any) string {
	if v == nil {
		return ""
	}
	var s string
	switch t := v.(type) {
	case string:
		s = t
	default:
		b, err := json.Marshal(v)
		if err != nil {
			s = fmt.Sprintf("%v", v)
		} else {
			s = string(b)
		}
	}
	return truncate(strings.ToValidUTF8(s, "\uFFFD"), maxPayloadBytes)
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "...(truncated)"
}
