package tracing

import (
	"context"

	"go.opentelemetry.io/otel/propagation"
)

// Carrier holds the active span, session and user of a context so spans
// started in another process (a Temporal worker) join the same trace.
type Carrier map[string]string

const (
	keySession     = "session-id"
	keyUser        = "user-id"
	keyMemoryTrace = "memory-trace-id"
	keyMemorySpan  = "memory-span-id"
)

var w3c = propagation.TraceContext{}

// Inject captures ctx into a Carrier. OTel spans travel as a W3C
// traceparent; in-memory spans under their own keys. It returns nil when
// ctx carries nothing to propagate.
func Inject(ctx context.Context) Carrier {
	c := Carrier{}
	w3c.Inject(ctx, propagation.MapCarrier(c))
	if ref, ok := ctx.Value(spanRefKey{}).(spanRef); ok {
		c[keyMemoryTrace] = ref.traceID
		c[keyMemorySpan] = ref.spanID
	}
	if sid := SessionFromContext(ctx); sid != "" {
		c[keySession] = sid
	}
	if uid := UserFromContext(ctx); uid != "" {
		c[keyUser] = uid
	}
	if len(c) == 0 {
		return nil
	}
	return c
}

// Extract returns ctx with the span held by c as the parent of spans
// started beneath it. A nil or empty carrier returns ctx unchanged.
func Extract(ctx context.Context, c Carrier) context.Context {
	if len(c) == 0 {
		return ctx
	}
	ctx = w3c.Extract(ctx, propagation.MapCarrier(c))
	if tid, sid := c[keyMemoryTrace], c[keyMemorySpan]; tid != "" && sid != "" {
		ctx = context.WithValue(ctx, spanRefKey{}, spanRef{traceID: tid, spanID: sid})
	}
	if sid := c[keySession]; sid != "" {
		ctx = WithSession(ctx, sid)
	}
	if uid := c[keyUser]; uid != "" {
		ctx = WithUser(ctx, uid)
	}
	return ctx
}
