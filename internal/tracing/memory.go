package tracing

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type spanRef struct {
	traceID string
	spanID  string
}

type spanRefKey struct{}

// Memory keeps completed spans in process. Appends are safe from many
// goroutines; records are stored in completion order.
type Memory struct {
	mu      sync.Mutex
	records []Record
	now     func() time.Time
}

// NewMemory creates an empty in-memory recorder.
func NewMemory() *Memory {
	return &Memory{now: time.Now}
}

// Start implements Recorder. A span without a parent in ctx starts a new trace.
func (m *Memory) Start(ctx context.Context, name string, input any) (context.Context, Span) {
	parent, _ := ctx.Value(spanRefKey{}).(spanRef)
	ref := spanRef{traceID: parent.traceID, spanID: uuid.NewString()}
	if ref.traceID == "" {
		ref.traceID = uuid.NewString()
	}
	s := &memorySpan{
		mem: m,
		rec: Record{
			TraceID:   ref.traceID,
			SpanID:    ref.spanID,
			ParentID:  parent.spanID,
			SessionID: SessionFromContext(ctx),
			UserID:    UserFromContext(ctx),
			Name:      name,
			Input:     input,
			StartedAt: m.now(),
		},
	}
	return context.WithValue(ctx, spanRefKey{}, ref), s
}

func (m *Memory) append(r Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, r)
}

// Records returns a copy of all completed spans.
func (m *Memory) Records() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Record(nil), m.records...)
}

// ByName returns completed spans with the given name.
func (m *Memory) ByName(name string) []Record {
	var out []Record
	for _, r := range m.Records() {
		if r.Name == name {
			out = append(out, r)
		}
	}
	return out
}

// Reset drops all stored spans.
func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = nil
}

type memorySpan struct {
	mem  *Memory
	once sync.Once
	mu   sync.Mutex
	rec  Record
}

func (s *memorySpan) SetAttribute(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rec.Attributes == nil {
		s.rec.Attributes = make(map[string]any)
	}
	s.rec.Attributes[key] = value
}

func (s *memorySpan) End(output any, err error) {
	s.once.Do(func() {
		s.mu.Lock()
		rec := s.rec
		s.mu.Unlock()
		rec.Output = output
		rec.Duration = s.mem.now().Sub(rec.StartedAt)
		rec.Status = StatusOK
		if err != nil {
			rec.Status = StatusError
			rec.Error = err.Error()
		}
		s.mem.append(rec)
	})
}
