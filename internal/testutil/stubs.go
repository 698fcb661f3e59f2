// Package testutil provides scripted model providers and page fixtures for
// tests.
package testutil

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/claw-gang/amendment-diff/internal/llm"
)

// StubProvider is a scripted llm.Provider. Vision calls are answered by
// image content; text calls by schema name, from a queue whose last reply
// repeats. Models marked failing always return their error.
type StubProvider struct {
	mu      sync.Mutex
	pages   map[string]string
	replies map[string][]string
	failing map[string]error
	jitter  time.Duration
	rng     *rand.Rand
	calls   []llm.Call
}

// NewStubProvider creates an empty stub.
func NewStubProvider() *StubProvider {
	return &StubProvider{
		pages:   map[string]string{},
		replies: map[string][]string{},
		failing: map[string]error{},
		rng:     rand.New(rand.NewSource(1)),
	}
}

// Page answers vision calls for image with text.
func (s *StubProvider) Page(image []byte, text string) *StubProvider {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[string(image)] = text
	return s
}

// Reply queues answers for structured calls using schema.
func (s *StubProvider) Reply(schema string, replies ...string) *StubProvider {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies[schema] = append(s.replies[schema], replies...)
	return s
}

// FailModel makes every call to model fail. A nil err means a 503.
func (s *StubProvider) FailModel(model string, err error) *StubProvider {
	if err == nil {
		err = &llm.ProviderError{Kind: llm.KindUpstream, Status: 503, Msg: "unavailable"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing[model] = err
	return s
}

// WithJitter delays every call by a random duration up to d.
func (s *StubProvider) WithJitter(d time.Duration) *StubProvider {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jitter = d
	return s
}

// Complete implements llm.Provider.
func (s *StubProvider) Complete(ctx context.Context, call llm.Call) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, call)
	var delay time.Duration
	if s.jitter > 0 {
		delay = time.Duration(s.rng.Int63n(int64(s.jitter)))
	}
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.failing[call.Model]; ok {
		return "", err
	}
	if call.Image != nil {
		text, ok := s.pages[string(call.Image.Data)]
		if !ok {
			return "", &llm.ProviderError{Kind: llm.KindUpstream, Status: 400, Msg: "unknown page"}
		}
		return text, nil
	}
	name := ""
	if call.Schema != nil {
		name = call.Schema.Name
	}
	q := s.replies[name]
	if len(q) == 0 {
		return "", &llm.ProviderError{Kind: llm.KindUpstream, Status: 400, Msg: "no scripted reply for " + name}
	}
	reply := q[0]
	if len(q) > 1 {
		s.replies[name] = q[1:]
	}
	return reply, nil
}

// Calls returns every call received, in arrival order.
func (s *StubProvider) Calls() []llm.Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]llm.Call(nil), s.calls...)
}

// CallsFor counts calls made to model.
func (s *StubProvider) CallsFor(model string) int {
	n := 0
	for _, c := range s.Calls() {
		if c.Model == model {
			n++
		}
	}
	return n
}

// VisionCalls counts calls that carried an image.
func (s *StubProvider) VisionCalls() int {
	n := 0
	for _, c := range s.Calls() {
		if c.Image != nil {
			n++
		}
	}
	return n
}
