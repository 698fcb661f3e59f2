package llm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claw-gang/amendment-diff/internal/domain"
	"github.com/claw-gang/amendment-diff/internal/ratelimit"
	"github.com/claw-gang/amendment-diff/internal/tracing"
)

type callLog struct {
	mu     sync.Mutex
	models []string
}

func (l *callLog) add(m string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.models = append(l.models, m)
}

func scripted(log *callLog, answers map[string]func() (string, error)) Provider {
	return ProviderFunc(func(ctx context.Context, call Call) (string, error) {
		log.add(call.Model)
		if f, ok := answers[call.Model]; ok {
			return f()
		}
		return "", &ProviderError{Kind: KindUpstream, Status: 500, Msg: "unscripted"}
	})
}

func TestNewChain(t *testing.T) {
	c := NewChain("openai/gpt-4o", []string{"", "google/gemini-2.0-flash", "openai/gpt-4o", DefaultFallbackModel}, "")
	assert.Equal(t, Chain{"openai/gpt-4o", "google/gemini-2.0-flash", DefaultFallbackModel}, c)
	assert.Equal(t, "openai/gpt-4o", c.Primary())

	assert.Equal(t, Chain{DefaultFallbackModel}, NewChain("", nil, ""))
	assert.Equal(t, Chain{DefaultFallbackModel}, NewChain(DefaultFallbackModel, nil, ""))
	assert.Equal(t, Chain{"a/x", "b/default"}, NewChain("a/x", nil, "b/default"))
}

func TestChain_FromAndInsert(t *testing.T) {
	c := Chain{"a/1", "b/2", "c/3"}
	assert.Equal(t, Chain{"b/2", "c/3"}, c.From("b/2"))
	assert.Equal(t, c, c.From("unknown/x"))
	assert.Equal(t, Chain{"a/1", "b/2", "tesseract/eng", "c/3"}, c.Insert("tesseract/eng"))
	assert.Equal(t, c, c.Insert("b/2"))
	assert.Equal(t, "openai", ProviderOf("openai/gpt-4o"))
	assert.Equal(t, "", ProviderOf("gpt-4o"))
}

func TestInvoke_PrimarySucceeds(t *testing.T) {
	log := &callLog{}
	mem := tracing.NewMemory()
	inv := NewInvoker(scripted(log, map[string]func() (string, error){
		"a/primary": func() (string, error) { return "hello", nil },
	}), WithRecorder(mem))

	resp, err := inv.Invoke(context.Background(), Request{Label: "test"}, Chain{"a/primary", DefaultFallbackModel})
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Text)
	assert.Equal(t, "a/primary", resp.Model)
	assert.Len(t, resp.Attempts, 1)
	assert.Equal(t, []string{"a/primary"}, log.models)

	spans := mem.ByName("model_call")
	require.Len(t, spans, 1)
	assert.Equal(t, "a/primary", spans[0].Attributes["model"])
	assert.Equal(t, "ok", spans[0].Attributes["outcome"])
}

func TestInvoke_FallsBackOnEachFailureKind(t *testing.T) {
	log := &callLog{}
	mem := tracing.NewMemory()
	inv := NewInvoker(scripted(log, map[string]func() (string, error){
		"a/rate":      func() (string, error) { return "", &ProviderError{Kind: KindRateLimited, Status: 429} },
		"b/transport": func() (string, error) { return "", errors.New("connection reset") },
		"c/empty":     func() (string, error) { return "   \n", nil },
		DefaultFallbackModel: func() (string, error) {
			return "from default", nil
		},
	}), WithRecorder(mem))

	chain := Chain{"a/rate", "b/transport", "c/empty", DefaultFallbackModel}
	resp, err := inv.Invoke(context.Background(), Request{}, chain)
	require.NoError(t, err)
	assert.Equal(t, "from default", resp.Text)
	assert.Equal(t, DefaultFallbackModel, resp.Model)
	require.Len(t, resp.Attempts, 4)
	assert.Equal(t, KindRateLimited, resp.Attempts[0].Kind)
	assert.Equal(t, KindTransport, resp.Attempts[1].Kind)
	assert.Equal(t, KindEmpty, resp.Attempts[2].Kind)
	assert.Equal(t, FailureKind(""), resp.Attempts[3].Kind)
	assert.Equal(t, []string(chain), log.models)
	assert.Len(t, mem.ByName("model_call"), 4)
}

func TestInvoke_Exhausted(t *testing.T) {
	log := &callLog{}
	inv := NewInvoker(scripted(log, nil))

	_, err := inv.Invoke(context.Background(), Request{}, Chain{"a/1", "b/2"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrAllCandidatesExhausted))

	var ex *ExhaustedError
	require.True(t, errors.As(err, &ex))
	assert.Len(t, ex.Attempts, 2)
	assert.Equal(t, KindUpstream, ex.LastKind())
}

func TestInvoke_TimeoutAdvances(t *testing.T) {
	log := &callLog{}
	p := ProviderFunc(func(ctx context.Context, call Call) (string, error) {
		log.add(call.Model)
		if call.Model == "slow/model" {
			<-ctx.Done()
			return "", ctx.Err()
		}
		return "fast", nil
	})
	inv := NewInvoker(p, WithTimeout(20*time.Millisecond))

	resp, err := inv.Invoke(context.Background(), Request{}, Chain{"slow/model", "fast/model"})
	require.NoError(t, err)
	assert.Equal(t, "fast", resp.Text)
	assert.Equal(t, KindTimeout, resp.Attempts[0].Kind)
}

func TestInvoke_ParentCancelStopsChain(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	log := &callLog{}
	p := ProviderFunc(func(ctx context.Context, call Call) (string, error) {
		log.add(call.Model)
		cancel()
		return "", ctx.Err()
	})
	inv := NewInvoker(p)

	_, err := inv.Invoke(ctx, Request{}, Chain{"a/1", "b/2", "c/3"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, errors.Is(err, domain.ErrAllCandidatesExhausted))
	assert.Equal(t, []string{"a/1"}, log.models)
}

func TestInvoke_BudgetStopsChain(t *testing.T) {
	log := &callLog{}
	inv := NewInvoker(scripted(log, nil), WithBudget(ratelimit.NewCallBudget(1, time.Hour)))

	_, err := inv.Invoke(context.Background(), Request{ContractID: "c-1"}, Chain{"a/1", "b/2", "c/3"})
	var ex *ExhaustedError
	require.True(t, errors.As(err, &ex))
	require.Len(t, ex.Attempts, 2)
	assert.Equal(t, KindUpstream, ex.Attempts[0].Kind)
	assert.Equal(t, KindBudget, ex.Attempts[1].Kind)
	assert.Equal(t, []string{"a/1"}, log.models)
}

type meterSpy struct {
	mu       sync.Mutex
	outcomes []string
}

func (m *meterSpy) RecordModelAttempt(_ context.Context, model, outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, model+":"+outcome)
}

func TestInvoke_Meter(t *testing.T) {
	spy := &meterSpy{}
	log := &callLog{}
	inv := NewInvoker(scripted(log, map[string]func() (string, error){
		"b/2": func() (string, error) { return "ok", nil },
	}), WithMeter(spy), WithLimiter(ratelimit.NewModelLimiter(ratelimit.ModelRates{Default: 1000})))

	_, err := inv.Invoke(context.Background(), Request{}, Chain{"a/1", "b/2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a/1:upstream", "b/2:ok"}, spy.outcomes)
}

func TestInvoke_EmptyChain(t *testing.T) {
	inv := NewInvoker(scripted(&callLog{}, nil))
	_, err := inv.Invoke(context.Background(), Request{}, nil)
	assert.Error(t, err)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, FailureKind(""), Classify(nil))
	assert.Equal(t, KindTimeout, Classify(context.DeadlineExceeded))
	assert.Equal(t, KindBudget, Classify(ratelimit.ErrBudgetExceeded))
	assert.Equal(t, KindMalformed, Classify(&ProviderError{Kind: KindMalformed}))
	assert.Equal(t, KindTransport, Classify(errors.New("dial tcp: refused")))
}
