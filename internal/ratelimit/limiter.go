// Package ratelimit provides per-model token-bucket limiters and per-contract
// model call budgets.
package ratelimit

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"
)

// ModelRates configures request rates (requests per second) per model id.
// Models without an override use Default. A Default of zero or less
// disables limiting for those models.
type ModelRates struct {
	Default   float64
	Overrides map[string]float64
}

// DefaultModelRates returns a conservative limit for hosted model APIs.
func DefaultModelRates() ModelRates {
	return ModelRates{Default: 2}
}

// ModelLimiter rate-limits outbound model calls per model id using token
// buckets. Buckets are created lazily on first use.
type ModelLimiter struct {
	mu       sync.RWMutex
	rates    ModelRates
	limiters map[string]*rate.Limiter
}

// NewModelLimiter creates a limiter with the given per-model rates.
func NewModelLimiter(rates ModelRates) *ModelLimiter {
	return &ModelLimiter{rates: rates, limiters: make(map[string]*rate.Limiter)}
}

func (ml *ModelLimiter) limiter(model string) *rate.Limiter {
	ml.mu.RLock()
	l, ok := ml.limiters[model]
	ml.mu.RUnlock()
	if ok {
		return l
	}

	rps := ml.rates.Default
	if v, ok := ml.rates.Overrides[model]; ok {
		rps = v
	}
	ml.mu.Lock()
	defer ml.mu.Unlock()
	if l, ok := ml.limiters[model]; ok {
		return l
	}
	if rps > 0 {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		l = rate.NewLimiter(rate.Limit(rps), burst)
	}
	// nil marks an unlimited model so the lookup is not repeated.
	ml.limiters[model] = l
	return l
}

// Wait blocks until a token is available for the model, or ctx is cancelled.
// A nil receiver never blocks.
func (ml *ModelLimiter) Wait(ctx context.Context, model string) error {
	if ml == nil {
		return nil
	}
	l := ml.limiter(model)
	if l == nil {
		return nil
	}
	if err := l.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit %s: %w", model, err)
	}
	return nil
}
