package ratelimit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelLimiter_Wait(t *testing.T) {
	ml := NewModelLimiter(ModelRates{Default: 100})

	err := ml.Wait(context.Background(), "openai/gpt-4o")
	require.NoError(t, err)
}

func TestModelLimiter_DisabledDefault(t *testing.T) {
	ml := NewModelLimiter(ModelRates{Default: 0})

	for i := 0; i < 10; i++ {
		require.NoError(t, ml.Wait(context.Background(), "any/model"))
	}
}

func TestModelLimiter_NilReceiver(t *testing.T) {
	var ml *ModelLimiter
	assert.NoError(t, ml.Wait(context.Background(), "openai/gpt-4o"))
}

func TestModelLimiter_CancelledContext(t *testing.T) {
	ml := NewModelLimiter(ModelRates{Default: 100, Overrides: map[string]float64{"slow/model": 0.001}})

	// Consume the burst.
	_ = ml.Wait(context.Background(), "slow/model")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := ml.Wait(ctx, "slow/model")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "slow/model")

	// Other models keep their own bucket.
	assert.NoError(t, ml.Wait(context.Background(), "fast/model"))
}
