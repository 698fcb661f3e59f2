package queues

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claw-gang/amendment-diff/internal/temporal/versioning"
)

func TestParseQueues_Default(t *testing.T) {
	got, err := ParseQueues("")
	require.NoError(t, err)
	assert.Equal(t, []string{versioning.QueueComparison, versioning.QueuePages}, got)
}

func TestParseQueues_ShortAndFullNames(t *testing.T) {
	got, err := ParseQueues("pages, amendment-compare, pages")
	require.NoError(t, err)
	assert.Equal(t, []string{versioning.QueuePages, versioning.QueueComparison}, got)
}

func TestParseQueues_Unknown(t *testing.T) {
	_, err := ParseQueues("compare,exec")
	assert.Error(t, err)
}

func TestDefaultConfigs(t *testing.T) {
	cfgs := DefaultConfigs()
	require.Len(t, cfgs, 2)
	for name, c := range cfgs {
		assert.Equal(t, name, c.Name)
		assert.Positive(t, c.Options.MaxConcurrentActivityExecutionSize)
	}
}
