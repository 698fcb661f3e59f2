// Package queues defines per-queue worker configuration for task-queue partitioning.
package queues

import (
	"fmt"
	"strings"

	"go.temporal.io/sdk/worker"

	"github.com/claw-gang/amendment-diff/internal/temporal/versioning"
)

// QueueConfig holds worker options for a single task queue.
type QueueConfig struct {
	Name    string
	Options worker.Options
}

// DefaultConfigs returns the standard per-queue worker options.
//
//   - QueueComparison: workflows plus listing and the two text agents
//   - QueuePages: folder parsing, each activity fans out to the vision pool
func DefaultConfigs() map[string]QueueConfig {
	return map[string]QueueConfig{
		versioning.QueueComparison: {
			Name: versioning.QueueComparison,
			Options: worker.Options{
				MaxConcurrentActivityExecutionSize:     10,
				MaxConcurrentWorkflowTaskExecutionSize: 10,
			},
		},
		versioning.QueuePages: {
			Name: versioning.QueuePages,
			Options: worker.Options{
				MaxConcurrentActivityExecutionSize:     4,
				MaxConcurrentWorkflowTaskExecutionSize: 1,
			},
		},
	}
}

// ParseQueues parses a comma-separated queue list (e.g. "compare,pages")
// into a set of queue names. Accepts both short names ("pages") and
// full names ("amendment-pages"). Returns an error for unknown queues.
func ParseQueues(raw string) ([]string, error) {
	all := []string{versioning.QueueComparison, versioning.QueuePages}
	if strings.TrimSpace(raw) == "" {
		return all, nil
	}

	shortNames := map[string]string{
		"compare": versioning.QueueComparison,
		"pages":   versioning.QueuePages,
	}
	fullNames := map[string]bool{
		versioning.QueueComparison: true,
		versioning.QueuePages:      true,
	}

	seen := make(map[string]bool)
	var result []string
	for _, part := range strings.Split(raw, ",") {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		if full, ok := shortNames[name]; ok {
			name = full
		}
		if !fullNames[name] {
			return nil, fmt.Errorf("unknown queue %q", name)
		}
		if !seen[name] {
			seen[name] = true
			result = append(result, name)
		}
	}
	if len(result) == 0 {
		return all, nil
	}
	return result, nil
}
