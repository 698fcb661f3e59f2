package shadow

import (
	"context"
	"fmt"

	"github.com/claw-gang/amendment-diff/internal/domain"
	"github.com/claw-gang/amendment-diff/internal/pipeline"
)

// Rerun executes the same comparison n times and compares every later run
// with the first. Results are returned in run order starting at the second
// run.
func Rerun(ctx context.Context, r pipeline.Runner, originalFolder, amendmentFolder, contractID string, n int) ([]*ComparisonResult, error) {
	if n < 2 {
		return nil, fmt.Errorf("rerun: need at least 2 runs, got %d", n)
	}
	var first domain.ContractChangeSummary
	var out []*ComparisonResult
	for i := range n {
		s, err := r.Run(ctx, originalFolder, amendmentFolder, contractID)
		if err != nil {
			return out, fmt.Errorf("rerun: run %d: %w", i+1, err)
		}
		if i == 0 {
			first = s
			continue
		}
		out = append(out, CompareSummaries(first, s))
	}
	return out, nil
}
