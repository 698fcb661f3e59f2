// Package runner starts contract comparisons on Temporal and reads their
// state back.
package runner

import (
	"context"
	"fmt"
	"slices"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/workflowservice/v1"
	"go.temporal.io/sdk/client"

	"github.com/claw-gang/amendment-diff/internal/domain"
	"github.com/claw-gang/amendment-diff/internal/pipeline"
	"github.com/claw-gang/amendment-diff/internal/temporal/versioning"
	"github.com/claw-gang/amendment-diff/internal/temporal/workflows"
	"github.com/claw-gang/amendment-diff/internal/tracing"
)

// TemporalRunner implements pipeline.Runner by executing
// ContractComparisonWorkflow and waiting for its result.
type TemporalRunner struct {
	client     client.Client
	taskQueue  string
	pagesQueue string
	recorder   tracing.Recorder
}

// Option configures a TemporalRunner.
type Option func(*TemporalRunner)

// WithRecorder opens the root span of each comparison on r. Workers
// continue the trace from the carrier passed in the workflow input.
func WithRecorder(r tracing.Recorder) Option { return func(t *TemporalRunner) { t.recorder = r } }

// New creates a TemporalRunner. An empty taskQueue means
// versioning.QueueComparison; pagesQueue may be empty to parse on the
// workflow's queue.
func New(c client.Client, taskQueue, pagesQueue string, opts ...Option) *TemporalRunner {
	if taskQueue == "" {
		taskQueue = versioning.QueueComparison
	}
	r := &TemporalRunner{client: c, taskQueue: taskQueue, pagesQueue: pagesQueue}
	for _, o := range opts {
		o(r)
	}
	r.recorder = tracing.OrNop(r.recorder)
	return r
}

// WorkflowID is the id used for a contract's comparison. One comparison
// per contract runs at a time: a request made while one is running
// attaches to it and receives its result. Re-running a contract reuses
// the id once the previous run has closed.
func WorkflowID(contractID string) string {
	return "contract-comparison-" + contractID
}

// Run implements pipeline.Runner.
func (r *TemporalRunner) Run(ctx context.Context, originalFolder, amendmentFolder, contractID string) (domain.ContractChangeSummary, error) {
	res, err := r.Compare(ctx, originalFolder, amendmentFolder, contractID)
	if err != nil {
		return domain.ContractChangeSummary{}, err
	}
	return res.Summary, nil
}

// Compare executes the workflow and returns its full result. A failed
// comparison is returned as a *domain.StageError. The root span is opened
// here; the validation gate runs inside the workflow, so its span is
// recorded from the result.
func (r *TemporalRunner) Compare(ctx context.Context, originalFolder, amendmentFolder, contractID string) (workflows.ComparisonResult, error) {
	ctx = tracing.WithSession(ctx, contractID)
	ctx, root := r.recorder.Start(ctx, pipeline.RootSpan, map[string]string{
		"contract_id":      contractID,
		"original_folder":  originalFolder,
		"amendment_folder": amendmentFolder,
	})
	res, err := r.compare(ctx, originalFolder, amendmentFolder, contractID)
	if err != nil {
		root.End(nil, err)
		return res, err
	}
	root.End(res.Summary, nil)
	return res, nil
}

func (r *TemporalRunner) compare(ctx context.Context, originalFolder, amendmentFolder, contractID string) (workflows.ComparisonResult, error) {
	opts := client.StartWorkflowOptions{
		ID:                    WorkflowID(contractID),
		TaskQueue:             r.taskQueue,
		WorkflowIDReusePolicy: enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
		// Attach to a comparison of the same contract that is still running.
		WorkflowExecutionErrorWhenAlreadyStarted: false,
	}
	run, err := r.client.ExecuteWorkflow(ctx, opts, workflows.ContractComparisonWorkflow, workflows.ComparisonInput{
		ContractID:      contractID,
		OriginalFolder:  originalFolder,
		AmendmentFolder: amendmentFolder,
		PagesQueue:      r.pagesQueue,
		Trace:           tracing.Inject(ctx),
	})
	if err != nil {
		return workflows.ComparisonResult{}, fmt.Errorf("runner: start workflow: %w", err)
	}
	var res workflows.ComparisonResult
	if err := run.Get(ctx, &res); err != nil {
		return workflows.ComparisonResult{}, fmt.Errorf("runner: workflow %s: %w", run.GetID(), err)
	}
	if slices.Contains(res.States, "validating") {
		var verr error
		if res.FailedStage == domain.StageValidate {
			verr = res.Err()
		}
		_, span := r.recorder.Start(ctx, string(domain.StageValidate), res.Summary)
		span.End(res.Summary, verr)
	}
	if err := res.Err(); err != nil {
		return res, err
	}
	return res, nil
}

// State returns the state of a contract's latest comparison. Completed
// workflows return their result; running ones answer the state query.
func (r *TemporalRunner) State(ctx context.Context, contractID string) (*workflows.ComparisonResult, error) {
	workflowID := WorkflowID(contractID)
	desc, err := r.client.DescribeWorkflowExecution(ctx, workflowID, "")
	if err != nil {
		return nil, fmt.Errorf("describe workflow: %w", err)
	}

	switch status := desc.WorkflowExecutionInfo.Status; status {
	case enumspb.WORKFLOW_EXECUTION_STATUS_COMPLETED:
		var result workflows.ComparisonResult
		if err := r.client.GetWorkflow(ctx, workflowID, "").Get(ctx, &result); err != nil {
			return nil, fmt.Errorf("get workflow result: %w", err)
		}
		return &result, nil
	case enumspb.WORKFLOW_EXECUTION_STATUS_RUNNING:
		resp, err := r.client.QueryWorkflow(ctx, workflowID, "", workflows.QueryNameState)
		if err != nil {
			return nil, fmt.Errorf("query workflow state: %w", err)
		}
		var result workflows.ComparisonResult
		if err := resp.Get(&result); err != nil {
			return nil, fmt.Errorf("decode query result: %w", err)
		}
		return &result, nil
	default:
		return nil, fmt.Errorf("workflow %s has status %s, cannot read state", workflowID, status)
	}
}

// ComparisonSummary is a lightweight overview of one workflow execution.
type ComparisonSummary struct {
	WorkflowID string `json:"workflow_id"`
	RunID      string `json:"run_id"`
	Status     string `json:"status"`
	StartTime  string `json:"start_time"`
	CloseTime  string `json:"close_time,omitempty"`
}

// List returns recent comparison executions on the runner's task queue.
func (r *TemporalRunner) List(ctx context.Context, pageSize int) ([]ComparisonSummary, error) {
	if pageSize <= 0 {
		pageSize = 50
	}
	resp, err := r.client.ListWorkflow(ctx, &workflowservice.ListWorkflowExecutionsRequest{
		Query:    fmt.Sprintf("TaskQueue = %q", r.taskQueue),
		PageSize: int32(pageSize),
	})
	if err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}
	var out []ComparisonSummary
	for _, exec := range resp.Executions {
		s := ComparisonSummary{
			WorkflowID: exec.Execution.WorkflowId,
			RunID:      exec.Execution.RunId,
			Status:     exec.Status.String(),
			StartTime:  exec.StartTime.AsTime().UTC().Format("2006-01-02T15:04:05Z07:00"),
		}
		if exec.CloseTime != nil {
			s.CloseTime = exec.CloseTime.AsTime().UTC().Format("2006-01-02T15:04:05Z07:00")
		}
		out = append(out, s)
	}
	return out, nil
}
