// Package workflows defines the Temporal workflow functions.
package workflows

import (
	"errors"
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/claw-gang/amendment-diff/internal/domain"
	"github.com/claw-gang/amendment-diff/internal/temporal/activities"
	"github.com/claw-gang/amendment-diff/internal/temporal/versioning"
	"github.com/claw-gang/amendment-diff/internal/tracing"
)

// QueryNameState is the query handler returning the current ComparisonResult.
const QueryNameState = "state"

// ComparisonInput is the input to the contract comparison workflow.
type ComparisonInput struct {
	ContractID      string `json:"contract_id"`
	OriginalFolder  string `json:"original_folder"`
	AmendmentFolder string `json:"amendment_folder"`
	// PagesQueue routes ParseContract to a separate task queue when set.
	PagesQueue string `json:"pages_queue,omitempty"`
	// Trace parents every activity's stage span under the caller's root span.
	Trace tracing.Carrier `json:"trace,omitempty"`
}

// ComparisonResult is the output of the contract comparison workflow.
// The workflow returns this on all paths; only infra failures produce
// workflow-level errors.
type ComparisonResult struct {
	ContractID  string                       `json:"contract_id"`
	State       string                       `json:"state"`
	States      []string                     `json:"states"`
	Summary     domain.ContractChangeSummary `json:"summary"`
	Original    []domain.PageOutcome         `json:"original_pages,omitempty"`
	Amendment   []domain.PageOutcome         `json:"amendment_pages,omitempty"`
	FailedStage domain.Stage                 `json:"failed_stage,omitempty"`
	ErrorType   string                       `json:"error_type,omitempty"`
	Error       string                       `json:"error,omitempty"`
}

// Err rebuilds the stage failure recorded on the result, or returns nil.
func (r ComparisonResult) Err() error {
	if r.FailedStage == "" {
		return nil
	}
	cause := errors.New(r.Error)
	if s := activities.Sentinel(r.ErrorType); s != nil {
		cause = fmt.Errorf("%w: %s", s, r.Error)
	}
	return &domain.StageError{Stage: r.FailedStage, Err: cause}
}

func (r *ComparisonResult) enter(state string) {
	r.State = state
	r.States = append(r.States, state)
}

func (r *ComparisonResult) fail(stage domain.Stage, err error) (ComparisonResult, error) {
	r.enter("failed")
	r.FailedStage = stage
	r.ErrorType = activities.ErrorType(err)
	r.Error = err.Error()
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		r.Error = appErr.Error()
	}
	r.Summary = domain.ContractChangeSummary{}
	return *r, nil
}

// ContractComparisonWorkflow runs the comparison as durable steps:
//
//	list (both) -> parse original || parse amendment -> contextualize -> extract -> validate
//
// Listing runs first so an empty folder fails before any model call.
// Validation runs in-workflow (pure function, no I/O, determinism-safe); the
// starter records its span from the returned States.
func ContractComparisonWorkflow(ctx workflow.Context, in ComparisonInput) (ComparisonResult, error) {
	logger := workflow.GetLogger(ctx)
	res := ComparisonResult{ContractID: in.ContractID}
	res.enter("idle")

	if err := workflow.SetQueryHandler(ctx, QueryNameState, func() (ComparisonResult, error) {
		return res, nil
	}); err != nil {
		return ComparisonResult{}, fmt.Errorf("register query handler: %w", err)
	}
	workflow.GetVersion(ctx, versioning.ContractComparisonV1, workflow.DefaultVersion, 1)

	// Model failures are already retried by the fallback chain inside each
	// activity, so Temporal does not retry.
	noRetry := &temporal.RetryPolicy{MaximumAttempts: 1}
	shortCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: time.Minute,
		RetryPolicy:         noRetry,
	})
	parseOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Minute,
		RetryPolicy:         noRetry,
		TaskQueue:           in.PagesQueue,
	}
	parseCtx := workflow.WithActivityOptions(ctx, parseOpts)
	agentCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		RetryPolicy:         noRetry,
	})

	// ------------------------------------------------------------------
	// List both folders
	// ------------------------------------------------------------------
	var origList, amendList activities.ListContractPagesOutput
	if err := workflow.ExecuteActivity(shortCtx, "ListContractPages", activities.ListContractPagesInput{
		ContractID: in.ContractID, Side: domain.SideOriginal, Folder: in.OriginalFolder, Trace: in.Trace,
	}).Get(ctx, &origList); err != nil {
		return res.fail(domain.StageParseOriginal, err)
	}
	if err := workflow.ExecuteActivity(shortCtx, "ListContractPages", activities.ListContractPagesInput{
		ContractID: in.ContractID, Side: domain.SideAmendment, Folder: in.AmendmentFolder, Trace: in.Trace,
	}).Get(ctx, &amendList); err != nil {
		return res.fail(domain.StageParseAmendment, err)
	}

	// ------------------------------------------------------------------
	// Parse both folders in parallel
	// ------------------------------------------------------------------
	res.enter("parsing")
	origF := workflow.ExecuteActivity(parseCtx, "ParseContract", activities.ParseContractInput{
		ContractID: in.ContractID, Side: domain.SideOriginal, Folder: in.OriginalFolder, Documents: origList.Documents, Trace: in.Trace,
	})
	amendF := workflow.ExecuteActivity(parseCtx, "ParseContract", activities.ParseContractInput{
		ContractID: in.ContractID, Side: domain.SideAmendment, Folder: in.AmendmentFolder, Documents: amendList.Documents, Trace: in.Trace,
	})
	var orig, amend activities.ParseContractOutput
	origErr := origF.Get(ctx, &orig)
	amendErr := amendF.Get(ctx, &amend)
	if origErr != nil {
		return res.fail(domain.StageParseOriginal, origErr)
	}
	if amendErr != nil {
		return res.fail(domain.StageParseAmendment, amendErr)
	}
	res.Original, res.Amendment = orig.Text.Pages, amend.Text.Pages
	logger.Info("contracts parsed",
		"original_pages", orig.Text.PageCount,
		"amendment_pages", amend.Text.PageCount,
		"failed_pages", len(orig.Text.FailedPages())+len(amend.Text.FailedPages()),
	)

	// ------------------------------------------------------------------
	// Contextualize
	// ------------------------------------------------------------------
	res.enter("contextualizing")
	var ctxOut activities.ContextualizeDocumentsOutput
	if err := workflow.ExecuteActivity(agentCtx, "ContextualizeDocuments", activities.ContextualizeDocumentsInput{
		ContractID: in.ContractID, OriginalText: orig.Text.Text, AmendmentText: amend.Text.Text, Trace: in.Trace,
	}).Get(ctx, &ctxOut); err != nil {
		return res.fail(domain.StageContextualize, err)
	}

	// ------------------------------------------------------------------
	// Extract
	// ------------------------------------------------------------------
	res.enter("extracting")
	var extOut activities.ExtractChangesOutput
	if err := workflow.ExecuteActivity(agentCtx, "ExtractChanges", activities.ExtractChangesInput{
		ContractID: in.ContractID, Context: ctxOut.Context, Trace: in.Trace,
	}).Get(ctx, &extOut); err != nil {
		return res.fail(domain.StageExtract, err)
	}

	// ------------------------------------------------------------------
	// Validate
	// ------------------------------------------------------------------
	res.enter("validating")
	if err := domain.ValidateContractChangeSummary(extOut.Summary); err != nil {
		return res.fail(domain.StageValidate, err)
	}
	res.Summary = extOut.Summary
	res.enter("done")
	logger.Info("comparison complete", "topics", len(res.Summary.TopicsTouched))
	return res, nil
}
