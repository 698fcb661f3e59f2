package runner

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/mocks"

	"github.com/claw-gang/amendment-diff/internal/domain"
	"github.com/claw-gang/amendment-diff/internal/temporal/activities"
	"github.com/claw-gang/amendment-diff/internal/temporal/versioning"
	"github.com/claw-gang/amendment-diff/internal/temporal/workflows"
	"github.com/claw-gang/amendment-diff/internal/tracing"
)

func mockRun(res workflows.ComparisonResult) *mocks.WorkflowRun {
	run := &mocks.WorkflowRun{}
	run.On("GetID").Return("wf-1").Maybe()
	run.On("Get", mock.Anything, mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		*args.Get(1).(*workflows.ComparisonResult) = res
	})
	return run
}

func TestRun_Success(t *testing.T) {
	summary := domain.ContractChangeSummary{
		TopicsTouched:      []string{"Liability allocation"},
		SectionsChanged:    []string{"Section 7"},
		SummaryOfTheChange: "Section 7: -cap",
	}
	c := &mocks.Client{}
	c.On("ExecuteWorkflow", mock.Anything, mock.MatchedBy(func(o client.StartWorkflowOptions) bool {
		return o.ID == WorkflowID("c-1") &&
			o.TaskQueue == versioning.QueueComparison &&
			o.WorkflowIDReusePolicy == enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE &&
			!o.WorkflowExecutionErrorWhenAlreadyStarted
	}), mock.Anything, mock.MatchedBy(func(in workflows.ComparisonInput) bool {
		return in.ContractID == "c-1" && in.OriginalFolder == "/o" && in.PagesQueue == versioning.QueuePages
	})).Return(mockRun(workflows.ComparisonResult{State: "done", Summary: summary}), nil)

	r := New(c, "", versioning.QueuePages)
	got, err := r.Run(context.Background(), "/o", "/a", "c-1")
	require.NoError(t, err)
	assert.Equal(t, summary, got)
	c.AssertExpectations(t)
}

func TestRun_StageFailure(t *testing.T) {
	c := &mocks.Client{}
	c.On("ExecuteWorkflow", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(mockRun(workflows.ComparisonResult{
		State:       "failed",
		FailedStage: domain.StageParseAmendment,
		ErrorType:   activities.ErrTypeNoImagesFound,
		Error:       "no images found",
	}), nil)

	_, err := New(c, "", "").Run(context.Background(), "/o", "/a", "c-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNoImagesFound))
	stage, ok := domain.FailedStage(err)
	require.True(t, ok)
	assert.Equal(t, domain.StageParseAmendment, stage)
}

func TestRun_StartError(t *testing.T) {
	c := &mocks.Client{}
	c.On("ExecuteWorkflow", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("unavailable"))

	_, err := New(c, "q", "").Run(context.Background(), "/o", "/a", "c-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start workflow")
}

func TestCompare_RootSpanParentsWorkerSpans(t *testing.T) {
	mem := tracing.NewMemory()
	summary := domain.ContractChangeSummary{
		TopicsTouched:      []string{"Liability allocation"},
		SectionsChanged:    []string{"Section 7"},
		SummaryOfTheChange: "Section 7: -cap",
	}
	c := &mocks.Client{}
	c.On("ExecuteWorkflow", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(mockRun(workflows.ComparisonResult{
			State:   "done",
			States:  []string{"idle", "parsing", "contextualizing", "extracting", "validating", "done"},
			Summary: summary,
		}), nil).
		Run(func(args mock.Arguments) {
			// Stand in for a worker continuing the trace from the input.
			in := args.Get(3).(workflows.ComparisonInput)
			_, span := mem.Start(tracing.Extract(context.Background(), in.Trace), string(domain.StageExtract), nil)
			span.End(nil, nil)
		})

	_, err := New(c, "", "", WithRecorder(mem)).Compare(context.Background(), "/o", "/a", "c-1")
	require.NoError(t, err)

	roots := mem.ByName("compare_contracts")
	require.Len(t, roots, 1)
	root := roots[0]
	assert.Empty(t, root.ParentID)
	assert.Equal(t, "c-1", root.SessionID)
	for _, name := range []domain.Stage{domain.StageExtract, domain.StageValidate} {
		spans := mem.ByName(string(name))
		require.Len(t, spans, 1, name)
		assert.Equal(t, root.TraceID, spans[0].TraceID, name)
		assert.Equal(t, root.SpanID, spans[0].ParentID, name)
		assert.Equal(t, tracing.StatusOK, spans[0].Status, name)
	}
}

func TestCompare_FailureRecordedOnSpans(t *testing.T) {
	mem := tracing.NewMemory()
	c := &mocks.Client{}
	c.On("ExecuteWorkflow", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(mockRun(workflows.ComparisonResult{
		State:       "failed",
		States:      []string{"idle", "parsing", "contextualizing", "extracting", "validating", "failed"},
		FailedStage: domain.StageValidate,
		ErrorType:   activities.ErrTypeValidation,
		Error:       "summary_of_the_change: line 1: must start with \"Section <id>:\"",
	}), nil)

	_, err := New(c, "", "", WithRecorder(mem)).Compare(context.Background(), "/o", "/a", "c-1")
	require.Error(t, err)

	v := mem.ByName(string(domain.StageValidate))
	require.Len(t, v, 1)
	assert.Equal(t, tracing.StatusError, v[0].Status)
	root := mem.ByName("compare_contracts")[0]
	assert.Equal(t, tracing.StatusError, root.Status)
	assert.Equal(t, root.SpanID, v[0].ParentID)
}

func TestCompare_NoValidateSpanBeforeGate(t *testing.T) {
	mem := tracing.NewMemory()
	c := &mocks.Client{}
	c.On("ExecuteWorkflow", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(mockRun(workflows.ComparisonResult{
		State:       "failed",
		States:      []string{"idle", "failed"},
		FailedStage: domain.StageParseAmendment,
		ErrorType:   activities.ErrTypeNoImagesFound,
		Error:       "no images found",
	}), nil)

	_, err := New(c, "", "", WithRecorder(mem)).Compare(context.Background(), "/o", "/a", "c-1")
	require.Error(t, err)
	assert.Empty(t, mem.ByName(string(domain.StageValidate)))
	assert.Len(t, mem.ByName("compare_contracts"), 1)
}
