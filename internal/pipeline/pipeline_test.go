package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claw-gang/amendment-diff/internal/domain"
	"github.com/claw-gang/amendment-diff/internal/llm"
	"github.com/claw-gang/amendment-diff/internal/testutil"
	"github.com/claw-gang/amendment-diff/internal/tracing"
)

func newOrchestrator(stub *testutil.StubProvider, rec tracing.Recorder, opts ...Option) *Orchestrator {
	inv := llm.NewInvoker(stub, llm.WithRecorder(rec))
	chains := Chains{
		Vision: llm.NewChain(testutil.VisionModel, nil, ""),
		Text:   llm.NewChain(testutil.TextModel, nil, ""),
	}
	return NewFromInvoker(inv, chains, 2, append(opts, WithRecorder(rec))...)
}

func TestRun_LiabilityScenario(t *testing.T) {
	sc := testutil.LiabilityScenario(t)
	mem := tracing.NewMemory()
	o := newOrchestrator(sc.Provider, mem)

	res, err := o.Compare(context.Background(), sc.OriginalDir, sc.AmendmentDir, "msa-2024-001")
	require.NoError(t, err)

	s := res.Summary
	require.NoError(t, domain.ValidateContractChangeSummary(s))
	assert.Contains(t, s.TopicsTouched, "Liability allocation")
	require.NotEmpty(t, s.SectionsChanged)
	assert.Contains(t, strings.ToLower(s.SectionsChanged[0]), "liability")

	var header bool
	var capBullet bool
	for _, line := range strings.Split(s.SummaryOfTheChange, "\n") {
		if strings.HasPrefix(line, "Section") && strings.Contains(strings.ToLower(line), "liability") {
			header = true
		}
		if strings.Contains(line, "-") && strings.Contains(strings.ToLower(line), "liability cap") {
			capBullet = true
		}
	}
	assert.True(t, header)
	assert.True(t, capBullet)

	assert.Equal(t, 2, res.Original.PageCount)
	assert.Equal(t, 1, res.Amendment.PageCount)
	assert.Equal(t, []State{StateIdle, StateParsing, StateContextualizing, StateExtracting, StateValidating, StateDone}, res.States)
	assert.Equal(t, 3, sc.Provider.VisionCalls())
	assert.Len(t, sc.Provider.Calls(), 5)
	assert.Contains(t, sc.Provider.Calls()[3].Prompt, "===== PAGE 2/2: page_02.png =====")
}

func TestRun_TraceHierarchy(t *testing.T) {
	sc := testutil.LiabilityScenario(t)
	mem := tracing.NewMemory()
	o := newOrchestrator(sc.Provider, mem)

	_, err := o.Run(context.Background(), sc.OriginalDir, sc.AmendmentDir, "msa-2024-001")
	require.NoError(t, err)

	roots := mem.ByName(RootSpan)
	require.Len(t, roots, 1)
	root := roots[0]
	assert.Equal(t, "msa-2024-001", root.SessionID)

	for _, stage := range []domain.Stage{
		domain.StageParseOriginal,
		domain.StageParseAmendment,
		domain.StageContextualize,
		domain.StageExtract,
		domain.StageValidate,
	} {
		spans := mem.ByName(string(stage))
		require.Len(t, spans, 1, stage)
		assert.Equal(t, root.SpanID, spans[0].ParentID, stage)
		assert.Equal(t, root.TraceID, spans[0].TraceID, stage)
		assert.Equal(t, tracing.StatusOK, spans[0].Status, stage)
	}
	assert.Len(t, mem.ByName("model_call"), 5)
	for _, r := range mem.Records() {
		assert.Equal(t, "msa-2024-001", r.SessionID)
	}
}

func TestRun_EmptyAmendmentFailsBeforeModelCalls(t *testing.T) {
	sc := testutil.LiabilityScenario(t)
	empty := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(empty, "notes.txt"), []byte("nothing"), 0o644))
	mem := tracing.NewMemory()
	o := newOrchestrator(sc.Provider, mem)

	res, err := o.Compare(context.Background(), sc.OriginalDir, empty, "c-empty")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNoImagesFound))
	stage, ok := domain.FailedStage(err)
	require.True(t, ok)
	assert.Equal(t, domain.StageParseAmendment, stage)
	assert.Empty(t, sc.Provider.Calls())
	assert.Equal(t, StateFailed, res.States[len(res.States)-1])
	assert.Equal(t, domain.ContractChangeSummary{}, res.Summary)

	roots := mem.ByName(RootSpan)
	require.Len(t, roots, 1)
	assert.Equal(t, tracing.StatusError, roots[0].Status)
	assert.Len(t, mem.ByName(string(domain.StageParseAmendment)), 1)
}

func TestRun_Idempotent(t *testing.T) {
	sc := testutil.LiabilityScenario(t)
	o := newOrchestrator(sc.Provider, nil)

	first, err := o.Run(context.Background(), sc.OriginalDir, sc.AmendmentDir, "c-1")
	require.NoError(t, err)
	second, err := o.Run(context.Background(), sc.OriginalDir, sc.AmendmentDir, "c-1")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRun_PrimaryVisionDownStillCompletes(t *testing.T) {
	sc := testutil.LiabilityScenario(t)
	sc.Provider.FailModel(testutil.VisionModel, nil)
	o := newOrchestrator(sc.Provider, nil)

	res, err := o.Compare(context.Background(), sc.OriginalDir, sc.AmendmentDir, "c-1")
	require.NoError(t, err)
	assert.Empty(t, res.Original.FailedPages())
	assert.Equal(t, []int{1, 2}, res.Original.FallbackPages())
	assert.Equal(t, []int{1}, res.Amendment.FallbackPages())
	assert.Equal(t, 3, sc.Provider.CallsFor(llm.DefaultFallbackModel))
	assert.Contains(t, res.Summary.TopicsTouched, "Liability allocation")
}

func TestRun_PageFailureDoesNotAbort(t *testing.T) {
	sc := testutil.LiabilityScenario(t)
	testutil.WritePage(t, nil, sc.OriginalDir, "page_03.png", 99, "")
	o := newOrchestrator(sc.Provider, nil)

	res, err := o.Compare(context.Background(), sc.OriginalDir, sc.AmendmentDir, "c-1")
	require.NoError(t, err)
	assert.Equal(t, 3, res.Original.PageCount)
	assert.Equal(t, []int{3}, res.Original.FailedPages())
	assert.Contains(t, res.Original.Text, "[PAGE 3 EXTRACTION FAILED:")
}

func TestRun_MalformedSummaryFailsExtraction(t *testing.T) {
	sc := testutil.LiabilityScenario(t)
	stub := testutil.NewStubProvider()
	for _, c := range []struct {
		dir, name string
		seed      int
		text      string
	}{
		{sc.OriginalDir, "page_01.png", 1, testutil.LiabilityOriginalPage1},
		{sc.OriginalDir, "page_02.png", 2, testutil.LiabilityOriginalPage2},
		{sc.AmendmentDir, "page_01.png", 3, testutil.LiabilityAmendmentPage1},
	} {
		testutil.WritePage(t, stub, c.dir, c.name, c.seed, c.text)
	}
	stub.Reply(testutil.ContextSchema, testutil.LiabilityContextJSON)
	stub.Reply(testutil.SummarySchema, `{"topics_touched":["Liability allocation"],"sections_changed":[],"summary_of_the_change":"capped"}`)
	o := newOrchestrator(stub, nil)

	summary, err := o.Run(context.Background(), sc.OriginalDir, sc.AmendmentDir, "c-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidStructuredOutput))
	assert.True(t, errors.Is(err, domain.ErrValidation))
	stage, _ := domain.FailedStage(err)
	assert.Equal(t, domain.StageExtract, stage)
	assert.Equal(t, domain.ContractChangeSummary{}, summary)
}

func TestRun_ContextualizationExhausted(t *testing.T) {
	sc := testutil.LiabilityScenario(t)
	sc.Provider.FailModel(testutil.TextModel, nil).FailModel(llm.DefaultFallbackModel, nil)
	o := newOrchestrator(sc.Provider, nil)

	_, err := o.Run(context.Background(), sc.OriginalDir, sc.AmendmentDir, "c-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrAllCandidatesExhausted))
	stage, _ := domain.FailedStage(err)
	assert.Equal(t, domain.StageContextualize, stage)
}

func TestRun_Observer(t *testing.T) {
	sc := testutil.LiabilityScenario(t)
	var mu sync.Mutex
	var got []error
	obs := ObserverFunc(func(_ context.Context, res Result, err error) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, err)
	})
	o := newOrchestrator(sc.Provider, nil, WithObserver(obs))

	_, err := o.Run(context.Background(), sc.OriginalDir, sc.AmendmentDir, "c-1")
	require.NoError(t, err)
	_, err = o.Run(context.Background(), t.TempDir(), sc.AmendmentDir, "c-2")
	require.Error(t, err)

	require.Len(t, got, 2)
	assert.NoError(t, got[0])
	assert.True(t, errors.Is(got[1], domain.ErrNoImagesFound))
}
