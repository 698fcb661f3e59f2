package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claw-gang/amendment-diff/internal/config"
	"github.com/claw-gang/amendment-diff/internal/domain"
	"github.com/claw-gang/amendment-diff/internal/llm"
	"github.com/claw-gang/amendment-diff/internal/pipeline"
	"github.com/claw-gang/amendment-diff/internal/testutil"
	"github.com/claw-gang/amendment-diff/internal/tracing"
)

func testConfig() config.Config {
	return config.Config{
		Mode:             config.ModeLocal,
		LLMBaseURL:       "http://127.0.0.1:0",
		VisionModel:      testutil.VisionModel,
		TextModel:        testutil.TextModel,
		DefaultModel:     llm.DefaultFallbackModel,
		ModelCallTimeout: 5 * time.Second,
		ParserWorkers:    2,
	}
}

func TestLocalComparer_LiabilityScenario(t *testing.T) {
	sc := testutil.LiabilityScenario(t)
	mem := tracing.NewMemory()
	var observed []error
	deps := Deps{
		Provider: sc.Provider,
		Recorder: mem,
		Observers: []pipeline.Observer{pipeline.ObserverFunc(func(_ context.Context, _ pipeline.Result, err error) {
			observed = append(observed, err)
		})},
	}

	c := LocalComparer{Orchestrator: NewOrchestrator(testConfig(), deps)}
	rep, err := c.CompareReport(context.Background(), sc.OriginalDir, sc.AmendmentDir, "msa-2024-001")
	require.NoError(t, err)

	assert.Equal(t, "msa-2024-001", rep.ContractID)
	assert.Contains(t, rep.Summary.TopicsTouched, "Liability allocation")
	assert.Len(t, rep.Original, 2)
	assert.Len(t, rep.Amendment, 1)
	assert.Equal(t, []error{nil}, observed)
	assert.NotEmpty(t, mem.Records())
}

func TestLocalComparer_StageError(t *testing.T) {
	sc := testutil.LiabilityScenario(t)
	c := LocalComparer{Orchestrator: NewOrchestrator(testConfig(), Deps{Provider: sc.Provider})}

	_, err := c.CompareReport(context.Background(), sc.OriginalDir, t.TempDir(), "c-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNoImagesFound))
	stage, ok := domain.FailedStage(err)
	require.True(t, ok)
	assert.Equal(t, domain.StageParseAmendment, stage)
}

func TestBuildStages_CallBudget(t *testing.T) {
	sc := testutil.LiabilityScenario(t)
	cfg := testConfig()
	cfg.ContractCallBudget = 2
	o := NewOrchestrator(cfg, Deps{Provider: sc.Provider})

	// Three pages need three vision calls; the third fails on budget and
	// becomes a placeholder, then contextualization is refused.
	_, err := o.Run(context.Background(), sc.OriginalDir, sc.AmendmentDir, "c-budget")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrAllCandidatesExhausted))
	assert.Equal(t, 2, len(sc.Provider.Calls()))
}

func TestNewActivities(t *testing.T) {
	sc := testutil.LiabilityScenario(t)
	acts := NewActivities(testConfig(), Deps{Provider: sc.Provider})
	require.NotNil(t, acts.Parser)
	require.NotNil(t, acts.Contextualizer)
	require.NotNil(t, acts.Extractor)
}

func TestNew_LocalMode(t *testing.T) {
	a, err := New(context.Background(), testConfig(), nil)
	require.NoError(t, err)
	assert.NotNil(t, a.Runner)
	assert.NotNil(t, a.Comparer)
	assert.Nil(t, a.History)
	assert.NoError(t, a.Close(context.Background()))
}

func TestNewProvider_RoutesOCR(t *testing.T) {
	cfg := testConfig()
	cfg.OCRFallback = true
	p := NewProvider(cfg)
	require.NotNil(t, p)
	if _, ok := llm.LocalOCR(); !ok {
		assert.NotContains(t, cfg.VisionChain(), llm.LocalOCRPrefix+"eng")
	}
}
