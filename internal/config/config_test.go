package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claw-gang/amendment-diff/internal/llm"
)

func TestLoadFromEnv_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, ModeLocal, cfg.Mode)
	assert.Equal(t, "https://openrouter.ai/api/v1", cfg.LLMBaseURL)
	assert.Equal(t, llm.DefaultFallbackModel, cfg.DefaultModel)
	assert.Equal(t, 4, cfg.ParserWorkers)
	assert.Equal(t, 90*time.Second, cfg.ModelCallTimeout)
	assert.Equal(t, 2.0, cfg.ModelRPS)
	assert.Zero(t, cfg.ContractCallBudget)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Equal(t, llm.Chain{llm.DefaultFallbackModel}, cfg.TextChain())
	assert.False(t, cfg.OIDCEnabled())
}

func TestLoadFromEnv_Chains(t *testing.T) {
	clearEnv(t)
	t.Setenv("IMAGE_MULTIMODAL_MODEL", "openai/gpt-4o")
	t.Setenv("IMAGE_FALLBACK_MODELS", "google/gemini-2.0-flash-001, ,anthropic/claude-3.5-sonnet")
	t.Setenv("LLM_MODEL", "openai/gpt-4.1")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, llm.Chain{
		"openai/gpt-4o", "google/gemini-2.0-flash-001", "anthropic/claude-3.5-sonnet", llm.DefaultFallbackModel,
	}, cfg.VisionChain())
	assert.Equal(t, llm.Chain{"openai/gpt-4.1", llm.DefaultFallbackModel}, cfg.TextChain())
}

func TestVisionChain_OCRFallback(t *testing.T) {
	cfg := Config{VisionModel: "openai/gpt-4o", DefaultModel: llm.DefaultFallbackModel, OCRFallback: true}
	chain := cfg.VisionChain()
	assert.Equal(t, llm.DefaultFallbackModel, chain[len(chain)-1])
	if _, ok := llm.LocalOCR(); ok {
		assert.Equal(t, llm.Chain{"openai/gpt-4o", llm.LocalOCRPrefix + "eng", llm.DefaultFallbackModel}, chain)
	} else {
		assert.Equal(t, llm.Chain{"openai/gpt-4o", llm.DefaultFallbackModel}, chain)
	}
}

func TestLoadFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		key, value, wantErr string
	}{
		{"COMPARE_MODE", "cluster", "invalid COMPARE_MODE"},
		{"PARSER_WORKERS", "zero", "PARSER_WORKERS"},
		{"PARSER_WORKERS", "0", "PARSER_WORKERS must be positive"},
		{"MODEL_CALL_TIMEOUT", "soon", "MODEL_CALL_TIMEOUT"},
		{"MODEL_CALL_TIMEOUT", "-1s", "MODEL_CALL_TIMEOUT must be positive"},
		{"MODEL_RPS", "-1", "MODEL_RPS"},
		{"CONTRACT_CALL_BUDGET", "-3", "CONTRACT_CALL_BUDGET"},
		{"OCR_FALLBACK", "maybe", "OCR_FALLBACK"},
		{"MODELS_FILE", "/does/not/exist.yaml", "MODELS_FILE"},
		{"OIDC_ISSUER", "https://issuer.example.com", "OIDC_AUDIENCE"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)
			_, err := LoadFromEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFromEnv_ModelsFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "models.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
vision:
  primary: openai/gpt-4o
  fallbacks: [google/gemini-2.0-flash-001]
text:
  primary: openai/gpt-4.1
default: openai/gpt-4o-mini-2024-07-18
rps:
  openai/gpt-4o: 5
`), 0o644))
	t.Setenv("MODELS_FILE", path)
	t.Setenv("LLM_MODEL", "anthropic/claude-3.5-sonnet")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, llm.Chain{"openai/gpt-4o", "google/gemini-2.0-flash-001", "openai/gpt-4o-mini-2024-07-18"}, cfg.VisionChain())
	// The environment wins over the file.
	assert.Equal(t, llm.Chain{"anthropic/claude-3.5-sonnet", "openai/gpt-4o-mini-2024-07-18"}, cfg.TextChain())
	assert.Equal(t, map[string]float64{"openai/gpt-4o": 5}, cfg.ModelRPSOverrides)
}

func TestLoadModelsFile_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models.yaml")
	require.NoError(t, os.WriteFile(path, []byte("vision: [unclosed"), 0o644))
	_, err := LoadModelsFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse MODELS_FILE")
}

func TestLoad_DotEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("LLM_MODEL=openai/gpt-4.1\nPARSER_WORKERS=8\n"), 0o644))
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "openai/gpt-4.1", cfg.TextModel)
	assert.Equal(t, 8, cfg.ParserWorkers)
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"COMPARE_MODE", "LLM_BASE_URL", "LLM_API_KEY", "IMAGE_MULTIMODAL_MODEL",
		"IMAGE_FALLBACK_MODELS", "LLM_MODEL", "LLM_FALLBACK_MODELS",
		"LLM_DEFAULT_FALLBACK_MODEL", "PARSER_WORKERS", "MODEL_CALL_TIMEOUT",
		"MODEL_RPS", "CONTRACT_CALL_BUDGET", "MODELS_FILE", "OCR_FALLBACK",
		"OTEL_ENABLED", "CORS_ORIGINS", "OIDC_ISSUER", "OIDC_AUDIENCE",
	} {
		// t.Setenv saves the current value and restores it on cleanup.
		// Setting to "" then unsetting ensures the key is absent during the test.
		orig, wasSet := os.LookupEnv(key)
		if wasSet {
			t.Cleanup(func() { os.Setenv(key, orig) })
		} else {
			t.Cleanup(func() { os.Unsetenv(key) })
		}
		os.Unsetenv(key)
	}
}
