// Package config provides application configuration loaded from environment
// variables, an optional .env file and an optional YAML model file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/claw-gang/amendment-diff/internal/llm"
)

// Mode selects where comparisons run.
type Mode string

const (
	ModeLocal    Mode = "local"
	ModeTemporal Mode = "temporal"
)

// Config holds all application configuration.
type Config struct {
	Mode Mode

	// Model access.
	LLMBaseURL         string
	LLMAPIKey          string
	VisionModel        string
	VisionFallbacks    []string
	TextModel          string
	TextFallbacks      []string
	DefaultModel       string
	ModelRPS           float64
	ModelRPSOverrides  map[string]float64
	ModelCallTimeout   time.Duration
	ContractCallBudget int
	ParserWorkers      int
	OCRFallback        bool
	ModelsFile         string

	LogLevel    string
	OTelEnabled bool

	TemporalHostPort string

	// API server settings.
	APIPort      string
	CORSOrigins  []string
	OIDCIssuer   string
	OIDCAudience string

	// Run metrics publishing. Empty namespace disables CloudWatch.
	CloudWatchNamespace string
	AWSRegion           string
	AWSProfile          string
	AWSRoleARN          string
	AWSRoleSessionName  string
}

// Load reads an optional .env file from the working directory and then the
// environment. Variables already set in the environment win over .env.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("config: load .env: %w", err)
	}
	return LoadFromEnv()
}

// LoadFromEnv reads configuration from environment variables with sensible defaults.
func LoadFromEnv() (Config, error) {
	cfg := Config{
		Mode:                Mode(envOr("COMPARE_MODE", string(ModeLocal))),
		LLMBaseURL:          envOr("LLM_BASE_URL", "https://openrouter.ai/api/v1"),
		LLMAPIKey:           os.Getenv("LLM_API_KEY"),
		VisionModel:         os.Getenv("IMAGE_MULTIMODAL_MODEL"),
		VisionFallbacks:     parseList(os.Getenv("IMAGE_FALLBACK_MODELS")),
		TextModel:           os.Getenv("LLM_MODEL"),
		TextFallbacks:       parseList(os.Getenv("LLM_FALLBACK_MODELS")),
		DefaultModel:        envOr("LLM_DEFAULT_FALLBACK_MODEL", llm.DefaultFallbackModel),
		ModelsFile:          os.Getenv("MODELS_FILE"),
		LogLevel:            envOr("LOG_LEVEL", "info"),
		TemporalHostPort:    envOr("TEMPORAL_HOSTPORT", "localhost:7233"),
		APIPort:             envOr("API_PORT", "8080"),
		CORSOrigins:         parseCORSOrigins(os.Getenv("CORS_ORIGINS")),
		OIDCIssuer:          os.Getenv("OIDC_ISSUER"),
		OIDCAudience:        os.Getenv("OIDC_AUDIENCE"),
		CloudWatchNamespace: os.Getenv("CLOUDWATCH_NAMESPACE"),
		AWSRegion:           envOr("AWS_REGION", "us-east-1"),
		AWSProfile:          os.Getenv("AWS_PROFILE"),
		AWSRoleARN:          os.Getenv("AWS_ROLE_ARN"),
		AWSRoleSessionName:  os.Getenv("AWS_ROLE_SESSION_NAME"),
	}

	if cfg.Mode != ModeLocal && cfg.Mode != ModeTemporal {
		return Config{}, fmt.Errorf("config: invalid COMPARE_MODE %q (must be local or temporal)", cfg.Mode)
	}

	var err error
	if cfg.ParserWorkers, err = envInt("PARSER_WORKERS", 4); err != nil {
		return Config{}, err
	}
	if cfg.ParserWorkers <= 0 {
		return Config{}, fmt.Errorf("config: PARSER_WORKERS must be positive, got %d", cfg.ParserWorkers)
	}
	if cfg.ContractCallBudget, err = envInt("CONTRACT_CALL_BUDGET", 0); err != nil {
		return Config{}, err
	}
	if cfg.ContractCallBudget < 0 {
		return Config{}, fmt.Errorf("config: CONTRACT_CALL_BUDGET must not be negative, got %d", cfg.ContractCallBudget)
	}
	if cfg.ModelCallTimeout, err = envDuration("MODEL_CALL_TIMEOUT", 90*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.ModelRPS, err = envFloat("MODEL_RPS", 2); err != nil {
		return Config{}, err
	}
	if cfg.ModelRPS < 0 {
		return Config{}, fmt.Errorf("config: MODEL_RPS must not be negative, got %g", cfg.ModelRPS)
	}
	if cfg.OCRFallback, err = envBool("OCR_FALLBACK"); err != nil {
		return Config{}, err
	}
	if cfg.OTelEnabled, err = envBool("OTEL_ENABLED"); err != nil {
		return Config{}, err
	}

	if cfg.OIDCIssuer != "" && cfg.OIDCAudience == "" {
		return Config{}, fmt.Errorf("config: OIDC_AUDIENCE required when OIDC_ISSUER is set")
	}

	if cfg.ModelsFile != "" {
		mf, err := LoadModelsFile(cfg.ModelsFile)
		if err != nil {
			return Config{}, err
		}
		mf.apply(&cfg)
	}

	return cfg, nil
}

// OIDCEnabled reports whether the API requires bearer tokens.
func (c Config) OIDCEnabled() bool {
	return c.OIDCIssuer != ""
}

// VisionChain is the candidate chain for page extraction. With OCRFallback
// set and a local OCR engine compiled in, tesseract/eng runs just before the
// fixed default.
func (c Config) VisionChain() llm.Chain {
	chain := llm.NewChain(c.VisionModel, c.VisionFallbacks, c.DefaultModel)
	if c.OCRFallback {
		if _, ok := llm.LocalOCR(); ok {
			chain = chain.Insert(llm.LocalOCRPrefix + "eng")
		}
	}
	return chain
}

// TextChain is the candidate chain for contextualization and extraction.
func (c Config) TextChain() llm.Chain {
	return llm.NewChain(c.TextModel, c.TextFallbacks, c.DefaultModel)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func envFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s %q: %w", key, v, err)
	}
	return f, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s %q: %w", key, v, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("config: %s must be positive, got %s", key, d)
	}
	return d, nil
}

func envBool(key string) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("config: invalid %s %q: %w", key, v, err)
	}
	return b, nil
}

func parseList(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if t := strings.TrimSpace(s); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func parseCORSOrigins(raw string) []string {
	origins := parseList(raw)
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
