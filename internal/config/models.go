package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ModelsFile is the YAML layout of MODELS_FILE:
//
//	vision:
//	  primary: openai/gpt-4o
//	  fallbacks: [google/gemini-2.0-flash-001]
//	text:
//	  primary: openai/gpt-4.1
//	default: openai/gpt-4o-mini
//	rps:
//	  openai/gpt-4o: 5
type ModelsFile struct {
	Vision  ModelChain         `yaml:"vision"`
	Text    ModelChain         `yaml:"text"`
	Default string             `yaml:"default"`
	RPS     map[string]float64 `yaml:"rps"`
}

// ModelChain is one chain entry of a ModelsFile.
type ModelChain struct {
	Primary   string   `yaml:"primary"`
	Fallbacks []string `yaml:"fallbacks"`
}

// LoadModelsFile reads and decodes a models file.
func LoadModelsFile(path string) (ModelsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ModelsFile{}, fmt.Errorf("config: read MODELS_FILE: %w", err)
	}
	var mf ModelsFile
	if err := yaml.Unmarshal(data, &mf); err != nil {
		return ModelsFile{}, fmt.Errorf("config: parse MODELS_FILE %s: %w", path, err)
	}
	for model, rps := range mf.RPS {
		if rps < 0 {
			return ModelsFile{}, fmt.Errorf("config: MODELS_FILE rps for %s must not be negative", model)
		}
	}
	return mf, nil
}

// apply fills the chain fields the environment left unset.
func (mf ModelsFile) apply(cfg *Config) {
	if cfg.VisionModel == "" {
		cfg.VisionModel = mf.Vision.Primary
	}
	if len(cfg.VisionFallbacks) == 0 {
		cfg.VisionFallbacks = mf.Vision.Fallbacks
	}
	if cfg.TextModel == "" {
		cfg.TextModel = mf.Text.Primary
	}
	if len(cfg.TextFallbacks) == 0 {
		cfg.TextFallbacks = mf.Text.Fallbacks
	}
	if os.Getenv("LLM_DEFAULT_FALLBACK_MODEL") == "" && mf.Default != "" {
		cfg.DefaultModel = mf.Default
	}
	if len(mf.RPS) > 0 {
		cfg.ModelRPSOverrides = mf.RPS
	}
}
