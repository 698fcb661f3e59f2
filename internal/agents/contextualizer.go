package agents

import (
	"context"
	"log/slog"

	"github.com/claw-gang/amendment-diff/internal/domain"
	"github.com/claw-gang/amendment-diff/internal/llm"
)

// ContextualizePrompt is the system prompt of the contextualization stage.
const ContextualizePrompt = "You are a senior legal contextualization agent. " +
	"Contextualize the ORIGINAL CONTRACT and the AMENDMENT and identify structure, section alignment, " +
	"and which sections correspond to each other." +
	"\n Return a JSON object with the following fields, containing just the text impacted by the amendment and the amendment text:" +
	"\n - original_contract_text: text of the original contract just the text impacted by the amendment" +
	"\n - amendment_text: text of the amendment" +
	"\n - section_correspondences: for each affected section, original_section and amendment_section" +
	" exactly as they are written in the input texts, and change_type (modified, added or removed)." +
	" Leave original_section empty for added sections and amendment_section empty for removed ones." +
	" Never name a section that does not appear in the input."

// Contextualizer aligns the original with the amendment and drops
// unaffected text.
type Contextualizer struct {
	invoker *llm.Invoker
	chain   llm.Chain
	logger  *slog.Logger
}

// NewContextualizer creates a Contextualizer for the given text model chain.
func NewContextualizer(invoker *llm.Invoker, chain llm.Chain, logger *slog.Logger) *Contextualizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Contextualizer{invoker: invoker, chain: chain, logger: logger}
}

// Contextualize runs the stage. Every section correspondence in the result
// has been located in the input texts.
func (c *Contextualizer) Contextualize(ctx context.Context, contractID, original, amendment string) (domain.ContextualizedContract, error) {
	req := llm.Request{
		ContractID: contractID,
		Label:      string(domain.StageContextualize),
		System:     ContextualizePrompt,
		Prompt:     "\n\nORIGINAL CONTRACT:\n " + original + " \n\nAMENDMENT:\n " + amendment,
		Schema:     &llm.Schema{Name: "contextualized_contract", JSON: contextualizedSchema},
	}
	out, model, err := structuredCall(ctx, c.invoker, c.chain, req, c.logger, func(b []byte) (domain.ContextualizedContract, error) {
		return domain.DecodeContextualizedContract(b, original, amendment)
	})
	if err != nil {
		return domain.ContextualizedContract{}, err
	}
	c.logger.Debug("contextualized",
		"contract_id", contractID,
		"model", model,
		"correspondences", len(out.SectionCorrespondences),
	)
	return out, nil
}
