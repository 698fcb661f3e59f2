package agents

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/claw-gang/amendment-diff/internal/domain"
	"github.com/claw-gang/amendment-diff/internal/llm"
)

// ExtractPrompt is the system prompt of the change extraction stage.
const ExtractPrompt = "You are a senior contract comparison analyst. " +
	"Compare the ORIGINAL CONTRACT CONTENT and the AMENDMENT CONTENT and identify the topics touched, the sections changed and the summary of the change." +
	"\n Return a JSON object with the following fields:" +
	"\n - topics_touched: list of topics touched in the amendment" +
	"\n - sections_changed: list of sections changed in the amendment" +
	"\n - summary_of_the_change: summary of the change in the amendment with format Section X: -change_1 \n -change_2, ..." +
	"\n Every line of summary_of_the_change is either a \"Section <id>:\" header or starts with \"-\"." +
	" If nothing material changed, return empty lists and the summary \"" + domain.NoMaterialChange + "\"."

// Extractor produces the change summary from a contextualized contract.
type Extractor struct {
	invoker *llm.Invoker
	chain   llm.Chain
	logger  *slog.Logger
}

// NewExtractor creates an Extractor for the given text model chain.
func NewExtractor(invoker *llm.Invoker, chain llm.Chain, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{invoker: invoker, chain: chain, logger: logger}
}

// Extract runs the stage. The returned summary has passed
// domain.ValidateContractChangeSummary.
func (e *Extractor) Extract(ctx context.Context, contractID string, in domain.ContextualizedContract) (domain.ContractChangeSummary, error) {
	req := llm.Request{
		ContractID: contractID,
		Label:      string(domain.StageExtract),
		System:     ExtractPrompt,
		Prompt:     extractionPrompt(in),
		Schema:     &llm.Schema{Name: "contract_change_summary", JSON: summarySchema},
	}
	out, model, err := structuredCall(ctx, e.invoker, e.chain, req, e.logger, domain.DecodeContractChangeSummary)
	if err != nil {
		return domain.ContractChangeSummary{}, err
	}
	e.logger.Debug("changes extracted",
		"contract_id", contractID,
		"model", model,
		"sections", len(out.SectionsChanged),
	)
	return out, nil
}

func extractionPrompt(in domain.ContextualizedContract) string {
	var b strings.Builder
	b.WriteString("\n\nORIGINAL CONTRACT CONTENT:\n ")
	b.WriteString(in.OriginalContractText)
	b.WriteString(" \n\nAMENDMENT CONTENT:\n ")
	b.WriteString(in.AmendmentText)
	if len(in.SectionCorrespondences) > 0 {
		b.WriteString("\n\nSECTION CORRESPONDENCES:\n")
		for _, sc := range in.SectionCorrespondences {
			fmt.Fprintf(&b, "- %s -> %s (%s)\n", orNone(sc.OriginalSection), orNone(sc.AmendmentSection), sc.ChangeType)
		}
	}
	return b.String()
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(none)"
	}
	return s
}
