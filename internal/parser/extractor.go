package parser

import (
	"context"
	"fmt"
	"os"

	"github.com/claw-gang/amendment-diff/internal/domain"
	"github.com/claw-gang/amendment-diff/internal/llm"
)

// VisionPrompt instructs the vision model to transcribe one page.
const VisionPrompt = "You are a legal, text from image, parser. " +
	"From the following image, extract the structured contract text preserving headings, sections, " +
	"clauses, numbering, and hierarchy. Only return the text from image, no other text or explanation is allowed."

// Extractor reads one page image into text through a vision model chain.
type Extractor struct {
	invoker *llm.Invoker
	chain   llm.Chain
}

// NewExtractor creates an Extractor using chain for every page.
func NewExtractor(invoker *llm.Invoker, chain llm.Chain) *Extractor {
	return &Extractor{invoker: invoker, chain: chain}
}

// Chain returns the vision candidate chain.
func (e *Extractor) Chain() llm.Chain { return e.chain }

// Extract transcribes doc.
func (e *Extractor) Extract(ctx context.Context, contractID string, doc domain.ImageDocument) (llm.Response, error) {
	data, err := os.ReadFile(doc.Path)
	if err != nil {
		return llm.Response{}, fmt.Errorf("parser: read %s: %w", doc.Name, err)
	}
	return e.invoker.Invoke(ctx, llm.Request{
		ContractID: contractID,
		Label:      fmt.Sprintf("page %d (%s)", doc.Ordinal, doc.Name),
		System:     VisionPrompt,
		Image:      &llm.Image{Data: data, MIMEType: doc.MIMEType},
	}, e.chain)
}
