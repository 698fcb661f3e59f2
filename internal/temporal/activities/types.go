package activities

import (
	"github.com/claw-gang/amendment-diff/internal/domain"
	"github.com/claw-gang/amendment-diff/internal/tracing"
)

// ListContractPagesInput is the input to the ListContractPages activity.
type ListContractPagesInput struct {
	ContractID string          `json:"contract_id"`
	Side       domain.Side     `json:"side"`
	Folder     string          `json:"folder"`
	Trace      tracing.Carrier `json:"trace,omitempty"`
}

// ListContractPagesOutput is the output of the ListContractPages activity.
type ListContractPagesOutput struct {
	Documents []domain.ImageDocument `json:"documents"`
}

// ParseContractInput is the input to the ParseContract activity.
type ParseContractInput struct {
	ContractID string                 `json:"contract_id"`
	Side       domain.Side            `json:"side"`
	Folder     string                 `json:"folder"`
	Documents  []domain.ImageDocument `json:"documents"`
	Trace      tracing.Carrier        `json:"trace,omitempty"`
}

// ParseContractOutput is the output of the ParseContract activity.
type ParseContractOutput struct {
	Text domain.ExtractedText `json:"text"`
}

// ContextualizeDocumentsInput is the input to the ContextualizeDocuments activity.
type ContextualizeDocumentsInput struct {
	ContractID    string          `json:"contract_id"`
	OriginalText  string          `json:"original_text"`
	AmendmentText string          `json:"amendment_text"`
	Trace         tracing.Carrier `json:"trace,omitempty"`
}

// ContextualizeDocumentsOutput is the output of the ContextualizeDocuments activity.
type ContextualizeDocumentsOutput struct {
	Context domain.ContextualizedContract `json:"context"`
}

// ExtractChangesInput is the input to the ExtractChanges activity.
type ExtractChangesInput struct {
	ContractID string                        `json:"contract_id"`
	Context    domain.ContextualizedContract `json:"context"`
	Trace      tracing.Carrier               `json:"trace,omitempty"`
}

// ExtractChangesOutput is the output of the ExtractChanges activity.
type ExtractChangesOutput struct {
	Summary domain.ContractChangeSummary `json:"summary"`
}
