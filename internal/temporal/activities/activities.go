package activities

import (
	"context"
	"errors"
	"fmt"

	"go.temporal.io/sdk/temporal"

	"github.com/claw-gang/amendment-diff/internal/agents"
	"github.com/claw-gang/amendment-diff/internal/domain"
	"github.com/claw-gang/amendment-diff/internal/parser"
	"github.com/claw-gang/amendment-diff/internal/tracing"
)

// Error types attached to non-retryable application errors.
const (
	ErrTypeNoImagesFound           = "NoImagesFound"
	ErrTypeAllCandidatesExhausted  = "AllCandidatesExhausted"
	ErrTypeInvalidStructuredOutput = "InvalidStructuredOutput"
	ErrTypeValidation              = "ValidationError"
	ErrTypeInvalidInput            = "InvalidInput"
)

var sentinels = map[string]error{
	ErrTypeNoImagesFound:           domain.ErrNoImagesFound,
	ErrTypeAllCandidatesExhausted:  domain.ErrAllCandidatesExhausted,
	ErrTypeInvalidStructuredOutput: domain.ErrInvalidStructuredOutput,
	ErrTypeValidation:              domain.ErrValidation,
}

// ErrorType names the domain failure carried by err, or "" for none.
// InvalidStructuredOutput wins over the validation error it wraps.
func ErrorType(err error) string {
	switch {
	case errors.Is(err, domain.ErrNoImagesFound):
		return ErrTypeNoImagesFound
	case errors.Is(err, domain.ErrInvalidStructuredOutput):
		return ErrTypeInvalidStructuredOutput
	case errors.Is(err, domain.ErrAllCandidatesExhausted):
		return ErrTypeAllCandidatesExhausted
	case errors.Is(err, domain.ErrValidation):
		return ErrTypeValidation
	}
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		if _, ok := sentinels[appErr.Type()]; ok {
			return appErr.Type()
		}
	}
	return ""
}

// Sentinel returns the domain sentinel for an error type, or nil.
func Sentinel(errType string) error {
	return sentinels[errType]
}

// nonRetryable converts domain failures into non-retryable application
// errors. Other errors are returned unchanged so Temporal may retry them.
func nonRetryable(op string, err error) error {
	if t := ErrorType(err); t != "" {
		return temporal.NewNonRetryableApplicationError(fmt.Sprintf("%s: %v", op, err), t, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Activities holds the dependencies for all Temporal activities.
// Each method is registered as a Temporal activity.
type Activities struct {
	Parser         *parser.Parser
	Contextualizer *agents.Contextualizer
	Extractor      *agents.Extractor
	Recorder       tracing.Recorder // nil = no trace spans
}

// stage starts a stage span under the caller's trace carried in the input.
func (a *Activities) stage(ctx context.Context, carrier tracing.Carrier, contractID string, stage domain.Stage, input any) (context.Context, tracing.Span) {
	ctx = tracing.WithSession(tracing.Extract(ctx, carrier), contractID)
	return tracing.OrNop(a.Recorder).Start(ctx, string(stage), input)
}

func checkSide(side domain.Side) error {
	if !side.Valid() {
		return temporal.NewNonRetryableApplicationError(fmt.Sprintf("invalid side %q", side), ErrTypeInvalidInput, nil)
	}
	return nil
}

// ListContractPages enumerates the page images of one folder. A folder
// without images is recorded as a failed parse stage span.
func (a *Activities) ListContractPages(ctx context.Context, in ListContractPagesInput) (ListContractPagesOutput, error) {
	if err := checkSide(in.Side); err != nil {
		return ListContractPagesOutput{}, err
	}
	docs, err := parser.List(in.Folder)
	if err != nil {
		_, span := a.stage(ctx, in.Trace, in.ContractID, domain.ParseStage(in.Side), in.Folder)
		span.End(nil, err)
		return ListContractPagesOutput{}, nonRetryable("list pages activity", err)
	}
	return ListContractPagesOutput{Documents: docs}, nil
}

// ParseContract extracts the text of pre-listed pages.
func (a *Activities) ParseContract(ctx context.Context, in ParseContractInput) (ParseContractOutput, error) {
	if err := checkSide(in.Side); err != nil {
		return ParseContractOutput{}, err
	}
	ctx, span := a.stage(ctx, in.Trace, in.ContractID, domain.ParseStage(in.Side), in.Folder)
	text, err := a.Parser.ParseDocuments(ctx, in.Side, in.Folder, in.Documents, in.ContractID)
	span.End(text, err)
	if err != nil {
		return ParseContractOutput{}, nonRetryable("parse activity", err)
	}
	return ParseContractOutput{Text: text}, nil
}

// ContextualizeDocuments aligns the original and amendment texts.
func (a *Activities) ContextualizeDocuments(ctx context.Context, in ContextualizeDocumentsInput) (ContextualizeDocumentsOutput, error) {
	ctx, span := a.stage(ctx, in.Trace, in.ContractID, domain.StageContextualize, map[string]int{
		"original_chars":  len(in.OriginalText),
		"amendment_chars": len(in.AmendmentText),
	})
	out, err := a.Contextualizer.Contextualize(ctx, in.ContractID, in.OriginalText, in.AmendmentText)
	span.End(out, err)
	if err != nil {
		return ContextualizeDocumentsOutput{}, nonRetryable("contextualize activity", err)
	}
	return ContextualizeDocumentsOutput{Context: out}, nil
}

// ExtractChanges produces the change summary.
func (a *Activities) ExtractChanges(ctx context.Context, in ExtractChangesInput) (ExtractChangesOutput, error) {
	ctx, span := a.stage(ctx, in.Trace, in.ContractID, domain.StageExtract, in.Context)
	out, err := a.Extractor.Extract(ctx, in.ContractID, in.Context)
	span.End(out, err)
	if err != nil {
		return ExtractChangesOutput{}, nonRetryable("extract activity", err)
	}
	return ExtractChangesOutput{Summary: out}, nil
}
