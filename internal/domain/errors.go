package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the comparison pipeline.
var (
	// ErrNoImagesFound means an input folder is missing or holds no candidate images.
	ErrNoImagesFound = errors.New("no images found")
	// ErrAllCandidatesExhausted means every model in a chain failed for one call.
	ErrAllCandidatesExhausted = errors.New("all model candidates exhausted")
	// ErrInvalidStructuredOutput means a model response could not be coerced
	// into the expected schema after the retry.
	ErrInvalidStructuredOutput = errors.New("invalid structured output")
	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("validation failed")
)

// ValidationError reports the first schema violation found on a candidate.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// Is reports whether target is ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// StageError tags a pipeline failure with the stage it happened in.
// The cause is preserved unchanged for errors.Is/As.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// FailedStage returns the stage recorded on err, if any.
func FailedStage(err error) (Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return "", false
}
