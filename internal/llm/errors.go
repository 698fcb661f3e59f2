package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/claw-gang/amendment-diff/internal/domain"
	"github.com/claw-gang/amendment-diff/internal/ratelimit"
)

// FailureKind classifies why one attempt failed.
type FailureKind string

const (
	KindTransport   FailureKind = "transport"
	KindRateLimited FailureKind = "rate_limited"
	KindTimeout     FailureKind = "timeout"
	KindUpstream    FailureKind = "upstream"
	KindMalformed   FailureKind = "malformed"
	KindEmpty       FailureKind = "empty"
	KindBudget      FailureKind = "budget"
)

// ProviderError is a classified provider failure.
type ProviderError struct {
	Kind   FailureKind
	Status int
	Msg    string
}

func (e *ProviderError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s (status %d): %s", e.Kind, e.Status, e.Msg)
	}
	if e.Msg == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// Classify maps an attempt error to a FailureKind.
func Classify(err error) FailureKind {
	var pe *ProviderError
	var ne net.Error
	switch {
	case err == nil:
		return ""
	case errors.As(err, &pe):
		return pe.Kind
	case errors.Is(err, ratelimit.ErrBudgetExceeded):
		return KindBudget
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.As(err, &ne) && ne.Timeout():
		return KindTimeout
	}
	return KindTransport
}

// ExhaustedError reports that every candidate in a chain failed.
type ExhaustedError struct {
	Attempts []Attempt
}

func (e *ExhaustedError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %s", a.Model, a.Error))
	}
	return fmt.Sprintf("all %d model candidates failed [%s]", len(e.Attempts), strings.Join(parts, "; "))
}

// Is matches domain.ErrAllCandidatesExhausted.
func (e *ExhaustedError) Is(target error) bool {
	return target == domain.ErrAllCandidatesExhausted
}

// LastKind returns the failure kind of the final attempt.
func (e *ExhaustedError) LastKind() FailureKind {
	if len(e.Attempts) == 0 {
		return ""
	}
	return e.Attempts[len(e.Attempts)-1].Kind
}
