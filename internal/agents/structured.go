// Package agents runs the two structured-output model stages: contextualizing
// the original against the amendment, and extracting the change summary.
package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/claw-gang/amendment-diff/internal/domain"
	"github.com/claw-gang/amendment-diff/internal/llm"
)

// structuredCall asks for JSON and retries once when decode rejects the
// answer. The retry starts at the model that produced the rejected output and
// tells it what was wrong. Failure to get any answer from the chain is
// returned unchanged.
func structuredCall[T any](
	ctx context.Context,
	inv *llm.Invoker,
	chain llm.Chain,
	req llm.Request,
	logger *slog.Logger,
	decode func([]byte) (T, error),
) (T, string, error) {
	var zero T
	resp, err := inv.Invoke(ctx, req, chain)
	if err != nil {
		return zero, "", err
	}
	v, derr := decode(ExtractJSON(resp.Text))
	if derr == nil {
		return v, resp.Model, nil
	}

	logger.Warn("structured output rejected, retrying",
		"contract_id", req.ContractID,
		"call", req.Label,
		"model", resp.Model,
		"error", derr,
	)
	retry := req
	retry.Label = req.Label + " (retry)"
	retry.Prompt = req.Prompt + "\n\nYOUR PREVIOUS ANSWER WAS REJECTED: " + derr.Error() +
		"\nReturn only a JSON object that satisfies the required schema."
	resp, err = inv.Invoke(ctx, retry, chain.From(resp.Model))
	if err != nil {
		return zero, "", err
	}
	v, derr = decode(ExtractJSON(resp.Text))
	if derr != nil {
		return zero, "", fmt.Errorf("%w: %s after retry: %w", domain.ErrInvalidStructuredOutput, req.Label, derr)
	}
	return v, resp.Model, nil
}

// ExtractJSON strips Markdown code fences and surrounding prose, returning
// the first JSON object in text that decodes. Braces in prose before the
// object are skipped. When no object decodes, the span from the first '{'
// to the last '}' is returned so the decode error names the problem.
func ExtractJSON(text string) []byte {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	for i := strings.IndexByte(s, '{'); i >= 0; {
		var obj json.RawMessage
		if err := json.NewDecoder(strings.NewReader(s[i:])).Decode(&obj); err == nil {
			return obj
		}
		next := strings.IndexByte(s[i+1:], '{')
		if next < 0 {
			break
		}
		i += next + 1
	}
	start, end := strings.IndexByte(s, '{'), strings.LastIndexByte(s, '}')
	if start >= 0 && end > start {
		s = s[start : end+1]
	}
	return []byte(strings.TrimSpace(s))
}
