// Package llm invokes vision and text models through an ordered candidate
// chain. Every attempt failure is classified here; callers only ever see a
// successful Response or an *ExhaustedError.
package llm

import (
	"context"
	"encoding/json"
	"strings"
	"time"
)

// DefaultFallbackModel is the low-cost model appended to every chain.
const DefaultFallbackModel = "openai/gpt-4o-mini"

// Temperature is the sampling temperature sent with every call.
const Temperature = 0.0

// Image is an inline image payload.
type Image struct {
	Data     []byte
	MIMEType string
}

// Schema asks the provider for structured output conforming to JSON.
type Schema struct {
	Name string
	JSON json.RawMessage
}

// Call is a single request to one model.
type Call struct {
	Model  string
	System string
	Prompt string
	Image  *Image
	Schema *Schema
}

// Provider performs one model call. Implementations should return a
// *ProviderError for failures they can classify.
type Provider interface {
	Complete(ctx context.Context, call Call) (string, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, call Call) (string, error)

func (f ProviderFunc) Complete(ctx context.Context, call Call) (string, error) { return f(ctx, call) }

// Request is what a caller wants answered, independent of the model used.
// ContractID scopes budgets and logs; Label names the call in traces.
type Request struct {
	ContractID string
	Label      string
	System     string
	Prompt     string
	Image      *Image
	Schema     *Schema
}

// Attempt is the outcome of calling one candidate.
type Attempt struct {
	Model   string        `json:"model"`
	Kind    FailureKind   `json:"kind,omitempty"`
	Error   string        `json:"error,omitempty"`
	Latency time.Duration `json:"latency"`
}

// Response is the first successful answer in the chain.
type Response struct {
	Text     string
	Model    string
	Attempts []Attempt
}

// Chain is an ordered list of candidate model ids ending with the default
// fallback.
type Chain []string

// NewChain builds [primary, fallbacks..., def], dropping blanks and
// duplicates. An empty def means DefaultFallbackModel.
func NewChain(primary string, fallbacks []string, def string) Chain {
	if strings.TrimSpace(def) == "" {
		def = DefaultFallbackModel
	}
	def = strings.TrimSpace(def)
	var c Chain
	seen := map[string]bool{def: true}
	add := func(m string) {
		m = strings.TrimSpace(m)
		if m == "" || seen[m] {
			return
		}
		seen[m] = true
		c = append(c, m)
	}
	add(primary)
	for _, f := range fallbacks {
		add(f)
	}
	return append(c, def)
}

// Primary returns the first candidate.
func (c Chain) Primary() string {
	if len(c) == 0 {
		return ""
	}
	return c[0]
}

// From returns the suffix of the chain starting at model. Unknown models
// yield the full chain.
func (c Chain) From(model string) Chain {
	for i, m := range c {
		if m == model {
			return c[i:]
		}
	}
	return c
}

// Insert returns a copy with model placed just before the final default.
func (c Chain) Insert(model string) Chain {
	for _, m := range c {
		if m == model {
			return c
		}
	}
	if len(c) == 0 {
		return Chain{model}
	}
	out := make(Chain, 0, len(c)+1)
	out = append(out, c[:len(c)-1]...)
	out = append(out, model, c[len(c)-1])
	return out
}

// ProviderOf returns the provider prefix of a model id ("openai" for
// "openai/gpt-4o").
func ProviderOf(model string) string {
	if i := strings.IndexByte(model, '/'); i > 0 {
		return model[:i]
	}
	return ""
}
