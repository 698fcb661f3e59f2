package llm

import (
	"context"
	"strings"
)

// Mux routes calls to providers by model id prefix. The longest matching
// prefix wins; unmatched models go to the fallback provider.
type Mux struct {
	fallback Provider
	routes   map[string]Provider
}

// NewMux creates a Mux that sends unmatched models to fallback.
func NewMux(fallback Provider) *Mux {
	return &Mux{fallback: fallback, routes: map[string]Provider{}}
}

// Handle registers p for models starting with prefix.
func (m *Mux) Handle(prefix string, p Provider) {
	m.routes[prefix] = p
}

func (m *Mux) route(model string) Provider {
	best, bestLen := m.fallback, -1
	for prefix, p := range m.routes {
		if strings.HasPrefix(model, prefix) && len(prefix) > bestLen {
			best, bestLen = p, len(prefix)
		}
	}
	return best
}

// Complete implements Provider.
func (m *Mux) Complete(ctx context.Context, call Call) (string, error) {
	p := m.route(call.Model)
	if p == nil {
		return "", &ProviderError{Kind: KindUpstream, Msg: "no provider for model " + call.Model}
	}
	return p.Complete(ctx, call)
}
