package pipeline

import (
	"github.com/claw-gang/amendment-diff/internal/agents"
	"github.com/claw-gang/amendment-diff/internal/llm"
	"github.com/claw-gang/amendment-diff/internal/parser"
)

// Chains are the candidate model chains for each kind of call.
type Chains struct {
	Vision llm.Chain
	Text   llm.Chain
}

// NewFromInvoker assembles every stage over a single invoker. Workers bounds
// concurrent page extractions across both folders.
func NewFromInvoker(inv *llm.Invoker, chains Chains, workers int, opts ...Option) *Orchestrator {
	o := New(nil, nil, nil, opts...)
	o.parser = parser.New(parser.NewExtractor(inv, chains.Vision), workers,
		parser.WithRecorder(inv.Recorder()),
		parser.WithLogger(o.logger),
	)
	o.contextualizer = agents.NewContextualizer(inv, chains.Text, o.logger)
	o.extractor = agents.NewExtractor(inv, chains.Text, o.logger)
	return o
}
