package template

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/Tpanarchist/omen/packet"
	"github.com/Tpanarchist/omen/vocab"
)

// CompiledEpisode is the compiler's output: a fresh correlation_id, the
// step graph to walk, and the shared MCP envelope fragment every step
// binds its consequential packets from.
type CompiledEpisode struct {
	CorrelationID string
	TemplateID    vocab.TemplateID
	Steps         *StepGraph
	EntryStep     string
	ExitSteps     []string
	MCPBindings   packet.Envelope
}

// NewCorrelationID returns a fresh corr_ identifier, grounded on
// gomind's uuid.New().String() short-id convention (core/agent.go),
// extended with the wire format's corr_ prefix (spec.md §6).
func NewCorrelationID() string {
	return fmt.Sprintf("corr_%s", uuid.New().String())
}

// CompileTemplate binds ctx against the named template's declared
// constraints and, if satisfied, returns a fresh CompiledEpisode.
// Compilation refuses outright (rather than compiling a
// constraint-violating episode and failing later at the FSM) per
// spec.md §4.5.
func CompileTemplate(reg *Registry, templateID vocab.TemplateID, ctx Context) (*CompiledEpisode, error) {
	def, ok := reg.Definition(templateID)
	if !ok {
		return nil, fmt.Errorf("template.CompileTemplate: unknown template %q", templateID)
	}
	if violations := def.Constraints.Check(ctx); len(violations) > 0 {
		return nil, fmt.Errorf("template.CompileTemplate: %s violates its constraints: %v", templateID, violations)
	}
	graph, err := def.Graph()
	if err != nil {
		return nil, fmt.Errorf("template.CompileTemplate: %w", err)
	}
	return &CompiledEpisode{
		CorrelationID: NewCorrelationID(),
		TemplateID:    templateID,
		Steps:         graph,
		EntryStep:     graph.EntryStep(),
		ExitSteps:     graph.ExitSteps(),
		MCPBindings:   ctx.envelope(),
	}, nil
}
