package template

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/Tpanarchist/omen/vocab"
)

// Constraints are the declared preconditions a compilation Context must
// satisfy before CompileTemplate will produce an episode (spec.md
// §4.5's "Template D requires SUPERB tier; Template F requires
// tools_state != tools_ok" examples).
type Constraints struct {
	MinQualityTier     vocab.QualityTier `yaml:"min_quality_tier,omitempty"`
	RequiresToolsState vocab.ToolsState   `yaml:"requires_tools_state,omitempty"`
	ForbidsToolsState  vocab.ToolsState   `yaml:"forbids_tools_state,omitempty"`
	RequiresTaskClass  vocab.TaskClass    `yaml:"requires_task_class,omitempty"`
}

// Check validates ctx against the constraints, returning every
// violation it finds (never short-circuiting, matching the rest of the
// protocol's validators).
func (c Constraints) Check(ctx Context) []string {
	var violations []string
	if c.MinQualityTier != "" && qualityRank(ctx.Quality.Tier) < qualityRank(c.MinQualityTier) {
		violations = append(violations, fmt.Sprintf("quality tier %q is below the template's minimum %q", ctx.Quality.Tier, c.MinQualityTier))
	}
	if c.RequiresToolsState != "" && ctx.ToolsState != c.RequiresToolsState {
		violations = append(violations, fmt.Sprintf("template requires tools_state %q, context has %q", c.RequiresToolsState, ctx.ToolsState))
	}
	if c.ForbidsToolsState != "" && ctx.ToolsState == c.ForbidsToolsState {
		violations = append(violations, fmt.Sprintf("template forbids tools_state %q", c.ForbidsToolsState))
	}
	if c.RequiresTaskClass != "" && ctx.TaskClass != c.RequiresTaskClass {
		violations = append(violations, fmt.Sprintf("template requires task_class %q, context has %q", c.RequiresTaskClass, ctx.TaskClass))
	}
	return violations
}

func qualityRank(t vocab.QualityTier) int {
	switch t {
	case vocab.TierSubpar:
		return 0
	case vocab.TierPar:
		return 1
	case vocab.TierSuperb:
		return 2
	default:
		return -1
	}
}

// Definition is the YAML-authored shape of one canonical template: its
// identity, its declared constraints, and its step topology.
type Definition struct {
	ID          vocab.TemplateID `yaml:"id"`
	Constraints Constraints      `yaml:"constraints"`
	EntryStep   string           `yaml:"entry_step"`
	ExitSteps   []string         `yaml:"exit_steps"`
	Steps       []Step           `yaml:"steps"`
}

// Graph builds and validates the StepGraph this definition describes.
func (d Definition) Graph() (*StepGraph, error) {
	g := NewStepGraph(d.EntryStep)
	for _, s := range d.Steps {
		g.AddStep(s)
	}
	for _, id := range d.ExitSteps {
		g.MarkExit(id)
	}
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("template %s: %w", d.ID, err)
	}
	return g, nil
}

// LoadFromYAML parses one template definition from its YAML source.
func LoadFromYAML(data []byte) (Definition, error) {
	var d Definition
	if err := yaml.Unmarshal(data, &d); err != nil {
		return Definition{}, fmt.Errorf("template.LoadFromYAML: %w", err)
	}
	if !d.ID.Valid() {
		return Definition{}, fmt.Errorf("template.LoadFromYAML: unrecognized template id %q", d.ID)
	}
	return d, nil
}
