// Package template compiles a canonical episode topology (templates
// A-H) plus a compilation context into a CompiledEpisode: a step graph
// the runner walks one admitted packet at a time. Grounded on gomind's
// orchestration.WorkflowDAG (mutex-guarded node map, explicit status
// enum, referential-integrity validation) generalized from a
// data-dependency DAG — whose edges mean "must finish before" — to an
// FSM-legal step graph, whose edges mean "is the successor when this
// packet kind (and, at a Decision step, this outcome) is admitted".
// Unlike a dependency DAG, cycles are allowed here: Template H's
// verification loop (verify_close back to decide) revisits an earlier
// step, mirroring the FSM's own S1/S4 self-loops.
package template

import (
	"fmt"
	"sync"

	"github.com/Tpanarchist/omen/vocab"
)

// Step is one node of a compiled episode's topology: the layer expected
// to act, the packet kind it is expected to produce, and how to find
// the next step once that packet is admitted.
type Step struct {
	ID           string                               `yaml:"id"`
	OwnerLayer   vocab.LayerID                        `yaml:"owner_layer"`
	ExpectedKind vocab.PacketKind                     `yaml:"expected_kind"`
	Next         string                               `yaml:"next,omitempty"`
	Branches     map[vocab.DecisionOutcome]string     `yaml:"branches,omitempty"`
}

// successor resolves this step's next step ID given the outcome of the
// last admitted Decision (ignored for non-branching steps).
func (s Step) successor(lastOutcome vocab.DecisionOutcome, hasOutcome bool) (string, error) {
	if len(s.Branches) == 0 {
		return s.Next, nil
	}
	if !hasOutcome {
		return "", fmt.Errorf("step %q branches on decision outcome but none has been recorded yet", s.ID)
	}
	next, ok := s.Branches[lastOutcome]
	if !ok {
		return "", fmt.Errorf("step %q has no branch for decision outcome %q", s.ID, lastOutcome)
	}
	return next, nil
}

// StepGraph is the mutex-guarded node map a CompiledEpisode walks.
// Read access (Next/successor lookups) happens from the runner's single
// per-episode goroutine, but the guard matches the teacher's own
// always-safe-for-concurrent-use convention for graph types.
type StepGraph struct {
	mu    sync.RWMutex
	steps map[string]*Step
	entry string
	exits map[string]struct{}
}

// NewStepGraph creates an empty graph rooted at entry.
func NewStepGraph(entry string) *StepGraph {
	return &StepGraph{
		steps: make(map[string]*Step),
		entry: entry,
		exits: make(map[string]struct{}),
	}
}

// AddStep registers s, keyed by its ID.
func (g *StepGraph) AddStep(s Step) {
	g.mu.Lock()
	defer g.mu.Unlock()
	cp := s
	g.steps[s.ID] = &cp
}

// MarkExit flags id as a terminal step; the runner stops once it lands there.
func (g *StepGraph) MarkExit(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.exits[id] = struct{}{}
}

// EntryStep returns the graph's starting step ID.
func (g *StepGraph) EntryStep() string { return g.entry }

// ExitSteps returns every terminal step ID.
func (g *StepGraph) ExitSteps() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]string, 0, len(g.exits))
	for id := range g.exits {
		out = append(out, id)
	}
	return out
}

// IsExit reports whether id is a terminal step.
func (g *StepGraph) IsExit(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.exits[id]
	return ok
}

// Step returns the step registered under id.
func (g *StepGraph) Step(id string) (Step, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	s, ok := g.steps[id]
	if !ok {
		return Step{}, false
	}
	return *s, true
}

// Next resolves the successor of the step currently at id, given the
// last admitted Decision's outcome (if any has been recorded).
func (g *StepGraph) Next(id string, lastOutcome vocab.DecisionOutcome, hasOutcome bool) (string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	s, ok := g.steps[id]
	if !ok {
		return "", fmt.Errorf("unknown step %q", id)
	}
	return s.successor(lastOutcome, hasOutcome)
}

// Validate checks referential integrity: the entry step exists, every
// Next/Branches target names a real step, and at least one exit is
// declared. It does not forbid cycles — a topology may loop (Template
// H's verification loop) the same way the FSM does.
func (g *StepGraph) Validate() error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if _, ok := g.steps[g.entry]; !ok {
		return fmt.Errorf("entry step %q is not a registered step", g.entry)
	}
	if len(g.exits) == 0 {
		return fmt.Errorf("graph declares no exit steps")
	}
	for id := range g.exits {
		if _, ok := g.steps[id]; !ok {
			return fmt.Errorf("exit step %q is not a registered step", id)
		}
	}
	for id, s := range g.steps {
		if !s.OwnerLayer.Valid() {
			return fmt.Errorf("step %q: unrecognized owner_layer %q", id, s.OwnerLayer)
		}
		if !s.ExpectedKind.Valid() {
			return fmt.Errorf("step %q: unrecognized expected_kind %q", id, s.ExpectedKind)
		}
		if len(s.Branches) == 0 {
			if s.Next == "" {
				if _, isExit := g.exits[id]; !isExit {
					return fmt.Errorf("step %q has no successor and is not an exit", id)
				}
				continue
			}
			if _, ok := g.steps[s.Next]; !ok {
				return fmt.Errorf("step %q: next step %q does not exist", id, s.Next)
			}
			continue
		}
		for outcome, target := range s.Branches {
			if !outcome.Valid() {
				return fmt.Errorf("step %q: branch keyed on unrecognized decision outcome %q", id, outcome)
			}
			if _, ok := g.steps[target]; !ok {
				return fmt.Errorf("step %q: branch target %q does not exist", id, target)
			}
		}
	}
	return nil
}
