// Package layer defines the narrow externally-implemented contract the
// runner drives once per step. Cognition itself — an LLM call, a
// deterministic stub, a human-in-the-loop relay — lives outside this
// module; layer only fixes the shape callers must honor and the fixed
// emit/receive sets the runner enforces on their behalf.
package layer

import (
	"context"

	"github.com/Tpanarchist/omen/core"
	"github.com/Tpanarchist/omen/packet"
	"github.com/Tpanarchist/omen/vocab"
)

// StepContext carries the per-step information a layer needs to decide
// what to produce, beyond the packets it was handed. It is assembled by
// the runner from the compiled episode and the ledger's current view.
type StepContext struct {
	StepID          string
	ExpectedKind    vocab.PacketKind
	CurrentState    vocab.FSMState
	ToolsState      vocab.ToolsState
	BudgetRemaining float64
}

// Contract is implemented by every cognitive layer (1 aspirational
// through 6 task prosecution) and by nothing else; the integrity
// overlay is driven separately, not through this interface. Grounded on
// gomind's core.AIClient / core.Tool style of small, single-purpose
// externally-implemented contracts (core/interfaces.go) rather than a
// single god-interface covering every layer's concerns at once.
type Contract interface {
	// CanEmit lists the packet kinds this layer is permitted to
	// produce. The runner filters candidates against its role's fixed
	// set (EmitSetFor, which BaseContract.CanEmit also returns): packets
	// outside it are dropped and logged, and the step continues with the
	// remaining packets.
	CanEmit() []vocab.PacketKind

	// CanReceive lists the packet kinds this layer is willing to
	// consume. The runner does not consult it: Invoke receives every
	// packet admitted at the previous step.
	CanReceive() []vocab.PacketKind

	// Invoke runs the layer's cognition for one step. received is the
	// packet set the runner gathered for this layer at this step;
	// implementations return the candidate packets to validate next,
	// or an error if they cannot produce a legal response (callers
	// should treat this as a step failure, not a panic-worthy defect).
	Invoke(ctx context.Context, received []packet.Packet, corrID, campaignID string, stepCtx StepContext) ([]packet.Packet, error)
}

// Role identifies which of the six layers (or the integrity overlay) a
// Contract implementation plays. It is a type alias for vocab.LayerID,
// so any vocab.LayerID value can be used wherever a Role is expected.
type Role = vocab.LayerID

// emitSets and receiveSets are the fixed contracts from spec.md §4.7,
// kept as package-level data so BaseContract can serve CanEmit/
// CanReceive without every concrete layer repeating the same switch.
var emitSets = map[Role][]vocab.PacketKind{
	vocab.LayerAspirational:     {vocab.BeliefUpdate, vocab.Escalation},
	vocab.LayerStrategy:         {vocab.BeliefUpdate, vocab.Escalation},
	vocab.LayerSelfModel:        {vocab.BeliefUpdate},
	vocab.LayerExecutive:        {vocab.Decision, vocab.Escalation},
	vocab.LayerCognitiveControl: {vocab.VerificationPlan, vocab.ToolAuthorizationToken},
	vocab.LayerTaskProsecution:  {vocab.Observation, vocab.TaskDirective, vocab.TaskResult},
}

var receiveSets = map[Role][]vocab.PacketKind{
	vocab.LayerAspirational:     {vocab.BeliefUpdate, vocab.Escalation, vocab.IntegrityAlert},
	vocab.LayerStrategy:         {vocab.BeliefUpdate, vocab.Escalation, vocab.IntegrityAlert},
	vocab.LayerSelfModel:        {vocab.Observation, vocab.TaskResult, vocab.IntegrityAlert},
	vocab.LayerExecutive:        {vocab.BeliefUpdate, vocab.Escalation, vocab.IntegrityAlert},
	vocab.LayerCognitiveControl: {vocab.Decision, vocab.IntegrityAlert},
	vocab.LayerTaskProsecution:  {vocab.TaskDirective, vocab.ToolAuthorizationToken, vocab.VerificationPlan},
}

// EmitSetFor and ReceiveSetFor expose the fixed contracts for a layer
// role so the runner can enforce them without depending on any single
// layer implementation's CanEmit/CanReceive override.
func EmitSetFor(role Role) []vocab.PacketKind    { return emitSets[role] }
func ReceiveSetFor(role Role) []vocab.PacketKind { return receiveSets[role] }

// BaseContract implements CanEmit/CanReceive from the fixed tables
// above and leaves Invoke to an injected function, so a concrete layer
// is typically just a BaseContract plus a cognition callback rather
// than a hand-rolled interface implementation.
type BaseContract struct {
	role   Role
	invoke func(ctx context.Context, received []packet.Packet, corrID, campaignID string, stepCtx StepContext) ([]packet.Packet, error)
	logger core.Logger
}

// NewBaseContract builds a layer around its fixed role and an
// externally supplied cognition function. A nil logger is replaced
// with core.NoOpLogger, matching the rest of the module's convention
// of never requiring callers to wire a logger just to get a zero value.
func NewBaseContract(role Role, invoke func(ctx context.Context, received []packet.Packet, corrID, campaignID string, stepCtx StepContext) ([]packet.Packet, error), logger core.Logger) *BaseContract {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &BaseContract{role: role, invoke: invoke, logger: logger}
}

func (b *BaseContract) CanEmit() []vocab.PacketKind    { return emitSets[b.role] }
func (b *BaseContract) CanReceive() []vocab.PacketKind { return receiveSets[b.role] }

func (b *BaseContract) Invoke(ctx context.Context, received []packet.Packet, corrID, campaignID string, stepCtx StepContext) ([]packet.Packet, error) {
	b.logger.Debug("layer.invoke", map[string]interface{}{
		"role":        string(b.role),
		"step_id":     stepCtx.StepID,
		"correlation": corrID,
	})
	return b.invoke(ctx, received, corrID, campaignID, stepCtx)
}

// Filter drops any packet in candidates whose Kind() is not in allowed,
// returning the surviving packets and the count dropped. The runner
// uses this to enforce CanEmit as a post-filter per spec.md §4.7.
func Filter(candidates []packet.Packet, allowed []vocab.PacketKind) (kept []packet.Packet, dropped int) {
	allowedSet := make(map[vocab.PacketKind]struct{}, len(allowed))
	for _, k := range allowed {
		allowedSet[k] = struct{}{}
	}
	for _, p := range candidates {
		if _, ok := allowedSet[p.Kind()]; ok {
			kept = append(kept, p)
		} else {
			dropped++
		}
	}
	return kept, dropped
}
