package invariant

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tpanarchist/omen/packet"
	"github.com/Tpanarchist/omen/vocab"
)

type fakeLedger struct {
	tokens          map[string]packet.ToolAuthorizationTokenPacket
	budgets         BudgetUsage
	overrunApproved bool
	conflictPending bool
	toolsState      vocab.ToolsState
	hasSuccess      bool
	openDirectives  map[string]OpenDirectiveRef
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		tokens:         map[string]packet.ToolAuthorizationTokenPacket{},
		toolsState:     vocab.ToolsOK,
		openDirectives: map[string]OpenDirectiveRef{},
	}
}

func (f *fakeLedger) ActiveToken(tokenID string) (packet.ToolAuthorizationTokenPacket, bool) {
	t, ok := f.tokens[tokenID]
	return t, ok
}
func (f *fakeLedger) BudgetUsage() BudgetUsage             { return f.budgets }
func (f *fakeLedger) BudgetOverrunApproved() bool           { return f.overrunApproved }
func (f *fakeLedger) HasConflictPending() bool              { return f.conflictPending }
func (f *fakeLedger) ToolsState() vocab.ToolsState          { return f.toolsState }
func (f *fakeLedger) HasSuccessfulResultSince() bool        { return f.hasSuccess }
func (f *fakeLedger) OpenDirective(taskID string) (OpenDirectiveRef, bool) {
	d, ok := f.openDirectives[taskID]
	return d, ok
}

func baseEnvelope() packet.Envelope {
	return packet.Envelope{
		Intent: packet.Intent{Summary: "s", Scope: "scope"},
		Stakes: packet.Stakes{
			Impact: vocab.AxisLow, Irreversibility: vocab.AxisLow,
			Uncertainty: vocab.AxisLow, Adversariality: vocab.AxisLow, StakesLevel: vocab.StakeLow,
		},
		Quality:    packet.Quality{Tier: vocab.TierPar, VerificationRequirement: vocab.VerifyOptional},
		Budgets:    packet.Budgets{},
		Epistemics: packet.Epistemics{Status: vocab.Observed, FreshnessClass: vocab.FreshnessStrategic},
		Evidence:   packet.Evidence{AbsentReason: "n/a"},
		Routing:    packet.Routing{TaskClass: vocab.TaskLookup, ToolsState: vocab.ToolsOK},
	}
}

func TestINV002SubparNeverActs(t *testing.T) {
	env := baseEnvelope()
	env.Quality.Tier = vocab.TierSubpar
	dp := packet.DecisionPacket{Envelope: env, DecisionOutcome: vocab.Act}
	v := INV002SubparNeverActs(dp, newFakeLedger())
	require.True(t, IsError(v))
	assert.Equal(t, "INV-002", v.(ErrorVerdict).Code)
}

func TestINV003HighStakesRequiresVerifyOrSuperb(t *testing.T) {
	env := baseEnvelope()
	env.Stakes.StakesLevel = vocab.StakeHigh
	dp := packet.DecisionPacket{Envelope: env, DecisionOutcome: vocab.Act}
	v := INV003HighStakesSafety(dp, newFakeLedger())
	require.True(t, IsError(v))

	env.Quality.Tier = vocab.TierSuperb
	dp2 := packet.DecisionPacket{Envelope: env, DecisionOutcome: vocab.Act}
	v2 := INV003HighStakesSafety(dp2, newFakeLedger())
	assert.IsType(t, PassVerdict{}, v2)
}

func TestINV004RequiresFreshEvidence(t *testing.T) {
	env := baseEnvelope()
	env.Epistemics.Status = vocab.Inferred
	env.Epistemics.FreshnessClass = vocab.FreshnessRealtime
	env.Evidence = packet.Evidence{Refs: []packet.EvidenceRef{
		{RefType: vocab.RefToolOutput, RefID: "r1", Timestamp: time.Now().Unix() - 3600},
	}}
	dp := packet.DecisionPacket{Envelope: env, DecisionOutcome: vocab.VerifyFirst}
	v := INV004NoLiveTruthWithoutEvidence(dp, newFakeLedger())
	require.True(t, IsError(v))

	env.Evidence.Refs[0].Timestamp = time.Now().Unix() - 5
	dp2 := packet.DecisionPacket{Envelope: env, DecisionOutcome: vocab.VerifyFirst}
	v2 := INV004NoLiveTruthWithoutEvidence(dp2, newFakeLedger())
	assert.IsType(t, PassVerdict{}, v2)
}

func TestINV005BudgetOverrunRequiresApproval(t *testing.T) {
	lv := newFakeLedger()
	lv.budgets = BudgetUsage{TokensUsed: 200, TokenBudget: 100}
	dp := packet.DecisionPacket{Envelope: baseEnvelope(), DecisionOutcome: vocab.Defer}
	v := INV005BudgetOverrunApproval(dp, lv)
	require.True(t, IsError(v))

	lv.overrunApproved = true
	v2 := INV005BudgetOverrunApproval(dp, lv)
	assert.IsType(t, PassVerdict{}, v2)
}

func TestINV007TokenScope(t *testing.T) {
	lv := newFakeLedger()
	lv.tokens["token_1"] = packet.ToolAuthorizationTokenPacket{
		TokenID: "token_1", MaxUsageCount: 1,
		AuthorizedScope: packet.AuthorizedScope{ToolIDs: []string{"fs.write"}},
	}
	td := packet.TaskDirectivePacket{
		ToolSafetyClass: vocab.SafetyWrite, AuthorizationTokenID: "token_1", ToolID: "fs.read",
	}
	v := INV007WriteTokenScope(td, lv)
	require.True(t, IsError(v))

	td.ToolID = "fs.write"
	v2 := INV007WriteTokenScope(td, lv)
	assert.IsType(t, PassVerdict{}, v2)
}

func TestINV009EscalationCardinality(t *testing.T) {
	ep := packet.EscalationPacket{
		TopOptions:   []packet.EscalationOption{{OptionID: "o1", Description: "d"}},
		EvidenceGaps: []string{"gap"}, RecommendedNextStep: "ask",
	}
	v := INV009EscalationStructure(ep, newFakeLedger())
	require.True(t, IsError(v))
}

func TestINV010DegradedToolsForbidsActOnToolsDown(t *testing.T) {
	env := baseEnvelope()
	env.Stakes.StakesLevel = vocab.StakeCritical
	env.Routing.ToolsState = vocab.ToolsDown
	dp := packet.DecisionPacket{Envelope: env, DecisionOutcome: vocab.Act}
	v := INV010DegradedToolsPolicy(dp, newFakeLedger())
	require.True(t, IsError(v))
}

func TestINV011TaskClosureRejectsOrphanResult(t *testing.T) {
	tr := packet.TaskResultPacket{TaskID: "task_unknown", ResultStatus: vocab.ResultSuccess}
	v := INV011TaskClosure(tr, newFakeLedger())
	require.True(t, IsError(v))
}

func TestINV012StakesConsistencyWarnsOnMismatch(t *testing.T) {
	env := baseEnvelope()
	env.Stakes.StakesLevel = vocab.StakeCritical // no axis supports this
	dp := packet.DecisionPacket{Envelope: env, DecisionOutcome: vocab.VerifyFirst}
	v := INV012StakesConsistency(dp, newFakeLedger())
	require.True(t, IsWarning(v))
}

func TestRegistryEvaluateAllAggregatesNonPassVerdicts(t *testing.T) {
	env := baseEnvelope()
	env.Quality.Tier = vocab.TierSubpar
	env.Stakes.StakesLevel = vocab.StakeCritical
	dp := packet.DecisionPacket{Envelope: env, DecisionOutcome: vocab.Act}

	registry := DefaultRegistry()
	verdicts := registry.EvaluateAll(dp, newFakeLedger())
	require.True(t, HasError(verdicts))
	assert.GreaterOrEqual(t, len(verdicts), 2) // INV-002 and INV-003 both fire
}
