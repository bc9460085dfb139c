package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tpanarchist/omen/packet"
	"github.com/Tpanarchist/omen/vocab"
)

func header(kind vocab.PacketKind, id, corr string) packet.Header {
	return packet.Header{
		PacketID: id, PacketKind: kind, CorrelationID: corr,
		CampaignID: "camp_1", CreatedAt: time.Unix(1700000000, 0), SourceLayer: vocab.LayerCognitiveControl,
	}
}

func baseEnvelope() packet.Envelope {
	return packet.Envelope{
		Intent: packet.Intent{Summary: "s", Scope: "scope"},
		Stakes: packet.Stakes{
			Impact: vocab.AxisLow, Irreversibility: vocab.AxisLow,
			Uncertainty: vocab.AxisLow, Adversariality: vocab.AxisLow, StakesLevel: vocab.StakeLow,
		},
		Quality: packet.Quality{Tier: vocab.TierPar, VerificationRequirement: vocab.VerifyOptional,
			DefinitionOfDone: packet.DefinitionOfDone{Text: "done"}},
		Budgets:    packet.Budgets{},
		Epistemics: packet.Epistemics{Status: vocab.Observed, FreshnessClass: vocab.FreshnessStrategic},
		Evidence:   packet.Evidence{AbsentReason: "n/a"},
		Routing:    packet.Routing{TaskClass: vocab.TaskLookup, ToolsState: vocab.ToolsOK},
	}
}

func TestCreateStartsIdleWithZeroUsage(t *testing.T) {
	l := Create("corr_1", "camp_1", Budgets{TokenBudget: 100}, nil)
	snap := l.Snapshot()
	assert.Equal(t, vocab.S0Idle, snap.CurrentState)
	assert.Zero(t, snap.TokensUsed)
	assert.False(t, snap.Frozen)
}

func TestApplyAdvancesFSMAndIndexesState(t *testing.T) {
	l := Create("corr_1", "camp_1", Budgets{}, nil)
	obs := packet.ObservationPacket{
		Header:          header(vocab.Observation, "pkt_1", "corr_1"),
		ObservationType: "sensor", Data: "reading: 42",
	}
	require.NoError(t, l.Apply(obs))
	assert.Equal(t, vocab.S1Sense, l.CurrentState())
}

func TestApplyRejectsSchemaInvalidPacket(t *testing.T) {
	l := Create("corr_1", "camp_1", Budgets{}, nil)
	bad := packet.ObservationPacket{Header: packet.Header{PacketKind: vocab.Observation}}
	err := l.Apply(bad)
	require.Error(t, err)
	assert.Equal(t, vocab.S0Idle, l.CurrentState())
}

func advanceToAuthorize(t *testing.T, l *Ledger) {
	t.Helper()
	obs := packet.ObservationPacket{Header: header(vocab.Observation, "pkt_1", "corr_1"), ObservationType: "t", Data: "d"}
	require.NoError(t, l.Apply(obs))

	bu := packet.BeliefUpdatePacket{Header: header(vocab.BeliefUpdate, "pkt_2", "corr_1"), UpdateType: "new_belief",
		BeliefChanges: []packet.BeliefChange{{Domain: "d", Key: "k", NewValue: "v"}}}
	require.NoError(t, l.Apply(bu))

	env := baseEnvelope()
	env.Routing.TaskClass = vocab.TaskCreate
	dp := packet.DecisionPacket{Header: header(vocab.Decision, "pkt_3", "corr_1"), Envelope: env,
		DecisionOutcome: vocab.Act, DecisionSummary: "go",
		ConstraintsSatisfied: packet.ConstraintsSatisfied{ConstitutionalCheck: true, BudgetCheck: true, TierCheck: true},
		ChosenOption:         &packet.DecisionOption{OptionID: "o1", Description: "d"}}
	require.NoError(t, l.Apply(dp))
	assert.Equal(t, vocab.S5Authorize, l.CurrentState())
}

func TestApplyTracksTokensAndOpenDirectives(t *testing.T) {
	l := Create("corr_1", "camp_1", Budgets{}, nil)
	advanceToAuthorize(t, l)

	td := packet.TaskDirectivePacket{Header: header(vocab.TaskDirective, "pkt_4", "corr_1"),
		Envelope: baseEnvelope(), TaskID: "task_1", TaskType: "read_file", ExecutionMethod: "tool_call",
		ToolSafetyClass: vocab.SafetyRead, ToolID: "fs.read"}
	require.NoError(t, l.Apply(td))
	assert.Equal(t, vocab.S6Execute, l.CurrentState())

	snap := l.Snapshot()
	assert.Equal(t, 1, snap.OpenDirectives)
	assert.Equal(t, int64(1), snap.ToolCallsUsed)

	tr := packet.TaskResultPacket{Header: header(vocab.TaskResult, "pkt_5", "corr_1"),
		TaskID: "task_1", DirectivePacketID: "pkt_4", ResultStatus: vocab.ResultSuccess}
	require.NoError(t, l.Apply(tr))

	snap = l.Snapshot()
	assert.Equal(t, 0, snap.OpenDirectives)
	assert.True(t, l.HasSuccessfulResultSince())
}

func TestApplyFrozenLedgerRejectsEverything(t *testing.T) {
	l := Create("corr_1", "camp_1", Budgets{}, nil)
	l.Freeze()
	obs := packet.ObservationPacket{Header: header(vocab.Observation, "pkt_1", "corr_1"), ObservationType: "t", Data: "d"}
	err := l.Apply(obs)
	require.Error(t, err)
}

func TestRecordUsageOverBudgetIsExceededAndNotApproved(t *testing.T) {
	l := Create("corr_1", "camp_1", Budgets{TokenBudget: 10}, nil)
	l.RecordUsage(100, 0)
	assert.True(t, l.BudgetUsage().Exceeded())
	assert.False(t, l.BudgetOverrunApproved())
}

func TestRevokeTokenMarksRevoked(t *testing.T) {
	l := Create("corr_1", "camp_1", Budgets{}, nil)
	advanceToAuthorize(t, l)

	tok := packet.ToolAuthorizationTokenPacket{
		Header: header(vocab.ToolAuthorizationToken, "pkt_tok", "corr_1"),
		Envelope: baseEnvelope(), TokenID: "token_1", MaxUsageCount: 1,
		IssuerLayer:     vocab.LayerCognitiveControl,
		AuthorizedScope: packet.AuthorizedScope{ToolIDs: []string{"fs.write"}, OperationTypes: []string{"write"}},
	}
	require.NoError(t, l.Apply(tok))
	l.RevokeToken("token_1")
	got, ok := l.ActiveToken("token_1")
	require.True(t, ok)
	assert.True(t, got.Revoked)
}
