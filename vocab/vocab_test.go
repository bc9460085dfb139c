package vocab

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPacketKindValid(t *testing.T) {
	assert.True(t, Decision.Valid())
	assert.True(t, IntegrityAlert.Valid())
	assert.False(t, PacketKind("NotAKind").Valid())
}

func TestPacketKindConsequential(t *testing.T) {
	assert.True(t, Decision.Consequential())
	assert.True(t, TaskDirective.Consequential())
	assert.True(t, ToolAuthorizationToken.Consequential())
	assert.True(t, Escalation.Consequential())
	assert.False(t, Observation.Consequential())
	assert.False(t, BeliefUpdate.Consequential())
	assert.False(t, TaskResult.Consequential())
	assert.False(t, VerificationPlan.Consequential())
	assert.False(t, IntegrityAlert.Consequential())
}

func TestFSMStateValid(t *testing.T) {
	assert.True(t, S0Idle.Valid())
	assert.True(t, S9SafeMode.Valid())
	assert.False(t, FSMState("S10_BOGUS").Valid())
}

func TestToolSafetyClassRequiresAuthorization(t *testing.T) {
	assert.False(t, SafetyRead.RequiresAuthorization())
	assert.True(t, SafetyWrite.RequiresAuthorization())
	assert.True(t, SafetyMixed.RequiresAuthorization())
}

func TestEpistemicStatusNeedsFreshEvidence(t *testing.T) {
	assert.True(t, Inferred.NeedsFreshEvidence())
	assert.True(t, Hypothesized.NeedsFreshEvidence())
	assert.True(t, Unknown.NeedsFreshEvidence())
	assert.False(t, Observed.NeedsFreshEvidence())
	assert.False(t, Derived.NeedsFreshEvidence())
	assert.False(t, Remembered.NeedsFreshEvidence())
}

func TestFreshnessClassRequiresFreshnessCheck(t *testing.T) {
	assert.True(t, FreshnessRealtime.RequiresFreshnessCheck())
	assert.True(t, FreshnessOperational.RequiresFreshnessCheck())
	assert.False(t, FreshnessStrategic.RequiresFreshnessCheck())
	assert.False(t, FreshnessArchival.RequiresFreshnessCheck())
}

func TestEvidenceRefTypeSatisfiesFreshnessEvidence(t *testing.T) {
	assert.True(t, RefToolOutput.SatisfiesFreshnessEvidence())
	assert.True(t, RefUserObservation.SatisfiesFreshnessEvidence())
	assert.False(t, RefMemoryItem.SatisfiesFreshnessEvidence())
	assert.False(t, RefDerivedCalc.SatisfiesFreshnessEvidence())
}

func TestLayerIDValid(t *testing.T) {
	assert.True(t, LayerAspirational.Valid())
	assert.True(t, LayerIntegrity.Valid())
	assert.False(t, LayerID("layer_7_bogus").Valid())
}

func TestQualityTierValid(t *testing.T) {
	assert.True(t, TierSubpar.Valid())
	assert.True(t, TierSuperb.Valid())
	assert.False(t, QualityTier("ELITE").Valid())
}

func TestDecisionOutcomeValid(t *testing.T) {
	assert.True(t, Act.Valid())
	assert.True(t, Cancel.Valid())
	assert.False(t, DecisionOutcome("MAYBE").Valid())
}
