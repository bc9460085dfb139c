package packet

import (
	"github.com/Tpanarchist/omen/vocab"
)

// Intent names the summary and scope of a consequential packet's purpose.
type Intent struct {
	Summary string `json:"summary"`
	Scope   string `json:"scope"`
}

// Stakes carries the four axes that feed the computed StakesLevel, plus
// the computed level itself (§4.6/INV-012 check that the two stay
// consistent).
type Stakes struct {
	Impact          vocab.StakeAxisValue `json:"impact"`
	Irreversibility vocab.StakeAxisValue `json:"irreversibility"`
	Uncertainty     vocab.StakeAxisValue `json:"uncertainty"`
	Adversariality  vocab.StakeAxisValue `json:"adversariality"`
	StakesLevel     vocab.StakeLevel     `json:"stakes_level"`
}

// DefinitionOfDone names the acceptance checks a consequential packet must
// satisfy before its quality tier is considered met.
type DefinitionOfDone struct {
	Text   string   `json:"text"`
	Checks []string `json:"checks"`
}

// Quality carries the tier and completion criteria for a consequential packet.
type Quality struct {
	Tier                    vocab.QualityTier             `json:"tier"`
	SatisficingMode         bool                          `json:"satisficing_mode"`
	DefinitionOfDone        DefinitionOfDone              `json:"definition_of_done"`
	VerificationRequirement vocab.VerificationRequirement `json:"verification_requirement"`
}

// RiskBudget bounds the acceptable loss envelope for a consequential packet.
type RiskBudget struct {
	Envelope string  `json:"envelope"`
	MaxLoss  float64 `json:"max_loss"`
}

// Budgets carries the resource ceilings an episode must respect.
type Budgets struct {
	TokenBudget       int64      `json:"token_budget"`
	ToolCallBudget    int64      `json:"tool_call_budget"`
	TimeBudgetSeconds int64      `json:"time_budget_seconds"`
	RiskBudget        RiskBudget `json:"risk_budget"`
}

// Epistemics records how a belief or observation was obtained and how
// stale it is allowed to be before it no longer grounds an action.
type Epistemics struct {
	Status                  vocab.EpistemicStatus `json:"status"`
	Confidence              float64               `json:"confidence"`
	CalibrationNote         string                `json:"calibration_note,omitempty"`
	FreshnessClass          vocab.FreshnessClass  `json:"freshness_class"`
	StaleIfOlderThanSeconds *int64                `json:"stale_if_older_than_seconds,omitempty"`
	Assumptions             []string              `json:"assumptions,omitempty"`
}

// Evidence carries the proof (or documented absence of proof) backing a
// consequential packet. Exactly one of Refs (non-empty) or AbsentReason
// (non-empty) must hold (§4.1, enforced by the schema validator).
type Evidence struct {
	Refs          []EvidenceRef `json:"evidence_refs,omitempty"`
	AbsentReason  string        `json:"evidence_absent_reason,omitempty"`
}

// Routing carries the task classification and tools-state signal used to
// route the packet and gate high-stakes action (INV-010).
type Routing struct {
	TaskClass  vocab.TaskClass  `json:"task_class"`
	ToolsState vocab.ToolsState `json:"tools_state"`
}

// Envelope is the mandatory policy-compliance payload carried by every
// consequential packet (Decision, TaskDirective, ToolAuthorizationToken,
// Escalation).
type Envelope struct {
	Intent     Intent     `json:"intent"`
	Stakes     Stakes     `json:"stakes"`
	Quality    Quality    `json:"quality"`
	Budgets    Budgets    `json:"budgets"`
	Epistemics Epistemics `json:"epistemics"`
	Evidence   Evidence   `json:"evidence"`
	Routing    Routing    `json:"routing"`
}

// EvidenceRef names one piece of grounding evidence: a tool output, a
// user observation, a memory recall, or a derived calculation.
type EvidenceRef struct {
	RefType          vocab.EvidenceRefType `json:"ref_type"`
	RefID            string                `json:"ref_id"`
	Timestamp        int64                 `json:"timestamp"`
	ReliabilityScore *float64              `json:"reliability_score,omitempty"`
}
