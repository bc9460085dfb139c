package packet

import (
	"github.com/Tpanarchist/omen/vocab"
)

// Packet is implemented by every one of the nine packet variants. A
// switch over Kind() is exhaustive: each case can type-assert to the
// concrete variant without a default fallthrough, which is the point of
// encoding payloads as a Go sum type instead of an open map (spec design
// note: sum types over ad-hoc dictionaries).
type Packet interface {
	Kind() vocab.PacketKind
	GetHeader() Header
	// GetEnvelope returns the packet's MCP envelope and whether one is
	// present. Non-consequential kinds (Observation, BeliefUpdate,
	// VerificationPlan, TaskResult, IntegrityAlert) always return
	// (Envelope{}, false).
	GetEnvelope() (Envelope, bool)
}

// ObservationPacket reports a sensed fact, with optional tool provenance.
type ObservationPacket struct {
	Header            Header  `json:"header"`
	ObservationType   string  `json:"observation_type"`
	Data              string  `json:"data"`
	SourceTool        string  `json:"source_tool,omitempty"`
	ReliabilityScore  *float64 `json:"reliability_score,omitempty"`
}

func (p ObservationPacket) Kind() vocab.PacketKind        { return vocab.Observation }
func (p ObservationPacket) GetHeader() Header              { return p.Header }
func (p ObservationPacket) GetEnvelope() (Envelope, bool)   { return Envelope{}, false }

// BeliefChange is one (domain, key) mutation carried by a BeliefUpdate.
type BeliefChange struct {
	Domain     string      `json:"domain"`
	Key        string      `json:"key"`
	NewValue   interface{} `json:"new_value"`
	PriorValue interface{} `json:"prior_value"`
}

// ContradictionDetails is present iff UpdateType == "contradiction_resolved".
type ContradictionDetails struct {
	ConflictingBeliefKey string `json:"conflicting_belief_key"`
	Resolution           string `json:"resolution"`
}

// BeliefUpdatePacket revises the episode's model of the world.
type BeliefUpdatePacket struct {
	Header                Header                 `json:"header"`
	UpdateType            string                 `json:"update_type"`
	BeliefChanges         []BeliefChange         `json:"belief_changes"`
	ContradictionDetails  *ContradictionDetails  `json:"contradiction_details,omitempty"`
}

func (p BeliefUpdatePacket) Kind() vocab.PacketKind      { return vocab.BeliefUpdate }
func (p BeliefUpdatePacket) GetHeader() Header            { return p.Header }
func (p BeliefUpdatePacket) GetEnvelope() (Envelope, bool) { return Envelope{}, false }

// ConstraintsSatisfied records the three gates a Decision must clear
// before acting (INV-006 arbitration sequence).
type ConstraintsSatisfied struct {
	ConstitutionalCheck bool `json:"constitutional_check"`
	BudgetCheck         bool `json:"budget_check"`
	TierCheck           bool `json:"tier_check"`
}

// DecisionOption is a considered alternative, chosen or rejected.
type DecisionOption struct {
	OptionID    string `json:"option_id"`
	Description string `json:"description"`
}

// LoadBearingAssumption is an assumption whose falsification would flip
// the chosen decision (glossary); Verified tracks whether it has since
// been checked.
type LoadBearingAssumption struct {
	AssumptionID string `json:"assumption_id"`
	Description  string `json:"description"`
	Verified     bool   `json:"verified"`
}

// DecisionPacket commits the episode to one of five outcomes.
type DecisionPacket struct {
	Header                 Header                   `json:"header"`
	Envelope               Envelope                 `json:"mcp"`
	DecisionOutcome        vocab.DecisionOutcome    `json:"decision_outcome"`
	DecisionSummary        string                   `json:"decision_summary"`
	ConstraintsSatisfied   ConstraintsSatisfied     `json:"constraints_satisfied"`
	ChosenOption           *DecisionOption          `json:"chosen_option,omitempty"`
	RejectedOptions        []DecisionOption         `json:"rejected_options,omitempty"`
	LoadBearingAssumptions []LoadBearingAssumption  `json:"load_bearing_assumptions,omitempty"`
}

func (p DecisionPacket) Kind() vocab.PacketKind      { return vocab.Decision }
func (p DecisionPacket) GetHeader() Header            { return p.Header }
func (p DecisionPacket) GetEnvelope() (Envelope, bool) { return p.Envelope, true }

// VerificationPlanItem is one fact the plan commits to verifying.
type VerificationPlanItem struct {
	ItemID      string `json:"item_id"`
	Description string `json:"description"`
}

// VerificationPlanPacket enumerates what must be verified before acting.
type VerificationPlanPacket struct {
	Header Header                  `json:"header"`
	Items  []VerificationPlanItem  `json:"items"`
}

func (p VerificationPlanPacket) Kind() vocab.PacketKind      { return vocab.VerificationPlan }
func (p VerificationPlanPacket) GetHeader() Header            { return p.Header }
func (p VerificationPlanPacket) GetEnvelope() (Envelope, bool) { return Envelope{}, false }

// AuthorizedScope bounds what a ToolAuthorizationToken may be used for.
type AuthorizedScope struct {
	ToolIDs            []string               `json:"tool_ids"`
	OperationTypes      []string               `json:"operation_types"`
	ResourceConstraints map[string]interface{} `json:"resource_constraints,omitempty"`
}

// ToolAuthorizationTokenPacket grants bounded permission to run WRITE/MIXED
// tools. UsageCount and Revoked are mutated in place by the ledger as the
// token is consumed or revoked (§4.4); the packet itself is immutable once
// admitted, but the ledger's copy of the token is the live state.
type ToolAuthorizationTokenPacket struct {
	Header          Header          `json:"header"`
	Envelope        Envelope        `json:"mcp"`
	TokenID         string          `json:"token_id"`
	AuthorizedScope AuthorizedScope `json:"authorized_scope"`
	Expiry          int64           `json:"expiry"`
	MaxUsageCount   int             `json:"max_usage_count"`
	IssuerLayer     vocab.LayerID   `json:"issuer_layer"`
	UsageCount      int             `json:"usage_count"`
	Revoked         bool            `json:"revoked"`
}

func (p ToolAuthorizationTokenPacket) Kind() vocab.PacketKind      { return vocab.ToolAuthorizationToken }
func (p ToolAuthorizationTokenPacket) GetHeader() Header            { return p.Header }
func (p ToolAuthorizationTokenPacket) GetEnvelope() (Envelope, bool) { return p.Envelope, true }

// TaskDirectivePacket instructs a layer to execute a task, optionally
// gated behind an authorization token.
type TaskDirectivePacket struct {
	Header                Header                `json:"header"`
	Envelope              Envelope              `json:"mcp"`
	TaskID                string                `json:"task_id"`
	TaskType              string                `json:"task_type"`
	ExecutionMethod       string                `json:"execution_method"`
	ToolSafetyClass       vocab.ToolSafetyClass `json:"tool_safety_class,omitempty"`
	AuthorizationTokenID  string                `json:"authorization_token_id,omitempty"`
	TimeoutSeconds        *int64                `json:"timeout_seconds,omitempty"`
	// ToolID is the tool this directive targets; used by INV-007 to check
	// the authorization token's scope contains it. Not named explicitly
	// in §3's payload table but required by §4.3 rule 7's "tool_id" check.
	ToolID string `json:"tool_id,omitempty"`
}

func (p TaskDirectivePacket) Kind() vocab.PacketKind      { return vocab.TaskDirective }
func (p TaskDirectivePacket) GetHeader() Header            { return p.Header }
func (p TaskDirectivePacket) GetEnvelope() (Envelope, bool) { return p.Envelope, true }

// ErrorDetails is present iff ResultStatus == FAILURE.
type ErrorDetails struct {
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

// ExecutionMetadata records incidental facts about how a task ran.
type ExecutionMetadata struct {
	DurationMS int64 `json:"duration_ms,omitempty"`
}

// TaskResultPacket reports the outcome of a previously admitted directive.
type TaskResultPacket struct {
	Header             Header             `json:"header"`
	TaskID             string             `json:"task_id"`
	DirectivePacketID  string             `json:"directive_packet_id"`
	ResultStatus       vocab.ResultStatus `json:"result_status"`
	ErrorDetails       *ErrorDetails      `json:"error_details,omitempty"`
	ExecutionMetadata  *ExecutionMetadata `json:"execution_metadata,omitempty"`
	// EvidenceRef, when present, is indexed into the ledger's evidence
	// log (§4.4) so INV-004 can find it.
	EvidenceRef *EvidenceRef `json:"evidence_ref,omitempty"`
}

func (p TaskResultPacket) Kind() vocab.PacketKind      { return vocab.TaskResult }
func (p TaskResultPacket) GetHeader() Header            { return p.Header }
func (p TaskResultPacket) GetEnvelope() (Envelope, bool) { return Envelope{}, false }

// EscalationOption is one of the 2-3 alternatives an Escalation presents.
type EscalationOption struct {
	OptionID    string   `json:"option_id"`
	Description string   `json:"description"`
	Pros        []string `json:"pros"`
	Cons        []string `json:"cons"`
}

// EscalationPacket hands a decision back to a human or higher authority.
type EscalationPacket struct {
	Header               Header             `json:"header"`
	Envelope             Envelope           `json:"mcp"`
	EscalationTrigger    string             `json:"escalation_trigger"`
	TopOptions           []EscalationOption `json:"top_options"`
	EvidenceGaps         []string           `json:"evidence_gaps"`
	RecommendedNextStep  string             `json:"recommended_next_step"`
}

func (p EscalationPacket) Kind() vocab.PacketKind      { return vocab.Escalation }
func (p EscalationPacket) GetHeader() Header            { return p.Header }
func (p EscalationPacket) GetEnvelope() (Envelope, bool) { return p.Envelope, true }

// IntegrityAlertPacket is emitted by the integrity overlay (or a layer
// reporting a constitutional concern) to move the episode's safe mode.
type IntegrityAlertPacket struct {
	Header    Header               `json:"header"`
	AlertType string               `json:"alert_type"`
	Severity  vocab.AlertSeverity  `json:"severity"`
	Message   string               `json:"message"`
}

func (p IntegrityAlertPacket) Kind() vocab.PacketKind      { return vocab.IntegrityAlert }
func (p IntegrityAlertPacket) GetHeader() Header            { return p.Header }
func (p IntegrityAlertPacket) GetEnvelope() (Envelope, bool) { return Envelope{}, false }
