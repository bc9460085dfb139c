// Package schema implements the protocol's stateless structural
// validator: field presence, enum range, identifier pattern, and
// payload-shape checks that require no episode context. It never stops
// at the first violation — every check runs and all diagnostics are
// aggregated, so a caller sees every defect in one pass rather than
// fixing a packet one field at a time.
package schema

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Tpanarchist/omen/packet"
	"github.com/Tpanarchist/omen/vocab"
)

// Diagnostic names one structural defect found in a packet.
type Diagnostic struct {
	FieldPath string
	Violation string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s", d.FieldPath, d.Violation)
}

// Result is the aggregated outcome of a structural validation pass.
type Result struct {
	Diagnostics []Diagnostic
}

// Ok reports whether the packet is structurally valid.
func (r Result) Ok() bool { return len(r.Diagnostics) == 0 }

func (r *Result) add(fieldPath, violation string) {
	r.Diagnostics = append(r.Diagnostics, Diagnostic{FieldPath: fieldPath, Violation: violation})
}

var idPattern = regexp.MustCompile(`^[a-z]+_[A-Za-z0-9-]+$`)

func validID(fieldPath, prefix, value string, r *Result) {
	if value == "" {
		r.add(fieldPath, "must not be empty")
		return
	}
	if !strings.HasPrefix(value, prefix+"_") {
		r.add(fieldPath, fmt.Sprintf("must be prefixed %q", prefix+"_"))
		return
	}
	if !idPattern.MatchString(value) {
		r.add(fieldPath, "does not match the identifier pattern")
	}
}

// Validate runs every structural check against p and returns the
// aggregated result. No ledger or episode context is consulted; stateful
// checks belong to fsm and invariant.
func Validate(p packet.Packet) Result {
	var r Result
	h := p.GetHeader()

	validateHeader(h, &r)

	env, hasEnvelope := p.GetEnvelope()
	if p.Kind().Consequential() {
		if !hasEnvelope {
			r.add("mcp", "consequential packet missing MCP envelope")
		} else {
			validateEnvelope(env, &r)
		}
	}

	validatePayload(p, &r)

	return r
}

func validateHeader(h packet.Header, r *Result) {
	validID("header.packet_id", "pkt", h.PacketID, r)
	if !h.PacketKind.Valid() {
		r.add("header.packet_kind", fmt.Sprintf("unrecognized packet kind %q", h.PacketKind))
	}
	if h.CreatedAt.IsZero() {
		r.add("header.created_at", "must be a parseable, non-zero timestamp")
	}
	if !h.SourceLayer.Valid() {
		r.add("header.source_layer", fmt.Sprintf("unrecognized layer %q", h.SourceLayer))
	}
	validID("header.correlation_id", "corr", h.CorrelationID, r)
	if h.CampaignID != "" {
		validID("header.campaign_id", "camp", h.CampaignID, r)
	}
}

func validateEnvelope(env packet.Envelope, r *Result) {
	if env.Intent.Summary == "" {
		r.add("mcp.intent.summary", "must not be empty")
	}
	if env.Intent.Scope == "" {
		r.add("mcp.intent.scope", "must not be empty")
	}

	validateStakesAxis("mcp.stakes.impact", env.Stakes.Impact, r)
	validateStakesAxis("mcp.stakes.irreversibility", env.Stakes.Irreversibility, r)
	validateStakesAxis("mcp.stakes.uncertainty", env.Stakes.Uncertainty, r)
	validateStakesAxis("mcp.stakes.adversariality", env.Stakes.Adversariality, r)
	if !validStakeLevel(env.Stakes.StakesLevel) {
		r.add("mcp.stakes.stakes_level", fmt.Sprintf("unrecognized stakes level %q", env.Stakes.StakesLevel))
	}

	if !env.Quality.Tier.Valid() {
		r.add("mcp.quality.tier", fmt.Sprintf("unrecognized quality tier %q", env.Quality.Tier))
	}
	if len(env.Quality.DefinitionOfDone.Checks) == 0 && env.Quality.DefinitionOfDone.Text == "" {
		r.add("mcp.quality.definition_of_done", "must name at least a text summary or one check")
	}
	switch env.Quality.VerificationRequirement {
	case vocab.VerifyOptional, vocab.VerifyOne, vocab.VerifyAll:
	default:
		r.add("mcp.quality.verification_requirement", fmt.Sprintf("unrecognized value %q", env.Quality.VerificationRequirement))
	}

	if env.Budgets.TokenBudget < 0 {
		r.add("mcp.budgets.token_budget", "must be >= 0")
	}
	if env.Budgets.ToolCallBudget < 0 {
		r.add("mcp.budgets.tool_call_budget", "must be >= 0")
	}
	if env.Budgets.TimeBudgetSeconds < 0 {
		r.add("mcp.budgets.time_budget_seconds", "must be >= 0")
	}

	if !env.Epistemics.Status.Valid() {
		r.add("mcp.epistemics.status", fmt.Sprintf("unrecognized epistemic status %q", env.Epistemics.Status))
	}
	if env.Epistemics.Confidence < 0 || env.Epistemics.Confidence > 1 {
		r.add("mcp.epistemics.confidence", "must be within [0,1]")
	}
	switch env.Epistemics.FreshnessClass {
	case vocab.FreshnessRealtime, vocab.FreshnessOperational, vocab.FreshnessStrategic, vocab.FreshnessArchival:
	default:
		r.add("mcp.epistemics.freshness_class", fmt.Sprintf("unrecognized value %q", env.Epistemics.FreshnessClass))
	}

	hasRefs := len(env.Evidence.Refs) > 0
	hasReason := env.Evidence.AbsentReason != ""
	if hasRefs == hasReason {
		r.add("mcp.evidence", "exactly one of evidence_refs (non-empty) or evidence_absent_reason (non-null) must hold")
	}
	for i, ref := range env.Evidence.Refs {
		fieldPath := fmt.Sprintf("mcp.evidence.evidence_refs[%d]", i)
		switch ref.RefType {
		case vocab.RefToolOutput, vocab.RefUserObservation, vocab.RefMemoryItem, vocab.RefDerivedCalc:
		default:
			r.add(fieldPath+".ref_type", fmt.Sprintf("unrecognized value %q", ref.RefType))
		}
		if ref.RefID == "" {
			r.add(fieldPath+".ref_id", "must not be empty")
		}
		if ref.ReliabilityScore != nil && (*ref.ReliabilityScore < 0 || *ref.ReliabilityScore > 1) {
			r.add(fieldPath+".reliability_score", "must be within [0,1]")
		}
	}

	switch env.Routing.TaskClass {
	case vocab.TaskFind, vocab.TaskLookup, vocab.TaskSearch, vocab.TaskCreate, vocab.TaskVerify, vocab.TaskCompile:
	default:
		r.add("mcp.routing.task_class", fmt.Sprintf("unrecognized value %q", env.Routing.TaskClass))
	}
	if !env.Routing.ToolsState.Valid() {
		r.add("mcp.routing.tools_state", fmt.Sprintf("unrecognized value %q", env.Routing.ToolsState))
	}
}

func validateStakesAxis(fieldPath string, v vocab.StakeAxisValue, r *Result) {
	switch v {
	case vocab.AxisLow, vocab.AxisMedium, vocab.AxisHigh, vocab.AxisCritical, vocab.AxisIrreversible:
	default:
		r.add(fieldPath, fmt.Sprintf("unrecognized value %q", v))
	}
}

func validStakeLevel(l vocab.StakeLevel) bool {
	switch l {
	case vocab.StakeLow, vocab.StakeMedium, vocab.StakeHigh, vocab.StakeCritical:
		return true
	default:
		return false
	}
}

// validatePayload applies the per-kind required-fields table (spec §3)
// plus the three conditional requirements called out in §4.1.
func validatePayload(p packet.Packet, r *Result) {
	switch v := p.(type) {
	case packet.ObservationPacket:
		if v.ObservationType == "" {
			r.add("observation_type", "must not be empty")
		}
		if v.Data == "" {
			r.add("data", "must not be empty")
		}
		if v.ReliabilityScore != nil && (*v.ReliabilityScore < 0 || *v.ReliabilityScore > 1) {
			r.add("reliability_score", "must be within [0,1]")
		}

	case packet.BeliefUpdatePacket:
		if v.UpdateType == "" {
			r.add("update_type", "must not be empty")
		}
		if len(v.BeliefChanges) == 0 {
			r.add("belief_changes", "must contain at least one change")
		}
		for i, bc := range v.BeliefChanges {
			fieldPath := fmt.Sprintf("belief_changes[%d]", i)
			if bc.Domain == "" {
				r.add(fieldPath+".domain", "must not be empty")
			}
			if bc.Key == "" {
				r.add(fieldPath+".key", "must not be empty")
			}
		}
		if v.UpdateType == "contradiction_resolved" && v.ContradictionDetails == nil {
			r.add("contradiction_details", "required when update_type is contradiction_resolved")
		}
		if v.UpdateType != "contradiction_resolved" && v.ContradictionDetails != nil {
			r.add("contradiction_details", "must be absent unless update_type is contradiction_resolved")
		}

	case packet.DecisionPacket:
		if !v.DecisionOutcome.Valid() {
			r.add("decision_outcome", fmt.Sprintf("unrecognized value %q", v.DecisionOutcome))
		}
		if v.DecisionSummary == "" {
			r.add("decision_summary", "must not be empty")
		}

	case packet.VerificationPlanPacket:
		if len(v.Items) == 0 {
			r.add("items", "must contain at least one plan item")
		}

	case packet.ToolAuthorizationTokenPacket:
		validID("token_id", "token", v.TokenID, r)
		if len(v.AuthorizedScope.ToolIDs) == 0 {
			r.add("authorized_scope.tool_ids", "must contain at least one tool id")
		}
		if len(v.AuthorizedScope.OperationTypes) == 0 {
			r.add("authorized_scope.operation_types", "must contain at least one operation type")
		}
		if v.MaxUsageCount < 1 {
			r.add("max_usage_count", "must be >= 1")
		}
		if !v.IssuerLayer.Valid() {
			r.add("issuer_layer", fmt.Sprintf("unrecognized layer %q", v.IssuerLayer))
		}

	case packet.TaskDirectivePacket:
		validID("task_id", "task", v.TaskID, r)
		if v.TaskType == "" {
			r.add("task_type", "must not be empty")
		}
		if v.ExecutionMethod == "" {
			r.add("execution_method", "must not be empty")
		}
		if v.ToolSafetyClass.RequiresAuthorization() && v.AuthorizationTokenID == "" {
			r.add("authorization_token_id", "required when tool_safety_class is WRITE or MIXED")
		}

	case packet.TaskResultPacket:
		validID("task_id", "task", v.TaskID, r)
		if v.DirectivePacketID == "" {
			r.add("directive_packet_id", "must not be empty")
		}
		switch v.ResultStatus {
		case vocab.ResultSuccess, vocab.ResultFailure, vocab.ResultCancelled:
		default:
			r.add("result_status", fmt.Sprintf("unrecognized value %q", v.ResultStatus))
		}
		if v.ResultStatus == vocab.ResultFailure && v.ErrorDetails == nil {
			r.add("error_details", "required when result_status is FAILURE")
		}
		if v.ResultStatus != vocab.ResultFailure && v.ErrorDetails != nil {
			r.add("error_details", "must be absent unless result_status is FAILURE")
		}

	case packet.EscalationPacket:
		if v.EscalationTrigger == "" {
			r.add("escalation_trigger", "must not be empty")
		}
		if len(v.TopOptions) < 2 || len(v.TopOptions) > 3 {
			r.add("top_options", "must contain 2 or 3 options")
		}
		for i, opt := range v.TopOptions {
			fieldPath := fmt.Sprintf("top_options[%d]", i)
			if opt.OptionID == "" {
				r.add(fieldPath+".option_id", "must not be empty")
			}
			if opt.Description == "" {
				r.add(fieldPath+".description", "must not be empty")
			}
		}
		if len(v.EvidenceGaps) == 0 {
			r.add("evidence_gaps", "must contain at least one gap")
		}
		if v.RecommendedNextStep == "" {
			r.add("recommended_next_step", "must not be empty")
		}

	case packet.IntegrityAlertPacket:
		if v.AlertType == "" {
			r.add("alert_type", "must not be empty")
		}
		switch v.Severity {
		case vocab.SeverityInfo, vocab.SeverityWarning, vocab.SeverityHigh, vocab.SeverityCritical, vocab.SeverityClear:
		default:
			r.add("severity", fmt.Sprintf("unrecognized value %q", v.Severity))
		}
		if v.Message == "" {
			r.add("message", "must not be empty")
		}

	default:
		r.add("payload", fmt.Sprintf("unrecognized packet implementation %T", v))
	}
}
