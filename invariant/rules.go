package invariant

import (
	"strings"
	"time"

	"github.com/Tpanarchist/omen/packet"
	"github.com/Tpanarchist/omen/vocab"
)

// Rule evaluates one cross-policy invariant over a candidate packet and
// the ledger's current view.
type Rule func(p packet.Packet, lv LedgerView) Verdict

var tradeoffPolicies = []string{"safety-first", "risk-adjusted", "min-regret", "expected-value"}

// RealtimeFreshnessWindowSeconds and OperationalFreshnessWindowSeconds
// bound how stale evidence may be for INV-004's two checked freshness
// classes. Package-level so config.Load can override the defaults
// per-deployment (spec.md §9's note that these windows are
// configurable, not pinned in the source material) without every
// caller threading a window value through Rule's fixed signature.
var (
	RealtimeFreshnessWindowSeconds    int64 = 60
	OperationalFreshnessWindowSeconds int64 = 3600
)

// SkipTimestampChecks disables every time.Now()-relative check in this
// file (INV-004's freshness window, INV-007's token-expiry check) for
// callers replaying a fixture episode whose timestamps were frozen at
// authoring time rather than "now" (the reference CLI's
// --no-timestamp-checks flag, spec.md §6). Off by default; every
// runtime ledger leaves this false.
var SkipTimestampChecks bool

// INV001MCPCompleteness: every consequential packet carries a complete
// envelope, and evidence satisfies the exclusive-or rule.
func INV001MCPCompleteness(p packet.Packet, lv LedgerView) Verdict {
	if !p.Kind().Consequential() {
		return PassVerdict{}
	}
	env, ok := p.GetEnvelope()
	if !ok {
		return ErrorVerdict{"INV-001", "consequential packet has no MCP envelope"}
	}
	hasRefs := len(env.Evidence.Refs) > 0
	hasReason := env.Evidence.AbsentReason != ""
	if hasRefs == hasReason {
		return ErrorVerdict{"INV-001", "evidence_refs and evidence_absent_reason must be mutually exclusive"}
	}
	return PassVerdict{}
}

// INV002SubparNeverActs: a SUBPAR decision may never choose ACT.
func INV002SubparNeverActs(p packet.Packet, lv LedgerView) Verdict {
	dp, ok := p.(packet.DecisionPacket)
	if !ok {
		return PassVerdict{}
	}
	if dp.Envelope.Quality.Tier == vocab.TierSubpar && dp.DecisionOutcome == vocab.Act {
		return ErrorVerdict{"INV-002", "a SUBPAR-tier decision cannot choose ACT"}
	}
	return PassVerdict{}
}

// INV003HighStakesSafety: HIGH/CRITICAL decisions must verify or
// escalate, unless acting at SUPERB tier with every load-bearing
// assumption verified.
func INV003HighStakesSafety(p packet.Packet, lv LedgerView) Verdict {
	dp, ok := p.(packet.DecisionPacket)
	if !ok {
		return PassVerdict{}
	}
	level := dp.Envelope.Stakes.StakesLevel
	if level != vocab.StakeHigh && level != vocab.StakeCritical {
		return PassVerdict{}
	}
	switch dp.DecisionOutcome {
	case vocab.VerifyFirst, vocab.Escalate:
		return PassVerdict{}
	case vocab.Act:
		if dp.Envelope.Quality.Tier != vocab.TierSuperb {
			return ErrorVerdict{"INV-003", "HIGH/CRITICAL decision acting must be SUPERB tier"}
		}
		for _, a := range dp.LoadBearingAssumptions {
			if !a.Verified {
				return ErrorVerdict{"INV-003", "HIGH/CRITICAL decision acting has an unverified load-bearing assumption"}
			}
		}
		return PassVerdict{}
	default:
		return ErrorVerdict{"INV-003", "HIGH/CRITICAL decision must VERIFY_FIRST, ESCALATE, or ACT at SUPERB with verified assumptions"}
	}
}

// INV004NoLiveTruthWithoutEvidence: INFERRED/HYPOTHESIZED/UNKNOWN
// beliefs backing a REALTIME/OPERATIONAL claim need fresh, first-party
// evidence.
func INV004NoLiveTruthWithoutEvidence(p packet.Packet, lv LedgerView) Verdict {
	env, ok := p.GetEnvelope()
	if !ok {
		return PassVerdict{}
	}
	if SkipTimestampChecks {
		return PassVerdict{}
	}
	epi := env.Epistemics
	if !epi.Status.NeedsFreshEvidence() || !epi.FreshnessClass.RequiresFreshnessCheck() {
		return PassVerdict{}
	}
	window := OperationalFreshnessWindowSeconds
	if epi.FreshnessClass == vocab.FreshnessRealtime {
		window = RealtimeFreshnessWindowSeconds
	}
	if epi.StaleIfOlderThanSeconds != nil {
		window = *epi.StaleIfOlderThanSeconds
	}
	now := time.Now().Unix()
	for _, ref := range env.Evidence.Refs {
		if !ref.RefType.SatisfiesFreshnessEvidence() {
			continue
		}
		if now-ref.Timestamp <= window {
			return PassVerdict{}
		}
	}
	return ErrorVerdict{"INV-004", "live-truth claim lacks fresh tool_output or user_observation evidence"}
}

// INV005BudgetOverrunApproval: a consequential packet after a budget
// overrun needs a recorded approval first. The Escalation that grants
// the approval is itself exempt — it is the approval, not a packet that
// needs one.
func INV005BudgetOverrunApproval(p packet.Packet, lv LedgerView) Verdict {
	if ep, ok := p.(packet.EscalationPacket); ok && ep.EscalationTrigger == "budget_insufficient" {
		return PassVerdict{}
	}
	if !p.Kind().Consequential() {
		return PassVerdict{}
	}
	if !lv.BudgetUsage().Exceeded() {
		return PassVerdict{}
	}
	if lv.BudgetOverrunApproved() {
		return PassVerdict{}
	}
	return ErrorVerdict{"INV-005", "budget exceeded without a recorded Escalation(budget_insufficient) or Integrity override"}
}

// INV006ArbitrationSequence: a decision following a recorded conflict
// must pass both gates and cite a named tradeoff policy.
func INV006ArbitrationSequence(p packet.Packet, lv LedgerView) Verdict {
	dp, ok := p.(packet.DecisionPacket)
	if !ok || !lv.HasConflictPending() {
		return PassVerdict{}
	}
	if !dp.ConstraintsSatisfied.ConstitutionalCheck || !dp.ConstraintsSatisfied.BudgetCheck {
		return ErrorVerdict{"INV-006", "decision following a recorded conflict failed constitutional_check or budget_check"}
	}
	summary := strings.ToLower(dp.DecisionSummary)
	for _, policy := range tradeoffPolicies {
		if strings.Contains(summary, policy) {
			return PassVerdict{}
		}
	}
	return WarningVerdict{"INV-006", "decision_summary does not cite a named tradeoff policy"}
}

// INV007WriteTokenScope: a WRITE/MIXED directive needs an active token
// whose scope covers it; usage_count is incremented by the caller
// (ledger.apply), not here — rules are read-only.
func INV007WriteTokenScope(p packet.Packet, lv LedgerView) Verdict {
	td, ok := p.(packet.TaskDirectivePacket)
	if !ok || !td.ToolSafetyClass.RequiresAuthorization() {
		return PassVerdict{}
	}
	tok, found := lv.ActiveToken(td.AuthorizationTokenID)
	if !found {
		return ErrorVerdict{"INV-007", "no active token for authorization_token_id"}
	}
	if tok.Revoked {
		return ErrorVerdict{"INV-007", "token is revoked"}
	}
	if !SkipTimestampChecks && tok.Expiry != 0 && time.Now().Unix() > tok.Expiry {
		return ErrorVerdict{"INV-007", "token has expired"}
	}
	if tok.UsageCount >= tok.MaxUsageCount {
		return ErrorVerdict{"INV-007", "token usage_count has reached max_usage_count"}
	}
	for _, id := range tok.AuthorizedScope.ToolIDs {
		if id == td.ToolID {
			return PassVerdict{}
		}
	}
	return ErrorVerdict{"INV-007", "token scope does not cover the directive's tool_id"}
}

// INV008VerificationLoopClosure: when tools_state=tools_ok, closing the
// verification loop requires at least one SUCCESS TaskResult; fsm
// enforces the plan/directive/observation prerequisites, this rule
// restates the tools_state-conditional refinement spec.md §4.2 leaves
// to the fuller episode context.
func INV008VerificationLoopClosure(p packet.Packet, lv LedgerView) Verdict {
	bu, ok := p.(packet.BeliefUpdatePacket)
	if !ok || bu.UpdateType != "verification_closed" {
		return PassVerdict{}
	}
	if lv.ToolsState() == vocab.ToolsOK && !lv.HasSuccessfulResultSince() {
		return ErrorVerdict{"INV-008", "verification loop cannot close with tools_ok and no SUCCESS TaskResult"}
	}
	return PassVerdict{}
}

// INV009EscalationStructure: escalation cardinality and completeness.
func INV009EscalationStructure(p packet.Packet, lv LedgerView) Verdict {
	ep, ok := p.(packet.EscalationPacket)
	if !ok {
		return PassVerdict{}
	}
	if len(ep.TopOptions) < 2 || len(ep.TopOptions) > 3 {
		return ErrorVerdict{"INV-009", "top_options must contain 2 or 3 entries"}
	}
	for _, opt := range ep.TopOptions {
		if opt.OptionID == "" || opt.Description == "" {
			return ErrorVerdict{"INV-009", "every top_option needs an option_id and description"}
		}
	}
	if len(ep.EvidenceGaps) == 0 {
		return ErrorVerdict{"INV-009", "evidence_gaps must be non-empty"}
	}
	if ep.RecommendedNextStep == "" {
		return ErrorVerdict{"INV-009", "recommended_next_step must be present"}
	}
	return PassVerdict{}
}

// INV010DegradedToolsPolicy: acting is forbidden with tools_down at
// HIGH/CRITICAL stakes; tools_partial at MEDIUM stakes should carry
// HIGH uncertainty.
func INV010DegradedToolsPolicy(p packet.Packet, lv LedgerView) Verdict {
	dp, ok := p.(packet.DecisionPacket)
	if !ok {
		return PassVerdict{}
	}
	stakes := dp.Envelope.Stakes
	toolsState := dp.Envelope.Routing.ToolsState

	if toolsState == vocab.ToolsDown &&
		(stakes.StakesLevel == vocab.StakeHigh || stakes.StakesLevel == vocab.StakeCritical) &&
		dp.DecisionOutcome == vocab.Act {
		return ErrorVerdict{"INV-010", "tools_down forbids ACT at HIGH/CRITICAL stakes"}
	}
	if toolsState == vocab.ToolsPartial && stakes.StakesLevel == vocab.StakeMedium && stakes.Uncertainty != vocab.AxisHigh {
		return WarningVerdict{"INV-010", "tools_partial at MEDIUM stakes should carry HIGH uncertainty"}
	}
	return PassVerdict{}
}

// INV011TaskClosure: a TaskResult must match a directive the ledger
// actually has open.
func INV011TaskClosure(p packet.Packet, lv LedgerView) Verdict {
	tr, ok := p.(packet.TaskResultPacket)
	if !ok {
		return PassVerdict{}
	}
	if _, found := lv.OpenDirective(tr.TaskID); !found {
		return ErrorVerdict{"INV-011", "TaskResult references a task_id with no open directive"}
	}
	return PassVerdict{}
}

// INV012StakesConsistency: the computed stakes_level must be supportable
// by its four component axes.
func INV012StakesConsistency(p packet.Packet, lv LedgerView) Verdict {
	env, ok := p.GetEnvelope()
	if !ok {
		return PassVerdict{}
	}
	s := env.Stakes
	axes := []vocab.StakeAxisValue{s.Impact, s.Irreversibility, s.Uncertainty, s.Adversariality}
	countAtLeast := func(v vocab.StakeAxisValue) int {
		n := 0
		for _, a := range axes {
			if axisRank(a) >= axisRank(v) {
				n++
			}
		}
		return n
	}
	hasCritical := countAtLeast(vocab.AxisCritical) > 0
	irreversibleCombo := s.Impact == vocab.AxisHigh && s.Irreversibility == vocab.AxisIrreversible

	ok12 := true
	switch s.StakesLevel {
	case vocab.StakeCritical:
		ok12 = hasCritical || irreversibleCombo
	case vocab.StakeHigh:
		ok12 = countAtLeast(vocab.AxisHigh) >= 2 || hasCritical
	case vocab.StakeMedium:
		ok12 = countAtLeast(vocab.AxisMedium) >= 1
	case vocab.StakeLow:
		ok12 = countAtLeast(vocab.AxisHigh) == 0 && !hasCritical
	}
	if !ok12 {
		return WarningVerdict{"INV-012", "stakes_level is not supported by its four component axes"}
	}
	return PassVerdict{}
}

// axisRank orders stake axis values for ">=" comparisons; irreversible
// ranks alongside critical since it only ever appears on the
// irreversibility axis.
func axisRank(v vocab.StakeAxisValue) int {
	switch v {
	case vocab.AxisLow:
		return 1
	case vocab.AxisMedium:
		return 2
	case vocab.AxisHigh:
		return 3
	case vocab.AxisCritical, vocab.AxisIrreversible:
		return 4
	default:
		return 0
	}
}
