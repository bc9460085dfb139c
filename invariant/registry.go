package invariant

import (
	"github.com/Tpanarchist/omen/packet"
)

// Registry holds the twelve rules in their canonical order. Evaluation
// never stops at the first Error — every rule runs, matching the
// validator's never-short-circuit contract (spec.md §7).
type Registry struct {
	rules []Rule
}

// DefaultRegistry returns a Registry with all twelve INV rules
// registered in order.
func DefaultRegistry() *Registry {
	return &Registry{
		rules: []Rule{
			INV001MCPCompleteness,
			INV002SubparNeverActs,
			INV003HighStakesSafety,
			INV004NoLiveTruthWithoutEvidence,
			INV005BudgetOverrunApproval,
			INV006ArbitrationSequence,
			INV007WriteTokenScope,
			INV008VerificationLoopClosure,
			INV009EscalationStructure,
			INV010DegradedToolsPolicy,
			INV011TaskClosure,
			INV012StakesConsistency,
		},
	}
}

// EvaluateAll runs every registered rule and returns every non-Pass
// verdict.
func (r *Registry) EvaluateAll(p packet.Packet, lv LedgerView) []Verdict {
	var verdicts []Verdict
	for _, rule := range r.rules {
		v := rule(p, lv)
		if _, ok := v.(PassVerdict); !ok {
			verdicts = append(verdicts, v)
		}
	}
	return verdicts
}

// HasError reports whether any verdict in the slice rejects the packet.
func HasError(verdicts []Verdict) bool {
	for _, v := range verdicts {
		if IsError(v) {
			return true
		}
	}
	return false
}
