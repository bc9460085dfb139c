// Package invariant implements the protocol's twelve cross-policy rules
// (INV-001..INV-012), each evaluated over a candidate packet and a view
// of the episode's ledger. Grounded on gomind's RuleBasedPolicy
// (orchestration/hitl_policy.go): a small config/logger-holding struct
// exposing named rule methods, generalized here into a registry of
// free functions so new rules are added without growing one struct's
// method set.
package invariant

// Verdict is a tagged union over the three outcomes a rule can report —
// a sum type rather than a bag of booleans, per the specification's own
// design note. Exactly one of PassVerdict, WarningVerdict, ErrorVerdict
// is ever produced by a rule.
type Verdict interface {
	isVerdict()
	String() string
}

// PassVerdict means the rule found nothing to object to.
type PassVerdict struct{}

func (PassVerdict) isVerdict()     {}
func (PassVerdict) String() string { return "pass" }

// WarningVerdict is logged but does not block admission of the packet.
type WarningVerdict struct {
	Code    string
	Message string
}

func (WarningVerdict) isVerdict()       {}
func (w WarningVerdict) String() string { return w.Code + ": " + w.Message }

// ErrorVerdict rejects the packet.
type ErrorVerdict struct {
	Code    string
	Message string
}

func (ErrorVerdict) isVerdict()       {}
func (e ErrorVerdict) String() string { return e.Code + ": " + e.Message }

// IsError reports whether v rejects the packet.
func IsError(v Verdict) bool {
	_, ok := v.(ErrorVerdict)
	return ok
}

// IsWarning reports whether v is advisory only.
func IsWarning(v Verdict) bool {
	_, ok := v.(WarningVerdict)
	return ok
}
