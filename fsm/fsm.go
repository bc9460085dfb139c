// Package fsm implements the protocol's stateful per-episode validator:
// one EpisodeFSM per correlation_id, advancing through the ten admitted
// states as packets are validated. Grounded on gomind's
// orchestration.WorkflowDAG (mutex-guarded node map, explicit status
// enum) generalized from a dependency DAG to a transition table keyed by
// (state, packet kind[, payload discriminant]).
package fsm

import (
	"fmt"
	"sync"
	"time"

	"github.com/Tpanarchist/omen/core"
	"github.com/Tpanarchist/omen/packet"
	"github.com/Tpanarchist/omen/vocab"
)

// OpenDirective is a TaskDirective awaiting its matching TaskResult.
type OpenDirective struct {
	DirectivePacketID string
	CreatedAt         time.Time
	TimeoutSeconds    int64
	SafetyClass       vocab.ToolSafetyClass
}

// verifyLoopProgress tracks what S4_VERIFY has seen so far, reset every
// time the FSM enters that state.
type verifyLoopProgress struct {
	sawPlan            bool
	sawReadDirective   bool
	sawSuccessResult   bool
	sawObservedFact    bool
	sawClosingBelief   bool
}

// EpisodeFSM is the per-correlation_id state machine. All methods are
// safe for concurrent use, though the runner only ever drives one
// episode's FSM from a single goroutine at a time.
type EpisodeFSM struct {
	mu            sync.RWMutex
	correlationID string
	state         vocab.FSMState

	hasBeliefUpdate     bool
	lastDecisionOutcome vocab.DecisionOutcome
	hasDecision         bool

	verify verifyLoopProgress

	tokens         map[string]*packet.ToolAuthorizationTokenPacket
	openDirectives map[string]*OpenDirective
}

// New creates an EpisodeFSM in S0_IDLE for a fresh correlation_id.
func New(correlationID string) *EpisodeFSM {
	return &EpisodeFSM{
		correlationID:  correlationID,
		state:          vocab.S0Idle,
		tokens:         make(map[string]*packet.ToolAuthorizationTokenPacket),
		openDirectives: make(map[string]*OpenDirective),
	}
}

// State returns the current state.
func (f *EpisodeFSM) State() vocab.FSMState {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.state
}

func fsmErr(correlationID, msg string) error {
	return core.NewFrameworkError("fsm.Transition", "fsm_violation",
		fmt.Errorf("%w: %s", core.ErrFSMViolation, msg)).WithID(correlationID)
}

// Transition validates p against the current state and, if legal,
// advances the FSM and returns the new state. On an illegal transition
// the FSM is left unchanged and an error wrapping core.ErrFSMViolation
// is returned.
func (f *EpisodeFSM) Transition(p packet.Packet) (vocab.FSMState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	// Integrity alerts can always be admitted; CRITICAL forces safe mode
	// from any state, INFO/CLEAR lifts a safe-mode episode back to review.
	if alert, ok := p.(packet.IntegrityAlertPacket); ok {
		return f.admitIntegrityAlert(alert), nil
	}

	if f.state == vocab.S9SafeMode {
		if _, ok := p.(packet.BeliefUpdatePacket); ok {
			return f.state, nil // logging only, state unchanged
		}
		return f.state, fsmErr(f.correlationID, "only IntegrityAlert and BeliefUpdate packets are admitted in S9_SAFEMODE")
	}

	next, err := f.legalNext(p)
	if err != nil {
		return f.state, err
	}

	f.recordSideEffects(p, next)
	f.state = next
	return f.state, nil
}

func (f *EpisodeFSM) admitIntegrityAlert(alert packet.IntegrityAlertPacket) vocab.FSMState {
	switch alert.Severity {
	case vocab.SeverityCritical:
		f.state = vocab.S9SafeMode
	case vocab.SeverityInfo, vocab.SeverityClear:
		if f.state == vocab.S9SafeMode {
			f.state = vocab.S7Review
		}
	}
	return f.state
}

// decisionOutcomeNext dispatches a Decision packet's DecisionOutcome to
// the state it routes to (spec.md §4.2): VERIFY_FIRST -> S4_VERIFY,
// ACT -> S5_AUTHORIZE, ESCALATE -> S8_ESCALATED, DEFER/CANCEL ->
// S7_REVIEW. Shared by the S2_MODEL case (the one real Decision every
// episode makes) and the S3_DECIDE case (the Decision submitted after
// ResumeFromEscalation moves an escalated episode back to S3_DECIDE).
func (f *EpisodeFSM) decisionOutcomeNext(dp packet.DecisionPacket) (vocab.FSMState, error) {
	if !f.hasBeliefUpdate {
		return "", fsmErr(f.correlationID, "no-decision-without-model: at least one BeliefUpdate must precede a Decision")
	}
	switch dp.DecisionOutcome {
	case vocab.VerifyFirst:
		return vocab.S4Verify, nil
	case vocab.Act:
		// Whether the following TaskDirective needs S5_AUTHORIZE's
		// token step is resolved when it actually arrives, since the
		// Decision itself carries no tool safety class; READ
		// directives pass S5_AUTHORIZE straight through (see S5's
		// TaskDirective case).
		return vocab.S5Authorize, nil
	case vocab.Escalate:
		return vocab.S8Escalated, nil
	case vocab.Defer, vocab.Cancel:
		return vocab.S7Review, nil
	}
	return "", fsmErr(f.correlationID, fmt.Sprintf("no legal transition for decision_outcome %q", dp.DecisionOutcome))
}

func (f *EpisodeFSM) legalNext(p packet.Packet) (vocab.FSMState, error) {
	kind := p.Kind()

	switch f.state {
	case vocab.S0Idle:
		if kind == vocab.Observation {
			return vocab.S1Sense, nil
		}

	case vocab.S1Sense:
		switch kind {
		case vocab.Observation:
			return vocab.S1Sense, nil
		case vocab.BeliefUpdate:
			return vocab.S2Model, nil
		}

	case vocab.S2Model:
		switch kind {
		case vocab.BeliefUpdate:
			return vocab.S2Model, nil
		case vocab.Decision:
			dp, ok := p.(packet.DecisionPacket)
			if !ok {
				break
			}
			return f.decisionOutcomeNext(dp)
		}

	case vocab.S3Decide:
		// Reached only via ResumeFromEscalation (S8_ESCALATED ->
		// S3_DECIDE); the resumed Decision is dispatched the same way
		// as the one real Decision every other episode makes from
		// S2_MODEL.
		if kind != vocab.Decision {
			break
		}
		dp, ok := p.(packet.DecisionPacket)
		if !ok {
			break
		}
		return f.decisionOutcomeNext(dp)

	case vocab.S4Verify:
		switch kind {
		case vocab.VerificationPlan:
			f.verify.sawPlan = true
			return vocab.S4Verify, nil
		case vocab.TaskDirective:
			td, _ := p.(packet.TaskDirectivePacket)
			if td.ToolSafetyClass != vocab.SafetyRead && td.ToolSafetyClass != "" {
				return "", fsmErr(f.correlationID, "S4_VERIFY only admits READ TaskDirectives")
			}
			f.verify.sawReadDirective = true
			return vocab.S4Verify, nil
		case vocab.TaskResult:
			tr, _ := p.(packet.TaskResultPacket)
			if tr.ResultStatus == vocab.ResultSuccess {
				f.verify.sawSuccessResult = true
			}
			return vocab.S4Verify, nil
		case vocab.Observation:
			f.verify.sawObservedFact = true
			return vocab.S4Verify, nil
		case vocab.BeliefUpdate:
			if !f.verifyLoopCanClose() {
				return "", fsmErr(f.correlationID, "verification-loop-closure: plan, a READ directive, and an Observation are required before leaving S4_VERIFY")
			}
			f.verify.sawClosingBelief = true
			return vocab.S2Model, nil
		}

	case vocab.S5Authorize:
		switch kind {
		case vocab.ToolAuthorizationToken:
			tok, _ := p.(packet.ToolAuthorizationTokenPacket)
			f.tokens[tok.TokenID] = &tok
			return vocab.S5Authorize, nil
		case vocab.TaskDirective:
			td, _ := p.(packet.TaskDirectivePacket)
			if td.ToolSafetyClass.RequiresAuthorization() {
				if err := f.checkAndConsumeToken(td); err != nil {
					return "", err
				}
			}
			return vocab.S6Execute, nil
		}

	case vocab.S6Execute:
		switch kind {
		case vocab.TaskDirective:
			td, _ := p.(packet.TaskDirectivePacket)
			if td.ToolSafetyClass.RequiresAuthorization() {
				if err := f.checkAndConsumeToken(td); err != nil {
					return "", err
				}
			}
			return vocab.S6Execute, nil
		case vocab.TaskResult:
			return vocab.S6Execute, nil
		case vocab.Observation:
			return vocab.S6Execute, nil
		case vocab.BeliefUpdate:
			bu, _ := p.(packet.BeliefUpdatePacket)
			if bu.UpdateType == "task_complete" {
				return vocab.S7Review, nil
			}
			return vocab.S2Model, nil
		}

	case vocab.S7Review:
		switch kind {
		case vocab.BeliefUpdate:
			return vocab.S7Review, nil
		case vocab.Observation:
			// A new sensing cycle reopens the episode loop.
			return vocab.S1Sense, nil
		}

	case vocab.S8Escalated:
		if kind == vocab.Escalation {
			return vocab.S8Escalated, nil
		}
		// A non-packet "user input" event re-enters S3_DECIDE; modeled
		// by the caller invoking ResumeFromEscalation instead of
		// Transition, since it carries no packet.

	case vocab.S9SafeMode:
		// handled above
	}

	return "", fsmErr(f.correlationID, fmt.Sprintf("no legal transition for packet kind %q from state %s", kind, f.state))
}

// ResumeFromEscalation handles the distinguished non-packet "user input"
// northbound-bus event that moves an escalated episode back to S3_DECIDE
// (spec.md §4.2). It is not a packet transition, so it bypasses
// legalNext entirely.
func (f *EpisodeFSM) ResumeFromEscalation() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != vocab.S8Escalated {
		return fsmErr(f.correlationID, "ResumeFromEscalation called outside S8_ESCALATED")
	}
	f.state = vocab.S3Decide
	return nil
}

func (f *EpisodeFSM) verifyLoopCanClose() bool {
	return f.verify.sawPlan && f.verify.sawReadDirective && f.verify.sawObservedFact
}

func (f *EpisodeFSM) checkAndConsumeToken(td packet.TaskDirectivePacket) error {
	tok, ok := f.tokens[td.AuthorizationTokenID]
	if !ok || tok == nil {
		return fsmErr(f.correlationID, "write-requires-authorization: no active token for authorization_token_id")
	}
	if tok.Revoked {
		return fsmErr(f.correlationID, "write-requires-authorization: token is revoked")
	}
	if tok.Expiry != 0 && time.Now().Unix() > tok.Expiry {
		return fsmErr(f.correlationID, "write-requires-authorization: token has expired")
	}
	if tok.UsageCount >= tok.MaxUsageCount {
		return fsmErr(f.correlationID, "write-requires-authorization: token usage_count has reached max_usage_count")
	}
	scopeOK := false
	for _, id := range tok.AuthorizedScope.ToolIDs {
		if id == td.ToolID {
			scopeOK = true
			break
		}
	}
	if !scopeOK {
		return fsmErr(f.correlationID, "write-requires-authorization: token scope does not cover the directive's tool_id")
	}
	tok.UsageCount++
	return nil
}

// recordSideEffects updates cross-step bookkeeping that the transition
// table's legality checks depend on (has-model, last-decision-outcome,
// open directives, verify-loop reset).
func (f *EpisodeFSM) recordSideEffects(p packet.Packet, next vocab.FSMState) {
	switch v := p.(type) {
	case packet.BeliefUpdatePacket:
		f.hasBeliefUpdate = true
	case packet.DecisionPacket:
		f.hasDecision = true
		f.lastDecisionOutcome = v.DecisionOutcome
	case packet.TaskDirectivePacket:
		f.openDirectives[v.TaskID] = &OpenDirective{
			DirectivePacketID: v.Header.PacketID,
			CreatedAt:         v.Header.CreatedAt,
			SafetyClass:       v.ToolSafetyClass,
		}
		if v.TimeoutSeconds != nil {
			f.openDirectives[v.TaskID].TimeoutSeconds = *v.TimeoutSeconds
		}
	case packet.TaskResultPacket:
		delete(f.openDirectives, v.TaskID)
	}

	if next == vocab.S4Verify && f.state != vocab.S4Verify {
		f.verify = verifyLoopProgress{}
	}
}

// OpenDirectives returns a snapshot of directives awaiting a TaskResult,
// for the runner's timeout sweep.
func (f *EpisodeFSM) OpenDirectives() map[string]OpenDirective {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make(map[string]OpenDirective, len(f.openDirectives))
	for k, v := range f.openDirectives {
		out[k] = *v
	}
	return out
}

// LastDecisionOutcome reports the most recently admitted Decision's
// outcome and whether any Decision has been admitted yet.
func (f *EpisodeFSM) LastDecisionOutcome() (vocab.DecisionOutcome, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.lastDecisionOutcome, f.hasDecision
}
