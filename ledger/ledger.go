// Package ledger implements the EpisodeLedger: the single mutable
// object threaded through the three validators (schema, fsm, invariant)
// and updated on every successfully admitted packet. Grounded on
// gomind's core.MemoryStore (mutex-guarded map plus an injected logger)
// generalized from a cache's hit/miss
// bookkeeping to a protocol episode's token/directive/evidence
// bookkeeping.
package ledger

import (
	"sync"
	"time"

	"github.com/Tpanarchist/omen/core"
	"github.com/Tpanarchist/omen/fsm"
	"github.com/Tpanarchist/omen/invariant"
	"github.com/Tpanarchist/omen/packet"
	"github.com/Tpanarchist/omen/schema"
	"github.com/Tpanarchist/omen/vocab"
)

// Budgets are the fixed ceilings an episode agrees to at creation time.
type Budgets struct {
	TokenBudget       int64
	ToolCallBudget    int64
	TimeBudgetSeconds int64
	RiskMax           float64
}

// Assumption tracks a load-bearing assumption's verification state.
type Assumption struct {
	AssumptionID        string
	Description         string
	Verified            bool
	VerificationPacketID string
}

// EvidenceEntry is one indexed evidence reference with its admission time.
type EvidenceEntry struct {
	Ref       packet.EvidenceRef
	RecordedAt time.Time
}

const recentPacketCap = 256

// Ledger is the per-correlation_id authoritative episode state.
type Ledger struct {
	mu sync.RWMutex

	correlationID string
	campaignID    string

	fsm        *fsm.EpisodeFSM
	invariants *invariant.Registry
	logger     core.Logger

	budgets    Budgets
	tokensUsed int64
	toolCalls  int64
	timeUsed   int64
	riskSpent  float64

	budgetOverrunApproved bool
	conflictPending       bool
	toolsState            vocab.ToolsState
	successSinceVerify    bool

	activeTokens   map[string]packet.ToolAuthorizationTokenPacket
	openDirectives map[string]invariant.OpenDirectiveRef

	evidenceIndex  []EvidenceEntry
	assumptions    []Assumption
	contradictions []string
	recentPackets  []packet.Packet

	frozen bool
}

// Create instantiates a fresh ledger for correlationID in S0_IDLE.
func Create(correlationID, campaignID string, budgets Budgets, logger core.Logger) *Ledger {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &Ledger{
		correlationID:  correlationID,
		campaignID:     campaignID,
		fsm:            fsm.New(correlationID),
		invariants:     invariant.DefaultRegistry(),
		logger:         logger,
		budgets:        budgets,
		toolsState:     vocab.ToolsOK,
		activeTokens:   make(map[string]packet.ToolAuthorizationTokenPacket),
		openDirectives: make(map[string]invariant.OpenDirectiveRef),
	}
}

// CorrelationID returns the episode identity this ledger tracks.
func (l *Ledger) CorrelationID() string { return l.correlationID }

// CurrentState returns the FSM's current state.
func (l *Ledger) CurrentState() vocab.FSMState { return l.fsm.State() }

// Apply runs schema, then FSM, then invariants against p in that order
// (spec.md §3/§4.4), and on success mutates the ledger's bookkeeping.
// A failure at any layer leaves the ledger unchanged.
func (l *Ledger) Apply(p packet.Packet) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.frozen {
		return core.NewFrameworkError("ledger.Apply", "episode_fatal", core.ErrEpisodeFatal).WithID(l.correlationID)
	}

	if result := schema.Validate(p); !result.Ok() {
		l.logger.Warn("packet rejected by schema validator", map[string]interface{}{
			"correlation_id": l.correlationID, "packet_kind": string(p.Kind()),
			"diagnostics": len(result.Diagnostics),
		})
		return core.NewFrameworkError("ledger.Apply", "schema_violation", core.ErrSchemaViolation).WithID(l.correlationID)
	}

	if _, err := l.fsm.Transition(p); err != nil {
		l.logger.Warn("packet rejected by fsm validator", map[string]interface{}{
			"correlation_id": l.correlationID, "packet_kind": string(p.Kind()), "error": err.Error(),
		})
		return err
	}

	verdicts := l.invariants.EvaluateAll(p, l)
	if invariant.HasError(verdicts) {
		l.logger.Warn("packet rejected by invariant validator", map[string]interface{}{
			"correlation_id": l.correlationID, "packet_kind": string(p.Kind()), "verdicts": len(verdicts),
		})
		return core.NewFrameworkError("ledger.Apply", "invariant_violation", core.ErrInvariantViolation).WithID(l.correlationID)
	}
	for _, v := range verdicts {
		if w, ok := v.(invariant.WarningVerdict); ok {
			l.logger.Info("invariant warning admitted", map[string]interface{}{
				"correlation_id": l.correlationID, "code": w.Code, "message": w.Message,
			})
		}
	}

	l.recordAdmission(p)
	return nil
}

func (l *Ledger) recordAdmission(p packet.Packet) {
	l.recentPackets = append(l.recentPackets, p)
	if len(l.recentPackets) > recentPacketCap {
		l.recentPackets = l.recentPackets[len(l.recentPackets)-recentPacketCap:]
	}

	switch v := p.(type) {
	case packet.ToolAuthorizationTokenPacket:
		l.activeTokens[v.TokenID] = v

	case packet.TaskDirectivePacket:
		l.toolCalls++
		entry := invariant.OpenDirectiveRef{DirectivePacketID: v.Header.PacketID}
		if v.TimeoutSeconds != nil {
			entry.TimeoutSeconds = *v.TimeoutSeconds
		}
		l.openDirectives[v.TaskID] = entry
		if v.ToolSafetyClass.RequiresAuthorization() {
			tok := l.activeTokens[v.AuthorizationTokenID]
			tok.UsageCount++
			l.activeTokens[v.AuthorizationTokenID] = tok
		}

	case packet.TaskResultPacket:
		delete(l.openDirectives, v.TaskID)
		if v.ResultStatus == vocab.ResultSuccess {
			l.successSinceVerify = true
		}
		if v.ExecutionMetadata != nil {
			l.timeUsed += v.ExecutionMetadata.DurationMS / 1000
		}
		if v.EvidenceRef != nil {
			l.evidenceIndex = append(l.evidenceIndex, EvidenceEntry{Ref: *v.EvidenceRef, RecordedAt: time.Now()})
		}

	case packet.ObservationPacket:
		// Observations are evidence-adjacent but carry no EvidenceRef of
		// their own; nothing further to index.

	case packet.BeliefUpdatePacket:
		if v.ContradictionDetails != nil {
			l.contradictions = append(l.contradictions, v.ContradictionDetails.ConflictingBeliefKey)
		}
		if v.UpdateType == "verification_closed" {
			l.successSinceVerify = false // reset for the next verify cycle
		}

	case packet.DecisionPacket:
		l.toolsState = v.Envelope.Routing.ToolsState
		for _, a := range v.LoadBearingAssumptions {
			l.assumptions = append(l.assumptions, Assumption{
				AssumptionID: a.AssumptionID, Description: a.Description, Verified: a.Verified,
			})
		}
		if l.budgetOverrunApproved {
			l.budgetOverrunApproved = false // the one-time approval is now spent
		}

	case packet.EscalationPacket:
		if v.EscalationTrigger == "budget_insufficient" {
			l.budgetOverrunApproved = true
		}
		l.conflictPending = false

	case packet.IntegrityAlertPacket:
		if v.Severity == vocab.SeverityHigh || v.Severity == vocab.SeverityCritical {
			l.budgetOverrunApproved = true
		}
	}
}

// RecordUsage adds resource deltas the runner observed from the layer
// invocation itself (token counts, risk), which packets do not carry
// directly.
func (l *Ledger) RecordUsage(tokens int64, risk float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tokensUsed += tokens
	l.riskSpent += risk
}

// MarkConflictPending flags that a policy conflict has been recorded,
// requiring the next Decision to satisfy INV-006's arbitration sequence.
func (l *Ledger) MarkConflictPending() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.conflictPending = true
}

// RevokeToken marks tokenID revoked, e.g. on integrity demotion.
func (l *Ledger) RevokeToken(tokenID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if tok, ok := l.activeTokens[tokenID]; ok {
		tok.Revoked = true
		l.activeTokens[tokenID] = tok
	}
}

// ActiveTokenIDs returns every token id currently tracked as active
// (revoked or not), for callers that need to sweep all of them, e.g.
// the integrity overlay's constitutional-veto path.
func (l *Ledger) ActiveTokenIDs() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ids := make([]string, 0, len(l.activeTokens))
	for id := range l.activeTokens {
		ids = append(ids, id)
	}
	return ids
}

// Freeze marks the episode terminal; no further packets are admitted.
func (l *Ledger) Freeze() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.frozen = true
}

// Frozen reports whether the episode has reached a terminal state.
func (l *Ledger) Frozen() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.frozen
}

// --- invariant.LedgerView ---

func (l *Ledger) ActiveToken(tokenID string) (packet.ToolAuthorizationTokenPacket, bool) {
	t, ok := l.activeTokens[tokenID]
	return t, ok
}

func (l *Ledger) BudgetUsage() invariant.BudgetUsage {
	return invariant.BudgetUsage{
		TokensUsed: l.tokensUsed, TokenBudget: l.budgets.TokenBudget,
		ToolCallsUsed: l.toolCalls, ToolCallBudget: l.budgets.ToolCallBudget,
		TimeUsedSeconds: l.timeUsed, TimeBudgetSeconds: l.budgets.TimeBudgetSeconds,
		RiskSpent: l.riskSpent, RiskMax: l.budgets.RiskMax,
	}
}

func (l *Ledger) BudgetOverrunApproved() bool { return l.budgetOverrunApproved }
func (l *Ledger) HasConflictPending() bool     { return l.conflictPending }
func (l *Ledger) ToolsState() vocab.ToolsState { return l.toolsState }
func (l *Ledger) HasSuccessfulResultSince() bool { return l.successSinceVerify }

func (l *Ledger) OpenDirective(taskID string) (invariant.OpenDirectiveRef, bool) {
	d, ok := l.openDirectives[taskID]
	return d, ok
}

// Snapshot is an immutable point-in-time view of the ledger for
// persistence (store package) or reporting.
type Snapshot struct {
	CorrelationID  string
	CampaignID     string
	CurrentState   vocab.FSMState
	Budgets        Budgets
	TokensUsed     int64
	ToolCallsUsed  int64
	TimeUsedSeconds int64
	RiskSpent      float64
	OpenDirectives int
	ActiveTokens   int
	Contradictions int
	RecentPackets  int
	Frozen         bool
}

// Snapshot returns an immutable copy of the ledger's summary state.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return Snapshot{
		CorrelationID: l.correlationID, CampaignID: l.campaignID,
		CurrentState: l.fsm.State(), Budgets: l.budgets,
		TokensUsed: l.tokensUsed, ToolCallsUsed: l.toolCalls, TimeUsedSeconds: l.timeUsed,
		RiskSpent: l.riskSpent, OpenDirectives: len(l.openDirectives),
		ActiveTokens: len(l.activeTokens), Contradictions: len(l.contradictions),
		RecentPackets: len(l.recentPackets), Frozen: l.frozen,
	}
}
