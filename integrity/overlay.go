// Package integrity implements the protocol's safety overlay: budget
// threshold alerts, token revocation, per-episode safe-mode demotion,
// and the Layer-1 constitutional veto. Grounded on
// resilience.CircuitBreaker's state machine (StateClosed/Open/HalfOpen
// plus a MetricsCollector handle) generalized from a single breaker's
// binary closed/open distinction to the four-level
// NORMAL/CAUTIOUS/RESTRICTED/HALTED containment ladder spec.md §4.9
// describes. Like the breaker, the overlay holds ledger references by
// handle, never by ownership, and is itself a process-wide singleton
// with an explicit Reset for tests, mirroring
// core.GetGlobalMetricsRegistry's registration/reset convention.
package integrity

import (
	"fmt"
	"sync"
	"time"

	"github.com/Tpanarchist/omen/core"
	"github.com/Tpanarchist/omen/invariant"
	"github.com/Tpanarchist/omen/ledger"
	"github.com/Tpanarchist/omen/packet"
	"github.com/Tpanarchist/omen/vocab"
)

// BudgetWarningThreshold and BudgetHighThreshold are the usage
// fractions spec.md §4.9 names for the two alert severities.
const (
	BudgetWarningThreshold = 0.80
	BudgetHighThreshold    = 1.00
)

// safeModeRank orders the containment ladder so Demote/Promote can
// enforce the ladder's direction without a switch per transition.
var safeModeRank = map[vocab.SafeMode]int{
	vocab.SafeModeNormal:     0,
	vocab.SafeModeCautious:   1,
	vocab.SafeModeRestricted: 2,
	vocab.SafeModeHalted:     3,
}

// ledgerEntry is what the overlay tracks per registered episode: a
// handle to its ledger plus the overlay's own containment level, which
// is a finer-grained signal than the ledger's binary S9_SAFEMODE flag.
type ledgerEntry struct {
	led      *ledger.Ledger
	safeMode vocab.SafeMode
}

// Overlay tracks every active episode's ledger handle and safe-mode
// level. The zero value is not usable; construct with New.
type Overlay struct {
	mu      sync.Mutex
	ledgers map[string]*ledgerEntry
	logger  core.Logger
}

// New builds an empty Overlay. Callers that need one registry of
// active episodes shared across components use Global instead.
func New(logger core.Logger) *Overlay {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &Overlay{ledgers: make(map[string]*ledgerEntry), logger: logger}
}

var (
	globalMu      sync.Mutex
	globalOverlay *Overlay
)

// Global returns the process-wide Overlay singleton, creating it with a
// no-op logger on first use.
func Global() *Overlay {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalOverlay == nil {
		globalOverlay = New(nil)
	}
	return globalOverlay
}

// Reset clears every tracked episode, for test isolation between runs
// that share the package-level Global() singleton.
func Reset() {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalOverlay = New(nil)
}

// Register adds led to the overlay's tracked set at NORMAL containment.
// A second Register for the same correlation id resets its containment
// level back to NORMAL.
func (o *Overlay) Register(led *ledger.Ledger) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ledgers[led.CorrelationID()] = &ledgerEntry{led: led, safeMode: vocab.SafeModeNormal}
}

// Unregister drops corrID from the overlay's tracked set, e.g. once an
// episode has reached a terminal review state and is no longer of
// interest to budget/veto monitoring.
func (o *Overlay) Unregister(corrID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.ledgers, corrID)
}

// SafeMode returns corrID's current containment level and whether it is tracked.
func (o *Overlay) SafeMode(corrID string) (vocab.SafeMode, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	e, ok := o.ledgers[corrID]
	if !ok {
		return "", false
	}
	return e.safeMode, true
}

func newAlert(corrID, alertType, message string, severity vocab.AlertSeverity) packet.IntegrityAlertPacket {
	return packet.IntegrityAlertPacket{
		Header: packet.Header{
			PacketID: packet.NewPacketID(), PacketKind: vocab.IntegrityAlert,
			CreatedAt: time.Now(), SourceLayer: vocab.LayerIntegrity, CorrelationID: corrID,
		},
		AlertType: alertType,
		Severity:  severity,
		Message:   message,
	}
}

// CheckBudget evaluates corrID's current budget usage against the
// warning/high thresholds and, if crossed, applies the corresponding
// IntegrityAlertPacket to its ledger (emitting it per spec.md §4.9's
// "Emit integrity alerts on budget thresholds"). Returns the alert
// applied, or (zero value, false) if no threshold was crossed.
func (o *Overlay) CheckBudget(corrID string) (packet.IntegrityAlertPacket, bool, error) {
	o.mu.Lock()
	e, ok := o.ledgers[corrID]
	o.mu.Unlock()
	if !ok {
		return packet.IntegrityAlertPacket{}, false, fmt.Errorf("integrity.CheckBudget: %q is not registered", corrID)
	}

	frac := usageFraction(e.led.BudgetUsage())

	var severity vocab.AlertSeverity
	var alertType string
	switch {
	case frac >= BudgetHighThreshold:
		severity, alertType = vocab.SeverityHigh, "budget_exhausted"
	case frac >= BudgetWarningThreshold:
		severity, alertType = vocab.SeverityWarning, "budget_warning"
	default:
		return packet.IntegrityAlertPacket{}, false, nil
	}

	alert := newAlert(corrID, alertType, fmt.Sprintf("budget usage at %.0f%%", frac*100), severity)
	if err := e.led.Apply(alert); err != nil {
		return packet.IntegrityAlertPacket{}, false, fmt.Errorf("integrity.CheckBudget: applying alert: %w", err)
	}
	return alert, true, nil
}

// usageFraction returns the highest per-axis usage fraction across
// tokens, tool calls, time, and risk, which is what CheckBudget compares
// against the warning/high thresholds. A zero-valued ceiling on an
// axis is treated as "not budgeted" and excluded rather than producing
// a division by zero.
func usageFraction(u invariant.BudgetUsage) float64 {
	frac := 0.0
	axis := func(used, budget int64) {
		if budget <= 0 {
			return
		}
		if f := float64(used) / float64(budget); f > frac {
			frac = f
		}
	}
	axis(u.TokensUsed, u.TokenBudget)
	axis(u.ToolCallsUsed, u.ToolCallBudget)
	axis(u.TimeUsedSeconds, u.TimeBudgetSeconds)
	if u.RiskMax > 0 {
		if f := u.RiskSpent / u.RiskMax; f > frac {
			frac = f
		}
	}
	return frac
}

// RevokeToken revokes tokenID on corrID's ledger with reason, logged
// for audit. Per spec.md §4.9 ("Revoke tokens by id with a reason").
func (o *Overlay) RevokeToken(corrID, tokenID, reason string) error {
	o.mu.Lock()
	e, ok := o.ledgers[corrID]
	o.mu.Unlock()
	if !ok {
		return fmt.Errorf("integrity.RevokeToken: %q is not registered", corrID)
	}
	e.led.RevokeToken(tokenID)
	o.logger.Info("integrity.token_revoked", map[string]interface{}{
		"correlation_id": corrID, "token_id": tokenID, "reason": reason,
	})
	return nil
}

// Demote moves corrID's containment level to target, refusing to move
// backward (use Promote to recover). Reaching HALTED freezes the
// ledger and applies a CRITICAL IntegrityAlert, which drives the FSM
// into S9_SAFEMODE (spec.md §4.9: "HALTED maps to FSM S9_SAFEMODE").
func (o *Overlay) Demote(corrID string, target vocab.SafeMode, reason string) error {
	o.mu.Lock()
	e, ok := o.ledgers[corrID]
	if !ok {
		o.mu.Unlock()
		return fmt.Errorf("integrity.Demote: %q is not registered", corrID)
	}
	if safeModeRank[target] <= safeModeRank[e.safeMode] {
		from := e.safeMode
		o.mu.Unlock()
		return fmt.Errorf("integrity.Demote: %q is not a demotion from %q", target, from)
	}
	e.safeMode = target
	o.mu.Unlock()

	o.logger.Warn("integrity.safe_mode_demoted", map[string]interface{}{
		"correlation_id": corrID, "to": string(target), "reason": reason,
	})

	if target == vocab.SafeModeHalted {
		alert := newAlert(corrID, "safe_mode_halted", reason, vocab.SeverityCritical)
		if err := e.led.Apply(alert); err != nil {
			return fmt.Errorf("integrity.Demote: applying halt alert: %w", err)
		}
		e.led.Freeze()
	}
	return nil
}

// Promote lifts corrID back to NORMAL containment, applying a CLEAR
// IntegrityAlert so a halted episode's FSM returns to S7_REVIEW.
// Promote does not un-freeze a ledger — once frozen, an episode stays
// terminal; Promote only exists for CAUTIOUS/RESTRICTED recovery.
func (o *Overlay) Promote(corrID, reason string) error {
	o.mu.Lock()
	e, ok := o.ledgers[corrID]
	if !ok {
		o.mu.Unlock()
		return fmt.Errorf("integrity.Promote: %q is not registered", corrID)
	}
	wasHalted := e.safeMode == vocab.SafeModeHalted
	e.safeMode = vocab.SafeModeNormal
	o.mu.Unlock()

	o.logger.Info("integrity.safe_mode_promoted", map[string]interface{}{
		"correlation_id": corrID, "reason": reason,
	})

	if wasHalted && !e.led.Frozen() {
		alert := newAlert(corrID, "safe_mode_cleared", reason, vocab.SeverityClear)
		if err := e.led.Apply(alert); err != nil {
			return fmt.Errorf("integrity.Promote: applying clear alert: %w", err)
		}
	}
	return nil
}

// ConstitutionalVeto processes a Layer-1 veto: revoke every active
// token on corrID's ledger and force it to HALTED, per spec.md §4.9
// ("Process a Layer-1 constitutional veto by revoking all active
// tokens and halting the ledger").
func (o *Overlay) ConstitutionalVeto(corrID, reason string) error {
	o.mu.Lock()
	e, ok := o.ledgers[corrID]
	if !ok {
		o.mu.Unlock()
		return fmt.Errorf("integrity.ConstitutionalVeto: %q is not registered", corrID)
	}
	// Force the rank down to RESTRICTED under the same lock acquisition
	// that found e, so Demote(HALTED) below is always a legal forward
	// move regardless of what another goroutine did to this entry
	// between the lookup and this point.
	if safeModeRank[e.safeMode] < safeModeRank[vocab.SafeModeRestricted] {
		e.safeMode = vocab.SafeModeRestricted
	}
	o.mu.Unlock()

	for _, id := range e.led.ActiveTokenIDs() {
		e.led.RevokeToken(id)
	}
	o.logger.Warn("integrity.constitutional_veto", map[string]interface{}{
		"correlation_id": corrID, "reason": reason,
	})

	return o.Demote(corrID, vocab.SafeModeHalted, reason)
}
