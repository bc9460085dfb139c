package invariant

import (
	"github.com/Tpanarchist/omen/packet"
	"github.com/Tpanarchist/omen/vocab"
)

// BudgetUsage is the cumulative-vs-ceiling snapshot a rule needs to
// detect an overrun on any axis.
type BudgetUsage struct {
	TokensUsed, TokenBudget           int64
	ToolCallsUsed, ToolCallBudget     int64
	TimeUsedSeconds, TimeBudgetSeconds int64
	RiskSpent, RiskMax                 float64
}

// Exceeded reports whether usage has crossed any budget ceiling.
func (b BudgetUsage) Exceeded() bool {
	return b.TokensUsed > b.TokenBudget ||
		b.ToolCallsUsed > b.ToolCallBudget ||
		b.TimeUsedSeconds > b.TimeBudgetSeconds ||
		b.RiskSpent > b.RiskMax
}

// LedgerView is the narrow read slice of an episode ledger the
// invariant rules need. Defined here (not imported from ledger) so
// ledger can import invariant without a cycle — ledger.Ledger
// implements this interface.
type LedgerView interface {
	ActiveToken(tokenID string) (packet.ToolAuthorizationTokenPacket, bool)
	BudgetUsage() BudgetUsage
	// BudgetOverrunApproved reports whether an Escalation
	// (trigger=budget_insufficient) or an Integrity override has been
	// recorded since the budget was last found to be exceeded.
	BudgetOverrunApproved() bool
	// HasConflictPending reports whether a recorded conflict is open,
	// requiring the next Decision to cite an arbitration policy.
	HasConflictPending() bool
	ToolsState() vocab.ToolsState
	// HasSuccessfulResultSince reports whether at least one SUCCESS
	// TaskResult has been recorded since the current S4_VERIFY loop began.
	HasSuccessfulResultSince() bool
	// OpenDirective reports whether task_id names a directive still
	// awaiting its TaskResult.
	OpenDirective(taskID string) (OpenDirectiveRef, bool)
}

// OpenDirectiveRef avoids importing fsm directly (fsm has no reason to
// be a dependency of invariant); ledger adapts its own open-directive
// record into this shape.
type OpenDirectiveRef struct {
	DirectivePacketID string
	TimeoutSeconds    int64
}
