package agent

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// approvalWindow bounds how long a pending approval stays eligible for
// self-committing re-issue before it resets and must be requested again.
const approvalWindow = 120 * time.Second

// ApprovalOutcome is the result of checking a high-risk tool call against
// the gate.
type ApprovalOutcome struct {
	Allowed   bool
	ErrorType string // "approval_required" | "approval_expired", empty when Allowed
	Message   string
}

// ApprovalGate implements the self-committing high-risk approval handshake:
// there is no separate approve action. The first call to a high-risk tool
// in a given chat is held pending and denied; the operator confirms by
// having the model re-issue the identical call, which the gate recognizes
// by channel+chat+tool name and lets through. A call that doesn't come back
// within approvalWindow resets the pending entry instead of auto-approving.
type ApprovalGate struct {
	mu      sync.Mutex
	pending map[string]time.Time
}

// NewApprovalGate returns an empty gate.
func NewApprovalGate() *ApprovalGate {
	return &ApprovalGate{pending: make(map[string]time.Time)}
}

func approvalKey(channel, chatID, tool string) string {
	return fmt.Sprintf("%s:%s:%s", channel, chatID, tool)
}

// Check evaluates one high-risk tool call. risk is included in the returned
// message text verbatim (e.g. "high").
func (g *ApprovalGate) Check(channel, chatID, tool string, risk RiskLevel) ApprovalOutcome {
	key := approvalKey(channel, chatID, tool)

	g.mu.Lock()
	defer g.mu.Unlock()

	requestedAt, pending := g.pending[key]
	if !pending {
		g.pending[key] = time.Now()
		return ApprovalOutcome{
			ErrorType: "approval_required",
			Message:   fmt.Sprintf("Approval required for high-risk tool '%s' (risk: %s). Re-run the same tool call to confirm.", tool, risk),
		}
	}

	elapsed := time.Since(requestedAt)
	if elapsed < approvalWindow {
		delete(g.pending, key)
		slog.Warn("auto-approved high-risk tool on retry", "tool", tool, "channel", channel, "chat_id", chatID, "elapsed", elapsed)
		return ApprovalOutcome{Allowed: true}
	}

	g.pending[key] = time.Now()
	return ApprovalOutcome{
		ErrorType: "approval_expired",
		Message:   fmt.Sprintf("Approval expired for high-risk tool '%s' (risk: %s). Re-run the same tool call to confirm.", tool, risk),
	}
}
