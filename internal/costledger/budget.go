package costledger

import (
	"fmt"
	"time"

	"github.com/jarvislabs/jarvis/internal/domain"
)

// AlertTier classifies how far past the budget a session has gone.
type AlertTier string

const (
	TierWarning      AlertTier = "warning"
	TierLimitReached AlertTier = "limit_reached"
	TierExceeded     AlertTier = "exceeded"
)

// BudgetAlert is raised once per (session, tier) when a spend threshold
// is crossed.
type BudgetAlert struct {
	SessionID   string       `json:"sessionId"`
	Tier        AlertTier    `json:"tier"`
	CurrentCost domain.Money `json:"currentCost"`
	BudgetLimit domain.Money `json:"budgetLimit"`
	PercentUsed float64      `json:"percentUsed"`
	Message     string       `json:"message"`
	Timestamp   time.Time    `json:"timestamp"`
}

// tierFor maps a crossed threshold fraction to its severity.
func tierFor(threshold float64) AlertTier {
	switch {
	case threshold >= 1.0:
		return TierExceeded
	case threshold >= 0.9:
		return TierLimitReached
	default:
		return TierWarning
	}
}

func alertMessage(tier AlertTier, cost, limit domain.Money, pct float64) string {
	switch tier {
	case TierExceeded:
		return fmt.Sprintf("Budget exceeded! Used $%s of $%s budget (%.1f%%)", cost, limit, pct*100)
	case TierLimitReached:
		return fmt.Sprintf("Budget limit reached! Used $%s of $%s budget (%.1f%%)", cost, limit, pct*100)
	default:
		return fmt.Sprintf("Budget warning: Used $%s of $%s budget (%.1f%%)", cost, limit, pct*100)
	}
}

// budgetState tracks one session's limit and which tiers already fired.
// Dedup lasts for the lifetime of the session's budget tracking.
type budgetState struct {
	limit domain.Money
	sent  map[AlertTier]bool
}

// checkThresholds returns newly-crossed alerts in ascending threshold
// order. Caller holds the ledger lock.
func (b *budgetState) checkThresholds(sessionID string, current domain.Money, thresholds []float64, now time.Time) []BudgetAlert {
	if b.limit <= 0 {
		return nil
	}
	pct := float64(current) / float64(b.limit)

	var alerts []BudgetAlert
	for _, th := range thresholds {
		if pct < th {
			continue
		}
		tier := tierFor(th)
		if b.sent[tier] {
			continue
		}
		b.sent[tier] = true
		alerts = append(alerts, BudgetAlert{
			SessionID:   sessionID,
			Tier:        tier,
			CurrentCost: current,
			BudgetLimit: b.limit,
			PercentUsed: pct,
			Message:     alertMessage(tier, current, b.limit, pct),
			Timestamp:   now,
		})
	}
	return alerts
}

// Remaining returns the unspent budget, floored at zero.
func (b *budgetState) Remaining(current domain.Money) domain.Money {
	return b.limit.Sub(current)
}
