package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ChallengeStatus is the lifecycle state of a challenge.
type ChallengeStatus string

const (
	StatusActive    ChallengeStatus = "active"
	StatusCompleted ChallengeStatus = "completed"
	StatusFailed    ChallengeStatus = "failed"
)

// FailReason names the rule that failed a challenge.
type FailReason string

const (
	FailNone            FailReason = ""
	FailDailyLoss       FailReason = "daily_loss"
	FailTotalLoss       FailReason = "total_loss"
	FailDurationExpired FailReason = "duration_expired"
)

// Challenge is a user's attempt at a tier. CurrentBalance is the only
// source of truth for the bankroll.
type Challenge struct {
	ID                string          `json:"id"`
	UserID            string          `json:"user_id"`
	TierID            string          `json:"tier_id"`
	Phase             int             `json:"phase"`
	Status            ChallengeStatus `json:"status"`
	InitialBalance    decimal.Decimal `json:"initial_balance"`
	CurrentBalance    decimal.Decimal `json:"current_balance"`
	PhaseStartBalance decimal.Decimal `json:"phase_start_balance"`
	TargetProfit      decimal.Decimal `json:"target_profit"`
	MaxDailyLoss      decimal.Decimal `json:"max_daily_loss"`
	MaxTotalLoss      decimal.Decimal `json:"max_total_loss"`
	StartDate         time.Time       `json:"start_date"`
	EndDate           *time.Time      `json:"end_date,omitempty"`
	FailReason        FailReason      `json:"fail_reason,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	Version           int64           `json:"version"`
}

// NewChallenge opens phase 1 of a tier for a user.
func NewChallenge(id, userID string, tier Tier, now time.Time) Challenge {
	now = now.UTC()
	return Challenge{
		ID:                id,
		UserID:            userID,
		TierID:            tier.ID,
		Phase:             1,
		Status:            StatusActive,
		InitialBalance:    tier.InitialBalance,
		CurrentBalance:    tier.InitialBalance,
		PhaseStartBalance: tier.InitialBalance,
		TargetProfit:      tier.TargetProfitPhase1,
		MaxDailyLoss:      tier.MaxDailyLoss,
		MaxTotalLoss:      tier.MaxTotalLoss,
		StartDate:         now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func (c Challenge) IsActive() bool { return c.Status == StatusActive }

// IsTerminal reports whether the challenge completed or failed.
func (c Challenge) IsTerminal() bool {
	return c.Status == StatusCompleted || c.Status == StatusFailed
}

// Profit is measured against the initial balance in both phases; the
// phase-2 target is a cumulative figure.
func (c Challenge) Profit() decimal.Decimal {
	return c.CurrentBalance.Sub(c.InitialBalance)
}

// Drawdown is how far the balance sits below the initial balance, or zero.
func (c Challenge) Drawdown() decimal.Decimal {
	return maxDecimal(c.InitialBalance.Sub(c.CurrentBalance), decimal.Zero)
}

// PhaseDeadline is the instant after which an unmet target fails the phase.
func (c Challenge) PhaseDeadline(tier Tier) time.Time {
	return c.StartDate.Add(tier.PhaseDuration())
}
