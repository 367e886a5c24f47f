package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Progress is the read model of a challenge shown to its owner.
type Progress struct {
	Challenge         Challenge       `json:"challenge"`
	TierName          string          `json:"tier_name"`
	Profit            decimal.Decimal `json:"profit"`
	ProfitPct         decimal.Decimal `json:"profit_pct"`
	RemainingTarget   decimal.Decimal `json:"remaining_target"`
	MinStake          decimal.Decimal `json:"min_stake"`
	MaxStake          decimal.Decimal `json:"max_stake"`
	Activity          Activity        `json:"activity"`
	PicksRemaining    int             `json:"picks_remaining"`
	DaysRemaining     int             `json:"active_days_remaining"`
	Deadline          time.Time       `json:"deadline"`
	TimeRemaining     time.Duration   `json:"time_remaining"`
	Today             DailyLedger     `json:"today"`
	DailyLossHeadroom decimal.Decimal `json:"daily_loss_headroom"`
	DailyGainHeadroom decimal.Decimal `json:"daily_gain_headroom"`
	TotalLossHeadroom decimal.Decimal `json:"total_loss_headroom"`
}

// BuildProgress summarizes a challenge at now. ledger must be today's.
func BuildProgress(ch Challenge, tier Tier, ledger DailyLedger, activity Activity, now time.Time) Progress {
	lo, hi := StakeBounds(ch.CurrentBalance)
	profit := ch.Profit()
	p := Progress{
		Challenge:       ch,
		TierName:        tier.Name,
		Profit:          profit,
		ProfitPct:       Percent(profit, ch.InitialBalance),
		RemainingTarget: maxDecimal(ch.TargetProfit.Sub(profit), decimal.Zero),
		MinStake:        lo.RoundCeil(2),
		MaxStake:        hi.RoundFloor(2),
		Activity:        activity,
		PicksRemaining:  max(tier.MinPicks-activity.PicksPlaced, 0),
		DaysRemaining:   max(tier.MinActiveDays-activity.ActiveDays, 0),
		Deadline:        ch.PhaseDeadline(tier),
		Today:           ledger,
	}
	if ch.IsActive() {
		p.TimeRemaining = max(p.Deadline.Sub(now), 0)
	}
	p.DailyLossHeadroom = maxDecimal(ch.MaxDailyLoss.Sub(ledger.TodayLoss()), decimal.Zero)
	p.DailyGainHeadroom = maxDecimal(tier.MaxDailyGain.Sub(ledger.RealizedPnL), decimal.Zero)
	p.TotalLossHeadroom = maxDecimal(ch.MaxTotalLoss.Sub(ch.InitialBalance.Sub(ch.CurrentBalance)), decimal.Zero)
	return p
}
