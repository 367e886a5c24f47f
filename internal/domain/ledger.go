package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Day truncates t to its UTC calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DailyLedger is the realized result of one challenge on one UTC day.
type DailyLedger struct {
	ChallengeID     string          `json:"challenge_id"`
	Day             time.Time       `json:"day"`
	DayStartBalance decimal.Decimal `json:"day_start_balance"`
	RealizedPnL     decimal.Decimal `json:"realized_pnl"`
	BetsPlaced      int             `json:"bets_placed"`
	BetsSettled     int             `json:"bets_settled"`
}

// NewDailyLedger opens the ledger of a day at the given balance.
func NewDailyLedger(challengeID string, day time.Time, startBalance decimal.Decimal) DailyLedger {
	return DailyLedger{
		ChallengeID:     challengeID,
		Day:             Day(day),
		DayStartBalance: startBalance,
		RealizedPnL:     decimal.Zero,
	}
}

// TodayLoss is the day's net realized loss, zero when the day is positive.
func (l DailyLedger) TodayLoss() decimal.Decimal {
	return maxDecimal(l.RealizedPnL.Neg(), decimal.Zero)
}

// TodayGain is the day's net realized gain, zero when the day is negative.
func (l DailyLedger) TodayGain() decimal.Decimal {
	return maxDecimal(l.RealizedPnL, decimal.Zero)
}

// IsFor reports whether the ledger belongs to the day containing t.
func (l DailyLedger) IsFor(t time.Time) bool {
	return l.Day.Equal(Day(t))
}

// RecordSettlement adds a settled bet's credited profit or loss.
func (l *DailyLedger) RecordSettlement(profitLoss decimal.Decimal) {
	l.RealizedPnL = l.RealizedPnL.Add(profitLoss)
	l.BetsSettled++
}

// RecordPlacement counts a newly placed pick.
func (l *DailyLedger) RecordPlacement() {
	l.BetsPlaced++
}

// Activity counts what a challenge has done in its current phase.
type Activity struct {
	PicksPlaced int `json:"picks_placed"`
	ActiveDays  int `json:"active_days"`
}
