package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// SettlementOutcome is the effect of settling one bet.
type SettlementOutcome struct {
	Result      BetResult
	ProfitLoss  decimal.Decimal
	NewBalance  decimal.Decimal
	GainClipped decimal.Decimal
}

// ParseMatchResult maps a reported match result to the winning selection.
// ok is false for unavailable, cancelled or unknown results, which settle
// as void.
func ParseMatchResult(result string) (Selection, bool) {
	switch strings.ToLower(strings.TrimSpace(result)) {
	case "home", "1":
		return SelectionHome, true
	case "draw", "x":
		return SelectionDraw, true
	case "away", "2":
		return SelectionAway, true
	}
	return "", false
}

// Settle computes the outcome of a pending bet given the match result and
// the authoritative current balance. It is pure: persisting the bet result
// and the new balance together is the caller's responsibility.
func Settle(bet Bet, matchResult string, balance decimal.Decimal) (SettlementOutcome, error) {
	if !bet.IsPending() {
		return SettlementOutcome{}, fmt.Errorf("domain.Settle: bet %s is %s: %w", bet.ID, bet.Result, ErrBetNotPending)
	}

	out := SettlementOutcome{GainClipped: decimal.Zero}
	winner, ok := ParseMatchResult(matchResult)
	switch {
	case !ok:
		out.Result = ResultVoid
		out.ProfitLoss = decimal.Zero
	case winner == bet.Selection:
		out.Result = ResultWon
		out.ProfitLoss = bet.PotentialWin.Sub(bet.Stake)
	default:
		out.Result = ResultLost
		out.ProfitLoss = bet.Stake.Neg()
	}
	out.NewBalance = balance.Add(out.ProfitLoss)
	return out, nil
}

// ApplyDailyGainCap clips the credited profit of a winning outcome so the
// day's realized gain never exceeds the tier's MaxDailyGain. The excess is
// reported in GainClipped and never reaches the balance.
func ApplyDailyGainCap(out SettlementOutcome, ledger DailyLedger, tier Tier) SettlementOutcome {
	if !out.ProfitLoss.IsPositive() {
		return out
	}
	headroom := maxDecimal(tier.MaxDailyGain.Sub(ledger.RealizedPnL), decimal.Zero)
	if out.ProfitLoss.LessThanOrEqual(headroom) {
		return out
	}
	balance := out.NewBalance.Sub(out.ProfitLoss)
	out.GainClipped = out.GainClipped.Add(out.ProfitLoss.Sub(headroom))
	out.ProfitLoss = headroom
	out.NewBalance = balance.Add(headroom)
	return out
}
