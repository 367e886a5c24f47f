package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// BetResult is the state of a pick.
type BetResult string

const (
	ResultPending   BetResult = "pending"
	ResultWon       BetResult = "won"
	ResultLost      BetResult = "lost"
	ResultVoid      BetResult = "void"
	ResultCancelled BetResult = "cancelled"
)

// BetTypeH2H is the head-to-head market, the only one offered.
const BetTypeH2H = "h2h"

// BetRequest is what a user submits to place a pick.
type BetRequest struct {
	UserID    string
	MatchID   string
	Selection Selection
	Stake     decimal.Decimal
}

// Bet is a pick placed inside a challenge. PotentialWin is fixed at
// placement and ProfitLoss is set once, when the bet leaves pending.
type Bet struct {
	ID                 string           `json:"id"`
	ChallengeID        string           `json:"challenge_id"`
	UserID             string           `json:"user_id"`
	MatchID            string           `json:"match_id"`
	Sport              string           `json:"sport"`
	HomeTeam           string           `json:"home_team"`
	AwayTeam           string           `json:"away_team"`
	EventDescription   string           `json:"event_description"`
	BetType            string           `json:"bet_type"`
	Selection          Selection        `json:"selection"`
	Odds               decimal.Decimal  `json:"odds"`
	Stake              decimal.Decimal  `json:"stake"`
	PotentialWin       decimal.Decimal  `json:"potential_win"`
	BalanceAtPlacement decimal.Decimal  `json:"balance_at_placement"`
	Result             BetResult        `json:"result"`
	ProfitLoss         *decimal.Decimal `json:"profit_loss,omitempty"`
	GainClipped        decimal.Decimal  `json:"gain_clipped"`
	CommenceTime       time.Time        `json:"commence_time"`
	PlacedAt           time.Time        `json:"placed_at"`
	ResolvedAt         *time.Time       `json:"resolved_at,omitempty"`
}

func (b Bet) IsPending() bool { return b.Result == ResultPending }

// NewBet prices a pick against the match's current odds. Stake validation
// is the caller's job and must happen before this.
func NewBet(id string, ch Challenge, m Match, sel Selection, stake decimal.Decimal, now time.Time) (Bet, error) {
	odds := m.OddsFor(sel)
	if odds.LessThan(decimal.NewFromInt(1)) {
		return Bet{}, fmt.Errorf("%s on %s: %w", sel, m.ID, ErrSelectionUnavailable)
	}
	return Bet{
		ID:                 id,
		ChallengeID:        ch.ID,
		UserID:             ch.UserID,
		MatchID:            m.ID,
		Sport:              m.SportKey,
		HomeTeam:           m.HomeTeam,
		AwayTeam:           m.AwayTeam,
		EventDescription:   m.Description(),
		BetType:            BetTypeH2H,
		Selection:          sel,
		Odds:               odds,
		Stake:              stake,
		PotentialWin:       RoundMoney(stake.Mul(odds)),
		BalanceAtPlacement: ch.CurrentBalance,
		Result:             ResultPending,
		GainClipped:        decimal.Zero,
		CommenceTime:       m.CommenceTime.UTC(),
		PlacedAt:           now.UTC(),
	}, nil
}

// Resolve records a settlement outcome on the bet.
func (b *Bet) Resolve(out SettlementOutcome, now time.Time) {
	pl := out.ProfitLoss
	at := now.UTC()
	b.Result = out.Result
	b.ProfitLoss = &pl
	b.GainClipped = out.GainClipped
	b.ResolvedAt = &at
}

// CanCancel checks that the bet is still pending and its match has not
// started at now.
func CanCancel(b Bet, now time.Time) error {
	if !b.IsPending() {
		return fmt.Errorf("bet %s is %s: %w", b.ID, b.Result, ErrBetNotPending)
	}
	if !now.Before(b.CommenceTime) {
		return fmt.Errorf("bet %s: %w", b.ID, ErrMatchAlreadyStarted)
	}
	return nil
}

// Cancel marks a pending bet as cancelled. The balance is never touched.
func Cancel(b Bet, now time.Time) (Bet, error) {
	if err := CanCancel(b, now); err != nil {
		return b, err
	}
	zero := decimal.Zero
	at := now.UTC()
	b.Result = ResultCancelled
	b.ProfitLoss = &zero
	b.ResolvedAt = &at
	return b, nil
}

// Void resolves a pending bet with no balance effect, used when its
// challenge reaches a terminal state.
func Void(b Bet, now time.Time) Bet {
	b.Resolve(SettlementOutcome{Result: ResultVoid, ProfitLoss: decimal.Zero, GainClipped: decimal.Zero}, now)
	return b
}
