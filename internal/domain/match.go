package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Selection is one side of a head-to-head (1X2) market.
type Selection string

const (
	SelectionHome Selection = "home"
	SelectionDraw Selection = "draw"
	SelectionAway Selection = "away"
)

// ParseSelection accepts the canonical names and the 1/X/2 shorthand.
func ParseSelection(s string) (Selection, bool) {
	switch s {
	case "home", "1":
		return SelectionHome, true
	case "draw", "x", "X":
		return SelectionDraw, true
	case "away", "2":
		return SelectionAway, true
	}
	return "", false
}

// Odds are decimal prices for the 1X2 market. Draw is zero for sports
// without a draw outcome.
type Odds struct {
	Home decimal.Decimal `json:"home"`
	Draw decimal.Decimal `json:"draw"`
	Away decimal.Decimal `json:"away"`
}

// Match is an upcoming event as published by the odds gateway.
type Match struct {
	ID           string    `json:"id"`
	SportKey     string    `json:"sport_key"`
	SportTitle   string    `json:"sport_title"`
	HomeTeam     string    `json:"home_team"`
	AwayTeam     string    `json:"away_team"`
	CommenceTime time.Time `json:"commence_time"`
	Odds         Odds      `json:"odds"`
	Bookmaker    string    `json:"bookmaker,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// OddsFor returns the price of a selection, zero when it is not offered.
func (m Match) OddsFor(sel Selection) decimal.Decimal {
	switch sel {
	case SelectionHome:
		return m.Odds.Home
	case SelectionDraw:
		return m.Odds.Draw
	case SelectionAway:
		return m.Odds.Away
	}
	return decimal.Zero
}

// HasStarted reports whether now is at or after kick-off.
func (m Match) HasStarted(now time.Time) bool {
	return !now.Before(m.CommenceTime)
}

// Description is the human label of the event.
func (m Match) Description() string {
	return m.HomeTeam + " vs " + m.AwayTeam
}
