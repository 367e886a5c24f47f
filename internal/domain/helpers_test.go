package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func tier(t *testing.T, id string) Tier {
	t.Helper()
	tr, err := DefaultCatalog().Get(id)
	require.NoError(t, err)
	return tr
}

func assertMoney(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.True(t, d(want).Equal(got), "want %s, got %s", want, got.String())
}

func testMatch() Match {
	return Match{
		ID:           "m1",
		SportKey:     "soccer_epl",
		HomeTeam:     "Arsenal",
		AwayTeam:     "Chelsea",
		CommenceTime: t0.Add(3 * time.Hour),
		Odds:         Odds{Home: d("2.0"), Draw: d("3.4"), Away: d("3.75")},
	}
}

func pendingBet(t *testing.T, ch Challenge, sel Selection, stake string) Bet {
	t.Helper()
	b, err := NewBet("b1", ch, testMatch(), sel, d(stake), t0)
	require.NoError(t, err)
	return b
}
