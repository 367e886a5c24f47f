package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettle_ScenarioB(t *testing.T) {
	ch := NewChallenge("c1", "u1", tier(t, "1k"), t0)
	bet := pendingBet(t, ch, SelectionHome, "50")

	out, err := Settle(bet, "home", ch.CurrentBalance)
	require.NoError(t, err)
	assert.Equal(t, ResultWon, out.Result)
	assertMoney(t, "50", out.ProfitLoss)
	assertMoney(t, "1050", out.NewBalance)
}

func TestSettle_Lost(t *testing.T) {
	ch := NewChallenge("c1", "u1", tier(t, "1k"), t0)
	bet := pendingBet(t, ch, SelectionHome, "40")

	out, err := Settle(bet, "away", ch.CurrentBalance)
	require.NoError(t, err)
	assert.Equal(t, ResultLost, out.Result)
	assertMoney(t, "-40", out.ProfitLoss)
	assertMoney(t, "960", out.NewBalance)
}

func TestSettle_VoidOnUnavailableResult(t *testing.T) {
	ch := NewChallenge("c1", "u1", tier(t, "1k"), t0)
	bet := pendingBet(t, ch, SelectionDraw, "20")

	for _, res := range []string{"", "cancelled", "void", "postponed"} {
		out, err := Settle(bet, res, ch.CurrentBalance)
		require.NoError(t, err)
		assert.Equal(t, ResultVoid, out.Result, res)
		assert.True(t, out.ProfitLoss.IsZero())
		assertMoney(t, "1000", out.NewBalance)
	}
}

func TestSettle_PnLProperty(t *testing.T) {
	stakes := []string{"10", "12.34", "49.99", "0.01", "333.33"}
	odds := []string{"1", "1.01", "1.5", "2.37", "7.125", "15"}
	for _, s := range stakes {
		for _, o := range odds {
			stake, price := d(s), d(o)
			bet := Bet{ID: "b", Selection: SelectionAway, Odds: price, Stake: stake,
				PotentialWin: RoundMoney(stake.Mul(price)), Result: ResultPending}
			bal := d("1000.00")

			won, err := Settle(bet, "away", bal)
			require.NoError(t, err)
			exact := stake.Mul(price).Sub(stake)
			assert.True(t, won.ProfitLoss.Sub(exact).Abs().LessThanOrEqual(d("0.005")),
				"stake %s odds %s: %s vs %s", s, o, won.ProfitLoss, exact)
			assert.True(t, won.NewBalance.Equal(bal.Add(won.ProfitLoss)))
			assert.True(t, IsCents(won.NewBalance))

			lost, err := Settle(bet, "home", bal)
			require.NoError(t, err)
			assert.True(t, lost.ProfitLoss.Equal(stake.Neg()))
			assert.True(t, lost.NewBalance.Equal(bal.Sub(stake)))
		}
	}
}

func TestSettle_RejectsResolvedBet(t *testing.T) {
	ch := NewChallenge("c1", "u1", tier(t, "1k"), t0)
	bet := pendingBet(t, ch, SelectionHome, "50")
	out, err := Settle(bet, "home", ch.CurrentBalance)
	require.NoError(t, err)
	bet.Resolve(out, t0)

	_, err = Settle(bet, "home", out.NewBalance)
	assert.ErrorIs(t, err, ErrBetNotPending)
}

func TestSettle_PotentialWinFixedAtPlacement(t *testing.T) {
	ch := NewChallenge("c1", "u1", tier(t, "1k"), t0)
	bet := pendingBet(t, ch, SelectionAway, "20")
	bet.Odds = d("9.99")

	out, err := Settle(bet, "away", ch.CurrentBalance)
	require.NoError(t, err)
	assertMoney(t, "55", out.ProfitLoss)
}

// --- ApplyDailyGainCap ---

func TestApplyDailyGainCap_Clips(t *testing.T) {
	tr := tier(t, "1k")
	ledger := NewDailyLedger("c1", t0, d("1000"))
	ledger.RecordSettlement(d("60"))

	out := SettlementOutcome{Result: ResultWon, ProfitLoss: d("50"), NewBalance: d("1110")}
	capped := ApplyDailyGainCap(out, ledger, tr)
	assertMoney(t, "20", capped.ProfitLoss)
	assertMoney(t, "30", capped.GainClipped)
	assertMoney(t, "1080", capped.NewBalance)
}

func TestApplyDailyGainCap_LossesExtendHeadroom(t *testing.T) {
	tr := tier(t, "1k")
	ledger := NewDailyLedger("c1", t0, d("1000"))
	ledger.RecordSettlement(d("-30"))

	out := SettlementOutcome{Result: ResultWon, ProfitLoss: d("100"), NewBalance: d("1070")}
	capped := ApplyDailyGainCap(out, ledger, tr)
	assertMoney(t, "100", capped.ProfitLoss)
	assert.True(t, capped.GainClipped.IsZero())
}

func TestApplyDailyGainCap_IgnoresLosses(t *testing.T) {
	tr := tier(t, "1k")
	ledger := NewDailyLedger("c1", t0, d("1000"))
	ledger.RecordSettlement(d("80"))

	out := SettlementOutcome{Result: ResultLost, ProfitLoss: d("-50"), NewBalance: d("1030")}
	assert.Equal(t, out, ApplyDailyGainCap(out, ledger, tr))
}

func TestApplyDailyGainCap_CapAlreadyReached(t *testing.T) {
	tr := tier(t, "1k")
	ledger := NewDailyLedger("c1", t0, d("1000"))
	ledger.RecordSettlement(d("90"))

	out := SettlementOutcome{Result: ResultWon, ProfitLoss: d("25"), NewBalance: d("1115")}
	capped := ApplyDailyGainCap(out, ledger, tr)
	assert.True(t, capped.ProfitLoss.IsZero())
	assertMoney(t, "25", capped.GainClipped)
	assertMoney(t, "1090", capped.NewBalance)
}

// --- Cancel ---

func TestCancel_BeforeKickoff(t *testing.T) {
	ch := NewChallenge("c1", "u1", tier(t, "1k"), t0)
	bet := pendingBet(t, ch, SelectionHome, "50")

	cancelled, err := Cancel(bet, bet.CommenceTime.Add(-time.Second))
	require.NoError(t, err)
	assert.Equal(t, ResultCancelled, cancelled.Result)
	require.NotNil(t, cancelled.ProfitLoss)
	assert.True(t, cancelled.ProfitLoss.IsZero())
	require.NotNil(t, cancelled.ResolvedAt)
}

func TestCancel_AtOrAfterKickoff(t *testing.T) {
	ch := NewChallenge("c1", "u1", tier(t, "1k"), t0)
	bet := pendingBet(t, ch, SelectionHome, "50")

	_, err := Cancel(bet, bet.CommenceTime)
	assert.ErrorIs(t, err, ErrMatchAlreadyStarted)
	_, err = Cancel(bet, bet.CommenceTime.Add(time.Minute))
	assert.ErrorIs(t, err, ErrMatchAlreadyStarted)
}

func TestCancel_OnlyPending(t *testing.T) {
	ch := NewChallenge("c1", "u1", tier(t, "1k"), t0)
	bet := pendingBet(t, ch, SelectionHome, "50")
	cancelled, err := Cancel(bet, t0)
	require.NoError(t, err)

	_, err = Cancel(cancelled, t0)
	assert.ErrorIs(t, err, ErrBetNotPending)
}

func TestNewBet_SelectionUnavailable(t *testing.T) {
	ch := NewChallenge("c1", "u1", tier(t, "1k"), t0)
	m := testMatch()
	m.Odds.Draw = d("0")

	_, err := NewBet("b1", ch, m, SelectionDraw, d("20"), t0)
	assert.ErrorIs(t, err, ErrSelectionUnavailable)
}

func TestNewBet_FixesPlacementSnapshot(t *testing.T) {
	ch := NewChallenge("c1", "u1", tier(t, "1k"), t0)
	bet := pendingBet(t, ch, SelectionAway, "20")

	assertMoney(t, "75", bet.PotentialWin)
	assertMoney(t, "1000", bet.BalanceAtPlacement)
	assert.Equal(t, "Arsenal vs Chelsea", bet.EventDescription)
	assert.Equal(t, ResultPending, bet.Result)
	assert.Nil(t, bet.ProfitLoss)
}
