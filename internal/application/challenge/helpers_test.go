package challenge

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/propbet/internal/adapters/storage"
	"github.com/alejandrodnm/propbet/internal/domain"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertMoney(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.True(t, d(want).Equal(got), "want %s, got %s", want, got.String())
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(dur time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(dur)
}

type fakeMatches struct {
	mu      sync.Mutex
	matches map[string]domain.Match
}

func (f *fakeMatches) Match(_ context.Context, id string) (domain.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.matches[id]
	if !ok {
		return domain.Match{}, domain.ErrMatchNotFound
	}
	return m, nil
}

func (f *fakeMatches) add(id string, kickoff time.Time, home string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.matches[id] = domain.Match{
		ID:           id,
		SportKey:     "soccer_epl",
		HomeTeam:     "Home " + id,
		AwayTeam:     "Away " + id,
		CommenceTime: kickoff,
		Odds:         domain.Odds{Home: d(home), Draw: d("3.40"), Away: d("3.50")},
	}
}

type recorder struct {
	mu     sync.Mutex
	events []domain.ChallengeEvent
	err    error
}

func (r *recorder) Publish(_ context.Context, e domain.ChallengeEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) Close() error { return nil }

func (r *recorder) types() []domain.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func (r *recorder) last() domain.ChallengeEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

type fixture struct {
	svc     *Service
	store   *storage.SQLiteStorage
	clock   *clock
	matches *fakeMatches
	events  *recorder
}

// newFixture builds a service over an in-memory store. Matches m1..m9 kick
// off two days after t0 at home odds of 2.00.
func newFixture(t *testing.T, tiers ...domain.Tier) *fixture {
	t.Helper()
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	catalog := domain.DefaultCatalog()
	if len(tiers) > 0 {
		catalog, err = domain.NewCatalog(tiers)
		require.NoError(t, err)
	}

	f := &fixture{
		store:   store,
		clock:   &clock{now: t0},
		matches: &fakeMatches{matches: make(map[string]domain.Match)},
		events:  &recorder{},
	}
	for _, id := range []string{"m1", "m2", "m3", "m4", "m5", "m6", "m7", "m8", "m9"} {
		f.matches.add(id, t0.Add(48*time.Hour), "2.00")
	}
	f.svc = New(Config{Now: f.clock.Now}, store, catalog, f.matches, f.events)
	return f
}

func (f *fixture) create(t *testing.T, userID, tierID string) domain.Challenge {
	t.Helper()
	ch, err := f.svc.CreateChallenge(context.Background(), userID, tierID)
	require.NoError(t, err)
	return ch
}

func (f *fixture) place(t *testing.T, ch domain.Challenge, matchID, stake string) domain.Bet {
	t.Helper()
	b, err := f.svc.PlaceBet(context.Background(), ch.ID, domain.BetRequest{
		UserID: ch.UserID, MatchID: matchID, Selection: domain.SelectionHome, Stake: d(stake),
	})
	require.NoError(t, err)
	return b
}

func (f *fixture) settle(t *testing.T, betID, result string) domain.Challenge {
	t.Helper()
	ch, err := f.svc.SettleBet(context.Background(), betID, result)
	require.NoError(t, err)
	return ch
}

// miniTier has a two-phase ladder reachable with a single pick per phase.
// Both targets count from the initial balance.
func miniTier() domain.Tier {
	return domain.Tier{
		ID: "mini", Name: "Mini", Price: decimal.Zero,
		InitialBalance: d("1000"), TargetProfitPhase1: d("50"), TargetProfitPhase2: d("80"),
		MaxDailyLoss: d("100"), MaxTotalLoss: d("200"), MaxDailyGain: d("200"),
		MinPicks: 1, MinActiveDays: 1, PhaseDurationDays: 10,
	}
}

var errBroker = errors.New("broker down")
