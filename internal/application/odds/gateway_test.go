package odds

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/propbet/internal/adapters/oddscache"
	"github.com/alejandrodnm/propbet/internal/domain"
	"github.com/alejandrodnm/propbet/internal/ports"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type fakeProvider struct {
	mu        sync.Mutex
	calls     int
	matches   []domain.Match
	err       error
	sportErrs map[string]error
}

func (f *fakeProvider) FetchOdds(_ context.Context, sports []string) ([]domain.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var out []domain.Match
	for _, sport := range sports {
		if err := f.sportErrs[sport]; err != nil {
			return nil, err
		}
		for _, m := range f.matches {
			if m.SportKey == sport {
				out = append(out, m)
			}
		}
	}
	return out, nil
}

func (f *fakeProvider) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type clock struct{ now time.Time }

func (c *clock) Now() time.Time          { return c.now }
func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func match(id, sport string, kickoff time.Time) domain.Match {
	return domain.Match{
		ID:           id,
		SportKey:     sport,
		HomeTeam:     "Home " + id,
		AwayTeam:     "Away " + id,
		CommenceTime: kickoff,
		Odds: domain.Odds{
			Home: decimal.RequireFromString("2.10"),
			Draw: decimal.RequireFromString("3.40"),
			Away: decimal.RequireFromString("3.50"),
		},
	}
}

func newGateway(p ports.OddsProvider, c *clock, sports ...string) (*Gateway, *oddscache.Memory) {
	cache := oddscache.NewMemory()
	return NewGateway(p, cache, Config{Sports: sports, TTL: 5 * time.Minute, Now: c.Now}), cache
}

func TestMatches_CachesWithinTTL(t *testing.T) {
	c := &clock{now: t0}
	p := &fakeProvider{matches: []domain.Match{
		match("m2", "soccer_epl", t0.Add(3*time.Hour)),
		match("m1", "soccer_epl", t0.Add(time.Hour)),
	}}
	g, _ := newGateway(p, c, "soccer_epl")

	got, err := g.Matches(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "m1", got[0].ID, "ordered by kick-off")

	c.Advance(4 * time.Minute)
	_, err = g.Matches(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Calls())

	c.Advance(2 * time.Minute)
	_, err = g.Matches(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Calls(), "refetched after TTL")
}

func TestMatches_FiltersStarted(t *testing.T) {
	c := &clock{now: t0}
	p := &fakeProvider{matches: []domain.Match{
		match("past", "soccer_epl", t0.Add(-time.Minute)),
		match("future", "soccer_epl", t0.Add(time.Hour)),
	}}
	g, _ := newGateway(p, c, "soccer_epl")

	got, err := g.Matches(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "future", got[0].ID)

	m, err := g.Match(context.Background(), "past")
	require.NoError(t, err, "lookup by ID still finds started matches")
	assert.True(t, m.HasStarted(c.Now()))
}

func TestMatches_ServesStaleOnUpstreamError(t *testing.T) {
	c := &clock{now: t0}
	p := &fakeProvider{matches: []domain.Match{match("m1", "soccer_epl", t0.Add(time.Hour))}}
	g, _ := newGateway(p, c, "soccer_epl")

	_, err := g.Matches(context.Background(), nil)
	require.NoError(t, err)

	p.err = &domain.UpstreamError{StatusCode: 503, Err: errors.New("unavailable")}
	c.Advance(10 * time.Minute)
	got, err := g.Matches(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "m1", got[0].ID)
	assert.Equal(t, 2, p.Calls())
}

func TestMatches_EmptyWhenNothingCachedAndUpstreamDown(t *testing.T) {
	c := &clock{now: t0}
	p := &fakeProvider{err: &domain.UpstreamError{StatusCode: 500, Err: errors.New("boom")}}
	g, _ := newGateway(p, c, "soccer_epl")

	got, err := g.Matches(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = g.Match(context.Background(), "m1")
	assert.ErrorIs(t, err, domain.ErrMatchNotFound)
}

func TestMatches_BacksOffAfterRateLimit(t *testing.T) {
	c := &clock{now: t0}
	p := &fakeProvider{err: &domain.RateLimitedError{RetryAfter: 2 * time.Minute}}
	g, _ := newGateway(p, c, "soccer_epl")

	_, err := g.Matches(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Calls())
	assert.Equal(t, t0.Add(2*time.Minute), g.BlockedUntil())

	c.Advance(time.Minute)
	_, err = g.Matches(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Calls(), "no upstream call while blocked")

	p.err = nil
	p.matches = []domain.Match{match("m1", "soccer_epl", t0.Add(time.Hour))}
	c.Advance(2 * time.Minute)
	got, err := g.Matches(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, 2, p.Calls())
}

func TestMatch_FindsAcrossSports(t *testing.T) {
	c := &clock{now: t0}
	p := &fakeProvider{matches: []domain.Match{
		match("epl1", "soccer_epl", t0.Add(time.Hour)),
		match("nba1", "basketball_nba", t0.Add(2*time.Hour)),
	}}
	g, cache := newGateway(p, c, "soccer_epl", "basketball_nba")

	m, err := g.Match(context.Background(), "nba1")
	require.NoError(t, err)
	assert.Equal(t, "basketball_nba", m.SportKey)

	entry, ok, err := cache.Get(context.Background(), "basketball_nba")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, t0, entry.FetchedAt)

	got, err := g.Matches(context.Background(), []string{"soccer_epl"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "epl1", got[0].ID)
	assert.Equal(t, 2, p.Calls(), "one upstream call per sport, then cached")
}

func TestMatches_OneFailingSportDoesNotStarveOthers(t *testing.T) {
	c := &clock{now: t0}
	p := &fakeProvider{
		matches: []domain.Match{
			match("epl1", "soccer_epl", t0.Add(time.Hour)),
			match("nba1", "basketball_nba", t0.Add(2*time.Hour)),
		},
		sportErrs: map[string]error{
			"soccer_epl": &domain.UpstreamError{StatusCode: 422, Err: errors.New("unknown sport")},
		},
	}
	g, cache := newGateway(p, c, "soccer_epl", "basketball_nba")

	got, err := g.Matches(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "nba1", got[0].ID)

	_, ok, err := cache.Get(context.Background(), "basketball_nba")
	require.NoError(t, err)
	assert.True(t, ok)
	_, ok, err = cache.Get(context.Background(), "soccer_epl")
	require.NoError(t, err)
	assert.False(t, ok, "failed sport is not cached")

	p.sportErrs = nil
	calls := p.Calls()
	got, err = g.Matches(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, calls+1, p.Calls(), "only the missing sport is refetched")
}

func TestMatches_RateLimitStopsRemainingSports(t *testing.T) {
	c := &clock{now: t0}
	p := &fakeProvider{sportErrs: map[string]error{
		"soccer_epl": &domain.RateLimitedError{RetryAfter: time.Minute},
	}}
	g, _ := newGateway(p, c, "soccer_epl", "basketball_nba")

	_, err := g.Matches(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Calls())
	assert.Equal(t, t0.Add(time.Minute), g.BlockedUntil())
}

func TestRefresh_StoresEmptySports(t *testing.T) {
	c := &clock{now: t0}
	p := &fakeProvider{}
	g, cache := newGateway(p, c, "icehockey_nhl")

	require.NoError(t, g.Refresh(context.Background()))
	_, ok, err := cache.Get(context.Background(), "icehockey_nhl")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, g.Refresh(context.Background()))
	assert.Equal(t, 1, p.Calls())
}

func TestSnapshot_NoSports(t *testing.T) {
	g, _ := newGateway(&fakeProvider{}, &clock{now: t0})
	_, err := g.Matches(context.Background(), nil)
	assert.Error(t, err)
}
