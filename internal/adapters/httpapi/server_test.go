package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/propbet/internal/adapters/storage"
	"github.com/alejandrodnm/propbet/internal/application/challenge"
	"github.com/alejandrodnm/propbet/internal/domain"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

const feedToken = "feed-token"

type staticMatches struct {
	matches []domain.Match
}

func (s *staticMatches) Match(_ context.Context, id string) (domain.Match, error) {
	for _, m := range s.matches {
		if m.ID == id {
			return m, nil
		}
	}
	return domain.Match{}, domain.ErrMatchNotFound
}

func (s *staticMatches) Matches(_ context.Context, sports []string) ([]domain.Match, error) {
	if len(sports) == 0 {
		return s.matches, nil
	}
	var out []domain.Match
	for _, m := range s.matches {
		for _, sp := range sports {
			if m.SportKey == sp {
				out = append(out, m)
			}
		}
	}
	return out, nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	matches := &staticMatches{matches: []domain.Match{{
		ID: "m1", SportKey: "soccer_epl", HomeTeam: "Arsenal", AwayTeam: "Chelsea",
		CommenceTime: t0.Add(48 * time.Hour),
		Odds: domain.Odds{
			Home: decimal.RequireFromString("2.10"),
			Draw: decimal.RequireFromString("3.40"),
			Away: decimal.RequireFromString("3.50"),
		},
	}}}
	svc := challenge.New(challenge.Config{Now: func() time.Time { return t0 }},
		store, domain.DefaultCatalog(), matches, nil)

	srv := httptest.NewServer(New(svc, matches, feedToken).Router())
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, user string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	require.NoError(t, err)
	if user != "" {
		req.Header.Set(UserHeader, user)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// settle posts a result the way the results feed does.
func settle(t *testing.T, srv *httptest.Server, betID, token, result string) *http.Response {
	t.Helper()
	body, err := json.Marshal(map[string]string{"result": result})
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/v1/bets/"+betID+"/settle", bytes.NewReader(body))
	require.NoError(t, err)
	if token != "" {
		req.Header.Set(OperatorHeader, token)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func createChallenge(t *testing.T, srv *httptest.Server, user string) domain.Challenge {
	t.Helper()
	resp := do(t, srv, http.MethodPost, "/v1/challenges", user, map[string]string{"tier_id": "1k"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[domain.Challenge](t, resp)
}

func TestTiersAndMatches(t *testing.T) {
	srv := newTestServer(t)

	resp := do(t, srv, http.MethodGet, "/v1/tiers", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	tiers := decode[[]domain.Tier](t, resp)
	require.Len(t, tiers, 4)
	assert.Equal(t, "demo", tiers[0].ID)

	resp = do(t, srv, http.MethodGet, "/v1/matches?sport=soccer_epl", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]domain.Match](t, resp), 1)

	resp = do(t, srv, http.MethodGet, "/v1/matches?sport=basketball_nba", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[[]domain.Match](t, resp))
}

func TestCreateChallenge_RequiresUser(t *testing.T) {
	srv := newTestServer(t)
	resp := do(t, srv, http.MethodPost, "/v1/challenges", "", map[string]string{"tier_id": "1k"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = do(t, srv, http.MethodPost, "/v1/challenges", "alice", map[string]string{"tier_id": "nope"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "tier_not_found", decode[errorBody](t, resp).Reason)
}

func TestChallengeOwnership(t *testing.T) {
	srv := newTestServer(t)
	ch := createChallenge(t, srv, "alice")

	resp := do(t, srv, http.MethodGet, "/v1/challenges/"+ch.ID, "alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, ch.ID, decode[domain.Challenge](t, resp).ID)

	resp = do(t, srv, http.MethodGet, "/v1/challenges/"+ch.ID, "bob", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = do(t, srv, http.MethodGet, "/v1/challenges/missing", "alice", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = do(t, srv, http.MethodGet, "/v1/challenges", "alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]domain.Challenge](t, resp), 1)
}

func TestPlaceBet_StakeBelowMinimum(t *testing.T) {
	srv := newTestServer(t)
	ch := createChallenge(t, srv, "alice")

	resp := do(t, srv, http.MethodPost, "/v1/challenges/"+ch.ID+"/bets", "alice",
		map[string]any{"match_id": "m1", "selection": "home", "stake": "5"})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	body := decode[errorBody](t, resp)
	assert.Equal(t, "below_minimum", body.Reason)
	assert.Equal(t, "stake 5.00 is below the minimum of 10.00", body.Error)
	require.NotNil(t, body.Min)
	assert.True(t, body.Min.Equal(decimal.NewFromInt(10)))
	require.NotNil(t, body.Max)
	assert.True(t, body.Max.Equal(decimal.NewFromInt(50)))
}

func TestBetLifecycle(t *testing.T) {
	srv := newTestServer(t)
	ch := createChallenge(t, srv, "alice")
	path := "/v1/challenges/" + ch.ID + "/bets"

	resp := do(t, srv, http.MethodPost, path, "alice",
		map[string]any{"match_id": "m1", "selection": "home", "stake": 50})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	bet := decode[domain.Bet](t, resp)
	assert.True(t, bet.PotentialWin.Equal(decimal.RequireFromString("105")))

	resp = do(t, srv, http.MethodPost, path, "alice",
		map[string]any{"match_id": "m1", "selection": "away", "stake": 20})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "duplicate_pending_bet", decode[errorBody](t, resp).Reason)

	resp = do(t, srv, http.MethodPost, "/v1/bets/"+bet.ID+"/cancel", "bob", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = settle(t, srv, bet.ID, feedToken, "home")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	after := decode[domain.Challenge](t, resp)
	assert.True(t, after.CurrentBalance.Equal(decimal.RequireFromString("1055")))

	resp = do(t, srv, http.MethodPost, "/v1/bets/"+bet.ID+"/cancel", "alice", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "bet_not_pending", decode[errorBody](t, resp).Reason)

	resp = do(t, srv, http.MethodGet, path, "alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]domain.Bet](t, resp), 1)

	resp = do(t, srv, http.MethodGet, "/v1/challenges/"+ch.ID+"/progress", "alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	p := decode[domain.Progress](t, resp)
	assert.Equal(t, 1, p.Activity.PicksPlaced)
}

func TestCancelBet_NoContent(t *testing.T) {
	srv := newTestServer(t)
	ch := createChallenge(t, srv, "alice")

	resp := do(t, srv, http.MethodPost, "/v1/challenges/"+ch.ID+"/bets", "alice",
		map[string]any{"match_id": "m1", "selection": "draw", "stake": "12.50"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	bet := decode[domain.Bet](t, resp)

	resp = do(t, srv, http.MethodPost, "/v1/bets/"+bet.ID+"/cancel", "alice", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestBadRequests(t *testing.T) {
	srv := newTestServer(t)
	ch := createChallenge(t, srv, "alice")

	resp := do(t, srv, http.MethodPost, "/v1/challenges/"+ch.ID+"/bets", "alice",
		map[string]any{"selection": "home", "stake": "10"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, srv, http.MethodPost, "/v1/challenges/"+ch.ID+"/bets", "alice",
		map[string]any{"match_id": "m1", "selection": "home", "stake": "10", "odds": "9"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "unknown fields are rejected")
}

func TestPlaceBet_NonNumericStake(t *testing.T) {
	srv := newTestServer(t)
	ch := createChallenge(t, srv, "alice")
	path := "/v1/challenges/" + ch.ID + "/bets"

	for _, stake := range []any{"ten", "", true, nil, map[string]string{"v": "10"}} {
		resp := do(t, srv, http.MethodPost, path, "alice",
			map[string]any{"match_id": "m1", "selection": "home", "stake": stake})
		require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode, "stake %v", stake)
		body := decode[errorBody](t, resp)
		assert.Equal(t, "invalid_amount", body.Reason, "stake %v", stake)
		assert.Nil(t, body.Min)
	}

	resp := do(t, srv, http.MethodGet, path, "alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[[]domain.Bet](t, resp), "rejected stakes never write a bet")
}

func TestParseStake(t *testing.T) {
	for raw, want := range map[string]string{`12.5`: "12.5", `"12.50"`: "12.5", `" 10 "`: "10"} {
		got, err := parseStake(json.RawMessage(raw))
		require.NoError(t, err, raw)
		assert.True(t, got.Equal(decimal.RequireFromString(want)), raw)
	}
	_, err := parseStake(nil)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestSettleBet_RequiresOperatorToken(t *testing.T) {
	srv := newTestServer(t)
	ch := createChallenge(t, srv, "alice")

	resp := do(t, srv, http.MethodPost, "/v1/challenges/"+ch.ID+"/bets", "alice",
		map[string]any{"match_id": "m1", "selection": "home", "stake": "20"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	bet := decode[domain.Bet](t, resp)

	resp = do(t, srv, http.MethodPost, "/v1/bets/"+bet.ID+"/settle", "alice", map[string]string{"result": "home"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode, "the bettor cannot settle")

	resp = settle(t, srv, bet.ID, "wrong", "home")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = do(t, srv, http.MethodGet, "/v1/challenges/"+ch.ID+"/bets", "alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	bets := decode[[]domain.Bet](t, resp)
	require.Len(t, bets, 1)
	assert.Equal(t, domain.ResultPending, bets[0].Result)

	resp = settle(t, srv, bet.ID, feedToken, "home")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSettleBet_ClosedWithoutToken(t *testing.T) {
	h := New(nil, nil, "").Router()
	req := httptest.NewRequest(http.MethodPost, "/v1/bets/b1/settle", bytes.NewBufferString(`{"result":"home"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(&domain.RateLimitedError{RetryAfter: time.Minute}))
	assert.Equal(t, http.StatusConflict, statusFor(domain.ErrConcurrentUpdate))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(domain.ErrDailyGainCapReached))
	assert.Equal(t, http.StatusInternalServerError, statusFor(assert.AnError))
}
