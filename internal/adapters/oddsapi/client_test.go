package oddsapi_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alejandrodnm/propbet/internal/adapters/oddsapi"
	"github.com/alejandrodnm/propbet/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(srv *httptest.Server) *oddsapi.Client {
	return oddsapi.NewClient(oddsapi.Config{
		BaseURL:        srv.URL,
		APIKey:         "test-key",
		RequestsPerSec: 1000,
		RetryWait:      time.Millisecond,
	})
}

func TestFetchOdds_Success(t *testing.T) {
	data, err := os.ReadFile("testdata/odds_soccer_epl.json")
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v4/sports/soccer_epl/odds", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("apiKey"))
		assert.Equal(t, "h2h", r.URL.Query().Get("markets"))
		assert.Equal(t, "decimal", r.URL.Query().Get("oddsFormat"))
		assert.Equal(t, "eu", r.URL.Query().Get("regions"))
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("x-requests-remaining", "480")
		w.Write(data)
	}))
	defer srv.Close()

	matches, err := newTestClient(srv).FetchOdds(context.Background(), []string{"soccer_epl"})
	require.NoError(t, err)
	require.Len(t, matches, 2)

	m := matches[0]
	assert.Equal(t, "e912304de2b2ce35b473ce2ecd3d1502", m.ID)
	assert.Equal(t, "Arsenal", m.HomeTeam)
	assert.Equal(t, "Chelsea", m.AwayTeam)
	assert.Equal(t, "pinnacle", m.Bookmaker)
	assert.True(t, m.CommenceTime.Equal(time.Date(2026, 3, 7, 15, 0, 0, 0, time.UTC)))
	assert.True(t, m.Odds.Home.Equal(decimal.RequireFromString("1.95")))
	assert.True(t, m.Odds.Draw.Equal(decimal.RequireFromString("3.6")))
	assert.True(t, m.Odds.Away.Equal(decimal.RequireFromString("3.9")))

	assert.Equal(t, "betfair_ex_eu", matches[1].Bookmaker, "falls through bookmakers without h2h")
}

func TestFetchOdds_RateLimited(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Retry-After", "42")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).FetchOdds(context.Background(), []string{"soccer_epl", "basketball_nba"})
	var rl *domain.RateLimitedError
	require.True(t, errors.As(err, &rl))
	assert.Equal(t, 42*time.Second, rl.RetryAfter)
	assert.ErrorIs(t, err, domain.ErrRateLimited)
	assert.Equal(t, int32(1), calls.Load(), "no retry and no further sports after a 429")
}

func TestFetchOdds_ServerErrorRetriesThenFails(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).FetchOdds(context.Background(), []string{"soccer_epl"})
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
	var ue *domain.UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, http.StatusBadGateway, ue.StatusCode)
	assert.Equal(t, int32(4), calls.Load())
}

func TestFetchOdds_RecoversAfterTransientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	matches, err := newTestClient(srv).FetchOdds(context.Background(), []string{"soccer_epl"})
	require.NoError(t, err)
	assert.Empty(t, matches)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetchOdds_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"API key is not valid"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv).FetchOdds(context.Background(), []string{"soccer_epl"})
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
	assert.Contains(t, err.Error(), "API key is not valid")
	assert.Equal(t, int32(1), calls.Load())
}
