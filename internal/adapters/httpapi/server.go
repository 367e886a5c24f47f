// Package httpapi exposes the challenge service over JSON/HTTP.
//
// The caller is identified by the opaque X-User-ID header; authenticating
// it is the job of whatever sits in front of this service.
package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/alejandrodnm/propbet/internal/domain"
)

// UserHeader carries the caller's user ID.
const UserHeader = "X-User-ID"

// OperatorHeader carries the shared token of the results feed. Settlement
// routes reject requests without it.
const OperatorHeader = "X-Operator-Token"

// ChallengeService is what the API needs from challenge.Service.
type ChallengeService interface {
	Tiers() []domain.Tier
	CreateChallenge(ctx context.Context, userID, tierID string) (domain.Challenge, error)
	GetChallengeStatus(ctx context.Context, challengeID string) (domain.Challenge, error)
	Progress(ctx context.Context, challengeID string) (domain.Progress, error)
	ListChallenges(ctx context.Context, userID string) ([]domain.Challenge, error)
	PlaceBet(ctx context.Context, challengeID string, req domain.BetRequest) (domain.Bet, error)
	SettleBet(ctx context.Context, betID, matchResult string) (domain.Challenge, error)
	CancelBet(ctx context.Context, betID string) error
	GetBet(ctx context.Context, betID string) (domain.Bet, error)
	ListBets(ctx context.Context, challengeID string) ([]domain.Bet, error)
}

// MatchLister lists upcoming matches, see odds.Gateway.
type MatchLister interface {
	Matches(ctx context.Context, sportKeys []string) ([]domain.Match, error)
}

// API groups the REST handlers.
type API struct {
	svc           ChallengeService
	matches       MatchLister
	operatorToken string
}

// New builds the API. With an empty operatorToken the settlement route is
// closed to everyone.
func New(svc ChallengeService, matches MatchLister, operatorToken string) *API {
	return &API{svc: svc, matches: matches, operatorToken: operatorToken}
}

// Router returns the HTTP handler with every /v1 route mounted.
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(logRequests)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/tiers", a.listTiers)
		r.Get("/matches", a.listMatches)

		r.Post("/challenges", a.createChallenge)
		r.Get("/challenges", a.listChallenges)
		r.Get("/challenges/{id}", a.getChallenge)
		r.Get("/challenges/{id}/progress", a.getProgress)
		r.Get("/challenges/{id}/bets", a.listBets)
		r.Post("/challenges/{id}/bets", a.placeBet)

		r.Post("/bets/{id}/cancel", a.cancelBet)

		r.Group(func(r chi.Router) {
			r.Use(a.requireOperator)
			r.Post("/bets/{id}/settle", a.settleBet)
		})
	})
	return r
}

// NewServer wraps the router in an http.Server with the timeouts used in
// production.
func NewServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"elapsed", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (a *API) requireOperator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get(OperatorHeader)
		if a.operatorToken == "" || subtle.ConstantTimeCompare([]byte(got), []byte(a.operatorToken)) != 1 {
			writeJSON(w, http.StatusForbidden, errorBody{Error: "operator token required", Reason: "forbidden"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func userID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(UserHeader))
}

// requireUser writes 401 and returns false when the caller is anonymous.
func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	u := userID(r)
	if u == "" {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "missing " + UserHeader + " header", Reason: "unauthenticated"})
		return "", false
	}
	return u, true
}
