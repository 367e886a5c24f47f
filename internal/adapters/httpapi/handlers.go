package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/propbet/internal/domain"
)

func (a *API) listTiers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.svc.Tiers())
}

// listMatches accepts ?sport=a,b; without it every configured sport is
// listed. Upstream trouble yields the last known matches, possibly none.
func (a *API) listMatches(w http.ResponseWriter, r *http.Request) {
	var sports []string
	if q := r.URL.Query().Get("sport"); q != "" {
		for _, s := range strings.Split(q, ",") {
			if s = strings.TrimSpace(s); s != "" {
				sports = append(sports, s)
			}
		}
	}
	matches, err := a.matches.Matches(r.Context(), sports)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if matches == nil {
		matches = []domain.Match{}
	}
	writeJSON(w, http.StatusOK, matches)
}

type createChallengeRequest struct {
	TierID string `json:"tier_id"`
}

func (a *API) createChallenge(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req createChallengeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, fmt.Sprintf("invalid body: %v", err))
		return
	}
	ch, err := a.svc.CreateChallenge(r.Context(), user, req.TierID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ch)
}

func (a *API) listChallenges(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	list, err := a.svc.ListChallenges(r.Context(), user)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if list == nil {
		list = []domain.Challenge{}
	}
	writeJSON(w, http.StatusOK, list)
}

// ownedChallenge loads the challenge in the URL and checks it belongs to
// the caller. It writes the error response itself.
func (a *API) ownedChallenge(w http.ResponseWriter, r *http.Request) (domain.Challenge, bool) {
	user, ok := requireUser(w, r)
	if !ok {
		return domain.Challenge{}, false
	}
	ch, err := a.svc.GetChallengeStatus(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return domain.Challenge{}, false
	}
	if ch.UserID != user {
		writeError(w, r, fmt.Errorf("challenge %s: %w", ch.ID, domain.ErrForbidden))
		return domain.Challenge{}, false
	}
	return ch, true
}

func (a *API) getChallenge(w http.ResponseWriter, r *http.Request) {
	ch, ok := a.ownedChallenge(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ch)
}

func (a *API) getProgress(w http.ResponseWriter, r *http.Request) {
	ch, ok := a.ownedChallenge(w, r)
	if !ok {
		return
	}
	p, err := a.svc.Progress(r.Context(), ch.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) listBets(w http.ResponseWriter, r *http.Request) {
	ch, ok := a.ownedChallenge(w, r)
	if !ok {
		return
	}
	bets, err := a.svc.ListBets(r.Context(), ch.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if bets == nil {
		bets = []domain.Bet{}
	}
	writeJSON(w, http.StatusOK, bets)
}

type placeBetRequest struct {
	MatchID   string          `json:"match_id"`
	Selection string          `json:"selection"`
	Stake     json.RawMessage `json:"stake"`
}

// parseStake accepts the stake as a JSON number or a numeric string.
// Anything else is an invalid amount, not a malformed body.
func parseStake(raw json.RawMessage) (decimal.Decimal, error) {
	text := strings.TrimSpace(string(raw))
	if text == "" || text == "null" {
		return decimal.Zero, &domain.StakeError{Reason: domain.ErrInvalidAmount}
	}
	if strings.HasPrefix(text, `"`) {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return decimal.Zero, &domain.StakeError{Reason: domain.ErrInvalidAmount}
		}
		text = strings.TrimSpace(s)
	}
	stake, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero, &domain.StakeError{Reason: domain.ErrInvalidAmount}
	}
	return stake, nil
}

func (a *API) placeBet(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req placeBetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, fmt.Sprintf("invalid body: %v", err))
		return
	}
	if req.MatchID == "" {
		writeBadRequest(w, "match_id is required")
		return
	}
	stake, err := parseStake(req.Stake)
	if err != nil {
		writeError(w, r, err)
		return
	}
	bet, err := a.svc.PlaceBet(r.Context(), chi.URLParam(r, "id"), domain.BetRequest{
		UserID:    user,
		MatchID:   req.MatchID,
		Selection: domain.Selection(req.Selection),
		Stake:     stake,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, bet)
}

type settleRequest struct {
	Result string `json:"result"`
}

// settleBet is called by the results feed, not by the bettor. It is only
// reachable through requireOperator.
func (a *API) settleBet(w http.ResponseWriter, r *http.Request) {
	var req settleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, fmt.Sprintf("invalid body: %v", err))
		return
	}
	ch, err := a.svc.SettleBet(r.Context(), chi.URLParam(r, "id"), req.Result)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ch)
}

func (a *API) cancelBet(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	bet, err := a.svc.GetBet(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if bet.UserID != user {
		writeError(w, r, fmt.Errorf("bet %s: %w", id, domain.ErrForbidden))
		return
	}
	if err := a.svc.CancelBet(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
