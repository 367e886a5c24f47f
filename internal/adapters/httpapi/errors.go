package httpapi

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/propbet/internal/domain"
)

type errorBody struct {
	Error  string           `json:"error"`
	Reason string           `json:"reason"`
	Min    *decimal.Decimal `json:"min,omitempty"`
	Max    *decimal.Decimal `json:"max,omitempty"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrChallengeNotFound),
		errors.Is(err, domain.ErrBetNotFound),
		errors.Is(err, domain.ErrMatchNotFound),
		errors.Is(err, domain.ErrTierNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrBelowMinimum),
		errors.Is(err, domain.ErrAboveMaximum),
		errors.Is(err, domain.ErrSelectionUnavailable),
		errors.Is(err, domain.ErrMatchAlreadyStarted),
		errors.Is(err, domain.ErrDailyGainCapReached):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrDuplicatePendingBet),
		errors.Is(err, domain.ErrBetNotPending),
		errors.Is(err, domain.ErrChallengeNotActive),
		errors.Is(err, domain.ErrConcurrentUpdate):
		return http.StatusConflict
	case errors.Is(err, domain.ErrRateLimited),
		errors.Is(err, domain.ErrUpstreamUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeError maps a service error to its status and JSON body. Stake
// rejections carry the bounds in force when the stake was evaluated.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	body := errorBody{Error: err.Error(), Reason: domain.Code(err)}
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		body.Error = "internal error"
	}

	var se *domain.StakeError
	if errors.As(err, &se) && se.Reason != domain.ErrInvalidAmount {
		lo, hi := se.Min, se.Max
		body.Min, body.Max = &lo, &hi
		body.Error = se.Error()
	}
	writeJSON(w, status, body)
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg, Reason: "bad_request"})
}
