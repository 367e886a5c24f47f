package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Stake validation.
var (
	ErrInvalidAmount = errors.New("invalid stake amount")
	ErrBelowMinimum  = errors.New("stake below minimum")
	ErrAboveMaximum  = errors.New("stake above maximum")
)

// Placement, settlement and lifecycle rules.
var (
	ErrDuplicatePendingBet  = errors.New("a pending pick already exists on this match")
	ErrMatchAlreadyStarted  = errors.New("match already started")
	ErrChallengeNotActive   = errors.New("challenge is not active")
	ErrDailyGainCapReached  = errors.New("daily gain cap reached")
	ErrBetNotPending        = errors.New("bet is not pending")
	ErrSelectionUnavailable = errors.New("selection not offered for this match")
	ErrConcurrentUpdate     = errors.New("challenge was modified concurrently")
	ErrForbidden            = errors.New("challenge belongs to another user")
)

// Lookups.
var (
	ErrTierNotFound      = errors.New("tier not found")
	ErrChallengeNotFound = errors.New("challenge not found")
	ErrBetNotFound       = errors.New("bet not found")
	ErrMatchNotFound     = errors.New("match not found")
)

// Odds gateway.
var (
	ErrUpstreamUnavailable = errors.New("odds upstream unavailable")
	ErrRateLimited         = errors.New("odds upstream rate limited")
)

// StakeError is a stake rejection carrying the bounds computed against the
// balance at evaluation time.
type StakeError struct {
	Reason error
	Stake  decimal.Decimal
	Min    decimal.Decimal
	Max    decimal.Decimal
}

func (e *StakeError) Error() string {
	switch e.Reason {
	case ErrBelowMinimum:
		return fmt.Sprintf("stake %s is below the minimum of %s", e.Stake.StringFixed(2), e.Min.StringFixed(2))
	case ErrAboveMaximum:
		return fmt.Sprintf("stake %s is above the maximum of %s", e.Stake.StringFixed(2), e.Max.StringFixed(2))
	default:
		return fmt.Sprintf("%v: stake must be a positive amount", e.Reason)
	}
}

func (e *StakeError) Unwrap() error { return e.Reason }

// RateLimitedError is returned by odds providers when the upstream asks the
// caller to back off.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("odds upstream rate limited, retry after %s", e.RetryAfter)
}

func (e *RateLimitedError) Unwrap() error { return ErrRateLimited }

// UpstreamError wraps any other odds provider failure.
type UpstreamError struct {
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("odds upstream status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("odds upstream: %v", e.Err)
}

func (e *UpstreamError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrUpstreamUnavailable}
	}
	return []error{ErrUpstreamUnavailable, e.Err}
}

var codes = []struct {
	err  error
	code string
}{
	{ErrInvalidAmount, "invalid_amount"},
	{ErrBelowMinimum, "below_minimum"},
	{ErrAboveMaximum, "above_maximum"},
	{ErrDuplicatePendingBet, "duplicate_pending_bet"},
	{ErrMatchAlreadyStarted, "match_already_started"},
	{ErrChallengeNotActive, "challenge_not_active"},
	{ErrDailyGainCapReached, "daily_gain_cap_reached"},
	{ErrBetNotPending, "bet_not_pending"},
	{ErrSelectionUnavailable, "selection_unavailable"},
	{ErrConcurrentUpdate, "concurrent_update"},
	{ErrForbidden, "forbidden"},
	{ErrTierNotFound, "tier_not_found"},
	{ErrChallengeNotFound, "challenge_not_found"},
	{ErrBetNotFound, "bet_not_found"},
	{ErrMatchNotFound, "match_not_found"},
	{ErrRateLimited, "rate_limited"},
	{ErrUpstreamUnavailable, "upstream_unavailable"},
}

// Code returns a stable snake_case identifier for a domain error, or
// "internal" for anything else.
func Code(err error) string {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "internal"
}
