package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransitionKind is what a progression evaluation decided.
type TransitionKind string

const (
	TransitionNone          TransitionKind = "none"
	TransitionFailed        TransitionKind = "failed"
	TransitionPhaseAdvanced TransitionKind = "phase_advanced"
	TransitionCompleted     TransitionKind = "completed"
)

// Transition is the result of EvaluateProgression. Apply it to move the
// challenge; a TransitionNone is a no-op.
type Transition struct {
	Kind       TransitionKind
	Reason     FailReason
	FromPhase  int
	ToPhase    int
	NextTarget decimal.Decimal
	At         time.Time
}

// Changed reports whether applying the transition mutates the challenge.
func (t Transition) Changed() bool { return t.Kind != TransitionNone }

// EvaluateProgression decides the next state of a challenge. ledger must be
// the ledger of the day containing now; a ledger of any other day counts as
// an empty day. activity is counted since the current phase started.
//
// Failure rules run before success rules. Terminal challenges always yield
// TransitionNone.
func EvaluateProgression(ch Challenge, tier Tier, ledger DailyLedger, activity Activity, now time.Time) Transition {
	now = now.UTC()
	t := Transition{Kind: TransitionNone, FromPhase: ch.Phase, ToPhase: ch.Phase, At: now}
	if !ch.IsActive() {
		return t
	}

	if ledger.IsFor(now) && ledger.TodayLoss().GreaterThan(ch.MaxDailyLoss) {
		return t.fail(FailDailyLoss)
	}
	if ch.InitialBalance.Sub(ch.CurrentBalance).GreaterThan(ch.MaxTotalLoss) {
		return t.fail(FailTotalLoss)
	}

	targetMet := ch.Profit().GreaterThanOrEqual(ch.TargetProfit)
	if !targetMet && now.After(ch.PhaseDeadline(tier)) {
		return t.fail(FailDurationExpired)
	}

	if !targetMet || activity.PicksPlaced < tier.MinPicks || activity.ActiveDays < tier.MinActiveDays {
		return t
	}
	if ch.Phase == 1 && tier.HasPhase2() {
		t.Kind = TransitionPhaseAdvanced
		t.ToPhase = 2
		t.NextTarget = tier.TargetProfitPhase2
		return t
	}
	t.Kind = TransitionCompleted
	return t
}

func (t Transition) fail(reason FailReason) Transition {
	t.Kind = TransitionFailed
	t.Reason = reason
	return t
}

// Apply moves the challenge according to the transition. Phase advances
// restart the phase clock and carry the balance forward unchanged.
func (t Transition) Apply(ch *Challenge) {
	if !ch.IsActive() {
		return
	}
	switch t.Kind {
	case TransitionFailed:
		end := t.At
		ch.Status = StatusFailed
		ch.FailReason = t.Reason
		ch.EndDate = &end
	case TransitionCompleted:
		end := t.At
		ch.Status = StatusCompleted
		ch.EndDate = &end
	case TransitionPhaseAdvanced:
		if ch.Phase != 1 || t.ToPhase != 2 {
			return
		}
		ch.Phase = 2
		ch.StartDate = t.At
		ch.TargetProfit = t.NextTarget
		ch.PhaseStartBalance = ch.CurrentBalance
	default:
		return
	}
	ch.UpdatedAt = t.At
}
