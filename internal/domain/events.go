package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventType names a challenge lifecycle event.
type EventType string

const (
	EventChallengeCreated  EventType = "challenge.created"
	EventPhaseAdvanced     EventType = "challenge.phase_advanced"
	EventChallengeFailed   EventType = "challenge.failed"
	EventChallengeComplete EventType = "challenge.completed"
)

// FundedAccountProposal is emitted when a challenge completes. Creating the
// funded account itself happens outside this service.
type FundedAccountProposal struct {
	UserID         string          `json:"user_id"`
	ChallengeID    string          `json:"challenge_id"`
	TierID         string          `json:"tier_id"`
	Capital        decimal.Decimal `json:"capital"`
	TraderShare    decimal.Decimal `json:"trader_share"`
	PlatformShare  decimal.Decimal `json:"platform_share"`
	PromoOnSuccess bool            `json:"promo_on_success"`
	Demo           bool            `json:"demo"`
}

// ChallengeEvent is published on every challenge lifecycle change.
type ChallengeEvent struct {
	ID          string                 `json:"id"`
	Type        EventType              `json:"type"`
	ChallengeID string                 `json:"challenge_id"`
	UserID      string                 `json:"user_id"`
	TierID      string                 `json:"tier_id"`
	Phase       int                    `json:"phase"`
	Status      ChallengeStatus        `json:"status"`
	Reason      FailReason             `json:"reason,omitempty"`
	Balance     decimal.Decimal        `json:"balance"`
	OccurredAt  time.Time              `json:"occurred_at"`
	Funded      *FundedAccountProposal `json:"funded,omitempty"`
}

// NewCreatedEvent describes a freshly opened challenge.
func NewCreatedEvent(id string, ch Challenge) ChallengeEvent {
	return newEvent(id, EventChallengeCreated, ch, ch.CreatedAt)
}

// EventForTransition describes an applied transition. ch must already carry
// the transition. ok is false for TransitionNone.
func EventForTransition(id string, ch Challenge, tier Tier, t Transition) (ChallengeEvent, bool) {
	var typ EventType
	switch t.Kind {
	case TransitionFailed:
		typ = EventChallengeFailed
	case TransitionPhaseAdvanced:
		typ = EventPhaseAdvanced
	case TransitionCompleted:
		typ = EventChallengeComplete
	default:
		return ChallengeEvent{}, false
	}
	ev := newEvent(id, typ, ch, t.At)
	ev.Reason = t.Reason
	if t.Kind == TransitionCompleted {
		ev.Funded = &FundedAccountProposal{
			UserID:         ch.UserID,
			ChallengeID:    ch.ID,
			TierID:         tier.ID,
			Capital:        tier.InitialBalance,
			TraderShare:    TraderShare,
			PlatformShare:  PlatformShare,
			PromoOnSuccess: tier.PromoOnSuccess,
			Demo:           tier.IsDemo,
		}
	}
	return ev, true
}

func newEvent(id string, typ EventType, ch Challenge, at time.Time) ChallengeEvent {
	return ChallengeEvent{
		ID:          id,
		Type:        typ,
		ChallengeID: ch.ID,
		UserID:      ch.UserID,
		TierID:      ch.TierID,
		Phase:       ch.Phase,
		Status:      ch.Status,
		Balance:     ch.CurrentBalance,
		OccurredAt:  at.UTC(),
	}
}
