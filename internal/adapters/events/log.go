package events

import (
	"context"
	"log/slog"

	"github.com/alejandrodnm/propbet/internal/domain"
	"github.com/alejandrodnm/propbet/internal/ports"
)

// LogPublisher writes events to a structured logger. Used when no broker
// is configured.
type LogPublisher struct {
	logger *slog.Logger
}

var _ ports.EventPublisher = (*LogPublisher)(nil)

// NewLogPublisher uses slog.Default() when logger is nil.
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, e domain.ChallengeEvent) error {
	attrs := []any{
		"event_id", e.ID,
		"challenge_id", e.ChallengeID,
		"user_id", e.UserID,
		"tier", e.TierID,
		"phase", e.Phase,
		"status", e.Status,
		"balance", e.Balance.StringFixed(2),
	}
	if e.Reason != domain.FailNone {
		attrs = append(attrs, "reason", e.Reason)
	}
	if e.Funded != nil {
		attrs = append(attrs, "funded_capital", e.Funded.Capital.StringFixed(2))
	}
	p.logger.InfoContext(ctx, string(e.Type), attrs...)
	return nil
}

func (p *LogPublisher) Close() error { return nil }
