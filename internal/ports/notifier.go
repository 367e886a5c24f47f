package ports

import (
	"context"

	"github.com/alejandrodnm/propbet/internal/domain"
)

// Notifier presents challenge progress to an operator.
type Notifier interface {
	// NotifyProgress renders the given challenges. The console
	// implementation prints a table.
	NotifyProgress(ctx context.Context, progress []domain.Progress) error
}

// EventPublisher emits challenge lifecycle events to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.ChallengeEvent) error
	Close() error
}
