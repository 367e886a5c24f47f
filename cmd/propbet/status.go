package main

import (
	"context"
	"fmt"

	"github.com/alejandrodnm/propbet/config"
	"github.com/alejandrodnm/propbet/internal/adapters/notify"
	"github.com/alejandrodnm/propbet/internal/domain"
)

type statusOptions struct {
	table       bool
	challengeID string
	userID      string
}

// runStatus prints the progress of the selected challenges. Reading a
// challenge evaluates it, so overdue transitions are persisted here too.
func runStatus(ctx context.Context, cfg *config.Config, opts statusOptions) error {
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	console := notify.NewConsole(opts.table)

	if opts.challengeID != "" {
		p, err := a.service.Progress(ctx, opts.challengeID)
		if err != nil {
			return err
		}
		if err := console.NotifyProgress(ctx, []domain.Progress{p}); err != nil {
			return err
		}
		days, err := a.store.ListDailyLedgers(ctx, opts.challengeID)
		if err != nil {
			return err
		}
		return console.PrintLedger(opts.challengeID, days)
	}

	list, err := a.service.ListChallenges(ctx, opts.userID)
	if err != nil {
		return err
	}
	progress := make([]domain.Progress, 0, len(list))
	for _, ch := range list {
		p, err := a.service.Progress(ctx, ch.ID)
		if err != nil {
			return fmt.Errorf("progress %s: %w", ch.ID, err)
		}
		progress = append(progress, p)
	}
	return console.NotifyProgress(ctx, progress)
}
