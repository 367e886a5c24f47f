package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/alejandrodnm/propbet/internal/domain"
)

func (t *sqliteTx) DailyLedger(ctx context.Context, challengeID string, day time.Time) (domain.DailyLedger, bool, error) {
	row := t.q.QueryRowContext(ctx, `
		SELECT challenge_id, day, day_start_balance, realized_pnl, bets_placed, bets_settled
		FROM challenge_daily WHERE challenge_id = ? AND day = ?`,
		challengeID, domain.Day(day).Format(dayLayout))
	l, err := scanLedger(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.DailyLedger{}, false, nil
	}
	if err != nil {
		return domain.DailyLedger{}, false, fmt.Errorf("storage.DailyLedger: %w", err)
	}
	return l, true, nil
}

// SaveDailyLedger upserts the day's row.
func (t *sqliteTx) SaveDailyLedger(ctx context.Context, l domain.DailyLedger) error {
	_, err := t.q.ExecContext(ctx, `
		INSERT INTO challenge_daily (challenge_id, day, day_start_balance, realized_pnl, bets_placed, bets_settled)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(challenge_id, day) DO UPDATE SET
		    realized_pnl = excluded.realized_pnl,
		    bets_placed  = excluded.bets_placed,
		    bets_settled = excluded.bets_settled`,
		l.ChallengeID, domain.Day(l.Day).Format(dayLayout), l.DayStartBalance.String(),
		l.RealizedPnL.String(), l.BetsPlaced, l.BetsSettled,
	)
	if err != nil {
		return fmt.Errorf("storage.SaveDailyLedger: %w", err)
	}
	return nil
}

func scanLedger(r rowScanner) (domain.DailyLedger, error) {
	var l domain.DailyLedger
	var day, startBal, realized string
	if err := r.Scan(&l.ChallengeID, &day, &startBal, &realized, &l.BetsPlaced, &l.BetsSettled); err != nil {
		return domain.DailyLedger{}, err
	}
	var dc decoder
	l.Day = dc.day(day)
	l.DayStartBalance = dc.money(startBal)
	l.RealizedPnL = dc.money(realized)
	return l, dc.err
}
