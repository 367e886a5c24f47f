package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/alejandrodnm/propbet/internal/domain"
)

const betColumns = `id, challenge_id, user_id, match_id, sport, home_team, away_team,
	event_description, bet_type, selection, odds, stake, potential_win, balance_at_placement,
	result, profit_loss, gain_clipped, commence_time, placed_at, resolved_at`

func (t *sqliteTx) InsertBet(ctx context.Context, b domain.Bet) error {
	_, err := t.q.ExecContext(ctx, `
		INSERT INTO bets (`+betColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.ChallengeID, b.UserID, b.MatchID, b.Sport, b.HomeTeam, b.AwayTeam,
		b.EventDescription, b.BetType, string(b.Selection),
		b.Odds.String(), b.Stake.String(), b.PotentialWin.String(), b.BalanceAtPlacement.String(),
		string(b.Result), formatNullMoney(b.ProfitLoss), b.GainClipped.String(),
		formatTime(b.CommenceTime), formatTime(b.PlacedAt), formatNullTime(b.ResolvedAt),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("storage.InsertBet: %s on %s: %w", b.UserID, b.MatchID, domain.ErrDuplicatePendingBet)
	}
	if err != nil {
		return fmt.Errorf("storage.InsertBet: %w", err)
	}
	return nil
}

func (t *sqliteTx) GetBet(ctx context.Context, id string) (domain.Bet, error) {
	return getBet(ctx, t.q, id)
}

func (t *sqliteTx) ResolveBet(ctx context.Context, b domain.Bet) error {
	res, err := t.q.ExecContext(ctx, `
		UPDATE bets SET result = ?, profit_loss = ?, gain_clipped = ?, resolved_at = ?
		WHERE id = ? AND result = ?`,
		string(b.Result), formatNullMoney(b.ProfitLoss), b.GainClipped.String(), formatNullTime(b.ResolvedAt),
		b.ID, string(domain.ResultPending),
	)
	if err != nil {
		return fmt.Errorf("storage.ResolveBet: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("storage.ResolveBet: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("storage.ResolveBet: %s: %w", b.ID, domain.ErrBetNotPending)
	}
	return nil
}

func (t *sqliteTx) ListPendingBets(ctx context.Context, challengeID string) ([]domain.Bet, error) {
	return queryBets(ctx, t.q,
		`SELECT `+betColumns+` FROM bets WHERE challenge_id = ? AND result = ? ORDER BY placed_at`,
		challengeID, string(domain.ResultPending))
}

func (t *sqliteTx) HasPendingBetOnMatch(ctx context.Context, userID, matchID string) (bool, error) {
	var n int
	err := t.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bets WHERE user_id = ? AND match_id = ? AND result = ?`,
		userID, matchID, string(domain.ResultPending),
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("storage.HasPendingBetOnMatch: %w", err)
	}
	return n > 0, nil
}

func getBet(ctx context.Context, q querier, id string) (domain.Bet, error) {
	row := q.QueryRowContext(ctx, `SELECT `+betColumns+` FROM bets WHERE id = ?`, id)
	b, err := scanBet(row)
	if err != nil {
		return domain.Bet{}, fmt.Errorf("storage.GetBet: %s: %w", id, notFound(err, domain.ErrBetNotFound))
	}
	return b, nil
}

// queryBets is a helper to scan rows into Bet slices.
func queryBets(ctx context.Context, q querier, query string, args ...any) ([]domain.Bet, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage.queryBets: %w", err)
	}
	defer rows.Close()

	var out []domain.Bet
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, fmt.Errorf("storage.queryBets: scan: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func scanBet(r rowScanner) (domain.Bet, error) {
	var b domain.Bet
	var selection, result string
	var odds, stake, potential, balance, gain string
	var commence, placed string
	var profitLoss, resolvedAt sql.NullString
	if err := r.Scan(
		&b.ID, &b.ChallengeID, &b.UserID, &b.MatchID, &b.Sport, &b.HomeTeam, &b.AwayTeam,
		&b.EventDescription, &b.BetType, &selection, &odds, &stake, &potential, &balance,
		&result, &profitLoss, &gain, &commence, &placed, &resolvedAt,
	); err != nil {
		return domain.Bet{}, err
	}

	var dc decoder
	b.Selection = domain.Selection(selection)
	b.Result = domain.BetResult(result)
	b.Odds = dc.money(odds)
	b.Stake = dc.money(stake)
	b.PotentialWin = dc.money(potential)
	b.BalanceAtPlacement = dc.money(balance)
	b.ProfitLoss = dc.nullMoney(profitLoss)
	b.GainClipped = dc.money(gain)
	b.CommenceTime = dc.time(commence)
	b.PlacedAt = dc.time(placed)
	b.ResolvedAt = dc.nullTime(resolvedAt)
	return b, dc.err
}
