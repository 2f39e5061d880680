package services

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DayWindow returns the [start, end) bounds of the contribution day holding
// t. Days begin at the configured cutoff hour in the cadence timezone.
func (s *ContributionService) DayWindow(t time.Time) (time.Time, time.Time) {
	loc := s.cfg.Location()
	local := t.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), s.cfg.CutoffHour, 0, 0, 0, loc)
	if local.Before(start) {
		start = start.AddDate(0, 0, -1)
	}
	return start, start.AddDate(0, 0, 1)
}

// PreviousDay returns the start of the last fully elapsed contribution day.
func (s *ContributionService) PreviousDay(now time.Time) time.Time {
	start, _ := s.DayWindow(now)
	return start.AddDate(0, 0, -1)
}

// PenaltyFor maps a consecutive-miss counter to its penalty tier. Misses past
// the last tier pay the last tier.
func (s *ContributionService) PenaltyFor(consecutive int) decimal.Decimal {
	tiers := s.cfg.PenaltyTiers
	if len(tiers) == 0 || consecutive < 1 {
		return decimal.Zero
	}
	idx := consecutive - 1
	if idx >= len(tiers) {
		idx = len(tiers) - 1
	}
	return decimal.NewFromFloat(tiers[idx])
}

// SweepMissedContributions records a missed day for every member who had
// no completed contribution during the day containing day. Re-running it
// for the same day changes nothing.
func (s *ContributionService) SweepMissedContributions(ctx context.Context, day time.Time) (int, error) {
	start, end := s.DayWindow(day)
	missedDate := start.Format("2006-01-02")

	rows, err := s.store.DB().QueryContext(ctx, `
		SELECT u.id FROM users u
		WHERE u.created_at < $1
		AND NOT EXISTS (
			SELECT 1 FROM transactions t
			WHERE t.user_id = u.id AND t.kind = 'contribution' AND t.status = 'completed'
			AND t.settled_at >= $1 AND t.settled_at < $2
		)
		AND NOT EXISTS (
			SELECT 1 FROM missed_contributions m WHERE m.user_id = u.id AND m.missed_date = $3
		)
		ORDER BY u.id`, start, end, missedDate)
	if err != nil {
		return 0, fmt.Errorf("find members without contribution: %w", err)
	}

	var userIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		userIDs = append(userIDs, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	recorded := 0
	for _, userID := range userIDs {
		ok, err := s.recordMiss(ctx, userID, missedDate)
		if err != nil {
			s.log.Error().Err(err).Int64("user_id", userID).Str("day", missedDate).Msg("failed to record missed contribution")
			continue
		}
		if ok {
			recorded++
		}
	}

	s.log.Info().Str("day", missedDate).Int("candidates", len(userIDs)).Int("recorded", recorded).Msg("missed contribution sweep finished")
	return recorded, nil
}

func (s *ContributionService) recordMiss(ctx context.Context, userID int64, missedDate string) (bool, error) {
	tx, err := s.store.DB().BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var prior int
	if err := tx.QueryRowContext(ctx, `SELECT consecutive_misses FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&prior); err != nil {
		return false, err
	}

	consecutive := prior + 1
	penalty := s.PenaltyFor(consecutive)

	result, err := tx.ExecContext(ctx, `
		INSERT INTO missed_contributions (user_id, missed_date, consecutive_misses, penalty_amount, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, missed_date) DO NOTHING`,
		userID, missedDate, consecutive, penalty, s.now().UTC())
	if err != nil {
		return false, err
	}
	if inserted, _ := result.RowsAffected(); inserted == 0 {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx, `UPDATE users SET consecutive_misses = $2 WHERE id = $1`, userID, consecutive); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}
