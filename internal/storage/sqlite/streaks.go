package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	apperrors "github.com/julianstephens/habitual/internal/errors"
	"github.com/julianstephens/habitual/internal/models"
)

const streakColumns = `habit_id, user_id, current_streak, longest_streak, last_completion_date,
	streak_start_date, version, created_at, updated_at`

func (s *Store) GetStreak(ctx context.Context, habitID string) (models.Streak, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+streakColumns+" FROM streaks WHERE habit_id = ?", habitID)
	st, err := scanStreak(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Streak{}, fmt.Errorf("streak for habit %s: %w", habitID, apperrors.ErrNotFound)
	}
	return st, err
}

func (s *Store) SaveStreak(ctx context.Context, st models.Streak, expectedVersion int) (models.Streak, error) {
	next := expectedVersion + 1

	res, err := s.db.ExecContext(ctx, `
		UPDATE streaks SET
			current_streak = ?, longest_streak = ?, last_completion_date = ?,
			streak_start_date = ?, version = ?, updated_at = ?
		WHERE habit_id = ? AND version = ?`,
		st.CurrentStreak, st.LongestStreak, formatTimePtr(st.LastCompletionDate),
		formatTimePtr(st.StreakStartDate), next, formatTime(st.UpdatedAt),
		st.HabitID, expectedVersion)
	if err != nil {
		return models.Streak{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return models.Streak{}, err
	}

	if n == 0 {
		if expectedVersion != 0 {
			return models.Streak{}, fmt.Errorf("streak for habit %s changed since version %d: %w", st.HabitID, expectedVersion, apperrors.ErrConflict)
		}
		// Habits created before streak rows existed have no record yet.
		res, err = s.db.ExecContext(ctx, `
			INSERT INTO streaks (`+streakColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(habit_id) DO NOTHING`,
			st.HabitID, st.UserID, st.CurrentStreak, st.LongestStreak,
			formatTimePtr(st.LastCompletionDate), formatTimePtr(st.StreakStartDate),
			next, formatTime(st.UpdatedAt), formatTime(st.UpdatedAt))
		if err != nil {
			return models.Streak{}, err
		}
		if n, err = res.RowsAffected(); err != nil {
			return models.Streak{}, err
		}
		if n == 0 {
			return models.Streak{}, fmt.Errorf("streak for habit %s changed since version %d: %w", st.HabitID, expectedVersion, apperrors.ErrConflict)
		}
	}

	st.Version = next
	return st, nil
}

func (s *Store) ListStreaks(ctx context.Context, userID string) ([]models.Streak, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.habit_id, s.user_id, s.current_streak, s.longest_streak, s.last_completion_date,
			s.streak_start_date, s.version, s.created_at, s.updated_at
		FROM streaks s
		JOIN habits h ON h.id = s.habit_id
		WHERE s.user_id = ? AND h.deleted_at IS NULL AND h.archived_at IS NULL
		ORDER BY s.current_streak DESC, s.longest_streak DESC, h.name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Streak
	for rows.Next() {
		st, err := scanStreak(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func scanStreak(row rowScanner) (models.Streak, error) {
	var st models.Streak
	var last, start sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(&st.HabitID, &st.UserID, &st.CurrentStreak, &st.LongestStreak,
		&last, &start, &st.Version, &createdAt, &updatedAt)
	if err != nil {
		return models.Streak{}, err
	}

	if st.LastCompletionDate, err = parseTimePtr("last_completion_date", last); err != nil {
		return models.Streak{}, err
	}
	if st.StreakStartDate, err = parseTimePtr("streak_start_date", start); err != nil {
		return models.Streak{}, err
	}
	if st.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return models.Streak{}, err
	}
	if st.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return models.Streak{}, err
	}
	return st, nil
}
