package postgres

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
	row := s.db.QueryRowContext(ctx, "SELECT "+streakColumns+" FROM streaks WHERE habit_id = $1", habitID)
	st, err := scanStreak(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Streak{}, fmt.Errorf("streak for habit %s: %w", habitID, apperrors.ErrNotFound)
	}
	return st, err
}

// SaveStreak is a single upsert guarded by the version column: the update
// branch only fires when the stored version still matches.
func (s *Store) SaveStreak(ctx context.Context, st models.Streak, expectedVersion int) (models.Streak, error) {
	next := expectedVersion + 1

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO streaks (`+streakColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		ON CONFLICT (habit_id) DO UPDATE SET
			current_streak = EXCLUDED.current_streak,
			longest_streak = EXCLUDED.longest_streak,
			last_completion_date = EXCLUDED.last_completion_date,
			streak_start_date = EXCLUDED.streak_start_date,
			version = EXCLUDED.version,
			updated_at = EXCLUDED.updated_at
		WHERE streaks.version = $9`,
		st.HabitID, st.UserID, st.CurrentStreak, st.LongestStreak,
		nullTime(st.LastCompletionDate), nullTime(st.StreakStartDate),
		next, st.UpdatedAt, expectedVersion)
	if err != nil {
		return models.Streak{}, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return models.Streak{}, err
	}
	if n == 0 {
		return models.Streak{}, fmt.Errorf("streak for habit %s changed since version %d: %w", st.HabitID, expectedVersion, apperrors.ErrConflict)
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
		WHERE s.user_id = $1 AND h.deleted_at IS NULL AND h.archived_at IS NULL
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
	var last, start sql.NullTime

	err := row.Scan(&st.HabitID, &st.UserID, &st.CurrentStreak, &st.LongestStreak,
		&last, &start, &st.Version, &st.CreatedAt, &st.UpdatedAt)
	if err != nil {
		return models.Streak{}, err
	}
	st.LastCompletionDate = timePtr(last)
	st.StreakStartDate = timePtr(start)
	return st, nil
}
