package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/julianstephens/habitual/internal/logger"
	"github.com/julianstephens/habitual/internal/models"
)

func (s *Store) AddCompletion(ctx context.Context, c models.HabitCompletion) error {
	var value sql.NullInt64
	if c.Value != nil {
		value = sql.NullInt64{Int64: int64(*c.Value), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO habit_completions (id, habit_id, user_id, completed_at, value, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.HabitID, c.UserID, formatTime(c.CompletedAt), value, c.Notes, formatTime(c.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert completion: %w", err)
	}
	return nil
}

// ListCompletions returns every completion of a habit, newest first. Rows
// whose completed_at cannot be parsed come back with a zero CompletedAt so
// the streak engine can skip and report them.
func (s *Store) ListCompletions(ctx context.Context, habitID string) ([]models.HabitCompletion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, habit_id, user_id, completed_at, value, notes, created_at
		FROM habit_completions
		WHERE habit_id = ?
		ORDER BY completed_at DESC, id`, habitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.HabitCompletion
	for rows.Next() {
		var c models.HabitCompletion
		var completedAt, createdAt string
		var value sql.NullInt64
		if err := rows.Scan(&c.ID, &c.HabitID, &c.UserID, &completedAt, &value, &c.Notes, &createdAt); err != nil {
			return nil, err
		}

		if t, err := parseTime("completed_at", completedAt); err == nil {
			c.CompletedAt = t
		} else {
			logger.Debug("Unparseable completion timestamp", "completion", c.ID, "value", completedAt)
		}
		if t, err := parseTime("created_at", createdAt); err == nil {
			c.CreatedAt = t
		}
		if value.Valid {
			v := int(value.Int64)
			c.Value = &v
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) CountCompletions(ctx context.Context, habitID string, start, end time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT count(*) FROM habit_completions
		WHERE habit_id = ? AND completed_at >= ? AND completed_at < ?`,
		habitID, formatTime(start), formatTime(end)).Scan(&n)
	return n, err
}
