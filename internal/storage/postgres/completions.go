package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/julianstephens/habitual/internal/models"
)

func (s *Store) AddCompletion(ctx context.Context, c models.HabitCompletion) error {
	var value sql.NullInt64
	if c.Value != nil {
		value = sql.NullInt64{Int64: int64(*c.Value), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO habit_completions (id, habit_id, user_id, completed_at, value, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ID, c.HabitID, c.UserID, c.CompletedAt, value, c.Notes, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert completion: %w", err)
	}
	return nil
}

func (s *Store) ListCompletions(ctx context.Context, habitID string) ([]models.HabitCompletion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, habit_id, user_id, completed_at, value, notes, created_at
		FROM habit_completions
		WHERE habit_id = $1
		ORDER BY completed_at DESC, id`, habitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.HabitCompletion
	for rows.Next() {
		var c models.HabitCompletion
		var completedAt sql.NullTime
		var value sql.NullInt64
		if err := rows.Scan(&c.ID, &c.HabitID, &c.UserID, &completedAt, &value, &c.Notes, &c.CreatedAt); err != nil {
			return nil, err
		}
		// NOT NULL in the schema, but a zero value is what the streak
		// engine reports as malformed.
		if completedAt.Valid {
			c.CompletedAt = completedAt.Time
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
		WHERE habit_id = $1 AND completed_at >= $2 AND completed_at < $3`,
		habitID, start, end).Scan(&n)
	return n, err
}
