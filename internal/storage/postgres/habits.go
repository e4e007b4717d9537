package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/julianstephens/habitual/internal/errors"
	"github.com/julianstephens/habitual/internal/models"
)

const habitColumns = `id, user_id, name, description, type, frequency, interval_days, max_gap,
	target_value, target_unit, reminder, reward, created_at, updated_at, archived_at, deleted_at`

func (s *Store) AddHabit(ctx context.Context, h models.Habit) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO habits (`+habitColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		h.ID, h.UserID, h.Name, h.Description, string(h.Type), string(h.Frequency),
		h.IntervalDays, h.MaxGap, h.TargetValue, h.TargetUnit, h.Reminder, h.Reward,
		h.CreatedAt, h.UpdatedAt, nullTime(h.ArchivedAt), nullTime(h.DeletedAt))
	if err != nil {
		return fmt.Errorf("failed to insert habit: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO streaks (habit_id, user_id, current_streak, longest_streak, version, created_at, updated_at)
		VALUES ($1, $2, 0, 0, 0, $3, $3)`,
		h.ID, h.UserID, h.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create streak record: %w", err)
	}

	return tx.Commit()
}

func (s *Store) GetHabit(ctx context.Context, id string) (models.Habit, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+habitColumns+" FROM habits WHERE id = $1", id)
	h, err := scanHabit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Habit{}, fmt.Errorf("habit %s: %w", id, apperrors.ErrNotFound)
	}
	return h, err
}

func (s *Store) ListHabits(ctx context.Context, userID string, includeArchived, includeDeleted bool) ([]models.Habit, error) {
	query := "SELECT " + habitColumns + " FROM habits WHERE user_id = $1"
	if !includeDeleted {
		query += " AND deleted_at IS NULL"
	}
	if !includeArchived {
		query += " AND archived_at IS NULL"
	}
	query += " ORDER BY created_at"

	return s.queryHabits(ctx, query, userID)
}

func (s *Store) ListActiveHabits(ctx context.Context) ([]models.Habit, error) {
	return s.queryHabits(ctx, "SELECT "+habitColumns+" FROM habits WHERE deleted_at IS NULL AND archived_at IS NULL ORDER BY created_at")
}

func (s *Store) queryHabits(ctx context.Context, query string, args ...interface{}) ([]models.Habit, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var habits []models.Habit
	for rows.Next() {
		h, err := scanHabit(rows)
		if err != nil {
			return nil, err
		}
		habits = append(habits, h)
	}
	return habits, rows.Err()
}

func (s *Store) UpdateHabit(ctx context.Context, h models.Habit) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE habits SET
			name = $1, description = $2, type = $3, frequency = $4, interval_days = $5, max_gap = $6,
			target_value = $7, target_unit = $8, reminder = $9, reward = $10, updated_at = $11
		WHERE id = $12`,
		h.Name, h.Description, string(h.Type), string(h.Frequency), h.IntervalDays, h.MaxGap,
		h.TargetValue, h.TargetUnit, h.Reminder, h.Reward, h.UpdatedAt, h.ID)
	if err != nil {
		return err
	}
	return requireRow(res, "habit", h.ID)
}

func (s *Store) ArchiveHabit(ctx context.Context, id string) error {
	return s.setHabitTimestamp(ctx, id, "archived_at", "archived_at IS NULL AND deleted_at IS NULL", true)
}

func (s *Store) UnarchiveHabit(ctx context.Context, id string) error {
	return s.setHabitTimestamp(ctx, id, "archived_at", "archived_at IS NOT NULL", false)
}

func (s *Store) DeleteHabit(ctx context.Context, id string) error {
	return s.setHabitTimestamp(ctx, id, "deleted_at", "deleted_at IS NULL", true)
}

func (s *Store) RestoreHabit(ctx context.Context, id string) error {
	return s.setHabitTimestamp(ctx, id, "deleted_at", "deleted_at IS NOT NULL", false)
}

func (s *Store) setHabitTimestamp(ctx context.Context, id, column, guard string, set bool) error {
	now := time.Now()
	value := sql.NullTime{Time: now, Valid: set}

	res, err := s.db.ExecContext(ctx,
		"UPDATE habits SET "+column+" = $1, updated_at = $2 WHERE id = $3 AND "+guard,
		value, now, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	// Already in the requested state, or missing.
	_, err = s.GetHabit(ctx, id)
	return err
}

func requireRow(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, apperrors.ErrNotFound)
	}
	return nil
}

func scanHabit(row rowScanner) (models.Habit, error) {
	var h models.Habit
	var habitType, frequency string
	var archivedAt, deletedAt sql.NullTime

	err := row.Scan(&h.ID, &h.UserID, &h.Name, &h.Description, &habitType, &frequency,
		&h.IntervalDays, &h.MaxGap, &h.TargetValue, &h.TargetUnit, &h.Reminder, &h.Reward,
		&h.CreatedAt, &h.UpdatedAt, &archivedAt, &deletedAt)
	if err != nil {
		return models.Habit{}, err
	}
	h.Type = models.HabitType(habitType)
	h.Frequency = models.Frequency(frequency)
	h.ArchivedAt = timePtr(archivedAt)
	h.DeletedAt = timePtr(deletedAt)
	return h, nil
}
