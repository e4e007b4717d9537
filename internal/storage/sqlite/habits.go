package sqlite

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
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		h.ID, h.UserID, h.Name, h.Description, string(h.Type), string(h.Frequency),
		h.IntervalDays, h.MaxGap, h.TargetValue, h.TargetUnit, h.Reminder, h.Reward,
		formatTime(h.CreatedAt), formatTime(h.UpdatedAt),
		formatTimePtr(h.ArchivedAt), formatTimePtr(h.DeletedAt))
	if err != nil {
		return fmt.Errorf("failed to insert habit: %w", err)
	}

	zero := models.NewStreak(h.ID, h.UserID, h.CreatedAt)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO streaks (habit_id, user_id, current_streak, longest_streak, version, created_at, updated_at)
		VALUES (?, ?, 0, 0, 0, ?, ?)`,
		zero.HabitID, zero.UserID, formatTime(zero.CreatedAt), formatTime(zero.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to create streak record: %w", err)
	}

	return tx.Commit()
}

func (s *Store) GetHabit(ctx context.Context, id string) (models.Habit, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+habitColumns+" FROM habits WHERE id = ?", id)
	h, err := scanHabit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Habit{}, fmt.Errorf("habit %s: %w", id, apperrors.ErrNotFound)
	}
	return h, err
}

func (s *Store) ListHabits(ctx context.Context, userID string, includeArchived, includeDeleted bool) ([]models.Habit, error) {
	query := "SELECT " + habitColumns + " FROM habits WHERE user_id = ?"
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
			name = ?, description = ?, type = ?, frequency = ?, interval_days = ?, max_gap = ?,
			target_value = ?, target_unit = ?, reminder = ?, reward = ?, updated_at = ?
		WHERE id = ?`,
		h.Name, h.Description, string(h.Type), string(h.Frequency), h.IntervalDays, h.MaxGap,
		h.TargetValue, h.TargetUnit, h.Reminder, h.Reward, formatTime(h.UpdatedAt), h.ID)
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

// setHabitTimestamp sets or clears one of the lifecycle columns. The guard
// keeps the original timestamp when the habit is already in that state.
func (s *Store) setHabitTimestamp(ctx context.Context, id, column, guard string, set bool) error {
	now := formatTime(time.Now())
	var value sql.NullString
	if set {
		value = sql.NullString{String: now, Valid: true}
	}

	res, err := s.db.ExecContext(ctx,
		"UPDATE habits SET "+column+" = ?, updated_at = ? WHERE id = ? AND "+guard,
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
	if _, err := s.GetHabit(ctx, id); err != nil {
		return err
	}
	return nil
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
	var habitType, frequency, createdAt, updatedAt string
	var archivedAt, deletedAt sql.NullString

	err := row.Scan(&h.ID, &h.UserID, &h.Name, &h.Description, &habitType, &frequency,
		&h.IntervalDays, &h.MaxGap, &h.TargetValue, &h.TargetUnit, &h.Reminder, &h.Reward,
		&createdAt, &updatedAt, &archivedAt, &deletedAt)
	if err != nil {
		return models.Habit{}, err
	}
	h.Type = models.HabitType(habitType)
	h.Frequency = models.Frequency(frequency)

	if h.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return models.Habit{}, err
	}
	if h.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return models.Habit{}, err
	}
	if h.ArchivedAt, err = parseTimePtr("archived_at", archivedAt); err != nil {
		return models.Habit{}, err
	}
	if h.DeletedAt, err = parseTimePtr("deleted_at", deletedAt); err != nil {
		return models.Habit{}, err
	}
	return h, nil
}
