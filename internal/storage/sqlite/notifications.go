package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/julianstephens/habitual/internal/models"
)

func (s *Store) AddNotification(ctx context.Context, n models.Notification) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, habit_id, type, title, message, status, created_at, read_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.UserID, n.HabitID, string(n.Type), n.Title, n.Message, string(n.Status),
		formatTime(n.CreatedAt), formatTimePtr(n.ReadAt))
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

func (s *Store) ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]models.Notification, error) {
	query := `
		SELECT id, user_id, habit_id, type, title, message, status, created_at, read_at
		FROM notifications WHERE user_id = ?`
	args := []interface{}{userID}
	if unreadOnly {
		query += " AND status = ?"
		args = append(args, string(models.NotificationUnread))
	}
	query += " ORDER BY created_at DESC, id"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		var n models.Notification
		var notifType, status, createdAt string
		var readAt sql.NullString
		if err := rows.Scan(&n.ID, &n.UserID, &n.HabitID, &notifType, &n.Title, &n.Message, &status, &createdAt, &readAt); err != nil {
			return nil, err
		}
		n.Type = models.NotificationType(notifType)
		n.Status = models.NotificationStatus(status)
		if n.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
			return nil, err
		}
		if n.ReadAt, err = parseTimePtr("read_at", readAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *Store) CountUnreadNotifications(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT count(*) FROM notifications WHERE user_id = ? AND status = ?",
		userID, string(models.NotificationUnread)).Scan(&n)
	return n, err
}

// MarkNotificationRead marks one of the user's notifications read. Marking
// an already read notification is a no-op.
func (s *Store) MarkNotificationRead(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET status = ?, read_at = COALESCE(read_at, ?)
		WHERE id = ? AND user_id = ?`,
		string(models.NotificationRead), formatTime(time.Now()), id, userID)
	if err != nil {
		return err
	}
	return requireRow(res, "notification", id)
}

func (s *Store) MarkAllNotificationsRead(ctx context.Context, userID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET status = ?, read_at = ?
		WHERE user_id = ? AND status = ?`,
		string(models.NotificationRead), formatTime(time.Now()), userID, string(models.NotificationUnread))
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
