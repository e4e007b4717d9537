package postgres

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
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		n.ID, n.UserID, n.HabitID, string(n.Type), n.Title, n.Message, string(n.Status),
		n.CreatedAt, nullTime(n.ReadAt))
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

func (s *Store) ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]models.Notification, error) {
	query := `
		SELECT id, user_id, habit_id, type, title, message, status, created_at, read_at
		FROM notifications WHERE user_id = $1`
	args := []interface{}{userID}
	if unreadOnly {
		args = append(args, string(models.NotificationUnread))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += " ORDER BY created_at DESC, id"
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		var n models.Notification
		var notifType, status string
		var readAt sql.NullTime
		if err := rows.Scan(&n.ID, &n.UserID, &n.HabitID, &notifType, &n.Title, &n.Message, &status, &n.CreatedAt, &readAt); err != nil {
			return nil, err
		}
		n.Type = models.NotificationType(notifType)
		n.Status = models.NotificationStatus(status)
		n.ReadAt = timePtr(readAt)
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *Store) CountUnreadNotifications(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT count(*) FROM notifications WHERE user_id = $1 AND status = $2",
		userID, string(models.NotificationUnread)).Scan(&n)
	return n, err
}

func (s *Store) MarkNotificationRead(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET status = $1, read_at = COALESCE(read_at, $2)
		WHERE id = $3 AND user_id = $4`,
		string(models.NotificationRead), time.Now(), id, userID)
	if err != nil {
		return err
	}
	return requireRow(res, "notification", id)
}

func (s *Store) MarkAllNotificationsRead(ctx context.Context, userID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET status = $1, read_at = $2
		WHERE user_id = $3 AND status = $4`,
		string(models.NotificationRead), time.Now(), userID, string(models.NotificationUnread))
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
