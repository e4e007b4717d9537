package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/julianstephens/habitual/internal/events"
	"github.com/julianstephens/habitual/internal/models"
	"github.com/julianstephens/habitual/internal/storage"
)

const (
	defaultNotificationLimit = 50
	maxNotificationLimit     = 200
)

type NotificationService struct {
	store storage.Provider
	now   func() time.Time
}

func NewNotificationService(store storage.Provider) *NotificationService {
	return &NotificationService{store: store, now: systemNow}
}

// CreateMilestone stores the in-app notification for a milestone.
func (s *NotificationService) CreateMilestone(ctx context.Context, e events.MilestoneEvent) (models.Notification, error) {
	n := models.Notification{
		ID:        uuid.NewString(),
		UserID:    e.UserID,
		HabitID:   e.HabitID,
		Type:      models.NotificationStreakMilestone,
		Title:     e.Title(),
		Message:   e.Message(),
		Status:    models.NotificationUnread,
		CreatedAt: s.now(),
	}
	if err := s.store.AddNotification(ctx, n); err != nil {
		return models.Notification{}, err
	}
	return n, nil
}

// List returns the newest notifications first. limit is clamped to
// 1..200, with 0 meaning 50.
func (s *NotificationService) List(ctx context.Context, userID string, unreadOnly bool, limit int) ([]models.Notification, error) {
	switch {
	case limit <= 0:
		limit = defaultNotificationLimit
	case limit > maxNotificationLimit:
		limit = maxNotificationLimit
	}
	return s.store.ListNotifications(ctx, userID, unreadOnly, limit)
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int, error) {
	return s.store.CountUnreadNotifications(ctx, userID)
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, id string) error {
	return s.store.MarkNotificationRead(ctx, userID, id)
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int, error) {
	return s.store.MarkAllNotificationsRead(ctx, userID)
}
