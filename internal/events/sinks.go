package events

import (
	"context"
	"errors"

	"github.com/julianstephens/habitual/internal/logger"
	"github.com/julianstephens/habitual/internal/metrics"
	"github.com/julianstephens/habitual/internal/models"
	"github.com/julianstephens/habitual/internal/notifier"
)

// LogSink records every milestone in the application log.
type LogSink struct{}

func (LogSink) Name() string { return "log" }

func (LogSink) Deliver(_ context.Context, e MilestoneEvent) error {
	metrics.RecordMilestone(e.Threshold)
	logger.Info("Streak milestone reached",
		"habit_id", e.HabitID, "user_id", e.UserID, "habit", e.HabitName, "threshold", e.Threshold)
	return nil
}

// NotificationStore persists in-app notifications.
type NotificationStore interface {
	CreateMilestone(ctx context.Context, e MilestoneEvent) (models.Notification, error)
}

// Pusher delivers a message to a user's live connections.
type Pusher interface {
	Push(userID, kind string, payload any)
}

// NotificationSink stores an in-app notification for the milestone and, when
// a pusher is set, pushes it to the user's open connections.
type NotificationSink struct {
	Store  NotificationStore
	Pusher Pusher
}

func (s *NotificationSink) Name() string { return "notification" }

func (s *NotificationSink) Deliver(ctx context.Context, e MilestoneEvent) error {
	n, err := s.Store.CreateMilestone(ctx, e)
	if err != nil {
		return err
	}
	if s.Pusher != nil {
		s.Pusher.Push(e.UserID, "notification", n)
		s.Pusher.Push(e.UserID, "milestone", e)
	}
	return nil
}

// Desktop shows a notification on the local desktop.
type Desktop interface {
	Notify(ctx context.Context, title, text string) error
}

// DesktopSink forwards milestones to the tray app. A tray app that is not
// running is not an error.
type DesktopSink struct {
	Desktop Desktop
}

func (s *DesktopSink) Name() string { return "desktop" }

func (s *DesktopSink) Deliver(ctx context.Context, e MilestoneEvent) error {
	err := s.Desktop.Notify(ctx, e.Title(), e.Message())
	if errors.Is(err, notifier.ErrTrayNotRunning) {
		logger.Debug("Tray app not running, skipping desktop notification")
		return nil
	}
	return err
}
