package storage

import (
	"context"
	"time"

	"github.com/julianstephens/habitual/internal/models"
)

// Provider is the persistence boundary used by the service layer. Lookups of
// missing rows return an error wrapping errors.ErrNotFound.
type Provider interface {
	// Lifecycle
	Init(ctx context.Context) error
	Load(ctx context.Context) error
	Close() error

	// Users
	AddUser(ctx context.Context, u models.User) error
	GetUser(ctx context.Context, id string) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)

	// Habits
	// AddHabit stores the habit and its zero streak record in one transaction.
	AddHabit(ctx context.Context, h models.Habit) error
	// GetHabit returns the habit even when archived or deleted so callers can
	// restore it; use Habit.IsActive to filter.
	GetHabit(ctx context.Context, id string) (models.Habit, error)
	ListHabits(ctx context.Context, userID string, includeArchived, includeDeleted bool) ([]models.Habit, error)
	ListActiveHabits(ctx context.Context) ([]models.Habit, error)
	UpdateHabit(ctx context.Context, h models.Habit) error
	ArchiveHabit(ctx context.Context, id string) error
	UnarchiveHabit(ctx context.Context, id string) error
	DeleteHabit(ctx context.Context, id string) error
	RestoreHabit(ctx context.Context, id string) error

	// Completions
	AddCompletion(ctx context.Context, c models.HabitCompletion) error
	// ListCompletions returns the full history of a habit, newest first.
	ListCompletions(ctx context.Context, habitID string) ([]models.HabitCompletion, error)
	// CountCompletions counts completions with start <= completed_at < end.
	CountCompletions(ctx context.Context, habitID string, start, end time.Time) (int, error)

	// Streaks
	GetStreak(ctx context.Context, habitID string) (models.Streak, error)
	// SaveStreak writes s if the stored version still equals expectedVersion
	// and returns the record with its new version. A concurrent writer makes
	// it fail with errors.ErrConflict.
	SaveStreak(ctx context.Context, s models.Streak, expectedVersion int) (models.Streak, error)
	// ListStreaks returns a user's streaks for active habits, highest
	// current streak first.
	ListStreaks(ctx context.Context, userID string) ([]models.Streak, error)

	// Notifications
	AddNotification(ctx context.Context, n models.Notification) error
	ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]models.Notification, error)
	CountUnreadNotifications(ctx context.Context, userID string) (int, error)
	MarkNotificationRead(ctx context.Context, userID, id string) error
	MarkAllNotificationsRead(ctx context.Context, userID string) (int, error)

	// Utils
	GetConfigPath() string
}
