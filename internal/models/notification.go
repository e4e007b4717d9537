package models

import "time"

type NotificationType string

const (
	NotificationStreakMilestone NotificationType = "STREAK_MILESTONE"
	NotificationReminder        NotificationType = "REMINDER"
	NotificationSystem          NotificationType = "SYSTEM"
)

type NotificationStatus string

const (
	NotificationUnread NotificationStatus = "UNREAD"
	NotificationRead   NotificationStatus = "READ"
)

type Notification struct {
	ID        string             `json:"id"`
	UserID    string             `json:"user_id"`
	HabitID   string             `json:"habit_id,omitempty"`
	Type      NotificationType   `json:"type"`
	Title     string             `json:"title"`
	Message   string             `json:"message"`
	Status    NotificationStatus `json:"status"`
	CreatedAt time.Time          `json:"created_at"`
	ReadAt    *time.Time         `json:"read_at,omitempty"`
}
