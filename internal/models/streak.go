package models

import "time"

// Streak is the per-(habit, user) streak record. Version is bumped on every
// save and used for optimistic concurrency control.
type Streak struct {
	HabitID            string     `json:"habit_id"`
	UserID             string     `json:"user_id"`
	CurrentStreak      int        `json:"current_streak"`
	LongestStreak      int        `json:"longest_streak"`
	LastCompletionDate *time.Time `json:"last_completion_date,omitempty"`
	StreakStartDate    *time.Time `json:"streak_start_date,omitempty"`
	Version            int        `json:"version"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// NewStreak returns the zero streak created alongside a habit.
func NewStreak(habitID, userID string, now time.Time) Streak {
	return Streak{
		HabitID:   habitID,
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
