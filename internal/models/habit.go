package models

import "time"

type Frequency string

const (
	FrequencyDaily   Frequency = "DAILY"
	FrequencyWeekly  Frequency = "WEEKLY"
	FrequencyMonthly Frequency = "MONTHLY"
	FrequencyCustom  Frequency = "CUSTOM"
)

type HabitType string

const (
	HabitTypeHealth       HabitType = "HEALTH"
	HabitTypeProductivity HabitType = "PRODUCTIVITY"
	HabitTypeLearning     HabitType = "LEARNING"
	HabitTypeSocial       HabitType = "SOCIAL"
	HabitTypeFinance      HabitType = "FINANCE"
	HabitTypeMindfulness  HabitType = "MINDFULNESS"
	HabitTypeCreative     HabitType = "CREATIVE"
	HabitTypeMaintenance  HabitType = "MAINTENANCE"
)

// HabitTypes lists every supported habit category in display order.
var HabitTypes = []HabitType{
	HabitTypeHealth,
	HabitTypeProductivity,
	HabitTypeLearning,
	HabitTypeSocial,
	HabitTypeFinance,
	HabitTypeMindfulness,
	HabitTypeCreative,
	HabitTypeMaintenance,
}

// Habit represents a recurring practice owned by a single user
type Habit struct {
	ID           string     `json:"id"`
	UserID       string     `json:"user_id"`
	Name         string     `json:"name"`
	Description  string     `json:"description,omitempty"`
	Type         HabitType  `json:"type"`
	Frequency    Frequency  `json:"frequency"`
	IntervalDays int        `json:"interval_days,omitempty"` // CUSTOM only: bucket width in days
	MaxGap       int        `json:"max_gap,omitempty"`       // CUSTOM only: periods allowed between completions
	TargetValue  int        `json:"target_value"`
	TargetUnit   string     `json:"target_unit"`
	Reminder     string     `json:"reminder,omitempty"`
	Reward       string     `json:"reward,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	ArchivedAt   *time.Time `json:"archived_at,omitempty"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
}

// IsActive reports whether the habit is neither archived nor deleted.
func (h Habit) IsActive() bool {
	return h.ArchivedAt == nil && h.DeletedAt == nil
}

// HabitCompletion is an immutable record of a single completion action.
// A zero CompletedAt marks a malformed row.
type HabitCompletion struct {
	ID          string    `json:"id"`
	HabitID     string    `json:"habit_id"`
	UserID      string    `json:"user_id"`
	CompletedAt time.Time `json:"completed_at"`
	Value       *int      `json:"value,omitempty"`
	Notes       string    `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
