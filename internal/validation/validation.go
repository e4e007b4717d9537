package validation

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/julianstephens/habitual/internal/constants"
	apperrors "github.com/julianstephens/habitual/internal/errors"
	"github.com/julianstephens/habitual/internal/models"
	"github.com/julianstephens/habitual/internal/utils"
)

// ConflictType represents the type of validation conflict
type ConflictType string

const (
	ConflictRequiredField      ConflictType = "required_field"
	ConflictTooLong            ConflictType = "too_long"
	ConflictOutOfRange         ConflictType = "out_of_range"
	ConflictInvalidValue       ConflictType = "invalid_value"
	ConflictDuplicateHabitName ConflictType = "duplicate_habit_name"
)

// Conflict is one problem found in user input
type Conflict struct {
	Type        ConflictType
	Field       string
	Description string
}

// ValidationResult contains all detected conflicts
type ValidationResult struct {
	Conflicts []Conflict
}

// HasConflicts returns true if there are any conflicts
func (vr *ValidationResult) HasConflicts() bool {
	return len(vr.Conflicts) > 0
}

// FormatReport returns a human-readable report of all conflicts
func (vr *ValidationResult) FormatReport() string {
	if !vr.HasConflicts() {
		return "No conflicts detected."
	}

	report := "Conflicts detected:\n"
	for _, conflict := range vr.Conflicts {
		report += fmt.Sprintf("- %s\n", conflict.Description)
	}
	return report
}

// Err returns nil when there are no conflicts, otherwise an error wrapping
// errors.ErrInvalidInput that lists every conflict.
func (vr *ValidationResult) Err() error {
	if !vr.HasConflicts() {
		return nil
	}
	msgs := make([]string, len(vr.Conflicts))
	for i, c := range vr.Conflicts {
		msgs[i] = c.Description
	}
	return apperrors.Invalid("%s", strings.Join(msgs, "; "))
}

func (vr *ValidationResult) add(t ConflictType, field, format string, args ...interface{}) {
	vr.Conflicts = append(vr.Conflicts, Conflict{
		Type:        t,
		Field:       field,
		Description: fmt.Sprintf(format, args...),
	})
}

func (vr *ValidationResult) maxLen(field, value string, limit int) {
	if n := utf8.RuneCountInString(value); n > limit {
		vr.add(ConflictTooLong, field, "%s must be at most %d characters (got %d)", field, limit, n)
	}
}

// Validator validates user input for habits, completions and accounts
type Validator struct{}

// New creates a new Validator
func New() *Validator {
	return &Validator{}
}

// SanitizeLine trims s and removes every control character.
func SanitizeLine(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s))
}

// SanitizeText trims s and removes control characters other than newlines
// and tabs.
func SanitizeText(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s))
}

// SanitizeHabit returns h with its free-text fields sanitized. Interval and
// gap settings are cleared for non-custom frequencies.
func SanitizeHabit(h models.Habit) models.Habit {
	if h.Frequency != models.FrequencyCustom {
		h.IntervalDays = 0
		h.MaxGap = 0
	}
	h.Name = SanitizeLine(h.Name)
	h.Description = SanitizeText(h.Description)
	h.TargetUnit = SanitizeLine(h.TargetUnit)
	h.Reminder = SanitizeLine(h.Reminder)
	h.Reward = SanitizeLine(h.Reward)
	return h
}

// ValidateHabit checks a sanitized habit. existing holds the owner's other
// habits and is used to reject duplicate names among non-deleted habits.
func (v *Validator) ValidateHabit(h models.Habit, existing []models.Habit) ValidationResult {
	result := ValidationResult{Conflicts: []Conflict{}}

	if h.Name == "" {
		result.add(ConflictRequiredField, "name", "name is required")
	}
	result.maxLen("name", h.Name, constants.MaxHabitNameLength)
	result.maxLen("description", h.Description, constants.MaxDescriptionLength)
	result.maxLen("target_unit", h.TargetUnit, constants.MaxTargetUnitLength)
	result.maxLen("reward", h.Reward, constants.MaxRewardLength)

	if !slices.Contains(models.HabitTypes, h.Type) {
		result.add(ConflictInvalidValue, "type", "unknown habit type %q", h.Type)
	}

	switch h.Frequency {
	case models.FrequencyDaily, models.FrequencyWeekly, models.FrequencyMonthly:
	case models.FrequencyCustom:
		if h.IntervalDays < 1 || h.IntervalDays > constants.MaxIntervalDays {
			result.add(ConflictOutOfRange, "interval_days", "interval days must be between 1 and %d", constants.MaxIntervalDays)
		}
		if h.MaxGap != 0 && (h.MaxGap < 1 || h.MaxGap > constants.MaxCustomGap) {
			result.add(ConflictOutOfRange, "max_gap", "max gap must be between 1 and %d", constants.MaxCustomGap)
		}
	default:
		result.add(ConflictInvalidValue, "frequency", "unknown frequency %q", h.Frequency)
	}

	if h.TargetValue < 1 {
		result.add(ConflictOutOfRange, "target_value", "target value must be greater than 0")
	}

	for _, other := range existing {
		if other.ID == h.ID || other.DeletedAt != nil {
			continue
		}
		if strings.EqualFold(other.Name, h.Name) {
			result.add(ConflictDuplicateHabitName, "name", "a habit named %q already exists", other.Name)
			break
		}
	}

	return result
}

// ValidateCompletion checks the optional fields of a completion.
func (v *Validator) ValidateCompletion(c models.HabitCompletion, now time.Time) ValidationResult {
	result := ValidationResult{Conflicts: []Conflict{}}

	result.maxLen("notes", c.Notes, constants.MaxNotesLength)
	if c.Value != nil && *c.Value < 0 {
		result.add(ConflictOutOfRange, "value", "value must not be negative")
	}
	// Backfill is allowed; up to a day ahead is accepted for clients in
	// later timezones.
	if c.CompletedAt.After(now.Add(24 * time.Hour)) {
		result.add(ConflictOutOfRange, "completed_at", "completion time %s is in the future", c.CompletedAt.Format(time.RFC3339))
	}

	return result
}

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

// ValidateUser checks registration input.
func (v *Validator) ValidateUser(username, password, timezone string) ValidationResult {
	result := ValidationResult{Conflicts: []Conflict{}}

	n := utf8.RuneCountInString(username)
	switch {
	case n < constants.MinUsernameLength || n > constants.MaxUsernameLength:
		result.add(ConflictOutOfRange, "username", "username must be %d to %d characters", constants.MinUsernameLength, constants.MaxUsernameLength)
	case !usernamePattern.MatchString(username):
		result.add(ConflictInvalidValue, "username", "username may only contain letters, digits, '.', '_' and '-'")
	}

	if len(password) < constants.MinPasswordLength {
		result.add(ConflictOutOfRange, "password", "password must be at least %d characters", constants.MinPasswordLength)
	}
	if len(password) > constants.MaxPasswordLength {
		result.add(ConflictTooLong, "password", "password must be at most %d bytes", constants.MaxPasswordLength)
	}

	if timezone != "" {
		if !utils.ValidateTimezone(timezone) {
			result.add(ConflictInvalidValue, "timezone", "unknown timezone %q", timezone)
		}
	}

	return result
}
