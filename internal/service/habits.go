package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/julianstephens/habitual/internal/errors"
	"github.com/julianstephens/habitual/internal/logger"
	"github.com/julianstephens/habitual/internal/models"
	"github.com/julianstephens/habitual/internal/storage"
	"github.com/julianstephens/habitual/internal/validation"
)

// HabitInput holds the user-editable fields of a habit.
type HabitInput struct {
	Name         string           `json:"name"`
	Description  string           `json:"description"`
	Type         models.HabitType `json:"type"`
	Frequency    models.Frequency `json:"frequency"`
	IntervalDays int              `json:"interval_days"`
	MaxGap       int              `json:"max_gap"`
	TargetValue  int              `json:"target_value"`
	TargetUnit   string           `json:"target_unit"`
	Reminder     string           `json:"reminder"`
	Reward       string           `json:"reward"`
}

func (in HabitInput) apply(h models.Habit) models.Habit {
	h.Name = in.Name
	h.Description = in.Description
	h.Type = in.Type
	h.Frequency = in.Frequency
	h.IntervalDays = in.IntervalDays
	h.MaxGap = in.MaxGap
	h.TargetValue = in.TargetValue
	if h.TargetValue == 0 {
		h.TargetValue = 1
	}
	h.TargetUnit = in.TargetUnit
	h.Reminder = in.Reminder
	h.Reward = in.Reward
	if h.Frequency == models.FrequencyCustom && h.IntervalDays == 0 {
		h.IntervalDays = 1
	}
	return validation.SanitizeHabit(h)
}

type HabitService struct {
	store     storage.Provider
	validator *validation.Validator
	now       func() time.Time
}

func NewHabitService(store storage.Provider) *HabitService {
	return &HabitService{
		store:     store,
		validator: validation.New(),
		now:       systemNow,
	}
}

// Create validates in and stores a new habit together with its zero streak.
func (s *HabitService) Create(ctx context.Context, userID string, in HabitInput) (models.Habit, error) {
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return models.Habit{}, err
	}

	now := s.now()
	h := in.apply(models.Habit{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	})

	existing, err := s.store.ListHabits(ctx, userID, true, false)
	if err != nil {
		return models.Habit{}, err
	}
	result := s.validator.ValidateHabit(h, existing)
	if err := result.Err(); err != nil {
		return models.Habit{}, err
	}

	if err := s.store.AddHabit(ctx, h); err != nil {
		return models.Habit{}, fmt.Errorf("failed to create habit: %w", err)
	}
	logger.Info("Habit created", "habit_id", h.ID, "user_id", userID, "frequency", h.Frequency)
	return h, nil
}

// Get returns a non-deleted habit owned by userID.
func (s *HabitService) Get(ctx context.Context, userID, habitID string) (models.Habit, error) {
	h, err := ownedHabit(ctx, s.store, userID, habitID)
	if err != nil {
		return models.Habit{}, err
	}
	if h.DeletedAt != nil {
		return models.Habit{}, fmt.Errorf("habit %s: %w", habitID, apperrors.ErrNotFound)
	}
	return h, nil
}

func (s *HabitService) List(ctx context.Context, userID string, includeArchived, includeDeleted bool) ([]models.Habit, error) {
	return s.store.ListHabits(ctx, userID, includeArchived, includeDeleted)
}

// Update replaces the editable fields of a habit. policyChanged reports
// whether the frequency settings changed, in which case the stored streak
// no longer matches and should be recalculated.
func (s *HabitService) Update(ctx context.Context, userID, habitID string, in HabitInput) (h models.Habit, policyChanged bool, err error) {
	prev, err := s.Get(ctx, userID, habitID)
	if err != nil {
		return models.Habit{}, false, err
	}

	h = in.apply(prev)
	h.UpdatedAt = s.now()

	existing, err := s.store.ListHabits(ctx, userID, true, false)
	if err != nil {
		return models.Habit{}, false, err
	}
	result := s.validator.ValidateHabit(h, existing)
	if err := result.Err(); err != nil {
		return models.Habit{}, false, err
	}

	if err := s.store.UpdateHabit(ctx, h); err != nil {
		return models.Habit{}, false, err
	}

	policyChanged = prev.Frequency != h.Frequency ||
		prev.IntervalDays != h.IntervalDays ||
		prev.MaxGap != h.MaxGap
	return h, policyChanged, nil
}

func (s *HabitService) Archive(ctx context.Context, userID, habitID string) error {
	if _, err := s.Get(ctx, userID, habitID); err != nil {
		return err
	}
	return s.store.ArchiveHabit(ctx, habitID)
}

func (s *HabitService) Unarchive(ctx context.Context, userID, habitID string) error {
	if _, err := s.Get(ctx, userID, habitID); err != nil {
		return err
	}
	return s.store.UnarchiveHabit(ctx, habitID)
}

// Delete soft-deletes a habit. Its completions and streak stay so Restore
// can bring it back intact.
func (s *HabitService) Delete(ctx context.Context, userID, habitID string) error {
	if _, err := s.Get(ctx, userID, habitID); err != nil {
		return err
	}
	if err := s.store.DeleteHabit(ctx, habitID); err != nil {
		return err
	}
	logger.Info("Habit deleted", "habit_id", habitID, "user_id", userID)
	return nil
}

// Restore undeletes a habit unless another live habit took its name.
func (s *HabitService) Restore(ctx context.Context, userID, habitID string) error {
	h, err := ownedHabit(ctx, s.store, userID, habitID)
	if err != nil {
		return err
	}
	if h.DeletedAt == nil {
		return nil
	}

	existing, err := s.store.ListHabits(ctx, userID, true, false)
	if err != nil {
		return err
	}
	h.DeletedAt = nil
	result := s.validator.ValidateHabit(h, existing)
	if err := result.Err(); err != nil {
		return err
	}
	return s.store.RestoreHabit(ctx, habitID)
}

// Completions returns the habit's history, newest first.
func (s *HabitService) Completions(ctx context.Context, userID, habitID string) ([]models.HabitCompletion, error) {
	if _, err := s.Get(ctx, userID, habitID); err != nil {
		return nil, err
	}
	return s.store.ListCompletions(ctx, habitID)
}

// CompletionCount counts completions in [start, end).
func (s *HabitService) CompletionCount(ctx context.Context, userID, habitID string, start, end time.Time) (int, error) {
	if !start.Before(end) {
		return 0, apperrors.Invalid("start must be before end")
	}
	if _, err := s.Get(ctx, userID, habitID); err != nil {
		return 0, err
	}
	return s.store.CountCompletions(ctx, habitID, start, end)
}
