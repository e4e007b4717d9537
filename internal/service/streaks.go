package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/julianstephens/habitual/internal/constants"
	apperrors "github.com/julianstephens/habitual/internal/errors"
	"github.com/julianstephens/habitual/internal/events"
	"github.com/julianstephens/habitual/internal/logger"
	"github.com/julianstephens/habitual/internal/metrics"
	"github.com/julianstephens/habitual/internal/models"
	"github.com/julianstephens/habitual/internal/storage"
	"github.com/julianstephens/habitual/internal/streak"
	"github.com/julianstephens/habitual/internal/utils"
	"github.com/julianstephens/habitual/internal/validation"
)

// Publisher accepts milestone events without blocking.
type Publisher interface {
	Publish(e events.MilestoneEvent) bool
}

// CompletionInput describes a completion to record. A nil CompletedAt
// means now.
type CompletionInput struct {
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Value       *int       `json:"value,omitempty"`
	Notes       string     `json:"notes,omitempty"`
}

// CompletionResult is the outcome of RecordCompletion. The completion is
// always stored; Streak is nil and StreakError set when the streak could
// not be updated.
type CompletionResult struct {
	Completion  models.HabitCompletion `json:"completion"`
	Streak      *models.Streak         `json:"streak,omitempty"`
	Milestone   *streak.Milestone      `json:"milestone,omitempty"`
	StreakError string                 `json:"streak_error,omitempty"`
}

// RecalcReport summarizes a RecalculateAll pass.
type RecalcReport struct {
	Habits     int `json:"habits"`
	Updated    int `json:"updated"`
	Milestones int `json:"milestones"`
	Failed     int `json:"failed"`
}

type StreakService struct {
	store      storage.Provider
	publisher  Publisher
	validator  *validation.Validator
	locks      keyedMutex
	now        func() time.Time
	retryDelay time.Duration
	log        *logger.Component
}

func NewStreakService(store storage.Provider, publisher Publisher) *StreakService {
	return &StreakService{
		store:      store,
		publisher:  publisher,
		validator:  validation.New(),
		now:        systemNow,
		retryDelay: constants.StreakSaveRetryDelay,
		log:        logger.With("streaks"),
	}
}

// RecordCompletion stores a completion and then brings the habit's streak up
// to date. Streak failures are logged and reported in the result; they never
// undo the stored completion.
func (s *StreakService) RecordCompletion(ctx context.Context, userID, habitID string, in CompletionInput) (CompletionResult, error) {
	h, err := ownedHabit(ctx, s.store, userID, habitID)
	if err != nil {
		return CompletionResult{}, err
	}
	if h.DeletedAt != nil {
		return CompletionResult{}, fmt.Errorf("habit %s: %w", habitID, apperrors.ErrNotFound)
	}
	if h.ArchivedAt != nil {
		return CompletionResult{}, apperrors.Invalid("habit %q is archived", h.Name)
	}

	now := s.now()
	c := models.HabitCompletion{
		ID:          uuid.NewString(),
		HabitID:     h.ID,
		UserID:      userID,
		CompletedAt: now,
		Value:       in.Value,
		Notes:       validation.SanitizeText(in.Notes),
		CreatedAt:   now,
	}
	if in.CompletedAt != nil {
		c.CompletedAt = in.CompletedAt.UTC()
	}

	result := s.validator.ValidateCompletion(c, now)
	if err := result.Err(); err != nil {
		return CompletionResult{}, err
	}

	if err := s.store.AddCompletion(ctx, c); err != nil {
		return CompletionResult{}, err
	}
	metrics.RecordCompletion()

	res := CompletionResult{Completion: c}
	upd, err := s.refresh(ctx, h)
	if err != nil {
		s.log.Error("Streak update failed after completion",
			"habit_id", h.ID, "completion_id", c.ID, "error", err)
		res.StreakError = err.Error()
		return res, nil
	}
	res.Streak = &upd.Streak
	res.Milestone = upd.Milestone
	return res, nil
}

// Get returns the stored streak of a habit.
func (s *StreakService) Get(ctx context.Context, userID, habitID string) (models.Streak, error) {
	if _, err := ownedHabit(ctx, s.store, userID, habitID); err != nil {
		return models.Streak{}, err
	}
	return s.store.GetStreak(ctx, habitID)
}

// List returns the user's streaks for active habits, highest first.
func (s *StreakService) List(ctx context.Context, userID string) ([]models.Streak, error) {
	return s.store.ListStreaks(ctx, userID)
}

// Recalculate recomputes one habit's streak from its full history.
func (s *StreakService) Recalculate(ctx context.Context, userID, habitID string) (models.Streak, error) {
	h, err := ownedHabit(ctx, s.store, userID, habitID)
	if err != nil {
		return models.Streak{}, err
	}
	upd, err := s.refresh(ctx, h)
	if err != nil {
		return models.Streak{}, err
	}
	return upd.Streak, nil
}

// RecalculateAll recomputes every active habit. Streaks whose last
// completion fell out of the validity window drop to zero. Per-habit
// failures are logged and counted; only a failure to list habits or a
// cancelled ctx is returned.
func (s *StreakService) RecalculateAll(ctx context.Context) (report RecalcReport, err error) {
	start := time.Now()
	defer func() { metrics.RecordRecalculation(err, time.Since(start)) }()

	habits, err := s.store.ListActiveHabits(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list habits: %w", err)
	}

	for _, h := range habits {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Habits++

		prev, _ := s.store.GetStreak(ctx, h.ID)
		upd, err := s.refresh(ctx, h)
		if err != nil {
			report.Failed++
			s.log.Error("Streak recalculation failed", "habit_id", h.ID, "error", err)
			continue
		}
		if upd.Streak.Version != prev.Version {
			report.Updated++
		}
		if upd.Milestone != nil {
			report.Milestones++
		}
	}

	s.log.Info("Streak recalculation finished",
		"habits", report.Habits, "updated", report.Updated, "failed", report.Failed)
	return report, nil
}

// refresh recomputes and saves h's streak, retrying when another writer
// saved first, then publishes any milestone reached.
func (s *StreakService) refresh(ctx context.Context, h models.Habit) (streak.Update, error) {
	unlock := s.locks.Lock(h.ID)
	defer unlock()

	policy, err := s.policyFor(ctx, h)
	if err != nil {
		return streak.Update{}, err
	}

	for attempt := 1; ; attempt++ {
		upd, saved, err := s.recomputeOnce(ctx, policy, h)
		if err == nil {
			s.reportWarnings(h, upd.Result.Warnings)
			if saved && upd.Milestone != nil {
				s.publish(h, *upd.Milestone)
			}
			return upd, nil
		}
		if !errors.Is(err, apperrors.ErrConflict) {
			return streak.Update{}, err
		}

		metrics.RecordStreakConflict()
		if attempt >= constants.StreakSaveMaxRetries {
			return streak.Update{}, fmt.Errorf("streak for habit %s: gave up after %d attempts: %w", h.ID, attempt, err)
		}
		s.log.Debug("Streak save conflict, retrying", "habit_id", h.ID, "attempt", attempt)

		select {
		case <-ctx.Done():
			return streak.Update{}, ctx.Err()
		case <-time.After(s.retryDelay * time.Duration(attempt)):
		}
	}
}

// recomputeOnce reads the stored streak and full history, applies the
// engine and saves when something changed.
func (s *StreakService) recomputeOnce(ctx context.Context, policy streak.Policy, h models.Habit) (streak.Update, bool, error) {
	now := s.now()

	prev, err := s.store.GetStreak(ctx, h.ID)
	if errors.Is(err, apperrors.ErrNotFound) {
		prev = models.NewStreak(h.ID, h.UserID, now)
	} else if err != nil {
		return streak.Update{}, false, err
	}

	history, err := s.store.ListCompletions(ctx, h.ID)
	if err != nil {
		return streak.Update{}, false, err
	}

	upd := streak.Apply(policy, history, prev, now)
	if !upd.Changed(prev) {
		upd.Streak = prev
		return upd, false, nil
	}

	saved, err := s.store.SaveStreak(ctx, upd.Streak, prev.Version)
	if err != nil {
		return streak.Update{}, false, err
	}
	upd.Streak = saved

	if upd.Result.BrokenSincePrevious {
		s.log.Info("Streak broken", "habit_id", h.ID, "previous", prev.CurrentStreak, "current", saved.CurrentStreak)
	}
	return upd, true, nil
}

// policyFor evaluates h in its owner's timezone.
func (s *StreakService) policyFor(ctx context.Context, h models.Habit) (streak.Policy, error) {
	loc := time.UTC
	if u, err := s.store.GetUser(ctx, h.UserID); err == nil {
		loc = utils.LocationOrUTC(u.Timezone)
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return streak.Policy{}, err
	}
	return streak.NewPolicy(streak.ConfigFor(h, loc))
}

func (s *StreakService) reportWarnings(h models.Habit, warnings []streak.DataQualityWarning) {
	if len(warnings) == 0 {
		return
	}
	metrics.RecordDataQualityWarnings(len(warnings))
	for _, w := range warnings {
		s.log.Warn("Skipped malformed completion",
			"habit_id", h.ID, "completion_id", w.CompletionID, "index", w.Index, "reason", w.Reason)
	}
}

func (s *StreakService) publish(h models.Habit, m streak.Milestone) {
	e := events.MilestoneEvent{Milestone: m, HabitName: h.Name}
	if s.publisher == nil {
		s.log.Info("Streak milestone reached", "habit_id", h.ID, "threshold", m.Threshold)
		return
	}
	s.publisher.Publish(e)
}
