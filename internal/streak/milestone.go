package streak

import (
	"slices"
	"time"

	"github.com/julianstephens/habitual/internal/constants"
	"github.com/julianstephens/habitual/internal/models"
)

// Milestone is emitted when a streak newly reaches a threshold.
type Milestone struct {
	HabitID   string    `json:"habit_id"`
	UserID    string    `json:"user_id"`
	Threshold int       `json:"threshold"`
	ReachedAt time.Time `json:"reached_at"`
}

// IsMilestone reports whether n is a milestone streak length.
func IsMilestone(n int) bool {
	if slices.Contains(constants.MilestoneThresholds, n) {
		return true
	}
	return n > constants.MilestoneStepStart && n%constants.MilestoneStep == 0
}

// NextMilestone returns the smallest milestone above current.
func NextMilestone(current int) int {
	n := max(current, 0) + 1
	for !IsMilestone(n) {
		n++
	}
	return n
}

// DetectMilestone returns the threshold reached when a streak moves from
// prevCurrent to newCurrent. A streak that merely stays at a threshold does
// not fire again.
func DetectMilestone(prevCurrent, newCurrent int) (int, bool) {
	if newCurrent <= prevCurrent || !IsMilestone(newCurrent) {
		return 0, false
	}
	return newCurrent, true
}

// Update is the state change produced by Apply.
type Update struct {
	// Streak is prev with the recomputed values applied. Version is left
	// untouched; the store bumps it on save.
	Streak    models.Streak
	Result    Result
	Milestone *Milestone
}

// Apply recomputes the streak for prev and returns the record to persist along
// with any milestone reached.
func Apply(p Policy, history []models.HabitCompletion, prev models.Streak, now time.Time) Update {
	res := Recompute(p, history, prev, now)

	next := prev
	next.CurrentStreak = res.CurrentStreak
	next.LongestStreak = res.LongestStreak
	next.StreakStartDate = res.StreakStartDate
	next.LastCompletionDate = res.LastCompletionDate
	next.UpdatedAt = now

	u := Update{Streak: next, Result: res}
	if threshold, ok := DetectMilestone(prev.CurrentStreak, res.CurrentStreak); ok {
		u.Milestone = &Milestone{
			HabitID:   prev.HabitID,
			UserID:    prev.UserID,
			Threshold: threshold,
			ReachedAt: now,
		}
	}
	return u
}

// Changed reports whether applying u alters any persisted streak value.
func (u Update) Changed(prev models.Streak) bool {
	return prev.CurrentStreak != u.Streak.CurrentStreak ||
		prev.LongestStreak != u.Streak.LongestStreak ||
		!sameTime(prev.StreakStartDate, u.Streak.StreakStartDate) ||
		!sameTime(prev.LastCompletionDate, u.Streak.LastCompletionDate)
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
