package streak

import (
	"fmt"
	"sort"
	"time"

	"github.com/julianstephens/habitual/internal/models"
)

// DataQualityWarning describes a history entry that was skipped.
type DataQualityWarning struct {
	CompletionID string
	Index        int
	Reason       string
}

func (w DataQualityWarning) String() string {
	return fmt.Sprintf("completion %s (index %d): %s", w.CompletionID, w.Index, w.Reason)
}

// Result is the outcome of recomputing a streak from history.
type Result struct {
	CurrentStreak      int
	LongestStreak      int
	StreakStartDate    *time.Time
	LastCompletionDate *time.Time

	// BrokenSincePrevious is set when the previous record had a live streak
	// that the history no longer continues, either because it lapsed or
	// because the newest run started after the previous last completion.
	BrokenSincePrevious bool
	// Lapsed is set when the newest completion is outside the validity window.
	Lapsed bool

	Warnings []DataQualityWarning
}

// Recompute derives streak values for history under policy p, evaluated at
// now. history may be in any order and may hold several completions per
// period. prev is the stored record; only its LongestStreak, CurrentStreak
// and LastCompletionDate are read. Recompute never fails: malformed entries
// are skipped and reported in Result.Warnings.
func Recompute(p Policy, history []models.HabitCompletion, prev models.Streak, now time.Time) Result {
	valid, warnings := usableCompletions(history)

	res := Result{
		LongestStreak: max(0, prev.LongestStreak),
		Warnings:      warnings,
	}

	if len(valid) == 0 {
		res.BrokenSincePrevious = prev.CurrentStreak > 0
		return res
	}

	sort.SliceStable(valid, func(i, j int) bool {
		return valid[i].CompletedAt.After(valid[j].CompletedAt)
	})

	newest := valid[0].CompletedAt
	res.LastCompletionDate = &newest

	current, start, longest := walkRuns(p, valid)
	res.LongestStreak = max(res.LongestStreak, longest)

	sinceNewest := p.PeriodsBetween(p.PeriodOf(newest), p.PeriodOf(now))
	if sinceNewest > p.ValidityWindow() {
		res.Lapsed = true
		res.BrokenSincePrevious = prev.CurrentStreak > 0
		return res
	}

	res.CurrentStreak = current
	res.StreakStartDate = &start
	if prev.CurrentStreak > 0 && prev.LastCompletionDate != nil && start.After(*prev.LastCompletionDate) {
		res.BrokenSincePrevious = true
	}

	return res
}

// walkRuns scans completions sorted newest first and returns the length and
// start of the newest run together with the length of the longest run.
func walkRuns(p Policy, sorted []models.HabitCompletion) (current int, start time.Time, longest int) {
	first := true
	length := 1
	cursor := p.PeriodOf(sorted[0].CompletedAt)
	runStart := sorted[0].CompletedAt

	closeRun := func() {
		if first {
			current, start = length, runStart
			first = false
		}
		longest = max(longest, length)
	}

	for _, c := range sorted[1:] {
		key := p.PeriodOf(c.CompletedAt)
		gap := p.PeriodsBetween(key, cursor)

		switch {
		case gap <= 0:
			// Same period as the last counted completion.
			runStart = c.CompletedAt
		case gap <= p.MaxGap():
			length++
			cursor = key
			runStart = c.CompletedAt
		default:
			closeRun()
			length = 1
			cursor = key
			runStart = c.CompletedAt
		}
	}
	closeRun()

	return current, start, longest
}

func usableCompletions(history []models.HabitCompletion) ([]models.HabitCompletion, []DataQualityWarning) {
	valid := make([]models.HabitCompletion, 0, len(history))
	var warnings []DataQualityWarning
	for i, c := range history {
		if c.CompletedAt.IsZero() {
			warnings = append(warnings, DataQualityWarning{
				CompletionID: c.ID,
				Index:        i,
				Reason:       "missing completion timestamp",
			})
			continue
		}
		valid = append(valid, c)
	}
	return valid, warnings
}
