package streaks

import (
	"fmt"
	"time"

	"github.com/julianstephens/habitual/internal/cli"
	"github.com/julianstephens/habitual/internal/models"
	"github.com/julianstephens/habitual/internal/streak"
)

func printStreak(h models.Habit, s models.Streak, loc *time.Location) {
	fmt.Printf("%s  %s\n", h.Name, cli.Muted(cli.FormatFrequency(h)))
	fmt.Printf("Current: %s\n", cli.FormatStreak(s.CurrentStreak))
	fmt.Printf("Best:    %d\n", s.LongestStreak)
	fmt.Printf("Since:   %s\n", cli.FormatDate(s.StreakStartDate, loc))
	fmt.Printf("Last:    %s\n", cli.FormatDate(s.LastCompletionDate, loc))

	next := streak.NextMilestone(s.CurrentStreak)
	fmt.Printf("Next:    %d-day milestone in %d\n", next, next-s.CurrentStreak)
}
