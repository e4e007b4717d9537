package habits

import (
	"fmt"
	"time"

	"github.com/julianstephens/habitual/internal/cli"
	"github.com/julianstephens/habitual/internal/constants"
	"github.com/julianstephens/habitual/internal/service"
	"github.com/julianstephens/habitual/internal/utils"
)

type HabitCompleteCmd struct {
	Habit string `arg:"" help:"Habit name or ID."`
	Date  string `help:"Date in YYYY-MM-DD format, in your timezone (default: today)."`
	Time  string `help:"Time in HH:MM format (default: now, or noon when --date is set)."`
	Value int    `help:"Amount completed, in the habit's target unit."`
	Notes string `help:"Optional note for this completion."`
}

func (c *HabitCompleteCmd) Run(ctx *cli.Context) error {
	u, err := ctx.CurrentUser(ctx.Context())
	if err != nil {
		return err
	}
	h, err := ctx.FindHabit(ctx.Context(), u.ID, c.Habit, false, false)
	if err != nil {
		return err
	}

	loc := cli.Location(u)
	at, err := utils.CompletionTime(c.Date, c.Time, loc, time.Now())
	if err != nil {
		return err
	}
	in := service.CompletionInput{CompletedAt: &at, Notes: c.Notes}
	if c.Value != 0 {
		in.Value = &c.Value
	}

	res, err := ctx.Services.Streaks.RecordCompletion(ctx.Context(), u.ID, h.ID, in)
	if err != nil {
		return err
	}
	// Queued milestones go out even when the streak part failed.
	defer ctx.FlushMilestones(ctx.Context())

	fmt.Printf("✓ Completed %s on %s\n", h.Name, at.In(loc).Format("Mon Jan 2 15:04"))
	if res.Streak == nil {
		fmt.Println(cli.WarningStyle.Render("⚠️  The completion was saved but the streak could not be updated: " + res.StreakError))
		fmt.Println(cli.Muted(fmt.Sprintf("   Run '%s streak recalc %q' to retry.", constants.AppName, h.Name)))
		return nil
	}

	fmt.Printf("  Streak: %s (best %d)\n", cli.FormatStreak(res.Streak.CurrentStreak), res.Streak.LongestStreak)
	if res.Milestone != nil {
		fmt.Println(cli.MilestoneBanner(h.Name, *res.Milestone))
	}
	return nil
}
