package streaks

import (
	"fmt"

	"github.com/julianstephens/habitual/internal/cli"
	"github.com/julianstephens/habitual/internal/models"
)

type StreakCmd struct {
	List   StreakListCmd   `cmd:"" help:"List streaks, longest running first."`
	Show   StreakShowCmd   `cmd:"" help:"Show the streak of a habit."`
	Recalc StreakRecalcCmd `cmd:"" help:"Recompute streaks from completion history."`
}

type StreakListCmd struct{}

func (c *StreakListCmd) Run(ctx *cli.Context) error {
	u, err := ctx.CurrentUser(ctx.Context())
	if err != nil {
		return err
	}

	streaks, err := ctx.Services.Streaks.List(ctx.Context(), u.ID)
	if err != nil {
		return err
	}
	if len(streaks) == 0 {
		fmt.Println("No streaks yet.")
		return nil
	}

	habits, err := ctx.Services.Habits.List(ctx.Context(), u.ID, false, false)
	if err != nil {
		return err
	}
	names := make(map[string]string, len(habits))
	for _, h := range habits {
		names[h.ID] = h.Name
	}

	loc := cli.Location(u)
	rows := make([][]string, 0, len(streaks))
	for _, s := range streaks {
		name, ok := names[s.HabitID]
		if !ok {
			continue
		}
		rows = append(rows, []string{
			name,
			cli.FormatStreak(s.CurrentStreak),
			fmt.Sprint(s.LongestStreak),
			cli.FormatDate(s.StreakStartDate, loc),
			cli.FormatDate(s.LastCompletionDate, loc),
		})
	}
	fmt.Println(cli.Table([]string{"Habit", "Current", "Best", "Since", "Last"}, rows))
	return nil
}

type StreakShowCmd struct {
	Habit string `arg:"" help:"Habit name or ID."`
}

func (c *StreakShowCmd) Run(ctx *cli.Context) error {
	u, err := ctx.CurrentUser(ctx.Context())
	if err != nil {
		return err
	}
	h, err := ctx.FindHabit(ctx.Context(), u.ID, c.Habit, true, false)
	if err != nil {
		return err
	}
	s, err := ctx.Services.Streaks.Get(ctx.Context(), u.ID, h.ID)
	if err != nil {
		return err
	}

	printStreak(h, s, cli.Location(u))
	return nil
}

type StreakRecalcCmd struct {
	Habit string `arg:"" optional:"" help:"Habit name or ID. Defaults to every habit of the user."`
	All   bool   `help:"Recalculate every active habit of every user, as the daily job does."`
}

func (c *StreakRecalcCmd) Run(ctx *cli.Context) error {
	defer ctx.FlushMilestones(ctx.Context())

	if c.All {
		if c.Habit != "" {
			return fmt.Errorf("--all cannot be combined with a habit")
		}
		ctx.PerformAutomaticBackup()
		report, err := ctx.Services.Streaks.RecalculateAll(ctx.Context())
		if err != nil {
			return err
		}
		fmt.Printf("✓ Recalculated %d habits: %d updated, %d milestones\n", report.Habits, report.Updated, report.Milestones)
		if report.Failed > 0 {
			fmt.Println(cli.WarningStyle.Render(fmt.Sprintf("⚠️  %d habits failed, see the log for details", report.Failed)))
			return fmt.Errorf("%d habits failed to recalculate", report.Failed)
		}
		return nil
	}

	u, err := ctx.CurrentUser(ctx.Context())
	if err != nil {
		return err
	}

	var habits []models.Habit
	if c.Habit != "" {
		h, err := ctx.FindHabit(ctx.Context(), u.ID, c.Habit, false, false)
		if err != nil {
			return err
		}
		habits = []models.Habit{h}
	} else {
		habits, err = ctx.Services.Habits.List(ctx.Context(), u.ID, false, false)
		if err != nil {
			return err
		}
	}

	failed := 0
	for _, h := range habits {
		s, err := ctx.Services.Streaks.Recalculate(ctx.Context(), u.ID, h.ID)
		if err != nil {
			fmt.Printf("❌ %s: %v\n", h.Name, err)
			failed++
			continue
		}
		fmt.Printf("✓ %s: %s (best %d)\n", h.Name, cli.FormatStreak(s.CurrentStreak), s.LongestStreak)
	}
	if failed > 0 {
		return fmt.Errorf("%d habits failed to recalculate", failed)
	}
	return nil
}
