package habits

import (
	"fmt"
	"strings"
	"time"

	"github.com/julianstephens/habitual/internal/cli"
	"github.com/julianstephens/habitual/internal/constants"
	"github.com/julianstephens/habitual/internal/models"
	"github.com/julianstephens/habitual/internal/utils"
)

type HabitLogCmd struct {
	Days  int    `help:"Number of days to show." default:"14"`
	Habit string `help:"Show log for specific habit only."`
}

const logNameWidth = 20

func (c *HabitLogCmd) Run(ctx *cli.Context) error {
	if c.Days < 1 {
		return fmt.Errorf("--days must be at least 1")
	}
	u, err := ctx.CurrentUser(ctx.Context())
	if err != nil {
		return err
	}

	var selected []models.Habit
	if c.Habit != "" {
		h, err := ctx.FindHabit(ctx.Context(), u.ID, c.Habit, true, false)
		if err != nil {
			return err
		}
		selected = []models.Habit{h}
	} else {
		selected, err = ctx.Services.Habits.List(ctx.Context(), u.ID, false, false)
		if err != nil {
			return err
		}
	}
	if len(selected) == 0 {
		fmt.Println("No habits found.")
		return nil
	}

	loc := cli.Location(u)
	endDay := utils.StartOfDay(time.Now(), loc)
	startDay := endDay.AddDate(0, 0, -(c.Days - 1))

	fmt.Printf("Habit log (last %d days):\n\n", c.Days)

	fmt.Print(padName("Habit"))
	for i := 0; i < c.Days; i++ {
		fmt.Printf(" %5s", startDay.AddDate(0, 0, i).Format("01/02"))
	}
	fmt.Println()
	fmt.Println(strings.Repeat("-", logNameWidth+6*c.Days))

	for _, h := range selected {
		completions, err := ctx.Services.Habits.Completions(ctx.Context(), u.ID, h.ID)
		if err != nil {
			return err
		}
		done := make(map[string]bool, len(completions))
		for _, comp := range completions {
			if comp.CompletedAt.IsZero() {
				continue
			}
			done[comp.CompletedAt.In(loc).Format(constants.DateFormat)] = true
		}

		fmt.Print(padName(h.Name))
		for i := 0; i < c.Days; i++ {
			if done[startDay.AddDate(0, 0, i).Format(constants.DateFormat)] {
				fmt.Print("  x   ")
			} else {
				fmt.Print("  .   ")
			}
		}
		fmt.Println()
	}

	return nil
}

// padName truncates or pads name to the log's name column.
func padName(name string) string {
	r := []rune(name)
	if len(r) > logNameWidth {
		return string(r[:logNameWidth-3]) + "..."
	}
	return name + strings.Repeat(" ", logNameWidth-len(r))
}
