package habits

import (
	"context"
	"fmt"
	"strings"

	"github.com/julianstephens/habitual/internal/cli"
	"github.com/julianstephens/habitual/internal/constants"
	"github.com/julianstephens/habitual/internal/models"
	"github.com/julianstephens/habitual/internal/service"
)

type HabitCmd struct {
	Add       HabitAddCmd       `cmd:"" help:"Add a new habit."`
	List      HabitListCmd      `cmd:"" help:"List habits with their streaks."`
	Show      HabitShowCmd      `cmd:"" help:"Show a habit, its streak and recent completions."`
	Edit      HabitEditCmd      `cmd:"" help:"Edit a habit."`
	Complete  HabitCompleteCmd  `cmd:"" help:"Record a completion."`
	Log       HabitLogCmd       `cmd:"" help:"Show habit log (ASCII history)."`
	Archive   HabitArchiveCmd   `cmd:"" help:"Archive a habit."`
	Unarchive HabitUnarchiveCmd `cmd:"" help:"Unarchive a habit."`
	Delete    HabitDeleteCmd    `cmd:"" help:"Delete a habit (soft delete)."`
	Restore   HabitRestoreCmd   `cmd:"" help:"Restore a deleted habit."`
}

// HabitFlags are shared by add and edit.
type HabitFlags struct {
	Description  string `help:"What the habit is about."`
	Type         string `help:"Category: health, productivity, learning, social, finance, mindfulness, creative or maintenance."`
	Frequency    string `help:"How often: daily, weekly, monthly or custom."`
	IntervalDays int    `help:"Custom frequency: days per period."`
	MaxGap       int    `help:"Custom frequency: periods allowed between completions."`
	TargetValue  int    `help:"Target amount per completion."`
	TargetUnit   string `help:"Unit of the target amount, e.g. pages."`
	Reminder     string `help:"Reminder time (HH:MM)."`
	Reward       string `help:"Reward for keeping the habit."`
}

// overlay copies every flag that was set onto in.
func (f HabitFlags) overlay(in service.HabitInput) service.HabitInput {
	if f.Description != "" {
		in.Description = f.Description
	}
	if f.Type != "" {
		in.Type = models.HabitType(strings.ToUpper(f.Type))
	}
	if f.Frequency != "" {
		in.Frequency = models.Frequency(strings.ToUpper(f.Frequency))
	}
	if f.IntervalDays != 0 {
		in.IntervalDays = f.IntervalDays
	}
	if f.MaxGap != 0 {
		in.MaxGap = f.MaxGap
	}
	if f.TargetValue != 0 {
		in.TargetValue = f.TargetValue
	}
	if f.TargetUnit != "" {
		in.TargetUnit = f.TargetUnit
	}
	if f.Reminder != "" {
		in.Reminder = f.Reminder
	}
	if f.Reward != "" {
		in.Reward = f.Reward
	}
	return in
}

func inputFrom(h models.Habit) service.HabitInput {
	return service.HabitInput{
		Name:         h.Name,
		Description:  h.Description,
		Type:         h.Type,
		Frequency:    h.Frequency,
		IntervalDays: h.IntervalDays,
		MaxGap:       h.MaxGap,
		TargetValue:  h.TargetValue,
		TargetUnit:   h.TargetUnit,
		Reminder:     h.Reminder,
		Reward:       h.Reward,
	}
}

type HabitAddCmd struct {
	Name  string     `arg:"" help:"Habit name."`
	Flags HabitFlags `embed:""`
}

func (c *HabitAddCmd) Run(ctx *cli.Context) error {
	u, err := ctx.CurrentUser(ctx.Context())
	if err != nil {
		return err
	}

	in := service.HabitInput{
		Name:      c.Name,
		Type:      models.HabitTypeHealth,
		Frequency: models.FrequencyDaily,
	}
	h, err := ctx.Services.Habits.Create(ctx.Context(), u.ID, c.Flags.overlay(in))
	if err != nil {
		return err
	}

	fmt.Printf("✓ Added habit: %s (%s)\n", h.Name, cli.FormatFrequency(h))
	return nil
}

type HabitListCmd struct {
	Archived bool `help:"Include archived habits."`
	Deleted  bool `help:"Include deleted habits."`
}

func (c *HabitListCmd) Run(ctx *cli.Context) error {
	u, err := ctx.CurrentUser(ctx.Context())
	if err != nil {
		return err
	}

	habits, err := ctx.Services.Habits.List(ctx.Context(), u.ID, c.Archived, c.Deleted)
	if err != nil {
		return err
	}
	if len(habits) == 0 {
		fmt.Println("No habits found.")
		return nil
	}

	rows := make([][]string, 0, len(habits))
	for _, h := range habits {
		current, longest := "-", "-"
		if s, err := ctx.Services.Streaks.Get(ctx.Context(), u.ID, h.ID); err == nil {
			current, longest = cli.FormatStreak(s.CurrentStreak), fmt.Sprint(s.LongestStreak)
		}
		rows = append(rows, []string{h.Name, strings.ToLower(string(h.Type)), cli.FormatFrequency(h), current, longest, cli.HabitStatus(h)})
	}
	fmt.Println(cli.Table([]string{"Habit", "Type", "Frequency", "Streak", "Best", "Status"}, rows))
	return nil
}

type HabitShowCmd struct {
	Habit  string `arg:"" help:"Habit name or ID."`
	Recent int    `help:"Number of recent completions to show." default:"5"`
}

func (c *HabitShowCmd) Run(ctx *cli.Context) error {
	u, err := ctx.CurrentUser(ctx.Context())
	if err != nil {
		return err
	}
	h, err := ctx.FindHabit(ctx.Context(), u.ID, c.Habit, true, true)
	if err != nil {
		return err
	}
	loc := cli.Location(u)

	fmt.Printf("%s  %s\n", h.Name, cli.Muted(h.ID))
	if h.Description != "" {
		fmt.Println(h.Description)
	}
	fmt.Printf("Type:      %s\n", strings.ToLower(string(h.Type)))
	fmt.Printf("Frequency: %s\n", cli.FormatFrequency(h))
	fmt.Printf("Target:    %d %s\n", h.TargetValue, h.TargetUnit)
	if h.Reminder != "" {
		fmt.Printf("Reminder:  %s\n", h.Reminder)
	}
	if h.Reward != "" {
		fmt.Printf("Reward:    %s\n", h.Reward)
	}
	fmt.Printf("Status:    %s\n", cli.HabitStatus(h))

	if s, err := ctx.Services.Streaks.Get(ctx.Context(), u.ID, h.ID); err == nil {
		fmt.Printf("Streak:    %s (best %d, since %s)\n", cli.FormatStreak(s.CurrentStreak), s.LongestStreak, cli.FormatDate(s.StreakStartDate, loc))
	}

	completions, err := ctx.Services.Habits.Completions(ctx.Context(), u.ID, h.ID)
	if err != nil {
		return err
	}
	fmt.Printf("\nCompletions: %d\n", len(completions))
	for i, comp := range completions {
		if i == c.Recent {
			break
		}
		line := "  " + comp.CompletedAt.In(loc).Format(constants.DateFormat+" "+constants.TimeFormat)
		if comp.Value != nil {
			line += fmt.Sprintf("  %d %s", *comp.Value, h.TargetUnit)
		}
		if comp.Notes != "" {
			line += "  " + cli.Muted(comp.Notes)
		}
		fmt.Println(line)
	}
	return nil
}

type HabitEditCmd struct {
	Habit string     `arg:"" help:"Habit name or ID."`
	Name  string     `help:"New name."`
	Flags HabitFlags `embed:""`
}

func (c *HabitEditCmd) Run(ctx *cli.Context) error {
	u, err := ctx.CurrentUser(ctx.Context())
	if err != nil {
		return err
	}
	h, err := ctx.FindHabit(ctx.Context(), u.ID, c.Habit, true, false)
	if err != nil {
		return err
	}

	in := c.Flags.overlay(inputFrom(h))
	if c.Name != "" {
		in.Name = c.Name
	}
	updated, policyChanged, err := ctx.Services.Habits.Update(ctx.Context(), u.ID, h.ID, in)
	if err != nil {
		return err
	}
	fmt.Printf("✓ Updated habit: %s\n", updated.Name)

	if policyChanged {
		s, err := ctx.Services.Streaks.Recalculate(ctx.Context(), u.ID, h.ID)
		if err != nil {
			return fmt.Errorf("habit updated but streak recalculation failed: %w", err)
		}
		fmt.Printf("  Frequency changed, streak recalculated: %s\n", cli.FormatStreak(s.CurrentStreak))
		ctx.FlushMilestones(ctx.Context())
	}
	return nil
}

type HabitArchiveCmd struct {
	Habit string `arg:"" help:"Habit name or ID to archive."`
}

func (c *HabitArchiveCmd) Run(ctx *cli.Context) error {
	return lifecycle(ctx, c.Habit, false, false, ctx.Services.Habits.Archive, "Archived")
}

type HabitUnarchiveCmd struct {
	Habit string `arg:"" help:"Habit name or ID to unarchive."`
}

func (c *HabitUnarchiveCmd) Run(ctx *cli.Context) error {
	return lifecycle(ctx, c.Habit, true, false, ctx.Services.Habits.Unarchive, "Unarchived")
}

type HabitDeleteCmd struct {
	Habit string `arg:"" help:"Habit name or ID to delete."`
}

func (c *HabitDeleteCmd) Run(ctx *cli.Context) error {
	ctx.PerformAutomaticBackup()
	if err := lifecycle(ctx, c.Habit, true, false, ctx.Services.Habits.Delete, "Deleted"); err != nil {
		return err
	}
	fmt.Printf("(This is a soft delete. Use '%s habit restore' to undo)\n", constants.AppName)
	return nil
}

type HabitRestoreCmd struct {
	Habit string `arg:"" help:"Habit name or ID to restore."`
}

func (c *HabitRestoreCmd) Run(ctx *cli.Context) error {
	return lifecycle(ctx, c.Habit, true, true, ctx.Services.Habits.Restore, "Restored")
}

// lifecycle resolves ref and applies action to it.
func lifecycle(ctx *cli.Context, ref string, includeArchived, includeDeleted bool, action func(context.Context, string, string) error, verb string) error {
	u, err := ctx.CurrentUser(ctx.Context())
	if err != nil {
		return err
	}
	h, err := ctx.FindHabit(ctx.Context(), u.ID, ref, includeArchived, includeDeleted)
	if err != nil {
		return err
	}
	if err := action(ctx.Context(), u.ID, h.ID); err != nil {
		return err
	}
	fmt.Printf("✓ %s habit: %s\n", verb, h.Name)
	return nil
}
