package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/julianstephens/habitual/internal/constants"
	"github.com/julianstephens/habitual/internal/models"
	"github.com/julianstephens/habitual/internal/streak"
)

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			Padding(0, 1)

	cellStyle = lipgloss.NewStyle().Padding(0, 1)

	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	WarningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Italic(true)

	DangerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	milestoneStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("202")).
			Bold(true).
			Padding(0, 2).
			MarginTop(1)
)

// Table renders rows with a bold header and rounded borders.
func Table(headers []string, rows [][]string) string {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(mutedStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		String()
}

// Muted dims s for secondary output.
func Muted(s string) string { return mutedStyle.Render(s) }

// MilestoneBanner renders the celebration shown after a completion reaches a
// milestone.
func MilestoneBanner(habitName string, m streak.Milestone) string {
	return milestoneStyle.Render(fmt.Sprintf("🔥 %d-day streak for %s!", m.Threshold, habitName))
}

// HabitStatus labels archived and deleted habits.
func HabitStatus(h models.Habit) string {
	switch {
	case h.DeletedAt != nil:
		return DangerStyle.Render("deleted")
	case h.ArchivedAt != nil:
		return WarningStyle.Render("archived")
	}
	return "active"
}

// FormatFrequency describes how often a habit is due.
func FormatFrequency(h models.Habit) string {
	if h.Frequency != models.FrequencyCustom {
		return strings.ToLower(string(h.Frequency))
	}
	interval := max(h.IntervalDays, 1)
	s := fmt.Sprintf("every %d days", interval)
	if interval == 1 {
		s = "every day"
	}
	if h.MaxGap > 1 {
		s += fmt.Sprintf(" (gap %d)", h.MaxGap)
	}
	return s
}

// FormatStreak renders a streak length with a flame once it is under way.
func FormatStreak(n int) string {
	if n == 0 {
		return Muted("0")
	}
	return fmt.Sprintf("%d 🔥", n)
}

// FormatDate renders an optional timestamp as a local date.
func FormatDate(t *time.Time, loc *time.Location) string {
	if t == nil {
		return Muted("-")
	}
	return t.In(loc).Format(constants.DateFormat)
}
