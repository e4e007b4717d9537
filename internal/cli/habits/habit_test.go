package habits

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/julianstephens/habitual/internal/cli"
	"github.com/julianstephens/habitual/internal/constants"
	"github.com/julianstephens/habitual/internal/events"
	"github.com/julianstephens/habitual/internal/models"
	"github.com/julianstephens/habitual/internal/service"
	"github.com/julianstephens/habitual/internal/storage/sqlite"
)

type captureSink struct {
	mu     sync.Mutex
	events []events.MilestoneEvent
}

func (s *captureSink) Name() string { return "capture" }

func (s *captureSink) Deliver(_ context.Context, e events.MilestoneEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func setupTestContext(t *testing.T) (*cli.Context, *captureSink) {
	t.Helper()
	store := sqlite.NewStore(filepath.Join(t.TempDir(), "habitual.db"))
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	sink := &captureSink{}
	bus := events.NewBus(0)
	bus.Register(sink)

	ctx := &cli.Context{
		Store:    store,
		Services: service.New(store, bus, nil),
		Bus:      bus,
		Username: "alice",
	}
	if _, err := ctx.Services.Users.Register(context.Background(), service.RegisterInput{
		Username: "alice",
		Password: "correct horse",
		Timezone: "UTC",
	}); err != nil {
		t.Fatalf("failed to register user: %v", err)
	}
	return ctx, sink
}

func findHabit(t *testing.T, ctx *cli.Context, ref string) models.Habit {
	t.Helper()
	u, err := ctx.CurrentUser(context.Background())
	if err != nil {
		t.Fatalf("CurrentUser() error = %v", err)
	}
	h, err := ctx.FindHabit(context.Background(), u.ID, ref, true, true)
	if err != nil {
		t.Fatalf("FindHabit(%q) error = %v", ref, err)
	}
	return h
}

func streakFor(t *testing.T, ctx *cli.Context, h models.Habit) models.Streak {
	t.Helper()
	s, err := ctx.Services.Streaks.Get(context.Background(), h.UserID, h.ID)
	if err != nil {
		t.Fatalf("failed to get streak: %v", err)
	}
	return s
}

func daysAgo(n int) string {
	return time.Now().UTC().AddDate(0, 0, -n).Format(constants.DateFormat)
}

func TestHabitAddAndList(t *testing.T) {
	ctx, _ := setupTestContext(t)

	add := &HabitAddCmd{Name: "Read", Flags: HabitFlags{Type: "learning", TargetValue: 20, TargetUnit: "pages"}}
	if err := add.Run(ctx); err != nil {
		t.Fatalf("HabitAddCmd.Run() error = %v", err)
	}

	h := findHabit(t, ctx, "read")
	if h.Type != models.HabitTypeLearning || h.Frequency != models.FrequencyDaily {
		t.Errorf("unexpected habit settings: type=%s frequency=%s", h.Type, h.Frequency)
	}
	if h.TargetValue != 20 || h.TargetUnit != "pages" {
		t.Errorf("unexpected target: %d %s", h.TargetValue, h.TargetUnit)
	}

	if err := (&HabitListCmd{}).Run(ctx); err != nil {
		t.Errorf("HabitListCmd.Run() error = %v", err)
	}
	if err := (&HabitShowCmd{Habit: "Read", Recent: 5}).Run(ctx); err != nil {
		t.Errorf("HabitShowCmd.Run() error = %v", err)
	}
}

func TestHabitAddRejectsDuplicateName(t *testing.T) {
	ctx, _ := setupTestContext(t)

	if err := (&HabitAddCmd{Name: "Run"}).Run(ctx); err != nil {
		t.Fatalf("first add failed: %v", err)
	}
	if err := (&HabitAddCmd{Name: "Run"}).Run(ctx); err == nil {
		t.Error("expected duplicate habit name to be rejected")
	}
}

func TestHabitCommandsRequireUser(t *testing.T) {
	ctx, _ := setupTestContext(t)
	ctx.Username = ""

	if err := (&HabitListCmd{}).Run(ctx); err == nil {
		t.Error("expected error without --user")
	}
	ctx.Username = "nobody"
	if err := (&HabitListCmd{}).Run(ctx); err == nil {
		t.Error("expected error for unknown user")
	}
}

func TestHabitCompleteBuildsStreakAndFlushesMilestone(t *testing.T) {
	ctx, sink := setupTestContext(t)

	if err := (&HabitAddCmd{Name: "Meditate", Flags: HabitFlags{Type: "mindfulness"}}).Run(ctx); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	for n := 6; n >= 0; n-- {
		cmd := &HabitCompleteCmd{Habit: "Meditate", Date: daysAgo(n), Time: "07:30"}
		if err := cmd.Run(ctx); err != nil {
			t.Fatalf("complete %d days ago failed: %v", n, err)
		}
	}

	h := findHabit(t, ctx, "Meditate")
	s := streakFor(t, ctx, h)
	if s.CurrentStreak != 7 || s.LongestStreak != 7 {
		t.Errorf("expected 7/7 streak, got %d/%d", s.CurrentStreak, s.LongestStreak)
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.events) != 1 || sink.events[0].Threshold != 7 {
		t.Fatalf("expected one 7-day milestone, got %+v", sink.events)
	}
	if sink.events[0].HabitName != "Meditate" {
		t.Errorf("expected milestone for Meditate, got %q", sink.events[0].HabitName)
	}
	if ctx.Bus.Pending() != 0 {
		t.Errorf("expected bus to be drained, %d pending", ctx.Bus.Pending())
	}
}

func TestHabitCompleteStoresValueAndNotes(t *testing.T) {
	ctx, _ := setupTestContext(t)

	if err := (&HabitAddCmd{Name: "Pushups", Flags: HabitFlags{TargetValue: 50, TargetUnit: "reps"}}).Run(ctx); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if err := (&HabitCompleteCmd{Habit: "Pushups", Value: 42, Notes: "tired"}).Run(ctx); err != nil {
		t.Fatalf("complete failed: %v", err)
	}

	h := findHabit(t, ctx, "Pushups")
	completions, err := ctx.Services.Habits.Completions(context.Background(), h.UserID, h.ID)
	if err != nil {
		t.Fatalf("failed to list completions: %v", err)
	}
	if len(completions) != 1 {
		t.Fatalf("expected 1 completion, got %d", len(completions))
	}
	c := completions[0]
	if c.Value == nil || *c.Value != 42 || c.Notes != "tired" {
		t.Errorf("unexpected completion: value=%v notes=%q", c.Value, c.Notes)
	}
}

func TestHabitCompleteRejectsBadDate(t *testing.T) {
	ctx, _ := setupTestContext(t)

	if err := (&HabitAddCmd{Name: "Walk"}).Run(ctx); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if err := (&HabitCompleteCmd{Habit: "Walk", Date: "yesterday"}).Run(ctx); err == nil {
		t.Error("expected invalid date to be rejected")
	}
	future := time.Now().UTC().AddDate(0, 0, 3).Format(constants.DateFormat)
	if err := (&HabitCompleteCmd{Habit: "Walk", Date: future}).Run(ctx); err == nil {
		t.Error("expected far future completion to be rejected")
	}
}

func TestHabitEditFrequencyRecalculates(t *testing.T) {
	ctx, _ := setupTestContext(t)

	if err := (&HabitAddCmd{Name: "Journal"}).Run(ctx); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	// Every other day: broken as a daily habit.
	for _, n := range []int{4, 2, 0} {
		if err := (&HabitCompleteCmd{Habit: "Journal", Date: daysAgo(n)}).Run(ctx); err != nil {
			t.Fatalf("complete failed: %v", err)
		}
	}
	h := findHabit(t, ctx, "Journal")
	if s := streakFor(t, ctx, h); s.CurrentStreak != 1 {
		t.Fatalf("expected daily streak of 1, got %d", s.CurrentStreak)
	}

	edit := &HabitEditCmd{Habit: "Journal", Flags: HabitFlags{Frequency: "custom", MaxGap: 2}}
	if err := edit.Run(ctx); err != nil {
		t.Fatalf("HabitEditCmd.Run() error = %v", err)
	}
	if s := streakFor(t, ctx, h); s.CurrentStreak != 3 {
		t.Errorf("expected streak of 3 with a gap of 2, got %d", s.CurrentStreak)
	}
}

func TestHabitLifecycle(t *testing.T) {
	ctx, _ := setupTestContext(t)

	if err := (&HabitAddCmd{Name: "Floss"}).Run(ctx); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	if err := (&HabitArchiveCmd{Habit: "Floss"}).Run(ctx); err != nil {
		t.Fatalf("archive failed: %v", err)
	}
	if h := findHabit(t, ctx, "Floss"); h.ArchivedAt == nil {
		t.Error("expected habit to be archived")
	}
	if err := (&HabitCompleteCmd{Habit: "Floss"}).Run(ctx); err == nil {
		t.Error("expected completing an archived habit to fail")
	}

	if err := (&HabitUnarchiveCmd{Habit: "Floss"}).Run(ctx); err != nil {
		t.Fatalf("unarchive failed: %v", err)
	}
	if err := (&HabitDeleteCmd{Habit: "Floss"}).Run(ctx); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if h := findHabit(t, ctx, "Floss"); h.DeletedAt == nil {
		t.Error("expected habit to be deleted")
	}
	if err := (&HabitRestoreCmd{Habit: "Floss"}).Run(ctx); err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	if h := findHabit(t, ctx, "Floss"); !h.IsActive() {
		t.Error("expected habit to be active after restore")
	}
}

func TestHabitLog(t *testing.T) {
	ctx, _ := setupTestContext(t)

	if err := (&HabitAddCmd{Name: "A very long habit name that needs truncating"}).Run(ctx); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if err := (&HabitLogCmd{Days: 7}).Run(ctx); err != nil {
		t.Errorf("HabitLogCmd.Run() error = %v", err)
	}
	if err := (&HabitLogCmd{Days: 0}).Run(ctx); err == nil {
		t.Error("expected --days 0 to be rejected")
	}
}

func TestPadName(t *testing.T) {
	if got := padName("Read"); len(got) != logNameWidth {
		t.Errorf("padName(short) length = %d, want %d", len(got), logNameWidth)
	}
	if got := padName("abcdefghijklmnopqrstuvwxyz"); got != "abcdefghijklmnopq..." {
		t.Errorf("padName(long) = %q", got)
	}
}
