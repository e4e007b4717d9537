package streaks

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/julianstephens/habitual/internal/cli"
	"github.com/julianstephens/habitual/internal/events"
	"github.com/julianstephens/habitual/internal/models"
	"github.com/julianstephens/habitual/internal/service"
	"github.com/julianstephens/habitual/internal/storage/sqlite"
)

type testEnv struct {
	ctx   *cli.Context
	store *sqlite.Store
	user  models.User
}

func setupTestEnv(t *testing.T) testEnv {
	t.Helper()
	store := sqlite.NewStore(filepath.Join(t.TempDir(), "habitual.db"))
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	bus := events.NewBus(0)
	ctx := &cli.Context{
		Store:    store,
		Services: service.New(store, bus, nil),
		Bus:      bus,
		Username: "alice",
	}
	u, err := ctx.Services.Users.Register(context.Background(), service.RegisterInput{
		Username: "alice",
		Password: "correct horse",
		Timezone: "UTC",
	})
	if err != nil {
		t.Fatalf("failed to register user: %v", err)
	}
	return testEnv{ctx: ctx, store: store, user: u}
}

func (e testEnv) addHabit(t *testing.T, name string) models.Habit {
	t.Helper()
	h, err := e.ctx.Services.Habits.Create(context.Background(), e.user.ID, service.HabitInput{
		Name:      name,
		Type:      models.HabitTypeHealth,
		Frequency: models.FrequencyDaily,
	})
	if err != nil {
		t.Fatalf("failed to create habit: %v", err)
	}
	return h
}

// addCompletions writes completions straight to the store so the stored
// streak is left stale.
func (e testEnv) addCompletions(t *testing.T, h models.Habit, daysAgo ...int) {
	t.Helper()
	now := time.Now().UTC()
	for i, n := range daysAgo {
		c := models.HabitCompletion{
			ID:          h.ID + "-c" + string(rune('a'+i)),
			HabitID:     h.ID,
			UserID:      h.UserID,
			CompletedAt: now.AddDate(0, 0, -n),
			CreatedAt:   now,
		}
		if err := e.store.AddCompletion(context.Background(), c); err != nil {
			t.Fatalf("failed to add completion: %v", err)
		}
	}
}

func (e testEnv) streak(t *testing.T, h models.Habit) models.Streak {
	t.Helper()
	s, err := e.ctx.Services.Streaks.Get(context.Background(), e.user.ID, h.ID)
	if err != nil {
		t.Fatalf("failed to get streak: %v", err)
	}
	return s
}

func TestStreakListAndShow(t *testing.T) {
	env := setupTestEnv(t)

	if err := (&StreakListCmd{}).Run(env.ctx); err != nil {
		t.Errorf("StreakListCmd.Run() with no habits error = %v", err)
	}

	h := env.addHabit(t, "Read")
	if _, err := env.ctx.Services.Streaks.RecordCompletion(context.Background(), env.user.ID, h.ID, service.CompletionInput{}); err != nil {
		t.Fatalf("failed to record completion: %v", err)
	}

	if err := (&StreakListCmd{}).Run(env.ctx); err != nil {
		t.Errorf("StreakListCmd.Run() error = %v", err)
	}
	if err := (&StreakShowCmd{Habit: "read"}).Run(env.ctx); err != nil {
		t.Errorf("StreakShowCmd.Run() error = %v", err)
	}
	if err := (&StreakShowCmd{Habit: "missing"}).Run(env.ctx); err == nil {
		t.Error("expected error for unknown habit")
	}
}

func TestStreakRecalcSingleHabit(t *testing.T) {
	env := setupTestEnv(t)
	h := env.addHabit(t, "Stretch")
	other := env.addHabit(t, "Run")
	env.addCompletions(t, h, 2, 1, 0)
	env.addCompletions(t, other, 0)

	if s := env.streak(t, h); s.CurrentStreak != 0 {
		t.Fatalf("expected stale streak of 0, got %d", s.CurrentStreak)
	}

	if err := (&StreakRecalcCmd{Habit: "Stretch"}).Run(env.ctx); err != nil {
		t.Fatalf("StreakRecalcCmd.Run() error = %v", err)
	}
	if s := env.streak(t, h); s.CurrentStreak != 3 || s.LongestStreak != 3 {
		t.Errorf("expected 3/3 after recalc, got %d/%d", s.CurrentStreak, s.LongestStreak)
	}
	if s := env.streak(t, other); s.CurrentStreak != 0 {
		t.Errorf("expected other habit untouched, got %d", s.CurrentStreak)
	}
}

func TestStreakRecalcUserHabits(t *testing.T) {
	env := setupTestEnv(t)
	a := env.addHabit(t, "Stretch")
	b := env.addHabit(t, "Run")
	env.addCompletions(t, a, 1, 0)
	env.addCompletions(t, b, 0)

	if err := (&StreakRecalcCmd{}).Run(env.ctx); err != nil {
		t.Fatalf("StreakRecalcCmd.Run() error = %v", err)
	}
	if s := env.streak(t, a); s.CurrentStreak != 2 {
		t.Errorf("expected streak of 2, got %d", s.CurrentStreak)
	}
	if s := env.streak(t, b); s.CurrentStreak != 1 {
		t.Errorf("expected streak of 1, got %d", s.CurrentStreak)
	}
}

func TestStreakRecalcAll(t *testing.T) {
	env := setupTestEnv(t)
	h := env.addHabit(t, "Stretch")
	env.addCompletions(t, h, 0)

	// --all needs no user.
	env.ctx.Username = ""
	if err := (&StreakRecalcCmd{All: true}).Run(env.ctx); err != nil {
		t.Fatalf("StreakRecalcCmd.Run(--all) error = %v", err)
	}
	if s := env.streak(t, h); s.CurrentStreak != 1 {
		t.Errorf("expected streak of 1, got %d", s.CurrentStreak)
	}

	if err := (&StreakRecalcCmd{All: true, Habit: "Stretch"}).Run(env.ctx); err == nil {
		t.Error("expected --all with a habit to be rejected")
	}
}

func TestStreakRecalcLapsedStreak(t *testing.T) {
	env := setupTestEnv(t)
	h := env.addHabit(t, "Stretch")
	env.addCompletions(t, h, 5, 4, 3)

	if err := (&StreakRecalcCmd{Habit: "Stretch"}).Run(env.ctx); err != nil {
		t.Fatalf("StreakRecalcCmd.Run() error = %v", err)
	}
	s := env.streak(t, h)
	if s.CurrentStreak != 0 {
		t.Errorf("expected lapsed streak to be 0, got %d", s.CurrentStreak)
	}
	if s.LongestStreak != 3 {
		t.Errorf("expected longest streak of 3, got %d", s.LongestStreak)
	}
}
