package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	apperrors "github.com/julianstephens/habitual/internal/errors"
	"github.com/julianstephens/habitual/internal/models"
)

func setupTestSQLiteStore(t *testing.T) (*Store, func()) {
	tempDir := t.TempDir()
	dbPath := filepath.Join(tempDir, "test.db")

	store := NewStore(dbPath)
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("failed to initialize test store: %v", err)
	}

	cleanup := func() {
		store.Close()
		os.RemoveAll(tempDir)
	}

	return store, cleanup
}

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func seedUser(t *testing.T, s *Store, id, username string) models.User {
	t.Helper()
	u := models.User{
		ID:           id,
		Username:     username,
		PasswordHash: "hash",
		Timezone:     "UTC",
		CreatedAt:    testNow,
		UpdatedAt:    testNow,
	}
	if err := s.AddUser(context.Background(), u); err != nil {
		t.Fatalf("failed to add user: %v", err)
	}
	return u
}

func seedHabit(t *testing.T, s *Store, id, userID, name string) models.Habit {
	t.Helper()
	h := models.Habit{
		ID:          id,
		UserID:      userID,
		Name:        name,
		Type:        models.HabitTypeHealth,
		Frequency:   models.FrequencyDaily,
		TargetValue: 1,
		CreatedAt:   testNow,
		UpdatedAt:   testNow,
	}
	if err := s.AddHabit(context.Background(), h); err != nil {
		t.Fatalf("failed to add habit: %v", err)
	}
	return h
}

func TestLoadRequiresInit(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "missing.db"))
	if err := store.Load(context.Background()); err == nil {
		t.Fatal("expected Load to fail before Init")
	}
}

func TestLoadAfterInit(t *testing.T) {
	store, cleanup := setupTestSQLiteStore(t)
	defer cleanup()
	seedUser(t, store, "u1", "ada")
	store.Close()

	reopened := NewStore(store.GetConfigPath())
	if err := reopened.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	defer reopened.Close()

	if _, err := reopened.GetUserByUsername(context.Background(), "ada"); err != nil {
		t.Errorf("expected persisted user after reload: %v", err)
	}
}

func TestUsers(t *testing.T) {
	store, cleanup := setupTestSQLiteStore(t)
	defer cleanup()
	ctx := context.Background()

	u := seedUser(t, store, "u1", "ada")

	got, err := store.GetUser(ctx, "u1")
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if got.Username != u.Username || !got.CreatedAt.Equal(u.CreatedAt) {
		t.Errorf("unexpected user %+v", got)
	}

	dup := u
	dup.ID = "u2"
	if err := store.AddUser(ctx, dup); !errors.Is(err, apperrors.ErrConflict) {
		t.Errorf("expected ErrConflict for duplicate username, got %v", err)
	}

	if _, err := store.GetUser(ctx, "nope"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestAddHabitCreatesZeroStreak(t *testing.T) {
	store, cleanup := setupTestSQLiteStore(t)
	defer cleanup()
	ctx := context.Background()

	seedUser(t, store, "u1", "ada")
	seedHabit(t, store, "h1", "u1", "Read")

	st, err := store.GetStreak(ctx, "h1")
	if err != nil {
		t.Fatalf("GetStreak failed: %v", err)
	}
	if st.CurrentStreak != 0 || st.LongestStreak != 0 || st.Version != 0 {
		t.Errorf("expected zero streak, got %+v", st)
	}
	if st.LastCompletionDate != nil || st.StreakStartDate != nil {
		t.Error("expected nil dates on a new streak")
	}
}

func TestHabitLifecycle(t *testing.T) {
	store, cleanup := setupTestSQLiteStore(t)
	defer cleanup()
	ctx := context.Background()

	seedUser(t, store, "u1", "ada")
	seedHabit(t, store, "h1", "u1", "Read")
	seedHabit(t, store, "h2", "u1", "Run")

	if err := store.ArchiveHabit(ctx, "h1"); err != nil {
		t.Fatalf("ArchiveHabit failed: %v", err)
	}
	active, err := store.ListHabits(ctx, "u1", false, false)
	if err != nil {
		t.Fatalf("ListHabits failed: %v", err)
	}
	if len(active) != 1 || active[0].ID != "h2" {
		t.Errorf("expected only h2 active, got %+v", active)
	}

	all, err := store.ListHabits(ctx, "u1", true, false)
	if err != nil {
		t.Fatalf("ListHabits failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("expected 2 habits including archived, got %d", len(all))
	}

	if err := store.UnarchiveHabit(ctx, "h1"); err != nil {
		t.Fatalf("UnarchiveHabit failed: %v", err)
	}
	if err := store.DeleteHabit(ctx, "h2"); err != nil {
		t.Fatalf("DeleteHabit failed: %v", err)
	}

	h2, err := store.GetHabit(ctx, "h2")
	if err != nil {
		t.Fatalf("GetHabit on deleted habit failed: %v", err)
	}
	if h2.DeletedAt == nil || h2.IsActive() {
		t.Error("expected h2 to be soft deleted")
	}

	globalActive, err := store.ListActiveHabits(ctx)
	if err != nil {
		t.Fatalf("ListActiveHabits failed: %v", err)
	}
	if len(globalActive) != 1 || globalActive[0].ID != "h1" {
		t.Errorf("expected only h1 active, got %+v", globalActive)
	}

	if err := store.RestoreHabit(ctx, "h2"); err != nil {
		t.Fatalf("RestoreHabit failed: %v", err)
	}
	h2, _ = store.GetHabit(ctx, "h2")
	if !h2.IsActive() {
		t.Error("expected h2 to be active after restore")
	}

	if err := store.DeleteHabit(ctx, "missing"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("expected ErrNotFound deleting a missing habit, got %v", err)
	}
}

func TestUpdateHabit(t *testing.T) {
	store, cleanup := setupTestSQLiteStore(t)
	defer cleanup()
	ctx := context.Background()

	seedUser(t, store, "u1", "ada")
	h := seedHabit(t, store, "h1", "u1", "Read")

	h.Name = "Read more"
	h.Frequency = models.FrequencyCustom
	h.IntervalDays = 2
	h.Reward = "coffee"
	h.UpdatedAt = testNow.Add(time.Hour)
	if err := store.UpdateHabit(ctx, h); err != nil {
		t.Fatalf("UpdateHabit failed: %v", err)
	}

	got, err := store.GetHabit(ctx, "h1")
	if err != nil {
		t.Fatalf("GetHabit failed: %v", err)
	}
	if got.Name != "Read more" || got.Frequency != models.FrequencyCustom || got.IntervalDays != 2 || got.Reward != "coffee" {
		t.Errorf("update not persisted: %+v", got)
	}

	h.ID = "missing"
	if err := store.UpdateHabit(ctx, h); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCompletionsNewestFirst(t *testing.T) {
	store, cleanup := setupTestSQLiteStore(t)
	defer cleanup()
	ctx := context.Background()

	seedUser(t, store, "u1", "ada")
	seedHabit(t, store, "h1", "u1", "Read")

	value := 20
	times := []time.Time{
		testNow.Add(-48 * time.Hour),
		testNow,
		testNow.Add(-24*time.Hour + 500*time.Millisecond),
	}
	for i, ts := range times {
		c := models.HabitCompletion{
			ID:          []string{"c1", "c2", "c3"}[i],
			HabitID:     "h1",
			UserID:      "u1",
			CompletedAt: ts,
			CreatedAt:   ts,
		}
		if i == 1 {
			c.Value = &value
		}
		if err := store.AddCompletion(ctx, c); err != nil {
			t.Fatalf("AddCompletion failed: %v", err)
		}
	}

	got, err := store.ListCompletions(ctx, "h1")
	if err != nil {
		t.Fatalf("ListCompletions failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 completions, got %d", len(got))
	}
	wantOrder := []string{"c2", "c3", "c1"}
	for i, id := range wantOrder {
		if got[i].ID != id {
			t.Errorf("position %d: got %s, want %s", i, got[i].ID, id)
		}
	}
	if got[0].Value == nil || *got[0].Value != 20 {
		t.Errorf("expected value 20 on newest completion, got %v", got[0].Value)
	}
	if !got[1].CompletedAt.Equal(times[2]) {
		t.Errorf("expected sub-second precision to survive, got %v", got[1].CompletedAt)
	}

	n, err := store.CountCompletions(ctx, "h1", testNow.Add(-36*time.Hour), testNow)
	if err != nil {
		t.Fatalf("CountCompletions failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 completion in range, got %d", n)
	}
}

func TestListCompletionsMalformedTimestamp(t *testing.T) {
	store, cleanup := setupTestSQLiteStore(t)
	defer cleanup()
	ctx := context.Background()

	seedUser(t, store, "u1", "ada")
	seedHabit(t, store, "h1", "u1", "Read")

	_, err := store.GetDB().Exec(`
		INSERT INTO habit_completions (id, habit_id, user_id, completed_at, notes, created_at)
		VALUES ('bad', 'h1', 'u1', 'yesterday-ish', '', ?)`, formatTime(testNow))
	if err != nil {
		t.Fatalf("failed to insert malformed row: %v", err)
	}

	got, err := store.ListCompletions(ctx, "h1")
	if err != nil {
		t.Fatalf("ListCompletions should not fail on a malformed row: %v", err)
	}
	if len(got) != 1 || !got[0].CompletedAt.IsZero() {
		t.Errorf("expected one completion with zero timestamp, got %+v", got)
	}
}

func TestSaveStreakOptimisticVersion(t *testing.T) {
	store, cleanup := setupTestSQLiteStore(t)
	defer cleanup()
	ctx := context.Background()

	seedUser(t, store, "u1", "ada")
	seedHabit(t, store, "h1", "u1", "Read")

	st, err := store.GetStreak(ctx, "h1")
	if err != nil {
		t.Fatalf("GetStreak failed: %v", err)
	}

	last := testNow
	st.CurrentStreak = 1
	st.LongestStreak = 1
	st.LastCompletionDate = &last
	st.StreakStartDate = &last
	st.UpdatedAt = testNow

	saved, err := store.SaveStreak(ctx, st, st.Version)
	if err != nil {
		t.Fatalf("SaveStreak failed: %v", err)
	}
	if saved.Version != 1 {
		t.Errorf("expected version 1 after save, got %d", saved.Version)
	}

	// A writer still holding version 0 must lose.
	st.CurrentStreak = 5
	if _, err := store.SaveStreak(ctx, st, 0); !errors.Is(err, apperrors.ErrConflict) {
		t.Fatalf("expected ErrConflict for stale version, got %v", err)
	}

	got, err := store.GetStreak(ctx, "h1")
	if err != nil {
		t.Fatalf("GetStreak failed: %v", err)
	}
	if got.CurrentStreak != 1 || got.Version != 1 {
		t.Errorf("expected stored streak untouched by stale write, got %+v", got)
	}
	if got.LastCompletionDate == nil || !got.LastCompletionDate.Equal(last) {
		t.Errorf("expected last completion %v, got %v", last, got.LastCompletionDate)
	}
}

func TestListStreaksOrderedByCurrent(t *testing.T) {
	store, cleanup := setupTestSQLiteStore(t)
	defer cleanup()
	ctx := context.Background()

	seedUser(t, store, "u1", "ada")
	seedHabit(t, store, "h1", "u1", "Read")
	seedHabit(t, store, "h2", "u1", "Run")
	seedHabit(t, store, "h3", "u1", "Write")

	st, _ := store.GetStreak(ctx, "h2")
	st.CurrentStreak, st.LongestStreak, st.UpdatedAt = 4, 4, testNow
	if _, err := store.SaveStreak(ctx, st, 0); err != nil {
		t.Fatalf("SaveStreak failed: %v", err)
	}
	if err := store.DeleteHabit(ctx, "h3"); err != nil {
		t.Fatalf("DeleteHabit failed: %v", err)
	}

	streaks, err := store.ListStreaks(ctx, "u1")
	if err != nil {
		t.Fatalf("ListStreaks failed: %v", err)
	}
	if len(streaks) != 2 {
		t.Fatalf("expected 2 streaks for active habits, got %d", len(streaks))
	}
	if streaks[0].HabitID != "h2" {
		t.Errorf("expected h2 first, got %s", streaks[0].HabitID)
	}
}

func TestNotifications(t *testing.T) {
	store, cleanup := setupTestSQLiteStore(t)
	defer cleanup()
	ctx := context.Background()

	seedUser(t, store, "u1", "ada")
	seedUser(t, store, "u2", "bob")

	for i, id := range []string{"n1", "n2", "n3"} {
		n := models.Notification{
			ID:        id,
			UserID:    "u1",
			HabitID:   "h1",
			Type:      models.NotificationStreakMilestone,
			Title:     "Streak Milestone! 🔥",
			Message:   "msg",
			Status:    models.NotificationUnread,
			CreatedAt: testNow.Add(time.Duration(i) * time.Minute),
		}
		if err := store.AddNotification(ctx, n); err != nil {
			t.Fatalf("AddNotification failed: %v", err)
		}
	}

	list, err := store.ListNotifications(ctx, "u1", false, 2)
	if err != nil {
		t.Fatalf("ListNotifications failed: %v", err)
	}
	if len(list) != 2 || list[0].ID != "n3" {
		t.Errorf("expected newest two notifications, got %+v", list)
	}

	if err := store.MarkNotificationRead(ctx, "u1", "n1"); err != nil {
		t.Fatalf("MarkNotificationRead failed: %v", err)
	}
	if err := store.MarkNotificationRead(ctx, "u2", "n2"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("expected ErrNotFound marking another user's notification, got %v", err)
	}

	unread, err := store.CountUnreadNotifications(ctx, "u1")
	if err != nil {
		t.Fatalf("CountUnreadNotifications failed: %v", err)
	}
	if unread != 2 {
		t.Errorf("expected 2 unread, got %d", unread)
	}

	marked, err := store.MarkAllNotificationsRead(ctx, "u1")
	if err != nil {
		t.Fatalf("MarkAllNotificationsRead failed: %v", err)
	}
	if marked != 2 {
		t.Errorf("expected 2 marked read, got %d", marked)
	}

	onlyUnread, err := store.ListNotifications(ctx, "u1", true, 0)
	if err != nil {
		t.Fatalf("ListNotifications failed: %v", err)
	}
	if len(onlyUnread) != 0 {
		t.Errorf("expected no unread notifications, got %d", len(onlyUnread))
	}
}
