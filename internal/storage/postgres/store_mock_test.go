package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	pq "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/julianstephens/habitual/internal/errors"
	"github.com/julianstephens/habitual/internal/models"
)

func setupMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return NewWithDB(db), mock
}

var mockNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func TestAddHabitCreatesStreakInTransaction(t *testing.T) {
	store, mock := setupMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO habits")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO streaks")).
		WithArgs("h1", "u1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.AddHabit(context.Background(), models.Habit{
		ID:        "h1",
		UserID:    "u1",
		Name:      "Read",
		Type:      models.HabitTypeLearning,
		Frequency: models.FrequencyDaily,
		CreatedAt: mockNow,
		UpdatedAt: mockNow,
	})
	require.NoError(t, err)
}

func TestAddHabitRollsBackOnStreakFailure(t *testing.T) {
	store, mock := setupMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO habits")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO streaks")).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := store.AddHabit(context.Background(), models.Habit{ID: "h1", UserID: "u1", CreatedAt: mockNow})
	require.Error(t, err)
}

func TestSaveStreakBumpsVersion(t *testing.T) {
	store, mock := setupMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("WHERE streaks.version = $9")).
		WithArgs("h1", "u1", 3, 5, sqlmock.AnyArg(), sqlmock.AnyArg(), 3, sqlmock.AnyArg(), 2).
		WillReturnResult(sqlmock.NewResult(0, 1))

	last := mockNow
	saved, err := store.SaveStreak(context.Background(), models.Streak{
		HabitID:            "h1",
		UserID:             "u1",
		CurrentStreak:      3,
		LongestStreak:      5,
		LastCompletionDate: &last,
		StreakStartDate:    &last,
		UpdatedAt:          mockNow,
	}, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, saved.Version)
}

func TestSaveStreakConflict(t *testing.T) {
	store, mock := setupMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO streaks")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := store.SaveStreak(context.Background(), models.Streak{HabitID: "h1", UserID: "u1", UpdatedAt: mockNow}, 4)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestGetHabitNotFound(t *testing.T) {
	store, mock := setupMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM habits WHERE id = $1")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.GetHabit(context.Background(), "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestGetStreakScansNullableDates(t *testing.T) {
	store, mock := setupMockStore(t)

	rows := sqlmock.NewRows([]string{
		"habit_id", "user_id", "current_streak", "longest_streak", "last_completion_date",
		"streak_start_date", "version", "created_at", "updated_at",
	}).AddRow("h1", "u1", 0, 7, mockNow, nil, 9, mockNow, mockNow)

	mock.ExpectQuery(regexp.QuoteMeta("FROM streaks WHERE habit_id = $1")).
		WithArgs("h1").
		WillReturnRows(rows)

	st, err := store.GetStreak(context.Background(), "h1")
	require.NoError(t, err)
	assert.Equal(t, 7, st.LongestStreak)
	assert.Equal(t, 9, st.Version)
	require.NotNil(t, st.LastCompletionDate)
	assert.True(t, st.LastCompletionDate.Equal(mockNow))
	assert.Nil(t, st.StreakStartDate)
}

func TestAddUserDuplicateUsername(t *testing.T) {
	store, mock := setupMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

	err := store.AddUser(context.Background(), models.User{ID: "u1", Username: "ada", CreatedAt: mockNow, UpdatedAt: mockNow})
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestListNotificationsPlaceholders(t *testing.T) {
	store, mock := setupMockStore(t)

	rows := sqlmock.NewRows([]string{
		"id", "user_id", "habit_id", "type", "title", "message", "status", "created_at", "read_at",
	}).AddRow("n1", "u1", "h1", "STREAK_MILESTONE", "Streak Milestone! 🔥", "msg", "UNREAD", mockNow, nil)

	mock.ExpectQuery(regexp.QuoteMeta("AND status = $2 ORDER BY created_at DESC, id LIMIT $3")).
		WithArgs("u1", "UNREAD", 5).
		WillReturnRows(rows)

	list, err := store.ListNotifications(context.Background(), "u1", true, 5)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.NotificationStreakMilestone, list[0].Type)
	assert.Equal(t, models.NotificationUnread, list[0].Status)
	assert.Nil(t, list[0].ReadAt)
}

func TestMarkNotificationReadNotFound(t *testing.T) {
	store, mock := setupMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE notifications SET status = $1")).
		WithArgs("READ", sqlmock.AnyArg(), "n1", "u2").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.MarkNotificationRead(context.Background(), "u2", "n1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
