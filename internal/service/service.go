// Package service implements the application use cases on top of a
// storage.Provider. HTTP handlers and CLI commands both go through it.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/julianstephens/habitual/internal/auth"
	apperrors "github.com/julianstephens/habitual/internal/errors"
	"github.com/julianstephens/habitual/internal/events"
	"github.com/julianstephens/habitual/internal/models"
	"github.com/julianstephens/habitual/internal/storage"
)

// Services bundles the services sharing one store.
type Services struct {
	Users         *UserService
	Habits        *HabitService
	Streaks       *StreakService
	Notifications *NotificationService
}

// New wires the services. bus and issuer may be nil: without a bus
// milestones are only logged, without an issuer Login is unavailable.
func New(store storage.Provider, bus *events.Bus, issuer *auth.Issuer) *Services {
	var pub Publisher
	if bus != nil {
		pub = bus
	}
	return &Services{
		Users:         NewUserService(store, issuer),
		Habits:        NewHabitService(store),
		Streaks:       NewStreakService(store, pub),
		Notifications: NewNotificationService(store),
	}
}

// ownedHabit loads a habit and hides it from anyone but its owner.
func ownedHabit(ctx context.Context, store storage.Provider, userID, habitID string) (models.Habit, error) {
	h, err := store.GetHabit(ctx, habitID)
	if err != nil {
		return models.Habit{}, err
	}
	if h.UserID != userID {
		return models.Habit{}, fmt.Errorf("habit %s: %w", habitID, apperrors.ErrNotFound)
	}
	return h, nil
}

func systemNow() time.Time {
	return time.Now().UTC()
}

// keyedMutex serializes work per key and forgets keys nobody holds.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refLock
}

type refLock struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*refLock)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &refLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
