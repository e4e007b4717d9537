// Package events carries milestone events from the streak service to
// notification sinks. Publishing never blocks the caller and delivery
// failures never reach it.
package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/julianstephens/habitual/internal/constants"
	"github.com/julianstephens/habitual/internal/logger"
	"github.com/julianstephens/habitual/internal/metrics"
	"github.com/julianstephens/habitual/internal/streak"
)

// MilestoneEvent is a reached milestone plus the display data sinks need.
type MilestoneEvent struct {
	streak.Milestone
	HabitName string `json:"habit_name"`
}

func (e MilestoneEvent) Title() string {
	return "Streak Milestone! 🔥"
}

func (e MilestoneEvent) Message() string {
	return fmt.Sprintf("Congratulations! You've reached a %d-day streak for '%s'!", e.Threshold, e.HabitName)
}

// Sink receives milestone events.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, e MilestoneEvent) error
}

type Bus struct {
	queue chan MilestoneEvent
	log   *logger.Component

	mu    sync.RWMutex
	sinks []Sink
}

// NewBus creates a bus buffering up to size events. A size below 1 uses
// constants.EventBufferSize.
func NewBus(size int) *Bus {
	if size < 1 {
		size = constants.EventBufferSize
	}
	return &Bus{
		queue: make(chan MilestoneEvent, size),
		log:   logger.With("events"),
	}
}

func (b *Bus) Register(sinks ...Sink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sinks = append(b.sinks, sinks...)
}

// Publish queues e for delivery. It reports false when the buffer is full
// and the event was dropped.
func (b *Bus) Publish(e MilestoneEvent) bool {
	select {
	case b.queue <- e:
		return true
	default:
		metrics.RecordDroppedEvent()
		b.log.Warn("Event buffer full, dropping milestone",
			"habit_id", e.HabitID, "user_id", e.UserID, "threshold", e.Threshold)
		return false
	}
}

// Run delivers queued events until ctx is cancelled, then flushes what is
// left within constants.ShutdownTimeout.
func (b *Bus) Run(ctx context.Context) error {
	for {
		select {
		case e := <-b.queue:
			b.dispatch(ctx, e)
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.ShutdownTimeout)
			defer cancel()
			b.Drain(flushCtx)
			return nil
		}
	}
}

// Drain synchronously delivers every queued event. Short-lived commands call
// it before exiting instead of running the bus.
func (b *Bus) Drain(ctx context.Context) int {
	n := 0
	for {
		select {
		case e := <-b.queue:
			b.dispatch(ctx, e)
			n++
		default:
			return n
		}
	}
}

// Pending is the number of queued events.
func (b *Bus) Pending() int {
	return len(b.queue)
}

func (b *Bus) dispatch(ctx context.Context, e MilestoneEvent) {
	b.mu.RLock()
	sinks := append([]Sink(nil), b.sinks...)
	b.mu.RUnlock()

	for _, s := range sinks {
		if err := s.Deliver(ctx, e); err != nil {
			metrics.RecordSinkFailure(s.Name())
			b.log.Warn("Milestone delivery failed",
				"sink", s.Name(), "habit_id", e.HabitID, "threshold", e.Threshold, "error", err)
		}
	}
}
