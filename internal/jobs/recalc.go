// Package jobs schedules background maintenance for the serve command.
package jobs

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/julianstephens/habitual/internal/logger"
	"github.com/julianstephens/habitual/internal/service"
)

// Recalculator runs a full streak recalculation pass.
type Recalculator interface {
	RecalculateAll(ctx context.Context) (service.RecalcReport, error)
}

// Scheduler runs the corrective recalculation on a cron schedule. Runs
// never overlap; a tick that arrives while a pass is running is skipped.
type Scheduler struct {
	cron    *cron.Cron
	recalc  Recalculator
	log     *logger.Component
	running sync.Mutex
	ctx     context.Context
}

// NewScheduler parses spec (standard five-field cron or a descriptor such
// as "@daily").
func NewScheduler(spec string, recalc Recalculator) (*Scheduler, error) {
	s := &Scheduler{
		cron:   cron.New(),
		recalc: recalc,
		log:    logger.With("jobs"),
		ctx:    context.Background(),
	}
	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		return nil, fmt.Errorf("invalid recalculation schedule %q: %w", spec, err)
	}
	return s, nil
}

// Run starts the schedule and blocks until ctx is done, then waits for a
// running pass to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	s.ctx = ctx
	s.cron.Start()
	s.log.Info("Recalculation scheduled", "next", s.cron.Entries()[0].Next)

	<-ctx.Done()
	<-s.cron.Stop().Done()
	return nil
}

func (s *Scheduler) tick() {
	if !s.running.TryLock() {
		s.log.Warn("Previous recalculation still running, skipping")
		return
	}
	defer s.running.Unlock()

	s.RunOnce(s.ctx)
}

// RunOnce performs one recalculation pass.
func (s *Scheduler) RunOnce(ctx context.Context) (service.RecalcReport, error) {
	report, err := s.recalc.RecalculateAll(ctx)
	if err != nil {
		s.log.Error("Recalculation failed", "error", err)
		return report, err
	}
	s.log.Info("Recalculation complete",
		"habits", report.Habits, "updated", report.Updated, "milestones", report.Milestones, "failed", report.Failed)
	return report, nil
}
