// Package scheduler fires a tick at every archive interval boundary.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
)

// ArchiveTimer sends the wall-clock time of each interval boundary on Ticks.
type ArchiveTimer struct {
	scheduler *gocron.Scheduler
	interval  int
	ticks     chan time.Time
	logger    *zap.SugaredLogger
}

// NewArchiveTimer creates a timer for an interval in minutes that divides
// the hour.
func NewArchiveTimer(intervalMinutes int, loc *time.Location, logger *zap.SugaredLogger) *ArchiveTimer {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &ArchiveTimer{
		scheduler: gocron.NewScheduler(loc),
		interval:  intervalMinutes,
		ticks:     make(chan time.Time, 1),
		logger:    logger,
	}
}

// Ticks delivers one value per boundary. A tick the consumer has not taken
// by the next boundary is dropped.
func (a *ArchiveTimer) Ticks() <-chan time.Time {
	return a.ticks
}

// Start schedules the boundary job and starts the underlying scheduler.
func (a *ArchiveTimer) Start() error {
	spec, err := cronSpec(a.interval)
	if err != nil {
		return err
	}

	_, err = a.scheduler.Cron(spec).Do(a.fire)
	if err != nil {
		return fmt.Errorf("unable to schedule archive timer: %w", err)
	}

	a.scheduler.StartAsync()
	a.logger.Infof("archive timer started (%s)", spec)
	return nil
}

// Stop stops the scheduler and cancels any future ticks.
func (a *ArchiveTimer) Stop() {
	a.scheduler.Stop()
}

// Run starts the timer and stops it when ctx is done.
func (a *ArchiveTimer) Run(ctx context.Context) error {
	if err := a.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	a.Stop()
	return nil
}

func (a *ArchiveTimer) fire() {
	a.send(time.Now().Truncate(time.Minute))
}

func (a *ArchiveTimer) send(t time.Time) {
	select {
	case a.ticks <- t:
	default:
		a.logger.Warnf("archive tick at %v dropped: previous tick still pending", t)
	}
}

func cronSpec(intervalMinutes int) (string, error) {
	switch {
	case intervalMinutes == 1:
		return "* * * * *", nil
	case intervalMinutes == 60:
		return "0 * * * *", nil
	case intervalMinutes > 1 && intervalMinutes < 60 && 60%intervalMinutes == 0:
		return fmt.Sprintf("*/%d * * * *", intervalMinutes), nil
	}
	return "", fmt.Errorf("archive interval %d minutes does not divide the hour", intervalMinutes)
}
