package scheduler

import (
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/weather-lookup/internal/logger"
)

// Sweeper is what the scheduler cleans up periodically.
type Sweeper interface {
	Sweep(maxIdle time.Duration) int
}

// Scheduler periodically closes sessions that have been idle too long.
type Scheduler struct {
	scheduler *gocron.Scheduler
	sessions  Sweeper
	maxIdle   time.Duration
	interval  time.Duration
}

// New creates a new Scheduler.
func New(sessions Sweeper, maxIdle, interval time.Duration) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler: s,
		sessions:  sessions,
		maxIdle:   maxIdle,
		interval:  interval,
	}
}

// Start schedules the sweep job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if s.maxIdle <= 0 {
		logger.Infof("scheduler: session TTL disabled; nothing to schedule")
		return nil
	}

	interval := s.interval
	if interval <= 0 {
		interval = time.Minute
	}

	_, err := s.scheduler.Every(interval).Do(s.sweep)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

func (s *Scheduler) sweep() {
	if n := s.sessions.Sweep(s.maxIdle); n > 0 {
		logger.Infof("scheduler: closed %d idle sessions", n)
	}
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
