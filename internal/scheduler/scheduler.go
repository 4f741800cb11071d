// Package scheduler triggers the daily collection run and housekeeping.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/thinkscotty/newsroom/internal/archive"
	"github.com/thinkscotty/newsroom/internal/models"
	"github.com/thinkscotty/newsroom/internal/pipeline"
)

// Store is the local bookkeeping the scheduler consults each tick.
type Store interface {
	DeleteExpiredSessions() (int64, error)
	HasSuccessfulRun(date string) (bool, error)
	CleanOldRuns(days int) error
}

type Runner interface {
	Run(ctx context.Context) (models.RunReport, error)
}

const runLogRetentionDays = 90

type Scheduler struct {
	store    Store
	runner   Runner
	hour     int
	loc      *time.Location
	enabled  bool
	interval time.Duration
	now      func() time.Time

	// attempted is the last date a scheduled run was tried in this process.
	attempted string
	cleaned   string
}

// New builds a Scheduler that runs once a day at or after hour in loc.
func New(store Store, runner Runner, enabled bool, hour int, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		store:    store,
		runner:   runner,
		hour:     hour,
		loc:      loc,
		enabled:  enabled,
		interval: 60 * time.Second,
		now:      time.Now,
	}
}

// Run starts the scheduler loop. It checks every 60 seconds.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("Scheduler started", "enabled", s.enabled, "hour", s.hour, "timezone", s.loc.String())

	// Run once immediately at startup
	s.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	// Clean up expired sessions on each tick
	if n, err := s.store.DeleteExpiredSessions(); err != nil {
		slog.Error("Failed to delete expired sessions", "error", err)
	} else if n > 0 {
		slog.Debug("Cleaned up expired sessions", "count", n)
	}

	now := s.now().In(s.loc)
	today := now.Format(archive.DateLayout)

	if s.cleaned != today {
		if err := s.store.CleanOldRuns(runLogRetentionDays); err != nil {
			slog.Error("Failed to clean run log", "error", err)
		} else {
			s.cleaned = today
		}
	}

	if !s.due(now, today) {
		return
	}

	s.attempted = today
	slog.Info("Starting scheduled run", "date", today)
	report, err := s.runner.Run(ctx)
	switch {
	case errors.Is(err, pipeline.ErrRunInProgress):
		slog.Info("Scheduled run skipped, a run is already in progress")
		s.attempted = ""
	case err != nil:
		slog.Error("Scheduled run failed", "date", today, "run_id", report.ID, "error", err)
	}
}

// due reports whether the daily run should start now: scheduling is on,
// the hour has come, and today has neither succeeded nor been tried yet.
func (s *Scheduler) due(now time.Time, today string) bool {
	if !s.enabled || now.Hour() < s.hour || s.attempted == today {
		return false
	}
	done, err := s.store.HasSuccessfulRun(today)
	if err != nil {
		slog.Error("Failed to check run log", "error", err)
		return false
	}
	if done {
		s.attempted = today
		return false
	}
	return true
}
