package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	cron "github.com/netresearch/go-cron"

	"github.com/pocketllm/mediabox/internal/config"
	"github.com/pocketllm/mediabox/internal/types"
)

// Scheduler manages cron-based scheduled jobs for the application.
type Scheduler struct {
	cron    *cron.Cron
	service *MediaboxService
	jobs    []string // names of registered jobs for logging
}

// NewScheduler creates a scheduler and registers all enabled scheduled jobs.
// The scheduler uses the system's local timezone (set via TZ environment variable).
func NewScheduler(svc *MediaboxService) (*Scheduler, error) {
	cfg := svc.Config()

	c := cron.New(
		cron.WithLocation(time.Local),
		cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)),
	)

	s := &Scheduler{cron: c, service: svc}

	if cfg.Cache.Eviction.Enabled {
		if err := s.addJob(cfg.Cache.Eviction, "eviction", s.runEviction); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// addJob registers a scheduled job using the scheduler's configured timezone.
func (s *Scheduler) addJob(cfg config.SchedulerConfig, name string, job func()) error {
	if _, err := s.cron.AddFunc(cfg.Schedule, job); err != nil {
		return err
	}

	s.jobs = append(s.jobs, name)
	slog.Info("Scheduled job registered", "job", name, "schedule", cfg.Schedule)
	return nil
}

// Start activates all scheduled jobs.
func (s *Scheduler) Start() {
	if len(s.jobs) == 0 {
		return
	}
	s.cron.Start()
	slog.Info("Scheduler started", "jobs", s.jobs)
}

// Stop halts the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() context.Context {
	if len(s.jobs) == 0 {
		return context.Background()
	}
	slog.Info("Scheduler stopping...", "jobs", s.jobs)
	return s.cron.Stop()
}

// HasJobs returns true if any jobs are registered.
func (s *Scheduler) HasJobs() bool {
	return len(s.jobs) > 0
}

// runEviction starts a scheduled eviction sweep.
func (s *Scheduler) runEviction() {
	slog.Info("Scheduled eviction started")

	if err := s.service.Eviction.Start(); err != nil {
		var conflictErr *types.ConflictError
		if errors.As(err, &conflictErr) {
			slog.Info("Scheduled eviction skipped (already running)")
		} else {
			slog.Error("Scheduled eviction failed to start", "error", err)
		}
		return
	}

	slog.Info("Scheduled eviction running in background")
}
