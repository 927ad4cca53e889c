package docsite

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/greq/internal/logfields"
)

// Scheduler runs link checks periodically.
type Scheduler struct {
	scheduler gocron.Scheduler
}

// NewScheduler creates a new scheduler instance.
func NewScheduler() (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	return &Scheduler{scheduler: s}, nil
}

// Start begins the scheduler.
func (s *Scheduler) Start() {
	slog.Info("Starting scheduler")
	s.scheduler.Start()
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() error {
	slog.Info("Stopping scheduler")
	return s.scheduler.Shutdown()
}

// ScheduleCheck runs checker against the site returned by load every
// interval, starting immediately. Reports go to onReport. A check never
// overlaps the previous one.
func (s *Scheduler) ScheduleCheck(
	ctx context.Context,
	interval time.Duration,
	checker *Checker,
	load func() (*Site, error),
	onReport func(*Report, error),
) (string, error) {
	if interval <= 0 {
		return "", fmt.Errorf("check interval must be positive, got %s", interval)
	}

	job, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			site, err := load()
			if err != nil {
				onReport(nil, err)
				return
			}
			report, err := checker.Check(ctx, site)
			if err == nil {
				slog.Info("Scheduled link check finished",
					logfields.Count(len(report.Results)),
					slog.Int("broken", len(report.Broken())))
			}
			onReport(report, err)
		}),
		gocron.WithName("docs-link-check"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create link check job: %w", err)
	}
	return job.ID().String(), nil
}
