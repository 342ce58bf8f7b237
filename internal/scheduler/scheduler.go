// Package scheduler turns wall-clock time into maintenance jobs. It never
// runs maintenance itself: it finds users whose daily operations have not
// run yet and enqueues a job per user, leaving execution and dedup to the
// worker and the job_runs table.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/benvon/habitflow/internal/clock"
	"github.com/benvon/habitflow/internal/database"
	"github.com/benvon/habitflow/internal/models"
	"github.com/benvon/habitflow/internal/queue"
	"go.uber.org/zap"
)

// EngineConfigSource supplies the evening cutoff hour; backed by the
// engine_config table in production.
type EngineConfigSource interface {
	GetOrDefault(ctx context.Context) (*models.EngineConfig, error)
}

var _ EngineConfigSource = (*database.EngineConfigRepository)(nil)

// Scheduler periodically enqueues midnight reset and evening sweep jobs for
// users who have not had them today.
type Scheduler struct {
	jobRuns  database.JobRunRepositoryInterface
	config   EngineConfigSource
	jobQueue queue.JobQueue
	interval time.Duration
	clock    clock.Clock
	logger   *zap.Logger
}

// New creates a scheduler that scans every interval.
func New(
	jobRuns database.JobRunRepositoryInterface,
	config EngineConfigSource,
	jobQueue queue.JobQueue,
	interval time.Duration,
	clk clock.Clock,
	logger *zap.Logger,
) *Scheduler {
	return &Scheduler{
		jobRuns:  jobRuns,
		config:   config,
		jobQueue: jobQueue,
		interval: interval,
		clock:    clk,
		logger:   logger,
	}
}

// Start runs the scan loop until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.Tick(ctx); err != nil {
				s.logger.Error("scheduler_tick_failed", zap.Error(err))
			}
		}
	}
}

// Tick runs one scan: midnight resets are always due for users missing
// today's run; evening sweeps only once the cutoff hour has passed.
func (s *Scheduler) Tick(ctx context.Context) error {
	now := s.clock.Now()
	today := clock.StartOfDay(now)

	if err := s.enqueueDue(ctx, models.MaintenanceOpMidnightReset, queue.JobTypeMidnightReset, today); err != nil {
		return err
	}

	cfg, err := s.config.GetOrDefault(ctx)
	if err != nil {
		return fmt.Errorf("failed to load engine config: %w", err)
	}
	if now.Hour() >= cfg.EveningCutoffHour {
		if err := s.enqueueDue(ctx, models.MaintenanceOpEveningSweep, queue.JobTypeEveningSweep, today); err != nil {
			return err
		}
	}

	return nil
}

func (s *Scheduler) enqueueDue(ctx context.Context, op models.MaintenanceOp, jobType queue.JobType, day time.Time) error {
	users, err := s.jobRuns.ListUsersDue(ctx, op, day)
	if err != nil {
		return fmt.Errorf("failed to list users due for %s: %w", op, err)
	}

	enqueued := 0
	for _, userID := range users {
		job := queue.NewJob(jobType, userID, nil)
		if err := s.jobQueue.Enqueue(ctx, job); err != nil {
			// One user's enqueue failing should not starve the rest.
			s.logger.Warn("maintenance_enqueue_failed",
				zap.String("user_id", userID.String()),
				zap.String("operation", string(op)),
				zap.Error(err),
			)
			continue
		}
		enqueued++
	}

	if enqueued > 0 {
		s.logger.Info("maintenance_jobs_enqueued",
			zap.String("operation", string(op)),
			zap.Int("users", enqueued),
		)
	}
	return nil
}
