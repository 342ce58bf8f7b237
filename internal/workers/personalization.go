// Package workers contains the background job processors consumed from the
// job queue: pattern analysis, reminder reoptimization, and the daily streak
// maintenance sweeps.
package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/benvon/habitflow/internal/clock"
	"github.com/benvon/habitflow/internal/database"
	"github.com/benvon/habitflow/internal/models"
	"github.com/benvon/habitflow/internal/notify"
	"github.com/benvon/habitflow/internal/personalizer"
	"github.com/benvon/habitflow/internal/queue"
	"github.com/benvon/habitflow/internal/streak"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// rescheduleConfidenceThreshold gates reminder rescheduling. Optimizations
// at or below it are ignored so low-confidence noise cannot make reminders
// jitter between runs.
const rescheduleConfidenceThreshold = 0.3

// retryBackoff is the delay ladder for failed jobs, indexed by retry count.
var retryBackoff = []time.Duration{30 * time.Second, 2 * time.Minute, 10 * time.Minute}

// TimingOptimizer is the slice of the personalizer the worker needs.
type TimingOptimizer interface {
	AnalyzeUserPatterns(ctx context.Context, userID uuid.UUID) (*models.NotificationProfile, error)
	GetOptimizedTiming(ctx context.Context, userID uuid.UUID, original personalizer.Timing) *personalizer.TimingResult
}

// StreakMaintainer is the slice of the streak engine the worker needs.
type StreakMaintainer interface {
	PerformMidnightReset(ctx context.Context, userID uuid.UUID) error
	ResetMonthlyProtections(ctx context.Context, userID uuid.UUID) error
	CheckStreaksNeedingProtection(ctx context.Context, userID uuid.UUID) (*streak.RiskReport, error)
	ApplyStreakProtection(ctx context.Context, userID, streakID uuid.UUID, protectionType models.ProtectionType, reason string, taskID *uuid.UUID) (*streak.ProtectionResult, error)
}

var (
	_ TimingOptimizer  = (*personalizer.Personalizer)(nil)
	_ StreakMaintainer = (*streak.Engine)(nil)
)

// PersonalizationWorker processes queued jobs.
type PersonalizationWorker struct {
	personalizer TimingOptimizer
	engine       StreakMaintainer
	reminders    database.ReminderRepositoryInterface
	jobRuns      database.JobRunRepositoryInterface
	dispatcher   notify.Dispatcher
	jobQueue     queue.JobQueue
	clock        clock.Clock
	logger       *zap.Logger
}

// NewPersonalizationWorker creates a worker.
func NewPersonalizationWorker(
	p TimingOptimizer,
	engine StreakMaintainer,
	reminders database.ReminderRepositoryInterface,
	jobRuns database.JobRunRepositoryInterface,
	dispatcher notify.Dispatcher,
	jobQueue queue.JobQueue,
	clk clock.Clock,
	logger *zap.Logger,
) *PersonalizationWorker {
	return &PersonalizationWorker{
		personalizer: p,
		engine:       engine,
		reminders:    reminders,
		jobRuns:      jobRuns,
		dispatcher:   dispatcher,
		jobQueue:     jobQueue,
		clock:        clk,
		logger:       logger,
	}
}

// ProcessJob dispatches a job to its handler.
func (w *PersonalizationWorker) ProcessJob(ctx context.Context, job *queue.Job) error {
	switch job.Type {
	case queue.JobTypeAnalyzePatterns:
		return w.processAnalyzePatterns(ctx, job)
	case queue.JobTypeReoptimizeReminders:
		return w.processReoptimizeReminders(ctx, job)
	case queue.JobTypeMidnightReset:
		return w.processMidnightReset(ctx, job)
	case queue.JobTypeEveningSweep:
		return w.processEveningSweep(ctx, job)
	default:
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

// processAnalyzePatterns rebuilds the user's profile, then chains a
// reoptimization job so reminders pick up the fresh profile. The chain
// keeps the ordering without the analysis job blocking on reminder work.
func (w *PersonalizationWorker) processAnalyzePatterns(ctx context.Context, job *queue.Job) error {
	if _, err := w.personalizer.AnalyzeUserPatterns(ctx, job.UserID); err != nil {
		return fmt.Errorf("pattern analysis failed: %w", err)
	}

	next := queue.NewJob(queue.JobTypeReoptimizeReminders, job.UserID, job.TaskID)
	if err := w.jobQueue.Enqueue(ctx, next); err != nil {
		// The profile is already stored; rescheduling just waits for the
		// next trigger.
		w.logger.Warn("reoptimize_enqueue_failed",
			zap.String("user_id", job.UserID.String()),
			zap.Error(err),
		)
	}
	return nil
}

// processReoptimizeReminders re-optimizes every enabled reminder the user
// has and reschedules the ones whose timing moved with enough confidence.
func (w *PersonalizationWorker) processReoptimizeReminders(ctx context.Context, job *queue.Job) error {
	reminders, err := w.reminders.ListEnabledByUser(ctx, job.UserID)
	if err != nil {
		return fmt.Errorf("failed to list reminders: %w", err)
	}

	rescheduled := 0
	for _, reminder := range reminders {
		original := personalizer.Timing{Hour: reminder.Hour, Minute: reminder.Minute}
		result := w.personalizer.GetOptimizedTiming(ctx, job.UserID, original)

		if result.Optimized == original {
			continue
		}
		if result.Confidence <= rescheduleConfidenceThreshold {
			continue
		}

		if err := w.reminders.UpdateTiming(ctx, reminder.ID, result.Optimized.Hour, result.Optimized.Minute); err != nil {
			w.logger.Error("reminder_timing_update_failed",
				zap.String("reminder_id", reminder.ID.String()),
				zap.Error(err),
			)
			continue
		}
		if err := w.dispatcher.Update(ctx, reminder.ID, notify.Timing{
			Hour:       result.Optimized.Hour,
			Minute:     result.Optimized.Minute,
			DayOfWeek:  reminder.DayOfWeek,
			Recurrence: reminder.Recurrence,
		}); err != nil {
			// The stored timing is already updated; the dispatcher catches
			// up on the next schedule pass.
			w.logger.Warn("reminder_dispatch_update_failed",
				zap.String("reminder_id", reminder.ID.String()),
				zap.Error(err),
			)
		}
		rescheduled++
		w.logger.Info("reminder_rescheduled",
			zap.String("reminder_id", reminder.ID.String()),
			zap.Int("hour", result.Optimized.Hour),
			zap.Int("minute", result.Optimized.Minute),
			zap.Float64("confidence", result.Confidence),
			zap.String("reason", result.Reason),
		)
	}

	if rescheduled > 0 {
		w.logger.Info("reminders_reoptimized",
			zap.String("user_id", job.UserID.String()),
			zap.Int("rescheduled", rescheduled),
			zap.Int("total", len(reminders)),
		)
	}
	return nil
}

// processMidnightReset runs the daily streak maintenance. The job_runs row
// is claimed first so duplicate enqueues of the same day collapse to one
// execution even across worker restarts.
func (w *PersonalizationWorker) processMidnightReset(ctx context.Context, job *queue.Job) error {
	today := clock.StartOfDay(w.clock.Now())
	first, err := w.jobRuns.MarkRun(ctx, job.UserID, models.MaintenanceOpMidnightReset, today)
	if err != nil {
		return fmt.Errorf("failed to claim midnight reset: %w", err)
	}
	if !first {
		w.logger.Debug("midnight_reset_already_ran",
			zap.String("user_id", job.UserID.String()),
		)
		return nil
	}

	if err := w.engine.PerformMidnightReset(ctx, job.UserID); err != nil {
		return fmt.Errorf("midnight reset failed: %w", err)
	}
	if err := w.engine.ResetMonthlyProtections(ctx, job.UserID); err != nil {
		return fmt.Errorf("monthly protection reset failed: %w", err)
	}
	return nil
}

// processEveningSweep auto-protects streaks in danger and warns about the
// ones that cannot be protected. One streak failing must not stop the
// sweep.
func (w *PersonalizationWorker) processEveningSweep(ctx context.Context, job *queue.Job) error {
	today := clock.StartOfDay(w.clock.Now())
	first, err := w.jobRuns.MarkRun(ctx, job.UserID, models.MaintenanceOpEveningSweep, today)
	if err != nil {
		return fmt.Errorf("failed to claim evening sweep: %w", err)
	}
	if !first {
		return nil
	}

	report, err := w.engine.CheckStreaksNeedingProtection(ctx, job.UserID)
	if err != nil {
		return fmt.Errorf("streak risk check failed: %w", err)
	}

	protected := make(map[string]bool)
	for _, s := range report.Protectable {
		_, err := w.engine.ApplyStreakProtection(ctx, job.UserID, s.ID, models.ProtectionTypeAuto, "evening sweep auto-protection", nil)
		if err != nil {
			w.logger.Warn("auto_protection_failed",
				zap.String("user_id", job.UserID.String()),
				zap.String("streak_id", s.ID.String()),
				zap.Error(err),
			)
			continue
		}
		protected[s.ID.String()] = true
	}

	for _, s := range report.AtRisk {
		if protected[s.ID.String()] {
			continue
		}
		message := fmt.Sprintf("Your %d-day streak is at risk. Complete a task today to keep it going.", s.CurrentCount)
		if err := w.dispatcher.Notify(ctx, job.UserID, "streak_at_risk", message); err != nil {
			w.logger.Warn("at_risk_warning_failed",
				zap.String("user_id", job.UserID.String()),
				zap.String("streak_id", s.ID.String()),
				zap.Error(err),
			)
		}
	}

	w.logger.Info("evening_sweep_completed",
		zap.String("user_id", job.UserID.String()),
		zap.Int("at_risk", len(report.AtRisk)),
		zap.Int("auto_protected", len(protected)),
	)
	return nil
}

// HandleJobError decides what happens to a failed job: retry with backoff
// through the delayed exchange, or give up and let the nack dead-letter it.
// Returns true when the message should be acked (a retry was enqueued),
// false when it should be nacked to the DLQ.
func (w *PersonalizationWorker) HandleJobError(ctx context.Context, job *queue.Job, jobErr error) bool {
	if !job.CanRetry() {
		w.logger.Error("job_failed_permanently",
			zap.String("job_id", job.ID.String()),
			zap.String("job_type", string(job.Type)),
			zap.Int("retries", job.RetryCount),
			zap.Error(jobErr),
		)
		return false
	}

	backoff := retryBackoff[len(retryBackoff)-1]
	if job.RetryCount < len(retryBackoff) {
		backoff = retryBackoff[job.RetryCount]
	}
	job.IncrementRetry()
	notBefore := w.clock.Now().Add(backoff)
	job.NotBefore = &notBefore

	if err := w.jobQueue.Enqueue(ctx, job); err != nil {
		w.logger.Error("job_retry_enqueue_failed",
			zap.String("job_id", job.ID.String()),
			zap.Error(err),
		)
		return false
	}

	w.logger.Warn("job_retry_scheduled",
		zap.String("job_id", job.ID.String()),
		zap.String("job_type", string(job.Type)),
		zap.Int("retry", job.RetryCount),
		zap.Duration("backoff", backoff),
		zap.Error(jobErr),
	)
	return true
}
