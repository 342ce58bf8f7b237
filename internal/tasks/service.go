// Package tasks implements the task completion flow and its side effects:
// streak bookkeeping and personalization learning hang off completion
// events, never block them.
package tasks

import (
	"context"
	"fmt"

	"github.com/benvon/habitflow/internal/clock"
	"github.com/benvon/habitflow/internal/database"
	"github.com/benvon/habitflow/internal/models"
	"github.com/benvon/habitflow/internal/queue"
	"github.com/benvon/habitflow/internal/streak"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service coordinates task state changes with their downstream effects.
type Service struct {
	tasks       database.TaskRepositoryInterface
	completions database.CompletionRepositoryInterface
	reminders   database.ReminderRepositoryInterface
	engine      *streak.Engine
	jobs        queue.JobQueue
	clock       clock.Clock
	logger      *zap.Logger
}

// NewService creates a task service.
func NewService(
	tasks database.TaskRepositoryInterface,
	completions database.CompletionRepositoryInterface,
	engine *streak.Engine,
	jobs queue.JobQueue,
	clk clock.Clock,
	logger *zap.Logger,
) *Service {
	return &Service{
		tasks:       tasks,
		completions: completions,
		engine:      engine,
		jobs:        jobs,
		clock:       clk,
		logger:      logger,
	}
}

// SetReminderRepository enables reminder cleanup on task deletion.
func (s *Service) SetReminderRepository(reminders database.ReminderRepositoryInterface) {
	s.reminders = reminders
}

// NotFoundError reports a task that does not exist or belongs to another
// user.
type NotFoundError struct {
	TaskID uuid.UUID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("task %s not found", e.TaskID)
}

// ToggleResult is the outcome of a complete or uncomplete call. Changed is
// false when the task was already in the target state, which is not an
// error.
type ToggleResult struct {
	Task    *models.Task
	Changed bool
}

// CompleteTask marks a task completed and records the completion. Streak
// bookkeeping runs synchronously best-effort; personalization learning is
// enqueued to the background worker. Neither can fail the completion.
func (s *Service) CompleteTask(ctx context.Context, userID, taskID uuid.UUID, notes string) (*ToggleResult, error) {
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to load task: %w", err)
	}
	if task == nil || task.UserID != userID {
		return nil, &NotFoundError{TaskID: taskID}
	}
	if task.IsCompleted() {
		return &ToggleResult{Task: task, Changed: false}, nil
	}

	now := s.clock.Now()
	task.Status = models.TaskStatusCompleted
	task.CompletedAt = &now
	if err := s.tasks.Update(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	completionType := models.CompletionTypeManual
	if task.IsHabit {
		completionType = models.CompletionTypeHabit
	}
	completion := &models.TaskCompletion{
		ID:             uuid.New(),
		TaskID:         task.ID,
		CompletedBy:    userID,
		CompletedAt:    now,
		CompletionType: completionType,
		Notes:          notes,
	}
	if err := s.completions.Create(ctx, completion); err != nil {
		return nil, fmt.Errorf("failed to record completion: %w", err)
	}

	s.updateStreaks(ctx, userID)
	s.enqueueLearning(ctx, userID, task.ID)

	return &ToggleResult{Task: task, Changed: true}, nil
}

// UncompleteTask reverts a completed task to pending and removes its
// completion record. Uncompletion is not a learning signal, so no
// personalization job is enqueued; the daily rollup is still recomputed so
// activity counts stay honest.
func (s *Service) UncompleteTask(ctx context.Context, userID, taskID uuid.UUID) (*ToggleResult, error) {
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to load task: %w", err)
	}
	if task == nil || task.UserID != userID {
		return nil, &NotFoundError{TaskID: taskID}
	}
	if !task.IsCompleted() {
		return &ToggleResult{Task: task, Changed: false}, nil
	}

	task.Status = models.TaskStatusPending
	task.CompletedAt = nil
	if err := s.tasks.Update(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	if err := s.completions.DeleteByTaskID(ctx, taskID); err != nil {
		return nil, fmt.Errorf("failed to delete completion: %w", err)
	}

	s.updateStreaks(ctx, userID)

	return &ToggleResult{Task: task, Changed: true}, nil
}

// DeleteTask removes a task and any reminders attached to it.
func (s *Service) DeleteTask(ctx context.Context, userID, taskID uuid.UUID) error {
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return fmt.Errorf("failed to load task: %w", err)
	}
	if task == nil || task.UserID != userID {
		return &NotFoundError{TaskID: taskID}
	}

	if s.reminders != nil {
		if err := s.reminders.DeleteByTaskID(ctx, taskID); err != nil {
			s.logger.Warn("reminder_cleanup_failed",
				zap.String("task_id", taskID.String()),
				zap.Error(err),
			)
		}
	}

	if err := s.tasks.Delete(ctx, taskID); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return nil
}

func (s *Service) updateStreaks(ctx context.Context, userID uuid.UUID) {
	if s.engine == nil {
		return
	}
	if _, err := s.engine.UpdateDailyActivity(ctx, userID, s.clock.Now()); err != nil {
		s.logger.Warn("streak_update_failed",
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
	}
}

func (s *Service) enqueueLearning(ctx context.Context, userID, taskID uuid.UUID) {
	if s.jobs == nil {
		return
	}
	job := queue.NewJob(queue.JobTypeAnalyzePatterns, userID, &taskID)
	if err := s.jobs.Enqueue(ctx, job); err != nil {
		s.logger.Warn("learning_enqueue_failed",
			zap.String("user_id", userID.String()),
			zap.String("task_id", taskID.String()),
			zap.Error(err),
		)
	}
}
