// Package streak implements the streak continuity engine: daily activity
// rollups, streak transition rules with a grace window, and the monthly
// protection budget that can retroactively preserve a streak for a missed
// day.
package streak

import (
	"context"
	"fmt"
	"time"

	"github.com/benvon/habitflow/internal/clock"
	"github.com/benvon/habitflow/internal/database"
	"github.com/benvon/habitflow/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Config holds the engine's tunable parameters.
type Config struct {
	// ProtectionQuota is the monthly protection budget per streak.
	ProtectionQuota int
	// GraceDays is how many missed days a streak survives before breaking.
	// The reference behavior is exactly one day of grace.
	GraceDays int
}

// DefaultConfig returns the standard engine configuration.
func DefaultConfig() Config {
	return Config{
		ProtectionQuota: models.DefaultProtectionQuota,
		GraceDays:       models.DefaultGraceDays,
	}
}

// Engine maintains user streaks and their protection budgets. All
// date-boundary math goes through the injected clock.
type Engine struct {
	streaks     database.StreakRepositoryInterface
	activity    database.DailyActivityRepositoryInterface
	tasks       database.TaskRepositoryInterface
	completions database.CompletionRepositoryInterface
	clock       clock.Clock
	cfg         Config
	logger      *zap.Logger
}

// NewEngine creates a streak engine.
func NewEngine(
	streaks database.StreakRepositoryInterface,
	activity database.DailyActivityRepositoryInterface,
	tasks database.TaskRepositoryInterface,
	completions database.CompletionRepositoryInterface,
	clk clock.Clock,
	cfg Config,
	logger *zap.Logger,
) *Engine {
	if cfg.GraceDays < 1 {
		cfg.GraceDays = models.DefaultGraceDays
	}
	if cfg.ProtectionQuota < 0 {
		cfg.ProtectionQuota = models.DefaultProtectionQuota
	}
	return &Engine{
		streaks:     streaks,
		activity:    activity,
		tasks:       tasks,
		completions: completions,
		clock:       clk,
		cfg:         cfg,
		logger:      logger,
	}
}

// ActivityUpdate is the result of UpdateDailyActivity.
type ActivityUpdate struct {
	Activity *models.DailyActivity
	Streaks  []*models.UserStreak
}

// UpdateDailyActivity recomputes the activity rollup for a user's day,
// upserts the row, and runs the streak transition for that day. The streak
// update must see the activity just computed, so the two are sequenced here.
func (e *Engine) UpdateDailyActivity(ctx context.Context, userID uuid.UUID, date time.Time) (*ActivityUpdate, error) {
	if date.IsZero() {
		date = e.clock.Now()
	}
	dayStart := clock.StartOfDay(date)
	dayEnd := dayStart.AddDate(0, 0, 1)

	completed, err := e.completions.CountBetween(ctx, userID, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to count completions: %w", err)
	}
	created, err := e.tasks.CountCreatedBetween(ctx, userID, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to count created tasks: %w", err)
	}
	total, err := e.tasks.CountAsOf(ctx, userID, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to count tasks: %w", err)
	}
	habitCompletions, err := e.completions.CountHabitBetween(ctx, userID, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to count habit completions: %w", err)
	}

	var rate float64
	if total > 0 {
		rate = float64(completed) / float64(total) * 100
	}

	activity := &models.DailyActivity{
		UserID:           userID,
		ActivityDate:     dayStart,
		TasksCompleted:   completed,
		TasksCreated:     created,
		TotalTasks:       total,
		CompletionRate:   rate,
		HabitCompletions: habitCompletions,
		Metadata:         models.Metadata{},
	}
	if err := e.activity.Upsert(ctx, activity); err != nil {
		return nil, fmt.Errorf("failed to upsert daily activity: %w", err)
	}

	streaks, err := e.UpdateUserStreaks(ctx, userID, dayStart, completed > 0)
	if err != nil {
		return nil, err
	}

	for _, s := range streaks {
		if s.StreakType == models.StreakTypeDailyCompletion {
			activity.StreakDays = s.CurrentCount
		}
	}
	if err := e.activity.Upsert(ctx, activity); err != nil {
		return nil, fmt.Errorf("failed to snapshot streak days: %w", err)
	}

	return &ActivityUpdate{Activity: activity, Streaks: streaks}, nil
}

// UpdateUserStreaks runs the daily streak transition for every streak a user
// has. With activity, a streak increments when yesterday was its last active
// day, restarts at 1 after a gap, and is untouched on same-day re-entry.
// Without activity, a streak inside its grace window stays active and keeps
// its count; past the grace window it breaks.
func (e *Engine) UpdateUserStreaks(ctx context.Context, userID uuid.UUID, date time.Time, hasActivity bool) ([]*models.UserStreak, error) {
	today := clock.StartOfDay(date)

	streaks, err := e.streaks.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list streaks: %w", err)
	}

	var daily *models.UserStreak
	for _, s := range streaks {
		if s.StreakType == models.StreakTypeDailyCompletion {
			daily = s
		}
	}

	if daily == nil && hasActivity {
		daily = &models.UserStreak{
			ID:                   uuid.New(),
			UserID:               userID,
			StreakType:           models.StreakTypeDailyCompletion,
			CurrentCount:         1,
			LongestCount:         1,
			LastActivityDate:     &today,
			StreakStartDate:      &today,
			IsActive:             true,
			AvailableProtections: e.cfg.ProtectionQuota,
			ProtectionResetDate:  clock.StartOfNextMonth(today),
			Metadata:             models.Metadata{},
		}
		if err := e.streaks.Create(ctx, daily); err != nil {
			return nil, fmt.Errorf("failed to create streak: %w", err)
		}
		return append(streaks, daily), nil
	}

	for _, s := range streaks {
		changed := e.transition(s, today, hasActivity)
		if !changed {
			continue
		}
		if err := e.streaks.Update(ctx, s); err != nil {
			return nil, fmt.Errorf("failed to update streak: %w", err)
		}
	}

	return streaks, nil
}

// transition applies the daily streak rule in place and reports whether the
// streak changed.
func (e *Engine) transition(s *models.UserStreak, today time.Time, hasActivity bool) bool {
	yesterday := today.AddDate(0, 0, -1)
	graceCutoff := today.AddDate(0, 0, -e.cfg.GraceDays)

	var lastActivity time.Time
	if s.LastActivityDate != nil {
		lastActivity = clock.StartOfDay(*s.LastActivityDate)
	}

	if hasActivity {
		switch {
		case lastActivity.Equal(yesterday):
			s.CurrentCount++
		case !lastActivity.Equal(today):
			s.CurrentCount = 1
			s.StreakStartDate = &today
		}
		// Same-day re-entry leaves the count untouched.
		s.LastActivityDate = &today
		s.IsActive = true
		s.IsProtectedToday = false
		if s.CurrentCount > s.LongestCount {
			s.LongestCount = s.CurrentCount
		}
		return true
	}

	switch {
	case lastActivity.Equal(today):
		// Today's activity is already recorded elsewhere.
		return false
	case s.IsProtectedToday:
		// Protection holds the streak out of the broken branch entirely.
		return false
	case !lastActivity.Before(graceCutoff):
		// Inside the grace window: keep the streak alive, count untouched.
		if !s.IsActive {
			s.IsActive = true
			return true
		}
		return false
	default:
		if s.CurrentCount == 0 && !s.IsActive {
			return false
		}
		s.CurrentCount = 0
		s.IsActive = false
		return true
	}
}

// ProtectionEligibility is the result of CanApplyProtection. Ineligibility
// is a domain outcome, not an error.
type ProtectionEligibility struct {
	CanProtect           bool
	Reason               string
	AvailableProtections int
}

// Eligibility reasons, part of the API surface returned to callers.
const (
	ReasonStreakNotFound   = "streak not found"
	ReasonNoBudget         = "no protections available"
	ReasonAlreadyProtected = "already protected today"
	ReasonAlreadyActive    = "streak already maintained today"
	ReasonEligible         = "protection available"
)

// CanApplyProtection checks whether a protection can be applied to a streak.
func (e *Engine) CanApplyProtection(ctx context.Context, userID uuid.UUID, streakID uuid.UUID) (*ProtectionEligibility, error) {
	s, err := e.streaks.GetByID(ctx, streakID)
	if err != nil {
		return nil, fmt.Errorf("failed to load streak: %w", err)
	}
	if s == nil || s.UserID != userID {
		return &ProtectionEligibility{CanProtect: false, Reason: ReasonStreakNotFound}, nil
	}
	return e.eligibility(s), nil
}

func (e *Engine) eligibility(s *models.UserStreak) *ProtectionEligibility {
	today := clock.StartOfDay(e.clock.Now())

	switch {
	case s.AvailableProtections <= 0:
		return &ProtectionEligibility{CanProtect: false, Reason: ReasonNoBudget}
	case s.IsProtectedToday:
		return &ProtectionEligibility{CanProtect: false, Reason: ReasonAlreadyProtected, AvailableProtections: s.AvailableProtections}
	case s.LastActivityDate != nil && clock.StartOfDay(*s.LastActivityDate).Equal(today):
		return &ProtectionEligibility{CanProtect: false, Reason: ReasonAlreadyActive, AvailableProtections: s.AvailableProtections}
	default:
		return &ProtectionEligibility{CanProtect: true, Reason: ReasonEligible, AvailableProtections: s.AvailableProtections}
	}
}

// IneligibleError reports that a protection could not be applied for a
// domain reason, as opposed to a storage failure. Callers can distinguish
// the two with errors.As when deciding whether to retry.
type IneligibleError struct {
	Reason string
}

func (e *IneligibleError) Error() string {
	return "protection not applicable: " + e.Reason
}

// ProtectionResult is the outcome of a successful protection application.
type ProtectionResult struct {
	Streak     *models.UserStreak
	Protection *models.StreakProtection
}

// ApplyStreakProtection spends one protection on a streak and writes the
// immutable audit record. The eligibility check and the budget mutation are
// guarded against concurrent double-spend by the repository's transactional
// apply.
func (e *Engine) ApplyStreakProtection(ctx context.Context, userID, streakID uuid.UUID, protectionType models.ProtectionType, reason string, taskID *uuid.UUID) (*ProtectionResult, error) {
	s, err := e.streaks.GetByID(ctx, streakID)
	if err != nil {
		return nil, fmt.Errorf("failed to load streak: %w", err)
	}
	if s == nil || s.UserID != userID {
		return nil, &IneligibleError{Reason: ReasonStreakNotFound}
	}

	if elig := e.eligibility(s); !elig.CanProtect {
		return nil, &IneligibleError{Reason: elig.Reason}
	}

	today := clock.StartOfDay(e.clock.Now())
	protection := &models.StreakProtection{
		ID:             uuid.New(),
		UserID:         userID,
		StreakID:       streakID,
		TaskID:         taskID,
		ProtectionDate: today,
		ProtectionType: protectionType,
		Reason:         reason,
		Metadata: models.Metadata{
			"current_count":         s.CurrentCount,
			"available_protections": s.AvailableProtections,
			"used_protections":      s.UsedProtections,
			"last_activity_date":    formatDay(s.LastActivityDate),
		},
	}

	applied, err := e.streaks.ApplyProtection(ctx, s, protection)
	if err != nil {
		return nil, fmt.Errorf("failed to apply protection: %w", err)
	}
	if !applied {
		// Lost the race or the budget moved under us; re-check for the reason.
		if elig := e.eligibility(s); !elig.CanProtect {
			return nil, &IneligibleError{Reason: elig.Reason}
		}
		return nil, &IneligibleError{Reason: ReasonAlreadyProtected}
	}

	e.logger.Info("streak_protection_applied",
		zap.String("user_id", userID.String()),
		zap.String("streak_id", streakID.String()),
		zap.String("protection_type", string(protectionType)),
		zap.Int("remaining", s.AvailableProtections),
	)

	return &ProtectionResult{Streak: s, Protection: protection}, nil
}

// RiskReport lists streaks in danger of breaking today. AtRisk includes
// every candidate, even when no budget remains, for user-facing warnings;
// Protectable is the subset a caller may auto-protect.
type RiskReport struct {
	AtRisk      []*models.UserStreak
	Protectable []*models.UserStreak
}

// CheckStreaksNeedingProtection classifies a user's streaks for the evening
// sweep.
func (e *Engine) CheckStreaksNeedingProtection(ctx context.Context, userID uuid.UUID) (*RiskReport, error) {
	streaks, err := e.streaks.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list streaks: %w", err)
	}

	today := clock.StartOfDay(e.clock.Now())
	report := &RiskReport{}

	for _, s := range streaks {
		if !s.IsActive || s.CurrentCount == 0 || s.IsProtectedToday {
			continue
		}
		if s.LastActivityDate != nil && clock.StartOfDay(*s.LastActivityDate).Equal(today) {
			continue
		}
		report.AtRisk = append(report.AtRisk, s)
		if elig := e.eligibility(s); elig.CanProtect {
			report.Protectable = append(report.Protectable, s)
		}
	}

	return report, nil
}

// PerformMidnightReset runs the daily maintenance for a user: consume
// protections that covered yesterday, break streaks whose grace window has
// elapsed, and seed a zero-valued activity row for the new day. Safe to call
// multiple times per day; repeated calls find the bookkeeping already done
// and change nothing.
func (e *Engine) PerformMidnightReset(ctx context.Context, userID uuid.UUID) error {
	now := e.clock.Now()
	today := clock.StartOfDay(now)
	yesterday := today.AddDate(0, 0, -1)

	streaks, err := e.streaks.ListByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to list streaks: %w", err)
	}

	for _, s := range streaks {
		if !s.IsProtectedToday {
			continue
		}
		// A protection consumed overnight counts the missed day as
		// maintained: the streak keeps its count and the protected day
		// becomes its last active day.
		s.LastActivityDate = &yesterday
		s.IsProtectedToday = false
		if err := e.streaks.Update(ctx, s); err != nil {
			return fmt.Errorf("failed to consume protection: %w", err)
		}
	}

	if _, err := e.UpdateUserStreaks(ctx, userID, today, false); err != nil {
		return err
	}

	activity := &models.DailyActivity{
		UserID:       userID,
		ActivityDate: today,
		Metadata:     models.Metadata{},
	}
	if err := e.activity.InsertIfAbsent(ctx, activity); err != nil {
		return fmt.Errorf("failed to seed daily activity: %w", err)
	}

	return nil
}

// ResetMonthlyProtections replenishes protection budgets whose reset date
// has arrived. Driven by each streak's stored reset date rather than the
// invocation cadence, so repeated calls within a month cannot double-reset.
func (e *Engine) ResetMonthlyProtections(ctx context.Context, userID uuid.UUID) error {
	now := e.clock.Now()

	streaks, err := e.streaks.ListByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to list streaks: %w", err)
	}

	for _, s := range streaks {
		if now.Before(s.ProtectionResetDate) {
			continue
		}
		s.AvailableProtections = e.cfg.ProtectionQuota
		s.UsedProtections = 0
		s.ProtectionResetDate = clock.StartOfNextMonth(now)
		s.IsProtectedToday = false
		if err := e.streaks.Update(ctx, s); err != nil {
			return fmt.Errorf("failed to reset protections: %w", err)
		}
		e.logger.Info("monthly_protections_reset",
			zap.String("user_id", userID.String()),
			zap.String("streak_type", string(s.StreakType)),
			zap.Int("quota", e.cfg.ProtectionQuota),
		)
	}

	return nil
}

func formatDay(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}
