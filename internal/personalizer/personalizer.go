// Package personalizer learns each user's completion rhythm from their task
// history and uses it to shift reminder timing toward the hours the user
// actually acts on. Output degrades to the original timing when signal or
// storage is unavailable; it never blocks notification scheduling.
package personalizer

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/benvon/habitflow/internal/clock"
	"github.com/benvon/habitflow/internal/database"
	"github.com/benvon/habitflow/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// analysisWindow is the trailing period of completions fed into pattern
	// analysis.
	analysisWindow = 60 * 24 * time.Hour

	// minSignalCompletions is the sample size below which hour optimization
	// is suppressed.
	minSignalCompletions = 10

	// fullConfidenceCompletions is the sample size at which data-volume
	// confidence saturates at 1.
	fullConfidenceCompletions = 50
)

// Cold-start defaults used when a user has no completion history.
var (
	defaultActiveHours   = []int{9, 14, 19}
	defaultPreferredDays = []int{1, 2, 3, 4, 5} // Monday through Friday
)

// snapMinutes are the quarter-hour marks reminder minutes snap to, in
// tie-break priority order.
var snapMinutes = [4]int{0, 15, 30, 45}

// Timing is a reminder's scheduled hour and minute.
type Timing struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

// TimingResult is the outcome of a timing optimization.
type TimingResult struct {
	Original           Timing  `json:"original_timing"`
	Optimized          Timing  `json:"optimized_timing"`
	Confidence         float64 `json:"confidence"`
	Reason             string  `json:"reason"`
	EffectivenessScore float64 `json:"effectiveness_score"`
}

// Personalizer computes notification profiles and optimized reminder timing.
type Personalizer struct {
	profiles     database.ProfileRepositoryInterface
	settings     database.SettingsRepositoryInterface
	completions  database.CompletionRepositoryInterface
	interactions database.InteractionRepositoryInterface
	clock        clock.Clock
	logger       *zap.Logger
}

// New creates a Personalizer.
func New(
	profiles database.ProfileRepositoryInterface,
	settings database.SettingsRepositoryInterface,
	completions database.CompletionRepositoryInterface,
	interactions database.InteractionRepositoryInterface,
	clk clock.Clock,
	logger *zap.Logger,
) *Personalizer {
	return &Personalizer{
		profiles:     profiles,
		settings:     settings,
		completions:  completions,
		interactions: interactions,
		clock:        clk,
		logger:       logger,
	}
}

// AnalyzeUserPatterns rebuilds a user's notification profile from their
// trailing 60 days of completions. A user with no history gets the
// cold-start default profile; TotalCompletions distinguishes the two. The
// rebuilt profile always overwrites the stored one, it is a full recompute.
func (p *Personalizer) AnalyzeUserPatterns(ctx context.Context, userID uuid.UUID) (*models.NotificationProfile, error) {
	now := p.clock.Now()
	since := now.Add(-analysisWindow)

	completions, err := p.completions.ListByUserSince(ctx, userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list completions: %w", err)
	}

	profile := &models.NotificationProfile{
		UserID:            userID,
		LastAnalyzed:      now,
		HourEffectiveness: make(map[int]float64),
	}

	if len(completions) == 0 {
		profile.MostActiveHours = append([]int(nil), defaultActiveHours...)
		profile.PreferredDays = append([]int(nil), defaultPreferredDays...)
	} else {
		p.computeProfile(profile, completions)
		profile.AverageResponseMinutes = p.averageResponseMinutes(ctx, userID, since)
	}

	if err := p.profiles.Upsert(ctx, profile); err != nil {
		return nil, fmt.Errorf("failed to store profile: %w", err)
	}

	p.logger.Debug("user_patterns_analyzed",
		zap.String("user_id", userID.String()),
		zap.Int("total_completions", profile.TotalCompletions),
		zap.Ints("most_active_hours", profile.MostActiveHours),
	)

	return profile, nil
}

func (p *Personalizer) computeProfile(profile *models.NotificationProfile, completions []*models.TaskCompletion) {
	var hourCounts [24]int
	var dayCounts [7]int
	patternCounts := make(map[[2]int]int)

	for _, c := range completions {
		hour := c.CompletedAt.Hour()
		day := int(c.CompletedAt.Weekday())
		hourCounts[hour]++
		dayCounts[day]++
		patternCounts[[2]int{hour, day}]++
	}

	profile.TotalCompletions = len(completions)
	profile.MostActiveHours = topKeys(hourCounts[:], 3)
	profile.PreferredDays = topKeys(dayCounts[:], 4)

	peak := 0
	for _, n := range hourCounts {
		if n > peak {
			peak = n
		}
	}
	for hour := 0; hour < 24; hour++ {
		var score float64
		if peak > 0 {
			score = float64(hourCounts[hour]) / float64(peak)
		}
		profile.HourEffectiveness[hour] = score
	}

	for key, count := range patternCounts {
		profile.CompletionPatterns = append(profile.CompletionPatterns, models.CompletionPattern{
			Hour:        key[0],
			DayOfWeek:   key[1],
			Count:       count,
			SuccessRate: float64(count) / float64(len(completions)),
		})
	}
	sort.Slice(profile.CompletionPatterns, func(i, j int) bool {
		a, b := profile.CompletionPatterns[i], profile.CompletionPatterns[j]
		if a.Hour != b.Hour {
			return a.Hour < b.Hour
		}
		return a.DayOfWeek < b.DayOfWeek
	})
}

// topKeys returns up to k indexes of counts ranked by descending count,
// ties broken by the smaller index. Indexes with zero count are excluded.
func topKeys(counts []int, k int) []int {
	keys := make([]int, 0, len(counts))
	for key, n := range counts {
		if n > 0 {
			keys = append(keys, key)
		}
	}
	sort.SliceStable(keys, func(i, j int) bool {
		return counts[keys[i]] > counts[keys[j]]
	})
	if len(keys) > k {
		keys = keys[:k]
	}
	return keys
}

func (p *Personalizer) averageResponseMinutes(ctx context.Context, userID uuid.UUID, since time.Time) float64 {
	interactions, err := p.interactions.ListByUserSince(ctx, userID, since)
	if err != nil {
		// Response latency is supplementary; a failed read does not fail
		// the analysis.
		p.logger.Warn("interaction_lookup_failed", zap.String("user_id", userID.String()), zap.Error(err))
		return 0
	}
	var sum, n int
	for _, it := range interactions {
		if it.ResponseLatencyMinutes != nil {
			sum += *it.ResponseLatencyMinutes
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return float64(sum) / float64(n)
}

// GetOptimizedTiming computes the personalized timing for a reminder. It
// never fails: any storage error degrades to the original timing with zero
// confidence so scheduling can proceed unpersonalized.
func (p *Personalizer) GetOptimizedTiming(ctx context.Context, userID uuid.UUID, original Timing) *TimingResult {
	settings, err := p.GetUserSettings(ctx, userID)
	if err != nil {
		return p.degraded(userID, original, "personalization settings unavailable", err)
	}
	if !settings.SmartEnabled || !settings.LearningEnabled {
		return &TimingResult{
			Original:  original,
			Optimized: original,
			Reason:    "smart notifications disabled",
		}
	}

	profile, err := p.profiles.GetByUserID(ctx, userID)
	if err != nil {
		return p.degraded(userID, original, "notification profile unavailable", err)
	}
	if profile == nil || profile.IsStale(p.clock.Now()) {
		profile, err = p.AnalyzeUserPatterns(ctx, userID)
		if err != nil {
			return p.degraded(userID, original, "pattern analysis failed", err)
		}
	}

	hour := p.selectHour(profile, settings, original.Hour)
	minute := snapMinute(original.Minute)

	effectiveness, seen := profile.HourEffectiveness[hour]
	if !seen {
		effectiveness = 0.5
	}
	volume := float64(profile.TotalCompletions) / fullConfidenceCompletions
	if volume > 1 {
		volume = 1
	}

	return &TimingResult{
		Original:           original,
		Optimized:          Timing{Hour: hour, Minute: minute},
		Confidence:         (volume + effectiveness) / 2,
		Reason:             timingReason(original.Hour, hour),
		EffectivenessScore: effectiveness,
	}
}

func (p *Personalizer) degraded(userID uuid.UUID, original Timing, reason string, err error) *TimingResult {
	p.logger.Warn("timing_optimization_degraded",
		zap.String("user_id", userID.String()),
		zap.String("reason", reason),
		zap.Error(err),
	)
	return &TimingResult{Original: original, Optimized: original, Reason: reason}
}

// selectHour picks the optimized hour. Thin samples keep the original hour;
// otherwise the user's most active hours are filtered to their allowed
// window and the sensitivity setting arbitrates between staying near the
// original time and jumping to the peak.
func (p *Personalizer) selectHour(profile *models.NotificationProfile, settings *models.PersonalizationSettings, originalHour int) int {
	if profile.TotalCompletions < minSignalCompletions {
		return originalHour
	}

	var candidates []int
	for _, h := range profile.MostActiveHours {
		if h >= settings.MinHour && h <= settings.MaxHour {
			candidates = append(candidates, h)
		}
	}
	if len(candidates) == 0 {
		return clampHour(originalHour, settings.MinHour, settings.MaxHour)
	}

	switch settings.Sensitivity {
	case models.SensitivityLow:
		return nearestWithin(candidates, originalHour, 1)
	case models.SensitivityHigh:
		return candidates[0]
	default:
		return nearestWithin(candidates, originalHour, 2)
	}
}

// nearestWithin returns the candidate closest to target among those within
// maxDelta hours; ties go to the earlier-ranked candidate. With no candidate
// that close it falls back to the top-ranked one.
func nearestWithin(candidates []int, target, maxDelta int) int {
	best := -1
	bestDist := maxDelta + 1
	for _, h := range candidates {
		d := absInt(h - target)
		if d < bestDist {
			best = h
			bestDist = d
		}
	}
	if best < 0 {
		return candidates[0]
	}
	return best
}

func clampHour(hour, min, max int) int {
	if hour < min {
		return min
	}
	if hour > max {
		return max
	}
	return hour
}

// snapMinute rounds a minute to the nearest quarter-hour mark. A candidate
// replaces the incumbent only on a strictly smaller distance, so equal
// distances resolve toward the earlier mark.
func snapMinute(minute int) int {
	best := snapMinutes[0]
	bestDist := absInt(minute - best)
	for _, m := range snapMinutes[1:] {
		if d := absInt(minute - m); d < bestDist {
			best = m
			bestDist = d
		}
	}
	return best
}

// timingReason renders the user-facing explanation for an hour shift.
func timingReason(originalHour, optimizedHour int) string {
	delta := optimizedHour - originalHour
	dist := absInt(delta)
	direction := "later"
	if delta < 0 {
		direction = "earlier"
	}

	switch {
	case dist == 0:
		return "already optimal"
	case dist == 1:
		return fmt.Sprintf("moved 1 hour %s", direction)
	case dist <= 3:
		return fmt.Sprintf("adjusted %d hours %s", dist, direction)
	default:
		return fmt.Sprintf("optimized to peak time %02d:00", optimizedHour)
	}
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// RecordNotificationInteraction appends an interaction to the log. Completed
// interactions re-run pattern analysis immediately so the next timing
// decision sees the latest completion; a failed re-run is logged, not
// returned, because the interaction itself was recorded.
func (p *Personalizer) RecordNotificationInteraction(ctx context.Context, interaction *models.NotificationInteraction) error {
	if interaction.ID == uuid.Nil {
		interaction.ID = uuid.New()
	}
	if err := p.interactions.Create(ctx, interaction); err != nil {
		return fmt.Errorf("failed to record interaction: %w", err)
	}

	if interaction.InteractionType == models.InteractionTypeCompleted {
		if _, err := p.AnalyzeUserPatterns(ctx, interaction.UserID); err != nil {
			p.logger.Warn("eager_reanalysis_failed",
				zap.String("user_id", interaction.UserID.String()),
				zap.Error(err),
			)
		}
	}
	return nil
}

// GetUserSettings returns a user's personalization settings, materializing
// and persisting the defaults on first access.
func (p *Personalizer) GetUserSettings(ctx context.Context, userID uuid.UUID) (*models.PersonalizationSettings, error) {
	settings, err := p.settings.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	if settings != nil {
		return settings, nil
	}

	settings = models.DefaultPersonalizationSettings(userID)
	if err := p.settings.Upsert(ctx, settings); err != nil {
		return nil, fmt.Errorf("failed to materialize default settings: %w", err)
	}
	return settings, nil
}

// SettingsUpdate is a partial settings change. Nil fields are left at their
// current value.
type SettingsUpdate struct {
	SmartEnabled    *bool                         `json:"smart_enabled,omitempty"`
	MinHour         *int                          `json:"min_hour,omitempty"`
	MaxHour         *int                          `json:"max_hour,omitempty"`
	ExcludedDays    *[]int                        `json:"excluded_days,omitempty"`
	Sensitivity     *models.AdaptationSensitivity `json:"adaptation_sensitivity,omitempty"`
	LearningEnabled *bool                         `json:"learning_enabled,omitempty"`
}

// UpdateUserSettings merges a partial update onto a user's current settings
// and persists the result. The notification window is validated after the
// merge so a partial edit cannot invert it.
func (p *Personalizer) UpdateUserSettings(ctx context.Context, userID uuid.UUID, update *SettingsUpdate) (*models.PersonalizationSettings, error) {
	settings, err := p.GetUserSettings(ctx, userID)
	if err != nil {
		return nil, err
	}

	if update.SmartEnabled != nil {
		settings.SmartEnabled = *update.SmartEnabled
	}
	if update.MinHour != nil {
		settings.MinHour = *update.MinHour
	}
	if update.MaxHour != nil {
		settings.MaxHour = *update.MaxHour
	}
	if update.ExcludedDays != nil {
		settings.ExcludedDays = *update.ExcludedDays
	}
	if update.Sensitivity != nil {
		settings.Sensitivity = *update.Sensitivity
	}
	if update.LearningEnabled != nil {
		settings.LearningEnabled = *update.LearningEnabled
	}

	if err := validateSettings(settings); err != nil {
		return nil, err
	}
	if err := p.settings.Upsert(ctx, settings); err != nil {
		return nil, fmt.Errorf("failed to store settings: %w", err)
	}
	return settings, nil
}

// ValidationError reports an invalid settings edit.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func validateSettings(s *models.PersonalizationSettings) error {
	if s.MinHour < 0 || s.MinHour > 23 {
		return &ValidationError{Field: "min_hour", Message: "must be between 0 and 23"}
	}
	if s.MaxHour < 0 || s.MaxHour > 23 {
		return &ValidationError{Field: "max_hour", Message: "must be between 0 and 23"}
	}
	if s.MinHour >= s.MaxHour {
		return &ValidationError{Field: "min_hour", Message: "must be earlier than max_hour"}
	}
	switch s.Sensitivity {
	case models.SensitivityLow, models.SensitivityMedium, models.SensitivityHigh:
	default:
		return &ValidationError{Field: "adaptation_sensitivity", Message: "must be low, medium, or high"}
	}
	for _, d := range s.ExcludedDays {
		if d < 0 || d > 6 {
			return &ValidationError{Field: "excluded_days", Message: "days must be between 0 and 6"}
		}
	}
	return nil
}
