package personalizer

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/benvon/habitflow/internal/clock"
	"github.com/benvon/habitflow/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type mockProfileRepo struct {
	profiles map[uuid.UUID]*models.NotificationProfile
	getErr   error
}

func newMockProfileRepo() *mockProfileRepo {
	return &mockProfileRepo{profiles: make(map[uuid.UUID]*models.NotificationProfile)}
}

func (m *mockProfileRepo) GetByUserID(_ context.Context, userID uuid.UUID) (*models.NotificationProfile, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.profiles[userID], nil
}

func (m *mockProfileRepo) Upsert(_ context.Context, p *models.NotificationProfile) error {
	m.profiles[p.UserID] = p
	return nil
}

type mockSettingsRepo struct {
	settings map[uuid.UUID]*models.PersonalizationSettings
	getErr   error
}

func newMockSettingsRepo() *mockSettingsRepo {
	return &mockSettingsRepo{settings: make(map[uuid.UUID]*models.PersonalizationSettings)}
}

func (m *mockSettingsRepo) GetByUserID(_ context.Context, userID uuid.UUID) (*models.PersonalizationSettings, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.settings[userID], nil
}

func (m *mockSettingsRepo) Upsert(_ context.Context, s *models.PersonalizationSettings) error {
	m.settings[s.UserID] = s
	return nil
}

type mockCompletionRepo struct {
	completions []*models.TaskCompletion
}

func (m *mockCompletionRepo) Create(context.Context, *models.TaskCompletion) error { return nil }
func (m *mockCompletionRepo) DeleteByTaskID(context.Context, uuid.UUID) error      { return nil }
func (m *mockCompletionRepo) ListByUserSince(_ context.Context, userID uuid.UUID, since time.Time) ([]*models.TaskCompletion, error) {
	var out []*models.TaskCompletion
	for _, c := range m.completions {
		if c.CompletedBy == userID && !c.CompletedAt.Before(since) {
			out = append(out, c)
		}
	}
	return out, nil
}
func (m *mockCompletionRepo) CountBetween(context.Context, uuid.UUID, time.Time, time.Time) (int, error) {
	return 0, nil
}
func (m *mockCompletionRepo) CountHabitBetween(context.Context, uuid.UUID, time.Time, time.Time) (int, error) {
	return 0, nil
}

type mockInteractionRepo struct {
	interactions []*models.NotificationInteraction
}

func (m *mockInteractionRepo) Create(_ context.Context, i *models.NotificationInteraction) error {
	m.interactions = append(m.interactions, i)
	return nil
}

func (m *mockInteractionRepo) ListByUserSince(_ context.Context, userID uuid.UUID, _ time.Time) ([]*models.NotificationInteraction, error) {
	var out []*models.NotificationInteraction
	for _, i := range m.interactions {
		if i.UserID == userID {
			out = append(out, i)
		}
	}
	return out, nil
}

type fixture struct {
	profiles     *mockProfileRepo
	settings     *mockSettingsRepo
	completions  *mockCompletionRepo
	interactions *mockInteractionRepo
	clock        *clock.Fixed
	p            *Personalizer
}

func newFixture(now time.Time) *fixture {
	f := &fixture{
		profiles:     newMockProfileRepo(),
		settings:     newMockSettingsRepo(),
		completions:  &mockCompletionRepo{},
		interactions: &mockInteractionRepo{},
		clock:        clock.NewFixed(now),
	}
	f.p = New(f.profiles, f.settings, f.completions, f.interactions, f.clock, zap.NewNop())
	return f
}

// addCompletions appends n completions at the given hour on consecutive days
// ending the day before now.
func (f *fixture) addCompletions(userID uuid.UUID, hour, n int) {
	now := f.clock.Now()
	for i := 0; i < n; i++ {
		at := time.Date(now.Year(), now.Month(), now.Day(), hour, 5, 0, 0, time.UTC).AddDate(0, 0, -(i + 1))
		f.completions.completions = append(f.completions.completions, &models.TaskCompletion{
			ID:          uuid.New(),
			TaskID:      uuid.New(),
			CompletedBy: userID,
			CompletedAt: at,
		})
	}
}

var testNow = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

func TestAnalyzeUserPatternsColdStart(t *testing.T) {
	t.Parallel()

	f := newFixture(testNow)
	userID := uuid.New()

	profile, err := f.p.AnalyzeUserPatterns(context.Background(), userID)
	if err != nil {
		t.Fatalf("AnalyzeUserPatterns: %v", err)
	}

	if profile.TotalCompletions != 0 {
		t.Errorf("TotalCompletions = %d, want 0", profile.TotalCompletions)
	}
	if !profile.IsDefault() {
		t.Error("IsDefault() = false for cold-start profile")
	}
	if !reflect.DeepEqual(profile.MostActiveHours, []int{9, 14, 19}) {
		t.Errorf("MostActiveHours = %v, want [9 14 19]", profile.MostActiveHours)
	}
	if !reflect.DeepEqual(profile.PreferredDays, []int{1, 2, 3, 4, 5}) {
		t.Errorf("PreferredDays = %v, want Mon-Fri", profile.PreferredDays)
	}
	if f.profiles.profiles[userID] == nil {
		t.Error("cold-start profile was not persisted")
	}
}

func TestAnalyzeUserPatternsRanking(t *testing.T) {
	t.Parallel()

	f := newFixture(testNow)
	userID := uuid.New()
	f.addCompletions(userID, 20, 6)
	f.addCompletions(userID, 8, 4)
	f.addCompletions(userID, 13, 4) // ties with hour 8, natural order puts 8 first
	f.addCompletions(userID, 22, 1)

	profile, err := f.p.AnalyzeUserPatterns(context.Background(), userID)
	if err != nil {
		t.Fatalf("AnalyzeUserPatterns: %v", err)
	}

	if profile.TotalCompletions != 15 {
		t.Errorf("TotalCompletions = %d, want 15", profile.TotalCompletions)
	}
	if !reflect.DeepEqual(profile.MostActiveHours, []int{20, 8, 13}) {
		t.Errorf("MostActiveHours = %v, want [20 8 13]", profile.MostActiveHours)
	}
	if got := profile.HourEffectiveness[20]; got != 1.0 {
		t.Errorf("effectiveness[20] = %v, want 1 (peak)", got)
	}
	if got := profile.HourEffectiveness[8]; got != 4.0/6.0 {
		t.Errorf("effectiveness[8] = %v, want %v", got, 4.0/6.0)
	}
	if got := profile.HourEffectiveness[3]; got != 0 {
		t.Errorf("effectiveness[3] = %v, want 0 for unseen hour", got)
	}
	if profile.IsDefault() {
		t.Error("learned profile reported as default")
	}
}

func TestGetOptimizedTimingDisabled(t *testing.T) {
	t.Parallel()

	f := newFixture(testNow)
	userID := uuid.New()
	settings := models.DefaultPersonalizationSettings(userID)
	settings.SmartEnabled = false
	f.settings.settings[userID] = settings

	result := f.p.GetOptimizedTiming(context.Background(), userID, Timing{Hour: 10, Minute: 30})
	if result.Optimized != result.Original {
		t.Errorf("Optimized = %+v, want passthrough of %+v", result.Optimized, result.Original)
	}
	if result.Confidence != 0 {
		t.Errorf("Confidence = %v, want 0", result.Confidence)
	}
}

func TestGetOptimizedTimingLowSignal(t *testing.T) {
	t.Parallel()

	f := newFixture(testNow)
	userID := uuid.New()
	f.addCompletions(userID, 20, 9) // below the 10-completion threshold

	result := f.p.GetOptimizedTiming(context.Background(), userID, Timing{Hour: 10, Minute: 0})
	if result.Optimized.Hour != 10 {
		t.Errorf("Optimized.Hour = %d, want original 10 below signal threshold", result.Optimized.Hour)
	}
}

func TestGetOptimizedTimingSensitivity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		sensitivity models.AdaptationSensitivity
		original    int
		wantHour    int
	}{
		{
			// Candidates ranked [20 8 13]. Nothing within one hour of 10,
			// low falls back to the top candidate.
			name:        "low falls back to peak when nothing close",
			sensitivity: models.SensitivityLow,
			original:    10,
			wantHour:    20,
		},
		{
			name:        "low stays near original",
			sensitivity: models.SensitivityLow,
			original:    9,
			wantHour:    8,
		},
		{
			name:        "medium takes candidate within two hours",
			sensitivity: models.SensitivityMedium,
			original:    10,
			wantHour:    8,
		},
		{
			name:        "high always takes peak",
			sensitivity: models.SensitivityHigh,
			original:    9,
			wantHour:    20,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(testNow)
			userID := uuid.New()
			f.addCompletions(userID, 20, 6)
			f.addCompletions(userID, 8, 4)
			f.addCompletions(userID, 13, 4)
			settings := models.DefaultPersonalizationSettings(userID)
			settings.Sensitivity = tt.sensitivity
			f.settings.settings[userID] = settings

			result := f.p.GetOptimizedTiming(context.Background(), userID, Timing{Hour: tt.original, Minute: 0})
			if result.Optimized.Hour != tt.wantHour {
				t.Errorf("Optimized.Hour = %d, want %d", result.Optimized.Hour, tt.wantHour)
			}
		})
	}
}

func TestGetOptimizedTimingWindowClamp(t *testing.T) {
	t.Parallel()

	f := newFixture(testNow)
	userID := uuid.New()
	f.addCompletions(userID, 5, 12) // active hour outside the allowed window
	settings := models.DefaultPersonalizationSettings(userID)
	settings.MinHour = 9
	settings.MaxHour = 17
	f.settings.settings[userID] = settings

	result := f.p.GetOptimizedTiming(context.Background(), userID, Timing{Hour: 6, Minute: 0})
	if result.Optimized.Hour != 9 {
		t.Errorf("Optimized.Hour = %d, want original clamped to window start 9", result.Optimized.Hour)
	}
}

func TestGetOptimizedTimingConfidence(t *testing.T) {
	t.Parallel()

	f := newFixture(testNow)
	userID := uuid.New()
	f.addCompletions(userID, 10, 25) // volume confidence 0.5, hour 10 is the peak

	result := f.p.GetOptimizedTiming(context.Background(), userID, Timing{Hour: 10, Minute: 0})
	if result.Optimized.Hour != 10 {
		t.Fatalf("Optimized.Hour = %d, want 10", result.Optimized.Hour)
	}
	// (min(25/50,1) + effectiveness 1.0) / 2
	if result.Confidence != 0.75 {
		t.Errorf("Confidence = %v, want 0.75", result.Confidence)
	}
	if result.EffectivenessScore != 1.0 {
		t.Errorf("EffectivenessScore = %v, want 1", result.EffectivenessScore)
	}
	if result.Reason != "already optimal" {
		t.Errorf("Reason = %q, want %q", result.Reason, "already optimal")
	}
}

func TestGetOptimizedTimingStorageErrorDegrades(t *testing.T) {
	t.Parallel()

	f := newFixture(testNow)
	userID := uuid.New()
	f.settings.settings[userID] = models.DefaultPersonalizationSettings(userID)
	f.profiles.getErr = errors.New("connection reset")

	result := f.p.GetOptimizedTiming(context.Background(), userID, Timing{Hour: 10, Minute: 30})
	if result.Optimized != (Timing{Hour: 10, Minute: 30}) {
		t.Errorf("Optimized = %+v, want original timing on storage error", result.Optimized)
	}
	if result.Confidence != 0 {
		t.Errorf("Confidence = %v, want 0", result.Confidence)
	}
}

func TestGetOptimizedTimingStaleProfileRebuilds(t *testing.T) {
	t.Parallel()

	f := newFixture(testNow)
	userID := uuid.New()
	f.settings.settings[userID] = models.DefaultPersonalizationSettings(userID)
	f.addCompletions(userID, 15, 20)
	f.profiles.profiles[userID] = &models.NotificationProfile{
		UserID:            userID,
		MostActiveHours:   []int{10},
		TotalCompletions:  20,
		HourEffectiveness: map[int]float64{10: 1},
		LastAnalyzed:      testNow.Add(-8 * 24 * time.Hour),
	}

	result := f.p.GetOptimizedTiming(context.Background(), userID, Timing{Hour: 14, Minute: 0})
	if result.Optimized.Hour != 15 {
		t.Errorf("Optimized.Hour = %d, want 15 from rebuilt profile", result.Optimized.Hour)
	}
	if got := f.profiles.profiles[userID]; !got.LastAnalyzed.Equal(testNow) {
		t.Errorf("profile not rebuilt: LastAnalyzed = %v", got.LastAnalyzed)
	}
}

func TestSnapMinute(t *testing.T) {
	t.Parallel()

	tests := []struct {
		minute int
		want   int
	}{
		{0, 0},
		{7, 0},
		{8, 15},
		{22, 15},
		{23, 30},
		{37, 30},
		{38, 45},
		{52, 45},
		{53, 45},
		{59, 45},
	}

	for _, tt := range tests {
		tt := tt
		if got := snapMinute(tt.minute); got != tt.want {
			t.Errorf("snapMinute(%d) = %d, want %d", tt.minute, got, tt.want)
		}
	}
}

func TestTimingReason(t *testing.T) {
	t.Parallel()

	tests := []struct {
		original  int
		optimized int
		want      string
	}{
		{10, 10, "already optimal"},
		{10, 11, "moved 1 hour later"},
		{10, 9, "moved 1 hour earlier"},
		{10, 12, "adjusted 2 hours later"},
		{10, 7, "adjusted 3 hours earlier"},
		{10, 20, "optimized to peak time 20:00"},
		{14, 9, "optimized to peak time 09:00"},
	}

	for _, tt := range tests {
		tt := tt
		if got := timingReason(tt.original, tt.optimized); got != tt.want {
			t.Errorf("timingReason(%d, %d) = %q, want %q", tt.original, tt.optimized, got, tt.want)
		}
	}
}

func TestRecordInteractionCompletedTriggersReanalysis(t *testing.T) {
	t.Parallel()

	f := newFixture(testNow)
	userID := uuid.New()
	f.addCompletions(userID, 11, 5)

	err := f.p.RecordNotificationInteraction(context.Background(), &models.NotificationInteraction{
		UserID:          userID,
		NotificationID:  "n-1",
		InteractionType: models.InteractionTypeCompleted,
	})
	if err != nil {
		t.Fatalf("RecordNotificationInteraction: %v", err)
	}

	if len(f.interactions.interactions) != 1 {
		t.Fatalf("got %d interactions, want 1", len(f.interactions.interactions))
	}
	profile := f.profiles.profiles[userID]
	if profile == nil || profile.TotalCompletions != 5 {
		t.Errorf("eager re-analysis did not run: %+v", profile)
	}
}

func TestRecordInteractionDismissedNoReanalysis(t *testing.T) {
	t.Parallel()

	f := newFixture(testNow)
	userID := uuid.New()

	err := f.p.RecordNotificationInteraction(context.Background(), &models.NotificationInteraction{
		UserID:          userID,
		NotificationID:  "n-2",
		InteractionType: models.InteractionTypeDismissed,
	})
	if err != nil {
		t.Fatalf("RecordNotificationInteraction: %v", err)
	}
	if f.profiles.profiles[userID] != nil {
		t.Error("dismissal triggered re-analysis")
	}
}

func TestGetUserSettingsMaterializesDefaults(t *testing.T) {
	t.Parallel()

	f := newFixture(testNow)
	userID := uuid.New()

	settings, err := f.p.GetUserSettings(context.Background(), userID)
	if err != nil {
		t.Fatalf("GetUserSettings: %v", err)
	}
	if !settings.SmartEnabled || settings.MinHour != 8 || settings.MaxHour != 22 {
		t.Errorf("defaults = %+v", settings)
	}
	if f.settings.settings[userID] == nil {
		t.Error("defaults not persisted on first read")
	}
}

func TestUpdateUserSettingsPartialMerge(t *testing.T) {
	t.Parallel()

	f := newFixture(testNow)
	userID := uuid.New()
	high := models.SensitivityHigh

	settings, err := f.p.UpdateUserSettings(context.Background(), userID, &SettingsUpdate{
		Sensitivity: &high,
	})
	if err != nil {
		t.Fatalf("UpdateUserSettings: %v", err)
	}
	if settings.Sensitivity != models.SensitivityHigh {
		t.Errorf("Sensitivity = %q, want high", settings.Sensitivity)
	}
	if settings.MinHour != 8 || settings.MaxHour != 22 || !settings.SmartEnabled {
		t.Errorf("untouched fields changed: %+v", settings)
	}
}

func TestUpdateUserSettingsRejectsInvertedWindow(t *testing.T) {
	t.Parallel()

	f := newFixture(testNow)
	userID := uuid.New()
	min := 20
	max := 9

	_, err := f.p.UpdateUserSettings(context.Background(), userID, &SettingsUpdate{MinHour: &min, MaxHour: &max})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}
