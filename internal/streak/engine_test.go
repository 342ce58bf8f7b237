package streak

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benvon/habitflow/internal/clock"
	"github.com/benvon/habitflow/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type mockStreakRepo struct {
	streaks    map[uuid.UUID]*models.UserStreak
	applyErr   error
	applyDeny  bool
	applied    []*models.StreakProtection
	updateCnt  int
	createdCnt int
}

func newMockStreakRepo() *mockStreakRepo {
	return &mockStreakRepo{streaks: make(map[uuid.UUID]*models.UserStreak)}
}

func (m *mockStreakRepo) GetByID(_ context.Context, id uuid.UUID) (*models.UserStreak, error) {
	return m.streaks[id], nil
}

func (m *mockStreakRepo) GetByUserAndType(_ context.Context, userID uuid.UUID, streakType models.StreakType) (*models.UserStreak, error) {
	for _, s := range m.streaks {
		if s.UserID == userID && s.StreakType == streakType {
			return s, nil
		}
	}
	return nil, nil
}

func (m *mockStreakRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]*models.UserStreak, error) {
	var out []*models.UserStreak
	for _, s := range m.streaks {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockStreakRepo) Create(_ context.Context, s *models.UserStreak) error {
	m.streaks[s.ID] = s
	m.createdCnt++
	return nil
}

func (m *mockStreakRepo) Update(_ context.Context, s *models.UserStreak) error {
	m.streaks[s.ID] = s
	m.updateCnt++
	return nil
}

func (m *mockStreakRepo) ApplyProtection(_ context.Context, s *models.UserStreak, p *models.StreakProtection) (bool, error) {
	if m.applyErr != nil {
		return false, m.applyErr
	}
	if m.applyDeny || s.AvailableProtections <= 0 || s.IsProtectedToday {
		return false, nil
	}
	s.IsProtectedToday = true
	s.UsedProtections++
	s.AvailableProtections--
	p.ProtectionsRemaining = s.AvailableProtections
	m.applied = append(m.applied, p)
	return true, nil
}

type mockActivityRepo struct {
	rows        map[string]*models.DailyActivity
	insertCalls int
}

func newMockActivityRepo() *mockActivityRepo {
	return &mockActivityRepo{rows: make(map[string]*models.DailyActivity)}
}

func activityKey(userID uuid.UUID, date time.Time) string {
	return userID.String() + "|" + date.Format("2006-01-02")
}

func (m *mockActivityRepo) Upsert(_ context.Context, a *models.DailyActivity) error {
	m.rows[activityKey(a.UserID, a.ActivityDate)] = a
	return nil
}

func (m *mockActivityRepo) InsertIfAbsent(_ context.Context, a *models.DailyActivity) error {
	m.insertCalls++
	key := activityKey(a.UserID, a.ActivityDate)
	if _, ok := m.rows[key]; !ok {
		m.rows[key] = a
	}
	return nil
}

func (m *mockActivityRepo) GetByUserAndDate(_ context.Context, userID uuid.UUID, date time.Time) (*models.DailyActivity, error) {
	return m.rows[activityKey(userID, date)], nil
}

type mockTaskCounts struct {
	created int
	total   int
}

func (m *mockTaskCounts) Create(context.Context, *models.Task) error               { return nil }
func (m *mockTaskCounts) GetByID(context.Context, uuid.UUID) (*models.Task, error) { return nil, nil }
func (m *mockTaskCounts) GetByUserIDPaginated(context.Context, uuid.UUID, *models.TaskStatus, int, int) ([]*models.Task, int, error) {
	return nil, 0, nil
}
func (m *mockTaskCounts) Update(context.Context, *models.Task) error { return nil }
func (m *mockTaskCounts) Delete(context.Context, uuid.UUID) error    { return nil }
func (m *mockTaskCounts) CountCreatedBetween(context.Context, uuid.UUID, time.Time, time.Time) (int, error) {
	return m.created, nil
}
func (m *mockTaskCounts) CountAsOf(context.Context, uuid.UUID, time.Time) (int, error) {
	return m.total, nil
}

type mockCompletionCounts struct {
	completed int
	habit     int
}

func (m *mockCompletionCounts) Create(context.Context, *models.TaskCompletion) error { return nil }
func (m *mockCompletionCounts) DeleteByTaskID(context.Context, uuid.UUID) error      { return nil }
func (m *mockCompletionCounts) ListByUserSince(context.Context, uuid.UUID, time.Time) ([]*models.TaskCompletion, error) {
	return nil, nil
}
func (m *mockCompletionCounts) CountBetween(context.Context, uuid.UUID, time.Time, time.Time) (int, error) {
	return m.completed, nil
}
func (m *mockCompletionCounts) CountHabitBetween(context.Context, uuid.UUID, time.Time, time.Time) (int, error) {
	return m.habit, nil
}

func testEngine(streaks *mockStreakRepo, activity *mockActivityRepo, tasks *mockTaskCounts, completions *mockCompletionCounts, clk clock.Clock) *Engine {
	return NewEngine(streaks, activity, tasks, completions, clk, DefaultConfig(), zap.NewNop())
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dayPtr(t time.Time) *time.Time { return &t }

func seedStreak(repo *mockStreakRepo, userID uuid.UUID, count int, lastActivity time.Time) *models.UserStreak {
	s := &models.UserStreak{
		ID:                   uuid.New(),
		UserID:               userID,
		StreakType:           models.StreakTypeDailyCompletion,
		CurrentCount:         count,
		LongestCount:         count,
		LastActivityDate:     dayPtr(lastActivity),
		StreakStartDate:      dayPtr(lastActivity.AddDate(0, 0, -(count - 1))),
		IsActive:             true,
		AvailableProtections: models.DefaultProtectionQuota,
		ProtectionResetDate:  clock.StartOfNextMonth(lastActivity),
		Metadata:             models.Metadata{},
	}
	repo.streaks[s.ID] = s
	return s
}

func TestUpdateUserStreaksTransitions(t *testing.T) {
	t.Parallel()

	today := day(2026, time.March, 10)

	tests := []struct {
		name         string
		lastActivity time.Time
		startCount   int
		hasActivity  bool
		wantCount    int
		wantActive   bool
	}{
		{
			name:         "consecutive day increments",
			lastActivity: day(2026, time.March, 9),
			startCount:   5,
			hasActivity:  true,
			wantCount:    6,
			wantActive:   true,
		},
		{
			name:         "same day re-entry is idempotent",
			lastActivity: day(2026, time.March, 10),
			startCount:   5,
			hasActivity:  true,
			wantCount:    5,
			wantActive:   true,
		},
		{
			name:         "activity after gap restarts at one",
			lastActivity: day(2026, time.March, 5),
			startCount:   5,
			hasActivity:  true,
			wantCount:    1,
			wantActive:   true,
		},
		{
			name:         "one missed day survives on grace",
			lastActivity: day(2026, time.March, 9),
			startCount:   5,
			hasActivity:  false,
			wantCount:    5,
			wantActive:   true,
		},
		{
			name:         "two missed days breaks the streak",
			lastActivity: day(2026, time.March, 8),
			startCount:   5,
			hasActivity:  false,
			wantCount:    0,
			wantActive:   false,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			userID := uuid.New()
			repo := newMockStreakRepo()
			s := seedStreak(repo, userID, tt.startCount, tt.lastActivity)
			engine := testEngine(repo, newMockActivityRepo(), &mockTaskCounts{}, &mockCompletionCounts{}, clock.NewFixed(today))

			if _, err := engine.UpdateUserStreaks(context.Background(), userID, today, tt.hasActivity); err != nil {
				t.Fatalf("UpdateUserStreaks: %v", err)
			}

			got := repo.streaks[s.ID]
			if got.CurrentCount != tt.wantCount {
				t.Errorf("CurrentCount = %d, want %d", got.CurrentCount, tt.wantCount)
			}
			if got.IsActive != tt.wantActive {
				t.Errorf("IsActive = %v, want %v", got.IsActive, tt.wantActive)
			}
			if got.LongestCount < tt.startCount {
				t.Errorf("LongestCount = %d, dropped below %d", got.LongestCount, tt.startCount)
			}
		})
	}
}

func TestUpdateUserStreaksLazyCreate(t *testing.T) {
	t.Parallel()

	today := day(2026, time.March, 10)
	userID := uuid.New()
	repo := newMockStreakRepo()
	engine := testEngine(repo, newMockActivityRepo(), &mockTaskCounts{}, &mockCompletionCounts{}, clock.NewFixed(today))

	streaks, err := engine.UpdateUserStreaks(context.Background(), userID, today, true)
	if err != nil {
		t.Fatalf("UpdateUserStreaks: %v", err)
	}
	if len(streaks) != 1 {
		t.Fatalf("got %d streaks, want 1", len(streaks))
	}
	s := streaks[0]
	if s.CurrentCount != 1 || s.LongestCount != 1 {
		t.Errorf("counts = %d/%d, want 1/1", s.CurrentCount, s.LongestCount)
	}
	if s.AvailableProtections != models.DefaultProtectionQuota {
		t.Errorf("AvailableProtections = %d, want %d", s.AvailableProtections, models.DefaultProtectionQuota)
	}
	if !s.ProtectionResetDate.Equal(day(2026, time.April, 1)) {
		t.Errorf("ProtectionResetDate = %v, want April 1", s.ProtectionResetDate)
	}

	// No activity, no streak row.
	other := uuid.New()
	streaks, err = engine.UpdateUserStreaks(context.Background(), other, today, false)
	if err != nil {
		t.Fatalf("UpdateUserStreaks: %v", err)
	}
	if len(streaks) != 0 {
		t.Errorf("got %d streaks for inactive user, want 0", len(streaks))
	}
}

func TestUpdateUserStreaksLongestHighWaterMark(t *testing.T) {
	t.Parallel()

	today := day(2026, time.March, 10)
	userID := uuid.New()
	repo := newMockStreakRepo()
	s := seedStreak(repo, userID, 9, day(2026, time.March, 9))
	s.LongestCount = 9
	engine := testEngine(repo, newMockActivityRepo(), &mockTaskCounts{}, &mockCompletionCounts{}, clock.NewFixed(today))

	if _, err := engine.UpdateUserStreaks(context.Background(), userID, today, true); err != nil {
		t.Fatalf("UpdateUserStreaks: %v", err)
	}
	if got := repo.streaks[s.ID].LongestCount; got != 10 {
		t.Errorf("LongestCount = %d, want 10", got)
	}
}

func TestUpdateDailyActivityRollup(t *testing.T) {
	t.Parallel()

	today := day(2026, time.March, 10)
	userID := uuid.New()
	repo := newMockStreakRepo()
	seedStreak(repo, userID, 3, day(2026, time.March, 9))
	activity := newMockActivityRepo()
	engine := testEngine(repo, activity, &mockTaskCounts{created: 2, total: 8}, &mockCompletionCounts{completed: 4, habit: 1}, clock.NewFixed(today))

	update, err := engine.UpdateDailyActivity(context.Background(), userID, today)
	if err != nil {
		t.Fatalf("UpdateDailyActivity: %v", err)
	}

	a := update.Activity
	if a.TasksCompleted != 4 || a.TasksCreated != 2 || a.TotalTasks != 8 {
		t.Errorf("counts = %d/%d/%d, want 4/2/8", a.TasksCompleted, a.TasksCreated, a.TotalTasks)
	}
	if a.CompletionRate != 50.0 {
		t.Errorf("CompletionRate = %v, want 50", a.CompletionRate)
	}
	if a.HabitCompletions != 1 {
		t.Errorf("HabitCompletions = %d, want 1", a.HabitCompletions)
	}
	if a.StreakDays != 4 {
		t.Errorf("StreakDays = %d, want 4 (incremented streak snapshot)", a.StreakDays)
	}

	stored, err := activity.GetByUserAndDate(context.Background(), userID, today)
	if err != nil || stored == nil {
		t.Fatalf("stored activity missing: %v", err)
	}
	if stored.StreakDays != 4 {
		t.Errorf("stored StreakDays = %d, want 4", stored.StreakDays)
	}
}

func TestCanApplyProtection(t *testing.T) {
	t.Parallel()

	today := day(2026, time.March, 10)

	tests := []struct {
		name       string
		mutate     func(s *models.UserStreak)
		wantOK     bool
		wantReason string
	}{
		{
			name:       "eligible",
			mutate:     func(s *models.UserStreak) {},
			wantOK:     true,
			wantReason: ReasonEligible,
		},
		{
			name:       "budget exhausted",
			mutate:     func(s *models.UserStreak) { s.AvailableProtections = 0 },
			wantOK:     false,
			wantReason: ReasonNoBudget,
		},
		{
			name:       "already protected today",
			mutate:     func(s *models.UserStreak) { s.IsProtectedToday = true },
			wantOK:     false,
			wantReason: ReasonAlreadyProtected,
		},
		{
			name:       "already active today",
			mutate:     func(s *models.UserStreak) { s.LastActivityDate = dayPtr(today) },
			wantOK:     false,
			wantReason: ReasonAlreadyActive,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			userID := uuid.New()
			repo := newMockStreakRepo()
			s := seedStreak(repo, userID, 5, day(2026, time.March, 9))
			tt.mutate(s)
			engine := testEngine(repo, newMockActivityRepo(), &mockTaskCounts{}, &mockCompletionCounts{}, clock.NewFixed(today))

			elig, err := engine.CanApplyProtection(context.Background(), userID, s.ID)
			if err != nil {
				t.Fatalf("CanApplyProtection: %v", err)
			}
			if elig.CanProtect != tt.wantOK {
				t.Errorf("CanProtect = %v, want %v", elig.CanProtect, tt.wantOK)
			}
			if elig.Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", elig.Reason, tt.wantReason)
			}
		})
	}
}

func TestCanApplyProtectionUnknownStreak(t *testing.T) {
	t.Parallel()

	engine := testEngine(newMockStreakRepo(), newMockActivityRepo(), &mockTaskCounts{}, &mockCompletionCounts{}, clock.NewFixed(day(2026, time.March, 10)))

	elig, err := engine.CanApplyProtection(context.Background(), uuid.New(), uuid.New())
	if err != nil {
		t.Fatalf("CanApplyProtection: %v", err)
	}
	if elig.CanProtect || elig.Reason != ReasonStreakNotFound {
		t.Errorf("got %+v, want not-found ineligibility", elig)
	}
}

func TestApplyStreakProtectionConservesBudget(t *testing.T) {
	t.Parallel()

	today := day(2026, time.March, 10)
	userID := uuid.New()
	repo := newMockStreakRepo()
	s := seedStreak(repo, userID, 5, day(2026, time.March, 9))
	before := s.AvailableProtections + s.UsedProtections
	engine := testEngine(repo, newMockActivityRepo(), &mockTaskCounts{}, &mockCompletionCounts{}, clock.NewFixed(today))

	result, err := engine.ApplyStreakProtection(context.Background(), userID, s.ID, models.ProtectionTypeManual, "user requested", nil)
	if err != nil {
		t.Fatalf("ApplyStreakProtection: %v", err)
	}

	got := result.Streak
	if !got.IsProtectedToday {
		t.Error("IsProtectedToday = false after apply")
	}
	if got.UsedProtections != 1 {
		t.Errorf("UsedProtections = %d, want 1", got.UsedProtections)
	}
	if got.AvailableProtections+got.UsedProtections != before {
		t.Errorf("budget not conserved: %d + %d != %d", got.AvailableProtections, got.UsedProtections, before)
	}
	if result.Protection.ProtectionsRemaining != got.AvailableProtections {
		t.Errorf("ProtectionsRemaining = %d, want %d", result.Protection.ProtectionsRemaining, got.AvailableProtections)
	}
	if result.Protection.Metadata["current_count"] != 5 {
		t.Errorf("metadata current_count = %v, want 5", result.Protection.Metadata["current_count"])
	}
}

func TestApplyStreakProtectionIneligible(t *testing.T) {
	t.Parallel()

	today := day(2026, time.March, 10)
	userID := uuid.New()
	repo := newMockStreakRepo()
	s := seedStreak(repo, userID, 5, day(2026, time.March, 9))
	s.AvailableProtections = 0
	engine := testEngine(repo, newMockActivityRepo(), &mockTaskCounts{}, &mockCompletionCounts{}, clock.NewFixed(today))

	_, err := engine.ApplyStreakProtection(context.Background(), userID, s.ID, models.ProtectionTypeManual, "user requested", nil)
	var ineligible *IneligibleError
	if !errors.As(err, &ineligible) {
		t.Fatalf("err = %v, want IneligibleError", err)
	}
	if ineligible.Reason != ReasonNoBudget {
		t.Errorf("Reason = %q, want %q", ineligible.Reason, ReasonNoBudget)
	}
	if len(repo.applied) != 0 {
		t.Errorf("protection record written despite ineligibility")
	}
}

func TestApplyStreakProtectionLostRace(t *testing.T) {
	t.Parallel()

	today := day(2026, time.March, 10)
	userID := uuid.New()
	repo := newMockStreakRepo()
	s := seedStreak(repo, userID, 5, day(2026, time.March, 9))
	repo.applyDeny = true
	engine := testEngine(repo, newMockActivityRepo(), &mockTaskCounts{}, &mockCompletionCounts{}, clock.NewFixed(today))

	_, err := engine.ApplyStreakProtection(context.Background(), userID, s.ID, models.ProtectionTypeManual, "user requested", nil)
	var ineligible *IneligibleError
	if !errors.As(err, &ineligible) {
		t.Fatalf("err = %v, want IneligibleError on lost race", err)
	}
}

func TestApplyStreakProtectionStorageError(t *testing.T) {
	t.Parallel()

	today := day(2026, time.March, 10)
	userID := uuid.New()
	repo := newMockStreakRepo()
	s := seedStreak(repo, userID, 5, day(2026, time.March, 9))
	repo.applyErr = errors.New("connection reset")
	engine := testEngine(repo, newMockActivityRepo(), &mockTaskCounts{}, &mockCompletionCounts{}, clock.NewFixed(today))

	_, err := engine.ApplyStreakProtection(context.Background(), userID, s.ID, models.ProtectionTypeManual, "user requested", nil)
	if err == nil {
		t.Fatal("expected error")
	}
	var ineligible *IneligibleError
	if errors.As(err, &ineligible) {
		t.Error("storage error misreported as ineligibility")
	}
}

func TestCheckStreaksNeedingProtection(t *testing.T) {
	t.Parallel()

	today := day(2026, time.March, 10)
	userID := uuid.New()
	repo := newMockStreakRepo()

	atRisk := seedStreak(repo, userID, 5, day(2026, time.March, 9))
	noBudget := seedStreak(repo, userID, 3, day(2026, time.March, 9))
	noBudget.StreakType = models.StreakType("weekly_review")
	noBudget.AvailableProtections = 0
	doneToday := seedStreak(repo, userID, 8, today)
	doneToday.StreakType = models.StreakType("habit_specific")

	engine := testEngine(repo, newMockActivityRepo(), &mockTaskCounts{}, &mockCompletionCounts{}, clock.NewFixed(today))

	report, err := engine.CheckStreaksNeedingProtection(context.Background(), userID)
	if err != nil {
		t.Fatalf("CheckStreaksNeedingProtection: %v", err)
	}

	if len(report.AtRisk) != 2 {
		t.Errorf("AtRisk = %d streaks, want 2", len(report.AtRisk))
	}
	if len(report.Protectable) != 1 {
		t.Fatalf("Protectable = %d streaks, want 1", len(report.Protectable))
	}
	if report.Protectable[0].ID != atRisk.ID {
		t.Errorf("Protectable[0] = %v, want %v", report.Protectable[0].ID, atRisk.ID)
	}
	for _, s := range report.AtRisk {
		if s.ID == doneToday.ID {
			t.Error("streak maintained today reported at risk")
		}
	}
}

func TestPerformMidnightResetConsumesProtection(t *testing.T) {
	t.Parallel()

	today := day(2026, time.March, 10)
	userID := uuid.New()
	repo := newMockStreakRepo()
	s := seedStreak(repo, userID, 5, day(2026, time.March, 8))
	s.IsProtectedToday = true
	activity := newMockActivityRepo()
	engine := testEngine(repo, activity, &mockTaskCounts{}, &mockCompletionCounts{}, clock.NewFixed(today))

	if err := engine.PerformMidnightReset(context.Background(), userID); err != nil {
		t.Fatalf("PerformMidnightReset: %v", err)
	}

	got := repo.streaks[s.ID]
	if got.IsProtectedToday {
		t.Error("IsProtectedToday still set after reset")
	}
	if got.CurrentCount != 5 {
		t.Errorf("CurrentCount = %d, want 5 (protection preserved streak)", got.CurrentCount)
	}
	if got.LastActivityDate == nil || !got.LastActivityDate.Equal(day(2026, time.March, 9)) {
		t.Errorf("LastActivityDate = %v, want March 9", got.LastActivityDate)
	}

	seeded, err := activity.GetByUserAndDate(context.Background(), userID, today)
	if err != nil || seeded == nil {
		t.Fatalf("zero activity row not seeded: %v", err)
	}
	if seeded.TasksCompleted != 0 {
		t.Errorf("seeded TasksCompleted = %d, want 0", seeded.TasksCompleted)
	}
}

func TestPerformMidnightResetBreaksExpiredStreaks(t *testing.T) {
	t.Parallel()

	today := day(2026, time.March, 10)
	userID := uuid.New()
	repo := newMockStreakRepo()
	expired := seedStreak(repo, userID, 5, day(2026, time.March, 8))
	engine := testEngine(repo, newMockActivityRepo(), &mockTaskCounts{}, &mockCompletionCounts{}, clock.NewFixed(today))

	if err := engine.PerformMidnightReset(context.Background(), userID); err != nil {
		t.Fatalf("PerformMidnightReset: %v", err)
	}

	got := repo.streaks[expired.ID]
	if got.IsActive || got.CurrentCount != 0 {
		t.Errorf("expired streak not broken: active=%v count=%d", got.IsActive, got.CurrentCount)
	}
	if got.LongestCount != 5 {
		t.Errorf("LongestCount = %d, want 5 preserved through break", got.LongestCount)
	}
}

func TestPerformMidnightResetIdempotent(t *testing.T) {
	t.Parallel()

	today := day(2026, time.March, 10)
	userID := uuid.New()
	repo := newMockStreakRepo()
	s := seedStreak(repo, userID, 5, day(2026, time.March, 9))
	engine := testEngine(repo, newMockActivityRepo(), &mockTaskCounts{}, &mockCompletionCounts{}, clock.NewFixed(today))

	for i := 0; i < 3; i++ {
		if err := engine.PerformMidnightReset(context.Background(), userID); err != nil {
			t.Fatalf("PerformMidnightReset #%d: %v", i+1, err)
		}
	}

	got := repo.streaks[s.ID]
	if got.CurrentCount != 5 || !got.IsActive {
		t.Errorf("grace streak mutated by repeated resets: count=%d active=%v", got.CurrentCount, got.IsActive)
	}
}

func TestResetMonthlyProtections(t *testing.T) {
	t.Parallel()

	now := day(2026, time.April, 1)
	userID := uuid.New()
	repo := newMockStreakRepo()

	due := seedStreak(repo, userID, 5, day(2026, time.March, 31))
	due.AvailableProtections = 0
	due.UsedProtections = 3
	due.ProtectionResetDate = day(2026, time.April, 1)

	notDue := seedStreak(repo, userID, 2, day(2026, time.March, 31))
	notDue.StreakType = models.StreakType("weekly_review")
	notDue.AvailableProtections = 1
	notDue.UsedProtections = 2
	notDue.ProtectionResetDate = day(2026, time.May, 1)

	engine := testEngine(repo, newMockActivityRepo(), &mockTaskCounts{}, &mockCompletionCounts{}, clock.NewFixed(now))

	if err := engine.ResetMonthlyProtections(context.Background(), userID); err != nil {
		t.Fatalf("ResetMonthlyProtections: %v", err)
	}

	gotDue := repo.streaks[due.ID]
	if gotDue.AvailableProtections != models.DefaultProtectionQuota || gotDue.UsedProtections != 0 {
		t.Errorf("due streak = %d/%d, want %d/0", gotDue.AvailableProtections, gotDue.UsedProtections, models.DefaultProtectionQuota)
	}
	if !gotDue.ProtectionResetDate.Equal(day(2026, time.May, 1)) {
		t.Errorf("next reset = %v, want May 1", gotDue.ProtectionResetDate)
	}

	gotNotDue := repo.streaks[notDue.ID]
	if gotNotDue.AvailableProtections != 1 || gotNotDue.UsedProtections != 2 {
		t.Errorf("not-due streak mutated: %d/%d", gotNotDue.AvailableProtections, gotNotDue.UsedProtections)
	}
}
