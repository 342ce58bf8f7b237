package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/benvon/habitflow/internal/clock"
	"github.com/benvon/habitflow/internal/models"
	"github.com/benvon/habitflow/internal/queue"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type mockJobRunRepo struct {
	due map[models.MaintenanceOp][]uuid.UUID
}

func (m *mockJobRunRepo) MarkRun(context.Context, uuid.UUID, models.MaintenanceOp, time.Time) (bool, error) {
	return true, nil
}

func (m *mockJobRunRepo) GetLastRun(context.Context, uuid.UUID, models.MaintenanceOp) (*models.JobRun, error) {
	return nil, nil
}

func (m *mockJobRunRepo) ListUsersDue(_ context.Context, op models.MaintenanceOp, _ time.Time) ([]uuid.UUID, error) {
	return m.due[op], nil
}

type mockConfigSource struct {
	cfg *models.EngineConfig
}

func (m *mockConfigSource) GetOrDefault(context.Context) (*models.EngineConfig, error) {
	if m.cfg == nil {
		return models.DefaultEngineConfig(), nil
	}
	return m.cfg, nil
}

type mockJobQueue struct {
	enqueued []*queue.Job
}

func (m *mockJobQueue) Enqueue(_ context.Context, job *queue.Job) error {
	m.enqueued = append(m.enqueued, job)
	return nil
}

func (m *mockJobQueue) Dequeue(context.Context) (*queue.Message, error) { return nil, nil }
func (m *mockJobQueue) Consume(context.Context, int) (<-chan *queue.Message, <-chan error, error) {
	return nil, nil, nil
}
func (m *mockJobQueue) Close() error                      { return nil }
func (m *mockJobQueue) HealthCheck(context.Context) error { return nil }

func countByType(jobs []*queue.Job, jobType queue.JobType) int {
	n := 0
	for _, j := range jobs {
		if j.Type == jobType {
			n++
		}
	}
	return n
}

func TestTickEnqueuesMidnightResets(t *testing.T) {
	t.Parallel()

	users := []uuid.UUID{uuid.New(), uuid.New()}
	runs := &mockJobRunRepo{due: map[models.MaintenanceOp][]uuid.UUID{
		models.MaintenanceOpMidnightReset: users,
	}}
	jobs := &mockJobQueue{}
	clk := clock.NewFixed(time.Date(2026, time.March, 10, 3, 0, 0, 0, time.UTC))
	s := New(runs, &mockConfigSource{}, jobs, time.Minute, clk, zap.NewNop())

	if err := s.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	if got := countByType(jobs.enqueued, queue.JobTypeMidnightReset); got != 2 {
		t.Errorf("midnight reset jobs = %d, want 2", got)
	}
	if got := countByType(jobs.enqueued, queue.JobTypeEveningSweep); got != 0 {
		t.Errorf("evening sweep jobs = %d, want 0 before cutoff", got)
	}
}

func TestTickEveningSweepAfterCutoff(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	runs := &mockJobRunRepo{due: map[models.MaintenanceOp][]uuid.UUID{
		models.MaintenanceOpEveningSweep: {userID},
	}}

	tests := []struct {
		name string
		hour int
		want int
	}{
		{"before cutoff", 17, 0},
		{"at cutoff", 18, 1},
		{"after cutoff", 21, 1},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			jobs := &mockJobQueue{}
			clk := clock.NewFixed(time.Date(2026, time.March, 10, tt.hour, 30, 0, 0, time.UTC))
			s := New(runs, &mockConfigSource{}, jobs, time.Minute, clk, zap.NewNop())

			if err := s.Tick(context.Background()); err != nil {
				t.Fatalf("Tick: %v", err)
			}
			if got := countByType(jobs.enqueued, queue.JobTypeEveningSweep); got != tt.want {
				t.Errorf("evening sweep jobs at hour %d = %d, want %d", tt.hour, got, tt.want)
			}
		})
	}
}

func TestTickHonorsConfiguredCutoff(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	runs := &mockJobRunRepo{due: map[models.MaintenanceOp][]uuid.UUID{
		models.MaintenanceOpEveningSweep: {userID},
	}}
	cfg := models.DefaultEngineConfig()
	cfg.EveningCutoffHour = 20
	jobs := &mockJobQueue{}
	clk := clock.NewFixed(time.Date(2026, time.March, 10, 19, 0, 0, 0, time.UTC))
	s := New(runs, &mockConfigSource{cfg: cfg}, jobs, time.Minute, clk, zap.NewNop())

	if err := s.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if got := countByType(jobs.enqueued, queue.JobTypeEveningSweep); got != 0 {
		t.Errorf("evening sweep jobs = %d, want 0 at hour 19 with cutoff 20", got)
	}
}

func TestStartStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	runs := &mockJobRunRepo{}
	jobs := &mockJobQueue{}
	s := New(runs, &mockConfigSource{}, jobs, time.Hour, clock.New(), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Start(ctx); err == nil {
		t.Error("expected context cancelled error")
	}
}
