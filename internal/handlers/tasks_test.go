package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/benvon/habitflow/internal/clock"
	"github.com/benvon/habitflow/internal/models"
	"github.com/benvon/habitflow/internal/queue"
	"github.com/benvon/habitflow/internal/request"
	"github.com/benvon/habitflow/internal/tasks"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type stubTaskRepo struct {
	tasks map[uuid.UUID]*models.Task
}

func newStubTaskRepo() *stubTaskRepo {
	return &stubTaskRepo{tasks: make(map[uuid.UUID]*models.Task)}
}

func (s *stubTaskRepo) Create(_ context.Context, t *models.Task) error {
	s.tasks[t.ID] = t
	return nil
}

func (s *stubTaskRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Task, error) {
	return s.tasks[id], nil
}

func (s *stubTaskRepo) GetByUserIDPaginated(_ context.Context, userID uuid.UUID, status *models.TaskStatus, _, _ int) ([]*models.Task, int, error) {
	var out []*models.Task
	for _, t := range s.tasks {
		if t.UserID != userID {
			continue
		}
		if status != nil && t.Status != *status {
			continue
		}
		out = append(out, t)
	}
	return out, len(out), nil
}

func (s *stubTaskRepo) Update(_ context.Context, t *models.Task) error {
	s.tasks[t.ID] = t
	return nil
}

func (s *stubTaskRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(s.tasks, id)
	return nil
}

func (s *stubTaskRepo) CountCreatedBetween(context.Context, uuid.UUID, time.Time, time.Time) (int, error) {
	return 0, nil
}

func (s *stubTaskRepo) CountAsOf(context.Context, uuid.UUID, time.Time) (int, error) {
	return len(s.tasks), nil
}

type stubCompletionRepo struct {
	byTask map[uuid.UUID]*models.TaskCompletion
}

func newStubCompletionRepo() *stubCompletionRepo {
	return &stubCompletionRepo{byTask: make(map[uuid.UUID]*models.TaskCompletion)}
}

func (s *stubCompletionRepo) Create(_ context.Context, c *models.TaskCompletion) error {
	s.byTask[c.TaskID] = c
	return nil
}

func (s *stubCompletionRepo) DeleteByTaskID(_ context.Context, taskID uuid.UUID) error {
	delete(s.byTask, taskID)
	return nil
}

func (s *stubCompletionRepo) ListByUserSince(context.Context, uuid.UUID, time.Time) ([]*models.TaskCompletion, error) {
	return nil, nil
}

func (s *stubCompletionRepo) CountBetween(context.Context, uuid.UUID, time.Time, time.Time) (int, error) {
	return 0, nil
}

func (s *stubCompletionRepo) CountHabitBetween(context.Context, uuid.UUID, time.Time, time.Time) (int, error) {
	return 0, nil
}

type stubJobQueue struct{ enqueued int }

func (s *stubJobQueue) Enqueue(context.Context, *queue.Job) error { s.enqueued++; return nil }
func (s *stubJobQueue) Dequeue(context.Context) (*queue.Message, error) {
	return nil, nil
}
func (s *stubJobQueue) Consume(context.Context, int) (<-chan *queue.Message, <-chan error, error) {
	return nil, nil, nil
}
func (s *stubJobQueue) Close() error                      { return nil }
func (s *stubJobQueue) HealthCheck(context.Context) error { return nil }

func newTaskTestRouter() (*mux.Router, *stubTaskRepo, *stubCompletionRepo) {
	taskRepo := newStubTaskRepo()
	completionRepo := newStubCompletionRepo()
	clk := clock.NewFixed(time.Date(2026, time.March, 10, 15, 0, 0, 0, time.UTC))
	svc := tasks.NewService(taskRepo, completionRepo, nil, &stubJobQueue{}, clk, zap.NewNop())
	handler := NewTaskHandler(taskRepo, svc)

	r := mux.NewRouter()
	handler.RegisterRoutes(r.PathPrefix("/tasks").Subrouter())
	return r, taskRepo, completionRepo
}

func doRequest(t *testing.T, router *mux.Router, userID uuid.UUID, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if userID != uuid.Nil {
		req = req.WithContext(request.WithUserID(req.Context(), userID))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateAndCompleteTask(t *testing.T) {
	t.Parallel()

	router, taskRepo, completionRepo := newTaskTestRouter()
	userID := uuid.New()

	rec := doRequest(t, router, userID, http.MethodPost, "/tasks", CreateTaskRequest{
		Title:   "evening run",
		IsHabit: true,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}

	var taskID uuid.UUID
	for id := range taskRepo.tasks {
		taskID = id
	}

	rec = doRequest(t, router, userID, http.MethodPost, "/tasks/"+taskID.String()+"/complete", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("complete status = %d, body %s", rec.Code, rec.Body.String())
	}
	if taskRepo.tasks[taskID].Status != models.TaskStatusCompleted {
		t.Error("task not completed")
	}
	if completionRepo.byTask[taskID] == nil {
		t.Error("completion record missing")
	}
}

func TestCompleteTaskUnauthorized(t *testing.T) {
	t.Parallel()

	router, _, _ := newTaskTestRouter()

	rec := doRequest(t, router, uuid.Nil, http.MethodPost, "/tasks/"+uuid.NewString()+"/complete", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestCompleteForeignTaskNotFound(t *testing.T) {
	t.Parallel()

	router, taskRepo, _ := newTaskTestRouter()
	owner := uuid.New()
	task := &models.Task{ID: uuid.New(), UserID: owner, Title: "stretch", Status: models.TaskStatusPending}
	taskRepo.tasks[task.ID] = task

	rec := doRequest(t, router, uuid.New(), http.MethodPost, "/tasks/"+task.ID.String()+"/complete", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestCreateTaskValidation(t *testing.T) {
	t.Parallel()

	router, _, _ := newTaskTestRouter()

	rec := doRequest(t, router, uuid.New(), http.MethodPost, "/tasks", CreateTaskRequest{Title: ""})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for empty title", rec.Code)
	}
}

func TestListTasksStatusFilter(t *testing.T) {
	t.Parallel()

	router, taskRepo, _ := newTaskTestRouter()
	userID := uuid.New()
	taskRepo.tasks[uuid.New()] = &models.Task{ID: uuid.New(), UserID: userID, Status: models.TaskStatusPending}

	rec := doRequest(t, router, userID, http.MethodGet, "/tasks?status=bogus", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for invalid filter", rec.Code)
	}

	rec = doRequest(t, router, userID, http.MethodGet, "/tasks?status=pending", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}
