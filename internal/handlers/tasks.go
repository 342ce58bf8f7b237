package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/benvon/habitflow/internal/database"
	"github.com/benvon/habitflow/internal/models"
	"github.com/benvon/habitflow/internal/request"
	"github.com/benvon/habitflow/internal/tasks"
	"github.com/benvon/habitflow/internal/validation"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

const (
	// MaxTaskTitleLength is the maximum length for a task title
	MaxTaskTitleLength = 500
	// DefaultPageSize is the default page size for pagination
	DefaultPageSize = 100
	// MaxPageSize is the maximum page size for pagination
	MaxPageSize = 500
)

// TaskHandler handles task-related requests
type TaskHandler struct {
	taskRepo database.TaskRepositoryInterface
	service  *tasks.Service
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(taskRepo database.TaskRepositoryInterface, service *tasks.Service) *TaskHandler {
	return &TaskHandler{taskRepo: taskRepo, service: service}
}

// RegisterRoutes registers task routes on the given router
// The router should already have the /tasks prefix
func (h *TaskHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.ListTasks).Methods("GET")
	r.HandleFunc("", h.CreateTask).Methods("POST")
	r.HandleFunc("/{id}", h.GetTask).Methods("GET")
	r.HandleFunc("/{id}", h.UpdateTask).Methods("PATCH")
	r.HandleFunc("/{id}", h.DeleteTask).Methods("DELETE")
	r.HandleFunc("/{id}/complete", h.CompleteTask).Methods("POST")
	r.HandleFunc("/{id}/uncomplete", h.UncompleteTask).Methods("POST")
}

// CreateTaskRequest represents a create task request
type CreateTaskRequest struct {
	Title   string     `json:"title" validate:"required,min=1,max=500"`
	Notes   string     `json:"notes,omitempty"`
	IsHabit bool       `json:"is_habit"`
	DueDate *time.Time `json:"due_date,omitempty"`
}

// CompleteTaskRequest carries optional completion notes
type CompleteTaskRequest struct {
	Notes string `json:"notes,omitempty"`
}

// ListTasksResponse represents the paginated response for listing tasks
type ListTasksResponse struct {
	Tasks      []*models.Task `json:"tasks"`
	Page       int            `json:"page"`
	PageSize   int            `json:"page_size"`
	Total      int            `json:"total"`
	TotalPages int            `json:"total_pages"`
}

// ListTasks lists tasks for the authenticated user with pagination
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	userID := request.UserIDFromContext(r)
	if userID == uuid.Nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	page := 1
	if p := r.URL.Query().Get("page"); p != "" {
		if parsed, err := strconv.Atoi(p); err == nil && parsed > 0 {
			page = parsed
		}
	}
	pageSize := DefaultPageSize
	if ps := r.URL.Query().Get("page_size"); ps != "" {
		if parsed, err := strconv.Atoi(ps); err == nil && parsed > 0 {
			if parsed > MaxPageSize {
				pageSize = MaxPageSize
			} else {
				pageSize = parsed
			}
		}
	}

	var status *models.TaskStatus
	if s := r.URL.Query().Get("status"); s != "" {
		if err := validation.ValidateTaskStatus(s); err != nil {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
			return
		}
		statusEnum := models.TaskStatus(s)
		status = &statusEnum
	}

	taskList, total, err := h.taskRepo.GetByUserIDPaginated(r.Context(), userID, status, page, pageSize)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to list tasks")
		return
	}

	totalPages := (total + pageSize - 1) / pageSize
	respondJSON(w, http.StatusOK, ListTasksResponse{
		Tasks:      taskList,
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
	})
}

// CreateTask creates a new task
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	userID := request.UserIDFromContext(r)
	if userID == uuid.Nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	var req CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid request body")
		return
	}
	if err := validation.Validator.Struct(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	task := &models.Task{
		ID:       uuid.New(),
		UserID:   userID,
		Title:    req.Title,
		Notes:    req.Notes,
		IsHabit:  req.IsHabit,
		DueDate:  req.DueDate,
		Status:   models.TaskStatusPending,
		Metadata: models.Metadata{},
	}
	if err := h.taskRepo.Create(r.Context(), task); err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to create task")
		return
	}

	respondJSON(w, http.StatusCreated, task)
}

// GetTask returns a single task
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	userID := request.UserIDFromContext(r)
	if userID == uuid.Nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	taskID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid task ID")
		return
	}

	task, err := h.taskRepo.GetByID(r.Context(), taskID)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to load task")
		return
	}
	if task == nil || task.UserID != userID {
		respondJSONError(w, http.StatusNotFound, "Not Found", "Task not found")
		return
	}

	respondJSON(w, http.StatusOK, task)
}

// UpdateTaskRequest represents a partial task update
type UpdateTaskRequest struct {
	Title   *string    `json:"title,omitempty"`
	Notes   *string    `json:"notes,omitempty"`
	IsHabit *bool      `json:"is_habit,omitempty"`
	DueDate *time.Time `json:"due_date,omitempty"`
}

// UpdateTask applies a partial update to a task. Status changes go through
// the complete/uncomplete endpoints so their side effects always run.
func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	userID := request.UserIDFromContext(r)
	if userID == uuid.Nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	taskID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid task ID")
		return
	}

	var req UpdateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid request body")
		return
	}
	if req.Title != nil && (len(*req.Title) == 0 || len(*req.Title) > MaxTaskTitleLength) {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Title must be between 1 and 500 characters")
		return
	}

	task, err := h.taskRepo.GetByID(r.Context(), taskID)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to load task")
		return
	}
	if task == nil || task.UserID != userID {
		respondJSONError(w, http.StatusNotFound, "Not Found", "Task not found")
		return
	}

	if req.Title != nil {
		task.Title = *req.Title
	}
	if req.Notes != nil {
		task.Notes = *req.Notes
	}
	if req.IsHabit != nil {
		task.IsHabit = *req.IsHabit
	}
	if req.DueDate != nil {
		task.DueDate = req.DueDate
	}

	if err := h.taskRepo.Update(r.Context(), task); err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to update task")
		return
	}

	respondJSON(w, http.StatusOK, task)
}

// DeleteTask removes a task
func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	userID := request.UserIDFromContext(r)
	if userID == uuid.Nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	taskID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid task ID")
		return
	}

	if err := h.service.DeleteTask(r.Context(), userID, taskID); err != nil {
		var notFound *tasks.NotFoundError
		if errors.As(err, &notFound) {
			respondJSONError(w, http.StatusNotFound, "Not Found", "Task not found")
			return
		}
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to delete task")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

// CompleteTask marks a task completed and returns the updated task. Changed
// is false when the task was already completed.
func (h *TaskHandler) CompleteTask(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, true)
}

// UncompleteTask reverts a completed task to pending
func (h *TaskHandler) UncompleteTask(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, false)
}

func (h *TaskHandler) toggle(w http.ResponseWriter, r *http.Request, complete bool) {
	userID := request.UserIDFromContext(r)
	if userID == uuid.Nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	taskID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid task ID")
		return
	}

	var result *tasks.ToggleResult
	if complete {
		var req CompleteTaskRequest
		if r.Body != nil && r.ContentLength > 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid request body")
				return
			}
		}
		result, err = h.service.CompleteTask(r.Context(), userID, taskID, req.Notes)
	} else {
		result, err = h.service.UncompleteTask(r.Context(), userID, taskID)
	}

	if err != nil {
		var notFound *tasks.NotFoundError
		if errors.As(err, &notFound) {
			respondJSONError(w, http.StatusNotFound, "Not Found", "Task not found")
			return
		}
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to update task")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"task":    result.Task,
		"changed": result.Changed,
	})
}
