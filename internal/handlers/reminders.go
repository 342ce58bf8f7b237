package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/benvon/habitflow/internal/database"
	"github.com/benvon/habitflow/internal/models"
	"github.com/benvon/habitflow/internal/notify"
	"github.com/benvon/habitflow/internal/request"
	"github.com/benvon/habitflow/internal/validation"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// ReminderHandler handles reminder CRUD. Schedule changes are pushed to the
// notification dispatcher best-effort; the stored reminder is the source of
// truth and the reoptimization worker re-pushes timing on its own.
type ReminderHandler struct {
	reminders  database.ReminderRepositoryInterface
	taskRepo   database.TaskRepositoryInterface
	dispatcher notify.Dispatcher
	logger     *zap.Logger
}

// NewReminderHandler creates a new reminder handler
func NewReminderHandler(
	reminders database.ReminderRepositoryInterface,
	taskRepo database.TaskRepositoryInterface,
	dispatcher notify.Dispatcher,
	logger *zap.Logger,
) *ReminderHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReminderHandler{
		reminders:  reminders,
		taskRepo:   taskRepo,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// RegisterRoutes registers reminder routes on the given router
// The router should already have the /reminders prefix
func (h *ReminderHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.ListReminders).Methods("GET")
	r.HandleFunc("", h.CreateReminder).Methods("POST")
	r.HandleFunc("/{id}", h.DeleteReminder).Methods("DELETE")
}

// CreateReminderRequest represents the request to create a reminder
type CreateReminderRequest struct {
	TaskID     uuid.UUID `json:"task_id" validate:"required"`
	Hour       int       `json:"hour" validate:"min=0,max=23"`
	Minute     int       `json:"minute" validate:"min=0,max=59"`
	DayOfWeek  *int      `json:"day_of_week,omitempty" validate:"omitempty,min=0,max=6"`
	Recurrence string    `json:"recurrence" validate:"required,recurrence"`
}

// ListReminders lists the user's enabled reminders
func (h *ReminderHandler) ListReminders(w http.ResponseWriter, r *http.Request) {
	userID := request.UserIDFromContext(r)
	if userID == uuid.Nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	reminders, err := h.reminders.ListEnabledByUser(r.Context(), userID)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to list reminders")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"reminders": reminders})
}

// CreateReminder creates a reminder for a task the user owns
func (h *ReminderHandler) CreateReminder(w http.ResponseWriter, r *http.Request) {
	userID := request.UserIDFromContext(r)
	if userID == uuid.Nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	var req CreateReminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid request body")
		return
	}
	if err := validation.Validator.Struct(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	task, err := h.taskRepo.GetByID(r.Context(), req.TaskID)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to load task")
		return
	}
	if task == nil || task.UserID != userID {
		respondJSONError(w, http.StatusNotFound, "Not Found", "Task not found")
		return
	}

	reminder := &models.Reminder{
		ID:         uuid.New(),
		UserID:     userID,
		TaskID:     req.TaskID,
		Hour:       req.Hour,
		Minute:     req.Minute,
		DayOfWeek:  req.DayOfWeek,
		Recurrence: models.Recurrence(req.Recurrence),
		Enabled:    true,
	}
	if err := h.reminders.Create(r.Context(), reminder); err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to create reminder")
		return
	}

	if h.dispatcher != nil {
		if err := h.dispatcher.Schedule(r.Context(), reminder); err != nil {
			h.logger.Warn("reminder_schedule_dispatch_failed",
				zap.String("reminder_id", reminder.ID.String()),
				zap.Error(err),
			)
		}
	}

	respondJSON(w, http.StatusCreated, reminder)
}

// DeleteReminder removes a reminder and cancels its scheduled delivery
func (h *ReminderHandler) DeleteReminder(w http.ResponseWriter, r *http.Request) {
	userID := request.UserIDFromContext(r)
	if userID == uuid.Nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	reminderID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid reminder ID")
		return
	}

	reminder, err := h.reminders.GetByID(r.Context(), reminderID)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to load reminder")
		return
	}
	if reminder == nil || reminder.UserID != userID {
		respondJSONError(w, http.StatusNotFound, "Not Found", "Reminder not found")
		return
	}

	if err := h.reminders.Delete(r.Context(), reminderID); err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to delete reminder")
		return
	}

	if h.dispatcher != nil {
		if err := h.dispatcher.Cancel(r.Context(), reminderID); err != nil {
			h.logger.Warn("reminder_cancel_dispatch_failed",
				zap.String("reminder_id", reminderID.String()),
				zap.Error(err),
			)
		}
	}

	w.WriteHeader(http.StatusNoContent)
}
