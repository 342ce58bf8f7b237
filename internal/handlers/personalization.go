package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/benvon/habitflow/internal/database"
	"github.com/benvon/habitflow/internal/models"
	"github.com/benvon/habitflow/internal/personalizer"
	"github.com/benvon/habitflow/internal/request"
	"github.com/benvon/habitflow/internal/validation"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// PersonalizationHandler handles notification personalization requests
type PersonalizationHandler struct {
	personalizer *personalizer.Personalizer
	profiles     database.ProfileRepositoryInterface
}

// NewPersonalizationHandler creates a new personalization handler
func NewPersonalizationHandler(p *personalizer.Personalizer, profiles database.ProfileRepositoryInterface) *PersonalizationHandler {
	return &PersonalizationHandler{personalizer: p, profiles: profiles}
}

// RegisterRoutes registers personalization routes on the API router
func (h *PersonalizationHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/profile", h.GetProfile).Methods("GET")
	r.HandleFunc("/profile/analyze", h.Analyze).Methods("POST")
	r.HandleFunc("/settings", h.GetSettings).Methods("GET")
	r.HandleFunc("/settings", h.UpdateSettings).Methods("PATCH")
	r.HandleFunc("/notifications/timing/preview", h.PreviewTiming).Methods("POST")
	r.HandleFunc("/notifications/interactions", h.RecordInteraction).Methods("POST")
}

// GetProfile returns the user's notification profile, computing it on first
// access
func (h *PersonalizationHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID := request.UserIDFromContext(r)
	if userID == uuid.Nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	profile, err := h.profiles.GetByUserID(r.Context(), userID)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to load profile")
		return
	}
	if profile == nil {
		profile, err = h.personalizer.AnalyzeUserPatterns(r.Context(), userID)
		if err != nil {
			respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to analyze patterns")
			return
		}
	}

	respondJSON(w, http.StatusOK, profile)
}

// Analyze forces a profile rebuild from the user's completion history
func (h *PersonalizationHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	userID := request.UserIDFromContext(r)
	if userID == uuid.Nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	profile, err := h.personalizer.AnalyzeUserPatterns(r.Context(), userID)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to analyze patterns")
		return
	}

	respondJSON(w, http.StatusOK, profile)
}

// GetSettings returns the user's personalization settings
func (h *PersonalizationHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	userID := request.UserIDFromContext(r)
	if userID == uuid.Nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	settings, err := h.personalizer.GetUserSettings(r.Context(), userID)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to load settings")
		return
	}

	respondJSON(w, http.StatusOK, settings)
}

// UpdateSettings applies a partial settings update
func (h *PersonalizationHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	userID := request.UserIDFromContext(r)
	if userID == uuid.Nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	var update personalizer.SettingsUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid request body")
		return
	}

	settings, err := h.personalizer.UpdateUserSettings(r.Context(), userID, &update)
	if err != nil {
		var verr *personalizer.ValidationError
		if errors.As(err, &verr) {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", verr.Error())
			return
		}
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to update settings")
		return
	}

	respondJSON(w, http.StatusOK, settings)
}

// PreviewTimingRequest asks what the optimized timing would be for a
// reminder time without rescheduling anything
type PreviewTimingRequest struct {
	Hour   int `json:"hour" validate:"min=0,max=23"`
	Minute int `json:"minute" validate:"min=0,max=59"`
}

// PreviewTiming returns the optimized timing for a hypothetical reminder
func (h *PersonalizationHandler) PreviewTiming(w http.ResponseWriter, r *http.Request) {
	userID := request.UserIDFromContext(r)
	if userID == uuid.Nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	var req PreviewTimingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid request body")
		return
	}
	if err := validation.Validator.Struct(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	result := h.personalizer.GetOptimizedTiming(r.Context(), userID, personalizer.Timing{
		Hour:   req.Hour,
		Minute: req.Minute,
	})
	respondJSON(w, http.StatusOK, result)
}

// RecordInteractionRequest represents a notification interaction report
type RecordInteractionRequest struct {
	NotificationID         string     `json:"notification_id" validate:"required"`
	TaskID                 *uuid.UUID `json:"task_id,omitempty"`
	InteractionType        string     `json:"interaction_type" validate:"required"`
	ResponseLatencyMinutes *int       `json:"response_latency_minutes,omitempty"`
}

// RecordInteraction appends a notification interaction to the log
func (h *PersonalizationHandler) RecordInteraction(w http.ResponseWriter, r *http.Request) {
	userID := request.UserIDFromContext(r)
	if userID == uuid.Nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	var req RecordInteractionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid request body")
		return
	}
	if err := validation.Validator.Struct(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if err := validation.ValidateInteractionType(req.InteractionType); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	interaction := &models.NotificationInteraction{
		ID:                     uuid.New(),
		UserID:                 userID,
		NotificationID:         req.NotificationID,
		TaskID:                 req.TaskID,
		InteractionType:        models.InteractionType(req.InteractionType),
		ResponseLatencyMinutes: req.ResponseLatencyMinutes,
	}
	if err := h.personalizer.RecordNotificationInteraction(r.Context(), interaction); err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to record interaction")
		return
	}

	respondJSON(w, http.StatusCreated, interaction)
}
