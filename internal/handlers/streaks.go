package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/benvon/habitflow/internal/database"
	"github.com/benvon/habitflow/internal/models"
	"github.com/benvon/habitflow/internal/request"
	"github.com/benvon/habitflow/internal/streak"
	"github.com/benvon/habitflow/internal/validation"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// StreakHandler handles streak and protection requests
type StreakHandler struct {
	engine      *streak.Engine
	streakRepo  database.StreakRepositoryInterface
	protections database.ProtectionRepositoryInterface
}

// NewStreakHandler creates a new streak handler
func NewStreakHandler(engine *streak.Engine, streakRepo database.StreakRepositoryInterface, protections database.ProtectionRepositoryInterface) *StreakHandler {
	return &StreakHandler{engine: engine, streakRepo: streakRepo, protections: protections}
}

// RegisterRoutes registers streak routes on the given router
// The router should already have the /streaks prefix
func (h *StreakHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.ListStreaks).Methods("GET")
	r.HandleFunc("/at-risk", h.AtRisk).Methods("GET")
	r.HandleFunc("/protections", h.ListProtections).Methods("GET")
	r.HandleFunc("/{id}/protect", h.Protect).Methods("POST")
	r.HandleFunc("/{id}/protection-eligibility", h.ProtectionEligibility).Methods("GET")
}

// ProtectRequest represents a manual protection request
type ProtectRequest struct {
	ProtectionType string     `json:"protection_type,omitempty"`
	Reason         string     `json:"reason,omitempty"`
	TaskID         *uuid.UUID `json:"task_id,omitempty"`
}

// ListStreaks returns all streaks for the authenticated user
func (h *StreakHandler) ListStreaks(w http.ResponseWriter, r *http.Request) {
	userID := request.UserIDFromContext(r)
	if userID == uuid.Nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	streaks, err := h.streakRepo.ListByUser(r.Context(), userID)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to list streaks")
		return
	}
	if streaks == nil {
		streaks = []*models.UserStreak{}
	}

	respondJSON(w, http.StatusOK, map[string]any{"streaks": streaks})
}

// AtRisk returns streaks in danger of breaking today, split into all at-risk
// and the subset that still has protection budget
func (h *StreakHandler) AtRisk(w http.ResponseWriter, r *http.Request) {
	userID := request.UserIDFromContext(r)
	if userID == uuid.Nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	report, err := h.engine.CheckStreaksNeedingProtection(r.Context(), userID)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to check streaks")
		return
	}

	atRisk := report.AtRisk
	if atRisk == nil {
		atRisk = []*models.UserStreak{}
	}
	protectable := report.Protectable
	if protectable == nil {
		protectable = []*models.UserStreak{}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"at_risk":     atRisk,
		"protectable": protectable,
	})
}

// ListProtections returns the user's protection audit history
func (h *StreakHandler) ListProtections(w http.ResponseWriter, r *http.Request) {
	userID := request.UserIDFromContext(r)
	if userID == uuid.Nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	history, err := h.protections.ListByUser(r.Context(), userID, 100)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to list protections")
		return
	}
	if history == nil {
		history = []*models.StreakProtection{}
	}

	respondJSON(w, http.StatusOK, map[string]any{"protections": history})
}

// ProtectionEligibility reports whether a protection can be applied to a
// streak without applying it
func (h *StreakHandler) ProtectionEligibility(w http.ResponseWriter, r *http.Request) {
	userID := request.UserIDFromContext(r)
	if userID == uuid.Nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	streakID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid streak ID")
		return
	}

	eligibility, err := h.engine.CanApplyProtection(r.Context(), userID, streakID)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to check eligibility")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"can_protect":           eligibility.CanProtect,
		"reason":                eligibility.Reason,
		"available_protections": eligibility.AvailableProtections,
	})
}

// Protect applies a streak protection. Ineligibility is a 409 with the
// domain reason, not a server error.
func (h *StreakHandler) Protect(w http.ResponseWriter, r *http.Request) {
	userID := request.UserIDFromContext(r)
	if userID == uuid.Nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return
	}

	streakID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid streak ID")
		return
	}

	var req ProtectRequest
	if r.Body != nil && r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid request body")
			return
		}
	}

	protectionType := models.ProtectionTypeManual
	if req.ProtectionType != "" {
		if err := validation.ValidateProtectionType(req.ProtectionType); err != nil {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
			return
		}
		protectionType = models.ProtectionType(req.ProtectionType)
	}
	reason := req.Reason
	if reason == "" {
		reason = "user requested"
	}

	result, err := h.engine.ApplyStreakProtection(r.Context(), userID, streakID, protectionType, reason, req.TaskID)
	if err != nil {
		var ineligible *streak.IneligibleError
		if errors.As(err, &ineligible) {
			if ineligible.Reason == streak.ReasonStreakNotFound {
				respondJSONError(w, http.StatusNotFound, "Not Found", "Streak not found")
				return
			}
			respondJSONError(w, http.StatusConflict, "Conflict", ineligible.Reason)
			return
		}
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to apply protection")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"streak":     result.Streak,
		"protection": result.Protection,
	})
}
