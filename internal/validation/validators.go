// Package validation holds enum and request validators shared by handlers.
package validation

import (
	"fmt"

	"github.com/benvon/habitflow/internal/models"
	"github.com/go-playground/validator/v10"
)

// Validator is the shared validator instance with custom enum rules
// registered.
var Validator = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Registration only fails for empty tag names.
	_ = v.RegisterValidation("sensitivity", func(fl validator.FieldLevel) bool {
		return ValidateSensitivity(fl.Field().String()) == nil
	})
	_ = v.RegisterValidation("recurrence", func(fl validator.FieldLevel) bool {
		return ValidateRecurrence(fl.Field().String()) == nil
	})
	_ = v.RegisterValidation("interaction_type", func(fl validator.FieldLevel) bool {
		return ValidateInteractionType(fl.Field().String()) == nil
	})
	return v
}

// ValidateSensitivity checks an adaptation sensitivity value.
func ValidateSensitivity(s string) error {
	switch models.AdaptationSensitivity(s) {
	case models.SensitivityLow, models.SensitivityMedium, models.SensitivityHigh:
		return nil
	}
	return fmt.Errorf("invalid adaptation_sensitivity %q: must be low, medium, or high", s)
}

// ValidateRecurrence checks a reminder recurrence value.
func ValidateRecurrence(s string) error {
	switch models.Recurrence(s) {
	case models.RecurrenceDaily, models.RecurrenceWeekly, models.RecurrenceOnce:
		return nil
	}
	return fmt.Errorf("invalid recurrence %q: must be daily, weekly, or once", s)
}

// ValidateInteractionType checks a notification interaction type.
func ValidateInteractionType(s string) error {
	switch models.InteractionType(s) {
	case models.InteractionTypeOpened, models.InteractionTypeDismissed,
		models.InteractionTypeSnoozed, models.InteractionTypeCompleted:
		return nil
	}
	return fmt.Errorf("invalid interaction_type %q", s)
}

// ValidateProtectionType checks a streak protection type.
func ValidateProtectionType(s string) error {
	switch models.ProtectionType(s) {
	case models.ProtectionTypeAuto, models.ProtectionTypeManual, models.ProtectionTypePremium:
		return nil
	}
	return fmt.Errorf("invalid protection_type %q: must be auto, manual, or premium", s)
}

// ValidateTaskStatus checks a task status filter value.
func ValidateTaskStatus(s string) error {
	switch models.TaskStatus(s) {
	case models.TaskStatusPending, models.TaskStatusCompleted:
		return nil
	}
	return fmt.Errorf("invalid status %q: must be pending or completed", s)
}
