package service

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/magazine-cms/internal/validation"
)

var (
	// ErrNotFound is returned when a referenced entity does not exist
	ErrNotFound = errors.New("not found")
	// ErrConfigurationMissing is returned when no AI settings have been saved
	ErrConfigurationMissing = errors.New("AI settings are not configured")
	// ErrCredentialsMissing is returned when the AI settings carry no API key
	ErrCredentialsMissing = errors.New("AI provider API key is not configured")
	// ErrQuotaExceeded is returned when the user's daily AI rewrite cap is reached
	ErrQuotaExceeded = errors.New("daily AI rewrite quota exceeded")
	// ErrExternalService is returned when an AI provider or external job service call fails
	ErrExternalService = errors.New("external service error")
	// ErrPersistenceConflict is returned when a unique slug could not be stored
	ErrPersistenceConflict = errors.New("persistence conflict")
	// ErrValidation is returned for malformed input
	ErrValidation = errors.New("validation failed")
	// ErrInvalidTransition is returned when an entity is not in a state that allows the operation
	ErrInvalidTransition = errors.New("invalid state transition")
)

func validationError(errs []validation.ValidationError) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrValidation, validation.Errors(errs).Error())
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
}

// checkID reports an id that cannot name any row as missing
func checkID(kind, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return notFound(kind, id)
	}
	return nil
}
