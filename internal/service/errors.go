package service

import (
	"fmt"

	"github.com/kiranaconnect/kirana/internal/storage"
)

// NotFoundError is returned when a requested resource does not exist.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

// ConflictError is returned when a resource with the same identifier already
// exists, or when Message is set, when a concurrent write could not be resolved.
type ConflictError struct {
	Resource string
	ID       string
	Message  string
}

func (e *ConflictError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %q: %s", e.Resource, e.ID, e.Message)
	}
	return fmt.Sprintf("%s with id %q already exists", e.Resource, e.ID)
}

// DeliveryError is returned when a reminder was generated and recorded but
// the provider failed to deliver it. Notification holds the persisted record.
type DeliveryError struct {
	Notification *storage.Notification
}

func (e *DeliveryError) Error() string {
	if e.Notification == nil {
		return "reminder delivery failed"
	}
	return fmt.Sprintf("reminder %q delivery failed: %s", e.Notification.ID, e.Notification.DeliveryError)
}

// ValidationError is returned when request data fails validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error for %q: %s", e.Field, e.Message)
	}
	return e.Message
}
