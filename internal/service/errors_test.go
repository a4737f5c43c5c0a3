package service_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kiranaconnect/kirana/internal/service"
)

func TestNotFoundError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *service.NotFoundError
		expected string
	}{
		{
			name:     "typical resource",
			err:      &service.NotFoundError{Resource: "buyer", ID: "b-42"},
			expected: `buyer "b-42" not found`,
		},
		{
			name:     "different resource type",
			err:      &service.NotFoundError{Resource: "cart item", ID: "rice-5kg"},
			expected: `cart item "rice-5kg" not found`,
		},
		{
			name:     "empty ID",
			err:      &service.NotFoundError{Resource: "buyer", ID: ""},
			expected: `buyer "" not found`,
		},
		{
			name:     "empty resource",
			err:      &service.NotFoundError{Resource: "", ID: "some-id"},
			expected: ` "some-id" not found`,
		},
		{
			name:     "both empty",
			err:      &service.NotFoundError{Resource: "", ID: ""},
			expected: ` "" not found`,
		},
		{
			name:     "ID with special characters",
			err:      &service.NotFoundError{Resource: "notification", ID: "n/1"},
			expected: `notification "n/1" not found`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestNotFoundError_implements_error(t *testing.T) {
	var err error = &service.NotFoundError{Resource: "buyer", ID: "x"}
	assert.Error(t, err)
}

func TestConflictError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *service.ConflictError
		expected string
	}{
		{
			name:     "typical resource",
			err:      &service.ConflictError{Resource: "buyer", ID: "b-42"},
			expected: `buyer with id "b-42" already exists`,
		},
		{
			name:     "different resource type",
			err:      &service.ConflictError{Resource: "buyer", ID: "asha@example.com"},
			expected: `buyer with id "asha@example.com" already exists`,
		},
		{
			name:     "empty ID",
			err:      &service.ConflictError{Resource: "buyer", ID: ""},
			expected: `buyer with id "" already exists`,
		},
		{
			name:     "empty resource",
			err:      &service.ConflictError{Resource: "", ID: "dup"},
			expected: ` with id "dup" already exists`,
		},
		{
			name:     "both empty",
			err:      &service.ConflictError{Resource: "", ID: ""},
			expected: ` with id "" already exists`,
		},
		{
			name:     "with message",
			err:      &service.ConflictError{Resource: "buyer", ID: "b1", Message: "modified concurrently"},
			expected: `buyer "b1": modified concurrently`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestConflictError_implements_error(t *testing.T) {
	var err error = &service.ConflictError{Resource: "buyer", ID: "x"}
	assert.Error(t, err)
}

func TestValidationError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *service.ValidationError
		expected string
	}{
		{
			name:     "with field and message",
			err:      &service.ValidationError{Field: "quantity", Message: "quantity must be at least 1"},
			expected: `validation error for "quantity": quantity must be at least 1`,
		},
		{
			name:     "without field - returns message only",
			err:      &service.ValidationError{Field: "", Message: "invalid request body"},
			expected: "invalid request body",
		},
		{
			name:     "empty message with field",
			err:      &service.ValidationError{Field: "item_id", Message: ""},
			expected: `validation error for "item_id": `,
		},
		{
			name:     "both empty",
			err:      &service.ValidationError{Field: "", Message: ""},
			expected: "",
		},
		{
			name:     "field with special characters",
			err:      &service.ValidationError{Field: "unit_price", Message: "must not be negative"},
			expected: `validation error for "unit_price": must not be negative`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestValidationError_implements_error(t *testing.T) {
	var err error = &service.ValidationError{Field: "x", Message: "bad"}
	assert.Error(t, err)
}
