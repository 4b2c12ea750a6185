package users

import (
	"errors"
	"fmt"
)

// UserError represents errors related to user operations
type UserError struct {
	Type    string
	UserID  int64
	Message string
	Cause   error
}

func (e *UserError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("user error [%s] for user %d: %s (caused by: %v)", e.Type, e.UserID, e.Message, e.Cause)
	}
	return fmt.Sprintf("user error [%s] for user %d: %s", e.Type, e.UserID, e.Message)
}

func (e *UserError) Unwrap() error {
	return e.Cause
}

// User error types
const (
	UserErrorTypeAlreadyExists = "already_exists"
	UserErrorTypeNotFound      = "not_found"
	UserErrorTypeStoreFailed   = "store_failed"
)

// NewUserAlreadyExistsError creates an error for a unique constraint violation
// on userId or username
func NewUserAlreadyExistsError(userID int64) *UserError {
	return &UserError{
		Type:    UserErrorTypeAlreadyExists,
		UserID:  userID,
		Message: "user already exists with this userId or username",
	}
}

// NewUserNotFoundError creates an error for an unknown or inactive userId
func NewUserNotFoundError(userID int64) *UserError {
	return &UserError{
		Type:    UserErrorTypeNotFound,
		UserID:  userID,
		Message: "user not found",
	}
}

// NewUserStoreError wraps an underlying persistence failure
func NewUserStoreError(userID int64, message string, cause error) *UserError {
	return &UserError{
		Type:    UserErrorTypeStoreFailed,
		UserID:  userID,
		Message: message,
		Cause:   cause,
	}
}

// ValidationError reports the first failing rule of a create or update payload
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// IsNotFound reports whether err is a user-not-found error
func IsNotFound(err error) bool {
	var uerr *UserError
	return errors.As(err, &uerr) && uerr.Type == UserErrorTypeNotFound
}

// IsAlreadyExists reports whether err is a duplicate-key error
func IsAlreadyExists(err error) bool {
	var uerr *UserError
	return errors.As(err, &uerr) && uerr.Type == UserErrorTypeAlreadyExists
}

// IsValidation reports whether err is a validation error
func IsValidation(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}
