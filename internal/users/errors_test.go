package users

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserErrorClassification(t *testing.T) {
	notFound := NewUserNotFoundError(7)
	assert.True(t, IsNotFound(notFound))
	assert.False(t, IsAlreadyExists(notFound))

	dup := NewUserAlreadyExistsError(7)
	assert.True(t, IsAlreadyExists(dup))
	assert.False(t, IsNotFound(dup))

	// Classification survives wrapping
	wrapped := fmt.Errorf("lifecycle gate: %w", notFound)
	assert.True(t, IsNotFound(wrapped))

	verr := NewValidationError("email", "Invalid email format.")
	assert.True(t, IsValidation(verr))
	assert.False(t, IsNotFound(verr))
}

func TestUserStoreErrorWrapsCause(t *testing.T) {
	cause := errors.New("connection reset by peer")
	err := NewUserStoreError(7, "failed to fetch user", cause)

	// Persistence failures map to neither 404 nor 409
	assert.False(t, IsNotFound(err))
	assert.False(t, IsAlreadyExists(err))
	assert.False(t, IsValidation(err))

	require.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "failed to fetch user")
	assert.Contains(t, err.Error(), "connection reset by peer")
}
