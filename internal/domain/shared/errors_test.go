package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_Is(t *testing.T) {
	err := fmt.Errorf("loading invoice: %w", NewDomainError(CodeNotFound, "Invoice not found"))

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrConcurrencyConflict))
	assert.True(t, IsCode(err, CodeNotFound))
}

func TestNewPersistenceError(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewPersistenceError("save invoice", cause)

	assert.Equal(t, CodePersistenceFailure, err.Code)
	assert.Equal(t, "Storage failure during save invoice", err.Message)
	assert.NotContains(t, err.Message, "connection refused")
	assert.Equal(t, "Storage failure during save invoice: connection refused", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsCode(fmt.Errorf("wrapped: %w", err), CodePersistenceFailure))
}

func TestNewInvalidTransitionError(t *testing.T) {
	err := NewInvalidTransitionError("paid", "draft")

	assert.Equal(t, CodeInvalidTransition, err.Code)
	assert.Equal(t, "Cannot transition from paid to draft", err.Error())
}

func TestIsCode_NonDomainError(t *testing.T) {
	assert.False(t, IsCode(errors.New("plain"), CodeNotFound))
	assert.False(t, IsCode(nil, CodeNotFound))
}
