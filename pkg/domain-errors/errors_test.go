package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFormatting(t *testing.T) {
	err := New(CodeNotFound, "deposit 7 not found")
	assert.Equal(t, "not_found: deposit 7 not found", err.Error())

	wrapped := Wrap(errors.New("connection refused"), CodeInternal, "store failure")
	assert.Equal(t, "internal: store failure: connection refused", wrapped.Error())
}

func TestHasCode(t *testing.T) {
	err := Newf(CodeInvalidState, "property %d is not available", 3)
	assert.True(t, HasCode(err, CodeInvalidState))
	assert.False(t, HasCode(err, CodeNotFound))
	assert.False(t, HasCode(errors.New("plain"), CodeInternal))
}

func TestHasCodeThroughWrapping(t *testing.T) {
	inner := New(CodeUnauthorized, "only the landlord may refund")
	outer := fmt.Errorf("handling request: %w", inner)
	assert.True(t, HasCode(outer, CodeUnauthorized))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeConflict, CodeOf(New(CodeConflict, "receipt exists")))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := Wrap(cause, CodeInternal, "wrapped")
	assert.ErrorIs(t, err, cause)
}
