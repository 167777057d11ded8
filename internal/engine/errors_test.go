package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFormatting(t *testing.T) {
	err := NewShapeMismatchError("Validating", "3x4 vs 4x3")
	assert.Equal(t, "engine ShapeMismatch error in Validating: 3x4 vs 4x3", err.Error())

	cause := errors.New("device lost")
	err = NewTransferError("Downloading", "copy failed", cause)
	assert.Contains(t, err.Error(), "Transfer")
	assert.Contains(t, err.Error(), "caused by: device lost")
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("out of memory")
	err := NewAllocationError("Uploading", "buffer allocation failed", cause)
	assert.ErrorIs(t, err, cause)
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		kind ErrorKind
	}{
		{NewShapeMismatchError("Validating", "x"), KindShapeMismatch},
		{NewAllocationError("Uploading", "x", nil), KindAllocation},
		{NewTransferError("Uploading", "x", nil), KindTransfer},
		{NewLaunchError("Launching", "x", nil), KindLaunch},
		{NewTimeoutError("AwaitingCompletion", "x", nil), KindTimeout},
		{NewUnavailableError("Launching", "x", nil), KindUnavailable},
	}

	for _, tt := range tests {
		kind, ok := KindOf(tt.err)
		assert.True(t, ok)
		assert.Equal(t, tt.kind, kind)
		assert.True(t, IsKind(tt.err, tt.kind))
	}
}

func TestKindOfWrapped(t *testing.T) {
	inner := NewTimeoutError("AwaitingCompletion", "deadline exceeded", nil)
	wrapped := fmt.Errorf("request failed: %w", inner)

	kind, ok := KindOf(wrapped)
	assert.True(t, ok)
	assert.Equal(t, KindTimeout, kind)
}

func TestKindOfPlainError(t *testing.T) {
	_, ok := KindOf(errors.New("plain"))
	assert.False(t, ok)
	assert.False(t, IsKind(nil, KindTimeout))
}
