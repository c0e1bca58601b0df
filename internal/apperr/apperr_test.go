package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	err := New(EventFull, "event %d is full", 3)
	wrapped := fmt.Errorf("register: %w", err)

	kind, ok := KindOf(wrapped)
	assert.True(t, ok)
	assert.Equal(t, EventFull, kind)
	assert.Equal(t, "event 3 is full", err.Error())

	_, ok = KindOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestIsMatchesByKind(t *testing.T) {
	err := fmt.Errorf("review: %w", New(InsufficientFunds, "balance 50, need 100"))

	assert.True(t, errors.Is(err, E(InsufficientFunds)))
	assert.False(t, errors.Is(err, E(InvalidAmount)))
	assert.True(t, IsKind(err, InsufficientFunds))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("json: unknown field")
	err := Wrap(InvalidPayload, cause, "bad payload")

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "json: unknown field")
}
