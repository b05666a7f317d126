package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("verify: %w", New(KindNotFound, "transaction not found on any configured chain"))

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrInvalidTx))
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.Equal(t, "transaction not found on any configured chain", MessageOf(err))
}

func TestInternalErrorsAreHidden(t *testing.T) {
	err := Wrap(KindInternal, "insert entry", errors.New("connection reset"))
	assert.Equal(t, "internal error", MessageOf(err))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
	assert.Equal(t, "internal error", MessageOf(errors.New("plain")))
}

func TestUnwrapReachesCause(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(KindInvalidInput, "bad hash", cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "bad hash")
}
