package settlement

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError(t *testing.T) {
	t.Run("cause is kept out of the message but in the chain", func(t *testing.T) {
		cause := errors.New("dial tcp: connection refused")
		err := ErrUpstreamUnavailable.WithCause(cause)

		assert.ErrorIs(t, err, ErrUpstreamUnavailable)
		assert.ErrorIs(t, err, cause)
		assert.Equal(t, "Unable to connect to the treasury server", err.Message)
		assert.Contains(t, err.Error(), "connection refused")
	})

	t.Run("sentinels with a message match exactly", func(t *testing.T) {
		assert.NotErrorIs(t, ErrZeroAmount, ErrSignMismatch)
		assert.ErrorIs(t, ValidationError("bad"), ErrValidation)
		assert.NotErrorIs(t, ValidationError("bad"), ErrMissingAllocationInput)
	})

	t.Run("rejected pairings are validation errors", func(t *testing.T) {
		assert.ErrorIs(t, ErrSignMismatch, ErrValidation)
		assert.ErrorIs(t, ErrZeroAmount, ErrValidation)
		assert.Equal(t, CodeBusinessRule, ErrSelectionNotOpen.Code)
	})

	t.Run("wrapped domain error is still found", func(t *testing.T) {
		err := fmt.Errorf("load view: %w", ErrInvalidCredentials)
		var de *DomainError
		assert.True(t, errors.As(err, &de))
		assert.Equal(t, CodeInvalidCredentials, de.Code)
	})

	t.Run("operation failed", func(t *testing.T) {
		err := OperationFailed("Failed to fetch invoices", errors.New("status 500"))
		assert.Equal(t, CodeOperationFailed, err.Code)
		assert.Equal(t, "Failed to fetch invoices: status 500", err.Error())
	})
}
