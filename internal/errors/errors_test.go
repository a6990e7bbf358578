package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBannedCarriesReason(t *testing.T) {
	err := Banned("spamming the race chat")
	assert.Equal(t, ErrBanned, err.Code)
	assert.Equal(t, http.StatusForbidden, err.Status)
	assert.Equal(t, "spamming the race chat", err.Details)

	assert.Empty(t, Banned("").Details)
}

func TestAsUnwrapsWrappedErrors(t *testing.T) {
	wrapped := fmt.Errorf("vote: %w", PollClosed())

	apiErr, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, ErrPollClosed, apiErr.Code)

	_, ok = As(fmt.Errorf("plain"))
	assert.False(t, ok)
}

func TestValidationErrorMessage(t *testing.T) {
	err := ValidationError("season", "season must be at least 1950")
	assert.Equal(t, http.StatusUnprocessableEntity, err.Status)
	assert.Equal(t, "VALIDATION_ERROR: season must be at least 1950 (field: season)", err.Error())
}
