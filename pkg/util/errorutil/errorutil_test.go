package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPredicatesSeeThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("route: %w", ErrTicketClosed)
	assert.True(t, IsTicketClosed(wrapped))
	assert.False(t, IsUnresolved(wrapped))
	assert.True(t, errors.Is(wrapped, ErrTicketClosed))

	cv := NewConstraintViolation("topics_name_key", errors.New("duplicate key"))
	assert.True(t, IsConstraintViolation(fmt.Errorf("create topic: %w", cv)))

	df := NewDeliveryFailure(errors.New("bot was blocked by the user"))
	assert.True(t, IsDeliveryFailure(df))
	assert.Contains(t, df.Error(), "bot was blocked")
}

func TestToDomainErrorDefaultsToInternal(t *testing.T) {
	de := ToDomainError(errors.New("boom"))
	require.NotNil(t, de)
	assert.Equal(t, CodeInternal, de.Code)
	assert.Equal(t, http.StatusInternalServerError, de.HTTPStatus)

	nf := ToDomainError(NewNotFound("ticket", map[string]any{"ticket_id": 7}))
	assert.Equal(t, CodeNotFound, nf.Code)
	assert.Equal(t, 7, nf.Details["ticket_id"])

	assert.Nil(t, ToDomainError(nil))
}
