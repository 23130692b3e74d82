package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewInsufficientStock_Details(t *testing.T) {
	err := NewInsufficientStock("wh-1", "p-1", 5, 2)

	assert.Equal(t, CodeInsufficientStock, err.Code)
	assert.Equal(t, http.StatusUnprocessableEntity, err.HTTPStatus)
	assert.Equal(t, int64(5), err.Details["requested"])
	assert.Equal(t, int64(2), err.Details["available"])
	assert.Equal(t, "wh-1", err.Details["warehouse_id"])
	assert.Equal(t, "p-1", err.Details["product_id"])
}

func TestAsAppError_ThroughWrapping(t *testing.T) {
	base := NewInvalidState("transfer", "t-1", "completed", "cancel")
	wrapped := fmt.Errorf("cancel transfer: %w", base)

	appErr, ok := AsAppError(wrapped)
	require.True(t, ok)
	assert.Same(t, base, appErr)
	assert.True(t, IsInvalidState(wrapped))
	assert.Equal(t, http.StatusConflict, GetHTTPStatus(wrapped))
}

func TestGetHTTPStatus_PlainError(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, GetHTTPStatus(errors.New("boom")))
	assert.False(t, IsNotFound(errors.New("boom")))
}

func TestWithCause_Unwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewInternal(cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestWithDetail_InitializesMap(t *testing.T) {
	err := NewValidation("quantity must be positive").WithDetail("field", "quantity")
	assert.Equal(t, "quantity", err.Details["field"])
}
