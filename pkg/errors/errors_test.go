package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	err := NewAppError(ErrCodeInvalidInput, "groupId is required", http.StatusBadRequest)
	assert.Equal(t, "INVALID_INPUT: groupId is required", err.Error())
}

func TestAppError_WithCause(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := WrapInternalError(cause, "Failed to start session")

	assert.Equal(t, cause, err.Cause)
	assert.Contains(t, err.Error(), "connection refused")
	assert.True(t, stderrors.Is(err, cause))
}

func TestAppError_WithContext(t *testing.T) {
	err := NewNotFoundError("Recipient not found in call").
		WithContext("receiver_id", "abc").
		WithContext("attempt", 2)

	assert.Equal(t, "abc", err.Context["receiver_id"])
	assert.Equal(t, 2, err.Context["attempt"])
}

func TestConstructors(t *testing.T) {
	cases := []struct {
		err    *AppError
		code   ErrorCode
		status int
	}{
		{NewInvalidInputError("x"), ErrCodeInvalidInput, http.StatusBadRequest},
		{NewNotFoundError("x"), ErrCodeNotFound, http.StatusNotFound},
		{NewUnauthorizedError("x"), ErrCodeUnauthorized, http.StatusUnauthorized},
		{NewForbiddenError("x"), ErrCodeForbidden, http.StatusForbidden},
		{NewRateLimitError(), ErrCodeRateLimit, http.StatusTooManyRequests},
		{NewInternalError("x"), ErrCodeInternal, http.StatusInternalServerError},
		{NewServiceUnavailableError("x"), ErrCodeServiceUnavailable, http.StatusServiceUnavailable},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.code, tc.err.Code)
		assert.Equal(t, tc.status, tc.err.HTTPStatus)
	}
}

func TestGetAppError_Unwraps(t *testing.T) {
	appErr := NewForbiddenError("nope")
	wrapped := fmt.Errorf("handler: %w", appErr)

	assert.Same(t, appErr, GetAppError(wrapped))
	assert.True(t, IsAppError(wrapped))
	assert.Nil(t, GetAppError(stderrors.New("plain")))
	assert.Nil(t, GetAppError(nil))
}

func TestClientFacing(t *testing.T) {
	code, msg := ClientFacing(NewNotFoundError("Recipient not found in call"))
	assert.Equal(t, ErrCodeNotFound, code)
	assert.Equal(t, "Recipient not found in call", msg)

	code, msg = ClientFacing(stderrors.New("pq: relation does not exist"))
	assert.Equal(t, ErrCodeInternal, code)
	assert.Equal(t, GenericMessage, msg)
}
