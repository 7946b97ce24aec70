package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"validation", Validation("type", "is required"), http.StatusBadRequest},
		{"not found", NotFound("reward", "r1"), http.StatusNotFound},
		{"insufficient", InsufficientPoints(0, 100), http.StatusConflict},
		{"stock", OutOfStock("tee"), http.StatusConflict},
		{"rate", RateLimited("u1", "daily_login"), http.StatusTooManyRequests},
		{"forbidden", Forbidden("admins only"), http.StatusForbidden},
		{"unauthorized", Unauthorized("missing user"), http.StatusUnauthorized},
		{"wrapped", fmt.Errorf("redeem: %w", OutOfStock("tee")), http.StatusConflict},
		{"plain", errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestAppErrorUnwrapsKindAndCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := New(ErrConflict, "could not lock row", cause)

	assert.ErrorIs(t, err, ErrConflict)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestRetryableAndCode(t *testing.T) {
	assert.True(t, Retryable(RateLimited("u", "t")))
	assert.False(t, Retryable(InsufficientPoints(1, 2)))
	assert.Equal(t, "INSUFFICIENT_POINTS", Code(InsufficientPoints(1, 2)))
	assert.Equal(t, "INTERNAL", Code(errors.New("x")))
}
