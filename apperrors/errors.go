package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kinds. Compare with errors.Is.
var (
	ErrValidation         = errors.New("validation failed")
	ErrNotFound           = errors.New("not found")
	ErrInsufficientPoints = errors.New("insufficient points")
	ErrOutOfStock         = errors.New("out of stock")
	ErrRateLimited        = errors.New("rate limit exceeded")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
)

// AppError carries a kind, a human message and an optional cause.
type AppError struct {
	Kind    error
	Message string
	Field   string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

func New(kind error, message string, err error) *AppError {
	return &AppError{Kind: kind, Message: message, Err: err}
}

func Validation(field, message string) *AppError {
	return &AppError{Kind: ErrValidation, Field: field, Message: fmt.Sprintf("%s: %s", field, message)}
}

func NotFound(entity, id string) *AppError {
	return &AppError{Kind: ErrNotFound, Message: fmt.Sprintf("%s %q not found", entity, id)}
}

func InsufficientPoints(have, need int64) *AppError {
	return &AppError{Kind: ErrInsufficientPoints, Message: fmt.Sprintf("have %d points, need %d", have, need)}
}

func OutOfStock(sku string) *AppError {
	return &AppError{Kind: ErrOutOfStock, Message: fmt.Sprintf("reward %s is out of stock", sku)}
}

func RateLimited(userID, eventType string) *AppError {
	return &AppError{Kind: ErrRateLimited, Message: fmt.Sprintf("too many %s events for user %s", eventType, userID)}
}

func Forbidden(message string) *AppError {
	return &AppError{Kind: ErrForbidden, Message: message}
}

func Unauthorized(message string) *AppError {
	return &AppError{Kind: ErrUnauthorized, Message: message}
}

// HTTPStatus maps an error onto the status code handlers should answer with.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInsufficientPoints), errors.Is(err, ErrOutOfStock), errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether the caller may retry the same request later.
func Retryable(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// Code is the stable machine-readable name of the error kind.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "VALIDATION_ERROR"
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrInsufficientPoints):
		return "INSUFFICIENT_POINTS"
	case errors.Is(err, ErrOutOfStock):
		return "OUT_OF_STOCK"
	case errors.Is(err, ErrRateLimited):
		return "RATE_LIMIT_EXCEEDED"
	case errors.Is(err, ErrUnauthorized):
		return "UNAUTHORIZED"
	case errors.Is(err, ErrForbidden):
		return "FORBIDDEN"
	case errors.Is(err, ErrConflict):
		return "CONFLICT"
	default:
		return "INTERNAL"
	}
}
