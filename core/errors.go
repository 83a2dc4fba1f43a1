package core

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is an error that carries the HTTP status it should be reported with.
// Handlers and pipeline stages return it; the centralized error responder is the
// only place that turns it into a response.
type AppError struct {
	Message    string
	StatusCode int
	Err        error
	// KeepMessage exempts Message from the client length cap
	KeepMessage bool
}

// NewAppError creates an AppError with the given message and status code.
func NewAppError(message string, statusCode int) *AppError {
	return &AppError{Message: message, StatusCode: statusCode}
}

// WrapAppError creates an AppError that keeps err as its cause.
func WrapAppError(err error, message string, statusCode int) *AppError {
	return &AppError{Message: message, StatusCode: statusCode, Err: err}
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *AppError) Unwrap() error {
	return e.Err
}

// RouteNotFound builds the error produced by the fallback handler.
func RouteNotFound(originalURL string) *AppError {
	appErr := NewAppError(fmt.Sprintf("%s route not found", originalURL), http.StatusNotFound)
	appErr.KeepMessage = true
	return appErr
}

// StatusOf returns the status code carried by err, or 500 when none is set.
func StatusOf(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.StatusCode != 0 {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}
