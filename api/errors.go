package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"jobboard/core"
	"jobboard/storage"
	"jobboard/util"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// HandlerFunc is a route handler that reports failure by returning an error.
// The error is answered by the ErrorResponder.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

// ErrorResponder is the only place error bodies are written
type ErrorResponder struct {
	logger      *zap.SugaredLogger
	development bool
}

// NewErrorResponder creates a responder. In development mode responses also
// carry the raw error text.
func NewErrorResponder(logger *zap.SugaredLogger, development bool) *ErrorResponder {
	return &ErrorResponder{logger: logger, development: development}
}

type errorStatus struct {
	StatusCode int `json:"statusCode"`
}

type errorBody struct {
	Success    bool        `json:"success"`
	Message    string      `json:"message"`
	Error      errorStatus `json:"error"`
	ErrMessage string      `json:"errMessage,omitempty"`
}

type responseStarter interface {
	Written() bool
}

// Respond classifies err and writes the JSON error body
func (e *ErrorResponder) Respond(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}
	appErr := classify(err)
	requestID := GetRequestIDOrDefault(r.Context())

	if rs, ok := w.(responseStarter); ok && rs.Written() {
		e.logger.Warnw("Error after response was sent",
			"request_id", requestID,
			"error", util.SanitizeError(err),
			"status_code", appErr.StatusCode)
		return
	}

	if appErr.StatusCode >= http.StatusInternalServerError {
		e.logger.Errorw(appErr.Message,
			"request_id", requestID,
			"error", util.SanitizeError(err),
			"status_code", appErr.StatusCode,
			"path", r.URL.Path)
	} else {
		e.logger.Debugw(appErr.Message,
			"request_id", requestID,
			"status_code", appErr.StatusCode,
			"path", r.URL.Path)
	}

	body := errorBody{
		Success: false,
		Message: clientMessage(appErr),
		Error:   errorStatus{StatusCode: appErr.StatusCode},
	}
	if e.development {
		body.ErrMessage = util.SanitizeString(err.Error())
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(appErr.StatusCode)
	if encErr := json.NewEncoder(w).Encode(body); encErr != nil {
		e.logger.Errorw("Failed to encode error response", "error", encErr)
	}
}

// classify maps any error onto an AppError with a client facing message
func classify(err error) *core.AppError {
	var appErr *core.AppError
	if errors.As(err, &appErr) && appErr.StatusCode != 0 {
		return appErr
	}

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		messages := make([]string, 0, len(validationErrs))
		for _, fe := range validationErrs {
			messages = append(messages, validationMessage(fe))
		}
		return core.WrapAppError(err, strings.Join(messages, ", "), http.StatusBadRequest)
	}

	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.Is(err, bcrypt.ErrPasswordTooLong):
		return core.WrapAppError(err, fmt.Sprintf("Password cannot exceed %d bytes", core.MaxPasswordBytes), http.StatusBadRequest)
	case errors.Is(err, storage.ErrEmailTaken):
		return core.WrapAppError(err, "Duplicate email entered", http.StatusConflict)
	case errors.Is(err, storage.ErrAlreadyApplied):
		return core.WrapAppError(err, "You have already applied for this job.", http.StatusBadRequest)
	case errors.Is(err, storage.ErrDuplicate):
		return core.WrapAppError(err, "Duplicate value entered", http.StatusConflict)
	case errors.Is(err, storage.ErrJobNotFound):
		return core.WrapAppError(err, "Job not found.", http.StatusNotFound)
	case errors.Is(err, storage.ErrUserNotFound):
		return core.WrapAppError(err, "User not found.", http.StatusNotFound)
	case errors.Is(err, storage.ErrNotFound):
		return core.WrapAppError(err, "Resource not found.", http.StatusNotFound)
	case errors.Is(err, primitive.ErrInvalidHex):
		return core.WrapAppError(err, "Resource not found. Invalid: _id", http.StatusBadRequest)
	case errors.Is(err, jwt.ErrTokenExpired):
		return core.WrapAppError(err, "JSON Web Token is expired. Try again.", http.StatusUnauthorized)
	case errors.Is(err, jwt.ErrTokenMalformed),
		errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable),
		errors.Is(err, jwt.ErrTokenNotValidYet),
		errors.Is(err, jwt.ErrTokenInvalidClaims):
		return core.WrapAppError(err, "JSON Web Token is invalid. Try again.", http.StatusUnauthorized)
	case errors.As(err, &maxBytesErr):
		return core.WrapAppError(err, fmt.Sprintf("Request body exceeds %d bytes", maxBytesErr.Limit), http.StatusRequestEntityTooLarge)
	case errors.Is(err, context.DeadlineExceeded):
		return core.WrapAppError(err, "Request timed out", http.StatusServiceUnavailable)
	}

	return core.WrapAppError(err, "Internal Server Error", http.StatusInternalServerError)
}

// clientMessage returns the message shown to the caller. Internal errors
// never leak their cause; everything else is stripped of markup.
func clientMessage(appErr *core.AppError) string {
	msg := appErr.Message
	if msg == "" {
		msg = http.StatusText(appErr.StatusCode)
	}
	msg = neutralizeMarkup(msg)
	if appErr.KeepMessage {
		return msg
	}
	return truncateMessage(msg, core.MaxErrorMessageLength)
}

// truncateMessage cuts s to at most max bytes without splitting a rune
func truncateMessage(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

// validationMessage renders one failed validation rule
func validationMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("Please enter %s", field)
	case "email":
		return fmt.Sprintf("Please enter a valid %s", field)
	case "max":
		return fmt.Sprintf("%s cannot exceed %s characters", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "bcryptlen":
		return fmt.Sprintf("%s cannot exceed %d bytes", field, core.MaxPasswordBytes)
	case "oneof":
		return fmt.Sprintf("Please select correct options for %s", field)
	case "gt", "gte":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// writeJSON writes a success body
func (a *API) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		a.logger.Errorw("Failed to encode JSON response",
			"error", err,
			"data_type", fmt.Sprintf("%T", data))
	}
}

// handle adapts a HandlerFunc so its error reaches the responder exactly once
func (a *API) handle(h HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := h(w, r); err != nil {
			a.errors.Respond(w, r, err)
		}
	})
}
