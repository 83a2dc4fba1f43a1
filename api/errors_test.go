package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"jobboard/core"
	"jobboard/storage"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/crypto/bcrypt"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"app error", core.NewAppError("Please upload file.", http.StatusBadRequest), http.StatusBadRequest, "Please upload file."},
		{"wrapped app error", fmt.Errorf("handler: %w", core.NewAppError("nope", http.StatusForbidden)), http.StatusForbidden, "nope"},
		{"password too long for bcrypt", bcrypt.ErrPasswordTooLong, http.StatusBadRequest, "Password cannot exceed 72 bytes"},
		{"email taken", storage.ErrEmailTaken, http.StatusConflict, "Duplicate email entered"},
		{"already applied", storage.ErrAlreadyApplied, http.StatusBadRequest, "You have already applied for this job."},
		{"duplicate", fmt.Errorf("insert: %w", storage.ErrDuplicate), http.StatusConflict, "Duplicate value entered"},
		{"job not found", storage.ErrJobNotFound, http.StatusNotFound, "Job not found."},
		{"user not found", storage.ErrUserNotFound, http.StatusNotFound, "User not found."},
		{"not found", storage.ErrNotFound, http.StatusNotFound, "Resource not found."},
		{"invalid object id", primitive.ErrInvalidHex, http.StatusBadRequest, "Resource not found. Invalid: _id"},
		{"expired token", fmt.Errorf("%w: %w", jwt.ErrTokenInvalidClaims, jwt.ErrTokenExpired), http.StatusUnauthorized, "JSON Web Token is expired. Try again."},
		{"malformed token", jwt.ErrTokenMalformed, http.StatusUnauthorized, "JSON Web Token is invalid. Try again."},
		{"bad signature", jwt.ErrTokenSignatureInvalid, http.StatusUnauthorized, "JSON Web Token is invalid. Try again."},
		{"body too large", &http.MaxBytesError{Limit: 64}, http.StatusRequestEntityTooLarge, "Request body exceeds 64 bytes"},
		{"timeout", fmt.Errorf("find: %w", context.DeadlineExceeded), http.StatusServiceUnavailable, "Request timed out"},
		{"unknown", errors.New("connection reset by peer"), http.StatusInternalServerError, "Internal Server Error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.err)
			assert.Equal(t, tt.status, got.StatusCode)
			assert.Equal(t, tt.message, got.Message)
		})
	}
}

func TestClassify_ValidationErrors(t *testing.T) {
	err := newValidator().Struct(&registerRequest{})
	require.Error(t, err)

	got := classify(err)

	assert.Equal(t, http.StatusBadRequest, got.StatusCode)
	assert.Equal(t, "Please enter name, Please enter email, Please enter password", got.Message)
}

func TestErrorResponder_Body(t *testing.T) {
	obsCore, logs := observer.New(zap.DebugLevel)
	responder := NewErrorResponder(zap.New(obsCore).Sugar(), false)

	rr := httptest.NewRecorder()
	responder.Respond(rr, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("dial tcp: secret-host:27017"))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.JSONEq(t, `{"success":false,"message":"Internal Server Error","error":{"statusCode":500}}`, rr.Body.String())
	assert.NotContains(t, rr.Body.String(), "secret-host")
	assert.Equal(t, 1, logs.FilterLevelExact(zap.ErrorLevel).Len())

	rr = httptest.NewRecorder()
	responder.Respond(rr, httptest.NewRequest(http.MethodGet, "/", nil), core.NewAppError("Job not found.", http.StatusNotFound))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, 1, logs.FilterLevelExact(zap.ErrorLevel).Len(), "4xx is not logged as an error")
}

func TestErrorResponder_DevelopmentIncludesErrMessage(t *testing.T) {
	responder := NewErrorResponder(zap.NewNop().Sugar(), true)

	rr := httptest.NewRecorder()
	responder.Respond(rr, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("connection reset by peer"))

	body := decodeBody(t, rr)
	assert.Equal(t, "Internal Server Error", body["message"])
	assert.Equal(t, "connection reset by peer", body["errMessage"])
}

func TestErrorResponder_SkipsStartedResponse(t *testing.T) {
	obsCore, logs := observer.New(zap.WarnLevel)
	responder := NewErrorResponder(zap.New(obsCore).Sugar(), false)

	rr := httptest.NewRecorder()
	w := newGuardedWriter(rr)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))

	responder.Respond(w, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("late"))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())
	assert.Equal(t, 1, logs.FilterMessage("Error after response was sent").Len())
}

func TestClientMessage_TruncatesAndNeutralizes(t *testing.T) {
	long := core.NewAppError(strings.Repeat("a", core.MaxErrorMessageLength+50), http.StatusBadRequest)
	msg := clientMessage(long)
	assert.Len(t, msg, core.MaxErrorMessageLength)
	assert.True(t, strings.HasSuffix(msg, "..."))

	markup := core.NewAppError("/<b>x</b> route not found", http.StatusNotFound)
	assert.Equal(t, "/&lt;b&gt;x&lt;/b&gt; route not found", clientMessage(markup))

	assert.Equal(t, "Not Found", clientMessage(core.NewAppError("", http.StatusNotFound)))
}

func TestClientMessage_TruncatesOnRuneBoundary(t *testing.T) {
	long := core.NewAppError(strings.Repeat("é", core.MaxErrorMessageLength), http.StatusBadRequest)
	msg := clientMessage(long)

	assert.True(t, utf8.ValidString(msg))
	assert.LessOrEqual(t, len(msg), core.MaxErrorMessageLength)
	assert.True(t, strings.HasSuffix(msg, "é..."))
}

func TestClientMessage_RouteNotFoundIsNeverTruncated(t *testing.T) {
	url := "/" + strings.Repeat("y", 2*core.MaxErrorMessageLength)
	assert.Equal(t, url+" route not found", clientMessage(core.RouteNotFound(url)))
}
