package api

import (
	"context"
	"mime/multipart"
	"net/url"
	"time"

	"jobboard/core"
)

// contextKey is a private type to prevent context key collisions across packages.
type contextKey string

// Context keys for request-scoped values produced by pipeline stages.
const (
	// ContextKeyRequestID stores the unique request identifier (string)
	ContextKeyRequestID contextKey = "request_id"

	// ContextKeyTrace stores the mutable per-request trace record (*requestTrace)
	ContextKeyTrace contextKey = "trace"

	// ContextKeyBody stores the parsed request body (Body)
	ContextKeyBody contextKey = "body"

	// ContextKeyCookies stores the parsed cookies (map[string]string)
	ContextKeyCookies contextKey = "cookies"

	// ContextKeyFiles stores uploaded files by form field ([]*multipart.FileHeader)
	ContextKeyFiles contextKey = "files"

	// ContextKeyPollutedQuery stores query parameters that arrived more than once (url.Values)
	ContextKeyPollutedQuery contextKey = "polluted_query"

	// ContextKeyUser stores the authenticated account (*core.User)
	ContextKeyUser contextKey = "user"
)

// Body is the parsed request body. Stages may rewrite it in place.
type Body map[string]interface{}

// requestTrace is filled in as the request moves through the pipeline and router
type requestTrace struct {
	ID    string
	Start time.Time
	Route string

	cleanups []func()
}

// onFinish registers fn to run once the response is complete
func (t *requestTrace) onFinish(fn func()) {
	t.cleanups = append(t.cleanups, fn)
}

func (t *requestTrace) runCleanups() {
	for i := len(t.cleanups) - 1; i >= 0; i-- {
		t.cleanups[i]()
	}
	t.cleanups = nil
}

// GetRequestID extracts the request ID from the context.
func GetRequestID(ctx context.Context) (string, bool) {
	requestID, ok := ctx.Value(ContextKeyRequestID).(string)
	return requestID, ok
}

// GetRequestIDOrDefault extracts the request ID from the context or returns "unknown".
func GetRequestIDOrDefault(ctx context.Context) string {
	if requestID, ok := GetRequestID(ctx); ok && requestID != "" {
		return requestID
	}
	return "unknown"
}

// WithRequestID creates a new context with the request ID value.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

func getTrace(ctx context.Context) *requestTrace {
	trace, _ := ctx.Value(ContextKeyTrace).(*requestTrace)
	return trace
}

func withTrace(ctx context.Context, trace *requestTrace) context.Context {
	return context.WithValue(ctx, ContextKeyTrace, trace)
}

// GetBody returns the parsed body, or an empty one when no body stage ran.
func GetBody(ctx context.Context) Body {
	if body, ok := ctx.Value(ContextKeyBody).(Body); ok && body != nil {
		return body
	}
	return Body{}
}

// WithBody creates a new context carrying body.
func WithBody(ctx context.Context, body Body) context.Context {
	return context.WithValue(ctx, ContextKeyBody, body)
}

// GetCookies returns the cookies parsed for this request.
func GetCookies(ctx context.Context) map[string]string {
	cookies, _ := ctx.Value(ContextKeyCookies).(map[string]string)
	return cookies
}

// WithCookies creates a new context carrying the parsed cookies.
func WithCookies(ctx context.Context, cookies map[string]string) context.Context {
	return context.WithValue(ctx, ContextKeyCookies, cookies)
}

// GetFiles returns the uploaded files keyed by form field.
func GetFiles(ctx context.Context) map[string][]*multipart.FileHeader {
	files, _ := ctx.Value(ContextKeyFiles).(map[string][]*multipart.FileHeader)
	return files
}

// WithFiles creates a new context carrying uploaded files.
func WithFiles(ctx context.Context, files map[string][]*multipart.FileHeader) context.Context {
	return context.WithValue(ctx, ContextKeyFiles, files)
}

// GetPollutedQuery returns the original values of parameters sent more than once.
func GetPollutedQuery(ctx context.Context) url.Values {
	polluted, _ := ctx.Value(ContextKeyPollutedQuery).(url.Values)
	return polluted
}

// WithPollutedQuery creates a new context carrying the polluted parameters.
func WithPollutedQuery(ctx context.Context, polluted url.Values) context.Context {
	return context.WithValue(ctx, ContextKeyPollutedQuery, polluted)
}

// GetUser extracts the authenticated user from the context.
func GetUser(ctx context.Context) (*core.User, bool) {
	user, ok := ctx.Value(ContextKeyUser).(*core.User)
	return user, ok && user != nil
}

// WithUser creates a new context with the authenticated user.
func WithUser(ctx context.Context, user *core.User) context.Context {
	return context.WithValue(ctx, ContextKeyUser, user)
}
