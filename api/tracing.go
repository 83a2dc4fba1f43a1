package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// RequestIDHeader carries the request correlation ID in both directions
const RequestIDHeader = "X-Request-ID"

// tracingStage assigns the request ID and opens the per-request trace record.
//
// Behavior:
//   - If X-Request-ID is present in the request, use its sanitized value
//   - Otherwise generate a new UUID v4
//   - Echo the ID in the response headers
func (a *API) tracingStage() Stage {
	return StageFunc("tracing", func(w http.ResponseWriter, r *http.Request) Result {
		requestID := sanitizeRequestID(r.Header.Get(RequestIDHeader))
		if requestID == "" {
			requestID = uuid.New().String()
		}
		w.Header().Set(RequestIDHeader, requestID)

		trace := &requestTrace{ID: requestID, Start: time.Now()}
		ctx := WithRequestID(r.Context(), requestID)
		ctx = withTrace(ctx, trace)

		a.logger.Debugw("request_started",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", clientIP(r, a.config.Server.TrustProxy),
			"user_agent", r.UserAgent(),
		)

		return Next(r.WithContext(ctx))
	})
}

// routeLabel records the matched route template so metrics are keyed by
// route rather than raw path. Unmatched requests never reach it.
func routeLabel(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if trace := getTrace(r.Context()); trace != nil {
			if route := mux.CurrentRoute(r); route != nil {
				if tpl, err := route.GetPathTemplate(); err == nil {
					trace.Route = tpl
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}

// sanitizeRequestID cleans request ID to prevent log injection.
// Only allows alphanumeric characters, dashes, and underscores.
// Truncates to maximum 64 characters to prevent memory issues.
func sanitizeRequestID(id string) string {
	const maxLen = 64

	if id == "" {
		return ""
	}

	if len(id) > maxLen {
		id = id[:maxLen]
	}

	result := make([]byte, 0, len(id))
	for i := 0; i < len(id); i++ {
		c := id[i]
		if (c >= 'a' && c <= 'z') ||
			(c >= 'A' && c <= 'Z') ||
			(c >= '0' && c <= '9') ||
			c == '-' || c == '_' {
			result = append(result, c)
		}
	}

	return string(result)
}
