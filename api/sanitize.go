package api

import (
	"net/http"
	"net/url"
	"strings"
)

// isOperatorKey reports whether key could be read by MongoDB as an operator
// or a dotted path. Bracketed query keys such as salary[$gt] count too.
func isOperatorKey(key string) bool {
	return strings.HasPrefix(key, "$") ||
		strings.Contains(key, ".") ||
		strings.Contains(key, "[$")
}

// stripOperators removes operator keys from v in place and returns how many
// keys were dropped
func stripOperators(v interface{}) int {
	removed := 0
	switch t := v.(type) {
	case Body:
		removed += stripOperators(map[string]interface{}(t))
	case map[string]interface{}:
		for k, child := range t {
			if isOperatorKey(k) {
				delete(t, k)
				removed++
				continue
			}
			removed += stripOperators(child)
		}
	case []interface{}:
		for _, child := range t {
			removed += stripOperators(child)
		}
	}
	return removed
}

// sanitizeStage drops MongoDB operator keys from the body and query string
// before any handler can build a filter from them.
func (a *API) sanitizeStage() Stage {
	return StageFunc("mongo_sanitize", func(w http.ResponseWriter, r *http.Request) Result {
		removed := 0
		if body, ok := r.Context().Value(ContextKeyBody).(Body); ok {
			removed += stripOperators(body)
		}

		query := r.URL.Query()
		for k := range query {
			if isOperatorKey(k) {
				query.Del(k)
				removed++
			}
		}

		if removed == 0 {
			return Next(nil)
		}

		a.logger.Warnw("Removed operator keys from request input",
			"request_id", GetRequestIDOrDefault(r.Context()),
			"path", r.URL.Path,
			"removed", removed)
		return Next(withQuery(r, query))
	})
}

// hppStage collapses repeated query parameters (and repeated urlencoded
// fields) to their last value. The original values stay available through
// GetPollutedQuery.
func (a *API) hppStage() Stage {
	return StageFunc("hpp", func(w http.ResponseWriter, r *http.Request) Result {
		query := r.URL.Query()
		polluted := url.Values{}
		for k, vals := range query {
			if len(vals) > 1 {
				polluted[k] = vals
				query[k] = vals[len(vals)-1:]
			}
		}

		if mediaType(r) == "application/x-www-form-urlencoded" {
			if body, ok := r.Context().Value(ContextKeyBody).(Body); ok {
				for k, v := range body {
					items, isList := v.([]interface{})
					if !isList || len(items) < 2 {
						continue
					}
					body[k] = items[len(items)-1]
				}
			}
		}

		if len(polluted) == 0 {
			return Next(nil)
		}
		r = withQuery(r, query)
		return Next(r.WithContext(WithPollutedQuery(r.Context(), polluted)))
	})
}

// withQuery returns a shallow copy of r whose URL carries query.
// The original request URI is left untouched.
func withQuery(r *http.Request, query url.Values) *http.Request {
	u := *r.URL
	u.RawQuery = query.Encode()
	r2 := r.WithContext(r.Context())
	r2.URL = &u
	return r2
}
