package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"jobboard/core"
)

// multipartOverhead is the allowance for boundaries and form fields on top of
// the per-file limit
const multipartOverhead = 1 << 20

func mediaType(r *http.Request) string {
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return ""
	}
	return mt
}

// bodyFrom returns the request's Body, creating and attaching one if needed
func bodyFrom(r *http.Request) (Body, *http.Request) {
	if body, ok := r.Context().Value(ContextKeyBody).(Body); ok && body != nil {
		return body, r
	}
	body := Body{}
	return body, r.WithContext(WithBody(r.Context(), body))
}

// urlencodedStage parses application/x-www-form-urlencoded bodies.
// Bracketed keys nest: a[b]=1 becomes {"a":{"b":"1"}} and a[]=1 an array.
func (a *API) urlencodedStage() Stage {
	limit := a.config.Server.JSONBodyLimit

	return StageFunc("urlencoded", func(w http.ResponseWriter, r *http.Request) Result {
		if mediaType(r) != "application/x-www-form-urlencoded" {
			return Next(nil)
		}

		raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
		if err != nil {
			return Fail(bodyReadError(err))
		}
		values, err := url.ParseQuery(string(raw))
		if err != nil {
			return Fail(core.WrapAppError(err, "Invalid form body", http.StatusBadRequest))
		}

		body, r := bodyFrom(r)
		mergeForm(body, values)
		return Next(r)
	})
}

// jsonStage parses application/json bodies. The top level must be an object.
func (a *API) jsonStage() Stage {
	limit := a.config.Server.JSONBodyLimit

	return StageFunc("json", func(w http.ResponseWriter, r *http.Request) Result {
		if mt := mediaType(r); mt != "application/json" && !strings.HasSuffix(mt, "+json") {
			return Next(nil)
		}

		raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
		if err != nil {
			return Fail(bodyReadError(err))
		}

		body, r := bodyFrom(r)
		if len(strings.TrimSpace(string(raw))) == 0 {
			return Next(r)
		}

		var parsed interface{}
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return Fail(core.WrapAppError(err, "Invalid JSON body", http.StatusBadRequest))
		}
		obj, ok := parsed.(map[string]interface{})
		if !ok {
			return Fail(core.NewAppError("Request body must be a JSON object", http.StatusBadRequest))
		}
		for k, v := range obj {
			body[k] = v
		}
		return Next(r)
	})
}

// cookieStage parses the Cookie header once. The first value of a name wins.
func (a *API) cookieStage() Stage {
	return StageFunc("cookies", func(w http.ResponseWriter, r *http.Request) Result {
		cookies := make(map[string]string)
		for _, c := range r.Cookies() {
			if _, seen := cookies[c.Name]; !seen {
				cookies[c.Name] = c.Value
			}
		}
		return Next(r.WithContext(WithCookies(r.Context(), cookies)))
	})
}

// uploadStage parses multipart/form-data. Fields are merged into Body and
// files are exposed through GetFiles.
func (a *API) uploadStage() Stage {
	maxFile := a.config.Uploads.MaxFileSize

	return StageFunc("uploads", func(w http.ResponseWriter, r *http.Request) Result {
		if mediaType(r) != "multipart/form-data" {
			return Next(nil)
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxFile+multipartOverhead)
		if err := r.ParseMultipartForm(maxFile); err != nil {
			var maxBytesErr *http.MaxBytesError
			if errors.As(err, &maxBytesErr) {
				return Fail(core.WrapAppError(err, fmt.Sprintf("Please upload file less than %s.", humanSize(maxFile)), http.StatusRequestEntityTooLarge))
			}
			return Fail(core.WrapAppError(err, "Invalid multipart body", http.StatusBadRequest))
		}

		form := r.MultipartForm
		if trace := getTrace(r.Context()); trace != nil {
			trace.onFinish(func() {
				if err := form.RemoveAll(); err != nil {
					a.logger.Warnw("Failed to remove multipart temp files", "error", err)
				}
			})
		}

		body, r := bodyFrom(r)
		mergeForm(body, url.Values(form.Value))
		return Next(r.WithContext(WithFiles(r.Context(), form.File)))
	})
}

func bodyReadError(err error) error {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return core.WrapAppError(err, fmt.Sprintf("Request body exceeds %d bytes", maxBytesErr.Limit), http.StatusRequestEntityTooLarge)
	}
	return core.WrapAppError(err, "Failed to read request body", http.StatusBadRequest)
}

// mergeForm copies form values into body, expanding bracketed keys
func mergeForm(body Body, values url.Values) {
	for key, vals := range values {
		if len(vals) == 0 {
			continue
		}
		segments := splitFormKey(key)
		setFormValue(body, segments, vals)
	}
}

// splitFormKey turns "a[b][]" into ["a", "b", ""]
func splitFormKey(key string) []string {
	open := strings.IndexByte(key, '[')
	if open <= 0 || !strings.HasSuffix(key, "]") {
		return []string{key}
	}
	segments := []string{key[:open]}
	rest := key[open:]
	for len(rest) > 0 {
		if rest[0] != '[' {
			return []string{key}
		}
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			return []string{key}
		}
		segments = append(segments, rest[1:end])
		rest = rest[end+1:]
	}
	return segments
}

func setFormValue(target map[string]interface{}, segments []string, vals []string) {
	head := segments[0]
	if len(segments) == 1 {
		target[head] = formScalar(vals)
		return
	}
	if segments[1] == "" {
		items := make([]interface{}, len(vals))
		for i, v := range vals {
			items[i] = v
		}
		target[head] = items
		return
	}
	child, ok := target[head].(map[string]interface{})
	if !ok {
		child = map[string]interface{}{}
		target[head] = child
	}
	setFormValue(child, segments[1:], vals)
}

func formScalar(vals []string) interface{} {
	if len(vals) == 1 {
		return vals[0]
	}
	items := make([]interface{}, len(vals))
	for i, v := range vals {
		items[i] = v
	}
	return items
}

func humanSize(n int64) string {
	switch {
	case n >= 1000000 && n%1000000 == 0:
		return fmt.Sprintf("%dMB", n/1000000)
	case n >= 1000 && n%1000 == 0:
		return fmt.Sprintf("%dKB", n/1000)
	default:
		return fmt.Sprintf("%d bytes", n)
	}
}
