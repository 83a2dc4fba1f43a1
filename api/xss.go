package api

import (
	"net/http"
	"regexp"
	"strings"
)

var (
	// scriptBlockRegex matches whole script elements, case-insensitive and across lines
	scriptBlockRegex = regexp.MustCompile(`(?is)<script[^>]*>.*?</script\s*>`)

	markupEscaper = strings.NewReplacer("<", "&lt;", ">", "&gt;")
)

// neutralizeMarkup removes script blocks and escapes the angle brackets of
// any markup left, so stored text renders inert in an HTML page.
func neutralizeMarkup(s string) string {
	if !strings.ContainsAny(s, "<>") {
		return s
	}
	s = scriptBlockRegex.ReplaceAllString(s, "")
	return markupEscaper.Replace(s)
}

// cleanValue rewrites every string inside v in place and returns the result
func cleanValue(v interface{}) interface{} {
	switch t := v.(type) {
	case string:
		return neutralizeMarkup(t)
	case Body:
		for k, child := range t {
			t[k] = cleanValue(child)
		}
		return t
	case map[string]interface{}:
		for k, child := range t {
			t[k] = cleanValue(child)
		}
		return t
	case []interface{}:
		for i, child := range t {
			t[i] = cleanValue(child)
		}
		return t
	default:
		return v
	}
}

// xssStage neutralizes markup in body strings and query values
func (a *API) xssStage() Stage {
	return StageFunc("xss", func(w http.ResponseWriter, r *http.Request) Result {
		if body, ok := r.Context().Value(ContextKeyBody).(Body); ok {
			cleanValue(body)
		}

		if !strings.ContainsAny(r.URL.RawQuery, "<>%") {
			return Next(nil)
		}
		query := r.URL.Query()
		changed := false
		for k, vals := range query {
			for i, v := range vals {
				if cleaned := neutralizeMarkup(v); cleaned != v {
					vals[i] = cleaned
					changed = true
				}
			}
			query[k] = vals
		}
		if !changed {
			return Next(nil)
		}
		return Next(withQuery(r, query))
	})
}
