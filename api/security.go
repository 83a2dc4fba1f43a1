package api

import (
	"context"
	"net"
	"net/http"
	"strings"
)

// securityHeaders are the hardening headers set on every routed response
var securityHeaders = map[string]string{
	"Content-Security-Policy": "default-src 'self';base-uri 'self';font-src 'self' https: data:;" +
		"form-action 'self';frame-ancestors 'self';img-src 'self' data:;object-src 'none';" +
		"script-src 'self';script-src-attr 'none';style-src 'self' https: 'unsafe-inline';" +
		"upgrade-insecure-requests",
	"Cross-Origin-Opener-Policy":        "same-origin",
	"Cross-Origin-Resource-Policy":      "same-origin",
	"Origin-Agent-Cluster":              "?1",
	"Referrer-Policy":                   "no-referrer",
	"Strict-Transport-Security":         "max-age=15552000; includeSubDomains",
	"X-Content-Type-Options":            "nosniff",
	"X-DNS-Prefetch-Control":            "off",
	"X-Download-Options":                "noopen",
	"X-Frame-Options":                   "SAMEORIGIN",
	"X-Permitted-Cross-Domain-Policies": "none",
	"X-XSS-Protection":                  "0",
}

func (a *API) securityHeadersStage() Stage {
	return StageFunc("security_headers", func(w http.ResponseWriter, r *http.Request) Result {
		h := w.Header()
		for name, value := range securityHeaders {
			h.Set(name, value)
		}
		h.Del("X-Powered-By")
		return Next(nil)
	})
}

const (
	corsAllowMethods = "GET,HEAD,PUT,PATCH,POST,DELETE"
)

// corsStage allows any origin unless CORS_ORIGIN lists specific ones.
// Preflight requests are answered here and never reach the rate limiter.
func (a *API) corsStage() Stage {
	allowed := parseOrigins(a.config.Server.CORSOrigin)

	return StageFunc("cors", func(w http.ResponseWriter, r *http.Request) Result {
		h := w.Header()
		origin := r.Header.Get("Origin")

		if allowed == nil {
			h.Set("Access-Control-Allow-Origin", "*")
		} else {
			h.Add("Vary", "Origin")
			if origin != "" && allowed[origin] {
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Credentials", "true")
			}
		}

		if r.Method != http.MethodOptions || r.Header.Get("Access-Control-Request-Method") == "" {
			return Next(nil)
		}

		h.Set("Access-Control-Allow-Methods", corsAllowMethods)
		if reqHeaders := r.Header.Get("Access-Control-Request-Headers"); reqHeaders != "" {
			h.Set("Access-Control-Allow-Headers", reqHeaders)
			h.Add("Vary", "Access-Control-Request-Headers")
		}
		h.Set("Content-Length", "0")
		w.WriteHeader(http.StatusNoContent)
		return Done()
	})
}

// parseOrigins returns nil for the wildcard
func parseOrigins(raw string) map[string]bool {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "*" {
		return nil
	}
	origins := make(map[string]bool)
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins[o] = true
		}
	}
	return origins
}

// timeoutStage bounds the request context. Store calls observe the deadline.
func (a *API) timeoutStage() Stage {
	timeout := a.config.Server.RequestTimeout

	return StageFunc("timeout", func(w http.ResponseWriter, r *http.Request) Result {
		if timeout <= 0 {
			return Next(nil)
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		if trace := getTrace(ctx); trace != nil {
			trace.onFinish(cancel)
		} else {
			context.AfterFunc(ctx, cancel)
		}
		return Next(r.WithContext(ctx))
	})
}

// clientIP extracts the client address used for rate limiting.
// Forwarded headers are only honored when the service runs behind a proxy.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			ip := strings.TrimSpace(strings.Split(xff, ",")[0])
			if ip != "" && net.ParseIP(ip) != nil {
				return ip
			}
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" && net.ParseIP(xri) != nil {
			return xri
		}
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
