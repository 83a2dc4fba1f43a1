package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"jobboard/core"
	"jobboard/storage"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TokenCookie is the cookie carrying the session JWT
const TokenCookie = "token"

// tokenFromRequest reads the JWT from the token cookie or a Bearer header
func tokenFromRequest(r *http.Request) string {
	if token := GetCookies(r.Context())[TokenCookie]; token != "" {
		return token
	}
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	return ""
}

// authenticated loads the account behind the request token before calling next
func (a *API) authenticated(next HandlerFunc) HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) error {
		token := tokenFromRequest(r)
		if token == "" {
			return core.NewAppError("Login first to access this resource.", http.StatusUnauthorized)
		}

		claims, err := validateJWT(token, a.config)
		if err != nil {
			return err
		}
		userID, err := primitive.ObjectIDFromHex(claims.Subject)
		if err != nil {
			return core.WrapAppError(err, "JSON Web Token is invalid. Try again.", http.StatusUnauthorized)
		}

		ctx, cancel := context.WithTimeout(r.Context(), core.DBOperationTimeout)
		user, err := a.users.GetByID(ctx, userID)
		cancel()
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return core.WrapAppError(err, "Login first to access this resource.", http.StatusUnauthorized)
			}
			return err
		}

		return next(w, r.WithContext(WithUser(r.Context(), user)))
	}
}

// authorize rejects authenticated users whose role is not listed
func (a *API) authorize(roles ...core.Role) func(HandlerFunc) HandlerFunc {
	return func(next HandlerFunc) HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) error {
			user, ok := GetUser(r.Context())
			if !ok {
				return core.NewAppError("Login first to access this resource.", http.StatusUnauthorized)
			}
			if !user.HasRole(roles...) {
				return core.NewAppError(fmt.Sprintf("Role(%s) is not allowed to access this resource.", user.Role), http.StatusForbidden)
			}
			return next(w, r)
		}
	}
}

// protected wires authentication and, when roles are given, role checks
func (a *API) protected(h HandlerFunc, roles ...core.Role) http.Handler {
	if len(roles) > 0 {
		h = a.authorize(roles...)(h)
	}
	return a.handle(a.authenticated(h))
}

// sendToken signs a token for user and sends it as cookie and body
func (a *API) sendToken(w http.ResponseWriter, user *core.User, status int) error {
	now := a.now()
	token, err := generateJWT(user, a.config, now)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     TokenCookie,
		Value:    token,
		Path:     "/",
		Expires:  now.Add(time.Duration(a.config.Auth.CookieExpiryDays) * 24 * time.Hour),
		HttpOnly: true,
		Secure:   a.config.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})

	a.writeJSON(w, status, map[string]interface{}{
		"success": true,
		"token":   token,
	})
	return nil
}

// clearTokenCookie expires the session cookie
func (a *API) clearTokenCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     TokenCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.config.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})
}
