package api

import (
	"errors"
	"net/http"
	"strings"

	"jobboard/core"
	"jobboard/storage"

	"golang.org/x/crypto/bcrypt"
)

type registerRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,bcryptlen"`
	Role     string `json:"role" validate:"omitempty,oneof=user employer"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// registerUser creates an account and signs the caller in
func (a *API) registerUser(w http.ResponseWriter, r *http.Request) error {
	var req registerRequest
	if err := a.bind(r, &req); err != nil {
		return err
	}
	req.Email = normalizeEmail(req.Email)
	if err := a.validate.Struct(&req); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), a.config.Auth.BcryptCost)
	if err != nil {
		return err
	}

	role := core.RoleUser
	if req.Role != "" {
		role = core.Role(req.Role)
	}
	user, err := a.users.Create(r.Context(), &core.User{
		Name:      strings.TrimSpace(req.Name),
		Email:     req.Email,
		Role:      role,
		Password:  string(hash),
		CreatedAt: a.now(),
	})
	if err != nil {
		return err
	}

	a.logger.Infow("User registered",
		"request_id", GetRequestIDOrDefault(r.Context()),
		"user_id", user.ID.Hex(),
		"role", user.Role)
	return a.sendToken(w, user, http.StatusOK)
}

// loginUser checks credentials and issues a session token
func (a *API) loginUser(w http.ResponseWriter, r *http.Request) error {
	var req loginRequest
	if err := a.bind(r, &req); err != nil {
		return err
	}
	if req.Email == "" || req.Password == "" {
		return core.NewAppError("Please enter email & Password", http.StatusBadRequest)
	}

	invalid := core.NewAppError("Invalid Email or Password.", http.StatusUnauthorized)
	user, err := a.users.GetByEmail(r.Context(), normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return invalid
		}
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		a.logger.Infow("Failed login attempt",
			"request_id", GetRequestIDOrDefault(r.Context()),
			"user_id", user.ID.Hex())
		return invalid
	}

	return a.sendToken(w, user, http.StatusOK)
}

// logoutUser clears the session cookie
func (a *API) logoutUser(w http.ResponseWriter, r *http.Request) error {
	a.clearTokenCookie(w)
	a.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Logged out successfully.",
	})
	return nil
}
