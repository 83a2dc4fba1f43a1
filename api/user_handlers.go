package api

import (
	"context"
	"net/http"
	"strings"

	"jobboard/core"

	"golang.org/x/crypto/bcrypt"
)

type updateUserRequest struct {
	Name  string `json:"name" validate:"required,max=100"`
	Email string `json:"email" validate:"required,email"`
}

type updatePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8,bcryptlen"`
}

// getUserProfile returns the signed in account
func (a *API) getUserProfile(w http.ResponseWriter, r *http.Request) error {
	user, _ := GetUser(r.Context())
	a.writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "data": user})
	return nil
}

// updatePassword replaces the password after checking the current one
func (a *API) updatePassword(w http.ResponseWriter, r *http.Request) error {
	user, _ := GetUser(r.Context())

	var req updatePasswordRequest
	if err := a.bind(r, &req); err != nil {
		return err
	}
	if err := a.validate.Struct(&req); err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.CurrentPassword)); err != nil {
		return core.NewAppError("Old Password is incorrect.", http.StatusUnauthorized)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), a.config.Auth.BcryptCost)
	if err != nil {
		return err
	}
	if err := a.users.UpdatePassword(r.Context(), user.ID, string(hash)); err != nil {
		return err
	}
	user.Password = string(hash)

	return a.sendToken(w, user, http.StatusOK)
}

// updateUser changes name and email
func (a *API) updateUser(w http.ResponseWriter, r *http.Request) error {
	user, _ := GetUser(r.Context())

	var req updateUserRequest
	if err := a.bind(r, &req); err != nil {
		return err
	}
	req.Email = normalizeEmail(req.Email)
	if err := a.validate.Struct(&req); err != nil {
		return err
	}

	updated, err := a.users.Update(r.Context(), user.ID, strings.TrimSpace(req.Name), req.Email)
	if err != nil {
		return err
	}
	a.writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "data": updated})
	return nil
}

// deleteUser removes the account together with the data it owns
func (a *API) deleteUser(w http.ResponseWriter, r *http.Request) error {
	user, _ := GetUser(r.Context())

	if err := a.deleteUserData(r.Context(), user); err != nil {
		return err
	}
	if err := a.users.Delete(r.Context(), user.ID); err != nil {
		return err
	}

	a.logger.Infow("User deleted",
		"request_id", GetRequestIDOrDefault(r.Context()),
		"user_id", user.ID.Hex(),
		"role", user.Role)
	a.clearTokenCookie(w)
	a.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Your account has been deleted.",
	})
	return nil
}

// deleteUserData removes published jobs of employers and withdraws the
// applications of users, deleting the resume files involved.
func (a *API) deleteUserData(ctx context.Context, user *core.User) error {
	switch user.Role {
	case core.RoleEmployer:
		jobs, err := a.jobs.ListPublishedBy(ctx, user.ID)
		if err != nil {
			return err
		}
		if _, err := a.jobs.DeleteByOwner(ctx, user.ID); err != nil {
			return err
		}
		for _, job := range jobs {
			for _, applicant := range job.ApplicantsApplied {
				a.removeResume(applicant.Resume)
			}
		}

	case core.RoleUser:
		jobs, err := a.jobs.ListAppliedBy(ctx, user.ID)
		if err != nil {
			return err
		}
		if err := a.jobs.RemoveApplicant(ctx, user.ID); err != nil {
			return err
		}
		for _, job := range jobs {
			for _, applicant := range job.ApplicantsApplied {
				if applicant.UserID == user.ID {
					a.removeResume(applicant.Resume)
				}
			}
		}
	}
	return nil
}

// getAppliedJobs lists the jobs the user applied to
func (a *API) getAppliedJobs(w http.ResponseWriter, r *http.Request) error {
	user, _ := GetUser(r.Context())
	jobs, err := a.jobs.ListAppliedBy(r.Context(), user.ID)
	if err != nil {
		return err
	}
	a.writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "results": len(jobs), "data": jobs})
	return nil
}

// getPublishedJobs lists the jobs the employer published
func (a *API) getPublishedJobs(w http.ResponseWriter, r *http.Request) error {
	user, _ := GetUser(r.Context())
	jobs, err := a.jobs.ListPublishedBy(r.Context(), user.ID)
	if err != nil {
		return err
	}
	a.writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "results": len(jobs), "data": jobs})
	return nil
}
