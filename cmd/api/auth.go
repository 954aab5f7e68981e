package main

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"savor/internal/mailer"
	"savor/internal/store"
)

type RegisterUserPayload struct {
	FirstName string `json:"first_name" validate:"required,max=50"`
	LastName  string `json:"last_name" validate:"required,max=50"`
	Email     string `json:"email" validate:"required,email,max=255"`
	Password  string `json:"password" validate:"required,min=6,max=72"`
}

func (app *application) registerUserHandler(w http.ResponseWriter, r *http.Request) {
	var payload RegisterUserPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	user := &store.User{
		FirstName: payload.FirstName,
		LastName:  payload.LastName,
		Email:     payload.Email,
		Role:      "user",
	}
	if err := user.Password.Set(payload.Password); err != nil {
		app.internalServerError(w, r, err)
		return
	}

	ctx := r.Context()

	plainToken := uuid.New().String()
	hash := sha256.Sum256([]byte(plainToken))
	user.ActivationToken = hex.EncodeToString(hash[:])

	if err := app.store.Users.Create(ctx, user); err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicateEmail):
			app.badRequestResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	activationURL := fmt.Sprintf("%s/confirm?token=%s", app.config.frontendURL, plainToken)
	vars := struct {
		Username      string
		ActivationURL string
	}{
		Username:      user.FirstName,
		ActivationURL: activationURL,
	}

	status, err := app.mailer.Send(mailer.UserWelcomeTemplate, user.FirstName, user.Email, vars)
	if err != nil {
		app.logger.Errorw("error sending welcome email", "error", err)

		// roll back user creation if email fails
		if err := app.store.Users.Delete(ctx, user.ID); err != nil {
			app.logger.Errorw("error deleting user", "error", err)
		}

		app.internalServerError(w, r, err)
		return
	}
	app.logger.Infow("welcome email sent", "status_code", status)

	if err := app.jsonResponse(w, http.StatusCreated, "user", user); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) activateUserHandler(w http.ResponseWriter, r *http.Request) {
	plainToken := chi.URLParam(r, "token")

	hash := sha256.Sum256([]byte(plainToken))
	tokenHash := hex.EncodeToString(hash[:])

	if err := app.store.Users.Activate(r.Context(), tokenHash); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, "message", "account activated"); err != nil {
		app.internalServerError(w, r, err)
	}
}

type CreateTokenPayload struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

func (app *application) createTokenHandler(w http.ResponseWriter, r *http.Request) {
	var payload CreateTokenPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	ctx := r.Context()

	// Visible scope: a deactivated account cannot log in, and the failure is
	// indistinguishable from a wrong password.
	user, err := app.store.Visible.Users.GetByEmail(ctx, payload.Email)
	if err != nil {
		app.unauthorizedErrorResponse(w, r, err)
		return
	}

	if err := user.Password.Compare(payload.Password); err != nil {
		app.unauthorizedErrorResponse(w, r, err)
		return
	}

	accessToken, refreshToken, err := app.authenticator.GenerateTokens(user.ID, user.Role)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.store.Users.SetRefreshToken(ctx, user.ID, refreshToken); err != nil {
		app.internalServerError(w, r, err)
		return
	}

	tokens := TokenResponse{AccessToken: accessToken, RefreshToken: refreshToken}
	if err := app.jsonResponse(w, http.StatusOK, "tokens", tokens); err != nil {
		app.internalServerError(w, r, err)
	}
}

type RefreshTokenPayload struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

func (app *application) refreshTokenHandler(w http.ResponseWriter, r *http.Request) {
	var payload RefreshTokenPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	jwtToken, err := app.authenticator.ValidateRefreshToken(payload.RefreshToken)
	if err != nil {
		app.unauthorizedErrorResponse(w, r, err)
		return
	}

	claims, _ := jwtToken.Claims.(jwt.MapClaims)
	userID, err := strconv.ParseInt(fmt.Sprintf("%.f", claims["sub"]), 10, 64)
	if err != nil {
		app.unauthorizedErrorResponse(w, r, err)
		return
	}

	ctx := r.Context()

	user, err := app.store.Visible.Users.GetByID(ctx, userID)
	if err != nil {
		app.unauthorizedErrorResponse(w, r, err)
		return
	}

	// The presented token must be the one issued last.
	if user.RefreshToken != payload.RefreshToken {
		app.unauthorizedErrorResponse(w, r, fmt.Errorf("refresh token has been rotated"))
		return
	}

	accessToken, refreshToken, err := app.authenticator.GenerateTokens(user.ID, user.Role)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.store.Users.SetRefreshToken(ctx, user.ID, refreshToken); err != nil {
		app.internalServerError(w, r, err)
		return
	}

	tokens := TokenResponse{AccessToken: accessToken, RefreshToken: refreshToken}
	if err := app.jsonResponse(w, http.StatusOK, "tokens", tokens); err != nil {
		app.internalServerError(w, r, err)
	}
}

// resetTokenExp bounds how long a mailed password-reset link stays usable.
const resetTokenExp = 15 * time.Minute

type ForgotPasswordPayload struct {
	Email string `json:"email" validate:"required,email,max=255"`
}

func (app *application) forgotPasswordHandler(w http.ResponseWriter, r *http.Request) {
	var payload ForgotPasswordPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	ctx := r.Context()

	// Visible scope: a deactivated account cannot start a reset, and the
	// failure looks the same as an unknown address.
	user, err := app.store.Visible.Users.GetByEmail(ctx, payload.Email)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	plainToken := uuid.New().String()
	hash := sha256.Sum256([]byte(plainToken))
	tokenHash := hex.EncodeToString(hash[:])

	expires := time.Now().Add(resetTokenExp)
	if err := app.store.Users.SetResetToken(ctx, user.ID, tokenHash, expires); err != nil {
		app.internalServerError(w, r, err)
		return
	}

	resetURL := fmt.Sprintf("%s/reset-password?token=%s", app.config.frontendURL, plainToken)
	vars := struct {
		Username  string
		ResetURL  string
		ExpiresIn string
	}{
		Username:  user.FirstName,
		ResetURL:  resetURL,
		ExpiresIn: resetTokenExp.String(),
	}

	status, err := app.mailer.Send(mailer.ResetPasswordTemplate, user.FirstName, user.Email, vars)
	if err != nil {
		app.logger.Errorw("error sending password reset email", "error", err)
		app.internalServerError(w, r, err)
		return
	}
	app.logger.Infow("password reset email sent", "status_code", status)

	if err := app.jsonResponse(w, http.StatusOK, "message", "password reset email sent"); err != nil {
		app.internalServerError(w, r, err)
	}
}

type ResetPasswordPayload struct {
	Password string `json:"password" validate:"required,min=6,max=72"`
}

func (app *application) resetPasswordHandler(w http.ResponseWriter, r *http.Request) {
	var payload ResetPasswordPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	plainToken := chi.URLParam(r, "resetToken")
	hash := sha256.Sum256([]byte(plainToken))
	tokenHash := hex.EncodeToString(hash[:])

	var user store.User
	if err := user.Password.Set(payload.Password); err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.store.Users.ResetPassword(r.Context(), tokenHash, &user); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			app.badRequestResponse(w, r, fmt.Errorf("reset token is invalid or has expired"))
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, "message", "password has been reset"); err != nil {
		app.internalServerError(w, r, err)
	}
}

type UpdatePasswordPayload struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=6,max=72"`
}

func (app *application) updatePasswordHandler(w http.ResponseWriter, r *http.Request) {
	var payload UpdatePasswordPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	user := getUserFromContext(r)

	if err := user.Password.Compare(payload.CurrentPassword); err != nil {
		app.unauthorizedErrorResponse(w, r, err)
		return
	}

	if err := user.Password.Set(payload.NewPassword); err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.store.Users.UpdatePassword(r.Context(), user); err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, "message", "password updated"); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) logoutHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)

	if err := app.store.Users.SetRefreshToken(r.Context(), user.ID, ""); err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, "message", "logged out"); err != nil {
		app.internalServerError(w, r, err)
	}
}
