package main

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"savor/internal/query"
	"savor/internal/store"
)

func userIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || id < 1 {
		return 0, errors.New("invalid user ID")
	}
	return id, nil
}

func (app *application) listUsersHandler(w http.ResponseWriter, r *http.Request) {
	q, err := query.Parse(r.URL.Query())
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	users, err := app.store.Visible.Users.List(r.Context(), q)
	if err != nil {
		app.listErrorResponse(w, r, err)
		return
	}

	if err := app.jsonListResponse(w, http.StatusOK, "users", users, len(users)); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) getUserHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	user, err := app.store.Visible.Users.GetByID(r.Context(), userID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, "user", user); err != nil {
		app.internalServerError(w, r, err)
	}
}

type UpdateUserPayload struct {
	FirstName *string `json:"first_name" validate:"omitempty,max=50"`
	LastName  *string `json:"last_name" validate:"omitempty,max=50"`
	AvatarURL *string `json:"avatar_url" validate:"omitempty,url,max=512"`
}

func (app *application) updateUserHandler(w http.ResponseWriter, r *http.Request) {
	var payload UpdateUserPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	user := getUserFromContext(r)

	fields := map[string]any{}
	if payload.FirstName != nil {
		fields["first_name"] = *payload.FirstName
	}
	if payload.LastName != nil {
		fields["last_name"] = *payload.LastName
	}
	if payload.AvatarURL != nil {
		fields["avatar_url"] = *payload.AvatarURL
	}
	if len(fields) == 0 {
		app.badRequestResponse(w, r, errors.New("no updatable fields in payload"))
		return
	}

	if err := app.store.Users.UpdateProfile(r.Context(), user.ID, fields); err != nil {
		app.internalServerError(w, r, err)
		return
	}

	updated, err := app.store.Visible.Users.GetByID(r.Context(), user.ID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, "user", updated); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) deactivateUserHandler(w http.ResponseWriter, r *http.Request) {
	app.setUserInactive(w, r, true)
}

func (app *application) reactivateUserHandler(w http.ResponseWriter, r *http.Request) {
	app.setUserInactive(w, r, false)
}

// setUserInactive goes through the unscoped store so an already-hidden user
// can be brought back.
func (app *application) setUserInactive(w http.ResponseWriter, r *http.Request, inactive bool) {
	userID, err := userIDParam(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := app.store.Users.SetInactive(r.Context(), userID, inactive); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	msg := "user deactivated"
	if !inactive {
		msg = "user reactivated"
	}
	if err := app.jsonResponse(w, http.StatusOK, "message", msg); err != nil {
		app.internalServerError(w, r, err)
	}
}
