package main

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"savor/internal/query"
	"savor/internal/store"
)

func venueIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "venueID"), 10, 64)
	if err != nil || id < 1 {
		return 0, errors.New("invalid venue ID")
	}
	return id, nil
}

// listVenuesHandler serves GET /venues. The raw query parameters run through
// the translator and the visible scope, so banned venues never surface no
// matter what the request filters on.
func (app *application) listVenuesHandler(w http.ResponseWriter, r *http.Request) {
	q, err := query.Parse(r.URL.Query())
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	venues, err := app.store.Visible.Venues.List(r.Context(), q)
	if err != nil {
		app.listErrorResponse(w, r, err)
		return
	}

	if err := app.jsonListResponse(w, http.StatusOK, "venues", venues, len(venues)); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) getVenueHandler(w http.ResponseWriter, r *http.Request) {
	venueID, err := venueIDParam(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	venue, err := app.store.Visible.Venues.GetByID(r.Context(), venueID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, "venue", venue); err != nil {
		app.internalServerError(w, r, err)
	}
}

type CreateVenuePayload struct {
	Name          string `json:"name" validate:"required,max=100"`
	Description   string `json:"description" validate:"required,min=50,max=500"`
	Affordability string `json:"affordability" validate:"required,oneof=affordable regular expensive"`
	Address       string `json:"address" validate:"required,max=255"`
	Phone         string `json:"phone" validate:"required,max=20"`
	Email         string `json:"email" validate:"required,email,max=255"`
	OpenDineIn    bool   `json:"open_dine_in"`
	VeganFriendly bool   `json:"vegan_friendly"`
}

func (app *application) createVenueHandler(w http.ResponseWriter, r *http.Request) {
	var payload CreateVenuePayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	user := getUserFromContext(r)

	venue := &store.Venue{
		OwnerID:       user.ID,
		Name:          payload.Name,
		Description:   payload.Description,
		Affordability: payload.Affordability,
		Address:       payload.Address,
		Phone:         payload.Phone,
		Email:         payload.Email,
		OpenDineIn:    payload.OpenDineIn,
		VeganFriendly: payload.VeganFriendly,
	}

	// Geocoding failure is not fatal: the venue keeps its raw address.
	if loc, err := app.geocoder.Resolve(r.Context(), payload.Address); err != nil {
		app.logger.Warnw("geocoding address failed", "address", payload.Address, "error", err)
	} else {
		venue.FormattedAddress = loc.FormattedAddress
		venue.Lat = loc.Lat
		venue.Lng = loc.Lng
	}

	if err := app.store.Venues.Create(r.Context(), venue); err != nil {
		switch {
		case errors.Is(err, store.ErrConflict):
			app.conflictResponse(w, r, errors.New("a venue with that name already exists"))
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	if err := app.jsonResponse(w, http.StatusCreated, "venue", venue); err != nil {
		app.internalServerError(w, r, err)
	}
}

type UpdateVenuePayload struct {
	Name          *string `json:"name" validate:"omitempty,max=100"`
	Description   *string `json:"description" validate:"omitempty,min=50,max=500"`
	Affordability *string `json:"affordability" validate:"omitempty,oneof=affordable regular expensive"`
	Address       *string `json:"address" validate:"omitempty,max=255"`
	Phone         *string `json:"phone" validate:"omitempty,max=20"`
	Email         *string `json:"email" validate:"omitempty,email,max=255"`
	OpenDineIn    *bool   `json:"open_dine_in"`
	VeganFriendly *bool   `json:"vegan_friendly"`
}

func (app *application) updateVenueHandler(w http.ResponseWriter, r *http.Request) {
	venueID, err := venueIDParam(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	var payload UpdateVenuePayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	venue, err := app.store.Visible.Venues.GetByID(r.Context(), venueID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	user := getUserFromContext(r)
	if venue.OwnerID != user.ID && user.Role != "admin" {
		app.forbiddenResponse(w, r)
		return
	}

	fields := map[string]any{}
	if payload.Name != nil {
		fields["name"] = *payload.Name
	}
	if payload.Description != nil {
		fields["description"] = *payload.Description
	}
	if payload.Affordability != nil {
		fields["affordability"] = *payload.Affordability
	}
	if payload.Phone != nil {
		fields["phone"] = *payload.Phone
	}
	if payload.Email != nil {
		fields["email"] = *payload.Email
	}
	if payload.OpenDineIn != nil {
		fields["open_dine_in"] = *payload.OpenDineIn
	}
	if payload.VeganFriendly != nil {
		fields["vegan_friendly"] = *payload.VeganFriendly
	}
	if payload.Address != nil {
		fields["address"] = *payload.Address
		if loc, err := app.geocoder.Resolve(r.Context(), *payload.Address); err != nil {
			app.logger.Warnw("geocoding address failed", "address", *payload.Address, "error", err)
		} else {
			fields["formatted_address"] = loc.FormattedAddress
			fields["lat"] = loc.Lat
			fields["lng"] = loc.Lng
		}
	}

	if err := app.store.Venues.Update(r.Context(), venueID, fields); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, err)
		case errors.Is(err, store.ErrConflict):
			app.conflictResponse(w, r, errors.New("a venue with that name already exists"))
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	venue, err = app.store.Visible.Venues.GetByID(r.Context(), venueID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, "venue", venue); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) deleteVenueHandler(w http.ResponseWriter, r *http.Request) {
	venueID, err := venueIDParam(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	venue, err := app.store.Visible.Venues.GetByID(r.Context(), venueID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	user := getUserFromContext(r)
	if venue.OwnerID != user.ID && user.Role != "admin" {
		app.forbiddenResponse(w, r)
		return
	}

	if err := app.store.Venues.Delete(r.Context(), venueID); err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, "message", "venue deleted"); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) banVenueHandler(w http.ResponseWriter, r *http.Request) {
	app.setVenueBanned(w, r, true)
}

func (app *application) unbanVenueHandler(w http.ResponseWriter, r *http.Request) {
	app.setVenueBanned(w, r, false)
}

// setVenueBanned flips the visibility flag through the unscoped store: a
// banned venue must stay reachable for the admin who wants to unban it.
func (app *application) setVenueBanned(w http.ResponseWriter, r *http.Request, banned bool) {
	venueID, err := venueIDParam(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := app.store.Venues.SetBanned(r.Context(), venueID, banned); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	msg := "venue banned"
	if !banned {
		msg = "venue unbanned"
	}
	if err := app.jsonResponse(w, http.StatusOK, "message", msg); err != nil {
		app.internalServerError(w, r, err)
	}
}
