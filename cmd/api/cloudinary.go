package main

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"

	"savor/internal/store"
)

const maxCoverUploadBytes = 5 << 20 // 5mb

// uploadVenueCoverHandler accepts a multipart "cover" file, pushes it to
// Cloudinary under a venue-derived public id and stores the resulting URL.
func (app *application) uploadVenueCoverHandler(w http.ResponseWriter, r *http.Request) {
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

	if err := r.ParseMultipartForm(maxCoverUploadBytes); err != nil {
		app.badRequestResponse(w, r, fmt.Errorf("failed to parse form: %w", err))
		return
	}

	file, _, err := r.FormFile("cover")
	if err != nil {
		app.badRequestResponse(w, r, errors.New("cover file is required"))
		return
	}
	defer file.Close()

	resp, err := app.cld.Upload.Upload(r.Context(), file, uploader.UploadParams{
		Folder:    "venues",
		PublicID:  fmt.Sprintf("venue_%d_cover", venueID),
		Overwrite: api.Bool(true),
	})
	if err != nil {
		app.internalServerError(w, r, fmt.Errorf("cloudinary upload: %w", err))
		return
	}

	if err := app.store.Venues.SetCover(r.Context(), venueID, resp.SecureURL); err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, "cover_url", resp.SecureURL); err != nil {
		app.internalServerError(w, r, err)
	}
}
