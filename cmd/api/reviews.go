package main

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"savor/internal/query"
	"savor/internal/store"
)

type CreateReviewPayload struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"required,max=500"`
}

// createVenueReviewHandler runs the mutation pipeline for a new review:
// resolve the parent through the visible scope, persist the review, then
// recompute the venue's aggregate before responding.
func (app *application) createVenueReviewHandler(w http.ResponseWriter, r *http.Request) {
	venueID, err := venueIDParam(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	var payload CreateReviewPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	ctx := r.Context()

	// A hidden venue is an unknown parent; no review, no recompute.
	if _, err := app.store.Visible.Venues.GetByID(ctx, venueID); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	user := getUserFromContext(r)

	review := &store.Review{
		VenueID: venueID,
		UserID:  user.ID,
		Rating:  payload.Rating,
		Comment: payload.Comment,
	}

	if err := app.store.Reviews.Create(ctx, review); err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicateReview):
			app.conflictResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	app.ratings.Recompute(ctx, venueID)

	if err := app.jsonResponse(w, http.StatusCreated, "review", review); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) listVenueReviewsHandler(w http.ResponseWriter, r *http.Request) {
	venueID, err := venueIDParam(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	ctx := r.Context()

	// Reviews of a hidden venue are unreachable along with their parent.
	if _, err := app.store.Visible.Venues.GetByID(ctx, venueID); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	q, err := query.Parse(r.URL.Query())
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	reviews, err := app.store.Reviews.List(ctx, venueID, q)
	if err != nil {
		app.listErrorResponse(w, r, err)
		return
	}

	if err := app.jsonListResponse(w, http.StatusOK, "reviews", reviews, len(reviews)); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) listReviewsHandler(w http.ResponseWriter, r *http.Request) {
	q, err := query.Parse(r.URL.Query())
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	reviews, err := app.store.Reviews.List(r.Context(), 0, q)
	if err != nil {
		app.listErrorResponse(w, r, err)
		return
	}

	if err := app.jsonListResponse(w, http.StatusOK, "reviews", reviews, len(reviews)); err != nil {
		app.internalServerError(w, r, err)
	}
}

// getReviewHandler looks up a single review. The parent venue is resolved
// through the visible scope first, so reviews of a hidden venue stay
// unreachable by direct id too.
func (app *application) getReviewHandler(w http.ResponseWriter, r *http.Request) {
	reviewID, err := strconv.ParseInt(chi.URLParam(r, "reviewID"), 10, 64)
	if err != nil {
		app.badRequestResponse(w, r, errors.New("invalid review ID"))
		return
	}

	ctx := r.Context()

	review, err := app.store.Reviews.GetByID(ctx, reviewID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	if _, err := app.store.Visible.Venues.GetByID(ctx, review.VenueID); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, "review", review); err != nil {
		app.internalServerError(w, r, err)
	}
}

type UpdateReviewPayload struct {
	Rating  *int    `json:"rating" validate:"omitempty,min=1,max=5"`
	Comment *string `json:"comment" validate:"omitempty,max=500"`
}

func (app *application) updateReviewHandler(w http.ResponseWriter, r *http.Request) {
	reviewID, err := strconv.ParseInt(chi.URLParam(r, "reviewID"), 10, 64)
	if err != nil {
		app.badRequestResponse(w, r, errors.New("invalid review ID"))
		return
	}

	var payload UpdateReviewPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	ctx := r.Context()

	review, err := app.store.Reviews.GetByID(ctx, reviewID)
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
	if review.UserID != user.ID {
		app.forbiddenResponse(w, r)
		return
	}

	if payload.Rating != nil {
		review.Rating = *payload.Rating
	}
	if payload.Comment != nil {
		review.Comment = *payload.Comment
	}

	if err := app.store.Reviews.Update(ctx, review); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	app.ratings.Recompute(ctx, review.VenueID)

	if err := app.jsonResponse(w, http.StatusOK, "review", review); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) deleteReviewHandler(w http.ResponseWriter, r *http.Request) {
	reviewID, err := strconv.ParseInt(chi.URLParam(r, "reviewID"), 10, 64)
	if err != nil {
		app.badRequestResponse(w, r, errors.New("invalid review ID"))
		return
	}

	ctx := r.Context()
	user := getUserFromContext(r)

	venueID, err := app.store.Reviews.Delete(ctx, reviewID, user.ID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	app.ratings.Recompute(ctx, venueID)

	if err := app.jsonResponse(w, http.StatusOK, "message", "review deleted"); err != nil {
		app.internalServerError(w, r, err)
	}
}
