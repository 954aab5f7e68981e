// Package ratings keeps the denormalized (average_rating, ratings_count)
// pair on a venue consistent with its live set of reviews.
package ratings

import (
	"context"

	"go.uber.org/zap"
)

// DefaultAverage is written when a venue has no reviews left, so a fresh or
// fully un-reviewed venue ranks neutrally instead of at zero.
const DefaultAverage = 4.5

// ReviewStats reports the aggregate over a venue's current reviews.
type ReviewStats interface {
	Stats(ctx context.Context, venueID int64) (count int, average float64, err error)
}

// RatingWriter persists the recomputed pair onto the venue. The write must
// not be visibility-scoped: a venue banned mid-request still gets the update.
type RatingWriter interface {
	SetRating(ctx context.Context, venueID int64, average float64, count int) error
}

// Engine recomputes a venue's aggregate from scratch after every review
// mutation. The recompute is synchronous with the triggering request, so the
// response already reflects it.
//
// Two requests recomputing the same venue interleave as last-write-wins;
// there is no per-venue serialization. Each written pair is internally
// consistent with the review set at the moment its aggregate ran.
type Engine struct {
	reviews ReviewStats
	venues  RatingWriter
	logger  *zap.SugaredLogger
}

func NewEngine(reviews ReviewStats, venues RatingWriter, logger *zap.SugaredLogger) *Engine {
	return &Engine{reviews: reviews, venues: venues, logger: logger}
}

// Recompute rebuilds the aggregate for one venue. Failures are logged and
// swallowed: the review mutation that triggered the recompute has already
// committed and its success must not depend on this write.
func (e *Engine) Recompute(ctx context.Context, venueID int64) {
	count, average, err := e.reviews.Stats(ctx, venueID)
	if err != nil {
		e.logger.Errorw("rating recompute: reading review stats", "venue_id", venueID, "error", err)
		return
	}

	if count == 0 {
		average = DefaultAverage
	}

	if err := e.venues.SetRating(ctx, venueID, average, count); err != nil {
		e.logger.Errorw("rating recompute: writing aggregate", "venue_id", venueID, "error", err)
	}
}
