package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"savor/internal/query"
)

type Review struct {
	ID        int64     `json:"id"`
	VenueID   int64     `json:"venue_id"`
	UserID    int64     `json:"user_id"`
	Rating    int       `json:"rating"` // 1-5
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

var reviewColumns = query.Columns{
	"id":         {Name: "id", Kind: query.Int},
	"venue_id":   {Name: "venue_id", Kind: query.Int},
	"user_id":    {Name: "user_id", Kind: query.Int},
	"rating":     {Name: "rating", Kind: query.Int},
	"comment":    {Name: "comment", Kind: query.String},
	"created_at": {Name: "created_at", Kind: query.Time},
	"updated_at": {Name: "updated_at", Kind: query.Time},
}

var reviewColumnOrder = []string{
	"id", "venue_id", "user_id", "rating", "comment", "created_at", "updated_at",
}

type ReviewStore struct {
	db *pgxpool.Pool
}

// Create inserts a review. The reviews table carries a unique
// (venue_id, user_id) index, so a second review by the same author for the
// same venue surfaces as ErrDuplicateReview.
func (s *ReviewStore) Create(ctx context.Context, review *Review) error {
	const q = `
        INSERT INTO reviews (venue_id, user_id, rating, comment)
        VALUES ($1, $2, $3, $4)
        RETURNING id, created_at, updated_at
    `

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	err := s.db.QueryRow(ctx, q,
		review.VenueID,
		review.UserID,
		review.Rating,
		review.Comment,
	).Scan(&review.ID, &review.CreatedAt, &review.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateReview
		}
		return err
	}
	return nil
}

func (s *ReviewStore) GetByID(ctx context.Context, reviewID int64) (*Review, error) {
	const q = `
        SELECT id, venue_id, user_id, rating, comment, created_at, updated_at
        FROM reviews
        WHERE id = $1
    `

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	var review Review
	err := s.db.QueryRow(ctx, q, reviewID).Scan(
		&review.ID,
		&review.VenueID,
		&review.UserID,
		&review.Rating,
		&review.Comment,
		&review.CreatedAt,
		&review.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &review, nil
}

// Update rewrites rating and comment on an existing review.
func (s *ReviewStore) Update(ctx context.Context, review *Review) error {
	const q = `
        UPDATE reviews
        SET rating = $1, comment = $2, updated_at = now()
        WHERE id = $3
        RETURNING venue_id, updated_at
    `

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	err := s.db.QueryRow(ctx, q, review.Rating, review.Comment, review.ID).
		Scan(&review.VenueID, &review.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// Delete removes the author's review and reports the parent venue id so the
// caller can trigger the aggregate recompute.
func (s *ReviewStore) Delete(ctx context.Context, reviewID, userID int64) (int64, error) {
	const q = `
        DELETE FROM reviews
        WHERE id = $1 AND user_id = $2
        RETURNING venue_id
    `

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	var venueID int64
	err := s.db.QueryRow(ctx, q, reviewID, userID).Scan(&venueID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return venueID, nil
}

// List runs a translator-driven listing, optionally scoped to one venue
// (venueID 0 lists across venues).
func (s *ReviewStore) List(ctx context.Context, venueID int64, q *query.Descriptor) ([]map[string]any, error) {
	var scope []string
	var scopeArgs []any
	if venueID != 0 {
		scope = []string{"venue_id = $1"}
		scopeArgs = []any{venueID}
	}
	return listRows(ctx, s.db, "reviews", reviewColumns, reviewColumnOrder, q, scope, scopeArgs)
}

// Stats aggregates the live review set for one venue. The zero-review case
// reports count 0 and average 0; the ratings engine substitutes the sentinel.
func (s *ReviewStore) Stats(ctx context.Context, venueID int64) (int, float64, error) {
	const q = `
        SELECT COUNT(id), COALESCE(AVG(rating), 0)
        FROM reviews
        WHERE venue_id = $1
    `

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	var count int
	var average float64
	err := s.db.QueryRow(ctx, q, venueID).Scan(&count, &average)
	return count, average, err
}
