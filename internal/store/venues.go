package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"savor/internal/query"
)

type Venue struct {
	ID               int64     `json:"id"`
	OwnerID          int64     `json:"owner_id"`
	Name             string    `json:"name"`
	Description      string    `json:"description"`
	Affordability    string    `json:"affordability"` // affordable | regular | expensive
	Address          string    `json:"address"`
	FormattedAddress string    `json:"formatted_address,omitempty"`
	Lat              float64   `json:"lat"`
	Lng              float64   `json:"lng"`
	Phone            string    `json:"phone"`
	Email            string    `json:"email"`
	CoverURL         string    `json:"cover_url,omitempty"`
	OpenDineIn       bool      `json:"open_dine_in"`
	VeganFriendly    bool      `json:"vegan_friendly"`
	AverageRating    float64   `json:"average_rating"`
	RatingsCount     int       `json:"ratings_count"`
	Banned           bool      `json:"-"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// venueColumns is the external-name allow-list for filter, sort and
// projection. The banned flag is deliberately absent so it can be neither
// selected nor filtered on from a request.
var venueColumns = query.Columns{
	"id":                {Name: "id", Kind: query.Int},
	"owner_id":          {Name: "owner_id", Kind: query.Int},
	"name":              {Name: "name", Kind: query.String},
	"description":       {Name: "description", Kind: query.String},
	"affordability":     {Name: "affordability", Kind: query.String},
	"address":           {Name: "address", Kind: query.String},
	"formatted_address": {Name: "formatted_address", Kind: query.String},
	"lat":               {Name: "lat", Kind: query.Float},
	"lng":               {Name: "lng", Kind: query.Float},
	"phone":             {Name: "phone", Kind: query.String},
	"email":             {Name: "email", Kind: query.String},
	"cover_url":         {Name: "cover_url", Kind: query.String},
	"open_dine_in":      {Name: "open_dine_in", Kind: query.Bool},
	"vegan_friendly":    {Name: "vegan_friendly", Kind: query.Bool},
	"average_rating":    {Name: "average_rating", Kind: query.Float},
	"ratings_count":     {Name: "ratings_count", Kind: query.Int},
	"created_at":        {Name: "created_at", Kind: query.Time},
	"updated_at":        {Name: "updated_at", Kind: query.Time},
}

var venueColumnOrder = []string{
	"id", "owner_id", "name", "description", "affordability", "address",
	"formatted_address", "lat", "lng", "phone", "email", "cover_url",
	"open_dine_in", "vegan_friendly", "average_rating", "ratings_count",
	"created_at", "updated_at",
}

// venueUpdatable lists the fields an update payload may change. The aggregate
// pair and the banned flag are excluded here: they are owned by the ratings
// engine and the moderation endpoints, and are silently dropped if a payload
// sneaks them in.
var venueUpdatable = map[string]bool{
	"name":              true,
	"description":       true,
	"affordability":     true,
	"address":           true,
	"formatted_address": true,
	"lat":               true,
	"lng":               true,
	"phone":             true,
	"email":             true,
	"open_dine_in":      true,
	"vegan_friendly":    true,
}

type VenuesStore struct {
	db *pgxpool.Pool
}

func (s *VenuesStore) Create(ctx context.Context, venue *Venue) error {
	const q = `
        INSERT INTO venues (
            owner_id, name, description, affordability, address,
            formatted_address, lat, lng, phone, email,
            open_dine_in, vegan_friendly
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
        RETURNING id, average_rating, ratings_count, created_at, updated_at
    `

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	err := s.db.QueryRow(ctx, q,
		venue.OwnerID,
		venue.Name,
		venue.Description,
		venue.Affordability,
		venue.Address,
		venue.FormattedAddress,
		venue.Lat,
		venue.Lng,
		venue.Phone,
		venue.Email,
		venue.OpenDineIn,
		venue.VeganFriendly,
	).Scan(&venue.ID, &venue.AverageRating, &venue.RatingsCount, &venue.CreatedAt, &venue.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return err
	}
	return nil
}

// Update applies a partial update from a fields map, keeping only keys in the
// updatable allow-list.
func (s *VenuesStore) Update(ctx context.Context, venueID int64, fields map[string]any) error {
	sets := make([]string, 0, len(fields))
	args := make([]any, 0, len(fields)+1)
	for name, value := range fields {
		if !venueUpdatable[name] {
			continue
		}
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", name, len(args)))
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, venueID)

	q := fmt.Sprintf(
		"UPDATE venues SET %s, updated_at = now() WHERE id = $%d",
		strings.Join(sets, ", "), len(args),
	)

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	tag, err := s.db.Exec(ctx, q, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *VenuesStore) SetCover(ctx context.Context, venueID int64, url string) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	tag, err := s.db.Exec(ctx,
		`UPDATE venues SET cover_url = $1, updated_at = now() WHERE id = $2`,
		url, venueID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetRating overwrites the denormalized aggregate pair. It is called only by
// the ratings engine and intentionally skips the visibility scope: a venue
// banned mid-flight must still receive the write.
func (s *VenuesStore) SetRating(ctx context.Context, venueID int64, average float64, count int) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	tag, err := s.db.Exec(ctx,
		`UPDATE venues SET average_rating = $1, ratings_count = $2 WHERE id = $3`,
		average, count, venueID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *VenuesStore) SetBanned(ctx context.Context, venueID int64, banned bool) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	tag, err := s.db.Exec(ctx,
		`UPDATE venues SET banned = $1, updated_at = now() WHERE id = $2`,
		banned, venueID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *VenuesStore) Delete(ctx context.Context, venueID int64) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	tag, err := s.db.Exec(ctx, `DELETE FROM venues WHERE id = $1`, venueID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByID is the unscoped lookup used by moderation; request paths go through
// VisibleVenues instead.
func (s *VenuesStore) GetByID(ctx context.Context, venueID int64) (*Venue, error) {
	return s.getByID(ctx, venueID, nil)
}

func (s *VenuesStore) getByID(ctx context.Context, venueID int64, scope []string) (*Venue, error) {
	where := append([]string{"id = $1"}, scope...)
	q := `
        SELECT id, owner_id, name, description, affordability, address,
               formatted_address, lat, lng, phone, email, cover_url,
               open_dine_in, vegan_friendly, average_rating, ratings_count,
               banned, created_at, updated_at
        FROM venues
        WHERE ` + strings.Join(where, " AND ")

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	var venue Venue
	err := s.db.QueryRow(ctx, q, venueID).Scan(
		&venue.ID,
		&venue.OwnerID,
		&venue.Name,
		&venue.Description,
		&venue.Affordability,
		&venue.Address,
		&venue.FormattedAddress,
		&venue.Lat,
		&venue.Lng,
		&venue.Phone,
		&venue.Email,
		&venue.CoverURL,
		&venue.OpenDineIn,
		&venue.VeganFriendly,
		&venue.AverageRating,
		&venue.RatingsCount,
		&venue.Banned,
		&venue.CreatedAt,
		&venue.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &venue, nil
}

func (s *VenuesStore) list(ctx context.Context, q *query.Descriptor, scope []string) ([]map[string]any, error) {
	return listRows(ctx, s.db, "venues", venueColumns, venueColumnOrder, q, scope, nil)
}
