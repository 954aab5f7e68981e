package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"savor/internal/query"
)

var (
	ErrNotFound        = errors.New("resource not found")
	ErrConflict        = errors.New("resource already exists")
	ErrDuplicateEmail  = errors.New("a user with that email already exists")
	ErrDuplicateReview = errors.New("user has already reviewed this venue")

	QueryTimeoutDuration = time.Second * 5
)

type Users interface {
	Create(context.Context, *User) error
	GetByID(context.Context, int64) (*User, error)
	Activate(context.Context, string) error
	UpdateProfile(context.Context, int64, map[string]any) error
	SetRefreshToken(context.Context, int64, string) error
	SetResetToken(context.Context, int64, string, time.Time) error
	ResetPassword(context.Context, string, *User) error
	UpdatePassword(context.Context, *User) error
	SetInactive(context.Context, int64, bool) error
	Delete(context.Context, int64) error
}

type Venues interface {
	Create(context.Context, *Venue) error
	GetByID(context.Context, int64) (*Venue, error)
	Update(context.Context, int64, map[string]any) error
	SetCover(context.Context, int64, string) error
	SetRating(context.Context, int64, float64, int) error
	SetBanned(context.Context, int64, bool) error
	Delete(context.Context, int64) error
}

type Reviews interface {
	Create(context.Context, *Review) error
	GetByID(context.Context, int64) (*Review, error)
	Update(context.Context, *Review) error
	Delete(context.Context, int64, int64) (int64, error)
	List(context.Context, int64, *query.Descriptor) ([]map[string]any, error)
	Stats(context.Context, int64) (int, float64, error)
}

// VenueReader is the read family every request path must go through;
// implementations decide which venues are reachable.
type VenueReader interface {
	GetByID(context.Context, int64) (*Venue, error)
	List(context.Context, *query.Descriptor) ([]map[string]any, error)
}

type UserReader interface {
	GetByID(context.Context, int64) (*User, error)
	GetByEmail(context.Context, string) (*User, error)
	List(context.Context, *query.Descriptor) ([]map[string]any, error)
}

// Visible groups the read-scoped views that hide banned venues and inactive
// users. Handlers read through these; only moderation endpoints and the
// ratings engine touch the unscoped stores.
type Visible struct {
	Venues VenueReader
	Users  UserReader
}

type Storage struct {
	Users   Users
	Venues  Venues
	Reviews Reviews
	Visible Visible
}

func NewStorage(db *pgxpool.Pool) Storage {
	users := &UsersStore{db}
	venues := &VenuesStore{db}
	return Storage{
		Users:   users,
		Venues:  venues,
		Reviews: &ReviewStore{db},
		Visible: Visible{
			Venues: &VisibleVenues{venues},
			Users:  &VisibleUsers{users},
		},
	}
}
