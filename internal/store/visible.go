package store

import (
	"context"

	"savor/internal/query"
)

// Visibility scope predicates. They are prepended to the WHERE clause of
// every read the decorators below perform, including exact-id lookups: a
// hidden entity must be indistinguishable from a missing one.
const (
	venueVisible = "banned = FALSE"
	userVisible  = "inactive = FALSE"
)

// VisibleVenues decorates VenuesStore with the administrative visibility
// filter. All request read paths use this type; the base store stays
// reachable for moderation and the ratings engine only.
type VisibleVenues struct {
	base *VenuesStore
}

func (v *VisibleVenues) GetByID(ctx context.Context, venueID int64) (*Venue, error) {
	return v.base.getByID(ctx, venueID, []string{venueVisible})
}

func (v *VisibleVenues) List(ctx context.Context, q *query.Descriptor) ([]map[string]any, error) {
	return v.base.list(ctx, q, []string{venueVisible})
}

// VisibleUsers hides deactivated accounts the same way. Login resolves the
// account through here, so a deactivated user cannot authenticate either.
type VisibleUsers struct {
	base *UsersStore
}

func (v *VisibleUsers) GetByID(ctx context.Context, userID int64) (*User, error) {
	return v.base.getOne(ctx, "id = $1", userID, []string{userVisible})
}

func (v *VisibleUsers) GetByEmail(ctx context.Context, email string) (*User, error) {
	return v.base.getOne(ctx, "email = $1", email, []string{userVisible})
}

func (v *VisibleUsers) List(ctx context.Context, q *query.Descriptor) ([]map[string]any, error) {
	return v.base.list(ctx, q, []string{userVisible})
}
