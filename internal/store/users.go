package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"savor/internal/query"
)

type User struct {
	ID           int64    `json:"id"`
	FirstName    string   `json:"first_name"`
	LastName     string   `json:"last_name"`
	Email        string   `json:"email"`
	Password     password `json:"-"`
	Role         string   `json:"role"`
	AvatarURL    string   `json:"avatar_url,omitempty"`
	Activated    bool     `json:"activated"`
	Inactive     bool     `json:"-"`
	RefreshToken string   `json:"-"`
	// ActivationToken holds the sha256 hex of the token mailed to the user.
	ActivationToken string    `json:"-"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// password keeps the plaintext out of reach once hashed.
type password struct {
	text *string
	hash []byte
}

func (p *password) Set(text string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(text), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	p.text = &text
	p.hash = hash
	return nil
}

func (p *password) Compare(text string) error {
	return bcrypt.CompareHashAndPassword(p.hash, []byte(text))
}

var userColumns = query.Columns{
	"id":         {Name: "id", Kind: query.Int},
	"first_name": {Name: "first_name", Kind: query.String},
	"last_name":  {Name: "last_name", Kind: query.String},
	"email":      {Name: "email", Kind: query.String},
	"role":       {Name: "role", Kind: query.String},
	"avatar_url": {Name: "avatar_url", Kind: query.String},
	"created_at": {Name: "created_at", Kind: query.Time},
	"updated_at": {Name: "updated_at", Kind: query.Time},
}

var userColumnOrder = []string{
	"id", "first_name", "last_name", "email", "role", "avatar_url",
	"created_at", "updated_at",
}

var userUpdatable = map[string]bool{
	"first_name": true,
	"last_name":  true,
	"avatar_url": true,
}

type UsersStore struct {
	db *pgxpool.Pool
}

// Create inserts an unactivated user together with the hashed activation
// token the welcome mail carries.
func (s *UsersStore) Create(ctx context.Context, user *User) error {
	const q = `
        INSERT INTO users (first_name, last_name, email, password, role, activation_token)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id, created_at, updated_at
    `

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	err := s.db.QueryRow(ctx, q,
		user.FirstName,
		user.LastName,
		user.Email,
		user.Password.hash,
		user.Role,
		user.ActivationToken,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return err
	}
	return nil
}

// Activate flips the account on for the user holding this activation token
// hash and burns the token.
func (s *UsersStore) Activate(ctx context.Context, tokenHash string) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	tag, err := s.db.Exec(ctx,
		`UPDATE users SET activated = TRUE, activation_token = NULL, updated_at = now()
         WHERE activation_token = $1`,
		tokenHash,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *UsersStore) UpdateProfile(ctx context.Context, userID int64, fields map[string]any) error {
	sets := make([]string, 0, len(fields))
	args := make([]any, 0, len(fields)+1)
	for name, value := range fields {
		if !userUpdatable[name] {
			continue
		}
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", name, len(args)))
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, userID)

	q := fmt.Sprintf(
		"UPDATE users SET %s, updated_at = now() WHERE id = $%d",
		strings.Join(sets, ", "), len(args),
	)

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	tag, err := s.db.Exec(ctx, q, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *UsersStore) SetRefreshToken(ctx context.Context, userID int64, token string) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	_, err := s.db.Exec(ctx,
		`UPDATE users SET refresh_token = $1 WHERE id = $2`, token, userID)
	return err
}

// SetResetToken stores the hashed password-reset token and its expiry for the
// user. Any earlier outstanding token is overwritten.
func (s *UsersStore) SetResetToken(ctx context.Context, userID int64, tokenHash string, expires time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	tag, err := s.db.Exec(ctx,
		`UPDATE users SET reset_password_token = $1, reset_password_expires = $2, updated_at = now()
         WHERE id = $3`,
		tokenHash, expires, userID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ResetPassword sets a new password hash for the user holding this unexpired
// reset token hash, burns the token and revokes the refresh token so stolen
// sessions die with the old password. ErrNotFound means the token is unknown
// or expired.
func (s *UsersStore) ResetPassword(ctx context.Context, tokenHash string, user *User) error {
	const q = `
        UPDATE users
        SET password = $1, reset_password_token = NULL, reset_password_expires = NULL,
            refresh_token = '', updated_at = now()
        WHERE reset_password_token = $2 AND reset_password_expires > now()
        RETURNING id, email
    `

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	err := s.db.QueryRow(ctx, q, user.Password.hash, tokenHash).Scan(&user.ID, &user.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// UpdatePassword overwrites the password hash of the user identified by
// user.ID. Current-password verification is the caller's job.
func (s *UsersStore) UpdatePassword(ctx context.Context, user *User) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	tag, err := s.db.Exec(ctx,
		`UPDATE users SET password = $1, updated_at = now() WHERE id = $2`,
		user.Password.hash, user.ID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *UsersStore) SetInactive(ctx context.Context, userID int64, inactive bool) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	tag, err := s.db.Exec(ctx,
		`UPDATE users SET inactive = $1, updated_at = now() WHERE id = $2`,
		inactive, userID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *UsersStore) Delete(ctx context.Context, userID int64) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	tag, err := s.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByID is the unscoped lookup used by moderation and token refresh;
// request paths go through VisibleUsers instead.
func (s *UsersStore) GetByID(ctx context.Context, userID int64) (*User, error) {
	return s.getOne(ctx, "id = $1", userID, nil)
}

func (s *UsersStore) getOne(ctx context.Context, match string, arg any, scope []string) (*User, error) {
	where := append([]string{match}, scope...)
	q := `
        SELECT id, first_name, last_name, email, password, role, avatar_url,
               activated, inactive, refresh_token, created_at, updated_at
        FROM users
        WHERE ` + strings.Join(where, " AND ")

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	var user User
	err := s.db.QueryRow(ctx, q, arg).Scan(
		&user.ID,
		&user.FirstName,
		&user.LastName,
		&user.Email,
		&user.Password.hash,
		&user.Role,
		&user.AvatarURL,
		&user.Activated,
		&user.Inactive,
		&user.RefreshToken,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *UsersStore) list(ctx context.Context, q *query.Descriptor, scope []string) ([]map[string]any, error) {
	return listRows(ctx, s.db, "users", userColumns, userColumnOrder, q, scope, nil)
}
