package main

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"savor/internal/mailer"
	"savor/internal/query"
	"savor/internal/store"
)

type resetTokenWrite struct {
	hash    string
	expires time.Time
}

type stubUsers struct {
	resetTokens    map[int64]resetTokenWrite
	validResetHash string
	resetCalls     []string
	passwordWrites int
}

func (s *stubUsers) Create(context.Context, *store.User) error { return nil }
func (s *stubUsers) GetByID(context.Context, int64) (*store.User, error) {
	return nil, store.ErrNotFound
}
func (s *stubUsers) Activate(context.Context, string) error                     { return nil }
func (s *stubUsers) UpdateProfile(context.Context, int64, map[string]any) error { return nil }
func (s *stubUsers) SetRefreshToken(context.Context, int64, string) error       { return nil }
func (s *stubUsers) SetInactive(context.Context, int64, bool) error             { return nil }
func (s *stubUsers) Delete(context.Context, int64) error                        { return nil }

func (s *stubUsers) SetResetToken(_ context.Context, userID int64, hash string, expires time.Time) error {
	if s.resetTokens == nil {
		s.resetTokens = map[int64]resetTokenWrite{}
	}
	s.resetTokens[userID] = resetTokenWrite{hash, expires}
	return nil
}

func (s *stubUsers) ResetPassword(_ context.Context, tokenHash string, user *store.User) error {
	s.resetCalls = append(s.resetCalls, tokenHash)
	if tokenHash != s.validResetHash {
		return store.ErrNotFound
	}
	user.ID = 42
	return nil
}

func (s *stubUsers) UpdatePassword(context.Context, *store.User) error {
	s.passwordWrites++
	return nil
}

type stubUserReader struct {
	byEmail map[string]*store.User
}

func (s *stubUserReader) GetByID(context.Context, int64) (*store.User, error) {
	return nil, store.ErrNotFound
}

func (s *stubUserReader) GetByEmail(_ context.Context, email string) (*store.User, error) {
	if u, ok := s.byEmail[email]; ok {
		return u, nil
	}
	return nil, store.ErrNotFound
}

func (s *stubUserReader) List(context.Context, *query.Descriptor) ([]map[string]any, error) {
	return nil, nil
}

type sentMail struct {
	template string
	username string
	email    string
	data     any
}

type stubMailer struct {
	sent []sentMail
}

func (m *stubMailer) Send(templateFile, username, email string, data any) (int, error) {
	m.sent = append(m.sent, sentMail{templateFile, username, email, data})
	return http.StatusOK, nil
}

func newAuthTestApp(users *stubUsers, reader *stubUserReader, mail *stubMailer) *application {
	logger := zap.NewNop().Sugar()
	return &application{
		logger: logger,
		config: config{frontendURL: "https://savor.test"},
		mailer: mail,
		store: store.Storage{
			Users:   users,
			Visible: store.Visible{Users: reader},
		},
	}
}

func requestWithUser(t *testing.T, method, target string, body any, user *store.User) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	r := httptest.NewRequest(method, target, &buf)
	return r.WithContext(context.WithValue(r.Context(), userCtx, user))
}

func TestForgotPasswordStoresHashOfMailedToken(t *testing.T) {
	users := &stubUsers{}
	reader := &stubUserReader{byEmail: map[string]*store.User{
		"ana@example.com": {ID: 7, FirstName: "Ana", Email: "ana@example.com"},
	}}
	mail := &stubMailer{}
	app := newAuthTestApp(users, reader, mail)

	r := requestWithUser(t, http.MethodPost, "/v1/auth/forgot-password",
		ForgotPasswordPayload{Email: "ana@example.com"}, nil)
	rec := httptest.NewRecorder()

	app.forgotPasswordHandler(rec, r)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, mail.sent, 1)
	assert.Equal(t, mailer.ResetPasswordTemplate, mail.sent[0].template)
	assert.Equal(t, "ana@example.com", mail.sent[0].email)

	// The mail carries the plain token; only its hash may be stored.
	resetURL := reflect.ValueOf(mail.sent[0].data).FieldByName("ResetURL").String()
	parsed, err := url.Parse(resetURL)
	require.NoError(t, err)
	plainToken := parsed.Query().Get("token")
	require.NotEmpty(t, plainToken)

	hash := sha256.Sum256([]byte(plainToken))
	write, ok := users.resetTokens[7]
	require.True(t, ok)
	assert.Equal(t, hex.EncodeToString(hash[:]), write.hash)
	assert.WithinDuration(t, time.Now().Add(resetTokenExp), write.expires, time.Minute)
}

func TestForgotPasswordUnknownEmailIsNotFound(t *testing.T) {
	users := &stubUsers{}
	mail := &stubMailer{}
	app := newAuthTestApp(users, &stubUserReader{}, mail)

	r := requestWithUser(t, http.MethodPost, "/v1/auth/forgot-password",
		ForgotPasswordPayload{Email: "ghost@example.com"}, nil)
	rec := httptest.NewRecorder()

	app.forgotPasswordHandler(rec, r)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, mail.sent)
	assert.Empty(t, users.resetTokens)
}

func TestResetPasswordWithValidToken(t *testing.T) {
	plainToken := "one-time-reset-token"
	hash := sha256.Sum256([]byte(plainToken))

	users := &stubUsers{validResetHash: hex.EncodeToString(hash[:])}
	app := newAuthTestApp(users, &stubUserReader{}, &stubMailer{})

	r := authedRequest(t, http.MethodPut, "/v1/auth/reset-password/"+plainToken,
		ResetPasswordPayload{Password: "brand-new-pw"},
		map[string]string{"resetToken": plainToken})
	rec := httptest.NewRecorder()

	app.resetPasswordHandler(rec, r)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, users.resetCalls, 1)
	assert.Equal(t, hex.EncodeToString(hash[:]), users.resetCalls[0])
}

func TestResetPasswordRejectsUnknownOrExpiredToken(t *testing.T) {
	users := &stubUsers{validResetHash: "something-else"}
	app := newAuthTestApp(users, &stubUserReader{}, &stubMailer{})

	r := authedRequest(t, http.MethodPut, "/v1/auth/reset-password/stale",
		ResetPasswordPayload{Password: "brand-new-pw"},
		map[string]string{"resetToken": "stale"})
	rec := httptest.NewRecorder()

	app.resetPasswordHandler(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "error", env.Status)
}

func TestUpdatePasswordVerifiesCurrent(t *testing.T) {
	user := &store.User{ID: 11, Role: "user"}
	require.NoError(t, user.Password.Set("old-password"))

	users := &stubUsers{}
	app := newAuthTestApp(users, &stubUserReader{}, &stubMailer{})

	r := requestWithUser(t, http.MethodPatch, "/v1/auth/update-password",
		UpdatePasswordPayload{CurrentPassword: "wrong-password", NewPassword: "new-password"}, user)
	rec := httptest.NewRecorder()

	app.updatePasswordHandler(rec, r)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, users.passwordWrites)
}

func TestUpdatePasswordWithCurrent(t *testing.T) {
	user := &store.User{ID: 11, Role: "user"}
	require.NoError(t, user.Password.Set("old-password"))

	users := &stubUsers{}
	app := newAuthTestApp(users, &stubUserReader{}, &stubMailer{})

	r := requestWithUser(t, http.MethodPatch, "/v1/auth/update-password",
		UpdatePasswordPayload{CurrentPassword: "old-password", NewPassword: "new-password"}, user)
	rec := httptest.NewRecorder()

	app.updatePasswordHandler(rec, r)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, users.passwordWrites)
}
