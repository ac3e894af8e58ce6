package auth

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"precatorios/internal/analytics"
	"precatorios/internal/core"
	"precatorios/internal/storage"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newService(t *testing.T) (*Service, *clock) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	c := &clock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc, err := NewService(repo, "test-secret-test-secret", time.Hour, WithBcryptCost(bcrypt.MinCost), WithClock(c.now))
	require.NoError(t, err)
	return svc, c
}

func TestNewServiceValidation(t *testing.T) {
	_, err := NewService(nil, "", time.Hour)
	assert.Error(t, err)
	_, err = NewService(nil, "secret", 0)
	assert.Error(t, err)
}

func TestSetupOnlyOnce(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	first, err := svc.IsFirstUser(ctx)
	require.NoError(t, err)
	assert.True(t, first)

	admin, err := svc.Setup(ctx, "Admin@Example.com", "Ana  Admin", "supersecret")
	require.NoError(t, err)
	assert.True(t, admin.IsAdmin())
	assert.Equal(t, "admin@example.com", admin.Email)
	assert.Equal(t, "Ana Admin", admin.FullName)

	first, _ = svc.IsFirstUser(ctx)
	assert.False(t, first)

	_, err = svc.Setup(ctx, "other@example.com", "Other", "supersecret")
	assert.ErrorIs(t, err, ErrSetupDone)
}

func TestSetupValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	_, err := svc.Setup(ctx, "bad", "Ana", "supersecret")
	assert.ErrorIs(t, err, core.ErrInvalidEmail)
	_, err = svc.Setup(ctx, "ana@example.com", "  ", "supersecret")
	assert.ErrorIs(t, err, ErrEmptyName)
	_, err = svc.Setup(ctx, "ana@example.com", "Ana", "short")
	assert.ErrorIs(t, err, ErrWeakPassword)
}

func TestSignInAuthenticateSignOut(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	_, err := svc.Setup(ctx, "ana@example.com", "Ana", "supersecret")
	require.NoError(t, err)

	_, _, err = svc.SignIn(ctx, "ana@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = svc.SignIn(ctx, "nobody@example.com", "supersecret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	tok, p, err := svc.SignIn(ctx, " ANA@example.com", "supersecret")
	require.NoError(t, err)
	assert.Equal(t, "Ana", p.FullName)
	assert.NotEmpty(t, tok.AccessToken)

	got, sid, err := svc.Authenticate(ctx, "Bearer "+tok.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
	assert.Equal(t, tok.SessionID, sid)

	require.NoError(t, svc.SignOut(ctx, sid))
	_, _, err = svc.Authenticate(ctx, tok.AccessToken)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestAuthenticateRejects(t *testing.T) {
	ctx := context.Background()
	svc, c := newService(t)
	_, err := svc.Setup(ctx, "ana@example.com", "Ana", "supersecret")
	require.NoError(t, err)
	tok, _, err := svc.SignIn(ctx, "ana@example.com", "supersecret")
	require.NoError(t, err)

	_, _, err = svc.Authenticate(ctx, "")
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, _, err = svc.Authenticate(ctx, "not-a-jwt")
	assert.ErrorIs(t, err, ErrUnauthorized)

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "x", "jti": tok.SessionID, "exp": c.t.Add(time.Hour).Unix(),
	}).SignedString([]byte("another-secret"))
	require.NoError(t, err)
	_, _, err = svc.Authenticate(ctx, forged)
	assert.ErrorIs(t, err, ErrUnauthorized)

	c.t = c.t.Add(2 * time.Hour)
	_, _, err = svc.Authenticate(ctx, tok.AccessToken)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestUserManagementRequiresAdmin(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	admin, err := svc.Setup(ctx, "ana@example.com", "Ana", "supersecret")
	require.NoError(t, err)

	bia, err := svc.CreateUser(ctx, admin, "bia@example.com", "Bia Souza", "supersecret", core.RoleUser)
	require.NoError(t, err)
	assert.False(t, bia.IsAdmin())

	_, err = svc.CreateUser(ctx, admin, "bia@example.com", "Bia", "supersecret", core.RoleUser)
	assert.ErrorIs(t, err, ErrUserExists)
	_, err = svc.CreateUser(ctx, admin, "c@example.com", "C", "supersecret", core.Role("root"))
	assert.ErrorIs(t, err, core.ErrInvalidRole)

	_, err = svc.CreateUser(ctx, bia, "x@example.com", "X", "supersecret", core.RoleUser)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.ListUsers(ctx, bia)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.ErrorIs(t, svc.DeleteUser(ctx, bia, admin.ID), ErrForbidden)

	users, err := svc.ListUsers(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, users, 2)

	assert.ErrorIs(t, svc.DeleteUser(ctx, admin, admin.ID), ErrSelfDelete)
	require.NoError(t, svc.DeleteUser(ctx, admin, bia.ID))
	assert.ErrorIs(t, svc.DeleteUser(ctx, admin, bia.ID), ErrUserNotFound)
}

func TestViewerFor(t *testing.T) {
	assert.Equal(t, analytics.Viewer{All: true}, ViewerFor(core.Profile{FullName: "Ana", Roles: []core.Role{core.RoleAdmin}}))
	assert.Equal(t, analytics.Viewer{Assignee: "Bia"}, ViewerFor(core.Profile{FullName: "Bia", Roles: []core.Role{core.RoleUser}}))
}

func TestPurgeExpiredSessions(t *testing.T) {
	ctx := context.Background()
	svc, c := newService(t)
	_, err := svc.Setup(ctx, "ana@example.com", "Ana", "supersecret")
	require.NoError(t, err)
	_, _, err = svc.SignIn(ctx, "ana@example.com", "supersecret")
	require.NoError(t, err)

	n, err := svc.PurgeExpiredSessions(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	c.t = c.t.Add(2 * time.Hour)
	n, err = svc.PurgeExpiredSessions(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}
