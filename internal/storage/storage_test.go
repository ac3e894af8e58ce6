package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"precatorios/internal/core"
)

func newRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestMigrationsApplied(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.db")
	repo, err := NewSQLiteRepository(path)
	require.NoError(t, err)
	defer repo.Close()

	v, dirty, err := MigrationVersion(DSN(path))
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(2), v)

	// A second run is a no-op.
	require.NoError(t, RunMigrations(DSN(path)))
}

func TestSnapshotStore(t *testing.T) {
	ctx := context.Background()
	store := NewSnapshotStore(newRepo(t))

	_, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	stored, err := store.Add(ctx, "k", []byte(`{"count":1}`))
	require.NoError(t, err)
	assert.True(t, stored)
	stored, err = store.Add(ctx, "k", []byte(`{"count":2}`))
	require.NoError(t, err)
	assert.False(t, stored, "an existing snapshot must not be replaced")
	v, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `{"count":1}`, string(v))

	require.NoError(t, store.Delete(ctx, "k"))
	_, ok, _ = store.Get(ctx, "k")
	assert.False(t, ok)

	mustAdd(t, store, "a", "1")
	mustAdd(t, store, "b", "2")
	require.NoError(t, store.Clear(ctx))
	_, ok, _ = store.Get(ctx, "a")
	assert.False(t, ok)
}

func TestSnapshotStorePrune(t *testing.T) {
	ctx := context.Background()
	store := NewSnapshotStore(newRepo(t))
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	store.now = func() time.Time { return base }
	mustAdd(t, store, "old", "1")
	store.now = func() time.Time { return base.AddDate(0, 3, 0) }
	mustAdd(t, store, "new", "2")

	n, err := store.Prune(ctx, base.AddDate(0, 1, 0))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	_, ok, _ := store.Get(ctx, "new")
	assert.True(t, ok)
}

func profile(id, email, name string, roles ...core.Role) core.Profile {
	return core.Profile{
		ID:           id,
		Email:        email,
		FullName:     name,
		PasswordHash: "hash",
		Roles:        roles,
		CreatedAt:    time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestProfiles(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	n, err := repo.CountProfiles(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, repo.CreateProfile(ctx, profile("u1", "ana@example.com", "Ana", core.RoleAdmin, core.RoleUser)))
	require.NoError(t, repo.CreateProfile(ctx, profile("u2", "bia@example.com", "Bia", core.RoleUser)))

	err = repo.CreateProfile(ctx, profile("u3", "ana@example.com", "Outra"))
	assert.ErrorIs(t, err, ErrConflict)

	got, err := repo.GetProfileByEmail(ctx, "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.ID)
	assert.True(t, got.IsAdmin())
	assert.Equal(t, time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC), got.CreatedAt)

	_, err = repo.GetProfileByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := repo.ListProfiles(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Ana", list[0].FullName)
	assert.Equal(t, []core.Role{core.RoleAdmin, core.RoleUser}, list[0].Roles)
	assert.Equal(t, []core.Role{core.RoleUser}, list[1].Roles)

	require.NoError(t, repo.DeleteProfile(ctx, "u2"))
	assert.ErrorIs(t, repo.DeleteProfile(ctx, "u2"), ErrNotFound)
	n, _ = repo.CountProfiles(ctx)
	assert.Equal(t, 1, n)
}

func TestSessions(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	require.NoError(t, repo.CreateProfile(ctx, profile("u1", "ana@example.com", "Ana", core.RoleUser)))

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.CreateSession(ctx, "s1", "u1", now.Add(time.Hour)))
	require.NoError(t, repo.CreateSession(ctx, "s2", "u1", now.Add(-time.Minute)))

	ok, err := repo.SessionActive(ctx, "s1", now)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, _ = repo.SessionActive(ctx, "s2", now)
	assert.False(t, ok)

	require.NoError(t, repo.RevokeSession(ctx, "s1"))
	ok, _ = repo.SessionActive(ctx, "s1", now)
	assert.False(t, ok)

	n, err := repo.DeleteExpiredSessions(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	// Sessions go with their profile.
	require.NoError(t, repo.CreateSession(ctx, "s3", "u1", now.Add(time.Hour)))
	require.NoError(t, repo.DeleteProfile(ctx, "u1"))
	ok, _ = repo.SessionActive(ctx, "s3", now)
	assert.False(t, ok)
}

func mustAdd(t *testing.T, store *SnapshotStore, key, value string) {
	t.Helper()
	stored, err := store.Add(context.Background(), key, []byte(value))
	require.NoError(t, err)
	require.True(t, stored)
}
