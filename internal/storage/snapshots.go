package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SnapshotStore persists encoded pending snapshots.
type SnapshotStore struct {
	repo *SQLiteRepository
	now  func() time.Time
}

func NewSnapshotStore(repo *SQLiteRepository) *SnapshotStore {
	return &SnapshotStore{repo: repo, now: time.Now}
}

func (s *SnapshotStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var payload []byte
	err := s.repo.db.QueryRowContext(ctx,
		`SELECT payload FROM snapshots WHERE key = ?`, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get snapshot %s: %w", key, err)
	}
	return payload, true, nil
}

// Add inserts the snapshot unless the key exists. The first writer wins.
func (s *SnapshotStore) Add(ctx context.Context, key string, value []byte) (bool, error) {
	res, err := s.repo.db.ExecContext(ctx,
		`INSERT INTO snapshots (key, payload, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO NOTHING`,
		key, value, s.now().Unix())
	if err != nil {
		return false, fmt.Errorf("add snapshot %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("add snapshot %s: %w", key, err)
	}
	return n > 0, nil
}

func (s *SnapshotStore) Delete(ctx context.Context, key string) error {
	if _, err := s.repo.db.ExecContext(ctx, `DELETE FROM snapshots WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete snapshot %s: %w", key, err)
	}
	return nil
}

func (s *SnapshotStore) Clear(ctx context.Context) error {
	if _, err := s.repo.db.ExecContext(ctx, `DELETE FROM snapshots`); err != nil {
		return fmt.Errorf("clear snapshots: %w", err)
	}
	return nil
}

// Prune removes snapshots written before the cutoff. Old months are never
// read again once their key has rolled over.
func (s *SnapshotStore) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.repo.db.ExecContext(ctx, `DELETE FROM snapshots WHERE created_at < ?`, before.Unix())
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}
	return res.RowsAffected()
}
