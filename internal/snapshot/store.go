package snapshot

import (
	"context"

	"precatorios/internal/cache"
)

// Store persists encoded snapshots by key.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Add stores value unless key already holds one and reports whether
	// it wrote. Existing snapshots are never overwritten.
	Add(ctx context.Context, key string, value []byte) (bool, error)
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// MemoryStore keeps snapshots in an LRU. Contents are lost on restart. A
// bounded LRU can evict a frozen snapshot, which is then recomputed.
type MemoryStore struct {
	cache *cache.LRUCache[[]byte]
}

func NewMemoryStore(c *cache.LRUCache[[]byte]) *MemoryStore {
	return &MemoryStore{cache: c}
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	v, ok := s.cache.Get(key)
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (s *MemoryStore) Add(ctx context.Context, key string, value []byte) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return s.cache.Add(key, append([]byte(nil), value...)), nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.cache.Delete(key)
	return nil
}

func (s *MemoryStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.cache.Clear()
	return nil
}
