package cli

import (
	"fmt"
	"time"

	"precatorios/internal/board"
	"precatorios/internal/board/memory"
	"precatorios/internal/board/monday"
	"precatorios/internal/cache"
	"precatorios/internal/config"
	applog "precatorios/internal/log"
	"precatorios/internal/normalize"
	"precatorios/internal/snapshot"
	"precatorios/internal/storage"
)

// snapshotTTL bounds in-memory snapshots to a little over a month; the key
// already changes with the month.
const snapshotTTL = 32 * 24 * time.Hour

// NewBoardReader returns the configured board source.
func NewBoardReader(cfg *config.Config, logger *applog.Logger) (board.Reader, error) {
	switch cfg.DataBackend {
	case "monday":
		c, err := monday.New(monday.Config{
			URL:        cfg.MondayAPIURL,
			Token:      cfg.MondayAPIToken,
			BoardID:    cfg.MondayBoardID,
			APIVersion: cfg.MondayAPIVersion,
		})
		if err != nil {
			return nil, fmt.Errorf("monday client: %w", err)
		}
		logger.Info("Using monday board backend", applog.FieldBoardID, cfg.MondayBoardID)
		return c, nil
	default:
		s, err := memory.NewFromFile(cfg.SeedFile)
		if err != nil {
			return nil, err
		}
		logger.Info("Using memory board backend", "seed_file", cfg.SeedFile)
		return s, nil
	}
}

// NewNormalizer loads the exclusion and rename rules. Without a rules file
// the built-in set applies.
func NewNormalizer(cfg *config.Config) (*normalize.Normalizer, error) {
	rules, err := normalize.LoadRules(cfg.RulesFile)
	if err != nil {
		return nil, err
	}
	return normalize.New(rules, cfg.FinishedGroupTitle), nil
}

// NewSnapshotStore returns the configured snapshot store. The memory store
// registers its cache with manager for expiry sweeps. With the default size
// of zero it never evicts, so a frozen snapshot lives until its month ends;
// a positive SNAPSHOT_CACHE_SIZE smaller than the number of viewer scopes
// lets evicted scopes refreeze mid-month.
func NewSnapshotStore(cfg *config.Config, repo *storage.SQLiteRepository, manager *cache.Manager) snapshot.Store {
	if cfg.SnapshotBackend == "memory" {
		lru := cache.NewLRUCache[[]byte](cfg.SnapshotCacheSize, snapshotTTL)
		manager.Register(lru)
		return snapshot.NewMemoryStore(lru)
	}
	return storage.NewSnapshotStore(repo)
}
