package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"precatorios/internal/amqp"
	"precatorios/internal/analytics"
	"precatorios/internal/export"
	"precatorios/internal/refresh"
	"precatorios/internal/snapshot"
)

const defaultParallelism = 4

// DatasetSource loads the board. *refresh.Service satisfies it.
type DatasetSource interface {
	Refresh(ctx context.Context, trigger string) (*refresh.Dataset, error)
}

// SnapshotPruner drops snapshots written before a cutoff.
type SnapshotPruner interface {
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// SyncWorker reacts to board refreshes: it reloads the dataset, makes sure
// this month's pending snapshots exist for every scope and exports the
// acquisitions table.
type SyncWorker struct {
	source      DatasetSource
	snapshots   *snapshot.Service
	exporter    export.Exporter
	pruner      SnapshotPruner
	parallelism int
	now         func() time.Time
}

type Option func(*SyncWorker)

func WithPruner(p SnapshotPruner) Option {
	return func(w *SyncWorker) { w.pruner = p }
}

func WithParallelism(n int) Option {
	return func(w *SyncWorker) {
		if n > 0 {
			w.parallelism = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(w *SyncWorker) { w.now = now }
}

func NewSyncWorker(source DatasetSource, snapshots *snapshot.Service, exporter export.Exporter, opts ...Option) *SyncWorker {
	if exporter == nil {
		exporter = export.Nop{}
	}
	w := &SyncWorker{
		source:      source,
		snapshots:   snapshots,
		exporter:    exporter,
		parallelism: defaultParallelism,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// HandleBoardRefreshed processes a single board-refreshed message from AMQP.
func (w *SyncWorker) HandleBoardRefreshed(ctx context.Context, msg *amqp.BoardRefreshedMessage) error {
	slog.InfoContext(ctx, "Processing board refreshed message",
		"component", "worker",
		"board_id", msg.BoardID,
		"records", msg.Records,
		"trigger", msg.Trigger)

	if err := w.sync(ctx, msg.Trigger); err != nil {
		return fmt.Errorf("sync after %s refresh: %w", msg.Trigger, err)
	}
	return nil
}

// StartupSyncCheck warms and exports once at worker startup, so a worker
// that missed messages while down catches up.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	if err := w.sync(ctx, refresh.TriggerStartup); err != nil {
		return fmt.Errorf("startup sync: %w", err)
	}
	return nil
}

// PruneSnapshots removes snapshots from previous months. Keys carry the
// month, so those rows are never read again.
func (w *SyncWorker) PruneSnapshots(ctx context.Context) error {
	if w.pruner == nil {
		return nil
	}
	now := w.now()
	cutoff := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	n, err := w.pruner.Prune(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("prune snapshots: %w", err)
	}
	if n > 0 {
		slog.InfoContext(ctx, "Pruned old snapshots",
			"component", "worker",
			"deleted", n,
			"before", cutoff.Format(time.DateOnly))
	}
	return nil
}

func (w *SyncWorker) sync(ctx context.Context, trigger string) error {
	start := w.now()
	ds, err := w.source.Refresh(ctx, trigger)
	if err != nil {
		return fmt.Errorf("load dataset: %w", err)
	}

	viewers := ds.Viewers()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.parallelism)

	g.Go(func() error {
		if err := w.exporter.Export(gctx, ds.Records); err != nil {
			return fmt.Errorf("export: %w", err)
		}
		return nil
	})
	for _, v := range viewers {
		v := v
		g.Go(func() error {
			return w.snapshots.Warm(gctx, start, []analytics.Viewer{v}, ds.Records)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Sync completed",
		"component", "worker",
		"records", len(ds.Records),
		"scopes", len(viewers),
		"duration_ms", w.now().Sub(start).Milliseconds())
	return nil
}
