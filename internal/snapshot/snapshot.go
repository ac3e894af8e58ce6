// Package snapshot freezes the pending-values aggregation once per month
// and viewer scope.
//
// The first read of a month computes totals over the viewer's active
// records and stores them; every later read in the same month replays the
// stored bytes, whatever happened to the board in between. A new month
// changes the key, which is the only expiry.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"precatorios/internal/analytics"
	"precatorios/internal/core"
)

const keyPrefix = "pending_snapshot"

// LabelLayout formats the snapshot date as MM/YYYY.
const LabelLayout = "01/2006"

type (
	// Pending is the frozen pending-values aggregation.
	Pending struct {
		Data         []Row           `json:"data"`
		Incidentes   []IncidentTotal `json:"incidentes"`
		Count        int             `json:"count"`
		SnapshotDate string          `json:"snapshotDate"`
	}

	// Row is one chart row: net value per incident type.
	Row struct {
		Period string                        `json:"period"`
		Values map[core.Incidente]core.Money `json:"values"`
		Total  core.Money                    `json:"total"`
	}

	IncidentTotal struct {
		Incidente    core.Incidente `json:"incidente"`
		Label        string         `json:"label"`
		Count        int            `json:"count"`
		ValorLiquido core.Money     `json:"valor_liquido"`
	}
)

// Key identifies the snapshot of a viewer for the month of now. The month
// is zero-based.
func Key(now time.Time, viewer analytics.Viewer) string {
	return fmt.Sprintf("%s_%d_%d_%s", keyPrefix, now.Year(), int(now.Month())-1, viewer.Scope())
}

// Compute builds the pending aggregation over the viewer's active records.
func Compute(now time.Time, viewer analytics.Viewer, records []core.Acquisition) Pending {
	active := analytics.Filter(records, analytics.Query{Status: core.StatusAtiva, Viewer: viewer})
	label := now.Format(LabelLayout)

	totals := make([]IncidentTotal, len(core.Incidentes))
	index := make(map[core.Incidente]int, len(core.Incidentes))
	for i, inc := range core.Incidentes {
		totals[i] = IncidentTotal{Incidente: inc, Label: inc.Label()}
		index[inc] = i
	}

	row := Row{Period: label, Values: make(map[core.Incidente]core.Money, len(core.Incidentes))}
	for _, inc := range core.Incidentes {
		row.Values[inc] = core.Money{}
	}
	for _, a := range active {
		i, ok := index[a.Incidente]
		if !ok {
			continue
		}
		// Net value is what was paid plus the profit still to come.
		net := a.PrecoPago.Add(a.Lucro)
		totals[i].Count++
		totals[i].ValorLiquido = totals[i].ValorLiquido.Add(net)
		row.Values[a.Incidente] = row.Values[a.Incidente].Add(net)
		row.Total = row.Total.Add(net)
	}

	return Pending{
		Data:         []Row{row},
		Incidentes:   totals,
		Count:        len(active),
		SnapshotDate: label,
	}
}

// Service reads and writes monthly snapshots through a Store.
type Service struct {
	store    Store
	inflight singleflight.Group
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// Pending returns the viewer's snapshot for the month of now, computing
// and storing it on a miss. Concurrent misses on one key share a single
// computation, and across processes the first stored snapshot wins. Store
// failures never fail the read.
func (s *Service) Pending(ctx context.Context, now time.Time, viewer analytics.Viewer, records []core.Acquisition) (Pending, error) {
	if err := ctx.Err(); err != nil {
		return Pending{}, err
	}
	key := Key(now, viewer)

	// The shared freeze outlives a caller that gives up.
	v, err, _ := s.inflight.Do(key, func() (any, error) {
		return s.loadOrFreeze(context.WithoutCancel(ctx), key, now, viewer, records)
	})
	if err != nil {
		return Pending{}, err
	}
	return decode(v.([]byte), now)
}

func (s *Service) loadOrFreeze(ctx context.Context, key string, now time.Time, viewer analytics.Viewer, records []core.Acquisition) ([]byte, error) {
	if data, ok := s.load(ctx, key); ok {
		return data, nil
	}

	p := Compute(now, viewer, records)
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	stored, err := s.store.Add(ctx, key, data)
	switch {
	case err != nil:
		slog.WarnContext(ctx, "Failed to store pending snapshot",
			"component", "snapshot", "snapshot_key", key, "error", err)
	case stored:
		slog.InfoContext(ctx, "Pending snapshot stored",
			"component", "snapshot", "snapshot_key", key, "count", p.Count)
	default:
		// Another writer froze this month first.
		if existing, ok := s.load(ctx, key); ok {
			return existing, nil
		}
	}
	return data, nil
}

// load returns the stored bytes when they decode. Unreadable entries are
// dropped so the next freeze can replace them.
func (s *Service) load(ctx context.Context, key string) ([]byte, bool) {
	data, ok, err := s.store.Get(ctx, key)
	if err != nil {
		slog.WarnContext(ctx, "Failed to read pending snapshot",
			"component", "snapshot", "snapshot_key", key, "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var p Pending
	if err := json.Unmarshal(data, &p); err != nil {
		slog.WarnContext(ctx, "Discarding unreadable pending snapshot",
			"component", "snapshot", "snapshot_key", key, "error", err)
		if err := s.store.Delete(ctx, key); err != nil {
			slog.WarnContext(ctx, "Failed to drop unreadable pending snapshot",
				"component", "snapshot", "snapshot_key", key, "error", err)
		}
		return nil, false
	}
	return data, true
}

func decode(data []byte, now time.Time) (Pending, error) {
	var p Pending
	if err := json.Unmarshal(data, &p); err != nil {
		return Pending{}, fmt.Errorf("decode snapshot: %w", err)
	}
	// Snapshots written before the label existed get the current month.
	if p.SnapshotDate == "" {
		p.SnapshotDate = now.Format(LabelLayout)
	}
	return p, nil
}

// Warm makes sure a snapshot exists for every viewer this month.
func (s *Service) Warm(ctx context.Context, now time.Time, viewers []analytics.Viewer, records []core.Acquisition) error {
	for _, v := range viewers {
		if _, err := s.Pending(ctx, now, v, records); err != nil {
			return fmt.Errorf("warm snapshot %s: %w", Key(now, v), err)
		}
	}
	return nil
}

// Invalidate drops the viewer's snapshot for the month of now.
func (s *Service) Invalidate(ctx context.Context, now time.Time, viewer analytics.Viewer) error {
	if err := s.store.Delete(ctx, Key(now, viewer)); err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}

// InvalidateAll drops every stored snapshot.
func (s *Service) InvalidateAll(ctx context.Context) error {
	if err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear snapshots: %w", err)
	}
	return nil
}
