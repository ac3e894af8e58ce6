// Package refresh owns the live dataset. A manual refresh and the timer
// share one fetch path; concurrent triggers collapse into a single fetch
// and readers always see a complete dataset, old or new.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"

	"precatorios/internal/amqp"
	"precatorios/internal/analytics"
	"precatorios/internal/board"
	"precatorios/internal/core"
	"precatorios/internal/normalize"
)

const (
	TriggerStartup = "startup"
	TriggerTimer   = "timer"
	TriggerManual  = "manual"
)

// DefaultSchedule matches the dashboard's 15 minute polling.
const DefaultSchedule = "@every 15m"

const defaultFetchTimeout = 2 * time.Minute

var ErrNoDataset = errors.New("no dataset loaded yet")

// Dataset is one complete, immutable fetch result.
type Dataset struct {
	BoardID   string
	BoardName string
	Groups    []board.Group
	// RawCessionarios are the assignee labels exactly as on the board.
	RawCessionarios []string
	Items           int
	Records         []core.Acquisition
	FetchedAt       time.Time
}

// Viewers returns the unscoped viewer followed by one per assignee.
func (d *Dataset) Viewers() []analytics.Viewer {
	names := analytics.Cessionarios(d.Records, analytics.Viewer{All: true})
	out := make([]analytics.Viewer, 0, len(names)+1)
	out = append(out, analytics.Viewer{All: true})
	for _, n := range names {
		out = append(out, analytics.Viewer{Assignee: n})
	}
	return out
}

// Publisher announces new datasets.
type Publisher interface {
	PublishBoardRefreshed(ctx context.Context, msg *amqp.BoardRefreshedMessage) error
}

type Service struct {
	reader       board.Reader
	normalizer   *normalize.Normalizer
	publisher    Publisher
	fetchTimeout time.Duration
	now          func() time.Time

	current atomic.Pointer[Dataset]
	group   singleflight.Group
	cron    *cron.Cron
}

type Option func(*Service)

func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithFetchTimeout(d time.Duration) Option {
	return func(s *Service) { s.fetchTimeout = d }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(reader board.Reader, normalizer *normalize.Normalizer, opts ...Option) *Service {
	s := &Service{
		reader:       reader,
		normalizer:   normalizer,
		fetchTimeout: defaultFetchTimeout,
		now:          time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Current returns the live dataset, or nil before the first success.
func (s *Service) Current() *Dataset {
	return s.current.Load()
}

// Refresh fetches the board and swaps the dataset in. Callers arriving
// while a fetch runs wait for it and share its result. On failure the
// previous dataset stays live.
func (s *Service) Refresh(ctx context.Context, trigger string) (*Dataset, error) {
	ch := s.group.DoChan("refresh", func() (any, error) {
		// The fetch outlives any single caller that gives up waiting.
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.fetchTimeout)
		defer cancel()
		return s.fetch(fctx, trigger)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			slog.DebugContext(ctx, "Joined in-flight refresh", "component", "refresh", "trigger", trigger)
		}
		return res.Val.(*Dataset), nil
	}
}

func (s *Service) fetch(ctx context.Context, trigger string) (*Dataset, error) {
	start := s.now()
	b, err := s.reader.FetchBoard(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Board refresh failed, keeping previous dataset",
			"component", "refresh", "trigger", trigger, "error", err)
		return nil, fmt.Errorf("fetch board: %w", err)
	}

	records := s.normalizer.NormalizeAll(b.Items)
	ds := &Dataset{
		BoardID:         b.ID,
		BoardName:       b.Name,
		Groups:          b.Groups,
		RawCessionarios: board.UniqueCessionarios(b.Items),
		Items:           len(b.Items),
		Records:         records,
		FetchedAt:       s.now(),
	}
	s.current.Store(ds)

	slog.InfoContext(ctx, "Board refreshed",
		"component", "refresh",
		"trigger", trigger,
		"board_id", ds.BoardID,
		"items", ds.Items,
		"records", len(records),
		"duration_ms", s.now().Sub(start).Milliseconds())

	if s.publisher != nil {
		msg := amqp.NewBoardRefreshedMessage(ds.BoardID, ds.Items, len(records), ds.FetchedAt, trigger)
		if err := s.publisher.PublishBoardRefreshed(ctx, msg); err != nil {
			slog.WarnContext(ctx, "Failed to publish refresh event", "component", "refresh", "error", err)
		}
	}
	return ds, nil
}

// Schedule runs Refresh on the cron spec until Stop.
func (s *Service) Schedule(spec string) error {
	if spec == "" {
		spec = DefaultSchedule
	}
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		if _, err := s.Refresh(context.Background(), TriggerTimer); err != nil {
			slog.Warn("Scheduled refresh failed", "component", "refresh", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule refresh %q: %w", spec, err)
	}
	c.Start()
	s.cron = c
	slog.Info("Refresh scheduled", "component", "refresh", "schedule", spec)
	return nil
}

// Stop halts the schedule and waits for a running job.
func (s *Service) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}
