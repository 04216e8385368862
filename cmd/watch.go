package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/urfave/cli"
	"golang.org/x/sync/errgroup"

	"github.com/Uzair-DeVops/facebook-postsiva/internal/apiclient"
	"github.com/Uzair-DeVops/facebook-postsiva/internal/config"
	"github.com/Uzair-DeVops/facebook-postsiva/internal/resources"
	"github.com/Uzair-DeVops/facebook-postsiva/internal/resources/scheduling"
	"github.com/Uzair-DeVops/facebook-postsiva/internal/server"
)

func (r *runner) watchCmd() cli.Command {
	return cli.Command{
		Name:  "watch",
		Usage: "poll a page's scheduled posts and report changes",
		Flags: []cli.Flag{
			pageFlag,
			cli.DurationFlag{Name: "interval", Usage: "poll period, overrides watch.intervalSeconds"},
		},
		Action: r.watch,
	}
}

func (r *runner) watch(c *cli.Context) error {
	out, err := newPrinter(r.stdout, c.GlobalString(flagFilter), c.GlobalString(flagTemplate))
	if err != nil {
		return err
	}
	cfg, loader, err := r.load(c)
	if err != nil {
		return err
	}
	application, err := r.build(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = application.Close() }()
	logger := application.Logger.With(slog.String("component", "watch"))

	settings := newWatchSettings(cfg.Watch, c.String("page"), c.Duration("interval"))
	if settings.pageID() == "" {
		return errors.New("watch: page id required (--page or watch.pageID)")
	}

	ctx, cancel := context.WithCancel(r.ctx)
	defer cancel()

	if loader.Path() != "" {
		reloader, err := loader.Watch(ctx, func(next config.Config) {
			settings.apply(next.Watch)
			logger.Info("configuration reloaded",
				slog.String("page_id", settings.pageID()),
				slog.Duration("interval", settings.interval()))
		}, func(err error) {
			logger.Error("configuration watcher error", slog.Any("error", err))
		})
		if err != nil {
			logger.Warn("configuration reload disabled", slog.Any("error", err))
		} else {
			defer reloader.Stop()
		}
	}

	w := &scheduleWatcher{
		lister:   application.Scheduling,
		settings: settings,
		health:   &pollHealth{},
		logger:   logger,
		emit:     out.item,
		now:      time.Now,
	}

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Debug.Listen.Port > 0 {
		srv, err := server.New(cfg.Debug, application.Logger, server.NewDebugHandler(application.Metrics.Handler(), w.health))
		if err != nil {
			return err
		}
		g.Go(func() error { return srv.Run(gctx) })
	}
	g.Go(func() error {
		err := w.run(gctx)
		cancel()
		return err
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("watch stopped")
	return nil
}

// watchSettings holds the poll parameters that a config reload may change.
// Command-line overrides stay pinned across reloads.
type watchSettings struct {
	mu           sync.RWMutex
	page         string
	period       time.Duration
	pagePinned   bool
	periodPinned bool
}

func newWatchSettings(cfg config.WatchConfig, page string, period time.Duration) *watchSettings {
	s := &watchSettings{
		pagePinned:   strings.TrimSpace(page) != "",
		periodPinned: period > 0,
		page:         strings.TrimSpace(page),
		period:       period,
	}
	s.apply(cfg)
	return s
}

func (s *watchSettings) apply(cfg config.WatchConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.pagePinned {
		s.page = strings.TrimSpace(cfg.PageID)
	}
	if !s.periodPinned && cfg.Interval() > 0 {
		s.period = cfg.Interval()
	}
}

func (s *watchSettings) pageID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.page
}

func (s *watchSettings) interval() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.period
}

// pollHealth backs the debug server's /healthz.
type pollHealth struct {
	mu  sync.RWMutex
	at  time.Time
	err error
}

func (h *pollHealth) LastPoll() (time.Time, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.at, h.err
}

func (h *pollHealth) record(at time.Time, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.at, h.err = at, err
}

type scheduleLister interface {
	List(ctx context.Context, pageID string, opts resources.ReadOptions) ([]scheduling.ScheduledPost, error)
}

// scheduleChange is one difference between two polls.
type scheduleChange struct {
	Kind        string    `json:"kind"`
	ID          string    `json:"id"`
	PageID      string    `json:"page_id"`
	Status      string    `json:"status,omitempty"`
	ScheduledAt time.Time `json:"scheduled_time"`
}

type scheduleWatcher struct {
	lister   scheduleLister
	settings *watchSettings
	health   *pollHealth
	logger   *slog.Logger
	emit     func(any) error
	now      func() time.Time

	page  string
	known map[string]scheduling.ScheduledPost
}

func (w *scheduleWatcher) run(ctx context.Context) error {
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			if err := w.poll(ctx); err != nil {
				return err
			}
			timer.Reset(w.settings.interval())
		}
	}
}

// poll fetches the list bypassing the cache and emits changes since the
// previous poll. Only an expired session stops the loop; other failures are
// reported through health and retried on the next tick.
func (w *scheduleWatcher) poll(ctx context.Context) error {
	page := w.settings.pageID()
	if page != w.page {
		w.page = page
		w.known = nil
	}

	list, err := w.lister.List(ctx, page, resources.ReadOptions{ForceRefresh: true})
	w.health.record(w.now(), err)
	if err != nil {
		if errors.Is(err, apiclient.ErrSessionExpired) {
			return fmt.Errorf("watch: %w", err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		w.logger.Warn("scheduled posts poll failed", slog.String("page_id", page), slog.Any("error", err))
		return nil
	}

	first := w.known == nil
	changes, next := diffSchedules(w.known, list)
	w.known = next
	if first {
		w.logger.Info("watching scheduled posts", slog.String("page_id", page), slog.Int("count", len(next)))
		return nil
	}
	for _, change := range changes {
		w.logger.Info("scheduled post changed",
			slog.String("kind", change.Kind),
			slog.String("id", change.ID),
			slog.String("status", change.Status),
			slog.Time("scheduled_time", change.ScheduledAt))
		if w.emit != nil {
			if err := w.emit(change); err != nil {
				return err
			}
		}
	}
	return nil
}

// diffSchedules compares the previous snapshot with a fresh list. Changes are
// ordered by id for stable output.
func diffSchedules(prev map[string]scheduling.ScheduledPost, list []scheduling.ScheduledPost) ([]scheduleChange, map[string]scheduling.ScheduledPost) {
	next := make(map[string]scheduling.ScheduledPost, len(list))
	for _, item := range list {
		next[item.ID] = item
	}

	var changes []scheduleChange
	for id, item := range next {
		old, ok := prev[id]
		switch {
		case !ok:
			changes = append(changes, changeOf("added", item))
		case old.Status != item.Status || !old.ScheduledAt.Equal(item.ScheduledAt):
			changes = append(changes, changeOf("updated", item))
		}
	}
	for id, item := range prev {
		if _, ok := next[id]; !ok {
			changes = append(changes, changeOf("removed", item))
		}
	}
	sort.Slice(changes, func(i, j int) bool {
		if changes[i].ID == changes[j].ID {
			return changes[i].Kind < changes[j].Kind
		}
		return changes[i].ID < changes[j].ID
	})
	return changes, next
}

func changeOf(kind string, item scheduling.ScheduledPost) scheduleChange {
	return scheduleChange{
		Kind:        kind,
		ID:          item.ID,
		PageID:      item.PageID,
		Status:      item.Status,
		ScheduledAt: item.ScheduledAt,
	}
}
