// Package watcher runs the deal-watch cycle: re-check the pending watch list,
// then scan the feed for new deals.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"dealwatch/internal/cache"
	"dealwatch/internal/config"
	"dealwatch/internal/filter"
	"dealwatch/internal/model"
	"dealwatch/internal/notify"
	"dealwatch/internal/source"
)

// Source is the deal feed.
type Source interface {
	ListNew(ctx context.Context, page int) ([]model.Deal, error)
	FetchOne(ctx context.Context, url string) (model.Deal, error)
}

// RunState is the state of a single run. It is passed to both drivers and
// discarded when the run ends.
type RunState struct {
	ID      string
	Started time.Time
	LastRun *time.Time

	notified map[string]struct{}
}

func newRunState(started time.Time, lastRun *time.Time) *RunState {
	return &RunState{
		ID:       uuid.NewString(),
		Started:  started,
		LastRun:  lastRun,
		notified: make(map[string]struct{}),
	}
}

// Notified reports whether url was notified during this run.
func (r *RunState) Notified(url string) bool {
	_, ok := r.notified[url]
	return ok
}

func (r *RunState) markNotified(url string) {
	r.notified[url] = struct{}{}
}

// sinceLastRun returns the time elapsed between the previous run and this one.
func (r *RunState) sinceLastRun() time.Duration {
	if r.LastRun == nil {
		return 0
	}
	return r.Started.Sub(*r.LastRun)
}

type rule struct {
	model.Rule
	fingerprint string
}

// Watcher evaluates deals against rules and keeps the watch cache.
type Watcher struct {
	cache    *cache.Cache
	source   Source
	notifier notify.Notifier
	rules    []rule
	opts     config.Options
	log      *slog.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithClock replaces the wall clock (useful for testing).
func WithClock(now func() time.Time) Option {
	return func(w *Watcher) { w.now = now }
}

// WithSleep replaces the inter-request delay (useful for testing).
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(w *Watcher) { w.sleep = sleep }
}

// New creates a Watcher. Rules are evaluated in the given order.
func New(c *cache.Cache, src Source, n notify.Notifier, set *config.RuleSet, log *slog.Logger, opts ...Option) *Watcher {
	w := &Watcher{
		cache:    c,
		source:   src,
		notifier: n,
		opts:     set.Options,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
		sleep:    sleepCtx,
	}
	for _, r := range set.Rules {
		w.rules = append(w.rules, rule{Rule: r, fingerprint: filter.Fingerprint(r)})
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run performs one full cycle. When a fetch fails the cache is checkpointed
// before the error is returned.
func (w *Watcher) Run(ctx context.Context) error {
	state, err := w.cache.Load(ctx)
	if err != nil {
		err = fmt.Errorf("load cache: %w", err)
		w.reportError(ctx, "", "load", err)
		return err
	}

	run := newRunState(w.now(), state.LastRun)
	log := w.log.With("run_id", run.ID)
	log.Info("run started", "watches", len(state.Watches), "seen_ids", len(state.SeenIDs))

	if err := w.recheck(ctx, log, run, state); err != nil {
		return w.abort(ctx, log, run, state, "recheck", fmt.Errorf("recheck watches: %w", err))
	}
	if err := w.discover(ctx, log, run, state); err != nil {
		return w.abort(ctx, log, run, state, "discover", fmt.Errorf("discover deals: %w", err))
	}

	started := run.Started
	state.LastRun = &started
	purged := state.PurgeExpiredSeen(run.Started)
	dropped := state.DropNotified(run.notified)

	if err := w.cache.Save(ctx, state); err != nil {
		return fmt.Errorf("save cache: %w", err)
	}

	log.Info("run finished",
		"notified", len(run.notified),
		"watches", len(state.Watches),
		"purged_seen_ids", purged,
		"dropped_watches", dropped,
	)
	return nil
}

// abort saves the most recent consistent state and reports cause. LastRun
// is left untouched so the next run rescans the same window.
func (w *Watcher) abort(ctx context.Context, log *slog.Logger, run *RunState, state *cache.State, stage string, cause error) error {
	state.DropNotified(run.notified)

	saveCtx := context.WithoutCancel(ctx)
	if err := w.cache.Save(saveCtx, state); err != nil {
		log.Error("checkpoint cache", "error", err)
	} else {
		log.Info("cache checkpointed", "watches", len(state.Watches))
	}

	w.reportError(saveCtx, run.ID, stage, cause)
	return cause
}

func (w *Watcher) reportError(ctx context.Context, runID, stage string, err error) {
	if !w.opts.NotifyOnError {
		return
	}
	report := model.ErrorReport{
		Message: err.Error(),
		Context: map[string]string{"stage": stage},
	}
	if runID != "" {
		report.Context["run_id"] = runID
	}
	var statusErr *source.StatusError
	if errors.As(err, &statusErr) {
		report.Context["url"] = statusErr.URL
		report.Context["status"] = strconv.Itoa(statusErr.StatusCode)
	}
	w.notifier.NotifyError(ctx, report)
}

func (w *Watcher) notify(ctx context.Context, run *RunState, label string, d model.Deal) {
	run.markNotified(d.URL)
	w.notifier.Notify(ctx, model.NotificationFor(label, d))
}

// pause applies the inter-request delay.
func (w *Watcher) pause(ctx context.Context) error {
	return w.sleep(ctx, w.opts.RequestDelay)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
