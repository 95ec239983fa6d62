package watcher

import (
	"context"
	"fmt"
	"log/slog"

	"dealwatch/internal/cache"
	"dealwatch/internal/filter"
	"dealwatch/internal/model"
)

// discover pages through the newest deals until it reaches deals published
// before the previous run. Without a previous run only the first page is read.
func (w *Watcher) discover(ctx context.Context, log *slog.Logger, run *RunState, state *cache.State) error {
	for page := 1; ; page++ {
		deals, err := w.source.ListNew(ctx, page)
		if err != nil {
			return fmt.Errorf("list page %d: %w", page, err)
		}
		log.Debug("page fetched", "page", page, "deals", len(deals))

		for _, d := range deals {
			w.scanDeal(ctx, log, run, state, d)
		}

		if err := w.pause(ctx); err != nil {
			return err
		}

		if run.LastRun == nil || len(deals) == 0 {
			return nil
		}
		if oldest := deals[len(deals)-1]; !oldest.PublishedAt.After(*run.LastRun) {
			return nil
		}
		if page >= w.opts.MaxPages {
			log.Warn("page limit reached", "max_pages", w.opts.MaxPages)
			return nil
		}
	}
}

func (w *Watcher) scanDeal(ctx context.Context, log *slog.Logger, run *RunState, state *cache.State, d model.Deal) {
	if state.IsSeen(d.ID) {
		return
	}
	state.MarkSeen(d.ID, run.Started)

	if run.Notified(d.URL) {
		return
	}

	for _, r := range w.rules {
		if !filter.Matches(d, r.Rule) {
			continue
		}

		if filter.MatchPopularity(d.Temperature, r.MinPopularity) && !(r.HasPopularity() && d.Republished()) {
			log.Info("deal matched", "url", d.URL, "label", r.Label, "temperature", d.Temperature)
			w.notify(ctx, run, r.Label, d)
			return
		}

		if window := r.Window(); window > 0 && !w.now().Before(d.PublishedAt.Add(window)) {
			continue
		}

		entry := model.WatchEntry{
			URL:                 d.URL,
			Label:               r.Label,
			RequiredPopularity:  r.MinPopularity,
			Fingerprint:         r.fingerprint,
			EnqueuedAt:          run.Started,
			PopularityAtEnqueue: d.Temperature,
		}
		if d.Republished() {
			baseline := d.Temperature
			entry.Baseline = &baseline
		}
		if window := r.Window(); window > 0 {
			expiry := d.PublishedAt.Add(window)
			entry.Expiry = &expiry
		}

		if state.AddWatch(entry) {
			log.Debug("deal watched", "url", d.URL, "label", r.Label, "temperature", d.Temperature)
		}
	}
}
