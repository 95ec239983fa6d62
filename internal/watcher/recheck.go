package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"dealwatch/internal/cache"
	"dealwatch/internal/filter"
	"dealwatch/internal/model"
	"dealwatch/internal/source"
)

// recheck visits every watch entry in stored order and rebuilds the watch
// list from the entries that stay. On a fatal fetch error the entries not
// yet visited are kept as they were.
func (w *Watcher) recheck(ctx context.Context, log *slog.Logger, run *RunState, state *cache.State) error {
	pending := state.Watches
	kept := make([]model.WatchEntry, 0, len(pending))

	for i, entry := range pending {
		// Another entry for the same deal already notified; the post-run
		// cleanup drops this one.
		if run.Notified(entry.URL) {
			kept = append(kept, entry)
			continue
		}

		deal, err := w.source.FetchOne(ctx, entry.URL)
		switch {
		case errors.Is(err, source.ErrGone):
			log.Debug("watch dropped, deal gone", "url", entry.URL)
		case errors.Is(err, source.ErrNotFound):
			if entry.Expiry != nil {
				extended := entry.Expiry.Add(run.sinceLastRun())
				entry.Expiry = &extended
			}
			log.Debug("watch kept, deal not visible", "url", entry.URL)
			kept = append(kept, entry)
		case err != nil:
			state.Watches = append(kept, pending[i:]...)
			return fmt.Errorf("fetch %s: %w", entry.URL, err)
		case deal.URL != entry.URL:
			log.Debug("watch dropped, deal merged", "url", entry.URL, "merged_into", deal.URL)
		default:
			if keep := w.evaluateWatch(ctx, log, run, entry, deal); keep {
				kept = append(kept, entry)
			}
		}

		if err := w.pause(ctx); err != nil {
			state.Watches = append(kept, pending[i+1:]...)
			return err
		}
	}

	state.Watches = kept
	return nil
}

// evaluateWatch drops expired entries and notifies when the popularity gained
// since enqueueing meets the requirement. It reports whether the entry stays
// in the watch list.
func (w *Watcher) evaluateWatch(ctx context.Context, log *slog.Logger, run *RunState, entry model.WatchEntry, deal model.Deal) bool {
	if entry.Expiry != nil && !w.now().Before(*entry.Expiry) {
		log.Debug("watch expired", "url", entry.URL, "expiry", *entry.Expiry)
		return false
	}

	value := deal.Temperature
	if entry.Baseline != nil {
		value -= *entry.Baseline
	}
	if !filter.MatchPopularity(value, entry.RequiredPopularity) {
		return true
	}

	log.Info("watched deal matched", "url", deal.URL, "label", entry.Label, "temperature", deal.Temperature)
	w.notify(ctx, run, entry.Label, deal)
	return false
}
