// Package cache implements the persistent watch list: seen deal IDs and
// deals awaiting a deferred popularity check.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"dealwatch/internal/model"
	"dealwatch/internal/storage"
)

// Key is the well-known record name the cache is stored under.
const Key = "watch-cache"

// SeenRetention is how long a seen deal ID is kept.
const SeenRetention = 24 * time.Hour

// ErrCorrupt is returned by Load when the persisted record cannot be decoded.
var ErrCorrupt = errors.New("cache record is corrupt")

// State is the persisted watch cache.
type State struct {
	LastRun *time.Time         `json:"last_run,omitempty"`
	SeenIDs []model.SeenID     `json:"seen_ids"`
	Watches []model.WatchEntry `json:"watches"`
}

// Cache loads and saves State through a Store.
type Cache struct {
	store storage.Store
}

// New creates a Cache on top of store.
func New(store storage.Store) *Cache {
	return &Cache{store: store}
}

// Load reads the persisted state. A missing record yields an empty state.
func (c *Cache) Load(ctx context.Context) (*State, error) {
	data, err := c.store.Read(ctx, Key)
	if errors.Is(err, storage.ErrNotFound) {
		return NewState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cache: %w", err)
	}
	return Decode(data)
}

// Save overwrites the persisted state.
func (c *Cache) Save(ctx context.Context, s *State) error {
	data, err := Encode(s)
	if err != nil {
		return err
	}
	if err := c.store.Write(ctx, Key, data); err != nil {
		return fmt.Errorf("write cache: %w", err)
	}
	return nil
}

// NewState returns a state with empty collections.
func NewState() *State {
	return &State{
		SeenIDs: []model.SeenID{},
		Watches: []model.WatchEntry{},
	}
}

// Encode serializes a state.
func Encode(s *State) ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode cache: %w", err)
	}
	return data, nil
}

// Decode parses a serialized state.
func Decode(data []byte) (*State, error) {
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	for i, w := range s.Watches {
		if w.URL == "" || w.Fingerprint == "" {
			return nil, fmt.Errorf("%w: watch entry %d lacks url or fingerprint", ErrCorrupt, i)
		}
	}
	if s.SeenIDs == nil {
		s.SeenIDs = []model.SeenID{}
	}
	if s.Watches == nil {
		s.Watches = []model.WatchEntry{}
	}
	return &s, nil
}

// IsSeen reports whether the deal ID was already scanned.
func (s *State) IsSeen(id string) bool {
	for _, e := range s.SeenIDs {
		if e.ID == id {
			return true
		}
	}
	return false
}

// MarkSeen records a scanned deal ID.
func (s *State) MarkSeen(id string, at time.Time) {
	s.SeenIDs = append(s.SeenIDs, model.SeenID{ID: id, SeenAt: at})
}

// PurgeExpiredSeen drops seen IDs older than SeenRetention relative to now.
func (s *State) PurgeExpiredSeen(now time.Time) int {
	kept := s.SeenIDs[:0]
	for _, e := range s.SeenIDs {
		if !e.SeenAt.Add(SeenRetention).Before(now) {
			kept = append(kept, e)
		}
	}
	purged := len(s.SeenIDs) - len(kept)
	s.SeenIDs = kept
	return purged
}

// HasDuplicateWatch reports whether an entry for the url and rule fingerprint exists.
func (s *State) HasDuplicateWatch(url, fingerprint string) bool {
	for _, w := range s.Watches {
		if w.URL == url && w.Fingerprint == fingerprint {
			return true
		}
	}
	return false
}

// AddWatch appends an entry unless one already exists for its url and
// fingerprint. It reports whether the entry was added.
func (s *State) AddWatch(w model.WatchEntry) bool {
	if s.HasDuplicateWatch(w.URL, w.Fingerprint) {
		return false
	}
	s.Watches = append(s.Watches, w)
	return true
}

// Evict drops every watch entry for url.
func (s *State) Evict(url string) int {
	return s.dropWatches(func(w model.WatchEntry) bool { return w.URL == url })
}

// DropNotified drops every watch entry whose url is in notified.
func (s *State) DropNotified(notified map[string]struct{}) int {
	return s.dropWatches(func(w model.WatchEntry) bool {
		_, ok := notified[w.URL]
		return ok
	})
}

func (s *State) dropWatches(drop func(model.WatchEntry) bool) int {
	kept := make([]model.WatchEntry, 0, len(s.Watches))
	for _, w := range s.Watches {
		if !drop(w) {
			kept = append(kept, w)
		}
	}
	dropped := len(s.Watches) - len(kept)
	s.Watches = kept
	return dropped
}
