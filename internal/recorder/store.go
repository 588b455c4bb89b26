// Package recorder owns the process-lifetime stats and interaction history.
package recorder

import (
	"sync"

	"github.com/wudi/dummy/internal/capture"
)

// Store guards Stats and History with one lock, so recording updates both
// together and Flush is never observed half done.
type Store struct {
	mu         sync.RWMutex
	stats      *Stats
	history    *History
	maxEntries int
}

// Summary describes the current size of the store.
type Summary struct {
	Interactions int `json:"interactions"`
	PathKeys     int `json:"path_keys"`
	URLKeys      int `json:"url_keys"`
}

// NewStore creates an empty store. maxEntries of 0 keeps the full history.
func NewStore(maxEntries int) *Store {
	return &Store{
		stats:      NewStats(),
		history:    NewHistory(maxEntries),
		maxEntries: maxEntries,
	}
}

// Record counts req and appends it with resp (nil in mock mode) to the history.
func (s *Store) Record(req *capture.Request, resp *Response) Interaction {
	it := Interaction{Request: req, Response: resp}

	s.mu.Lock()
	s.stats.Record(req)
	s.history.Append(it)
	s.mu.Unlock()

	return it
}

// Stats returns the selected stat mapping sorted by count descending.
func (s *Store) Stats(withQuery bool) Counts {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats.Snapshot(withQuery)
}

// Recent returns the history, most recent first.
func (s *Store) Recent() []Interaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history.SnapshotReversed()
}

// Flush clears stats and history together and returns what was dropped.
func (s *Store) Flush() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	dropped := s.summaryLocked()
	s.stats = NewStats()
	s.history = NewHistory(s.maxEntries)
	return dropped
}

// Summary reports the current sizes.
func (s *Store) Summary() Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.summaryLocked()
}

func (s *Store) summaryLocked() Summary {
	paths, urls := s.stats.Len()
	return Summary{
		Interactions: s.history.Len(),
		PathKeys:     paths,
		URLKeys:      urls,
	}
}
