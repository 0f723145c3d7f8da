package rules

import (
	"sync"
	"time"
)

// DebugLogStore persists pass records. Entries are append-only; reordering
// for display is a UI concern. Retention is enforced by Purge, which the
// host runs on its own schedule.
type DebugLogStore interface {
	// Append stores one entry.
	Append(entry *DebugLogEntry) error

	// List returns the most recent entries, newest first, up to limit
	// (0 means no limit).
	List(limit int) ([]*DebugLogEntry, error)

	// Purge removes entries older than the cutoff and reports how many
	// were removed.
	Purge(olderThan time.Time) (int, error)

	// Clear removes all entries.
	Clear() error
}

// InMemoryDebugLogStore implements DebugLogStore with a slice.
type InMemoryDebugLogStore struct {
	entries []*DebugLogEntry
	mu      sync.RWMutex
}

// NewInMemoryDebugLogStore creates an empty debug log store.
func NewInMemoryDebugLogStore() *InMemoryDebugLogStore {
	return &InMemoryDebugLogStore{}
}

// Append stores one entry.
func (s *InMemoryDebugLogStore) Append(entry *DebugLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

// List returns entries newest first.
func (s *InMemoryDebugLogStore) List(limit int) ([]*DebugLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*DebugLogEntry, 0, len(s.entries))
	for i := len(s.entries) - 1; i >= 0; i-- {
		out = append(out, s.entries[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Purge drops entries older than the cutoff.
func (s *InMemoryDebugLogStore) Purge(olderThan time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.entries[:0]
	removed := 0
	for _, entry := range s.entries {
		if entry.Timestamp.Before(olderThan) {
			removed++
			continue
		}
		kept = append(kept, entry)
	}
	s.entries = kept
	return removed, nil
}

// Clear removes all entries.
func (s *InMemoryDebugLogStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	return nil
}
