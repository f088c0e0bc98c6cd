// Package snapshot provides read-only access to stored option-chain
// snapshots, keyed by (underlying, date, time-of-day).
package snapshot

import (
	"sort"
	"sync"

	"deltastack/internal/errors"
	"deltastack/internal/models"
)

// Source supplies option-chain snapshots. Implementations must be safe
// for concurrent readers; snapshots are immutable once returned.
type Source interface {
	// Get returns the snapshot at exactly (underlying, date, "HHMM").
	// Returns errors.ErrSnapshotNotFound when no snapshot exists for the
	// key, including when the stored data is unreadable.
	Get(underlying, date, timeOfDay string) (*models.ChainSnapshot, error)

	// ListTimes returns the available snapshot time labels for a day in
	// ascending order. An empty slice means no snapshots exist.
	ListTimes(underlying, date string) ([]string, error)
}

// MemorySource is an in-memory Source, used by tests and replay fixtures.
type MemorySource struct {
	mu    sync.RWMutex
	snaps map[string]*models.ChainSnapshot
}

// NewMemorySource creates an empty MemorySource.
func NewMemorySource() *MemorySource {
	return &MemorySource{snaps: make(map[string]*models.ChainSnapshot)}
}

// Add registers a snapshot under its own (underlying, date, time) key.
func (m *MemorySource) Add(snap *models.ChainSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps[key(snap.Underlying, snap.Date, snap.Time)] = snap
}

// Get implements Source.
func (m *MemorySource) Get(underlying, date, timeOfDay string) (*models.ChainSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap, ok := m.snaps[key(underlying, date, timeOfDay)]
	if !ok {
		return nil, errors.ErrSnapshotNotFound
	}
	return snap, nil
}

// ListTimes implements Source.
func (m *MemorySource) ListTimes(underlying, date string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	prefix := key(underlying, date, "")
	var times []string
	for k, snap := range m.snaps {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			times = append(times, snap.Time)
		}
	}
	sort.Strings(times)
	return times, nil
}

func key(underlying, date, timeOfDay string) string {
	return underlying + "|" + date + "|" + timeOfDay
}
