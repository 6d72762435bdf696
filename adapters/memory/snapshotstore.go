// Package memory provides in-memory implementations of storage ports
// for testing and single-node development.
package memory

import (
	"context"
	"sync"

	"github.com/arvend/tokengate/domain/cost"
	"github.com/arvend/tokengate/ports"
)

// SnapshotStore implements ports.SnapshotStore in memory.
type SnapshotStore struct {
	mu        sync.RWMutex
	snapshots map[string]cost.Snapshot
}

// NewSnapshotStore creates an empty in-memory snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{snapshots: make(map[string]cost.Snapshot)}
}

// Get retrieves the snapshot for a message.
func (s *SnapshotStore) Get(ctx context.Context, messageID string) (cost.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snapshots[messageID]
	if !ok {
		return cost.Snapshot{}, ports.ErrSnapshotNotFound
	}
	return snap, nil
}

// Put stores a snapshot. Write-once: existing snapshots are kept.
func (s *SnapshotStore) Put(ctx context.Context, messageID string, snap cost.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.snapshots[messageID]; exists {
		return nil
	}
	s.snapshots[messageID] = snap
	return nil
}

// Len returns the number of stored snapshots.
func (s *SnapshotStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.snapshots)
}

// Ensure interface compliance.
var _ ports.SnapshotStore = (*SnapshotStore)(nil)
