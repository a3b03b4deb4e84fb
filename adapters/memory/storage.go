// Package memory provides an in-memory SnapshotStore for tests, demos, and
// hosts that manage durability themselves.
package memory

import (
	"context"
	"sync"

	"achievekit/core"
)

// Store is a concurrent in-memory SnapshotStore.
type Store struct {
	mu    sync.RWMutex
	saves map[core.SaveID]core.Snapshot
}

func New() *Store {
	return &Store{saves: make(map[core.SaveID]core.Snapshot)}
}

func (s *Store) Save(_ context.Context, save core.SaveID, snap core.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves[save] = snap.Clone()
	return nil
}

func (s *Store) Load(_ context.Context, save core.SaveID) (core.Snapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.saves[save]
	if !ok {
		return core.Snapshot{}, false, nil
	}
	return snap.Clone(), true, nil
}
