package localstore

import (
	"fmt"
)

const snapshotKey = "player_snapshot"

// SaveSnapshot persists the serialized player snapshot as a single record.
func (s *Store) SaveSnapshot(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return fmt.Errorf("store not open")
	}

	return s.setMetaLocked(snapshotKey, string(data))
}

// LoadSnapshot returns the serialized player snapshot.
// Returns ErrNotFound when no snapshot has been saved.
func (s *Store) LoadSnapshot() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, fmt.Errorf("store not open")
	}

	value := s.getMetaLocked(snapshotKey)
	if value == "" {
		return nil, ErrNotFound
	}

	return []byte(value), nil
}
