package memory

import (
	"context"
	"fmt"
	"sync"

	"bilancio/internal/export"
)

// Store keeps exported snapshots in memory. Default adapter when no
// spreadsheet is configured, and the test double for the worker.
type Store struct {
	mu    sync.Mutex
	items []export.Snapshot
}

func New() *Store {
	return &Store{}
}

// Append stores the snapshot and returns a synthetic row reference.
func (s *Store) Append(_ context.Context, snapshot export.Snapshot) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, snapshot)
	return fmt.Sprintf("mem:%d", len(s.items)), nil
}

// Snapshots returns a copy of everything appended so far.
func (s *Store) Snapshots() []export.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]export.Snapshot(nil), s.items...)
}
