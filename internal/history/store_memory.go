package history

import (
	"context"
	"sync"

	"github.com/Leks2000/NinyMark/internal/domain"
)

// MemoryStore keeps the stacks in process memory. It is the fallback when
// no Redis is configured: history survives within the session but not
// across restarts.
type MemoryStore struct {
	mu   sync.Mutex
	undo []domain.Snapshot
	redo []domain.Snapshot
}

var _ domain.HistoryStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Save(_ context.Context, undo, redo []domain.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.undo = append([]domain.Snapshot(nil), undo...)
	s.redo = append([]domain.Snapshot(nil), redo...)
	return nil
}

func (s *MemoryStore) Load(_ context.Context) ([]domain.Snapshot, []domain.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Snapshot(nil), s.undo...), append([]domain.Snapshot(nil), s.redo...), nil
}
