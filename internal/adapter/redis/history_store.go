// Package redis persists the session's undo/redo history.
//
// The two stacks live under two fixed keys per session, each a JSON array
// of full configuration snapshots.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Leks2000/NinyMark/internal/domain"
)

// HistoryStore implements domain.HistoryStore on Redis.
type HistoryStore struct {
	rdb       goredis.Cmdable
	sessionID string
}

var _ domain.HistoryStore = (*HistoryStore)(nil)

// NewHistoryStore creates a store namespaced by session id.
func NewHistoryStore(rdb goredis.Cmdable, sessionID string) *HistoryStore {
	return &HistoryStore{rdb: rdb, sessionID: sessionID}
}

// Save writes both stacks. The write is pipelined so a crash between the
// two keys cannot leave one stack from each of two different commits.
func (s *HistoryStore) Save(ctx context.Context, undo, redo []domain.Snapshot) error {
	undoJSON, err := json.Marshal(undo)
	if err != nil {
		return fmt.Errorf("failed to marshal undo stack: %w", err)
	}
	redoJSON, err := json.Marshal(redo)
	if err != nil {
		return fmt.Errorf("failed to marshal redo stack: %w", err)
	}

	pipe := s.rdb.Pipeline()
	pipe.Set(ctx, s.undoKey(), undoJSON, 0)
	pipe.Set(ctx, s.redoKey(), redoJSON, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to persist history: %w", err)
	}
	return nil
}

// Load reads both stacks. A missing key yields an empty stack; corrupt data
// resets both stacks and reports the error for logging.
func (s *HistoryStore) Load(ctx context.Context) ([]domain.Snapshot, []domain.Snapshot, error) {
	undo, err := s.loadStack(ctx, s.undoKey())
	if err != nil {
		return nil, nil, err
	}
	redo, err := s.loadStack(ctx, s.redoKey())
	if err != nil {
		return nil, nil, err
	}
	return undo, redo, nil
}

func (s *HistoryStore) loadStack(ctx context.Context, key string) ([]domain.Snapshot, error) {
	data, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read history key %s: %w", key, err)
	}

	var stack []domain.Snapshot
	if err := json.Unmarshal(data, &stack); err != nil {
		return nil, fmt.Errorf("corrupt history data under %s: %w", key, err)
	}
	return stack, nil
}

func (s *HistoryStore) undoKey() string {
	return "history:undo:" + s.sessionID
}

func (s *HistoryStore) redoKey() string {
	return "history:redo:" + s.sessionID
}
