package domain

import "context"

// HistoryStore persists the undo and redo stacks across reloads.
// Load returns empty stacks (and an error for the caller to log) when the
// stored data is missing or corrupt; it never fabricates entries.
type HistoryStore interface {
	Save(ctx context.Context, undo, redo []Snapshot) error
	Load(ctx context.Context) (undo, redo []Snapshot, err error)
}
