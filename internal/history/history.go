// Package history implements the bounded, debounced undo/redo history over
// the watermark configuration.
//
// Rapid successive updates (a slider drag) coalesce into a single undo step:
// the first un-committed update captures the pre-change snapshot, and the
// commit timer is re-armed by every further update until it fires. Undo and
// redo run in a restoring state so the snapshot assignment they perform can
// never re-enter the debounce path.
package history

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Leks2000/NinyMark/internal/domain"
	"github.com/Leks2000/NinyMark/internal/metrics"
)

const (
	// debounceInterval coalesces a burst of updates into one undo entry.
	debounceInterval = 300 * time.Millisecond
	// maxEntries bounds each stack; the oldest entry is evicted on overflow.
	maxEntries = 50
	// persistTimeout caps one store round-trip.
	persistTimeout = 2 * time.Second
)

// state is the commit state machine: Idle accepts updates, PendingCommit has
// a captured pre-change snapshot waiting on the timer, Restoring suppresses
// history mutation while undo/redo reassign the current snapshot.
type state int

const (
	stateIdle state = iota
	statePendingCommit
	stateRestoring
)

// History owns the current configuration snapshot and its undo/redo stacks.
type History struct {
	store    domain.HistoryStore
	clock    clockwork.Clock
	onChange func(domain.Snapshot)

	mu       sync.Mutex
	current  domain.Snapshot
	undo     []domain.Snapshot
	redo     []domain.Snapshot
	state    state
	captured domain.Snapshot
	timer    clockwork.Timer
}

// New creates a history starting from the default configuration.
// onChange is invoked (outside the lock) whenever the current snapshot
// changes; it may be nil.
func New(store domain.HistoryStore, clock clockwork.Clock, onChange func(domain.Snapshot)) *History {
	return &History{
		store:    store,
		clock:    clock,
		onChange: onChange,
		current:  domain.DefaultSnapshot(),
	}
}

// Restore loads the persisted stacks. Missing or corrupt data leaves both
// stacks empty; the error is returned for logging and is never fatal.
func (h *History) Restore(ctx context.Context) error {
	undo, redo, err := h.store.Load(ctx)

	h.mu.Lock()
	h.undo = bound(undo)
	h.redo = bound(redo)
	h.mu.Unlock()

	return err
}

// Current returns the current configuration snapshot.
func (h *History) Current() domain.Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}

// CanUndo reports whether an undo step exists.
func (h *History) CanUndo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.undo) > 0
}

// CanRedo reports whether a redo step exists.
func (h *History) CanRedo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.redo) > 0
}

// Update merges the patch into the current snapshot and (re)arms the
// debounced commit. The pre-change snapshot captured at the first
// un-committed update becomes the undo entry when the timer fires.
func (h *History) Update(patch domain.SnapshotPatch) {
	h.mu.Lock()

	previous := h.current
	h.current = patch.Apply(h.current)
	changed := !h.current.Equal(previous)

	if h.state == stateIdle {
		h.captured = previous
		h.state = statePendingCommit
		h.timer = h.clock.AfterFunc(debounceInterval, h.commit)
	} else if h.state == statePendingCommit {
		h.timer.Reset(debounceInterval)
	}
	// Restoring: undo/redo is reassigning current, no commit may be armed.

	snapshot := h.current
	h.mu.Unlock()

	if changed {
		h.notify(snapshot)
	}
}

// ResetDefaults restores every field to its default through the normal
// update path, so the reset itself is undoable.
func (h *History) ResetDefaults() {
	h.Update(domain.DefaultsPatch())
}

// Undo steps back one committed change. A pending debounced commit is
// flushed first so the step in flight is not lost. Returns false when
// there is nothing to undo.
func (h *History) Undo() bool {
	h.Flush()

	h.mu.Lock()
	if len(h.undo) == 0 {
		h.mu.Unlock()
		return false
	}

	h.state = stateRestoring
	h.redo = push(h.redo, h.current)
	h.current = h.undo[len(h.undo)-1]
	h.undo = h.undo[:len(h.undo)-1]

	snapshot := h.current
	undo, redo := snapshots(h.undo), snapshots(h.redo)
	h.mu.Unlock()

	// Notify while still restoring: an update echoed back by an observer
	// must not arm a commit for the restored snapshot.
	h.persist(undo, redo)
	h.notify(snapshot)

	h.mu.Lock()
	h.state = stateIdle
	h.mu.Unlock()
	return true
}

// Redo reapplies the last undone change. Returns false when there is
// nothing to redo.
func (h *History) Redo() bool {
	h.mu.Lock()
	if len(h.redo) == 0 {
		h.mu.Unlock()
		return false
	}

	h.state = stateRestoring
	h.undo = push(h.undo, h.current)
	h.current = h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]

	snapshot := h.current
	undo, redo := snapshots(h.undo), snapshots(h.redo)
	h.mu.Unlock()

	h.persist(undo, redo)
	h.notify(snapshot)

	h.mu.Lock()
	h.state = stateIdle
	h.mu.Unlock()
	return true
}

// Flush commits a pending debounced change immediately.
func (h *History) Flush() {
	h.mu.Lock()
	if h.state != statePendingCommit {
		h.mu.Unlock()
		return
	}
	h.timer.Stop()
	h.mu.Unlock()

	h.commit()
}

// Close flushes any pending commit and stops the timer.
func (h *History) Close() {
	h.Flush()
}

// commit runs when the debounce timer fires: the captured pre-change
// snapshot becomes an undo entry and the redo stack is cleared.
func (h *History) commit() {
	h.mu.Lock()
	if h.state != statePendingCommit {
		h.mu.Unlock()
		return
	}

	h.undo = push(h.undo, h.captured)
	h.redo = h.redo[:0]
	h.state = stateIdle

	undo, redo := snapshots(h.undo), snapshots(h.redo)
	h.mu.Unlock()

	metrics.HistoryCommitsTotal.Inc()
	h.persist(undo, redo)
}

// persist writes both stacks to the store. Failure degrades to in-memory
// history for the session; it is logged, never propagated.
func (h *History) persist(undo, redo []domain.Snapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := h.store.Save(ctx, undo, redo); err != nil {
		slog.Warn("History persistence failed, continuing in-memory", "error", err)
	}
}

func (h *History) notify(snapshot domain.Snapshot) {
	if h.onChange != nil {
		h.onChange(snapshot)
	}
}

// push appends an entry, evicting the oldest when the stack is full.
func push(stack []domain.Snapshot, s domain.Snapshot) []domain.Snapshot {
	if len(stack) >= maxEntries {
		stack = append(stack[:0], stack[1:]...)
	}
	return append(stack, s)
}

func bound(stack []domain.Snapshot) []domain.Snapshot {
	if len(stack) > maxEntries {
		stack = stack[len(stack)-maxEntries:]
	}
	return append([]domain.Snapshot(nil), stack...)
}

func snapshots(stack []domain.Snapshot) []domain.Snapshot {
	return append([]domain.Snapshot(nil), stack...)
}
