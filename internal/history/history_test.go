package history

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Leks2000/NinyMark/internal/domain"
)

// recordingStore captures every Save for inspection and can inject failures.
type recordingStore struct {
	mu      sync.Mutex
	undo    []domain.Snapshot
	redo    []domain.Snapshot
	saves   int
	saveErr error
	loadErr error
}

func (s *recordingStore) Save(_ context.Context, undo, redo []domain.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.undo = append([]domain.Snapshot(nil), undo...)
	s.redo = append([]domain.Snapshot(nil), redo...)
	s.saves++
	return nil
}

func (s *recordingStore) Load(_ context.Context) ([]domain.Snapshot, []domain.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, nil, s.loadErr
	}
	return s.undo, s.redo, nil
}

func (s *recordingStore) saveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

func opacityPatch(v float64) domain.SnapshotPatch {
	return domain.SnapshotPatch{Opacity: &v}
}

func TestUpdateDebouncesBurstIntoSingleUndoStep(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := &recordingStore{}
	h := New(store, clock, nil)

	before := h.Current()

	h.Update(opacityPatch(0.5))
	clock.Advance(100 * time.Millisecond)
	h.Update(opacityPatch(0.6))
	clock.Advance(100 * time.Millisecond)
	h.Update(opacityPatch(0.9))

	// Timer was re-armed by every update, so nothing committed yet.
	assert.False(t, h.CanUndo())

	clock.Advance(debounceInterval)

	require.True(t, h.CanUndo())
	require.True(t, h.Undo())
	assert.True(t, h.Current().Equal(before), "undo should restore the snapshot from before the whole burst")
}

func TestSeparateBurstsProduceSeparateSteps(t *testing.T) {
	clock := clockwork.NewFakeClock()
	h := New(&recordingStore{}, clock, nil)

	h.Update(opacityPatch(0.5))
	clock.Advance(debounceInterval)
	h.Update(opacityPatch(0.9))
	clock.Advance(debounceInterval)

	require.True(t, h.Undo())
	assert.Equal(t, 0.5, h.Current().Opacity)
	require.True(t, h.Undo())
	assert.Equal(t, 0.75, h.Current().Opacity)
	assert.False(t, h.CanUndo())
}

func TestUndoRedoRoundTrip(t *testing.T) {
	clock := clockwork.NewFakeClock()
	h := New(&recordingStore{}, clock, nil)

	x, y := 0.4, 0.8
	h.Update(domain.SnapshotPatch{ManualX: &x, ManualY: &y})
	clock.Advance(debounceInterval)

	after := h.Current()
	require.True(t, h.Undo())
	require.True(t, h.Redo())
	assert.True(t, h.Current().Equal(after), "redo should restore the exact undone snapshot")
}

func TestNewChangeClearsRedoStack(t *testing.T) {
	clock := clockwork.NewFakeClock()
	h := New(&recordingStore{}, clock, nil)

	h.Update(opacityPatch(0.5))
	clock.Advance(debounceInterval)
	require.True(t, h.Undo())
	require.True(t, h.CanRedo())

	h.Update(opacityPatch(0.9))
	clock.Advance(debounceInterval)

	assert.False(t, h.CanRedo())
}

func TestUndoFlushesPendingCommit(t *testing.T) {
	clock := clockwork.NewFakeClock()
	h := New(&recordingStore{}, clock, nil)

	h.Update(opacityPatch(0.5))
	// No clock advance: the debounce timer has not fired.
	require.True(t, h.Undo())
	assert.Equal(t, 0.75, h.Current().Opacity)
}

func TestUndoRedoOnEmptyStacks(t *testing.T) {
	clock := clockwork.NewFakeClock()
	h := New(&recordingStore{}, clock, nil)

	assert.False(t, h.Undo())
	assert.False(t, h.Redo())
}

func TestUndoStackEvictsOldestAtCapacity(t *testing.T) {
	clock := clockwork.NewFakeClock()
	h := New(&recordingStore{}, clock, nil)

	for i := 0; i < maxEntries+10; i++ {
		h.Update(opacityPatch(0.3 + float64(i%70)/100))
		clock.Advance(debounceInterval)
	}

	undos := 0
	for h.Undo() {
		undos++
	}
	assert.Equal(t, maxEntries, undos)
}

func TestNoopUpdateStillCommits(t *testing.T) {
	clock := clockwork.NewFakeClock()
	h := New(&recordingStore{}, clock, nil)

	h.Update(opacityPatch(h.Current().Opacity))
	clock.Advance(debounceInterval)

	assert.True(t, h.CanUndo())
}

func TestOnChangeFiresOnlyOnActualChange(t *testing.T) {
	clock := clockwork.NewFakeClock()
	var notifications int
	h := New(&recordingStore{}, clock, func(domain.Snapshot) { notifications++ })

	h.Update(opacityPatch(0.5))
	h.Update(opacityPatch(0.5))

	assert.Equal(t, 1, notifications)
}

func TestObserverEchoDuringUndoDoesNotArmCommit(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := &recordingStore{}

	var h *History
	h = New(store, clock, func(s domain.Snapshot) {
		// An observer that writes the snapshot straight back, the way a UI
		// sync layer would.
		h.Update(domain.SnapshotPatch{Opacity: &s.Opacity})
	})

	h.Update(opacityPatch(0.5))
	clock.Advance(debounceInterval)
	require.True(t, h.Undo())

	// A commit after the undo would clear the redo stack.
	clock.Advance(debounceInterval)
	assert.True(t, h.CanRedo())
}

func TestRestoreLoadsPersistedStacks(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := &recordingStore{}

	h := New(store, clock, nil)
	h.Update(opacityPatch(0.5))
	clock.Advance(debounceInterval)
	require.True(t, h.Undo())

	fresh := New(store, clock, nil)
	require.NoError(t, fresh.Restore(context.Background()))
	assert.True(t, fresh.CanRedo(), "a new session should see the persisted redo step")
}

func TestRestoreWithCorruptDataStartsEmpty(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := &recordingStore{loadErr: fmt.Errorf("unmarshal failed")}

	h := New(store, clock, nil)
	err := h.Restore(context.Background())

	assert.Error(t, err)
	assert.False(t, h.CanUndo())
	assert.False(t, h.CanRedo())
}

func TestPersistenceFailureDoesNotBlockHistory(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := &recordingStore{saveErr: fmt.Errorf("redis down")}
	h := New(store, clock, nil)

	h.Update(opacityPatch(0.5))
	clock.Advance(debounceInterval)

	require.True(t, h.CanUndo())
	require.True(t, h.Undo())
	assert.Equal(t, 0.75, h.Current().Opacity)
}

func TestCommitPersistsStacks(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := &recordingStore{}
	h := New(store, clock, nil)

	h.Update(opacityPatch(0.5))
	clock.Advance(debounceInterval)

	assert.Equal(t, 1, store.saveCount())
}
