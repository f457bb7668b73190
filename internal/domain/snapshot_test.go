package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSnapshot(t *testing.T) {
	s := DefaultSnapshot()

	assert.Equal(t, StyleBrandedBlock, s.Style)
	assert.Equal(t, 0.75, s.Opacity)
	assert.Equal(t, SizeM, s.Size)
	assert.Equal(t, 20, s.Padding)
	assert.Equal(t, ColorLight, s.Color)
	assert.Equal(t, "patreon.com/Ninyra", s.CustomText)
	assert.Nil(t, s.ManualX)
	assert.Nil(t, s.CustomSizePct)
}

func TestClampedForcesRanges(t *testing.T) {
	low, high := -0.5, 3.0
	s := Snapshot{
		Opacity:       0.05,
		Padding:       200,
		CustomSizePct: &high,
		ManualX:       &low,
		ManualY:       &high,
	}

	c := s.Clamped()

	assert.Equal(t, 0.3, c.Opacity)
	assert.Equal(t, 50, c.Padding)
	assert.Equal(t, 0.40, *c.CustomSizePct)
	assert.Equal(t, 0.0, *c.ManualX)
	assert.Equal(t, 1.0, *c.ManualY)
}

func TestClampedLowPadding(t *testing.T) {
	s := Snapshot{Opacity: 0.5, Padding: 1}
	assert.Equal(t, 10, s.Clamped().Padding)
}

func TestPatchApplyMergesOnlySetFields(t *testing.T) {
	s := DefaultSnapshot()
	opacity := 0.5
	style := StyleText

	out := SnapshotPatch{Opacity: &opacity, Style: &style}.Apply(s)

	assert.Equal(t, 0.5, out.Opacity)
	assert.Equal(t, StyleText, out.Style)
	assert.Equal(t, s.Padding, out.Padding)
	assert.Equal(t, s.CustomText, out.CustomText)
}

func TestPatchApplyClampsResult(t *testing.T) {
	opacity := 7.0
	out := SnapshotPatch{Opacity: &opacity}.Apply(DefaultSnapshot())
	assert.Equal(t, 1.0, out.Opacity)
}

func TestPatchClearManualRemovesAnchor(t *testing.T) {
	x, y := 0.4, 0.8
	s := SnapshotPatch{ManualX: &x, ManualY: &y}.Apply(DefaultSnapshot())
	require.NotNil(t, s.ManualX)

	out := SnapshotPatch{ClearManual: true}.Apply(s)

	assert.Nil(t, out.ManualX)
	assert.Nil(t, out.ManualY)
}

func TestPatchApplyCopiesPointerValues(t *testing.T) {
	x, y := 0.4, 0.8
	patch := SnapshotPatch{ManualX: &x, ManualY: &y}
	out := patch.Apply(DefaultSnapshot())

	x = 0.9
	assert.Equal(t, 0.4, *out.ManualX, "the snapshot must not alias the patch's pointer")
	_ = y
}

func TestEqualComparesPointerTargets(t *testing.T) {
	a, b := 0.4, 0.4
	first := DefaultSnapshot()
	first.ManualX = &a
	second := DefaultSnapshot()
	second.ManualX = &b

	assert.True(t, first.Equal(second))

	c := 0.5
	second.ManualX = &c
	assert.False(t, first.Equal(second))

	second.ManualX = nil
	assert.False(t, first.Equal(second))
}

func TestDefaultsPatchRestoresDefaults(t *testing.T) {
	x, y, size := 0.4, 0.8, 0.2
	style := StyleText
	modified := SnapshotPatch{
		Style:         &style,
		ManualX:       &x,
		ManualY:       &y,
		CustomSizePct: &size,
	}.Apply(DefaultSnapshot())

	out := DefaultsPatch().Apply(modified)

	assert.True(t, out.Equal(DefaultSnapshot()))
	assert.Nil(t, out.ManualX)
	assert.Nil(t, out.CustomSizePct)
}

func TestBatchProgressPercent(t *testing.T) {
	assert.Equal(t, 0, BatchProgress{}.Percent())
	assert.Equal(t, 43, BatchProgress{Completed: 3, Total: 7}.Percent())
	assert.Equal(t, 100, BatchProgress{Completed: 7, Total: 7}.Percent())
}
