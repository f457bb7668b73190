package placement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	live    []Position
	commits []Position
}

func newRecorder() (*recorder, *Controller) {
	r := &recorder{}
	c := New(
		func(p Position) { r.live = append(r.live, p) },
		func(p Position) { r.commits = append(r.commits, p) },
	)
	return r, c
}

var surface = Surface{Width: 1000, Height: 500}

func TestDragEmitsSingleCommit(t *testing.T) {
	r, c := newRecorder()
	c.SetEnabled(true)

	c.BeginDrag(surface, Point{X: 100, Y: 100}, Point{})
	c.MoveTo(Point{X: 200, Y: 150})
	c.MoveTo(Point{X: 300, Y: 200})
	c.MoveTo(Point{X: 370, Y: 405})
	c.EndDrag()

	assert.Len(t, r.live, 3, "every move produces live feedback")
	require.Len(t, r.commits, 1, "the whole drag produces exactly one commit")
	assert.Equal(t, Position{X: 0.37, Y: 0.81}, r.commits[0])
}

func TestDragSnapsToGrid(t *testing.T) {
	r, c := newRecorder()
	c.SetEnabled(true)
	c.SetSnapToGrid(true)

	c.BeginDrag(surface, Point{X: 0, Y: 0}, Point{})
	c.MoveTo(Point{X: 370, Y: 405})
	c.EndDrag()

	require.Len(t, r.commits, 1)
	assert.Equal(t, Position{X: 0.4, Y: 0.8}, r.commits[0])
	// Live feedback stays unsnapped so the handle tracks the pointer.
	assert.Equal(t, Position{X: 0.37, Y: 0.81}, r.live[len(r.live)-1])
}

func TestZeroDisplacementDragStillCommits(t *testing.T) {
	r, c := newRecorder()
	c.SetEnabled(true)

	c.BeginDrag(surface, Point{X: 500, Y: 250}, Point{})
	c.EndDrag()

	require.Len(t, r.commits, 1)
	assert.Equal(t, Position{X: 0.5, Y: 0.5}, r.commits[0])
}

func TestDragClampsToSurface(t *testing.T) {
	r, c := newRecorder()
	c.SetEnabled(true)

	c.BeginDrag(surface, Point{X: 0, Y: 0}, Point{})
	c.MoveTo(Point{X: -50, Y: 9999})
	c.EndDrag()

	require.Len(t, r.commits, 1)
	assert.Equal(t, Position{X: 0, Y: 1}, r.commits[0])
}

func TestDragOffsetIsSubtracted(t *testing.T) {
	r, c := newRecorder()
	c.SetEnabled(true)

	// Pointer grabbed the handle 10px right and 5px below its anchor.
	c.BeginDrag(surface, Point{X: 110, Y: 55}, Point{X: 10, Y: 5})
	c.MoveTo(Point{X: 510, Y: 255})
	c.EndDrag()

	require.Len(t, r.commits, 1)
	assert.Equal(t, Position{X: 0.5, Y: 0.5}, r.commits[0])
}

func TestZeroDisplacementDragWithOffsetCommitsAnchor(t *testing.T) {
	r, c := newRecorder()
	c.SetEnabled(true)

	// Grab the handle off-center and release without moving. The commit
	// must be the handle anchor, not the pointer position.
	c.BeginDrag(surface, Point{X: 110, Y: 55}, Point{X: 10, Y: 5})
	c.EndDrag()

	require.Len(t, r.commits, 1)
	assert.Equal(t, Position{X: 0.1, Y: 0.1}, r.commits[0])
}

func TestDragAndReturnMatchesZeroDisplacement(t *testing.T) {
	r, c := newRecorder()
	c.SetEnabled(true)

	c.BeginDrag(surface, Point{X: 110, Y: 55}, Point{X: 10, Y: 5})
	c.MoveTo(Point{X: 300, Y: 200})
	c.MoveTo(Point{X: 110, Y: 55})
	c.EndDrag()

	require.Len(t, r.commits, 1)
	assert.Equal(t, Position{X: 0.1, Y: 0.1}, r.commits[0])
}

func TestClickCommitsDirectly(t *testing.T) {
	r, c := newRecorder()
	c.SetEnabled(true)
	c.SetSnapToGrid(true)

	c.Click(surface, Point{X: 370, Y: 405})

	assert.Empty(t, r.live)
	require.Len(t, r.commits, 1)
	assert.Equal(t, Position{X: 0.4, Y: 0.8}, r.commits[0])
}

func TestClickIgnoredDuringDrag(t *testing.T) {
	r, c := newRecorder()
	c.SetEnabled(true)

	c.BeginDrag(surface, Point{X: 100, Y: 100}, Point{})
	c.Click(surface, Point{X: 500, Y: 250})
	c.EndDrag()

	assert.Len(t, r.commits, 1)
}

func TestDisabledControllerIgnoresInput(t *testing.T) {
	r, c := newRecorder()

	c.BeginDrag(surface, Point{X: 100, Y: 100}, Point{})
	c.MoveTo(Point{X: 200, Y: 200})
	c.EndDrag()
	c.Click(surface, Point{X: 500, Y: 250})

	assert.Empty(t, r.live)
	assert.Empty(t, r.commits)
}

func TestDisablingMidDragAbandonsDrag(t *testing.T) {
	r, c := newRecorder()
	c.SetEnabled(true)

	c.BeginDrag(surface, Point{X: 100, Y: 100}, Point{})
	c.SetEnabled(false)
	c.EndDrag()

	assert.Empty(t, r.commits)
}

func TestDegenerateSurfaceIgnored(t *testing.T) {
	r, c := newRecorder()
	c.SetEnabled(true)

	c.BeginDrag(Surface{Width: 0, Height: 500}, Point{X: 0, Y: 0}, Point{})
	c.EndDrag()
	c.Click(Surface{Width: 1000, Height: 0}, Point{X: 1, Y: 1})

	assert.Empty(t, r.commits)
}
