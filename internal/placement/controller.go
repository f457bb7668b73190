// Package placement translates pointer interaction over the preview surface
// into a normalized watermark anchor.
//
// Live feedback fires on every pointer move, but the position-change event
// fires exactly once per logical placement action (pointer-up or click), so
// dragging never floods the processing service with per-pixel requests.
package placement

import (
	"math"
	"sync"
)

// gridSteps is the snap resolution: positions round to the nearest 1/10 of
// the surface.
const gridSteps = 10

// Point is a position in surface pixel coordinates.
type Point struct {
	X float64
	Y float64
}

// Surface is the preview rectangle the pointer moves over.
type Surface struct {
	Width  float64
	Height float64
}

// Position is a normalized anchor in [0,1]x[0,1].
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Controller is a pure input state machine; it performs no I/O and starts
// no goroutines. onLive receives per-move visual feedback, onCommit receives
// the single position-change event per placement action. Either may be nil.
type Controller struct {
	mu         sync.Mutex
	enabled    bool
	snapToGrid bool

	dragging    bool
	surface     Surface
	startOffset Point
	last        Position

	onLive   func(Position)
	onCommit func(Position)
}

// New creates a controller with placement mode disabled.
func New(onLive, onCommit func(Position)) *Controller {
	return &Controller{onLive: onLive, onCommit: onCommit}
}

// SetEnabled toggles placement mode. Pure state setter; disabling mid-drag
// abandons the drag without emitting.
func (c *Controller) SetEnabled(enabled bool) {
	c.mu.Lock()
	c.enabled = enabled
	if !enabled {
		c.dragging = false
	}
	c.mu.Unlock()
}

// SetSnapToGrid toggles rounding to the nearest 1/10 of the surface.
func (c *Controller) SetSnapToGrid(snap bool) {
	c.mu.Lock()
	c.snapToGrid = snap
	c.mu.Unlock()
}

// Enabled reports whether placement mode is active.
func (c *Controller) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

// BeginDrag starts a drag session from a pointer-down on the handle.
// offset is the pointer position relative to the handle's anchor, so the
// handle does not jump under the cursor. Ignored while disabled.
func (c *Controller) BeginDrag(surface Surface, start Point, offset Point) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.enabled || surface.Width <= 0 || surface.Height <= 0 {
		return
	}

	c.dragging = true
	c.surface = surface
	c.startOffset = offset
	c.last = c.normalize(Point{X: start.X - offset.X, Y: start.Y - offset.Y})
}

// MoveTo tracks the pointer during a drag. Emits live feedback only; the
// owning session is not notified.
func (c *Controller) MoveTo(p Point) {
	c.mu.Lock()
	if !c.enabled || !c.dragging {
		c.mu.Unlock()
		return
	}

	c.last = c.normalize(Point{X: p.X - c.startOffset.X, Y: p.Y - c.startOffset.Y})
	pos := c.last
	live := c.onLive
	c.mu.Unlock()

	if live != nil {
		live(pos)
	}
}

// EndDrag finishes the drag and emits the single position-change event,
// even when the drag netted zero displacement.
func (c *Controller) EndDrag() {
	c.mu.Lock()
	if !c.enabled || !c.dragging {
		c.mu.Unlock()
		return
	}

	c.dragging = false
	pos := c.snap(c.last)
	commit := c.onCommit
	c.mu.Unlock()

	if commit != nil {
		commit(pos)
	}
}

// Click places the anchor at a single click on the surface (not on the
// handle). Ignored while disabled or mid-drag.
func (c *Controller) Click(surface Surface, p Point) {
	c.mu.Lock()
	if !c.enabled || c.dragging || surface.Width <= 0 || surface.Height <= 0 {
		c.mu.Unlock()
		return
	}

	c.surface = surface
	pos := c.snap(c.normalize(p))
	commit := c.onCommit
	c.mu.Unlock()

	if commit != nil {
		commit(pos)
	}
}

// normalize clamps a pixel point to the surface and scales it to [0,1].
// Caller holds the lock.
func (c *Controller) normalize(p Point) Position {
	x := clamp(p.X, 0, c.surface.Width) / c.surface.Width
	y := clamp(p.Y, 0, c.surface.Height) / c.surface.Height
	return Position{X: x, Y: y}
}

// snap rounds to the nearest grid step when snapping is on.
func (c *Controller) snap(pos Position) Position {
	if !c.snapToGrid {
		return pos
	}
	pos.X = math.Round(pos.X*gridSteps) / gridSteps
	pos.Y = math.Round(pos.Y*gridSteps) / gridSteps
	return pos
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
