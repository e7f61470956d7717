// Package viewport maps world coordinates onto screen cells and back, and
// resolves clicks to agents. It performs no I/O and holds no shared state.
package viewport

import (
	"math"
	"slices"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/Strob0t/fleetconsole/internal/domain/fleet"
)

// Defaults for Config fields left at zero.
const (
	DefaultBaseScale   = 0.2
	DefaultClickRadius = 3.0
	DefaultMinZoom     = 0.05
	DefaultMaxZoom     = 50.0

	ZoomInFactor  = 1.1
	ZoomOutFactor = 0.9
)

// Config holds the fixed parameters of the transform.
type Config struct {
	BaseScale   float64 // screen cells per world unit at zoom 1
	ClickRadius float64 // hit radius in screen cells
	MinZoom     float64
	MaxZoom     float64
}

func (c Config) withDefaults() Config {
	if c.BaseScale <= 0 {
		c.BaseScale = DefaultBaseScale
	}
	if c.ClickRadius <= 0 {
		c.ClickRadius = DefaultClickRadius
	}
	if c.MinZoom <= 0 {
		c.MinZoom = DefaultMinZoom
	}
	if c.MaxZoom < c.MinZoom {
		c.MaxZoom = max(DefaultMaxZoom, c.MinZoom)
	}
	return c
}

// Viewport is the pan/zoom state of the tactical map. The map plane is world
// X (horizontal) by world Z (vertical); callers pass Z as the second coordinate.
type Viewport struct {
	OffsetX float64 // world-space pan center
	OffsetY float64
	Zoom    float64
	Width   int
	Height  int

	cfg Config
}

// New returns a viewport centered on the world origin at zoom 1.
func New(cfg Config, width, height int) Viewport {
	return Viewport{
		Zoom:   1,
		Width:  max(width, 0),
		Height: max(height, 0),
		cfg:    cfg.withDefaults(),
	}
}

// Config returns the transform parameters in effect.
func (v Viewport) Config() Config { return v.cfg }

func (v Viewport) scale() float64 {
	return v.Zoom * v.cfg.BaseScale
}

func (v Viewport) center() (float64, float64) {
	return float64(v.Width) / 2, float64(v.Height) / 2
}

// WorldToScreen maps a world point onto fractional screen coordinates.
func (v Viewport) WorldToScreen(wx, wy float64) (float64, float64) {
	cx, cy := v.center()
	s := v.scale()
	return (wx-v.OffsetX)*s + cx, (wy-v.OffsetY)*s + cy
}

// ScreenToWorld is the exact inverse of WorldToScreen.
func (v Viewport) ScreenToWorld(sx, sy float64) (float64, float64) {
	cx, cy := v.center()
	s := v.scale()
	return (sx-cx)/s + v.OffsetX, (sy-cy)/s + v.OffsetY
}

// Cell returns the screen cell containing a world point and whether that cell is on screen.
func (v Viewport) Cell(wx, wy float64) (col, row int, visible bool) {
	sx, sy := v.WorldToScreen(wx, wy)
	col, row = toCell(sx), toCell(sy)
	visible = col >= 0 && col < v.Width && row >= 0 && row < v.Height
	return col, row, visible
}

// cellLimit keeps far off-screen cells representable as int.
const cellLimit = 1 << 20

func toCell(s float64) int {
	if math.IsNaN(s) {
		return -cellLimit
	}
	return int(math.Floor(max(-cellLimit, min(cellLimit, s))))
}

// VisibleBounds returns the world-space rectangle covered by the screen.
func (v Viewport) VisibleBounds() orb.Bound {
	minX, minY := v.ScreenToWorld(0, 0)
	maxX, maxY := v.ScreenToWorld(float64(v.Width), float64(v.Height))
	return orb.Bound{Min: orb.Point{minX, minY}, Max: orb.Point{maxX, maxY}}
}

// Resize updates the render surface dimensions.
func (v *Viewport) Resize(width, height int) {
	v.Width = max(width, 0)
	v.Height = max(height, 0)
}

// Pan shifts the view by a screen-space drag delta. Dragging moves the world
// with the pointer, so the offset moves opposite to the drag, scaled by zoom.
func (v *Viewport) Pan(dx, dy float64) {
	s := v.scale()
	v.OffsetX -= dx / s
	v.OffsetY -= dy / s
}

// ZoomIn magnifies by one step.
func (v *Viewport) ZoomIn() { v.SetZoom(v.Zoom * ZoomInFactor) }

// ZoomOut shrinks by one step.
func (v *Viewport) ZoomOut() { v.SetZoom(v.Zoom * ZoomOutFactor) }

// SetZoom sets the zoom, clamped to the configured bounds.
func (v *Viewport) SetZoom(z float64) {
	if math.IsNaN(z) || z <= 0 {
		z = v.cfg.MinZoom
	}
	v.Zoom = min(max(z, v.cfg.MinZoom), v.cfg.MaxZoom)
}

// CenterOn moves the pan center onto the agent's map position without changing zoom.
func (v *Viewport) CenterOn(a fleet.Agent) {
	v.OffsetX, v.OffsetY = a.Position.X, a.Position.Z
}

// ClickRadiusWorld returns the hit radius converted to world units at the current zoom.
func (v Viewport) ClickRadiusWorld() float64 {
	return v.cfg.ClickRadius / v.scale()
}

// HitTest returns the agent under a click at screen coordinates (sx, sy).
// An agent is hit when its map position lies within the click radius; among
// several hits the one with the lowest fleet index wins, regardless of the
// order of agents.
func (v Viewport) HitTest(sx, sy float64, agents []fleet.Agent) (fleet.Agent, bool) {
	wx, wy := v.ScreenToWorld(sx, sy)
	click := orb.Point{wx, wy}
	radius := v.ClickRadiusWorld()

	ordered := slices.Clone(agents)
	slices.SortStableFunc(ordered, func(a, b fleet.Agent) int { return a.Index - b.Index })

	for _, a := range ordered {
		if planar.Distance(click, orb.Point{a.Position.X, a.Position.Z}) <= radius {
			return a, true
		}
	}
	return fleet.Agent{}, false
}
