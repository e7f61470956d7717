package tui

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Strob0t/fleetconsole/internal/domain/fleet"
	"github.com/Strob0t/fleetconsole/internal/domain/viewport"
)

const (
	agentGlyph    = "●"
	selectedGlyph = "◉"
	gridGlyph     = "·"
	originGlyph   = "+"

	// Minimum spacing between grid marks, in screen cells.
	gridSpacing = 6
)

// mapKey identifies a rendered map frame. Any change to the snapshot, the
// viewport, or the selection produces a different key.
func (m Model) mapKey(selID string) string {
	v := m.view
	return fmt.Sprintf("map:%d:%s:%g:%g:%g:%dx%d",
		m.snap.Version(), selID, v.OffsetX, v.OffsetY, v.Zoom, v.Width, v.Height)
}

// renderMap draws the tactical map, reusing a cached frame when the inputs
// are unchanged.
func (m Model) renderMap() string {
	selID, _ := m.selection.ID()
	if m.frames == nil {
		return drawMap(m.view, m.snap.Agents(), selID, m.theme)
	}

	k := m.mapKey(selID)
	if frame, ok := m.frames.Frame(k); ok {
		return frame
	}
	frame := drawMap(m.view, m.snap.Agents(), selID, m.theme)
	m.frames.StoreFrame(k, frame)
	return frame
}

// drawMap renders agents onto a width × height grid of cells. Agents are
// drawn from the highest fleet index down, so where glyphs overlap the one
// a click would select stays visible.
func drawMap(v viewport.Viewport, agents []fleet.Agent, selID string, theme Theme) string {
	if v.Width <= 0 || v.Height <= 0 {
		return ""
	}
	cells := make([][]string, v.Height)
	for r := range cells {
		cells[r] = make([]string, v.Width)
		for c := range cells[r] {
			cells[r][c] = " "
		}
	}
	put := func(col, row int, s string) {
		if row >= 0 && row < v.Height && col >= 0 && col < v.Width {
			cells[row][col] = s
		}
	}

	drawGrid(v, theme, put)

	label := lipgloss.NewStyle().Foreground(theme.FaintText)
	for i := len(agents) - 1; i >= 0; i-- {
		a := agents[i]
		col, row, _ := v.Cell(a.Position.X, a.Position.Z)
		for j, r := range strconv.Itoa(a.Index) {
			put(col+1+j, row, label.Render(string(r)))
		}
	}
	for i := len(agents) - 1; i >= 0; i-- {
		a := agents[i]
		col, row, visible := v.Cell(a.Position.X, a.Position.Z)
		if !visible {
			continue
		}
		style := lipgloss.NewStyle().Foreground(theme.StatusColor(a.Status))
		glyph := agentGlyph
		if a.ID == selID {
			style = style.Background(theme.SelectedBackground).Bold(true)
			glyph = selectedGlyph
		}
		put(col, row, style.Render(glyph))
	}

	var b strings.Builder
	for r, row := range cells {
		if r > 0 {
			b.WriteByte('\n')
		}
		for _, c := range row {
			b.WriteString(c)
		}
	}
	return b.String()
}

// drawGrid marks world coordinates at a power-of-two spacing chosen so the
// marks stay at least gridSpacing cells apart at the current zoom.
func drawGrid(v viewport.Viewport, theme Theme, put func(col, row int, s string)) {
	scale := v.Zoom * v.Config().BaseScale
	if scale <= 0 {
		return
	}
	step := 1.0
	for step*scale < gridSpacing {
		step *= 2
	}

	bounds := v.VisibleBounds()
	xFirst, xCount, okX := gridMarks(bounds.Min.X(), bounds.Max.X(), step)
	zFirst, zCount, okZ := gridMarks(bounds.Min.Y(), bounds.Max.Y(), step)
	if okX && okZ {
		mark := lipgloss.NewStyle().Foreground(theme.GridMarks).Render(gridGlyph)
		for i := range xCount {
			wx := (xFirst + float64(i)) * step
			for j := range zCount {
				col, row, visible := v.Cell(wx, (zFirst+float64(j))*step)
				if visible {
					put(col, row, mark)
				}
			}
		}
	}

	if col, row, visible := v.Cell(0, 0); visible {
		put(col, row, lipgloss.NewStyle().Foreground(theme.FaintText).Render(originGlyph))
	}
}

// maxGridMarks caps the marks drawn per axis.
const maxGridMarks = 1024

// gridMarks returns the first mark index and the number of marks of the given
// step inside [lo, hi]. It reports false when the range is not finite, or
// when the offset is so large that neighbouring marks are no longer
// distinguishable in float64.
func gridMarks(lo, hi, step float64) (first float64, count int, ok bool) {
	if math.IsNaN(lo) || math.IsNaN(hi) || math.IsInf(lo, 0) || math.IsInf(hi, 0) {
		return 0, 0, false
	}
	if lo+step == lo || hi+step == hi {
		return 0, 0, false
	}
	first = math.Ceil(lo / step)
	last := math.Floor(hi / step)
	span := last - first
	if span < 0 {
		return first, 0, true
	}
	if span >= maxGridMarks {
		return 0, 0, false
	}
	return first, int(span) + 1, true
}
