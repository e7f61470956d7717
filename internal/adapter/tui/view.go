package tui

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/Strob0t/fleetconsole/internal/domain/fleet"
)

func (m Model) View() string {
	if m.width < minWidth || m.height < minHeight {
		return fmt.Sprintf("Terminal too small (%dx%d, need %dx%d).", m.width, m.height, minWidth, minHeight)
	}
	l := computeLayout(m.width, m.height)

	mapBox := m.theme.border().
		Width(l.mapW).
		Height(l.mapH).
		Render(m.renderMap())

	side := lipgloss.JoinVertical(lipgloss.Left,
		m.box(l.sideInnerWidth, l.unitsOuterH-2, m.renderUnits(l)),
		m.box(l.sideInnerWidth, l.detailOuterH-2, m.renderDetail(l.sideInnerWidth)),
	)

	bottom := m.renderLog(l)
	if m.help.ShowAll {
		bottom = m.help.View(m.keys)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderTopBar(),
		lipgloss.JoinHorizontal(lipgloss.Top, mapBox, side),
		m.box(l.logOuterW-2, logOuterHeight-2, bottom),
		m.renderStatusLine(),
	)
}

func (m Model) box(width, height int, content string) string {
	return m.theme.border().
		Width(width).
		Height(height).
		MaxHeight(height + 2).
		Render(content)
}

func (m Model) renderTopBar() string {
	conn := lipgloss.NewStyle().
		Foreground(m.theme.ConnColor(m.connState)).
		Background(m.theme.HeaderBackground).
		Render("● " + strings.ToUpper(m.connState.String()))

	task := m.snap.Task()
	started := task.StartedAt
	if started.IsZero() {
		started = m.started
	}
	running := "idle"
	if task.Running {
		running = "running"
	}

	parts := []string{
		"FLEET CONSOLE",
		conn,
		fmt.Sprintf("Bots %d", m.snap.Len()),
		fmt.Sprintf("Blocks %d/%d (%s)", task.CompletedBlocks, task.TotalBlocks, running),
		"Elapsed " + formatElapsed(m.clock.Sub(started)),
	}
	sep := lipgloss.NewStyle().Foreground(m.theme.FaintText).Background(m.theme.HeaderBackground).Render(" │ ")
	return lipgloss.NewStyle().
		Foreground(m.theme.HeaderForeground).
		Background(m.theme.HeaderBackground).
		Bold(true).
		Width(m.width).
		MaxWidth(m.width).
		Render(" " + strings.Join(parts, sep))
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	s := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, s/60%60, s%60)
}

// unitScroll returns the first visible list index that keeps the selected
// agent on screen.
func unitScroll(agents []fleet.Agent, sel fleet.Selection, rows int) int {
	id, ok := sel.ID()
	if !ok || rows <= 0 {
		return 0
	}
	for i, a := range agents {
		if a.ID == id {
			return max(i-rows+1, 0)
		}
	}
	return 0
}

func (m Model) renderUnits(l layout) string {
	title := lipgloss.NewStyle().Bold(true).Foreground(m.theme.HeaderForeground)
	lines := []string{title.Render(fmt.Sprintf("UNITS (%d)", m.snap.Len()))}

	agents := m.snap.Agents()
	selID, _ := m.selection.ID()
	start := unitScroll(agents, m.selection, l.unitRows)
	for i := start; i < len(agents) && i < start+l.unitRows; i++ {
		a := agents[i]
		status := lipgloss.NewStyle().Foreground(m.theme.StatusColor(a.Status)).Render(fmt.Sprintf("%-5s", a.Status))
		pos := fmt.Sprintf("(%.0f, %.0f)", a.Position.X, a.Position.Z)
		line := fmt.Sprintf("  %-10s %s %s", a.ID, status, pos)
		if a.ID == selID {
			line = lipgloss.NewStyle().
				Foreground(m.theme.SelectedForeground).
				Background(m.theme.SelectedBackground).
				Render(fmt.Sprintf("▶ %-10s %-5s %s", a.ID, a.Status, pos))
		}
		lines = append(lines, ansi.Truncate(line, l.sideInnerWidth, "…"))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderDetail(width int) string {
	title := lipgloss.NewStyle().Bold(true).Foreground(m.theme.HeaderForeground)
	faint := lipgloss.NewStyle().Foreground(m.theme.FaintText)
	lines := []string{title.Render("COMMAND CENTER")}

	a, ok := m.selected()
	if !ok {
		lines = append(lines,
			faint.Render("No unit selected."),
			faint.Render("Click a unit or press tab."))
		return strings.Join(lines, "\n")
	}

	if m.form.active {
		lines = append(lines, m.form.View())
		return strings.Join(lines, "\n")
	}

	status := lipgloss.NewStyle().Foreground(m.theme.StatusColor(a.Status)).Bold(true).Render(string(a.Status))
	for _, line := range []string{
		"Unit:   " + a.ID,
		"Status: " + status,
		"Pos:    " + a.Position.String(),
		"Job:    " + a.CurrentJob,
		"Last:   " + a.LastEvent,
	} {
		lines = append(lines, ansi.Truncate(line, width, "…"))
	}
	lines = append(lines, "", faint.Render("m move · x cancel · s status"))
	return strings.Join(lines, "\n")
}

func (m Model) renderLog(l layout) string {
	title := lipgloss.NewStyle().Bold(true).Foreground(m.theme.HeaderForeground)
	stamp := lipgloss.NewStyle().Foreground(m.theme.FaintText)
	lines := []string{title.Render("EVENT LOG")}

	events := m.snap.Events()
	if n := len(events); n > l.logRows {
		events = events[n-l.logRows:]
	}
	for _, e := range events {
		line := stamp.Render(e.At.Format("15:04:05")) + " " + e.Message
		lines = append(lines, ansi.Truncate(line, l.logOuterW-2, "…"))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderStatusLine() string {
	if m.notice.text == "" {
		short := m.help
		short.ShowAll = false
		return short.View(m.keys)
	}
	color := m.theme.NoticeForeground
	if m.notice.level >= slog.LevelWarn {
		color = m.theme.ErrorForeground
	}
	return lipgloss.NewStyle().
		Foreground(color).
		MaxWidth(m.width).
		Render(ansi.Truncate(m.notice.text, m.width, "…"))
}
