package tui

import (
	"math"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Strob0t/fleetconsole/internal/domain/command"
	"github.com/Strob0t/fleetconsole/internal/domain/fleet"
)

var axes = [3]string{"x", "y", "z"}

// moveForm collects move_to target coordinates for one agent.
type moveForm struct {
	active bool
	agent  int
	inputs [3]textinput.Model
	focus  int
	theme  Theme
}

func newMoveForm(theme Theme) moveForm {
	f := moveForm{theme: theme}
	for i, axis := range axes {
		in := textinput.New()
		in.Prompt = strings.ToUpper(axis) + ": "
		in.Placeholder = "0"
		in.CharLimit = 8
		in.Width = 8
		f.inputs[i] = in
	}
	return f
}

// open shows the form for a, prefilled with its rounded current position.
func (f *moveForm) open(a fleet.Agent) tea.Cmd {
	f.active = true
	f.agent = a.Index
	for i, v := range [3]float64{a.Position.X, a.Position.Y, a.Position.Z} {
		f.inputs[i].SetValue(strconv.Itoa(int(math.Round(v))))
		f.inputs[i].Blur()
	}
	f.focus = 0
	return f.inputs[0].Focus()
}

func (f *moveForm) close() {
	f.active = false
	for i := range f.inputs {
		f.inputs[i].Blur()
	}
}

func (f *moveForm) focusNext(delta int) tea.Cmd {
	f.inputs[f.focus].Blur()
	f.focus = (f.focus + delta + len(f.inputs)) % len(f.inputs)
	return f.inputs[f.focus].Focus()
}

func (f *moveForm) update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return cmd
}

// request builds the move_to request from the raw field text. Validation is
// left to command.Validate.
func (f moveForm) request() command.Request {
	params := make(map[string]any, len(axes))
	for i, axis := range axes {
		params[axis] = f.inputs[i].Value()
	}
	return command.Request{AgentIndex: f.agent, Kind: command.KindMoveTo, Params: params}
}

func (f moveForm) View() string {
	title := lipgloss.NewStyle().Bold(true).Foreground(f.theme.NoticeForeground)
	hint := lipgloss.NewStyle().Foreground(f.theme.HelpText)

	lines := []string{title.Render("Move bot " + strconv.Itoa(f.agent) + " to")}
	for _, in := range f.inputs {
		lines = append(lines, in.View())
	}
	lines = append(lines, hint.Render("enter send · tab next · esc cancel"))
	return strings.Join(lines, "\n")
}
