package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all key bindings of the console.
type KeyMap struct {
	PanLeft  key.Binding
	PanRight key.Binding
	PanUp    key.Binding
	PanDown  key.Binding
	ZoomIn   key.Binding
	ZoomOut  key.Binding
	Reset    key.Binding

	NextUnit key.Binding
	PrevUnit key.Binding
	Center   key.Binding
	Deselect key.Binding

	MoveTo    key.Binding
	CancelJob key.Binding
	GetStatus key.Binding

	Help key.Binding
	Quit key.Binding
}

// DefaultKeyMap is the built-in key binding set.
var DefaultKeyMap = KeyMap{
	PanLeft: key.NewBinding(
		key.WithKeys("left", "h"),
		key.WithHelp("←/h", "pan left"),
	),
	PanRight: key.NewBinding(
		key.WithKeys("right", "l"),
		key.WithHelp("→/l", "pan right"),
	),
	PanUp: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "pan up"),
	),
	PanDown: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "pan down"),
	),
	ZoomIn: key.NewBinding(
		key.WithKeys("+", "="),
		key.WithHelp("+", "zoom in"),
	),
	ZoomOut: key.NewBinding(
		key.WithKeys("-", "_"),
		key.WithHelp("-", "zoom out"),
	),
	Reset: key.NewBinding(
		key.WithKeys("0"),
		key.WithHelp("0", "reset view"),
	),
	NextUnit: key.NewBinding(
		key.WithKeys("tab", "n"),
		key.WithHelp("tab", "next unit"),
	),
	PrevUnit: key.NewBinding(
		key.WithKeys("shift+tab", "p"),
		key.WithHelp("S-tab", "prev unit"),
	),
	Center: key.NewBinding(
		key.WithKeys("c"),
		key.WithHelp("c", "center"),
	),
	Deselect: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "deselect"),
	),
	MoveTo: key.NewBinding(
		key.WithKeys("m"),
		key.WithHelp("m", "move to"),
	),
	CancelJob: key.NewBinding(
		key.WithKeys("x"),
		key.WithHelp("x", "cancel job"),
	),
	GetStatus: key.NewBinding(
		key.WithKeys("s"),
		key.WithHelp("s", "get status"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "help"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.NextUnit, k.MoveTo, k.CancelJob, k.GetStatus, k.ZoomIn, k.ZoomOut, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.PanLeft, k.PanRight, k.PanUp, k.PanDown},
		{k.ZoomIn, k.ZoomOut, k.Reset, k.Center},
		{k.NextUnit, k.PrevUnit, k.Deselect},
		{k.MoveTo, k.CancelJob, k.GetStatus},
		{k.Help, k.Quit},
	}
}

// action names an operator intent bound to a key.
type action int

const (
	actNone action = iota
	actPanLeft
	actPanRight
	actPanUp
	actPanDown
	actZoomIn
	actZoomOut
	actReset
	actNextUnit
	actPrevUnit
	actCenter
	actDeselect
	actMoveTo
	actCancelJob
	actGetStatus
	actHelp
	actQuit
)

type binding struct {
	key key.Binding
	act action
}

// table flattens the key map into an ordered binding → action list.
func (k KeyMap) table() []binding {
	return []binding{
		{k.Quit, actQuit},
		{k.PanLeft, actPanLeft},
		{k.PanRight, actPanRight},
		{k.PanUp, actPanUp},
		{k.PanDown, actPanDown},
		{k.ZoomIn, actZoomIn},
		{k.ZoomOut, actZoomOut},
		{k.Reset, actReset},
		{k.NextUnit, actNextUnit},
		{k.PrevUnit, actPrevUnit},
		{k.Center, actCenter},
		{k.Deselect, actDeselect},
		{k.MoveTo, actMoveTo},
		{k.CancelJob, actCancelJob},
		{k.GetStatus, actGetStatus},
		{k.Help, actHelp},
	}
}
