// Package tui is the interactive terminal console: a tactical map of the
// fleet, a unit list with a command center, and the event log. It reads
// published fleet snapshots and hands commands off to a Dispatcher; it
// never mutates fleet state itself.
package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Strob0t/fleetconsole/internal/domain"
	"github.com/Strob0t/fleetconsole/internal/domain/command"
	"github.com/Strob0t/fleetconsole/internal/domain/fleet"
	"github.com/Strob0t/fleetconsole/internal/domain/viewport"
	"github.com/Strob0t/fleetconsole/internal/port/cache"
)

// ConnSource reports the backend connection state.
type ConnSource interface {
	State() fleet.ConnState
	StateChanges() <-chan fleet.ConnState
}

// Dispatcher sends an operator command to the backend.
type Dispatcher interface {
	Dispatch(ctx context.Context, req command.Request) (command.Command, error)
}

// Options configures a Model.
type Options struct {
	Store      *fleet.Store
	Conn       ConnSource
	Dispatcher Dispatcher
	Viewport   viewport.Config

	// Frames memoizes rendered map frames. Optional.
	Frames cache.Frames

	Theme *Theme
	Keys  *KeyMap
	Now   func() time.Time
}

const (
	dispatchTimeout = 5 * time.Second
	clockInterval   = time.Second

	// Keyboard pan step in screen cells.
	panStepX = 4
	panStepY = 2
)

// Messages delivered to Update.
type (
	snapshotMsg      struct{}
	connStateMsg     fleet.ConnState
	tickMsg          time.Time
	commandResultMsg struct {
		req command.Request
		err error
	}
)

type dragState struct {
	active bool
	x, y   int
}

type notice struct {
	text  string
	level slog.Level
	seq   int
}

// Model is the bubbletea model of the console.
type Model struct {
	store      *fleet.Store
	conn       ConnSource
	dispatcher Dispatcher
	frames     cache.Frames
	now        func() time.Time

	theme    Theme
	keys     KeyMap
	bindings []binding
	help     help.Model

	width, height int

	snap      *fleet.Snapshot
	connState fleet.ConnState
	view      viewport.Viewport
	selection fleet.Selection
	form      moveForm
	drag      dragState
	notice    notice

	started time.Time
	clock   time.Time
}

// NewModel creates the console model.
func NewModel(opts Options) Model {
	theme := DefaultTheme
	if opts.Theme != nil {
		theme = *opts.Theme
	}
	keys := DefaultKeyMap
	if opts.Keys != nil {
		keys = *opts.Keys
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	m := Model{
		store:      opts.Store,
		conn:       opts.Conn,
		dispatcher: opts.Dispatcher,
		frames:     opts.Frames,
		now:        now,
		theme:      theme,
		keys:       keys,
		bindings:   keys.table(),
		help:       help.New(),
		snap:       opts.Store.Current(),
		view:       viewport.New(opts.Viewport, 0, 0),
		form:       newMoveForm(theme),
		started:    now(),
	}
	m.clock = m.started
	if opts.Conn != nil {
		m.connState = opts.Conn.State()
	}
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		listenForUpdates(m.store),
		listenForConnState(m.conn),
		tick(),
	)
}

// listenForUpdates waits for the next published snapshot. The store
// coalesces notifications, so the model always catches up to the latest
// version rather than replaying each one.
func listenForUpdates(store *fleet.Store) tea.Cmd {
	return func() tea.Msg {
		<-store.Updates()
		return snapshotMsg{}
	}
}

func listenForConnState(conn ConnSource) tea.Cmd {
	if conn == nil {
		return nil
	}
	return func() tea.Msg {
		state, ok := <-conn.StateChanges()
		if !ok {
			return nil
		}
		return connStateMsg(state)
	}
}

func tick() tea.Cmd {
	return tea.Tick(clockInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// dispatch sends req off the UI goroutine.
func dispatch(d Dispatcher, req command.Request) tea.Cmd {
	if d == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		defer cancel()
		_, err := d.Dispatch(ctx, req)
		return commandResultMsg{req: req, err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case snapshotMsg:
		m.refresh()
		return m, listenForUpdates(m.store)

	case connStateMsg:
		m.connState = fleet.ConnState(msg)
		return m, listenForConnState(m.conn)

	case tickMsg:
		m.clock = time.Time(msg)
		return m, tick()

	case commandResultMsg:
		text, level := describeResult(msg.req, msg.err)
		cmd := m.setNotice(text, level)
		return m, cmd

	case logRecordMsg:
		cmd := m.setNotice(msg.Summary, msg.Level)
		return m, cmd

	case noticeFadeMsg:
		if msg.seq == m.notice.seq {
			m.notice.text = ""
		}
		return m, nil

	case tea.KeyMsg:
		if m.form.active {
			return m.handleFormKey(msg)
		}
		return m.handleKey(msg)

	case tea.MouseMsg:
		return m.handleMouse(msg)
	}

	if m.form.active {
		cmd := m.form.update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height
	if m.frames != nil {
		m.frames.Invalidate()
	}
	m.help.Width = width
	l := computeLayout(width, height)
	m.view.Resize(l.mapW, l.mapH)
}

// refresh adopts the latest snapshot and drops a selection whose agent is gone.
func (m *Model) refresh() {
	snap := m.store.Current()
	if snap.Version() == m.snap.Version() {
		return
	}
	m.snap = snap
	m.selection = m.selection.Prune(m.snap)
	if _, ok := m.selection.ID(); !ok && m.form.active {
		m.form.close()
	}
}

func (m *Model) setNotice(text string, level slog.Level) tea.Cmd {
	m.notice.seq++
	m.notice.text = text
	m.notice.level = level
	seq := m.notice.seq
	return tea.Tick(noticeFadeDelay, func(time.Time) tea.Msg { return noticeFadeMsg{seq: seq} })
}

func describeResult(req command.Request, err error) (string, slog.Level) {
	var verr *command.ValidationError
	switch {
	case err == nil:
		return fmt.Sprintf("Command '%s' sent to bot %d.", req.Kind, req.AgentIndex), slog.LevelInfo
	case errors.As(err, &verr):
		return fmt.Sprintf("Invalid %s for bot %d: %s", req.Kind, req.AgentIndex, verr.Reason), slog.LevelWarn
	case errors.Is(err, domain.ErrNotConnected):
		return fmt.Sprintf("Not connected: '%s' for bot %d was not sent.", req.Kind, req.AgentIndex), slog.LevelWarn
	default:
		return fmt.Sprintf("Command '%s' for bot %d failed: %v", req.Kind, req.AgentIndex, err), slog.LevelError
	}
}

func (m Model) selected() (fleet.Agent, bool) {
	return m.selection.Resolve(m.snap)
}

func (m *Model) selectAgent(a fleet.Agent, center bool) {
	m.selection = fleet.Select(a.ID)
	if center {
		m.view.CenterOn(a)
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	for _, b := range m.bindings {
		if key.Matches(msg, b.key) {
			return m.perform(b.act)
		}
	}
	return m, nil
}

// perform executes one operator action. Every key binding and several mouse
// gestures route through here.
func (m Model) perform(act action) (tea.Model, tea.Cmd) {
	switch act {
	case actQuit:
		return m, tea.Quit
	case actPanLeft:
		m.view.Pan(panStepX, 0)
	case actPanRight:
		m.view.Pan(-panStepX, 0)
	case actPanUp:
		m.view.Pan(0, panStepY)
	case actPanDown:
		m.view.Pan(0, -panStepY)
	case actZoomIn:
		m.view.ZoomIn()
	case actZoomOut:
		m.view.ZoomOut()
	case actReset:
		m.view = viewport.New(m.view.Config(), m.view.Width, m.view.Height)
	case actNextUnit, actPrevUnit:
		m.cycleSelection(act == actNextUnit)
	case actCenter:
		if a, ok := m.selected(); ok {
			m.view.CenterOn(a)
		}
	case actDeselect:
		m.selection = fleet.Selection{}
	case actMoveTo:
		a, ok := m.selected()
		if !ok {
			cmd := m.setNotice("Select a unit first.", slog.LevelWarn)
			return m, cmd
		}
		cmd := m.form.open(a)
		return m, cmd
	case actCancelJob, actGetStatus:
		a, ok := m.selected()
		if !ok {
			cmd := m.setNotice("Select a unit first.", slog.LevelWarn)
			return m, cmd
		}
		kind := command.KindCancelJob
		if act == actGetStatus {
			kind = command.KindGetStatus
		}
		return m, dispatch(m.dispatcher, command.Request{AgentIndex: a.Index, Kind: kind})
	case actHelp:
		m.help.ShowAll = !m.help.ShowAll
	}
	return m, nil
}

func (m *Model) cycleSelection(forward bool) {
	agents := m.snap.Agents()
	if len(agents) == 0 {
		return
	}
	pos := -1
	if id, ok := m.selection.ID(); ok {
		for i, a := range agents {
			if a.ID == id {
				pos = i
				break
			}
		}
	}
	switch {
	case pos < 0 && forward:
		pos = 0
	case pos < 0:
		pos = len(agents) - 1
	case forward:
		pos = (pos + 1) % len(agents)
	default:
		pos = (pos - 1 + len(agents)) % len(agents)
	}
	m.selectAgent(agents[pos], true)
}

func (m Model) handleFormKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.form.close()
		return m, nil
	case tea.KeyTab, tea.KeyDown:
		cmd := m.form.focusNext(1)
		return m, cmd
	case tea.KeyShiftTab, tea.KeyUp:
		cmd := m.form.focusNext(-1)
		return m, cmd
	case tea.KeyEnter:
		req := m.form.request()
		if _, err := command.Validate(req); err != nil {
			text, level := describeResult(req, err)
			cmd := m.setNotice(text, level)
			return m, cmd
		}
		m.form.close()
		return m, dispatch(m.dispatcher, req)
	case tea.KeyCtrlC:
		return m, tea.Quit
	}
	cmd := m.form.update(msg)
	return m, cmd
}

func (m Model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	l := computeLayout(m.width, m.height)

	switch msg.Button {
	case tea.MouseButtonWheelUp:
		if l.inMap(msg.X, msg.Y) {
			m.view.ZoomIn()
		}
		return m, nil
	case tea.MouseButtonWheelDown:
		if l.inMap(msg.X, msg.Y) {
			m.view.ZoomOut()
		}
		return m, nil
	}

	switch msg.Action {
	case tea.MouseActionPress:
		if msg.Button != tea.MouseButtonLeft {
			return m, nil
		}
		if l.inMap(msg.X, msg.Y) {
			col, row := l.mapCell(msg.X, msg.Y)
			if a, ok := m.view.HitTest(float64(col)+0.5, float64(row)+0.5, m.snap.Agents()); ok {
				m.selectAgent(a, false)
				return m, nil
			}
			m.drag = dragState{active: true, x: msg.X, y: msg.Y}
			return m, nil
		}
		if row, ok := l.unitRow(msg.X, msg.Y); ok {
			agents := m.snap.Agents()
			i := unitScroll(agents, m.selection, l.unitRows) + row
			if i < len(agents) {
				m.selectAgent(agents[i], true)
			}
		}

	case tea.MouseActionMotion:
		if m.drag.active {
			m.view.Pan(float64(msg.X-m.drag.x), float64(msg.Y-m.drag.y))
			m.drag.x, m.drag.y = msg.X, msg.Y
		}

	case tea.MouseActionRelease:
		m.drag.active = false
	}
	return m, nil
}
