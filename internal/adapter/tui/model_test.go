package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"

	"github.com/Strob0t/fleetconsole/internal/domain"
	"github.com/Strob0t/fleetconsole/internal/domain/command"
	"github.com/Strob0t/fleetconsole/internal/domain/fleet"
	"github.com/Strob0t/fleetconsole/internal/domain/viewport"
)

type fakeConn struct {
	state   fleet.ConnState
	changes chan fleet.ConnState
}

func (c *fakeConn) State() fleet.ConnState               { return c.state }
func (c *fakeConn) StateChanges() <-chan fleet.ConnState { return c.changes }

type fakeDispatcher struct {
	mu   sync.Mutex
	reqs []command.Request
	err  error
}

func (d *fakeDispatcher) Dispatch(_ context.Context, req command.Request) (command.Command, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reqs = append(d.reqs, req)
	if d.err != nil {
		return command.Command{}, d.err
	}
	return command.Validate(req)
}

func (d *fakeDispatcher) requests() []command.Request {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]command.Request(nil), d.reqs...)
}

type fakeFrames struct {
	entries     map[string]string
	hits, sets  int
	invalidated int
}

func (f *fakeFrames) Frame(key string) (string, bool) {
	v, ok := f.entries[key]
	if ok {
		f.hits++
	}
	return v, ok
}

func (f *fakeFrames) StoreFrame(key, frame string) {
	if f.entries == nil {
		f.entries = map[string]string{}
	}
	f.entries[key] = frame
	f.sets++
}

func (f *fakeFrames) Invalidate() {
	f.entries = nil
	f.invalidated++
}

// testStore returns a fleet of three agents:
// worker_0 at the origin, worker_1 at (50, 20), worker_2 at (-100, -40).
func testStore() *fleet.Store {
	store := fleet.NewStore(50)
	store.Apply(func(tx *fleet.Tx) {
		tx.Reset(3)
		for id, pos := range map[string]fleet.Position{
			"worker_1": {X: 50, Y: 64, Z: 20},
			"worker_2": {X: -100, Y: 64, Z: -40},
		} {
			a, _ := tx.Agent(id)
			a.Position = pos
			tx.Put(a)
		}
	})
	return store
}

// newTestModel returns a 120x40 model. The map is 80x28 cells, so the world
// origin maps to map cell (40, 14) at zoom 1.
func newTestModel(t *testing.T, opts Options) (Model, *fakeDispatcher) {
	t.Helper()
	disp := &fakeDispatcher{}
	if opts.Store == nil {
		opts.Store = testStore()
	}
	if opts.Conn == nil {
		opts.Conn = &fakeConn{state: fleet.Connected, changes: make(chan fleet.ConnState, 1)}
	}
	if opts.Dispatcher == nil {
		opts.Dispatcher = disp
	}
	model := NewModel(opts)
	updated, _ := model.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return updated.(Model), disp
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func send(t *testing.T, model Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	updated, cmd := model.Update(msg)
	return updated.(Model), cmd
}

func TestModelLayoutSizesViewport(t *testing.T) {
	model, _ := newTestModel(t, Options{})
	if model.view.Width != 80 || model.view.Height != 28 {
		t.Fatalf("expected 80x28 map, got %dx%d", model.view.Width, model.view.Height)
	}
}

func TestModelQuit(t *testing.T) {
	model, _ := newTestModel(t, Options{})
	_, cmd := send(t, model, keyRunes("q"))
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should quit")
	}
}

func TestModelZoomKeys(t *testing.T) {
	model, _ := newTestModel(t, Options{})

	model, _ = send(t, model, keyRunes("+"))
	if got := model.view.Zoom; got != viewport.ZoomInFactor {
		t.Errorf("zoom after + = %v, want %v", got, viewport.ZoomInFactor)
	}
	model, _ = send(t, model, keyRunes("0"))
	if model.view.Zoom != 1 {
		t.Errorf("reset should restore zoom 1, got %v", model.view.Zoom)
	}
	model, _ = send(t, model, keyRunes("-"))
	if got := model.view.Zoom; got != viewport.ZoomOutFactor {
		t.Errorf("zoom after - = %v, want %v", got, viewport.ZoomOutFactor)
	}
}

func TestModelPanKeys(t *testing.T) {
	model, _ := newTestModel(t, Options{})

	model, _ = send(t, model, tea.KeyMsg{Type: tea.KeyLeft})
	// 4 cells at 0.2 cells per world unit.
	if model.view.OffsetX != -20 {
		t.Errorf("left should look left: offsetX = %v, want -20", model.view.OffsetX)
	}
	model, _ = send(t, model, keyRunes("j"))
	if model.view.OffsetY != 10 {
		t.Errorf("j should look down: offsetY = %v, want 10", model.view.OffsetY)
	}
}

func TestModelCycleSelectionCenters(t *testing.T) {
	model, _ := newTestModel(t, Options{})

	model, _ = send(t, model, tea.KeyMsg{Type: tea.KeyTab})
	model, _ = send(t, model, tea.KeyMsg{Type: tea.KeyTab})
	if id, _ := model.selection.ID(); id != "worker_1" {
		t.Fatalf("expected worker_1 selected, got %q", id)
	}
	if model.view.OffsetX != 50 || model.view.OffsetY != 20 {
		t.Errorf("expected view centered on (50, 20), got (%v, %v)", model.view.OffsetX, model.view.OffsetY)
	}

	model, _ = send(t, model, tea.KeyMsg{Type: tea.KeyShiftTab})
	model, _ = send(t, model, tea.KeyMsg{Type: tea.KeyShiftTab})
	if id, _ := model.selection.ID(); id != "worker_2" {
		t.Errorf("shift+tab should wrap to worker_2, got %q", id)
	}

	model, _ = send(t, model, tea.KeyMsg{Type: tea.KeyEsc})
	if _, ok := model.selection.ID(); ok {
		t.Error("esc should clear the selection")
	}
}

func TestModelMouseClickSelectsAgent(t *testing.T) {
	model, _ := newTestModel(t, Options{})
	l := computeLayout(model.width, model.height)

	// worker_1 at world (50, 20) maps to cell (50, 18).
	model, _ = send(t, model, tea.MouseMsg{
		X:      l.mapX + 50,
		Y:      l.mapY + 18,
		Button: tea.MouseButtonLeft,
		Action: tea.MouseActionPress,
	})
	if id, _ := model.selection.ID(); id != "worker_1" {
		t.Fatalf("click on worker_1 should select it, got %q", id)
	}
	if model.drag.active {
		t.Error("click on an agent should not start a drag")
	}
	if model.view.OffsetX != 0 || model.view.OffsetY != 0 {
		t.Error("map click should not recenter the view")
	}
}

func TestModelMouseDragPans(t *testing.T) {
	model, _ := newTestModel(t, Options{})
	l := computeLayout(model.width, model.height)
	x, y := l.mapX+70, l.mapY+2

	model, _ = send(t, model, tea.MouseMsg{X: x, Y: y, Button: tea.MouseButtonLeft, Action: tea.MouseActionPress})
	if _, ok := model.selection.ID(); ok {
		t.Fatal("click on empty map should select nothing")
	}
	if !model.drag.active {
		t.Fatal("click on empty map should start a drag")
	}

	model, _ = send(t, model, tea.MouseMsg{X: x + 10, Y: y, Button: tea.MouseButtonLeft, Action: tea.MouseActionMotion})
	if model.view.OffsetX != -50 {
		t.Errorf("dragging 10 cells right should move offsetX to -50, got %v", model.view.OffsetX)
	}

	model, _ = send(t, model, tea.MouseMsg{X: x + 10, Y: y, Button: tea.MouseButtonLeft, Action: tea.MouseActionRelease})
	model, _ = send(t, model, tea.MouseMsg{X: x + 30, Y: y, Button: tea.MouseButtonNone, Action: tea.MouseActionMotion})
	if model.view.OffsetX != -50 {
		t.Errorf("motion after release should not pan, got %v", model.view.OffsetX)
	}
}

func TestModelMouseWheelZooms(t *testing.T) {
	model, _ := newTestModel(t, Options{})
	l := computeLayout(model.width, model.height)

	model, _ = send(t, model, tea.MouseMsg{X: l.mapX + 5, Y: l.mapY + 5, Button: tea.MouseButtonWheelUp, Action: tea.MouseActionPress})
	if model.view.Zoom <= 1 {
		t.Errorf("wheel up should zoom in, got %v", model.view.Zoom)
	}

	// Outside the map the wheel is ignored.
	before := model.view.Zoom
	model, _ = send(t, model, tea.MouseMsg{X: l.sideX + 3, Y: l.unitsY, Button: tea.MouseButtonWheelDown, Action: tea.MouseActionPress})
	if model.view.Zoom != before {
		t.Errorf("wheel outside the map should not zoom")
	}
}

func TestModelUnitListClickSelectsAndCenters(t *testing.T) {
	model, _ := newTestModel(t, Options{})
	l := computeLayout(model.width, model.height)

	model, _ = send(t, model, tea.MouseMsg{
		X:      l.sideX + 3,
		Y:      l.unitsY + 2,
		Button: tea.MouseButtonLeft,
		Action: tea.MouseActionPress,
	})
	if id, _ := model.selection.ID(); id != "worker_2" {
		t.Fatalf("expected worker_2 selected, got %q", id)
	}
	if model.view.OffsetX != -100 || model.view.OffsetY != -40 {
		t.Errorf("expected view centered on worker_2, got (%v, %v)", model.view.OffsetX, model.view.OffsetY)
	}
}

func TestModelCommandKeysDispatch(t *testing.T) {
	tests := []struct {
		key  string
		kind command.Kind
	}{
		{"x", command.KindCancelJob},
		{"s", command.KindGetStatus},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			model, disp := newTestModel(t, Options{})
			model, _ = send(t, model, tea.KeyMsg{Type: tea.KeyTab})

			model, cmd := send(t, model, keyRunes(tt.key))
			if cmd == nil {
				t.Fatal("expected a dispatch command")
			}
			result, ok := cmd().(commandResultMsg)
			if !ok {
				t.Fatal("expected commandResultMsg")
			}
			reqs := disp.requests()
			if len(reqs) != 1 || reqs[0].Kind != tt.kind || reqs[0].AgentIndex != 0 {
				t.Fatalf("unexpected requests %+v", reqs)
			}

			model, _ = send(t, model, result)
			if !strings.Contains(model.notice.text, "sent to bot 0") {
				t.Errorf("unexpected notice %q", model.notice.text)
			}
		})
	}
}

func TestModelCommandWithoutSelection(t *testing.T) {
	model, disp := newTestModel(t, Options{})
	model, _ = send(t, model, keyRunes("x"))
	if len(disp.requests()) != 0 {
		t.Error("no command should be dispatched without a selection")
	}
	if !strings.Contains(model.notice.text, "Select a unit") {
		t.Errorf("unexpected notice %q", model.notice.text)
	}
}

func TestModelNotConnectedIsSurfaced(t *testing.T) {
	disp := &fakeDispatcher{err: fmt.Errorf("dispatch cancel_job to bot 0: %w", domain.ErrNotConnected)}
	model, _ := newTestModel(t, Options{Dispatcher: disp})
	model, _ = send(t, model, tea.KeyMsg{Type: tea.KeyTab})

	_, cmd := send(t, model, keyRunes("x"))
	model, _ = send(t, model, cmd())
	if !strings.HasPrefix(model.notice.text, "Not connected") {
		t.Errorf("unexpected notice %q", model.notice.text)
	}
}

func TestModelMoveForm(t *testing.T) {
	model, disp := newTestModel(t, Options{})
	model, _ = send(t, model, tea.KeyMsg{Type: tea.KeyTab})
	model, _ = send(t, model, tea.KeyMsg{Type: tea.KeyTab})
	model, _ = send(t, model, keyRunes("m"))
	if !model.form.active {
		t.Fatal("m should open the move form")
	}
	for i, want := range []string{"50", "64", "20"} {
		if got := model.form.inputs[i].Value(); got != want {
			t.Errorf("input %s prefilled with %q, want %q", axes[i], got, want)
		}
	}

	// Keys go to the form while it is open.
	model, _ = send(t, model, keyRunes("q"))
	if !model.form.active {
		t.Fatal("typing q in the form should not quit or close it")
	}

	model.form.inputs[0].SetValue("75")
	model, cmd := send(t, model, tea.KeyMsg{Type: tea.KeyEnter})
	if model.form.active {
		t.Error("enter should close the form")
	}
	if _, ok := cmd().(commandResultMsg); !ok {
		t.Fatal("expected commandResultMsg")
	}
	reqs := disp.requests()
	if len(reqs) != 1 {
		t.Fatalf("expected 1 request, got %d", len(reqs))
	}
	cmdOut, err := command.Validate(reqs[0])
	if err != nil {
		t.Fatalf("dispatched request invalid: %v", err)
	}
	if cmdOut.AgentIndex != 1 || cmdOut.Target != [3]int{75, 64, 20} {
		t.Errorf("unexpected command %+v", cmdOut)
	}
}

func TestModelMoveFormRejectsInvalidInput(t *testing.T) {
	model, disp := newTestModel(t, Options{})
	model, _ = send(t, model, tea.KeyMsg{Type: tea.KeyTab})
	model, _ = send(t, model, keyRunes("m"))

	model.form.inputs[1].SetValue("abc")
	model, _ = send(t, model, tea.KeyMsg{Type: tea.KeyEnter})
	if !model.form.active {
		t.Error("invalid input should keep the form open")
	}
	if len(disp.requests()) != 0 {
		t.Error("invalid input should not be dispatched")
	}
	if !strings.HasPrefix(model.notice.text, "Invalid move_to") {
		t.Errorf("unexpected notice %q", model.notice.text)
	}

	model, _ = send(t, model, tea.KeyMsg{Type: tea.KeyEsc})
	if model.form.active {
		t.Error("esc should close the form")
	}
}

func TestModelSnapshotPrunesSelection(t *testing.T) {
	store := testStore()
	model, _ := newTestModel(t, Options{Store: store})
	model, _ = send(t, model, tea.KeyMsg{Type: tea.KeyShiftTab})
	if id, _ := model.selection.ID(); id != "worker_2" {
		t.Fatalf("expected worker_2 selected, got %q", id)
	}

	store.Apply(func(tx *fleet.Tx) { tx.Reset(2) })
	model, cmd := send(t, model, snapshotMsg{})
	if cmd == nil {
		t.Error("snapshot handling should re-arm the listener")
	}
	if model.snap.Len() != 2 {
		t.Errorf("expected 2 agents after refresh, got %d", model.snap.Len())
	}
	if _, ok := model.selection.ID(); ok {
		t.Error("selection of a vanished agent should resolve to none")
	}
}

func TestModelConnStateAndNoticeFade(t *testing.T) {
	model, _ := newTestModel(t, Options{})
	model, _ = send(t, model, connStateMsg(fleet.Connecting))
	if model.connState != fleet.Connecting {
		t.Errorf("expected connecting, got %s", model.connState)
	}

	model, _ = send(t, model, logRecordMsg{Summary: "backend dial failed"})
	first := model.notice.seq
	model, _ = send(t, model, logRecordMsg{Summary: "second"})

	model, _ = send(t, model, noticeFadeMsg{seq: first})
	if model.notice.text != "second" {
		t.Errorf("stale fade should not clear a newer notice, got %q", model.notice.text)
	}
	model, _ = send(t, model, noticeFadeMsg{seq: model.notice.seq})
	if model.notice.text != "" {
		t.Errorf("fade should clear the notice, got %q", model.notice.text)
	}
}

func TestModelView(t *testing.T) {
	store := testStore()
	store.Apply(func(tx *fleet.Tx) {
		tx.AppendEvent(fleet.Event{At: time.Now(), AgentIndex: 0, Message: "Bot 0 started job: move_to"})
	})
	model, _ := newTestModel(t, Options{Store: store})
	model, _ = send(t, model, tea.KeyMsg{Type: tea.KeyTab})

	view := ansi.Strip(model.View())
	for _, want := range []string{"FLEET CONSOLE", "CONNECTED", "worker_2", "COMMAND CENTER", "Unit:   worker_0", "Bot 0 started job: move_to"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestModelViewTooSmall(t *testing.T) {
	model, _ := newTestModel(t, Options{})
	model, _ = send(t, model, tea.WindowSizeMsg{Width: 30, Height: 10})
	if !strings.HasPrefix(model.View(), "Terminal too small") {
		t.Error("expected too-small notice")
	}
}

func TestModelMapFrameCache(t *testing.T) {
	frames := &fakeFrames{}
	model, _ := newTestModel(t, Options{Frames: frames})
	if frames.invalidated != 1 {
		t.Errorf("resize should invalidate cached frames, got %d", frames.invalidated)
	}

	_ = model.View()
	_ = model.View()
	if frames.sets != 1 || frames.hits != 1 {
		t.Errorf("expected 1 set and 1 hit, got %d sets and %d hits", frames.sets, frames.hits)
	}

	model, _ = send(t, model, keyRunes("+"))
	_ = model.View()
	if frames.sets != 2 {
		t.Errorf("zoom change should render a new frame, got %d sets", frames.sets)
	}
}

func TestDescribeResult(t *testing.T) {
	req := command.Request{AgentIndex: 3, Kind: command.KindGetStatus}
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"success", nil, "Command 'get_status' sent to bot 3."},
		{"validation", &command.ValidationError{Field: "x", Reason: "required"}, "Invalid get_status for bot 3: required"},
		{"not connected", domain.ErrNotConnected, "Not connected: 'get_status' for bot 3 was not sent."},
		{"send failed", errors.New("broken pipe"), "Command 'get_status' for bot 3 failed: broken pipe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := describeResult(req, tt.err)
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
