package ws

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/Strob0t/fleetconsole/internal/domain"
	"github.com/Strob0t/fleetconsole/internal/domain/fleet"
	"github.com/Strob0t/fleetconsole/internal/resilience"
	"github.com/Strob0t/fleetconsole/internal/service"
)

// fakeConn is an in-memory Conn. Frames pushed to in are returned by Read.
type fakeConn struct {
	in       chan []byte
	closed   chan struct{}
	once     sync.Once
	writeErr error

	mu      sync.Mutex
	written [][]byte
}

func newFakeConn() *fakeConn {
	return &fakeConn{in: make(chan []byte, 16), closed: make(chan struct{})}
}

func (c *fakeConn) Read(ctx context.Context) ([]byte, error) {
	select {
	case data := <-c.in:
		return data, nil
	case <-c.closed:
		return nil, errors.New("connection closed")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *fakeConn) Write(_ context.Context, data []byte) error {
	if c.writeErr != nil {
		return c.writeErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, data)
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

// fakeDialer fails the first `failures` attempts, then hands out conns.
type fakeDialer struct {
	mu       sync.Mutex
	failures int
	attempts int
	conns    []*fakeConn
	block    bool // block until the dial context expires instead of failing
}

func (d *fakeDialer) Dial(ctx context.Context, _ string) (Conn, error) {
	d.mu.Lock()
	d.attempts++
	fail := d.attempts <= d.failures
	block := d.block && fail
	d.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if fail {
		return nil, errors.New("connection refused")
	}

	c := newFakeConn()
	d.mu.Lock()
	d.conns = append(d.conns, c)
	d.mu.Unlock()
	return c, nil
}

func (d *fakeDialer) attemptCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.attempts
}

func (d *fakeDialer) conn(i int) *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[i]
}

// recordSleeps replaces the manager's wait with one that records the delay.
func recordSleeps(m *Manager) *[]time.Duration {
	var mu sync.Mutex
	var delays []time.Duration
	m.sleep = func(ctx context.Context, d time.Duration) error {
		mu.Lock()
		delays = append(delays, d)
		mu.Unlock()
		return ctx.Err()
	}
	return &delays
}

func waitForState(t *testing.T, m *Manager, want fleet.ConnState) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if m.State() == want {
			return
		}
		select {
		case <-m.StateChanges():
		case <-time.After(5 * time.Millisecond):
		case <-deadline:
			t.Fatalf("timed out waiting for state %s (current %s)", want, m.State())
		}
	}
}

func TestReconnectLiveness(t *testing.T) {
	const failures = 3
	dialer := &fakeDialer{failures: failures}
	connected := make(chan int, 1)

	m := NewManager(Options{
		URL:         "ws://fleet.test",
		FleetSize:   4,
		Backoff:     resilience.NewBackoff(2*time.Second, 30*time.Second, 2),
		Dialer:      dialer.Dial,
		OnConnected: func(_ context.Context, n int) { connected <- n },
	})
	delays := recordSleeps(m)

	m.Connect(context.Background())
	defer m.Close()

	select {
	case n := <-connected:
		if n != 4 {
			t.Errorf("expected fleet size 4, got %d", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("manager never connected")
	}

	if got := dialer.attemptCount(); got != failures+1 {
		t.Errorf("expected %d attempts, got %d", failures+1, got)
	}
	want := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}
	if len(*delays) != len(want) {
		t.Fatalf("expected %d retry waits, got %v", len(want), *delays)
	}
	for i, d := range want {
		if (*delays)[i] != d {
			t.Errorf("wait %d: expected %v, got %v", i, d, (*delays)[i])
		}
	}
	if m.State() != fleet.Connected {
		t.Errorf("expected connected, got %s", m.State())
	}
}

func TestConnectIdempotent(t *testing.T) {
	dialer := &fakeDialer{}
	m := NewManager(Options{URL: "ws://fleet.test", Dialer: dialer.Dial})
	recordSleeps(m)

	ctx := context.Background()
	m.Connect(ctx)
	defer m.Close()
	waitForState(t, m, fleet.Connected)

	m.Connect(ctx)
	m.Connect(ctx)
	if err := m.Run(ctx); err != nil {
		t.Fatalf("Run while running: %v", err)
	}

	if got := dialer.attemptCount(); got != 1 {
		t.Errorf("expected a single dial, got %d", got)
	}
}

func TestConnectTimeoutRetries(t *testing.T) {
	dialer := &fakeDialer{failures: 1, block: true}
	m := NewManager(Options{
		URL:            "ws://fleet.test",
		ConnectTimeout: 20 * time.Millisecond,
		Dialer:         dialer.Dial,
	})
	delays := recordSleeps(m)

	m.Connect(context.Background())
	defer m.Close()
	waitForState(t, m, fleet.Connected)

	if dialer.attemptCount() != 2 || len(*delays) != 1 {
		t.Errorf("expected one timed-out attempt then success, got %d attempts and waits %v", dialer.attemptCount(), *delays)
	}
}

func TestSendNotConnected(t *testing.T) {
	m := NewManager(Options{URL: "ws://fleet.test", Dialer: (&fakeDialer{}).Dial})

	err := m.Send(context.Background(), []byte(`{}`))
	if !errors.Is(err, domain.ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestSendWritesFrame(t *testing.T) {
	dialer := &fakeDialer{}
	m := NewManager(Options{URL: "ws://fleet.test", Dialer: dialer.Dial})
	recordSleeps(m)
	m.Connect(context.Background())
	defer m.Close()
	waitForState(t, m, fleet.Connected)

	if err := m.Send(context.Background(), []byte(`{"type":"command"}`)); err != nil {
		t.Fatalf("Send: %v", err)
	}
	c := dialer.conn(0)
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.written) != 1 || string(c.written[0]) != `{"type":"command"}` {
		t.Errorf("unexpected frames written: %q", c.written)
	}
}

func TestSendFailureForcesReconnect(t *testing.T) {
	dialer := &fakeDialer{}
	m := NewManager(Options{URL: "ws://fleet.test", Dialer: dialer.Dial})
	recordSleeps(m)
	m.Connect(context.Background())
	defer m.Close()
	waitForState(t, m, fleet.Connected)

	dialer.conn(0).writeErr = errors.New("broken pipe")
	err := m.Send(context.Background(), []byte(`{}`))
	if !errors.Is(err, domain.ErrSendFailed) {
		t.Fatalf("expected ErrSendFailed, got %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for dialer.attemptCount() < 2 {
		if time.Now().After(deadline) {
			t.Fatal("manager did not reconnect after a failed write")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestFramesHandledInOrder(t *testing.T) {
	dialer := &fakeDialer{}
	var mu sync.Mutex
	var got []string
	done := make(chan struct{})

	m := NewManager(Options{
		URL:    "ws://fleet.test",
		Dialer: dialer.Dial,
		Handler: func(_ context.Context, frame []byte) {
			mu.Lock()
			got = append(got, string(frame))
			if len(got) == 3 {
				close(done)
			}
			mu.Unlock()
		},
	})
	recordSleeps(m)
	m.Connect(context.Background())
	defer m.Close()
	waitForState(t, m, fleet.Connected)

	c := dialer.conn(0)
	c.in <- []byte("a")
	c.in <- []byte("b")
	c.in <- []byte("c")

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("frames not delivered")
	}
	mu.Lock()
	defer mu.Unlock()
	if strings.Join(got, "") != "abc" {
		t.Errorf("expected frames in order, got %v", got)
	}
}

func TestCloseStopsLoop(t *testing.T) {
	dialer := &fakeDialer{}
	m := NewManager(Options{URL: "ws://fleet.test", Dialer: dialer.Dial})
	recordSleeps(m)
	m.Connect(context.Background())
	waitForState(t, m, fleet.Connected)

	m.Close()

	if m.State() != fleet.Disconnected {
		t.Errorf("expected disconnected after Close, got %s", m.State())
	}
	if err := m.Send(context.Background(), []byte(`{}`)); !errors.Is(err, domain.ErrNotConnected) {
		t.Errorf("expected ErrNotConnected after Close, got %v", err)
	}
}

// fakeBackend is an in-process websocket server. Each accepted connection
// receives the next scripted frame batch and is then closed by the server.
type fakeBackend struct {
	mu       sync.Mutex
	sessions int
	script   [][]string
	hold     chan struct{} // the last session stays open until closed
}

func (b *fakeBackend) handle(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer c.CloseNow()

	b.mu.Lock()
	idx := b.sessions
	b.sessions++
	b.mu.Unlock()

	if idx < len(b.script) {
		for _, f := range b.script[idx] {
			if err := c.Write(r.Context(), websocket.MessageText, []byte(f)); err != nil {
				return
			}
		}
	}
	if idx < len(b.script)-1 {
		// Let the client read the batch before dropping the connection.
		time.Sleep(50 * time.Millisecond)
		_ = c.Close(websocket.StatusGoingAway, "restart")
		return
	}
	select {
	case <-b.hold:
	case <-r.Context().Done():
	}
}

func TestReconnectRetainsFleetState(t *testing.T) {
	backend := &fakeBackend{
		script: [][]string{
			{`{"type":"status_response_all","bots":{"0":{"status":"BUSY","result":{"bot_position":[10,64,20],"current_job":"Moving to [50,64,20]"}}}}`},
			{},
		},
		hold: make(chan struct{}),
	}
	srv := httptest.NewServer(http.HandlerFunc(backend.handle))
	defer srv.Close()
	defer close(backend.hold)

	store := fleet.NewStore(0)
	syncer := service.NewSynchronizer(store, nil, nil)

	var mu sync.Mutex
	var transitions []fleet.ConnState
	m := NewManager(Options{
		URL:         "ws" + strings.TrimPrefix(srv.URL, "http"),
		FleetSize:   2,
		Backoff:     resilience.NewBackoff(10*time.Millisecond, 10*time.Millisecond, 1),
		Handler:     syncer.HandleFrame,
		OnConnected: syncer.Initialize,
		OnStateChange: func(s fleet.ConnState) {
			mu.Lock()
			transitions = append(transitions, s)
			mu.Unlock()
		},
	})

	m.Connect(context.Background())
	defer m.Close()

	deadline := time.Now().Add(5 * time.Second)
	for {
		mu.Lock()
		n := len(transitions)
		mu.Unlock()
		if n >= 5 && m.State() == fleet.Connected {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("did not reconnect; transitions %v", transitions)
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	want := []fleet.ConnState{fleet.Connecting, fleet.Connected, fleet.Disconnected, fleet.Connecting, fleet.Connected}
	for i, s := range want {
		if transitions[i] != s {
			t.Errorf("transition %d: expected %s, got %s", i, s, transitions[i])
		}
	}
	mu.Unlock()

	a, ok := store.Current().Agent("worker_0")
	if !ok || a.Status != fleet.StatusBusy || a.Position != (fleet.Position{X: 10, Y: 64, Z: 20}) {
		t.Errorf("fleet state lost across reconnect: %+v (present %v)", a, ok)
	}
	if store.Current().Len() != 2 {
		t.Errorf("expected 2 agents, got %d", store.Current().Len())
	}
}
