package ws

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Strob0t/fleetconsole/internal/adapter/otel"
	"github.com/Strob0t/fleetconsole/internal/domain"
	"github.com/Strob0t/fleetconsole/internal/domain/fleet"
	"github.com/Strob0t/fleetconsole/internal/logger"
	"github.com/Strob0t/fleetconsole/internal/port/transport"
	"github.com/Strob0t/fleetconsole/internal/resilience"
)

// Options configures a Manager.
type Options struct {
	URL            string
	FleetSize      int
	ConnectTimeout time.Duration
	WriteTimeout   time.Duration
	Backoff        *resilience.Backoff
	Dialer         Dialer // defaults to Dial

	Handler       transport.FrameHandler
	OnConnected   transport.ConnectedHook
	OnStateChange transport.StateHook
	Metrics       *otel.Metrics
}

// Manager keeps one logical connection to the backend alive. A single
// goroutine dials, reads and reconnects, so attempts never overlap.
type Manager struct {
	opts  Options
	dial  Dialer
	sleep func(ctx context.Context, d time.Duration) error

	state   atomic.Int32
	changes chan fleet.ConnState

	mu     sync.Mutex
	conn   Conn
	cancel context.CancelFunc
	done   chan struct{}

	running atomic.Bool
}

// NewManager creates a disconnected Manager. Call Connect or Run to start it.
func NewManager(opts Options) *Manager {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 5 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	if opts.Backoff == nil {
		opts.Backoff = resilience.NewBackoff(2*time.Second, 30*time.Second, 2)
	}
	dial := opts.Dialer
	if dial == nil {
		dial = Dial
	}
	return &Manager{
		opts:    opts,
		dial:    dial,
		sleep:   sleepContext,
		changes: make(chan fleet.ConnState, 1),
	}
}

// State reports the current connection state.
func (m *Manager) State() fleet.ConnState {
	return fleet.ConnState(m.state.Load())
}

// StateChanges delivers the latest connection state after each transition.
// Intermediate states are dropped when the reader falls behind.
func (m *Manager) StateChanges() <-chan fleet.ConnState {
	return m.changes
}

// Connect starts the connect loop in the background. It is a no-op while
// the loop is already running.
func (m *Manager) Connect(ctx context.Context) {
	if lctx, ok := m.start(ctx); ok {
		go m.loop(lctx)
	}
}

// Run drives the connect loop on the calling goroutine until ctx is
// cancelled or Close is called. It returns immediately if the loop is
// already running.
func (m *Manager) Run(ctx context.Context) error {
	if lctx, ok := m.start(ctx); ok {
		m.loop(lctx)
	}
	return nil
}

// Close stops the connect loop and waits for it to exit.
func (m *Manager) Close() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Send writes one frame. It never waits for a reconnect: unless the state is
// CONNECTED it fails with domain.ErrNotConnected. A failed write tears the
// connection down so the loop reconnects.
func (m *Manager) Send(ctx context.Context, data []byte) error {
	if m.State() != fleet.Connected {
		return domain.ErrNotConnected
	}
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return domain.ErrNotConnected
	}

	wctx, cancel := context.WithTimeout(ctx, m.opts.WriteTimeout)
	defer cancel()
	if err := conn.Write(wctx, data); err != nil {
		_ = conn.Close()
		return fmt.Errorf("%w: %w", domain.ErrSendFailed, err)
	}
	return nil
}

func (m *Manager) start(parent context.Context) (context.Context, bool) {
	if !m.running.CompareAndSwap(false, true) {
		return nil, false
	}
	ctx, cancel := context.WithCancel(parent)
	m.mu.Lock()
	m.cancel = cancel
	m.done = make(chan struct{})
	m.mu.Unlock()
	return ctx, true
}

func (m *Manager) loop(ctx context.Context) {
	m.mu.Lock()
	done := m.done
	m.mu.Unlock()
	defer func() {
		m.setState(fleet.Disconnected)
		m.running.Store(false)
		close(done)
	}()

	for attempt := 1; ; attempt++ {
		actx := logger.WithAttempt(ctx, attempt)
		err := m.session(actx)
		if ctx.Err() != nil {
			slog.Info("connection manager stopped")
			return
		}

		delay := m.opts.Backoff.Next()
		slog.WarnContext(actx, "backend unavailable", "url", m.opts.URL, "error", err, "retry_in", delay)
		if err := m.sleep(ctx, delay); err != nil {
			return
		}
	}
}

// session performs one connect attempt and, on success, reads until the
// connection fails. It always returns with the state DISCONNECTED.
func (m *Manager) session(ctx context.Context) error {
	m.setState(fleet.Connecting)
	slog.DebugContext(ctx, "dialing backend", "url", m.opts.URL, "timeout", m.opts.ConnectTimeout)

	dialCtx, cancel := context.WithTimeout(ctx, m.opts.ConnectTimeout)
	dialCtx, span := otel.StartDialSpan(dialCtx, m.opts.URL, logger.Attempt(ctx))
	start := time.Now()
	conn, err := m.dial(dialCtx, m.opts.URL)
	otel.EndSpan(span, err)
	cancel()
	m.opts.Metrics.RecordDial(ctx, time.Since(start), err)
	if err != nil {
		m.setState(fleet.Disconnected)
		return fmt.Errorf("%w: dial %s: %w", domain.ErrTransport, m.opts.URL, err)
	}

	m.mu.Lock()
	m.conn = conn
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.conn = nil
		m.mu.Unlock()
		_ = conn.Close()
	}()

	m.opts.Backoff.Reset()
	m.setState(fleet.Connected)
	slog.InfoContext(ctx, "connected to backend", "url", m.opts.URL)

	if m.opts.OnConnected != nil {
		m.opts.OnConnected(ctx, m.opts.FleetSize)
	}

	for {
		data, err := conn.Read(ctx)
		if err != nil {
			m.setState(fleet.Disconnected)
			return fmt.Errorf("%w: read: %w", domain.ErrTransport, err)
		}
		if m.opts.Handler != nil {
			m.opts.Handler(ctx, data)
		}
	}
}

// setState is only called from the loop goroutine.
func (m *Manager) setState(s fleet.ConnState) {
	if fleet.ConnState(m.state.Swap(int32(s))) == s {
		return
	}
	if m.opts.OnStateChange != nil {
		m.opts.OnStateChange(s)
	}
	for {
		select {
		case m.changes <- s:
			return
		default:
		}
		select {
		case <-m.changes:
		default:
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
