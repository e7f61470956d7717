package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/fleetconsole/internal/adapter/otel"
	"github.com/Strob0t/fleetconsole/internal/adapter/wire"
	"github.com/Strob0t/fleetconsole/internal/domain/fleet"
	"github.com/Strob0t/fleetconsole/internal/port/eventsink"
)

// Synchronizer is the single writer of the fleet store. It applies decoded
// backend messages in arrival order and publishes a new snapshot per message.
type Synchronizer struct {
	store   *fleet.Store
	sink    eventsink.Sink
	metrics *otel.Metrics
	now     func() time.Time
}

// NewSynchronizer creates a Synchronizer writing to store. sink and metrics may be nil.
func NewSynchronizer(store *fleet.Store, sink eventsink.Sink, metrics *otel.Metrics) *Synchronizer {
	return &Synchronizer{store: store, sink: sink, metrics: metrics, now: time.Now}
}

// HandleFrame decodes and applies one inbound frame. Malformed frames are
// logged and dropped without touching the store. It satisfies
// transport.FrameHandler.
func (s *Synchronizer) HandleFrame(ctx context.Context, frame []byte) {
	msg, err := wire.Decode(frame)
	if err != nil {
		var derr *wire.DecodeError
		frameType := ""
		if errors.As(err, &derr) {
			frameType = derr.Type
		}
		s.metrics.RecordFrame(ctx, frameType, err)
		slog.WarnContext(ctx, "dropping malformed frame", "type", frameType, "error", err, "bytes", len(frame))
		return
	}
	s.metrics.RecordFrame(ctx, msg.Type(), nil)

	s.Apply(msg)

	if s.sink != nil && isAgentEvent(msg) {
		if err := s.sink.Forward(ctx, msg.Type(), frame); err != nil {
			s.metrics.RecordForwardFailure(ctx, msg.Type())
			slog.DebugContext(ctx, "event not forwarded", "type", msg.Type(), "error", err)
		}
	}
}

// Apply applies one decoded message and returns the snapshot it produced.
func (s *Synchronizer) Apply(msg wire.Message) *fleet.Snapshot {
	now := s.now()
	return s.store.Apply(func(tx *fleet.Tx) {
		switch m := msg.(type) {
		case wire.StatusAll:
			applyStatusAll(tx, m)
		case wire.JobStart:
			s.logAgentEvent(tx, now, m.Type(), m.BotID, func(id int) string {
				return fmt.Sprintf("Bot %d started job: %s", id, m.Command)
			})
		case wire.JobComplete:
			s.logAgentEvent(tx, now, m.Type(), m.BotID, func(id int) string {
				return fmt.Sprintf("Bot %d completed job.", id)
			})
		case wire.JobFailed:
			s.logAgentEvent(tx, now, m.Type(), m.BotID, func(id int) string {
				if m.Message != "" {
					return m.Message
				}
				return fmt.Sprintf("Bot %d failed job.", id)
			})
		case wire.CommandResponse:
			s.logAgentEvent(tx, now, m.Type(), m.BotID, func(id int) string {
				if m.Message != "" {
					return fmt.Sprintf("Command '%s' for bot %d: %s (%s)", m.Cmd, id, m.Status, m.Message)
				}
				return fmt.Sprintf("Command '%s' for bot %d: %s", m.Cmd, id, m.Status)
			})
		case wire.TaskStats:
			applyTaskStats(tx, m)
		case wire.FleetInit:
			s.initialize(tx, now, m.BotCount, true)
		}
	})
}

// Initialize ensures agents worker_0..worker_{n-1} exist, keeping the data of
// agents already present. It is the manager's ConnectedHook.
func (s *Synchronizer) Initialize(ctx context.Context, n int) {
	snap := s.store.Apply(func(tx *fleet.Tx) {
		s.initialize(tx, s.now(), n, false)
	})
	slog.DebugContext(ctx, "fleet initialized", "agents", snap.Len(), "version", snap.Version())
}

// RecordConnState appends a connection status entry to the event log.
func (s *Synchronizer) RecordConnState(state fleet.ConnState) {
	now := s.now()
	s.store.Apply(func(tx *fleet.Tx) {
		tx.AppendEvent(fleet.Event{
			ID:         uuid.NewString(),
			At:         now,
			Kind:       "connection",
			AgentIndex: -1,
			Message:    "Connection status changed: " + state.String(),
		})
	})
}

func (s *Synchronizer) initialize(tx *fleet.Tx, now time.Time, n int, fresh bool) {
	if fresh {
		tx.Reset(n)
	} else {
		for i := range n {
			if _, ok := tx.Agent(fleet.AgentID(i)); !ok {
				tx.Put(fleet.NewAgent(i))
			}
		}
	}
	task := tx.Task()
	if fresh || task.WorkerCount == 0 {
		task.WorkerCount = n
		task.StartedAt = now
	}
	tx.SetTask(task)
	tx.AppendEvent(fleet.Event{
		ID:         uuid.NewString(),
		At:         now,
		Kind:       "init",
		AgentIndex: -1,
		Message:    fmt.Sprintf("Initialized fleet of %d bots", n),
	})
}

func (s *Synchronizer) logAgentEvent(tx *fleet.Tx, now time.Time, kind string, botID *int, summary func(id int) string) {
	ev := fleet.Event{ID: uuid.NewString(), At: now, Kind: kind, AgentIndex: -1}
	if botID == nil {
		ev.Message = fmt.Sprintf("Event '%s' without bot id", kind)
		tx.AppendEvent(ev)
		return
	}

	ev.AgentIndex = *botID
	ev.Message = summary(*botID)
	if a, ok := tx.Agent(fleet.AgentID(*botID)); ok {
		a.LastEvent = ev.Message
		tx.Put(a)
	}
	tx.AppendEvent(ev)
}

func applyStatusAll(tx *fleet.Tx, m wire.StatusAll) {
	for _, b := range m.Bots {
		a, ok := tx.Agent(fleet.AgentID(b.Index))
		if !ok {
			a = fleet.NewAgent(b.Index)
		}
		if b.Status != nil {
			a.Status = *b.Status
		}
		if b.Position != nil {
			a.Position = *b.Position
		}
		if b.CurrentJob != nil {
			a.CurrentJob = *b.CurrentJob
		}
		tx.Put(a)
	}
}

func applyTaskStats(tx *fleet.Tx, m wire.TaskStats) {
	t := tx.Task()
	if m.WorkerCount != nil {
		t.WorkerCount = *m.WorkerCount
	}
	if m.CompletedBlocks != nil {
		t.CompletedBlocks = *m.CompletedBlocks
	}
	if m.TotalBlocks != nil {
		t.TotalBlocks = *m.TotalBlocks
	}
	if m.Running != nil {
		t.Running = *m.Running
	}
	if m.StartTimeMillis != nil {
		t.StartedAt = time.UnixMilli(*m.StartTimeMillis)
	}
	tx.SetTask(t)
}

func isAgentEvent(msg wire.Message) bool {
	switch msg.(type) {
	case wire.JobStart, wire.JobComplete, wire.JobFailed, wire.CommandResponse:
		return true
	}
	return false
}
