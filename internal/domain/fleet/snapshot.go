package fleet

import (
	"slices"
	"time"
)

// Event is one entry of the operator-facing event log.
type Event struct {
	ID         string    `json:"id"`
	At         time.Time `json:"at"`
	Kind       string    `json:"kind"`
	AgentIndex int       `json:"agent_index"` // -1 when the event is not tied to an agent
	Message    string    `json:"message"`
}

// TaskStats tracks progress of the fleet-wide task reported by the backend.
type TaskStats struct {
	WorkerCount     int       `json:"worker_count"`
	CompletedBlocks int       `json:"completed_blocks"`
	TotalBlocks     int       `json:"total_blocks"`
	Running         bool      `json:"running"`
	StartedAt       time.Time `json:"started_at"`
}

// DefaultTotalBlocks is the task size assumed until the backend reports one.
const DefaultTotalBlocks = 85

// Snapshot is an immutable, versioned copy of the fleet state.
// A published Snapshot is never modified; every update produces a new one.
type Snapshot struct {
	version uint64
	agents  map[string]Agent
	order   []string // agent ids sorted by index
	events  []Event
	task    TaskStats
}

func emptySnapshot() *Snapshot {
	return &Snapshot{
		agents: map[string]Agent{},
		task:   TaskStats{TotalBlocks: DefaultTotalBlocks},
	}
}

// Version returns the number of updates applied to produce this snapshot.
func (s *Snapshot) Version() uint64 { return s.version }

// Len returns the number of agents.
func (s *Snapshot) Len() int { return len(s.agents) }

// Agent returns the agent with the given id.
func (s *Snapshot) Agent(id string) (Agent, bool) {
	a, ok := s.agents[id]
	return a, ok
}

// Agents returns all agents ordered by ascending fleet index.
func (s *Snapshot) Agents() []Agent {
	out := make([]Agent, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.agents[id])
	}
	return out
}

// Events returns the retained event log, oldest first.
func (s *Snapshot) Events() []Event {
	return slices.Clone(s.events)
}

// Task returns the fleet-wide task statistics.
func (s *Snapshot) Task() TaskStats { return s.task }

// Tx is a pending update against a snapshot. Reads see the writes made so far
// within the same Tx; nothing is visible to readers until the Store publishes it.
type Tx struct {
	base      *Snapshot
	agents    map[string]Agent
	events    []Event
	task      TaskStats
	dirty     bool
	maxEvents int
}

// Agent returns the agent with the given id as of this Tx.
func (tx *Tx) Agent(id string) (Agent, bool) {
	a, ok := tx.agents[id]
	return a, ok
}

// Len returns the number of agents as of this Tx.
func (tx *Tx) Len() int { return len(tx.agents) }

// Put inserts or overwrites an agent keyed by its ID.
func (tx *Tx) Put(a Agent) {
	tx.clone()
	tx.agents[a.ID] = a
}

// Reset replaces the fleet with n pristine agents.
func (tx *Tx) Reset(n int) {
	tx.agents = make(map[string]Agent, n)
	tx.dirty = true
	for i := range n {
		a := NewAgent(i)
		tx.agents[a.ID] = a
	}
}

// AppendEvent adds an entry to the event log, evicting the oldest beyond capacity.
func (tx *Tx) AppendEvent(e Event) {
	events := make([]Event, 0, len(tx.events)+1)
	events = append(events, tx.events...)
	events = append(events, e)
	if tx.maxEvents > 0 && len(events) > tx.maxEvents {
		events = events[len(events)-tx.maxEvents:]
	}
	tx.events = events
}

// Task returns the task statistics as of this Tx.
func (tx *Tx) Task() TaskStats { return tx.task }

// SetTask replaces the task statistics.
func (tx *Tx) SetTask(t TaskStats) { tx.task = t }

// clone copies the agent map on first write so the base snapshot stays untouched.
func (tx *Tx) clone() {
	if tx.dirty {
		return
	}
	agents := make(map[string]Agent, len(tx.agents)+1)
	for id, a := range tx.agents {
		agents[id] = a
	}
	tx.agents = agents
	tx.dirty = true
}

func (tx *Tx) commit() *Snapshot {
	next := &Snapshot{
		version: tx.base.version + 1,
		agents:  tx.agents,
		order:   tx.base.order,
		events:  tx.events,
		task:    tx.task,
	}
	if tx.dirty {
		next.order = sortedIDs(tx.agents)
	}
	return next
}

func sortedIDs(agents map[string]Agent) []string {
	ids := make([]string, 0, len(agents))
	for id := range agents {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b string) int {
		return agents[a].Index - agents[b].Index
	})
	return ids
}
