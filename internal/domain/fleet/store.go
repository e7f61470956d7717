package fleet

import (
	"sync"
	"sync/atomic"
)

// DefaultEventCapacity is the number of event log entries retained when none is configured.
const DefaultEventCapacity = 200

// Store holds the single current Snapshot. Writers are serialized; readers
// load the current pointer without locking and always observe a complete version.
type Store struct {
	mu        sync.Mutex // serializes Apply
	current   atomic.Pointer[Snapshot]
	updates   chan struct{}
	maxEvents int
}

// NewStore creates an empty store (version 0) retaining up to maxEvents log entries.
func NewStore(maxEvents int) *Store {
	if maxEvents <= 0 {
		maxEvents = DefaultEventCapacity
	}
	s := &Store{
		updates:   make(chan struct{}, 1),
		maxEvents: maxEvents,
	}
	s.current.Store(emptySnapshot())
	return s
}

// Current returns the latest published snapshot.
func (s *Store) Current() *Snapshot {
	return s.current.Load()
}

// Updates returns a channel signalled after each publish. Signals coalesce:
// a subscriber that falls behind sees one pending signal and should compare
// Current().Version() with the last version it rendered.
func (s *Store) Updates() <-chan struct{} {
	return s.updates
}

// Apply runs fn against a transaction on the current snapshot and publishes
// the result as the next version. Every call increments the version, even
// when fn leaves all fields unchanged.
func (s *Store) Apply(fn func(tx *Tx)) *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	base := s.current.Load()
	tx := &Tx{
		base:      base,
		agents:    base.agents,
		events:    base.events,
		task:      base.task,
		maxEvents: s.maxEvents,
	}
	fn(tx)

	next := tx.commit()
	s.current.Store(next)

	select {
	case s.updates <- struct{}{}:
	default:
	}
	return next
}
