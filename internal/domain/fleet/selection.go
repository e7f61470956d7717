package fleet

// Selection is an optional, weak reference to one agent. It holds only the
// id, so an agent that disappears from the fleet resolves to no selection.
type Selection struct {
	id string
}

// Select returns a Selection referencing the agent with the given id.
func Select(id string) Selection {
	return Selection{id: id}
}

// ID returns the referenced agent id, if any.
func (s Selection) ID() (string, bool) {
	return s.id, s.id != ""
}

// Resolve looks the referenced agent up in snap.
func (s Selection) Resolve(snap *Snapshot) (Agent, bool) {
	if s.id == "" || snap == nil {
		return Agent{}, false
	}
	return snap.Agent(s.id)
}

// Prune clears the selection if its agent no longer exists in snap.
func (s Selection) Prune(snap *Snapshot) Selection {
	if _, ok := s.Resolve(snap); !ok {
		return Selection{}
	}
	return s
}
