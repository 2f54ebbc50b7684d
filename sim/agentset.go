package sim

// AgentSet is an insert-ordered set of agent IDs with O(1) add, remove and
// membership. Removal swaps the last element into the gap, so iteration
// order is a function of the event history alone; a Go map's iteration
// order would leak randomness into the simulation.
//
// The engine owns every AgentSet it hands out; collaborators must treat
// them as read-only.
type AgentSet struct {
	ids []AgentID
	pos map[AgentID]int
}

// NewAgentSet returns an empty set.
func NewAgentSet() *AgentSet {
	return &AgentSet{pos: make(map[AgentID]int)}
}

// Add inserts id; present members are left alone.
func (s *AgentSet) Add(id AgentID) {
	if _, ok := s.pos[id]; ok {
		return
	}
	s.pos[id] = len(s.ids)
	s.ids = append(s.ids, id)
}

// Remove deletes id; absent members are a no-op.
func (s *AgentSet) Remove(id AgentID) {
	i, ok := s.pos[id]
	if !ok {
		return
	}
	last := len(s.ids) - 1
	moved := s.ids[last]
	s.ids[i] = moved
	s.pos[moved] = i
	s.ids = s.ids[:last]
	delete(s.pos, id)
}

// Contains reports membership.
func (s *AgentSet) Contains(id AgentID) bool {
	_, ok := s.pos[id]
	return ok
}

// Len returns the member count.
func (s *AgentSet) Len() int {
	return len(s.ids)
}

// IDs returns the members in set order. The slice aliases the set's
// storage: do not mutate it, and do not hold it across engine mutations.
func (s *AgentSet) IDs() []AgentID {
	return s.ids
}
