package sim

// HealthChange is a disease model's proposal to move an agent into a health
// state at the end of the current tick. The engine republishes each proposal
// as a HealthRequest on the bus, where interventions may veto or rewrite it.
type HealthChange struct {
	Agent  AgentID
	Health HealthState
}

// DiseaseModel proposes health transitions from pre-tick state. Init runs
// once before the first tick and is where the model resolves labels and
// subscribes to the bus. HealthTransitions is called during the compute
// phase of every tick and must read only the pre-tick snapshot through the
// Simulator's accessors; it must not mutate the world or the engine's
// indexes.
type DiseaseModel interface {
	Name() string
	Init(s *Simulator) error
	HealthTransitions(t int64, s *Simulator) []HealthChange
}
