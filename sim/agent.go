package sim

// AgentID identifies an agent. IDs are dense: the world stores agents in a
// slice indexed by ID, and every engine index is keyed by ID rather than by
// pointer.
type AgentID int32

// AgentClass groups agents that share a weekly routine; the shipped
// scenarios cut classes by age band. Dense, indexes the MatrixSet.
type AgentClass int32

// Agent is one simulated person. The engine owns Health, Activity and
// Location and mutates them only in the apply phase of a tick; the rest is
// fixed when the world is built.
type Agent struct {
	ID    AgentID
	Class AgentClass
	Age   int

	Health   HealthState
	Activity Activity
	Location LocationID

	// AllowedLocations lists, per activity token, the venues where this
	// agent may perform that activity. Structural data: worldgen builds
	// it once and the engine never writes to it.
	AllowedLocations [][]LocationID
}

// LocationsFor returns the venues where the agent may perform an activity.
// An empty result means the scenario under-specified the agent; the engine
// treats that as fatal when the activity comes up.
func (a *Agent) LocationsFor(act Activity) []LocationID {
	if int(act) >= len(a.AllowedLocations) {
		return nil
	}
	return a.AllowedLocations[act]
}
