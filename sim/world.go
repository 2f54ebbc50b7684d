package sim

import (
	"fmt"
	"sort"
)

// World is the static stage a simulation runs on: the interned label sets,
// the agents and locations, and the weekly routine matrices. Worldgen (or a
// snapshot load) builds it; the engine only ever mutates the three dynamic
// agent fields.
type World struct {
	Name         string
	Activities   *ActivitySet
	HealthStates *HealthStateSet

	agents    []*Agent
	locations []*Location
	byKind    map[string][]LocationID

	Matrices *MatrixSet
}

// NewWorld returns an empty world over the given label sets.
func NewWorld(name string, activities *ActivitySet, healthStates *HealthStateSet) *World {
	return &World{
		Name:         name,
		Activities:   activities,
		HealthStates: healthStates,
		byKind:       make(map[string][]LocationID),
	}
}

// AddAgent appends an agent, assigning the next dense ID.
func (w *World) AddAgent(a *Agent) AgentID {
	a.ID = AgentID(len(w.agents))
	w.agents = append(w.agents, a)
	return a.ID
}

// AddLocation appends a location, assigning the next dense ID and indexing
// it under its kind.
func (w *World) AddLocation(l *Location) LocationID {
	l.ID = LocationID(len(w.locations))
	w.locations = append(w.locations, l)
	w.byKind[l.Kind] = append(w.byKind[l.Kind], l.ID)
	return l.ID
}

// Agent returns the agent with the given ID.
func (w *World) Agent(id AgentID) *Agent {
	return w.agents[id]
}

// Location returns the location with the given ID.
func (w *World) Location(id LocationID) *Location {
	return w.locations[id]
}

// Agents returns all agents in ID order. Callers must not reorder it.
func (w *World) Agents() []*Agent {
	return w.agents
}

// Locations returns all locations in ID order. Callers must not reorder it.
func (w *World) Locations() []*Location {
	return w.locations
}

// AgentCount returns the number of agents.
func (w *World) AgentCount() int {
	return len(w.agents)
}

// LocationCount returns the number of locations.
func (w *World) LocationCount() int {
	return len(w.locations)
}

// LocationsOfKind returns the IDs of all locations with the given kind, in
// creation order.
func (w *World) LocationsOfKind(kind string) []LocationID {
	return w.byKind[kind]
}

// Kinds returns all location kinds, sorted for deterministic iteration.
func (w *World) Kinds() []string {
	kinds := make([]string, 0, len(w.byKind))
	for k := range w.byKind {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Validate checks referential integrity: every token and ID held by an
// agent must resolve inside this world, and the matrix table must cover
// every agent class.
func (w *World) Validate() error {
	if w.Activities == nil || w.HealthStates == nil {
		return fmt.Errorf("world %q: label sets not set", w.Name)
	}
	nAct := w.Activities.Count()
	nHealth := w.HealthStates.Count()
	nLoc := len(w.locations)

	for _, a := range w.agents {
		if int(a.Activity) < 0 || int(a.Activity) >= nAct {
			return fmt.Errorf("agent %d: activity token %d out of range", a.ID, a.Activity)
		}
		if int(a.Health) < 0 || int(a.Health) >= nHealth {
			return fmt.Errorf("agent %d: health token %d out of range", a.ID, a.Health)
		}
		if int(a.Location) < 0 || int(a.Location) >= nLoc {
			return fmt.Errorf("agent %d: location %d out of range", a.ID, a.Location)
		}
		if len(a.AllowedLocations) != nAct {
			return fmt.Errorf("agent %d: allowed-location table covers %d activities, want %d",
				a.ID, len(a.AllowedLocations), nAct)
		}
		for act, locs := range a.AllowedLocations {
			for _, loc := range locs {
				if int(loc) < 0 || int(loc) >= nLoc {
					return fmt.Errorf("agent %d: allowed location %d for %s out of range",
						a.ID, loc, w.Activities.Name(Activity(act)))
				}
			}
		}
		if w.Matrices != nil && int(a.Class) >= w.Matrices.Classes() {
			return fmt.Errorf("agent %d: class %d outside matrix table (%d classes)",
				a.ID, a.Class, w.Matrices.Classes())
		}
	}
	return nil
}

// HealthRules captures how health states steer movement: states whose
// agents do not move, states that redirect agents to a hospital, and states
// that redirect them to a cemetery. The kinds name which locations serve as
// hospitals and cemeteries.
type HealthRules struct {
	noMove      []bool
	hospitalize []bool
	deceased    []bool

	hospitalKind string
	cemeteryKind string
}

// NewHealthRules builds the per-state flag tables.
func NewHealthRules(states *HealthStateSet, noMove, hospitalize, deceased []HealthState, hospitalKind, cemeteryKind string) *HealthRules {
	n := states.Count()
	r := &HealthRules{
		noMove:       make([]bool, n),
		hospitalize:  make([]bool, n),
		deceased:     make([]bool, n),
		hospitalKind: hospitalKind,
		cemeteryKind: cemeteryKind,
	}
	for _, s := range noMove {
		r.noMove[s] = true
	}
	for _, s := range hospitalize {
		r.hospitalize[s] = true
	}
	for _, s := range deceased {
		r.deceased[s] = true
	}
	return r
}

// NoMove reports whether agents in this state skip routine movement.
func (r *HealthRules) NoMove(s HealthState) bool {
	return r.noMove[s]
}

// Hospitalize reports whether agents in this state are redirected to a
// hospital location.
func (r *HealthRules) Hospitalize(s HealthState) bool {
	return r.hospitalize[s]
}

// Deceased reports whether agents in this state are redirected to a
// cemetery location.
func (r *HealthRules) Deceased(s HealthState) bool {
	return r.deceased[s]
}

// HospitalKind returns the location kind serving as hospital.
func (r *HealthRules) HospitalKind() string {
	return r.hospitalKind
}

// CemeteryKind returns the location kind serving as cemetery.
func (r *HealthRules) CemeteryKind() string {
	return r.cemeteryKind
}
