package sim

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Simulator is the core engine: it owns the clock, the bus, the world and
// the derived occupancy indices, and advances the run one tick at a time.
//
// Each tick has two phases. The compute phase reads only the pre-tick world
// and publishes default health, activity and location proposals as request
// events; interventions subscribed ahead of the engine's recorders may
// consume or override them. The apply phase then commits the surviving
// proposals, health changes first and movement second, so every handler
// and model inside one tick saw the same consistent snapshot.
type Simulator struct {
	RunID string
	Clock *SimClock
	Bus   *MessageBus
	World *World
	RNG   *PartitionedRNG

	Metrics *Metrics

	rules      *HealthRules
	disease    DiseaseModel
	components []Component
	scheduler  *Scheduler
	reporters  []Reporter

	// Engine-owned indices, updated incrementally in the apply phase.
	attendees      []*AgentSet // by location
	agentsByHealth []*AgentSet // by health state
	counts         [][]int     // [health state][location]

	// Per-tick pending changes. Dense flag-and-order storage keeps the
	// apply order equal to the publish order, which keeps runs
	// reproducible; the map a change-set would naturally live in does
	// not iterate deterministically.
	pendingHealth   []HealthState
	hasHealth       []bool
	healthOrder     []AgentID
	pendingActivity []Activity
	hasActivity     []bool
	activityOrder   []AgentID
	pendingLocation []LocationID
	hasLocation     []bool
	locationOrder   []AgentID

	totals []int // scratch for per-state population snapshots
}

// NewSimulator assembles an engine over a validated world. The scheduler
// arrives with all component schedules already resolved; components and
// reporters are run in the order given.
func NewSimulator(
	clock *SimClock,
	world *World,
	rng *PartitionedRNG,
	rules *HealthRules,
	disease DiseaseModel,
	components []Component,
	scheduler *Scheduler,
	reporters []Reporter,
) (*Simulator, error) {
	if err := world.Validate(); err != nil {
		return nil, fmt.Errorf("validating world: %w", err)
	}
	if world.Matrices == nil {
		return nil, fmt.Errorf("world %q has no transition matrices", world.Name)
	}
	if scheduler == nil {
		scheduler = NewScheduler(clock)
	}

	nAgents := world.AgentCount()
	nStates := world.HealthStates.Count()

	s := &Simulator{
		RunID:      uuid.New().String(),
		Clock:      clock,
		Bus:        NewMessageBus(),
		World:      world,
		RNG:        rng,
		Metrics:    NewMetrics(nStates),
		rules:      rules,
		disease:    disease,
		components: components,
		scheduler:  scheduler,
		reporters:  reporters,

		pendingHealth:   make([]HealthState, nAgents),
		hasHealth:       make([]bool, nAgents),
		pendingActivity: make([]Activity, nAgents),
		hasActivity:     make([]bool, nAgents),
		pendingLocation: make([]LocationID, nAgents),
		hasLocation:     make([]bool, nAgents),
		totals:          make([]int, nStates),
	}
	s.rebuildIndexes()
	return s, nil
}

// rebuildIndexes derives the occupancy indices from the agents' current
// fields. After construction the apply phase maintains them incrementally.
func (s *Simulator) rebuildIndexes() {
	nStates := s.World.HealthStates.Count()
	nLocs := s.World.LocationCount()

	s.attendees = make([]*AgentSet, nLocs)
	for i := range s.attendees {
		s.attendees[i] = NewAgentSet()
	}
	s.agentsByHealth = make([]*AgentSet, nStates)
	s.counts = make([][]int, nStates)
	for i := range s.agentsByHealth {
		s.agentsByHealth[i] = NewAgentSet()
		s.counts[i] = make([]int, nLocs)
	}

	for _, a := range s.World.Agents() {
		s.attendees[a.Location].Add(a.ID)
		s.agentsByHealth[a.Health].Add(a.ID)
		s.counts[a.Health][a.Location]++
	}
}

// Attendees returns the agents currently at a location. Read-only.
func (s *Simulator) Attendees(loc LocationID) *AgentSet {
	return s.attendees[loc]
}

// AgentsInHealthState returns the agents currently in a state. Read-only.
func (s *Simulator) AgentsInHealthState(state HealthState) *AgentSet {
	return s.agentsByHealth[state]
}

// AgentCount returns how many agents in the given health state are at the
// given location.
func (s *Simulator) AgentCount(state HealthState, loc LocationID) int {
	return s.counts[state][loc]
}

// HealthTotals returns the population of each health state, indexed by
// token. The slice is a fresh copy.
func (s *Simulator) HealthTotals() []int {
	totals := make([]int, len(s.agentsByHealth))
	for i, set := range s.agentsByHealth {
		totals[i] = set.Len()
	}
	return totals
}

// Run executes the simulation from tick zero to the clock's horizon.
func (s *Simulator) Run() error {
	start := time.Now()
	s.Clock.Reset()

	logrus.Infof("[run %s] world %q: %d agents, %d locations, %d ticks",
		s.RunID, s.World.Name, s.World.AgentCount(), s.World.LocationCount(), s.Clock.MaxTicks())

	// Components subscribe first so their handlers sit ahead of the
	// engine's recorders on the request topics; that ordering is what
	// lets them veto or override defaults.
	for _, c := range s.components {
		if err := c.Init(s); err != nil {
			return fmt.Errorf("initializing component %q: %w", c.Name(), err)
		}
	}
	if s.disease != nil {
		if err := s.disease.Init(s); err != nil {
			return fmt.Errorf("initializing disease model %q: %w", s.disease.Name(), err)
		}
	}
	s.subscribeRecorders()

	s.Bus.Publish(TopicSimulationStart, SimulationEvent{Sim: s})

	for _, r := range s.reporters {
		if err := r.Start(s); err != nil {
			return fmt.Errorf("starting reporter %q: %w", r.Name(), err)
		}
	}

	for s.Clock.Next() {
		if err := s.tick(s.Clock.Tick()); err != nil {
			return fmt.Errorf("tick %d: %w", s.Clock.Tick(), err)
		}
		s.Metrics.TicksRun++
	}

	s.Bus.Publish(TopicSimulationEnd, SimulationEvent{Sim: s})
	for _, r := range s.reporters {
		if err := r.Stop(s); err != nil {
			logrus.Warnf("stopping reporter %q: %v", r.Name(), err)
		}
	}

	s.Metrics.WallClock = time.Since(start)
	logrus.Infof("[run %s] simulation ended after %d ticks (%s)",
		s.RunID, s.Metrics.TicksRun, s.Metrics.WallClock)
	return nil
}

func (s *Simulator) tick(t int64) error {
	if err := s.scheduler.Tick(t); err != nil {
		return err
	}

	ev := TickEvent{Clock: s.Clock, Tick: t}
	s.Bus.Publish(TopicTick, ev)
	if s.Clock.MidnightTick() {
		s.Bus.Publish(TopicMidnight, ev)
	}

	// Compute phase: defaults drawn from the pre-tick world.
	s.computeHealth(t)
	if err := s.computeMovement(); err != nil {
		return err
	}

	// Apply phase: health strictly before movement, so a state entered
	// this tick steers the hospital redirect no earlier than next tick.
	s.applyHealth()
	s.applyMovement()

	for i, set := range s.agentsByHealth {
		s.totals[i] = set.Len()
	}
	s.Metrics.observe(s.totals)

	for _, r := range s.reporters {
		r.Iterate(s)
	}

	logrus.Debugf("[tick %07d] %s", t, s.Clock.Now().Format("2006-01-02 15:04"))
	return nil
}

// computeHealth publishes the disease model's proposals for this tick.
func (s *Simulator) computeHealth(t int64) {
	if s.disease == nil {
		return
	}
	for _, ch := range s.disease.HealthTransitions(t, s) {
		s.Bus.Publish(TopicHealthRequest, HealthRequest{Agent: ch.Agent, Health: ch.Health})
	}
}

// computeMovement publishes activity and location proposals for every
// agent, in ID order.
func (s *Simulator) computeMovement() error {
	slot := s.Clock.TicksThroughWeek()
	for _, a := range s.World.Agents() {
		switch {
		case s.rules.Deceased(a.Health):
			if err := s.redirect(a, s.rules.CemeteryKind()); err != nil {
				return err
			}
		case s.rules.Hospitalize(a.Health):
			if err := s.redirect(a, s.rules.HospitalKind()); err != nil {
				return err
			}
		case s.rules.NoMove(a.Health):
			// Holds both activity and location.
		default:
			if err := s.routineMove(a, slot); err != nil {
				return err
			}
		}
	}
	return nil
}

// redirect proposes moving an agent to a uniformly random location of the
// given kind, unless it is already at one.
func (s *Simulator) redirect(a *Agent, kind string) error {
	if s.World.Location(a.Location).Kind == kind {
		return nil
	}
	candidates := s.World.LocationsOfKind(kind)
	if len(candidates) == 0 {
		return fmt.Errorf("agent %d needs a %q location but the world has none", a.ID, kind)
	}
	rng := s.RNG.ForSubsystem(SubsystemMovement)
	loc := candidates[rng.Intn(len(candidates))]
	s.Bus.Publish(TopicLocationRequest, LocationRequest{Agent: a.ID, Location: loc})
	return nil
}

// routineMove samples the agent's weekly routine matrix. Most draws keep
// the current activity and cost one Bernoulli trial; the rest force an
// off-diagonal transition and pick a venue for it.
func (s *Simulator) routineMove(a *Agent, slot int64) error {
	m := s.World.Matrices.At(a.Class, slot)
	if m == nil {
		return fmt.Errorf("no transition matrix for class %d at weekly slot %d", a.Class, slot)
	}

	actRNG := s.RNG.ForSubsystem(SubsystemActivity)
	if m.NoTransition(actRNG, a.Activity) {
		return nil
	}
	next, err := m.Transition(actRNG, a.Activity, true)
	if err != nil {
		return fmt.Errorf("agent %d: %w", a.ID, err)
	}

	candidates := a.LocationsFor(next)
	if len(candidates) == 0 {
		return fmt.Errorf("agent %d has no allowed location for activity %q",
			a.ID, s.World.Activities.Name(next))
	}
	movRNG := s.RNG.ForSubsystem(SubsystemMovement)
	loc := candidates[movRNG.Intn(len(candidates))]

	s.Bus.Publish(TopicActivityRequest, ActivityRequest{Agent: a.ID, Activity: next})
	s.Bus.Publish(TopicLocationRequest, LocationRequest{Agent: a.ID, Location: loc})
	return nil
}

// subscribeRecorders installs the engine's own request handlers. They run
// last on each request topic and queue whatever survived the interventions;
// the queues are drained by the apply phase. Re-publishing an agent's
// request overwrites the earlier pending value, so the last word wins.
func (s *Simulator) subscribeRecorders() {
	s.Bus.Subscribe(TopicHealthRequest, func(ev Event) Outcome {
		req := ev.(HealthRequest)
		if !s.hasHealth[req.Agent] {
			s.hasHealth[req.Agent] = true
			s.healthOrder = append(s.healthOrder, req.Agent)
		}
		s.pendingHealth[req.Agent] = req.Health
		return Continue
	}, s)

	s.Bus.Subscribe(TopicActivityRequest, func(ev Event) Outcome {
		req := ev.(ActivityRequest)
		if !s.hasActivity[req.Agent] {
			s.hasActivity[req.Agent] = true
			s.activityOrder = append(s.activityOrder, req.Agent)
		}
		s.pendingActivity[req.Agent] = req.Activity
		return Continue
	}, s)

	s.Bus.Subscribe(TopicLocationRequest, func(ev Event) Outcome {
		req := ev.(LocationRequest)
		if !s.hasLocation[req.Agent] {
			s.hasLocation[req.Agent] = true
			s.locationOrder = append(s.locationOrder, req.Agent)
		}
		s.pendingLocation[req.Agent] = req.Location
		return Continue
	}, s)
}

// applyHealth commits pending health changes and keeps the health indices
// consistent. Notices go out per change, after the world reflects it.
func (s *Simulator) applyHealth() {
	for _, id := range s.healthOrder {
		next := s.pendingHealth[id]
		s.hasHealth[id] = false

		a := s.World.Agent(id)
		old := a.Health
		if old == next {
			continue
		}
		s.agentsByHealth[old].Remove(id)
		s.counts[old][a.Location]--
		a.Health = next
		s.agentsByHealth[next].Add(id)
		s.counts[next][a.Location]++
		s.Metrics.HealthChanges++

		s.Bus.Publish(TopicHealthNotice, HealthNotice{Agent: id, Old: old})
	}
	s.healthOrder = s.healthOrder[:0]
}

// applyMovement commits pending activity and location changes. Location
// counts are keyed by the agent's current health state, which applyHealth
// has already settled.
func (s *Simulator) applyMovement() {
	for _, id := range s.activityOrder {
		next := s.pendingActivity[id]
		s.hasActivity[id] = false

		a := s.World.Agent(id)
		old := a.Activity
		if old == next {
			continue
		}
		a.Activity = next
		s.Metrics.ActivityChanges++

		s.Bus.Publish(TopicActivityNotice, ActivityNotice{Agent: id, Old: old})
	}
	s.activityOrder = s.activityOrder[:0]

	for _, id := range s.locationOrder {
		next := s.pendingLocation[id]
		s.hasLocation[id] = false

		a := s.World.Agent(id)
		old := a.Location
		if old == next {
			continue
		}
		s.attendees[old].Remove(id)
		s.counts[a.Health][old]--
		a.Location = next
		s.attendees[next].Add(id)
		s.counts[a.Health][next]++
		s.Metrics.LocationChanges++

		s.Bus.Publish(TopicLocationNotice, LocationNotice{Agent: id, Old: old})
	}
	s.locationOrder = s.locationOrder[:0]
}

// CheckIndexes verifies the incremental indices against a fresh derivation
// from the agents' fields. Tests lean on it; production code never needs
// it if the apply phase is correct.
func (s *Simulator) CheckIndexes() error {
	nStates := s.World.HealthStates.Count()
	nLocs := s.World.LocationCount()

	wantCounts := make([][]int, nStates)
	for i := range wantCounts {
		wantCounts[i] = make([]int, nLocs)
	}
	wantByHealth := make([]int, nStates)
	wantAttendees := make([]int, nLocs)

	for _, a := range s.World.Agents() {
		wantCounts[a.Health][a.Location]++
		wantByHealth[a.Health]++
		wantAttendees[a.Location]++
		if !s.attendees[a.Location].Contains(a.ID) {
			return fmt.Errorf("agent %d missing from attendees of location %d", a.ID, a.Location)
		}
		if !s.agentsByHealth[a.Health].Contains(a.ID) {
			return fmt.Errorf("agent %d missing from health set %s",
				a.ID, s.World.HealthStates.Name(a.Health))
		}
	}

	for st := 0; st < nStates; st++ {
		if s.agentsByHealth[st].Len() != wantByHealth[st] {
			return fmt.Errorf("health set %s has %d members, want %d",
				s.World.HealthStates.Name(HealthState(st)), s.agentsByHealth[st].Len(), wantByHealth[st])
		}
		var sum int
		for loc := 0; loc < nLocs; loc++ {
			if s.counts[st][loc] != wantCounts[st][loc] {
				return fmt.Errorf("count[%s][%d] = %d, want %d",
					s.World.HealthStates.Name(HealthState(st)), loc, s.counts[st][loc], wantCounts[st][loc])
			}
			sum += s.counts[st][loc]
		}
		if sum != s.agentsByHealth[st].Len() {
			return fmt.Errorf("counts for %s sum to %d, want %d",
				s.World.HealthStates.Name(HealthState(st)), sum, s.agentsByHealth[st].Len())
		}
	}
	for loc := 0; loc < nLocs; loc++ {
		if s.attendees[loc].Len() != wantAttendees[loc] {
			return fmt.Errorf("location %d has %d attendees, want %d",
				loc, s.attendees[loc].Len(), wantAttendees[loc])
		}
	}
	return nil
}
