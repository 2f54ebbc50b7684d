// Package disease implements transmission and progression models over the
// engine's occupancy indexes.
package disease

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/epidemic-sim/epidemic-sim/sim"
)

// Compartmental is an SEIHRD model. Susceptible agents sharing a location
// with infectious ones risk exposure every tick; exposed agents incubate,
// fall ill, and then recover, enter hospital or die, with gamma-distributed
// dwell times and age-banded outcomes.
//
// The model never assumes its proposals landed: dwell countdowns start when
// the committed change comes back as a health notice, so vetoed or
// rewritten transitions leave the model's bookkeeping consistent.
type Compartmental struct {
	cfg sim.DiseaseConfig

	sim *sim.Simulator
	rng *rand.Rand

	susceptible  sim.HealthState
	exposed      sim.HealthState
	infectious   sim.HealthState
	hospitalized sim.HealthState
	recovered    sim.HealthState
	dead         sim.HealthState

	// infectionProb is resolved from per-kind config to per-location ID.
	infectionProb []float64

	latent   distuv.Gamma
	illness  distuv.Gamma
	hospital distuv.Gamma

	ticksPerDay float64

	// expires holds the tick each agent's current dwell ends, -1 when the
	// agent is in no dwelling state.
	expires []int64
}

// NewCompartmental builds the model from its scenario section. Label
// resolution happens in Init, once the world is known.
func NewCompartmental(cfg sim.DiseaseConfig) *Compartmental {
	return &Compartmental{cfg: cfg}
}

// Name returns the model's registry name.
func (d *Compartmental) Name() string { return "compartmental" }

// Init resolves state tokens and location probabilities, seeds dwell
// countdowns for agents already in dwelling states, and subscribes to
// health notices.
func (d *Compartmental) Init(s *sim.Simulator) error {
	d.sim = s
	d.rng = s.RNG.ForSubsystem(sim.SubsystemDisease)
	d.ticksPerDay = float64(s.Clock.TicksInDay())

	states := s.World.HealthStates
	for _, bind := range []struct {
		token *sim.HealthState
		name  string
	}{
		{&d.susceptible, d.cfg.SusceptibleState},
		{&d.exposed, d.cfg.ExposedState},
		{&d.infectious, d.cfg.InfectedState},
		{&d.hospitalized, d.cfg.HospitalizedState},
		{&d.recovered, d.cfg.RecoveredState},
		{&d.dead, d.cfg.DeadState},
	} {
		tok, err := states.Token(bind.name)
		if err != nil {
			return fmt.Errorf("resolving disease states: %w", err)
		}
		*bind.token = tok
	}

	d.latent = d.dwell(d.cfg.LatentDays)
	d.illness = d.dwell(d.cfg.IllnessDays)
	d.hospital = d.dwell(d.cfg.HospitalDays)

	d.infectionProb = make([]float64, s.World.LocationCount())
	for _, l := range s.World.Locations() {
		d.infectionProb[l.ID] = d.cfg.InfectionProb[l.Kind]
	}

	d.expires = make([]int64, s.World.AgentCount())
	for _, a := range s.World.Agents() {
		d.expires[a.ID] = -1
		switch a.Health {
		case d.exposed:
			d.expires[a.ID] = d.dwellTicks(d.latent)
		case d.infectious:
			d.expires[a.ID] = d.dwellTicks(d.illness)
		case d.hospitalized:
			d.expires[a.ID] = d.dwellTicks(d.hospital)
		}
	}

	s.Bus.Subscribe(sim.TopicHealthNotice, d.onHealthNotice, d)

	logrus.Infof("[disease] compartmental model: %d locations carry infection risk",
		countPositive(d.infectionProb))
	return nil
}

// onHealthNotice starts or clears the dwell countdown for the state the
// agent just entered. Notices fire after the commit, so the agent's field
// already holds the new state.
func (d *Compartmental) onHealthNotice(ev sim.Event) sim.Outcome {
	notice := ev.(sim.HealthNotice)
	t := d.sim.Clock.Tick()
	switch d.sim.World.Agent(notice.Agent).Health {
	case d.exposed:
		d.expires[notice.Agent] = t + d.dwellTicks(d.latent)
	case d.infectious:
		d.expires[notice.Agent] = t + d.dwellTicks(d.illness)
	case d.hospitalized:
		d.expires[notice.Agent] = t + d.dwellTicks(d.hospital)
	default:
		d.expires[notice.Agent] = -1
	}
	return sim.Continue
}

// HealthTransitions proposes this tick's exposures and dwell expiries. All
// reads are against the pre-tick indexes; ordering within each sweep is the
// deterministic set order.
func (d *Compartmental) HealthTransitions(t int64, s *sim.Simulator) []sim.HealthChange {
	var out []sim.HealthChange

	for _, id := range s.AgentsInHealthState(d.susceptible).IDs() {
		a := s.World.Agent(id)
		n := s.AgentCount(d.infectious, a.Location)
		if n == 0 {
			continue
		}
		p := d.infectionProb[a.Location]
		if p <= 0 {
			continue
		}
		if sim.Bernoulli(d.rng, attackRate(p, n)) {
			out = append(out, sim.HealthChange{Agent: id, Health: d.exposed})
		}
	}

	for _, id := range s.AgentsInHealthState(d.exposed).IDs() {
		if d.due(id, t) {
			out = append(out, sim.HealthChange{Agent: id, Health: d.infectious})
		}
	}
	for _, id := range s.AgentsInHealthState(d.infectious).IDs() {
		if d.due(id, t) {
			out = append(out, sim.HealthChange{Agent: id, Health: d.illnessOutcome(s.World.Agent(id).Age)})
		}
	}
	for _, id := range s.AgentsInHealthState(d.hospitalized).IDs() {
		if d.due(id, t) {
			out = append(out, sim.HealthChange{Agent: id, Health: d.hospitalOutcome(s.World.Agent(id).Age)})
		}
	}
	return out
}

func (d *Compartmental) due(id sim.AgentID, t int64) bool {
	return d.expires[id] >= 0 && t >= d.expires[id]
}

// dwell converts a mean-and-shape config into a gamma over days.
func (d *Compartmental) dwell(cfg sim.GammaConfig) distuv.Gamma {
	return distuv.Gamma{Alpha: cfg.Shape, Beta: cfg.Shape / cfg.MeanDays, Src: d.rng}
}

// dwellTicks draws a dwell time and converts it to at least one whole tick.
func (d *Compartmental) dwellTicks(g distuv.Gamma) int64 {
	ticks := int64(math.Ceil(g.Rand() * d.ticksPerDay))
	if ticks < 1 {
		ticks = 1
	}
	return ticks
}

// illnessOutcome draws where an ending illness goes: hospital, death at
// home, or recovery, using the agent's age band.
func (d *Compartmental) illnessOutcome(age int) sim.HealthState {
	band := d.band(age)
	r := d.rng.Float64()
	switch {
	case r < band.HospitalizeP:
		return d.hospitalized
	case r < band.HospitalizeP+band.DeathP:
		return d.dead
	default:
		return d.recovered
	}
}

// hospitalOutcome draws how a hospital stay ends.
func (d *Compartmental) hospitalOutcome(age int) sim.HealthState {
	if sim.Bernoulli(d.rng, d.band(age).HospitalDeathP) {
		return d.dead
	}
	return d.recovered
}

// band returns the outcome config for an age, or the zero value (always
// recover) when no band covers it.
func (d *Compartmental) band(age int) sim.AgeOutcomeConfig {
	for _, b := range d.cfg.AgeOutcomes {
		if age >= b.MinAge && age <= b.MaxAge {
			return b
		}
	}
	return sim.AgeOutcomeConfig{}
}

// attackRate is the chance of at least one transmission: each of n
// infectious attendees independently transmits with probability p.
func attackRate(p float64, n int) float64 {
	return 1 - math.Pow(1-p, float64(n))
}

func countPositive(xs []float64) int {
	var n int
	for _, x := range xs {
		if x > 0 {
			n++
		}
	}
	return n
}

// SeedInfections moves n uniformly chosen agents into the given state
// before a run starts. The caller rebuilds or constructs the engine
// afterwards so the indexes reflect the seeds.
func SeedInfections(w *sim.World, state sim.HealthState, n int, rng *rand.Rand) error {
	if n > w.AgentCount() {
		return fmt.Errorf("cannot seed %d infections into %d agents", n, w.AgentCount())
	}
	for _, idx := range rng.Perm(w.AgentCount())[:n] {
		w.Agent(sim.AgentID(idx)).Health = state
	}
	return nil
}
