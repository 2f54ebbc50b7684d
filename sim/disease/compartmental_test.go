package disease

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/epidemic-sim/epidemic-sim/sim"
)

// Outbreak test world: everyone shares one hall, with a hospital and a
// cemetery standing by. State tokens follow declaration order.
const (
	stSusceptible  = sim.HealthState(0)
	stExposed      = sim.HealthState(1)
	stInfectious   = sim.HealthState(2)
	stHospitalized = sim.HealthState(3)
	stRecovered    = sim.HealthState(4)
	stDead         = sim.HealthState(5)
)

var testEpoch = time.Date(2020, 7, 1, 0, 0, 0, 0, time.UTC)

func outbreakWorld(t *testing.T, nAgents, days int) (*sim.World, *sim.HealthRules, *sim.SimClock) {
	t.Helper()
	clock, err := sim.NewSimClock(6*time.Hour, days, testEpoch)
	if err != nil {
		t.Fatal(err)
	}
	acts, err := sim.NewActivitySet([]string{"stay"})
	if err != nil {
		t.Fatal(err)
	}
	states, err := sim.NewHealthStateSet([]string{
		"susceptible", "exposed", "infectious", "hospitalized", "recovered", "dead",
	})
	if err != nil {
		t.Fatal(err)
	}

	w := sim.NewWorld("outbreak", acts, states)
	hall := w.AddLocation(&sim.Location{Kind: "hall"})
	w.AddLocation(&sim.Location{Kind: "hospital"})
	w.AddLocation(&sim.Location{Kind: "cemetery"})
	for i := 0; i < nAgents; i++ {
		w.AddAgent(&sim.Agent{
			Age:              30,
			Health:           stSusceptible,
			Activity:         0,
			Location:         hall,
			AllowedLocations: [][]sim.LocationID{{hall}},
		})
	}

	stay := sim.NewSplitTransitionMatrix(acts)
	if err := stay.SetWeight(0, 0, 1); err != nil {
		t.Fatal(err)
	}
	ms := sim.NewMatrixSet(1, clock.TicksInWeek())
	for slot := int64(0); slot < clock.TicksInWeek(); slot++ {
		ms.Set(0, slot, stay)
	}
	w.Matrices = ms

	rules := sim.NewHealthRules(states,
		[]sim.HealthState{stDead},
		[]sim.HealthState{stHospitalized},
		[]sim.HealthState{stDead},
		"hospital", "cemetery")
	return w, rules, clock
}

// slowConfig keeps agents in whatever state they reach: dwell times far
// beyond any test horizon.
func slowConfig() sim.DiseaseConfig {
	return sim.DiseaseConfig{
		Model:             "compartmental",
		SusceptibleState:  "susceptible",
		ExposedState:      "exposed",
		InfectedState:     "infectious",
		HospitalizedState: "hospitalized",
		RecoveredState:    "recovered",
		DeadState:         "dead",
		InfectionProb:     map[string]float64{"hall": 1.0},
		LatentDays:        sim.GammaConfig{MeanDays: 1000, Shape: 10},
		IllnessDays:       sim.GammaConfig{MeanDays: 1000, Shape: 10},
		HospitalDays:      sim.GammaConfig{MeanDays: 1000, Shape: 10},
		AgeOutcomes:       []sim.AgeOutcomeConfig{{MinAge: 0, MaxAge: 120}},
	}
}

// fastConfig pushes agents through the full course in a tick or two per
// state.
func fastConfig() sim.DiseaseConfig {
	cfg := slowConfig()
	cfg.LatentDays = sim.GammaConfig{MeanDays: 0.25, Shape: 100}
	cfg.IllnessDays = sim.GammaConfig{MeanDays: 0.25, Shape: 100}
	cfg.HospitalDays = sim.GammaConfig{MeanDays: 0.25, Shape: 100}
	return cfg
}

func runOutbreak(t *testing.T, w *sim.World, rules *sim.HealthRules, clock *sim.SimClock, cfg sim.DiseaseConfig, seed int64) *sim.Simulator {
	t.Helper()
	s, err := sim.NewSimulator(clock, w, sim.NewPartitionedRNG(sim.NewSimulationKey(seed)),
		rules, NewCompartmental(cfg), nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Run(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.CheckIndexes(); err != nil {
		t.Fatalf("indexes inconsistent after run: %v", err)
	}
	return s
}

func TestExposure_CertainTransmissionReachesEveryAttendee(t *testing.T) {
	// GIVEN one infectious agent in a hall with p = 1
	w, rules, clock := outbreakWorld(t, 10, 1)
	w.Agent(0).Health = stInfectious

	s := runOutbreak(t, w, rules, clock, slowConfig(), 1)

	// THEN every susceptible attendee was exposed on the first tick
	totals := s.HealthTotals()
	assert.Equal(t, 0, totals[stSusceptible])
	assert.Equal(t, 9, totals[stExposed])
	assert.Equal(t, 1, totals[stInfectious])
}

func TestExposure_NeedsASharedLocation(t *testing.T) {
	// GIVEN the infectious agent isolated at the hospital
	w, rules, clock := outbreakWorld(t, 10, 1)
	w.Agent(0).Health = stInfectious
	w.Agent(0).Location = 1

	s := runOutbreak(t, w, rules, clock, slowConfig(), 1)

	totals := s.HealthTotals()
	assert.Equal(t, 9, totals[stSusceptible])
	assert.Equal(t, 0, totals[stExposed])
}

func TestExposure_NeedsAConfiguredKind(t *testing.T) {
	// GIVEN no infection probability for any location kind
	w, rules, clock := outbreakWorld(t, 10, 1)
	w.Agent(0).Health = stInfectious
	cfg := slowConfig()
	cfg.InfectionProb = nil

	s := runOutbreak(t, w, rules, clock, cfg, 1)

	assert.Equal(t, 9, s.HealthTotals()[stSusceptible])
}

func TestAttackRate(t *testing.T) {
	assert.InDelta(t, 0.5, attackRate(0.5, 1), 1e-12)
	assert.InDelta(t, 0.75, attackRate(0.5, 2), 1e-12)
	assert.InDelta(t, 1.0, attackRate(1.0, 3), 1e-12)
	assert.InDelta(t, 0.0, attackRate(0.0, 5), 1e-12)
}

func TestProgression_FullCourseToRecovery(t *testing.T) {
	// GIVEN short dwells and outcomes that always recover
	w, rules, clock := outbreakWorld(t, 4, 3)
	w.Agent(0).Health = stInfectious

	s := runOutbreak(t, w, rules, clock, fastConfig(), 2)

	// THEN the whole hall went susceptible→exposed→infectious→recovered
	assert.Equal(t, 4, s.HealthTotals()[stRecovered])
	// One change for the seed, three each for the rest.
	assert.Equal(t, int64(10), s.Metrics.HealthChanges)
}

func TestProgression_HospitalPathEndsAtTheCemetery(t *testing.T) {
	// GIVEN every illness hospitalizes and every hospital stay is fatal
	w, rules, clock := outbreakWorld(t, 4, 3)
	w.Agent(0).Health = stInfectious
	cfg := fastConfig()
	cfg.AgeOutcomes = []sim.AgeOutcomeConfig{
		{MinAge: 0, MaxAge: 120, HospitalizeP: 1, HospitalDeathP: 1},
	}

	s := runOutbreak(t, w, rules, clock, cfg, 3)

	assert.Equal(t, 4, s.HealthTotals()[stDead])
	for _, a := range w.Agents() {
		if kind := w.Location(a.Location).Kind; kind != "cemetery" {
			t.Errorf("agent %d ended at %q, want cemetery", a.ID, kind)
		}
	}
	// Hospitalizations peaked above zero on the way through.
	assert.Greater(t, s.Metrics.PeakByState[stHospitalized], 0)
}

func TestDwellTicks_NeverBelowOneTick(t *testing.T) {
	w, rules, clock := outbreakWorld(t, 2, 1)
	cfg := slowConfig()
	cfg.LatentDays = sim.GammaConfig{MeanDays: 0.0001, Shape: 2}
	d := NewCompartmental(cfg)
	s, err := sim.NewSimulator(clock, w, sim.NewPartitionedRNG(sim.NewSimulationKey(1)),
		rules, d, nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Init(s); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 50; i++ {
		if got := d.dwellTicks(d.latent); got < 1 {
			t.Fatalf("dwell of %d ticks", got)
		}
	}
}

func TestBandLookup(t *testing.T) {
	cfg := slowConfig()
	cfg.AgeOutcomes = []sim.AgeOutcomeConfig{
		{MinAge: 0, MaxAge: 17, HospitalizeP: 0.01},
		{MinAge: 18, MaxAge: 64, HospitalizeP: 0.05},
	}
	d := NewCompartmental(cfg)

	assert.Equal(t, 0.01, d.band(10).HospitalizeP)
	assert.Equal(t, 0.05, d.band(40).HospitalizeP)
	// BDD: an uncovered age falls back to the always-recover zero band
	assert.Equal(t, sim.AgeOutcomeConfig{}, d.band(99))
}

func TestSeedInfections(t *testing.T) {
	w, _, _ := outbreakWorld(t, 10, 1)
	if err := SeedInfections(w, stInfectious, 3, rand.New(rand.NewSource(5))); err != nil {
		t.Fatal(err)
	}

	var seeded []sim.AgentID
	for _, a := range w.Agents() {
		if a.Health == stInfectious {
			seeded = append(seeded, a.ID)
		}
	}
	assert.Len(t, seeded, 3)

	// Same source seed picks the same agents.
	w2, _, _ := outbreakWorld(t, 10, 1)
	if err := SeedInfections(w2, stInfectious, 3, rand.New(rand.NewSource(5))); err != nil {
		t.Fatal(err)
	}
	var seeded2 []sim.AgentID
	for _, a := range w2.Agents() {
		if a.Health == stInfectious {
			seeded2 = append(seeded2, a.ID)
		}
	}
	assert.Equal(t, seeded, seeded2)
}

func TestSeedInfections_RejectsOversizedSeed(t *testing.T) {
	w, _, _ := outbreakWorld(t, 3, 1)
	err := SeedInfections(w, stInfectious, 4, rand.New(rand.NewSource(1)))
	assert.Error(t, err)
}

func TestEpidemic_SameSeedSameTrajectory(t *testing.T) {
	trajectory := func(seed int64) string {
		w, rules, clock := outbreakWorld(t, 30, 3)
		w.Agent(0).Health = stInfectious

		cfg := slowConfig()
		cfg.InfectionProb = map[string]float64{"hall": 0.15}
		cfg.LatentDays = sim.GammaConfig{MeanDays: 2, Shape: 4}

		var b strings.Builder
		rec := &totalsRecorder{out: &b}
		s, err := sim.NewSimulator(clock, w, sim.NewPartitionedRNG(sim.NewSimulationKey(seed)),
			rules, NewCompartmental(cfg), nil, nil, []sim.Reporter{rec})
		if err != nil {
			t.Fatal(err)
		}
		if err := s.Run(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return b.String()
	}

	if a, b := trajectory(11), trajectory(11); a != b {
		t.Error("same seed produced different epidemics")
	}
	if a, b := trajectory(11), trajectory(12); a == b {
		t.Error("different seeds produced identical epidemics")
	}
}

// totalsRecorder folds every tick's per-state totals into a string.
type totalsRecorder struct {
	out *strings.Builder
}

func (r *totalsRecorder) Name() string                 { return "totals-recorder" }
func (r *totalsRecorder) Start(s *sim.Simulator) error { return nil }
func (r *totalsRecorder) Stop(s *sim.Simulator) error  { return nil }

func (r *totalsRecorder) Iterate(s *sim.Simulator) {
	fmt.Fprintf(r.out, "%d:%v;", s.Clock.Tick(), s.HealthTotals())
}
