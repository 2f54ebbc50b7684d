package sim

import (
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario is the complete run configuration, loadable from a YAML file.
// Nil pointer fields mean "not set in YAML" and fall back to defaults at
// build time; string fields use the empty string for "not set".
type Scenario struct {
	Name           string `yaml:"name"`
	Seed           *int64 `yaml:"seed"`
	TickLengthS    int    `yaml:"tick_length_s"`
	SimulationDays int    `yaml:"simulation_days"`
	Epoch          string `yaml:"epoch"`

	Activities   []string            `yaml:"activities"`
	HealthStates []HealthStateConfig `yaml:"health_states"`

	AgentClasses  []AgentClassConfig   `yaml:"agent_classes"`
	LocationKinds []LocationKindConfig `yaml:"location_kinds"`
	Special       SpecialLocations     `yaml:"special_locations"`

	World    WorldConfig     `yaml:"world"`
	Routines []RoutineConfig `yaml:"routines"`

	Disease DiseaseConfig `yaml:"disease"`

	Interventions []InterventionConfig `yaml:"interventions"`
	Reporters     []ReporterConfig     `yaml:"reporters"`
}

// HealthStateConfig declares one health state and its movement semantics.
type HealthStateConfig struct {
	Name        string `yaml:"name"`
	Initial     bool   `yaml:"initial,omitempty"`
	NoMove      bool   `yaml:"no_move,omitempty"`
	Hospitalize bool   `yaml:"hospitalize,omitempty"`
	Deceased    bool   `yaml:"deceased,omitempty"`
}

// AgentClassConfig declares one routine class as an age band with its
// population share.
type AgentClassConfig struct {
	Name   string  `yaml:"name"`
	MinAge int     `yaml:"min_age"`
	MaxAge int     `yaml:"max_age"`
	Share  float64 `yaml:"share"`
}

// LocationKindConfig declares how many locations of one kind the world
// gets.
type LocationKindConfig struct {
	Kind  string `yaml:"kind"`
	Count int    `yaml:"count"`
}

// SpecialLocations names the kinds with engine-level meaning.
type SpecialLocations struct {
	HospitalKind string `yaml:"hospital_kind"`
	CemeteryKind string `yaml:"cemetery_kind"`
}

// WorldConfig drives offline world construction.
type WorldConfig struct {
	Population int     `yaml:"population"`
	WidthKm    float64 `yaml:"width_km"`
	HeightKm   float64 `yaml:"height_km"`

	// Density noise shaping; defaults are fine for most scenarios.
	DensityOctaves     *int     `yaml:"density_octaves,omitempty"`
	DensityFrequency   *float64 `yaml:"density_frequency,omitempty"`
	DensityPersistence *float64 `yaml:"density_persistence,omitempty"`

	HomeKind     string `yaml:"home_kind"`
	HomeActivity string `yaml:"home_activity"`

	// ActivityLocations maps each non-home activity to the kind of venue
	// it happens at and how many nearby venues each agent may choose
	// between.
	ActivityLocations map[string]ActivityLocationConfig `yaml:"activity_locations"`
}

// ActivityLocationConfig binds one activity to a venue kind.
type ActivityLocationConfig struct {
	Kind    string `yaml:"kind"`
	Nearest int    `yaml:"nearest"`
}

// RoutineConfig is one weekly routine block set shared by some classes.
type RoutineConfig struct {
	Classes []string             `yaml:"classes"`
	Days    string               `yaml:"days"` // weekdays, weekend or all
	Blocks  []RoutineBlockConfig `yaml:"blocks"`
}

// RoutineBlockConfig weights activities over an hour span. Stickiness is
// the diagonal share of each row: the probability mass for staying in the
// current activity from one tick to the next.
type RoutineBlockConfig struct {
	Hours      string             `yaml:"hours"` // "9-17", end exclusive
	Weights    map[string]float64 `yaml:"weights"`
	Stickiness *float64           `yaml:"stickiness,omitempty"`
}

// HourSpan parses the block's hour range, end exclusive.
func (b RoutineBlockConfig) HourSpan() (start, end int, err error) {
	return parseHourSpan(b.Hours)
}

// DiseaseConfig parameterizes the compartmental disease model.
type DiseaseConfig struct {
	Model string `yaml:"model"`

	SusceptibleState  string `yaml:"susceptible_state"`
	ExposedState      string `yaml:"exposed_state"`
	InfectedState     string `yaml:"infected_state"`
	HospitalizedState string `yaml:"hospitalized_state"`
	RecoveredState    string `yaml:"recovered_state"`
	DeadState         string `yaml:"dead_state"`

	// InfectionProb is the per-tick chance that one infectious attendee
	// passes the disease to one susceptible attendee sharing a location,
	// by location kind.
	InfectionProb map[string]float64 `yaml:"infection_prob"`

	LatentDays   GammaConfig `yaml:"latent_days"`
	IllnessDays  GammaConfig `yaml:"illness_days"`
	HospitalDays GammaConfig `yaml:"hospital_days"`

	AgeOutcomes []AgeOutcomeConfig `yaml:"age_outcomes"`

	InitialInfected int `yaml:"initial_infected"`
}

// GammaConfig shapes a gamma-distributed dwell time.
type GammaConfig struct {
	MeanDays float64 `yaml:"mean_days"`
	Shape    float64 `yaml:"shape"`
}

// AgeOutcomeConfig sets illness outcome probabilities for an age band.
type AgeOutcomeConfig struct {
	MinAge         int     `yaml:"min_age"`
	MaxAge         int     `yaml:"max_age"`
	HospitalizeP   float64 `yaml:"hospitalize_p"`
	DeathP         float64 `yaml:"death_p"`
	HospitalDeathP float64 `yaml:"hospital_death_p"`
}

// InterventionConfig declares one intervention instance. Which fields
// apply depends on Type; unused ones stay nil.
type InterventionConfig struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`

	// Kinds are the blocked location kinds for curfew and
	// location_closure, and the exempt ones for quarantine.
	Kinds     []string `yaml:"kinds,omitempty"`
	StartHour *int     `yaml:"start_hour,omitempty"`
	EndHour   *int     `yaml:"end_hour,omitempty"`

	// The activity whose venue is "home"; blocked agents are sent there.
	HomeActivity string `yaml:"home_activity,omitempty"`

	// quarantine
	DurationDays *int `yaml:"duration_days,omitempty"`

	// vaccination
	DosesPerDay *int   `yaml:"doses_per_day,omitempty"`
	FromState   string `yaml:"from_state,omitempty"`
	ToState     string `yaml:"to_state,omitempty"`

	Schedule []ScheduleEntry `yaml:"schedule,omitempty"`
}

// ReporterConfig declares one output sink.
type ReporterConfig struct {
	Type          string `yaml:"type"`
	IntervalTicks *int   `yaml:"interval_ticks,omitempty"` // console
	Path          string `yaml:"path,omitempty"`           // csv and sqlite
	Listen        string `yaml:"listen,omitempty"`         // prometheus and telemetry
}

// LoadScenario reads and parses a YAML scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parsing scenario: %w", err)
	}
	return &sc, nil
}

// ValidRoutineDays is the set of recognized routine day selectors.
var ValidRoutineDays = map[string]bool{"weekdays": true, "weekend": true, "all": true}

// ValidInterventionTypes is the set of recognized intervention types.
// Shared by Validate() and the intervention factory.
var ValidInterventionTypes = map[string]bool{
	"curfew":           true,
	"location_closure": true,
	"quarantine":       true,
	"vaccination":      true,
}

// ValidReporterTypes is the set of recognized reporter types.
var ValidReporterTypes = map[string]bool{
	"console":    true,
	"csv":        true,
	"sqlite":     true,
	"prometheus": true,
	"telemetry":  true,
}

// ValidDiseaseModels is the set of recognized disease model names.
var ValidDiseaseModels = map[string]bool{"": true, "compartmental": true}

// Validate checks the scenario's internal consistency: every referenced
// label, class, kind and state must be declared, and every parameter must
// be in range. Clock arithmetic is re-checked by NewSimClock; this catches
// everything else before any expensive work starts.
func (sc *Scenario) Validate() error {
	if sc.Name == "" {
		return fmt.Errorf("scenario has no name")
	}
	if sc.TickLengthS <= 0 {
		return fmt.Errorf("tick_length_s must be positive, got %d", sc.TickLengthS)
	}
	if sc.SimulationDays <= 0 {
		return fmt.Errorf("simulation_days must be positive, got %d", sc.SimulationDays)
	}
	if _, err := sc.epochTime(); err != nil {
		return err
	}

	activities := make(map[string]bool, len(sc.Activities))
	for _, a := range sc.Activities {
		activities[a] = true
	}
	if len(activities) == 0 {
		return fmt.Errorf("no activities declared")
	}

	states := make(map[string]bool, len(sc.HealthStates))
	initials := 0
	for _, hs := range sc.HealthStates {
		if hs.Name == "" {
			return fmt.Errorf("health state with empty name")
		}
		states[hs.Name] = true
		if hs.Initial {
			initials++
		}
	}
	if len(states) == 0 {
		return fmt.Errorf("no health states declared")
	}
	if initials != 1 {
		return fmt.Errorf("exactly one health state must be marked initial, got %d", initials)
	}

	classes := make(map[string]bool, len(sc.AgentClasses))
	var shareSum float64
	for _, c := range sc.AgentClasses {
		if c.Name == "" {
			return fmt.Errorf("agent class with empty name")
		}
		if classes[c.Name] {
			return fmt.Errorf("duplicate agent class %q", c.Name)
		}
		classes[c.Name] = true
		if c.MinAge < 0 || c.MaxAge < c.MinAge {
			return fmt.Errorf("agent class %q: bad age range [%d, %d]", c.Name, c.MinAge, c.MaxAge)
		}
		if c.Share <= 0 {
			return fmt.Errorf("agent class %q: share must be positive, got %f", c.Name, c.Share)
		}
		shareSum += c.Share
	}
	if len(classes) == 0 {
		return fmt.Errorf("no agent classes declared")
	}
	if math.Abs(shareSum-1) > 1e-6 {
		return fmt.Errorf("agent class shares sum to %f, want 1", shareSum)
	}

	kinds := make(map[string]bool, len(sc.LocationKinds))
	for _, k := range sc.LocationKinds {
		if k.Kind == "" {
			return fmt.Errorf("location kind with empty name")
		}
		if kinds[k.Kind] {
			return fmt.Errorf("duplicate location kind %q", k.Kind)
		}
		if k.Count <= 0 {
			return fmt.Errorf("location kind %q: count must be positive, got %d", k.Kind, k.Count)
		}
		kinds[k.Kind] = true
	}
	if sc.Special.HospitalKind != "" && !kinds[sc.Special.HospitalKind] {
		return fmt.Errorf("hospital_kind %q is not a declared location kind", sc.Special.HospitalKind)
	}
	if sc.Special.CemeteryKind != "" && !kinds[sc.Special.CemeteryKind] {
		return fmt.Errorf("cemetery_kind %q is not a declared location kind", sc.Special.CemeteryKind)
	}

	if err := sc.validateWorld(activities, kinds); err != nil {
		return err
	}
	if err := sc.validateRoutines(activities, classes); err != nil {
		return err
	}
	if err := sc.validateDisease(states, kinds); err != nil {
		return err
	}

	for i, iv := range sc.Interventions {
		if iv.Name == "" {
			return fmt.Errorf("intervention %d has no name", i)
		}
		if !ValidInterventionTypes[iv.Type] {
			return fmt.Errorf("intervention %q: unknown type %q", iv.Name, iv.Type)
		}
		for _, kind := range iv.Kinds {
			if !kinds[kind] {
				return fmt.Errorf("intervention %q: unknown location kind %q", iv.Name, kind)
			}
		}
		if iv.StartHour != nil && (*iv.StartHour < 0 || *iv.StartHour > 23) {
			return fmt.Errorf("intervention %q: start_hour %d out of range", iv.Name, *iv.StartHour)
		}
		if iv.EndHour != nil && (*iv.EndHour < 0 || *iv.EndHour > 24) {
			return fmt.Errorf("intervention %q: end_hour %d out of range", iv.Name, *iv.EndHour)
		}
		if iv.HomeActivity != "" && !activities[iv.HomeActivity] {
			return fmt.Errorf("intervention %q: unknown home_activity %q", iv.Name, iv.HomeActivity)
		}
		if iv.DurationDays != nil && *iv.DurationDays <= 0 {
			return fmt.Errorf("intervention %q: duration_days must be positive", iv.Name)
		}
		if iv.DosesPerDay != nil && *iv.DosesPerDay <= 0 {
			return fmt.Errorf("intervention %q: doses_per_day must be positive", iv.Name)
		}
		if iv.FromState != "" && !states[iv.FromState] {
			return fmt.Errorf("intervention %q: unknown from_state %q", iv.Name, iv.FromState)
		}
		if iv.ToState != "" && !states[iv.ToState] {
			return fmt.Errorf("intervention %q: unknown to_state %q", iv.Name, iv.ToState)
		}
	}

	for i, r := range sc.Reporters {
		if !ValidReporterTypes[r.Type] {
			return fmt.Errorf("reporter %d: unknown type %q", i, r.Type)
		}
		if r.IntervalTicks != nil && *r.IntervalTicks <= 0 {
			return fmt.Errorf("reporter %d: interval_ticks must be positive", i)
		}
	}
	return nil
}

func (sc *Scenario) validateWorld(activities, kinds map[string]bool) error {
	w := sc.World
	if w.Population <= 0 {
		return fmt.Errorf("world population must be positive, got %d", w.Population)
	}
	if w.WidthKm <= 0 || w.HeightKm <= 0 {
		return fmt.Errorf("world extent %fx%f km is not positive", w.WidthKm, w.HeightKm)
	}
	if !kinds[w.HomeKind] {
		return fmt.Errorf("world home_kind %q is not a declared location kind", w.HomeKind)
	}
	if !activities[w.HomeActivity] {
		return fmt.Errorf("world home_activity %q is not a declared activity", w.HomeActivity)
	}
	for act, al := range w.ActivityLocations {
		if !activities[act] {
			return fmt.Errorf("activity_locations: unknown activity %q", act)
		}
		if !kinds[al.Kind] {
			return fmt.Errorf("activity_locations[%s]: unknown location kind %q", act, al.Kind)
		}
		if al.Nearest <= 0 {
			return fmt.Errorf("activity_locations[%s]: nearest must be positive, got %d", act, al.Nearest)
		}
	}
	for _, act := range sc.Activities {
		if act == w.HomeActivity {
			continue
		}
		if _, ok := w.ActivityLocations[act]; !ok {
			return fmt.Errorf("activity %q has no activity_locations entry", act)
		}
	}
	if w.DensityOctaves != nil && *w.DensityOctaves <= 0 {
		return fmt.Errorf("density_octaves must be positive")
	}
	if w.DensityFrequency != nil && *w.DensityFrequency <= 0 {
		return fmt.Errorf("density_frequency must be positive")
	}
	if w.DensityPersistence != nil && (*w.DensityPersistence <= 0 || *w.DensityPersistence >= 1) {
		return fmt.Errorf("density_persistence must sit in (0, 1)")
	}
	return nil
}

func (sc *Scenario) validateRoutines(activities, classes map[string]bool) error {
	if len(sc.Routines) == 0 {
		return fmt.Errorf("no routines declared")
	}
	covered := make(map[string]bool)
	for i, r := range sc.Routines {
		if !ValidRoutineDays[r.Days] {
			return fmt.Errorf("routine %d: unknown days selector %q", i, r.Days)
		}
		if len(r.Classes) == 0 {
			return fmt.Errorf("routine %d names no classes", i)
		}
		for _, c := range r.Classes {
			if !classes[c] {
				return fmt.Errorf("routine %d: unknown agent class %q", i, c)
			}
			covered[c] = true
		}
		if len(r.Blocks) == 0 {
			return fmt.Errorf("routine %d has no blocks", i)
		}
		for j, b := range r.Blocks {
			start, end, err := parseHourSpan(b.Hours)
			if err != nil {
				return fmt.Errorf("routine %d block %d: %w", i, j, err)
			}
			if start >= end {
				return fmt.Errorf("routine %d block %d: empty hour span %q", i, j, b.Hours)
			}
			if len(b.Weights) == 0 {
				return fmt.Errorf("routine %d block %d has no weights", i, j)
			}
			for act, w := range b.Weights {
				if !activities[act] {
					return fmt.Errorf("routine %d block %d: unknown activity %q", i, j, act)
				}
				if w < 0 {
					return fmt.Errorf("routine %d block %d: negative weight for %q", i, j, act)
				}
			}
			if b.Stickiness != nil && (*b.Stickiness < 0 || *b.Stickiness >= 1) {
				return fmt.Errorf("routine %d block %d: stickiness must sit in [0, 1)", i, j)
			}
		}
	}
	for c := range classes {
		if !covered[c] {
			return fmt.Errorf("agent class %q has no routine", c)
		}
	}
	return nil
}

func (sc *Scenario) validateDisease(states, kinds map[string]bool) error {
	d := sc.Disease
	if !ValidDiseaseModels[d.Model] {
		return fmt.Errorf("unknown disease model %q", d.Model)
	}
	if d.Model == "" {
		return nil
	}
	for _, ref := range []struct{ field, name string }{
		{"susceptible_state", d.SusceptibleState},
		{"exposed_state", d.ExposedState},
		{"infected_state", d.InfectedState},
		{"hospitalized_state", d.HospitalizedState},
		{"recovered_state", d.RecoveredState},
		{"dead_state", d.DeadState},
	} {
		if ref.name == "" {
			return fmt.Errorf("disease: %s not set", ref.field)
		}
		if !states[ref.name] {
			return fmt.Errorf("disease: %s %q is not a declared health state", ref.field, ref.name)
		}
	}
	for kind, p := range d.InfectionProb {
		if !kinds[kind] {
			return fmt.Errorf("disease: infection_prob names unknown location kind %q", kind)
		}
		if p < 0 || p > 1 {
			return fmt.Errorf("disease: infection_prob[%s] = %f out of [0, 1]", kind, p)
		}
	}
	for _, g := range []struct {
		field string
		cfg   GammaConfig
	}{
		{"latent_days", d.LatentDays},
		{"illness_days", d.IllnessDays},
		{"hospital_days", d.HospitalDays},
	} {
		if g.cfg.MeanDays <= 0 {
			return fmt.Errorf("disease: %s mean_days must be positive", g.field)
		}
		if g.cfg.Shape <= 0 {
			return fmt.Errorf("disease: %s shape must be positive", g.field)
		}
	}
	if len(d.AgeOutcomes) == 0 {
		return fmt.Errorf("disease: no age_outcomes declared")
	}
	for i, ao := range d.AgeOutcomes {
		if ao.MinAge < 0 || ao.MaxAge < ao.MinAge {
			return fmt.Errorf("disease age_outcomes %d: bad age range [%d, %d]", i, ao.MinAge, ao.MaxAge)
		}
		for _, p := range []float64{ao.HospitalizeP, ao.DeathP, ao.HospitalDeathP} {
			if p < 0 || p > 1 {
				return fmt.Errorf("disease age_outcomes %d: probability %f out of [0, 1]", i, p)
			}
		}
	}
	if d.InitialInfected < 0 {
		return fmt.Errorf("disease: initial_infected must not be negative")
	}
	return nil
}

// parseHourSpan parses "9-17" into start and end hours, end exclusive.
func parseHourSpan(s string) (int, int, error) {
	var start, end int
	if _, err := fmt.Sscanf(s, "%d-%d", &start, &end); err != nil {
		return 0, 0, fmt.Errorf("hour span %q: want \"start-end\"", s)
	}
	if start < 0 || start > 23 || end < 1 || end > 24 {
		return 0, 0, fmt.Errorf("hour span %q out of range", s)
	}
	return start, end, nil
}

func (sc *Scenario) epochTime() (time.Time, error) {
	if sc.Epoch == "" {
		return time.Time{}, fmt.Errorf("epoch not set")
	}
	for _, layout := range triggerLayouts {
		if tm, err := time.ParseInLocation(layout, sc.Epoch, time.UTC); err == nil {
			return tm, nil
		}
	}
	return time.Time{}, fmt.Errorf("epoch %q is not a recognized calendar time", sc.Epoch)
}

// Key returns the simulation key, defaulting the seed to 1 when unset.
func (sc *Scenario) Key() SimulationKey {
	if sc.Seed == nil {
		return NewSimulationKey(1)
	}
	return NewSimulationKey(*sc.Seed)
}

// BuildClock constructs the scenario's clock.
func (sc *Scenario) BuildClock() (*SimClock, error) {
	epoch, err := sc.epochTime()
	if err != nil {
		return nil, err
	}
	return NewSimClock(time.Duration(sc.TickLengthS)*time.Second, sc.SimulationDays, epoch)
}

// BuildLabelSets interns the scenario's activity and health-state labels.
func (sc *Scenario) BuildLabelSets() (*ActivitySet, *HealthStateSet, error) {
	activities, err := NewActivitySet(sc.Activities)
	if err != nil {
		return nil, nil, err
	}
	names := make([]string, len(sc.HealthStates))
	for i, hs := range sc.HealthStates {
		names[i] = hs.Name
	}
	states, err := NewHealthStateSet(names)
	if err != nil {
		return nil, nil, err
	}
	return activities, states, nil
}

// BuildHealthRules resolves the per-state movement flags against the
// interned state set.
func (sc *Scenario) BuildHealthRules(states *HealthStateSet) (*HealthRules, error) {
	var noMove, hospitalize, deceased []HealthState
	for _, hs := range sc.HealthStates {
		tok, err := states.Token(hs.Name)
		if err != nil {
			return nil, err
		}
		if hs.NoMove {
			noMove = append(noMove, tok)
		}
		if hs.Hospitalize {
			hospitalize = append(hospitalize, tok)
		}
		if hs.Deceased {
			deceased = append(deceased, tok)
		}
	}
	return NewHealthRules(states, noMove, hospitalize, deceased,
		sc.Special.HospitalKind, sc.Special.CemeteryKind), nil
}

// InitialHealthState returns the token of the state marked initial.
func (sc *Scenario) InitialHealthState(states *HealthStateSet) (HealthState, error) {
	for _, hs := range sc.HealthStates {
		if hs.Initial {
			return states.Token(hs.Name)
		}
	}
	return 0, fmt.Errorf("no health state marked initial")
}

// ClassIndex returns the position of a class name in declaration order.
func (sc *Scenario) ClassIndex(name string) (AgentClass, error) {
	for i, c := range sc.AgentClasses {
		if c.Name == name {
			return AgentClass(i), nil
		}
	}
	return 0, fmt.Errorf("unknown agent class %q", name)
}
