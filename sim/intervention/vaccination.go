package intervention

import (
	"fmt"
	"math/rand"

	"github.com/sirupsen/logrus"

	"github.com/epidemic-sim/epidemic-sim/sim"
)

// Vaccination moves up to a fixed number of agents per day from one health
// state to another, drawing the day's recipients uniformly at midnight.
type Vaccination struct {
	sim.BaseComponent

	cfg sim.InterventionConfig
	sim *sim.Simulator
	rng *rand.Rand

	from        sim.HealthState
	to          sim.HealthState
	dosesPerDay int
}

// NewVaccination builds a vaccination campaign from cfg.
func NewVaccination(cfg sim.InterventionConfig) (*Vaccination, error) {
	if cfg.FromState == "" || cfg.ToState == "" {
		return nil, fmt.Errorf("vaccination %q: from_state and to_state are required", cfg.Name)
	}
	if cfg.DosesPerDay == nil {
		return nil, fmt.Errorf("vaccination %q: doses_per_day is required", cfg.Name)
	}
	v := &Vaccination{
		BaseComponent: sim.NewBaseComponent(cfg.Name),
		cfg:           cfg,
		dosesPerDay:   *cfg.DosesPerDay,
	}
	v.DeclareVariable("doses_per_day", intVariable("doses_per_day", 1, 1<<30, &v.dosesPerDay))
	return v, nil
}

func (v *Vaccination) Init(s *sim.Simulator) error {
	v.sim = s
	v.rng = s.RNG.ForSubsystem(sim.SubsystemIntervention(v.Name()))
	for _, bind := range []struct {
		dst  *sim.HealthState
		name string
	}{
		{&v.from, v.cfg.FromState},
		{&v.to, v.cfg.ToState},
	} {
		tok, err := s.World.HealthStates.Token(bind.name)
		if err != nil {
			return fmt.Errorf("vaccination %q: %w", v.Name(), err)
		}
		*bind.dst = tok
	}
	s.Bus.Subscribe(sim.TopicMidnight, v.onMidnight, v)
	logrus.Infof("[intervention] vaccination %q: %d doses/day, %s to %s",
		v.Name(), v.dosesPerDay, v.cfg.FromState, v.cfg.ToState)
	return nil
}

func (v *Vaccination) onMidnight(e sim.Event) sim.Outcome {
	if !v.Enabled() {
		return sim.Continue
	}
	ids := v.sim.AgentsInHealthState(v.from).IDs()
	n := v.dosesPerDay
	if n > len(ids) {
		n = len(ids)
	}
	for _, idx := range v.rng.Perm(len(ids))[:n] {
		v.sim.Bus.Publish(sim.TopicHealthRequest, sim.HealthRequest{Agent: ids[idx], Health: v.to})
	}
	return sim.Continue
}
