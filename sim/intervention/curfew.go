package intervention

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/epidemic-sim/epidemic-sim/sim"
)

// Curfew blocks visits to the configured location kinds during a daily hour
// window. When the scenario names a home activity, blocked agents are sent
// to their home venue, doing the home activity, instead of merely staying
// put.
type Curfew struct {
	sim.BaseComponent

	cfg sim.InterventionConfig
	sim *sim.Simulator

	kinds     map[string]bool
	startHour int
	endHour   int

	homeAct sim.Activity
	hasHome bool
}

// NewCurfew builds a curfew over the kinds and hour window in cfg.
func NewCurfew(cfg sim.InterventionConfig) (*Curfew, error) {
	if len(cfg.Kinds) == 0 {
		return nil, fmt.Errorf("curfew %q: no location kinds", cfg.Name)
	}
	if cfg.StartHour == nil || cfg.EndHour == nil {
		return nil, fmt.Errorf("curfew %q: start_hour and end_hour are required", cfg.Name)
	}
	c := &Curfew{
		BaseComponent: sim.NewBaseComponent(cfg.Name),
		cfg:           cfg,
		kinds:         kindSet(cfg.Kinds),
		startHour:     *cfg.StartHour,
		endHour:       *cfg.EndHour,
	}
	c.DeclareVariable("start_hour", intVariable("start_hour", 0, 23, &c.startHour))
	c.DeclareVariable("end_hour", intVariable("end_hour", 0, 24, &c.endHour))
	return c, nil
}

func (c *Curfew) Init(s *sim.Simulator) error {
	c.sim = s
	if c.cfg.HomeActivity != "" {
		act, err := s.World.Activities.Token(c.cfg.HomeActivity)
		if err != nil {
			return fmt.Errorf("curfew %q: %w", c.Name(), err)
		}
		c.homeAct = act
		c.hasHome = true
	}
	s.Bus.Subscribe(sim.TopicLocationRequest, c.onLocationRequest, c)
	logrus.Infof("[intervention] curfew %q: %d kinds blocked %02d:00-%02d:00",
		c.Name(), len(c.kinds), c.startHour, c.endHour)
	return nil
}

func (c *Curfew) onLocationRequest(e sim.Event) sim.Outcome {
	if !c.Enabled() || !c.active() {
		return sim.Continue
	}
	req := e.(sim.LocationRequest)
	dest := c.sim.World.Location(req.Location)
	if dest == nil || !c.kinds[dest.Kind] {
		return sim.Continue
	}
	if c.hasHome {
		agent := c.sim.World.Agent(req.Agent)
		// The inequality check keeps the republish from looping when the
		// home venue's own kind is under curfew.
		if home, ok := homeVenue(agent, c.homeAct); ok && home != req.Location {
			c.sim.Bus.Publish(sim.TopicActivityRequest, sim.ActivityRequest{Agent: req.Agent, Activity: c.homeAct})
			c.sim.Bus.Publish(sim.TopicLocationRequest, sim.LocationRequest{Agent: req.Agent, Location: home})
		}
	}
	return sim.Consume
}

func (c *Curfew) active() bool {
	return inHourWindow(c.sim.Clock.Now().Hour(), c.startHour, c.endHour)
}
