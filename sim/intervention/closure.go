package intervention

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/epidemic-sim/epidemic-sim/sim"
)

// LocationClosure vetoes every visit to the configured location kinds
// around the clock. When the scenario names a home activity, blocked
// agents are sent to their home venue instead of merely staying put. The
// closed kind list can be changed mid-run through the scheduler.
type LocationClosure struct {
	sim.BaseComponent

	cfg sim.InterventionConfig
	sim *sim.Simulator

	kinds map[string]bool

	homeAct sim.Activity
	hasHome bool
}

// NewLocationClosure builds a closure over the kinds in cfg.
func NewLocationClosure(cfg sim.InterventionConfig) (*LocationClosure, error) {
	if len(cfg.Kinds) == 0 {
		return nil, fmt.Errorf("location closure %q: no location kinds", cfg.Name)
	}
	c := &LocationClosure{
		BaseComponent: sim.NewBaseComponent(cfg.Name),
		cfg:           cfg,
		kinds:         kindSet(cfg.Kinds),
	}
	c.DeclareVariable("kinds", kindsVariable("kinds", &c.kinds))
	return c, nil
}

func (c *LocationClosure) Init(s *sim.Simulator) error {
	c.sim = s
	if c.cfg.HomeActivity != "" {
		act, err := s.World.Activities.Token(c.cfg.HomeActivity)
		if err != nil {
			return fmt.Errorf("location closure %q: %w", c.Name(), err)
		}
		c.homeAct = act
		c.hasHome = true
	}
	s.Bus.Subscribe(sim.TopicLocationRequest, c.onLocationRequest, c)
	logrus.Infof("[intervention] closure %q: %d kinds shut", c.Name(), len(c.kinds))
	return nil
}

func (c *LocationClosure) onLocationRequest(e sim.Event) sim.Outcome {
	if !c.Enabled() {
		return sim.Continue
	}
	req := e.(sim.LocationRequest)
	dest := c.sim.World.Location(req.Location)
	if dest == nil || !c.kinds[dest.Kind] {
		return sim.Continue
	}
	if c.hasHome {
		agent := c.sim.World.Agent(req.Agent)
		// No republish when the home venue's own kind is shut; the agent
		// freezes instead of bouncing between two closed places.
		if home, ok := homeVenue(agent, c.homeAct); ok &&
			home != req.Location && !c.kinds[c.sim.World.Location(home).Kind] {
			c.sim.Bus.Publish(sim.TopicActivityRequest, sim.ActivityRequest{Agent: req.Agent, Activity: c.homeAct})
			c.sim.Bus.Publish(sim.TopicLocationRequest, sim.LocationRequest{Agent: req.Agent, Location: home})
		}
	}
	return sim.Consume
}
