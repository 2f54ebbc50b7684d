package intervention

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/epidemic-sim/epidemic-sim/sim"
)

// Confinement topics, published by Quarantine for other components and
// reporters to observe.
const (
	TopicQuarantineStart sim.Topic = "notify.quarantine.start"
	TopicQuarantineEnd   sim.Topic = "notify.quarantine.end"
)

// QuarantineNotice reports one agent entering or leaving confinement.
type QuarantineNotice struct {
	sim.ComponentEvent
	Agent sim.AgentID
}

// Quarantine confines agents to their home venue for a fixed number of
// days after they enter the trigger health state. While confined, a
// location request is rewritten into a request for the agent's home,
// except for visits to exempt kinds such as hospitals, so disease-driven
// admissions still go through. Re-entering the trigger state restarts the
// countdown; recovering early does not cut it short.
type Quarantine struct {
	sim.BaseComponent

	cfg sim.InterventionConfig
	sim *sim.Simulator

	trigger      sim.HealthState
	exempt       map[string]bool
	durationDays int

	homeAct sim.Activity
	hasHome bool

	until map[sim.AgentID]int64
}

// NewQuarantine builds a quarantine triggered by cfg.FromState. Kinds in
// cfg.Kinds stay reachable while confined.
func NewQuarantine(cfg sim.InterventionConfig) (*Quarantine, error) {
	if cfg.FromState == "" {
		return nil, fmt.Errorf("quarantine %q: from_state is required", cfg.Name)
	}
	if cfg.DurationDays == nil {
		return nil, fmt.Errorf("quarantine %q: duration_days is required", cfg.Name)
	}
	q := &Quarantine{
		BaseComponent: sim.NewBaseComponent(cfg.Name),
		cfg:           cfg,
		exempt:        kindSet(cfg.Kinds),
		durationDays:  *cfg.DurationDays,
		until:         make(map[sim.AgentID]int64),
	}
	q.DeclareVariable("duration_days", intVariable("duration_days", 1, 365, &q.durationDays))
	return q, nil
}

func (q *Quarantine) Init(s *sim.Simulator) error {
	q.sim = s
	tok, err := s.World.HealthStates.Token(q.cfg.FromState)
	if err != nil {
		return fmt.Errorf("quarantine %q: %w", q.Name(), err)
	}
	q.trigger = tok
	if q.cfg.HomeActivity != "" {
		act, err := s.World.Activities.Token(q.cfg.HomeActivity)
		if err != nil {
			return fmt.Errorf("quarantine %q: %w", q.Name(), err)
		}
		q.homeAct = act
		q.hasHome = true
	}
	s.Bus.Subscribe(sim.TopicTick, q.onTick, q)
	s.Bus.Subscribe(sim.TopicHealthNotice, q.onHealthNotice, q)
	s.Bus.Subscribe(sim.TopicLocationRequest, q.onLocationRequest, q)
	logrus.Infof("[intervention] quarantine %q: %d days on entering %q",
		q.Name(), q.durationDays, q.cfg.FromState)
	return nil
}

// onTick releases agents whose confinement has run out, in agent order.
func (q *Quarantine) onTick(e sim.Event) sim.Outcome {
	if !q.Enabled() {
		return sim.Continue
	}
	t := e.(sim.TickEvent).Tick
	var due []sim.AgentID
	for id, until := range q.until {
		if t >= until {
			due = append(due, id)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i] < due[j] })
	for _, id := range due {
		delete(q.until, id)
		q.sim.Bus.Publish(TopicQuarantineEnd, QuarantineNotice{Agent: id})
	}
	return sim.Continue
}

func (q *Quarantine) onHealthNotice(e sim.Event) sim.Outcome {
	if !q.Enabled() {
		return sim.Continue
	}
	notice := e.(sim.HealthNotice)
	agent := q.sim.World.Agent(notice.Agent)
	if agent == nil || agent.Health != q.trigger {
		return sim.Continue
	}
	if q.hasHome {
		if home, ok := homeVenue(agent, q.homeAct); ok && home != agent.Location {
			q.sim.Bus.Publish(sim.TopicActivityRequest, sim.ActivityRequest{Agent: notice.Agent, Activity: q.homeAct})
			q.sim.Bus.Publish(sim.TopicLocationRequest, sim.LocationRequest{Agent: notice.Agent, Location: home})
		}
	}
	_, confined := q.until[notice.Agent]
	q.until[notice.Agent] = q.sim.Clock.Tick() + int64(q.durationDays)*q.sim.Clock.TicksInDay()
	if !confined {
		q.sim.Bus.Publish(TopicQuarantineStart, QuarantineNotice{Agent: notice.Agent})
	}
	return sim.Continue
}

func (q *Quarantine) onLocationRequest(e sim.Event) sim.Outcome {
	if !q.Enabled() {
		return sim.Continue
	}
	req := e.(sim.LocationRequest)
	if _, confined := q.until[req.Agent]; !confined {
		return sim.Continue
	}
	if dest := q.sim.World.Location(req.Location); dest != nil && q.exempt[dest.Kind] {
		return sim.Continue
	}
	if q.hasHome {
		agent := q.sim.World.Agent(req.Agent)
		if home, ok := homeVenue(agent, q.homeAct); ok {
			// A request already pointing home passes; it is the move
			// confinement wants.
			if home == req.Location {
				return sim.Continue
			}
			q.sim.Bus.Publish(sim.TopicActivityRequest, sim.ActivityRequest{Agent: req.Agent, Activity: q.homeAct})
			q.sim.Bus.Publish(sim.TopicLocationRequest, sim.LocationRequest{Agent: req.Agent, Location: home})
		}
	}
	return sim.Consume
}
