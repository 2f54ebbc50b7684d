package sim

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
)

// ScheduleEntry is one trigger→action pair from a component's scenario
// block. At is either a raw tick number or an absolute calendar time;
// exactly one of Action ("enable" or "disable") and Set may be present.
type ScheduleEntry struct {
	At     string         `yaml:"at"`
	Action string         `yaml:"action,omitempty"`
	Set    map[string]any `yaml:"set,omitempty"`
}

// calendar layouts accepted for schedule triggers.
var triggerLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

type actionKind int

const (
	actionEnable actionKind = iota
	actionDisable
	actionSet
)

type scheduledAction struct {
	component Component
	kind      actionKind
	variables map[string]any
}

// Scheduler resolves component schedules into a tick-indexed action table
// and fires due actions as the engine hands it each tick. Triggers already
// in the past at resolution time are dropped with a warning, matching a
// run that starts mid-scenario.
type Scheduler struct {
	clock   *SimClock
	actions map[int64][]scheduledAction
}

// NewScheduler returns an empty scheduler resolving triggers against clock.
func NewScheduler(clock *SimClock) *Scheduler {
	return &Scheduler{
		clock:   clock,
		actions: make(map[int64][]scheduledAction),
	}
}

// Schedule resolves a component's entries into the action table. Unknown
// trigger formats, unknown action verbs and set-variables the component
// never declared are configuration errors. Entries keep their listed order
// when several land on one tick.
func (s *Scheduler) Schedule(c Component, entries []ScheduleEntry) error {
	for i, e := range entries {
		tick, err := s.resolveTrigger(e.At)
		if err != nil {
			return fmt.Errorf("component %q schedule entry %d: %w", c.Name(), i, err)
		}

		action, err := s.resolveAction(c, e)
		if err != nil {
			return fmt.Errorf("component %q schedule entry %d: %w", c.Name(), i, err)
		}

		if tick < 0 {
			log.Warnf("component %q: dropping schedule trigger %q, %d ticks before the run starts",
				c.Name(), e.At, -tick)
			continue
		}
		if tick >= s.clock.MaxTicks() {
			log.Warnf("component %q: schedule trigger %q lands after the run ends", c.Name(), e.At)
		}
		s.actions[tick] = append(s.actions[tick], action)
	}
	return nil
}

func (s *Scheduler) resolveTrigger(at string) (int64, error) {
	if at == "" {
		return 0, fmt.Errorf("empty trigger")
	}
	if tick, err := strconv.ParseInt(at, 10, 64); err == nil {
		return tick, nil
	}
	for _, layout := range triggerLayouts {
		if tm, err := time.ParseInLocation(layout, at, s.clock.Epoch().Location()); err == nil {
			return s.clock.DatetimeToTick(tm), nil
		}
	}
	return 0, fmt.Errorf("trigger %q is neither a tick number nor a calendar time", at)
}

func (s *Scheduler) resolveAction(c Component, e ScheduleEntry) (scheduledAction, error) {
	switch {
	case e.Action != "" && len(e.Set) > 0:
		return scheduledAction{}, fmt.Errorf("both action %q and set given", e.Action)

	case e.Action == "enable":
		return scheduledAction{component: c, kind: actionEnable}, nil

	case e.Action == "disable":
		return scheduledAction{component: c, kind: actionDisable}, nil

	case e.Action != "":
		return scheduledAction{}, fmt.Errorf("unknown action %q", e.Action)

	case len(e.Set) > 0:
		cfg, ok := c.(Configurable)
		if !ok {
			return scheduledAction{}, fmt.Errorf("component has no settable variables")
		}
		declared := make(map[string]bool)
		for _, name := range cfg.SettableVariables() {
			declared[name] = true
		}
		for name := range e.Set {
			if !declared[name] {
				return scheduledAction{}, fmt.Errorf("variable %q was never declared (have %v)",
					name, cfg.SettableVariables())
			}
		}
		return scheduledAction{component: c, kind: actionSet, variables: e.Set}, nil

	default:
		return scheduledAction{}, fmt.Errorf("entry has neither action nor set")
	}
}

// Tick fires every action scheduled for exactly tick t, in schedule order.
// Ticks with nothing due are a no-op.
func (s *Scheduler) Tick(t int64) error {
	for _, a := range s.actions[t] {
		switch a.kind {
		case actionEnable:
			log.Infof("scheduler: enabling %q at tick %d", a.component.Name(), t)
			a.component.Enable()

		case actionDisable:
			log.Infof("scheduler: disabling %q at tick %d", a.component.Name(), t)
			a.component.Disable()

		case actionSet:
			cfg := a.component.(Configurable)
			names := make([]string, 0, len(a.variables))
			for name := range a.variables {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				log.Infof("scheduler: setting %q.%s at tick %d", a.component.Name(), name, t)
				if err := cfg.SetVariable(name, a.variables[name]); err != nil {
					return fmt.Errorf("setting %q.%s: %w", a.component.Name(), name, err)
				}
			}
		}
	}
	return nil
}

// Pending returns how many ticks still have actions scheduled.
func (s *Scheduler) Pending() int {
	return len(s.actions)
}
