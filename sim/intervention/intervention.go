// Package intervention provides components that reshape agent behavior by
// consuming or rewriting the engine's change requests. Each intervention
// subscribes during Init, honors its enabled flag on every event, and can
// be switched or re-parameterized mid-run through the scheduler.
package intervention

import (
	"fmt"

	"github.com/epidemic-sim/epidemic-sim/sim"
)

// New builds the intervention a scenario entry names.
func New(cfg sim.InterventionConfig) (sim.Component, error) {
	switch cfg.Type {
	case "curfew":
		c, err := NewCurfew(cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "location_closure":
		c, err := NewLocationClosure(cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "quarantine":
		c, err := NewQuarantine(cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "vaccination":
		c, err := NewVaccination(cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown intervention type %q", cfg.Type)
	}
}

// kindSet turns a kind list into a membership set.
func kindSet(kinds []string) map[string]bool {
	set := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		set[k] = true
	}
	return set
}

// homeVenue returns an agent's first allowed venue for the home activity.
func homeVenue(a *sim.Agent, home sim.Activity) (sim.LocationID, bool) {
	locs := a.LocationsFor(home)
	if len(locs) == 0 {
		return 0, false
	}
	return locs[0], true
}

// inHourWindow reports whether hour h falls in [start, end), wrapping past
// midnight when start > end. An equal start and end is an empty window.
func inHourWindow(h, start, end int) bool {
	switch {
	case start < end:
		return h >= start && h < end
	case start > end:
		return h >= start || h < end
	default:
		return false
	}
}

// intVariable adapts a scheduler-set value into a bounded int field.
func intVariable(name string, min, max int, dst *int) func(any) error {
	return func(value any) error {
		v, ok := value.(int)
		if !ok {
			return fmt.Errorf("%s: want an integer, got %T", name, value)
		}
		if v < min || v > max {
			return fmt.Errorf("%s: %d out of range [%d, %d]", name, v, min, max)
		}
		*dst = v
		return nil
	}
}

// kindsVariable adapts a scheduler-set value into a kind set. YAML hands
// list values over as []any.
func kindsVariable(name string, dst *map[string]bool) func(any) error {
	return func(value any) error {
		var kinds []string
		switch v := value.(type) {
		case []string:
			kinds = v
		case []any:
			for _, x := range v {
				s, ok := x.(string)
				if !ok {
					return fmt.Errorf("%s: want location kind strings, got %T", name, x)
				}
				kinds = append(kinds, s)
			}
		default:
			return fmt.Errorf("%s: want a list of location kinds, got %T", name, value)
		}
		if len(kinds) == 0 {
			return fmt.Errorf("%s: empty kind list", name)
		}
		*dst = kindSet(kinds)
		return nil
	}
}
