package worldgen

import (
	"fmt"

	"github.com/epidemic-sim/epidemic-sim/sim"
)

// defaultStickiness is the diagonal share used when a routine block does
// not set one: half of all draws keep the current activity.
const defaultStickiness = 0.5

var dayNames = [7]string{
	"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday",
}

// BuildMatrices compiles the scenario's routines into the weekly matrix
// table: one split transition matrix per agent class and tick-of-week
// slot. Every slot of every class must be covered by exactly one routine
// block; gaps are configuration errors. When several routines cover the
// same class and day, the first one listed wins.
func BuildMatrices(sc *sim.Scenario, activities *sim.ActivitySet, ticksInWeek, ticksInDay int64) (*sim.MatrixSet, error) {
	ms := sim.NewMatrixSet(len(sc.AgentClasses), ticksInWeek)

	// Blocks repeat across many slots; build each matrix once.
	cache := make(map[[2]int]*sim.SplitTransitionMatrix)

	for ci, class := range sc.AgentClasses {
		for slot := int64(0); slot < ticksInWeek; slot++ {
			day := int(slot / ticksInDay) // Monday = 0
			hour := int((slot % ticksInDay) * 24 / ticksInDay)

			ri, bi, err := findBlock(sc, class.Name, day, hour)
			if err != nil {
				return nil, err
			}
			key := [2]int{ri, bi}
			m, ok := cache[key]
			if !ok {
				m, err = blockMatrix(activities, sc.Routines[ri].Blocks[bi])
				if err != nil {
					return nil, fmt.Errorf("routine %d block %d: %w", ri, bi, err)
				}
				cache[key] = m
			}
			ms.Set(sim.AgentClass(ci), slot, m)
		}
	}
	return ms, nil
}

// findBlock locates the routine block covering one class, day and hour.
func findBlock(sc *sim.Scenario, className string, day, hour int) (int, int, error) {
	for ri, r := range sc.Routines {
		if !routineCovers(r, className, day) {
			continue
		}
		for bi, b := range r.Blocks {
			start, end, err := b.HourSpan()
			if err != nil {
				return 0, 0, fmt.Errorf("routine %d block %d: %w", ri, bi, err)
			}
			if hour >= start && hour < end {
				return ri, bi, nil
			}
		}
		return 0, 0, fmt.Errorf("class %q has no routine block for %s %02d:00",
			className, dayNames[day], hour)
	}
	return 0, 0, fmt.Errorf("class %q has no routine for %s", className, dayNames[day])
}

func routineCovers(r sim.RoutineConfig, className string, day int) bool {
	covers := false
	for _, c := range r.Classes {
		if c == className {
			covers = true
			break
		}
	}
	if !covers {
		return false
	}
	switch r.Days {
	case "weekdays":
		return day < 5
	case "weekend":
		return day >= 5
	default: // "all", enforced by Scenario.Validate
		return true
	}
}

// blockMatrix turns one routine block into a split transition matrix. The
// block weights describe where transitions go; the stickiness fixes each
// row's diagonal share, so the stay probability is the same whichever
// activity the agent is doing. A row whose targets all have zero weight
// collapses to a pure stay.
func blockMatrix(activities *sim.ActivitySet, block sim.RoutineBlockConfig) (*sim.SplitTransitionMatrix, error) {
	stickiness := defaultStickiness
	if block.Stickiness != nil {
		stickiness = *block.Stickiness
	}

	weights := make([]float64, activities.Count())
	for name, wgt := range block.Weights {
		tok, err := activities.Token(name)
		if err != nil {
			return nil, err
		}
		weights[tok] = wgt
	}

	m := sim.NewSplitTransitionMatrix(activities)
	for from := 0; from < activities.Count(); from++ {
		var offSum float64
		for to := 0; to < activities.Count(); to++ {
			if to == from || weights[to] == 0 {
				continue
			}
			if err := m.SetWeight(sim.Activity(from), sim.Activity(to), weights[to]); err != nil {
				return nil, err
			}
			offSum += weights[to]
		}
		switch {
		case offSum == 0:
			if err := m.SetWeight(sim.Activity(from), sim.Activity(from), 1); err != nil {
				return nil, err
			}
		case stickiness > 0:
			diag := stickiness * offSum / (1 - stickiness)
			if err := m.SetWeight(sim.Activity(from), sim.Activity(from), diag); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}
