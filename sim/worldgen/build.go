// Package worldgen builds simulation worlds from scenario files: locations
// placed on a noise-shaped density map, a population drawn by class share,
// per-agent venue pools assigned by proximity, and the weekly routine
// matrices compiled from the scenario's routine blocks.
package worldgen

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/epidemic-sim/epidemic-sim/sim"
)

// Build constructs a complete world from a validated scenario. The given
// rng drives every random choice; two builds from the same scenario and
// stream are identical.
func Build(sc *sim.Scenario, rng *rand.Rand) (*sim.World, error) {
	activities, states, err := sc.BuildLabelSets()
	if err != nil {
		return nil, fmt.Errorf("interning labels: %w", err)
	}
	initial, err := sc.InitialHealthState(states)
	if err != nil {
		return nil, err
	}
	homeAct, err := activities.Token(sc.World.HomeActivity)
	if err != nil {
		return nil, fmt.Errorf("resolving home activity: %w", err)
	}

	w := sim.NewWorld(sc.Name, activities, states)

	// Locations first, in kind declaration order, on the density map.
	density := newDensityMap(rng.Int63(), sc.World)
	for _, k := range sc.LocationKinds {
		for i := 0; i < k.Count; i++ {
			w.AddLocation(&sim.Location{
				Kind:  k.Kind,
				Coord: density.samplePoint(rng, sc.World.WidthKm, sc.World.HeightKm),
			})
		}
	}

	homes := w.LocationsOfKind(sc.World.HomeKind)
	if len(homes) == 0 {
		return nil, fmt.Errorf("no %q locations to house agents", sc.World.HomeKind)
	}

	// Venue pools per non-home activity, resolved once.
	type venuePool struct {
		act     sim.Activity
		ids     []sim.LocationID
		nearest int
	}
	pools := make([]venuePool, 0, len(sc.World.ActivityLocations))
	for _, name := range sc.Activities {
		if name == sc.World.HomeActivity {
			continue
		}
		act, err := activities.Token(name)
		if err != nil {
			return nil, err
		}
		al := sc.World.ActivityLocations[name]
		ids := w.LocationsOfKind(al.Kind)
		if len(ids) == 0 {
			return nil, fmt.Errorf("activity %q needs %q locations but the scenario declares none", name, al.Kind)
		}
		pools = append(pools, venuePool{act: act, ids: ids, nearest: al.Nearest})
	}

	clock, err := sc.BuildClock()
	if err != nil {
		return nil, err
	}
	w.Matrices, err = BuildMatrices(sc, activities, clock.TicksInWeek(), clock.TicksInDay())
	if err != nil {
		return nil, err
	}

	// Agents by class: ages uniform within the class band, homes drawn
	// from the density-placed houses. Each agent's starting activity is
	// one draw from its class's matrix at the epoch slot. An agent that
	// lands on the home activity starts at its house; any other draw
	// starts at a uniform pick from that activity's venue pool.
	slot := clock.TicksThroughWeek()
	counts := classCounts(sc.AgentClasses, sc.World.Population)
	for ci, class := range sc.AgentClasses {
		m := w.Matrices.At(sim.AgentClass(ci), slot)
		for i := 0; i < counts[ci]; i++ {
			home := homes[rng.Intn(len(homes))]
			allowed := make([][]sim.LocationID, activities.Count())
			allowed[homeAct] = []sim.LocationID{home}
			for _, pool := range pools {
				allowed[pool.act] = nearestVenues(w, pool.ids, w.Location(home).Coord, pool.nearest)
			}
			act, err := m.Transition(rng, homeAct, false)
			if err != nil {
				return nil, fmt.Errorf("seeding class %q activity: %w", class.Name, err)
			}
			loc := home
			if act != homeAct {
				venues := allowed[act]
				loc = venues[rng.Intn(len(venues))]
			}
			w.AddAgent(&sim.Agent{
				Class:            sim.AgentClass(ci),
				Age:              class.MinAge + rng.Intn(class.MaxAge-class.MinAge+1),
				Health:           initial,
				Activity:         act,
				Location:         loc,
				AllowedLocations: allowed,
			})
		}
	}

	if err := w.Validate(); err != nil {
		return nil, fmt.Errorf("generated world failed validation: %w", err)
	}
	logrus.Infof("[worldgen] %q: %d agents in %d classes, %d locations over %.0fx%.0f km",
		w.Name, w.AgentCount(), len(sc.AgentClasses), w.LocationCount(),
		sc.World.WidthKm, sc.World.HeightKm)
	return w, nil
}

// classCounts apportions the population over the class shares by largest
// remainder, so the counts always sum to the population exactly.
func classCounts(classes []sim.AgentClassConfig, population int) []int {
	counts := make([]int, len(classes))
	type remainder struct {
		idx  int
		part float64
	}
	remainders := make([]remainder, len(classes))

	assigned := 0
	for i, c := range classes {
		exact := c.Share * float64(population)
		counts[i] = int(math.Floor(exact))
		assigned += counts[i]
		remainders[i] = remainder{idx: i, part: exact - math.Floor(exact)}
	}
	sort.Slice(remainders, func(i, j int) bool {
		if remainders[i].part != remainders[j].part {
			return remainders[i].part > remainders[j].part
		}
		return remainders[i].idx < remainders[j].idx
	})
	for i := 0; i < population-assigned; i++ {
		counts[remainders[i%len(remainders)].idx]++
	}
	return counts
}

// nearestVenues returns the venues closest to a point, at most k of them.
// Distance ties break by ID so the result is stable.
func nearestVenues(w *sim.World, venues []sim.LocationID, from sim.Coord, k int) []sim.LocationID {
	type candidate struct {
		id   sim.LocationID
		dist float64
	}
	candidates := make([]candidate, len(venues))
	for i, id := range venues {
		candidates[i] = candidate{id: id, dist: from.DistanceTo(w.Location(id).Coord)}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].dist != candidates[j].dist {
			return candidates[i].dist < candidates[j].dist
		}
		return candidates[i].id < candidates[j].id
	})

	if k > len(candidates) {
		k = len(candidates)
	}
	out := make([]sim.LocationID, k)
	for i := 0; i < k; i++ {
		out[i] = candidates[i].id
	}
	return out
}
