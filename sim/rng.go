package sim

import (
	"fmt"
	"hash/fnv"
	"math/rand"
)

// SimulationKey uniquely identifies a reproducible simulation run.
// Two runs with the same SimulationKey and identical scenario configuration
// MUST produce bit-for-bit identical results.
type SimulationKey int64

// NewSimulationKey creates a SimulationKey from a seed value.
func NewSimulationKey(seed int64) SimulationKey {
	return SimulationKey(seed)
}

const (
	// SubsystemActivity is the RNG subsystem for activity transitions.
	SubsystemActivity = "activity"

	// SubsystemMovement is the RNG subsystem for location selection.
	SubsystemMovement = "movement"

	// SubsystemDisease is the RNG subsystem for health-state progression.
	SubsystemDisease = "disease"

	// SubsystemWorld is the RNG subsystem for offline world construction.
	SubsystemWorld = "world"
)

// SubsystemIntervention returns the RNG subsystem name for a named
// intervention, so each intervention draws from its own stream.
func SubsystemIntervention(name string) string {
	return fmt.Sprintf("intervention_%s", name)
}

// PartitionedRNG provides deterministic, isolated RNG instances per subsystem.
//
// Derivation: masterSeed XOR fnv1a64(subsystemName). Adding or removing a
// subsystem never perturbs the streams of the others.
//
// Thread-safety: NOT thread-safe. Must be called from a single goroutine.
type PartitionedRNG struct {
	key        SimulationKey
	subsystems map[string]*rand.Rand
}

// NewPartitionedRNG creates a PartitionedRNG from a SimulationKey.
func NewPartitionedRNG(key SimulationKey) *PartitionedRNG {
	return &PartitionedRNG{
		key:        key,
		subsystems: make(map[string]*rand.Rand),
	}
}

// ForSubsystem returns a deterministically-seeded RNG for the named subsystem.
// The same subsystem name always returns the same *rand.Rand instance (cached).
// Never returns nil.
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	if rng, ok := p.subsystems[name]; ok {
		return rng
	}
	rng := rand.New(rand.NewSource(int64(p.key) ^ fnv1a64(name)))
	p.subsystems[name] = rng
	return rng
}

// Key returns the SimulationKey used to create this PartitionedRNG.
func (p *PartitionedRNG) Key() SimulationKey {
	return p.key
}

// fnv1a64 computes a 64-bit FNV-1a hash of the input string.
func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}

// Multinoulli draws an index from the categorical distribution proportional
// to weights. The total weight must be strictly positive.
func Multinoulli(rng *rand.Rand, weights []float64) (int, error) {
	var total float64
	for _, w := range weights {
		total += w
	}
	if total <= 0 {
		return 0, fmt.Errorf("multinoulli: total weight %v is not positive", total)
	}
	r := rng.Float64() * total
	for i, w := range weights {
		r -= w
		if r < 0 {
			return i, nil
		}
	}
	// Round-off can leave r at exactly zero after the final subtraction;
	// the draw then belongs to the last positive-weight entry.
	for i := len(weights) - 1; i >= 0; i-- {
		if weights[i] > 0 {
			return i, nil
		}
	}
	return 0, fmt.Errorf("multinoulli: no positive weight")
}

// Bernoulli returns true with probability p.
func Bernoulli(rng *rand.Rand, p float64) bool {
	return rng.Float64() < p
}
