package worldgen

import (
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/epidemic-sim/epidemic-sim/sim"
)

// Density shaping defaults; scenarios override them per field.
const (
	defaultOctaves     = 4
	defaultFrequency   = 0.08
	defaultPersistence = 0.5
)

// densityMap samples population density over the scenario extent with
// layered simplex noise. Values are normalized to [0, 1].
type densityMap struct {
	noise       opensimplex.Noise
	octaves     int
	frequency   float64
	persistence float64
}

func newDensityMap(seed int64, cfg sim.WorldConfig) *densityMap {
	d := &densityMap{
		noise:       opensimplex.NewNormalized(seed),
		octaves:     defaultOctaves,
		frequency:   defaultFrequency,
		persistence: defaultPersistence,
	}
	if cfg.DensityOctaves != nil {
		d.octaves = *cfg.DensityOctaves
	}
	if cfg.DensityFrequency != nil {
		d.frequency = *cfg.DensityFrequency
	}
	if cfg.DensityPersistence != nil {
		d.persistence = *cfg.DensityPersistence
	}
	return d
}

// at returns the density at a point, accumulated over octaves with halving
// amplitude and doubling frequency.
func (d *densityMap) at(x, y float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0
	frequency := d.frequency

	for i := 0; i < d.octaves; i++ {
		total += d.noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= d.persistence
		frequency *= 2
	}
	return total / maxVal
}

// samplePoint draws a density-weighted position by rejection sampling. A
// very sparse map falls back to a uniform draw so the loop always ends.
func (d *densityMap) samplePoint(rng *rand.Rand, width, height float64) sim.Coord {
	for i := 0; i < 64; i++ {
		x, y := rng.Float64()*width, rng.Float64()*height
		if rng.Float64() < d.at(x, y) {
			return sim.Coord{X: x, Y: y}
		}
	}
	return sim.Coord{X: rng.Float64() * width, Y: rng.Float64() * height}
}
