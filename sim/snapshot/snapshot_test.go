package snapshot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/epidemic-sim/epidemic-sim/sim"
)

// snapWorld is a hand-built world with two classes and two matrices
// shared across the slot table, covering the parts a snapshot must keep.
func snapWorld(t *testing.T) *sim.World {
	t.Helper()
	acts, err := sim.NewActivitySet([]string{"home", "work"})
	if err != nil {
		t.Fatal(err)
	}
	states, err := sim.NewHealthStateSet([]string{"well", "sick"})
	if err != nil {
		t.Fatal(err)
	}

	w := sim.NewWorld("snap-town", acts, states)
	w.AddLocation(&sim.Location{Kind: "house", Coord: sim.Coord{X: 1.5, Y: 2.25}})
	w.AddLocation(&sim.Location{Kind: "house", Coord: sim.Coord{X: 4, Y: 4}})
	w.AddLocation(&sim.Location{Kind: "office", Coord: sim.Coord{X: 3, Y: 1}})

	w.AddAgent(&sim.Agent{Class: 0, Age: 11, Health: 0, Activity: 0, Location: 0,
		AllowedLocations: [][]sim.LocationID{{0}, {2}}})
	w.AddAgent(&sim.Agent{Class: 1, Age: 34, Health: 1, Activity: 1, Location: 2,
		AllowedLocations: [][]sim.LocationID{{1}, {2}}})

	day := sim.NewSplitTransitionMatrix(acts)
	if err := day.SetWeight(0, 1, 2); err != nil {
		t.Fatal(err)
	}
	if err := day.SetWeight(1, 1, 1); err != nil {
		t.Fatal(err)
	}
	night := sim.NewSplitTransitionMatrix(acts)
	if err := night.SetWeight(0, 0, 1); err != nil {
		t.Fatal(err)
	}
	if err := night.SetWeight(1, 0, 3); err != nil {
		t.Fatal(err)
	}

	ms := sim.NewMatrixSet(2, 8)
	for class := sim.AgentClass(0); class < 2; class++ {
		for slot := int64(0); slot < 8; slot++ {
			if slot%2 == 0 {
				ms.Set(class, slot, day)
			} else {
				ms.Set(class, slot, night)
			}
		}
	}
	w.Matrices = ms

	if err := w.Validate(); err != nil {
		t.Fatalf("fixture world invalid: %v", err)
	}
	return w
}

func TestSaveLoad_Roundtrip(t *testing.T) {
	w := snapWorld(t)
	// The subdirectory does not exist yet; Save must create it.
	path := filepath.Join(t.TempDir(), "worlds", "town.snap")
	if err := Save(path, w); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	assert.Equal(t, "snap-town", got.Name)
	assert.Equal(t, []string{"home", "work"}, got.Activities.Names())
	assert.Equal(t, []string{"well", "sick"}, got.HealthStates.Names())
	assert.Equal(t, w.AgentCount(), got.AgentCount())
	assert.Equal(t, w.LocationCount(), got.LocationCount())

	for i, want := range w.Locations() {
		loc := got.Locations()[i]
		assert.Equal(t, want.Kind, loc.Kind)
		assert.Equal(t, want.Coord, loc.Coord)
	}
	for i, want := range w.Agents() {
		a := got.Agents()[i]
		assert.Equal(t, want.Class, a.Class)
		assert.Equal(t, want.Age, a.Age)
		assert.Equal(t, want.Health, a.Health)
		assert.Equal(t, want.Activity, a.Activity)
		assert.Equal(t, want.Location, a.Location)
		assert.Equal(t, want.AllowedLocations, a.AllowedLocations)
	}

	// Matrix sharing survives the roundtrip, and so do the weights.
	ms := got.Matrices
	assert.Equal(t, 2, ms.Classes())
	assert.Equal(t, int64(8), ms.TicksInWeek())
	assert.Same(t, ms.At(0, 0), ms.At(1, 2))
	assert.Same(t, ms.At(0, 1), ms.At(1, 7))
	assert.NotSame(t, ms.At(0, 0), ms.At(0, 1))
	for from := sim.Activity(0); from < 2; from++ {
		for to := sim.Activity(0); to < 2; to++ {
			assert.Equal(t, w.Matrices.At(0, 0).Weight(from, to), ms.At(0, 0).Weight(from, to))
			assert.Equal(t, w.Matrices.At(0, 1).Weight(from, to), ms.At(0, 1).Weight(from, to))
		}
	}
}

func TestReadHeader(t *testing.T) {
	w := snapWorld(t)
	path := filepath.Join(t.TempDir(), "town.snap")
	if err := Save(path, w); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	h, err := ReadHeader(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assert.Equal(t, Header{Version: 1, World: "snap-town", Agents: 2}, h)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.snap"))
	assert.Error(t, err)
}

func TestLoad_RejectsUnknownVersion(t *testing.T) {
	v, err := capture(snapWorld(t))
	if err != nil {
		t.Fatal(err)
	}
	v.Header.Version = 99

	path := filepath.Join(t.TempDir(), "future.snap")
	if err := write(path, v); err != nil {
		t.Fatal(err)
	}
	_, err = Load(path)
	assert.ErrorContains(t, err, "unsupported snapshot version 99")
}

func TestLoad_GarbageFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.snap")
	if err := os.WriteFile(path, []byte("not a snapshot"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(path)
	assert.Error(t, err)
}
