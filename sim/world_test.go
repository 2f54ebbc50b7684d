package sim

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func worldLabels(t *testing.T) (*ActivitySet, *HealthStateSet) {
	t.Helper()
	acts, err := NewActivitySet([]string{"home", "work"})
	if err != nil {
		t.Fatal(err)
	}
	states, err := NewHealthStateSet([]string{"well", "sick"})
	if err != nil {
		t.Fatal(err)
	}
	return acts, states
}

func TestWorld_DenseIDs(t *testing.T) {
	acts, states := worldLabels(t)
	w := NewWorld("ids", acts, states)

	l0 := w.AddLocation(&Location{Kind: "house"})
	l1 := w.AddLocation(&Location{Kind: "office"})
	assert.Equal(t, LocationID(0), l0)
	assert.Equal(t, LocationID(1), l1)
	assert.Equal(t, 2, w.LocationCount())
	assert.Equal(t, "office", w.Location(l1).Kind)

	a0 := w.AddAgent(&Agent{Location: l0, AllowedLocations: [][]LocationID{{l0}, {l1}}})
	a1 := w.AddAgent(&Agent{Location: l0, AllowedLocations: [][]LocationID{{l0}, {l1}}})
	assert.Equal(t, AgentID(0), a0)
	assert.Equal(t, AgentID(1), a1)
	assert.Equal(t, 2, w.AgentCount())
	assert.Equal(t, a1, w.Agent(a1).ID)
}

func TestWorld_LocationsOfKindKeepsCreationOrder(t *testing.T) {
	acts, states := worldLabels(t)
	w := NewWorld("kinds", acts, states)
	first := w.AddLocation(&Location{Kind: "house"})
	w.AddLocation(&Location{Kind: "office"})
	second := w.AddLocation(&Location{Kind: "house"})

	assert.Equal(t, []LocationID{first, second}, w.LocationsOfKind("house"))
	assert.Nil(t, w.LocationsOfKind("stadium"))
}

func TestWorld_KindsSorted(t *testing.T) {
	acts, states := worldLabels(t)
	w := NewWorld("kinds", acts, states)
	w.AddLocation(&Location{Kind: "office"})
	w.AddLocation(&Location{Kind: "house"})
	w.AddLocation(&Location{Kind: "cemetery"})
	assert.Equal(t, []string{"cemetery", "house", "office"}, w.Kinds())
}

func TestWorldValidate(t *testing.T) {
	build := func() *World {
		acts, states := worldLabels(t)
		w := NewWorld("validate", acts, states)
		home := w.AddLocation(&Location{Kind: "house"})
		office := w.AddLocation(&Location{Kind: "office"})
		w.AddAgent(&Agent{
			Health:           0,
			Activity:         0,
			Location:         home,
			AllowedLocations: [][]LocationID{{home}, {office}},
		})
		w.Matrices = NewMatrixSet(1, 4)
		return w
	}

	if err := build().Validate(); err != nil {
		t.Fatalf("expected valid world, got %v", err)
	}

	tests := []struct {
		name    string
		mutate  func(w *World)
		wantSub string
	}{
		{"activity out of range", func(w *World) { w.Agent(0).Activity = 5 }, "activity token"},
		{"health out of range", func(w *World) { w.Agent(0).Health = 5 }, "health token"},
		{"location out of range", func(w *World) { w.Agent(0).Location = 9 }, "location 9 out of range"},
		{"allowed table too narrow", func(w *World) {
			w.Agent(0).AllowedLocations = [][]LocationID{{0}}
		}, "allowed-location table"},
		{"allowed location out of range", func(w *World) {
			w.Agent(0).AllowedLocations[1] = []LocationID{42}
		}, "allowed location 42"},
		{"class outside matrix table", func(w *World) { w.Agent(0).Class = 3 }, "outside matrix table"},
		{"label sets missing", func(w *World) { w.Activities = nil }, "label sets"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := build()
			tt.mutate(w)
			err := w.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("expected error containing %q, got %v", tt.wantSub, err)
			}
		})
	}
}

func TestHealthRules_Flags(t *testing.T) {
	_, states := worldLabels(t)
	rules := NewHealthRules(states, []HealthState{1}, []HealthState{1}, nil, "hospital", "cemetery")

	assert.False(t, rules.NoMove(0))
	assert.True(t, rules.NoMove(1))
	assert.True(t, rules.Hospitalize(1))
	assert.False(t, rules.Deceased(1))
	assert.Equal(t, "hospital", rules.HospitalKind())
	assert.Equal(t, "cemetery", rules.CemeteryKind())
}

func TestAgentLocationsFor(t *testing.T) {
	a := &Agent{AllowedLocations: [][]LocationID{{4, 5}, {6}}}
	assert.Equal(t, []LocationID{4, 5}, a.LocationsFor(0))
	assert.Equal(t, []LocationID{6}, a.LocationsFor(1))
	assert.Nil(t, a.LocationsFor(2))
}

func TestCoordDistance(t *testing.T) {
	a := Coord{X: 0, Y: 0}
	b := Coord{X: 3, Y: 4}
	assert.InDelta(t, 5.0, a.DistanceTo(b), 1e-12)
	assert.InDelta(t, 5.0, b.DistanceTo(a), 1e-12)
	assert.Equal(t, 0.0, a.DistanceTo(a))
}
