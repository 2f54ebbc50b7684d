// Package testutil provides shared test infrastructure for the simulator:
// the golden outbreak dataset and float assertion helpers used by the
// disease tests.
package testutil

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// GoldenOutbreaks represents the structure of testdata/golden_outbreaks.json.
type GoldenOutbreaks struct {
	Cases []GoldenOutbreakCase `json:"cases"`
}

// GoldenOutbreakCase is one deterministic outbreak: the transmission
// settings force the outcome, so the expectations hold for every seed.
type GoldenOutbreakCase struct {
	Name           string  `json:"name"`
	Agents         int     `json:"agents"`
	Days           int     `json:"days"`
	SeedInfectious int     `json:"seed_infectious"`
	HallInfectionP float64 `json:"hall_infection_prob"`

	// Isolated puts the seeds in a hall of their own, away from the
	// susceptible population.
	Isolated bool `json:"isolated,omitempty"`

	Expected               GoldenTotals `json:"expected"`
	ExpectedAttackFraction float64      `json:"expected_attack_fraction"`
}

// GoldenTotals holds the end-of-run populations and counters a case pins.
type GoldenTotals struct {
	Susceptible   int   `json:"susceptible"`
	Exposed       int   `json:"exposed"`
	Infectious    int   `json:"infectious"`
	HealthChanges int64 `json:"health_changes"`
	PeakExposed   int   `json:"peak_exposed"`
}

// LoadGoldenOutbreaks loads the golden dataset from the testdata directory.
// The path is resolved relative to this source file: sim/internal/testutil/
// to the repo root testdata/.
func LoadGoldenOutbreaks(t *testing.T) *GoldenOutbreaks {
	t.Helper()

	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("failed to get current file path")
	}
	path := filepath.Join(filepath.Dir(thisFile), "..", "..", "..", "testdata", "golden_outbreaks.json")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read golden dataset: %v", err)
	}

	var golden GoldenOutbreaks
	if err := json.Unmarshal(data, &golden); err != nil {
		t.Fatalf("failed to parse golden dataset: %v", err)
	}
	return &golden
}

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}
