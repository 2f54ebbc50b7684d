package sim

import (
	"fmt"
	"time"
)

// Metrics aggregates run-wide statistics for final reporting.
type Metrics struct {
	TicksRun        int64 // Number of ticks simulated
	HealthChanges   int64 // Applied health-state transitions
	ActivityChanges int64 // Applied activity transitions
	LocationChanges int64 // Applied relocations

	// PeakByState is the largest simultaneous population of each health
	// state over the run, indexed by state token.
	PeakByState []int

	WallClock time.Duration // Real time spent in Run
}

// NewMetrics returns zeroed metrics sized for the scenario's health states.
func NewMetrics(healthStates int) *Metrics {
	return &Metrics{PeakByState: make([]int, healthStates)}
}

// observe folds one post-tick population snapshot into the peaks.
func (m *Metrics) observe(totals []int) {
	for s, n := range totals {
		if n > m.PeakByState[s] {
			m.PeakByState[s] = n
		}
	}
}

// Print displays aggregated metrics at the end of the run.
func (m *Metrics) Print(states *HealthStateSet) {
	fmt.Println("=== Simulation Metrics ===")
	fmt.Printf("Ticks Run        : %d\n", m.TicksRun)
	fmt.Printf("Health Changes   : %d\n", m.HealthChanges)
	fmt.Printf("Activity Changes : %d\n", m.ActivityChanges)
	fmt.Printf("Location Changes : %d\n", m.LocationChanges)
	for _, tok := range states.Tokens() {
		fmt.Printf("Peak %-12s: %d\n", states.Name(tok), m.PeakByState[tok])
	}
	fmt.Printf("Wall Clock       : %s\n", m.WallClock)
}
