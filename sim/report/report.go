// Package report contains the output sinks that observe a run: periodic
// console lines, per-tick CSV and SQLite series, a Prometheus scrape
// endpoint and a websocket telemetry stream. Reporters read engine state
// after each tick and never influence the simulation.
package report

import (
	"fmt"

	"github.com/epidemic-sim/epidemic-sim/sim"
)

// New builds the reporter a scenario entry declares.
func New(cfg sim.ReporterConfig) (sim.Reporter, error) {
	switch cfg.Type {
	case "console":
		return NewConsole(cfg), nil
	case "csv":
		return NewCSV(cfg)
	case "sqlite":
		return NewSQLite(cfg)
	case "prometheus":
		return NewPrometheus(cfg)
	case "telemetry":
		return NewTelemetry(cfg)
	default:
		return nil, fmt.Errorf("unknown reporter type %q", cfg.Type)
	}
}
