package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	sim "github.com/epidemic-sim/epidemic-sim/sim"
)

var (
	// CLI flags shared across subcommands
	scenarioPath string // Path to the scenario YAML file
	logLevel     string // Log verbosity level
	seed         int64  // Seed override; 0 keeps the scenario's seed
	days         int    // Simulation length override in days; 0 keeps the scenario's
	worldPath    string // Path to a prebuilt world snapshot
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "epidemic-sim",
	Short: "Agent-based epidemic simulator for synthetic populations",
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setupLogging applies the --log flag. Runs before any subcommand work so
// even scenario loading logs at the requested level.
func setupLogging() {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)
}

// mustLoadScenario reads the scenario file, applies flag overrides and
// validates the result. Any problem ends the process.
func mustLoadScenario() *sim.Scenario {
	if scenarioPath == "" {
		logrus.Fatalf("No scenario file given, use --scenario")
	}
	sc, err := sim.LoadScenario(scenarioPath)
	if err != nil {
		logrus.Fatalf("Loading scenario: %v", err)
	}
	if seed != 0 {
		s := seed
		sc.Seed = &s
	}
	if days != 0 {
		sc.SimulationDays = days
	}
	if err := sc.Validate(); err != nil {
		logrus.Fatalf("Scenario %s: %v", scenarioPath, err)
	}
	return sc
}
