package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/epidemic-sim/epidemic-sim/sim"
	"github.com/epidemic-sim/epidemic-sim/sim/snapshot"
	"github.com/epidemic-sim/epidemic-sim/sim/worldgen"
)

var worldOut string // Snapshot file the built world is written to

// buildWorldCmd constructs a world offline and stores it as a snapshot,
// so large populations are generated once and reused across runs.
var buildWorldCmd = &cobra.Command{
	Use:   "build-world",
	Short: "Build the scenario's world and store it as a snapshot",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()
		sc := mustLoadScenario()

		rng := sim.NewPartitionedRNG(sc.Key())
		w, err := worldgen.Build(sc, rng.ForSubsystem(sim.SubsystemWorld))
		if err != nil {
			logrus.Fatalf("Building world: %v", err)
		}
		if err := snapshot.Save(worldOut, w); err != nil {
			logrus.Fatalf("Saving snapshot: %v", err)
		}
	},
}

// init sets up CLI flags and subcommands
func init() {
	buildWorldCmd.Flags().StringVar(&scenarioPath, "scenario", "", "Scenario YAML file")
	buildWorldCmd.Flags().StringVar(&logLevel, "log", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")
	buildWorldCmd.Flags().Int64Var(&seed, "seed", 0, "Seed override (0 keeps the scenario's seed)")
	buildWorldCmd.Flags().StringVar(&worldOut, "out", "world.snap", "Snapshot file to write")

	rootCmd.AddCommand(buildWorldCmd)
}
