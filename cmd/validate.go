package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/epidemic-sim/epidemic-sim/sim/snapshot"
)

// validateCmd checks a scenario file without running anything, and can
// inspect a world snapshot's header alongside it.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a scenario file and optionally inspect a world snapshot",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()
		sc := mustLoadScenario()

		fmt.Printf("scenario %q: ok (%d agents, %d days at %ds per tick)\n",
			sc.Name, sc.World.Population, sc.SimulationDays, sc.TickLengthS)

		if worldPath != "" {
			h, err := snapshot.ReadHeader(worldPath)
			if err != nil {
				logrus.Fatalf("Reading snapshot header: %v", err)
			}
			fmt.Printf("snapshot %s: world %q, %d agents, format version %d\n",
				worldPath, h.World, h.Agents, h.Version)
		}
	},
}

// init sets up CLI flags and subcommands
func init() {
	validateCmd.Flags().StringVar(&scenarioPath, "scenario", "", "Scenario YAML file")
	validateCmd.Flags().StringVar(&logLevel, "log", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")
	validateCmd.Flags().StringVar(&worldPath, "world", "", "World snapshot to inspect")

	rootCmd.AddCommand(validateCmd)
}
