package cmd

import (
	"slices"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/epidemic-sim/epidemic-sim/sim"
	"github.com/epidemic-sim/epidemic-sim/sim/disease"
	"github.com/epidemic-sim/epidemic-sim/sim/intervention"
	"github.com/epidemic-sim/epidemic-sim/sim/report"
	"github.com/epidemic-sim/epidemic-sim/sim/snapshot"
	"github.com/epidemic-sim/epidemic-sim/sim/worldgen"
)

// runCmd executes a full simulation from a scenario file.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run an epidemic simulation from a scenario file",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()
		sc := mustLoadScenario()

		clock, err := sc.BuildClock()
		if err != nil {
			logrus.Fatalf("Building clock: %v", err)
		}
		rng := sim.NewPartitionedRNG(sc.Key())

		world := buildOrLoadWorld(sc, rng)

		rules, err := sc.BuildHealthRules(world.HealthStates)
		if err != nil {
			logrus.Fatalf("Resolving health rules: %v", err)
		}

		var model sim.DiseaseModel
		if sc.Disease.Model != "" {
			model = disease.NewCompartmental(sc.Disease)
			if sc.Disease.InitialInfected > 0 {
				tok, err := world.HealthStates.Token(sc.Disease.InfectedState)
				if err != nil {
					logrus.Fatalf("Resolving infected state: %v", err)
				}
				if err := disease.SeedInfections(world, tok, sc.Disease.InitialInfected,
					rng.ForSubsystem(sim.SubsystemDisease)); err != nil {
					logrus.Fatalf("Seeding infections: %v", err)
				}
			}
		}

		scheduler := sim.NewScheduler(clock)
		components := make([]sim.Component, 0, len(sc.Interventions))
		for _, ic := range sc.Interventions {
			c, err := intervention.New(ic)
			if err != nil {
				logrus.Fatalf("Building intervention: %v", err)
			}
			if err := scheduler.Schedule(c, ic.Schedule); err != nil {
				logrus.Fatalf("Scheduling intervention: %v", err)
			}
			components = append(components, c)
		}

		reporters := make([]sim.Reporter, 0, len(sc.Reporters))
		for _, rc := range sc.Reporters {
			r, err := report.New(rc)
			if err != nil {
				logrus.Fatalf("Building reporter: %v", err)
			}
			reporters = append(reporters, r)
		}

		logrus.Infof("Starting %q: %d agents, %d ticks of %s, seed %d",
			sc.Name, world.AgentCount(), clock.MaxTicks(), clock.TickLength(), int64(sc.Key()))

		s, err := sim.NewSimulator(clock, world, rng, rules, model, components, scheduler, reporters)
		if err != nil {
			logrus.Fatalf("Building simulator: %v", err)
		}
		if err := s.Run(); err != nil {
			logrus.Fatalf("Simulation failed: %v", err)
		}
		s.Metrics.Print(world.HealthStates)
		logrus.Info("Simulation complete.")
	},
}

// buildOrLoadWorld constructs the world from the scenario, or loads the
// snapshot named by --world and cross-checks its labels against the
// scenario so tokens keep their meaning.
func buildOrLoadWorld(sc *sim.Scenario, rng *sim.PartitionedRNG) *sim.World {
	if worldPath == "" {
		w, err := worldgen.Build(sc, rng.ForSubsystem(sim.SubsystemWorld))
		if err != nil {
			logrus.Fatalf("Building world: %v", err)
		}
		return w
	}

	w, err := snapshot.Load(worldPath)
	if err != nil {
		logrus.Fatalf("Loading world snapshot: %v", err)
	}
	stateNames := make([]string, len(sc.HealthStates))
	for i, hs := range sc.HealthStates {
		stateNames[i] = hs.Name
	}
	if !slices.Equal(w.Activities.Names(), sc.Activities) ||
		!slices.Equal(w.HealthStates.Names(), stateNames) {
		logrus.Fatalf("Snapshot %s declares different labels than scenario %q", worldPath, sc.Name)
	}
	return w
}

// init sets up CLI flags and subcommands
func init() {
	runCmd.Flags().StringVar(&scenarioPath, "scenario", "", "Scenario YAML file")
	runCmd.Flags().StringVar(&logLevel, "log", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")
	runCmd.Flags().Int64Var(&seed, "seed", 0, "Seed override (0 keeps the scenario's seed)")
	runCmd.Flags().IntVar(&days, "days", 0, "Simulation length override in days (0 keeps the scenario's)")
	runCmd.Flags().StringVar(&worldPath, "world", "", "Prebuilt world snapshot to run instead of building one")

	rootCmd.AddCommand(runCmd)
}
