package sim

// Reporter observes the simulation without influencing it. Start runs after
// components have initialized and before the first tick; Iterate runs at
// the end of every tick, once all changes for that tick are applied; Stop
// runs after the final tick.
//
// Reporters read engine state through the Simulator's accessors and must
// not mutate the world or publish request events. A reporter that fails
// mid-run should log and degrade rather than halt the simulation; only
// Start may abort a run, since an unusable sink is a configuration error.
type Reporter interface {
	Name() string
	Start(s *Simulator) error
	Iterate(s *Simulator)
	Stop(s *Simulator) error
}
