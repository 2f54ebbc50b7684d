// Package sim provides the core agent-based epidemic simulation engine.
//
// # Reading Guide
//
// Start with these three files to understand the simulation kernel:
//   - clock.go: simulated calendar time, tick iteration, week arithmetic
//   - bus.go: the synchronous topic bus that carries requests and notices
//   - simulator.go: the per-tick loop, the change queues, and the agent indexes
//
// # Architecture
//
// Each tick runs in two phases. The compute phase reads the world as it
// stood at the end of the previous tick and publishes change requests on
// the bus; nothing moves yet. The apply phase then commits the surviving
// requests, health first, movement second, and keeps the engine's agent
// indexes consistent with every commit. Reporters run after the apply
// phase and always observe a settled world.
//
// The sim package owns the world state and the tick loop; behavior lives
// in sub-packages:
//   - sim/disease/: transmission and progression models
//   - sim/intervention/: components that veto or rewrite change requests
//   - sim/worldgen/: offline world construction from a scenario
//   - sim/report/: output sinks (console, CSV, SQLite, Prometheus, websocket)
//   - sim/snapshot/: world serialization for build-once run-many workflows
//
// # Key Interfaces
//
// The extension points are small interfaces:
//   - DiseaseModel: propose health transitions from pre-tick state
//   - Component: lifecycle hooks plus enable/disable, scheduled via Scheduler
//   - Configurable: components whose variables the Scheduler may set mid-run
//   - Reporter: read-only observers of post-tick state
//
// All randomness flows through PartitionedRNG so that runs with the same
// scenario and seed replay tick for tick.
package sim
