package sim

// Topic identifies a message-bus channel. Topics are plain strings so that
// interventions can mint their own alongside the engine's fixed set.
type Topic string

// Lifecycle and time topics, published by the engine.
const (
	TopicSimulationStart Topic = "notify.time.start_simulation"
	TopicSimulationEnd   Topic = "notify.time.end_simulation"
	TopicTick            Topic = "notify.time.tick"
	TopicMidnight        Topic = "notify.time.midnight"
)

// Request topics carry the engine's default next-tick behavior. Handlers
// subscribed before the engine's recorders may consume a request to veto it,
// or consume and republish a replacement.
const (
	TopicHealthRequest   Topic = "request.agent.health"
	TopicActivityRequest Topic = "request.agent.activity"
	TopicLocationRequest Topic = "request.agent.location"
)

// Notice topics report changes after they are applied to the world.
const (
	TopicHealthNotice   Topic = "notify.agent.health"
	TopicActivityNotice Topic = "notify.agent.activity"
	TopicLocationNotice Topic = "notify.agent.location"
)

// Event is a message-bus payload. The set of engine payloads is closed: each
// engine topic carries exactly one of the types below, so handlers assert
// the payload type directly. Components define their own Event types for
// topics they own by embedding ComponentEvent.
type Event interface {
	busEvent()
}

// ComponentEvent marks an event type declared outside this package as a bus
// payload. Embed it in the payload struct.
type ComponentEvent struct{}

func (ComponentEvent) busEvent() {}

// TickEvent announces clock advancement on TopicTick, and the first tick of
// each calendar day on TopicMidnight.
type TickEvent struct {
	Clock *SimClock
	Tick  int64
}

// SimulationEvent marks run start and end on TopicSimulationStart and
// TopicSimulationEnd.
type SimulationEvent struct {
	Sim *Simulator
}

// HealthRequest proposes moving an agent to a health state at the end of the
// current tick.
type HealthRequest struct {
	Agent  AgentID
	Health HealthState
}

// ActivityRequest proposes an agent's next activity.
type ActivityRequest struct {
	Agent    AgentID
	Activity Activity
}

// LocationRequest proposes an agent's next location.
type LocationRequest struct {
	Agent    AgentID
	Location LocationID
}

// HealthNotice reports an applied health change. Old is the state before the
// change; the agent itself already carries the new one.
type HealthNotice struct {
	Agent AgentID
	Old   HealthState
}

// ActivityNotice reports an applied activity change.
type ActivityNotice struct {
	Agent AgentID
	Old   Activity
}

// LocationNotice reports an applied location change.
type LocationNotice struct {
	Agent AgentID
	Old   LocationID
}

func (TickEvent) busEvent()       {}
func (SimulationEvent) busEvent() {}
func (HealthRequest) busEvent()   {}
func (ActivityRequest) busEvent() {}
func (LocationRequest) busEvent() {}
func (HealthNotice) busEvent()    {}
func (ActivityNotice) busEvent()  {}
func (LocationNotice) busEvent()  {}
