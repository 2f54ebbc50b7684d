package report

// TelemetryVersion is the telemetry stream protocol version.
const TelemetryVersion = "1.0"

// HelloMsg is the first message on every telemetry connection. It carries
// the run's static shape; the state and activity lists fix the order of
// the totals in the tick messages that follow.
type HelloMsg struct {
	Type            string `json:"type"` // "HELLO"
	ProtocolVersion string `json:"protocol_version"`

	RunID      string   `json:"run_id"`
	World      string   `json:"world"`
	Population int      `json:"population"`
	Locations  int      `json:"locations"`
	Ticks      int64    `json:"ticks"`
	TickLenS   float64  `json:"tick_length_s"`
	Epoch      string   `json:"epoch"` // RFC 3339
	States     []string `json:"states"`
	Activities []string `json:"activities"`
}

// TickMsg streams one completed tick. Totals are indexed like the HELLO
// state list; the change counts are running totals, not per-tick deltas.
type TickMsg struct {
	Type            string `json:"type"` // "TICK"
	ProtocolVersion string `json:"protocol_version"`

	Tick   int64  `json:"tick"`
	Time   string `json:"time"` // RFC 3339
	Totals []int  `json:"totals"`

	HealthChanges   int64 `json:"health_changes"`
	ActivityChanges int64 `json:"activity_changes"`
	LocationChanges int64 `json:"location_changes"`
}
