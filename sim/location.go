package sim

import "math"

// LocationID identifies a location. Dense, like AgentID.
type LocationID int32

// Coord is a position on the world's kilometre grid.
type Coord struct {
	X float64
	Y float64
}

// DistanceTo returns the Euclidean distance to another coordinate.
func (c Coord) DistanceTo(o Coord) float64 {
	dx := c.X - o.X
	dy := c.Y - o.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Location is a venue agents attend while performing an activity. Kind is a
// free-form type label from the scenario ("house", "school", "hospital");
// the engine treats kinds as opaque except for the hospital and cemetery
// kinds named in the health rules.
type Location struct {
	ID    LocationID
	Kind  string
	Coord Coord
}
