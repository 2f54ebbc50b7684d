package sim

import (
	"fmt"
	"time"
)

// secondsPerWeek is the period of the weekly activity routine.
const secondsPerWeek = 7 * 24 * 60 * 60

// SimClock drives the simulation's discrete time. One tick is a fixed
// real-world span; the activity routine repeats weekly, so the tick length
// must divide a week exactly. Weeks run Monday through Sunday.
//
// The clock is a lazy, restartable sequence over [0, MaxTicks): call Next to
// advance, Tick to read the current position, Reset to rewind. A freshly
// built (or reset) clock is distinct from one standing at tick zero.
type SimClock struct {
	tickLength      time.Duration
	secondsPerTick  int64
	ticksInDay      int64
	ticksInWeek     int64
	maxTicks        int64
	epoch           time.Time
	epochWeekOffset int64
	epochDayOffset  int64

	t       int64
	started bool
}

// NewSimClock builds a clock running simulationDays days from epoch in
// tickLength steps. tickLength must be a positive whole number of seconds
// dividing a week; anything else is a configuration error.
func NewSimClock(tickLength time.Duration, simulationDays int, epoch time.Time) (*SimClock, error) {
	if tickLength <= 0 {
		return nil, fmt.Errorf("tick length %v is not positive", tickLength)
	}
	if tickLength%time.Second != 0 {
		return nil, fmt.Errorf("tick length %v is not a whole number of seconds", tickLength)
	}
	seconds := int64(tickLength / time.Second)
	if secondsPerWeek%seconds != 0 {
		return nil, fmt.Errorf("tick length %ds does not divide a week (604800s)", seconds)
	}
	if simulationDays <= 0 {
		return nil, fmt.Errorf("simulation length %d days is not positive", simulationDays)
	}

	ticksInDay := (24 * 60 * 60) / seconds
	weekday := (int64(epoch.Weekday()) + 6) % 7 // Monday = 0
	daySeconds := int64(epoch.Hour())*3600 + int64(epoch.Minute())*60 + int64(epoch.Second())

	return &SimClock{
		tickLength:      tickLength,
		secondsPerTick:  seconds,
		ticksInDay:      ticksInDay,
		ticksInWeek:     secondsPerWeek / seconds,
		maxTicks:        int64(simulationDays) * ticksInDay,
		epoch:           epoch,
		epochWeekOffset: (weekday*86400 + daySeconds) / seconds,
		epochDayOffset:  daySeconds / seconds,
	}, nil
}

// Next advances the clock and reports whether the new position is still
// inside the run. The first call lands on tick zero.
func (c *SimClock) Next() bool {
	if !c.started {
		c.started = true
		c.t = 0
	} else {
		c.t++
	}
	return c.t < c.maxTicks
}

// Tick returns the current tick. Only meaningful after Next has returned
// true.
func (c *SimClock) Tick() int64 {
	return c.t
}

// Reset rewinds the clock to its unstarted state so the sequence can be
// iterated again.
func (c *SimClock) Reset() {
	c.t = 0
	c.started = false
}

// Started reports whether Next has been called since construction or the
// last Reset.
func (c *SimClock) Started() bool {
	return c.started
}

// Now returns the wall-clock time of the current tick: epoch plus t tick
// lengths. Fixed-step; daylight-saving shifts are ignored.
func (c *SimClock) Now() time.Time {
	return c.epoch.Add(time.Duration(c.t) * c.tickLength)
}

// TicksThroughWeek returns the current tick's position within the weekly
// routine, accounting for where in the week the epoch falls.
func (c *SimClock) TicksThroughWeek() int64 {
	return (c.epochWeekOffset + c.t) % c.ticksInWeek
}

// MidnightTick reports whether the current tick is the first tick of a
// calendar day.
func (c *SimClock) MidnightTick() bool {
	return (c.epochDayOffset+c.t)%c.ticksInDay == 0
}

// TickLength returns the real-world span of one tick.
func (c *SimClock) TickLength() time.Duration {
	return c.tickLength
}

// TicksInDay returns the number of ticks in 24 hours.
func (c *SimClock) TicksInDay() int64 {
	return c.ticksInDay
}

// TicksInWeek returns the number of ticks in the weekly routine period.
func (c *SimClock) TicksInWeek() int64 {
	return c.ticksInWeek
}

// MaxTicks returns the run length in ticks; valid ticks are [0, MaxTicks).
func (c *SimClock) MaxTicks() int64 {
	return c.maxTicks
}

// Epoch returns the wall-clock time of tick zero.
func (c *SimClock) Epoch() time.Time {
	return c.epoch
}

// DaysToTicks converts whole days to ticks.
func (c *SimClock) DaysToTicks(days int) int64 {
	return int64(days) * c.ticksInDay
}

// DurationToTicks converts a duration to ticks, truncating partial ticks.
func (c *SimClock) DurationToTicks(d time.Duration) int64 {
	return int64(d / c.tickLength)
}

// TicksToDuration converts a tick count to its real-world span.
func (c *SimClock) TicksToDuration(n int64) time.Duration {
	return time.Duration(n) * c.tickLength
}

// DatetimeToTick converts a wall-clock time to the tick containing it.
// Times before the epoch yield negative ticks; the scheduler uses that to
// discard triggers already in the past.
func (c *SimClock) DatetimeToTick(tm time.Time) int64 {
	return int64(tm.Sub(c.epoch) / c.tickLength)
}

// Elapsed returns simulated time since the epoch.
func (c *SimClock) Elapsed() time.Duration {
	return time.Duration(c.t) * c.tickLength
}

// Remaining returns simulated time left in the run.
func (c *SimClock) Remaining() time.Duration {
	return time.Duration(c.maxTicks-c.t) * c.tickLength
}
