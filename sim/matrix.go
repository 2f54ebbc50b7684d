package sim

import (
	"fmt"
	"math/rand"
)

// TransitionMatrix holds directed weights between the activities of one
// agent class and converts them to probabilities on demand. Row marginals
// are recomputed on every mutation, so sampling never sees a stale sum.
//
// Tokens passed to a matrix must come from the ActivitySet it was built
// over; the dense token is the row/column index.
type TransitionMatrix struct {
	activities *ActivitySet
	weights    [][]float64
	marginals  []float64
}

// NewTransitionMatrix returns a zero-weight matrix over the activity set.
func NewTransitionMatrix(activities *ActivitySet) *TransitionMatrix {
	n := activities.Count()
	weights := make([][]float64, n)
	for i := range weights {
		weights[i] = make([]float64, n)
	}
	return &TransitionMatrix{
		activities: activities,
		weights:    weights,
		marginals:  make([]float64, n),
	}
}

// Activities returns the set this matrix is defined over.
func (m *TransitionMatrix) Activities() *ActivitySet {
	return m.activities
}

// SetWeight assigns the weight of the from→to transition. Negative weights
// are configuration errors.
func (m *TransitionMatrix) SetWeight(from, to Activity, w float64) error {
	if w < 0 {
		return fmt.Errorf("transition %s→%s: negative weight %v",
			m.activities.Name(from), m.activities.Name(to), w)
	}
	m.weights[from][to] = w
	m.recomputeMarginal(from)
	return nil
}

// AddWeight adjusts the from→to weight by delta. The result must remain
// non-negative.
func (m *TransitionMatrix) AddWeight(from, to Activity, delta float64) error {
	next := m.weights[from][to] + delta
	if next < 0 {
		return fmt.Errorf("transition %s→%s: weight would become negative (%v)",
			m.activities.Name(from), m.activities.Name(to), next)
	}
	m.weights[from][to] = next
	m.recomputeMarginal(from)
	return nil
}

// Weight returns the raw from→to weight.
func (m *TransitionMatrix) Weight(from, to Activity) float64 {
	return m.weights[from][to]
}

// Marginal returns the total outgoing weight of a row.
func (m *TransitionMatrix) Marginal(from Activity) float64 {
	return m.marginals[from]
}

// P returns the probability of the from→to transition: weight over row
// marginal, or zero when the row has no weight at all.
func (m *TransitionMatrix) P(from, to Activity) float64 {
	if m.marginals[from] == 0 {
		return 0
	}
	return m.weights[from][to] / m.marginals[from]
}

// Transition draws the next activity from the row's distribution. A row
// with zero marginal has no legal successor; that is a configuration error
// surfaced to the caller.
func (m *TransitionMatrix) Transition(rng *rand.Rand, from Activity) (Activity, error) {
	if m.marginals[from] <= 0 {
		return 0, fmt.Errorf("activity %q has no outgoing transition weight", m.activities.Name(from))
	}
	i, err := Multinoulli(rng, m.weights[from])
	if err != nil {
		return 0, fmt.Errorf("activity %q: %w", m.activities.Name(from), err)
	}
	return Activity(i), nil
}

func (m *TransitionMatrix) recomputeMarginal(from Activity) {
	var sum float64
	for _, w := range m.weights[from] {
		sum += w
	}
	m.marginals[from] = sum
}

// SplitTransitionMatrix stores the diagonal apart from the off-diagonal
// block. The engine's hot path asks "does this agent stay?" far more often
// than it needs a destination, so NoTransition answers with a single
// Bernoulli draw, and Transition with force set samples the off-diagonal
// block only.
type SplitTransitionMatrix struct {
	activities  *ActivitySet
	diag        []float64
	off         [][]float64 // diagonal entries stay zero
	offMarginal []float64
}

// NewSplitTransitionMatrix returns a zero-weight split matrix over the
// activity set.
func NewSplitTransitionMatrix(activities *ActivitySet) *SplitTransitionMatrix {
	n := activities.Count()
	off := make([][]float64, n)
	for i := range off {
		off[i] = make([]float64, n)
	}
	return &SplitTransitionMatrix{
		activities:  activities,
		diag:        make([]float64, n),
		off:         off,
		offMarginal: make([]float64, n),
	}
}

// NewSplitFromMatrix copies a plain matrix into split form.
func NewSplitFromMatrix(m *TransitionMatrix) *SplitTransitionMatrix {
	s := NewSplitTransitionMatrix(m.activities)
	for from := range m.weights {
		for to, w := range m.weights[from] {
			s.setWeight(Activity(from), Activity(to), w)
		}
	}
	return s
}

// Activities returns the set this matrix is defined over.
func (s *SplitTransitionMatrix) Activities() *ActivitySet {
	return s.activities
}

// SetWeight assigns the weight of the from→to transition. Negative weights
// are configuration errors.
func (s *SplitTransitionMatrix) SetWeight(from, to Activity, w float64) error {
	if w < 0 {
		return fmt.Errorf("transition %s→%s: negative weight %v",
			s.activities.Name(from), s.activities.Name(to), w)
	}
	s.setWeight(from, to, w)
	return nil
}

// AddWeight adjusts the from→to weight by delta. The result must remain
// non-negative.
func (s *SplitTransitionMatrix) AddWeight(from, to Activity, delta float64) error {
	next := s.Weight(from, to) + delta
	if next < 0 {
		return fmt.Errorf("transition %s→%s: weight would become negative (%v)",
			s.activities.Name(from), s.activities.Name(to), next)
	}
	s.setWeight(from, to, next)
	return nil
}

func (s *SplitTransitionMatrix) setWeight(from, to Activity, w float64) {
	if from == to {
		s.diag[from] = w
		return
	}
	s.off[from][to] = w
	var sum float64
	for _, x := range s.off[from] {
		sum += x
	}
	s.offMarginal[from] = sum
}

// Weight returns the raw from→to weight.
func (s *SplitTransitionMatrix) Weight(from, to Activity) float64 {
	if from == to {
		return s.diag[from]
	}
	return s.off[from][to]
}

// Marginal returns the total outgoing weight of a row, diagonal included.
func (s *SplitTransitionMatrix) Marginal(from Activity) float64 {
	return s.diag[from] + s.offMarginal[from]
}

// P returns the probability of the from→to transition, zero when the row
// carries no weight.
func (s *SplitTransitionMatrix) P(from, to Activity) float64 {
	total := s.Marginal(from)
	if total == 0 {
		return 0
	}
	return s.Weight(from, to) / total
}

// NoTransition draws whether the agent keeps its current activity: a
// Bernoulli trial with the diagonal's share of the row. A weightless row
// reports false so the follow-up Transition call can raise the real error.
func (s *SplitTransitionMatrix) NoTransition(rng *rand.Rand, from Activity) bool {
	total := s.Marginal(from)
	if total == 0 {
		return false
	}
	return Bernoulli(rng, s.diag[from]/total)
}

// Transition draws the next activity. With force set the diagonal is
// excluded, so the result always differs from the current activity; that is
// the path taken after NoTransition has already decided the agent moves.
// A row without usable weight is a configuration error.
func (s *SplitTransitionMatrix) Transition(rng *rand.Rand, from Activity, force bool) (Activity, error) {
	row := s.off[from]
	total := s.offMarginal[from]
	var diagW float64
	if !force {
		diagW = s.diag[from]
		total += diagW
	}
	if total <= 0 {
		return 0, fmt.Errorf("activity %q has no outgoing transition weight", s.activities.Name(from))
	}

	r := rng.Float64() * total
	if !force {
		if r < diagW {
			return from, nil
		}
		r -= diagW
	}
	for to, w := range row {
		r -= w
		if r < 0 {
			return Activity(to), nil
		}
	}
	// Round-off fallback: the draw belongs to the last positive entry.
	for to := len(row) - 1; to >= 0; to-- {
		if row[to] > 0 {
			return Activity(to), nil
		}
	}
	return 0, fmt.Errorf("activity %q: transition draw found no positive weight", s.activities.Name(from))
}

// MatrixSet is the weekly routine table: one split matrix per agent class
// and tick-of-week slot. Slot indices follow SimClock.TicksThroughWeek.
type MatrixSet struct {
	ticksInWeek int64
	matrices    [][]*SplitTransitionMatrix
}

// NewMatrixSet allocates an empty table for the given number of agent
// classes and weekly slots.
func NewMatrixSet(classes int, ticksInWeek int64) *MatrixSet {
	matrices := make([][]*SplitTransitionMatrix, classes)
	for i := range matrices {
		matrices[i] = make([]*SplitTransitionMatrix, ticksInWeek)
	}
	return &MatrixSet{ticksInWeek: ticksInWeek, matrices: matrices}
}

// Set installs the matrix for one class and weekly slot.
func (ms *MatrixSet) Set(class AgentClass, slot int64, m *SplitTransitionMatrix) {
	ms.matrices[class][slot] = m
}

// At returns the matrix for one class and weekly slot; nil if never set.
func (ms *MatrixSet) At(class AgentClass, slot int64) *SplitTransitionMatrix {
	return ms.matrices[class][slot]
}

// Classes returns the number of agent classes in the table.
func (ms *MatrixSet) Classes() int {
	return len(ms.matrices)
}

// TicksInWeek returns the number of weekly slots per class.
func (ms *MatrixSet) TicksInWeek() int64 {
	return ms.ticksInWeek
}
