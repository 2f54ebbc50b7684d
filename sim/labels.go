package sim

import "fmt"

// Activity is an interned activity token. Tokens are dense: they double as
// row/column indices into transition matrices and as keys into an agent's
// allowed-location table. The ActivitySet that minted a token is the only
// authority for its name.
type Activity int32

// HealthState is an interned health-state token. Dense like Activity; used
// directly as an index into the engine's per-state count matrix.
type HealthState int32

// labelTable is the shared intern table: ordered names and the reverse index.
type labelTable struct {
	names []string
	index map[string]int32
}

func newLabelTable(kind string, names []string) (labelTable, error) {
	if len(names) == 0 {
		return labelTable{}, fmt.Errorf("%s labels: empty list", kind)
	}
	index := make(map[string]int32, len(names))
	for i, name := range names {
		if name == "" {
			return labelTable{}, fmt.Errorf("%s labels: empty name at position %d", kind, i)
		}
		if _, dup := index[name]; dup {
			return labelTable{}, fmt.Errorf("%s labels: duplicate name %q", kind, name)
		}
		index[name] = int32(i)
	}
	return labelTable{names: append([]string(nil), names...), index: index}, nil
}

func (t *labelTable) token(name string) (int32, bool) {
	tok, ok := t.index[name]
	return tok, ok
}

func (t *labelTable) name(tok int32) string {
	if tok < 0 || int(tok) >= len(t.names) {
		return fmt.Sprintf("label(%d)", tok)
	}
	return t.names[tok]
}

// ActivitySet interns the ordered activity labels of a scenario.
type ActivitySet struct {
	table labelTable
}

// NewActivitySet builds the intern table from the scenario's ordered activity
// list. Names must be unique and non-empty.
func NewActivitySet(names []string) (*ActivitySet, error) {
	table, err := newLabelTable("activity", names)
	if err != nil {
		return nil, err
	}
	return &ActivitySet{table: table}, nil
}

// Token resolves a label name to its token. Unknown names are errors.
func (s *ActivitySet) Token(name string) (Activity, error) {
	tok, ok := s.table.token(name)
	if !ok {
		return 0, fmt.Errorf("unknown activity %q", name)
	}
	return Activity(tok), nil
}

// Name returns the label for a token, or a placeholder if the token is out
// of range.
func (s *ActivitySet) Name(a Activity) string {
	return s.table.name(int32(a))
}

// Count returns the number of interned activities.
func (s *ActivitySet) Count() int {
	return len(s.table.names)
}

// Tokens returns all tokens in interning order.
func (s *ActivitySet) Tokens() []Activity {
	out := make([]Activity, len(s.table.names))
	for i := range out {
		out[i] = Activity(i)
	}
	return out
}

// Names returns the label list in interning order.
func (s *ActivitySet) Names() []string {
	return append([]string(nil), s.table.names...)
}

// HealthStateSet interns the ordered health-state labels of a scenario.
type HealthStateSet struct {
	table labelTable
}

// NewHealthStateSet builds the intern table from the scenario's ordered
// health-state list. Names must be unique and non-empty.
func NewHealthStateSet(names []string) (*HealthStateSet, error) {
	table, err := newLabelTable("health state", names)
	if err != nil {
		return nil, err
	}
	return &HealthStateSet{table: table}, nil
}

// Token resolves a label name to its token. Unknown names are errors.
func (s *HealthStateSet) Token(name string) (HealthState, error) {
	tok, ok := s.table.token(name)
	if !ok {
		return 0, fmt.Errorf("unknown health state %q", name)
	}
	return HealthState(tok), nil
}

// Name returns the label for a token, or a placeholder if the token is out
// of range.
func (s *HealthStateSet) Name(h HealthState) string {
	return s.table.name(int32(h))
}

// Count returns the number of interned health states.
func (s *HealthStateSet) Count() int {
	return len(s.table.names)
}

// Tokens returns all tokens in interning order.
func (s *HealthStateSet) Tokens() []HealthState {
	out := make([]HealthState, len(s.table.names))
	for i := range out {
		out[i] = HealthState(i)
	}
	return out
}

// Names returns the label list in interning order.
func (s *HealthStateSet) Names() []string {
	return append([]string(nil), s.table.names...)
}
