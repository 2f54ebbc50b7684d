package sim

import "fmt"

// Component is a unit of pluggable behavior wired to the bus; interventions
// are components, and the scheduler drives them. Init runs once before the
// first tick and is where the component subscribes. Enable and Disable flip
// participation at runtime; a disabled component keeps its subscriptions
// and simply declines to act.
type Component interface {
	Name() string
	Init(s *Simulator) error
	Enable()
	Disable()
	Enabled() bool
}

// Configurable is implemented by components exposing variables the
// scheduler may set mid-run. SettableVariables lists the declared names in
// declaration order. SetVariable returns an error for a bad value; calling
// it with a name that was never declared is a programming error and panics.
type Configurable interface {
	SettableVariables() []string
	SetVariable(name string, value any) error
}

// BaseComponent supplies the name, the enabled flag and the
// declared-variable registry. Embed it by pointer and declare variables
// during construction.
type BaseComponent struct {
	name    string
	enabled bool
	setters map[string]func(any) error
	order   []string
}

// NewBaseComponent returns an enabled component core.
func NewBaseComponent(name string) BaseComponent {
	return BaseComponent{
		name:    name,
		enabled: true,
		setters: make(map[string]func(any) error),
	}
}

// Name returns the component's configured name.
func (c *BaseComponent) Name() string { return c.name }

// Enable turns the component on.
func (c *BaseComponent) Enable() { c.enabled = true }

// Disable turns the component off.
func (c *BaseComponent) Disable() { c.enabled = false }

// Enabled reports whether the component is participating.
func (c *BaseComponent) Enabled() bool { return c.enabled }

// DeclareVariable registers a runtime-settable variable. The setter owns
// value validation and returns an error for values it cannot take.
func (c *BaseComponent) DeclareVariable(name string, set func(any) error) {
	if _, dup := c.setters[name]; !dup {
		c.order = append(c.order, name)
	}
	c.setters[name] = set
}

// SettableVariables returns the declared variable names in declaration
// order.
func (c *BaseComponent) SettableVariables() []string {
	return append([]string(nil), c.order...)
}

// SetVariable routes a value to the declared setter. Undeclared names
// panic: the scheduler validates names when the run is assembled, so an
// unknown name here means a caller skipped that contract.
func (c *BaseComponent) SetVariable(name string, value any) error {
	set, ok := c.setters[name]
	if !ok {
		panic(fmt.Sprintf("component %q: variable %q was never declared", c.name, name))
	}
	return set(value)
}
