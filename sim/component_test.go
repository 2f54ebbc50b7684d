package sim

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBaseComponent_StartsEnabled(t *testing.T) {
	c := NewBaseComponent("curfew")
	assert.True(t, c.Enabled())
	assert.Equal(t, "curfew", c.Name())
}

func TestBaseComponent_EnableDisable(t *testing.T) {
	c := NewBaseComponent("curfew")

	c.Disable()
	assert.False(t, c.Enabled())

	c.Enable()
	assert.True(t, c.Enabled())
}

func TestBaseComponent_DeclaredVariablesKeepOrder(t *testing.T) {
	c := NewBaseComponent("vaccination")
	c.DeclareVariable("doses_per_day", func(any) error { return nil })
	c.DeclareVariable("start_age", func(any) error { return nil })

	assert.Equal(t, []string{"doses_per_day", "start_age"}, c.SettableVariables())

	// Redeclaring replaces the setter without duplicating the name.
	c.DeclareVariable("doses_per_day", func(any) error { return nil })
	assert.Equal(t, []string{"doses_per_day", "start_age"}, c.SettableVariables())
}

func TestBaseComponent_SetVariableRoutesValue(t *testing.T) {
	c := NewBaseComponent("vaccination")
	var got any
	c.DeclareVariable("doses_per_day", func(v any) error {
		got = v
		return nil
	})

	err := c.SetVariable("doses_per_day", 50)
	assert.NoError(t, err)
	assert.Equal(t, 50, got)
}

func TestBaseComponent_SetterErrorPropagates(t *testing.T) {
	c := NewBaseComponent("vaccination")
	c.DeclareVariable("doses_per_day", func(v any) error {
		return fmt.Errorf("bad value %v", v)
	})

	err := c.SetVariable("doses_per_day", -1)
	assert.Error(t, err)
}

func TestBaseComponent_UndeclaredVariablePanics(t *testing.T) {
	c := NewBaseComponent("vaccination")

	defer func() {
		if recover() == nil {
			t.Error("SetVariable on undeclared name did not panic")
		}
	}()
	_ = c.SetVariable("ghost", 1)
}
