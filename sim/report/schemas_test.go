package report

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

func TestTelemetrySchemas_ValidateMessages(t *testing.T) {
	compile := func(name string) *jsonschema.Schema {
		t.Helper()
		p := filepath.Join("..", "..", "schemas", name)
		s, err := jsonschema.Compile(p)
		if err != nil {
			t.Fatalf("compile %s: %v", name, err)
		}
		return s
	}
	roundtrip := func(v any) any {
		t.Helper()
		b, err := json.Marshal(v)
		if err != nil {
			t.Fatal(err)
		}
		var out any
		if err := json.Unmarshal(b, &out); err != nil {
			t.Fatal(err)
		}
		return out
	}

	helloSchema := compile("telemetry_hello.schema.json")
	tickSchema := compile("telemetry_tick.schema.json")

	hello := roundtrip(HelloMsg{
		Type:            "HELLO",
		ProtocolVersion: TelemetryVersion,
		RunID:           "2d9ab7c4",
		World:           "valleytown",
		Population:      10000,
		Locations:       4200,
		Ticks:           112,
		TickLenS:        21600,
		Epoch:           "2020-07-06T00:00:00Z",
		States:          []string{"susceptible", "infectious", "recovered"},
		Activities:      []string{"home", "work", "shop"},
	})
	if err := helloSchema.Validate(hello); err != nil {
		t.Fatalf("hello: %v", err)
	}

	tick := roundtrip(TickMsg{
		Type:            "TICK",
		ProtocolVersion: TelemetryVersion,
		Tick:            3,
		Time:            "2020-07-06T18:00:00Z",
		Totals:          []int{9800, 150, 50},
		HealthChanges:   200,
		ActivityChanges: 5400,
		LocationChanges: 5100,
	})
	if err := tickSchema.Validate(tick); err != nil {
		t.Fatalf("tick: %v", err)
	}

	// The schemas must tell the two message kinds apart.
	if err := tickSchema.Validate(hello); err == nil {
		t.Fatal("a HELLO passed the TICK schema")
	}
	if err := helloSchema.Validate(tick); err == nil {
		t.Fatal("a TICK passed the HELLO schema")
	}
}
