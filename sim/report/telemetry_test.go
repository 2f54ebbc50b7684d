package report

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"

	"github.com/epidemic-sim/epidemic-sim/sim"
)

func startTelemetry(t *testing.T, s *sim.Simulator) *Telemetry {
	t.Helper()
	tl, err := NewTelemetry(sim.ReporterConfig{Type: "telemetry", Listen: "127.0.0.1:0"})
	if err != nil {
		t.Fatal(err)
	}
	if err := tl.Start(s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { tl.Stop(s) })
	return tl
}

func TestTelemetry_StreamsHelloThenTicks(t *testing.T) {
	w, rules, clock := smallWorld(t, 4, 1, 6*time.Hour)
	s := buildSmall(t, w, rules, clock, nil, nil, 3)
	tl := startTelemetry(t, s)

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+tl.Addr()+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("reading hello: %v", err)
	}
	var hello HelloMsg
	if err := json.Unmarshal(raw, &hello); err != nil {
		t.Fatalf("decoding hello: %v", err)
	}
	assert.Equal(t, "HELLO", hello.Type)
	assert.Equal(t, TelemetryVersion, hello.ProtocolVersion)
	assert.Equal(t, "report-town", hello.World)
	assert.Equal(t, 4, hello.Population)
	assert.Equal(t, int64(4), hello.Ticks)
	assert.Equal(t, float64(6*60*60), hello.TickLenS)
	assert.Equal(t, []string{"well", "sick", "immune"}, hello.States)
	assert.Equal(t, []string{"home", "shop"}, hello.Activities)

	// The hello arrives only after the client is registered, so a
	// broadcast now must reach it.
	tl.Iterate(s)
	_, raw, err = conn.ReadMessage()
	if err != nil {
		t.Fatalf("reading tick: %v", err)
	}
	var tick TickMsg
	if err := json.Unmarshal(raw, &tick); err != nil {
		t.Fatalf("decoding tick: %v", err)
	}
	assert.Equal(t, "TICK", tick.Type)
	assert.Equal(t, []int{4, 0, 0}, tick.Totals)
}

func TestTelemetry_BootstrapEndpoint(t *testing.T) {
	w, rules, clock := smallWorld(t, 4, 1, 6*time.Hour)
	s := buildSmall(t, w, rules, clock, nil, nil, 3)
	tl := startTelemetry(t, s)

	resp, err := http.Get("http://" + tl.Addr() + "/bootstrap")
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	defer resp.Body.Close()

	var hello HelloMsg
	if err := json.NewDecoder(resp.Body).Decode(&hello); err != nil {
		t.Fatalf("decoding bootstrap: %v", err)
	}
	assert.Equal(t, "HELLO", hello.Type)
	assert.Equal(t, 4, hello.Population)
	assert.Equal(t, 3, hello.Locations)
}

func TestTelemetry_StopClosesClients(t *testing.T) {
	w, rules, clock := smallWorld(t, 2, 1, 6*time.Hour)
	s := buildSmall(t, w, rules, clock, nil, nil, 1)
	tl := startTelemetry(t, s)

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+tl.Addr()+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := conn.ReadMessage(); err != nil {
		t.Fatalf("reading hello: %v", err)
	}

	if err := tl.Stop(s); err != nil {
		t.Fatalf("stop: %v", err)
	}
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
}
