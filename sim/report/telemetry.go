package report

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/epidemic-sim/epidemic-sim/sim"
)

// Telemetry streams tick summaries to websocket clients, for dashboards
// watching a run live. Every connection receives a HELLO first and then
// one TICK message per tick; a client that cannot keep up skips ticks
// rather than stalling the engine. GET /bootstrap serves the HELLO
// payload without upgrading.
type Telemetry struct {
	listen   string
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[uint64]*telemetryClient
	nextID  atomic.Uint64
	hello   []byte

	ln  net.Listener
	srv *http.Server
}

type telemetryClient struct {
	conn *websocket.Conn
	out  chan []byte
}

func NewTelemetry(cfg sim.ReporterConfig) (*Telemetry, error) {
	if cfg.Listen == "" {
		return nil, fmt.Errorf("telemetry reporter needs a listen address")
	}
	return &Telemetry{
		listen:  cfg.Listen,
		clients: make(map[uint64]*telemetryClient),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}, nil
}

func (t *Telemetry) Name() string { return "telemetry" }

func (t *Telemetry) Start(s *sim.Simulator) error {
	hello := HelloMsg{
		Type:            "HELLO",
		ProtocolVersion: TelemetryVersion,
		RunID:           s.RunID,
		World:           s.World.Name,
		Population:      s.World.AgentCount(),
		Locations:       s.World.LocationCount(),
		Ticks:           s.Clock.MaxTicks(),
		TickLenS:        s.Clock.TickLength().Seconds(),
		Epoch:           s.Clock.Epoch().Format(time.RFC3339),
		States:          s.World.HealthStates.Names(),
		Activities:      s.World.Activities.Names(),
	}
	b, err := json.Marshal(hello)
	if err != nil {
		return fmt.Errorf("encoding hello: %w", err)
	}
	t.hello = b

	ln, err := net.Listen("tcp", t.listen)
	if err != nil {
		return fmt.Errorf("telemetry listener: %w", err)
	}
	t.ln = ln

	mux := http.NewServeMux()
	mux.HandleFunc("/bootstrap", t.bootstrapHandler)
	mux.HandleFunc("/ws", t.wsHandler)
	t.srv = &http.Server{Handler: mux}
	go func() {
		if err := t.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			logrus.Warnf("[report] telemetry server: %v", err)
		}
	}()

	logrus.Infof("[report] telemetry stream on ws://%s/ws", ln.Addr())
	return nil
}

func (t *Telemetry) bootstrapHandler(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	rw.Header().Set("Content-Type", "application/json")
	_, _ = rw.Write(t.hello)
}

func (t *Telemetry) wsHandler(rw http.ResponseWriter, r *http.Request) {
	conn, err := t.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	c := &telemetryClient{conn: conn, out: make(chan []byte, 64)}
	id := t.nextID.Add(1)
	t.mu.Lock()
	t.clients[id] = c
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		delete(t.clients, id)
		t.mu.Unlock()
	}()

	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := conn.WriteMessage(websocket.TextMessage, t.hello); err != nil {
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Writer goroutine.
	writeErr := make(chan error, 1)
	go func() {
		for {
			select {
			case <-ctx.Done():
				writeErr <- ctx.Err()
				return
			case b := <-c.out:
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					writeErr <- err
					return
				}
			}
		}
	}()

	// Reader loop: the stream is one-way, reads only detect the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	cancel()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

	// Best-effort wait for the writer to stop so it doesn't outlive conn.
	select {
	case <-writeErr:
	case <-time.After(500 * time.Millisecond):
	}
}

func (t *Telemetry) Iterate(s *sim.Simulator) {
	msg := TickMsg{
		Type:            "TICK",
		ProtocolVersion: TelemetryVersion,
		Tick:            s.Clock.Tick(),
		Time:            s.Clock.Now().Format(time.RFC3339),
		Totals:          s.HealthTotals(),
		HealthChanges:   s.Metrics.HealthChanges,
		ActivityChanges: s.Metrics.ActivityChanges,
		LocationChanges: s.Metrics.LocationChanges,
	}
	b, err := json.Marshal(msg)
	if err != nil {
		logrus.Warnf("[report] telemetry: encoding tick %d: %v", msg.Tick, err)
		return
	}

	t.mu.Lock()
	for _, c := range t.clients {
		select {
		case c.out <- b:
		default:
			// Slow consumer; it skips this tick.
		}
	}
	t.mu.Unlock()
}

func (t *Telemetry) Stop(s *sim.Simulator) error {
	if t.srv == nil {
		return nil
	}
	t.mu.Lock()
	for _, c := range t.clients {
		c.conn.Close()
	}
	t.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return t.srv.Shutdown(ctx)
}

// Addr returns the bound listen address, usable once Start has run.
func (t *Telemetry) Addr() string {
	if t.ln == nil {
		return ""
	}
	return t.ln.Addr().String()
}
