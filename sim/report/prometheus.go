package report

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/epidemic-sim/epidemic-sim/sim"
)

// Prometheus serves the run's live state on a /metrics endpoint: one
// population gauge per health state, the last completed tick, and counters
// for the applied changes. Each reporter owns a private registry, so two
// runs in one process never collide.
type Prometheus struct {
	listen string
	reg    *prometheus.Registry

	population      *prometheus.GaugeVec
	tick            prometheus.Gauge
	healthChanges   prometheus.Counter
	activityChanges prometheus.Counter
	locationChanges prometheus.Counter

	// Metrics carries running totals; counters want increments.
	lastHealth   int64
	lastActivity int64
	lastLocation int64

	ln  net.Listener
	srv *http.Server
}

func NewPrometheus(cfg sim.ReporterConfig) (*Prometheus, error) {
	if cfg.Listen == "" {
		return nil, fmt.Errorf("prometheus reporter needs a listen address")
	}

	p := &Prometheus{
		listen: cfg.Listen,
		reg:    prometheus.NewRegistry(),
		population: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "epidemic_population",
			Help: "Current population of each health state.",
		}, []string{"state"}),
		tick: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "epidemic_tick",
			Help: "Last completed tick.",
		}),
		healthChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "epidemic_health_changes_total",
			Help: "Applied health-state transitions.",
		}),
		activityChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "epidemic_activity_changes_total",
			Help: "Applied activity transitions.",
		}),
		locationChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "epidemic_location_changes_total",
			Help: "Applied relocations.",
		}),
	}
	p.reg.MustRegister(p.population, p.tick, p.healthChanges, p.activityChanges, p.locationChanges)
	return p, nil
}

func (p *Prometheus) Name() string { return "prometheus" }

func (p *Prometheus) Start(s *sim.Simulator) error {
	ln, err := net.Listen("tcp", p.listen)
	if err != nil {
		return fmt.Errorf("prometheus listener: %w", err)
	}
	p.ln = ln

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(p.reg, promhttp.HandlerOpts{}))
	p.srv = &http.Server{Handler: mux}
	go func() {
		if err := p.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			logrus.Warnf("[report] prometheus server: %v", err)
		}
	}()

	logrus.Infof("[report] prometheus metrics on http://%s/metrics", ln.Addr())
	return nil
}

func (p *Prometheus) Iterate(s *sim.Simulator) {
	for tok, n := range s.HealthTotals() {
		name := s.World.HealthStates.Name(sim.HealthState(tok))
		p.population.WithLabelValues(name).Set(float64(n))
	}
	p.tick.Set(float64(s.Clock.Tick()))

	m := s.Metrics
	p.healthChanges.Add(float64(m.HealthChanges - p.lastHealth))
	p.activityChanges.Add(float64(m.ActivityChanges - p.lastActivity))
	p.locationChanges.Add(float64(m.LocationChanges - p.lastLocation))
	p.lastHealth = m.HealthChanges
	p.lastActivity = m.ActivityChanges
	p.lastLocation = m.LocationChanges
}

func (p *Prometheus) Stop(s *sim.Simulator) error {
	if p.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return p.srv.Shutdown(ctx)
}

// Addr returns the bound listen address, usable once Start has run.
func (p *Prometheus) Addr() string {
	if p.ln == nil {
		return ""
	}
	return p.ln.Addr().String()
}
