package report

import (
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/epidemic-sim/epidemic-sim/sim"
)

func TestPrometheus_GaugesAndCounters(t *testing.T) {
	w, rules, clock := smallWorld(t, 4, 1, 6*time.Hour)
	s := buildSmall(t, w, rules, clock, nil, nil, 3)

	p, err := NewPrometheus(sim.ReporterConfig{Type: "prometheus", Listen: "127.0.0.1:0"})
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Start(s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer p.Stop(s)

	p.Iterate(s)
	assert.Equal(t, 4.0, testutil.ToFloat64(p.population.WithLabelValues("well")))
	assert.Equal(t, 0.0, testutil.ToFloat64(p.population.WithLabelValues("sick")))

	// The counters track the metrics' running totals across iterations.
	s.Metrics.HealthChanges = 5
	p.Iterate(s)
	assert.Equal(t, 5.0, testutil.ToFloat64(p.healthChanges))
	s.Metrics.HealthChanges = 9
	s.Metrics.LocationChanges = 2
	p.Iterate(s)
	assert.Equal(t, 9.0, testutil.ToFloat64(p.healthChanges))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.locationChanges))
}

func TestPrometheus_ServesScrapeEndpoint(t *testing.T) {
	w, rules, clock := smallWorld(t, 4, 1, 6*time.Hour)
	s := buildSmall(t, w, rules, clock, nil, nil, 3)

	p, err := NewPrometheus(sim.ReporterConfig{Type: "prometheus", Listen: "127.0.0.1:0"})
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Start(s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer p.Stop(s)
	p.Iterate(s)

	resp, err := http.Get("http://" + p.Addr() + "/metrics")
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `epidemic_population{state="well"} 4`)
	assert.Contains(t, string(body), "epidemic_health_changes_total")
}

func TestPrometheus_BadListenFailsStart(t *testing.T) {
	w, rules, clock := smallWorld(t, 2, 1, 6*time.Hour)
	s := buildSmall(t, w, rules, clock, nil, nil, 1)

	p, err := NewPrometheus(sim.ReporterConfig{Type: "prometheus", Listen: "127.0.0.1:-1"})
	if err != nil {
		t.Fatal(err)
	}
	assert.Error(t, p.Start(s))
}
