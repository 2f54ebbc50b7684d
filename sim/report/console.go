package report

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/epidemic-sim/epidemic-sim/sim"
)

// Console logs a population summary every interval ticks and prints the
// aggregated metrics when the run ends.
type Console struct {
	interval int64
}

func NewConsole(cfg sim.ReporterConfig) *Console {
	interval := int64(1)
	if cfg.IntervalTicks != nil && *cfg.IntervalTicks > 0 {
		interval = int64(*cfg.IntervalTicks)
	}
	return &Console{interval: interval}
}

func (c *Console) Name() string                 { return "console" }
func (c *Console) Start(s *sim.Simulator) error { return nil }

func (c *Console) Iterate(s *sim.Simulator) {
	t := s.Clock.Tick()
	if !c.due(t) {
		return
	}
	var b strings.Builder
	for tok, n := range s.HealthTotals() {
		fmt.Fprintf(&b, " %s=%d", s.World.HealthStates.Name(sim.HealthState(tok)), n)
	}
	logrus.Infof("[report] t=%07d %s |%s", t, s.Clock.Now().Format("2006-01-02 15:04"), b.String())
}

func (c *Console) Stop(s *sim.Simulator) error {
	s.Metrics.Print(s.World.HealthStates)
	return nil
}

func (c *Console) due(t int64) bool {
	return t%c.interval == 0
}
