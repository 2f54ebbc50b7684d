package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/epidemic-sim/epidemic-sim/sim"
)

// CSV appends one row per tick with the population of every health state.
// A write failure mid-run disables the sink instead of stopping the
// simulation.
type CSV struct {
	path string

	f      *os.File
	w      *csv.Writer
	rows   int64
	failed bool
}

func NewCSV(cfg sim.ReporterConfig) (*CSV, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("csv reporter needs a path")
	}
	return &CSV{path: cfg.Path}, nil
}

func (c *CSV) Name() string { return "csv" }

func (c *CSV) Start(s *sim.Simulator) error {
	f, err := os.Create(c.path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", c.path, err)
	}
	c.f = f
	c.w = csv.NewWriter(f)

	header := append([]string{"tick", "time"}, s.World.HealthStates.Names()...)
	if err := c.w.Write(header); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", c.path, err)
	}
	return nil
}

func (c *CSV) Iterate(s *sim.Simulator) {
	if c.failed {
		return
	}
	row := make([]string, 0, 2+s.World.HealthStates.Count())
	row = append(row,
		strconv.FormatInt(s.Clock.Tick(), 10),
		s.Clock.Now().Format(time.RFC3339))
	for _, n := range s.HealthTotals() {
		row = append(row, strconv.Itoa(n))
	}
	if err := c.w.Write(row); err != nil {
		c.failed = true
		logrus.Warnf("[report] csv %s: %v; sink disabled", c.path, err)
		return
	}
	c.rows++
}

func (c *CSV) Stop(s *sim.Simulator) error {
	if c.f == nil {
		return nil
	}
	c.w.Flush()
	werr := c.w.Error()
	cerr := c.f.Close()
	if werr != nil {
		return fmt.Errorf("flushing %s: %w", c.path, werr)
	}
	logrus.Infof("[report] csv: %d rows to %s", c.rows, c.path)
	return cerr
}
