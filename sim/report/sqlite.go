package report

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/epidemic-sim/epidemic-sim/sim"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	world TEXT NOT NULL,
	started_at TEXT NOT NULL,
	agents INTEGER NOT NULL,
	locations INTEGER NOT NULL,
	ticks_run INTEGER NOT NULL DEFAULT 0,
	health_changes INTEGER NOT NULL DEFAULT 0,
	activity_changes INTEGER NOT NULL DEFAULT 0,
	location_changes INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS tick_totals (
	run_id TEXT NOT NULL,
	tick INTEGER NOT NULL,
	state TEXT NOT NULL,
	count INTEGER NOT NULL,
	PRIMARY KEY (run_id, tick, state)
);

CREATE TABLE IF NOT EXISTS run_peaks (
	run_id TEXT NOT NULL,
	state TEXT NOT NULL,
	peak INTEGER NOT NULL,
	PRIMARY KEY (run_id, state)
);

CREATE INDEX IF NOT EXISTS idx_tick_totals_run ON tick_totals(run_id, tick);
`

// SQLite stores the per-tick state populations and the run summary in a
// local database. Several runs can share one file; rows are keyed by the
// engine's run ID.
type SQLite struct {
	path string

	db     *sqlx.DB
	failed bool
}

func NewSQLite(cfg sim.ReporterConfig) (*SQLite, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite reporter needs a path")
	}
	return &SQLite{path: cfg.Path}, nil
}

func (r *SQLite) Name() string { return "sqlite" }

func (r *SQLite) Start(s *sim.Simulator) error {
	db, err := sqlx.Open("sqlite", r.path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return fmt.Errorf("migrate: %w", err)
	}
	_, err = db.Exec(
		"INSERT INTO runs (id, world, started_at, agents, locations) VALUES (?, ?, ?, ?, ?)",
		s.RunID, s.World.Name, time.Now().UTC().Format(time.RFC3339),
		s.World.AgentCount(), s.World.LocationCount(),
	)
	if err != nil {
		db.Close()
		return fmt.Errorf("insert run %s: %w", s.RunID, err)
	}
	r.db = db
	return nil
}

func (r *SQLite) Iterate(s *sim.Simulator) {
	if r.failed {
		return
	}
	if err := r.insertTotals(s); err != nil {
		r.failed = true
		logrus.Warnf("[report] sqlite %s: %v; sink disabled", r.path, err)
	}
}

func (r *SQLite) insertTotals(s *sim.Simulator) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Preparex(
		"INSERT OR REPLACE INTO tick_totals (run_id, tick, state, count) VALUES (?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	t := s.Clock.Tick()
	for tok, n := range s.HealthTotals() {
		name := s.World.HealthStates.Name(sim.HealthState(tok))
		if _, err := stmt.Exec(s.RunID, t, name, n); err != nil {
			return fmt.Errorf("insert tick %d state %s: %w", t, name, err)
		}
	}
	return tx.Commit()
}

func (r *SQLite) Stop(s *sim.Simulator) error {
	if r.db == nil {
		return nil
	}
	defer r.db.Close()

	tx, err := r.db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	m := s.Metrics
	_, err = tx.Exec(
		"UPDATE runs SET ticks_run = ?, health_changes = ?, activity_changes = ?, location_changes = ? WHERE id = ?",
		m.TicksRun, m.HealthChanges, m.ActivityChanges, m.LocationChanges, s.RunID,
	)
	if err != nil {
		return fmt.Errorf("update run %s: %w", s.RunID, err)
	}
	for _, tok := range s.World.HealthStates.Tokens() {
		_, err := tx.Exec(
			"INSERT OR REPLACE INTO run_peaks (run_id, state, peak) VALUES (?, ?, ?)",
			s.RunID, s.World.HealthStates.Name(tok), m.PeakByState[tok],
		)
		if err != nil {
			return fmt.Errorf("insert peak: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	logrus.Infof("[report] sqlite: run %s stored in %s", s.RunID, r.path)
	return nil
}
