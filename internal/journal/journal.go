// Package journal persists scenario reports in a SQLite database so runs
// can be compared over time.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/agentic-research/buildverify/internal/instrument"
	"github.com/agentic-research/buildverify/internal/scenario"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	scenario TEXT NOT NULL,
	passed INTEGER NOT NULL,
	error TEXT,
	recorded_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_scenario ON runs(scenario, recorded_at);

CREATE TABLE IF NOT EXISTS phases (
	run_id INTEGER NOT NULL REFERENCES runs(id),
	seq INTEGER NOT NULL,
	name TEXT NOT NULL,
	passed INTEGER NOT NULL,
	diagnostics INTEGER NOT NULL,
	changes INTEGER NOT NULL,
	PRIMARY KEY (run_id, seq)
) WITHOUT ROWID;

CREATE TABLE IF NOT EXISTS reads (
	run_id INTEGER NOT NULL REFERENCES runs(id),
	phase TEXT NOT NULL,
	path TEXT NOT NULL,
	count INTEGER NOT NULL,
	PRIMARY KEY (run_id, phase, path)
) WITHOUT ROWID;

CREATE TABLE IF NOT EXISTS mismatches (
	run_id INTEGER NOT NULL REFERENCES runs(id),
	seq INTEGER NOT NULL,
	phase TEXT NOT NULL,
	kind TEXT NOT NULL,
	path TEXT,
	expected TEXT,
	actual TEXT,
	detail TEXT,
	PRIMARY KEY (run_id, seq)
) WITHOUT ROWID;
`

// Journal is a scenario.Journal backed by SQLite.
type Journal struct {
	db  *sql.DB
	mu  sync.Mutex
	now func() time.Time
}

var _ scenario.Journal = (*Journal)(nil)

// Open opens or creates the journal at path. ":memory:" gives a private
// in-memory journal.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// One connection keeps ":memory:" databases alive and serialises writers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Journal{db: db, now: time.Now}, nil
}

func (j *Journal) Close() error { return j.db.Close() }

// Record stores one report in a single transaction.
func (j *Journal) Record(ctx context.Context, rep *scenario.Report) (err error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var errText sql.NullString
	if rep.Err != nil {
		errText = sql.NullString{String: rep.Err.Error(), Valid: true}
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO runs (scenario, passed, error, recorded_at) VALUES (?, ?, ?, ?)`,
		rep.Scenario, rep.Passed(), errText, j.now().UnixNano())
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return err
	}

	seq := 0
	for i, ph := range rep.Phases {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO phases (run_id, seq, name, passed, diagnostics, changes) VALUES (?, ?, ?, ?, ?, ?)`,
			runID, i, ph.Name, ph.Passed(), len(ph.Diagnostics), len(ph.Patch)); err != nil {
			return fmt.Errorf("insert phase %q: %w", ph.Name, err)
		}
		for _, p := range ph.Reads.Paths() {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO reads (run_id, phase, path, count) VALUES (?, ?, ?, ?)`,
				runID, ph.Name, p, ph.Reads.Count(p)); err != nil {
				return fmt.Errorf("insert reads: %w", err)
			}
		}
		for _, m := range ph.Mismatches {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO mismatches (run_id, seq, phase, kind, path, expected, actual, detail) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				runID, seq, m.Phase, string(m.Kind), m.Path, m.Expected, m.Actual, m.Detail); err != nil {
				return fmt.Errorf("insert mismatch: %w", err)
			}
			seq++
		}
	}
	return tx.Commit()
}

// Run summarises one recorded report.
type Run struct {
	ID         int64
	Scenario   string
	Passed     bool
	Err        string
	RecordedAt time.Time
	Phases     int
	Mismatches int
}

// Runs returns the most recent runs first. A scenario filter of "" matches
// every scenario; limit <= 0 means no limit.
func (j *Journal) Runs(ctx context.Context, scenarioName string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT r.id, r.scenario, r.passed, COALESCE(r.error, ''), r.recorded_at,
			(SELECT COUNT(*) FROM phases p WHERE p.run_id = r.id),
			(SELECT COUNT(*) FROM mismatches m WHERE m.run_id = r.id)
		FROM runs r
		WHERE ? = '' OR r.scenario = ?
		ORDER BY r.recorded_at DESC, r.id DESC
		LIMIT ?`, scenarioName, scenarioName, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Run
	for rows.Next() {
		var r Run
		var at int64
		if err := rows.Scan(&r.ID, &r.Scenario, &r.Passed, &r.Err, &at, &r.Phases, &r.Mismatches); err != nil {
			return nil, err
		}
		r.RecordedAt = time.Unix(0, at).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// Mismatches returns the mismatches of a run in recorded order.
func (j *Journal) Mismatches(ctx context.Context, runID int64) ([]scenario.Mismatch, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT phase, kind, path, expected, actual, detail
		FROM mismatches WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []scenario.Mismatch
	for rows.Next() {
		var m scenario.Mismatch
		var kind string
		if err := rows.Scan(&m.Phase, &kind, &m.Path, &m.Expected, &m.Actual, &m.Detail); err != nil {
			return nil, err
		}
		m.Kind = scenario.MismatchKind(kind)
		out = append(out, m)
	}
	return out, rows.Err()
}

// Reads returns the read tally recorded for one phase of a run.
func (j *Journal) Reads(ctx context.Context, runID int64, phase string) (instrument.Tally, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT path, count FROM reads WHERE run_id = ? AND phase = ?`, runID, phase)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := instrument.Tally{}
	for rows.Next() {
		var p string
		var n int
		if err := rows.Scan(&p, &n); err != nil {
			return nil, err
		}
		out[p] = n
	}
	return out, rows.Err()
}
