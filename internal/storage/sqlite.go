// Package storage provides persistent storage for the pairing engine: a
// local SQLite archive of computed runs, a PostgreSQL state store for the
// roster and duty feed, and a ClickHouse sink for summary analytics.
package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"crewpair/internal/pairing"
)

// Run represents one archived pairing or summary computation.
type Run struct {
	ID           int64
	CreatedAt    time.Time
	Kind         string
	Scheme       string
	PilotCount   int
	DutyCount    int
	SkippedLines int
	UnknownBases []string
}

// StoredPair is one archived candidate pair. DistanceKM is nil when the
// base distance was unknown at computation time.
type StoredPair struct {
	RunID       int64
	PIC         string
	SIC         string
	PICBase     string
	SICBase     string
	Aircraft    string
	DistanceKM  *float64
	OverlapDays int
	Restricted  bool
}

// Archive wraps a SQLite database holding the local run history.
type Archive struct {
	db *sql.DB
}

// OpenArchive opens or creates the run archive at the given path.
func OpenArchive(path string) (*Archive, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	// Enable WAL mode for better concurrent access.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	if err := createArchiveSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Archive{db: db}, nil
}

// Close closes the archive.
func (a *Archive) Close() error {
	return a.db.Close()
}

func createArchiveSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		created_at TEXT NOT NULL DEFAULT (datetime('now')),
		kind TEXT NOT NULL,
		scheme TEXT NOT NULL,
		pilot_count INTEGER NOT NULL,
		duty_count INTEGER NOT NULL,
		skipped_lines INTEGER NOT NULL,
		unknown_bases TEXT
	);

	CREATE TABLE IF NOT EXISTS run_pairs (
		run_id INTEGER NOT NULL REFERENCES runs(id),
		pic TEXT NOT NULL,
		sic TEXT NOT NULL,
		pic_base TEXT,
		sic_base TEXT,
		aircraft TEXT,
		distance_km REAL,
		overlap_days INTEGER NOT NULL,
		restricted INTEGER NOT NULL DEFAULT 0,
		position INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_run_pairs_run ON run_pairs(run_id);
	CREATE INDEX IF NOT EXISTS idx_runs_kind ON runs(kind);
	`

	_, err := db.Exec(schema)
	return err
}

// SaveRunParams contains one run's metadata and its ranked results.
type SaveRunParams struct {
	Kind         string
	Scheme       string
	PilotCount   int
	DutyCount    int
	SkippedLines int
	UnknownBases []string
	Valid        []pairing.Candidate
	Restricted   []pairing.Candidate
}

// SaveRun archives a run and its candidate pairs, returning the run ID.
// Pair order is preserved so the archive can replay the original ranking.
func (a *Archive) SaveRun(p SaveRunParams) (int64, error) {
	tx, err := a.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin save run: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.Exec(`
		INSERT INTO runs (kind, scheme, pilot_count, duty_count, skipped_lines, unknown_bases)
		VALUES (?, ?, ?, ?, ?, ?)
	`, p.Kind, p.Scheme, p.PilotCount, p.DutyCount, p.SkippedLines, strings.Join(p.UnknownBases, ","))
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}

	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("run id: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO run_pairs (run_id, pic, sic, pic_base, sic_base, aircraft, distance_km, overlap_days, restricted, position)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare pair insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	insert := func(pairs []pairing.Candidate, restricted bool) error {
		for i, c := range pairs {
			var dist interface{}
			if km, ok := c.RoundedDistanceKM(); ok {
				dist = km
			}
			if _, err := stmt.Exec(runID, c.PIC, c.SIC, c.PICBase, c.SICBase,
				c.Aircraft, dist, c.OverlapDays, restricted, i); err != nil {
				return fmt.Errorf("insert pair: %w", err)
			}
		}
		return nil
	}

	if err := insert(p.Valid, false); err != nil {
		return 0, err
	}
	if err := insert(p.Restricted, true); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit save run: %w", err)
	}
	return runID, nil
}

// Runs lists the most recent archived runs, newest first.
func (a *Archive) Runs(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := a.db.Query(`
		SELECT id, created_at, kind, scheme, pilot_count, duty_count, skipped_lines, unknown_bases
		FROM runs ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []Run
	for rows.Next() {
		var r Run
		var created string
		var unknown sql.NullString
		if err := rows.Scan(&r.ID, &created, &r.Kind, &r.Scheme,
			&r.PilotCount, &r.DutyCount, &r.SkippedLines, &unknown); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.CreatedAt, _ = time.Parse("2006-01-02 15:04:05", created)
		if unknown.Valid && unknown.String != "" {
			r.UnknownBases = strings.Split(unknown.String, ",")
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// RunPairs returns one run's archived pairs in their stored ranking order,
// valid pairs before restricted ones.
func (a *Archive) RunPairs(runID int64) ([]StoredPair, error) {
	rows, err := a.db.Query(`
		SELECT run_id, pic, sic, pic_base, sic_base, aircraft, distance_km, overlap_days, restricted
		FROM run_pairs WHERE run_id = ? ORDER BY restricted, position
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query run pairs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var pairs []StoredPair
	for rows.Next() {
		var p StoredPair
		var dist sql.NullFloat64
		var restricted int
		if err := rows.Scan(&p.RunID, &p.PIC, &p.SIC, &p.PICBase, &p.SICBase,
			&p.Aircraft, &dist, &p.OverlapDays, &restricted); err != nil {
			return nil, fmt.Errorf("scan pair: %w", err)
		}
		if dist.Valid {
			km := dist.Float64
			p.DistanceKM = &km
		}
		p.Restricted = restricted == 1
		pairs = append(pairs, p)
	}
	return pairs, rows.Err()
}

// RunCount returns the total number of archived runs.
func (a *Archive) RunCount() (int, error) {
	var count int
	row := a.db.QueryRow("SELECT COUNT(*) FROM runs")
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
