package storage

import (
	"context"
	"fmt"
	"time"

	"crewpair/internal/roster"
	"crewpair/internal/summary"
)

// Config holds connection settings for the full storage stack: PostgreSQL
// for roster and duty state, ClickHouse for summary analytics.
type Config struct {
	Postgres   PostgresConfig
	ClickHouse ClickHouseConfig
}

// DefaultConfig returns local development settings matching the compose
// stack defaults.
func DefaultConfig() Config {
	return Config{
		Postgres: PostgresConfig{
			Host:     "localhost",
			Port:     5432,
			Database: "crewpair_state",
			User:     "crewpair",
			Password: "crewpair",
		},
		ClickHouse: ClickHouseConfig{
			Host:     "localhost",
			Port:     9000,
			Database: "crewpair",
			User:     "default",
			Password: "",
		},
	}
}

// DB pairs the duty state store with the analytics sink for jobs that read
// from one and write to the other.
type DB struct {
	PG *PostgresDB   // source: pilots and duty records
	CH *ClickHouseDB // sink: daily_summary cells
}

// Open connects to PostgreSQL first (the rollup source), then ClickHouse.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	pg, err := OpenPostgres(ctx, cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}

	ch, err := OpenClickHouse(ctx, cfg.ClickHouse)
	if err != nil {
		pg.Close()
		return nil, fmt.Errorf("clickhouse: %w", err)
	}

	return &DB{PG: pg, CH: ch}, nil
}

// Close closes both connections; the first close error wins.
func (d *DB) Close() error {
	var firstErr error
	if d.CH != nil {
		if err := d.CH.Close(); err != nil {
			firstErr = fmt.Errorf("clickhouse: %w", err)
		}
	}
	if d.PG != nil {
		d.PG.Close()
	}
	return firstErr
}

// CreateSchemas creates the tables in both databases.
func (d *DB) CreateSchemas(ctx context.Context) error {
	if err := d.PG.CreateSchema(ctx); err != nil {
		return fmt.Errorf("postgres schema: %w", err)
	}
	if err := d.CH.CreateSchema(ctx); err != nil {
		return fmt.Errorf("clickhouse schema: %w", err)
	}
	return nil
}

// Rollup reads merged duty state from PostgreSQL over [from, to], pivots it
// into the daily availability table for the given duty code and stores the
// result in ClickHouse. The computed table is returned for reporting.
func (d *DB) Rollup(ctx context.Context, code roster.DutyCode, from, to time.Time) (*summary.Table, error) {
	merged, err := d.PG.MergedRecords(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("read duty state: %w", err)
	}

	table, err := summary.Daily(merged, code, from, to)
	if err != nil {
		return nil, err
	}

	if err := d.CH.InsertSummary(ctx, string(code), table); err != nil {
		return nil, fmt.Errorf("store summary: %w", err)
	}
	return table, nil
}
