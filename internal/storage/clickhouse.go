package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"crewpair/internal/summary"
)

// ClickHouseConfig holds ClickHouse connection settings.
type ClickHouseConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// ClickHouseDB wraps a ClickHouse connection for summary analytics.
type ClickHouseDB struct {
	conn driver.Conn
}

// Conn returns the underlying ClickHouse connection for direct queries.
func (d *ClickHouseDB) Conn() driver.Conn {
	return d.conn
}

// OpenClickHouse opens a connection to ClickHouse.
func OpenClickHouse(ctx context.Context, cfg ClickHouseConfig) (*ClickHouseDB, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout:     10 * time.Second,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("open clickhouse: %w", err)
	}

	// Test the connection.
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping clickhouse: %w", err)
	}

	return &ClickHouseDB{conn: conn}, nil
}

// Close closes the ClickHouse connection.
func (d *ClickHouseDB) Close() error {
	return d.conn.Close()
}

// CreateSchema creates the ClickHouse tables.
func (d *ClickHouseDB) CreateSchema(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS daily_summary (
			summary_date    Date,
			duty_code       LowCardinality(String),
			family          LowCardinality(String),
			seat            LowCardinality(String),
			pilot_count     UInt32,
			recorded_at     DateTime64(3) DEFAULT now64(3)
		)
		ENGINE = MergeTree()
		PARTITION BY toYYYYMM(summary_date)
		ORDER BY (duty_code, family, seat, summary_date)
		SETTINGS index_granularity = 8192`,
	}

	for _, q := range queries {
		if err := d.conn.Exec(ctx, q); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

// SummaryCell is one (date, family, seat) count in the analytics store.
type SummaryCell struct {
	Date       time.Time
	DutyCode   string
	Family     string
	Seat       string
	PilotCount uint32
}

// InsertSummary stores a computed summary table for the given duty code,
// one row per table cell, zero counts included so absences are queryable.
func (d *ClickHouseDB) InsertSummary(ctx context.Context, dutyCode string, table *summary.Table) error {
	if table == nil || len(table.Rows) == 0 {
		return nil
	}

	batch, err := d.conn.PrepareBatch(ctx, `
		INSERT INTO daily_summary (summary_date, duty_code, family, seat, pilot_count)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, row := range table.Rows {
		for i, col := range table.Columns {
			fam, seat, ok := splitColumn(col)
			if !ok {
				continue
			}
			if err := batch.Append(row.Date, dutyCode, fam, seat, uint32(row.Counts[i])); err != nil {
				return fmt.Errorf("append to batch: %w", err)
			}
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// splitColumn splits a "Family SEAT" column label into its parts.
func splitColumn(col string) (family, seat string, ok bool) {
	for i := len(col) - 1; i >= 0; i-- {
		if col[i] == ' ' {
			return col[:i], col[i+1:], true
		}
	}
	return "", "", false
}

// QuerySummary retrieves stored summary cells for a duty code over
// [from, to] inclusive, ordered by date then family and seat.
func (d *ClickHouseDB) QuerySummary(ctx context.Context, dutyCode string, from, to time.Time) ([]SummaryCell, error) {
	rows, err := d.conn.Query(ctx, `
		SELECT summary_date, duty_code, family, seat, pilot_count
		FROM daily_summary
		WHERE duty_code = ? AND summary_date >= ? AND summary_date <= ?
		ORDER BY summary_date, family, seat
	`, dutyCode, from, to)
	if err != nil {
		return nil, fmt.Errorf("query summary: %w", err)
	}
	defer rows.Close()

	var cells []SummaryCell
	for rows.Next() {
		var c SummaryCell
		if err := rows.Scan(&c.Date, &c.DutyCode, &c.Family, &c.Seat, &c.PilotCount); err != nil {
			return nil, fmt.Errorf("scan summary cell: %w", err)
		}
		cells = append(cells, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate summary cells: %w", err)
	}
	return cells, nil
}

// Count returns the total number of stored summary cells.
func (d *ClickHouseDB) Count(ctx context.Context) (uint64, error) {
	var count uint64
	row := d.conn.QueryRow(ctx, "SELECT count() FROM daily_summary")
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
