package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"crewpair/internal/roster"
)

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// PostgresDB wraps a PostgreSQL connection pool for crew state storage.
type PostgresDB struct {
	pool *pgxpool.Pool
}

// OpenPostgres opens a connection pool to PostgreSQL.
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*PostgresDB, error) {
	connStr := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database)

	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	// Test the connection.
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresDB{pool: pool}, nil
}

// Close closes the PostgreSQL connection pool.
func (d *PostgresDB) Close() {
	d.pool.Close()
}

// CreateSchema creates the PostgreSQL tables.
func (d *PostgresDB) CreateSchema(ctx context.Context) error {
	schema := `
	-- Reference data: pilot qualifications
	CREATE TABLE IF NOT EXISTS pilots (
		employee_id     TEXT PRIMARY KEY,
		name            TEXT,
		seat            TEXT NOT NULL,
		base            TEXT,
		aircraft        TEXT,
		first_seen      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		last_seen       TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_pilots_seat ON pilots(seat);
	CREATE INDEX IF NOT EXISTS idx_pilots_aircraft ON pilots(aircraft);

	-- Live duty feed state: one row per employee, code and date
	CREATE TABLE IF NOT EXISTS duty_records (
		employee_id     TEXT NOT NULL,
		duty_date       DATE NOT NULL,
		code            TEXT NOT NULL,
		base            TEXT,
		received_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (employee_id, duty_date, code)
	);

	CREATE INDEX IF NOT EXISTS idx_duty_records_date ON duty_records(duty_date);
	CREATE INDEX IF NOT EXISTS idx_duty_records_employee ON duty_records(employee_id);
	`

	_, err := d.pool.Exec(ctx, schema)
	if err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// UpsertPilot inserts or updates a pilot's qualification record. The
// qualification base overwrites any previously stored base.
func (d *PostgresDB) UpsertPilot(ctx context.Context, p roster.Pilot) error {
	_, err := d.pool.Exec(ctx, `
		INSERT INTO pilots (employee_id, name, seat, base, aircraft)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (employee_id) DO UPDATE SET
			name = COALESCE(NULLIF(EXCLUDED.name, ''), pilots.name),
			seat = EXCLUDED.seat,
			base = COALESCE(NULLIF(EXCLUDED.base, ''), pilots.base),
			aircraft = COALESCE(NULLIF(EXCLUDED.aircraft, ''), pilots.aircraft),
			last_seen = NOW()
	`, p.EmployeeID, p.Name, p.Seat, p.Base, p.Aircraft)
	return err
}

// GetPilot retrieves a pilot by employee ID. Returns nil when not found.
func (d *PostgresDB) GetPilot(ctx context.Context, employeeID string) (*roster.Pilot, error) {
	var p roster.Pilot
	err := d.pool.QueryRow(ctx, `
		SELECT employee_id, COALESCE(name, ''), seat, COALESCE(base, ''), COALESCE(aircraft, '')
		FROM pilots WHERE employee_id = $1
	`, employeeID).Scan(&p.EmployeeID, &p.Name, &p.Seat, &p.Base, &p.Aircraft)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPilots retrieves all pilots ordered by employee ID.
func (d *PostgresDB) ListPilots(ctx context.Context) ([]roster.Pilot, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT employee_id, COALESCE(name, ''), seat, COALESCE(base, ''), COALESCE(aircraft, '')
		FROM pilots ORDER BY employee_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pilots []roster.Pilot
	for rows.Next() {
		var p roster.Pilot
		if err := rows.Scan(&p.EmployeeID, &p.Name, &p.Seat, &p.Base, &p.Aircraft); err != nil {
			return nil, err
		}
		pilots = append(pilots, p)
	}
	return pilots, rows.Err()
}

// UpsertDutyRecord inserts a duty record, refreshing received_at when the
// same (employee, date, code) row arrives again from the feed.
func (d *PostgresDB) UpsertDutyRecord(ctx context.Context, r roster.DutyRecord) error {
	_, err := d.pool.Exec(ctx, `
		INSERT INTO duty_records (employee_id, duty_date, code, base)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (employee_id, duty_date, code) DO UPDATE SET
			base = COALESCE(NULLIF(EXCLUDED.base, ''), duty_records.base),
			received_at = NOW()
	`, r.EmployeeID, r.Date, string(r.Code), r.Base)
	return err
}

// InsertDutyRecords stores a batch of duty records in one transaction.
func (d *PostgresDB) InsertDutyRecords(ctx context.Context, records []roster.DutyRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin duty insert: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, r := range records {
		if _, err := tx.Exec(ctx, `
			INSERT INTO duty_records (employee_id, duty_date, code, base)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (employee_id, duty_date, code) DO UPDATE SET
				base = COALESCE(NULLIF(EXCLUDED.base, ''), duty_records.base),
				received_at = NOW()
		`, r.EmployeeID, r.Date, string(r.Code), r.Base); err != nil {
			return fmt.Errorf("insert duty record: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit duty insert: %w", err)
	}
	return nil
}

// DutyRecords retrieves duty records in [from, to] inclusive, ordered by
// employee and date.
func (d *PostgresDB) DutyRecords(ctx context.Context, from, to time.Time) ([]roster.DutyRecord, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT employee_id, duty_date, code, COALESCE(base, '')
		FROM duty_records
		WHERE duty_date >= $1 AND duty_date <= $2
		ORDER BY employee_id, duty_date
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []roster.DutyRecord
	for rows.Next() {
		var r roster.DutyRecord
		var code string
		if err := rows.Scan(&r.EmployeeID, &r.Date, &code, &r.Base); err != nil {
			return nil, err
		}
		r.Code = roster.DutyCode(code)
		r.Date = r.Date.UTC()
		records = append(records, r)
	}
	return records, rows.Err()
}

// MergedRecords joins duty records in [from, to] with the pilot roster,
// the same left join the file-based pipeline performs. Duty rows for
// employees missing from the roster carry empty seat and aircraft fields.
func (d *PostgresDB) MergedRecords(ctx context.Context, from, to time.Time) ([]roster.MergedRecord, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT dr.employee_id, dr.duty_date, dr.code,
			COALESCE(NULLIF(dr.base, ''), p.base, ''),
			COALESCE(p.seat, ''), COALESCE(p.name, ''), COALESCE(p.aircraft, '')
		FROM duty_records dr
		LEFT JOIN pilots p ON p.employee_id = dr.employee_id
		WHERE dr.duty_date >= $1 AND dr.duty_date <= $2
		ORDER BY dr.employee_id, dr.duty_date
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []roster.MergedRecord
	for rows.Next() {
		var m roster.MergedRecord
		var code string
		if err := rows.Scan(&m.EmployeeID, &m.Date, &code, &m.Base,
			&m.Seat, &m.Name, &m.Aircraft); err != nil {
			return nil, err
		}
		m.Code = roster.DutyCode(code)
		m.Date = m.Date.UTC()
		records = append(records, m)
	}
	return records, rows.Err()
}

// PurgeDutyBefore removes duty records older than the cutoff date and
// returns the number of rows deleted.
func (d *PostgresDB) PurgeDutyBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := d.pool.Exec(ctx, `DELETE FROM duty_records WHERE duty_date < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Pool returns the underlying connection pool for advanced operations.
func (d *PostgresDB) Pool() *pgxpool.Pool {
	return d.pool
}
