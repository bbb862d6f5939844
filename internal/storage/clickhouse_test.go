package storage

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"crewpair/internal/roster"
	"crewpair/internal/summary"
)

// setupTestClickHouse creates a test database connection.
// Returns nil if no ClickHouse connection is available.
func setupTestClickHouse(t *testing.T) *ClickHouseDB {
	t.Helper()

	host := os.Getenv("CLICKHOUSE_HOST")
	if host == "" {
		host = "localhost"
	}
	user := os.Getenv("CLICKHOUSE_USER")
	if user == "" {
		user = "default"
	}
	database := os.Getenv("CLICKHOUSE_DATABASE")
	if database == "" {
		database = "crewpair"
	}

	ctx := context.Background()
	ch, err := OpenClickHouse(ctx, ClickHouseConfig{
		Host:     host,
		Port:     9000,
		User:     user,
		Password: os.Getenv("CLICKHOUSE_PASSWORD"),
		Database: database,
	})
	if err != nil {
		return nil
	}

	if err := ch.CreateSchema(ctx); err != nil {
		_ = ch.Close()
		return nil
	}

	return ch
}

func TestSummaryRoundTrip(t *testing.T) {
	ch := setupTestClickHouse(t)
	if ch == nil {
		t.Skip("No ClickHouse connection available")
	}
	defer func() { _ = ch.Close() }()

	ctx := context.Background()
	day := time.Date(2099, time.October, 5, 0, 0, 0, 0, time.UTC)
	// Duty codes are stored as-is, so a unique value isolates this test's
	// rows from previously inserted data.
	code := fmt.Sprintf("TEST-%d", time.Now().UnixNano())

	records := []roster.MergedRecord{
		{
			DutyRecord: roster.DutyRecord{EmployeeID: "E1", Date: day, Code: roster.DutyAvailable},
			Seat:       roster.SeatPIC,
			Aircraft:   "CJ3",
		},
		{
			DutyRecord: roster.DutyRecord{EmployeeID: "E2", Date: day, Code: roster.DutyAvailable},
			Seat:       roster.SeatSIC,
			Aircraft:   "CJ2",
		},
	}
	table, err := summary.Daily(records, roster.DutyAvailable, day, day)
	if err != nil {
		t.Fatalf("build summary table: %v", err)
	}

	if err := ch.InsertSummary(ctx, code, table); err != nil {
		t.Fatalf("insert summary: %v", err)
	}

	cells, err := ch.QuerySummary(ctx, code, day, day)
	if err != nil {
		t.Fatalf("query summary: %v", err)
	}
	if len(cells) != len(table.Columns) {
		t.Fatalf("got %d cells, want %d (one per column)", len(cells), len(table.Columns))
	}

	counts := make(map[string]uint32, len(cells))
	for _, c := range cells {
		if !c.Date.Equal(day) {
			t.Errorf("cell date = %s, want %s", c.Date, day)
		}
		counts[c.Family+" "+c.Seat] = c.PilotCount
	}
	if counts["Citation PIC"] != 1 || counts["Citation SIC"] != 1 {
		t.Errorf("Citation counts = %v, want one PIC and one SIC", counts)
	}
	if counts["Praetor PIC"] != 0 || counts["Legacy SIC"] != 0 {
		t.Errorf("empty families should store zero counts, got %v", counts)
	}

	total, err := ch.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if total < uint64(len(cells)) {
		t.Errorf("total cells = %d, want at least %d", total, len(cells))
	}
}
