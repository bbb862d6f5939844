package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"crewpair/internal/export"
	"crewpair/internal/roster"
	"crewpair/internal/storage"
)

// runRollup pivots the duty state accumulated by `crewpair listen` into the
// ClickHouse daily_summary table, one scheduled job per duty code and range.
func runRollup(args []string) {
	fs := flag.NewFlagSet("rollup", flag.ExitOnError)
	codeName := fs.String("code", "A", "Duty code to count (A or OFF)")
	fromStr := fs.String("from", "", "Range start, YYYY-MM-DD (required)")
	toStr := fs.String("to", "", "Range end, YYYY-MM-DD (required)")
	outPath := fs.String("output", "", "Also write the computed table as CSV (optional)")
	showStats := fs.Bool("stats", false, "Print counters to stderr")

	cfg := storage.DefaultConfig()
	fs.StringVar(&cfg.Postgres.Host, "pg-host", envOrDefault("POSTGRES_HOST", cfg.Postgres.Host), "PostgreSQL host")
	fs.IntVar(&cfg.Postgres.Port, "pg-port", envOrDefaultInt("POSTGRES_PORT", cfg.Postgres.Port), "PostgreSQL port")
	fs.StringVar(&cfg.Postgres.User, "pg-user", envOrDefault("POSTGRES_USER", cfg.Postgres.User), "PostgreSQL user")
	fs.StringVar(&cfg.Postgres.Password, "pg-password", envOrDefault("POSTGRES_PASSWORD", cfg.Postgres.Password), "PostgreSQL password")
	fs.StringVar(&cfg.Postgres.Database, "pg-database", envOrDefault("POSTGRES_DATABASE", cfg.Postgres.Database), "PostgreSQL database")
	fs.StringVar(&cfg.ClickHouse.Host, "ch-host", envOrDefault("CLICKHOUSE_HOST", cfg.ClickHouse.Host), "ClickHouse host")
	fs.IntVar(&cfg.ClickHouse.Port, "ch-port", envOrDefaultInt("CLICKHOUSE_PORT", cfg.ClickHouse.Port), "ClickHouse port")
	fs.StringVar(&cfg.ClickHouse.User, "ch-user", envOrDefault("CLICKHOUSE_USER", cfg.ClickHouse.User), "ClickHouse user")
	fs.StringVar(&cfg.ClickHouse.Password, "ch-password", envOrDefault("CLICKHOUSE_PASSWORD", cfg.ClickHouse.Password), "ClickHouse password")
	fs.StringVar(&cfg.ClickHouse.Database, "ch-database", envOrDefault("CLICKHOUSE_DATABASE", cfg.ClickHouse.Database), "ClickHouse database")
	_ = fs.Parse(args)

	if *fromStr == "" || *toStr == "" {
		fatalf("rollup: -from and -to are required")
	}
	from, err := time.Parse("2006-01-02", *fromStr)
	if err != nil {
		fatalf("rollup: invalid -from date: %v", err)
	}
	to, err := time.Parse("2006-01-02", *toStr)
	if err != nil {
		fatalf("rollup: invalid -to date: %v", err)
	}

	code, ok := roster.ParseDutyCode(*codeName)
	if !ok {
		fatalf("rollup: unknown duty code %q", *codeName)
	}

	ctx := context.Background()
	db, err := storage.Open(ctx, cfg)
	if err != nil {
		fatalf("rollup: %v", err)
	}
	defer func() { _ = db.Close() }()

	if err := db.CreateSchemas(ctx); err != nil {
		fatalf("rollup: %v", err)
	}

	table, err := db.Rollup(ctx, code, from, to)
	if err != nil {
		fatalf("rollup: %v", err)
	}

	if *outPath != "" {
		out, err := os.Create(*outPath)
		if err != nil {
			fatalf("rollup: create output: %v", err)
		}
		if err := export.WriteSummary(out, table); err != nil {
			fatalf("rollup: write table: %v", err)
		}
		_ = out.Close()
	}

	if *showStats {
		cells, err := db.CH.Count(ctx)
		if err != nil {
			fatalf("rollup: count summary cells: %v", err)
		}
		fmt.Fprintf(os.Stderr, "stats: code=%s days=%d daily_summary_cells=%d\n",
			code, len(table.Rows), cells)
	}
}
