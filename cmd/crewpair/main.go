// Command-line entry point for the crew pairing engine.
//
// Note about input formats
// ------------------------
// The engine consumes three inputs:
//  1. Duty feed: whitespace-separated text lines, one duty entry per line.
//     Two duty-code taxonomies exist in the wild; select one with -scheme.
//  2. Qualification roster: an XML export with one employee element per
//     pilot (seat qualification, base and aircraft as ref attributes).
//  3. Crewing restrictions (optional): a CSV report with initials, status
//     and free-text restriction columns. Header spelling varies by source
//     system and is matched loosely.
//
// Use `crewpair pair` for candidate generation, `crewpair summary` for the
// daily availability pivot, `crewpair listen` to feed a PostgreSQL state
// store from a NATS duty-feed subject, and `crewpair rollup` to pivot that
// stored state into the ClickHouse daily summary.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"crewpair/internal/duty"
	"crewpair/internal/export"
	"crewpair/internal/pairing"
	"crewpair/internal/qual"
	"crewpair/internal/restrictions"
	"crewpair/internal/roster"
	"crewpair/internal/storage"
	"crewpair/internal/summary"
)

// Stats holds the counters printed to stderr with -stats.
type Stats struct {
	Pilots          int
	DutyRecords     int
	SkippedLines    int
	Merged          int
	ValidPairs      int
	RestrictedPairs int
	UnknownBases    int
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "crewpair - commands:")
	fmt.Fprintln(w, "  pair     - generate ranked PIC/SIC candidate pairs")
	fmt.Fprintln(w, "  summary  - pivot duty records into a daily availability table")
	fmt.Fprintln(w, "  listen   - subscribe to a NATS duty feed and store records in PostgreSQL")
	fmt.Fprintln(w, "  rollup   - pivot stored duty state into the ClickHouse daily summary")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  crewpair pair -duty feed.txt -qual roster.xml [-restrictions report.csv]")
	fmt.Fprintln(w, "       [-scheme binary|span] [-output pairs.csv] [-restricted blocked.csv]")
	fmt.Fprintln(w, "       [-db runs.db] [-stats]")
	fmt.Fprintln(w, "  crewpair summary -duty feed.txt -qual roster.xml -from 2024-04-01 -to 2024-04-30")
	fmt.Fprintln(w, "       [-scheme binary|span] [-code A|OFF] [-output summary.csv] [-clickhouse] [-stats]")
	fmt.Fprintln(w, "  crewpair listen -nats nats://localhost:4222 -subject crew.duty [-qual roster.xml]")
	fmt.Fprintln(w, "       [-retain 90]")
	fmt.Fprintln(w, "  crewpair rollup -code A -from 2024-04-01 -to 2024-04-30 [-output summary.csv] [-stats]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - The duty feed defaults to stdin when -duty is omitted.")
	fmt.Fprintln(w, "  - An empty roster or empty duty feed halts the run with an error.")
	fmt.Fprintln(w, "")
}

func main() {
	// Local development settings, ignored when the file is absent.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}
	cmd := strings.ToLower(os.Args[1])
	switch cmd {
	case "pair":
		runPair(os.Args[2:])
	case "summary":
		runSummary(os.Args[2:])
	case "listen":
		runListen(os.Args[2:])
	case "rollup":
		runRollup(os.Args[2:])
	case "-h", "--help", "help":
		usage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage(os.Stderr)
		os.Exit(2)
	}
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// openInput opens path for reading, falling back to stdin when empty.
func openInput(path string) (io.ReadCloser, error) {
	if path == "" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(path)
}

// openOutput creates path for writing, falling back to stdout when empty.
func openOutput(path string) (io.WriteCloser, error) {
	if path == "" {
		return nopWriteCloser{os.Stdout}, nil
	}
	return os.Create(path)
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// loadInputs reads and merges the duty feed, qualification roster and the
// optional restriction report shared by the pair and summary commands.
func loadInputs(dutyPath, qualPath, resPath, schemeName string, st *Stats) ([]roster.MergedRecord, restrictions.Map, *duty.Parser, error) {
	scheme, err := duty.ParseScheme(schemeName)
	if err != nil {
		return nil, nil, nil, err
	}

	qf, err := os.Open(qualPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open qualification roster: %w", err)
	}
	pilots, err := qual.Load(qf)
	_ = qf.Close()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load qualification roster: %w", err)
	}
	if len(pilots) == 0 {
		return nil, nil, nil, roster.ErrEmptyRoster
	}
	st.Pilots = len(pilots)

	df, err := openInput(dutyPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open duty feed: %w", err)
	}
	parser := duty.NewParser(scheme)
	records, err := parser.ParseFeed(df)
	_ = df.Close()
	if err != nil {
		return nil, nil, nil, err
	}
	if len(records) == 0 {
		return nil, nil, nil, roster.ErrEmptyDuty
	}
	st.DutyRecords = len(records)
	st.SkippedLines = parser.Skipped

	var res restrictions.Map
	if resPath != "" {
		rf, err := os.Open(resPath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open restriction report: %w", err)
		}
		res, err = restrictions.Load(rf)
		_ = rf.Close()
		if err != nil {
			return nil, nil, nil, fmt.Errorf("load restriction report: %w", err)
		}
	}

	merged := roster.Merge(records, pilots)
	st.Merged = len(merged)
	return merged, res, parser, nil
}

func runPair(args []string) {
	fs := flag.NewFlagSet("pair", flag.ExitOnError)
	dutyPath := fs.String("duty", "", "Duty feed file (default: stdin)")
	qualPath := fs.String("qual", "", "Qualification roster XML file (required)")
	resPath := fs.String("restrictions", "", "Crewing restriction CSV report")
	schemeName := fs.String("scheme", "binary", "Duty code scheme: binary or span")
	outPath := fs.String("output", "", "Output CSV file for valid pairs (default: stdout)")
	restrictedPath := fs.String("restricted", "", "Output CSV file for restriction-blocked pairs")
	dbPath := fs.String("db", "", "SQLite run archive (optional)")
	showStats := fs.Bool("stats", false, "Print counters to stderr")
	_ = fs.Parse(args)

	if *qualPath == "" {
		fatalf("pair: -qual is required")
	}

	st := &Stats{}
	merged, res, parser, err := loadInputs(*dutyPath, *qualPath, *resPath, *schemeName, st)
	if err != nil {
		fatalf("pair: %v", err)
	}

	result := pairing.Generate(merged, res)
	st.ValidPairs = len(result.Valid)
	st.RestrictedPairs = len(result.Restricted)
	st.UnknownBases = len(result.UnknownBases)

	for _, code := range result.UnknownBases.Codes() {
		fmt.Fprintf(os.Stderr, "warning: unknown base %s, distance unavailable\n", code)
	}

	out, err := openOutput(*outPath)
	if err != nil {
		fatalf("pair: create output: %v", err)
	}
	if err := export.WritePairs(out, result.Valid); err != nil {
		fatalf("pair: write pairs: %v", err)
	}
	_ = out.Close()

	if *restrictedPath != "" {
		rout, err := os.Create(*restrictedPath)
		if err != nil {
			fatalf("pair: create restricted output: %v", err)
		}
		if err := export.WritePairs(rout, result.Restricted); err != nil {
			fatalf("pair: write restricted pairs: %v", err)
		}
		_ = rout.Close()
	}

	if *dbPath != "" {
		archive, err := storage.OpenArchive(*dbPath)
		if err != nil {
			fatalf("pair: open archive: %v", err)
		}
		defer func() { _ = archive.Close() }()
		if _, err := archive.SaveRun(storage.SaveRunParams{
			Kind:         "pair",
			Scheme:       parser.Scheme.String(),
			PilotCount:   st.Pilots,
			DutyCount:    st.DutyRecords,
			SkippedLines: st.SkippedLines,
			UnknownBases: result.UnknownBases.Codes(),
			Valid:        result.Valid,
			Restricted:   result.Restricted,
		}); err != nil {
			fatalf("pair: archive run: %v", err)
		}
	}

	if *showStats {
		fmt.Fprintf(os.Stderr,
			"stats: pilots=%d duty=%d skipped=%d merged=%d pairs(valid=%d restricted=%d) unknown_bases=%d\n",
			st.Pilots, st.DutyRecords, st.SkippedLines, st.Merged,
			st.ValidPairs, st.RestrictedPairs, st.UnknownBases,
		)
	}
}

func runSummary(args []string) {
	fs := flag.NewFlagSet("summary", flag.ExitOnError)
	dutyPath := fs.String("duty", "", "Duty feed file (default: stdin)")
	qualPath := fs.String("qual", "", "Qualification roster XML file (required)")
	schemeName := fs.String("scheme", "binary", "Duty code scheme: binary or span")
	codeName := fs.String("code", "A", "Duty code to count (A or OFF)")
	fromStr := fs.String("from", "", "Range start, YYYY-MM-DD (required)")
	toStr := fs.String("to", "", "Range end, YYYY-MM-DD (required)")
	outPath := fs.String("output", "", "Output CSV file (default: stdout)")
	dbPath := fs.String("db", "", "SQLite run archive (optional)")
	useClickHouse := fs.Bool("clickhouse", false, "Also store the summary in ClickHouse")
	chHost := fs.String("ch-host", envOrDefault("CLICKHOUSE_HOST", "localhost"), "ClickHouse host")
	chPort := fs.Int("ch-port", envOrDefaultInt("CLICKHOUSE_PORT", 9000), "ClickHouse port")
	chDB := fs.String("ch-database", envOrDefault("CLICKHOUSE_DATABASE", "crewpair"), "ClickHouse database")
	chUser := fs.String("ch-user", envOrDefault("CLICKHOUSE_USER", "default"), "ClickHouse user")
	chPassword := fs.String("ch-password", envOrDefault("CLICKHOUSE_PASSWORD", ""), "ClickHouse password")
	showStats := fs.Bool("stats", false, "Print counters to stderr")
	_ = fs.Parse(args)

	if *qualPath == "" {
		fatalf("summary: -qual is required")
	}
	if *fromStr == "" || *toStr == "" {
		fatalf("summary: %v", summary.ErrInvalidDateRange)
	}
	from, err := time.Parse("2006-01-02", *fromStr)
	if err != nil {
		fatalf("summary: invalid -from date: %v", err)
	}
	to, err := time.Parse("2006-01-02", *toStr)
	if err != nil {
		fatalf("summary: invalid -to date: %v", err)
	}

	code, ok := roster.ParseDutyCode(*codeName)
	if !ok {
		fatalf("summary: unknown duty code %q", *codeName)
	}

	st := &Stats{}
	merged, _, parser, err := loadInputs(*dutyPath, *qualPath, "", *schemeName, st)
	if err != nil {
		fatalf("summary: %v", err)
	}

	table, err := summary.Daily(merged, code, from, to)
	if err != nil {
		fatalf("summary: %v", err)
	}

	out, err := openOutput(*outPath)
	if err != nil {
		fatalf("summary: create output: %v", err)
	}
	if err := export.WriteSummary(out, table); err != nil {
		fatalf("summary: write table: %v", err)
	}
	_ = out.Close()

	if *dbPath != "" {
		archive, err := storage.OpenArchive(*dbPath)
		if err != nil {
			fatalf("summary: open archive: %v", err)
		}
		defer func() { _ = archive.Close() }()
		if _, err := archive.SaveRun(storage.SaveRunParams{
			Kind:         "summary",
			Scheme:       parser.Scheme.String(),
			PilotCount:   st.Pilots,
			DutyCount:    st.DutyRecords,
			SkippedLines: st.SkippedLines,
		}); err != nil {
			fatalf("summary: archive run: %v", err)
		}
	}

	if *useClickHouse {
		ctx := context.Background()
		ch, err := storage.OpenClickHouse(ctx, storage.ClickHouseConfig{
			Host:     *chHost,
			Port:     *chPort,
			Database: *chDB,
			User:     *chUser,
			Password: *chPassword,
		})
		if err != nil {
			fatalf("summary: clickhouse: %v", err)
		}
		defer func() { _ = ch.Close() }()
		if err := ch.CreateSchema(ctx); err != nil {
			fatalf("summary: clickhouse schema: %v", err)
		}
		if err := ch.InsertSummary(ctx, string(code), table); err != nil {
			fatalf("summary: clickhouse insert: %v", err)
		}
		if *showStats {
			cells, err := ch.Count(ctx)
			if err != nil {
				fatalf("summary: count clickhouse cells: %v", err)
			}
			fmt.Fprintf(os.Stderr, "stats: daily_summary_cells=%d\n", cells)
		}
	}

	if *showStats {
		fmt.Fprintf(os.Stderr,
			"stats: pilots=%d duty=%d skipped=%d merged=%d days=%d\n",
			st.Pilots, st.DutyRecords, st.SkippedLines, st.Merged, len(table.Rows),
		)
	}
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envOrDefaultInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func waitForSignal() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	<-ch
}
