// Package summary pivots merged duty records into daily crew headcounts per
// aircraft family and seat role.
package summary

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"crewpair/internal/roster"
)

// ErrInvalidDateRange marks a date-range selection that is not a well-formed
// two-ended interval. The run halts before producing output.
var ErrInvalidDateRange = errors.New("invalid date range selection")

// family groups specific aircraft type codes by prefix into the fixed
// reporting taxonomy.
type family struct {
	prefix string
	name   string
}

// families in reporting column order.
var families = []family{
	{"CJ", "Citation"},
	{"PR", "Praetor"},
	{"LE", "Legacy"},
}

// seats in reporting column order.
var seats = []string{roster.SeatPIC, roster.SeatSIC}

// Family resolves an aircraft type code to its reporting family.
// Unrecognized prefixes are excluded from the summary.
func Family(aircraft string) (string, bool) {
	code := strings.ToUpper(strings.TrimSpace(aircraft))
	for _, f := range families {
		if strings.HasPrefix(code, f.prefix) {
			return f.name, true
		}
	}
	return "", false
}

// Columns returns the fixed family-by-seat column labels, e.g.
// "Citation PIC". Every column is present in every table, counted or not.
func Columns() []string {
	cols := make([]string, 0, len(families)*len(seats))
	for _, f := range families {
		for _, s := range seats {
			cols = append(cols, f.name+" "+s)
		}
	}
	return cols
}

// Row is one date of the summary table. Counts align with Columns().
type Row struct {
	Date   time.Time
	Counts []int
}

// Table is the dense per-date summary: one row per date in the requested
// range (zero rows included), sorted ascending by date.
type Table struct {
	Columns []string
	Rows    []Row
}

// Daily pivots merged records into unique-pilot headcounts per date and
// family-seat category for the given duty code over [from, to] inclusive.
func Daily(records []roster.MergedRecord, code roster.DutyCode, from, to time.Time) (*Table, error) {
	if from.IsZero() || to.IsZero() {
		return nil, fmt.Errorf("%w: both ends of the range are required", ErrInvalidDateRange)
	}
	if to.Before(from) {
		return nil, fmt.Errorf("%w: end %s before start %s",
			ErrInvalidDateRange, to.Format("2006-01-02"), from.Format("2006-01-02"))
	}

	cols := Columns()
	colIdx := make(map[string]int, len(cols))
	for i, c := range cols {
		colIdx[c] = i
	}

	// Unique employees per (date, category).
	type cell struct {
		day int64
		col int
	}
	seen := make(map[cell]map[string]struct{})

	for _, r := range records {
		if r.Code != code {
			continue
		}
		if r.Date.Before(from) || r.Date.After(to) {
			continue
		}
		if r.Seat != roster.SeatPIC && r.Seat != roster.SeatSIC {
			continue
		}
		fam, ok := Family(r.Aircraft)
		if !ok {
			continue
		}

		idx := colIdx[fam+" "+r.Seat]
		key := cell{day: r.Date.Unix(), col: idx}
		emps, ok := seen[key]
		if !ok {
			emps = make(map[string]struct{})
			seen[key] = emps
		}
		emps[r.EmployeeID] = struct{}{}
	}

	table := &Table{Columns: cols}
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		row := Row{Date: d, Counts: make([]int, len(cols))}
		for i := range cols {
			row.Counts[i] = len(seen[cell{day: d.Unix(), col: i}])
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}
