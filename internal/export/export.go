// Package export renders pairing and summary tables as delimited text.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/jszwec/csvutil"

	"crewpair/internal/pairing"
	"crewpair/internal/summary"
)

// pairRow is the delimited view of one candidate pair.
type pairRow struct {
	PIC         string `csv:"PIC"`
	SIC         string `csv:"SIC"`
	PICBase     string `csv:"PIC Base"`
	SICBase     string `csv:"SIC Base"`
	Aircraft    string `csv:"Aircraft"`
	Distance    string `csv:"Base Distance (km)"`
	OverlapDays int    `csv:"Overlap Days"`
}

// FormatDistance renders a candidate distance to one decimal place; unknown
// distances render as an empty field.
func FormatDistance(c pairing.Candidate) string {
	km, ok := c.RoundedDistanceKM()
	if !ok {
		return ""
	}
	return strconv.FormatFloat(km, 'f', 1, 64)
}

// WritePairs writes the candidate-pair table as CSV, header included even
// when the table is empty.
func WritePairs(w io.Writer, pairs []pairing.Candidate) error {
	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)

	rows := make([]pairRow, 0, len(pairs))
	for _, c := range pairs {
		rows = append(rows, pairRow{
			PIC:         c.PIC,
			SIC:         c.SIC,
			PICBase:     c.PICBase,
			SICBase:     c.SICBase,
			Aircraft:    c.Aircraft,
			Distance:    FormatDistance(c),
			OverlapDays: c.OverlapDays,
		})
	}

	if len(rows) == 0 {
		if err := enc.EncodeHeader(pairRow{}); err != nil {
			return fmt.Errorf("encode pair header: %w", err)
		}
	} else if err := enc.Encode(rows); err != nil {
		return fmt.Errorf("encode pairs: %w", err)
	}

	cw.Flush()
	return cw.Error()
}

// WriteSummary writes the daily summary table as CSV: a Date column followed
// by the table's fixed category columns.
func WriteSummary(w io.Writer, table *summary.Table) error {
	cw := csv.NewWriter(w)

	header := append([]string{"Date"}, table.Columns...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write summary header: %w", err)
	}

	record := make([]string, len(header))
	for _, row := range table.Rows {
		record[0] = row.Date.Format("2006-01-02")
		for i, n := range row.Counts {
			record[i+1] = strconv.Itoa(n)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write summary row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}
