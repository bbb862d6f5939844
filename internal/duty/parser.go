// Package duty parses ACTS duty-feed lines into per-day duty records.
//
// A feed line is whitespace-tokenized: token 0 is the employee id, token 3
// the raw duty code, token 4 the base for that duty, and the first
// date-shaped token sits at or after index 7. Two duty-code taxonomies exist
// in the wild and are not interchangeable, so the caller selects a Scheme
// explicitly rather than the parser inferring it from data.
package duty

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"crewpair/internal/roster"
)

// Scheme selects the duty-code taxonomy of the feed.
type Scheme int

const (
	// SchemeBinary is the availability model: A/DRAFT* are available,
	// OFF/H/Z are off, each line covers a single date.
	SchemeBinary Scheme = iota
	// SchemeSpan additionally accepts D as a draft code, expands two-date
	// spans into one record per covered day and applies the early-morning
	// day-boundary rule.
	SchemeSpan
)

// ParseScheme maps a user-facing scheme name to a Scheme.
func ParseScheme(s string) (Scheme, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "binary":
		return SchemeBinary, nil
	case "span":
		return SchemeSpan, nil
	}
	return 0, fmt.Errorf("unknown duty code scheme %q (want binary or span)", s)
}

func (s Scheme) String() string {
	switch s {
	case SchemeBinary:
		return "binary"
	case SchemeSpan:
		return "span"
	}
	return "unknown"
}

const minTokens = 8

var (
	dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	timeRe = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)
)

// earlyMorningCutoff: an off span ending at or before this time on the day
// after it starts has not reached the new day's operations.
const earlyMorningCutoff = "06:59"

// Parser converts feed lines into duty records, tracking how many relevant
// lines had to be skipped for missing or invalid dates. Lines that are
// simply not duty-relevant (too short, foreign codes) are dropped silently.
type Parser struct {
	Scheme  Scheme
	Skipped int
}

// NewParser returns a Parser for the given scheme.
func NewParser(scheme Scheme) *Parser {
	return &Parser{Scheme: scheme}
}

// mapCode normalizes a raw duty code under the parser's scheme.
// ok is false when the code is not duty-relevant.
func (p *Parser) mapCode(raw string) (roster.DutyCode, bool) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if strings.HasPrefix(code, "DRAFT") {
		return roster.DutyAvailableProvisional, true
	}

	switch code {
	case "A":
		return roster.DutyAvailable, true
	case "OFF", "H", "Z":
		return roster.DutyOff, true
	case "D":
		if p.Scheme == SchemeSpan {
			return roster.DutyAvailableProvisional, true
		}
	}
	return "", false
}

// ParseLine converts one raw feed line into zero or more duty records.
// Malformed or irrelevant lines return nil. Relevant lines without a
// parseable date also return nil but increment Skipped.
func (p *Parser) ParseLine(line string) []roster.DutyRecord {
	tokens := strings.Fields(line)
	if len(tokens) < minTokens {
		return nil
	}

	code, ok := p.mapCode(tokens[3])
	if !ok {
		return nil
	}

	employeeID := tokens[0]
	base := tokens[4]

	// Scan for date-shaped tokens starting at index 7. The span scheme
	// uses up to two as (start, end); the binary scheme only the first.
	var dates []time.Time
	endIdx := -1
	for i := minTokens - 1; i < len(tokens) && len(dates) < 2; i++ {
		if !dateRe.MatchString(tokens[i]) {
			continue
		}
		d, err := time.Parse("2006-01-02", tokens[i])
		if err != nil {
			// Date-shaped but not a valid calendar date.
			p.Skipped++
			return nil
		}
		dates = append(dates, d.UTC())
		endIdx = i
		if p.Scheme == SchemeBinary {
			break
		}
	}

	if len(dates) == 0 {
		// Relevant duty code but no date to anchor it.
		p.Skipped++
		return nil
	}

	start := dates[0]
	end := start
	if len(dates) == 2 {
		end = dates[1]
		if end.Before(start) {
			// Defensive: treat a reversed span as a single day.
			end = start
		}
		if end.Equal(start.AddDate(0, 0, 1)) && endsBeforeOperations(tokens, endIdx) {
			// The span rolls past midnight but ends in the early
			// morning; it must not inflate the next day's counts.
			end = start
		}
	}

	var records []roster.DutyRecord
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		records = append(records, roster.DutyRecord{
			EmployeeID: employeeID,
			Date:       d,
			Code:       code,
			Base:       base,
		})
	}
	return records
}

// endsBeforeOperations reports whether the token following the end date is a
// 24-hour clock time at or before the early-morning cutoff.
func endsBeforeOperations(tokens []string, endIdx int) bool {
	if endIdx+1 >= len(tokens) {
		return false
	}
	tok := tokens[endIdx+1]
	return timeRe.MatchString(tok) && tok <= earlyMorningCutoff
}

// ParseFeed parses every line of a duty feed. Record order follows feed
// order; downstream consumers use set and grouping semantics.
func (p *Parser) ParseFeed(r io.Reader) ([]roster.DutyRecord, error) {
	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	var records []roster.DutyRecord
	for scanner.Scan() {
		records = append(records, p.ParseLine(scanner.Text())...)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read duty feed: %w", err)
	}
	return records, nil
}
