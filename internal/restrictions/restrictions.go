// Package restrictions builds the crewing-restriction map: which SIC
// initials each PIC must not be paired with.
//
// The feed is tabular with loosely spelled headers and a free-text
// restriction narrative. Header resolution is alias-based; the narrative
// scraping strips a versioned list of boilerplate phrases and treats the
// leftover tokens as initials. The scraping is inherently fragile against
// rephrased narratives, so the phrase list is kept explicit and in one
// place.
package restrictions

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jszwec/csvutil"
)

// ErrMissingColumns marks a feed whose required columns cannot be resolved
// after header aliasing. Callers treat it as "no restrictions active"
// rather than aborting the whole run.
var ErrMissingColumns = errors.New("restrictions feed: required columns not found")

// StatusRestriction is the status value marking an active restriction row.
const StatusRestriction = "RESTRICTION"

// Row is one restrictions feed entry after header resolution.
type Row struct {
	Initials string `csv:"initials"`
	Status   string `csv:"status"`
	Text     string `csv:"restriction"`
}

// Map maps a PIC's initials to the set of SIC initials they must not fly
// with. Keys and members are uppercased.
type Map map[string]map[string]struct{}

// Forbidden reports whether the given PIC/SIC initials pair is restricted.
func (m Map) Forbidden(picInitials, sicInitials string) bool {
	if m == nil {
		return false
	}
	set, ok := m[strings.ToUpper(picInitials)]
	if !ok {
		return false
	}
	_, bad := set[strings.ToUpper(sicInitials)]
	return bad
}

// boilerplate phrases stripped from restriction narratives before token
// extraction. Matched case-insensitively; longer phrases first so partial
// overlaps cannot leave fragments behind.
var boilerplate = []string{
	"do not crew together without vetting with dp",
	"do not crew on flights to europe pic or sic",
	"do not fly with",
}

// Build converts restriction rows into the restriction map. Only rows whose
// status is RESTRICTION (case-insensitive) contribute.
func Build(rows []Row) Map {
	m := make(Map)
	for _, row := range rows {
		if !strings.EqualFold(strings.TrimSpace(row.Status), StatusRestriction) {
			continue
		}

		pic := strings.ToUpper(strings.TrimSpace(row.Initials))
		if pic == "" {
			continue
		}

		for _, sic := range scrapeInitials(row.Text) {
			set, ok := m[pic]
			if !ok {
				set = make(map[string]struct{})
				m[pic] = set
			}
			set[sic] = struct{}{}
		}
	}
	return m
}

// scrapeInitials extracts forbidden initials from a restriction narrative.
func scrapeInitials(text string) []string {
	s := strings.ToLower(text)
	for _, phrase := range boilerplate {
		s = strings.ReplaceAll(s, phrase, " ")
	}

	s = strings.NewReplacer("(", " ", ")", " ", "/", " ", ",", " ").Replace(s)

	var initials []string
	for _, tok := range strings.Fields(s) {
		if tok == "and" {
			continue
		}
		if len(tok) > 1 {
			initials = append(initials, strings.ToUpper(tok))
		}
	}
	return initials
}

// Required logical fields and their accepted header spellings. Header names
// are compared after normalization (lowercased, punctuation and spaces
// removed), so e.g. "Pilot Initials", "pilot_initials" and "PILOT-INITIALS"
// all resolve to initials.
var headerAliases = map[string][]string{
	"initials":    {"initials", "pilotinitials", "crewinitials", "picinitials", "employeeinitials"},
	"status":      {"status", "restrictionstatus", "state", "type"},
	"restriction": {"restriction", "restrictions", "restrictiontext", "note", "notes", "comment", "comments", "narrative"},
}

// normalizeHeader lowercases a header and strips everything but letters and
// digits.
func normalizeHeader(h string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(h) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// resolveHeader maps a raw header row to the canonical column names used by
// Row, or reports which logical fields could not be resolved.
func resolveHeader(raw []string) ([]string, error) {
	canonical := make(map[string]string) // normalized spelling -> logical field
	for field, spellings := range headerAliases {
		for _, s := range spellings {
			canonical[s] = field
		}
	}

	resolved := make([]string, len(raw))
	found := make(map[string]bool)
	for i, h := range raw {
		field, ok := canonical[normalizeHeader(h)]
		if ok && !found[field] {
			resolved[i] = field
			found[field] = true
		} else {
			// Unrecognized columns keep a unique placeholder name so
			// the decoder ignores them.
			resolved[i] = fmt.Sprintf("_col%d", i)
		}
	}

	var missing []string
	for _, field := range []string{"initials", "status", "restriction"} {
		if !found[field] {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}
	return resolved, nil
}

// ParseCSV reads restriction rows from a delimited feed with aliasable
// column headers.
func ParseCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	rawHeader, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: empty feed", ErrMissingColumns)
	}
	if err != nil {
		return nil, fmt.Errorf("read restrictions header: %w", err)
	}

	header, err := resolveHeader(rawHeader)
	if err != nil {
		return nil, err
	}

	dec, err := csvutil.NewDecoder(cr, header...)
	if err != nil {
		return nil, fmt.Errorf("decode restrictions feed: %w", err)
	}

	var rows []Row
	for {
		var row Row
		if err := dec.Decode(&row); err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("decode restrictions row: %w", err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Load parses and builds the restriction map in one step.
func Load(r io.Reader) (Map, error) {
	rows, err := ParseCSV(r)
	if err != nil {
		return nil, err
	}
	return Build(rows), nil
}
