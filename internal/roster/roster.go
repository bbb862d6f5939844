// Package roster defines the core crew roster types: pilots from the
// qualification feed, per-day duty records from the duty feed, and the
// merged records the pairing and summary engines consume.
package roster

import (
	"errors"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// Seat role codes from the qualification feed.
const (
	SeatPIC = "PIC"
	SeatSIC = "SIC"
)

// Halting conditions: a run stops before producing output when either
// required input table is empty.
var (
	ErrEmptyRoster = errors.New("qualification feed produced no pilots")
	ErrEmptyDuty   = errors.New("duty feed produced no records")
)

// DutyCode classifies one duty day.
type DutyCode string

const (
	// DutyAvailable marks a confirmed flying/available day.
	DutyAvailable DutyCode = "A"
	// DutyAvailableProvisional marks a drafted (provisional) available day.
	DutyAvailableProvisional DutyCode = "DRAFT"
	// DutyOff marks a day off duty.
	DutyOff DutyCode = "OFF"
)

// Flying reports whether the code counts as available for pairing.
func (c DutyCode) Flying() bool {
	return c == DutyAvailable || c == DutyAvailableProvisional
}

// ParseDutyCode maps a user-facing selection to a duty code.
func ParseDutyCode(s string) (DutyCode, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "A", "AVAILABLE":
		return DutyAvailable, true
	case "D", "DRAFT":
		return DutyAvailableProvisional, true
	case "OFF", "O":
		return DutyOff, true
	}
	return "", false
}

// Pilot is one qualification feed entry. EmployeeID is the unique key;
// Name, Base and Aircraft may be absent.
type Pilot struct {
	EmployeeID string `json:"employee_id"`
	Seat       string `json:"seat"`
	Name       string `json:"name,omitempty"`
	Base       string `json:"base,omitempty"`
	Aircraft   string `json:"aircraft,omitempty"`
}

// DutyRecord is one calendar day of duty status for one pilot. Date carries
// no time component (UTC midnight).
type DutyRecord struct {
	EmployeeID string    `json:"employee_id"`
	Date       time.Time `json:"date"`
	Code       DutyCode  `json:"code"`
	Base       string    `json:"base,omitempty"`
}

// MergedRecord is a DutyRecord enriched with the matching pilot's
// qualification data. Base holds the resolved base: the qualification base
// when present, otherwise the duty-feed base.
type MergedRecord struct {
	DutyRecord
	Seat     string `json:"seat,omitempty"`
	Name     string `json:"name,omitempty"`
	Aircraft string `json:"aircraft,omitempty"`
}

// Index builds an employee-id lookup over pilots. The first entry for an
// employee wins; later duplicates are dropped so repeated qualification rows
// stay deterministic.
func Index(pilots []Pilot) map[string]Pilot {
	byID := make(map[string]Pilot, len(pilots))
	for _, p := range pilots {
		if _, ok := byID[p.EmployeeID]; !ok {
			byID[p.EmployeeID] = p
		}
	}
	return byID
}

// Merge left-joins duty records with pilots on employee id. Every duty
// record survives; records without a matching pilot keep empty seat, name
// and aircraft fields.
func Merge(duties []DutyRecord, pilots []Pilot) []MergedRecord {
	byID := Index(pilots)

	merged := make([]MergedRecord, 0, len(duties))
	for _, d := range duties {
		m := MergedRecord{DutyRecord: d}
		if p, ok := byID[d.EmployeeID]; ok {
			m.Seat = p.Seat
			m.Name = p.Name
			m.Aircraft = p.Aircraft
			if p.Base != "" {
				m.Base = p.Base
			}
		}
		merged = append(merged, m)
	}
	return merged
}

// DisplayIdentifier returns the preferred display string for a pilot:
// the name when present, otherwise the employee id.
func DisplayIdentifier(name, employeeID string) string {
	if strings.TrimSpace(name) != "" {
		return name
	}
	return employeeID
}

// Initials derives matching initials from a display identifier: the first
// letter of each whitespace-separated word, uppercased. Identifiers that are
// already short initials ("JD") pass through uppercased.
func Initials(identifier string) string {
	fields := strings.Fields(identifier)
	if len(fields) == 0 {
		return ""
	}

	var b strings.Builder
	for _, f := range fields {
		r, _ := utf8.DecodeRuneInString(f)
		b.WriteRune(unicode.ToUpper(r))
	}
	initials := b.String()
	if utf8.RuneCountInString(initials) < 2 {
		return strings.ToUpper(strings.TrimSpace(identifier))
	}
	return initials
}

// Date returns t truncated to a calendar date at UTC midnight.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
