// Package pairing enumerates candidate PIC/SIC pairings from merged roster
// records.
//
// Candidates are generated per aircraft type from pilots with overlapping
// availability dates, preferring pairs whose home bases are close together.
// Output order is fully deterministic: equal inputs produce byte-identical
// tables across runs.
package pairing

import (
	"math"
	"sort"

	"crewpair/internal/geo"
	"crewpair/internal/restrictions"
	"crewpair/internal/roster"
)

// Candidate is one PIC/SIC pairing candidate. DistanceKM is +Inf when either
// base is missing or has no configured coordinates.
type Candidate struct {
	PIC         string
	SIC         string
	PICBase     string
	SICBase     string
	Aircraft    string
	DistanceKM  float64
	OverlapDays int
}

// DistanceKnown reports whether the candidate has a finite base distance.
func (c Candidate) DistanceKnown() bool {
	return !math.IsInf(c.DistanceKM, 1)
}

// RoundedDistanceKM returns the distance rounded to one decimal place, or
// false when the distance is unknown.
func (c Candidate) RoundedDistanceKM() (float64, bool) {
	if !c.DistanceKnown() {
		return 0, false
	}
	return math.Round(c.DistanceKM*10) / 10, true
}

// Result holds one pairing run's output: the ranked valid candidates, the
// candidates excluded by the restriction map, and the unknown base codes
// encountered while ranking.
type Result struct {
	Valid        []Candidate
	Restricted   []Candidate
	UnknownBases geo.UnknownBases
}

// pilotInfo is the per-employee view derived from one seat partition:
// identity fields from the first record seen plus the availability date set.
type pilotInfo struct {
	employeeID string
	display    string
	base       string
	aircraft   string
	dates      map[int64]struct{} // unix seconds at UTC midnight
}

// collect partitions the available records of one seat role into
// per-employee info, preserving first-seen field values. The returned ids
// are sorted ascending for deterministic iteration.
func collect(records []roster.MergedRecord, seat string) (map[string]*pilotInfo, []string) {
	byID := make(map[string]*pilotInfo)
	var ids []string

	for _, r := range records {
		if r.Seat != seat || !r.Code.Flying() {
			continue
		}
		info, ok := byID[r.EmployeeID]
		if !ok {
			info = &pilotInfo{
				employeeID: r.EmployeeID,
				display:    roster.DisplayIdentifier(r.Name, r.EmployeeID),
				base:       r.Base,
				aircraft:   r.Aircraft,
				dates:      make(map[int64]struct{}),
			}
			byID[r.EmployeeID] = info
			ids = append(ids, r.EmployeeID)
		}
		info.dates[r.Date.Unix()] = struct{}{}
	}

	sort.Strings(ids)
	return byID, ids
}

// overlap counts the dates present in both availability sets.
func overlap(a, b map[int64]struct{}) int {
	if len(b) < len(a) {
		a, b = b, a
	}
	n := 0
	for d := range a {
		if _, ok := b[d]; ok {
			n++
		}
	}
	return n
}

// Generate enumerates candidate pairs from merged records. A nil restriction
// map disables restriction filtering; with a map supplied, forbidden pairs
// land in Result.Restricted instead of Result.Valid.
func Generate(records []roster.MergedRecord, res restrictions.Map) *Result {
	result := &Result{UnknownBases: geo.NewUnknownBases()}

	pics, picIDs := collect(records, roster.SeatPIC)
	sics, sicIDs := collect(records, roster.SeatSIC)

	// Group SIC candidates by aircraft type, keeping id order.
	sicsByAircraft := make(map[string][]*pilotInfo)
	for _, id := range sicIDs {
		info := sics[id]
		sicsByAircraft[info.aircraft] = append(sicsByAircraft[info.aircraft], info)
	}

	// Aircraft types in deterministic order, driven by the PIC partition.
	aircraftSeen := make(map[string]struct{})
	var aircraftTypes []string
	for _, id := range picIDs {
		ac := pics[id].aircraft
		if _, ok := aircraftSeen[ac]; !ok {
			aircraftSeen[ac] = struct{}{}
			aircraftTypes = append(aircraftTypes, ac)
		}
	}
	sort.Strings(aircraftTypes)

	for _, ac := range aircraftTypes {
		sicCandidates := sicsByAircraft[ac]
		if len(sicCandidates) == 0 {
			continue
		}

		for _, picID := range picIDs {
			pic := pics[picID]
			if pic.aircraft != ac || len(pic.dates) == 0 {
				continue
			}

			// Rank SICs by base proximity, employee id as tie-break.
			type ranked struct {
				info *pilotInfo
				dist float64
			}
			rankedSICs := make([]ranked, 0, len(sicCandidates))
			for _, sic := range sicCandidates {
				d := geo.BaseDistanceKM(pic.base, sic.base, result.UnknownBases)
				rankedSICs = append(rankedSICs, ranked{sic, d})
			}
			sort.SliceStable(rankedSICs, func(i, j int) bool {
				if rankedSICs[i].dist != rankedSICs[j].dist {
					return less(rankedSICs[i].dist, rankedSICs[j].dist)
				}
				return rankedSICs[i].info.employeeID < rankedSICs[j].info.employeeID
			})

			for _, r := range rankedSICs {
				days := overlap(pic.dates, r.info.dates)
				if days == 0 {
					continue
				}

				c := Candidate{
					PIC:         pic.display,
					SIC:         r.info.display,
					PICBase:     pic.base,
					SICBase:     r.info.base,
					Aircraft:    ac,
					DistanceKM:  r.dist,
					OverlapDays: days,
				}

				if res != nil && res.Forbidden(roster.Initials(pic.display), roster.Initials(r.info.display)) {
					result.Restricted = append(result.Restricted, c)
					continue
				}
				result.Valid = append(result.Valid, c)
			}
		}
	}

	sortCandidates(result.Valid)
	sortCandidates(result.Restricted)
	return result
}

// less orders distances ascending with +Inf strictly last.
func less(a, b float64) bool {
	if math.IsInf(a, 1) {
		return false
	}
	if math.IsInf(b, 1) {
		return true
	}
	return a < b
}

// sortCandidates orders candidates by distance ascending then overlap days
// descending; unknown distances sort last regardless of overlap. The sort is
// stable so equal pairs keep generation order.
func sortCandidates(cs []Candidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		di, dj := cs[i].DistanceKM, cs[j].DistanceKM
		ii, ij := math.IsInf(di, 1), math.IsInf(dj, 1)
		if ii != ij {
			return !ii
		}
		if !ii && di != dj {
			return di < dj
		}
		return cs[i].OverlapDays > cs[j].OverlapDays
	})
}
