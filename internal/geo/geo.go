// Package geo provides great-circle distances between crew base codes.
//
// Base coordinates are a fixed table of the stations the operation crews
// from. Distances are used to prioritise pairings between nearby bases, so
// approximate airport coordinates are sufficient.
package geo

import (
	"math"
	"sort"
	"strings"
)

const earthRadiusKM = 6371.0

// Coordinate is a latitude/longitude pair in decimal degrees.
type Coordinate struct {
	Lat float64
	Lon float64
}

// baseCoordinates maps ICAO base codes to approximate coordinates.
var baseCoordinates = map[string]Coordinate{
	"CYYC": {51.1139, -114.0203}, // Calgary
	"CYLW": {49.9561, -119.3770}, // Kelowna
	"CYVR": {49.1939, -123.1833}, // Vancouver
	"CYEG": {53.3097, -113.5797}, // Edmonton
	"CYXE": {52.1708, -106.7000}, // Saskatoon
	"CYWG": {49.9100, -97.2399},  // Winnipeg
	"CYYZ": {43.6777, -79.6248},  // Toronto Pearson
	"CYUL": {45.4706, -73.7408},  // Montreal
	"CYOW": {45.3225, -75.6692},  // Ottawa
	"CYXU": {43.0356, -81.1539},  // London (Ontario)
}

// UnknownBases accumulates base codes that have no configured coordinates.
// The caller owns the registry and surfaces it once per run as a diagnostic;
// it is never shared between runs.
type UnknownBases map[string]struct{}

// NewUnknownBases returns an empty registry.
func NewUnknownBases() UnknownBases {
	return make(UnknownBases)
}

// Add records an unknown base code.
func (u UnknownBases) Add(code string) {
	u[code] = struct{}{}
}

// Merge folds another registry into this one.
func (u UnknownBases) Merge(other UnknownBases) {
	for code := range other {
		u[code] = struct{}{}
	}
}

// Codes returns the accumulated codes sorted ascending.
func (u UnknownBases) Codes() []string {
	codes := make([]string, 0, len(u))
	for code := range u {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// NormalizeBase trims and uppercases a base code.
func NormalizeBase(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Lookup returns the coordinates for a base code, if configured.
func Lookup(code string) (Coordinate, bool) {
	c, ok := baseCoordinates[NormalizeBase(code)]
	return c, ok
}

// BaseDistanceKM returns the great-circle distance in kilometres between two
// base codes. Identical codes are distance zero even when unconfigured.
// Missing or unconfigured codes yield +Inf; unconfigured codes are added to
// the unknown registry.
func BaseDistanceKM(baseA, baseB string, unknown UnknownBases) float64 {
	a := NormalizeBase(baseA)
	b := NormalizeBase(baseB)

	if a == "" || b == "" {
		return math.Inf(1)
	}
	if a == b {
		return 0.0
	}

	coordA, okA := baseCoordinates[a]
	coordB, okB := baseCoordinates[b]
	if okA && okB {
		return HaversineKM(coordA, coordB)
	}

	if unknown != nil {
		if !okA {
			unknown.Add(a)
		}
		if !okB {
			unknown.Add(b)
		}
	}
	return math.Inf(1)
}

// HaversineKM returns the great-circle distance in kilometres between two
// coordinates, using a spherical Earth of radius 6371.0 km.
func HaversineKM(a, b Coordinate) float64 {
	rlat1 := a.Lat * math.Pi / 180
	rlat2 := b.Lat * math.Pi / 180
	dlat := (b.Lat - a.Lat) * math.Pi / 180
	dlon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(rlat1)*math.Cos(rlat2)*math.Sin(dlon/2)*math.Sin(dlon/2)
	return 2 * earthRadiusKM * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}
