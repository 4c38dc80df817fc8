// Package units normalizes free-form distance and weight unit strings and
// converts values between them.
package units

import (
	"math"
	"strconv"
	"strings"
)

// Canonical distance units.
const (
	Miles      = "mi"
	Kilometers = "km"
	Meters     = "m"
)

// Conversion factors.
const (
	KmPerMile  = 1.60934
	MPerKm     = 1000.0
	MPerMile   = KmPerMile * MPerKm
	KgPerPound = 0.45359237
)

// unlabeledMetersThreshold is the value above which a distance with an
// unrecognized unit is assumed to be in meters. This is an approximation:
// exports sometimes omit the unit on meter-valued distances.
const unlabeledMetersThreshold = 1000

// NormalizeUnit maps a unit string such as "miles", "Km" or "meter" to one of
// the canonical distance units. Unrecognized or empty strings return "".
func NormalizeUnit(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return ""
	}
	switch {
	case strings.Contains(s, "mi") || strings.Contains(s, "mile"):
		return Miles
	case strings.Contains(s, "km") || strings.Contains(s, "kilomet"):
		return Kilometers
	case s == "m" || strings.Contains(s, "meter") || strings.Contains(s, "metre"):
		return Meters
	}
	return ""
}

// IsCanonical reports whether u is one of mi, km or m.
func IsCanonical(u string) bool {
	return u == Miles || u == Kilometers || u == Meters
}

// ConvertDistance converts value from fromUnit to the canonical toUnit.
// An empty toUnit leaves the value untouched; conversion only happens once a
// preferred display unit has been chosen.
func ConvertDistance(value float64, fromUnit, toUnit string) float64 {
	if toUnit == "" {
		return value
	}
	from := NormalizeUnit(fromUnit)
	if from == "" {
		return convertUnlabeled(value, toUnit)
	}
	if from == toUnit {
		return value
	}
	meters := toMeters(value, from)
	switch toUnit {
	case Miles:
		return meters / MPerMile
	case Kilometers:
		return meters / MPerKm
	case Meters:
		return meters
	}
	return value
}

func toMeters(value float64, unit string) float64 {
	switch unit {
	case Miles:
		return value * MPerMile
	case Kilometers:
		return value * MPerKm
	}
	return value
}

// convertUnlabeled applies the >1000 => meters heuristic for values whose
// source unit could not be recognized.
func convertUnlabeled(value float64, toUnit string) float64 {
	if value <= unlabeledMetersThreshold {
		return value
	}
	switch toUnit {
	case Miles:
		return value / MPerMile
	case Kilometers:
		return value / MPerKm
	}
	return value
}

// ConvertWeight returns value in kilograms. Pound units are converted; any
// other unit is assumed to already be kilograms.
func ConvertWeight(value float64, fromUnit string) float64 {
	u := strings.ToLower(fromUnit)
	if strings.Contains(u, "lb") || strings.Contains(u, "pound") {
		return value * KgPerPound
	}
	return value
}

// ParseNumber parses s as a float. Empty, malformed and non-finite input
// yields 0.
func ParseNumber(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// ParseQuantity splits a string such as "5.2 km" into its number and unit.
// A bare number returns an empty unit.
func ParseQuantity(s string) (float64, string) {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, " \t"); i > 0 {
		return ParseNumber(s[:i]), strings.TrimSpace(s[i+1:])
	}
	return ParseNumber(s), ""
}
