package aggregate

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/claude/healthexport/internal/models"
)

// Summary is the min/max/average/total of a set of readings.
type Summary struct {
	Count   int     `json:"count"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Average float64 `json:"average"`
	Total   float64 `json:"total"`
}

// Stats summarizes values. No values gives all zeros.
func Stats(values []float64) Summary {
	if len(values) == 0 {
		return Summary{}
	}
	s := Summary{Count: len(values), Min: values[0], Max: values[0]}
	for _, v := range values {
		s.Min = math.Min(s.Min, v)
		s.Max = math.Max(s.Max, v)
		s.Total += v
	}
	s.Average = s.Total / float64(len(values))
	return s
}

// WorkoutTypeCount is the number of workouts of one type.
type WorkoutTypeCount struct {
	WorkoutType string `json:"workoutType"`
	Count       int    `json:"count"`
}

// WorkoutTypeCounts counts workouts per type, most frequent first and ties
// by name. Workouts without a type count as "Unknown".
func WorkoutTypeCounts(ws []models.Workout) []WorkoutTypeCount {
	counts := map[string]int{}
	for _, w := range ws {
		t := w.WorkoutType
		if t == "" {
			t = "Unknown"
		}
		counts[t]++
	}
	out := make([]WorkoutTypeCount, 0, len(counts))
	for t, n := range counts {
		out = append(out, WorkoutTypeCount{WorkoutType: t, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].WorkoutType < out[j].WorkoutType
	})
	return out
}

// RangeStats is the per-range overview of a dataset.
type RangeStats struct {
	From         string             `json:"from,omitempty"`
	To           string             `json:"to,omitempty"`
	HeartRate    Summary            `json:"heartRate"`
	Energy       Summary            `json:"energy"`
	WorkoutTypes []WorkoutTypeCount `json:"workoutTypes"`
}

// StatsInRange summarizes heart rate and energy readings and counts workout
// types for the records whose day lies within [from, to]. Readings that do
// not parse as a finite number are skipped.
func StatsInRange(ds *models.Dataset, from, to string) RangeStats {
	var hr []float64
	for _, r := range ds.HeartRates {
		if v, ok := parseReading(r.HeartRate); ok && InRange(models.DayOf(r.Date), from, to) {
			hr = append(hr, v)
		}
	}
	var energy []float64
	for _, r := range ds.EnergyData {
		if v, ok := parseReading(r.Energy); ok && InRange(models.DayOf(r.Date), from, to) {
			energy = append(energy, v)
		}
	}
	var workouts []models.Workout
	for _, w := range ds.Workouts {
		if InRange(models.DayOf(w.Date), from, to) {
			workouts = append(workouts, w)
		}
	}
	return RangeStats{
		From:         from,
		To:           to,
		HeartRate:    Stats(hr),
		Energy:       Stats(energy),
		WorkoutTypes: WorkoutTypeCounts(workouts),
	}
}

func parseReading(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
