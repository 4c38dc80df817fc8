// Package aggregate derives per-day values and trends from stored records.
// Nothing here is persisted; every view is recomputed on read.
package aggregate

import (
	"sort"

	"github.com/claude/healthexport/internal/models"
	"github.com/claude/healthexport/internal/units"
)

// Point is a record reduced to what day aggregation needs. The day comes
// from the first non-empty of Date, StartDate, Timestamp.
type Point struct {
	Date      string
	StartDate string
	Timestamp string
	Value     float64
	Source    string
}

func (p Point) day() string {
	return models.DayOf(firstNonEmpty(p.Date, p.StartDate, p.Timestamp))
}

// rawTime is the time component of the dedupe key.
func (p Point) rawTime() string {
	return firstNonEmpty(p.StartDate, p.Date, p.Timestamp)
}

type dedupeKey struct {
	day   string
	value float64
	time  string
}

// AggregateByDay groups points by UTC day. Points sharing day, value and raw
// time are counted once, preferring a workout-sourced point. Each day's
// value is the sum when sum is set, the mean otherwise. Points without a
// parseable date are dropped. The result is ordered by day and does not
// depend on input order.
func AggregateByDay(points []Point, sum bool) []models.DailyAggregate {
	kept := make(map[dedupeKey]Point, len(points))
	for _, p := range points {
		day := p.day()
		if day == "" {
			continue
		}
		k := dedupeKey{day: day, value: p.Value, time: p.rawTime()}
		if prev, ok := kept[k]; ok {
			if prev.Source != models.SourceWorkout && p.Source == models.SourceWorkout {
				kept[k] = p
			}
			continue
		}
		kept[k] = p
	}

	keys := make([]dedupeKey, 0, len(kept))
	for k := range kept {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.day != b.day {
			return a.day < b.day
		}
		if a.time != b.time {
			return a.time < b.time
		}
		return a.value < b.value
	})

	var out []models.DailyAggregate
	for _, k := range keys {
		if n := len(out); n == 0 || out[n-1].Date != k.day {
			out = append(out, models.DailyAggregate{Date: k.day})
		}
		agg := &out[len(out)-1]
		agg.Value += k.value
		agg.Count++
	}
	if !sum {
		for i := range out {
			out[i].Value /= float64(out[i].Count)
		}
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func HeartRatePoints(rs []models.HeartRate) []Point {
	out := make([]Point, len(rs))
	for i, r := range rs {
		out[i] = Point{Date: r.Date, Value: units.ParseNumber(r.HeartRate)}
	}
	return out
}

func EnergyPoints(rs []models.Energy) []Point {
	out := make([]Point, len(rs))
	for i, r := range rs {
		out[i] = Point{Date: r.Date, Value: units.ParseNumber(r.Energy)}
	}
	return out
}

func StepPoints(rs []models.Steps) []Point {
	out := make([]Point, len(rs))
	for i, r := range rs {
		out[i] = Point{Date: r.Date, Value: float64(r.Steps)}
	}
	return out
}

func DistancePoints(rs []models.Distance) []Point {
	out := make([]Point, len(rs))
	for i, r := range rs {
		out[i] = Point{Date: r.Date, Value: r.Distance, Source: r.Source}
	}
	return out
}

func VitalPoints(rs []models.VitalReading) []Point {
	out := make([]Point, len(rs))
	for i, r := range rs {
		out[i] = Point{Date: r.Date, Value: r.Value}
	}
	return out
}

// SleepHours sums time asleep per day of each interval's start. In-bed and
// awake intervals are excluded; intervals ending before they start count as
// zero.
func SleepHours(rs []models.Sleep) []models.DailyAggregate {
	points := make([]Point, 0, len(rs))
	for _, r := range rs {
		if !models.CountsAsSleep(r.Stage) {
			continue
		}
		start, ok := models.ParseDate(r.StartDate)
		if !ok {
			continue
		}
		end, ok := models.ParseDate(firstNonEmpty(r.EndDate, r.StartDate))
		if !ok {
			end = start
		}
		hours := max(0, end.Sub(start).Hours())
		points = append(points, Point{StartDate: r.StartDate, Timestamp: r.EndDate, Value: hours})
	}
	return AggregateByDay(points, true)
}
