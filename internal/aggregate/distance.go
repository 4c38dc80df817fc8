package aggregate

import (
	"github.com/claude/healthexport/internal/models"
	"github.com/claude/healthexport/internal/units"
)

// DetectPreferredUnit returns the most common recognized unit across
// distances (from Unit, else OriginalUnit). Ties go to the unit seen first.
// Returns "" when no distance carries a recognized unit.
func DetectPreferredUnit(distances []models.Distance) string {
	counts := map[string]int{}
	var order []string
	for _, d := range distances {
		u := units.NormalizeUnit(firstNonEmpty(d.Unit, d.OriginalUnit))
		if u == "" {
			continue
		}
		if counts[u] == 0 {
			order = append(order, u)
		}
		counts[u]++
	}
	best := ""
	for _, u := range order {
		if counts[u] > counts[best] {
			best = u
		}
	}
	return best
}

// ConvertDistances returns copies of distances expressed in unit. The
// original value and unit of every record are kept.
func ConvertDistances(distances []models.Distance, unit string) []models.Distance {
	out := make([]models.Distance, len(distances))
	for i, d := range distances {
		out[i] = d
		if unit == "" {
			continue
		}
		out[i].Distance = units.ConvertDistance(d.Distance, firstNonEmpty(d.Unit, d.OriginalUnit), unit)
		out[i].Unit = unit
	}
	return out
}

// DistanceSummary is the daily distance view in one unit.
type DistanceSummary struct {
	PreferredUnit string                  `json:"preferredUnit,omitempty"`
	Daily         []models.DailyAggregate `json:"distanceDaily"`
}

// ProcessDistances converts every distance to the preferred unit once, then
// sums per day.
func ProcessDistances(distances []models.Distance) DistanceSummary {
	preferred := DetectPreferredUnit(distances)
	converted := ConvertDistances(distances, preferred)
	return DistanceSummary{
		PreferredUnit: preferred,
		Daily:         AggregateByDay(DistancePoints(converted), true),
	}
}
