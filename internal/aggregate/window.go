package aggregate

import (
	"time"

	"github.com/claude/healthexport/internal/models"
)

const dayLayout = "2006-01-02"

// DayRange parses optional start/end bounds (RFC 3339 or YYYY-MM-DD) into
// inclusive UTC days. An empty bound is open.
func DayRange(start, end string) (from, to string, err error) {
	if start != "" {
		t, err := parseFlexTime(start)
		if err != nil {
			return "", "", err
		}
		from = t.UTC().Format(dayLayout)
	}
	if end != "" {
		t, err := parseFlexTime(end)
		if err != nil {
			return "", "", err
		}
		to = t.UTC().Format(dayLayout)
	}
	return from, to, nil
}

func parseFlexTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err == nil {
		return t, nil
	}
	return time.Parse(dayLayout, s)
}

// InRange reports whether day lies within [from, to]. Open bounds always
// match; an empty day only matches when both bounds are open.
func InRange(day, from, to string) bool {
	if from == "" && to == "" {
		return true
	}
	if day == "" {
		return false
	}
	return (from == "" || day >= from) && (to == "" || day <= to)
}

// Restrict keeps the days of s within [from, to] and recomputes the moving
// average and trend over what is left.
func Restrict(s *Series, from, to string, window int) {
	if from == "" && to == "" {
		return
	}
	kept := []models.DailyAggregate{}
	for _, d := range s.Daily {
		if InRange(d.Date, from, to) {
			kept = append(kept, d)
		}
	}
	values := make([]float64, len(kept))
	for i, d := range kept {
		values[i] = d.Value
	}
	s.Daily = kept
	s.MovingAverage = MovingAverage(values, window)
	s.Trend = LinearTrend(values)
}
