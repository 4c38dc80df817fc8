package aggregate

import (
	"fmt"

	"github.com/claude/healthexport/internal/models"
)

// Series is one metric's daily values with its trend views.
type Series struct {
	Metric        string                  `json:"metric"`
	Unit          string                  `json:"unit,omitempty"`
	Daily         []models.DailyAggregate `json:"daily"`
	MovingAverage []float64               `json:"movingAverage"`
	Trend         Trend                   `json:"trend"`
}

// SeriesMetrics lists the metric names DailySeries accepts.
var SeriesMetrics = []string{
	models.MetricHeartRates,
	models.MetricEnergy,
	models.MetricSteps,
	models.MetricDistances,
	models.MetricSleep,
	models.MetricWorkouts,
	models.VitalWeight,
	models.VitalRestingHeartRate,
	models.VitalRespiratoryRate,
	models.VitalOxygenSaturation,
	models.VitalSystolicBP,
	models.VitalDiastolicBP,
}

// DailySeries builds the daily view of metric from ds. Heart rate and vitals
// are daily means; energy, steps and distance are daily sums; sleep is hours
// asleep and workouts are a count per day.
func DailySeries(ds *models.Dataset, metric string, window int) (*Series, error) {
	s := &Series{Metric: metric}
	switch metric {
	case models.MetricHeartRates:
		s.Unit = "count/min"
		s.Daily = AggregateByDay(HeartRatePoints(ds.HeartRates), false)
	case models.MetricEnergy:
		s.Unit = "kcal"
		s.Daily = AggregateByDay(EnergyPoints(ds.EnergyData), true)
	case models.MetricSteps:
		s.Unit = "count"
		s.Daily = AggregateByDay(StepPoints(ds.Steps), true)
	case models.MetricDistances:
		d := ProcessDistances(ds.Distances)
		s.Unit = d.PreferredUnit
		s.Daily = d.Daily
	case models.MetricSleep:
		s.Unit = "hr"
		s.Daily = SleepHours(ds.Sleep)
	case models.MetricWorkouts:
		s.Unit = "count"
		points := make([]Point, len(ds.Workouts))
		for i, w := range ds.Workouts {
			points[i] = Point{Date: w.Date, Value: 1}
		}
		s.Daily = AggregateByDay(points, true)
	case models.VitalWeight, models.VitalRestingHeartRate, models.VitalRespiratoryRate,
		models.VitalOxygenSaturation, models.VitalSystolicBP, models.VitalDiastolicBP:
		readings := ds.Vitals[metric]
		if metric == models.VitalWeight {
			s.Unit = "kg"
		}
		s.Daily = AggregateByDay(VitalPoints(readings), false)
	default:
		return nil, fmt.Errorf("unknown metric %q", metric)
	}

	if s.Daily == nil {
		s.Daily = []models.DailyAggregate{}
	}
	values := make([]float64, len(s.Daily))
	for i, d := range s.Daily {
		values[i] = d.Value
	}
	s.MovingAverage = MovingAverage(values, window)
	s.Trend = LinearTrend(values)
	return s, nil
}
