package aggregate

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claude/healthexport/internal/models"
)

// TestAggregateByDaySumAndMean checks day bucketing in both modes.
func TestAggregateByDaySumAndMean(t *testing.T) {
	points := []Point{
		{Date: "2024-01-01T08:00:00Z", Value: 60},
		{Date: "2024-01-01T09:00:00Z", Value: 80},
		{Date: "2024-01-02T08:00:00Z", Value: 70},
		{Date: "not a date", Value: 1000},
	}

	sum := AggregateByDay(points, true)
	require.Len(t, sum, 2)
	assert.Equal(t, models.DailyAggregate{Date: "2024-01-01", Value: 140, Count: 2}, sum[0])
	assert.Equal(t, models.DailyAggregate{Date: "2024-01-02", Value: 70, Count: 1}, sum[1])

	mean := AggregateByDay(points, false)
	require.Len(t, mean, 2)
	assert.InDelta(t, 70, mean[0].Value, 1e-9)
	assert.InDelta(t, 70, mean[1].Value, 1e-9)
}

// TestAggregateByDayDedupes checks identical day/value/time points count once.
func TestAggregateByDayDedupes(t *testing.T) {
	points := []Point{
		{Date: "2024-01-01T08:00:00Z", Value: 100},
		{Date: "2024-01-01T08:00:00Z", Value: 100},
		{Date: "2024-01-01T08:00:00Z", Value: 50},
	}
	got := AggregateByDay(points, true)
	require.Len(t, got, 1)
	assert.Equal(t, 150.0, got[0].Value)
	assert.Equal(t, 2, got[0].Count)
}

// TestAggregateByDayOrderIndependent shuffles input and expects the same result.
func TestAggregateByDayOrderIndependent(t *testing.T) {
	var points []Point
	dates := []string{
		"2024-03-01T07:00:00Z", "2024-03-01T12:30:00Z", "2024-03-02T00:15:00Z",
		"2024-03-02T23:59:59Z", "2024-03-04T10:00:00Z",
	}
	for i, d := range dates {
		points = append(points,
			Point{Date: d, Value: float64(i) + 0.1},
			Point{Date: d, Value: float64(i) + 0.1},
			Point{Date: d, Value: float64(i*3) + 0.7},
		)
	}
	want := AggregateByDay(points, false)

	rng := rand.New(rand.NewSource(42))
	for range 20 {
		shuffled := append([]Point(nil), points...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		assert.Equal(t, want, AggregateByDay(shuffled, false))
	}
}

// TestDistanceWorkoutReplacesRecord checks a workout distance supersedes an
// identical record distance regardless of which comes first.
func TestDistanceWorkoutReplacesRecord(t *testing.T) {
	record := models.Distance{Distance: 5, Unit: "km", OriginalValue: 5, OriginalUnit: "km", Date: "2024-01-01T08:00:00Z", Source: models.SourceRecord}
	workout := record
	workout.Source = models.SourceWorkout

	for _, order := range [][]models.Distance{{record, workout}, {workout, record}} {
		got := ProcessDistances(order)
		require.Len(t, got.Daily, 1)
		assert.Equal(t, 5.0, got.Daily[0].Value)
		assert.Equal(t, 1, got.Daily[0].Count)
		assert.Equal(t, "km", got.PreferredUnit)
	}
}

// TestDetectPreferredUnit covers majority, tie and unlabeled input.
func TestDetectPreferredUnit(t *testing.T) {
	tests := []struct {
		name  string
		units []string
		want  string
	}{
		{"majority", []string{"km", "mi", "mi"}, "mi"},
		{"tie goes to first", []string{"km", "mi"}, "km"},
		{"vendor spellings", []string{"kilometers", "km", "mile"}, "km"},
		{"none recognized", []string{"", "furlong"}, ""},
		{"empty", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ds []models.Distance
			for _, u := range tt.units {
				ds = append(ds, models.Distance{Unit: u})
			}
			assert.Equal(t, tt.want, DetectPreferredUnit(ds))
		})
	}
}

// TestConvertDistancesKeepsOriginals checks conversion never touches the
// original value or unit.
func TestConvertDistancesKeepsOriginals(t *testing.T) {
	in := []models.Distance{
		{Distance: 1, Unit: "mi", OriginalValue: 1, OriginalUnit: "mi", Date: "2024-01-01T08:00:00Z"},
		{Distance: 2, Unit: "km", OriginalValue: 2, OriginalUnit: "km", Date: "2024-01-01T09:00:00Z"},
	}
	out := ConvertDistances(in, "km")

	assert.InDelta(t, 1.60934, out[0].Distance, 1e-6)
	assert.Equal(t, "km", out[0].Unit)
	assert.Equal(t, 1.0, out[0].OriginalValue)
	assert.Equal(t, "mi", out[0].OriginalUnit)
	assert.Equal(t, 2.0, out[1].Distance)

	// input untouched
	assert.Equal(t, "mi", in[0].Unit)
	assert.Equal(t, 1.0, in[0].Distance)
}

// TestSleepHours excludes in-bed and awake time and clamps negative spans.
func TestSleepHours(t *testing.T) {
	rs := []models.Sleep{
		{StartDate: "2024-01-01T22:00:00Z", EndDate: "2024-01-02T02:00:00Z", Stage: "Core"},
		{StartDate: "2024-01-01T21:30:00Z", EndDate: "2024-01-02T06:00:00Z", Stage: "In Bed"},
		{StartDate: "2024-01-02T02:00:00Z", EndDate: "2024-01-02T02:30:00Z", Stage: "Awake"},
		{StartDate: "2024-01-02T03:00:00Z", EndDate: "2024-01-02T04:30:00Z", Stage: "Deep"},
		{StartDate: "2024-01-03T05:00:00Z", EndDate: "2024-01-03T04:00:00Z", Stage: "REM"},
	}
	got := SleepHours(rs)
	require.Len(t, got, 3)
	assert.Equal(t, "2024-01-01", got[0].Date)
	assert.InDelta(t, 4, got[0].Value, 1e-9)
	assert.InDelta(t, 1.5, got[1].Value, 1e-9)
	assert.Equal(t, 0.0, got[2].Value)
}

// TestMovingAverage checks the trailing window with a partial start.
func TestMovingAverage(t *testing.T) {
	got := MovingAverage([]float64{1, 2, 3, 4, 5}, 3)
	assert.InDeltaSlice(t, []float64{1, 1.5, 2, 3, 4}, got, 1e-9)

	assert.Len(t, MovingAverage(make([]float64, 10), 0), 10)
	assert.Empty(t, MovingAverage(nil, 7))
}

// TestLinearTrend fits a known line and handles degenerate input.
func TestLinearTrend(t *testing.T) {
	tr := LinearTrend([]float64{1, 3, 5, 7})
	assert.InDelta(t, 2, tr.Slope, 1e-9)
	assert.InDelta(t, 1, tr.Intercept, 1e-9)
	assert.InDeltaSlice(t, []float64{1, 3, 5, 7}, tr.Line, 1e-9)

	single := LinearTrend([]float64{4})
	assert.Equal(t, 0.0, single.Slope)
	assert.Equal(t, 4.0, single.Intercept)

	empty := LinearTrend(nil)
	assert.NotNil(t, empty.Line)
}

// TestDailySeries exercises each metric family through the dataset view.
func TestDailySeries(t *testing.T) {
	ds := models.NewDataset()
	ds.HeartRates = []models.HeartRate{
		{HeartRate: "60", Date: "2024-01-01T08:00:00Z"},
		{HeartRate: "80", Date: "2024-01-01T09:00:00Z"},
	}
	ds.Steps = []models.Steps{
		{Steps: 1000, Date: "2024-01-01T08:00:00Z"},
		{Steps: 500, Date: "2024-01-02T08:00:00Z"},
	}
	ds.Workouts = []models.Workout{
		{WorkoutType: "Running", Date: "2024-01-01T07:00:00Z"},
		{WorkoutType: "Cycling", Date: "2024-01-01T18:00:00Z"},
	}
	ds.Vitals[models.VitalWeight] = []models.VitalReading{
		{Value: 70, Unit: "kg", Date: "2024-01-01T07:00:00Z"},
	}

	hr, err := DailySeries(ds, models.MetricHeartRates, 0)
	require.NoError(t, err)
	require.Len(t, hr.Daily, 1)
	assert.InDelta(t, 70, hr.Daily[0].Value, 1e-9)

	steps, err := DailySeries(ds, models.MetricSteps, 7)
	require.NoError(t, err)
	require.Len(t, steps.Daily, 2)
	assert.InDeltaSlice(t, []float64{1000, 750}, steps.MovingAverage, 1e-9)
	assert.InDelta(t, -500, steps.Trend.Slope, 1e-9)

	workouts, err := DailySeries(ds, models.MetricWorkouts, 7)
	require.NoError(t, err)
	require.Len(t, workouts.Daily, 1)
	assert.Equal(t, 2.0, workouts.Daily[0].Value)

	weight, err := DailySeries(ds, models.VitalWeight, 7)
	require.NoError(t, err)
	assert.Equal(t, "kg", weight.Unit)

	energy, err := DailySeries(ds, models.MetricEnergy, 7)
	require.NoError(t, err)
	assert.NotNil(t, energy.Daily)
	assert.Empty(t, energy.Daily)

	_, err = DailySeries(ds, "bogus", 7)
	assert.Error(t, err)
}
