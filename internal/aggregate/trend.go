package aggregate

// DefaultWindow is the moving-average window in days.
const DefaultWindow = 7

// MovingAverage returns the trailing mean of each value over at most window
// values; the first window-1 entries average what is available.
func MovingAverage(values []float64, window int) []float64 {
	if window <= 0 {
		window = DefaultWindow
	}
	out := make([]float64, len(values))
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		out[i] = sum / float64(min(i+1, window))
	}
	return out
}

// Trend is an ordinary least squares fit of value against index.
type Trend struct {
	Slope     float64   `json:"slope"`
	Intercept float64   `json:"intercept"`
	Line      []float64 `json:"line"`
}

// LinearTrend fits values[i] = Intercept + Slope*i and evaluates the line at
// every index.
func LinearTrend(values []float64) Trend {
	n := float64(len(values))
	if n == 0 {
		return Trend{Line: []float64{}}
	}
	var sumX, sumY, sumXY, sumXX float64
	for i, y := range values {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		denom = 1
	}
	slope := (n*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / n

	line := make([]float64, len(values))
	for i := range line {
		line[i] = intercept + slope*float64(i)
	}
	return Trend{Slope: slope, Intercept: intercept, Line: line}
}
