package models

// Metric kinds. These are also the `metric` values of stored documents.
const (
	MetricHeartRates = "heartRates"
	MetricEnergy     = "energyData"
	MetricWorkouts   = "workouts"
	MetricSleep      = "sleep"
	MetricSteps      = "steps"
	MetricDistances  = "distances"
	MetricVitals     = "vitals"
	MetricDataset    = "dataset"
)

// ArrayMetrics lists the array-valued metrics in the order they are written.
var ArrayMetrics = []string{
	MetricHeartRates,
	MetricEnergy,
	MetricWorkouts,
	MetricSleep,
	MetricSteps,
	MetricDistances,
}

// Vital names used as keys of Vitals.
const (
	VitalWeight           = "weight"
	VitalRestingHeartRate = "restingHeartRate"
	VitalRespiratoryRate  = "respiratoryRate"
	VitalOxygenSaturation = "oxygenSaturation"
	VitalSystolicBP       = "systolicBP"
	VitalDiastolicBP      = "diastolicBP"
)

// Distance sources.
const (
	SourceRecord  = "record"
	SourceWorkout = "workout"
)

// HeartRate keeps the vendor value string verbatim.
type HeartRate struct {
	HeartRate string `json:"heartRate"`
	Date      string `json:"date"`
}

type Energy struct {
	Energy string `json:"energy"`
	Date   string `json:"date"`
}

type Steps struct {
	Steps int64  `json:"steps"`
	Date  string `json:"date"`
}

// Distance always carries the value and unit as they appeared in the export
// (OriginalValue, OriginalUnit). Distance and Unit may later be rewritten by a
// unit conversion; the originals never are. An empty unit means none was given.
type Distance struct {
	Distance      float64 `json:"distance"`
	Unit          string  `json:"unit,omitempty"`
	OriginalValue float64 `json:"originalValue"`
	OriginalUnit  string  `json:"originalUnit,omitempty"`
	Date          string  `json:"date"`
	Source        string  `json:"source"`
}

// Sleep is one sleep analysis interval. Stage is the normalized form of Value.
type Sleep struct {
	Value     string `json:"value"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	Stage     string `json:"stage,omitempty"`
}

type Workout struct {
	WorkoutType string `json:"workoutType"`
	Date        string `json:"date"`
}

// VitalReading is a single vital sign observation. Weight readings are stored
// in kilograms with the vendor value kept in OriginalValue/OriginalUnit.
type VitalReading struct {
	Value         float64  `json:"value"`
	Unit          string   `json:"unit,omitempty"`
	OriginalValue *float64 `json:"originalValue,omitempty"`
	OriginalUnit  string   `json:"originalUnit,omitempty"`
	Date          string   `json:"date"`
}

// Vitals maps a vital name (see Vital* constants) to its readings in document
// order.
type Vitals map[string][]VitalReading

// Len returns the total number of readings across all vitals.
func (v Vitals) Len() int {
	n := 0
	for _, readings := range v {
		n += len(readings)
	}
	return n
}

// Dataset is everything parsed out of one upload.
type Dataset struct {
	HeartRates  []HeartRate `json:"heartRates"`
	EnergyData  []Energy    `json:"energyData"`
	Workouts    []Workout   `json:"workouts"`
	Sleep       []Sleep     `json:"sleep"`
	Steps       []Steps     `json:"steps"`
	Distances   []Distance  `json:"distances"`
	Vitals      Vitals      `json:"vitals"`
	LastUpdated string      `json:"lastUpdated,omitempty"`
}

// NewDataset returns a Dataset whose containers are non-nil, so it encodes
// with empty arrays rather than nulls.
func NewDataset() *Dataset {
	return &Dataset{
		HeartRates: []HeartRate{},
		EnergyData: []Energy{},
		Workouts:   []Workout{},
		Sleep:      []Sleep{},
		Steps:      []Steps{},
		Distances:  []Distance{},
		Vitals:     Vitals{},
	}
}

// Counts returns the number of records per metric kind.
func (d *Dataset) Counts() Counts {
	return Counts{
		HeartRates: len(d.HeartRates),
		EnergyData: len(d.EnergyData),
		Workouts:   len(d.Workouts),
		Sleep:      len(d.Sleep),
		Steps:      len(d.Steps),
		Distances:  len(d.Distances),
		Vitals:     d.Vitals.Len(),
	}
}

// Empty reports whether no record of any kind was produced.
func (d *Dataset) Empty() bool {
	return d.Counts().Total() == 0
}

// Counts holds per-metric record counts.
type Counts struct {
	HeartRates int `json:"heartRatesCount"`
	EnergyData int `json:"energyDataCount"`
	Workouts   int `json:"workoutsCount"`
	Sleep      int `json:"sleepCount"`
	Steps      int `json:"stepsCount"`
	Distances  int `json:"distancesCount"`
	Vitals     int `json:"vitalsCount"`
}

func (c Counts) Total() int {
	return c.HeartRates + c.EnergyData + c.Workouts + c.Sleep + c.Steps + c.Distances + c.Vitals
}
