package export

import (
	"errors"
	"math"
	"strings"

	"github.com/claude/healthexport/internal/models"
	"github.com/claude/healthexport/internal/units"
)

// Category is the semantic bucket of one export element.
type Category int

const (
	// CategoryNone covers structural elements that carry no metric
	// (HealthData, ExportDate, WorkoutEvent, unrelated MetadataEntry, ...).
	CategoryNone Category = iota
	// CategoryUnrecognized is a Record whose type matches no known metric.
	CategoryUnrecognized
	CategoryHeartRate
	CategoryEnergy
	CategorySteps
	CategoryDistance
	CategorySleep
	CategoryVitals
	CategoryWorkout
	CategoryWorkoutStatistics
	CategoryWorkoutDistanceMetadata
	CategoryBloodPressure
)

var categoryNames = map[Category]string{
	CategoryNone:                    "none",
	CategoryUnrecognized:            "unrecognized",
	CategoryHeartRate:               "heart_rate",
	CategoryEnergy:                  "energy",
	CategorySteps:                   "steps",
	CategoryDistance:                "distance",
	CategorySleep:                   "sleep",
	CategoryVitals:                  "vitals",
	CategoryWorkout:                 "workout",
	CategoryWorkoutStatistics:       "workout_statistics",
	CategoryWorkoutDistanceMetadata: "workout_distance_metadata",
	CategoryBloodPressure:           "blood_pressure",
}

func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return "unknown"
}

// Element names.
const (
	elemRecord            = "Record"
	elemWorkout           = "Workout"
	elemWorkoutItem       = "WorkoutItem"
	elemActivity          = "Activity"
	elemWorkoutStatistics = "WorkoutStatistics"
	elemMetadataEntry     = "MetadataEntry"
	elemCorrelation       = "Correlation"
)

const metadataKeyWorkoutDistance = "HKMetadataKeyWorkoutDistance"

var errMissingType = errors.New("record has no type attribute")

// RawElement is one opened XML element.
type RawElement struct {
	Name  string
	Attrs map[string]string
}

// Attr returns the first non-empty attribute among names.
func (e RawElement) Attr(names ...string) string {
	for _, n := range names {
		if v := e.Attrs[n]; v != "" {
			return v
		}
	}
	return ""
}

// recordRule maps a Record type substring to a category. Rules are tried in
// order and the first match wins.
type recordRule struct {
	category Category
	match    string
	exclude  []string
}

var recordRules = []recordRule{
	// Resting, walking-average, variability and recovery types are their own
	// metrics; RestingHeartRate is a vital.
	{CategoryHeartRate, "HeartRate", []string{"Resting", "Walking", "Variability", "Recovery"}},
	{CategoryEnergy, "ActiveEnergyBurned", nil},
	{CategorySteps, "StepCount", nil},
	// Covers DistanceWalkingRunning, DistanceCycling, DistanceSwimming, ...
	{CategoryDistance, "Distance", nil},
	{CategorySleep, "SleepAnalysis", nil},
}

// vitalRules is checked key by key; a type containing several keys feeds
// several vitals.
var vitalRules = []struct {
	match string
	vital string
}{
	{"HKQuantityTypeIdentifierBodyMass", models.VitalWeight},
	{"HKQuantityTypeIdentifierRestingHeartRate", models.VitalRestingHeartRate},
	{"HKQuantityTypeIdentifierRespiratoryRate", models.VitalRespiratoryRate},
	{"HKQuantityTypeIdentifierOxygenSaturation", models.VitalOxygenSaturation},
	{"HKQuantityTypeIdentifierBloodPressureSystolic", models.VitalSystolicBP},
	{"HKQuantityTypeIdentifierBloodPressureDiastolic", models.VitalDiastolicBP},
}

// matchVitals returns every vital whose key occurs in recordType.
func matchVitals(recordType string) []string {
	var out []string
	for _, r := range vitalRules {
		if strings.Contains(recordType, r.match) {
			out = append(out, r.vital)
		}
	}
	return out
}

func classifyRecord(recordType string) Category {
	for _, r := range recordRules {
		if !strings.Contains(recordType, r.match) {
			continue
		}
		excluded := false
		for _, ex := range r.exclude {
			if strings.Contains(recordType, ex) {
				excluded = true
				break
			}
		}
		if !excluded {
			return r.category
		}
	}
	if len(matchVitals(recordType)) > 0 {
		return CategoryVitals
	}
	return CategoryUnrecognized
}

// Classify decides which bucket el belongs to. A Record without a type is
// an error; every other element maps to some category.
func Classify(el RawElement) (Category, error) {
	switch el.Name {
	case elemRecord:
		t := el.Attrs["type"]
		if t == "" {
			return CategoryNone, errMissingType
		}
		return classifyRecord(t), nil
	case elemWorkout, elemWorkoutItem, elemActivity:
		return CategoryWorkout, nil
	case elemWorkoutStatistics:
		if strings.Contains(strings.ToLower(el.Attrs["type"]), "distance") {
			return CategoryWorkoutStatistics, nil
		}
	case elemMetadataEntry:
		if el.Attrs["key"] == metadataKeyWorkoutDistance {
			return CategoryWorkoutDistanceMetadata, nil
		}
	case elemCorrelation:
		if strings.Contains(el.Attrs["type"], "BloodPressure") {
			return CategoryBloodPressure, nil
		}
	}
	return CategoryNone, nil
}

// ParseStats describes what a parse saw besides the records it kept.
type ParseStats struct {
	Elements     int            `json:"elements"`
	Skipped      int            `json:"skipped"`
	Unrecognized map[string]int `json:"unrecognized,omitempty"`
}

// UnrecognizedTotal returns the number of records with an unknown type.
func (s ParseStats) UnrecognizedTotal() int {
	n := 0
	for _, c := range s.Unrecognized {
		n += c
	}
	return n
}

type frame struct {
	name      string
	startDate string
}

// bpCapture collects the systolic/diastolic child records of an open blood
// pressure correlation.
type bpCapture struct {
	depth     int
	date      string
	direct    bool
	systolic  []models.VitalReading
	diastolic []models.VitalReading
}

// Builder accumulates classified records for one parse. It is owned by a
// single parse and handed its elements in document order.
type Builder struct {
	ds    *models.Dataset
	stack []frame
	bp    *bpCapture
	stats ParseStats
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{
		ds:    models.NewDataset(),
		stats: ParseStats{Unrecognized: map[string]int{}},
	}
}

// Open handles an element-open event. An error means the element was
// skipped; the builder stays usable.
func (b *Builder) Open(el RawElement) error {
	b.stats.Elements++
	inherited := b.enclosingStartDate()
	b.stack = append(b.stack, frame{name: el.Name, startDate: el.Attrs["startDate"]})

	if b.bp != nil && el.Name == elemRecord && b.bp.capture(el) {
		return nil
	}

	cat, err := Classify(el)
	if err != nil {
		b.stats.Skipped++
		return err
	}

	switch cat {
	case CategoryNone:
	case CategoryUnrecognized:
		b.stats.Unrecognized[el.Attrs["type"]]++
	case CategoryHeartRate:
		b.ds.HeartRates = append(b.ds.HeartRates, models.HeartRate{
			HeartRate: el.Attrs["value"],
			Date:      el.Attrs["startDate"],
		})
	case CategoryEnergy:
		b.ds.EnergyData = append(b.ds.EnergyData, models.Energy{
			Energy: el.Attrs["value"],
			Date:   el.Attrs["startDate"],
		})
	case CategorySteps:
		b.ds.Steps = append(b.ds.Steps, models.Steps{
			Steps: int64(math.Round(units.ParseNumber(el.Attrs["value"]))),
			Date:  el.Attrs["startDate"],
		})
	case CategoryDistance:
		b.addDistance(units.ParseNumber(el.Attrs["value"]), el.Attrs["unit"], el.Attrs["startDate"], models.SourceRecord)
	case CategorySleep:
		stage, known := models.NormalizeSleepStage(el.Attrs["value"])
		if !known {
			stage = ""
		}
		b.ds.Sleep = append(b.ds.Sleep, models.Sleep{
			Value:     el.Attrs["value"],
			StartDate: el.Attrs["startDate"],
			EndDate:   el.Attrs["endDate"],
			Stage:     stage,
		})
	case CategoryVitals:
		b.addVitals(el)
	case CategoryWorkout:
		b.addWorkout(el)
	case CategoryWorkoutStatistics:
		raw := el.Attr("sum", "value")
		if raw == "" {
			return nil
		}
		date := el.Attr("startDate", "creationDate")
		if date == "" {
			date = inherited
		}
		b.addDistance(units.ParseNumber(raw), el.Attr("unit", "unitOfMeasure"), date, models.SourceWorkout)
	case CategoryWorkoutDistanceMetadata:
		raw := el.Attrs["value"]
		if raw == "" {
			return nil
		}
		v, unit := units.ParseQuantity(raw)
		if u := el.Attrs["unit"]; u != "" {
			unit = u
		}
		date := el.Attr("startDate", "creationDate")
		if date == "" {
			date = inherited
		}
		b.addDistance(v, unit, date, models.SourceWorkout)
	case CategoryBloodPressure:
		b.openBloodPressure(el)
	}
	return nil
}

// Close handles an element-close event.
func (b *Builder) Close(name string) {
	if len(b.stack) == 0 {
		return
	}
	b.stack = b.stack[:len(b.stack)-1]
	if b.bp != nil && len(b.stack) < b.bp.depth {
		b.flushBloodPressure()
	}
}

// Stats returns counters collected so far.
func (b *Builder) Stats() ParseStats {
	return b.stats
}

// Finish returns the accumulated dataset. The builder must not be used
// afterwards.
func (b *Builder) Finish() *models.Dataset {
	if b.bp != nil {
		b.flushBloodPressure()
	}
	ds := b.ds
	b.ds = nil
	return ds
}

func (b *Builder) enclosingStartDate() string {
	for i := len(b.stack) - 1; i >= 0; i-- {
		if d := b.stack[i].startDate; d != "" {
			return d
		}
	}
	return ""
}

func (b *Builder) addDistance(value float64, unit, date, source string) {
	b.ds.Distances = append(b.ds.Distances, models.Distance{
		Distance:      value,
		Unit:          unit,
		OriginalValue: value,
		OriginalUnit:  unit,
		Date:          date,
		Source:        source,
	})
}

func (b *Builder) addVitals(el RawElement) {
	date := el.Attrs["startDate"]
	raw := units.ParseNumber(el.Attrs["value"])
	for _, vital := range matchVitals(el.Attrs["type"]) {
		reading := models.VitalReading{Value: raw, Date: date}
		if vital == models.VitalWeight {
			original := raw
			reading.Value = units.ConvertWeight(raw, el.Attrs["unit"])
			reading.Unit = "kg"
			reading.OriginalValue = &original
			reading.OriginalUnit = el.Attrs["unit"]
		}
		b.ds.Vitals[vital] = append(b.ds.Vitals[vital], reading)
	}
}

var (
	workoutDistanceAttrs = []string{"totalDistance", "total_distance", "distance", "totalDistanceValue"}
	workoutUnitAttrs     = []string{"totalDistanceUnit", "unit", "distanceUnit", "unitOfMeasure"}
)

func (b *Builder) addWorkout(el RawElement) {
	workoutType := el.Attr("workoutActivityType", "type")
	if workoutType == "" {
		workoutType = "workout"
	}
	date := el.Attrs["startDate"]
	b.ds.Workouts = append(b.ds.Workouts, models.Workout{WorkoutType: workoutType, Date: date})

	if raw := el.Attr(workoutDistanceAttrs...); raw != "" {
		b.addDistance(units.ParseNumber(raw), el.Attr(workoutUnitAttrs...), date, models.SourceWorkout)
	}
}

func (b *Builder) openBloodPressure(el RawElement) {
	if b.bp != nil {
		b.flushBloodPressure()
	}
	date := el.Attrs["startDate"]
	bp := &bpCapture{depth: len(b.stack), date: date}
	if date != "" {
		if v := el.Attrs["systolic"]; v != "" {
			b.ds.Vitals[models.VitalSystolicBP] = append(b.ds.Vitals[models.VitalSystolicBP],
				models.VitalReading{Value: units.ParseNumber(v), Date: date})
			bp.direct = true
		}
		if v := el.Attrs["diastolic"]; v != "" {
			b.ds.Vitals[models.VitalDiastolicBP] = append(b.ds.Vitals[models.VitalDiastolicBP],
				models.VitalReading{Value: units.ParseNumber(v), Date: date})
			bp.direct = true
		}
	}
	b.bp = bp
}

// capture takes a systolic or diastolic child record. It reports false for
// any other record, which is then classified normally.
func (c *bpCapture) capture(el RawElement) bool {
	t := el.Attrs["type"]
	date := c.date
	if date == "" {
		date = el.Attrs["startDate"]
	}
	reading := models.VitalReading{Value: units.ParseNumber(el.Attrs["value"]), Date: date}
	switch {
	case strings.Contains(t, "BloodPressureSystolic"):
		c.systolic = append(c.systolic, reading)
	case strings.Contains(t, "BloodPressureDiastolic"):
		c.diastolic = append(c.diastolic, reading)
	default:
		return false
	}
	return true
}

// flushBloodPressure emits captured children unless the correlation already
// carried its values as attributes.
func (b *Builder) flushBloodPressure() {
	bp := b.bp
	b.bp = nil
	if bp.direct {
		return
	}
	if len(bp.systolic) > 0 {
		b.ds.Vitals[models.VitalSystolicBP] = append(b.ds.Vitals[models.VitalSystolicBP], bp.systolic...)
	}
	if len(bp.diastolic) > 0 {
		b.ds.Vitals[models.VitalDiastolicBP] = append(b.ds.Vitals[models.VitalDiastolicBP], bp.diastolic...)
	}
}
