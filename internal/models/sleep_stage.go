package models

import "strings"

// Canonical sleep stage names.
const (
	SleepStageCore   = "Core"
	SleepStageDeep   = "Deep"
	SleepStageREM    = "REM"
	SleepStageAwake  = "Awake"
	SleepStageInBed  = "In Bed"
	SleepStageAsleep = "Asleep"
)

const sleepValuePrefix = "HKCategoryValueSleepAnalysis"

// sleepValueMap maps the suffix of an HKCategoryValueSleepAnalysis* value,
// lowercased, to its canonical stage.
var sleepValueMap = map[string]string{
	"inbed":             SleepStageInBed,
	"awake":             SleepStageAwake,
	"asleep":            SleepStageAsleep,
	"asleepunspecified": SleepStageAsleep,
	"asleepcore":        SleepStageCore,
	"asleepdeep":        SleepStageDeep,
	"asleeprem":         SleepStageREM,
}

// sleepStageMap covers plain and localized stage names, as written by
// third-party apps that store the display name instead of the identifier.
var sleepStageMap = map[string]string{
	"core":   SleepStageCore,
	"light":  SleepStageCore,
	"deep":   SleepStageDeep,
	"rem":    SleepStageREM,
	"awake":  SleepStageAwake,
	"in bed": SleepStageInBed,
	"asleep": SleepStageAsleep,

	"kern":    SleepStageCore,
	"tief":    SleepStageDeep,
	"wach":    SleepStageAwake,
	"im bett": SleepStageInBed,

	"profond": SleepStageDeep,
	"éveillé": SleepStageAwake,
	"au lit":  SleepStageInBed,

	"profundo":   SleepStageDeep,
	"despierto":  SleepStageAwake,
	"en la cama": SleepStageInBed,
}

// NormalizeSleepStage maps a sleep analysis value to its canonical stage.
// Both vendor identifiers (HKCategoryValueSleepAnalysisAsleepDeep) and plain
// or localized names ("Deep", "Tief") are accepted. Unknown values are
// returned unchanged with false.
func NormalizeSleepStage(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if suffix, ok := strings.CutPrefix(trimmed, sleepValuePrefix); ok {
		if canonical, ok := sleepValueMap[strings.ToLower(suffix)]; ok {
			return canonical, true
		}
		return raw, false
	}
	if canonical, ok := sleepStageMap[strings.ToLower(trimmed)]; ok {
		return canonical, true
	}
	return raw, false
}

// CountsAsSleep reports whether a stage is time spent asleep. In-bed and
// awake intervals are not.
func CountsAsSleep(stage string) bool {
	switch stage {
	case SleepStageInBed, SleepStageAwake:
		return false
	}
	return true
}
