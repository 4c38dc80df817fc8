package models

import (
	"encoding/json"
	"testing"
)

// TestDayOf verifies day bucketing across the supported date formats. Days
// are UTC, so an export timestamp late in the evening west of Greenwich
// lands on the next day.
func TestDayOf(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{"2024-01-01T08:00:00Z", "2024-01-01"},
		{"2024-01-01 08:00:00 +0000", "2024-01-01"},
		{"2024-01-01 22:30:00 -0500", "2024-01-02"},
		{"2024-03-05", "2024-03-05"},
		{"2024-03-05T23:59:59.999+02:00", "2024-03-05"},
		{"", ""},
		{"not a date", ""},
	}
	for _, tc := range cases {
		if got := DayOf(tc.input); got != tc.want {
			t.Errorf("DayOf(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

// TestDatasetCounts verifies counting and emptiness, including vitals spread
// over several keys.
func TestDatasetCounts(t *testing.T) {
	ds := NewDataset()
	if !ds.Empty() {
		t.Fatal("new dataset should be empty")
	}

	ds.HeartRates = append(ds.HeartRates, HeartRate{HeartRate: "72"})
	ds.Vitals[VitalWeight] = []VitalReading{{Value: 70}, {Value: 71}}
	ds.Vitals[VitalSystolicBP] = []VitalReading{{Value: 120}}

	c := ds.Counts()
	if c.HeartRates != 1 || c.Vitals != 3 || c.Total() != 4 {
		t.Errorf("unexpected counts: %+v", c)
	}
	if ds.Empty() {
		t.Error("dataset with records should not be empty")
	}
}

// TestNewDataset_EncodesEmptyArrays verifies that an empty dataset encodes
// arrays, not nulls, so clients can iterate without checks.
func TestNewDataset_EncodesEmptyArrays(t *testing.T) {
	b, err := json.Marshal(NewDataset())
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		t.Fatal(err)
	}
	for _, key := range ArrayMetrics {
		if string(raw[key]) != "[]" {
			t.Errorf("%s encoded as %s, want []", key, raw[key])
		}
	}
	if string(raw[MetricVitals]) != "{}" {
		t.Errorf("vitals encoded as %s, want {}", raw[MetricVitals])
	}
}

// TestDatasetSummary_FlattensCounts verifies the summary document layout:
// counts sit at the top level next to uploadId.
func TestDatasetSummary_FlattensCounts(t *testing.T) {
	s := DatasetSummary{
		Counts:      Counts{HeartRates: 3, Steps: 2},
		UploadID:    "u-1",
		LastUpdated: "2024-01-01T00:00:00Z",
	}
	b, err := json.Marshal(s)
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		t.Fatal(err)
	}
	if raw["heartRatesCount"] != float64(3) || raw["stepsCount"] != float64(2) {
		t.Errorf("counts not flattened: %s", b)
	}
	if raw["uploadId"] != "u-1" {
		t.Errorf("uploadId = %v", raw["uploadId"])
	}
}
