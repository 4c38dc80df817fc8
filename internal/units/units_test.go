package units

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeUnit(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"mi", Miles},
		{"Miles", Miles},
		{"km", Kilometers},
		{"Kilometers", Kilometers},
		{"m", Meters},
		{"meter", Meters},
		{"Metres", Meters},
		{" KM ", Kilometers},
		{"", ""},
		{"count", ""},
		{"yd", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeUnit(tt.raw), "NormalizeUnit(%q)", tt.raw)
	}
}

func TestConvertDistance(t *testing.T) {
	tests := []struct {
		name  string
		value float64
		from  string
		to    string
		want  float64
	}{
		{"no preferred unit is a no-op", 5, "mi", "", 5},
		{"same unit", 3, "km", Kilometers, 3},
		{"miles to km", 1, "mi", Kilometers, KmPerMile},
		{"km to miles", KmPerMile, "km", Miles, 1},
		{"meters to km", 2500, "m", Kilometers, 2.5},
		{"km to meters", 1.2, "km", Meters, 1200},
		{"miles to meters", 1, "mi", Meters, MPerMile},
		{"unlabeled large value assumed meters", 5000, "", Kilometers, 5},
		{"unlabeled large value to miles", MPerMile * 2, "", Miles, 2},
		{"unlabeled small value passes through", 12, "", Kilometers, 12},
		{"unlabeled to meters passes through", 5000, "furlong", Meters, 5000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ConvertDistance(tt.value, tt.from, tt.to), 1e-9)
		})
	}
}

func TestConvertDistanceRoundTrip(t *testing.T) {
	for _, v := range []float64{0, 0.001, 1, 3.1, 26.2, 100, 12345.678} {
		km := ConvertDistance(v, "mi", Kilometers)
		back := ConvertDistance(km, "km", Miles)
		assert.InDelta(t, v, back, 1e-9, "round trip of %v", v)
	}
}

func TestConvertWeight(t *testing.T) {
	assert.InDelta(t, 69.85, ConvertWeight(154, "lb"), 0.01)
	assert.InDelta(t, 45.359237, ConvertWeight(100, "Pounds"), 1e-9)
	assert.Equal(t, 70.0, ConvertWeight(70, "kg"))
	assert.Equal(t, 70.0, ConvertWeight(70, ""))
}

func TestParseNumber(t *testing.T) {
	assert.Equal(t, 72.0, ParseNumber("72"))
	assert.Equal(t, 0.5, ParseNumber(" 0.5 "))
	assert.Equal(t, 0.0, ParseNumber(""))
	assert.Equal(t, 0.0, ParseNumber("abc"))
	assert.Equal(t, 0.0, ParseNumber("NaN"))
	assert.Equal(t, 0.0, ParseNumber("Inf"))
}

func TestParseQuantity(t *testing.T) {
	v, u := ParseQuantity("5.2 km")
	assert.Equal(t, 5.2, v)
	assert.Equal(t, "km", u)

	v, u = ParseQuantity("4000")
	assert.Equal(t, 4000.0, v)
	assert.Empty(t, u)

	v, u = ParseQuantity("junk value")
	assert.Equal(t, 0.0, v)
	assert.Equal(t, "value", u)
}
