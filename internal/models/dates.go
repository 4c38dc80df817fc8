package models

import (
	"strings"
	"time"
)

// ExportDateFormat is the timestamp layout used inside Apple Health exports.
const ExportDateFormat = "2006-01-02 15:04:05 -0700"

const dayFormat = "2006-01-02"

var dateLayouts = []string{
	ExportDateFormat,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	dayFormat,
}

// ParseDate parses the date formats found in exports and API payloads.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// DayOf returns the UTC calendar day (YYYY-MM-DD) of s, or "" if s does not
// parse.
func DayOf(s string) string {
	t, ok := ParseDate(s)
	if !ok {
		return ""
	}
	return t.UTC().Format(dayFormat)
}
