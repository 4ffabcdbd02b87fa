package features

import (
	"fmt"
	"strings"
	"time"

	"github.com/tigerroll/stationcast/pkg/batch/support/util/exception"
)

// Layouts without a zone are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02 15:04:05.999999999Z0700",
	"2006-01-02 15:04:05 Z07:00",
	"2006-01-02T15:04Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// zoneNameLayout accepts a trailing zone abbreviation, restricted to UTC and GMT.
const zoneNameLayout = "2006-01-02 15:04:05 MST"

// ParseTimestamp parses s into a UTC instant.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp: %w", exception.ErrTimestampParse)
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	if t, err := time.Parse(zoneNameLayout, s); err == nil {
		if name, offset := t.Zone(); offset == 0 && (name == "UTC" || name == "GMT") {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q: %w", s, exception.ErrTimestampParse)
}
