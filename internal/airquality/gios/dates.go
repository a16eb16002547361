package gios

import (
	"strings"
	"time"
)

const (
	// APIDateLayout is the layout of timestamps returned by the GIOŚ API.
	// They carry no zone and are read in the parser's location.
	APIDateLayout = "2006-01-02 15:04:05"

	// CacheDateLayout is the ISO-8601 layout with milliseconds used when
	// serializing timestamps.
	CacheDateLayout = "2006-01-02T15:04:05.000Z07:00"
)

// isoLayouts are the ISO-8601 forms accepted after APIDateLayout fails.
// Layouts without an offset are read in the parser's location.
var isoLayouts = []struct {
	layout string
	zoned  bool
}{
	{time.RFC3339Nano, true},
	{"2006-01-02T15:04Z07:00", true},
	{"2006-01-02T15:04:05.999999999", false},
	{"2006-01-02T15:04", false},
	{"2006-01-02", false},
}

// parseDate reads s with the API layout first and ISO-8601 second. Results
// are truncated to milliseconds, the precision of CacheDateLayout. It returns
// the zero time and false when neither matches.
func parseDate(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	if t, err := time.ParseInLocation(APIDateLayout, s, loc); err == nil {
		return t, true
	}

	for _, l := range isoLayouts {
		var (
			t   time.Time
			err error
		)
		if l.zoned {
			t, err = time.Parse(l.layout, s)
		} else {
			t, err = time.ParseInLocation(l.layout, s, loc)
		}
		if err == nil {
			return t.Truncate(time.Millisecond), true
		}
	}
	return time.Time{}, false
}

// formatDate renders t in CacheDateLayout, or returns nil for the zero time.
func formatDate(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	s := t.Format(CacheDateLayout)
	return &s
}
