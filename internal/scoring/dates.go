package scoring

import (
	"errors"
	"strings"
	"time"
)

// isoLayouts are tried in order. Layouts without a zone are read as UTC.
var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

var errUnrecognizedDate = errors.New("not an ISO-8601 timestamp")

// ParseDate parses an ISO-8601 timestamp as produced by the transaction
// sources: RFC3339 with "Z" or an offset, naive date-times with optional
// fractional seconds, or a bare calendar date. A lowercase "z" suffix is
// accepted as UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "z") {
		s = s[:len(s)-1] + "Z"
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errUnrecognizedDate
}

// parseDates validates every record date up front and returns them in
// input order.
func parseDates(records []Transaction) ([]time.Time, error) {
	dates := make([]time.Time, len(records))
	for i, r := range records {
		if strings.TrimSpace(r.Date) == "" {
			return nil, &InvalidRecordError{Index: i, Field: "date"}
		}
		t, err := ParseDate(r.Date)
		if err != nil {
			return nil, &InvalidRecordError{Index: i, Field: "date", Value: r.Date, Err: err}
		}
		dates[i] = t
	}
	return dates, nil
}
