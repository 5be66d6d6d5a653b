package ingest

import (
	"strings"
	"time"
)

// deadlineLayout is month/day/year; one- and two-digit month and day both parse.
const deadlineLayout = "1/2/2006"

// ParseDeadline parses a DEADLINE cell. Empty or unparseable input returns nil,
// which callers treat as a rolling deadline rather than bad data.
func ParseDeadline(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	t, err := time.Parse(deadlineLayout, value)
	if err != nil {
		return nil
	}
	return &t
}

// FormatDeadline renders a deadline as MM/DD/YYYY.
func FormatDeadline(t time.Time) string {
	return t.Format("01/02/2006")
}
