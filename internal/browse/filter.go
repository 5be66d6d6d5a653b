// Package browse implements the row filtering and detail views that sit on
// top of a loaded opportunity table.
package browse

import (
	"strings"
	"time"

	"github.com/david/opportunity-finder/internal/ingest"
)

// Filter decides whether a row stays in the result.
type Filter interface {
	Match(row ingest.Row) bool
}

// FilterFunc adapts a function to Filter.
type FilterFunc func(row ingest.Row) bool

func (f FilterFunc) Match(row ingest.Row) bool { return f(row) }

// Contains keeps rows whose column value contains term, ignoring case.
// An empty term keeps every row; absent cells never match.
func Contains(column, term string) Filter {
	term = strings.ToLower(strings.TrimSpace(term))
	return FilterFunc(func(row ingest.Row) bool {
		if term == "" {
			return true
		}
		v, ok := row.Values[column]
		if !ok {
			return false
		}
		return strings.Contains(strings.ToLower(v), term)
	})
}

// Exact keeps rows whose column value equals one of values. With no values
// nothing matches.
func Exact(column string, values ...string) Filter {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return FilterFunc(func(row ingest.Row) bool {
		v, ok := row.Values[column]
		if !ok {
			return false
		}
		_, hit := set[v]
		return hit
	})
}

// Tags keeps rows carrying at least one of the selected tags. An empty
// selection keeps every row.
func Tags(selected ...string) Filter {
	set := make(map[string]struct{}, len(selected))
	for _, tag := range selected {
		if tag = strings.TrimSpace(tag); tag != "" {
			set[tag] = struct{}{}
		}
	}
	return FilterFunc(func(row ingest.Row) bool {
		if len(set) == 0 {
			return true
		}
		for _, tag := range row.Tags {
			if _, ok := set[tag]; ok {
				return true
			}
		}
		return false
	})
}

// DeadlineBetween keeps rows with a deadline on or between from and to,
// compared by calendar date. Rolling rows are dropped. A zero bound is open.
func DeadlineBetween(from, to time.Time) Filter {
	from = truncateDay(from)
	to = truncateDay(to)
	return FilterFunc(func(row ingest.Row) bool {
		if row.Deadline == nil {
			return false
		}
		d := truncateDay(*row.Deadline)
		if !from.IsZero() && d.Before(from) {
			return false
		}
		if !to.IsZero() && d.After(to) {
			return false
		}
		return true
	})
}

func truncateDay(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Apply returns the indices of rows matching every filter, in table order.
func Apply(table ingest.Table, filters ...Filter) []int {
	matches := make([]int, 0, len(table.Rows))
	for i, row := range table.Rows {
		keep := true
		for _, f := range filters {
			if !f.Match(row) {
				keep = false
				break
			}
		}
		if keep {
			matches = append(matches, i)
		}
	}
	return matches
}
