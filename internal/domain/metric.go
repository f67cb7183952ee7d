package domain

import (
	"fmt"
	"time"
)

// DateLayout is the calendar date format used in every stored artifact
const DateLayout = "2006-01-02"

// Metric represents the kind of traffic statistic
type Metric string

const (
	MetricViews  Metric = "views"
	MetricClones Metric = "clones"
)

// Metrics lists every supported metric in canonical order
var Metrics = []Metric{MetricViews, MetricClones}

// ParseMetric parses a metric name
func ParseMetric(s string) (Metric, error) {
	m := Metric(s)
	if !m.Valid() {
		return "", fmt.Errorf("unknown metric %q", s)
	}
	return m, nil
}

// Valid reports whether m is a supported metric
func (m Metric) Valid() bool {
	switch m {
	case MetricViews, MetricClones:
		return true
	}
	return false
}

// UniqueLabel names the unique-count companion of the metric ("viewers", "cloners")
func (m Metric) UniqueLabel() string {
	switch m {
	case MetricViews:
		return "viewers"
	case MetricClones:
		return "cloners"
	}
	return "unique " + string(m)
}

// DateRange is an inclusive range of calendar dates.
// An empty bound is open.
type DateRange struct {
	Start string
	End   string
}

// Contains reports whether date falls within the range
func (r DateRange) Contains(date string) bool {
	if r.Start != "" && date < r.Start {
		return false
	}
	if r.End != "" && date > r.End {
		return false
	}
	return true
}

// ParseDate parses a calendar date and rejects non-canonical spellings
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	if t.Format(DateLayout) != s {
		return time.Time{}, fmt.Errorf("invalid date %q: not in %s form", s, DateLayout)
	}
	return t, nil
}

// DateOf returns the UTC calendar date of t
func DateOf(t time.Time) string {
	return t.UTC().Format(DateLayout)
}
