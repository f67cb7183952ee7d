// Package verify audits the raw traffic log without modifying it.
//
// Every line is checked against the embedded snapshot schema, then decoded and validated.
// For each valid record the gap between its fetch time and its earliest entry is measured;
// a healthy log has every gap within [0, window) days.
package verify

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/kurihiro0119/github-traffic-history/internal/domain"
	"github.com/kurihiro0119/github-traffic-history/internal/storage/jsonl"
)

//go:embed snapshot.schema.json
var snapshotSchema []byte

const secondsPerDay = 24 * 60 * 60

// Gap is the measured window of one raw record
type Gap struct {
	Line       int
	Repository domain.Repository
	Metric     domain.Metric
	FetchedAt  time.Time
	Earliest   string
	Days       float64
	Violation  bool
}

// LineError lists why one raw line was rejected
type LineError struct {
	Line   int
	Errors []string
}

// Report is the outcome of a verification run
type Report struct {
	WindowDays int
	Records    int
	// Gaps is sorted by Days ascending
	Gaps        []Gap
	LineErrors  []LineError
	EmptyCounts int
}

// OK reports whether the log passed every check
func (r *Report) OK() bool {
	if len(r.LineErrors) > 0 {
		return false
	}
	for _, g := range r.Gaps {
		if g.Violation {
			return false
		}
	}
	return true
}

// Violations returns the gaps outside the window
func (r *Report) Violations() []Gap {
	var out []Gap
	for _, g := range r.Gaps {
		if g.Violation {
			out = append(out, g)
		}
	}
	return out
}

// Verifier checks one raw traffic log
type Verifier struct {
	log        *jsonl.Log[domain.SnapshotRecord]
	windowDays int
	schema     *gojsonschema.Schema
	logger     *slog.Logger
}

// New compiles the snapshot schema and returns a Verifier for log
func New(log *jsonl.Log[domain.SnapshotRecord], windowDays int, logger *slog.Logger) (*Verifier, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(snapshotSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile snapshot schema: %w", err)
	}
	return &Verifier{
		log:        log,
		windowDays: windowDays,
		schema:     schema,
		logger:     logger,
	}, nil
}

// Run scans the whole log. Only an unreadable log is an error; findings go into the report.
func (v *Verifier) Run(ctx context.Context) (*Report, error) {
	report := &Report{WindowDays: v.windowDays}

	err := v.log.Scan(ctx, func(line jsonl.Line) error {
		rec, problems := v.check(line)
		if len(problems) > 0 {
			report.LineErrors = append(report.LineErrors, LineError{Line: line.Number, Errors: problems})
			return nil
		}
		report.Records++

		gap, ok := v.measure(line.Number, rec)
		if !ok {
			report.EmptyCounts++
			return nil
		}
		report.Gaps = append(report.Gaps, gap)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan raw log: %w", err)
	}

	sort.SliceStable(report.Gaps, func(i, j int) bool { return report.Gaps[i].Days < report.Gaps[j].Days })

	v.logger.Info("verify complete",
		"records", report.Records,
		"line_errors", len(report.LineErrors),
		"violations", len(report.Violations()))
	return report, nil
}

// check decodes one line, returning its schema and semantic problems
func (v *Verifier) check(line jsonl.Line) (domain.SnapshotRecord, []string) {
	var rec domain.SnapshotRecord
	if line.Torn {
		return rec, []string{jsonl.ErrTornLine.Error()}
	}

	result, err := v.schema.Validate(gojsonschema.NewBytesLoader(line.Data))
	if err != nil {
		return rec, []string{fmt.Sprintf("invalid JSON: %v", err)}
	}
	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, verr := range result.Errors() {
			problems = append(problems, fmt.Sprintf("%s: %s", verr.Field(), verr.Description()))
		}
		return rec, problems
	}

	if err := json.Unmarshal(line.Data, &rec); err != nil {
		return rec, []string{err.Error()}
	}
	if err := rec.Validate(); err != nil {
		return rec, []string{err.Error()}
	}
	return rec, nil
}

// measure computes the fetch-to-earliest-entry gap of rec in days
func (v *Verifier) measure(lineNo int, rec domain.SnapshotRecord) (Gap, bool) {
	if len(rec.Entries) == 0 {
		return Gap{}, false
	}

	earliest := rec.Entries[0].Date
	for _, e := range rec.Entries[1:] {
		if e.Date < earliest {
			earliest = e.Date
		}
	}
	then, err := domain.ParseDate(earliest)
	if err != nil {
		return Gap{}, false
	}

	days := rec.FetchedAt.Sub(then).Seconds() / secondsPerDay
	return Gap{
		Line:       lineNo,
		Repository: rec.Repository,
		Metric:     rec.Metric,
		FetchedAt:  rec.FetchedAt,
		Earliest:   earliest,
		Days:       days,
		Violation:  days < 0 || days >= float64(v.windowDays),
	}, true
}
