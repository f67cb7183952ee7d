package domain

import (
	"errors"
	"fmt"
	"time"
)

// DailyCount is one day of a traffic series
type DailyCount struct {
	Date        string `json:"date"`
	Count       int    `json:"count"`
	UniqueCount int    `json:"uniqueCount"`
}

// SnapshotRecord is one fetch of one repository/metric window.
// Once appended to the raw log it is never changed.
type SnapshotRecord struct {
	ID         string       `json:"id,omitempty"`
	Repository Repository   `json:"repository"`
	Metric     Metric       `json:"metric"`
	FetchedAt  time.Time    `json:"fetchedAt"`
	Entries    []DailyCount `json:"entries"`
}

// Key returns the repository/metric pair the record belongs to
func (r SnapshotRecord) Key() SeriesKey {
	return SeriesKey{Repository: r.Repository, Metric: r.Metric}
}

// Validate checks required fields, dates and per-record date uniqueness
func (r SnapshotRecord) Validate() error {
	if r.Repository.IsZero() {
		return errors.New("missing repository")
	}
	if !r.Metric.Valid() {
		return fmt.Errorf("unknown metric %q", r.Metric)
	}
	if r.FetchedAt.IsZero() {
		return errors.New("missing fetchedAt")
	}
	if r.Entries == nil {
		return errors.New("missing entries")
	}
	seen := make(map[string]struct{}, len(r.Entries))
	for _, e := range r.Entries {
		if _, err := ParseDate(e.Date); err != nil {
			return err
		}
		if e.Count < 0 || e.UniqueCount < 0 {
			return fmt.Errorf("negative count on %s", e.Date)
		}
		if _, dup := seen[e.Date]; dup {
			return fmt.Errorf("duplicate date %s", e.Date)
		}
		seen[e.Date] = struct{}{}
	}
	return nil
}

// Observations flattens the record into per-day observations
func (r SnapshotRecord) Observations() []DailyObservation {
	obs := make([]DailyObservation, 0, len(r.Entries))
	for _, e := range r.Entries {
		obs = append(obs, DailyObservation{DailyCount: e, FetchedAt: r.FetchedAt})
	}
	return obs
}

// DailyObservation is one day as seen by one fetch
type DailyObservation struct {
	DailyCount
	FetchedAt time.Time
}

// SeriesKey identifies a canonical series
type SeriesKey struct {
	Repository Repository `json:"repository"`
	Metric     Metric     `json:"metric"`
}

func (k SeriesKey) String() string {
	return k.Repository.String() + ":" + string(k.Metric)
}

// Less orders keys by repository, then metric
func (k SeriesKey) Less(o SeriesKey) bool {
	if k.Repository.String() != o.Repository.String() {
		return k.Repository.String() < o.Repository.String()
	}
	return k.Metric < o.Metric
}

// Series is the canonical, date-sorted time series for one repository/metric.
// Dates may be sparse.
type Series struct {
	Repository Repository   `json:"repository"`
	Metric     Metric       `json:"metric"`
	Entries    []DailyCount `json:"series"`
}

// Key returns the repository/metric pair of the series
func (s *Series) Key() SeriesKey {
	return SeriesKey{Repository: s.Repository, Metric: s.Metric}
}

// Filter returns a copy of the series restricted to the date range
func (s *Series) Filter(r DateRange) *Series {
	out := &Series{Repository: s.Repository, Metric: s.Metric, Entries: []DailyCount{}}
	for _, e := range s.Entries {
		if r.Contains(e.Date) {
			out.Entries = append(out.Entries, e)
		}
	}
	return out
}
