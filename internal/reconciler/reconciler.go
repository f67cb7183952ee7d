// Package reconciler merges overlapping traffic snapshots into canonical daily series.
//
// Every run recomputes the series from the whole raw log. The output depends only on the
// set of valid records: not on their order, the wall clock, or map iteration.
package reconciler

import (
	"log/slog"
	"sort"

	"github.com/kurihiro0119/github-traffic-history/internal/domain"
)

// Reconciler defines the interface for deriving canonical series from raw records
type Reconciler interface {
	// Reconcile returns one series per repository/metric found in records, sorted by key
	Reconcile(records []domain.SnapshotRecord) []*domain.Series

	// ReconcilePopularity returns one popularity series per repository, sorted by repository
	ReconcilePopularity(records []domain.PopularityRecord) []*domain.PopularitySeries
}

// reconciler implements the Reconciler interface
type reconciler struct {
	logger *slog.Logger
}

// NewReconciler creates a new reconciler
func NewReconciler(logger *slog.Logger) Reconciler {
	return &reconciler{logger: logger}
}

// Reconcile groups records by repository/metric and resolves each group.
// Records that fail validation are skipped with a warning.
func (r *reconciler) Reconcile(records []domain.SnapshotRecord) []*domain.Series {
	groups := make(map[domain.SeriesKey][]domain.SnapshotRecord)
	for _, rec := range records {
		if err := rec.Validate(); err != nil {
			r.logger.Warn("skipping malformed snapshot record",
				"id", rec.ID, "repository", rec.Repository.String(), "metric", string(rec.Metric), "error", err)
			continue
		}
		groups[rec.Key()] = append(groups[rec.Key()], rec)
	}

	keys := make([]domain.SeriesKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

	out := make([]*domain.Series, 0, len(keys))
	for _, k := range keys {
		out = append(out, Resolve(k, groups[k]))
	}
	return out
}

// Resolve builds the canonical series for key from records.
// Records for other keys are ignored. For every date the observation from the latest fetch
// wins; observations fetched at the same instant resolve to the larger count, then the larger
// unique count. Dates never observed stay absent.
func Resolve(key domain.SeriesKey, records []domain.SnapshotRecord) *domain.Series {
	best := make(map[string]domain.DailyObservation)
	for _, rec := range records {
		if rec.Key() != key {
			continue
		}
		for _, obs := range rec.Observations() {
			cur, ok := best[obs.Date]
			if !ok || supersedes(obs, cur) {
				best[obs.Date] = obs
			}
		}
	}

	dates := make([]string, 0, len(best))
	for d := range best {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	entries := make([]domain.DailyCount, 0, len(dates))
	for _, d := range dates {
		entries = append(entries, best[d].DailyCount)
	}
	return &domain.Series{Repository: key.Repository, Metric: key.Metric, Entries: entries}
}

// supersedes reports whether a should replace b for the same date
func supersedes(a, b domain.DailyObservation) bool {
	if !a.FetchedAt.Equal(b.FetchedAt) {
		return a.FetchedAt.After(b.FetchedAt)
	}
	if a.Count != b.Count {
		return a.Count > b.Count
	}
	return a.UniqueCount > b.UniqueCount
}
