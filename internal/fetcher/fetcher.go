// Package fetcher runs the fetch phase: one snapshot per repository/metric pair appended to the raw log.
package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kurihiro0119/github-traffic-history/internal/collector"
	"github.com/kurihiro0119/github-traffic-history/internal/domain"
	"github.com/kurihiro0119/github-traffic-history/internal/metrics"
	"github.com/kurihiro0119/github-traffic-history/internal/storage"
)

// Options tunes a fetch run
type Options struct {
	// Concurrency bounds the number of pairs fetched at once; 1 fetches sequentially in order
	Concurrency int
	// Popularity also samples stars, forks and watchers per repository
	Popularity bool
	// FillZeroDays writes explicit zero entries for days the source omitted inside a snapshot
	FillZeroDays bool
}

// Failure is one pair that was skipped
type Failure struct {
	Repository domain.Repository
	// Kind is the metric name, or "popularity"
	Kind string
	Err  error
}

// Result summarizes a fetch run
type Result struct {
	Attempted          int
	Appended           int
	PopularityAppended int
	Failures           []Failure
}

// Failed reports whether any pair was skipped
func (r *Result) Failed() bool {
	return len(r.Failures) > 0
}

// Fetcher orchestrates calls to the snapshot source
type Fetcher struct {
	source     collector.Collector
	traffic    storage.AppendLog[domain.SnapshotRecord]
	popularity storage.AppendLog[domain.PopularityRecord]
	opts       Options
	recorder   *metrics.Recorder
	logger     *slog.Logger

	now   func() time.Time
	newID func() string
}

// New creates a Fetcher. recorder may be nil.
func New(
	source collector.Collector,
	traffic storage.AppendLog[domain.SnapshotRecord],
	popularity storage.AppendLog[domain.PopularityRecord],
	opts Options,
	recorder *metrics.Recorder,
	logger *slog.Logger,
) *Fetcher {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Fetcher{
		source:     source,
		traffic:    traffic,
		popularity: popularity,
		opts:       opts,
		recorder:   recorder,
		logger:     logger,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// Run fetches every repository/metric pair and appends one record per successful pair.
// A failing pair is logged and recorded in the result; the remaining pairs still run.
// Only a storage failure or cancellation aborts the run. Records already appended stay valid.
func (f *Fetcher) Run(ctx context.Context, repos []domain.Repository, metricList []domain.Metric) (*Result, error) {
	r := &run{Fetcher: f, result: &Result{}}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(f.opts.Concurrency)

	for _, repo := range repos {
		for _, metric := range metricList {
			r.result.Attempted++
			eg.Go(func() error { return r.fetchTraffic(egCtx, repo, metric) })
		}
		if f.opts.Popularity {
			r.result.Attempted++
			eg.Go(func() error { return r.fetchPopularity(egCtx, repo) })
		}
	}

	err := eg.Wait()
	result := r.finish()
	if err != nil {
		return result, err
	}

	f.recorder.PhaseCompleted(metrics.PhaseFetch, f.now())
	f.logger.Info("fetch complete",
		"attempted", result.Attempted,
		"appended", result.Appended,
		"popularity_appended", result.PopularityAppended,
		"failed", len(result.Failures))
	return result, nil
}

// run is the mutable state of one Run call
type run struct {
	*Fetcher

	mu     sync.Mutex
	result *Result
}

func (r *run) fail(repo domain.Repository, kind string, err error) {
	r.logger.Warn("skipping pair", "repository", repo.String(), "kind", kind, "error", err)
	r.recorder.FetchFailure(kind)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.result.Failures = append(r.result.Failures, Failure{Repository: repo, Kind: kind, Err: err})
}

func (r *run) finish() *Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	sort.SliceStable(r.result.Failures, func(i, j int) bool {
		a, b := r.result.Failures[i], r.result.Failures[j]
		if a.Repository != b.Repository {
			return a.Repository.String() < b.Repository.String()
		}
		return a.Kind < b.Kind
	})
	return r.result
}

// fetchTraffic fetches one repository/metric pair. It returns an error only when the run must stop.
func (r *run) fetchTraffic(ctx context.Context, repo domain.Repository, metric domain.Metric) error {
	kind := string(metric)
	r.recorder.FetchAttempt(kind)

	counts, err := r.source.FetchTraffic(ctx, repo, metric)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.fail(repo, kind, err)
		return nil
	}

	if counts == nil {
		counts = []domain.DailyCount{}
	}
	if r.opts.FillZeroDays {
		counts = FillZeroDays(counts)
	}

	rec := domain.SnapshotRecord{
		ID:         r.newID(),
		Repository: repo,
		Metric:     metric,
		FetchedAt:  r.now().UTC(),
		Entries:    counts,
	}
	if err := rec.Validate(); err != nil {
		// the source handed back something the log would later reject
		r.fail(repo, kind, fmt.Errorf("invalid snapshot: %w", err))
		return nil
	}
	if err := r.traffic.Append(ctx, rec); err != nil {
		return fmt.Errorf("failed to append %s snapshot for %s: %w", metric, repo, err)
	}
	r.recorder.RecordAppended(metrics.LogTraffic)

	r.mu.Lock()
	r.result.Appended++
	r.mu.Unlock()

	r.logger.Debug("snapshot appended", "repository", repo.String(), "metric", kind, "entries", len(counts))
	return nil
}

// fetchPopularity samples one repository
func (r *run) fetchPopularity(ctx context.Context, repo domain.Repository) error {
	r.recorder.FetchAttempt(metrics.KindPopularity)

	pop, err := r.source.FetchPopularity(ctx, repo)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.fail(repo, metrics.KindPopularity, err)
		return nil
	}

	rec := domain.PopularityRecord{
		ID:         r.newID(),
		Repository: repo,
		FetchedAt:  r.now().UTC(),
		Stars:      pop.Stars,
		Forks:      pop.Forks,
		Watchers:   pop.Watchers,
	}
	if err := r.popularity.Append(ctx, rec); err != nil {
		return fmt.Errorf("failed to append popularity sample for %s: %w", repo, err)
	}
	r.recorder.RecordAppended(metrics.LogPopularity)

	r.mu.Lock()
	r.result.PopularityAppended++
	r.mu.Unlock()
	return nil
}

// FillZeroDays adds zero entries for the dates missing strictly between the first and last
// entry of a date-sorted snapshot. Counts are never invented outside that range.
func FillZeroDays(counts []domain.DailyCount) []domain.DailyCount {
	if len(counts) < 2 {
		return counts
	}

	first, err := domain.ParseDate(counts[0].Date)
	if err != nil {
		return counts
	}
	last, err := domain.ParseDate(counts[len(counts)-1].Date)
	if err != nil {
		return counts
	}

	byDate := make(map[string]domain.DailyCount, len(counts))
	for _, c := range counts {
		byDate[c.Date] = c
	}

	filled := make([]domain.DailyCount, 0, int(last.Sub(first).Hours()/24)+1)
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		date := d.Format(domain.DateLayout)
		if c, ok := byDate[date]; ok {
			filled = append(filled, c)
			continue
		}
		filled = append(filled, domain.DailyCount{Date: date})
	}
	return filled
}
