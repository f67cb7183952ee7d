// Package processor runs the process phase: replay the raw logs and rewrite the processed store.
package processor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kurihiro0119/github-traffic-history/internal/domain"
	apperrors "github.com/kurihiro0119/github-traffic-history/internal/errors"
	"github.com/kurihiro0119/github-traffic-history/internal/metrics"
	"github.com/kurihiro0119/github-traffic-history/internal/reconciler"
	"github.com/kurihiro0119/github-traffic-history/internal/storage"
)

// Report summarizes a process run
type Report struct {
	Records           int
	Skipped           int
	PopularityRecords int
	PopularitySkipped int
	Series            []SeriesReport
	PopularitySeries  int
}

// SeriesReport is one written canonical series
type SeriesReport struct {
	Key     domain.SeriesKey
	Entries int
}

// Processor recomputes every derived series from scratch
type Processor struct {
	traffic    storage.AppendLog[domain.SnapshotRecord]
	popularity storage.AppendLog[domain.PopularityRecord]
	store      storage.ProcessedStore
	reconciler reconciler.Reconciler
	recorder   *metrics.Recorder
	logger     *slog.Logger
	now        func() time.Time
}

// New creates a Processor. popularity and recorder may be nil.
func New(
	traffic storage.AppendLog[domain.SnapshotRecord],
	popularity storage.AppendLog[domain.PopularityRecord],
	store storage.ProcessedStore,
	recorder *metrics.Recorder,
	logger *slog.Logger,
) *Processor {
	return &Processor{
		traffic:    traffic,
		popularity: popularity,
		store:      store,
		reconciler: reconciler.NewReconciler(logger),
		recorder:   recorder,
		logger:     logger,
		now:        time.Now,
	}
}

// Run reads the raw logs in full, reconciles them and overwrites every derived file.
// Malformed lines are skipped with a warning. An unreadable log or an unwritable store is fatal.
// It must not run while a fetch is still appending.
func (p *Processor) Run(ctx context.Context) (*Report, error) {
	report := &Report{}

	records, skipped, err := p.traffic.ReadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read raw log: %w", err)
	}
	p.warnSkipped(metrics.LogTraffic, skipped)
	report.Records = len(records)
	report.Skipped = len(skipped)

	for _, series := range p.reconciler.Reconcile(records) {
		if err := p.store.WriteSeries(ctx, series); err != nil {
			return nil, fmt.Errorf("failed to write series %s: %w", series.Key(), err)
		}
		p.recorder.CanonicalEntries(series.Key(), len(series.Entries))
		report.Series = append(report.Series, SeriesReport{Key: series.Key(), Entries: len(series.Entries)})
	}

	if p.popularity != nil {
		samples, skipped, err := p.popularity.ReadAll(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read popularity log: %w", err)
		}
		p.warnSkipped(metrics.LogPopularity, skipped)
		report.PopularityRecords = len(samples)
		report.PopularitySkipped = len(skipped)

		for _, series := range p.reconciler.ReconcilePopularity(samples) {
			if err := p.store.WritePopularity(ctx, series); err != nil {
				return nil, fmt.Errorf("failed to write popularity for %s: %w", series.Repository, err)
			}
			report.PopularitySeries++
		}
	}

	p.recorder.PhaseCompleted(metrics.PhaseProcess, p.now())
	p.logger.Info("process complete",
		"records", report.Records,
		"skipped", report.Skipped,
		"series", len(report.Series),
		"popularity_records", report.PopularityRecords,
		"popularity_series", report.PopularitySeries)
	return report, nil
}

func (p *Processor) warnSkipped(log string, skipped []error) {
	for _, err := range skipped {
		p.logger.Warn("skipping malformed record", "log", log, "code", apperrors.CodeOf(err), "error", err)
	}
	p.recorder.MalformedRecords(log, len(skipped))
}
