package storage

import (
	"context"

	"github.com/kurihiro0119/github-traffic-history/internal/domain"
)

// Record is anything the raw log can hold. Validate rejects decoded values that are unusable.
type Record interface {
	Validate() error
}

// AppendLog is the append-only raw log.
// Append never reads or rewrites existing content.
type AppendLog[T Record] interface {
	// Append adds one record at the end of the log
	Append(ctx context.Context, rec T) error

	// ReadAll returns every valid record in append order, plus one error per skipped line.
	// A missing log reads as empty.
	ReadAll(ctx context.Context) ([]T, []error, error)
}

// ProcessedStore holds the derived series, overwritten wholesale on every run
type ProcessedStore interface {
	// Canonical series operations
	WriteSeries(ctx context.Context, series *domain.Series) error
	ReadSeries(ctx context.Context, repo domain.Repository, metric domain.Metric) (*domain.Series, error)

	// Popularity series operations
	WritePopularity(ctx context.Context, series *domain.PopularitySeries) error
	ReadPopularity(ctx context.Context, repo domain.Repository) (*domain.PopularitySeries, error)

	// List returns the keys of every stored canonical series, sorted
	List(ctx context.Context) ([]domain.SeriesKey, error)
}
