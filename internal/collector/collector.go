package collector

import (
	"context"

	"github.com/kurihiro0119/github-traffic-history/internal/domain"
)

// Collector defines the interface for reading traffic snapshots from GitHub
type Collector interface {
	// FetchTraffic returns the daily counts GitHub reports for the trailing window, sorted by date
	FetchTraffic(ctx context.Context, repo domain.Repository, metric domain.Metric) ([]domain.DailyCount, error)

	// FetchPopularity samples the repository's current stars, forks and watchers
	FetchPopularity(ctx context.Context, repo domain.Repository) (*Popularity, error)
}

// Popularity is a point-in-time popularity sample
type Popularity struct {
	Stars    int
	Forks    int
	Watchers int
}
