package reconciler

import (
	"sort"

	"github.com/kurihiro0119/github-traffic-history/internal/domain"
)

// ReconcilePopularity orders samples by fetch time per repository.
// Samples sharing a fetch instant collapse to the one with the most stars, then forks, then watchers.
func (r *reconciler) ReconcilePopularity(records []domain.PopularityRecord) []*domain.PopularitySeries {
	groups := make(map[domain.Repository]map[int64]domain.PopularityPoint)
	for _, rec := range records {
		if err := rec.Validate(); err != nil {
			r.logger.Warn("skipping malformed popularity record", "id", rec.ID, "repository", rec.Repository.String(), "error", err)
			continue
		}
		points, ok := groups[rec.Repository]
		if !ok {
			points = make(map[int64]domain.PopularityPoint)
			groups[rec.Repository] = points
		}
		p := domain.PopularityPoint{FetchedAt: rec.FetchedAt.UTC(), Stars: rec.Stars, Forks: rec.Forks, Watchers: rec.Watchers}
		at := rec.FetchedAt.UnixNano()
		if cur, exists := points[at]; !exists || largerSample(p, cur) {
			points[at] = p
		}
	}

	repos := make([]domain.Repository, 0, len(groups))
	for repo := range groups {
		repos = append(repos, repo)
	}
	sort.Slice(repos, func(i, j int) bool { return repos[i].String() < repos[j].String() })

	out := make([]*domain.PopularitySeries, 0, len(repos))
	for _, repo := range repos {
		points := make([]domain.PopularityPoint, 0, len(groups[repo]))
		for _, p := range groups[repo] {
			points = append(points, p)
		}
		sort.Slice(points, func(i, j int) bool { return points[i].FetchedAt.Before(points[j].FetchedAt) })
		out = append(out, &domain.PopularitySeries{Repository: repo, Points: points})
	}
	return out
}

func largerSample(a, b domain.PopularityPoint) bool {
	if a.Stars != b.Stars {
		return a.Stars > b.Stars
	}
	if a.Forks != b.Forks {
		return a.Forks > b.Forks
	}
	return a.Watchers > b.Watchers
}
