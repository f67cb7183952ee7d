package reconciler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kurihiro0119/github-traffic-history/internal/domain"
	"github.com/kurihiro0119/github-traffic-history/internal/logging"
)

func TestReconcilePopularity(t *testing.T) {
	records := []domain.PopularityRecord{
		{Repository: world, FetchedAt: day(2), Stars: 1},
		{Repository: hello, FetchedAt: day(3), Stars: 12, Forks: 2, Watchers: 4},
		{Repository: hello, FetchedAt: day(1), Stars: 10, Forks: 1, Watchers: 4},
		{Repository: hello, FetchedAt: day(3).In(time.FixedZone("X", 3600)), Stars: 11, Forks: 9, Watchers: 9},
		{Repository: hello, Stars: 99}, // no fetch time
	}

	out := NewReconciler(logging.Discard()).ReconcilePopularity(records)
	require.Len(t, out, 2)
	assert.Equal(t, hello, out[0].Repository)
	assert.Equal(t, world, out[1].Repository)

	require.Len(t, out[0].Points, 2)
	assert.Equal(t, domain.PopularityPoint{FetchedAt: day(1), Stars: 10, Forks: 1, Watchers: 4}, out[0].Points[0])
	assert.Equal(t, domain.PopularityPoint{FetchedAt: day(3), Stars: 12, Forks: 2, Watchers: 4}, out[0].Points[1])
}
