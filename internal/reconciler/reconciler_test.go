package reconciler

import (
	"encoding/json"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kurihiro0119/github-traffic-history/internal/domain"
	"github.com/kurihiro0119/github-traffic-history/internal/logging"
)

var (
	hello = domain.Repository{Owner: "octo", Name: "hello"}
	world = domain.Repository{Owner: "octo", Name: "world"}
)

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func date(t time.Time) string {
	return t.Format(domain.DateLayout)
}

func snap(repo domain.Repository, metric domain.Metric, fetched time.Time, entries ...domain.DailyCount) domain.SnapshotRecord {
	if entries == nil {
		entries = []domain.DailyCount{}
	}
	return domain.SnapshotRecord{Repository: repo, Metric: metric, FetchedAt: fetched, Entries: entries}
}

func dc(d string, count, unique int) domain.DailyCount {
	return domain.DailyCount{Date: d, Count: count, UniqueCount: unique}
}

func TestReconcile_Scenario(t *testing.T) {
	a := snap(hello, domain.MetricViews, day(10), dc("2024-01-01", 10, 8), dc("2024-01-02", 12, 9))
	b := snap(hello, domain.MetricViews, day(12), dc("2024-01-02", 15, 11), dc("2024-01-03", 20, 14))

	out := NewReconciler(logging.Discard()).Reconcile([]domain.SnapshotRecord{a, b})
	require.Len(t, out, 1)
	assert.Equal(t, []domain.DailyCount{
		dc("2024-01-01", 10, 8),
		dc("2024-01-02", 15, 11),
		dc("2024-01-03", 20, 14),
	}, out[0].Entries)
}

func TestResolve_LatestFetchWins(t *testing.T) {
	key := domain.SeriesKey{Repository: hello, Metric: domain.MetricClones}
	testCases := []struct {
		name     string
		records  []domain.SnapshotRecord
		expected domain.DailyCount
	}{
		{
			name: "later fetch with higher count",
			records: []domain.SnapshotRecord{
				snap(hello, domain.MetricClones, day(5), dc("2024-01-03", 4, 2)),
				snap(hello, domain.MetricClones, day(6), dc("2024-01-03", 9, 3)),
			},
			expected: dc("2024-01-03", 9, 3),
		},
		{
			name: "later fetch with lower count still wins",
			records: []domain.SnapshotRecord{
				snap(hello, domain.MetricClones, day(6), dc("2024-01-03", 9, 3)),
				snap(hello, domain.MetricClones, day(7), dc("2024-01-03", 7, 3)),
			},
			expected: dc("2024-01-03", 7, 3),
		},
		{
			name: "later fetch wins regardless of log order",
			records: []domain.SnapshotRecord{
				snap(hello, domain.MetricClones, day(9), dc("2024-01-03", 1, 1)),
				snap(hello, domain.MetricClones, day(8), dc("2024-01-03", 50, 20)),
			},
			expected: dc("2024-01-03", 1, 1),
		},
		{
			name: "tie on fetch time takes larger count",
			records: []domain.SnapshotRecord{
				snap(hello, domain.MetricClones, day(6), dc("2024-01-03", 7, 1)),
				snap(hello, domain.MetricClones, day(6), dc("2024-01-03", 5, 4)),
			},
			expected: dc("2024-01-03", 7, 1),
		},
		{
			name: "tie on fetch time and count takes larger unique count",
			records: []domain.SnapshotRecord{
				snap(hello, domain.MetricClones, day(6), dc("2024-01-03", 7, 2)),
				snap(hello, domain.MetricClones, day(6), dc("2024-01-03", 7, 5)),
			},
			expected: dc("2024-01-03", 7, 5),
		},
		{
			name: "same instant in different zones is a tie",
			records: []domain.SnapshotRecord{
				snap(hello, domain.MetricClones, day(6), dc("2024-01-03", 5, 1)),
				snap(hello, domain.MetricClones, day(6).In(time.FixedZone("JST", 9*3600)), dc("2024-01-03", 6, 1)),
			},
			expected: dc("2024-01-03", 6, 1),
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := Resolve(key, tc.records)
			assert.Equal(t, []domain.DailyCount{tc.expected}, got.Entries)
		})
	}
}

func TestResolve_IgnoresOtherKeys(t *testing.T) {
	key := domain.SeriesKey{Repository: hello, Metric: domain.MetricViews}
	got := Resolve(key, []domain.SnapshotRecord{
		snap(hello, domain.MetricViews, day(5), dc("2024-01-01", 1, 1)),
		snap(hello, domain.MetricClones, day(6), dc("2024-01-01", 99, 99)),
		snap(world, domain.MetricViews, day(7), dc("2024-01-01", 42, 42)),
	})
	assert.Equal(t, []domain.DailyCount{dc("2024-01-01", 1, 1)}, got.Entries)
	assert.Equal(t, key, got.Key())
}

func TestReconcile_GapTolerance(t *testing.T) {
	var first, second []domain.DailyCount
	for d := day(1); !d.After(day(14)); d = d.AddDate(0, 0, 1) {
		first = append(first, dc(date(d), 1, 1))
	}
	for d := day(20); !d.After(time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC)); d = d.AddDate(0, 0, 1) {
		second = append(second, dc(date(d), 2, 1))
	}
	out := NewReconciler(logging.Discard()).Reconcile([]domain.SnapshotRecord{
		snap(hello, domain.MetricViews, day(15), first...),
		snap(hello, domain.MetricViews, time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC), second...),
	})
	require.Len(t, out, 1)

	dates := make(map[string]bool)
	for _, e := range out[0].Entries {
		dates[e.Date] = true
	}
	assert.Len(t, out[0].Entries, 14+14)
	for d := 15; d <= 19; d++ {
		assert.False(t, dates[date(day(d))], "gap date %s must stay absent", date(day(d)))
	}
}

func TestReconcile_NoDuplicateDatesAndSorted(t *testing.T) {
	var records []domain.SnapshotRecord
	// fourteen overlapping daily windows
	for run := 0; run < 14; run++ {
		fetched := day(15).AddDate(0, 0, run)
		var entries []domain.DailyCount
		for back := 14; back >= 1; back-- {
			d := fetched.AddDate(0, 0, -back)
			entries = append(entries, dc(date(d), run+back, run))
		}
		records = append(records, snap(hello, domain.MetricViews, fetched, entries...))
	}

	out := NewReconciler(logging.Discard()).Reconcile(records)
	require.Len(t, out, 1)
	seen := make(map[string]bool)
	for i, e := range out[0].Entries {
		assert.False(t, seen[e.Date], "duplicate date %s", e.Date)
		seen[e.Date] = true
		if i > 0 {
			assert.Less(t, out[0].Entries[i-1].Date, e.Date)
		}
	}
	assert.Len(t, out[0].Entries, 27)
}

func TestReconcile_DeterministicAcrossOrderAndRuns(t *testing.T) {
	var records []domain.SnapshotRecord
	for run := 0; run < 10; run++ {
		for _, repo := range []domain.Repository{world, hello} {
			for _, m := range domain.Metrics {
				fetched := day(10).AddDate(0, 0, run%4) // repeated fetch instants force tie-breaks
				records = append(records, snap(repo, m, fetched,
					dc(date(day(1+run)), run*3%7, run%3),
					dc(date(day(2+run)), run*5%11, run%4),
				))
			}
		}
	}
	r := NewReconciler(logging.Discard())
	baseline, err := json.Marshal(r.Reconcile(records))
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		shuffled := append([]domain.SnapshotRecord(nil), records...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		got, err := json.Marshal(r.Reconcile(shuffled))
		require.NoError(t, err)
		assert.Equal(t, string(baseline), string(got))
	}
}

func TestReconcile_KeysSortedAndInvalidSkipped(t *testing.T) {
	bad := snap(hello, domain.MetricViews, day(3), dc("2024-01-01", 1, 1), dc("2024-01-01", 2, 2))
	out := NewReconciler(logging.Discard()).Reconcile([]domain.SnapshotRecord{
		snap(world, domain.MetricViews, day(2), dc("2024-01-01", 1, 1)),
		bad,
		snap(hello, domain.MetricViews, day(2), dc("2024-01-01", 3, 1)),
		snap(hello, domain.MetricClones, day(2)),
	})
	require.Len(t, out, 3)
	assert.Equal(t, domain.SeriesKey{Repository: hello, Metric: domain.MetricClones}, out[0].Key())
	assert.Empty(t, out[0].Entries)
	assert.Equal(t, domain.SeriesKey{Repository: hello, Metric: domain.MetricViews}, out[1].Key())
	assert.Equal(t, []domain.DailyCount{dc("2024-01-01", 3, 1)}, out[1].Entries)
	assert.Equal(t, domain.SeriesKey{Repository: world, Metric: domain.MetricViews}, out[2].Key())
}

func TestReconcile_EmptyInput(t *testing.T) {
	assert.Empty(t, NewReconciler(logging.Discard()).Reconcile(nil))
}
