package plotter

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kurihiro0119/github-traffic-history/internal/domain"
	"github.com/kurihiro0119/github-traffic-history/internal/logging"
	"github.com/kurihiro0119/github-traffic-history/internal/storage/processed"
)

var hello = domain.Repository{Owner: "octo-org", Name: "hello.go"}

func viewsSeries() *domain.Series {
	return &domain.Series{Repository: hello, Metric: domain.MetricViews, Entries: []domain.DailyCount{
		{Date: "2024-01-01", Count: 10, UniqueCount: 8},
		{Date: "2024-01-03", Count: 0, UniqueCount: 0},
	}}
}

func clonesSeries() *domain.Series {
	return &domain.Series{Repository: hello, Metric: domain.MetricClones, Entries: []domain.DailyCount{
		{Date: "2024-01-02", Count: 4, UniqueCount: 2},
	}}
}

func TestUnionDates(t *testing.T) {
	dates := unionDates([]*domain.Series{viewsSeries(), clonesSeries()})
	assert.Equal(t, []string{"2024-01-01", "2024-01-02", "2024-01-03"}, dates)
}

func TestLineData(t *testing.T) {
	dates := []string{"2024-01-01", "2024-01-02", "2024-01-03"}

	testCases := []struct {
		name     string
		logScale bool
		totals   []opts.LineData
	}{
		{
			name:   "linear keeps zeros",
			totals: []opts.LineData{{Value: 10}, {Value: missing}, {Value: 0}},
		},
		{
			name:     "log scale hides zeros",
			logScale: true,
			totals:   []opts.LineData{{Value: 10}, {Value: missing}, {Value: missing}},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := &Plotter{opts: Options{LogScale: tc.logScale}}
			totals, uniques := p.lineData(viewsSeries(), dates)
			assert.Equal(t, tc.totals, totals)
			assert.Len(t, uniques, len(dates))
			assert.Equal(t, 8, uniques[0].Value)
		})
	}
}

func TestChartID(t *testing.T) {
	assert.Equal(t, "octo_org_hello_go_traffic", chartID(hello, "traffic"))
}

func TestPlotter_Render(t *testing.T) {
	p := New(nil, "", Options{LogScale: true}, nil, logging.Discard())
	popularity := &domain.PopularitySeries{Repository: hello, Points: []domain.PopularityPoint{
		{FetchedAt: time.Date(2024, 1, 3, 8, 0, 0, 0, time.UTC), Stars: 5, Forks: 1, Watchers: 2},
	}}

	var first, second bytes.Buffer
	require.NoError(t, p.Render(&first, hello, []*domain.Series{viewsSeries(), clonesSeries()}, popularity))
	require.NoError(t, p.Render(&second, hello, []*domain.Series{viewsSeries(), clonesSeries()}, popularity))

	html := first.String()
	assert.Equal(t, html, second.String(), "rendering must be deterministic")
	assert.Contains(t, html, "<title>octo-org/hello.go</title>")
	for _, want := range []string{"#48f", "#0b0", "#fc0", "#f80", "#f00", "dotted", "viewers", "cloners", `"type":"log"`} {
		assert.Contains(t, html, want)
	}
	assert.Contains(t, html, "octo_org_hello_go_popularity")
}

func TestPlotter_RenderTrafficOnly(t *testing.T) {
	p := New(nil, "", Options{}, nil, logging.Discard())

	var buf bytes.Buffer
	require.NoError(t, p.Render(&buf, hello, []*domain.Series{viewsSeries()}, nil))
	assert.NotContains(t, buf.String(), "octo_org_hello_go_popularity")
	assert.NotContains(t, buf.String(), "#0b0")
}

func TestPlotter_Run(t *testing.T) {
	dir := t.TempDir()
	store := processed.NewFileStore(filepath.Join(dir, "proc"))
	ctx := context.Background()
	require.NoError(t, store.WriteSeries(ctx, viewsSeries()))
	require.NoError(t, store.WriteSeries(ctx, clonesSeries()))

	untracked := domain.Repository{Owner: "octo", Name: "empty"}
	plots := filepath.Join(dir, "plots")
	p := New(store, plots, Options{}, nil, logging.Discard())

	written, err := p.Run(ctx, []domain.Repository{hello, untracked}, domain.Metrics)
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(plots, "octo-org.hello.go.html")}, written)

	data, err := os.ReadFile(written[0])
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "echarts"))

	_, err = os.Stat(filepath.Join(plots, File(untracked)))
	assert.True(t, os.IsNotExist(err))
}

func TestPlotter_RunUnwritableDir(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	p := New(processed.NewFileStore(dir), filepath.Join(blocker, "plots"), Options{}, nil, logging.Discard())
	_, err := p.Run(context.Background(), []domain.Repository{hello}, domain.Metrics)
	assert.Error(t, err)
}
