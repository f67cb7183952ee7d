// Package plotter renders one HTML chart page per repository from the processed store.
package plotter

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/kurihiro0119/github-traffic-history/internal/domain"
	apperrors "github.com/kurihiro0119/github-traffic-history/internal/errors"
	"github.com/kurihiro0119/github-traffic-history/internal/metrics"
	"github.com/kurihiro0119/github-traffic-history/internal/storage"
)

const (
	chartWidth  = "100%"
	chartHeight = "480px"
	lineWidth   = 2

	// missing renders as a gap in echarts
	missing = "-"

	popularityTimeLayout = "2006-01-02 15:04"
)

var metricColors = map[domain.Metric]string{
	domain.MetricViews:  "#48f",
	domain.MetricClones: "#0b0",
}

const (
	colorStars    = "#fc0"
	colorForks    = "#f80"
	colorWatchers = "#f00"
)

// Options tunes chart rendering
type Options struct {
	// LogScale draws traffic on a logarithmic axis; zero counts become gaps
	LogScale bool
}

// Plotter writes <owner>.<name>.html into its output directory
type Plotter struct {
	store    storage.ProcessedStore
	dir      string
	opts     Options
	recorder *metrics.Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a Plotter. recorder may be nil.
func New(store storage.ProcessedStore, dir string, opts Options, recorder *metrics.Recorder, logger *slog.Logger) *Plotter {
	return &Plotter{
		store:    store,
		dir:      dir,
		opts:     opts,
		recorder: recorder,
		logger:   logger,
		now:      time.Now,
	}
}

// File returns the chart file name for repo
func File(repo domain.Repository) string {
	return repo.FileStem() + ".html"
}

// Run renders a page for each repository that has processed data and returns the written paths.
// Repositories without any processed series are skipped with a warning.
func (p *Plotter) Run(ctx context.Context, repos []domain.Repository, metricList []domain.Metric) ([]string, error) {
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return nil, apperrors.NewStorageIOError("create "+p.dir, err)
	}

	var written []string
	for _, repo := range repos {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		var traffic []*domain.Series
		for _, metric := range metricList {
			series, err := p.store.ReadSeries(ctx, repo, metric)
			if apperrors.IsNotFound(err) {
				continue
			}
			if err != nil {
				return written, fmt.Errorf("failed to read %s series for %s: %w", metric, repo, err)
			}
			traffic = append(traffic, series)
		}

		popularity, err := p.store.ReadPopularity(ctx, repo)
		if apperrors.IsNotFound(err) {
			popularity = nil
		} else if err != nil {
			return written, fmt.Errorf("failed to read popularity for %s: %w", repo, err)
		}

		if len(traffic) == 0 && popularity == nil {
			p.logger.Warn("no processed data, skipping chart", "repository", repo.String())
			continue
		}

		var buf bytes.Buffer
		if err := p.Render(&buf, repo, traffic, popularity); err != nil {
			return written, fmt.Errorf("failed to render chart for %s: %w", repo, err)
		}
		path := filepath.Join(p.dir, File(repo))
		if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
			return written, apperrors.NewStorageIOError("write "+path, err)
		}
		p.logger.Info("chart written", "repository", repo.String(), "path", path)
		written = append(written, path)
	}

	p.recorder.PhaseCompleted(metrics.PhasePlot, p.now())
	return written, nil
}

// Render writes the chart page of one repository. traffic shares one chart over the union of
// its dates; popularity, when present, gets a second chart.
func (p *Plotter) Render(w io.Writer, repo domain.Repository, traffic []*domain.Series, popularity *domain.PopularitySeries) error {
	page := components.NewPage()
	page.PageTitle = repo.String()

	if len(traffic) > 0 {
		page.AddCharts(p.trafficChart(repo, traffic))
	}
	if popularity != nil && len(popularity.Points) > 0 {
		page.AddCharts(popularityChart(repo, popularity))
	}
	return page.Render(w)
}

func (p *Plotter) trafficChart(repo domain.Repository, traffic []*domain.Series) *charts.Line {
	dates := unionDates(traffic)

	yAxis := opts.YAxis{Name: "count", Type: "value"}
	if p.opts.LogScale {
		yAxis.Type = "log"
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Width:   chartWidth,
			Height:  chartHeight,
			ChartID: chartID(repo, "traffic"),
		}),
		charts.WithTitleOpts(opts.Title{Title: repo.String(), Subtitle: "daily traffic", Left: "center"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "12%"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", Start: 0, End: 100}, opts.DataZoom{Type: "inside"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "date", Type: "category"}),
		charts.WithYAxisOpts(yAxis),
		charts.WithGridOpts(opts.Grid{Top: "25%", ContainLabel: opts.Bool(true)}),
	)
	line.SetXAxis(dates)

	for _, series := range traffic {
		color := metricColors[series.Metric]
		totals, uniques := p.lineData(series, dates)

		// totals dotted, uniques solid
		line.AddSeries(string(series.Metric), totals,
			charts.WithItemStyleOpts(opts.ItemStyle{Color: color}),
			charts.WithLineStyleOpts(opts.LineStyle{Color: color, Width: lineWidth, Type: "dotted"}),
		)
		line.AddSeries(series.Metric.UniqueLabel(), uniques,
			charts.WithItemStyleOpts(opts.ItemStyle{Color: color}),
			charts.WithLineStyleOpts(opts.LineStyle{Color: color, Width: lineWidth, Type: "solid"}),
		)
	}
	return line
}

// lineData lays series out over dates. Dates the series lacks are gaps.
func (p *Plotter) lineData(series *domain.Series, dates []string) (totals, uniques []opts.LineData) {
	byDate := make(map[string]domain.DailyCount, len(series.Entries))
	for _, e := range series.Entries {
		byDate[e.Date] = e
	}

	totals = make([]opts.LineData, len(dates))
	uniques = make([]opts.LineData, len(dates))
	for i, date := range dates {
		e, ok := byDate[date]
		if !ok {
			totals[i] = opts.LineData{Value: missing}
			uniques[i] = opts.LineData{Value: missing}
			continue
		}
		totals[i] = opts.LineData{Value: p.value(e.Count)}
		uniques[i] = opts.LineData{Value: p.value(e.UniqueCount)}
	}
	return totals, uniques
}

// value hides zeros on a log axis, where they cannot be drawn
func (p *Plotter) value(n int) any {
	if p.opts.LogScale && n <= 0 {
		return missing
	}
	return n
}

func popularityChart(repo domain.Repository, popularity *domain.PopularitySeries) *charts.Line {
	labels := make([]string, len(popularity.Points))
	stars := make([]opts.LineData, len(popularity.Points))
	forks := make([]opts.LineData, len(popularity.Points))
	watchers := make([]opts.LineData, len(popularity.Points))
	for i, pt := range popularity.Points {
		labels[i] = pt.FetchedAt.UTC().Format(popularityTimeLayout)
		stars[i] = opts.LineData{Value: pt.Stars}
		forks[i] = opts.LineData{Value: pt.Forks}
		watchers[i] = opts.LineData{Value: pt.Watchers}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Width:   chartWidth,
			Height:  chartHeight,
			ChartID: chartID(repo, "popularity"),
		}),
		charts.WithTitleOpts(opts.Title{Title: repo.String(), Subtitle: "popularity", Left: "center"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "12%"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "fetched", Type: "category"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "count", Type: "value"}),
		charts.WithGridOpts(opts.Grid{Top: "25%", ContainLabel: opts.Bool(true)}),
	)
	line.SetXAxis(labels)

	for _, s := range []struct {
		name  string
		color string
		data  []opts.LineData
	}{
		{"stars", colorStars, stars},
		{"forks", colorForks, forks},
		{"watchers", colorWatchers, watchers},
	} {
		line.AddSeries(s.name, s.data,
			charts.WithLineChartOpts(opts.LineChart{Step: "end"}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: s.color}),
			charts.WithLineStyleOpts(opts.LineStyle{Color: s.color, Width: lineWidth}),
		)
	}
	return line
}

// unionDates returns every date present in any series, ascending
func unionDates(traffic []*domain.Series) []string {
	seen := make(map[string]struct{})
	for _, series := range traffic {
		for _, e := range series.Entries {
			seen[e.Date] = struct{}{}
		}
	}
	dates := make([]string, 0, len(seen))
	for d := range seen {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates
}

// chartID keeps rendered pages byte-stable; go-echarts otherwise generates random ids.
// The id ends up in a JavaScript identifier.
func chartID(repo domain.Repository, kind string) string {
	return strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			return r
		}
		return '_'
	}, fmt.Sprintf("%s_%s_%s", repo.Owner, repo.Name, kind))
}
