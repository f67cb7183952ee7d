package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/kurihiro0119/github-traffic-history/internal/config"
	"github.com/kurihiro0119/github-traffic-history/internal/domain"
	apperrors "github.com/kurihiro0119/github-traffic-history/internal/errors"
	"github.com/kurihiro0119/github-traffic-history/internal/reconciler"
	"github.com/kurihiro0119/github-traffic-history/internal/storage"
	"github.com/kurihiro0119/github-traffic-history/pkg/client"
)

var (
	showMetric     string
	startDate      string
	endDate        string
	showSummary    bool
	showPopularity bool
	useAPI         bool
	outputJSON     bool
)

var showCmd = &cobra.Command{
	Use:   "show [owner/name...]",
	Short: "Show processed series",
	Long: `Display the canonical series of the given repositories, or of every configured
repository. Reads the processed store directly, or the HTTP API with --api.`,
	RunE: runShow,
}

func init() {
	showCmd.Flags().StringVar(&showMetric, "metric", "", "only this metric (views, clones)")
	showCmd.Flags().StringVar(&startDate, "start", "", "start date (YYYY-MM-DD)")
	showCmd.Flags().StringVar(&endDate, "end", "", "end date (YYYY-MM-DD)")
	showCmd.Flags().BoolVar(&showSummary, "summary", false, "show summary statistics instead of daily rows")
	showCmd.Flags().BoolVar(&showPopularity, "popularity", false, "show popularity samples")
	showCmd.Flags().BoolVar(&useAPI, "api", false, "read through the HTTP API at api.endpoint")
	showCmd.Flags().BoolVar(&outputJSON, "json", false, "output in JSON format")
}

// seriesReader is where show reads processed data from
type seriesReader interface {
	Series(ctx context.Context, repo domain.Repository, metric domain.Metric, r domain.DateRange) (*domain.Series, error)
	Summary(ctx context.Context, repo domain.Repository, metric domain.Metric, r domain.DateRange) (*reconciler.Summary, error)
	Popularity(ctx context.Context, repo domain.Repository) (*domain.PopularitySeries, error)
}

type storeReader struct {
	store storage.ProcessedStore
}

func (s storeReader) Series(ctx context.Context, repo domain.Repository, metric domain.Metric, r domain.DateRange) (*domain.Series, error) {
	series, err := s.store.ReadSeries(ctx, repo, metric)
	if err != nil {
		return nil, err
	}
	return series.Filter(r), nil
}

func (s storeReader) Summary(ctx context.Context, repo domain.Repository, metric domain.Metric, r domain.DateRange) (*reconciler.Summary, error) {
	series, err := s.Series(ctx, repo, metric, r)
	if err != nil {
		return nil, err
	}
	summary := reconciler.Summarize(series)
	return &summary, nil
}

func (s storeReader) Popularity(ctx context.Context, repo domain.Repository) (*domain.PopularitySeries, error) {
	return s.store.ReadPopularity(ctx, repo)
}

type apiReader struct {
	client *client.Client
}

func (a apiReader) Series(_ context.Context, repo domain.Repository, metric domain.Metric, r domain.DateRange) (*domain.Series, error) {
	return a.client.GetSeries(repo, metric, r)
}

func (a apiReader) Summary(_ context.Context, repo domain.Repository, metric domain.Metric, r domain.DateRange) (*reconciler.Summary, error) {
	return a.client.GetSummary(repo, metric, r)
}

func (a apiReader) Popularity(_ context.Context, repo domain.Repository) (*domain.PopularitySeries, error) {
	return a.client.GetPopularity(repo)
}

func newSeriesReader(cfg config.Config) (seriesReader, error) {
	if !useAPI {
		return storeReader{store: processedStore(cfg)}, nil
	}
	c := client.NewClient(cfg.API.Endpoint)
	if err := c.HealthCheck(); err != nil {
		return nil, fmt.Errorf("API at %s is not available: %w", cfg.API.Endpoint, err)
	}
	return apiReader{client: c}, nil
}

func runShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	repos, metricList, dateRange, err := showTargets(cfg, args)
	if err != nil {
		return err
	}
	reader, err := newSeriesReader(cfg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	switch {
	case showPopularity:
		return showPopularitySamples(ctx, out, reader, repos, logger)
	case showSummary:
		return showSummaries(ctx, out, reader, repos, metricList, dateRange, logger)
	default:
		return showSeries(ctx, out, reader, repos, metricList, dateRange, logger)
	}
}

// showTargets resolves the repositories, metrics and date range selected by args and flags
func showTargets(cfg config.Config, args []string) ([]domain.Repository, []domain.Metric, domain.DateRange, error) {
	repos := cfg.Repositories()
	if len(args) > 0 {
		repos = make([]domain.Repository, 0, len(args))
		for _, arg := range args {
			repo, err := domain.ParseRepository(arg)
			if err != nil {
				return nil, nil, domain.DateRange{}, err
			}
			repos = append(repos, repo)
		}
	}

	metricList := cfg.TrackedMetrics()
	if showMetric != "" {
		metric, err := domain.ParseMetric(showMetric)
		if err != nil {
			return nil, nil, domain.DateRange{}, err
		}
		metricList = []domain.Metric{metric}
	}

	dateRange := domain.DateRange{Start: startDate, End: endDate}
	for _, d := range []string{startDate, endDate} {
		if d == "" {
			continue
		}
		if _, err := domain.ParseDate(d); err != nil {
			return nil, nil, domain.DateRange{}, err
		}
	}
	return repos, metricList, dateRange, nil
}

func showSeries(ctx context.Context, out io.Writer, reader seriesReader, repos []domain.Repository, metricList []domain.Metric, r domain.DateRange, logger *slog.Logger) error {
	var all []*domain.Series
	for _, repo := range repos {
		for _, metric := range metricList {
			series, err := reader.Series(ctx, repo, metric, r)
			if apperrors.IsNotFound(err) {
				logger.Warn("no processed series", "repository", repo.String(), "metric", string(metric))
				continue
			}
			if err != nil {
				return fmt.Errorf("failed to read series: %w", err)
			}
			all = append(all, series)
		}
	}

	if outputJSON {
		return writeJSON(out, all)
	}

	for _, series := range all {
		fmt.Fprintf(out, "\n%s %s\n", series.Repository, series.Metric)
		table := tablewriter.NewWriter(out)
		table.SetHeader([]string{"Date", string(series.Metric), series.Metric.UniqueLabel()})
		for _, e := range series.Entries {
			table.Append([]string{e.Date, humanize.Comma(int64(e.Count)), humanize.Comma(int64(e.UniqueCount))})
		}
		table.Render()
	}
	return nil
}

func showSummaries(ctx context.Context, out io.Writer, reader seriesReader, repos []domain.Repository, metricList []domain.Metric, r domain.DateRange, logger *slog.Logger) error {
	var all []*reconciler.Summary
	for _, repo := range repos {
		for _, metric := range metricList {
			summary, err := reader.Summary(ctx, repo, metric, r)
			if apperrors.IsNotFound(err) {
				logger.Warn("no processed series", "repository", repo.String(), "metric", string(metric))
				continue
			}
			if err != nil {
				return fmt.Errorf("failed to read summary: %w", err)
			}
			all = append(all, summary)
		}
	}

	if outputJSON {
		return writeJSON(out, all)
	}

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Repository", "Metric", "Days", "First", "Last", "Total", "Unique", "Mean", "Median", "Peak"})
	for _, s := range all {
		peak := humanize.Comma(int64(s.Peak))
		if s.PeakDate != "" {
			peak += " (" + s.PeakDate + ")"
		}
		table.Append([]string{
			s.Repository,
			s.Metric,
			strconv.Itoa(s.Days),
			s.FirstDate,
			s.LastDate,
			humanize.Comma(int64(s.Total)),
			humanize.Comma(int64(s.TotalUnique)),
			humanize.CommafWithDigits(s.Mean, 2),
			humanize.CommafWithDigits(s.Median, 2),
			peak,
		})
	}
	table.Render()
	return nil
}

func showPopularitySamples(ctx context.Context, out io.Writer, reader seriesReader, repos []domain.Repository, logger *slog.Logger) error {
	var all []*domain.PopularitySeries
	for _, repo := range repos {
		series, err := reader.Popularity(ctx, repo)
		if apperrors.IsNotFound(err) {
			logger.Warn("no popularity samples", "repository", repo.String())
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to read popularity: %w", err)
		}
		all = append(all, series)
	}

	if outputJSON {
		return writeJSON(out, all)
	}

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Repository", "Fetched", "Stars", "Forks", "Watchers"})
	for _, series := range all {
		for _, pt := range series.Points {
			table.Append([]string{
				series.Repository.String(),
				pt.FetchedAt.UTC().Format("2006-01-02 15:04"),
				humanize.Comma(int64(pt.Stars)),
				humanize.Comma(int64(pt.Forks)),
				humanize.Comma(int64(pt.Watchers)),
			})
		}
	}
	table.Render()
	return nil
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
