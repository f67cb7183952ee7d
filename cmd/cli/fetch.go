package main

import (
	"fmt"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/kurihiro0119/github-traffic-history/internal/collector"
	"github.com/kurihiro0119/github-traffic-history/internal/fetcher"
	"github.com/kurihiro0119/github-traffic-history/internal/metrics"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch traffic snapshots from GitHub",
	Long: `Fetch the trailing traffic window of every configured repository and metric
and append one snapshot per pair to the raw log. A failing pair is reported and
skipped; the command exits nonzero if any pair failed.`,
	Args: cobra.NoArgs,
	RunE: runFetch,
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateFetch(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	logger := newLogger(cfg)

	coll, err := collector.NewGitHubCollector(cfg.GitHub.Token, collector.Options{
		BaseURL:  cfg.GitHub.BaseURL,
		MinDelay: cfg.GitHub.MinDelay,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize collector: %w", err)
	}

	recorder := metrics.NewRecorder()
	f := fetcher.New(coll, trafficLog(cfg), popularityLog(cfg), fetcher.Options{
		Concurrency:  cfg.Fetch.Concurrency,
		Popularity:   cfg.Fetch.Popularity,
		FillZeroDays: cfg.Fetch.FillZeroDays,
	}, recorder, logger)

	result, err := f.Run(cmd.Context(), cfg.Repositories(), cfg.TrackedMetrics())
	writeTextfile(cfg, recorder, logger)
	if err != nil {
		return fmt.Errorf("fetch aborted: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Appended %d snapshots and %d popularity samples (%d pairs attempted)\n",
		result.Appended, result.PopularityAppended, result.Attempted)

	if result.Failed() {
		table := tablewriter.NewWriter(out)
		table.SetHeader([]string{"Repository", "Kind", "Error"})
		for _, failure := range result.Failures {
			table.Append([]string{failure.Repository.String(), failure.Kind, failure.Err.Error()})
		}
		table.Render()
		return fmt.Errorf("%d of %d pairs failed", len(result.Failures), result.Attempted)
	}
	return nil
}
