package main

import (
	"fmt"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/kurihiro0119/github-traffic-history/internal/metrics"
	"github.com/kurihiro0119/github-traffic-history/internal/processor"
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Reconcile the raw log into canonical series",
	Long: `Replay every snapshot in the raw logs and rewrite one canonical series per
repository and metric. For a date seen by several snapshots the latest fetch wins.
Malformed lines are skipped with a warning.`,
	Args: cobra.NoArgs,
	RunE: runProcess,
}

func runProcess(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	recorder := metrics.NewRecorder()
	p := processor.New(trafficLog(cfg), popularityLog(cfg), processedStore(cfg), recorder, logger)

	report, err := p.Run(cmd.Context())
	writeTextfile(cfg, recorder, logger)
	if err != nil {
		return fmt.Errorf("process failed: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Read %d snapshots (%d skipped), %d popularity samples (%d skipped)\n",
		report.Records, report.Skipped, report.PopularityRecords, report.PopularitySkipped)

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Repository", "Metric", "Days"})
	for _, s := range report.Series {
		table.Append([]string{s.Key.Repository.String(), string(s.Key.Metric), strconv.Itoa(s.Entries)})
	}
	table.Render()
	return nil
}
