package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kurihiro0119/github-traffic-history/internal/verify"
)

var noColor bool

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Audit the raw log",
	Long: `Check every raw log line against the snapshot schema and measure, for each
snapshot, the days between its fetch time and its earliest entry.

Expect 13-14 days when every day has traffic, 0-14 days when traffic is sparse.
A gap below zero or at least the window length is a violation.`,
	Args: cobra.NoArgs,
	RunE: runVerify,
}

func init() {
	verifyCmd.Flags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

func runVerify(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	if noColor {
		color.NoColor = true
	}
	out := cmd.OutOrStdout()

	v, err := verify.New(trafficLog(cfg), cfg.Fetch.WindowDays, logger)
	if err != nil {
		return err
	}
	report, err := v.Run(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Gaps (window %d days):\n", report.WindowDays)
	for _, gap := range report.Gaps {
		line := fmt.Sprintf("- %6.3f days  %s %s (line %d)\n", gap.Days, gap.Repository, gap.Metric, gap.Line)
		if gap.Violation {
			color.New(color.FgRed).Fprint(out, line)
		} else {
			fmt.Fprint(out, line)
		}
	}
	if report.EmptyCounts > 0 {
		fmt.Fprintf(out, "%d snapshots had no entries\n", report.EmptyCounts)
	}

	for _, le := range report.LineErrors {
		color.New(color.FgRed).Fprintf(out, "line %d: %s\n", le.Line, strings.Join(le.Errors, "; "))
	}

	if !report.OK() {
		color.New(color.FgRed).Fprintf(out, "Raw log failed verification (%d violations, %d bad lines)\n",
			len(report.Violations()), len(report.LineErrors))
		return fmt.Errorf("verification failed: %s", cfg.Storage.Raw)
	}
	color.New(color.FgGreen).Fprintf(out, "Raw log is valid (%d snapshots)\n", report.Records)
	return nil
}
