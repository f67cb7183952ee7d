package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kurihiro0119/github-traffic-history/internal/metrics"
	"github.com/kurihiro0119/github-traffic-history/internal/plotter"
)

var plotLinear bool

var plotCmd = &cobra.Command{
	Use:   "plot",
	Short: "Render one chart page per repository",
	Long:  `Render the processed series of every configured repository as an HTML chart page.`,
	Args:  cobra.NoArgs,
	RunE:  runPlot,
}

func init() {
	plotCmd.Flags().BoolVar(&plotLinear, "linear", false, "use a linear axis even if plot.log_scale is set")
}

func runPlot(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	recorder := metrics.NewRecorder()
	p := plotter.New(processedStore(cfg), cfg.Storage.Plots, plotter.Options{
		LogScale: cfg.Plot.LogScale && !plotLinear,
	}, recorder, logger)

	written, err := p.Run(cmd.Context(), cfg.Repositories(), cfg.TrackedMetrics())
	writeTextfile(cfg, recorder, logger)
	if err != nil {
		return fmt.Errorf("plot failed: %w", err)
	}

	for _, path := range written {
		fmt.Fprintln(cmd.OutOrStdout(), path)
	}
	return nil
}
