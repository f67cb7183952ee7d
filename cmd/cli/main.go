package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kurihiro0119/github-traffic-history/internal/config"
	"github.com/kurihiro0119/github-traffic-history/internal/domain"
	"github.com/kurihiro0119/github-traffic-history/internal/logging"
	"github.com/kurihiro0119/github-traffic-history/internal/metrics"
	"github.com/kurihiro0119/github-traffic-history/internal/storage"
	"github.com/kurihiro0119/github-traffic-history/internal/storage/jsonl"
	"github.com/kurihiro0119/github-traffic-history/internal/storage/processed"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "traffic-history",
	Short: "GitHub traffic history tool",
	Long: `A CLI tool for keeping the history of GitHub repository traffic.

GitHub only reports the last 14 days of views and clones. Run fetch daily to
append snapshots to a raw log, then process to merge every snapshot into one
canonical daily series per repository and metric, and plot to chart them.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", config.DefaultPath, "config file")

	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(plotCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads and validates the configuration shared by every phase
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg config.Config) *slog.Logger {
	return logging.New(os.Stderr, cfg.Log.Format, logging.ParseLevel(cfg.Log.Level))
}

func trafficLog(cfg config.Config) *jsonl.Log[domain.SnapshotRecord] {
	return jsonl.New[domain.SnapshotRecord](cfg.Storage.Raw)
}

func popularityLog(cfg config.Config) *jsonl.Log[domain.PopularityRecord] {
	return jsonl.New[domain.PopularityRecord](cfg.Storage.Popularity)
}

func processedStore(cfg config.Config) storage.ProcessedStore {
	return processed.NewFileStore(cfg.Storage.Processed)
}

// writeTextfile exports the run's metrics when telemetry.textfile is set
func writeTextfile(cfg config.Config, recorder *metrics.Recorder, logger *slog.Logger) {
	if cfg.Telemetry.Textfile == "" {
		return
	}
	if err := recorder.WriteTextfile(cfg.Telemetry.Textfile); err != nil {
		logger.Warn("failed to write metrics textfile", "path", cfg.Telemetry.Textfile, "error", err)
	}
}
