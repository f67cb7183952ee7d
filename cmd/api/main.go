package main

import (
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/kurihiro0119/github-traffic-history/internal/api"
	"github.com/kurihiro0119/github-traffic-history/internal/config"
	"github.com/kurihiro0119/github-traffic-history/internal/logging"
	"github.com/kurihiro0119/github-traffic-history/internal/metrics"
	"github.com/kurihiro0119/github-traffic-history/internal/storage/processed"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:          "traffic-api",
	Short:        "Serve processed traffic series over HTTP",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringVar(&cfgFile, "config", config.DefaultPath, "config file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger := logging.New(os.Stderr, cfg.Log.Format, logging.ParseLevel(cfg.Log.Level))

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	// The API only reads what process and plot have written
	store := processed.NewFileStore(cfg.Storage.Processed)
	handler := api.NewHandler(store, metrics.NewRecorder(), cfg.Storage.Plots, logger)
	router := api.SetupRoutes(handler)

	addr := cfg.Addr()
	logger.Info("starting API server", "addr", addr, "processed", cfg.Storage.Processed, "plots", cfg.Storage.Plots)

	if err := router.Run(addr); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}
