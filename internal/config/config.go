package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/kurihiro0119/github-traffic-history/internal/domain"
	apperrors "github.com/kurihiro0119/github-traffic-history/internal/errors"
)

// DefaultPath is where the CLI looks for the configuration file
const DefaultPath = "data/config.yaml"

// envPrefix is the environment variable prefix for settings
const envPrefix = "TRAFFIC"

// Config holds the application configuration.
// It is read once at startup and handed by value to every phase.
type Config struct {
	Repos     []string        `mapstructure:"repos" yaml:"repos"`
	Metrics   []string        `mapstructure:"metrics" yaml:"metrics"`
	Storage   StorageConfig   `mapstructure:"storage" yaml:"storage"`
	GitHub    GitHubConfig    `mapstructure:"github" yaml:"github"`
	Fetch     FetchConfig     `mapstructure:"fetch" yaml:"fetch"`
	Plot      PlotConfig      `mapstructure:"plot" yaml:"plot"`
	API       APIConfig       `mapstructure:"api" yaml:"api"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`
}

// StorageConfig locates the raw logs and derived artifacts
type StorageConfig struct {
	Raw        string `mapstructure:"raw" yaml:"raw"`
	Popularity string `mapstructure:"popularity" yaml:"popularity"`
	Processed  string `mapstructure:"processed" yaml:"processed"`
	Plots      string `mapstructure:"plots" yaml:"plots"`
}

// GitHubConfig configures API access
type GitHubConfig struct {
	Token    string        `mapstructure:"token" yaml:"token"`
	BaseURL  string        `mapstructure:"base_url" yaml:"base_url"`
	MinDelay time.Duration `mapstructure:"min_delay" yaml:"min_delay"`
}

// FetchConfig tunes the fetch phase
type FetchConfig struct {
	Concurrency  int  `mapstructure:"concurrency" yaml:"concurrency"`
	Popularity   bool `mapstructure:"popularity" yaml:"popularity"`
	FillZeroDays bool `mapstructure:"fill_zero_days" yaml:"fill_zero_days"`
	WindowDays   int  `mapstructure:"window_days" yaml:"window_days"`
}

// PlotConfig tunes chart rendering
type PlotConfig struct {
	LogScale bool `mapstructure:"log_scale" yaml:"log_scale"`
}

// APIConfig configures the read-only HTTP API and the CLI's client of it
type APIConfig struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     string `mapstructure:"port" yaml:"port"`
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
}

// LogConfig configures slog output
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// TelemetryConfig configures prometheus export for the batch phases
type TelemetryConfig struct {
	Textfile string `mapstructure:"textfile" yaml:"textfile"`
}

// Default returns the configuration used when a key is not set
func Default() Config {
	return Config{
		Repos:   []string{},
		Metrics: []string{string(domain.MetricViews), string(domain.MetricClones)},
		Storage: StorageConfig{
			Raw:        "data/raw.jsonl",
			Popularity: "data/popularity.jsonl",
			Processed:  "data/proc",
			Plots:      "data/plots",
		},
		GitHub: GitHubConfig{MinDelay: 100 * time.Millisecond},
		Fetch: FetchConfig{
			Concurrency: 1,
			Popularity:  true,
			WindowDays:  14,
		},
		Plot: PlotConfig{LogScale: true},
		API: APIConfig{
			Host:     "localhost",
			Port:     "8080",
			Endpoint: "http://localhost:8080",
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load loads the configuration from the file at path, environment variables and defaults.
// A .env file in the working directory is loaded first if present.
func Load(path string) (Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	v := viper.New()
	applyDefaults(v, Default())

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return Config{}, apperrors.NewConfigurationError("config", fmt.Sprintf("file %s does not exist", path))
			}
			return Config{}, apperrors.NewConfigurationError("config", fmt.Sprintf("read %s: %v", path, err))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, apperrors.NewConfigurationError("config", fmt.Sprintf("decode: %v", err))
	}

	if cfg.GitHub.Token == "" {
		cfg.GitHub.Token = os.Getenv("GITHUB_TOKEN")
	}

	return cfg, nil
}

func applyDefaults(v *viper.Viper, d Config) {
	v.SetDefault("repos", d.Repos)
	v.SetDefault("metrics", d.Metrics)

	v.SetDefault("storage.raw", d.Storage.Raw)
	v.SetDefault("storage.popularity", d.Storage.Popularity)
	v.SetDefault("storage.processed", d.Storage.Processed)
	v.SetDefault("storage.plots", d.Storage.Plots)

	v.SetDefault("github.token", d.GitHub.Token)
	v.SetDefault("github.base_url", d.GitHub.BaseURL)
	v.SetDefault("github.min_delay", d.GitHub.MinDelay)

	v.SetDefault("fetch.concurrency", d.Fetch.Concurrency)
	v.SetDefault("fetch.popularity", d.Fetch.Popularity)
	v.SetDefault("fetch.fill_zero_days", d.Fetch.FillZeroDays)
	v.SetDefault("fetch.window_days", d.Fetch.WindowDays)

	v.SetDefault("plot.log_scale", d.Plot.LogScale)

	v.SetDefault("api.host", d.API.Host)
	v.SetDefault("api.port", d.API.Port)
	v.SetDefault("api.endpoint", d.API.Endpoint)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)

	v.SetDefault("telemetry.textfile", d.Telemetry.Textfile)
}

// Validate validates the configuration shared by every phase
func (c Config) Validate() error {
	if len(c.Repos) == 0 {
		return apperrors.NewConfigurationError("repos", "at least one repository is required")
	}
	seen := make(map[string]struct{}, len(c.Repos))
	for _, r := range c.Repos {
		repo, err := domain.ParseRepository(r)
		if err != nil {
			return apperrors.NewConfigurationError("repos", err.Error())
		}
		if _, dup := seen[repo.String()]; dup {
			return apperrors.NewConfigurationError("repos", fmt.Sprintf("duplicate repository %s", repo))
		}
		seen[repo.String()] = struct{}{}
	}
	if len(c.Metrics) == 0 {
		return apperrors.NewConfigurationError("metrics", "at least one metric is required")
	}
	for _, m := range c.Metrics {
		if _, err := domain.ParseMetric(m); err != nil {
			return apperrors.NewConfigurationError("metrics", err.Error())
		}
	}
	for field, value := range map[string]string{
		"storage.raw":        c.Storage.Raw,
		"storage.popularity": c.Storage.Popularity,
		"storage.processed":  c.Storage.Processed,
		"storage.plots":      c.Storage.Plots,
	} {
		if strings.TrimSpace(value) == "" {
			return apperrors.NewConfigurationError(field, "path is required")
		}
	}
	if c.Fetch.Concurrency < 1 {
		return apperrors.NewConfigurationError("fetch.concurrency", "must be at least 1")
	}
	if c.Fetch.WindowDays < 1 {
		return apperrors.NewConfigurationError("fetch.window_days", "must be at least 1")
	}
	return nil
}

// ValidateFetch validates the configuration needed by the fetch phase
func (c Config) ValidateFetch() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.GitHub.Token == "" {
		return apperrors.NewConfigurationError("github.token", "GitHub token is required (set github.token or GITHUB_TOKEN)")
	}
	return nil
}

// Repositories returns the configured repositories. Call after Validate.
func (c Config) Repositories() []domain.Repository {
	repos := make([]domain.Repository, 0, len(c.Repos))
	for _, r := range c.Repos {
		if repo, err := domain.ParseRepository(r); err == nil {
			repos = append(repos, repo)
		}
	}
	return repos
}

// TrackedMetrics returns the configured metrics. Call after Validate.
func (c Config) TrackedMetrics() []domain.Metric {
	metrics := make([]domain.Metric, 0, len(c.Metrics))
	for _, m := range c.Metrics {
		if metric, err := domain.ParseMetric(m); err == nil {
			metrics = append(metrics, metric)
		}
	}
	return metrics
}

// Addr returns the API listen address
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%s", c.API.Host, c.API.Port)
}
