package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kurihiro0119/github-traffic-history/internal/domain"
	apperrors "github.com/kurihiro0119/github-traffic-history/internal/errors"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_FileAndDefaults(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "")
	path := writeConfig(t, `
repos:
  - octo/hello
  - octo/world
storage:
  raw: /tmp/raw.jsonl
github:
  token: secret
  min_delay: 250ms
fetch:
  concurrency: 2
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.ValidateFetch())

	assert.Equal(t, []domain.Repository{{Owner: "octo", Name: "hello"}, {Owner: "octo", Name: "world"}}, cfg.Repositories())
	assert.Equal(t, []domain.Metric{domain.MetricViews, domain.MetricClones}, cfg.TrackedMetrics())
	assert.Equal(t, "/tmp/raw.jsonl", cfg.Storage.Raw)
	assert.Equal(t, "data/proc", cfg.Storage.Processed)
	assert.Equal(t, "secret", cfg.GitHub.Token)
	assert.Equal(t, 250*time.Millisecond, cfg.GitHub.MinDelay)
	assert.Equal(t, 2, cfg.Fetch.Concurrency)
	assert.Equal(t, 14, cfg.Fetch.WindowDays)
	assert.True(t, cfg.Fetch.Popularity)
	assert.True(t, cfg.Plot.LogScale)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "from-env")
	t.Setenv("TRAFFIC_FETCH_CONCURRENCY", "4")
	t.Setenv("TRAFFIC_STORAGE_PLOTS", "/srv/plots")
	path := writeConfig(t, "repos: [octo/hello]\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Fetch.Concurrency)
	assert.Equal(t, "/srv/plots", cfg.Storage.Plots)
	assert.Equal(t, "from-env", cfg.GitHub.Token)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, apperrors.IsConfiguration(err))
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		c := Default()
		c.Repos = []string{"octo/hello"}
		return c
	}
	testCases := []struct {
		name   string
		mutate func(c *Config)
		field  string
	}{
		{name: "no repos", mutate: func(c *Config) { c.Repos = nil }, field: "repos"},
		{name: "bad repo", mutate: func(c *Config) { c.Repos = []string{"octo"} }, field: "repos"},
		{name: "duplicate repo", mutate: func(c *Config) { c.Repos = []string{"octo/hello", " octo/hello"} }, field: "repos"},
		{name: "unknown metric", mutate: func(c *Config) { c.Metrics = []string{"stars"} }, field: "metrics"},
		{name: "empty raw path", mutate: func(c *Config) { c.Storage.Raw = " " }, field: "storage.raw"},
		{name: "zero concurrency", mutate: func(c *Config) { c.Fetch.Concurrency = 0 }, field: "fetch.concurrency"},
		{name: "zero window", mutate: func(c *Config) { c.Fetch.WindowDays = 0 }, field: "fetch.window_days"},
	}

	require.NoError(t, valid().Validate())
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := valid()
			tc.mutate(&c)
			err := c.Validate()
			require.Error(t, err)
			assert.True(t, apperrors.IsConfiguration(err))
			assert.Contains(t, err.Error(), tc.field)
		})
	}
}

func TestValidateFetch_RequiresToken(t *testing.T) {
	c := Default()
	c.Repos = []string{"octo/hello"}
	err := c.ValidateFetch()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "github.token")

	c.GitHub.Token = "t"
	assert.NoError(t, c.ValidateFetch())
}

func TestWriteSample(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "")
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, WriteSample(path, []string{"octo/hello"}))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, []string{"octo/hello"}, cfg.Repos)

	err = WriteSample(path, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsConfiguration(err))
}
