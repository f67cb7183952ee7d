package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	apperrors "github.com/kurihiro0119/github-traffic-history/internal/errors"
)

const sampleHeader = `# github-traffic-history configuration.
# Every key can be overridden with a TRAFFIC_ environment variable,
# e.g. TRAFFIC_FETCH_CONCURRENCY=4. The token falls back to GITHUB_TOKEN.
`

// WriteSample writes a starter configuration to path. An existing file is never overwritten.
func WriteSample(path string, repos []string) error {
	if _, err := os.Stat(path); err == nil {
		return apperrors.NewConfigurationError("config", fmt.Sprintf("%s already exists", path))
	} else if !errors.Is(err, fs.ErrNotExist) {
		return apperrors.NewStorageIOError("stat "+path, err)
	}

	cfg := Default()
	cfg.Repos = repos
	if len(cfg.Repos) == 0 {
		cfg.Repos = []string{"owner/name"}
	}

	body, err := yaml.Marshal(cfg)
	if err != nil {
		return apperrors.NewInternalError("encode sample config", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return apperrors.NewStorageIOError("create "+dir, err)
		}
	}
	if err := os.WriteFile(path, append([]byte(sampleHeader), body...), 0o600); err != nil {
		return apperrors.NewStorageIOError("write "+path, err)
	}
	return nil
}
