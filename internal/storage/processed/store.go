// Package processed stores derived series as one JSON file per repository and metric.
package processed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kurihiro0119/github-traffic-history/internal/domain"
	apperrors "github.com/kurihiro0119/github-traffic-history/internal/errors"
	"github.com/kurihiro0119/github-traffic-history/internal/storage"
)

const (
	fileExt          = ".json"
	popularitySuffix = ".popularity"
)

// fileStore implements storage.ProcessedStore on a directory
type fileStore struct {
	dir string
}

// NewFileStore returns a processed store rooted at dir. The directory is created on first write.
func NewFileStore(dir string) storage.ProcessedStore {
	return &fileStore{dir: dir}
}

// SeriesFile returns the base name of the file holding a canonical series
func SeriesFile(repo domain.Repository, metric domain.Metric) string {
	return repo.FileStem() + "." + string(metric) + fileExt
}

// PopularityFile returns the base name of the file holding a popularity series
func PopularityFile(repo domain.Repository) string {
	return repo.FileStem() + popularitySuffix + fileExt
}

// WriteSeries overwrites the file for the series' repository/metric
func (s *fileStore) WriteSeries(ctx context.Context, series *domain.Series) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	out := *series
	if out.Entries == nil {
		out.Entries = []domain.DailyCount{}
	}
	return s.writeJSON(SeriesFile(series.Repository, series.Metric), &out)
}

// ReadSeries loads the canonical series for repo/metric
func (s *fileStore) ReadSeries(ctx context.Context, repo domain.Repository, metric domain.Metric) (*domain.Series, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var series domain.Series
	if err := s.readJSON(SeriesFile(repo, metric), &series); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("series %s %s", repo, metric))
		}
		return nil, err
	}
	return &series, nil
}

// WritePopularity overwrites the popularity file for the series' repository
func (s *fileStore) WritePopularity(ctx context.Context, series *domain.PopularitySeries) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	out := *series
	if out.Points == nil {
		out.Points = []domain.PopularityPoint{}
	}
	return s.writeJSON(PopularityFile(series.Repository), &out)
}

// ReadPopularity loads the popularity series for repo
func (s *fileStore) ReadPopularity(ctx context.Context, repo domain.Repository) (*domain.PopularitySeries, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var series domain.PopularitySeries
	if err := s.readJSON(PopularityFile(repo), &series); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("popularity %s", repo))
		}
		return nil, err
	}
	return &series, nil
}

// List reads the header of every series file in the directory.
// Repository names may contain dots, so keys come from file content rather than file names.
func (s *fileStore) List(ctx context.Context) ([]domain.SeriesKey, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []domain.SeriesKey{}, nil
		}
		return nil, apperrors.NewStorageIOError("list "+s.dir, err)
	}

	keys := []domain.SeriesKey{}
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, fileExt) || strings.HasSuffix(name, popularitySuffix+fileExt) {
			continue
		}
		var header struct {
			Repository domain.Repository `json:"repository"`
			Metric     domain.Metric     `json:"metric"`
		}
		if err := s.readJSON(name, &header); err != nil {
			return nil, err
		}
		if header.Repository.IsZero() || !header.Metric.Valid() {
			continue
		}
		keys = append(keys, domain.SeriesKey{Repository: header.Repository, Metric: header.Metric})
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys, nil
}

// writeJSON writes v as indented JSON via a temp file and rename, so readers never see a partial file
func (s *fileStore) writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return apperrors.NewInternalError("encode "+name, err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return apperrors.NewStorageIOError("create "+s.dir, err)
	}
	tmp, err := os.CreateTemp(s.dir, "."+name+".*")
	if err != nil {
		return apperrors.NewStorageIOError("create temp for "+name, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return apperrors.NewStorageIOError("write "+name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return apperrors.NewStorageIOError("close "+name, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return apperrors.NewStorageIOError("chmod "+name, err)
	}
	if err := os.Rename(tmpName, filepath.Join(s.dir, name)); err != nil {
		os.Remove(tmpName)
		return apperrors.NewStorageIOError("replace "+name, err)
	}
	return nil
}

func (s *fileStore) readJSON(name string, v any) error {
	path := filepath.Join(s.dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return apperrors.NewStorageIOError("read "+path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return apperrors.NewStorageIOError("decode "+path, err)
	}
	return nil
}
