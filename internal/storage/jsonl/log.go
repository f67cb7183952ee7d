// Package jsonl implements the append-only raw log as a JSON-lines file.
package jsonl

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/kurihiro0119/github-traffic-history/internal/domain"
	apperrors "github.com/kurihiro0119/github-traffic-history/internal/errors"
	"github.com/kurihiro0119/github-traffic-history/internal/storage"
)

// Log appends records of type T to a single file, one JSON document per line
type Log[T storage.Record] struct {
	path string
	mu   sync.Mutex
}

var (
	_ storage.AppendLog[domain.SnapshotRecord]   = (*Log[domain.SnapshotRecord])(nil)
	_ storage.AppendLog[domain.PopularityRecord] = (*Log[domain.PopularityRecord])(nil)
)

// New returns a log stored at path. The file is created on first append.
func New[T storage.Record](path string) *Log[T] {
	return &Log[T]{path: path}
}

// Path returns the file backing the log
func (l *Log[T]) Path() string {
	return l.path
}

// Append encodes rec and writes it as one line at the end of the file.
// Each record is written with a single write call on an O_APPEND descriptor and synced.
// Existing content is never modified.
func (l *Log[T]) Append(ctx context.Context, rec T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := rec.Validate(); err != nil {
		return apperrors.NewInternalError("refusing to append invalid record", err)
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return apperrors.NewInternalError("encode record", err)
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return apperrors.NewStorageIOError("create "+dir, err)
		}
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return apperrors.NewStorageIOError("open "+l.path, err)
	}
	torn, err := endsTorn(f)
	if err != nil {
		f.Close()
		return apperrors.NewStorageIOError("stat "+l.path, err)
	}
	if torn {
		// start a fresh line so the torn tail stays isolated
		data = append([]byte{'\n'}, data...)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return apperrors.NewStorageIOError("append "+l.path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return apperrors.NewStorageIOError("sync "+l.path, err)
	}
	if err := f.Close(); err != nil {
		return apperrors.NewStorageIOError("close "+l.path, err)
	}
	return nil
}

// endsTorn reports whether the file is non-empty and its last byte is not a newline
func endsTorn(f *os.File) (bool, error) {
	info, err := f.Stat()
	if err != nil {
		return false, err
	}
	if info.Size() == 0 {
		return false, nil
	}
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, info.Size()-1); err != nil {
		return false, err
	}
	return last[0] != '\n', nil
}

// ReadAll decodes every line of the file in order.
// Lines that do not decode or validate are skipped and reported as MALFORMED_RECORD errors;
// this includes a trailing line without a newline, which is treated as a torn write.
func (l *Log[T]) ReadAll(ctx context.Context) ([]T, []error, error) {
	records := []T{}
	var skipped []error

	err := l.Scan(ctx, func(line Line) error {
		if line.Torn {
			skipped = append(skipped, apperrors.NewMalformedRecordError(l.path, line.Number, ErrTornLine))
			return nil
		}
		var rec T
		if err := json.Unmarshal(line.Data, &rec); err != nil {
			skipped = append(skipped, apperrors.NewMalformedRecordError(l.path, line.Number, err))
			return nil
		}
		if err := rec.Validate(); err != nil {
			skipped = append(skipped, apperrors.NewMalformedRecordError(l.path, line.Number, err))
			return nil
		}
		records = append(records, rec)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return records, skipped, nil
}

// ErrTornLine marks a final line that was not newline terminated
var ErrTornLine = errors.New("incomplete trailing line")

// Line is one raw line of the log
type Line struct {
	Number int
	Data   []byte
	// Torn is set for a non-empty final line without a newline; Data is still filled in
	Torn bool
}

// Scan calls fn with each non-blank line in order, trimmed of surrounding whitespace.
// A missing file scans as empty.
func (l *Log[T]) Scan(ctx context.Context, fn func(line Line) error) error {
	f, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return apperrors.NewStorageIOError("open "+l.path, err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	for lineNo := 1; ; lineNo++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, readErr := r.ReadBytes('\n')
		eof := errors.Is(readErr, io.EOF)
		if readErr != nil && !eof {
			return apperrors.NewStorageIOError(fmt.Sprintf("read %s:%d", l.path, lineNo), readErr)
		}
		data = bytes.TrimSpace(data)
		if len(data) > 0 {
			if err := fn(Line{Number: lineNo, Data: data, Torn: eof}); err != nil {
				return err
			}
		}
		if eof {
			return nil
		}
	}
}
