package acquire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const uploadPattern = "docinator-upload-*"

// Store persists uploads into a directory, one uniquely named file each.
type Store struct {
	dir      string
	maxBytes int64
	log      *slog.Logger
}

// NewStore creates dir if needed. An empty dir means os.TempDir().
// maxBytes <= 0 disables the size limit.
func NewStore(dir string, maxBytes int64, log *slog.Logger) (*Store, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("%w: unable to create upload dir %s: %v", ErrIO, dir, err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Store{dir: dir, maxBytes: maxBytes, log: log}, nil
}

// Dir returns the upload directory.
func (s *Store) Dir() string {
	return s.dir
}

// Upload is a persisted upload. Call Release once the document was converted.
type Upload struct {
	source Source
	size   int64
	once   sync.Once
	err    error
}

// Source returns the document source backed by the upload file.
func (u *Upload) Source() Source {
	return u.source
}

// Size is the number of bytes written.
func (u *Upload) Size() int64 {
	return u.size
}

// Release removes the file. It is safe to call more than once.
func (u *Upload) Release() error {
	u.once.Do(func() {
		err := os.Remove(u.source.Path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			u.err = fmt.Errorf("%w: unable to remove %s: %v", ErrIO, u.source.Path, err)
		}
	})
	return u.err
}

// Save copies r into a new file. The original file extension is kept so
// format detection can fall back on it. On failure nothing is left behind.
func (s *Store) Save(ctx context.Context, r io.Reader, filename, contentType string) (*Upload, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: no file content", ErrIO)
	}
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	if strings.ContainsAny(ext, `*/\`) {
		ext = ""
	}

	f, err := os.CreateTemp(s.dir, uploadPattern+ext)
	if err != nil {
		return nil, fmt.Errorf("%w: unable to create upload file: %v", ErrIO, err)
	}
	path := f.Name()
	fail := func(cause error) (*Upload, error) {
		f.Close()
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			s.log.WarnContext(ctx, "Unable to remove partial upload",
				"path", path,
				"error", rmErr)
		}
		return nil, cause
	}

	src := r
	if s.maxBytes > 0 {
		// one extra byte tells us the limit was exceeded
		src = io.LimitReader(r, s.maxBytes+1)
	}
	n, err := io.Copy(f, src)
	if err != nil {
		return fail(fmt.Errorf("%w: unable to write upload: %v", ErrIO, err))
	}
	if s.maxBytes > 0 && n > s.maxBytes {
		return fail(fmt.Errorf("%w: more than %d bytes", ErrTooLarge, s.maxBytes))
	}
	if err := f.Close(); err != nil {
		return fail(fmt.Errorf("%w: unable to close upload: %v", ErrIO, err))
	}

	s.log.DebugContext(ctx, "Upload stored",
		"path", path,
		"filename", filename,
		"bytes", n)

	return &Upload{
		source: Source{
			Path:        path,
			Filename:    filepath.Base(filename),
			ContentType: contentType,
		},
		size: n,
	}, nil
}

// Sweep removes upload files older than maxAge and returns how many were
// deleted. Files of in-flight requests are younger than any sane maxAge.
func (s *Store) Sweep(ctx context.Context, maxAge time.Duration, now time.Time) (int, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, uploadPattern))
	if err != nil {
		return 0, err
	}
	removed := 0
	var errs []error
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				errs = append(errs, err)
			}
			continue
		}
		if info.IsDir() || now.Sub(info.ModTime()) < maxAge {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		removed++
		s.log.InfoContext(ctx, "Removed stale upload",
			"path", path,
			"ageSeconds", now.Sub(info.ModTime()).Seconds())
	}
	return removed, errors.Join(errs...)
}
