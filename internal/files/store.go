// Package files keeps uploaded images and receipts on local disk behind
// opaque paths.
package files

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/felixgeelhaar/caravan/internal/shared/infrastructure/security"
	"github.com/google/uuid"
)

// MaxUploadSize bounds a single stored file.
const MaxUploadSize = 10 << 20

var (
	ErrFileNotFound = errors.New("file not found")
	ErrFileTooLarge = errors.New("file too large")
	ErrInvalidPath  = errors.New("invalid file path")
)

// Info describes a stored file.
type Info struct {
	Path     string `json:"path"`
	URL      string `json:"url"`
	FileName string `json:"fileName"`
	Size     int64  `json:"size"`
}

// Store writes files below a base directory.
type Store struct {
	baseDir  string
	accessor Accessor
	now      func() time.Time
}

// NewStore creates the base directory if needed.
func NewStore(baseDir, baseURL string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o750); err != nil {
		return nil, fmt.Errorf("create file storage dir: %w", err)
	}
	return &Store{baseDir: baseDir, accessor: NewAccessor(baseURL), now: time.Now}, nil
}

// Accessor returns the URL builder for stored paths.
func (s *Store) Accessor() Accessor {
	return s.accessor
}

// Put stores r under a fresh path YYYY/MM/<uuid><ext>. Only the extension
// of filename survives.
func (s *Store) Put(ctx context.Context, filename string, r io.Reader) (Info, error) {
	now := s.now().UTC()
	ext := strings.ToLower(filepath.Ext(security.SanitizeFileName(filename)))
	rel := path.Join(fmt.Sprintf("%04d/%02d", now.Year(), now.Month()), uuid.NewString()+ext)

	target, err := security.ResolveInDir(s.baseDir, rel)
	if err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return Info{}, fmt.Errorf("create file dir: %w", err)
	}

	// #nosec G304 -- target is confined to baseDir above
	f, err := os.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return Info{}, fmt.Errorf("create file: %w", err)
	}
	n, err := io.Copy(f, io.LimitReader(&ctxReader{ctx: ctx, r: r}, MaxUploadSize+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > MaxUploadSize {
		err = ErrFileTooLarge
	}
	if err != nil {
		_ = os.Remove(target)
		return Info{}, err
	}

	return Info{Path: rel, URL: s.accessor.URL(rel), FileName: filename, Size: n}, nil
}

// Open returns a reader for a path previously returned by Put.
func (s *Store) Open(filePath string) (*os.File, error) {
	f, err := security.OpenInDir(s.baseDir, filePath)
	if errors.Is(err, security.ErrPathEscapes) {
		return nil, ErrInvalidPath
	}
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrFileNotFound
	}
	if err != nil {
		return nil, err
	}
	if st, err := f.Stat(); err != nil || st.IsDir() {
		_ = f.Close()
		return nil, ErrFileNotFound
	}
	return f, nil
}

// Accessor turns opaque paths into download URLs.
type Accessor struct {
	baseURL string
}

// NewAccessor creates an accessor rooted at baseURL.
func NewAccessor(baseURL string) Accessor {
	return Accessor{baseURL: strings.TrimRight(baseURL, "/")}
}

// URL returns "" for an empty path.
func (a Accessor) URL(filePath string) string {
	if filePath == "" {
		return ""
	}
	return a.baseURL + "/files/" + strings.TrimLeft(filePath, "/")
}

// URLs maps URL over paths.
func (a Accessor) URLs(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		out = append(out, a.URL(p))
	}
	return out
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
