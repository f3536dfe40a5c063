// Package source locates data files under a root and opens them for reading.
// Roots are local directories or s3://bucket/prefix URIs.
package source

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/franz/sparkify-etl/internal/util"
)

// DefaultPattern matches the data files of both trees
const DefaultPattern = "*.json"

// Source finds data files and opens them
type Source interface {
	// Find returns every file under root whose base name matches the
	// source's pattern, in walk (or listing) order.
	Find(ctx context.Context, root string) ([]string, error)

	// Open opens a path previously returned by Find
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}

// Options configures the sources built by New
type Options struct {
	Pattern string
	S3      S3Config
}

// Mux dispatches to the local filesystem or S3 based on the path scheme.
// The S3 client is only created once an s3:// path is seen.
type Mux struct {
	local *Local
	s3    *S3
	newS3 func(ctx context.Context) (*S3, error)
}

// New builds a Mux for the given options
func New(opts Options) (*Mux, error) {
	pattern, err := validatePattern(opts.Pattern)
	if err != nil {
		return nil, err
	}

	return &Mux{
		local: &Local{Pattern: pattern},
		newS3: func(ctx context.Context) (*S3, error) {
			return NewS3(ctx, opts.S3, pattern)
		},
	}, nil
}

// Find implements Source
func (m *Mux) Find(ctx context.Context, root string) ([]string, error) {
	if IsS3(root) {
		s3src, err := m.s3Source(ctx)
		if err != nil {
			return nil, err
		}
		return s3src.Find(ctx, root)
	}
	return m.local.Find(ctx, root)
}

// Open implements Source
func (m *Mux) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	if IsS3(path) {
		s3src, err := m.s3Source(ctx)
		if err != nil {
			return nil, err
		}
		return s3src.Open(ctx, path)
	}
	return m.local.Open(ctx, path)
}

func (m *Mux) s3Source(ctx context.Context) (*S3, error) {
	if m.s3 == nil {
		s, err := m.newS3(ctx)
		if err != nil {
			return nil, err
		}
		m.s3 = s
	}
	return m.s3, nil
}

// IsS3 reports whether a root or path is an s3:// URI
func IsS3(path string) bool {
	return strings.HasPrefix(path, s3Scheme)
}

func validatePattern(pattern string) (string, error) {
	if pattern == "" {
		return DefaultPattern, nil
	}
	if strings.ContainsRune(pattern, '/') {
		return "", fmt.Errorf("pattern %q must match base names only: %w", pattern, util.ErrInvalidConfig)
	}
	if _, err := filepath.Match(pattern, ""); err != nil {
		return "", fmt.Errorf("pattern %q: %v: %w", pattern, err, util.ErrInvalidConfig)
	}
	return pattern, nil
}
