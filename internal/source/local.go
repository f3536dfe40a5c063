package source

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/franz/sparkify-etl/internal/util"
)

// Local finds files on the local filesystem
type Local struct {
	Pattern string
}

// Find walks root recursively and returns the absolute paths of matching
// files in walk order. An unreadable directory aborts the walk.
func (l *Local) Find(ctx context.Context, root string) ([]string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", root, err)
	}

	pattern := l.Pattern
	if pattern == "" {
		pattern = DefaultPattern
	}

	files := make([]string, 0)
	walkErr := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		// Check for cancellation
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			return err
		}

		if d.IsDir() {
			return nil
		}

		ok, err := filepath.Match(pattern, d.Name())
		if err != nil {
			return err
		}
		if ok {
			files = append(files, path)
		}
		return nil
	})

	if walkErr != nil {
		return nil, fmt.Errorf("walk error: %w", walkErr)
	}

	util.DebugLog("Found %d files matching %s under %s", len(files), pattern, absRoot)
	return files, nil
}

// Open opens a local file
func (l *Local) Open(_ context.Context, path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return f, nil
}
