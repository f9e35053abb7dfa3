// Package corpus lists and reads the documents of a corpus directory.
// A document identifier is the path of a regular file directly inside the
// directory, joined with the directory path as given.
package corpus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// Unlimited disables the per-query document limit.
const Unlimited = -1

const defaultBatchSize = 256

// Enumerator lists document identifiers in directory order.
type Enumerator struct {
	dir       string
	batchSize int
	logger    *slog.Logger
}

func NewEnumerator(dir string) *Enumerator {
	return &Enumerator{
		dir:       dir,
		batchSize: defaultBatchSize,
		logger:    slog.Default().With("component", "corpus"),
	}
}

func (e *Enumerator) Dir() string { return e.dir }

// Walk calls fn with each document identifier, in the order the directory
// yields them, until limit identifiers have been visited (limit < 0 means no
// limit). Sub-directories are skipped. Entries are read in batches so very
// large directories are never listed all at once. It returns the number of
// identifiers passed to fn.
func (e *Enumerator) Walk(ctx context.Context, limit int, fn func(docID string) error) (int, error) {
	if limit == 0 {
		return 0, nil
	}
	f, err := os.Open(e.dir)
	if err != nil {
		return 0, fmt.Errorf("opening corpus directory: %w", err)
	}
	defer f.Close()

	visited := 0
	for {
		if err := ctx.Err(); err != nil {
			return visited, err
		}
		entries, err := f.ReadDir(e.batchSize)
		for _, entry := range entries {
			if !e.isDocument(entry) {
				continue
			}
			if err := fn(filepath.Join(e.dir, entry.Name())); err != nil {
				return visited, err
			}
			visited++
			if limit > 0 && visited >= limit {
				return visited, nil
			}
		}
		if errors.Is(err, io.EOF) {
			return visited, nil
		}
		if err != nil {
			return visited, fmt.Errorf("listing corpus directory: %w", err)
		}
	}
}

// isDocument accepts regular files and symlinks that resolve to one.
func (e *Enumerator) isDocument(entry fs.DirEntry) bool {
	switch {
	case entry.Type().IsRegular():
		return true
	case entry.Type()&fs.ModeSymlink != 0:
		info, err := os.Stat(filepath.Join(e.dir, entry.Name()))
		if err != nil {
			e.logger.Debug("skipping dangling symlink", "name", entry.Name(), "error", err)
			return false
		}
		return info.Mode().IsRegular()
	}
	return false
}

// Check verifies that the corpus directory exists and is a directory.
func (e *Enumerator) Check() error {
	info, err := os.Stat(e.dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", e.dir)
	}
	return nil
}
