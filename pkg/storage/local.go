package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

var _ FileStore = (*Dir)(nil)

// Dir implements FileStore on a local directory.
type Dir struct {
	root string
}

// NewDir creates a Dir rooted at dir, creating it if needed.
func NewDir(dir string) (*Dir, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, err
	}
	return &Dir{root: abs}, nil
}

// Root returns the absolute directory path.
func (d *Dir) Root() string { return d.root }

func (d *Dir) resolve(path string) string {
	return filepath.Join(d.root, filepath.FromSlash(path))
}

// Read implements FileStore.
func (d *Dir) Read(_ context.Context, path string) (io.ReadCloser, error) {
	return os.Open(d.resolve(path))
}

// Write implements FileStore. Data goes to a temporary sibling that is
// renamed over path on Close.
func (d *Dir) Write(_ context.Context, path string) (io.WriteCloser, error) {
	full := d.resolve(path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, err
	}
	f, err := os.CreateTemp(filepath.Dir(full), "."+filepath.Base(full)+".*.tmp")
	if err != nil {
		return nil, err
	}
	return &atomicFile{File: f, dst: full}, nil
}

type atomicFile struct {
	*os.File
	dst string
}

func (f *atomicFile) Close() error {
	if err := f.File.Close(); err != nil {
		os.Remove(f.Name())
		return err
	}
	if err := os.Rename(f.Name(), f.dst); err != nil {
		os.Remove(f.Name())
		return err
	}
	return nil
}

// Delete implements FileStore.
func (d *Dir) Delete(_ context.Context, path string) error {
	err := os.Remove(d.resolve(path))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// Exists implements FileStore.
func (d *Dir) Exists(_ context.Context, path string) (bool, error) {
	_, err := os.Stat(d.resolve(path))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// List implements FileStore. Temporary files of in-flight writes are
// skipped.
func (d *Dir) List(ctx context.Context, prefix string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(d.root, func(p string, e fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			return nil
		}
		rel, err := filepath.Rel(d.root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if strings.HasPrefix(rel, prefix) {
			paths = append(paths, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Sort(paths)
	return paths, nil
}
