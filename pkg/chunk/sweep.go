package chunk

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// Sweep removes leftovers of interrupted runs from dir: chunks-* temporary
// directories, loose chunk_* files and unfinished *.part recordings. It
// returns the number of entries removed.
func Sweep(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var (
		n    int
		errs []error
	)
	for _, e := range entries {
		name := e.Name()
		stale := (e.IsDir() && strings.HasPrefix(name, "chunks-")) ||
			(!e.IsDir() && strings.HasPrefix(name, "chunk_")) ||
			(!e.IsDir() && strings.HasSuffix(name, ".part"))
		if !stale {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dir, name)); err != nil {
			errs = append(errs, err)
			continue
		}
		n++
	}
	return n, errors.Join(errs...)
}
