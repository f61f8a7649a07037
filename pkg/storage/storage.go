// Package storage reads and writes whole files on a local directory or an
// S3 bucket behind one FileStore interface. History records use it so the
// same code can keep transcripts on disk or in object storage.
package storage

import (
	"context"
	"io"
)

// FileStore is a flat namespace of files.
//
// Paths are forward-slash separated and relative to the store root.
// Implementations must be safe for concurrent use.
type FileStore interface {
	// Read opens the named file. A missing file yields an error wrapping
	// os.ErrNotExist.
	Read(ctx context.Context, path string) (io.ReadCloser, error)

	// Write opens the named file for writing. The content becomes visible
	// only after Close returns nil; a failed write leaves any previous
	// content in place.
	Write(ctx context.Context, path string) (io.WriteCloser, error)

	// Delete removes the named file. Deleting a missing file is not an
	// error.
	Delete(ctx context.Context, path string) error

	// Exists reports whether the named file exists.
	Exists(ctx context.Context, path string) (bool, error)

	// List returns the paths under prefix in lexical order.
	List(ctx context.Context, prefix string) ([]string, error)
}
