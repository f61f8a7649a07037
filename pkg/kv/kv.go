// Package kv is a small ordered key-value store abstraction with a
// BadgerDB implementation for disk and a map implementation for tests.
//
// Keys are colon-joined paths such as "history:0192f3c4-...". Scans
// return entries in lexical key order.
package kv

import (
	"context"
	"errors"
	"iter"
	"strings"
)

// ErrNotFound is returned by Get for a missing key.
var ErrNotFound = errors.New("kv: not found")

// Separator joins key segments.
const Separator = ":"

// Key joins segments into a key.
func Key(segments ...string) string {
	return strings.Join(segments, Separator)
}

// Entry is one key-value pair yielded by Scan.
type Entry struct {
	Key   string
	Value []byte
}

// Store is safe for concurrent use.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	// Delete of a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Scan yields entries whose key starts with prefix. A non-empty prefix
	// is matched as a whole segment: "a" matches "a:b" but not "ab".
	Scan(ctx context.Context, prefix string) iter.Seq2[Entry, error]
	Close() error
}

func scanPrefix(prefix string) string {
	if prefix == "" || strings.HasSuffix(prefix, Separator) {
		return prefix
	}
	return prefix + Separator
}
