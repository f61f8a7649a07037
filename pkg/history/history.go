// Package history persists transcription results.
//
// Two stores are provided: Files keeps one JSON document per result on a
// storage.FileStore, KV keeps msgpack records in a kv.Store. Both list
// newest first and skip records they cannot decode.
package history

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/haivivi/voxmemo/pkg/memo"
)

// Store saves and loads results by id.
type Store interface {
	Save(ctx context.Context, r *memo.Result) error
	// Get returns an error wrapping memo.ErrNotFound for unknown ids.
	Get(ctx context.Context, id string) (*memo.Result, error)
	// List returns all readable results, newest first.
	List(ctx context.Context) ([]*memo.Result, error)
	// Delete of an unknown id is not an error.
	Delete(ctx context.Context, id string) error
}

func validID(id string) error {
	if id == "" || strings.ContainsAny(id, `/\:`) || strings.HasPrefix(id, ".") {
		return fmt.Errorf("history: invalid id %q: %w", id, memo.ErrPersistenceFailure)
	}
	return nil
}

// sortNewest orders results by timestamp descending, breaking ties by id
// so listings are stable.
func sortNewest(rs []*memo.Result) {
	slices.SortFunc(rs, func(a, b *memo.Result) int {
		if c := b.Timestamp.Compare(a.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
}

func persistErr(op, id string, err error) error {
	return fmt.Errorf("history: %s %s: %w: %w", op, id, memo.ErrPersistenceFailure, err)
}
