package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/haivivi/voxmemo/pkg/kv"
	"github.com/haivivi/voxmemo/pkg/memo"
)

var _ Store = (*KV)(nil)

const kvPrefix = "history"

// KV stores msgpack records under history:<id>.
type KV struct {
	store kv.Store
	log   *slog.Logger
}

// NewKV creates a KV store.
func NewKV(store kv.Store, log *slog.Logger) *KV {
	if log == nil {
		log = slog.Default()
	}
	return &KV{store: store, log: log}
}

func (s *KV) Save(ctx context.Context, r *memo.Result) error {
	if err := validID(r.ID); err != nil {
		return err
	}
	data, err := msgpack.Marshal(r)
	if err != nil {
		return persistErr("encode", r.ID, err)
	}
	if err := s.store.Set(ctx, kv.Key(kvPrefix, r.ID), data); err != nil {
		return persistErr("save", r.ID, err)
	}
	return nil
}

func (s *KV) Get(ctx context.Context, id string) (*memo.Result, error) {
	if err := validID(id); err != nil {
		return nil, err
	}
	data, err := s.store.Get(ctx, kv.Key(kvPrefix, id))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, fmt.Errorf("history: %s: %w", id, memo.ErrNotFound)
	}
	if err != nil {
		return nil, persistErr("read", id, err)
	}
	return decode(id, data)
}

func decode(key string, data []byte) (*memo.Result, error) {
	var r memo.Result
	if err := msgpack.Unmarshal(data, &r); err != nil {
		return nil, persistErr("decode", key, err)
	}
	return &r, nil
}

func (s *KV) List(ctx context.Context) ([]*memo.Result, error) {
	var rs []*memo.Result
	for e, err := range s.store.Scan(ctx, kvPrefix) {
		if err != nil {
			return nil, persistErr("list", "", err)
		}
		r, err := decode(e.Key, e.Value)
		if err != nil {
			s.log.Warn("skipping unreadable transcription", "key", e.Key, "err", err)
			continue
		}
		rs = append(rs, r)
	}
	sortNewest(rs)
	return rs, nil
}

func (s *KV) Delete(ctx context.Context, id string) error {
	if err := validID(id); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, kv.Key(kvPrefix, id)); err != nil {
		return persistErr("delete", id, err)
	}
	return nil
}
