package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/haivivi/voxmemo/pkg/memo"
	"github.com/haivivi/voxmemo/pkg/storage"
)

var _ Store = (*Files)(nil)

const fileExt = ".json"

// Files stores each result as <id>.json.
type Files struct {
	fs  storage.FileStore
	log *slog.Logger
}

// NewFiles creates a Files store on fs.
func NewFiles(fs storage.FileStore, log *slog.Logger) *Files {
	if log == nil {
		log = slog.Default()
	}
	return &Files{fs: fs, log: log}
}

func (f *Files) Save(ctx context.Context, r *memo.Result) error {
	if err := validID(r.ID); err != nil {
		return err
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return persistErr("encode", r.ID, err)
	}
	w, err := f.fs.Write(ctx, r.ID+fileExt)
	if err != nil {
		return persistErr("save", r.ID, err)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return persistErr("save", r.ID, err)
	}
	if err := w.Close(); err != nil {
		return persistErr("save", r.ID, err)
	}
	return nil
}

func (f *Files) Get(ctx context.Context, id string) (*memo.Result, error) {
	if err := validID(id); err != nil {
		return nil, err
	}
	return f.read(ctx, id+fileExt)
}

func (f *Files) read(ctx context.Context, path string) (*memo.Result, error) {
	rc, err := f.fs.Read(ctx, path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("history: %s: %w", strings.TrimSuffix(path, fileExt), memo.ErrNotFound)
	}
	if err != nil {
		return nil, persistErr("read", path, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, persistErr("read", path, err)
	}
	var r memo.Result
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, persistErr("decode", path, err)
	}
	if r.ID == "" {
		return nil, persistErr("decode", path, errors.New("missing id"))
	}
	return &r, nil
}

func (f *Files) List(ctx context.Context) ([]*memo.Result, error) {
	paths, err := f.fs.List(ctx, "")
	if err != nil {
		return nil, persistErr("list", "", err)
	}
	var rs []*memo.Result
	for _, p := range paths {
		if !strings.HasSuffix(p, fileExt) || strings.Contains(p, "/") {
			continue
		}
		r, err := f.read(ctx, p)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			f.log.Warn("skipping unreadable transcription", "file", p, "err", err)
			continue
		}
		rs = append(rs, r)
	}
	sortNewest(rs)
	return rs, nil
}

func (f *Files) Delete(ctx context.Context, id string) error {
	if err := validID(id); err != nil {
		return err
	}
	if err := f.fs.Delete(ctx, id+fileExt); err != nil {
		return persistErr("delete", id, err)
	}
	return nil
}
