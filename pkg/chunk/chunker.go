package chunk

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"google.golang.org/api/iterator"

	"github.com/haivivi/voxmemo/pkg/memo"
)

// Chunker cuts sources into chunk files under a temporary directory.
type Chunker struct {
	// Extractor writes each chunk. Defaults to AutoExtractor.
	Extractor Extractor
	// Dir is the parent of per-operation temporary directories. Defaults to
	// os.TempDir().
	Dir string
	// Logger defaults to slog.Default().
	Logger *slog.Logger

	policy policy
}

// New returns a Chunker with default settings rooted at dir.
func New(dir string) *Chunker {
	return &Chunker{Dir: dir}
}

func (c *Chunker) extractor() Extractor {
	if c.Extractor != nil {
		return c.Extractor
	}
	return AutoExtractor{}
}

func (c *Chunker) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

func (c *Chunker) plan(d time.Duration) []Span {
	if c.policy != (policy{}) {
		return c.policy.plan(d)
	}
	return Plan(d)
}

// Split plans src and extracts every chunk. A source short enough for one
// pass yields a Set holding src itself. On any failure no Set is returned
// and every file extracted so far is removed.
//
// The caller must call Release on the returned Set exactly once.
func (c *Chunker) Split(ctx context.Context, src memo.AudioSource) (*Set, error) {
	spans := c.plan(src.Duration)
	if len(spans) == 1 {
		return &Set{chunks: []memo.AudioChunk{{
			Index: 0,
			Start: 0,
			End:   src.Duration,
			Path:  src.Path,
		}}}, nil
	}

	if c.Dir != "" {
		if err := os.MkdirAll(c.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("chunk: create temp root: %w: %w", memo.ErrExtractionFailed, err)
		}
	}
	dir, err := os.MkdirTemp(c.Dir, "chunks-*")
	if err != nil {
		return nil, fmt.Errorf("chunk: create temp dir: %w: %w", memo.ErrExtractionFailed, err)
	}

	log := c.logger().With("source", filepath.Base(src.Path), "chunks", len(spans))
	log.Debug("splitting source", "duration", src.Duration)

	chunks := make([]memo.AudioChunk, 0, len(spans))
	for i, span := range spans {
		if err := ctx.Err(); err != nil {
			os.RemoveAll(dir)
			return nil, fmt.Errorf("chunk: split: %w", err)
		}
		dst := filepath.Join(dir, fmt.Sprintf("chunk_%d.wav", i))
		if err := c.extractor().Extract(ctx, src, span, dst); err != nil {
			os.RemoveAll(dir)
			log.Warn("chunk extraction failed", "index", i, "err", err)
			return nil, fmt.Errorf("chunk: extract %d: %w: %w", i, memo.ErrExtractionFailed, err)
		}
		chunks = append(chunks, memo.AudioChunk{
			Index: i,
			Start: span.Start,
			End:   span.End,
			Path:  dst,
		})
	}
	return &Set{chunks: chunks, dir: dir, logger: c.logger()}, nil
}

// Set is the ordered result of one Split.
type Set struct {
	chunks []memo.AudioChunk
	// dir is empty when the set references the source directly.
	dir    string
	logger *slog.Logger

	mu   sync.Mutex
	next int

	releaseOnce sync.Once
	releaseErr  error
}

// Chunks returns a copy of all chunks in index order.
func (s *Set) Chunks() []memo.AudioChunk {
	out := make([]memo.AudioChunk, len(s.chunks))
	copy(out, s.chunks)
	return out
}

// Len returns the number of chunks.
func (s *Set) Len() int { return len(s.chunks) }

// Dir returns the temporary directory owned by the set, or "" when the set
// is the unsplit source.
func (s *Set) Dir() string { return s.dir }

// Next returns chunks in index order, then iterator.Done.
func (s *Set) Next() (memo.AudioChunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.next >= len(s.chunks) {
		return memo.AudioChunk{}, iterator.Done
	}
	c := s.chunks[s.next]
	s.next++
	return c, nil
}

// Release deletes all chunk files owned by the set. It never touches the
// source. Calls after the first return the first call's result.
func (s *Set) Release() error {
	s.releaseOnce.Do(func() {
		if s.dir == "" {
			return
		}
		if err := os.RemoveAll(s.dir); err != nil {
			s.releaseErr = fmt.Errorf("chunk: release %s: %w", s.dir, err)
			if s.logger != nil {
				s.logger.Warn("chunk release failed", "dir", s.dir, "err", err)
			}
		}
	})
	return s.releaseErr
}
