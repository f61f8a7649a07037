package commands

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/haivivi/voxmemo/cmd/voxmemo/internal/config"
	"github.com/haivivi/voxmemo/pkg/chunk"
	"github.com/haivivi/voxmemo/pkg/cli"
	"github.com/haivivi/voxmemo/pkg/history"
	"github.com/haivivi/voxmemo/pkg/kv"
	"github.com/haivivi/voxmemo/pkg/memo"
	"github.com/haivivi/voxmemo/pkg/storage"
	"github.com/haivivi/voxmemo/pkg/transcribe"
	"github.com/haivivi/voxmemo/pkg/transcribe/gemini"
	"github.com/haivivi/voxmemo/pkg/transcribe/openai"
	"github.com/haivivi/voxmemo/pkg/transcribe/whispercpp"
)

// Test hooks.
var (
	testBackend transcribe.Backend
	testHistory history.Store
)

// openHistory opens the configured history store. The returned func
// releases it.
func openHistory(ctx context.Context) (history.Store, func() error, error) {
	noop := func() error { return nil }
	if testHistory != nil {
		return testHistory, noop, nil
	}
	h := settings.History
	switch h.Kind {
	case config.HistoryFiles, "":
		dir := h.Dir
		if dir == "" {
			dir = paths.TranscriptionsDir()
		}
		fs, err := storage.NewDir(dir)
		if err != nil {
			return nil, nil, fmt.Errorf("open history: %w: %w", memo.ErrPersistenceFailure, err)
		}
		return history.NewFiles(fs, logger), noop, nil
	case config.HistoryKV:
		dir := h.Dir
		if dir == "" {
			dir = paths.HistoryDB()
		}
		db, err := kv.OpenBadger(kv.BadgerOptions{Dir: dir, Logger: logger})
		if err != nil {
			return nil, nil, fmt.Errorf("open history: %w: %w", memo.ErrPersistenceFailure, err)
		}
		return history.NewKV(db, logger), db.Close, nil
	case config.HistoryS3:
		client, err := storage.NewS3Client(h.S3Config)
		if err != nil {
			return nil, nil, fmt.Errorf("open history: %w: %w", memo.ErrPersistenceFailure, err)
		}
		return history.NewFiles(storage.NewBucket(client, h.Bucket, h.Prefix), logger), noop, nil
	}
	return nil, nil, fmt.Errorf("unknown history kind %q", h.Kind)
}

// newBackend builds the backend named by name, or the configured one when
// name is empty.
func newBackend(ctx context.Context, name string) (transcribe.Backend, error) {
	if testBackend != nil {
		return testBackend, nil
	}
	if name == "" {
		name = settings.Backend
	}
	switch name {
	case "whispercpp", "":
		cfg, err := config.LoadService[whispercpp.Config](paths, "whispercpp")
		if err != nil {
			return nil, err
		}
		if cfg.ModelDir == "" {
			cfg.ModelDir = paths.ModelsDir()
		}
		return whispercpp.New(*cfg), nil
	case "openai":
		cfg, err := config.LoadService[openai.Config](paths, "openai")
		if err != nil {
			return nil, err
		}
		if cfg.APIKey == "" {
			cfg.APIKey = os.Getenv("OPENAI_API_KEY")
		}
		return openai.New(*cfg)
	case "gemini":
		cfg, err := config.LoadService[gemini.Config](paths, "gemini")
		if err != nil {
			return nil, err
		}
		if cfg.APIKey == "" {
			cfg.APIKey = os.Getenv("GEMINI_API_KEY")
		}
		return gemini.New(ctx, *cfg)
	}
	return nil, fmt.Errorf("unknown backend %q (want one of whispercpp, openai, gemini)", name)
}

// newEngine creates an engine over backend that reports progress on
// stderr.
func newEngine(backend transcribe.Backend, prompt string) (*transcribe.Engine, error) {
	cache := paths.CacheDir()
	if err := cli.Ensure(cache); err != nil {
		return nil, err
	}
	if n, err := chunk.Sweep(cache); err != nil {
		logger.Warn("sweep cache", "err", err)
	} else if n > 0 {
		logger.Info("removed stale chunk files", "count", n)
	}
	decoding := transcribe.DefaultDecoding()
	decoding.Prompt = prompt
	p := newProgressLine()
	return transcribe.NewEngine(backend, transcribe.Options{
		Chunker:     &chunk.Chunker{Dir: cache, Logger: logger},
		Decoding:    &decoding,
		Concurrency: settings.Concurrency,
		OnState:     p.state,
		OnProgress:  p.progress,
		Logger:      logger,
	}), nil
}

// progressLine redraws one status line on a terminal and stays silent
// otherwise.
type progressLine struct {
	tty bool

	mu    sync.Mutex
	stage transcribe.State
}

func newProgressLine() *progressLine {
	return &progressLine{tty: isTerminal(os.Stderr)}
}

func (p *progressLine) state(s transcribe.State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stage = s
	if !p.tty {
		return
	}
	if s.Terminal() {
		fmt.Fprint(os.Stderr, "\r\033[K")
		return
	}
	fmt.Fprintf(os.Stderr, "\r\033[K%s", s)
}

func (p *progressLine) progress(v float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.tty || p.stage.Terminal() {
		return
	}
	fmt.Fprintf(os.Stderr, "\r\033[K%s %s", p.stage, cli.FormatPercent(v))
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}

// saveResult stores r when save_transcriptions is on.
func saveResult(ctx context.Context, r *memo.Result) error {
	if !settings.SaveTranscriptions {
		return nil
	}
	store, closeStore, err := openHistory(ctx)
	if err != nil {
		return err
	}
	defer closeStore()
	return store.Save(ctx, r)
}
