package transcribe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/haivivi/voxmemo/pkg/chunk"
	"github.com/haivivi/voxmemo/pkg/jsontime"
	"github.com/haivivi/voxmemo/pkg/memo"
)

// State is the stage of the request an Engine is working on.
type State int

const (
	StateIdle State = iota
	StateModelLoading
	StateModelReady
	StateChunking
	StateTranscribing
	StateMerging
	StateDone
	StateFailed
)

var stateNames = [...]string{
	StateIdle:         "idle",
	StateModelLoading: "model-loading",
	StateModelReady:   "model-ready",
	StateChunking:     "chunking",
	StateTranscribing: "transcribing",
	StateMerging:      "merging",
	StateDone:         "done",
	StateFailed:       "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// Terminal reports whether s ends a request.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// Request asks for one source to be transcribed.
type Request struct {
	Source memo.AudioSource
	// Language is a hint; empty means the backend detects it.
	Language string
	// Model is the model to use. Empty keeps the loaded model.
	Model string
}

// Options configures an Engine.
type Options struct {
	// Chunker cuts long sources. Defaults to chunk.New("").
	Chunker *chunk.Chunker
	// Decoding defaults to DefaultDecoding().
	Decoding *DecodingOptions
	// Concurrency is the number of chunks transcribed at once when the
	// backend is reentrant. Values below 2 transcribe sequentially.
	Concurrency int
	// OnState is called on every state transition.
	OnState func(State)
	// OnProgress receives non-decreasing values in [0, 1] within one
	// operation, starting at 0.
	OnProgress func(float64)
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Engine drives a Backend. Model loads and transcriptions never overlap.
type Engine struct {
	backend  Backend
	chunker  *chunk.Chunker
	decoding DecodingOptions
	opts     Options
	log      *slog.Logger

	mu     sync.Mutex
	loaded string

	stateMu sync.Mutex
	state   State
}

// NewEngine creates an Engine owning backend.
func NewEngine(backend Backend, opts Options) *Engine {
	e := &Engine{
		backend:  backend,
		chunker:  opts.Chunker,
		decoding: DefaultDecoding(),
		opts:     opts,
		log:      opts.Logger,
	}
	if e.chunker == nil {
		e.chunker = chunk.New("")
	}
	if opts.Decoding != nil {
		e.decoding = *opts.Decoding
	}
	if e.log == nil {
		e.log = slog.Default()
	}
	return e
}

// State returns the current state.
func (e *Engine) State() State {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	return e.state
}

func (e *Engine) setState(s State) {
	e.stateMu.Lock()
	e.state = s
	e.stateMu.Unlock()
	e.log.Debug("transcribe state", "state", s)
	if e.opts.OnState != nil {
		e.opts.OnState(s)
	}
}

// Loaded returns the id of the loaded model, or "".
func (e *Engine) Loaded() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loaded
}

// Load loads modelID unless it is already loaded.
func (e *Engine) Load(ctx context.Context, modelID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	p := e.newProgress()
	e.setState(StateIdle)
	if err := e.loadLocked(ctx, modelID, p.scale(0, 1)); err != nil {
		e.setState(StateFailed)
		return err
	}
	p.report(1)
	return nil
}

func (e *Engine) loadLocked(ctx context.Context, modelID string, progress func(float64)) error {
	if modelID == e.loaded {
		e.setState(StateModelReady)
		return nil
	}
	e.setState(StateModelLoading)
	start := time.Now()
	// The previous model is gone whether or not the new one loads.
	e.loaded = ""
	if err := e.backend.Load(ctx, modelID, progress); err != nil {
		e.log.Error("model load failed", "model", modelID, "err", err)
		return fmt.Errorf("transcribe: load %s: %w", modelID, backendErr(err))
	}
	e.loaded = modelID
	e.log.Info("model loaded", "model", modelID, "took", time.Since(start).Round(time.Millisecond))
	e.setState(StateModelReady)
	return nil
}

// Transcribe runs one request to completion. On failure no result is
// returned, chunk files are removed and the source is left untouched.
func (e *Engine) Transcribe(ctx context.Context, req Request) (*memo.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	res, err := e.transcribeLocked(ctx, req)
	if err != nil {
		e.setState(StateFailed)
		e.log.Warn("transcription failed", "source", filepath.Base(req.Source.Path), "err", err)
		return nil, err
	}
	e.setState(StateDone)
	return res, nil
}

// Progress budget of one request.
const (
	loadShare  = 0.2
	mergeShare = 0.05
)

func (e *Engine) transcribeLocked(ctx context.Context, req Request) (*memo.Result, error) {
	p := e.newProgress()
	e.setState(StateIdle)

	base := 0.0
	switch {
	case req.Model != "" && req.Model != e.loaded:
		if err := e.loadLocked(ctx, req.Model, p.scale(0, loadShare)); err != nil {
			return nil, err
		}
		base = loadShare
	case e.loaded == "":
		return nil, fmt.Errorf("transcribe: %w", memo.ErrModelNotLoaded)
	default:
		e.setState(StateModelReady)
	}
	p.report(base)

	e.setState(StateChunking)
	set, err := e.chunker.Split(ctx, req.Source)
	if err != nil {
		return nil, err
	}
	defer set.Release()

	e.setState(StateTranscribing)
	opts := e.decoding
	if req.Language != "" {
		opts.Language = req.Language
	}
	chunks := set.Chunks()
	outs := make([]chunkOutput, len(chunks))
	span := 1 - mergeShare - base
	onChunk := func(done int) { p.report(base + span*float64(done)/float64(len(chunks))) }

	if e.concurrent(len(chunks)) {
		err = e.runConcurrent(ctx, chunks, opts, outs, onChunk)
	} else {
		err = e.runSequential(ctx, chunks, opts, outs, onChunk)
	}
	if err != nil {
		return nil, err
	}

	e.setState(StateMerging)
	segments := mergeChunks(outs, opts.SkipSpecialTokens)
	res := &memo.Result{
		ID:        memo.NewID(),
		Text:      memo.JoinText(segments),
		Language:  resolveLanguage(req.Language, outs, e.loaded),
		Segments:  segments,
		Timestamp: jsontime.NowEpochMilli(),
		Duration:  req.Source.Duration.Seconds(),
		Model:     e.loaded,
		Source:    filepath.Base(req.Source.Path),
	}
	if res.Segments == nil {
		res.Segments = []memo.Segment{}
	}
	p.report(1)
	e.log.Info("transcription done",
		"source", res.Source,
		"chunks", len(chunks),
		"segments", len(segments),
		"language", res.Language,
	)
	return res, nil
}

func (e *Engine) concurrent(n int) bool {
	if n < 2 || e.opts.Concurrency < 2 {
		return false
	}
	r, ok := e.backend.(Reentrant)
	return ok && r.Reentrant()
}

func (e *Engine) runSequential(ctx context.Context, chunks []memo.AudioChunk, opts DecodingOptions, outs []chunkOutput, onChunk func(int)) error {
	for i, c := range chunks {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("transcribe: before %s: %w", c, err)
		}
		parts, err := e.backend.Transcribe(ctx, c.Path, opts)
		if err != nil {
			return fmt.Errorf("transcribe: %s: %w", c, backendErr(err))
		}
		outs[i] = chunkOutput{chunk: c, parts: parts}
		onChunk(i + 1)
	}
	return nil
}

func (e *Engine) runConcurrent(ctx context.Context, chunks []memo.AudioChunk, opts DecodingOptions, outs []chunkOutput, onChunk func(int)) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Concurrency)

	var (
		mu   sync.Mutex
		done int
	)
	for i, c := range chunks {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return fmt.Errorf("transcribe: before %s: %w", c, err)
			}
			parts, err := e.backend.Transcribe(gctx, c.Path, opts)
			if err != nil {
				return fmt.Errorf("transcribe: %s: %w", c, backendErr(err))
			}
			outs[i] = chunkOutput{chunk: c, parts: parts}
			mu.Lock()
			done++
			onChunk(done)
			mu.Unlock()
			return nil
		})
	}
	return g.Wait()
}

// backendErr tags err as a backend failure unless it is a cancellation or
// already classified.
func backendErr(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, memo.ErrBackendFailure) || errors.Is(err, memo.ErrModelNotLoaded) {
		return err
	}
	return fmt.Errorf("%w: %w", memo.ErrBackendFailure, err)
}

// resolveLanguage never overrides a caller hint. Otherwise the first
// language the backend declared wins, then the model's own language.
func resolveLanguage(hint string, outs []chunkOutput, model string) string {
	if hint != "" {
		return hint
	}
	for _, out := range outs {
		for _, part := range out.parts {
			if part.Language != "" {
				return part.Language
			}
		}
	}
	if m, ok := LookupModel(model); ok && m.Language != "" {
		return m.Language
	}
	return "unknown"
}

// progress forwards non-decreasing values to the OnProgress callback.
type progress struct {
	mu   sync.Mutex
	last float64
	fn   func(float64)
}

func (e *Engine) newProgress() *progress {
	p := &progress{fn: e.opts.OnProgress}
	if p.fn != nil {
		p.fn(0)
	}
	return p
}

func (p *progress) report(v float64) {
	v = clamp(v, 0, 1)
	p.mu.Lock()
	defer p.mu.Unlock()
	if v <= p.last {
		return
	}
	p.last = v
	if p.fn != nil {
		p.fn(v)
	}
}

// scale maps a sub-operation's [0, 1] onto [lo, hi].
func (p *progress) scale(lo, hi float64) func(float64) {
	return func(v float64) { p.report(lo + (hi-lo)*clamp(v, 0, 1)) }
}
