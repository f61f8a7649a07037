package transcribe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/haivivi/voxmemo/pkg/chunk"
	"github.com/haivivi/voxmemo/pkg/memo"
)

// fakeBackend answers every chunk with two timed segments naming the
// chunk file.
type fakeBackend struct {
	language  string
	reentrant bool
	delay     func(path string) time.Duration
	failOn    int // 1-based call number, 0 never
	onCall    func(n int)

	mu       sync.Mutex
	loads    []string
	calls    int
	inFlight int32
	maxIn    int32
	opts     []DecodingOptions
}

func (b *fakeBackend) Load(ctx context.Context, modelID string, progress func(float64)) error {
	b.mu.Lock()
	b.loads = append(b.loads, modelID)
	b.mu.Unlock()
	if modelID == "broken" {
		return errors.New("no such model")
	}
	for _, v := range []float64{0.25, 0.5, 0.4, 1} {
		if progress != nil {
			progress(v)
		}
	}
	return nil
}

func (b *fakeBackend) Transcribe(ctx context.Context, path string, opts DecodingOptions) ([]Transcription, error) {
	n := atomic.AddInt32(&b.inFlight, 1)
	defer atomic.AddInt32(&b.inFlight, -1)
	for {
		m := atomic.LoadInt32(&b.maxIn)
		if n <= m || atomic.CompareAndSwapInt32(&b.maxIn, m, n) {
			break
		}
	}

	b.mu.Lock()
	b.calls++
	call := b.calls
	b.opts = append(b.opts, opts)
	b.mu.Unlock()

	if b.onCall != nil {
		b.onCall(call)
	}
	if b.delay != nil {
		time.Sleep(b.delay(path))
	}
	if b.failOn == call {
		return nil, errors.New("out of memory")
	}
	name := strings.TrimSuffix(filepath.Base(path), ".wav")
	return []Transcription{{
		Language: b.language,
		Segments: []RawSegment{
			{Text: name + " start", Start: 100, End: 110},
			{Text: name + " middle", Start: 200, End: 210},
		},
	}}, nil
}

func (b *fakeBackend) Reentrant() bool { return b.reentrant }

// touchChunker writes empty chunk files so Split works without audio.
func touchChunker(dir string) *chunk.Chunker {
	return &chunk.Chunker{
		Dir: dir,
		Extractor: chunk.ExtractFunc(func(ctx context.Context, src memo.AudioSource, span chunk.Span, dst string) error {
			return os.WriteFile(dst, nil, 0o644)
		}),
	}
}

func source(t *testing.T, d time.Duration) memo.AudioSource {
	t.Helper()
	path := filepath.Join(t.TempDir(), "memo.wav")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	return memo.AudioSource{Path: path, Duration: d}
}

func assertNoChunkDirs(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil && !os.IsNotExist(err) {
		t.Fatal(err)
	}
	for _, e := range entries {
		t.Errorf("leftover %s", e.Name())
	}
}

func TestTranscribeWithoutModel(t *testing.T) {
	b := &fakeBackend{}
	e := NewEngine(b, Options{Chunker: touchChunker(t.TempDir())})

	res, err := e.Transcribe(context.Background(), Request{Source: source(t, time.Minute)})
	if !errors.Is(err, memo.ErrModelNotLoaded) {
		t.Fatalf("err = %v", err)
	}
	if res != nil {
		t.Error("result returned on failure")
	}
	if b.calls != 0 {
		t.Errorf("backend called %d times", b.calls)
	}
	if e.State() != StateFailed {
		t.Errorf("state = %v", e.State())
	}
}

func TestTranscribeLoadsAndReportsProgress(t *testing.T) {
	b := &fakeBackend{language: "sv"}
	var (
		states   []State
		progress []float64
	)
	e := NewEngine(b, Options{
		Chunker:    touchChunker(t.TempDir()),
		OnState:    func(s State) { states = append(states, s) },
		OnProgress: func(v float64) { progress = append(progress, v) },
	})

	res, err := e.Transcribe(context.Background(), Request{Source: source(t, 5*time.Minute), Model: "kb_whisper-base"})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if e.Loaded() != "kb_whisper-base" || len(b.loads) != 1 {
		t.Errorf("loaded %q after %v", e.Loaded(), b.loads)
	}

	want := []State{StateIdle, StateModelLoading, StateModelReady, StateChunking, StateTranscribing, StateMerging, StateDone}
	if fmt.Sprint(states) != fmt.Sprint(want) {
		t.Errorf("states = %v, want %v", states, want)
	}
	if progress[0] != 0 || progress[len(progress)-1] != 1 {
		t.Errorf("progress = %v", progress)
	}
	for i := 1; i < len(progress); i++ {
		if progress[i] < progress[i-1] {
			t.Fatalf("progress decreased: %v", progress)
		}
	}

	if res.Duration != 300 || res.Language != "sv" || res.Model != "kb_whisper-base" {
		t.Errorf("result = %+v", res)
	}
	if res.Text != "memo start memo middle" {
		t.Errorf("text = %q", res.Text)
	}

	// Same model again: no reload, progress restarts at 0.
	progress = nil
	if _, err := e.Transcribe(context.Background(), Request{Source: source(t, time.Minute), Model: "kb_whisper-base"}); err != nil {
		t.Fatal(err)
	}
	if len(b.loads) != 1 {
		t.Errorf("reloaded: %v", b.loads)
	}
	if progress[0] != 0 {
		t.Errorf("progress did not reset: %v", progress)
	}
}

func TestTranscribeLongSource(t *testing.T) {
	dir := t.TempDir()
	b := &fakeBackend{}
	e := NewEngine(b, Options{Chunker: touchChunker(dir)})
	if err := e.Load(context.Background(), "openai_whisper-base"); err != nil {
		t.Fatal(err)
	}

	src := source(t, 1200*time.Second)
	res, err := e.Transcribe(context.Background(), Request{Source: src})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if b.calls != 3 {
		t.Fatalf("backend calls = %d, want 3", b.calls)
	}
	if res.Duration != 1200 {
		t.Errorf("duration = %v", res.Duration)
	}
	if res.Language != "unknown" {
		t.Errorf("language = %q", res.Language)
	}

	wantStarts := []float64{100, 200, 610, 710, 1120, 1220}
	if len(res.Segments) != len(wantStarts) {
		t.Fatalf("segments = %+v", res.Segments)
	}
	for i, s := range res.Segments {
		if s.ID != i {
			t.Errorf("segment %d id = %d", i, s.ID)
		}
		if s.Start != min(wantStarts[i], 1200) {
			t.Errorf("segment %d start = %v, want %v", i, s.Start, wantStarts[i])
		}
	}
	if !strings.HasPrefix(res.Segments[2].Text, "chunk_1") {
		t.Errorf("segment 2 = %q", res.Segments[2].Text)
	}
	assertNoChunkDirs(t, dir)
	if _, err := os.Stat(src.Path); err != nil {
		t.Errorf("source removed: %v", err)
	}
}

func TestTranscribeBackendFailure(t *testing.T) {
	dir := t.TempDir()
	b := &fakeBackend{failOn: 2}
	e := NewEngine(b, Options{Chunker: touchChunker(dir)})

	res, err := e.Transcribe(context.Background(), Request{Source: source(t, 1200*time.Second), Model: "kb_whisper-small"})
	if !errors.Is(err, memo.ErrBackendFailure) {
		t.Fatalf("err = %v", err)
	}
	if res != nil {
		t.Error("partial result returned")
	}
	if b.calls != 2 {
		t.Errorf("calls = %d", b.calls)
	}
	if e.State() != StateFailed {
		t.Errorf("state = %v", e.State())
	}
	assertNoChunkDirs(t, dir)
}

func TestTranscribeLoadFailure(t *testing.T) {
	e := NewEngine(&fakeBackend{}, Options{Chunker: touchChunker(t.TempDir())})
	_, err := e.Transcribe(context.Background(), Request{Source: source(t, time.Minute), Model: "broken"})
	if !errors.Is(err, memo.ErrBackendFailure) {
		t.Fatalf("err = %v", err)
	}
	if e.Loaded() != "" {
		t.Errorf("loaded = %q", e.Loaded())
	}
}

func TestTranscribeCanceledBetweenChunks(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b := &fakeBackend{onCall: func(int) { cancel() }}
	e := NewEngine(b, Options{Chunker: touchChunker(dir)})
	if err := e.Load(context.Background(), "kb_whisper-base"); err != nil {
		t.Fatal(err)
	}

	_, err := e.Transcribe(ctx, Request{Source: source(t, 1200*time.Second)})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if errors.Is(err, memo.ErrBackendFailure) {
		t.Error("cancellation reported as backend failure")
	}
	if b.calls != 1 {
		t.Errorf("calls = %d, want 1", b.calls)
	}
	assertNoChunkDirs(t, dir)
}

func TestTranscribeLanguage(t *testing.T) {
	tests := []struct {
		name     string
		hint     string
		detected string
		model    string
		want     string
	}{
		{"hint wins", "en", "sv", "openai_whisper-base", "en"},
		{"detected", "", "da", "openai_whisper-base", "da"},
		{"model language", "", "", "kb_whisper-base", "sv"},
		{"unknown", "", "", "openai_whisper-small", "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &fakeBackend{language: tt.detected}
			e := NewEngine(b, Options{Chunker: touchChunker(t.TempDir())})
			res, err := e.Transcribe(context.Background(), Request{
				Source:   source(t, time.Minute),
				Language: tt.hint,
				Model:    tt.model,
			})
			if err != nil {
				t.Fatal(err)
			}
			if res.Language != tt.want {
				t.Errorf("language = %q, want %q", res.Language, tt.want)
			}
			if b.opts[0].Language != tt.hint {
				t.Errorf("backend hint = %q", b.opts[0].Language)
			}
		})
	}
}

func TestTranscribeConcurrentKeepsOrder(t *testing.T) {
	b := &fakeBackend{
		reentrant: true,
		// Earlier chunks finish last.
		delay: func(path string) time.Duration {
			switch filepath.Base(path) {
			case "chunk_0.wav":
				return 60 * time.Millisecond
			case "chunk_1.wav":
				return 30 * time.Millisecond
			}
			return 0
		},
	}
	e := NewEngine(b, Options{Chunker: touchChunker(t.TempDir()), Concurrency: 3})
	if err := e.Load(context.Background(), "kb_whisper-base"); err != nil {
		t.Fatal(err)
	}

	res, err := e.Transcribe(context.Background(), Request{Source: source(t, 1200*time.Second)})
	if err != nil {
		t.Fatal(err)
	}
	if atomic.LoadInt32(&b.maxIn) < 2 {
		t.Errorf("max in flight = %d, want concurrency", b.maxIn)
	}
	for i, s := range res.Segments {
		want := fmt.Sprintf("chunk_%d", i/2)
		if !strings.HasPrefix(s.Text, want) {
			t.Errorf("segment %d = %q, want prefix %q", i, s.Text, want)
		}
	}
}

func TestTranscribeSequentialByDefault(t *testing.T) {
	b := &fakeBackend{reentrant: false, delay: func(string) time.Duration { return 5 * time.Millisecond }}
	e := NewEngine(b, Options{Chunker: touchChunker(t.TempDir()), Concurrency: 4})
	if _, err := e.Transcribe(context.Background(), Request{Source: source(t, 1200*time.Second), Model: "kb_whisper-base"}); err != nil {
		t.Fatal(err)
	}
	if b.maxIn != 1 {
		t.Errorf("non-reentrant backend ran %d calls at once", b.maxIn)
	}
}

func TestStateString(t *testing.T) {
	if StateModelLoading.String() != "model-loading" || State(99).String() != "state(99)" {
		t.Error("unexpected state names")
	}
	if !StateDone.Terminal() || !StateFailed.Terminal() || StateMerging.Terminal() {
		t.Error("unexpected terminal states")
	}
}
