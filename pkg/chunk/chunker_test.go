package chunk

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"google.golang.org/api/iterator"

	"github.com/haivivi/voxmemo/pkg/audio/pcm"
	"github.com/haivivi/voxmemo/pkg/audio/wav"
	"github.com/haivivi/voxmemo/pkg/memo"
)

// small shrinks the policy so tests can use seconds of audio.
var small = policy{max: 2 * time.Second, length: time.Second, overlap: 250 * time.Millisecond}

func writeWAV(t *testing.T, dir string, d time.Duration) memo.AudioSource {
	t.Helper()
	path := filepath.Join(dir, "source.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	w, err := wav.NewWriter(f, pcm.L16Mono16K)
	if err != nil {
		t.Fatal(err)
	}
	samples := make([]int16, pcm.L16Mono16K.SamplesInDuration(d))
	for i := range samples {
		samples[i] = int16(i % 1000)
	}
	if err := w.Write(pcm.L16Mono16K.SamplesChunk(samples)); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return memo.AudioSource{Path: path, Duration: d, Format: pcm.L16Mono16K}
}

func tempDirs(t *testing.T, root string) []string {
	t.Helper()
	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatal(err)
	}
	var out []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "chunks-") {
			out = append(out, e.Name())
		}
	}
	return out
}

func TestSplitSingle(t *testing.T) {
	src := writeWAV(t, t.TempDir(), time.Second)
	c := &Chunker{Dir: t.TempDir(), policy: small}

	set, err := c.Split(context.Background(), src)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if set.Len() != 1 || set.Dir() != "" {
		t.Fatalf("set = %d chunks in %q", set.Len(), set.Dir())
	}
	ch := set.Chunks()[0]
	if ch.Path != src.Path || ch.Start != 0 || ch.End != time.Second {
		t.Errorf("chunk = %+v", ch)
	}
	if err := set.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := os.Stat(src.Path); err != nil {
		t.Errorf("release removed the source: %v", err)
	}
}

func TestSplitMulti(t *testing.T) {
	src := writeWAV(t, t.TempDir(), 3*time.Second)
	root := t.TempDir()
	c := &Chunker{Dir: root, policy: small}

	set, err := c.Split(context.Background(), src)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	want := small.plan(3 * time.Second)
	if set.Len() != len(want) || set.Len() != 4 {
		t.Fatalf("got %d chunks, want %d", set.Len(), len(want))
	}

	for i := 0; ; i++ {
		ch, err := set.Next()
		if errors.Is(err, iterator.Done) {
			if i != len(want) {
				t.Fatalf("iterated %d chunks", i)
			}
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		if ch.Index != i || ch.Start != want[i].Start || ch.End != want[i].End {
			t.Errorf("chunk %d = %+v, want span %v", i, ch, want[i])
		}
		got, err := Probe(context.Background(), ch.Path)
		if err != nil {
			t.Fatalf("Probe chunk %d: %v", i, err)
		}
		if got.Duration != want[i].Duration() {
			t.Errorf("chunk %d audio = %v, want %v", i, got.Duration, want[i].Duration())
		}
	}

	if err := set.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := set.Release(); err != nil {
		t.Fatalf("second Release: %v", err)
	}
	if dirs := tempDirs(t, root); len(dirs) != 0 {
		t.Errorf("leftover temp dirs: %v", dirs)
	}
	if _, err := os.Stat(src.Path); err != nil {
		t.Errorf("source removed: %v", err)
	}
}

func TestSplitExtractionFailure(t *testing.T) {
	src := writeWAV(t, t.TempDir(), 3*time.Second)
	root := t.TempDir()
	boom := errors.New("disk full")
	c := &Chunker{
		Dir:    root,
		policy: small,
		Extractor: ExtractFunc(func(ctx context.Context, src memo.AudioSource, span Span, dst string) error {
			if strings.HasSuffix(dst, "chunk_2.wav") {
				return boom
			}
			return WAVExtractor{}.Extract(ctx, src, span, dst)
		}),
	}

	set, err := c.Split(context.Background(), src)
	if set != nil {
		t.Fatal("partial set returned")
	}
	if !errors.Is(err, memo.ErrExtractionFailed) || !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if dirs := tempDirs(t, root); len(dirs) != 0 {
		t.Errorf("leftover temp dirs: %v", dirs)
	}
}

func TestSplitCanceled(t *testing.T) {
	src := writeWAV(t, t.TempDir(), 3*time.Second)
	root := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	c := &Chunker{
		Dir:    root,
		policy: small,
		Extractor: ExtractFunc(func(ctx context.Context, src memo.AudioSource, span Span, dst string) error {
			cancel()
			return WAVExtractor{}.Extract(context.Background(), src, span, dst)
		}),
	}

	if _, err := c.Split(ctx, src); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if dirs := tempDirs(t, root); len(dirs) != 0 {
		t.Errorf("leftover temp dirs: %v", dirs)
	}
}

func TestProbeMissing(t *testing.T) {
	_, err := Probe(context.Background(), filepath.Join(t.TempDir(), "nope.wav"))
	if !errors.Is(err, memo.ErrExtractionFailed) {
		t.Errorf("err = %v", err)
	}
}

func TestParseSeconds(t *testing.T) {
	d, err := parseSeconds("1234.5678\n")
	if err != nil || d != 1234568*time.Millisecond {
		t.Errorf("parseSeconds = %v, %v", d, err)
	}
	if _, err := parseSeconds("N/A"); err == nil {
		t.Error("parseSeconds accepted N/A")
	}
}

func TestSweep(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"chunks-123", "keep-dir"} {
		if err := os.Mkdir(filepath.Join(dir, name), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	for _, name := range []string{"chunk_0.wav", "recording_1.wav.part", "recording_2.wav"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	n, err := Sweep(dir)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("removed %d entries, want 3", n)
	}
	for _, name := range []string{"keep-dir", "recording_2.wav"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s removed: %v", name, err)
		}
	}

	if n, err := Sweep(filepath.Join(dir, "missing")); n != 0 || err != nil {
		t.Errorf("Sweep(missing) = %d, %v", n, err)
	}
}
