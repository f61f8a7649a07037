package commands

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/haivivi/voxmemo/pkg/audio/pcm"
	"github.com/haivivi/voxmemo/pkg/audio/wav"
	"github.com/haivivi/voxmemo/pkg/capture"
	"github.com/haivivi/voxmemo/pkg/history"
	"github.com/haivivi/voxmemo/pkg/memo"
	"github.com/haivivi/voxmemo/pkg/transcribe"
)

type fakeBackend struct {
	text string

	mu    sync.Mutex
	loads []string
	langs []string
}

func (b *fakeBackend) Load(_ context.Context, modelID string, progress func(float64)) error {
	b.mu.Lock()
	b.loads = append(b.loads, modelID)
	b.mu.Unlock()
	if progress != nil {
		progress(1)
	}
	return nil
}

func (b *fakeBackend) Transcribe(_ context.Context, _ string, opts transcribe.DecodingOptions) ([]transcribe.Transcription, error) {
	b.mu.Lock()
	b.langs = append(b.langs, opts.Language)
	b.mu.Unlock()
	lang := opts.Language
	if lang == "" {
		lang = "en"
	}
	return []transcribe.Transcription{{
		Text:     b.text,
		Language: lang,
		Segments: []transcribe.RawSegment{{Text: b.text, Start: 0, End: 1}},
	}}, nil
}

// brokenHistory fails every save.
type brokenHistory struct {
	history.Store
}

func (brokenHistory) Save(context.Context, *memo.Result) error {
	return fmt.Errorf("history: write /var/voxmemo/x.json: disk full: %w", memo.ErrPersistenceFailure)
}

type fakeStream struct {
	closed    chan struct{}
	closeOnce sync.Once
}

func (s *fakeStream) Format() pcm.Format { return pcm.L16Mono16K }

func (s *fakeStream) ReadChunk() (*pcm.DataChunk, error) {
	select {
	case <-s.closed:
		return nil, io.EOF
	case <-time.After(2 * time.Millisecond):
	}
	samples := make([]int16, pcm.L16Mono16K.SamplesInDuration(10*time.Millisecond))
	for i := range samples {
		samples[i] = 3000
	}
	return pcm.L16Mono16K.SamplesChunk(samples), nil
}

func (s *fakeStream) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

// setupTestEnv points voxmemo at a temporary home with a fake backend and
// microphone. It returns the home directory.
func setupTestEnv(t *testing.T, backend *fakeBackend) string {
	t.Helper()
	home := t.TempDir()
	testBackend = backend
	testDevice = capture.DeviceFunc(func(context.Context) (capture.Stream, error) {
		return &fakeStream{closed: make(chan struct{})}, nil
	})
	t.Cleanup(func() {
		testBackend = nil
		testDevice = nil
		testHistory = nil
	})
	return home
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func runCmd(t *testing.T, home string, args ...string) (stdout, stderr string, exitCode int) {
	t.Helper()

	oldStdout := os.Stdout
	oldStderr := os.Stderr

	rOut, wOut, _ := os.Pipe()
	rErr, wErr, _ := os.Pipe()
	os.Stdout = wOut
	os.Stderr = wErr

	resetFlags(rootCmd)

	var outBuf, errBuf bytes.Buffer
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); outBuf.ReadFrom(rOut) }()
	go func() { defer wg.Done(); errBuf.ReadFrom(rErr) }()

	rootCmd.SetArgs(append([]string{"--home", home}, args...))
	err := Execute()

	wOut.Close()
	wErr.Close()
	wg.Wait()
	os.Stdout = oldStdout
	os.Stderr = oldStderr

	stdout = outBuf.String()
	stderr = errBuf.String()
	if err != nil {
		exitCode = 1
	}
	return
}

// writeWAV writes d of a tone to dir and returns its path.
func writeWAV(t *testing.T, dir string, d time.Duration) string {
	t.Helper()
	path := filepath.Join(dir, "memo.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	w, err := wav.NewWriter(f, pcm.L16Mono16K)
	if err != nil {
		t.Fatal(err)
	}
	samples := make([]int16, pcm.L16Mono16K.SamplesInDuration(d))
	for i := range samples {
		samples[i] = int16(1000 * (i % 16))
	}
	if err := w.Write(pcm.L16Mono16K.SamplesChunk(samples)); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}
