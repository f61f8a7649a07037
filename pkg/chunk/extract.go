package chunk

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/haivivi/voxmemo/pkg/audio/pcm"
	"github.com/haivivi/voxmemo/pkg/audio/wav"
	"github.com/haivivi/voxmemo/pkg/memo"
)

// Extractor writes the audio of span from src into a new mono PCM16 WAV
// file at dst. Implementations must not leave dst behind when they fail.
type Extractor interface {
	Extract(ctx context.Context, src memo.AudioSource, span Span, dst string) error
}

// ExtractFunc adapts a function to Extractor.
type ExtractFunc func(ctx context.Context, src memo.AudioSource, span Span, dst string) error

// Extract implements Extractor.
func (f ExtractFunc) Extract(ctx context.Context, src memo.AudioSource, span Span, dst string) error {
	return f(ctx, src, span, dst)
}

// WAVExtractor slices mono PCM16 WAV files by byte range without decoding.
type WAVExtractor struct{}

// Extract implements Extractor.
func (WAVExtractor) Extract(ctx context.Context, src memo.AudioSource, span Span, dst string) (err error) {
	in, err := os.Open(src.Path)
	if err != nil {
		return err
	}
	defer in.Close()

	h, err := wav.ReadHeader(in)
	if err != nil {
		return err
	}
	from := min(h.Format.BytesInDuration(span.Start), h.DataSize)
	to := min(h.Format.BytesInDuration(span.End), h.DataSize)
	if to <= from {
		return fmt.Errorf("empty range %v-%v", span.Start, span.End)
	}

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(dst)
		}
	}()

	w, err := wav.NewWriter(out, h.Format)
	if err != nil {
		return err
	}
	section := io.NewSectionReader(in, h.DataOffset+from, to-from)
	err = pcm.Copy(pcm.WriteFunc(func(c pcm.Chunk) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return w.Write(c)
	}), section, h.Format)
	if err != nil {
		return err
	}
	return w.Close()
}

// FFmpegExtractor decodes any container ffmpeg understands and resamples
// the span to 16 kHz mono.
type FFmpegExtractor struct {
	// Binary defaults to "ffmpeg" looked up in PATH.
	Binary string
}

func (e FFmpegExtractor) binary() string {
	if e.Binary != "" {
		return e.Binary
	}
	return "ffmpeg"
}

// Extract implements Extractor.
func (e FFmpegExtractor) Extract(ctx context.Context, src memo.AudioSource, span Span, dst string) error {
	bin, err := exec.LookPath(e.binary())
	if err != nil {
		return fmt.Errorf("missing required binary %q in PATH: %w", e.binary(), err)
	}
	args := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-ss", seconds(span.Start),
		"-to", seconds(span.End),
		"-i", src.Path,
		"-ac", "1",
		"-ar", strconv.Itoa(pcm.L16Mono16K.SampleRate()),
		"-c:a", "pcm_s16le",
		"-f", "wav",
		dst,
	}
	out, err := exec.CommandContext(ctx, bin, args...).CombinedOutput()
	if err != nil {
		os.Remove(dst)
		return fmt.Errorf("ffmpeg failed: %w; out=%s", err, bytes.TrimSpace(out))
	}
	return nil
}

// AutoExtractor slices WAV natively and hands every other container to
// ffmpeg.
type AutoExtractor struct {
	FFmpeg FFmpegExtractor
}

// Extract implements Extractor.
func (a AutoExtractor) Extract(ctx context.Context, src memo.AudioSource, span Span, dst string) error {
	err := WAVExtractor{}.Extract(ctx, src, span, dst)
	if errors.Is(err, wav.ErrInvalid) || errors.Is(err, wav.ErrUnsupported) {
		return a.FFmpeg.Extract(ctx, src, span, dst)
	}
	return err
}

func seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}
