package chunk

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/haivivi/voxmemo/pkg/audio/pcm"
	"github.com/haivivi/voxmemo/pkg/audio/wav"
	"github.com/haivivi/voxmemo/pkg/memo"
)

// Probe builds an AudioSource for path. WAV files are measured from their
// header; anything else is measured with ffprobe.
func Probe(ctx context.Context, path string) (memo.AudioSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return memo.AudioSource{}, fmt.Errorf("chunk: probe: %w: %w", memo.ErrExtractionFailed, err)
	}
	h, err := wav.ReadHeader(f)
	f.Close()
	if err == nil {
		return memo.AudioSource{Path: path, Duration: h.Duration(), Format: h.Format}, nil
	}
	if !errors.Is(err, wav.ErrInvalid) && !errors.Is(err, wav.ErrUnsupported) {
		return memo.AudioSource{}, fmt.Errorf("chunk: probe: %w: %w", memo.ErrExtractionFailed, err)
	}

	d, err := ffprobeDuration(ctx, path)
	if err != nil {
		return memo.AudioSource{}, fmt.Errorf("chunk: probe: %w: %w", memo.ErrExtractionFailed, err)
	}
	return memo.AudioSource{Path: path, Duration: d, Format: pcm.L16Mono16K}, nil
}

func ffprobeDuration(ctx context.Context, path string) (time.Duration, error) {
	bin, err := exec.LookPath("ffprobe")
	if err != nil {
		return 0, fmt.Errorf("missing required binary %q in PATH: %w", "ffprobe", err)
	}
	out, err := exec.CommandContext(ctx, bin,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	).CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w; out=%s", err, bytes.TrimSpace(out))
	}
	return parseSeconds(string(out))
}

func parseSeconds(s string) (time.Duration, error) {
	sec, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", strings.TrimSpace(s), err)
	}
	if sec < 0 {
		return 0, fmt.Errorf("negative duration %v", sec)
	}
	return time.Duration(sec * float64(time.Second)).Round(time.Millisecond), nil
}
