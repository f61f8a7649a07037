// Package whispercpp runs transcription locally through the whisper.cpp
// command line tool.
package whispercpp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/haivivi/voxmemo/pkg/transcribe"
)

var _ transcribe.Backend = (*Backend)(nil)

// Config locates the binary and the model files.
type Config struct {
	// Binary defaults to "whisper-cli" looked up in PATH.
	Binary string `yaml:"binary,omitempty" json:"binary,omitempty"`
	// ModelDir holds ggml-<model>.bin files.
	ModelDir string `yaml:"model_dir" json:"model_dir"`
	Threads  int    `yaml:"threads,omitempty" json:"threads,omitempty"`
}

// Backend implements transcribe.Backend. A loaded model is held by path
// and every Transcribe spawns one process, so calls are serialized by the
// engine.
type Backend struct {
	cfg Config

	mu    sync.Mutex
	bin   string
	model string
}

// New creates a Backend. The binary is resolved on Load.
func New(cfg Config) *Backend {
	if cfg.Binary == "" {
		cfg.Binary = "whisper-cli"
	}
	return &Backend{cfg: cfg}
}

// ModelPath returns the file a model id loads from.
func (b *Backend) ModelPath(modelID string) string {
	return filepath.Join(b.cfg.ModelDir, "ggml-"+modelID+".bin")
}

// Load resolves the binary and checks the model file is present.
func (b *Backend) Load(ctx context.Context, modelID string, progress func(float64)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	bin, err := exec.LookPath(b.cfg.Binary)
	if err != nil {
		return fmt.Errorf("whispercpp: missing required binary %q in PATH: %w", b.cfg.Binary, err)
	}
	if progress != nil {
		progress(0.5)
	}
	path := b.ModelPath(modelID)
	fi, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("whispercpp: model %s: %w", modelID, err)
	}
	if fi.IsDir() || fi.Size() == 0 {
		return fmt.Errorf("whispercpp: model %s: not a model file", modelID)
	}

	b.mu.Lock()
	b.bin, b.model = bin, path
	b.mu.Unlock()
	if progress != nil {
		progress(1)
	}
	return nil
}

// Transcribe implements transcribe.Backend.
func (b *Backend) Transcribe(ctx context.Context, path string, opts transcribe.DecodingOptions) ([]transcribe.Transcription, error) {
	b.mu.Lock()
	bin, model := b.bin, b.model
	b.mu.Unlock()
	if model == "" {
		return nil, errors.New("whispercpp: no model loaded")
	}

	out, err := os.MkdirTemp("", "whispercpp-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(out)
	prefix := filepath.Join(out, "out")

	cmd := exec.CommandContext(ctx, bin, b.args(model, path, prefix, opts)...)
	if combined, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("whispercpp: whisper-cli failed: %w; out=%s", err, tail(combined, 512))
	}
	data, err := os.ReadFile(prefix + ".json")
	if err != nil {
		return nil, fmt.Errorf("whispercpp: read output: %w", err)
	}
	return parse(data)
}

func (b *Backend) args(model, input, prefix string, opts transcribe.DecodingOptions) []string {
	lang := opts.Language
	if lang == "" {
		lang = "auto"
	}
	args := []string{
		"-m", model,
		"-f", input,
		"-l", lang,
		"-oj",
		"-of", prefix,
		"-np",
		"-tp", strconv.FormatFloat(opts.Temperature, 'f', -1, 64),
		"-tpi", strconv.FormatFloat(opts.TemperatureIncrement, 'f', -1, 64),
	}
	if opts.TopK > 0 {
		args = append(args, "-bo", strconv.Itoa(opts.TopK))
	}
	if b.cfg.Threads > 0 {
		args = append(args, "-t", strconv.Itoa(b.cfg.Threads))
	}
	if opts.Prompt != "" {
		args = append(args, "--prompt", opts.Prompt)
	}
	return args
}

// output mirrors the -oj file.
type output struct {
	Result struct {
		Language string `json:"language"`
	} `json:"result"`
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

func parse(data []byte) ([]transcribe.Transcription, error) {
	var out output
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("whispercpp: decode output: %w", err)
	}
	tr := transcribe.Transcription{Language: out.Result.Language}
	texts := make([]string, 0, len(out.Transcription))
	for i, s := range out.Transcription {
		tr.Segments = append(tr.Segments, transcribe.RawSegment{
			ID:    i,
			Text:  s.Text,
			Start: float64(s.Offsets.From) / 1000,
			End:   float64(s.Offsets.To) / 1000,
		})
		if t := strings.TrimSpace(s.Text); t != "" {
			texts = append(texts, t)
		}
	}
	tr.Text = strings.Join(texts, " ")
	return []transcribe.Transcription{tr}, nil
}

func tail(b []byte, n int) string {
	if len(b) > n {
		b = b[len(b)-n:]
	}
	return strings.TrimSpace(string(b))
}
