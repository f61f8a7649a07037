// Package openai transcribes audio with the OpenAI audio transcription API.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/googleapis/gax-go/v2"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/haivivi/voxmemo/pkg/transcribe"
)

var _ transcribe.Backend = (*Backend)(nil)

// Config holds the API credentials and model mapping.
type Config struct {
	APIKey  string `yaml:"api_key" json:"api_key"`
	BaseURL string `yaml:"base_url,omitempty" json:"base_url,omitempty"`
	// Model is the API model used for every local model id. Defaults to
	// whisper-1, which also returns segment timing.
	Model string `yaml:"model,omitempty" json:"model,omitempty"`
	// MaxAttempts bounds retries of rate-limited or failed requests.
	// Defaults to 3.
	MaxAttempts int `yaml:"max_attempts,omitempty" json:"max_attempts,omitempty"`
}

// audioTranscriptions is the part of the SDK the backend calls.
type audioTranscriptions interface {
	New(ctx context.Context, body openai.AudioTranscriptionNewParams, opts ...option.RequestOption) (*openai.Transcription, error)
}

// Backend implements transcribe.Backend over HTTP. Requests are
// independent, so the backend is reentrant.
type Backend struct {
	api         audioTranscriptions
	model       string
	maxAttempts int
	backoff     gax.Backoff
	log         *slog.Logger

	loaded string
}

// New creates a Backend from cfg.
func New(cfg Config) (*Backend, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: api_key is required")
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		// Retries are driven by the backend so they are logged and bounded
		// per chunk.
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := openai.NewClient(opts...)
	return newBackend(&client.Audio.Transcriptions, cfg), nil
}

func newBackend(api audioTranscriptions, cfg Config) *Backend {
	b := &Backend{
		api:         api,
		model:       cfg.Model,
		maxAttempts: cfg.MaxAttempts,
		backoff:     gax.Backoff{Initial: 500 * time.Millisecond, Max: 10 * time.Second, Multiplier: 2},
		log:         slog.Default().With("backend", "openai"),
	}
	if b.model == "" {
		b.model = openai.AudioModelWhisper1
	}
	if b.maxAttempts <= 0 {
		b.maxAttempts = 3
	}
	return b
}

// Reentrant implements transcribe.Reentrant.
func (b *Backend) Reentrant() bool { return true }

// Load records the model id. Every local id maps onto the configured API
// model, so there is nothing to download.
func (b *Backend) Load(ctx context.Context, modelID string, progress func(float64)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.loaded = modelID
	if progress != nil {
		progress(1)
	}
	return nil
}

// verboseJSON is the verbose_json response body.
type verboseJSON struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
	Segments []struct {
		ID    int     `json:"id"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

// Transcribe implements transcribe.Backend.
func (b *Backend) Transcribe(ctx context.Context, path string, opts transcribe.DecodingOptions) ([]transcribe.Transcription, error) {
	var resp *openai.Transcription
	attempts := 0
	retry := gax.WithRetry(func() gax.Retryer {
		return gax.OnErrorFunc(b.backoff, func(err error) bool {
			if attempts >= b.maxAttempts || !retryable(err) {
				return false
			}
			b.log.Warn("retrying transcription", "file", filepath.Base(path), "attempt", attempts, "err", err)
			return true
		})
	})
	err := gax.Invoke(ctx, func(ctx context.Context, _ gax.CallSettings) error {
		attempts++
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		resp, err = b.api.New(ctx, b.params(f, filepath.Base(path), opts))
		return err
	}, retry)
	if err != nil {
		return nil, fmt.Errorf("openai: transcribe %s: %w", filepath.Base(path), err)
	}
	return parse(resp)
}

func (b *Backend) params(f *os.File, name string, opts transcribe.DecodingOptions) openai.AudioTranscriptionNewParams {
	p := openai.AudioTranscriptionNewParams{
		File:                   openai.File(f, name, "audio/wav"),
		Model:                  b.model,
		ResponseFormat:         openai.AudioResponseFormatVerboseJSON,
		TimestampGranularities: []string{"segment"},
		Temperature:            openai.Float(opts.Temperature),
	}
	if opts.Language != "" {
		p.Language = openai.String(opts.Language)
	}
	if opts.Prompt != "" {
		p.Prompt = openai.String(opts.Prompt)
	}
	return p
}

func parse(resp *openai.Transcription) ([]transcribe.Transcription, error) {
	if resp == nil {
		return nil, errors.New("openai: empty response")
	}
	var v verboseJSON
	if raw := resp.RawJSON(); raw != "" {
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("openai: decode verbose_json: %w", err)
		}
	} else {
		v.Text = resp.Text
	}

	tr := transcribe.Transcription{
		Text:     strings.TrimSpace(v.Text),
		Language: languageCode(v.Language),
	}
	for _, s := range v.Segments {
		tr.Segments = append(tr.Segments, transcribe.RawSegment{
			ID:    s.ID,
			Text:  s.Text,
			Start: s.Start,
			End:   s.End,
		})
	}
	return []transcribe.Transcription{tr}, nil
}

func retryable(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}
	return false
}

// verbose_json reports language names rather than codes.
var languageNames = map[string]string{
	"swedish":   "sv",
	"english":   "en",
	"norwegian": "no",
	"nynorsk":   "nn",
	"danish":    "da",
	"finnish":   "fi",
	"german":    "de",
	"french":    "fr",
	"spanish":   "es",
}

func languageCode(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if code, ok := languageNames[name]; ok {
		return code
	}
	return name
}
