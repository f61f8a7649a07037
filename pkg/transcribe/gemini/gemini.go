// Package gemini transcribes audio by prompting a Gemini model with the
// recording as inline audio and a JSON response schema.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/googleapis/gax-go/v2/apierror"
	"github.com/kaptinlin/jsonrepair"
	"google.golang.org/genai"

	"github.com/haivivi/voxmemo/pkg/transcribe"
)

var _ transcribe.Backend = (*Backend)(nil)

// DefaultModel is used when Config.Model is empty.
const DefaultModel = "gemini-2.5-flash"

// Config configures the Gemini backend.
type Config struct {
	APIKey string `yaml:"api_key" json:"api_key"`
	// Model should not start with "models/".
	Model string `yaml:"model,omitempty" json:"model,omitempty"`
}

type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Backend implements transcribe.Backend.
type Backend struct {
	models generator
	model  string

	schemaOnce sync.Once
	schema     *genai.Schema
	schemaErr  error
}

// New creates a Backend talking to the Gemini API.
func New(ctx context.Context, cfg Config) (*Backend, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: new client: %w", err)
	}
	return newBackend(client.Models, cfg.Model), nil
}

func newBackend(g generator, model string) *Backend {
	if model == "" {
		model = DefaultModel
	}
	return &Backend{models: g, model: strings.TrimPrefix(model, "models/")}
}

// Reentrant implements transcribe.Reentrant.
func (b *Backend) Reentrant() bool { return true }

// Load prepares the response schema. The model id only selects the
// decoding profile; the remote model is fixed by Config.
func (b *Backend) Load(ctx context.Context, _ string, progress func(float64)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := b.responseSchema(); err != nil {
		return err
	}
	if progress != nil {
		progress(1)
	}
	return nil
}

// output is the structured reply the model is asked for.
type output struct {
	Language string          `json:"language" jsonschema:"ISO 639-1 code of the spoken language"`
	Text     string          `json:"text" jsonschema:"full verbatim transcript"`
	Segments []outputSegment `json:"segments" jsonschema:"transcript split into utterances in time order"`
}

type outputSegment struct {
	Start float64 `json:"start" jsonschema:"start offset in seconds"`
	End   float64 `json:"end" jsonschema:"end offset in seconds"`
	Text  string  `json:"text"`
}

func (b *Backend) responseSchema() (*genai.Schema, error) {
	b.schemaOnce.Do(func() {
		s, err := jsonschema.For[output](nil)
		if err != nil {
			b.schemaErr = fmt.Errorf("gemini: response schema: %w", err)
			return
		}
		b.schema = convSchema(s)
	})
	return b.schema, b.schemaErr
}

// Transcribe implements transcribe.Backend.
func (b *Backend) Transcribe(ctx context.Context, path string, opts transcribe.DecodingOptions) ([]transcribe.Transcription, error) {
	schema, err := b.responseSchema()
	if err != nil {
		return nil, err
	}
	audio, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	temp := float32(opts.Temperature)
	cfg := &genai.GenerateContentConfig{
		Temperature:      &temp,
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
		SystemInstruction: &genai.Content{Parts: []*genai.Part{
			genai.NewPartFromText(instruction(opts)),
		}},
	}
	if opts.TopK > 0 {
		k := float32(opts.TopK)
		cfg.TopK = &k
	}
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(audio, "audio/wav"),
		}, genai.RoleUser),
	}

	resp, err := b.models.GenerateContent(ctx, b.model, contents, cfg)
	if err != nil {
		var apiErr *apierror.APIError
		if errors.As(err, &apiErr) {
			err = apiErr.Unwrap()
		}
		return nil, fmt.Errorf("gemini: transcribe %s: %w", filepath.Base(path), err)
	}
	if len(resp.Candidates) == 0 {
		return nil, errors.New("gemini: no candidates")
	}
	c := resp.Candidates[0]
	switch c.FinishReason {
	case genai.FinishReasonStop, genai.FinishReasonUnspecified, "":
	case genai.FinishReasonMaxTokens:
		return nil, errors.New("gemini: max tokens")
	default:
		return nil, fmt.Errorf("gemini: unexpected finish reason: %s", c.FinishReason)
	}
	var sb strings.Builder
	if c.Content != nil {
		for _, p := range c.Content.Parts {
			sb.WriteString(p.Text)
		}
	}
	return parse(sb.String())
}

func instruction(opts transcribe.DecodingOptions) string {
	var sb strings.Builder
	sb.WriteString("Transcribe the attached audio recording verbatim. ")
	sb.WriteString("Do not translate, summarize or add commentary. ")
	sb.WriteString("Give segment offsets in seconds from the start of the audio.")
	if opts.Language != "" {
		fmt.Fprintf(&sb, " The recording is in language %q.", opts.Language)
	}
	if opts.Prompt != "" {
		fmt.Fprintf(&sb, " Context: %s", opts.Prompt)
	}
	return sb.String()
}

func parse(text string) ([]transcribe.Transcription, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("gemini: empty response")
	}
	var out output
	if err := unmarshalJSON([]byte(text), &out); err != nil {
		return nil, fmt.Errorf("gemini: decode response: %w", err)
	}
	tr := transcribe.Transcription{
		Text:     strings.TrimSpace(out.Text),
		Language: strings.ToLower(strings.TrimSpace(out.Language)),
	}
	for i, s := range out.Segments {
		tr.Segments = append(tr.Segments, transcribe.RawSegment{
			ID:    i,
			Text:  s.Text,
			Start: s.Start,
			End:   s.End,
		})
	}
	return []transcribe.Transcription{tr}, nil
}

// unmarshalJSON retries with a repaired document on syntax errors.
func unmarshalJSON(data []byte, v any) error {
	err := json.Unmarshal(data, v)
	if err == nil {
		return nil
	}
	var syntax *json.SyntaxError
	if !errors.As(err, &syntax) {
		return err
	}
	fixed, rerr := jsonrepair.JSONRepair(string(data))
	if rerr != nil {
		return err
	}
	return json.Unmarshal([]byte(fixed), v)
}

func convSchema(schema *jsonschema.Schema) *genai.Schema {
	if schema == nil {
		return nil
	}
	gs := genai.Schema{
		Format:      schema.Format,
		Description: schema.Description,
		Items:       convSchema(schema.Items),
		Required:    schema.Required,
	}
	for _, v := range schema.Enum {
		gs.Enum = append(gs.Enum, fmt.Sprintf("%v", v))
	}
	if n := len(schema.Properties); n > 0 {
		gs.Properties = make(map[string]*genai.Schema, n)
		for k, prop := range schema.Properties {
			gs.Properties[k] = convSchema(prop)
		}
	}

	typ := schema.Type
	for _, t := range schema.Types {
		if t == "null" {
			nullable := true
			gs.Nullable = &nullable
			continue
		}
		if typ == "" {
			typ = t
		}
	}
	switch typ {
	case "object":
		gs.Type = genai.TypeObject
	case "array":
		gs.Type = genai.TypeArray
	case "string":
		gs.Type = genai.TypeString
	case "number":
		gs.Type = genai.TypeNumber
	case "integer":
		gs.Type = genai.TypeInteger
	case "boolean":
		gs.Type = genai.TypeBoolean
	}
	return &gs
}
