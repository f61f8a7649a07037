package gemini

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"google.golang.org/genai"

	"github.com/haivivi/voxmemo/pkg/transcribe"
)

type fakeModels struct {
	reply  string
	finish genai.FinishReason
	err    error

	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model, f.contents, f.config = model, contents, config
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			FinishReason: f.finish,
			Content:      &genai.Content{Parts: []*genai.Part{genai.NewPartFromText(f.reply)}},
		}},
	}, nil
}

func wavFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chunk_1.wav")
	if err := os.WriteFile(path, []byte("RIFF0000WAVEfmt "), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestTranscribe(t *testing.T) {
	fm := &fakeModels{
		finish: genai.FinishReasonStop,
		reply:  `{"language":"SV","text":"Hej hej","segments":[{"start":0,"end":1.5,"text":"Hej"},{"start":1.5,"end":2,"text":"hej"}]}`,
	}
	b := newBackend(fm, "models/gemini-test")
	opts := transcribe.DefaultDecoding()
	opts.Language = "sv"

	got, err := b.Transcribe(context.Background(), wavFile(t), opts)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if len(got) != 1 || got[0].Language != "sv" || got[0].Text != "Hej hej" || len(got[0].Segments) != 2 {
		t.Fatalf("got %+v", got)
	}
	if got[0].Segments[1].ID != 1 || got[0].Segments[1].Start != 1.5 {
		t.Errorf("segment = %+v", got[0].Segments[1])
	}
	if fm.model != "gemini-test" {
		t.Errorf("model = %q", fm.model)
	}
	if fm.config.ResponseMIMEType != "application/json" || fm.config.ResponseSchema == nil {
		t.Errorf("config = %+v", fm.config)
	}
	part := fm.contents[0].Parts[0]
	if part.InlineData == nil || part.InlineData.MIMEType != "audio/wav" {
		t.Errorf("audio part = %+v", part)
	}
}

func TestTranscribeErrors(t *testing.T) {
	tests := []struct {
		name string
		fm   *fakeModels
	}{
		{"api", &fakeModels{err: errors.New("quota")}},
		{"max tokens", &fakeModels{finish: genai.FinishReasonMaxTokens, reply: "{"}},
		{"safety", &fakeModels{finish: genai.FinishReasonSafety, reply: "{}"}},
		{"empty", &fakeModels{finish: genai.FinishReasonStop, reply: "  "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBackend(tt.fm, "")
			if _, err := b.Transcribe(context.Background(), wavFile(t), transcribe.DefaultDecoding()); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestParseRepairsJSON(t *testing.T) {
	got, err := parse(`{"language":"en","text":"hello there","segments":[{"start":0,"end":1,"text":"hello there"},]}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got[0].Text != "hello there" || len(got[0].Segments) != 1 {
		t.Errorf("got %+v", got)
	}
}

func TestResponseSchema(t *testing.T) {
	b := newBackend(&fakeModels{}, "")
	if err := b.Load(context.Background(), "kb_whisper-base", nil); err != nil {
		t.Fatal(err)
	}
	s, err := b.responseSchema()
	if err != nil {
		t.Fatal(err)
	}
	if s.Type != genai.TypeObject {
		t.Errorf("type = %q", s.Type)
	}
	segs := s.Properties["segments"]
	if segs == nil || segs.Type != genai.TypeArray || segs.Items == nil || segs.Items.Type != genai.TypeObject {
		t.Fatalf("segments schema = %+v", segs)
	}
	if segs.Items.Properties["start"].Type != genai.TypeNumber {
		t.Errorf("start type = %q", segs.Items.Properties["start"].Type)
	}
}
