// Package transcribe turns recorded audio into transcripts.
//
// An Engine owns one Backend (a speech model behind some API or binary),
// loads models on demand, runs every chunk of a source through the backend
// and merges the per-chunk output into one memo.Result on the source
// timeline.
package transcribe

import "context"

// Backend is a speech recognition engine. Implementations need not be safe
// for concurrent use; the Engine serializes every call unless the backend
// also implements Reentrant.
type Backend interface {
	// Load prepares modelID. progress receives values in [0, 1] and may be
	// nil.
	Load(ctx context.Context, modelID string, progress func(float64)) error
	// Transcribe recognizes the audio file at path. Segment times in the
	// result are relative to the start of the file.
	Transcribe(ctx context.Context, path string, opts DecodingOptions) ([]Transcription, error)
}

// Reentrant is implemented by backends whose Transcribe may run
// concurrently with itself.
type Reentrant interface {
	Reentrant() bool
}

// Transcription is one recognized block of a file.
type Transcription struct {
	Text     string
	Language string
	Segments []RawSegment
}

// RawSegment is a segment on the timeline of the file passed to the
// backend, in seconds. Backends without timing report Start == End == 0.
type RawSegment struct {
	ID    int
	Text  string
	Start float64
	End   float64
}

// DecodingOptions configures the decoder of a backend. Backends ignore
// fields their engine has no equivalent for.
type DecodingOptions struct {
	// Language is a hint such as "sv". Empty means detect.
	Language string
	// Temperature is the initial sampling temperature.
	Temperature float64
	// TemperatureFallbackCount is how many times the backend may retry
	// a low-confidence window at a higher temperature.
	TemperatureFallbackCount int
	// TemperatureIncrement is added on each fallback.
	TemperatureIncrement float64
	// SampleLength caps the number of tokens decoded per window.
	SampleLength int
	// TopK bounds the candidate set when sampling.
	TopK int
	// UsePrefillPrompt seeds the decoder with language and task tokens.
	UsePrefillPrompt bool
	// UsePrefillCache reuses the prefill KV cache across windows.
	UsePrefillCache bool
	// SkipSpecialTokens strips <|...|> control tokens from the text.
	SkipSpecialTokens bool
	// Prompt is optional context text, e.g. domain vocabulary.
	Prompt string
}

// DefaultDecoding returns deterministic decoding with a short fallback
// ladder.
func DefaultDecoding() DecodingOptions {
	return DecodingOptions{
		Temperature:              0,
		TemperatureFallbackCount: 3,
		TemperatureIncrement:     0.2,
		SampleLength:             224,
		TopK:                     5,
		UsePrefillPrompt:         true,
		UsePrefillCache:          true,
		SkipSpecialTokens:        true,
	}
}

// Temperatures expands the fallback ladder, starting at Temperature.
func (o DecodingOptions) Temperatures() []float64 {
	out := []float64{o.Temperature}
	for i := 1; i <= o.TemperatureFallbackCount; i++ {
		t := o.Temperature + float64(i)*o.TemperatureIncrement
		out = append(out, min(t, 1))
	}
	return out
}
