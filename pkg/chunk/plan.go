// Package chunk splits long recordings into overlapping windows that fit a
// context-limited transcription backend.
//
// Recordings up to MaxSinglePass are passed through untouched. Longer ones
// are cut into ChunkLength windows, each starting Overlap before the end of
// the previous one, so every second of audio is heard by at least one
// window and speech at a seam is heard twice.
package chunk

import "time"

const (
	// MaxSinglePass is the longest source transcribed without chunking.
	MaxSinglePass = 600 * time.Second
	// ChunkLength is the length of every chunk except possibly the last.
	ChunkLength = 540 * time.Second
	// Overlap is the audio shared by consecutive chunks.
	Overlap = 30 * time.Second
)

// Compile-time guard: the windowing loop advances by ChunkLength-Overlap,
// which must be positive. A non-positive stride makes this constant
// conversion overflow.
const _ = uint64(ChunkLength-Overlap) - 1

// Span is a half-open interval [Start, End) of the source timeline.
type Span struct {
	Start, End time.Duration
}

// Duration returns End - Start.
func (s Span) Duration() time.Duration { return s.End - s.Start }

type policy struct {
	max, length, overlap time.Duration
}

var defaultPolicy = policy{max: MaxSinglePass, length: ChunkLength, overlap: Overlap}

// Plan returns the windows covering a source of duration d. A source no
// longer than MaxSinglePass yields the single span [0, d).
//
//	Plan(1200s) = [0,540) [510,1050) [1020,1200)
func Plan(d time.Duration) []Span {
	return defaultPolicy.plan(d)
}

func (p policy) plan(d time.Duration) []Span {
	if d < 0 {
		d = 0
	}
	if d <= p.max {
		return []Span{{Start: 0, End: d}}
	}
	var spans []Span
	for c := time.Duration(0); ; {
		end := min(c+p.length, d)
		spans = append(spans, Span{Start: c, End: end})
		if end == d {
			return spans
		}
		c = end - p.overlap
	}
}
