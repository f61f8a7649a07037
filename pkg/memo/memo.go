// Package memo defines the values that flow through voxmemo: recorded audio
// sources, the chunks cut from them, and the transcription results built
// from those chunks.
package memo

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/haivivi/voxmemo/pkg/audio/pcm"
	"github.com/haivivi/voxmemo/pkg/jsontime"
)

// AudioSource is an immutable reference to a finished recording.
type AudioSource struct {
	Path     string        `json:"path"`
	Duration time.Duration `json:"duration"`
	Format   pcm.Format    `json:"-"`
}

// AudioChunk is a time-bounded view of an AudioSource backed by its own
// file. End is always after Start.
type AudioChunk struct {
	Index int           `json:"index"`
	Start time.Duration `json:"start"`
	End   time.Duration `json:"end"`
	Path  string        `json:"path"`
}

// Duration returns End - Start.
func (c AudioChunk) Duration() time.Duration {
	return c.End - c.Start
}

func (c AudioChunk) String() string {
	return fmt.Sprintf("chunk %d [%s, %s)", c.Index, c.Start, c.End)
}

// Segment is one timed span of recognized text. Start and End are seconds
// on the timeline of the original source.
type Segment struct {
	ID    int     `json:"id" msgpack:"id"`
	Text  string  `json:"text" msgpack:"text"`
	Start float64 `json:"start" msgpack:"start"`
	End   float64 `json:"end" msgpack:"end"`
}

// Timestamp formats the segment span as "[mm:ss - mm:ss]".
func (s Segment) Timestamp() string {
	return fmt.Sprintf("[%s - %s]", clock(s.Start), clock(s.End))
}

// Result is the transcript of one recording. It is never mutated after
// creation; a new transcription supersedes it with a new ID.
type Result struct {
	ID        string         `json:"id" msgpack:"id"`
	Text      string         `json:"text" msgpack:"text"`
	Language  string         `json:"language" msgpack:"language"`
	Segments  []Segment      `json:"segments" msgpack:"segments"`
	Timestamp jsontime.Milli `json:"timestamp" msgpack:"timestamp"`
	// Duration of the source audio in seconds.
	Duration float64 `json:"duration" msgpack:"duration"`
	Model    string  `json:"model,omitempty" msgpack:"model,omitempty"`
	Source   string  `json:"source,omitempty" msgpack:"source,omitempty"`
}

// NewID returns a time-ordered unique result id.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// FormattedDuration formats Duration as "m:ss".
func (r *Result) FormattedDuration() string {
	total := int(r.Duration)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

// WordCount counts whitespace separated words of Text.
func (r *Result) WordCount() int {
	return len(strings.Fields(r.Text))
}

// JoinText joins segment texts in order with single spaces.
func JoinText(segments []Segment) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		if t := strings.Join(strings.Fields(s.Text), " "); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

func clock(sec float64) string {
	total := int(sec)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
