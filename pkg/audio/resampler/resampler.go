package resampler

import (
	"fmt"
	"math"
	"sync"

	resampling "github.com/tphakala/go-audio-resampling"

	"github.com/haivivi/voxmemo/pkg/audio/pcm"
)

// Converter resamples blocks of samples from one format to another. It keeps
// filter state between calls, so consecutive blocks of one stream must go
// through the same Converter. Safe for concurrent use.
type Converter struct {
	src, dst pcm.Format

	mu        sync.Mutex
	resampler resampling.Resampler
}

// New creates a Converter. When both formats share a sample rate the
// Converter copies samples unchanged.
func New(src, dst pcm.Format) (*Converter, error) {
	c := &Converter{src: src, dst: dst}
	if src.SampleRate() == dst.SampleRate() {
		return c, nil
	}
	rs, err := resampling.New(&resampling.Config{
		InputRate:  float64(src.SampleRate()),
		OutputRate: float64(dst.SampleRate()),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("resampler: create %d->%d: %w", src.SampleRate(), dst.SampleRate(), err)
	}
	c.resampler = rs
	return c, nil
}

// Src returns the input format.
func (c *Converter) Src() pcm.Format { return c.src }

// Dst returns the output format.
func (c *Converter) Dst() pcm.Format { return c.dst }

// Convert resamples one block. The filter delay means the output length is
// only approximately len(in)*dst/src for any single block.
func (c *Converter) Convert(in []int16) ([]int16, error) {
	if len(in) == 0 {
		return nil, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.resampler == nil {
		out := make([]int16, len(in))
		copy(out, in)
		return out, nil
	}

	input := make([]float64, len(in))
	for i, s := range in {
		input[i] = float64(s) / 32768.0
	}
	output, err := c.resampler.Process(input)
	if err != nil {
		return nil, fmt.Errorf("resampler: process: %w", err)
	}
	out := make([]int16, len(output))
	for i, s := range output {
		out[i] = toInt16(s)
	}
	return out, nil
}

// ConvertChunk resamples a chunk in the source format.
func (c *Converter) ConvertChunk(chunk *pcm.DataChunk) (*pcm.DataChunk, error) {
	if chunk.Format() != c.src {
		return nil, fmt.Errorf("resampler: chunk format %v, want %v", chunk.Format(), c.src)
	}
	out, err := c.Convert(chunk.Samples())
	if err != nil {
		return nil, err
	}
	return c.dst.SamplesChunk(out), nil
}

func toInt16(s float64) int16 {
	v := math.Round(s * 32767.0)
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	}
	return int16(v)
}
