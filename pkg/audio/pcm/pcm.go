package pcm

import (
	"encoding/binary"
	"fmt"
	"io"
	"time"
)

const (
	// L16Mono16K is audio/L16; rate=16000; channels=1. Transcription
	// backends consume this format.
	L16Mono16K Format = iota
	// L16Mono24K is audio/L16; rate=24000; channels=1
	L16Mono24K
	// L16Mono44K1 is audio/L16; rate=44100; channels=1
	L16Mono44K1
	// L16Mono48K is audio/L16; rate=48000; channels=1
	L16Mono48K
)

// Format is a mono 16-bit little-endian PCM configuration.
type Format int

// FormatOf returns the mono 16-bit format with the given sample rate.
func FormatOf(sampleRate int) (Format, error) {
	switch sampleRate {
	case 16000:
		return L16Mono16K, nil
	case 24000:
		return L16Mono24K, nil
	case 44100:
		return L16Mono44K1, nil
	case 48000:
		return L16Mono48K, nil
	}
	return 0, fmt.Errorf("pcm: unsupported sample rate %d", sampleRate)
}

// SampleRate returns the sample rate in Hz.
func (f Format) SampleRate() int {
	switch f {
	case L16Mono16K:
		return 16000
	case L16Mono24K:
		return 24000
	case L16Mono44K1:
		return 44100
	case L16Mono48K:
		return 48000
	}
	panic("pcm: invalid audio type")
}

// Channels is always 1.
func (f Format) Channels() int { return 1 }

// Depth is always 16 bits.
func (f Format) Depth() int { return 16 }

// BlockAlign returns the size of one frame in bytes.
func (f Format) BlockAlign() int {
	return f.Channels() * f.Depth() / 8
}

// BytesRate returns the number of bytes per second.
func (f Format) BytesRate() int {
	return f.SampleRate() * f.BlockAlign()
}

// Samples returns the number of samples in the given number of bytes.
func (f Format) Samples(bytes int64) int64 {
	return bytes / int64(f.BlockAlign())
}

// SamplesInDuration returns the number of samples in the given duration.
func (f Format) SamplesInDuration(d time.Duration) int64 {
	return int64(time.Duration(f.SampleRate()) * d / time.Second)
}

// BytesInDuration returns the number of bytes in the given duration,
// always a whole number of frames.
func (f Format) BytesInDuration(d time.Duration) int64 {
	return f.SamplesInDuration(d) * int64(f.BlockAlign())
}

// Duration returns the play time of the given number of bytes.
func (f Format) Duration(bytes int64) time.Duration {
	return time.Duration(f.Samples(bytes)) * time.Second / time.Duration(f.SampleRate())
}

// DataChunk wraps raw little-endian samples.
func (f Format) DataChunk(data []byte) *DataChunk {
	return &DataChunk{Data: data, fmt: f}
}

// SamplesChunk encodes samples into a new DataChunk.
func (f Format) SamplesChunk(samples []int16) *DataChunk {
	return f.DataChunk(EncodeSamples(nil, samples))
}

// ReadChunk reads exactly the given duration of audio from r.
func (f Format) ReadChunk(r io.Reader, duration time.Duration) (*DataChunk, error) {
	buf := make([]byte, f.BytesInDuration(duration))
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return f.DataChunk(buf), nil
}

func (f Format) String() string {
	return fmt.Sprintf("audio/L16; rate=%d; channels=1", f.SampleRate())
}

// Chunk is a piece of audio in a known format.
type Chunk interface {
	Len() int64
	Format() Format
	WriteTo(w io.Writer) (int64, error)
}

// DataChunk is a chunk of raw audio data.
type DataChunk struct {
	Data []byte
	fmt  Format
}

// Len returns the length in bytes.
func (c *DataChunk) Len() int64 { return int64(len(c.Data)) }

// Format returns the chunk's format.
func (c *DataChunk) Format() Format { return c.fmt }

// Duration returns the play time of the chunk.
func (c *DataChunk) Duration() time.Duration { return c.fmt.Duration(c.Len()) }

// Samples decodes the chunk into int16 samples.
func (c *DataChunk) Samples() []int16 { return DecodeSamples(c.Data) }

// WriteTo writes the raw data to w.
func (c *DataChunk) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(c.Data)
	return int64(n), err
}

// EncodeSamples appends samples to dst as little-endian int16.
func EncodeSamples(dst []byte, samples []int16) []byte {
	for _, s := range samples {
		dst = binary.LittleEndian.AppendUint16(dst, uint16(s))
	}
	return dst
}

// DecodeSamples decodes little-endian int16 samples. A trailing odd byte is
// ignored.
func DecodeSamples(data []byte) []int16 {
	out := make([]int16, len(data)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(data[2*i:]))
	}
	return out
}
