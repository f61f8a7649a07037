package capture

import (
	"context"

	"github.com/haivivi/voxmemo/pkg/audio/pcm"
	"github.com/haivivi/voxmemo/pkg/audio/portaudio"
)

// Stream is an open input. ReadChunk blocks until audio is available and
// returns io.EOF after Close.
type Stream interface {
	Format() pcm.Format
	ReadChunk() (*pcm.DataChunk, error)
	Close() error
}

// Pauser is implemented by streams that can suspend the hardware. Streams
// without it keep running while paused and their audio is dropped.
type Pauser interface {
	Pause() error
	Resume() error
}

// Device opens input streams.
type Device interface {
	Open(ctx context.Context) (Stream, error)
}

// DeviceFunc adapts a function to Device.
type DeviceFunc func(ctx context.Context) (Stream, error)

// Open implements Device.
func (f DeviceFunc) Open(ctx context.Context) (Stream, error) { return f(ctx) }

// PortAudio opens microphone streams through PortAudio. Initialize must be
// called before use.
type PortAudio struct {
	Config portaudio.InputConfig
}

// Open implements Device.
func (d PortAudio) Open(ctx context.Context) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s, err := portaudio.OpenInput(d.Config)
	if err != nil {
		return nil, err
	}
	return s, nil
}
