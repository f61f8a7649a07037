package portaudio

import (
	"errors"
	"io"
	"time"

	"github.com/haivivi/voxmemo/pkg/audio/pcm"
)

// InputConfig selects the device and read granularity of an InputStream.
type InputConfig struct {
	// Device is a device index from InputDevices. Negative selects the
	// default input.
	Device int
	// BufferDuration is the amount of audio returned by each ReadChunk.
	// Defaults to 50ms.
	BufferDuration time.Duration
}

// InputStream captures mono PCM16 from an input device at the device's
// native sample rate when pcm supports it, 16 kHz otherwise.
type InputStream struct {
	s      *stream
	format pcm.Format
}

// OpenInput opens and starts an input stream.
func OpenInput(cfg InputConfig) (*InputStream, error) {
	if cfg.BufferDuration <= 0 {
		cfg.BufferDuration = 50 * time.Millisecond
	}
	dev, err := DefaultInputDevice()
	if err != nil {
		return nil, err
	}
	if cfg.Device >= 0 {
		devices, err := InputDevices()
		if err != nil {
			return nil, err
		}
		dev = nil
		for i := range devices {
			if devices[i].Index == cfg.Device {
				dev = &devices[i]
				break
			}
		}
		if dev == nil {
			return nil, errors.New("portaudio: input device not found")
		}
	}

	format, err := pcm.FormatOf(int(dev.DefaultSampleRate))
	if err != nil {
		format = pcm.L16Mono16K
	}
	s, err := openInput(dev.Index, float64(format.SampleRate()), int(format.SamplesInDuration(cfg.BufferDuration)))
	if err != nil {
		return nil, err
	}
	if err := s.start(); err != nil {
		s.close()
		return nil, err
	}
	return &InputStream{s: s, format: format}, nil
}

// Format returns the stream's PCM format.
func (is *InputStream) Format() pcm.Format {
	return is.format
}

// ReadChunk blocks for one buffer of audio.
func (is *InputStream) ReadChunk() (*pcm.DataChunk, error) {
	samples, err := is.s.read()
	if errors.Is(err, ErrStreamClosed) {
		return nil, io.EOF
	}
	if err != nil {
		return nil, err
	}
	return is.format.SamplesChunk(samples), nil
}

// Pause stops the hardware stream without releasing it.
func (is *InputStream) Pause() error {
	return is.s.stop()
}

// Resume restarts a paused stream.
func (is *InputStream) Resume() error {
	return is.s.start()
}

// Close stops and releases the stream.
func (is *InputStream) Close() error {
	return is.s.close()
}
