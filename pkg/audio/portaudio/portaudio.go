// Package portaudio captures microphone input through the PortAudio C
// library.
//
// Building requires portaudio installed via pkg-config
// (brew install portaudio, apt install portaudio19-dev).
package portaudio

/*
#cgo pkg-config: portaudio-2.0

#include <portaudio.h>
#include <stdlib.h>
#include <string.h>

// Wrapper functions using void* to avoid CGO type issues with PaStream
static PaError pa_open_stream(void **stream,
                              const PaStreamParameters *inputParams,
                              const PaStreamParameters *outputParams,
                              double sampleRate,
                              unsigned long framesPerBuffer,
                              PaStreamFlags streamFlags) {
    return Pa_OpenStream((PaStream**)stream, inputParams, outputParams, sampleRate,
                         framesPerBuffer, streamFlags, NULL, NULL);
}

static PaError pa_start_stream(void *stream) {
    return Pa_StartStream((PaStream*)stream);
}

static PaError pa_stop_stream(void *stream) {
    return Pa_StopStream((PaStream*)stream);
}

static PaError pa_close_stream(void *stream) {
    return Pa_CloseStream((PaStream*)stream);
}

static PaError pa_read_stream(void *stream, void *buffer, unsigned long frames) {
    return Pa_ReadStream((PaStream*)stream, buffer, frames);
}
*/
import "C"

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"
)

var (
	// ErrNoInputDevice is returned when the system has no default input.
	ErrNoInputDevice = errors.New("portaudio: no default input device")
	// ErrStreamClosed is returned by reads on a closed stream.
	ErrStreamClosed = errors.New("portaudio: stream closed")
)

var (
	initOnce sync.Once
	initErr  error
)

// paError converts a PortAudio error code to a Go error.
func paError(code C.PaError) error {
	if code == C.paNoError {
		return nil
	}
	return errors.New(C.GoString(C.Pa_GetErrorText(code)))
}

// Initialize initializes the PortAudio library.
// It is safe to call multiple times.
func Initialize() error {
	initOnce.Do(func() {
		initErr = paError(C.Pa_Initialize())
	})
	return initErr
}

// Terminate terminates the PortAudio library.
func Terminate() error {
	return paError(C.Pa_Terminate())
}

// DeviceInfo describes an input device.
type DeviceInfo struct {
	Index             int
	Name              string
	MaxInputChannels  int
	DefaultSampleRate float64
	IsDefaultInput    bool
}

// InputDevices lists the devices that can record.
func InputDevices() ([]DeviceInfo, error) {
	if err := Initialize(); err != nil {
		return nil, err
	}

	count := int(C.Pa_GetDeviceCount())
	if count < 0 {
		return nil, paError(C.PaError(count))
	}
	defaultInput := int(C.Pa_GetDefaultInputDevice())

	var devices []DeviceInfo
	for i := range count {
		info := C.Pa_GetDeviceInfo(C.PaDeviceIndex(i))
		if info == nil || info.maxInputChannels < 1 {
			continue
		}
		devices = append(devices, DeviceInfo{
			Index:             i,
			Name:              C.GoString(info.name),
			MaxInputChannels:  int(info.maxInputChannels),
			DefaultSampleRate: float64(info.defaultSampleRate),
			IsDefaultInput:    i == defaultInput,
		})
	}
	return devices, nil
}

// DefaultInputDevice returns the system default input device.
func DefaultInputDevice() (*DeviceInfo, error) {
	if err := Initialize(); err != nil {
		return nil, err
	}
	idx := C.Pa_GetDefaultInputDevice()
	if idx == C.paNoDevice {
		return nil, ErrNoInputDevice
	}
	info := C.Pa_GetDeviceInfo(idx)
	if info == nil {
		return nil, errors.New("portaudio: failed to get device info")
	}
	return &DeviceInfo{
		Index:             int(idx),
		Name:              C.GoString(info.name),
		MaxInputChannels:  int(info.maxInputChannels),
		DefaultSampleRate: float64(info.defaultSampleRate),
		IsDefaultInput:    true,
	}, nil
}

// stream is an open PortAudio input stream.
type stream struct {
	mu      sync.Mutex
	ptr     unsafe.Pointer
	buffer  unsafe.Pointer
	frames  int
	running bool
	closed  bool
	// wake is signalled when the stream starts or closes.
	wake *sync.Cond
}

func openInput(device int, sampleRate float64, framesPerBuffer int) (*stream, error) {
	if err := Initialize(); err != nil {
		return nil, err
	}
	info := C.Pa_GetDeviceInfo(C.PaDeviceIndex(device))
	if info == nil {
		return nil, fmt.Errorf("portaudio: no device %d", device)
	}
	params := &C.PaStreamParameters{
		device:                    C.PaDeviceIndex(device),
		channelCount:              1,
		sampleFormat:              C.paInt16,
		suggestedLatency:          info.defaultLowInputLatency,
		hostApiSpecificStreamInfo: nil,
	}

	var ptr unsafe.Pointer
	err := paError(C.pa_open_stream(&ptr, params, nil, C.double(sampleRate), C.ulong(framesPerBuffer), C.paClipOff))
	if err != nil {
		return nil, fmt.Errorf("portaudio: open input: %w", err)
	}
	s := &stream{
		ptr:    ptr,
		buffer: C.malloc(C.size_t(framesPerBuffer * 2)),
		frames: framesPerBuffer,
	}
	s.wake = sync.NewCond(&s.mu)
	return s, nil
}

func (s *stream) start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStreamClosed
	}
	if s.running {
		return nil
	}
	if err := paError(C.pa_start_stream(s.ptr)); err != nil {
		return err
	}
	s.running = true
	s.wake.Broadcast()
	return nil
}

func (s *stream) stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || !s.running {
		return nil
	}
	s.running = false
	return paError(C.pa_stop_stream(s.ptr))
}

func (s *stream) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.wake.Broadcast()
	if s.running {
		C.pa_stop_stream(s.ptr)
	}
	err := paError(C.pa_close_stream(s.ptr))
	C.free(s.buffer)
	return err
}

// read blocks until one buffer of frames is available. A stopped stream
// blocks until it is started again or closed.
func (s *stream) read() ([]int16, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for !s.running && !s.closed {
		s.wake.Wait()
	}
	if s.closed {
		return nil, ErrStreamClosed
	}
	if err := paError(C.pa_read_stream(s.ptr, s.buffer, C.ulong(s.frames))); err != nil {
		return nil, err
	}
	samples := make([]int16, s.frames)
	C.memcpy(unsafe.Pointer(&samples[0]), s.buffer, C.size_t(s.frames*2))
	return samples, nil
}
