package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/haivivi/voxmemo/pkg/audio/pcm"
	"github.com/haivivi/voxmemo/pkg/audio/resampler"
	"github.com/haivivi/voxmemo/pkg/audio/wav"
	"github.com/haivivi/voxmemo/pkg/buffer"
	"github.com/haivivi/voxmemo/pkg/jsontime"
	"github.com/haivivi/voxmemo/pkg/memo"
)

// State is the recorder lifecycle state.
type State int

const (
	StateUninitialized State = iota
	StatePermissionPending
	StatePermissionDenied
	StateReady
	StateRecording
	StatePaused
	StateStopped
)

var stateNames = [...]string{
	"uninitialized",
	"permission_pending",
	"permission_denied",
	"ready",
	"recording",
	"paused",
	"stopped",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Active reports whether a session is in progress.
func (s State) Active() bool { return s == StateRecording || s == StatePaused }

// LevelWindow is the number of level samples retained.
const LevelWindow = 100

// Options configures a Recorder.
type Options struct {
	// Dir receives recordings. Defaults to os.TempDir().
	Dir string
	// Format of the written file. The zero value is pcm.L16Mono16K.
	Format pcm.Format
	// LevelInterval and ElapsedInterval default to 50ms and 100ms.
	LevelInterval   time.Duration
	ElapsedInterval time.Duration
	Logger          *slog.Logger
}

// Snapshot is a point-in-time view of a recording session.
type Snapshot struct {
	State   State             `json:"state"`
	Elapsed jsontime.Duration `json:"elapsed"`
	Level   float32           `json:"level"`
	Levels  []float32         `json:"levels"`
}

// Recorder owns one microphone session at a time.
type Recorder struct {
	dev  Device
	perm Permission
	opts Options
	log  *slog.Logger

	mu      sync.Mutex
	state   State
	elapsed time.Duration
	level   float32
	blockDB float64
	levels  *buffer.RingBuffer[float32]
	opening bool
	sess    *session
	stopRun func()
}

// session holds the resources of one recording.
type session struct {
	stream Stream
	conv   *resampler.Converter
	file   *os.File
	wav    *wav.Writer
	part   string
	done   chan struct{}
	err    error
}

// NewRecorder creates a Recorder reading from dev after perm grants access.
func NewRecorder(dev Device, perm Permission, opts Options) *Recorder {
	if opts.Dir == "" {
		opts.Dir = os.TempDir()
	}
	if opts.LevelInterval <= 0 {
		opts.LevelInterval = 50 * time.Millisecond
	}
	if opts.ElapsedInterval <= 0 {
		opts.ElapsedInterval = 100 * time.Millisecond
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Recorder{
		dev:     dev,
		perm:    perm,
		opts:    opts,
		log:     log,
		levels:  buffer.RingN[float32](LevelWindow),
		blockDB: FloorDB,
	}
}

// State returns the current state.
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Snapshot returns the current session view.
func (r *Recorder) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Snapshot{
		State:   r.state,
		Elapsed: jsontime.Duration(r.elapsed),
		Level:   r.level,
		Levels:  r.levels.Snapshot(),
	}
}

// Prepare asks for microphone permission. It moves the recorder to Ready
// or PermissionDenied and is a no-op once permission has been decided.
func (r *Recorder) Prepare(ctx context.Context) error {
	r.mu.Lock()
	switch r.state {
	case StateUninitialized:
		r.state = StatePermissionPending
	case StatePermissionDenied:
		r.mu.Unlock()
		return fmt.Errorf("capture: %w", memo.ErrPermissionDenied)
	case StatePermissionPending:
		r.mu.Unlock()
		return errors.New("capture: permission request in progress")
	default:
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	granted, err := r.perm.Request(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.state = StateUninitialized
		return fmt.Errorf("capture: request permission: %w", err)
	}
	if !granted {
		r.state = StatePermissionDenied
		r.log.Warn("microphone permission denied")
		return fmt.Errorf("capture: %w", memo.ErrPermissionDenied)
	}
	r.state = StateReady
	return nil
}

// Start opens the device and begins a new session, asking for permission
// first if needed.
func (r *Recorder) Start(ctx context.Context) error {
	if err := r.Prepare(ctx); err != nil {
		return err
	}

	r.mu.Lock()
	if (r.state != StateReady && r.state != StateStopped) || r.opening {
		s := r.state
		r.mu.Unlock()
		return fmt.Errorf("capture: cannot start while %s", s)
	}
	r.opening = true
	r.mu.Unlock()

	sess, err := r.open(ctx)

	r.mu.Lock()
	r.opening = false
	if err != nil {
		r.mu.Unlock()
		return err
	}
	r.sess = sess
	r.state = StateRecording
	r.elapsed = 0
	r.level = 0
	r.blockDB = FloorDB
	r.levels.Reset()
	r.stopRun = r.runSampler()
	r.mu.Unlock()

	go r.read(sess)
	r.log.Info("recording started", "file", filepath.Base(sess.part), "device_format", sess.stream.Format().String())
	return nil
}

func (r *Recorder) open(ctx context.Context) (*session, error) {
	if err := os.MkdirAll(r.opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("capture: %w: %w", memo.ErrRecordingFailed, err)
	}
	stream, err := r.dev.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("capture: open device: %w: %w", memo.ErrRecordingFailed, err)
	}
	conv, err := resampler.New(stream.Format(), r.opts.Format)
	if err != nil {
		stream.Close()
		return nil, fmt.Errorf("capture: %w: %w", memo.ErrRecordingFailed, err)
	}

	name := fmt.Sprintf("recording_%d.wav", time.Now().UnixMilli())
	part := filepath.Join(r.opts.Dir, name+".part")
	f, err := os.Create(part)
	if err != nil {
		stream.Close()
		return nil, fmt.Errorf("capture: %w: %w", memo.ErrRecordingFailed, err)
	}
	w, err := wav.NewWriter(f, r.opts.Format)
	if err != nil {
		f.Close()
		os.Remove(part)
		stream.Close()
		return nil, fmt.Errorf("capture: %w: %w", memo.ErrRecordingFailed, err)
	}
	return &session{
		stream: stream,
		conv:   conv,
		file:   f,
		wav:    w,
		part:   part,
		done:   make(chan struct{}),
	}, nil
}

// read pumps the stream into the file until the stream is closed.
func (r *Recorder) read(sess *session) {
	defer close(sess.done)
	_, canPause := sess.stream.(Pauser)
	for {
		chunk, err := sess.stream.ReadChunk()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			sess.err = err
			r.log.Error("capture read failed", "err", err)
			return
		}

		samples := chunk.Samples()
		r.mu.Lock()
		paused := r.state == StatePaused
		if !paused {
			r.blockDB = DBFS(samples)
		}
		r.mu.Unlock()
		if paused && !canPause {
			continue
		}

		out, err := sess.conv.ConvertChunk(chunk)
		if err != nil {
			sess.err = err
			return
		}
		if err := sess.wav.Write(out); err != nil {
			sess.err = err
			r.log.Error("capture write failed", "err", err)
			return
		}
	}
}

// runSampler starts the sampling routine and returns its stop function.
// Must be called with r.mu held.
func (r *Recorder) runSampler() func() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		levels := time.NewTicker(r.opts.LevelInterval)
		defer levels.Stop()
		clock := time.NewTicker(r.opts.ElapsedInterval)
		defer clock.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-levels.C:
				r.mu.Lock()
				r.level = Normalize(r.blockDB)
				r.levels.Add(r.level)
				r.mu.Unlock()
			case <-clock.C:
				r.mu.Lock()
				r.elapsed += r.opts.ElapsedInterval
				r.mu.Unlock()
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

// takeSampler detaches the running sampler. Must be called with r.mu held;
// the returned function must be called without it.
func (r *Recorder) takeSampler() func() {
	stop := r.stopRun
	r.stopRun = nil
	if stop == nil {
		return func() {}
	}
	return stop
}

// Pause suspends recording. Level and clock sampling stop together.
func (r *Recorder) Pause() error {
	r.mu.Lock()
	if r.state != StateRecording {
		s := r.state
		r.mu.Unlock()
		return fmt.Errorf("capture: cannot pause while %s", s)
	}
	r.state = StatePaused
	r.level = 0
	stop := r.takeSampler()
	stream := r.sess.stream
	r.mu.Unlock()

	stop()
	if p, ok := stream.(Pauser); ok {
		if err := p.Pause(); err != nil {
			r.log.Warn("pause device", "err", err)
		}
	}
	return nil
}

// Resume continues a paused recording.
func (r *Recorder) Resume() error {
	r.mu.Lock()
	if r.state != StatePaused {
		s := r.state
		r.mu.Unlock()
		return fmt.Errorf("capture: cannot resume while %s", s)
	}
	stream := r.sess.stream
	r.mu.Unlock()

	if p, ok := stream.(Pauser); ok {
		if err := p.Resume(); err != nil {
			return fmt.Errorf("capture: resume device: %w: %w", memo.ErrRecordingFailed, err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StatePaused {
		return fmt.Errorf("capture: cannot resume while %s", r.state)
	}
	r.state = StateRecording
	r.stopRun = r.runSampler()
	return nil
}

// Stop ends the session, finalizes the WAV file and returns it. Stop
// without an active session returns (nil, nil).
func (r *Recorder) Stop() (*memo.AudioSource, error) {
	r.mu.Lock()
	if !r.state.Active() {
		r.mu.Unlock()
		return nil, nil
	}
	r.state = StateStopped
	r.level = 0
	stop := r.takeSampler()
	sess := r.sess
	r.sess = nil
	r.mu.Unlock()

	stop()
	closeErr := sess.stream.Close()
	<-sess.done
	return r.finish(sess, closeErr)
}

func (r *Recorder) finish(sess *session, closeErr error) (*memo.AudioSource, error) {
	fail := func(err error) (*memo.AudioSource, error) {
		sess.file.Close()
		os.Remove(sess.part)
		return nil, fmt.Errorf("capture: %w: %w", memo.ErrRecordingFailed, err)
	}
	if sess.err != nil {
		return fail(sess.err)
	}
	if closeErr != nil {
		r.log.Warn("close device", "err", closeErr)
	}
	if err := sess.wav.Close(); err != nil {
		return fail(err)
	}
	if err := sess.file.Close(); err != nil {
		return fail(err)
	}
	path := strings.TrimSuffix(sess.part, ".part")
	if err := os.Rename(sess.part, path); err != nil {
		return fail(err)
	}
	src := &memo.AudioSource{
		Path:     path,
		Duration: r.opts.Format.Duration(sess.wav.Len()),
		Format:   r.opts.Format,
	}
	r.log.Info("recording stopped", "file", filepath.Base(path), "duration", src.Duration.Round(time.Millisecond))
	return src, nil
}
