package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/haivivi/voxmemo/pkg/audio/pcm"
	"github.com/haivivi/voxmemo/pkg/audio/portaudio"
	"github.com/haivivi/voxmemo/pkg/capture"
	"github.com/haivivi/voxmemo/pkg/cli"
	"github.com/haivivi/voxmemo/pkg/memo"
)

// testDevice replaces the microphone in tests.
var testDevice capture.Device

var recordFlags struct {
	duration     time.Duration
	noTranscribe bool
	keep         bool
	language     string
	device       int
	rtpAddr      string
	rtpRate      int
}

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record a memo from the microphone and transcribe it",
	Long: `Record from the default input device until Ctrl-C (or --duration),
then transcribe the recording with the configured model and save it to
the history. The recording is deleted after a successful transcription
unless --keep is given.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		dev, release, err := openDevice()
		if err != nil {
			return err
		}
		defer release()

		src, err := record(ctx, dev)
		if err != nil {
			return err
		}
		if recordFlags.noTranscribe {
			return output(src, cli.FormatYAML)
		}

		// The recording context is done after Ctrl-C; transcription gets
		// its own.
		tctx, tstop := signal.NotifyContext(context.WithoutCancel(cmd.Context()), os.Interrupt)
		defer tstop()
		res, err := runTranscription(tctx, *src, transcribeRequest{Language: recordFlags.language})
		if err != nil {
			cli.PrintWarning("recording kept at %s", src.Path)
			return err
		}
		if err := printResult(res); err != nil {
			return err
		}
		if err := saveResult(tctx, res); err != nil {
			cli.PrintWarning("recording kept at %s", src.Path)
			return err
		}
		if !recordFlags.keep {
			if err := os.Remove(src.Path); err != nil {
				logger.Warn("remove recording", "err", err)
			}
		}
		return nil
	},
}

func init() {
	f := recordCmd.Flags()
	f.DurationVarP(&recordFlags.duration, "duration", "d", 0, "stop after this long (0 records until Ctrl-C)")
	f.BoolVar(&recordFlags.noTranscribe, "no-transcribe", false, "only record; print the recording")
	f.BoolVar(&recordFlags.keep, "keep", false, "keep the recording after transcribing")
	f.StringVarP(&recordFlags.language, "lang", "l", "", "language hint, \"auto\" to detect")
	addDeviceFlags(recordCmd)
	rootCmd.AddCommand(recordCmd)
}

// addDeviceFlags registers the microphone selection flags shared by
// record and serve.
func addDeviceFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.IntVar(&recordFlags.device, "device", -1, "input device index (-1 for the default)")
	f.StringVar(&recordFlags.rtpAddr, "rtp", "", "receive audio/L16 over RTP on this UDP address instead of a local device")
	f.IntVar(&recordFlags.rtpRate, "rtp-rate", 16000, "sample rate of the RTP sender")
}

// openDevice returns the microphone and a func that releases the audio
// system.
func openDevice() (capture.Device, func(), error) {
	if testDevice != nil {
		return testDevice, func() {}, nil
	}
	if recordFlags.rtpAddr != "" {
		format, err := pcm.FormatOf(recordFlags.rtpRate)
		if err != nil {
			return nil, nil, err
		}
		return capture.RTPDevice{Addr: recordFlags.rtpAddr, Format: format}, func() {}, nil
	}
	if err := portaudio.Initialize(); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", memo.ErrRecordingFailed, err)
	}
	dev := capture.PortAudio{Config: portaudio.InputConfig{Device: recordFlags.device}}
	return dev, func() { portaudio.Terminate() }, nil
}

// microphone grants access when an input device exists.
var microphone = capture.NewCachedPermission(capture.PermissionFunc(func(context.Context) (bool, error) {
	if testDevice != nil || recordFlags.rtpAddr != "" {
		return true, nil
	}
	devs, err := portaudio.InputDevices()
	if err != nil {
		return false, err
	}
	return len(devs) > 0, nil
}))

func newRecorder(dev capture.Device, log *slog.Logger) (*capture.Recorder, error) {
	dir := paths.RecordingsDir()
	if err := cli.Ensure(dir); err != nil {
		return nil, err
	}
	return capture.NewRecorder(dev, microphone, capture.Options{
		Dir:    dir,
		Logger: log,
	}), nil
}

// record runs one session until ctx is done or the duration elapses.
func record(ctx context.Context, dev capture.Device) (*memo.AudioSource, error) {
	tty := isTerminal(os.Stderr)
	log := logger
	var logs *cli.LogWriter
	if tty {
		logs = cli.NewLogWriter(3)
		log = slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	rec, err := newRecorder(dev, log)
	if err != nil {
		return nil, err
	}
	if err := rec.Start(ctx); err != nil {
		return nil, err
	}

	var deadline <-chan time.Time
	if recordFlags.duration > 0 {
		timer := time.NewTimer(recordFlags.duration)
		defer timer.Stop()
		deadline = timer.C
	}
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	screen := &screen{w: os.Stderr, styles: cli.NewStyles(cli.DefaultTheme), logs: logs}
	if !tty {
		fmt.Fprintln(os.Stderr, "recording, press Ctrl-C to stop")
	}
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-deadline:
			break loop
		case <-ticker.C:
			snap := rec.Snapshot()
			if snap.State != capture.StateRecording {
				break loop
			}
			if tty {
				screen.draw(snap)
			}
		}
	}
	src, err := rec.Stop()
	if tty {
		screen.clear()
		if ferr := logs.Flush(os.Stderr); ferr != nil {
			logger.Debug("flush recording log", "err", ferr)
		}
	}
	return src, err
}

// screen redraws the recording view in place.
type screen struct {
	w      io.Writer
	styles cli.Styles
	logs   *cli.LogWriter
	height int
}

func (s *screen) draw(snap capture.Snapshot) {
	view := cli.RecordView{
		Styles:  s.styles,
		State:   snap.State.String(),
		Elapsed: time.Duration(snap.Elapsed),
		Levels:  snap.Levels,
		Help:    "Ctrl-C stops the recording",
	}
	if s.logs != nil {
		view.Logs = s.logs.Lines()
	}
	frame := view.Render(60)
	s.clear()
	fmt.Fprintln(s.w, frame)
	s.height = lipgloss.Height(frame)
}

func (s *screen) clear() {
	if s.height > 0 {
		fmt.Fprint(s.w, strings.Repeat("\033[1A\033[2K", s.height))
	}
	s.height = 0
}
