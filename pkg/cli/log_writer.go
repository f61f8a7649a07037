package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/haivivi/voxmemo/pkg/buffer"
)

// LogWriter is an io.Writer that keeps the last lines written to it for
// display below the recording meter. Pass it to slog.NewTextHandler.
type LogWriter struct {
	lines *buffer.RingBuffer[string]
}

// NewLogWriter keeps at most maxLines lines.
func NewLogWriter(maxLines int) *LogWriter {
	return &LogWriter{lines: buffer.RingN[string](maxLines)}
}

// Write implements io.Writer.
func (w *LogWriter) Write(p []byte) (int, error) {
	text := strings.TrimRight(string(p), "\n")
	for line := range strings.SplitSeq(text, "\n") {
		if err := w.lines.Add(line); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

// Lines returns the retained lines, oldest first.
func (w *LogWriter) Lines() []string {
	return w.lines.Snapshot()
}

// Flush stops retaining lines and writes the ones still held to dst,
// oldest first. Writes after Flush fail.
func (w *LogWriter) Flush(dst io.Writer) error {
	if err := w.lines.CloseWrite(); err != nil {
		return err
	}
	for {
		line, err := w.lines.Next()
		if errors.Is(err, buffer.ErrIteratorDone) {
			return nil
		}
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(dst, line); err != nil {
			return err
		}
	}
}
