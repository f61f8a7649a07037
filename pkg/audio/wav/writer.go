package wav

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/haivivi/voxmemo/pkg/audio/pcm"
)

var _ pcm.Writer = (*Writer)(nil)

// Writer streams PCM chunks into a WAV file. The header sizes are patched
// on Close, so the destination must be seekable.
type Writer struct {
	w      io.WriteSeeker
	format pcm.Format
	n      int64
	closed bool
}

// NewWriter writes a placeholder header to w.
func NewWriter(w io.WriteSeeker, f pcm.Format) (*Writer, error) {
	if _, err := w.Write(AppendHeader(nil, f, 0)); err != nil {
		return nil, fmt.Errorf("wav: write header: %w", err)
	}
	return &Writer{w: w, format: f}, nil
}

// Write implements pcm.Writer.
func (w *Writer) Write(c pcm.Chunk) error {
	if w.closed {
		return errors.New("wav: write after close")
	}
	if c.Format() != w.format {
		return fmt.Errorf("wav: chunk format %v, want %v", c.Format(), w.format)
	}
	n, err := c.WriteTo(w.w)
	w.n += n
	return err
}

// Len returns the number of sample bytes written so far.
func (w *Writer) Len() int64 { return w.n }

// Format returns the format of the file.
func (w *Writer) Format() pcm.Format { return w.format }

// Close patches the header. It does not close the underlying writer.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if w.n > math.MaxUint32-36 {
		return errors.New("wav: data exceeds 4 GiB")
	}
	if _, err := w.w.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("wav: patch header: %w", err)
	}
	if _, err := w.w.Write(AppendHeader(nil, w.format, uint32(w.n))); err != nil {
		return fmt.Errorf("wav: patch header: %w", err)
	}
	_, err := w.w.Seek(0, io.SeekEnd)
	return err
}
