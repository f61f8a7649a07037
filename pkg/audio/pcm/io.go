package pcm

import (
	"errors"
	"io"
	"time"
)

// Writer consumes audio chunks.
type Writer interface {
	Write(Chunk) error
}

var _ Writer = WriteFunc(nil)

// WriteFunc adapts a function to Writer.
type WriteFunc func(Chunk) error

// Write implements Writer.
func (f WriteFunc) Write(c Chunk) error {
	return f(c)
}

// Copy reads r in blocks of at least 20ms and writes them to w as chunks of
// the given format. EOF ends the copy without error.
func Copy(w Writer, r io.Reader, format Format) error {
	minChunk := int(format.BytesInDuration(20 * time.Millisecond))
	buf := make([]byte, 10*minChunk)
	for {
		n, err := io.ReadAtLeast(r, buf, minChunk)
		n -= n % format.BlockAlign()
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			if err := w.Write(format.DataChunk(data)); err != nil {
				return err
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			return err
		}
	}
}
