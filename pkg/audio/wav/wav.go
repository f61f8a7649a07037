// Package wav reads and writes the canonical RIFF/WAVE container around
// mono 16-bit PCM.
package wav

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/haivivi/voxmemo/pkg/audio/pcm"
)

// HeaderSize is the size of the header written by Writer.
const HeaderSize = 44

var (
	// ErrInvalid is returned for data that is not a RIFF/WAVE stream.
	ErrInvalid = errors.New("wav: invalid file")
	// ErrUnsupported is returned for valid files in a layout other than
	// mono PCM16 at a rate known to pcm.
	ErrUnsupported = errors.New("wav: unsupported format")
)

// Header locates the sample data of a WAV stream.
type Header struct {
	Format     pcm.Format
	DataOffset int64
	DataSize   int64
}

// Duration is the play time of the data chunk.
func (h Header) Duration() time.Duration {
	return h.Format.Duration(h.DataSize)
}

// ReadHeader parses the RIFF chunks of r up to the start of the data
// chunk. Unknown chunks such as LIST are skipped.
func ReadHeader(r io.ReadSeeker) (Header, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return Header{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return Header{}, ErrInvalid
	}

	var (
		h      Header
		gotFmt bool
		pos    int64 = 12
	)
	for {
		var ch [8]byte
		if _, err := io.ReadFull(r, ch[:]); err != nil {
			return Header{}, fmt.Errorf("%w: missing data chunk", ErrInvalid)
		}
		pos += 8
		id := string(ch[0:4])
		size := int64(binary.LittleEndian.Uint32(ch[4:8]))

		switch id {
		case "fmt ":
			if size < 16 {
				return Header{}, fmt.Errorf("%w: short fmt chunk", ErrInvalid)
			}
			var fb [16]byte
			if _, err := io.ReadFull(r, fb[:]); err != nil {
				return Header{}, fmt.Errorf("%w: %v", ErrInvalid, err)
			}
			audioFormat := binary.LittleEndian.Uint16(fb[0:2])
			channels := binary.LittleEndian.Uint16(fb[2:4])
			rate := binary.LittleEndian.Uint32(fb[4:8])
			bits := binary.LittleEndian.Uint16(fb[14:16])
			if audioFormat != 1 || channels != 1 || bits != 16 {
				return Header{}, fmt.Errorf("%w: format=%d channels=%d bits=%d", ErrUnsupported, audioFormat, channels, bits)
			}
			f, err := pcm.FormatOf(int(rate))
			if err != nil {
				return Header{}, fmt.Errorf("%w: %v", ErrUnsupported, err)
			}
			h.Format = f
			gotFmt = true
			if err := skip(r, size-16+size%2); err != nil {
				return Header{}, err
			}
		case "data":
			if !gotFmt {
				return Header{}, fmt.Errorf("%w: data before fmt", ErrInvalid)
			}
			h.DataOffset = pos
			h.DataSize = size
			// Streams written without a final size patch report 0 or
			// 0xFFFFFFFF; trust the file length instead.
			if end, err := r.Seek(0, io.SeekEnd); err == nil {
				if avail := end - pos; size == 0 || size == 0xFFFFFFFF || size > avail {
					h.DataSize = avail
				}
			}
			h.DataSize -= h.DataSize % int64(h.Format.BlockAlign())
			if _, err := r.Seek(pos, io.SeekStart); err != nil {
				return Header{}, err
			}
			return h, nil
		default:
			if err := skip(r, size+size%2); err != nil {
				return Header{}, err
			}
		}
		pos += size + size%2
	}
}

func skip(r io.Seeker, n int64) error {
	if n <= 0 {
		return nil
	}
	_, err := r.Seek(n, io.SeekCurrent)
	return err
}

// AppendHeader appends a 44-byte canonical header for dataSize bytes of
// samples in format f.
func AppendHeader(dst []byte, f pcm.Format, dataSize uint32) []byte {
	dst = append(dst, "RIFF"...)
	dst = binary.LittleEndian.AppendUint32(dst, 36+dataSize)
	dst = append(dst, "WAVEfmt "...)
	dst = binary.LittleEndian.AppendUint32(dst, 16)
	dst = binary.LittleEndian.AppendUint16(dst, 1)
	dst = binary.LittleEndian.AppendUint16(dst, uint16(f.Channels()))
	dst = binary.LittleEndian.AppendUint32(dst, uint32(f.SampleRate()))
	dst = binary.LittleEndian.AppendUint32(dst, uint32(f.BytesRate()))
	dst = binary.LittleEndian.AppendUint16(dst, uint16(f.BlockAlign()))
	dst = binary.LittleEndian.AppendUint16(dst, uint16(f.Depth()))
	dst = append(dst, "data"...)
	return binary.LittleEndian.AppendUint32(dst, dataSize)
}
