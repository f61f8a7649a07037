package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/pion/rtp"

	"github.com/haivivi/voxmemo/pkg/audio/pcm"
)

// RTPDevice receives a network microphone: mono audio/L16 (RFC 3551,
// big-endian samples) in RTP packets on a UDP address. Packets arriving
// after a newer sequence number are dropped.
type RTPDevice struct {
	// Addr is the UDP address to listen on, such as ":5004".
	Addr string
	// Format is the sample rate the sender uses.
	Format pcm.Format
}

// Open implements Device.
func (d RTPDevice) Open(ctx context.Context) (Stream, error) {
	var lc net.ListenConfig
	conn, err := lc.ListenPacket(ctx, "udp", d.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen rtp: %w", err)
	}
	return &rtpStream{conn: conn, format: d.Format, buf: make([]byte, 1500)}, nil
}

type rtpStream struct {
	conn   net.PacketConn
	format pcm.Format
	buf    []byte

	started bool
	lastSeq uint16

	closeOnce sync.Once
}

// LocalAddr returns the bound address, useful with port 0.
func (s *rtpStream) LocalAddr() net.Addr { return s.conn.LocalAddr() }

func (s *rtpStream) Format() pcm.Format { return s.format }

func (s *rtpStream) ReadChunk() (*pcm.DataChunk, error) {
	for {
		n, _, err := s.conn.ReadFrom(s.buf)
		if errors.Is(err, net.ErrClosed) {
			return nil, io.EOF
		}
		if err != nil {
			return nil, err
		}
		var pkt rtp.Packet
		if err := pkt.Unmarshal(s.buf[:n]); err != nil {
			continue
		}
		if s.started && int16(pkt.SequenceNumber-s.lastSeq) <= 0 {
			continue
		}
		s.started = true
		s.lastSeq = pkt.SequenceNumber
		if len(pkt.Payload) < 2 {
			continue
		}
		return s.format.DataChunk(swap16(pkt.Payload)), nil
	}
}

func (s *rtpStream) Close() error {
	var err error
	s.closeOnce.Do(func() { err = s.conn.Close() })
	return err
}

// swap16 converts big-endian samples to little-endian, dropping a
// trailing odd byte.
func swap16(b []byte) []byte {
	out := make([]byte, len(b)&^1)
	for i := 0; i+1 < len(b); i += 2 {
		out[i], out[i+1] = b[i+1], b[i]
	}
	return out
}
