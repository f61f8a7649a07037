package capture

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// LevelFeed serves recorder snapshots over a websocket. Each connection
// receives one JSON Snapshot per Interval until it closes or stops reading.
type LevelFeed struct {
	Recorder *Recorder
	// Interval defaults to 50ms.
	Interval time.Duration
	Logger   *slog.Logger

	upgrader websocket.Upgrader
}

// NewLevelFeed creates a LevelFeed for r.
func NewLevelFeed(r *Recorder) *LevelFeed {
	return &LevelFeed{
		Recorder: r,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
}

// ServeHTTP implements http.Handler.
func (f *LevelFeed) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	log := f.Logger
	if log == nil {
		log = slog.Default()
	}
	interval := f.Interval
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}

	conn, err := f.upgrader.Upgrade(w, req, nil)
	if err != nil {
		log.Warn("level feed upgrade", "err", err)
		return
	}
	defer conn.Close()
	log.Debug("level feed connected", "remote", req.RemoteAddr)

	// Drain client frames so close messages are processed.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-closed:
			return
		case <-req.Context().Done():
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(5 * interval))
			if err := conn.WriteJSON(f.Recorder.Snapshot()); err != nil {
				log.Debug("level feed closed", "remote", req.RemoteAddr, "err", err)
				return
			}
		}
	}
}
