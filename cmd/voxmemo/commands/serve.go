package commands

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/haivivi/voxmemo/pkg/capture"
	"github.com/haivivi/voxmemo/pkg/cli"
	"github.com/haivivi/voxmemo/pkg/memo"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Record under HTTP control and stream levels over a websocket",
	Long: `Serve a recorder over HTTP for a local front end.

Endpoints:
  GET  /levels   websocket; one JSON snapshot (state, elapsed, level,
                 levels) every 50ms
  GET  /state    the current snapshot
  POST /start    start a new recording
  POST /pause    pause the recording
  POST /resume   resume the recording
  POST /stop     stop, transcribe and save; responds with the result

The server stops on Ctrl-C.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		dev, release, err := openDevice()
		if err != nil {
			return err
		}
		defer release()
		rec, err := newRecorder(dev, logger)
		if err != nil {
			return err
		}
		if err := rec.Prepare(ctx); err != nil {
			return err
		}

		ln, err := net.Listen("tcp", serveAddr)
		if err != nil {
			return err
		}
		srv := &http.Server{Handler: newServeMux(rec)}
		cli.PrintInfo("listening on http://%s", ln.Addr())

		done := make(chan error, 1)
		go func() { done <- srv.Serve(ln) }()
		select {
		case err := <-done:
			return err
		case <-ctx.Done():
		}
		shutdown, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if src, err := rec.Stop(); err == nil && src != nil {
			cli.PrintWarning("unfinished recording kept at %s", src.Path)
		}
		if err := srv.Shutdown(shutdown); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "127.0.0.1:7411", "listen address")
	addDeviceFlags(serveCmd)
	rootCmd.AddCommand(serveCmd)
}

func newServeMux(rec *capture.Recorder) *http.ServeMux {
	feed := capture.NewLevelFeed(rec)
	feed.Logger = logger

	// One stop-and-transcribe at a time.
	var stopMu sync.Mutex

	mux := http.NewServeMux()
	mux.Handle("GET /levels", feed)
	mux.HandleFunc("GET /state", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, rec.Snapshot())
	})
	mux.HandleFunc("POST /start", func(w http.ResponseWriter, r *http.Request) {
		// The session outlives the request.
		if err := rec.Start(context.WithoutCancel(r.Context())); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rec.Snapshot())
	})
	mux.HandleFunc("POST /pause", func(w http.ResponseWriter, _ *http.Request) {
		if err := rec.Pause(); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rec.Snapshot())
	})
	mux.HandleFunc("POST /resume", func(w http.ResponseWriter, _ *http.Request) {
		if err := rec.Resume(); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rec.Snapshot())
	})
	mux.HandleFunc("POST /stop", func(w http.ResponseWriter, r *http.Request) {
		stopMu.Lock()
		defer stopMu.Unlock()
		src, err := rec.Stop()
		if err != nil {
			writeError(w, err)
			return
		}
		if src == nil {
			writeJSON(w, http.StatusConflict, errorBody{Error: "not recording"})
			return
		}
		res, err := runTranscription(r.Context(), *src, transcribeRequest{})
		if err != nil {
			logger.Warn("recording kept", "path", src.Path, "err", err)
			writeError(w, err)
			return
		}
		if err := saveResult(r.Context(), res); err != nil {
			logger.Warn("recording kept", "path", src.Path, "err", err)
			writeJSON(w, http.StatusOK, stopResponse{Result: res, Warning: memo.Message(err, settings.DefaultLanguage)})
			return
		}
		if err := os.Remove(src.Path); err != nil {
			logger.Warn("remove recording", "err", err)
		}
		writeJSON(w, http.StatusOK, stopResponse{Result: res})
	})
	return mux
}

// stopResponse is the finished transcript. Warning is set when it could
// not be saved to the history.
type stopResponse struct {
	*memo.Result
	Warning string `json:"warning,omitempty"`
}

type errorBody struct {
	Error  string `json:"error"`
	// Detail is the error chain, only sent with --verbose.
	Detail string `json:"detail,omitempty"`
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, memo.ErrPermissionDenied):
		status = http.StatusForbidden
	case errors.Is(err, memo.ErrNotFound):
		status = http.StatusNotFound
	case !isKnown(err):
		status = http.StatusConflict
	}
	body := errorBody{Error: memo.Message(err, settings.DefaultLanguage)}
	if status == http.StatusConflict {
		// Recorder state errors carry no internal detail.
		body.Error = err.Error()
	} else if verbose {
		body.Detail = err.Error()
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := cli.Output(v, cli.OutputOptions{Format: cli.FormatJSON, Writer: w}); err != nil {
		logger.Debug("write response", "err", err)
	}
}
