// Package statusapi serves a small local HTTP surface for watching and
// steering a running session.
package statusapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/chriscow/meetsl-go/pkg/assist"
	"github.com/chriscow/meetsl-go/pkg/latency"
	"github.com/chriscow/meetsl-go/pkg/session"
)

const maxBodyBytes = 4096

// Controller is the part of a session the API drives.
type Controller interface {
	Snapshot() session.Snapshot
	Metrics() *latency.Metrics
	SetMode(assist.Mode)
	AcceptSuggestion() (string, bool)
	RejectSuggestion()
	ClearCaptions()
	ClearTranscript()
	SetSpeechOutput(enabled bool)
	SetSpeechInput(enabled bool) error
}

type modeRequest struct {
	Mode string `json:"mode"`
}

type toggleRequest struct {
	Enabled *bool `json:"enabled"`
}

// NewHandler builds the router for ctrl and publishes its state under
// /debug/vars.
func NewHandler(ctrl Controller, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	publish(ctrl)

	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		snap := ctrl.Snapshot()
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":         true,
			"session_id": snap.ID,
			"transport":  snap.Transport.State,
		})
	})
	r.Get("/state", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, ctrl.Snapshot())
	})
	r.Handle("/debug/vars", expvar.Handler())

	r.Route("/assist", func(r chi.Router) {
		r.Post("/mode", func(w http.ResponseWriter, req *http.Request) {
			var in modeRequest
			if err := decodeJSONBody(req, &in); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			mode, err := assist.ParseMode(in.Mode)
			if err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			ctrl.SetMode(mode)
			logger.Info("Assist mode changed", slog.String("mode", mode.String()))
			writeJSON(w, http.StatusOK, ctrl.Snapshot().Assist)
		})
		r.Post("/accept", func(w http.ResponseWriter, _ *http.Request) {
			text, ok := ctrl.AcceptSuggestion()
			if !ok {
				writeError(w, http.StatusConflict, errors.New("no suggestion is waiting for confirmation"))
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"spoken": text})
		})
		r.Post("/reject", func(w http.ResponseWriter, _ *http.Request) {
			ctrl.RejectSuggestion()
			writeJSON(w, http.StatusOK, ctrl.Snapshot().Assist)
		})
	})

	r.Post("/captions/clear", func(w http.ResponseWriter, _ *http.Request) {
		ctrl.ClearCaptions()
		writeJSON(w, http.StatusOK, ctrl.Snapshot().Captions)
	})
	r.Post("/transcript/clear", func(w http.ResponseWriter, _ *http.Request) {
		ctrl.ClearTranscript()
		writeJSON(w, http.StatusOK, ctrl.Snapshot().SpeechInput)
	})

	r.Post("/speech/output", func(w http.ResponseWriter, req *http.Request) {
		enabled, ok := decodeToggle(w, req)
		if !ok {
			return
		}
		ctrl.SetSpeechOutput(enabled)
		writeJSON(w, http.StatusOK, map[string]any{"speech_output": enabled})
	})
	r.Post("/speech/input", func(w http.ResponseWriter, req *http.Request) {
		enabled, ok := decodeToggle(w, req)
		if !ok {
			return
		}
		if err := ctrl.SetSpeechInput(enabled); err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, session.ErrSpeechInputUnavailable) {
				status = http.StatusConflict
			}
			writeError(w, status, err)
			return
		}
		writeJSON(w, http.StatusOK, ctrl.Snapshot().SpeechInput)
	})

	return r
}

// Serve runs the API on addr until ctx is done.
func Serve(ctx context.Context, addr string, h http.Handler, logger *slog.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("status api listen: %w", err)
	}
	return serve(ctx, ln, h, logger)
}

func serve(ctx context.Context, ln net.Listener, h http.Handler, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Status API started", slog.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Status API shutdown failed", slog.String("error", err.Error()))
		return err
	}
	return nil
}

// expvar names are process global, so the published functions read
// whichever controller was registered last.
var (
	publishOnce sync.Once
	current     atomic.Value // holds controllerBox
)

type controllerBox struct{ ctrl Controller }

func publish(ctrl Controller) {
	current.Store(controllerBox{ctrl})
	publishOnce.Do(func() {
		expvar.Publish("meetsl_session", expvar.Func(func() any {
			box, _ := current.Load().(controllerBox)
			if box.ctrl == nil {
				return nil
			}
			return box.ctrl.Snapshot()
		}))
		expvar.Publish("meetsl_latency", expvar.Func(func() any {
			box, _ := current.Load().(controllerBox)
			if box.ctrl == nil {
				return nil
			}
			return json.RawMessage(box.ctrl.Metrics().Vars.String())
		}))
	})
}

func decodeToggle(w http.ResponseWriter, req *http.Request) (bool, bool) {
	var in toggleRequest
	if err := decodeJSONBody(req, &in); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return false, false
	}
	if in.Enabled == nil {
		writeError(w, http.StatusBadRequest, errors.New("enabled is required"))
		return false, false
	}
	return *in.Enabled, true
}

func decodeJSONBody(req *http.Request, out any) error {
	defer req.Body.Close()
	data, err := io.ReadAll(io.LimitReader(req.Body, maxBodyBytes+1))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if len(data) > maxBodyBytes {
		return errors.New("request body too large")
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	return nil
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
