package statusapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/chriscow/meetsl-go/pkg/assist"
	"github.com/chriscow/meetsl-go/pkg/caption"
	"github.com/chriscow/meetsl-go/pkg/latency"
	"github.com/chriscow/meetsl-go/pkg/session"
	"github.com/chriscow/meetsl-go/pkg/suggest"
)

type fakeController struct {
	mu           sync.Mutex
	mode         assist.Mode
	held         *suggest.Suggestion
	committed    []caption.CommittedToken
	speechOutput bool
	speechInput  bool
	inputErr     error
	rejected     int
	tracker      *latency.Tracker
}

func newFakeController() *fakeController {
	return &fakeController{
		held:      &suggest.Suggestion{SuggestedText: "Hello there.", UncertaintyLevel: suggest.UncertaintyMedium},
		committed: []caption.CommittedToken{{Token: "HELLO"}},
		tracker:   latency.NewTracker(),
	}
}

func (f *fakeController) Snapshot() session.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	committed := make([]caption.CommittedToken, len(f.committed))
	copy(committed, f.committed)
	return session.Snapshot{
		ID:           "room-1",
		Captions:     caption.Snapshot{Committed: committed},
		Assist:       assist.State{Mode: f.mode, Suggestion: f.held},
		SpeechOutput: f.speechOutput,
		SpeechInput:  session.SpeechInputState{Available: f.inputErr == nil, Enabled: f.speechInput},
	}
}

func (f *fakeController) Metrics() *latency.Metrics { return f.tracker.Metrics() }

func (f *fakeController) SetMode(m assist.Mode) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mode = m
}

func (f *fakeController) AcceptSuggestion() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.held == nil {
		return "", false
	}
	text := f.held.SuggestedText
	f.held = nil
	return text, true
}

func (f *fakeController) RejectSuggestion() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.held = nil
	f.rejected++
}

func (f *fakeController) ClearCaptions() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.committed = nil
}

func (f *fakeController) ClearTranscript() {}

func (f *fakeController) failSpeechInput(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputErr = err
}

func (f *fakeController) rejections() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rejected
}

func (f *fakeController) SetSpeechOutput(enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.speechOutput = enabled
}

func (f *fakeController) SetSpeechInput(enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.inputErr != nil {
		return f.inputErr
	}
	f.speechInput = enabled
	return nil
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func do(t *testing.T, srv *httptest.Server, method, path, body string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil && err != io.EOF {
		t.Fatalf("%s %s: decode: %v", method, path, err)
	}
	return resp.StatusCode, out
}

func TestHandler_State(t *testing.T) {
	is := is.New(t)

	srv := httptest.NewServer(NewHandler(newFakeController(), nil))
	defer srv.Close()

	status, body := do(t, srv, http.MethodGet, "/healthz", "")
	is.Equal(status, http.StatusOK)
	is.Equal(body["ok"], true)
	is.Equal(body["session_id"], "room-1")
	is.Equal(body["transport"], "offline")

	status, body = do(t, srv, http.MethodGet, "/state", "")
	is.Equal(status, http.StatusOK)
	is.Equal(body["session_id"], "room-1")
	is.Equal(body["assist"].(map[string]any)["mode"], "direct")
}

func TestHandler_Assist(t *testing.T) {
	is := is.New(t)

	ctrl := newFakeController()
	srv := httptest.NewServer(NewHandler(ctrl, nil))
	defer srv.Close()

	status, body := do(t, srv, http.MethodPost, "/assist/mode", `{"mode":"assist"}`)
	is.Equal(status, http.StatusOK)
	is.Equal(body["mode"], "assist")

	status, body = do(t, srv, http.MethodPost, "/assist/accept", "")
	is.Equal(status, http.StatusOK)
	is.Equal(body["spoken"], "Hello there.")

	status, _ = do(t, srv, http.MethodPost, "/assist/accept", "")
	is.Equal(status, http.StatusConflict) // nothing held any more

	status, _ = do(t, srv, http.MethodPost, "/assist/reject", "")
	is.Equal(status, http.StatusOK)
	is.Equal(ctrl.rejections(), 1)
}

func TestHandler_LogsModeChange(t *testing.T) {
	is := is.New(t)

	var out lockedBuffer
	logger := slog.New(slog.NewTextHandler(&out, nil))
	srv := httptest.NewServer(NewHandler(newFakeController(), logger))
	defer srv.Close()

	status, _ := do(t, srv, http.MethodPost, "/assist/mode", `{"mode":"assist"}`)
	is.Equal(status, http.StatusOK)
	is.True(strings.Contains(out.String(), `msg="Assist mode changed" mode=assist`))
}

func TestHandler_BadRequests(t *testing.T) {
	srv := httptest.NewServer(NewHandler(newFakeController(), nil))
	defer srv.Close()

	tests := []struct {
		name string
		path string
		body string
	}{
		{"unknown mode", "/assist/mode", `{"mode":"loud"}`},
		{"not json", "/assist/mode", `mode=assist`},
		{"unknown field", "/speech/output", `{"on":true}`},
		{"missing enabled", "/speech/input", `{}`},
		{"too large", "/assist/mode", `{"mode":"` + strings.Repeat("x", maxBodyBytes) + `"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := do(t, srv, http.MethodPost, tt.path, tt.body)
			if status != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", status)
			}
			if body["error"] == nil {
				t.Errorf("expected an error message, got %v", body)
			}
		})
	}
}

func TestHandler_Toggles(t *testing.T) {
	is := is.New(t)

	ctrl := newFakeController()
	srv := httptest.NewServer(NewHandler(ctrl, nil))
	defer srv.Close()

	status, body := do(t, srv, http.MethodPost, "/speech/output", `{"enabled":true}`)
	is.Equal(status, http.StatusOK)
	is.Equal(body["speech_output"], true)
	is.True(ctrl.Snapshot().SpeechOutput)

	status, body = do(t, srv, http.MethodPost, "/speech/input", `{"enabled":true}`)
	is.Equal(status, http.StatusOK)
	is.Equal(body["enabled"], true)

	ctrl.failSpeechInput(session.ErrSpeechInputUnavailable)
	status, _ = do(t, srv, http.MethodPost, "/speech/input", `{"enabled":true}`)
	is.Equal(status, http.StatusConflict)

	status, body = do(t, srv, http.MethodPost, "/captions/clear", "")
	is.Equal(status, http.StatusOK)
	is.Equal(len(body["committed"].([]any)), 0)
}

func TestHandler_DebugVars(t *testing.T) {
	is := is.New(t)

	srv := httptest.NewServer(NewHandler(newFakeController(), nil))
	defer srv.Close()

	status, body := do(t, srv, http.MethodGet, "/debug/vars", "")
	is.Equal(status, http.StatusOK)
	is.Equal(body["meetsl_session"].(map[string]any)["session_id"], "room-1")
	is.True(body["meetsl_latency"].(map[string]any)["dropped_total"] != nil)
}

func TestServe_StopsWithContext(t *testing.T) {
	is := is.New(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	is.NoErr(err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, ln, NewHandler(newFakeController(), nil), nil) }()

	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
		if err == nil {
			resp.Body.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server never came up: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		is.NoErr(err)
	case <-time.After(3 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
}
