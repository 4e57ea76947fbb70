// Package session wires one captioning session together: camera frames go
// out over the transport, predictions come back through the stabilizer, and
// committed tokens are delivered by the assist coordinator.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/chriscow/meetsl-go/internal/transport"
	"github.com/chriscow/meetsl-go/pkg/ai/stt"
	"github.com/chriscow/meetsl-go/pkg/ai/tts"
	"github.com/chriscow/meetsl-go/pkg/assist"
	"github.com/chriscow/meetsl-go/pkg/caption"
	"github.com/chriscow/meetsl-go/pkg/capture"
	"github.com/chriscow/meetsl-go/pkg/latency"
	"github.com/chriscow/meetsl-go/pkg/rtc"
	"github.com/chriscow/meetsl-go/pkg/suggest"
	"github.com/chriscow/meetsl-go/pkg/voice"
)

// ErrSpeechInputUnavailable is returned when speech input is switched on
// for a session that has no speech recognizer.
var ErrSpeechInputUnavailable = errors.New("speech input not configured")

// Config holds everything tunable about a session.
type Config struct {
	// ID scopes the transport endpoint. Empty generates a UUID.
	ID         string
	Transport  transport.Config
	Commit     caption.CommitConfig
	Capture    capture.Config
	Latency    latency.Config
	Assist     assist.Config
	Mode       assist.Mode
	SpeechLang string
	// SpeechOutput and SpeechInput are the initial switch positions.
	SpeechOutput bool
	SpeechInput  bool
}

// Deps are the capabilities a session consumes but does not own the
// implementation of.
type Deps struct {
	Camera    capture.Camera
	Suggester suggest.Suggester
	// Speaker is optional; without it nothing is spoken.
	Speaker tts.Speaker
	// SpeechInput is optional; without it the transcript stays empty.
	SpeechInput stt.STT
	// Gate should be the ActivityReporter of Speaker so that heard speech
	// can be attributed. One is created when nil.
	Gate   *voice.SpeakingGate
	Logger *slog.Logger
}

// SpeechInputState describes the speech input side.
type SpeechInputState struct {
	Available bool            `json:"available"`
	Enabled   bool            `json:"enabled"`
	Interim   string          `json:"interim,omitempty"`
	Segments  []voice.Segment `json:"segments"`
	Error     string          `json:"error,omitempty"`
}

// Snapshot is everything observable about a running session.
type Snapshot struct {
	ID           string           `json:"session_id"`
	StartedAt    time.Time        `json:"started_at"`
	Transport    transport.Stats  `json:"transport"`
	Capture      capture.Stats    `json:"capture"`
	Captions     caption.Snapshot `json:"captions"`
	Latency      latency.Report   `json:"latency"`
	Assist       assist.State     `json:"assist"`
	SpeechOutput bool             `json:"speech_output"`
	Speaking     bool             `json:"speaking"`
	SpeechInput  SpeechInputState `json:"speech_input"`
}

// Session is one end-to-end captioning pipeline.
type Session struct {
	id        string
	cfg       Config
	logger    *slog.Logger
	life      *Lifecycle
	startedAt time.Time

	transport   *transport.Transport
	source      *capture.Source
	tracker     *latency.Tracker
	stabilizer  *caption.Stabilizer
	coordinator *assist.Coordinator
	transcript  *voice.Transcript
	listener    *voice.Listener
	speaker     tts.Speaker
	gate        *voice.SpeakingGate

	closing atomic.Bool
	running atomic.Bool
}

// New validates cfg and assembles a session. Nothing runs until Run.
func New(cfg Config, deps Deps) (*Session, error) {
	if deps.Camera == nil {
		return nil, errors.New("camera is required")
	}
	if deps.Suggester == nil {
		return nil, errors.New("suggester is required")
	}

	id, err := ResolveID(cfg.ID)
	if err != nil {
		return nil, err
	}
	cfg.ID = id

	if err := cfg.Commit.Validate(); err != nil {
		return nil, fmt.Errorf("commit config: %w", err)
	}
	if err := cfg.Capture.Validate(); err != nil {
		return nil, fmt.Errorf("capture config: %w", err)
	}
	if err := cfg.Latency.Validate(); err != nil {
		return nil, fmt.Errorf("latency config: %w", err)
	}
	if err := cfg.Assist.Validate(); err != nil {
		return nil, fmt.Errorf("assist config: %w", err)
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("session", id))

	cfg.Transport.SessionID = id
	tr, err := transport.New(cfg.Transport, logger)
	if err != nil {
		return nil, err
	}

	gate := deps.Gate
	if gate == nil {
		gate = voice.NewSpeakingGate()
	}

	s := &Session{
		id:         id,
		cfg:        cfg,
		logger:     logger,
		life:       NewLifecycle(context.Background(), logger),
		startedAt:  time.Now(),
		transport:  tr,
		tracker:    latency.NewTracker(append(cfg.Latency.Options(), latency.WithLogger(logger))...),
		stabilizer: caption.NewStabilizer(cfg.Commit, caption.WithLogger(logger)),
		transcript: voice.NewTranscript(),
		speaker:    deps.Speaker,
		gate:       gate,
	}

	s.coordinator = assist.New(cfg.Assist, deps.Suggester, deps.Speaker,
		assist.WithSpeechContext(s.transcript.Tail),
		assist.WithLogger(logger))
	s.coordinator.SetMode(cfg.Mode)

	s.source = capture.NewSource(cfg.Capture, deps.Camera, s.sendFrame, logger)

	if deps.SpeechInput != nil {
		s.listener = voice.NewListener(deps.SpeechInput, s.transcript, gate, voice.ListenerConfig{
			Lang:   cfg.SpeechLang,
			Logger: logger,
		})
	}
	if deps.Speaker != nil {
		deps.Speaker.SetEnabled(cfg.SpeechOutput)
	}

	s.stabilizer.OnCommit(s.coordinator.HandleCommit)
	tr.OnMessage(s.handlePrediction)
	tr.OnStateChange(s.handleState)

	s.registerTeardown()
	return s, nil
}

func (s *Session) registerTeardown() {
	s.life.OnShutdown(func(string) { s.transport.Close() })
	s.life.OnShutdown(func(string) { s.source.Close() })
	s.life.OnShutdown(func(string) { s.coordinator.Close() })
	s.life.OnShutdown(func(string) { s.tracker.Close() })
	if s.listener != nil {
		s.life.OnShutdown(func(string) { s.listener.Close() })
	}
	if c, ok := s.speaker.(interface{ Close() }); ok {
		s.life.OnShutdown(func(string) { c.Close() })
	}
}

// ID returns the session ID.
func (s *Session) ID() string {
	return s.id
}

// Endpoint returns the recognizer URL for this session.
func (s *Session) Endpoint() string {
	return s.transport.Endpoint()
}

// Run drives the session until ctx is done or Shutdown is called, then
// tears everything down.
func (s *Session) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return errors.New("session already running")
	}
	if s.life.IsShutdown() {
		return transport.ErrClosed
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.life.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	if s.listener != nil && s.cfg.SpeechInput {
		s.listener.SetEnabled(true)
	}
	go s.tracker.Run(ctx, nil)

	s.logger.Info("Session started",
		slog.String("endpoint", s.transport.Endpoint()),
		slog.String("mode", s.coordinator.Mode().String()))

	err := s.transport.Run(ctx)
	s.Shutdown("session ended")
	if errors.Is(err, transport.ErrClosed) {
		return nil
	}
	return err
}

// Shutdown tears the session down. It is safe to call more than once and
// from any goroutine except the transport callbacks.
func (s *Session) Shutdown(reason string) {
	s.closing.Store(true)
	s.life.Shutdown(reason)
}

// Metrics returns the latency expvar values of the session.
func (s *Session) Metrics() *latency.Metrics {
	return s.tracker.Metrics()
}

// Done is closed once the session has shut down.
func (s *Session) Done() <-chan struct{} {
	return s.life.Done()
}

func (s *Session) sendFrame(f *rtc.Frame) {
	payload, err := rtc.EncodeFrame(f)
	if err != nil {
		s.logger.Warn("Failed to encode frame", slog.String("error", err.Error()))
		return
	}
	if s.transport.Send(payload) {
		s.tracker.FrameSent(f.TS)
	} else {
		s.tracker.FrameDropped(f.TS)
	}
}

func (s *Session) handlePrediction(p caption.Prediction) {
	s.tracker.Correlate(p.TS)
	s.stabilizer.AddPrediction(p)
}

func (s *Session) handleState(state transport.State) {
	connected := state == transport.Connected
	if connected && s.closing.Load() {
		return
	}
	s.source.SetEnabled(connected)
}

// SetMode switches between direct and assisted delivery.
func (s *Session) SetMode(m assist.Mode) {
	s.coordinator.SetMode(m)
}

// AcceptSuggestion speaks and clears the held suggestion.
func (s *Session) AcceptSuggestion() (string, bool) {
	return s.coordinator.Accept()
}

// RejectSuggestion discards the held suggestion.
func (s *Session) RejectSuggestion() {
	s.coordinator.Reject()
}

// ClearCaptions empties the committed caption sequence.
func (s *Session) ClearCaptions() {
	s.stabilizer.Clear()
}

// ClearTranscript empties the heard-speech transcript.
func (s *Session) ClearTranscript() {
	s.transcript.Clear()
}

// SetSpeechOutput switches speaking on or off.
func (s *Session) SetSpeechOutput(enabled bool) {
	if s.speaker != nil {
		s.speaker.SetEnabled(enabled)
	}
}

// SetSpeechInput switches listening on or off.
func (s *Session) SetSpeechInput(enabled bool) error {
	if s.listener == nil {
		if enabled {
			return ErrSpeechInputUnavailable
		}
		return nil
	}
	s.listener.SetEnabled(enabled)
	if enabled && !s.listener.Enabled() {
		return s.listener.Err()
	}
	return nil
}

// Snapshot gathers the observable state of every component.
func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		ID:        s.id,
		StartedAt: s.startedAt,
		Transport: s.transport.Stats(),
		Capture:   s.source.Stats(),
		Captions:  s.stabilizer.Snapshot(),
		Latency:   s.tracker.Last(),
		Assist:    s.coordinator.State(),
		Speaking:  s.gate.Speaking(),
		SpeechInput: SpeechInputState{
			Available: s.listener != nil,
			Interim:   s.transcript.Interim(),
			Segments:  s.transcript.Segments(),
		},
	}
	if s.speaker != nil {
		snap.SpeechOutput = s.speaker.Enabled()
	}
	if s.listener != nil {
		snap.SpeechInput.Enabled = s.listener.Enabled()
		if err := s.listener.Err(); err != nil {
			snap.SpeechInput.Error = err.Error()
		}
	}
	return snap
}
