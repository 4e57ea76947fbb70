package voice

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/chriscow/meetsl-go/pkg/ai/stt"
)

// DefaultRestartDelay is the pause before a finished stream is reopened.
const DefaultRestartDelay = 250 * time.Millisecond

// ListenerConfig configures a Listener.
type ListenerConfig struct {
	Lang         string
	RestartDelay time.Duration
	Logger       *slog.Logger
}

// Listener feeds speech recognition results into a Transcript. While
// enabled it keeps a recognition stream open, reopening it whenever the
// provider ends it. Segments heard while the gate reports our own speech
// are attributed to SourceUser.
type Listener struct {
	provider   stt.STT
	transcript *Transcript
	gate       *SpeakingGate
	cfg        ListenerConfig
	logger     *slog.Logger

	mu      sync.Mutex
	enabled bool
	gen     uint64
	cancel  context.CancelFunc
	done    chan struct{}
	err     error
}

// NewListener creates a disabled listener. gate may be nil, in which case
// every segment is attributed to SourceOther.
func NewListener(provider stt.STT, transcript *Transcript, gate *SpeakingGate, cfg ListenerConfig) *Listener {
	if cfg.Lang == "" {
		cfg.Lang = "en-US"
	}
	if cfg.RestartDelay <= 0 {
		cfg.RestartDelay = DefaultRestartDelay
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Listener{
		provider:   provider,
		transcript: transcript,
		gate:       gate,
		cfg:        cfg,
		logger:     logger.With(slog.String("component", "listener")),
	}
}

// Transcript returns the transcript the listener writes to.
func (l *Listener) Transcript() *Transcript {
	return l.transcript
}

// Enabled reports whether the listener is running.
func (l *Listener) Enabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enabled
}

// Err returns the last recognition error, or nil.
func (l *Listener) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// SetEnabled starts or stops listening. Stopping waits for the current
// stream to close and clears the interim text.
func (l *Listener) SetEnabled(enabled bool) {
	l.mu.Lock()
	if enabled {
		if l.enabled {
			l.mu.Unlock()
			return
		}
		if !l.provider.Capabilities().Supported {
			l.err = errors.New("speech input not supported")
			l.mu.Unlock()
			return
		}
		ctx, cancel := context.WithCancel(context.Background())
		l.enabled = true
		l.gen++
		l.cancel = cancel
		l.done = make(chan struct{})
		l.err = nil
		go l.run(ctx, l.gen, l.done)
		l.mu.Unlock()
		l.logger.Info("Speech input enabled")
		return
	}

	cancel, done := l.cancel, l.done
	l.enabled = false
	l.cancel = nil
	l.done = nil
	l.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	l.transcript.SetInterim("")
	l.logger.Info("Speech input disabled")
}

// Toggle flips the enabled state and returns the new value.
func (l *Listener) Toggle() bool {
	enable := !l.Enabled()
	l.SetEnabled(enable)
	return l.Enabled()
}

// Close stops listening.
func (l *Listener) Close() {
	l.SetEnabled(false)
}

func (l *Listener) run(ctx context.Context, gen uint64, done chan struct{}) {
	defer close(done)

	for {
		stream, err := l.provider.NewStream(ctx, stt.StreamConfig{Lang: l.cfg.Lang, InterimResults: true})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			l.fail(gen, err)
			if errors.Is(err, stt.ErrNotAllowed) || errors.Is(err, stt.ErrFatal) {
				return
			}
		} else if stop := l.consume(ctx, gen, stream); stop {
			return
		}

		select {
		case <-time.After(l.cfg.RestartDelay):
		case <-ctx.Done():
			return
		}
		l.logger.Debug("Restarting speech input stream")
	}
}

// consume reads stream until it ends. It returns true when listening must
// stop for good.
func (l *Listener) consume(ctx context.Context, gen uint64, stream stt.STTStream) bool {
	defer stream.CloseSend()

	events := stream.Events()
	for {
		select {
		case <-ctx.Done():
			return true
		case ev, ok := <-events:
			if !ok {
				return ctx.Err() != nil
			}
			switch ev.Type {
			case stt.SpeechEventInterim:
				l.transcript.SetInterim(ev.Text)
			case stt.SpeechEventFinal:
				source := SourceOther
				if l.gate != nil && l.gate.SpokeRecently(DefaultGrace) {
					source = SourceUser
				}
				l.transcript.Add(ev.Text, source)
			case stt.SpeechEventError:
				switch {
				case errors.Is(ev.Error, stt.ErrNoSpeech):
					l.setErr(gen, nil)
				case errors.Is(ev.Error, stt.ErrNotAllowed):
					l.fail(gen, ev.Error)
					return true
				default:
					l.logger.Warn("Speech input error", slog.Any("error", ev.Error))
					l.setErr(gen, ev.Error)
				}
			}
		}
	}
}

// fail records err and, when it means listening cannot continue, turns the
// listener off.
func (l *Listener) fail(gen uint64, err error) {
	l.logger.Error("Speech input failed", slog.Any("error", err))
	stop := errors.Is(err, stt.ErrNotAllowed) || errors.Is(err, stt.ErrFatal)

	l.mu.Lock()
	defer l.mu.Unlock()
	if gen != l.gen {
		return
	}
	l.err = err
	if stop && l.enabled {
		l.enabled = false
		if l.cancel != nil {
			l.cancel()
		}
		l.cancel = nil
	}
}

func (l *Listener) setErr(gen uint64, err error) {
	l.mu.Lock()
	if gen == l.gen {
		l.err = err
	}
	l.mu.Unlock()
}
