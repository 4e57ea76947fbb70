package fake

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/chriscow/meetsl-go/pkg/ai/tts"
)

// FakeTTS is a fake TTS implementation for testing. The "audio" it returns is
// the UTF-8 text itself, produced after an optional delay.
type FakeTTS struct {
	Delay time.Duration
}

// NewFakeTTS creates a new fake TTS provider.
func NewFakeTTS() *FakeTTS {
	return &FakeTTS{}
}

// Synthesize returns the text as audio bytes.
func (f *FakeTTS) Synthesize(ctx context.Context, req tts.SynthesizeRequest) (tts.Audio, error) {
	if f.Delay > 0 {
		select {
		case <-time.After(f.Delay):
		case <-ctx.Done():
			return tts.Audio{}, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return tts.Audio{}, err
	}
	return tts.Audio{Data: []byte(req.Text), Format: "txt"}, nil
}

// Capabilities returns the fake TTS capabilities.
func (f *FakeTTS) Capabilities() tts.TTSCapabilities {
	return tts.TTSCapabilities{
		SupportedVoices:      []string{"fake-voice"},
		Formats:              []string{"txt"},
		SupportsSpeedControl: true,
	}
}

// Speaker is an in-memory tts.Speaker that records what it was asked to say.
// When Logger is set each line is also logged, which makes it usable as a
// console speaker.
type Speaker struct {
	Logger *slog.Logger

	mu       sync.Mutex
	disabled bool
	spoken   []string
	notify   chan string
}

// NewSpeaker creates an enabled recording speaker.
func NewSpeaker() *Speaker {
	return &Speaker{notify: make(chan string, 64)}
}

// Enabled reports whether speech output is on.
func (s *Speaker) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.disabled
}

// SetEnabled switches speech output on or off.
func (s *Speaker) SetEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disabled = !enabled
}

// Speak records text.
func (s *Speaker) Speak(text string) {
	s.mu.Lock()
	if s.disabled {
		s.mu.Unlock()
		return
	}
	s.spoken = append(s.spoken, text)
	s.mu.Unlock()

	if s.Logger != nil {
		s.Logger.Info("Speaking", slog.String("text", text))
	}
	select {
	case s.notify <- text:
	default:
	}
}

// Spoken returns everything spoken so far.
func (s *Speaker) Spoken() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.spoken))
	copy(out, s.spoken)
	return out
}

// Next waits up to timeout for the next spoken line.
func (s *Speaker) Next(timeout time.Duration) (string, bool) {
	select {
	case text := <-s.notify:
		return text, true
	case <-time.After(timeout):
		return "", false
	}
}
