package fake

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/chriscow/meetsl-go/pkg/ai/stt"
)

// DefaultPhrases are spoken by a FakeSTT created without phrases.
var DefaultPhrases = []string{
	"Good morning everyone.",
	"Let's start with the project update.",
	"Does anyone have questions?",
}

// FakeSTT is a fake STT implementation for testing. Each stream speaks the
// scripted phrases in order, an interim result followed by a final one, and
// then ends on its own.
type FakeSTT struct {
	phrases  []string
	Interval time.Duration
	// Err, when set, is emitted as an error event instead of any phrase.
	Err error

	mu      sync.Mutex
	streams int
}

// NewFakeSTT creates a new fake STT provider.
func NewFakeSTT(phrases ...string) *FakeSTT {
	if len(phrases) == 0 {
		phrases = DefaultPhrases
	}
	return &FakeSTT{phrases: phrases, Interval: 10 * time.Millisecond}
}

// NewStream creates a new fake STT stream.
func (f *FakeSTT) NewStream(ctx context.Context, cfg stt.StreamConfig) (stt.STTStream, error) {
	f.mu.Lock()
	f.streams++
	f.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s := &FakeSTTStream{
		events: make(chan stt.SpeechEvent, 2*len(f.phrases)+1),
		cancel: cancel,
	}
	go s.run(ctx, f.phrases, f.Interval, f.Err, cfg.Lang)
	return s, nil
}

// Streams reports how many streams have been opened.
func (f *FakeSTT) Streams() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.streams
}

// Capabilities returns the fake STT capabilities.
func (f *FakeSTT) Capabilities() stt.STTCapabilities {
	return stt.STTCapabilities{
		Supported:          true,
		InterimResults:     true,
		SupportedLanguages: []string{"en-US"},
	}
}

// FakeSTTStream is a fake STT stream implementation.
type FakeSTTStream struct {
	events chan stt.SpeechEvent
	cancel context.CancelFunc
}

func (s *FakeSTTStream) run(ctx context.Context, phrases []string, interval time.Duration, failure error, lang string) {
	defer close(s.events)

	emit := func(ev stt.SpeechEvent) bool {
		ev.Language = lang
		ev.Timestamp = time.Now().UnixMilli()
		select {
		case s.events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	if failure != nil {
		emit(stt.SpeechEvent{Type: stt.SpeechEventError, Error: failure})
		return
	}

	for _, phrase := range phrases {
		select {
		case <-time.After(interval):
		case <-ctx.Done():
			return
		}
		first, _, _ := strings.Cut(phrase, " ")
		if !emit(stt.SpeechEvent{Type: stt.SpeechEventInterim, Text: first}) {
			return
		}
		if !emit(stt.SpeechEvent{Type: stt.SpeechEventFinal, Text: phrase}) {
			return
		}
	}
}

// Events returns the events channel.
func (s *FakeSTTStream) Events() <-chan stt.SpeechEvent {
	return s.events
}

// CloseSend stops the stream. The events channel closes shortly after.
func (s *FakeSTTStream) CloseSend() error {
	s.cancel()
	return nil
}
