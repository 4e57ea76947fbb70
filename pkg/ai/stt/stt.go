// Package stt provides interfaces and types for speech-to-text providers.
// A stream listens to the room and emits interim and final transcripts of what
// other participants (and our own speech output) say.
package stt

import (
	"context"
	"errors"

	"github.com/chriscow/meetsl-go/pkg/ai"
)

var (
	// ErrRecoverable indicates a temporary STT failure (network, service unavailable).
	ErrRecoverable = ai.ErrRecoverable

	// ErrFatal indicates a permanent STT failure (authentication, unsupported language).
	ErrFatal = ai.ErrFatal

	// ErrNotAllowed means microphone access was refused. Listening cannot
	// resume until the user enables it again.
	ErrNotAllowed = errors.New("speech input not allowed")

	// ErrNoSpeech means the recognizer heard nothing for a while. It is not a
	// failure; the stream is simply restarted.
	ErrNoSpeech = errors.New("no speech detected")
)

// StreamConfig contains configuration for STT streams.
type StreamConfig struct {
	Lang           string
	InterimResults bool
}

// SpeechEvent represents a speech recognition event containing transcription results or errors.
type SpeechEvent struct {
	Type      SpeechEventType // Type of event (interim, final, or error)
	Text      string          // Transcribed text (empty for error events)
	Language  string          // Detected or configured language code
	Timestamp int64           // Event timestamp in milliseconds since epoch
	Error     error           // Error details (only set for error events)
}

// SpeechEventType represents the type of speech recognition event.
type SpeechEventType int

const (
	// SpeechEventInterim represents partial transcription results that may change
	SpeechEventInterim SpeechEventType = iota
	// SpeechEventFinal represents final transcription results that won't change
	SpeechEventFinal
	// SpeechEventError represents transcription errors
	SpeechEventError
)

func (t SpeechEventType) String() string {
	switch t {
	case SpeechEventInterim:
		return "interim"
	case SpeechEventFinal:
		return "final"
	case SpeechEventError:
		return "error"
	default:
		return "unknown"
	}
}

// STTCapabilities describes the capabilities of an STT provider.
type STTCapabilities struct {
	Supported          bool
	InterimResults     bool
	SupportedLanguages []string
}

// STT is the main interface for speech-to-text providers.
type STT interface {
	// NewStream starts listening.
	NewStream(ctx context.Context, cfg StreamConfig) (STTStream, error)

	// Capabilities returns the provider's capabilities.
	Capabilities() STTCapabilities
}

// STTStream represents an active listening session. The events channel is
// closed when the session ends, either on its own or after CloseSend.
type STTStream interface {
	// Events returns a channel of speech recognition events.
	Events() <-chan SpeechEvent

	// CloseSend stops listening and flushes any pending result.
	CloseSend() error
}
