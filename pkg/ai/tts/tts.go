package tts

import (
	"context"

	"github.com/chriscow/meetsl-go/pkg/ai"
)

var (
	// ErrRecoverable indicates a temporary TTS failure (overload, network issues).
	ErrRecoverable = ai.ErrRecoverable

	// ErrFatal indicates a permanent TTS failure (invalid voice, bad key).
	ErrFatal = ai.ErrFatal
)

// SynthesizeRequest contains parameters for text-to-speech synthesis.
type SynthesizeRequest struct {
	Text  string
	Voice string
	Speed float32
}

// Audio is one synthesized utterance, fully encoded.
type Audio struct {
	Data   []byte
	Format string // container extension, e.g. "mp3"
}

// TTSCapabilities describes the capabilities of a TTS provider.
type TTSCapabilities struct {
	SupportedVoices      []string
	Formats              []string
	SupportsSpeedControl bool
}

// TTS is the interface for text-to-speech providers.
type TTS interface {
	// Synthesize converts text to encoded audio.
	Synthesize(ctx context.Context, req SynthesizeRequest) (Audio, error)

	// Capabilities returns the provider's capabilities.
	Capabilities() TTSCapabilities
}
