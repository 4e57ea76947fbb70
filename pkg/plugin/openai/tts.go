package openai

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/chriscow/meetsl-go/pkg/ai/tts"
	"github.com/chriscow/meetsl-go/pkg/plugin"
)

const (
	// DefaultSpeechModel is used when no model is configured.
	DefaultSpeechModel = "tts-1"
	// DefaultVoice is used when neither config nor request picks one.
	DefaultVoice = "alloy"
)

// OpenAITTS implements the TTS interface using OpenAI's text-to-speech API
type OpenAITTS struct {
	client *openai.Client
	model  string
	voice  string
}

// NewOpenAITTS creates a speech synthesizer over client.
func NewOpenAITTS(client *openai.Client, model, voice string) *OpenAITTS {
	if model == "" {
		model = DefaultSpeechModel
	}
	if voice == "" {
		voice = DefaultVoice
	}
	return &OpenAITTS{client: client, model: model, voice: voice}
}

// newOpenAITTS is the plugin factory.
func newOpenAITTS(cfg map[string]any) (any, error) {
	client, err := newClient(cfg)
	if err != nil {
		return nil, err
	}
	return NewOpenAITTS(client,
		plugin.String(cfg, "model", DefaultSpeechModel),
		plugin.String(cfg, "voice", DefaultVoice)), nil
}

// Synthesize converts text to MP3 audio.
func (o *OpenAITTS) Synthesize(ctx context.Context, req tts.SynthesizeRequest) (tts.Audio, error) {
	start := time.Now()
	voice := o.getVoice(req.Voice)

	speechReq := openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(o.model),
		Input:          req.Text,
		Voice:          openai.SpeechVoice(voice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
	}
	if req.Speed > 0 {
		speechReq.Speed = float64(req.Speed)
	}

	resp, err := o.client.CreateSpeech(ctx, speechReq)
	if err != nil {
		slog.Warn("OpenAI TTS failed", slog.String("voice", voice), slog.Any("error", err))
		return tts.Audio{}, classify(err, "speech request failed")
	}
	defer resp.Close()

	data, err := io.ReadAll(resp)
	if err != nil {
		return tts.Audio{}, fmt.Errorf("failed to read speech audio: %w", err)
	}

	slog.Debug("OpenAI TTS synthesis completed",
		slog.String("voice", voice),
		slog.Int("bytes", len(data)),
		slog.Duration("duration", time.Since(start)))

	return tts.Audio{Data: data, Format: "mp3"}, nil
}

// getVoice returns the voice to use, preferring request voice over default
func (o *OpenAITTS) getVoice(requestVoice string) string {
	if requestVoice != "" {
		return requestVoice
	}
	return o.voice
}

// Capabilities returns the OpenAI TTS provider's capabilities
func (o *OpenAITTS) Capabilities() tts.TTSCapabilities {
	return tts.TTSCapabilities{
		SupportedVoices:      []string{"alloy", "echo", "fable", "onyx", "nova", "shimmer"},
		Formats:              []string{"mp3"},
		SupportsSpeedControl: true,
	}
}
