package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/chriscow/meetsl-go/internal/config"
	"github.com/chriscow/meetsl-go/pkg/ai/stt"
	"github.com/chriscow/meetsl-go/pkg/ai/tts"
	ttsfake "github.com/chriscow/meetsl-go/pkg/ai/tts/fake"
	"github.com/chriscow/meetsl-go/pkg/plugin"
	"github.com/chriscow/meetsl-go/pkg/suggest"
	"github.com/chriscow/meetsl-go/pkg/voice"
)

func buildSuggester(cfg config.Config) (suggest.Suggester, error) {
	s, err := plugin.Build[suggest.Suggester](plugin.Default(), plugin.KindSuggest, cfg.Suggest.Provider, cfg.Suggest.Options)
	if err != nil {
		return nil, fmt.Errorf("suggest provider %q: %w", cfg.Suggest.Provider, err)
	}
	return s, nil
}

// buildSpeaker returns a Player for the configured TTS provider. Without a
// provider, utterances are only logged.
func buildSpeaker(cfg config.Config, gate *voice.SpeakingGate, logger *slog.Logger) (tts.Speaker, error) {
	if cfg.Speech.TTS.Provider == "" {
		speaker := ttsfake.NewSpeaker()
		speaker.Logger = logger
		return speaker, nil
	}

	provider, err := plugin.Build[tts.TTS](plugin.Default(), plugin.KindTTS, cfg.Speech.TTS.Provider, cfg.Speech.TTS.Options)
	if err != nil {
		return nil, fmt.Errorf("tts provider %q: %w", cfg.Speech.TTS.Provider, err)
	}

	var sink tts.Sink
	if cfg.Speech.OutputDir != "" {
		sink = &tts.DirSink{Dir: cfg.Speech.OutputDir}
	} else {
		sink = tts.SinkFunc(func(ctx context.Context, u tts.Utterance) error {
			logger.Info("Speaking",
				slog.String("text", u.Text),
				slog.Int("audio_bytes", len(u.Audio.Data)))
			return nil
		})
	}

	return tts.NewPlayer(provider, sink, tts.PlayerConfig{
		Voice:    cfg.Speech.Voice,
		Speed:    float32(cfg.Speech.Speed),
		Activity: gate,
		Logger:   logger,
	}), nil
}

// buildSpeechInput returns nil when no STT provider is configured.
func buildSpeechInput(cfg config.Config) (stt.STT, error) {
	if cfg.Speech.STT.Provider == "" {
		return nil, nil
	}
	provider, err := plugin.Build[stt.STT](plugin.Default(), plugin.KindSTT, cfg.Speech.STT.Provider, cfg.Speech.STT.Options)
	if err != nil {
		return nil, fmt.Errorf("stt provider %q: %w", cfg.Speech.STT.Provider, err)
	}
	return provider, nil
}
