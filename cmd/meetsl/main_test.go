package main

import (
	"log/slog"
	"testing"

	"github.com/matryer/is"

	"github.com/chriscow/meetsl-go/internal/config"
	"github.com/chriscow/meetsl-go/pkg/ai/tts"
	ttsfake "github.com/chriscow/meetsl-go/pkg/ai/tts/fake"
	suggestfake "github.com/chriscow/meetsl-go/pkg/suggest/fake"
	"github.com/chriscow/meetsl-go/pkg/voice"
)

func TestParseTokens(t *testing.T) {
	is := is.New(t)

	tokens, err := parseTokens([]string{"HELLO:0.92", "MEETING"})
	is.NoErr(err)
	is.Equal(len(tokens), 2)
	is.Equal(tokens[0].Token, "HELLO")
	is.Equal(tokens[0].Confidence, 0.92)
	is.Equal(tokens[1].Confidence, 1.0)
	is.True(tokens[1].TS > tokens[0].TS)

	for _, bad := range []string{"HELLO:high", "HELLO:1.5", ":0.5"} {
		if _, err := parseTokens([]string{bad}); err == nil {
			t.Errorf("parseTokens(%q) expected error", bad)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
		"loud":  slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestBuildProviders(t *testing.T) {
	is := is.New(t)
	gate := voice.NewSpeakingGate()

	cfg := config.Default()
	speaker, err := buildSpeaker(cfg, gate, slog.Default())
	is.NoErr(err)
	_, isLogSpeaker := speaker.(*ttsfake.Speaker)
	is.True(isLogSpeaker)

	cfg.Speech.TTS.Provider = "fake"
	speaker, err = buildSpeaker(cfg, gate, slog.Default())
	is.NoErr(err)
	player, isPlayer := speaker.(*tts.Player)
	is.True(isPlayer)
	player.Close()

	heard, err := buildSpeechInput(config.Default())
	is.NoErr(err)
	is.True(heard == nil)

	cfg.Suggest.Provider = "fake"
	s, err := buildSuggester(cfg)
	is.NoErr(err)
	_, isFake := s.(*suggestfake.Suggester)
	is.True(isFake)

	cfg.Suggest.Provider = "nope"
	_, err = buildSuggester(cfg)
	is.True(err != nil)
}
