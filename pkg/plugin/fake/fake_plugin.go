// Package fake registers in-memory providers of every kind. They need no
// network or credentials, which makes them the default for demos and tests.
package fake

import (
	"time"

	llmfake "github.com/chriscow/meetsl-go/pkg/ai/llm/fake"
	sttfake "github.com/chriscow/meetsl-go/pkg/ai/stt/fake"
	ttsfake "github.com/chriscow/meetsl-go/pkg/ai/tts/fake"
	"github.com/chriscow/meetsl-go/pkg/plugin"
	suggestfake "github.com/chriscow/meetsl-go/pkg/suggest/fake"
)

// newFakeSTT creates a new fake STT provider from configuration.
func newFakeSTT(cfg map[string]any) (any, error) {
	s := sttfake.NewFakeSTT(plugin.Strings(cfg, "phrases")...)
	if ms := plugin.Float(cfg, "interval_ms", 0); ms > 0 {
		s.Interval = time.Duration(ms) * time.Millisecond
	}
	return s, nil
}

// newFakeTTS creates a new fake TTS provider from configuration.
func newFakeTTS(cfg map[string]any) (any, error) {
	t := ttsfake.NewFakeTTS()
	if ms := plugin.Float(cfg, "delay_ms", 0); ms > 0 {
		t.Delay = time.Duration(ms) * time.Millisecond
	}
	return t, nil
}

// newFakeLLM creates a new fake LLM provider from configuration.
func newFakeLLM(cfg map[string]any) (any, error) {
	return llmfake.NewFakeLLM(plugin.Strings(cfg, "responses")...), nil
}

// newFakeSuggester creates a suggester that answers with the joined tokens.
func newFakeSuggester(cfg map[string]any) (any, error) {
	return suggestfake.New(), nil
}

func init() {
	plugin.RegisterWithMetadata(&plugin.Plugin{
		Kind:        plugin.KindSTT,
		Name:        "fake",
		Factory:     newFakeSTT,
		Description: "Fake speech input that repeats scripted phrases",
		Version:     "1.0.0",
		Config: map[string]any{
			"phrases":     []string{"Scripted phrases to hear"},
			"interval_ms": 10,
		},
	})

	plugin.RegisterWithMetadata(&plugin.Plugin{
		Kind:        plugin.KindTTS,
		Name:        "fake",
		Factory:     newFakeTTS,
		Description: "Fake TTS provider that returns the text as audio bytes",
		Version:     "1.0.0",
		Config: map[string]any{
			"delay_ms": 0,
		},
	})

	plugin.RegisterWithMetadata(&plugin.Plugin{
		Kind:        plugin.KindLLM,
		Name:        "fake",
		Factory:     newFakeLLM,
		Description: "Fake LLM provider with scripted replies",
		Version:     "1.0.0",
		Config: map[string]any{
			"responses": []string{"List of predefined responses"},
		},
	})

	plugin.RegisterWithMetadata(&plugin.Plugin{
		Kind:        plugin.KindSuggest,
		Name:        "fake",
		Factory:     newFakeSuggester,
		Description: "Offline suggester that joins the recognized tokens",
		Version:     "1.0.0",
		Config:      map[string]any{},
	})
}
