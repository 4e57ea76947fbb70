package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/matryer/is"

	"github.com/chriscow/meetsl-go/pkg/ai"
	"github.com/chriscow/meetsl-go/pkg/ai/llm"
	"github.com/chriscow/meetsl-go/pkg/ai/tts"
	"github.com/chriscow/meetsl-go/pkg/plugin"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) map[string]any {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return map[string]any{"api_key": "test-key", "base_url": server.URL + "/v1"}
}

func TestOpenAILLM_Chat(t *testing.T) {
	is := is.New(t)

	var got map[string]any
	cfg := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"model": "gpt-4o-mini",
			"choices": [{"index": 0, "finish_reason": "stop",
				"message": {"role": "assistant", "content": "{\"suggested_text\": \"Hello.\"}"}}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
		}`))
	})

	model, err := plugin.Build[llm.LLM](plugin.Default(), plugin.KindLLM, "openai", cfg)
	is.NoErr(err)

	resp, err := model.Chat(context.Background(), llm.ChatRequest{
		Messages:   []llm.Message{{Role: llm.RoleSystem, Content: "sys"}, {Role: llm.RoleUser, Content: "HELLO"}},
		MaxTokens:  200,
		JSONOutput: true,
	})
	is.NoErr(err)
	is.Equal(resp.Message.Content, `{"suggested_text": "Hello."}`)
	is.Equal(resp.TokensUsed, 15)
	is.Equal(resp.FinishReason, "stop")

	is.Equal(got["model"], DefaultChatModel)
	is.Equal(got["max_tokens"], float64(200))
	format, _ := got["response_format"].(map[string]any)
	is.Equal(format["type"], "json_object")
}

func TestOpenAILLM_ErrorClassification(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		recoverable bool
	}{
		{"rate limited", http.StatusTooManyRequests, true},
		{"server error", http.StatusBadGateway, true},
		{"bad key", http.StatusUnauthorized, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				w.Write([]byte(`{"error": {"message": "nope", "type": "error"}}`))
			})
			model, err := plugin.Build[llm.LLM](plugin.Default(), plugin.KindLLM, "openai", cfg)
			if err != nil {
				t.Fatal(err)
			}

			_, err = model.Chat(context.Background(), llm.ChatRequest{
				Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
			})
			if err == nil {
				t.Fatal("expected error")
			}
			if ai.IsRecoverable(err) != tt.recoverable {
				t.Errorf("IsRecoverable(%v) = %v, want %v", err, ai.IsRecoverable(err), tt.recoverable)
			}
			if !tt.recoverable && !ai.IsFatal(err) {
				t.Errorf("expected fatal error, got %v", err)
			}
		})
	}
}

func TestOpenAITTS_Synthesize(t *testing.T) {
	is := is.New(t)

	var got map[string]any
	cfg := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/speech" {
			http.NotFound(w, r)
			return
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("ID3fake-mp3"))
	})
	cfg["voice"] = "nova"

	speech, err := plugin.Build[tts.TTS](plugin.Default(), plugin.KindTTS, "openai", cfg)
	is.NoErr(err)

	audio, err := speech.Synthesize(context.Background(), tts.SynthesizeRequest{Text: "Hello, welcome.", Speed: 1.25})
	is.NoErr(err)
	is.Equal(audio.Format, "mp3")
	is.Equal(string(audio.Data), "ID3fake-mp3")

	is.Equal(got["input"], "Hello, welcome.")
	is.Equal(got["voice"], "nova")
	is.Equal(got["model"], DefaultSpeechModel)
	is.Equal(got["speed"], 1.25)

	_, err = speech.Synthesize(context.Background(), tts.SynthesizeRequest{Text: "x", Voice: "echo"})
	is.NoErr(err)
	is.Equal(got["voice"], "echo") // request voice wins
}

func TestFactory_RequiresAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	for _, kind := range []string{plugin.KindLLM, plugin.KindTTS} {
		factory, ok := plugin.Get(kind, "openai")
		if !ok {
			t.Fatalf("%s/openai not registered", kind)
		}
		if _, err := factory(map[string]any{}); !ai.IsFatal(err) {
			t.Errorf("%s/openai without key: err = %v, want fatal", kind, err)
		}
	}
}
