// Package openai provides OpenAI-backed providers: chat completions for
// suggestion rewriting and text-to-speech for speaking captions.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	openai "github.com/sashabaranov/go-openai"

	"github.com/chriscow/meetsl-go/pkg/ai"
	"github.com/chriscow/meetsl-go/pkg/plugin"
)

// newClient builds an API client from plugin configuration, falling back to
// OPENAI_API_KEY and OPENAI_BASE_URL.
func newClient(cfg map[string]any) (*openai.Client, error) {
	apiKey := plugin.String(cfg, "api_key", os.Getenv("OPENAI_API_KEY"))
	if apiKey == "" {
		return nil, ai.NewFatalError(errors.New("missing api key"),
			"OpenAI API key is required (set OPENAI_API_KEY environment variable or provide api_key in config)")
	}

	clientCfg := openai.DefaultConfig(apiKey)
	if baseURL := plugin.String(cfg, "base_url", os.Getenv("OPENAI_BASE_URL")); baseURL != "" {
		clientCfg.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(clientCfg), nil
}

// classify tags an API failure as recoverable (rate limits, server errors,
// transport problems) or fatal (everything the caller must fix).
func classify(err error, msg string) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	default:
		return ai.NewRecoverableError(err, msg)
	}

	if status == http.StatusTooManyRequests || status >= 500 {
		return ai.NewRecoverableError(err, fmt.Sprintf("%s (status %d)", msg, status))
	}
	return ai.NewFatalError(err, fmt.Sprintf("%s (status %d)", msg, status))
}

func init() {
	plugin.RegisterWithMetadata(&plugin.Plugin{
		Kind:        plugin.KindLLM,
		Name:        "openai",
		Factory:     newOpenAILLM,
		Description: "OpenAI chat completion service",
		Version:     "1.0.0",
		Config: map[string]any{
			"api_key":  "OpenAI API key (or set OPENAI_API_KEY env var)",
			"base_url": "API base URL (or set OPENAI_BASE_URL env var)",
			"model":    DefaultChatModel,
		},
	})

	plugin.RegisterWithMetadata(&plugin.Plugin{
		Kind:        plugin.KindTTS,
		Name:        "openai",
		Factory:     newOpenAITTS,
		Description: "OpenAI text-to-speech service",
		Version:     "1.0.0",
		Config: map[string]any{
			"api_key":  "OpenAI API key (or set OPENAI_API_KEY env var)",
			"base_url": "API base URL (or set OPENAI_BASE_URL env var)",
			"model":    DefaultSpeechModel,
			"voice":    DefaultVoice,
		},
	})
}
