package suggest

import (
	"time"

	"github.com/chriscow/meetsl-go/pkg/ai/llm"
	"github.com/chriscow/meetsl-go/pkg/plugin"
)

// DefaultBaseURL is the suggestion service address used when none is set.
const DefaultBaseURL = "http://localhost:8000"

func newHTTPSuggester(cfg map[string]any) (any, error) {
	timeout := time.Duration(plugin.Float(cfg, "timeout_ms", 0)) * time.Millisecond
	return NewHTTPClient(plugin.String(cfg, "base_url", DefaultBaseURL), timeout), nil
}

// newLLMSuggester builds the language model named by cfg["llm"] from the
// default registry, passing it the same configuration.
func newLLMSuggester(cfg map[string]any) (any, error) {
	model, err := plugin.Build[llm.LLM](plugin.Default(), plugin.KindLLM, plugin.String(cfg, "llm", "openai"), cfg)
	if err != nil {
		return nil, err
	}
	return NewLLMSuggester(model, nil), nil
}

func init() {
	plugin.RegisterWithMetadata(&plugin.Plugin{
		Kind:        plugin.KindSuggest,
		Name:        "http",
		Factory:     newHTTPSuggester,
		Description: "Remote suggestion service (POST /llm/suggest)",
		Version:     "1.0.0",
		Config: map[string]any{
			"base_url":   DefaultBaseURL,
			"timeout_ms": int(DefaultHTTPTimeout / time.Millisecond),
		},
	})

	plugin.RegisterWithMetadata(&plugin.Plugin{
		Kind:        plugin.KindSuggest,
		Name:        "llm",
		Factory:     newLLMSuggester,
		Description: "In-process suggestions from a registered language model",
		Version:     "1.0.0",
		Config: map[string]any{
			"llm": "Name of the llm plugin to use (default openai)",
		},
	})
}
