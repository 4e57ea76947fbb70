package fake

import (
	"context"
	"strings"
	"sync"

	"github.com/chriscow/meetsl-go/pkg/ai/llm"
)

// FakeLLM is a fake LLM implementation for testing. It cycles through its
// scripted responses and records every request it receives.
type FakeLLM struct {
	mu        sync.Mutex
	responses []string
	err       error
	callCount int
	requests  []llm.ChatRequest
}

// NewFakeLLM creates a new fake LLM provider with predefined responses.
func NewFakeLLM(responses ...string) *FakeLLM {
	if len(responses) == 0 {
		responses = []string{
			`{"suggested_text": "Hello, how are you?", "alternatives": ["Hi, how are you?"]}`,
		}
	}
	return &FakeLLM{responses: responses}
}

// FailWith makes every subsequent Chat call return err.
func (f *FakeLLM) FailWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// Chat returns the next scripted response.
func (f *FakeLLM) Chat(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	if err := ctx.Err(); err != nil {
		return llm.ChatResponse{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, req)
	if f.err != nil {
		return llm.ChatResponse{}, f.err
	}

	response := f.responses[f.callCount%len(f.responses)]
	f.callCount++

	return llm.ChatResponse{
		Message: llm.Message{
			Role:    llm.RoleAssistant,
			Content: response,
		},
		TokensUsed:   len(strings.Fields(response)) + 10,
		FinishReason: "stop",
	}, nil
}

// Requests returns a copy of the requests received so far.
func (f *FakeLLM) Requests() []llm.ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]llm.ChatRequest, len(f.requests))
	copy(out, f.requests)
	return out
}

// Capabilities returns the fake LLM capabilities.
func (f *FakeLLM) Capabilities() llm.LLMCapabilities {
	return llm.LLMCapabilities{
		SupportsJSONOutput: true,
		SupportsSystemRole: true,
		MaxTokens:          4096,
		SupportedModels:    []string{"fake-model"},
	}
}
