package llm

import (
	"context"

	"github.com/chriscow/meetsl-go/pkg/ai"
)

var (
	// ErrRecoverable indicates a temporary LLM failure (rate limit, timeout, 5xx).
	ErrRecoverable = ai.ErrRecoverable

	// ErrFatal indicates a permanent LLM failure (invalid key, unsupported model).
	ErrFatal = ai.ErrFatal
)

// MessageRole represents the role of a message in a chat conversation.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message represents a single message in a chat conversation.
type Message struct {
	Role    MessageRole
	Content string
}

// ChatRequest contains parameters for a chat completion request.
type ChatRequest struct {
	Messages    []Message
	MaxTokens   int
	Temperature float32
	// JSONOutput asks the provider to constrain the reply to a JSON object
	// when it supports doing so.
	JSONOutput bool
}

// ChatResponse contains the response from a chat completion request.
type ChatResponse struct {
	Message      Message
	TokensUsed   int
	FinishReason string
}

// LLMCapabilities describes the capabilities of an LLM provider.
type LLMCapabilities struct {
	SupportsJSONOutput bool
	SupportsSystemRole bool
	MaxTokens          int
	SupportedModels    []string
}

// LLM is the main interface for large language model providers.
type LLM interface {
	// Chat performs a chat completion request.
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)

	// Capabilities returns the provider's capabilities.
	Capabilities() LLMCapabilities
}
