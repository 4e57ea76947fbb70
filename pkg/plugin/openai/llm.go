package openai

import (
	"context"
	"errors"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/chriscow/meetsl-go/pkg/ai"
	"github.com/chriscow/meetsl-go/pkg/ai/llm"
	"github.com/chriscow/meetsl-go/pkg/plugin"
)

// DefaultChatModel is used when no model is configured.
const DefaultChatModel = "gpt-4o-mini"

// OpenAILLM implements the LLM interface using OpenAI GPT models
type OpenAILLM struct {
	client *openai.Client
	model  string
}

// NewOpenAILLM creates an LLM over client. An empty model selects
// DefaultChatModel.
func NewOpenAILLM(client *openai.Client, model string) *OpenAILLM {
	if model == "" {
		model = DefaultChatModel
	}
	return &OpenAILLM{client: client, model: model}
}

// newOpenAILLM is the plugin factory.
func newOpenAILLM(cfg map[string]any) (any, error) {
	client, err := newClient(cfg)
	if err != nil {
		return nil, err
	}
	return NewOpenAILLM(client, plugin.String(cfg, "model", DefaultChatModel)), nil
}

// Chat performs a chat completion.
func (o *OpenAILLM) Chat(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	start := time.Now()

	messages := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, msg := range req.Messages {
		messages[i] = openai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		}
	}

	completionReq := openai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if req.JSONOutput {
		completionReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := o.client.CreateChatCompletion(ctx, completionReq)
	if err != nil {
		slog.Warn("OpenAI chat completion failed", slog.String("model", o.model), slog.Any("error", err))
		return llm.ChatResponse{}, classify(err, "chat completion request failed")
	}
	if len(resp.Choices) == 0 {
		return llm.ChatResponse{}, ai.NewRecoverableError(errors.New("empty choices"), "no chat completion choices returned")
	}

	choice := resp.Choices[0]
	slog.Debug("OpenAI chat completion",
		slog.String("model", o.model),
		slog.Int("tokens", resp.Usage.TotalTokens),
		slog.Duration("duration", time.Since(start)))

	return llm.ChatResponse{
		Message: llm.Message{
			Role:    llm.MessageRole(choice.Message.Role),
			Content: choice.Message.Content,
		},
		TokensUsed:   resp.Usage.TotalTokens,
		FinishReason: string(choice.FinishReason),
	}, nil
}

// Capabilities returns the OpenAI provider's capabilities
func (o *OpenAILLM) Capabilities() llm.LLMCapabilities {
	return llm.LLMCapabilities{
		SupportsJSONOutput: true,
		SupportsSystemRole: true,
		MaxTokens:          128000,
		SupportedModels:    []string{"gpt-4o-mini", "gpt-4o", "gpt-4-turbo"},
	}
}
