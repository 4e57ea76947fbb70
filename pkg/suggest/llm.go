package suggest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/chriscow/meetsl-go/pkg/ai"
	"github.com/chriscow/meetsl-go/pkg/ai/llm"
)

// SystemPrompt instructs the model how to rewrite sign tokens.
const SystemPrompt = `You are a sign language interpreter assistant for real-time meetings.

You receive a list of recognized sign language tokens with confidence scores. Your job is to suggest a fluent English phrase that preserves the meaning of ALL recognized tokens.

RULES:
1. NEVER add information, facts, or words not directly implied by the tokens.
2. NEVER drop or contradict any recognized token.
3. You may add small grammatical connectors (articles, prepositions) to make the phrase natural.
4. Keep the output short and conversational.
5. If the tokens are ambiguous, provide 1-2 brief alternatives.
6. Respond with ONLY a JSON object. No markdown, no explanation.

Required JSON format:
{
  "suggested_text": "the fluent phrase",
  "alternatives": ["alternative phrasing 1"]
}`

const (
	llmMaxTokens   = 200
	llmTemperature = 0
)

// LLMSuggester rewrites tokens by prompting a language model. Uncertainty is
// graded from token confidences, never by the model. Any model failure
// degrades to Fallback rather than an error.
type LLMSuggester struct {
	model  llm.LLM
	logger *slog.Logger
}

// NewLLMSuggester creates a suggester backed by model.
func NewLLMSuggester(model llm.LLM, logger *slog.Logger) *LLMSuggester {
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMSuggester{model: model, logger: logger}
}

type modelReply struct {
	SuggestedText string   `json:"suggested_text"`
	Alternatives  []string `json:"alternatives"`
}

// Suggest prompts the model for a rewrite of req.Tokens.
func (s *LLMSuggester) Suggest(ctx context.Context, req Request) (Suggestion, error) {
	if len(req.Tokens) == 0 {
		return Suggestion{}, ai.NewFatalError(ErrNoTokens, "suggest request")
	}
	if req.Domain == "" {
		req.Domain = DefaultDomain
	}

	level, confirm := Assess(req.Tokens)

	resp, err := s.model.Chat(ctx, llm.ChatRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: SystemPrompt},
			{Role: llm.RoleUser, Content: userMessage(req)},
		},
		MaxTokens:   llmMaxTokens,
		Temperature: llmTemperature,
		JSONOutput:  true,
	})
	if err != nil {
		if ctx.Err() != nil {
			return Suggestion{}, ctx.Err()
		}
		s.logger.Warn("LLM suggest call failed, using fallback", slog.String("error", err.Error()))
		return Fallback(req.Tokens), nil
	}

	reply, err := parseReply(resp.Message.Content)
	if err != nil || reply.SuggestedText == "" {
		s.logger.Warn("Unusable LLM reply, using fallback",
			slog.String("reply", truncate(resp.Message.Content, 80)))
		return Fallback(req.Tokens), nil
	}

	alts := reply.Alternatives
	if alts == nil {
		alts = []string{}
	}
	if len(alts) > MaxAlternatives {
		alts = alts[:MaxAlternatives]
	}

	s.logger.Info("LLM suggestion",
		slog.String("uncertainty", string(level)),
		slog.Bool("needs_confirmation", confirm),
		slog.String("text", truncate(reply.SuggestedText, 80)))

	return Suggestion{
		SuggestedText:     reply.SuggestedText,
		UncertaintyLevel:  level,
		Alternatives:      alts,
		NeedsConfirmation: confirm,
	}, nil
}

func userMessage(req Request) string {
	parts := make([]string, len(req.Tokens))
	for i, t := range req.Tokens {
		parts[i] = fmt.Sprintf("%q (conf=%.2f)", t.Token, t.Confidence)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Domain: %s\nRecognized tokens: [%s]", req.Domain, strings.Join(parts, ", "))
	if req.RecentSpeechContext != "" {
		fmt.Fprintf(&b, "\nRecent speech context: %s", req.RecentSpeechContext)
	}
	return b.String()
}

// parseReply decodes the model output, tolerating a surrounding markdown
// code fence.
func parseReply(raw string) (modelReply, error) {
	var reply modelReply
	err := json.Unmarshal([]byte(stripFences(raw)), &reply)
	return reply, err
}

func stripFences(raw string) string {
	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	// drop the opening fence line (``` or ```json)
	if _, rest, ok := strings.Cut(text, "\n"); ok {
		text = rest
	} else {
		return ""
	}
	if i := strings.LastIndex(text, "```"); i >= 0 {
		text = text[:i]
	}
	return strings.TrimSpace(text)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
