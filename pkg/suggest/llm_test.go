package suggest

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/matryer/is"

	"github.com/chriscow/meetsl-go/pkg/ai/llm"
	"github.com/chriscow/meetsl-go/pkg/ai/llm/fake"
)

var meetingTokens = []TokenInput{
	{Token: "HELLO", Confidence: 0.92, TS: 1},
	{Token: "MEETING", Confidence: 0.81, TS: 2},
}

func TestLLMSuggester_ParsesReply(t *testing.T) {
	is := is.New(t)

	model := fake.NewFakeLLM(`{"suggested_text": "Hello, welcome to the meeting.", "alternatives": ["Hi, meeting", "Hello all", "Hey", "Greetings"]}`)
	s := NewLLMSuggester(model, nil)

	got, err := s.Suggest(context.Background(), Request{
		Tokens:              meetingTokens,
		RecentSpeechContext: "let's begin",
	})
	is.NoErr(err)
	is.Equal(got.SuggestedText, "Hello, welcome to the meeting.")
	is.Equal(got.UncertaintyLevel, UncertaintyLow)
	is.True(!got.NeedsConfirmation)
	is.Equal(len(got.Alternatives), MaxAlternatives)

	reqs := model.Requests()
	is.Equal(len(reqs), 1)
	req := reqs[0]
	is.Equal(req.MaxTokens, 200)
	is.Equal(req.Temperature, float32(0))
	is.True(req.JSONOutput)
	is.Equal(req.Messages[0].Role, llm.RoleSystem)
	is.Equal(req.Messages[1].Content,
		"Domain: meeting\nRecognized tokens: [\"HELLO\" (conf=0.92), \"MEETING\" (conf=0.81)]\nRecent speech context: let's begin")
}

func TestLLMSuggester_StripsFences(t *testing.T) {
	is := is.New(t)

	model := fake.NewFakeLLM("```json\n{\"suggested_text\": \"Thank you.\"}\n```")
	got, err := NewLLMSuggester(model, nil).Suggest(context.Background(), Request{Tokens: meetingTokens})
	is.NoErr(err)
	is.Equal(got.SuggestedText, "Thank you.")
	is.True(got.Alternatives != nil)
}

func TestLLMSuggester_FallsBack(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*fake.FakeLLM)
		reply string
	}{
		{name: "model error", setup: func(m *fake.FakeLLM) { m.FailWith(errors.New("rate limited")) }},
		{name: "not json", reply: "Sure! Here is your phrase: hello meeting"},
		{name: "empty text", reply: `{"suggested_text": "", "alternatives": ["x"]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := fake.NewFakeLLM(tt.reply)
			if tt.setup != nil {
				tt.setup(model)
			}
			got, err := NewLLMSuggester(model, nil).Suggest(context.Background(), Request{Tokens: meetingTokens})
			if err != nil {
				t.Fatalf("Suggest() error = %v", err)
			}
			if got.SuggestedText != "HELLO MEETING" {
				t.Errorf("SuggestedText = %q, want fallback", got.SuggestedText)
			}
			if len(got.Alternatives) != 0 {
				t.Errorf("fallback should carry no alternatives, got %v", got.Alternatives)
			}
		})
	}
}

func TestLLMSuggester_RejectsEmptyAndCanceled(t *testing.T) {
	is := is.New(t)

	s := NewLLMSuggester(fake.NewFakeLLM(), nil)
	_, err := s.Suggest(context.Background(), Request{})
	is.True(errors.Is(err, ErrNoTokens))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Suggest(ctx, Request{Tokens: meetingTokens})
	is.True(errors.Is(err, context.Canceled)) // cancellation is not turned into a fallback
}

func TestStripFences(t *testing.T) {
	tests := map[string]string{
		`{"a":1}`:                   `{"a":1}`,
		"```\n{\"a\":1}\n```":       `{"a":1}`,
		"```json\n{\"a\":1}\n```\n": `{"a":1}`,
		"```":                       "",
	}
	for in, want := range tests {
		if got := stripFences(in); got != want {
			t.Errorf("stripFences(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate(strings.Repeat("é", 100), 80); len([]rune(got)) != 80 {
		t.Errorf("truncate() kept %d runes", len([]rune(got)))
	}
}
