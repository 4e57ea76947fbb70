package suggest

import (
	"testing"

	"github.com/matryer/is"
)

func tokens(confs ...float64) []TokenInput {
	out := make([]TokenInput, len(confs))
	for i, c := range confs {
		out[i] = TokenInput{Token: string(rune('A' + i)), Confidence: c, TS: int64(i)}
	}
	return out
}

func TestAssess(t *testing.T) {
	tests := []struct {
		name        string
		tokens      []TokenInput
		wantLevel   Uncertainty
		wantConfirm bool
	}{
		{"single token", tokens(0.99), UncertaintyHigh, true},
		{"no tokens", nil, UncertaintyHigh, true},
		{"all confident", tokens(0.9, 0.6), UncertaintyLow, false},
		{"one medium", tokens(0.9, 0.55), UncertaintyMedium, true},
		{"medium boundary", tokens(0.5, 0.9), UncertaintyMedium, true},
		{"one weak", tokens(0.9, 0.49, 0.8), UncertaintyHigh, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, confirm := Assess(tt.tokens)
			if level != tt.wantLevel || confirm != tt.wantConfirm {
				t.Errorf("Assess() = (%s, %v), want (%s, %v)", level, confirm, tt.wantLevel, tt.wantConfirm)
			}
		})
	}
}

func TestFallback(t *testing.T) {
	is := is.New(t)

	s := Fallback([]TokenInput{
		{Token: "HELLO", Confidence: 0.9},
		{Token: "MEETING", Confidence: 0.8},
	})
	is.Equal(s.SuggestedText, "HELLO MEETING")
	is.Equal(s.UncertaintyLevel, UncertaintyLow)
	is.True(!s.NeedsConfirmation)
	is.Equal(len(s.Alternatives), 0)
	is.True(s.Alternatives != nil) // encodes as [] not null
}

func TestSuggestion_Validate(t *testing.T) {
	good := Suggestion{SuggestedText: "hi", UncertaintyLevel: UncertaintyLow}
	if err := good.Validate(); err != nil {
		t.Errorf("Validate() unexpected error: %v", err)
	}

	bad := []Suggestion{
		{UncertaintyLevel: UncertaintyLow},
		{SuggestedText: "hi", UncertaintyLevel: "extreme"},
	}
	for _, s := range bad {
		if err := s.Validate(); err == nil {
			t.Errorf("Validate(%+v) expected error", s)
		}
	}
}
