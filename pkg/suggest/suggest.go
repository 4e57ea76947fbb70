// Package suggest turns a short run of committed sign tokens into a fluent
// phrase suggestion, either through the remote suggestion service or by
// prompting a language model directly.
package suggest

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// DefaultDomain is the conversational domain sent with every request.
const DefaultDomain = "meeting"

// MaxAlternatives caps the alternatives kept from a suggestion.
const MaxAlternatives = 3

// ErrNoTokens is returned for requests without tokens.
var ErrNoTokens = errors.New("at least one token is required")

// TokenInput is one committed token sent for rewriting.
type TokenInput struct {
	Token      string  `json:"token"`
	Confidence float64 `json:"confidence"`
	TS         int64   `json:"ts"`
}

// Request asks for a suggestion.
type Request struct {
	Tokens              []TokenInput `json:"tokens"`
	Domain              string       `json:"domain"`
	RecentSpeechContext string       `json:"recent_speech_context,omitempty"`
}

// Uncertainty grades how much the suggestion can be trusted.
type Uncertainty string

const (
	UncertaintyLow    Uncertainty = "low"
	UncertaintyMedium Uncertainty = "medium"
	UncertaintyHigh   Uncertainty = "high"
)

// Valid reports whether u is one of the known levels.
func (u Uncertainty) Valid() bool {
	switch u {
	case UncertaintyLow, UncertaintyMedium, UncertaintyHigh:
		return true
	}
	return false
}

// Suggestion is the rewritten phrase.
type Suggestion struct {
	SuggestedText     string      `json:"suggested_text"`
	UncertaintyLevel  Uncertainty `json:"uncertainty_level"`
	Alternatives      []string    `json:"alternatives"`
	NeedsConfirmation bool        `json:"needs_confirmation"`
}

// Validate checks a suggestion received from a remote service.
func (s Suggestion) Validate() error {
	if s.SuggestedText == "" {
		return fmt.Errorf("empty suggested_text")
	}
	if !s.UncertaintyLevel.Valid() {
		return fmt.Errorf("invalid uncertainty_level %q", s.UncertaintyLevel)
	}
	return nil
}

// Suggester produces suggestions. Implementations must return promptly with
// ctx's error when ctx is canceled.
type Suggester interface {
	Suggest(ctx context.Context, req Request) (Suggestion, error)
}

// Assess grades token confidences before any rewriting happens. A single
// token is always treated as uncertain.
func Assess(tokens []TokenInput) (Uncertainty, bool) {
	if len(tokens) < 2 {
		return UncertaintyHigh, true
	}

	minConf := tokens[0].Confidence
	for _, t := range tokens[1:] {
		minConf = min(minConf, t.Confidence)
	}

	switch {
	case minConf >= 0.6:
		return UncertaintyLow, false
	case minConf >= 0.5:
		return UncertaintyMedium, true
	default:
		return UncertaintyHigh, true
	}
}

// Fallback builds the suggestion used when no rewrite is available: the
// tokens joined by spaces.
func Fallback(tokens []TokenInput) Suggestion {
	words := make([]string, len(tokens))
	for i, t := range tokens {
		words[i] = t.Token
	}
	level, confirm := Assess(tokens)
	return Suggestion{
		SuggestedText:     strings.Join(words, " "),
		UncertaintyLevel:  level,
		Alternatives:      []string{},
		NeedsConfirmation: confirm,
	}
}
