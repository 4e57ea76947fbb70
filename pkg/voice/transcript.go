package voice

import (
	"strings"
	"sync"
)

// MaxSegments bounds the transcript; older segments are dropped first.
const MaxSegments = 200

// Source says who a transcript segment is attributed to.
type Source string

const (
	// SourceUser is speech heard while our own speech output was playing.
	SourceUser Source = "user"
	// SourceOther is speech from other meeting participants.
	SourceOther Source = "other"
)

// Segment is one final recognition result.
type Segment struct {
	Text   string `json:"text"`
	Source Source `json:"source"`
}

// Transcript is a bounded, concurrency-safe list of heard speech.
type Transcript struct {
	mu       sync.Mutex
	segments []Segment
	interim  string
}

// NewTranscript creates an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{}
}

// Add appends a final segment and clears the interim text. Blank text is
// ignored.
func (t *Transcript) Add(text string, source Source) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.segments = append(t.segments, Segment{Text: text, Source: source})
	if n := len(t.segments); n > MaxSegments {
		t.segments = append([]Segment(nil), t.segments[n-MaxSegments:]...)
	}
	t.interim = ""
}

// SetInterim replaces the in-progress text.
func (t *Transcript) SetInterim(text string) {
	t.mu.Lock()
	t.interim = text
	t.mu.Unlock()
}

// Interim returns the in-progress text.
func (t *Transcript) Interim() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.interim
}

// Segments returns a copy of the final segments, oldest first.
func (t *Transcript) Segments() []Segment {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Segment, len(t.segments))
	copy(out, t.segments)
	return out
}

// Text joins all final segments with single spaces.
func (t *Transcript) Text() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	parts := make([]string, len(t.segments))
	for i, s := range t.segments {
		parts[i] = s.Text
	}
	return strings.Join(parts, " ")
}

// Tail returns at most the last n runes of Text.
func (t *Transcript) Tail(n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(t.Text())
	if len(r) <= n {
		return string(r)
	}
	return string(r[len(r)-n:])
}

// Clear drops all segments and the interim text.
func (t *Transcript) Clear() {
	t.mu.Lock()
	t.segments = nil
	t.interim = ""
	t.mu.Unlock()
}
