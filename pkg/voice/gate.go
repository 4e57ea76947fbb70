// Package voice covers the spoken side of a meeting: whether our own speech
// output is playing, and a transcript of what is heard.
package voice

import (
	"sync"
	"sync/atomic"
	"time"
)

// DefaultGrace is how long after speech output ends that heard speech is
// still attributed to us.
const DefaultGrace = 2 * time.Second

// SpeakingGate tracks whether speech output is playing and when it last
// stopped. It satisfies tts.ActivityReporter.
type SpeakingGate struct {
	speaking atomic.Bool
	now      func() time.Time

	mu        sync.Mutex
	lastSpoke time.Time
}

// NewSpeakingGate creates a gate that is initially silent.
func NewSpeakingGate() *SpeakingGate {
	return &SpeakingGate{now: time.Now}
}

// SetSpeaking records a start or end of speech output.
func (g *SpeakingGate) SetSpeaking(speaking bool) {
	was := g.speaking.Swap(speaking)
	if was && !speaking {
		g.mu.Lock()
		g.lastSpoke = g.now()
		g.mu.Unlock()
	}
}

// Speaking reports whether speech output is playing right now.
func (g *SpeakingGate) Speaking() bool {
	return g.speaking.Load()
}

// SpokeRecently reports whether speech output is playing or finished less
// than grace ago. A non-positive grace uses DefaultGrace.
func (g *SpeakingGate) SpokeRecently(grace time.Duration) bool {
	if g.speaking.Load() {
		return true
	}
	if grace <= 0 {
		grace = DefaultGrace
	}
	g.mu.Lock()
	last := g.lastSpoke
	g.mu.Unlock()
	return !last.IsZero() && g.now().Sub(last) < grace
}
