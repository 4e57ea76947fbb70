// Package caption turns the noisy per-frame sign predictions coming back from
// the recognizer into a stable sequence of committed tokens.
package caption

import (
	"fmt"
	"math"
)

// Prediction is one per-frame recognizer output.
type Prediction struct {
	Token      string  `json:"token"`
	Confidence float64 `json:"confidence"`
	TS         int64   `json:"ts"` // frame timestamp, ms
}

// CommitConfig holds the stabilizer tuning. It is fixed for the lifetime of a
// session.
type CommitConfig struct {
	WindowSize          int     `toml:"window_size"`
	StabilityThreshold  int     `toml:"stability_threshold"`
	ConfidenceThreshold float64 `toml:"confidence_threshold"`
	CooldownMs          int64   `toml:"cooldown_ms"`
}

// DefaultCommitConfig is the tuning used when nothing else is configured.
var DefaultCommitConfig = CommitConfig{
	WindowSize:          10,
	StabilityThreshold:  6,
	ConfidenceThreshold: 0.7,
	CooldownMs:          1500,
}

// Validate reports configuration that could never commit anything.
func (c CommitConfig) Validate() error {
	switch {
	case c.WindowSize < 1:
		return fmt.Errorf("window size must be positive, got %d", c.WindowSize)
	case c.StabilityThreshold < 1 || c.StabilityThreshold > c.WindowSize:
		return fmt.Errorf("stability threshold must be in [1, %d], got %d", c.WindowSize, c.StabilityThreshold)
	case c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1:
		return fmt.Errorf("confidence threshold must be in [0, 1], got %v", c.ConfidenceThreshold)
	case c.CooldownMs < 0:
		return fmt.Errorf("cooldown must not be negative, got %d", c.CooldownMs)
	}
	return nil
}

// CommitResult is a token that passed every gate of Evaluate.
type CommitResult struct {
	Token         string
	AvgConfidence float64
	TS            int64
}

// Evaluate decides whether window holds a token stable enough to commit at
// time now (ms). It has no side effects; deduplication against the last
// committed token is the caller's job.
func Evaluate(window []Prediction, lastCommitTs, now int64, cfg CommitConfig) (CommitResult, bool) {
	if len(window) < cfg.StabilityThreshold {
		return CommitResult{}, false
	}
	if now-lastCommitTs < cfg.CooldownMs {
		return CommitResult{}, false
	}

	// Distinct tokens in order of first appearance. The mode is replaced only
	// by a strictly greater count, so ties go to the token seen first.
	counts := make(map[string]int, len(window))
	order := make([]string, 0, len(window))
	for _, p := range window {
		if _, seen := counts[p.Token]; !seen {
			order = append(order, p.Token)
		}
		counts[p.Token]++
	}

	var mode string
	best := 0
	for _, token := range order {
		if counts[token] > best {
			mode = token
			best = counts[token]
		}
	}
	if best < cfg.StabilityThreshold {
		return CommitResult{}, false
	}

	var sum float64
	for _, p := range window {
		if p.Token == mode {
			sum += p.Confidence
		}
	}
	avg := roundConfidence(sum / float64(best))
	if avg < cfg.ConfidenceThreshold {
		return CommitResult{}, false
	}

	return CommitResult{Token: mode, AvgConfidence: avg, TS: now}, true
}

func roundConfidence(v float64) float64 {
	return math.Round(v*1000) / 1000
}
