// Package assist decides what happens to committed caption tokens: spoken
// straight away, or buffered and rewritten into a fluent phrase first.
package assist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/chriscow/meetsl-go/pkg/ai/tts"
	"github.com/chriscow/meetsl-go/pkg/caption"
	"github.com/chriscow/meetsl-go/pkg/suggest"
)

// Mode selects how committed tokens are delivered.
type Mode int

const (
	// ModeDirect speaks every committed token as it arrives.
	ModeDirect Mode = iota
	// ModeAssist buffers tokens and speaks a suggested rewrite.
	ModeAssist
)

func (m Mode) String() string {
	switch m {
	case ModeDirect:
		return "direct"
	case ModeAssist:
		return "assist"
	default:
		return "unknown"
	}
}

// MarshalText encodes the mode by name.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// ParseMode parses "direct" or "assist".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "direct":
		return ModeDirect, nil
	case "assist":
		return ModeAssist, nil
	}
	return ModeDirect, fmt.Errorf("unknown assist mode %q", s)
}

// Config tunes when a suggestion request is triggered.
type Config struct {
	TriggerCount  int    `toml:"trigger_count"`
	IdleTimeoutMs int64  `toml:"idle_timeout_ms"`
	Domain        string `toml:"domain"`
	ContextChars  int    `toml:"context_chars"`
}

// DefaultConfig triggers on two buffered tokens or three seconds of quiet.
var DefaultConfig = Config{
	TriggerCount:  2,
	IdleTimeoutMs: 3000,
	Domain:        suggest.DefaultDomain,
	ContextChars:  200,
}

// Validate checks the configuration.
func (c Config) Validate() error {
	switch {
	case c.TriggerCount < 1:
		return fmt.Errorf("trigger count must be positive, got %d", c.TriggerCount)
	case c.IdleTimeoutMs <= 0:
		return fmt.Errorf("idle timeout must be positive, got %d", c.IdleTimeoutMs)
	case c.ContextChars < 0:
		return fmt.Errorf("context chars must not be negative, got %d", c.ContextChars)
	}
	return nil
}

// State is a point-in-time view of the coordinator.
type State struct {
	Mode       Mode                 `json:"mode"`
	Buffered   []suggest.TokenInput `json:"buffered"`
	Loading    bool                 `json:"loading"`
	Suggestion *suggest.Suggestion  `json:"suggestion,omitempty"`
	Err        string               `json:"error,omitempty"`
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithSpeechContext supplies recent meeting speech for suggestion requests.
// The function is called with the number of characters wanted.
func WithSpeechContext(fn func(n int) string) Option {
	return func(c *Coordinator) { c.speechContext = fn }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

// Coordinator is the Direct/Assist state machine. At most one suggestion
// request is outstanding; starting another cancels the previous one, and a
// settlement that is no longer current is dropped.
type Coordinator struct {
	cfg           Config
	suggester     suggest.Suggester
	speaker       tts.Speaker
	speechContext func(n int) string
	logger        *slog.Logger

	mu         sync.Mutex
	mode       Mode
	buffer     []suggest.TokenInput
	idle       *time.Timer
	idleSeq    uint64
	gen        uint64
	cancel     context.CancelFunc
	loading    bool
	suggestion *suggest.Suggestion
	err        error
	closed     bool
	onChange   func(State)

	wg sync.WaitGroup
}

// New creates a coordinator in Direct mode. speaker may be nil, in which
// case nothing is ever spoken.
func New(cfg Config, suggester suggest.Suggester, speaker tts.Speaker, opts ...Option) *Coordinator {
	if cfg.Domain == "" {
		cfg.Domain = suggest.DefaultDomain
	}
	c := &Coordinator{
		cfg:       cfg,
		suggester: suggester,
		speaker:   speaker,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(slog.String("component", "assist"))
	return c
}

// OnChange registers fn to be called with the new state after every
// change. fn runs outside the coordinator's lock.
func (c *Coordinator) OnChange(fn func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = fn
}

// Mode returns the current mode.
func (c *Coordinator) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// State returns a snapshot of the coordinator.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *Coordinator) stateLocked() State {
	st := State{
		Mode:     c.mode,
		Buffered: append([]suggest.TokenInput{}, c.buffer...),
		Loading:  c.loading,
	}
	if c.suggestion != nil {
		s := *c.suggestion
		s.Alternatives = append([]string{}, s.Alternatives...)
		st.Suggestion = &s
	}
	if c.err != nil {
		st.Err = c.err.Error()
	}
	return st
}

// HandleCommit delivers a committed token according to the current mode.
func (c *Coordinator) HandleCommit(ct caption.CommittedToken) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.mode == ModeDirect {
		c.mu.Unlock()
		c.speak(ct.Token)
		return
	}

	c.buffer = append(c.buffer, suggest.TokenInput{Token: ct.Token, Confidence: ct.Confidence, TS: ct.TS})
	c.stopIdleLocked()
	if len(c.buffer) >= c.cfg.TriggerCount {
		c.triggerLocked()
	} else {
		seq := c.idleSeq
		c.idle = time.AfterFunc(time.Duration(c.cfg.IdleTimeoutMs)*time.Millisecond, func() {
			c.onIdle(seq)
		})
	}
	c.notifyUnlock()
}

func (c *Coordinator) onIdle(seq uint64) {
	c.mu.Lock()
	if c.closed || seq != c.idleSeq || c.mode != ModeAssist {
		c.mu.Unlock()
		return
	}
	c.idle = nil
	c.triggerLocked()
	c.notifyUnlock()
}

// Trigger sends the buffered tokens for a suggestion now, without waiting
// for the trigger count or the idle timer. It returns false when the
// buffer is empty or the coordinator is not in Assist mode.
func (c *Coordinator) Trigger() bool {
	c.mu.Lock()
	if c.closed || c.mode != ModeAssist || len(c.buffer) == 0 {
		c.mu.Unlock()
		return false
	}
	c.triggerLocked()
	c.notifyUnlock()
	return true
}

func (c *Coordinator) triggerLocked() {
	if len(c.buffer) == 0 {
		return
	}
	tokens := c.buffer
	c.buffer = nil
	c.stopIdleLocked()

	c.cancelRequestLocked()
	c.gen++
	gen := c.gen
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.loading = true
	c.suggestion = nil
	c.err = nil

	req := suggest.Request{Tokens: tokens, Domain: c.cfg.Domain}
	if c.speechContext != nil && c.cfg.ContextChars > 0 {
		req.RecentSpeechContext = c.speechContext(c.cfg.ContextChars)
	}

	c.logger.Debug("Requesting suggestion", slog.Int("tokens", len(tokens)), slog.Uint64("generation", gen))

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		s, err := c.suggester.Suggest(ctx, req)
		c.settle(gen, s, err)
	}()
}

func (c *Coordinator) settle(gen uint64, s suggest.Suggestion, err error) {
	c.mu.Lock()
	if c.closed || gen != c.gen {
		c.mu.Unlock()
		return
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.loading = false

	var say string
	switch {
	case errors.Is(err, context.Canceled):
		// superseded or cleared; nothing to surface
	case err != nil:
		c.err = err
		c.logger.Warn("Suggestion failed", slog.Any("error", err))
	case !s.NeedsConfirmation && c.mode == ModeAssist:
		say = s.SuggestedText
		c.suggestion = nil
	default:
		c.suggestion = &s
		c.logger.Info("Suggestion awaiting confirmation",
			slog.String("text", s.SuggestedText),
			slog.String("uncertainty", string(s.UncertaintyLevel)))
	}
	c.notifyUnlock()

	if say != "" {
		c.speak(say)
	}
}

// Accept speaks the held suggestion and clears it. It returns the text
// spoken, or false when nothing was held.
func (c *Coordinator) Accept() (string, bool) {
	c.mu.Lock()
	if c.suggestion == nil {
		c.mu.Unlock()
		return "", false
	}
	text := c.suggestion.SuggestedText
	c.suggestion = nil
	c.notifyUnlock()

	c.speak(text)
	return text, true
}

// Reject discards the held suggestion, cancels any outstanding request and
// clears the error.
func (c *Coordinator) Reject() {
	c.mu.Lock()
	c.resetRequestLocked()
	c.notifyUnlock()
}

// Clear drops buffered tokens as well as everything Reject drops.
func (c *Coordinator) Clear() {
	c.mu.Lock()
	c.buffer = nil
	c.stopIdleLocked()
	c.resetRequestLocked()
	c.notifyUnlock()
}

// SetMode switches mode. Leaving Assist drops all assist state.
func (c *Coordinator) SetMode(m Mode) {
	c.mu.Lock()
	if c.closed || m == c.mode {
		c.mu.Unlock()
		return
	}
	if c.mode == ModeAssist {
		c.buffer = nil
		c.stopIdleLocked()
		c.resetRequestLocked()
	}
	c.mode = m
	c.logger.Info("Assist mode changed", slog.String("mode", m.String()))
	c.notifyUnlock()
}

// Toggle flips between Direct and Assist and returns the new mode.
func (c *Coordinator) Toggle() Mode {
	next := ModeAssist
	if c.Mode() == ModeAssist {
		next = ModeDirect
	}
	c.SetMode(next)
	return c.Mode()
}

// Close stops the idle timer, cancels any outstanding request and waits for
// it to return.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.stopIdleLocked()
	c.resetRequestLocked()
	c.closed = true
	c.mu.Unlock()

	c.wg.Wait()
}

func (c *Coordinator) stopIdleLocked() {
	c.idleSeq++
	if c.idle != nil {
		c.idle.Stop()
		c.idle = nil
	}
}

func (c *Coordinator) cancelRequestLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func (c *Coordinator) resetRequestLocked() {
	c.cancelRequestLocked()
	c.gen++
	c.loading = false
	c.suggestion = nil
	c.err = nil
}

// notifyUnlock releases the lock and reports the new state.
func (c *Coordinator) notifyUnlock() {
	fn := c.onChange
	var st State
	if fn != nil {
		st = c.stateLocked()
	}
	c.mu.Unlock()
	if fn != nil {
		fn(st)
	}
}

func (c *Coordinator) speak(text string) {
	if c.speaker == nil || !c.speaker.Enabled() {
		return
	}
	c.speaker.Speak(text)
}
