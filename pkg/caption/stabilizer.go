package caption

import (
	"log/slog"
	"sync"
	"time"
)

// CommittedToken is a token accepted into the caption sequence.
type CommittedToken struct {
	Token      string  `json:"token"`
	Confidence float64 `json:"confidence"`
	TS         int64   `json:"ts"`
}

// Snapshot is a point-in-time copy of the stabilizer's observable state.
type Snapshot struct {
	Hypothesis *Prediction      `json:"hypothesis,omitempty"`
	Committed  []CommittedToken `json:"committed"`
	WindowLen  int              `json:"window_len"`
}

// Option configures a Stabilizer.
type Option func(*Stabilizer)

// WithClock replaces the wall clock used for cooldown and commit timestamps.
// now must return milliseconds.
func WithClock(now func() int64) Option {
	return func(s *Stabilizer) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Stabilizer) { s.logger = logger }
}

// Stabilizer owns the prediction window, the live hypothesis and the committed
// sequence for one session. All methods are safe for concurrent use; commits
// are delivered to the callback in the order predictions were added.
type Stabilizer struct {
	cfg    CommitConfig
	now    func() int64
	logger *slog.Logger

	mu           sync.Mutex
	window       []Prediction
	hypothesis   *Prediction
	committed    []CommittedToken
	lastCommitTs int64
	lastToken    string
	onCommit     func(CommittedToken)

	// serializes callback delivery so commits are observed in order even
	// when AddPrediction is called from several goroutines
	deliver sync.Mutex
}

// NewStabilizer creates a Stabilizer with the given configuration.
func NewStabilizer(cfg CommitConfig, opts ...Option) *Stabilizer {
	s := &Stabilizer{
		cfg:    cfg,
		now:    func() int64 { return time.Now().UnixMilli() },
		logger: slog.Default(),
		window: make([]Prediction, 0, cfg.WindowSize),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the stabilizer configuration.
func (s *Stabilizer) Config() CommitConfig {
	return s.cfg
}

// OnCommit registers the callback invoked for every new committed token.
func (s *Stabilizer) OnCommit(fn func(CommittedToken)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onCommit = fn
}

// AddPrediction feeds one prediction through the window and commit gates. It
// returns the committed token when p caused a commit.
func (s *Stabilizer) AddPrediction(p Prediction) (CommittedToken, bool) {
	s.deliver.Lock()
	defer s.deliver.Unlock()

	s.mu.Lock()
	hyp := p
	s.hypothesis = &hyp

	if len(s.window) >= s.cfg.WindowSize {
		copy(s.window, s.window[1:])
		s.window = s.window[:len(s.window)-1]
	}
	s.window = append(s.window, p)

	result, ok := Evaluate(s.window, s.lastCommitTs, s.now(), s.cfg)
	if !ok || result.Token == s.lastToken {
		s.mu.Unlock()
		return CommittedToken{}, false
	}

	s.lastCommitTs = result.TS
	s.lastToken = result.Token
	s.window = s.window[:0]
	s.hypothesis = nil

	tok := CommittedToken{
		Token:      result.Token,
		Confidence: result.AvgConfidence,
		TS:         result.TS,
	}
	s.committed = append(s.committed, tok)
	fn := s.onCommit
	s.mu.Unlock()

	s.logger.Debug("Token committed",
		slog.String("token", tok.Token),
		slog.Float64("confidence", tok.Confidence))

	if fn != nil {
		fn(tok)
	}
	return tok, true
}

// Hypothesis returns the most recent prediction since the last commit.
func (s *Stabilizer) Hypothesis() (Prediction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hypothesis == nil {
		return Prediction{}, false
	}
	return *s.hypothesis, true
}

// Committed returns a copy of the committed sequence.
func (s *Stabilizer) Committed() []CommittedToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]CommittedToken, len(s.committed))
	copy(out, s.committed)
	return out
}

// Clear resets the committed sequence, the window and the hypothesis. The
// cooldown clock is left alone.
func (s *Stabilizer) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.committed = nil
	s.lastToken = ""
	s.window = s.window[:0]
	s.hypothesis = nil
}

// Snapshot returns the current observable state.
func (s *Stabilizer) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		Committed: make([]CommittedToken, len(s.committed)),
		WindowLen: len(s.window),
	}
	copy(snap.Committed, s.committed)
	if s.hypothesis != nil {
		h := *s.hypothesis
		snap.Hypothesis = &h
	}
	return snap
}
