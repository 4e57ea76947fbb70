package caption

import (
	"testing"

	"github.com/matryer/is"
)

// stepClock returns start, start+step, start+2*step, ... on successive calls.
func stepClock(start, step int64) func() int64 {
	now := start - step
	return func() int64 {
		now += step
		return now
	}
}

func TestStabilizer_HelloScenario(t *testing.T) {
	is := is.New(t)

	s := NewStabilizer(DefaultCommitConfig, WithClock(stepClock(10_000, 100)))

	var commits []CommittedToken
	s.OnCommit(func(tok CommittedToken) { commits = append(commits, tok) })

	for i := 0; i < 5; i++ {
		_, ok := s.AddPrediction(Prediction{Token: "HELLO", Confidence: 0.9, TS: int64(i)})
		is.True(!ok) // not enough evidence yet
	}

	tok, ok := s.AddPrediction(Prediction{Token: "HELLO", Confidence: 0.9, TS: 5})
	is.True(ok)
	is.Equal(tok.Token, "HELLO")
	is.Equal(tok.Confidence, 0.9)
	is.Equal(len(commits), 1)

	_, hasHyp := s.Hypothesis()
	is.True(!hasHyp) // hypothesis cleared on commit
	is.Equal(s.Snapshot().WindowLen, 0)

	_, ok = s.AddPrediction(Prediction{Token: "HELLO", Confidence: 0.9, TS: 6})
	is.True(!ok) // window restarted from one entry
	is.Equal(len(s.Committed()), 1)
}

func TestStabilizer_SameTokenSuppressed(t *testing.T) {
	is := is.New(t)

	s := NewStabilizer(DefaultCommitConfig, WithClock(stepClock(10_000, 1_000)))
	for i := 0; i < 6; i++ {
		s.AddPrediction(Prediction{Token: "YES", Confidence: 0.9})
	}
	is.Equal(len(s.Committed()), 1)

	for i := 0; i < 6; i++ {
		_, ok := s.AddPrediction(Prediction{Token: "YES", Confidence: 0.9})
		is.True(!ok)
	}
	is.Equal(len(s.Committed()), 1)      // duplicate not appended
	is.Equal(s.Snapshot().WindowLen, 6) // and the window kept its evidence

	var next CommittedToken
	var committed bool
	for i := 0; i < 10 && !committed; i++ {
		next, committed = s.AddPrediction(Prediction{Token: "NO", Confidence: 0.9})
	}
	is.True(committed)
	is.Equal(next.Token, "NO")
	is.Equal(len(s.Committed()), 2)
}

func TestStabilizer_WindowBounded(t *testing.T) {
	is := is.New(t)

	cfg := DefaultCommitConfig
	cfg.ConfidenceThreshold = 1 // nothing commits
	s := NewStabilizer(cfg, WithClock(stepClock(10_000, 10)))

	for i := 0; i < 25; i++ {
		s.AddPrediction(Prediction{Token: "A", Confidence: 0.5, TS: int64(i)})
		is.True(s.Snapshot().WindowLen <= cfg.WindowSize)
	}

	hyp, ok := s.Hypothesis()
	is.True(ok)
	is.Equal(hyp.TS, int64(24)) // hypothesis always tracks the latest prediction
}

func TestStabilizer_ClearKeepsCooldown(t *testing.T) {
	is := is.New(t)

	now := int64(10_000)
	s := NewStabilizer(DefaultCommitConfig, WithClock(func() int64 { return now }))
	for i := 0; i < 6; i++ {
		s.AddPrediction(Prediction{Token: "A", Confidence: 0.9})
	}
	is.Equal(len(s.Committed()), 1)

	s.Clear()
	is.Equal(len(s.Committed()), 0)
	_, ok := s.Hypothesis()
	is.True(!ok)

	// Same token is allowed again after a clear, but the cooldown still runs
	// from the last commit.
	for i := 0; i < 6; i++ {
		_, ok = s.AddPrediction(Prediction{Token: "A", Confidence: 0.9})
		is.True(!ok)
	}

	now += DefaultCommitConfig.CooldownMs
	_, ok = s.AddPrediction(Prediction{Token: "A", Confidence: 0.9})
	is.True(ok)
}

func TestStabilizer_CommittedIsCopy(t *testing.T) {
	is := is.New(t)

	s := NewStabilizer(DefaultCommitConfig, WithClock(stepClock(10_000, 100)))
	for i := 0; i < 6; i++ {
		s.AddPrediction(Prediction{Token: "A", Confidence: 0.9})
	}

	got := s.Committed()
	got[0].Token = "mutated"
	is.Equal(s.Committed()[0].Token, "A")
}
