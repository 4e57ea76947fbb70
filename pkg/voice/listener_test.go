package voice

import (
	"errors"
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/chriscow/meetsl-go/pkg/ai/stt"
	"github.com/chriscow/meetsl-go/pkg/ai/stt/fake"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func newFakeSTT(phrases ...string) *fake.FakeSTT {
	provider := fake.NewFakeSTT(phrases...)
	provider.Interval = time.Millisecond
	return provider
}

func TestListener_FillsTranscript(t *testing.T) {
	is := is.New(t)

	tr := NewTranscript()
	l := NewListener(newFakeSTT("Good morning.", "Shall we begin?"), tr, NewSpeakingGate(),
		ListenerConfig{RestartDelay: time.Millisecond})
	defer l.Close()

	is.True(!l.Enabled())
	l.SetEnabled(true)
	is.True(l.Enabled())

	waitFor(t, "two segments", func() bool { return len(tr.Segments()) >= 2 })
	segs := tr.Segments()
	is.Equal(segs[0], Segment{Text: "Good morning.", Source: SourceOther})
	is.Equal(segs[1].Text, "Shall we begin?")

	l.SetEnabled(false)
	is.True(!l.Enabled())
	is.Equal(tr.Interim(), "")
	is.NoErr(l.Err())
}

func TestListener_RestartsEndedStream(t *testing.T) {
	provider := newFakeSTT("One phrase.")
	l := NewListener(provider, NewTranscript(), nil, ListenerConfig{RestartDelay: time.Millisecond})
	defer l.Close()

	l.SetEnabled(true)
	waitFor(t, "stream restart", func() bool { return provider.Streams() >= 3 })

	l.SetEnabled(false)
	n := provider.Streams()
	time.Sleep(20 * time.Millisecond)
	if provider.Streams() != n {
		t.Errorf("stream reopened after disable: %d -> %d", n, provider.Streams())
	}
}

func TestListener_AttributesOwnSpeech(t *testing.T) {
	gate := NewSpeakingGate()
	gate.SetSpeaking(true)

	tr := NewTranscript()
	l := NewListener(newFakeSTT("Nice to meet you."), tr, gate, ListenerConfig{})
	defer l.Close()

	l.SetEnabled(true)
	waitFor(t, "segment", func() bool { return len(tr.Segments()) > 0 })
	if got := tr.Segments()[0].Source; got != SourceUser {
		t.Errorf("Source = %q, want %q", got, SourceUser)
	}
}

func TestListener_Errors(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantEnabled bool
		wantErr     error
	}{
		{"not allowed disables", stt.ErrNotAllowed, false, stt.ErrNotAllowed},
		{"no speech is ignored", stt.ErrNoSpeech, true, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := newFakeSTT()
			provider.Err = tt.err
			l := NewListener(provider, NewTranscript(), nil, ListenerConfig{RestartDelay: time.Millisecond})
			defer l.Close()

			l.SetEnabled(true)
			waitFor(t, "stream", func() bool { return provider.Streams() >= 2 || !l.Enabled() })
			if l.Enabled() != tt.wantEnabled {
				t.Errorf("Enabled() = %v, want %v", l.Enabled(), tt.wantEnabled)
			}
			if !errors.Is(l.Err(), tt.wantErr) {
				t.Errorf("Err() = %v, want %v", l.Err(), tt.wantErr)
			}
		})
	}
}
