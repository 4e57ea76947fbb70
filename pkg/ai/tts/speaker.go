package tts

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
)

// Speaker is the speech output capability used by the caption pipeline.
type Speaker interface {
	// Enabled reports whether speech output is switched on.
	Enabled() bool

	// SetEnabled switches speech output on or off. Switching off interrupts
	// any utterance in progress.
	SetEnabled(enabled bool)

	// Speak starts speaking text and returns immediately. An utterance already
	// in progress is interrupted. Speak is a no-op when disabled.
	Speak(text string)
}

// ActivityReporter is told when speech starts and stops playing.
type ActivityReporter interface {
	SetSpeaking(speaking bool)
}

// Utterance is a synthesized line ready for playback.
type Utterance struct {
	Text  string
	Audio Audio
}

// Sink plays (or stores) synthesized utterances. Play should return when
// playback finishes or ctx is canceled.
type Sink interface {
	Play(ctx context.Context, u Utterance) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, u Utterance) error

// Play calls f(ctx, u).
func (f SinkFunc) Play(ctx context.Context, u Utterance) error { return f(ctx, u) }

// PlayerConfig configures a Player.
type PlayerConfig struct {
	Voice    string
	Speed    float32
	Activity ActivityReporter
	Logger   *slog.Logger
}

// Player is a Speaker backed by a TTS provider and a Sink. Only one utterance
// plays at a time; a newer Speak cancels the older one.
type Player struct {
	provider TTS
	sink     Sink
	cfg      PlayerConfig
	logger   *slog.Logger

	enabled atomic.Bool

	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPlayer creates an enabled Player.
func NewPlayer(provider TTS, sink Sink, cfg PlayerConfig) *Player {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	p := &Player{
		provider: provider,
		sink:     sink,
		cfg:      cfg,
		logger:   logger,
	}
	p.enabled.Store(true)
	return p
}

// Enabled reports whether speech output is on.
func (p *Player) Enabled() bool {
	return p.enabled.Load()
}

// SetEnabled switches speech output on or off.
func (p *Player) SetEnabled(enabled bool) {
	p.enabled.Store(enabled)
	if !enabled {
		p.interrupt()
	}
}

// Speak synthesizes and plays text in the background.
func (p *Player) Speak(text string) {
	if !p.Enabled() || text == "" {
		return
	}

	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	p.seq++
	seq := p.seq
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()
		defer cancel()
		p.play(ctx, seq, text)
	}()
}

func (p *Player) play(ctx context.Context, seq uint64, text string) {
	audio, err := p.provider.Synthesize(ctx, SynthesizeRequest{
		Text:  text,
		Voice: p.cfg.Voice,
		Speed: p.cfg.Speed,
	})
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Warn("Speech synthesis failed", slog.String("error", err.Error()))
		}
		return
	}

	p.report(seq, true)
	defer p.report(seq, false)

	if err := p.sink.Play(ctx, Utterance{Text: text, Audio: audio}); err != nil && ctx.Err() == nil {
		p.logger.Warn("Speech playback failed", slog.String("error", err.Error()))
	}
}

// report forwards activity only for the current utterance so an interrupted
// one cannot clear the speaking flag of its successor.
func (p *Player) report(seq uint64, speaking bool) {
	if p.cfg.Activity == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if seq == p.seq {
		p.cfg.Activity.SetSpeaking(speaking)
	}
}

func (p *Player) interrupt() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.seq++
	if p.cfg.Activity != nil {
		p.cfg.Activity.SetSpeaking(false)
	}
}

// Close interrupts playback and waits for background work to finish.
func (p *Player) Close() {
	p.interrupt()
	p.wg.Wait()
}

// DirSink writes each utterance to a numbered file in a directory.
type DirSink struct {
	Dir string
	n   atomic.Uint64
}

// Play writes u to Dir.
func (s *DirSink) Play(ctx context.Context, u Utterance) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create speech dir: %w", err)
	}
	ext := u.Audio.Format
	if ext == "" {
		ext = "bin"
	}
	name := fmt.Sprintf("utterance-%d-%04d.%s", time.Now().UnixMilli(), s.n.Add(1), ext)
	if err := os.WriteFile(filepath.Join(s.Dir, name), u.Audio.Data, 0o644); err != nil {
		return fmt.Errorf("failed to write utterance: %w", err)
	}
	return ctx.Err()
}
