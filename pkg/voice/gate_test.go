package voice

import (
	"sync"
	"testing"
	"time"

	"github.com/chriscow/meetsl-go/pkg/ai/tts"
)

var _ tts.ActivityReporter = (*SpeakingGate)(nil)

func TestSpeakingGate(t *testing.T) {
	now := time.Unix(1000, 0)
	gate := NewSpeakingGate()
	gate.now = func() time.Time { return now }

	if gate.Speaking() || gate.SpokeRecently(0) {
		t.Error("new gate should be silent")
	}

	gate.SetSpeaking(true)
	if !gate.Speaking() || !gate.SpokeRecently(0) {
		t.Error("gate should report speaking while output plays")
	}

	gate.SetSpeaking(false)
	if gate.Speaking() {
		t.Error("gate should not be speaking after output ends")
	}

	now = now.Add(1500 * time.Millisecond)
	if !gate.SpokeRecently(0) {
		t.Error("1.5s after output ends should still count as recent")
	}
	if gate.SpokeRecently(time.Second) {
		t.Error("custom grace of 1s should have elapsed")
	}

	now = now.Add(time.Second)
	if gate.SpokeRecently(0) {
		t.Error("2.5s after output ends should not count as recent")
	}
}

func TestSpeakingGate_RepeatedStop(t *testing.T) {
	now := time.Unix(1000, 0)
	gate := NewSpeakingGate()
	gate.now = func() time.Time { return now }

	// stopping while already silent does not move the end time
	gate.SetSpeaking(false)
	if gate.SpokeRecently(0) {
		t.Error("stop without start should not mark recent speech")
	}
}

func TestSpeakingGateConcurrency(t *testing.T) {
	gate := NewSpeakingGate()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(speaking bool) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				gate.SetSpeaking(speaking)
			}
		}(i%2 == 0)
	}
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = gate.SpokeRecently(DefaultGrace)
			}
		}()
	}
	wg.Wait()
}
