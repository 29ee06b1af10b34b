package audio

import (
	"math"
	"testing"
)

func TestClickerPitchesAccents(t *testing.T) {
	c := newClicker(schedRate)
	c.strike(true)
	c.strike(false)
	if len(c.voices) != 2 {
		t.Fatalf("got %d voices, want 2", len(c.voices))
	}
	wantAccent := twoPi * clickAccentHz / schedRate
	wantBeat := twoPi * clickBeatHz / schedRate
	if math.Abs(c.voices[0].step-wantAccent) > 1e-12 {
		t.Fatalf("accent step %v, want %v", c.voices[0].step, wantAccent)
	}
	if math.Abs(c.voices[1].step-wantBeat) > 1e-12 {
		t.Fatalf("beat step %v, want %v", c.voices[1].step, wantBeat)
	}
}

func TestClickerDecaysToSilence(t *testing.T) {
	c := newClicker(schedRate)
	c.strike(false)
	heard := false
	for i := 0; i < 35; i++ {
		if c.renderFrame() != 0 {
			heard = true
		}
	}
	if !heard {
		t.Fatal("click produced no signal")
	}
	if got := c.renderFrame(); got != 0 {
		t.Fatalf("click still sounding after its window: %v", got)
	}
}

func TestClickerReusesSpentSlots(t *testing.T) {
	c := newClicker(schedRate)
	c.strike(false)
	for i := 0; i < 40; i++ {
		c.renderFrame()
	}
	c.strike(true)
	if len(c.voices) != 1 {
		t.Fatalf("got %d voices, want the spent slot reused", len(c.voices))
	}
}
