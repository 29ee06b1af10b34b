package audio

import "math"

const twoPi = 2 * math.Pi

// Metronome click voicing: short decaying sine bursts, pitched higher on
// the downbeat.
const (
	clickAccentHz = 1200.0
	clickBeatHz   = 800.0
	clickSec      = 0.03
	clickGain     = 0.25
)

type clickVoice struct {
	phase float64
	step  float64
	left  int
	total int
}

type clicker struct {
	sampleRate float64
	voices     []clickVoice
}

func newClicker(sampleRate int) *clicker {
	return &clicker{sampleRate: float64(sampleRate)}
}

func (c *clicker) strike(accent bool) {
	freq := clickBeatHz
	if accent {
		freq = clickAccentHz
	}
	total := int(clickSec * c.sampleRate)
	if total < 1 {
		total = 1
	}
	v := clickVoice{step: twoPi * freq / c.sampleRate, left: total, total: total}
	for i := range c.voices {
		if c.voices[i].left <= 0 {
			c.voices[i] = v
			return
		}
	}
	c.voices = append(c.voices, v)
}

func (c *clicker) renderFrame() float32 {
	var out float64
	for i := range c.voices {
		v := &c.voices[i]
		if v.left <= 0 {
			continue
		}
		out += math.Sin(v.phase) * (float64(v.left) / float64(v.total)) * clickGain
		v.phase += v.step
		v.left--
	}
	return float32(out)
}
