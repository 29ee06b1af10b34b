// Package synth renders piano tones by additive synthesis: a stack of ten
// partials with per-partial decay under a shared ADSR envelope. Voices are
// pooled and stolen when polyphony runs out.
package synth

import (
	"math"
	"sync/atomic"
)

const twoPi = math.Pi * 2

// harmonicFade scales how quickly the upper partials dim while a key is
// held. Higher partials carry a larger decay multiplier, so the tone
// darkens the way a struck string does.
const harmonicFade = 1.5

var harmonics = [...]struct {
	ratio     float64
	amplitude float64
	decay     float64
}{
	{1.0, 1.0, 1.0},
	{2.0, 0.7, 1.2},
	{3.0, 0.45, 1.5},
	{4.0, 0.3, 1.8},
	{5.0, 0.2, 2.2},
	{6.0, 0.12, 2.6},
	{7.0, 0.08, 3.0},
	{8.0, 0.05, 3.5},
	{9.0, 0.03, 4.0},
	{10.0, 0.02, 4.5},
}

type Params struct {
	Polyphony   int
	AttackSec   float64
	DecaySec    float64
	SustainLvl  float64
	ReleaseSec  float64
	MasterGain  float64
	VelocityAmp float64
}

func DefaultParams() Params {
	return Params{
		Polyphony:   32,
		AttackSec:   0.02,
		DecaySec:    0.1,
		SustainLvl:  0.6,
		ReleaseSec:  0.3,
		MasterGain:  0.5,
		VelocityAmp: 0.8,
	}
}

type envState int

const (
	envAttack envState = iota
	envDecay
	envSustain
	envRelease
	envOff
)

type voice struct {
	active     bool
	id         int
	key        int
	freq       float64
	velocity   float64
	inharm     float64
	pan        float64
	env        float64
	envState   envState
	releaseSec float64
	ageFrames  int
}

type Piano struct {
	sampleRate float64
	params     Params
	voices     []voice
	nextID     int
	masterGain uint64
}

func New(sampleRate int, params Params) *Piano {
	if params.Polyphony <= 0 {
		params.Polyphony = 32
	}
	params.AttackSec = clamp(params.AttackSec, 0.001, 4)
	params.DecaySec = clamp(params.DecaySec, 0.001, 4)
	params.SustainLvl = clamp(params.SustainLvl, 0, 1)
	params.ReleaseSec = clamp(params.ReleaseSec, 0.001, 8)
	return &Piano{
		sampleRate: float64(sampleRate),
		params:     params,
		voices:     make([]voice, params.Polyphony),
		masterGain: math.Float64bits(params.MasterGain),
	}
}

// NoteOn starts a voice for the given MIDI key and returns its id. Velocity
// is 0..1. Low keys sit left in the stereo field, high keys right.
func (p *Piano) NoteOn(key int, velocity float64) int {
	slot := p.stealVoice()
	id := p.nextID
	p.nextID++
	freq := midiToFreq(key)
	p.voices[slot] = voice{
		active:     true,
		id:         id,
		key:        key,
		freq:       freq,
		velocity:   clamp(velocity, 0, 1),
		inharm:     0.0001 * (freq / 440.0) * (freq / 440.0),
		pan:        keyPan(key),
		envState:   envAttack,
		releaseSec: p.params.ReleaseSec,
	}
	return id
}

// NoteOff sends the voice with the given id into its release phase.
func (p *Piano) NoteOff(id int) {
	for i := range p.voices {
		v := &p.voices[i]
		if v.active && v.id == id && v.envState != envRelease {
			v.envState = envRelease
		}
	}
}

// QuietAll fades every sounding voice out over fadeSec. Used when playback
// pauses or stops so keys never hang.
func (p *Piano) QuietAll(fadeSec float64) {
	if fadeSec < 0.005 {
		fadeSec = 0.005
	}
	for i := range p.voices {
		v := &p.voices[i]
		if v.active {
			v.envState = envRelease
			v.releaseSec = fadeSec
		}
	}
}

func (p *Piano) RenderFrame() (float32, float32) {
	var l, r float64
	for i := range p.voices {
		v := &p.voices[i]
		if !v.active {
			continue
		}
		p.advanceEnv(v)
		if v.envState == envOff {
			v.active = false
			continue
		}
		t := float64(v.ageFrames) / p.sampleRate
		var sig float64
		for _, h := range harmonics {
			// Stiff strings pull the upper partials slightly sharp.
			ratio := h.ratio * math.Sqrt(1.0+v.inharm*h.ratio*h.ratio)
			fade := math.Exp(-t * h.decay * harmonicFade)
			sig += h.amplitude * fade * math.Sin(twoPi*v.freq*ratio*t)
		}
		sig /= 2.5
		sig *= v.env * p.masterGainValue() * (0.2 + v.velocity*p.params.VelocityAmp)
		angle := ((v.pan + 64.0) / 128.0) * (math.Pi / 2.0)
		l += sig * math.Cos(angle)
		r += sig * math.Sin(angle)
		v.ageFrames++
	}
	return float32(clamp(l, -1, 1)), float32(clamp(r, -1, 1))
}

func (p *Piano) advanceEnv(v *voice) {
	switch v.envState {
	case envAttack:
		step := 1.0 / (p.params.AttackSec * p.sampleRate)
		v.env += step
		if v.env >= 1 {
			v.env = 1
			v.envState = envDecay
		}
	case envDecay:
		step := (1 - p.params.SustainLvl) / (p.params.DecaySec * p.sampleRate)
		v.env -= step
		if v.env <= p.params.SustainLvl {
			v.env = p.params.SustainLvl
			v.envState = envSustain
		}
	case envSustain:
	case envRelease:
		lvl := p.params.SustainLvl
		if lvl <= 0 {
			lvl = 1
		}
		step := lvl / (v.releaseSec * p.sampleRate)
		v.env -= step
		if v.env <= 0.0001 {
			v.env = 0
			v.envState = envOff
		}
	case envOff:
		v.env = 0
	}
}

func (p *Piano) stealVoice() int {
	for i := range p.voices {
		if !p.voices[i].active {
			return i
		}
	}
	quiet := 0
	minEnv := p.voices[0].env
	for i := 1; i < len(p.voices); i++ {
		if p.voices[i].env < minEnv {
			minEnv = p.voices[i].env
			quiet = i
		}
	}
	return quiet
}

func (p *Piano) ActiveVoiceCount() int {
	n := 0
	for i := range p.voices {
		if p.voices[i].active {
			n++
		}
	}
	return n
}

func (p *Piano) SetMasterGain(gain float64) {
	if gain < 0 {
		gain = 0
	}
	atomic.StoreUint64(&p.masterGain, math.Float64bits(gain))
}

func (p *Piano) masterGainValue() float64 {
	return math.Float64frombits(atomic.LoadUint64(&p.masterGain))
}

func midiToFreq(note int) float64 {
	return 440 * math.Pow(2, float64(note-69)/12)
}

// keyPan maps the 88-key range onto a -64..+64 stereo field, kept inside
// ±45 so no key sits on one speaker alone.
func keyPan(key int) float64 {
	return clamp((float64(key)-64.5)/43.5, -1, 1) * 45
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
