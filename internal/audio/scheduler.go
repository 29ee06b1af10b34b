package audio

import (
	"sort"
	"sync"
)

// Voicer is the synthesis engine the scheduler drives. internal/synth
// implements it; tests substitute counting fakes. The scheduler serializes
// every call through its own lock, including RenderFrame.
type Voicer interface {
	NoteOn(key int, velocity float64) int
	NoteOff(id int)
	RenderFrame() (float32, float32)
	QuietAll(fadeSec float64)
	ActiveVoiceCount() int
}

// NoteEvent is one key press to schedule, in score seconds.
type NoteEvent struct {
	Key      int
	Start    float64
	Duration float64
	Velocity float64
}

// ClickTime is one metronome click, in score seconds.
type ClickTime struct {
	At     float64
	Accent bool
}

type Options struct {
	VoiceLimit         int     // simultaneous scheduled notes (default 24)
	MinNoteDurationSec float64 // floor applied to scheduled durations (default 0.05)
	SafetyMarginSec    float64 // headroom between scheduling and first fire (default 0.02)
	FadeSec            float64 // fade when a batch is replaced or stopped (default 0.03)
}

type pendingNote struct {
	frame    int64
	offFrame int64
	key      int
	velocity float64
}

type pendingOff struct {
	frame int64
	voice int
}

type pendingClick struct {
	frame  int64
	accent bool
}

// Scheduler maps absolute score times onto sample offsets against its render
// cursor and fires them from inside Process. The cursor counts frames the
// device has pulled; it is the playback clock, and CurrentTime derives from
// it rather than from wall time.
type Scheduler struct {
	mu         sync.Mutex
	voicer     Voicer
	click      *clicker
	sampleRate float64
	opts       Options

	cursor     int64
	live       bool
	offset     float64
	tempoScale float64
	base       int64
	dropped    int

	notes  []pendingNote
	offs   []pendingOff
	clicks []pendingClick
}

func New(voicer Voicer, sampleRate int) *Scheduler {
	return NewWithOptions(voicer, sampleRate, Options{})
}

func NewWithOptions(voicer Voicer, sampleRate int, opts Options) *Scheduler {
	if opts.VoiceLimit <= 0 {
		opts.VoiceLimit = 24
	}
	if opts.MinNoteDurationSec <= 0 {
		opts.MinNoteDurationSec = 0.05
	}
	if opts.SafetyMarginSec <= 0 {
		opts.SafetyMarginSec = 0.02
	}
	if opts.FadeSec <= 0 {
		opts.FadeSec = 0.03
	}
	return &Scheduler{
		voicer:     voicer,
		click:      newClicker(sampleRate),
		sampleRate: float64(sampleRate),
		opts:       opts,
		tempoScale: 1,
	}
}

// StartBatch replaces the live batch: the previous one fades out and its
// pending entries are dropped. offset is the score time the batch starts
// from; tempoScale is the speed multiplier (2.0 plays score seconds twice as
// fast). Notes whose window fully elapsed before offset are skipped; a note
// already sounding at offset starts immediately with its remaining duration.
func (s *Scheduler) StartBatch(notes []NoteEvent, offset, tempoScale float64, clicks []ClickTime) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tempoScale <= 0 {
		tempoScale = 1
	}
	s.clearBatchLocked()
	s.voicer.QuietAll(s.opts.FadeSec)
	s.offset = offset
	s.tempoScale = tempoScale
	s.base = s.cursor + s.secToFrames(s.opts.SafetyMarginSec)
	s.live = true
	s.dropped = 0

	scheduled := make([]pendingNote, 0, len(notes))
	for _, n := range notes {
		if n.Start+n.Duration <= offset {
			continue
		}
		effStart := n.Start
		if effStart < offset {
			effStart = offset
		}
		remaining := n.Start + n.Duration - effStart
		if remaining < s.opts.MinNoteDurationSec {
			remaining = s.opts.MinNoteDurationSec
		}
		startF := s.base + s.secToFrames((effStart-offset)/tempoScale)
		scheduled = append(scheduled, pendingNote{
			frame:    startF,
			offFrame: startF + s.secToFrames(remaining/tempoScale),
			key:      n.Key,
			velocity: n.Velocity,
		})
	}
	sort.SliceStable(scheduled, func(i, j int) bool { return scheduled[i].frame < scheduled[j].frame })
	s.notes = s.sweepVoiceLimit(scheduled)

	for _, c := range clicks {
		if c.At < offset {
			continue
		}
		s.clicks = append(s.clicks, pendingClick{
			frame:  s.base + s.secToFrames((c.At-offset)/tempoScale),
			accent: c.Accent,
		})
	}
	sort.SliceStable(s.clicks, func(i, j int) bool { return s.clicks[i].frame < s.clicks[j].frame })
}

// sweepVoiceLimit walks the start-ordered schedule with a sorted list of
// in-flight end frames. A note arriving while the list is saturated is
// dropped silently rather than stealing a sounding one.
func (s *Scheduler) sweepVoiceLimit(scheduled []pendingNote) []pendingNote {
	kept := scheduled[:0]
	inFlight := make([]int64, 0, s.opts.VoiceLimit)
	for _, p := range scheduled {
		k := 0
		for k < len(inFlight) && inFlight[k] <= p.frame {
			k++
		}
		inFlight = inFlight[k:]
		if len(inFlight) >= s.opts.VoiceLimit {
			s.dropped++
			continue
		}
		i := sort.Search(len(inFlight), func(i int) bool { return inFlight[i] > p.offFrame })
		inFlight = append(inFlight, 0)
		copy(inFlight[i+1:], inFlight[i:])
		inFlight[i] = p.offFrame
		kept = append(kept, p)
	}
	return kept
}

// Stop fades the live batch out and pins CurrentTime at the stop point.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offset = s.currentTimeLocked()
	s.live = false
	s.clearBatchLocked()
	s.voicer.QuietAll(s.opts.FadeSec)
}

// PlayNow fires a single note immediately, outside any batch. Follow mode
// uses it to sound the key the learner just struck. durationSec is wall
// time; callers apply their own tempo scaling.
func (s *Scheduler) PlayNow(key int, velocity, durationSec float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if durationSec < s.opts.MinNoteDurationSec {
		durationSec = s.opts.MinNoteDurationSec
	}
	id := s.voicer.NoteOn(key, velocity)
	s.insertOff(pendingOff{frame: s.cursor + s.secToFrames(durationSec), voice: id})
}

// Process renders stereo frames into dst, firing pending note-ons, note-offs
// and clicks at their exact sample offsets.
func (s *Scheduler) Process(dst []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	frames := len(dst) / 2
	for f := 0; f < frames; f++ {
		for len(s.notes) > 0 && s.notes[0].frame <= s.cursor {
			p := s.notes[0]
			s.notes = s.notes[1:]
			id := s.voicer.NoteOn(p.key, p.velocity)
			s.insertOff(pendingOff{frame: p.offFrame, voice: id})
		}
		for len(s.offs) > 0 && s.offs[0].frame <= s.cursor {
			s.voicer.NoteOff(s.offs[0].voice)
			s.offs = s.offs[1:]
		}
		for len(s.clicks) > 0 && s.clicks[0].frame <= s.cursor {
			s.click.strike(s.clicks[0].accent)
			s.clicks = s.clicks[1:]
		}
		l, r := s.voicer.RenderFrame()
		c := s.click.renderFrame()
		dst[f*2] = clampSample(l + c)
		dst[f*2+1] = clampSample(r + c)
		s.cursor++
	}
}

// CurrentTime reports the score time the listener is hearing: the batch
// offset advanced by the frames rendered past base, scaled by tempo. With no
// live batch it returns the pinned offset.
func (s *Scheduler) CurrentTime() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentTimeLocked()
}

func (s *Scheduler) Live() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live
}

// DroppedNotes reports how many notes the last batch's voice-limit sweep
// refused.
func (s *Scheduler) DroppedNotes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

func (s *Scheduler) currentTimeLocked() float64 {
	if !s.live || s.cursor <= s.base {
		return s.offset
	}
	return s.offset + float64(s.cursor-s.base)/s.sampleRate*s.tempoScale
}

func (s *Scheduler) clearBatchLocked() {
	s.notes = nil
	s.offs = nil
	s.clicks = nil
}

// insertOff keeps offs sorted by frame; new entries usually land near the
// end so a backward scan beats a full sort.
func (s *Scheduler) insertOff(off pendingOff) {
	s.offs = append(s.offs, off)
	for i := len(s.offs) - 1; i > 0 && s.offs[i-1].frame > s.offs[i].frame; i-- {
		s.offs[i-1], s.offs[i] = s.offs[i], s.offs[i-1]
	}
}

func (s *Scheduler) secToFrames(sec float64) int64 {
	return int64(sec*s.sampleRate + 0.5)
}

func clampSample(v float32) float32 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
