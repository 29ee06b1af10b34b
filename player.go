// Package clairkeys synchronizes a falling-notes piano visualization with
// audio playback. A Player loads a score, advances a transport clock in
// listen mode, matches live key presses in follow mode, and walks
// hand-position groups in practice mode, reporting everything through a
// typed event bus.
package clairkeys

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	intaudio "github.com/clairkeys/clairkeys-go/internal/audio"
	"github.com/clairkeys/clairkeys-go/internal/clock"
	"github.com/clairkeys/clairkeys-go/score"
)

// Mode selects how playback advances.
type Mode string

const (
	// ModeListen free-runs the transport against the audio clock.
	ModeListen Mode = "listen"
	// ModeFollow waits for the user; ProcessUserInput advances the time.
	ModeFollow Mode = "follow"
	// ModePractice steps through note groups via NextPracticeStep.
	ModePractice Mode = "practice"
)

const (
	minSpeed = 0.25
	maxSpeed = 4.0
)

func clampSpeed(v float64) float64 {
	if v < minSpeed {
		return minSpeed
	}
	if v > maxSpeed {
		return maxSpeed
	}
	return v
}

// PlaybackState is a point-in-time snapshot of the transport.
type PlaybackState struct {
	Playing       bool
	Time          float64
	Speed         float64
	Mode          Mode
	ActivePitches []string
	AudioReady    bool
}

// LoopSection is a half-open [Start, End) window the transport repeats.
type LoopSection struct {
	Start float64
	End   float64
}

type PlayerOption func(*playerConfig)

type playerConfig struct {
	cfg     Config
	logger  *slog.Logger
	clk     clock.Clock
	ticker  clock.Ticker
	audio   audioPort
	noAudio bool
}

func defaultPlayerConfig() playerConfig {
	return playerConfig{cfg: DefaultConfig(), logger: slog.Default()}
}

// WithConfig overrides the default knobs. Zero fields keep their defaults.
func WithConfig(cfg Config) PlayerOption {
	return func(pc *playerConfig) {
		pc.cfg = cfg.withDefaults()
	}
}

func WithLogger(logger *slog.Logger) PlayerOption {
	return func(pc *playerConfig) {
		pc.logger = logger
	}
}

// WithoutAudio runs the engine silent: no device is opened and the
// transport clock comes from the wall anchor alone.
func WithoutAudio() PlayerOption {
	return func(pc *playerConfig) {
		pc.noAudio = true
	}
}

func withClock(c clock.Clock) PlayerOption {
	return func(pc *playerConfig) {
		pc.clk = c
	}
}

func withTicker(t clock.Ticker) PlayerOption {
	return func(pc *playerConfig) {
		pc.ticker = t
	}
}

func withAudioPort(a audioPort) PlayerOption {
	return func(pc *playerConfig) {
		pc.audio = a
	}
}

// Player drives synchronized playback of one score at a time. All methods
// are safe for concurrent use; events are emitted outside the internal lock
// so handlers may call back into the Player.
type Player struct {
	mu     sync.Mutex
	logger *slog.Logger
	cfg    Config
	clk    clock.Clock
	ticker clock.Ticker
	audio  audioPort
	bus    *eventBus

	score      *score.Score
	noteEvents []intaudio.NoteEvent
	clicks     []intaudio.ClickTime

	mode     Mode
	playing  bool
	disposed bool
	muted    bool
	speed    float64
	cur      float64

	// anchorTime/anchorWall map wall time onto score time while playing;
	// the audio clock overrides them whenever it is live.
	anchorTime float64
	anchorWall float64

	active map[string]struct{}
	loop   *LoopSection

	practice *practiceSession
}

func NewPlayer(opts ...PlayerOption) (*Player, error) {
	pc := defaultPlayerConfig()
	for _, opt := range opts {
		opt(&pc)
	}
	pc.cfg = pc.cfg.withDefaults()
	if err := pc.cfg.validate(); err != nil {
		return nil, fmt.Errorf("player config: %w", err)
	}
	if pc.clk == nil {
		pc.clk = clock.NewSystem()
	}
	if pc.ticker == nil {
		pc.ticker = &clock.IntervalTicker{}
	}
	p := &Player{
		logger: pc.logger,
		cfg:    pc.cfg,
		clk:    pc.clk,
		ticker: pc.ticker,
		bus:    newEventBus(pc.logger),
		mode:   ModeListen,
		speed:  1.0,
		active: make(map[string]struct{}),
	}
	switch {
	case pc.audio != nil:
		p.audio = pc.audio
	case pc.noAudio:
		p.audio = silentAudio{}
	default:
		port, err := newSystemAudio(pc.cfg, pc.logger)
		if err != nil {
			pc.logger.Warn("audio unavailable, running silent", "error", err)
			p.audio = silentAudio{}
		} else {
			p.audio = port
		}
	}
	return p, nil
}

// LoadScore validates s and swaps it in. Playback pauses, the time rewinds
// to zero, the loop section clears, and any practice session restarts
// against the new note list. Validation warnings are logged, not fatal.
func (p *Player) LoadScore(s *score.Score) error {
	warnings, err := score.Validate(s)
	if err != nil {
		return fmt.Errorf("load score: %w", err)
	}
	events, err := noteEventsFor(s)
	if err != nil {
		return fmt.Errorf("load score: %w", err)
	}
	p.mu.Lock()
	if p.disposed {
		p.mu.Unlock()
		return errors.New("load score: player disposed")
	}
	evs := p.pauseLocked()
	evs = append(evs, p.stopActiveLocked()...)
	p.score = s
	p.noteEvents = events
	p.clicks = nil
	if p.cfg.Metronome {
		p.clicks = clickTrack(s)
	}
	p.cur = 0
	p.loop = nil
	p.practice = nil
	if p.mode == ModePractice {
		p.practice = newPracticeSession(s, p.cfg.StepEpsilonSec)
	}
	evs = append(evs, Event{Type: EventTimeUpdate, Time: 0})
	p.mu.Unlock()
	for _, w := range warnings {
		p.logger.Warn("score warning", "issue", w.String())
	}
	p.logger.Debug("score loaded", "title", s.Title, "notes", len(s.Notes), "duration", s.Duration)
	p.emitAll(evs)
	return nil
}

// noteEventsFor pre-parses pitch names into scheduler events. Validate has
// already guaranteed the names parse, so errors here mean the score was
// mutated after validation.
func noteEventsFor(s *score.Score) ([]intaudio.NoteEvent, error) {
	out := make([]intaudio.NoteEvent, 0, len(s.Notes))
	for _, n := range s.Notes {
		key, err := score.ParsePitch(n.Pitch)
		if err != nil {
			return nil, fmt.Errorf("note %q: %w", n.Pitch, err)
		}
		out = append(out, intaudio.NoteEvent{
			Key:      key,
			Start:    n.Start,
			Duration: n.Duration,
			Velocity: n.Velocity,
		})
	}
	return out, nil
}

// clickTrack lays a metronome click on every beat, accenting bar starts.
func clickTrack(s *score.Score) []intaudio.ClickTime {
	beat := s.BeatDuration()
	if beat <= 0 {
		return nil
	}
	per := s.BeatsPerBar()
	if per <= 0 {
		per = 4
	}
	var out []intaudio.ClickTime
	for i := 0; ; i++ {
		at := float64(i) * beat
		if at >= s.Duration {
			break
		}
		out = append(out, intaudio.ClickTime{At: at, Accent: i%per == 0})
	}
	return out
}

// Play starts free-running playback. It is a no-op with no score loaded,
// while already playing, after Dispose, and in practice mode (practice
// advances only through NextPracticeStep). Playing a score that already
// reached its end restarts from zero.
func (p *Player) Play() {
	p.mu.Lock()
	evs := p.playLocked()
	p.mu.Unlock()
	p.emitAll(evs)
}

func (p *Player) playLocked() []Event {
	if p.disposed || p.score == nil || p.playing || p.mode == ModePractice {
		return nil
	}
	if p.cur >= p.score.Duration {
		p.cur = 0
	}
	p.playing = true
	p.anchorTime = p.cur
	p.anchorWall = p.clk.Now()
	if p.mode == ModeListen {
		p.scheduleAudioLocked(p.cur)
	}
	p.ticker.Start(time.Duration(p.cfg.UpdateIntervalMs)*time.Millisecond, p.tick)
	return []Event{p.playStateEventLocked()}
}

// Pause halts the transport where it is. Active pitches are force-stopped
// so the visualization never holds stale notes.
func (p *Player) Pause() {
	p.mu.Lock()
	evs := p.pauseLocked()
	p.mu.Unlock()
	p.emitAll(evs)
}

func (p *Player) pauseLocked() []Event {
	if p.disposed || !p.playing {
		return nil
	}
	p.cur = p.currentTimeLocked()
	p.playing = false
	p.ticker.Stop()
	p.audio.stopAudio()
	evs := p.stopActiveLocked()
	return append(evs, p.playStateEventLocked())
}

// Stop pauses and rewinds to zero.
func (p *Player) Stop() {
	p.mu.Lock()
	if p.disposed {
		p.mu.Unlock()
		return
	}
	evs := p.pauseLocked()
	evs = append(evs, p.stopActiveLocked()...)
	p.cur = 0
	evs = append(evs, Event{Type: EventTimeUpdate, Time: 0})
	p.mu.Unlock()
	p.emitAll(evs)
}

// SeekTo jumps to t, clamped into [0, duration], preserving the play state.
// The active pitch set refreshes immediately even while paused.
func (p *Player) SeekTo(t float64) {
	p.mu.Lock()
	evs := p.seekLocked(t)
	p.mu.Unlock()
	p.emitAll(evs)
}

func (p *Player) seekLocked(t float64) []Event {
	if p.disposed || p.score == nil {
		return nil
	}
	if t < 0 {
		t = 0
	}
	if t > p.score.Duration {
		t = p.score.Duration
	}
	p.cur = t
	if p.playing {
		p.anchorTime = t
		p.anchorWall = p.clk.Now()
		if p.mode == ModeListen {
			p.scheduleAudioLocked(t)
		}
	}
	evs := p.refreshActiveLocked(t)
	return append(evs, Event{Type: EventTimeUpdate, Time: t})
}

// SetSpeed clamps v into 0.25..4.0 and applies it without moving the
// transport time. While playing, audio is rescheduled at the new rate.
func (p *Player) SetSpeed(v float64) {
	p.mu.Lock()
	evs := p.setSpeedLocked(v)
	p.mu.Unlock()
	p.emitAll(evs)
}

func (p *Player) setSpeedLocked(v float64) []Event {
	if p.disposed {
		return nil
	}
	v = clampSpeed(v)
	if p.playing {
		// Re-anchor at the old speed first so the time stays continuous.
		p.cur = p.currentTimeLocked()
		p.anchorTime = p.cur
		p.anchorWall = p.clk.Now()
	}
	p.speed = v
	if p.playing && p.mode == ModeListen {
		p.scheduleAudioLocked(p.cur)
	}
	return []Event{{Type: EventSpeedChange, Time: p.cur, Speed: v}}
}

// SetMode switches the playback mode. Any running playback pauses first;
// entering practice builds the step list for the loaded score, and leaving
// practice discards the session.
func (p *Player) SetMode(m Mode) {
	p.mu.Lock()
	evs := p.setModeLocked(m)
	p.mu.Unlock()
	p.emitAll(evs)
}

func (p *Player) setModeLocked(m Mode) []Event {
	if p.disposed || m == p.mode {
		return nil
	}
	switch m {
	case ModeListen, ModeFollow, ModePractice:
	default:
		return nil
	}
	evs := p.pauseLocked()
	if p.mode == ModePractice {
		p.practice = nil
	}
	p.mode = m
	if m == ModePractice && p.score != nil {
		p.practice = newPracticeSession(p.score, p.cfg.StepEpsilonSec)
	}
	return evs
}

// ProcessUserInput reports whether pitch matches an expected note within
// the follow tolerance of the current time. A match sounds the note at its
// scored velocity, advances the time to the next note start strictly after
// the matched one, and emits noteStart plus timeUpdate. Enharmonic
// spellings match by MIDI number. Outside follow mode, or on a miss,
// nothing changes.
func (p *Player) ProcessUserInput(pitch string) bool {
	p.mu.Lock()
	ok, evs := p.userInputLocked(pitch)
	p.mu.Unlock()
	p.emitAll(evs)
	return ok
}

func (p *Player) userInputLocked(pitch string) (bool, []Event) {
	if p.disposed || p.score == nil || p.mode != ModeFollow {
		return false, nil
	}
	key, err := score.ParsePitch(pitch)
	if err != nil {
		return false, nil
	}
	tol := p.cfg.FollowToleranceSec
	var hit *score.Note
	for i := range p.score.Notes {
		n := &p.score.Notes[i]
		if n.Start < p.cur-tol || n.Start > p.cur+tol {
			continue
		}
		nk, err := score.ParsePitch(n.Pitch)
		if err != nil {
			continue
		}
		if nk == key {
			hit = n
			break
		}
	}
	if hit == nil {
		return false, nil
	}
	p.audio.playNow(key, hit.Velocity, hit.Duration/p.speed)

	// Advance to the earliest start strictly after the matched note; with
	// none left the time stays put.
	next := math.Inf(1)
	for i := range p.score.Notes {
		if s := p.score.Notes[i].Start; s > hit.Start && s < next {
			next = s
		}
	}
	if !math.IsInf(next, 1) {
		p.cur = next
	}

	var evs []Event
	if _, already := p.active[hit.Pitch]; !already {
		p.active[hit.Pitch] = struct{}{}
		note := *hit
		evs = append(evs, Event{Type: EventNoteStart, Time: hit.Start, Pitch: note.Pitch, Note: &note})
	}
	evs = append(evs, p.refreshActiveLocked(p.cur)...)
	evs = append(evs, Event{Type: EventTimeUpdate, Time: p.cur})
	return true, evs
}

// SetLoopSection repeats [start, end) in listen mode. The window must sit
// inside the loaded score.
func (p *Player) SetLoopSection(start, end float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.disposed {
		return errors.New("loop: player disposed")
	}
	if p.score == nil {
		return errors.New("loop: no score loaded")
	}
	if start < 0 || end <= start || end > p.score.Duration {
		return fmt.Errorf("loop %g..%g outside score of %gs", start, end, p.score.Duration)
	}
	p.loop = &LoopSection{Start: start, End: end}
	return nil
}

func (p *Player) ClearLoopSection() {
	p.mu.Lock()
	p.loop = nil
	p.mu.Unlock()
}

// LoopSection returns the active loop window, if any.
func (p *Player) LoopSection() (LoopSection, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.loop == nil {
		return LoopSection{}, false
	}
	return *p.loop, true
}

// Dispose tears the player down: playback halts, the audio device closes,
// and all subscriptions drop. Every call after the first is a no-op, and a
// disposed player ignores all further commands.
func (p *Player) Dispose() {
	p.mu.Lock()
	if p.disposed {
		p.mu.Unlock()
		return
	}
	p.disposed = true
	p.playing = false
	p.cur = 0
	p.ticker.Stop()
	p.score = nil
	p.noteEvents = nil
	p.clicks = nil
	p.loop = nil
	p.practice = nil
	p.active = make(map[string]struct{})
	audio := p.audio
	p.audio = silentAudio{}
	p.mu.Unlock()
	audio.stopAudio()
	audio.close()
	p.bus.reset()
}

// tick runs on the ticker goroutine at the configured update interval.
func (p *Player) tick() {
	p.mu.Lock()
	evs := p.tickLocked()
	p.mu.Unlock()
	p.emitAll(evs)
}

func (p *Player) tickLocked() []Event {
	if p.disposed || !p.playing || p.score == nil || p.mode != ModeListen {
		return nil
	}
	t := p.currentTimeLocked()

	if p.loop != nil && t >= p.loop.End {
		t = p.loop.Start
		p.cur = t
		p.anchorTime = t
		p.anchorWall = p.clk.Now()
		p.scheduleAudioLocked(t)
		evs := p.refreshActiveLocked(t)
		return append(evs, Event{Type: EventTimeUpdate, Time: t})
	}

	if t >= p.score.Duration {
		p.cur = p.score.Duration
		p.playing = false
		p.ticker.Stop()
		p.audio.stopAudio()
		evs := p.stopActiveLocked()
		evs = append(evs, p.playStateEventLocked())
		return append(evs, Event{Type: EventTimeUpdate, Time: p.cur})
	}

	p.cur = t
	evs := p.refreshActiveLocked(t)
	return append(evs, Event{Type: EventTimeUpdate, Time: t})
}

// currentTimeLocked derives the transport time. While audio is live its
// clock is authoritative; the wall anchor re-syncs whenever the two drift
// apart by more than one lookahead window. Outside listen mode the time
// only moves through explicit commands.
func (p *Player) currentTimeLocked() float64 {
	if !p.playing || p.mode != ModeListen {
		return p.cur
	}
	wall := p.anchorTime + (p.clk.Now()-p.anchorWall)*p.speed
	if at, live := p.audio.audioTime(); live {
		if math.Abs(wall-at) > p.cfg.LookAheadSec {
			p.anchorTime = at
			p.anchorWall = p.clk.Now()
			p.logger.Debug("re-anchored to audio clock", "wall", wall, "audio", at)
		}
		return at
	}
	return wall
}

// refreshActiveLocked diffs the timeline's active notes against the pitch
// set last reported, emitting starts before stops so a pitch sounding
// across the boundary never flickers. noteStart emission stops once the
// visual cap is reached; audio is unaffected.
func (p *Player) refreshActiveLocked(t float64) []Event {
	tl := score.TimelineAt(p.score, t, p.cfg.LookAheadSec)
	now := make(map[string]struct{}, len(tl.Active))
	var evs []Event
	for i := range tl.Active {
		n := tl.Active[i]
		if _, dup := now[n.Pitch]; dup {
			continue
		}
		now[n.Pitch] = struct{}{}
		if _, on := p.active[n.Pitch]; on {
			continue
		}
		if len(p.active) >= p.cfg.MaxConcurrentVisualNotes {
			continue
		}
		p.active[n.Pitch] = struct{}{}
		note := n
		evs = append(evs, Event{Type: EventNoteStart, Time: t, Pitch: n.Pitch, Note: &note})
	}
	var stopped []string
	for pitch := range p.active {
		if _, still := now[pitch]; !still {
			stopped = append(stopped, pitch)
		}
	}
	sort.Strings(stopped)
	for _, pitch := range stopped {
		delete(p.active, pitch)
		evs = append(evs, Event{Type: EventNoteEnd, Time: t, Pitch: pitch})
	}
	return evs
}

// stopActiveLocked force-stops every reported pitch, in sorted order.
func (p *Player) stopActiveLocked() []Event {
	if len(p.active) == 0 {
		return nil
	}
	pitches := sortedPitches(p.active)
	evs := make([]Event, 0, len(pitches))
	for _, pitch := range pitches {
		delete(p.active, pitch)
		evs = append(evs, Event{Type: EventNoteEnd, Time: p.cur, Pitch: pitch})
	}
	return evs
}

func (p *Player) scheduleAudioLocked(offset float64) {
	p.audio.scheduleBatch(p.noteEvents, offset, p.speed, p.clicks)
}

func (p *Player) playStateEventLocked() Event {
	return Event{Type: EventPlayStateChange, Time: p.cur, Playing: p.playing}
}

func (p *Player) emitAll(evs []Event) {
	for _, ev := range evs {
		p.bus.emit(ev)
	}
}

// State returns a snapshot of the transport.
func (p *Player) State() PlaybackState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PlaybackState{
		Playing:       p.playing,
		Time:          p.currentTimeLocked(),
		Speed:         p.speed,
		Mode:          p.mode,
		ActivePitches: sortedPitches(p.active),
		AudioReady:    p.audio.ready(),
	}
}

// CurrentTime returns the transport time in score seconds.
func (p *Player) CurrentTime() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentTimeLocked()
}

func (p *Player) Speed() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.speed
}

func (p *Player) Mode() Mode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mode
}

// CurrentScore returns the loaded score, or nil. Callers must treat it as
// read-only.
func (p *Player) CurrentScore() *score.Score {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.score
}

// TimelineAt classifies the loaded score's notes around t using the
// configured lookahead. It does not move the transport.
func (p *Player) TimelineAt(t float64) score.Timeline {
	p.mu.Lock()
	defer p.mu.Unlock()
	return score.TimelineAt(p.score, t, p.cfg.LookAheadSec)
}

// AudioReady reports whether a real output device is attached.
func (p *Player) AudioReady() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.audio.ready()
}

// SetMuted silences or restores the output device without touching the
// transport; scheduling and timing continue as normal.
func (p *Player) SetMuted(muted bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.disposed {
		return
	}
	p.muted = muted
	p.audio.setMuted(muted)
}

func (p *Player) Muted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.muted
}

// Subscribe registers handler for one event type and returns the token to
// unsubscribe with. Handlers run synchronously in subscription order; a
// panicking handler is recovered and logged.
func (p *Player) Subscribe(kind EventType, handler func(Event)) Subscription {
	return p.bus.subscribe(kind, handler)
}

// Unsubscribe removes a subscription. Unknown or already-removed tokens are
// ignored.
func (p *Player) Unsubscribe(sub Subscription) {
	p.bus.unsubscribe(sub)
}

// Watch returns a buffered channel (cap 64) receiving every emitted event
// regardless of type. Receive promptly; when the buffer is full new events
// are dropped. Only the most recent Watch channel receives events, so call
// Watch before Play.
func (p *Player) Watch() <-chan Event {
	return p.bus.watchChan()
}
