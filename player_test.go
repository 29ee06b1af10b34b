package clairkeys

import (
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	intaudio "github.com/clairkeys/clairkeys-go/internal/audio"
	"github.com/clairkeys/clairkeys-go/internal/clock"
	"github.com/clairkeys/clairkeys-go/score"
)

// fakeAudio records every scheduler call and lets tests script the audio
// clock that the transport treats as authoritative.
type fakeAudio struct {
	mu      sync.Mutex
	batches []fakeBatch
	stops   int
	played  []playedNote
	muted   bool
	closed  bool
	time    float64
	live    bool
}

type fakeBatch struct {
	notes      []intaudio.NoteEvent
	offset     float64
	tempoScale float64
	clicks     []intaudio.ClickTime
}

type playedNote struct {
	key      int
	velocity float64
	duration float64
}

func (f *fakeAudio) scheduleBatch(notes []intaudio.NoteEvent, offset, tempoScale float64, clicks []intaudio.ClickTime) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, fakeBatch{notes: notes, offset: offset, tempoScale: tempoScale, clicks: clicks})
}

func (f *fakeAudio) stopAudio() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	f.live = false
}

func (f *fakeAudio) playNow(key int, velocity, durationSec float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.played = append(f.played, playedNote{key: key, velocity: velocity, duration: durationSec})
}

func (f *fakeAudio) audioTime() (float64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.time, f.live
}

func (f *fakeAudio) setMuted(muted bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.muted = muted
}

func (f *fakeAudio) ready() bool { return true }

func (f *fakeAudio) close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

// setClock scripts what the scheduler would report.
func (f *fakeAudio) setClock(t float64, live bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.time = t
	f.live = live
}

func (f *fakeAudio) batchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

func (f *fakeAudio) lastBatch(t *testing.T) fakeBatch {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.batches) == 0 {
		t.Fatalf("no batch was scheduled")
	}
	return f.batches[len(f.batches)-1]
}

func newTestPlayer(t *testing.T, opts ...PlayerOption) (*Player, *fakeAudio, *clock.ManualClock, *clock.ManualTicker) {
	t.Helper()
	fake := &fakeAudio{}
	mc := &clock.ManualClock{}
	mt := &clock.ManualTicker{}
	all := append([]PlayerOption{withClock(mc), withTicker(mt), withAudioPort(fake)}, opts...)
	p, err := NewPlayer(all...)
	if err != nil {
		t.Fatalf("new player: %v", err)
	}
	t.Cleanup(p.Dispose)
	return p, fake, mc, mt
}

func testScore() *score.Score {
	return &score.Score{
		Version:       1,
		Title:         "Test Piece",
		Composer:      "Nobody",
		Duration:      4,
		Tempo:         120,
		TimeSignature: score.TimeSignature{Numerator: 4, Denominator: 4},
		Notes: []score.Note{
			{Pitch: "C4", Start: 0, Duration: 1, Velocity: 0.8, Hand: score.HandRight},
			{Pitch: "E4", Start: 0.5, Duration: 1, Velocity: 0.7, Hand: score.HandRight},
			{Pitch: "G4", Start: 2, Duration: 0.5, Velocity: 0.9, Hand: score.HandLeft},
		},
	}
}

func mustLoad(t *testing.T, p *Player, s *score.Score) {
	t.Helper()
	if err := p.LoadScore(s); err != nil {
		t.Fatalf("load score: %v", err)
	}
}

// eventRecorder captures emitted events as readable strings, preserving the
// cross-type emission order.
type eventRecorder struct {
	mu      sync.Mutex
	entries []string
}

func recordAll(p *Player) *eventRecorder {
	r := &eventRecorder{}
	kinds := []EventType{
		EventTimeUpdate, EventPlayStateChange, EventSpeedChange,
		EventNoteStart, EventNoteEnd,
		EventPracticeStep, EventPracticeComplete, EventTempoIncrease,
	}
	for _, kind := range kinds {
		p.Subscribe(kind, r.record)
	}
	return r
}

func (r *eventRecorder) record(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch ev.Type {
	case EventNoteStart, EventNoteEnd:
		r.entries = append(r.entries, ev.Type.String()+" "+ev.Pitch)
	case EventTimeUpdate:
		r.entries = append(r.entries, fmt.Sprintf("timeUpdate %.2f", ev.Time))
	case EventSpeedChange:
		r.entries = append(r.entries, fmt.Sprintf("speedChange %.2f", ev.Speed))
	case EventPracticeStep:
		r.entries = append(r.entries, fmt.Sprintf("practiceStep %d", ev.Step.Index))
	case EventTempoIncrease:
		r.entries = append(r.entries, fmt.Sprintf("tempoIncrease %.2f", ev.Tempo))
	case EventPlayStateChange:
		r.entries = append(r.entries, fmt.Sprintf("playStateChange %v", ev.Playing))
	default:
		r.entries = append(r.entries, ev.Type.String())
	}
}

func (r *eventRecorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.entries))
	copy(out, r.entries)
	return out
}

func (r *eventRecorder) clear() {
	r.mu.Lock()
	r.entries = nil
	r.mu.Unlock()
}

func (r *eventRecorder) countPrefix(prefix string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.entries {
		if len(e) >= len(prefix) && e[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

func almost(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestNewPlayerDefaults(t *testing.T) {
	p, err := NewPlayer(WithoutAudio())
	if err != nil {
		t.Fatalf("new player: %v", err)
	}
	defer p.Dispose()
	st := p.State()
	if st.Playing {
		t.Fatalf("new player should not be playing")
	}
	if st.Time != 0 || st.Speed != 1 || st.Mode != ModeListen {
		t.Fatalf("state = %+v, want stopped at 0, speed 1, listen mode", st)
	}
	if st.AudioReady {
		t.Fatalf("WithoutAudio should report AudioReady=false")
	}
}

func TestNewPlayerRejectsNegativeConfig(t *testing.T) {
	_, err := NewPlayer(WithoutAudio(), WithConfig(Config{VoiceLimit: -1}))
	if err == nil {
		t.Fatalf("negative voiceLimit should be rejected")
	}
}

func TestPlayStartsTransportAndSchedules(t *testing.T) {
	p, fake, mc, mt := newTestPlayer(t)
	mustLoad(t, p, testScore())
	p.Play()

	if !p.State().Playing {
		t.Fatalf("player should be playing")
	}
	if !mt.Running() {
		t.Fatalf("ticker should be running")
	}
	if got := mt.Interval(); got != 16*time.Millisecond {
		t.Fatalf("tick interval = %v, want 16ms", got)
	}
	b := fake.lastBatch(t)
	if b.offset != 0 || b.tempoScale != 1 || len(b.notes) != 3 {
		t.Fatalf("batch = offset %g scale %g notes %d, want 0/1/3", b.offset, b.tempoScale, len(b.notes))
	}

	mc.Advance(1.0)
	mt.Fire()
	if got := p.CurrentTime(); !almost(got, 1.0) {
		t.Fatalf("time after 1s = %g, want 1", got)
	}
	if got := p.State().ActivePitches; len(got) != 1 || got[0] != "E4" {
		t.Fatalf("active = %v, want [E4]", got)
	}
}

func TestPauseCapturesTimeAndStopsNotes(t *testing.T) {
	p, fake, mc, mt := newTestPlayer(t)
	mustLoad(t, p, testScore())
	p.Play()
	mc.Advance(0.6)
	mt.Fire() // C4 and E4 active
	rec := recordAll(p)

	p.Pause()
	if p.State().Playing {
		t.Fatalf("pause should stop the transport")
	}
	if mt.Running() {
		t.Fatalf("pause should halt the ticker")
	}
	if fake.stops == 0 {
		t.Fatalf("pause should stop the audio batch")
	}
	mc.Advance(5)
	if got := p.CurrentTime(); !almost(got, 0.6) {
		t.Fatalf("paused time = %g, want pinned 0.6", got)
	}
	want := []string{"noteEnd C4", "noteEnd E4", "playStateChange false"}
	got := rec.list()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events = %v, want %v", got, want)
		}
	}
}

func TestResumeSchedulesFromPausedOffset(t *testing.T) {
	p, fake, mc, mt := newTestPlayer(t)
	mustLoad(t, p, testScore())
	p.Play()
	mc.Advance(1.5)
	mt.Fire()
	p.Pause()

	p.Play()
	b := fake.lastBatch(t)
	if !almost(b.offset, 1.5) {
		t.Fatalf("resume batch offset = %g, want 1.5", b.offset)
	}
	if !p.State().Playing {
		t.Fatalf("resume should be playing")
	}
}

func TestStopRewindsToZero(t *testing.T) {
	p, _, mc, mt := newTestPlayer(t)
	mustLoad(t, p, testScore())
	p.Play()
	mc.Advance(2)
	mt.Fire()
	rec := recordAll(p)

	p.Stop()
	if st := p.State(); st.Playing || st.Time != 0 {
		t.Fatalf("after stop: playing=%v time=%g, want stopped at 0", st.Playing, st.Time)
	}
	if n := rec.countPrefix("timeUpdate 0.00"); n != 1 {
		t.Fatalf("stop should emit timeUpdate 0, got %v", rec.list())
	}
}

func TestTickEmitsStartsBeforeStops(t *testing.T) {
	s := &score.Score{
		Version: 1, Title: "Legato", Composer: "Nobody",
		Duration: 2, Tempo: 120,
		TimeSignature: score.TimeSignature{Numerator: 4, Denominator: 4},
		Notes: []score.Note{
			{Pitch: "C4", Start: 0, Duration: 1, Velocity: 0.8},
			{Pitch: "D4", Start: 1, Duration: 1, Velocity: 0.8},
		},
	}
	p, _, mc, mt := newTestPlayer(t)
	mustLoad(t, p, s)
	p.Play()
	mc.Advance(0.5)
	mt.Fire()
	rec := recordAll(p)

	mc.Advance(0.7) // now at 1.2: D4 starts, C4 ended
	mt.Fire()
	got := rec.list()
	want := []string{"noteStart D4", "noteEnd C4", "timeUpdate 1.20"}
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events = %v, want %v", got, want)
		}
	}
}

func TestVisualCapLimitsNoteStarts(t *testing.T) {
	s := &score.Score{
		Version: 1, Title: "Cluster", Composer: "Nobody",
		Duration: 2, Tempo: 120,
		TimeSignature: score.TimeSignature{Numerator: 4, Denominator: 4},
		Notes: []score.Note{
			{Pitch: "C4", Start: 0, Duration: 1, Velocity: 0.8},
			{Pitch: "E4", Start: 0, Duration: 1, Velocity: 0.8},
			{Pitch: "G4", Start: 0, Duration: 1, Velocity: 0.8},
			{Pitch: "B4", Start: 0, Duration: 1, Velocity: 0.8},
		},
	}
	p, fake, mc, mt := newTestPlayer(t, WithConfig(Config{MaxConcurrentVisualNotes: 2}))
	mustLoad(t, p, s)
	rec := recordAll(p)
	p.Play()
	mc.Advance(0.1)
	mt.Fire()

	if n := rec.countPrefix("noteStart"); n != 2 {
		t.Fatalf("noteStart count = %d, want capped at 2 (events %v)", n, rec.list())
	}
	if got := p.State().ActivePitches; len(got) != 2 {
		t.Fatalf("active = %v, want 2 pitches", got)
	}
	if b := fake.lastBatch(t); len(b.notes) != 4 {
		t.Fatalf("audio batch = %d notes, want all 4 despite the visual cap", len(b.notes))
	}
}

func TestSeekWhilePausedRefreshesActive(t *testing.T) {
	p, fake, _, _ := newTestPlayer(t)
	mustLoad(t, p, testScore())
	rec := recordAll(p)

	p.SeekTo(2.1)
	if got := p.CurrentTime(); !almost(got, 2.1) {
		t.Fatalf("time = %g, want 2.1", got)
	}
	if p.State().Playing {
		t.Fatalf("seek must not start playback")
	}
	if n := rec.countPrefix("noteStart G4"); n != 1 {
		t.Fatalf("seek into G4 should start it, events %v", rec.list())
	}
	if fake.batchCount() != 0 {
		t.Fatalf("paused seek should not schedule audio")
	}

	rec.clear()
	p.SeekTo(3)
	if n := rec.countPrefix("noteEnd G4"); n != 1 {
		t.Fatalf("seek past G4 should end it, events %v", rec.list())
	}
}

func TestSeekWhilePlayingReschedules(t *testing.T) {
	p, fake, _, _ := newTestPlayer(t)
	mustLoad(t, p, testScore())
	p.Play()
	before := fake.batchCount()

	p.SeekTo(2.5)
	if fake.batchCount() != before+1 {
		t.Fatalf("playing seek should reschedule audio")
	}
	if b := fake.lastBatch(t); !almost(b.offset, 2.5) {
		t.Fatalf("batch offset = %g, want 2.5", b.offset)
	}
	if !p.State().Playing {
		t.Fatalf("seek should preserve the playing state")
	}
}

func TestSeekClampsIntoScore(t *testing.T) {
	p, _, _, _ := newTestPlayer(t)
	mustLoad(t, p, testScore())
	p.SeekTo(-3)
	if got := p.CurrentTime(); got != 0 {
		t.Fatalf("seek below zero = %g, want 0", got)
	}
	p.SeekTo(100)
	if got := p.CurrentTime(); got != 4 {
		t.Fatalf("seek past end = %g, want duration 4", got)
	}
}

func TestSetSpeedKeepsTimeContinuous(t *testing.T) {
	p, fake, mc, _ := newTestPlayer(t)
	mustLoad(t, p, testScore())
	rec := recordAll(p)
	p.Play()
	mc.Advance(1)
	if got := p.CurrentTime(); !almost(got, 1) {
		t.Fatalf("time before speed change = %g, want 1", got)
	}

	p.SetSpeed(2)
	if got := p.CurrentTime(); !almost(got, 1) {
		t.Fatalf("time right after speed change = %g, want 1", got)
	}
	b := fake.lastBatch(t)
	if !almost(b.offset, 1) || b.tempoScale != 2 {
		t.Fatalf("batch = offset %g scale %g, want 1/2", b.offset, b.tempoScale)
	}
	mc.Advance(1)
	if got := p.CurrentTime(); !almost(got, 3) {
		t.Fatalf("time after 1s at 2x = %g, want 3", got)
	}
	if n := rec.countPrefix("speedChange 2.00"); n != 1 {
		t.Fatalf("speedChange not emitted, events %v", rec.list())
	}
}

func TestSetSpeedClamps(t *testing.T) {
	p, _, _, _ := newTestPlayer(t)
	p.SetSpeed(0.01)
	if got := p.Speed(); got != 0.25 {
		t.Fatalf("speed = %g, want clamped to 0.25", got)
	}
	p.SetSpeed(99)
	if got := p.Speed(); got != 4 {
		t.Fatalf("speed = %g, want clamped to 4", got)
	}
}

func TestLoopWrapsExactlyToStart(t *testing.T) {
	p, fake, mc, mt := newTestPlayer(t)
	mustLoad(t, p, testScore())
	if err := p.SetLoopSection(1, 2); err != nil {
		t.Fatalf("set loop: %v", err)
	}
	p.Play()
	mc.Set(2.05)
	mt.Fire()

	if got := p.CurrentTime(); got != 1.0 {
		t.Fatalf("time after wrap = %g, want exactly 1.0", got)
	}
	if !p.State().Playing {
		t.Fatalf("loop wrap must never stop playback")
	}
	if b := fake.lastBatch(t); !almost(b.offset, 1.0) {
		t.Fatalf("wrap batch offset = %g, want 1.0", b.offset)
	}
}

func TestLoopSectionValidation(t *testing.T) {
	p, _, _, _ := newTestPlayer(t)
	if err := p.SetLoopSection(1, 2); err == nil {
		t.Fatalf("loop before load should fail")
	}
	mustLoad(t, p, testScore())
	if err := p.SetLoopSection(2, 1); err == nil {
		t.Fatalf("inverted loop should fail")
	}
	if err := p.SetLoopSection(0, 99); err == nil {
		t.Fatalf("loop past the score should fail")
	}
	if err := p.SetLoopSection(0.5, 3); err != nil {
		t.Fatalf("valid loop rejected: %v", err)
	}
	if ls, ok := p.LoopSection(); !ok || ls.Start != 0.5 || ls.End != 3 {
		t.Fatalf("loop = %+v ok=%v, want 0.5..3", ls, ok)
	}
	p.ClearLoopSection()
	if _, ok := p.LoopSection(); ok {
		t.Fatalf("loop should be cleared")
	}
}

func TestEndOfScoreHaltsAndClamps(t *testing.T) {
	p, fake, mc, mt := newTestPlayer(t)
	mustLoad(t, p, testScore())
	p.Play()
	mc.Advance(2.2)
	mt.Fire() // G4 active
	rec := recordAll(p)

	mc.Set(5)
	mt.Fire()
	if st := p.State(); st.Playing || st.Time != 4 {
		t.Fatalf("after end: playing=%v time=%g, want stopped at duration 4", st.Playing, st.Time)
	}
	if mt.Running() {
		t.Fatalf("ticker should halt at end of score")
	}
	if fake.stops == 0 {
		t.Fatalf("audio should stop at end of score")
	}
	if n := rec.countPrefix("noteEnd G4"); n != 1 {
		t.Fatalf("active pitches should be force-stopped, events %v", rec.list())
	}
	if n := rec.countPrefix("playStateChange false"); n != 1 {
		t.Fatalf("playStateChange missing, events %v", rec.list())
	}

	// Playing again from the end restarts at zero.
	fake.mu.Lock()
	fake.batches = nil
	fake.mu.Unlock()
	p.Play()
	if b := fake.lastBatch(t); b.offset != 0 {
		t.Fatalf("replay offset = %g, want 0", b.offset)
	}
}

func TestAudioClockIsAuthoritative(t *testing.T) {
	p, fake, mc, _ := newTestPlayer(t)
	mustLoad(t, p, testScore())
	p.Play()

	// Small divergence: report the audio time, keep the anchor.
	fake.setClock(0.5, true)
	mc.Set(0.55)
	if got := p.CurrentTime(); got != 0.5 {
		t.Fatalf("live time = %g, want audio clock 0.5", got)
	}

	// Large divergence re-anchors the wall clock onto the audio clock.
	fake.setClock(1.0, true)
	if got := p.CurrentTime(); got != 1.0 {
		t.Fatalf("live time = %g, want audio clock 1.0", got)
	}
	fake.setClock(0, false)
	mc.Advance(0.2)
	if got := p.CurrentTime(); !almost(got, 1.2) {
		t.Fatalf("time after losing the audio clock = %g, want re-anchored 1.2", got)
	}
}

func TestFollowMatchPlaysAndAdvances(t *testing.T) {
	p, fake, _, _ := newTestPlayer(t)
	mustLoad(t, p, testScore())
	p.SetMode(ModeFollow)
	rec := recordAll(p)

	if !p.ProcessUserInput("C4") {
		t.Fatalf("C4 at time 0 should match")
	}
	if got := p.CurrentTime(); !almost(got, 0.5) {
		t.Fatalf("time after match = %g, want next start 0.5", got)
	}
	fake.mu.Lock()
	played := append([]playedNote(nil), fake.played...)
	fake.mu.Unlock()
	if len(played) != 1 || played[0].key != 60 || !almost(played[0].velocity, 0.8) {
		t.Fatalf("played = %+v, want C4 (60) at velocity 0.8", played)
	}
	if n := rec.countPrefix("noteStart C4"); n != 1 {
		t.Fatalf("noteStart C4 missing, events %v", rec.list())
	}
	if n := rec.countPrefix("timeUpdate 0.50"); n != 1 {
		t.Fatalf("timeUpdate missing, events %v", rec.list())
	}
}

func TestFollowMatchesEnharmonicSpelling(t *testing.T) {
	p, _, _, _ := newTestPlayer(t)
	mustLoad(t, p, testScore())
	p.SetMode(ModeFollow)
	p.SeekTo(0.5)

	// Fb4 is the same key as E4.
	if !p.ProcessUserInput("Fb4") {
		t.Fatalf("enharmonic spelling should match by key number")
	}
	if got := p.CurrentTime(); !almost(got, 2) {
		t.Fatalf("time = %g, want 2 (next start)", got)
	}
}

func TestFollowLastNoteKeepsTime(t *testing.T) {
	p, _, _, _ := newTestPlayer(t)
	mustLoad(t, p, testScore())
	p.SetMode(ModeFollow)
	p.SeekTo(2)

	if !p.ProcessUserInput("G4") {
		t.Fatalf("G4 at its start should match")
	}
	if got := p.CurrentTime(); !almost(got, 2) {
		t.Fatalf("time = %g, want unchanged 2 with no following note", got)
	}
}

func TestFollowRejects(t *testing.T) {
	p, fake, _, _ := newTestPlayer(t)
	mustLoad(t, p, testScore())

	if p.ProcessUserInput("C4") {
		t.Fatalf("follow matching must be off in listen mode")
	}
	p.SetMode(ModeFollow)
	if p.ProcessUserInput("G4") {
		t.Fatalf("G4 starts at 2, outside the tolerance of time 0")
	}
	if p.ProcessUserInput("not-a-pitch") {
		t.Fatalf("unparseable pitch should be a miss")
	}
	if got := p.CurrentTime(); got != 0 {
		t.Fatalf("misses must not move the time, got %g", got)
	}
	if len(fake.played) != 0 {
		t.Fatalf("misses must not sound notes")
	}
}

func TestModeSwitchPausesAndDiscardsPractice(t *testing.T) {
	p, _, _, _ := newTestPlayer(t)
	mustLoad(t, p, testScore())
	p.Play()

	p.SetMode(ModeFollow)
	if p.State().Playing {
		t.Fatalf("entering follow should pause")
	}

	if err := p.StartPracticeMode(1, 1); err != nil {
		t.Fatalf("start practice: %v", err)
	}
	if !p.PracticeState().Active {
		t.Fatalf("practice session should be active")
	}
	p.SetMode(ModeListen)
	if p.PracticeState().Active {
		t.Fatalf("leaving practice should discard the session")
	}
}

func TestPlayIsNoOpInPracticeMode(t *testing.T) {
	p, fake, _, _ := newTestPlayer(t)
	mustLoad(t, p, testScore())
	if err := p.StartPracticeMode(1, 1); err != nil {
		t.Fatalf("start practice: %v", err)
	}
	p.Play()
	if p.State().Playing {
		t.Fatalf("practice never free-runs")
	}
	if fake.batchCount() != 0 {
		t.Fatalf("practice must not schedule audio batches")
	}
}

func TestOperationsBeforeLoadAreNoOps(t *testing.T) {
	p, fake, _, mt := newTestPlayer(t)
	rec := recordAll(p)

	p.Play()
	p.Pause()
	p.SeekTo(3)
	p.NextPracticeStep()
	if p.ProcessUserInput("C4") {
		t.Fatalf("input before load should miss")
	}
	if err := p.StartPracticeMode(1, 2); err == nil {
		t.Fatalf("practice before load should error")
	}
	if st := p.State(); st.Playing || st.Time != 0 {
		t.Fatalf("state moved without a score: %+v", st)
	}
	if fake.batchCount() != 0 || mt.Running() {
		t.Fatalf("no audio or ticker should run without a score")
	}
	if got := rec.countPrefix("noteStart"); got != 0 {
		t.Fatalf("no note events expected, got %v", rec.list())
	}
}

func TestLoadScoreRejectsInvalid(t *testing.T) {
	p, _, _, _ := newTestPlayer(t)
	bad := testScore()
	bad.Composer = ""
	if err := p.LoadScore(bad); err == nil {
		t.Fatalf("invalid score should be rejected")
	}
	if p.CurrentScore() != nil {
		t.Fatalf("rejected score must not be kept")
	}
	if err := p.LoadScore(nil); err == nil {
		t.Fatalf("nil score should be rejected")
	}
}

func TestLoadScoreResetsTransport(t *testing.T) {
	p, _, mc, mt := newTestPlayer(t)
	mustLoad(t, p, testScore())
	if err := p.SetLoopSection(1, 2); err != nil {
		t.Fatalf("set loop: %v", err)
	}
	p.Play()
	mc.Advance(0.4)
	mt.Fire()

	next := testScore()
	next.Title = "Second Piece"
	mustLoad(t, p, next)
	if st := p.State(); st.Playing || st.Time != 0 {
		t.Fatalf("load should pause and rewind, state %+v", st)
	}
	if _, ok := p.LoopSection(); ok {
		t.Fatalf("load should clear the loop section")
	}
	if got := p.CurrentScore().Title; got != "Second Piece" {
		t.Fatalf("score = %q, want the newly loaded one", got)
	}
}

func TestMetronomeClicksFollowTheBeat(t *testing.T) {
	p, fake, _, _ := newTestPlayer(t, WithConfig(Config{Metronome: true}))
	mustLoad(t, p, testScore()) // 120 BPM, 4/4, 4 seconds: 8 beats
	p.Play()

	b := fake.lastBatch(t)
	if len(b.clicks) != 8 {
		t.Fatalf("clicks = %d, want 8 beats", len(b.clicks))
	}
	for i, c := range b.clicks {
		wantAt := 0.5 * float64(i)
		if !almost(c.At, wantAt) {
			t.Fatalf("click %d at %g, want %g", i, c.At, wantAt)
		}
		wantAccent := i%4 == 0
		if c.Accent != wantAccent {
			t.Fatalf("click %d accent = %v, want %v", i, c.Accent, wantAccent)
		}
	}
}

func TestMuteTogglesDeviceOnly(t *testing.T) {
	p, fake, _, _ := newTestPlayer(t)
	mustLoad(t, p, testScore())
	p.SetMuted(true)
	if !p.Muted() || !fake.muted {
		t.Fatalf("mute should reach the device")
	}
	p.Play()
	if fake.batchCount() != 1 {
		t.Fatalf("muted playback must still schedule audio")
	}
	p.SetMuted(false)
	if p.Muted() || fake.muted {
		t.Fatalf("unmute should reach the device")
	}
}

func TestDisposeIsIdempotentAndTotal(t *testing.T) {
	p, fake, _, mt := newTestPlayer(t)
	mustLoad(t, p, testScore())
	p.Play()
	rec := recordAll(p)

	p.Dispose()
	if !fake.closed {
		t.Fatalf("dispose should close the audio port")
	}
	if mt.Running() {
		t.Fatalf("dispose should halt the ticker")
	}
	rec.clear()

	p.Play()
	p.Pause()
	p.Stop()
	p.SeekTo(2)
	p.SetSpeed(3)
	p.SetMode(ModeFollow)
	p.SetMuted(true)
	if p.ProcessUserInput("C4") {
		t.Fatalf("disposed player should ignore input")
	}
	if err := p.LoadScore(testScore()); err == nil {
		t.Fatalf("disposed player should reject loads")
	}
	if err := p.StartPracticeMode(1, 2); err == nil {
		t.Fatalf("disposed player should reject practice")
	}
	if st := p.State(); st.Playing || st.Time != 0 {
		t.Fatalf("disposed state = %+v, want inert", st)
	}
	if got := rec.list(); len(got) != 0 {
		t.Fatalf("disposed player emitted %v", got)
	}
	p.Dispose() // second dispose is a no-op
}

func TestWatchDropsWhenUnread(t *testing.T) {
	p, _, _, _ := newTestPlayer(t)
	mustLoad(t, p, testScore())
	ch := p.Watch()

	for i := 0; i < 200; i++ {
		p.SeekTo(float64(i%3) + 0.25)
	}
	if got := len(ch); got != watchBuffer {
		t.Fatalf("buffered events = %d, want full buffer %d with the rest dropped", got, watchBuffer)
	}
	ev := <-ch
	if ev.Type != EventTimeUpdate && ev.Type != EventNoteStart && ev.Type != EventNoteEnd {
		t.Fatalf("unexpected first event %v", ev.Type)
	}
}
