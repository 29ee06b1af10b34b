package clairkeys

import (
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/clairkeys/clairkeys-go/score"
)

// PracticeStep is one hand-position group: the notes a learner plays
// together before moving on.
type PracticeStep struct {
	Index int
	Start float64
	Notes []score.Note
}

// PracticeState is a snapshot of the running practice session.
type PracticeState struct {
	Active         bool
	SessionID      string
	StepIndex      int
	TotalSteps     int
	Current        *PracticeStep
	Paused         bool
	StepsCompleted int
	StartedAt      time.Time
	ElapsedSec     float64
	CurrentTempo   float64
	TargetTempo    float64
}

type practiceSession struct {
	steps          []PracticeStep
	active         bool
	done           bool
	sessionID      string
	stepIndex      int
	stepsCompleted int
	startedAt      time.Time
	currentTempo   float64
	targetTempo    float64
}

func newPracticeSession(s *score.Score, epsilon float64) *practiceSession {
	return &practiceSession{steps: buildSteps(s, epsilon)}
}

// buildSteps groups notes whose starts sit within epsilon of the group's
// first note. Anchoring at the first note keeps a long run of slightly
// staggered notes from chaining into one giant step.
func buildSteps(s *score.Score, epsilon float64) []PracticeStep {
	if s == nil || len(s.Notes) == 0 {
		return nil
	}
	notes := make([]score.Note, len(s.Notes))
	copy(notes, s.Notes)
	sort.SliceStable(notes, func(i, j int) bool { return notes[i].Start < notes[j].Start })
	var steps []PracticeStep
	for _, n := range notes {
		if len(steps) == 0 || n.Start-steps[len(steps)-1].Start > epsilon {
			steps = append(steps, PracticeStep{Index: len(steps), Start: n.Start})
		}
		last := &steps[len(steps)-1]
		last.Notes = append(last.Notes, n)
	}
	return steps
}

// StartPracticeMode enters practice mode and begins a session at
// startTempo, progressing toward targetTempo one full pass at a time. Both
// tempo scales clamp into 0.25..4.0. The transport positions at the first
// step and an initial practiceStep event fires.
func (p *Player) StartPracticeMode(startTempo, targetTempo float64) error {
	p.mu.Lock()
	evs, err := p.startPracticeLocked(startTempo, targetTempo)
	p.mu.Unlock()
	p.emitAll(evs)
	return err
}

func (p *Player) startPracticeLocked(startTempo, targetTempo float64) ([]Event, error) {
	if p.disposed {
		return nil, errors.New("practice: player disposed")
	}
	if p.score == nil {
		return nil, errors.New("practice: no score loaded")
	}
	evs := p.setModeLocked(ModePractice)
	sess := p.practice
	if sess == nil {
		sess = newPracticeSession(p.score, p.cfg.StepEpsilonSec)
		p.practice = sess
	}
	if len(sess.steps) == 0 {
		return evs, errors.New("practice: score has no notes")
	}
	sess.active = true
	sess.done = false
	sess.sessionID = uuid.NewString()
	sess.stepIndex = 0
	sess.stepsCompleted = 0
	sess.startedAt = time.Now()
	sess.currentTempo = clampSpeed(startTempo)
	sess.targetTempo = clampSpeed(targetTempo)
	p.speed = sess.currentTempo
	p.cur = sess.steps[0].Start
	step := sess.steps[0]
	evs = append(evs,
		Event{Type: EventPracticeStep, Time: p.cur, Step: &step, Tempo: sess.currentTempo},
		Event{Type: EventTimeUpdate, Time: p.cur},
	)
	return evs, nil
}

// NextPracticeStep marks the current step played and advances. Completing
// the last step emits practiceComplete; while the target tempo is still
// above the current one, the tempo rises by the configured increment
// (capped at target) and the pass restarts at step zero with a
// tempoIncrease event. A completed session with no progression left ignores
// further calls.
func (p *Player) NextPracticeStep() {
	p.mu.Lock()
	evs := p.nextStepLocked()
	p.mu.Unlock()
	p.emitAll(evs)
}

func (p *Player) nextStepLocked() []Event {
	sess := p.practice
	if p.disposed || p.score == nil || p.mode != ModePractice || sess == nil || !sess.active || sess.done {
		return nil
	}
	sess.stepsCompleted++
	if sess.stepIndex+1 < len(sess.steps) {
		sess.stepIndex++
		step := sess.steps[sess.stepIndex]
		p.cur = step.Start
		return []Event{
			{Type: EventPracticeStep, Time: p.cur, Step: &step, Tempo: sess.currentTempo},
			{Type: EventTimeUpdate, Time: p.cur},
		}
	}
	evs := []Event{{Type: EventPracticeComplete, Time: p.cur, Tempo: sess.currentTempo}}
	if sess.targetTempo > sess.currentTempo {
		next := sess.currentTempo + p.cfg.TempoIncrement
		if next > sess.targetTempo {
			next = sess.targetTempo
		}
		sess.currentTempo = next
		sess.stepIndex = 0
		sess.stepsCompleted = 0
		p.speed = next
		p.cur = sess.steps[0].Start
		evs = append(evs,
			Event{Type: EventTempoIncrease, Time: p.cur, Tempo: next},
			Event{Type: EventTimeUpdate, Time: p.cur},
		)
	} else {
		sess.done = true
	}
	return evs
}

// PracticeState returns a snapshot of the session, or a zero state when no
// session is active. Practice never free-runs, so Paused holds for the
// whole session.
func (p *Player) PracticeState() PracticeState {
	p.mu.Lock()
	defer p.mu.Unlock()
	sess := p.practice
	if sess == nil || !sess.active {
		return PracticeState{}
	}
	st := PracticeState{
		Active:         !sess.done,
		SessionID:      sess.sessionID,
		StepIndex:      sess.stepIndex,
		TotalSteps:     len(sess.steps),
		Paused:         !p.playing,
		StepsCompleted: sess.stepsCompleted,
		StartedAt:      sess.startedAt,
		ElapsedSec:     time.Since(sess.startedAt).Seconds(),
		CurrentTempo:   sess.currentTempo,
		TargetTempo:    sess.targetTempo,
	}
	if sess.stepIndex < len(sess.steps) {
		step := sess.steps[sess.stepIndex]
		st.Current = &step
	}
	return st
}

// PracticeSteps returns the step grouping for the loaded score in practice
// mode; outside practice mode it returns nil.
func (p *Player) PracticeSteps() []PracticeStep {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.practice == nil {
		return nil
	}
	out := make([]PracticeStep, len(p.practice.steps))
	copy(out, p.practice.steps)
	return out
}
