package clairkeys

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/clairkeys/clairkeys-go/score"
)

// EventType identifies what a playback Event carries.
type EventType int

const (
	EventTimeUpdate EventType = iota + 1
	EventPlayStateChange
	EventSpeedChange
	EventNoteStart
	EventNoteEnd
	EventPracticeStep
	EventPracticeComplete
	EventTempoIncrease
)

func (t EventType) String() string {
	switch t {
	case EventTimeUpdate:
		return "timeUpdate"
	case EventPlayStateChange:
		return "playStateChange"
	case EventSpeedChange:
		return "speedChange"
	case EventNoteStart:
		return "noteStart"
	case EventNoteEnd:
		return "noteEnd"
	case EventPracticeStep:
		return "practiceStep"
	case EventPracticeComplete:
		return "practiceComplete"
	case EventTempoIncrease:
		return "tempoIncrease"
	default:
		return "unknown"
	}
}

// Event is delivered to subscribers and Watch channels. Only the fields
// relevant to Type are set: Pitch and Note for noteStart, Pitch for noteEnd,
// Speed for speedChange, Step for practiceStep, Tempo for practiceComplete
// and tempoIncrease. Time is always the transport time the event describes.
type Event struct {
	Type    EventType
	Time    float64
	Playing bool
	Speed   float64
	Pitch   string
	Note    *score.Note
	Step    *PracticeStep
	Tempo   float64
}

// Subscription identifies one registered handler; pass it to Unsubscribe.
type Subscription struct {
	kind  EventType
	token uint64
}

type subscriber struct {
	token   uint64
	handler func(Event)
}

// eventBus fans events out synchronously. Handlers run in subscription
// order on the emitting goroutine, so they observe a consistent player
// state but must not call back into the Player while it holds its lock;
// the Player always emits after unlocking.
type eventBus struct {
	mu        sync.Mutex
	nextToken uint64
	subs      map[EventType][]subscriber
	watch     chan Event
	logger    *slog.Logger
}

const watchBuffer = 64

func newEventBus(logger *slog.Logger) *eventBus {
	return &eventBus{subs: make(map[EventType][]subscriber), logger: logger}
}

func (b *eventBus) subscribe(kind EventType, handler func(Event)) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextToken++
	b.subs[kind] = append(b.subs[kind], subscriber{token: b.nextToken, handler: handler})
	return Subscription{kind: kind, token: b.nextToken}
}

func (b *eventBus) unsubscribe(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.subs[sub.kind]
	for i := range list {
		if list[i].token == sub.token {
			b.subs[sub.kind] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

func (b *eventBus) emit(ev Event) {
	b.mu.Lock()
	list := b.subs[ev.Type]
	snapshot := make([]subscriber, len(list))
	copy(snapshot, list)
	watch := b.watch
	b.mu.Unlock()
	for _, s := range snapshot {
		b.call(s.handler, ev)
	}
	if watch != nil {
		select {
		case watch <- ev:
		default:
			// Channel full; drop event
		}
	}
}

// call isolates handler panics so one bad subscriber cannot stall playback.
func (b *eventBus) call(handler func(Event), ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panic", "event", ev.Type.String(), "panic", r)
		}
	}()
	handler(ev)
}

func (b *eventBus) watchChan() <-chan Event {
	ch := make(chan Event, watchBuffer)
	b.mu.Lock()
	b.watch = ch
	b.mu.Unlock()
	return ch
}

func (b *eventBus) reset() {
	b.mu.Lock()
	b.subs = make(map[EventType][]subscriber)
	b.watch = nil
	b.mu.Unlock()
}

// sortedPitches returns the keys of a pitch set in stable order so event
// sequences stay deterministic.
func sortedPitches(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for pitch := range set {
		out = append(out, pitch)
	}
	sort.Strings(out)
	return out
}
