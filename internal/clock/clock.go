// Package clock abstracts monotonic time and the periodic callback that
// drives playback, so the engine can run against real timers in production
// and hand-cranked ones in tests.
package clock

import (
	"sync"
	"time"
)

// Clock reports monotonic time in seconds from an arbitrary origin.
type Clock interface {
	Now() float64
}

// Ticker calls fn at a fixed interval until stopped. Start replaces any
// previous schedule; Stop is idempotent and safe to call from inside fn.
type Ticker interface {
	Start(interval time.Duration, fn func())
	Stop()
}

// System is the real monotonic clock.
type System struct {
	start time.Time
}

func NewSystem() *System {
	return &System{start: time.Now()}
}

func (s *System) Now() float64 {
	return time.Since(s.start).Seconds()
}

// IntervalTicker runs fn on a goroutine fed by a time.Ticker.
type IntervalTicker struct {
	mu   sync.Mutex
	stop chan struct{}
}

func (t *IntervalTicker) Start(interval time.Duration, fn func()) {
	t.Stop()
	t.mu.Lock()
	stop := make(chan struct{})
	t.stop = stop
	t.mu.Unlock()
	go func() {
		tick := time.NewTicker(interval)
		defer tick.Stop()
		for {
			select {
			case <-stop:
				return
			case <-tick.C:
				fn()
			}
		}
	}()
}

func (t *IntervalTicker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stop != nil {
		close(t.stop)
		t.stop = nil
	}
}

// ManualClock is a Clock advanced by hand from tests.
type ManualClock struct {
	mu  sync.Mutex
	now float64
}

func (c *ManualClock) Now() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by sec seconds.
func (c *ManualClock) Advance(sec float64) {
	c.mu.Lock()
	c.now += sec
	c.mu.Unlock()
}

// Set jumps the clock to an absolute time.
func (c *ManualClock) Set(sec float64) {
	c.mu.Lock()
	c.now = sec
	c.mu.Unlock()
}

// ManualTicker is a Ticker fired by hand from tests.
type ManualTicker struct {
	mu       sync.Mutex
	fn       func()
	interval time.Duration
	running  bool
}

func (t *ManualTicker) Start(interval time.Duration, fn func()) {
	t.mu.Lock()
	t.fn = fn
	t.interval = interval
	t.running = true
	t.mu.Unlock()
}

func (t *ManualTicker) Stop() {
	t.mu.Lock()
	t.running = false
	t.mu.Unlock()
}

// Fire invokes the scheduled callback once, if the ticker is running.
func (t *ManualTicker) Fire() {
	t.mu.Lock()
	fn := t.fn
	running := t.running
	t.mu.Unlock()
	if running && fn != nil {
		fn()
	}
}

func (t *ManualTicker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// Interval reports the interval passed to Start.
func (t *ManualTicker) Interval() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.interval
}
