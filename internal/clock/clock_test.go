package clock

import (
	"testing"
	"time"
)

func TestSystemClockAdvances(t *testing.T) {
	c := NewSystem()
	a := c.Now()
	time.Sleep(10 * time.Millisecond)
	b := c.Now()
	if b <= a {
		t.Fatalf("clock went from %v to %v, want forward motion", a, b)
	}
}

func TestIntervalTickerFiresAndStops(t *testing.T) {
	var tk IntervalTicker
	fired := make(chan struct{}, 16)
	tk.Start(2*time.Millisecond, func() {
		select {
		case fired <- struct{}{}:
		default:
		}
	})
	for i := 0; i < 3; i++ {
		select {
		case <-fired:
		case <-time.After(2 * time.Second):
			t.Fatal("ticker never fired")
		}
	}
	tk.Stop()
	tk.Stop()
	time.Sleep(10 * time.Millisecond)
	for len(fired) > 0 {
		<-fired
	}
	time.Sleep(20 * time.Millisecond)
	if len(fired) > 1 {
		t.Fatalf("ticker kept firing after stop: %d pending", len(fired))
	}
}

func TestIntervalTickerStopFromCallback(t *testing.T) {
	var tk IntervalTicker
	done := make(chan struct{})
	var once bool
	tk.Start(time.Millisecond, func() {
		if once {
			return
		}
		once = true
		tk.Stop()
		close(done)
	})
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("callback never ran")
	}
}

func TestManualClock(t *testing.T) {
	var c ManualClock
	if c.Now() != 0 {
		t.Fatalf("fresh clock at %v, want 0", c.Now())
	}
	c.Advance(1.5)
	c.Advance(0.5)
	if c.Now() != 2 {
		t.Fatalf("got %v, want 2", c.Now())
	}
	c.Set(10)
	if c.Now() != 10 {
		t.Fatalf("got %v, want 10", c.Now())
	}
}

func TestManualTicker(t *testing.T) {
	var tk ManualTicker
	n := 0
	tk.Fire()
	tk.Start(16*time.Millisecond, func() { n++ })
	if !tk.Running() {
		t.Fatal("ticker should be running after start")
	}
	if tk.Interval() != 16*time.Millisecond {
		t.Fatalf("interval %v, want 16ms", tk.Interval())
	}
	tk.Fire()
	tk.Fire()
	tk.Stop()
	tk.Fire()
	if n != 2 {
		t.Fatalf("callback ran %d times, want 2", n)
	}
}
