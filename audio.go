package clairkeys

import (
	"fmt"
	"log/slog"

	intaudio "github.com/clairkeys/clairkeys-go/internal/audio"
	"github.com/clairkeys/clairkeys-go/internal/synth"
)

// audioPort is the Player's view of the audio subsystem. systemAudio backs
// it with a real output device; tests and WithoutAudio substitute
// silentAudio, which reports live=false so the transport falls back to its
// wall-clock anchor.
type audioPort interface {
	scheduleBatch(notes []intaudio.NoteEvent, offset, tempoScale float64, clicks []intaudio.ClickTime)
	stopAudio()
	playNow(key int, velocity, durationSec float64)
	audioTime() (t float64, live bool)
	setMuted(muted bool)
	ready() bool
	close()
}

// systemAudio wires the piano voice engine and the sample scheduler to the
// platform output device. The device pulls the scheduler continuously;
// batches start and stop inside it without reopening the stream.
type systemAudio struct {
	sched  *intaudio.Scheduler
	device *intaudio.Device
	logger *slog.Logger
}

// pianoParams maps the config envelope onto the synth. The voice pool is
// kept above the scheduler's limit so release tails survive newly started
// notes.
func pianoParams(cfg Config) synth.Params {
	params := synth.DefaultParams()
	params.AttackSec = cfg.Envelope.AttackSec
	params.DecaySec = cfg.Envelope.DecaySec
	params.SustainLvl = cfg.Envelope.SustainLevel
	params.ReleaseSec = cfg.Envelope.ReleaseSec
	if cfg.VoiceLimit+8 > params.Polyphony {
		params.Polyphony = cfg.VoiceLimit + 8
	}
	return params
}

func newSystemAudio(cfg Config, logger *slog.Logger) (*systemAudio, error) {
	piano := synth.New(cfg.SampleRate, pianoParams(cfg))
	sched := intaudio.NewWithOptions(piano, cfg.SampleRate, intaudio.Options{
		VoiceLimit:         cfg.VoiceLimit,
		MinNoteDurationSec: cfg.MinNoteDurationSec,
	})
	device, err := intaudio.NewDevice(cfg.SampleRate, sched)
	if err != nil {
		return nil, fmt.Errorf("audio device: %w", err)
	}
	device.Play()
	return &systemAudio{sched: sched, device: device, logger: logger}, nil
}

func (a *systemAudio) scheduleBatch(notes []intaudio.NoteEvent, offset, tempoScale float64, clicks []intaudio.ClickTime) {
	a.sched.StartBatch(notes, offset, tempoScale, clicks)
	if n := a.sched.DroppedNotes(); n > 0 {
		a.logger.Debug("voice limit dropped notes", "count", n)
	}
}

func (a *systemAudio) stopAudio() {
	a.sched.Stop()
}

func (a *systemAudio) playNow(key int, velocity, durationSec float64) {
	a.sched.PlayNow(key, velocity, durationSec)
}

func (a *systemAudio) audioTime() (float64, bool) {
	return a.sched.CurrentTime(), a.sched.Live()
}

func (a *systemAudio) setMuted(muted bool) {
	if muted {
		a.device.SetVolume(0)
	} else {
		a.device.SetVolume(1)
	}
}

func (a *systemAudio) ready() bool {
	return true
}

func (a *systemAudio) close() {
	a.sched.Stop()
	_ = a.device.Close()
}

// silentAudio keeps the engine fully usable with no output device.
type silentAudio struct{}

func (silentAudio) scheduleBatch([]intaudio.NoteEvent, float64, float64, []intaudio.ClickTime) {}
func (silentAudio) stopAudio()                                                                 {}
func (silentAudio) playNow(int, float64, float64)                                              {}
func (silentAudio) audioTime() (float64, bool)                                                 { return 0, false }
func (silentAudio) setMuted(bool)                                                              {}
func (silentAudio) ready() bool                                                                { return false }
func (silentAudio) close()                                                                     {}
