package clairkeys

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	intaudio "github.com/clairkeys/clairkeys-go/internal/audio"
	"github.com/clairkeys/clairkeys-go/internal/synth"
	"github.com/clairkeys/clairkeys-go/score"
)

// RenderScore renders s offline through the same piano voice and scheduler
// the live path uses, at normal speed, returning interleaved stereo
// samples. The buffer extends past the score end so releases ring out.
func RenderScore(s *score.Score, sampleRate int, metronome bool) ([]float32, error) {
	if s == nil {
		return nil, errors.New("render: nil score")
	}
	cfg := DefaultConfig()
	if sampleRate <= 0 {
		sampleRate = cfg.SampleRate
	}
	events, err := noteEventsFor(s)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	piano := synth.New(sampleRate, pianoParams(cfg))
	sched := intaudio.NewWithOptions(piano, sampleRate, intaudio.Options{
		VoiceLimit:         cfg.VoiceLimit,
		MinNoteDurationSec: cfg.MinNoteDurationSec,
	})
	var clicks []intaudio.ClickTime
	if metronome {
		clicks = clickTrack(s)
	}
	sched.StartBatch(events, 0, 1.0, clicks)
	tail := cfg.Envelope.ReleaseSec + 0.2
	frames := int(float64(sampleRate) * (s.Duration + tail))
	out := make([]float32, frames*2)
	sched.Process(out)
	return out, nil
}

// WriteWAV writes interleaved float32 samples as a 32-bit float WAV stream.
func WriteWAV(w io.Writer, samples []float32, sampleRate, channels int) error {
	if sampleRate <= 0 || channels <= 0 {
		return fmt.Errorf("wav: invalid format %d Hz / %d channels", sampleRate, channels)
	}
	dataSize := len(samples) * 4
	header := make([]byte, 44)
	copy(header[0:], "RIFF")
	binary.LittleEndian.PutUint32(header[4:], uint32(36+dataSize))
	copy(header[8:], "WAVE")
	copy(header[12:], "fmt ")
	binary.LittleEndian.PutUint32(header[16:], 16)
	binary.LittleEndian.PutUint16(header[20:], 3)
	binary.LittleEndian.PutUint16(header[22:], uint16(channels))
	binary.LittleEndian.PutUint32(header[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:], uint32(sampleRate*channels*4))
	binary.LittleEndian.PutUint16(header[32:], uint16(channels*4))
	binary.LittleEndian.PutUint16(header[34:], 32)
	copy(header[36:], "data")
	binary.LittleEndian.PutUint32(header[40:], uint32(dataSize))
	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("wav header: %w", err)
	}
	data := make([]byte, dataSize)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(s))
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("wav data: %w", err)
	}
	return nil
}
