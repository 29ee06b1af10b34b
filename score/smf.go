package score

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gitlab.com/gomidi/midi/v2/smf"
)

type openNote struct {
	start    float64
	velocity float64
}

// FromSMF builds a Score from a Standard MIDI File. Hands follow track
// order: the first track carrying notes becomes the right hand, the second
// the left, further tracks stay unassigned. Tempo comes from the first tempo
// meta event (clamped into the valid 40..300 range), the time signature from
// the first meter event, the title from the first named track. Times are
// rounded to milliseconds. Title and composer may come back empty; callers
// importing files should fill them before validation.
func FromSMF(r io.Reader) (*Score, error) {
	mf, err := smf.ReadFrom(r)
	if err != nil {
		return nil, fmt.Errorf("read midi: %w", err)
	}
	s := &Score{
		Version:       1,
		Tempo:         120,
		TimeSignature: TimeSignature{Numerator: 4, Denominator: 4},
		Metadata:      map[string]string{},
	}
	tempoSet := false
	meterSet := false
	var perTrack [][]Note
	for _, tr := range mf.Tracks {
		var absTicks int64
		open := map[uint8][]openNote{}
		var notes []Note
		for _, ev := range tr {
			absTicks += int64(ev.Delta)
			msg := ev.Message
			var ch, key, vel uint8
			var num, den uint8
			var bpm float64
			var text string
			switch {
			case msg.GetMetaTempo(&bpm):
				if !tempoSet && bpm > 0 {
					s.Tempo = clampTempo(bpm)
					tempoSet = true
				}
			case msg.GetMetaMeter(&num, &den):
				ts := TimeSignature{Numerator: int(num), Denominator: int(den)}
				if !meterSet && validMeter(ts) {
					s.TimeSignature = ts
					meterSet = true
				}
			case msg.GetMetaTrackName(&text):
				if s.Title == "" {
					s.Title = strings.TrimSpace(text)
				}
			case msg.GetNoteOn(&ch, &key, &vel) && vel > 0:
				sec := float64(mf.TimeAt(absTicks)) / 1e6
				open[key] = append(open[key], openNote{
					start:    sec,
					velocity: float64(vel) / 127,
				})
			case msg.GetNoteOff(&ch, &key, &vel), msg.GetNoteOn(&ch, &key, &vel):
				stack := open[key]
				if len(stack) == 0 {
					continue
				}
				on := stack[0]
				open[key] = stack[1:]
				if key < MinMIDI || key > MaxMIDI {
					continue
				}
				sec := float64(mf.TimeAt(absTicks)) / 1e6
				dur := round3(sec - on.start)
				if dur <= 0 {
					continue
				}
				notes = append(notes, Note{
					Pitch:    MIDIName(int(key)),
					Start:    round3(on.start),
					Duration: dur,
					Velocity: round3(on.velocity),
				})
			}
		}
		perTrack = append(perTrack, notes)
	}
	sounding := 0
	for _, notes := range perTrack {
		if len(notes) == 0 {
			continue
		}
		hand := Hand("")
		switch sounding {
		case 0:
			hand = HandRight
		case 1:
			hand = HandLeft
		}
		sounding++
		for i := range notes {
			notes[i].Hand = hand
		}
		s.Notes = append(s.Notes, notes...)
	}
	if len(s.Notes) == 0 {
		return nil, fmt.Errorf("read midi: no notes found")
	}
	sortNotes(s.Notes)
	for _, n := range s.Notes {
		if n.End() > s.Duration {
			s.Duration = n.End()
		}
	}
	s.Duration = round3(s.Duration)
	return s, nil
}

// FromSMFFile reads and converts a .mid file from disk.
func FromSMFFile(path string) (*Score, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read midi: %w", err)
	}
	defer f.Close()
	return FromSMF(f)
}

func clampTempo(bpm float64) float64 {
	if bpm < MinTempo {
		return MinTempo
	}
	if bpm > MaxTempo {
		return MaxTempo
	}
	return bpm
}

func validMeter(ts TimeSignature) bool {
	if ts.Numerator < 2 || ts.Numerator > 12 {
		return false
	}
	switch ts.Denominator {
	case 2, 4, 8, 16:
		return true
	}
	return false
}
