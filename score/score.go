// Package score holds the animation-data model the playback engine consumes:
// notes with pitch names and second-based timing, score metadata, validation,
// the JSON and Standard MIDI File codecs, and the pure timeline query.
package score

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Tempo bounds accepted by validation, in beats per minute.
const (
	MinTempo = 40
	MaxTempo = 300
)

// Hand marks which hand plays a note in the falling-notes view.
type Hand string

const (
	HandLeft  Hand = "left"
	HandRight Hand = "right"
)

// Note is a single key press. Times are seconds from the start of the piece,
// velocity is 0..1, finger is 1..5 with 0 meaning unassigned. Notes are value
// types and treated as immutable once a score is loaded.
type Note struct {
	Pitch    string  `json:"pitch"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
	Velocity float64 `json:"velocity"`
	Hand     Hand    `json:"hand,omitempty"`
	Finger   int     `json:"finger,omitempty"`
}

// End returns the time the note stops sounding.
func (n Note) End() float64 { return n.Start + n.Duration }

// TimeSignature with a numerator of 2..12 beats per bar and a denominator
// of 2, 4, 8 or 16.
type TimeSignature struct {
	Numerator   int `json:"numerator"`
	Denominator int `json:"denominator"`
}

func (ts TimeSignature) String() string {
	return strconv.Itoa(ts.Numerator) + "/" + strconv.Itoa(ts.Denominator)
}

// ParseTimeSignature parses "4/4" style strings.
func ParseTimeSignature(s string) (TimeSignature, error) {
	num, den, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return TimeSignature{}, fmt.Errorf("time signature %q: want N/D", s)
	}
	n, err := strconv.Atoi(strings.TrimSpace(num))
	if err != nil {
		return TimeSignature{}, fmt.Errorf("time signature %q: bad numerator", s)
	}
	d, err := strconv.Atoi(strings.TrimSpace(den))
	if err != nil {
		return TimeSignature{}, fmt.Errorf("time signature %q: bad denominator", s)
	}
	return TimeSignature{Numerator: n, Denominator: d}, nil
}

// Score is one piece of animation data: the ordered notes plus the metadata
// the engine and UI need. Duration is the total length in seconds; Tempo is
// the nominal BPM the piece was transcribed at (playback speed scales it).
type Score struct {
	Version       int
	Title         string
	Composer      string
	Duration      float64
	Tempo         float64
	TimeSignature TimeSignature
	KeySignature  string
	Notes         []Note
	Metadata      map[string]string
}

// BeatDuration returns seconds per beat at the score's nominal tempo.
func (s *Score) BeatDuration() float64 {
	if s.Tempo <= 0 {
		return 0
	}
	return 60.0 / s.Tempo
}

// BeatsPerBar returns the time signature numerator, defaulting to 4 when the
// signature is unset.
func (s *Score) BeatsPerBar() int {
	if s.TimeSignature.Numerator <= 0 {
		return 4
	}
	return s.TimeSignature.Numerator
}

// sortNotes orders notes by start time, breaking ties by pitch name so
// decoding is deterministic.
func sortNotes(notes []Note) {
	sort.SliceStable(notes, func(i, j int) bool {
		if notes[i].Start != notes[j].Start {
			return notes[i].Start < notes[j].Start
		}
		return notes[i].Pitch < notes[j].Pitch
	})
}
