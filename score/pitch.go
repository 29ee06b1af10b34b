package score

import (
	"fmt"
	"strconv"
)

// MIDI note numbers of the 88-key piano range, A0 through C8.
const (
	MinMIDI = 21
	MaxMIDI = 108
)

var letterSemitones = map[byte]int{
	'C': 0, 'D': 2, 'E': 4, 'F': 5, 'G': 7, 'A': 9, 'B': 11,
}

var sharpNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// ParsePitch converts a pitch name such as "C4", "F#3" or "Bb2" into its MIDI
// note number. The grammar is a note letter A..G (either case), an optional
// '#' or 'b' accidental, and an octave digit 0..8; the result must land on
// the piano (A0..C8).
func ParsePitch(name string) (int, error) {
	if len(name) < 2 {
		return 0, fmt.Errorf("pitch %q: too short", name)
	}
	letter := name[0]
	if letter >= 'a' && letter <= 'g' {
		letter -= 'a' - 'A'
	}
	base, ok := letterSemitones[letter]
	if !ok {
		return 0, fmt.Errorf("pitch %q: bad note letter", name)
	}
	i := 1
	accidental := 0
	switch name[i] {
	case '#':
		accidental = 1
		i++
	case 'b':
		accidental = -1
		i++
	}
	octave, err := strconv.Atoi(name[i:])
	if err != nil {
		return 0, fmt.Errorf("pitch %q: bad octave", name)
	}
	if octave < 0 || octave > 8 {
		return 0, fmt.Errorf("pitch %q: octave %d outside 0..8", name, octave)
	}
	midi := (octave+1)*12 + base + accidental
	if midi < MinMIDI || midi > MaxMIDI {
		return 0, fmt.Errorf("pitch %q: outside the piano range A0..C8", name)
	}
	return midi, nil
}

// MIDIName returns the canonical sharp spelling of a MIDI note number,
// e.g. 61 -> "C#4". The inverse of ParsePitch up to enharmonic spelling.
func MIDIName(midi int) string {
	octave := midi/12 - 1
	return sharpNames[((midi%12)+12)%12] + strconv.Itoa(octave)
}

// ValidPitch reports whether name parses and lands on the piano.
func ValidPitch(name string) bool {
	_, err := ParsePitch(name)
	return err == nil
}
