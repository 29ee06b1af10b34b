package score

import "strings"

// Built-in demo scores, handy for trying playback, follow and practice flow
// without importing anything.

type demoStep struct {
	pitch  string
	beats  float64
	finger int
}

func demoNotes(tempo float64, hand Hand, steps []demoStep) []Note {
	beat := 60 / tempo
	notes := make([]Note, 0, len(steps))
	at := 0.0
	for _, st := range steps {
		notes = append(notes, Note{
			Pitch:    st.pitch,
			Start:    round3(at),
			Duration: round3(st.beats * beat),
			Velocity: defaultVelocity,
			Hand:     hand,
			Finger:   st.finger,
		})
		at += st.beats * beat
	}
	return notes
}

func demoScore(title string, tempo float64, hands ...[]Note) *Score {
	s := &Score{
		Version:       1,
		Title:         title,
		Composer:      "Traditional",
		Tempo:         tempo,
		TimeSignature: TimeSignature{Numerator: 4, Denominator: 4},
		KeySignature:  "C Major",
		Metadata:      map[string]string{"source": "builtin"},
	}
	for _, notes := range hands {
		s.Notes = append(s.Notes, notes...)
	}
	sortNotes(s.Notes)
	for _, n := range s.Notes {
		if n.End() > s.Duration {
			s.Duration = n.End()
		}
	}
	s.Duration = round3(s.Duration)
	return s
}

func buildTwinkle() *Score {
	const tempo = 100
	melody := demoNotes(tempo, HandRight, []demoStep{
		{"C4", 1, 1}, {"C4", 1, 1}, {"G4", 1, 5}, {"G4", 1, 5},
		{"A4", 1, 5}, {"A4", 1, 5}, {"G4", 2, 4},
		{"F4", 1, 4}, {"F4", 1, 4}, {"E4", 1, 3}, {"E4", 1, 3},
		{"D4", 1, 2}, {"D4", 1, 2}, {"C4", 2, 1},
	})
	bass := demoNotes(tempo, HandLeft, []demoStep{
		{"C3", 2, 5}, {"C3", 2, 5}, {"F3", 2, 2}, {"C3", 2, 5},
		{"F3", 2, 2}, {"C3", 2, 5}, {"G3", 2, 1}, {"C3", 2, 5},
	})
	return demoScore("Twinkle Twinkle Little Star", tempo, melody, bass)
}

func buildScale() *Score {
	const tempo = 90
	right := demoNotes(tempo, HandRight, []demoStep{
		{"C4", 1, 1}, {"D4", 1, 2}, {"E4", 1, 3}, {"F4", 1, 1},
		{"G4", 1, 2}, {"A4", 1, 3}, {"B4", 1, 4}, {"C5", 1, 5},
		{"B4", 1, 4}, {"A4", 1, 3}, {"G4", 1, 2}, {"F4", 1, 1},
		{"E4", 1, 3}, {"D4", 1, 2}, {"C4", 1, 1},
	})
	left := demoNotes(tempo, HandLeft, []demoStep{
		{"C3", 1, 5}, {"D3", 1, 4}, {"E3", 1, 3}, {"F3", 1, 2},
		{"G3", 1, 1}, {"A3", 1, 3}, {"B3", 1, 2}, {"C4", 1, 1},
		{"B3", 1, 2}, {"A3", 1, 3}, {"G3", 1, 1}, {"F3", 1, 2},
		{"E3", 1, 3}, {"D3", 1, 4}, {"C3", 1, 5},
	})
	return demoScore("C Major Scale", tempo, right, left)
}

var demoBuilders = map[string]func() *Score{
	"twinkle": buildTwinkle,
	"scale":   buildScale,
}

// BuiltinNames lists the available demo scores in stable order.
func BuiltinNames() []string {
	return []string{"twinkle", "scale"}
}

// Builtin returns a fresh copy of the named demo score. Every call builds a
// new Score so callers may modify the result freely.
func Builtin(name string) (*Score, bool) {
	build, ok := demoBuilders[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, false
	}
	return build(), true
}
