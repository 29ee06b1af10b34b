package score

import (
	"math"
	"testing"
)

func TestParseTimeSignature(t *testing.T) {
	cases := []struct {
		in   string
		want TimeSignature
	}{
		{"4/4", TimeSignature{4, 4}},
		{"3/8", TimeSignature{3, 8}},
		{" 6 / 8 ", TimeSignature{6, 8}},
	}
	for _, tc := range cases {
		got, err := ParseTimeSignature(tc.in)
		if err != nil {
			t.Fatalf("ParseTimeSignature(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ParseTimeSignature(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
	for _, in := range []string{"", "44", "x/4", "3/y"} {
		if _, err := ParseTimeSignature(in); err == nil {
			t.Fatalf("ParseTimeSignature(%q) succeeded, want error", in)
		}
	}
}

func TestTimeSignatureString(t *testing.T) {
	ts := TimeSignature{Numerator: 6, Denominator: 8}
	if got := ts.String(); got != "6/8" {
		t.Fatalf("got %q, want %q", got, "6/8")
	}
}

func TestBeatDuration(t *testing.T) {
	s := &Score{Tempo: 120}
	if got := s.BeatDuration(); math.Abs(got-0.5) > 1e-9 {
		t.Fatalf("got %v, want 0.5", got)
	}
	s.Tempo = 0
	if got := s.BeatDuration(); got != 0 {
		t.Fatalf("got %v for zero tempo, want 0", got)
	}
}

func TestBeatsPerBar(t *testing.T) {
	s := &Score{}
	if got := s.BeatsPerBar(); got != 4 {
		t.Fatalf("unset signature: got %d, want 4", got)
	}
	s.TimeSignature = TimeSignature{Numerator: 3, Denominator: 4}
	if got := s.BeatsPerBar(); got != 3 {
		t.Fatalf("got %d, want 3", got)
	}
}

func TestNoteEnd(t *testing.T) {
	n := Note{Start: 1.5, Duration: 0.25}
	if got := n.End(); math.Abs(got-1.75) > 1e-9 {
		t.Fatalf("got %v, want 1.75", got)
	}
}
