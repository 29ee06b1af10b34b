package score

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// defaultVelocity fills notes that carry no velocity, matching the upstream
// animation-data converter.
const defaultVelocity = 0.8

// scoreJSON is the wire shape. The canonical form keeps title and composer at
// the top level and names pitches; documents produced by the upstream
// converter nest title/composer under metadata and identify notes by MIDI
// number only. The decoder accepts both, the encoder emits the canonical form
// with both pitch names and MIDI numbers.
type scoreJSON struct {
	Version       int            `json:"version,omitempty"`
	Title         string         `json:"title,omitempty"`
	Composer      string         `json:"composer,omitempty"`
	Duration      float64        `json:"duration"`
	Tempo         float64        `json:"tempo,omitempty"`
	TimeSignature string         `json:"timeSignature,omitempty"`
	KeySignature  string         `json:"keySignature,omitempty"`
	GeneratedAt   string         `json:"generated_at,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	Notes         []noteJSON     `json:"notes"`
}

type noteJSON struct {
	Pitch    string   `json:"pitch,omitempty"`
	MIDI     *int     `json:"midi,omitempty"`
	Start    float64  `json:"start"`
	Duration float64  `json:"duration"`
	Velocity *float64 `json:"velocity,omitempty"`
	Hand     string   `json:"hand,omitempty"`
	Finger   int      `json:"finger,omitempty"`
}

// UnmarshalScore decodes animation-data JSON into a Score. Notes come back
// sorted by start time. The result is not yet validated; run Validate (or
// let Player.LoadScore do it) before playback.
func UnmarshalScore(data []byte) (*Score, error) {
	var raw scoreJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode score: %w", err)
	}
	s := &Score{
		Version:      raw.Version,
		Title:        raw.Title,
		Composer:     raw.Composer,
		Duration:     raw.Duration,
		Tempo:        raw.Tempo,
		KeySignature: raw.KeySignature,
		Metadata:     map[string]string{},
	}
	if s.Version == 0 {
		s.Version = 1
	}
	for k, v := range raw.Metadata {
		s.Metadata[k] = metaString(v)
	}
	if s.Title == "" {
		s.Title = s.Metadata["title"]
	}
	if s.Composer == "" {
		s.Composer = s.Metadata["composer"]
	}
	if raw.GeneratedAt != "" {
		s.Metadata["generated_at"] = raw.GeneratedAt
	}
	if s.Tempo == 0 {
		s.Tempo = 120
	}
	if raw.TimeSignature == "" {
		s.TimeSignature = TimeSignature{Numerator: 4, Denominator: 4}
	} else {
		ts, err := ParseTimeSignature(raw.TimeSignature)
		if err != nil {
			return nil, fmt.Errorf("decode score: %w", err)
		}
		s.TimeSignature = ts
	}
	s.Notes = make([]Note, 0, len(raw.Notes))
	for i, rn := range raw.Notes {
		n := Note{
			Start:    rn.Start,
			Duration: rn.Duration,
			Velocity: defaultVelocity,
			Finger:   rn.Finger,
		}
		switch {
		case rn.Pitch != "":
			n.Pitch = rn.Pitch
		case rn.MIDI != nil:
			n.Pitch = MIDIName(*rn.MIDI)
		default:
			return nil, fmt.Errorf("decode score: notes[%d]: neither pitch nor midi present", i)
		}
		if rn.Velocity != nil {
			n.Velocity = *rn.Velocity
		}
		switch rn.Hand {
		case "", string(HandLeft), string(HandRight):
			n.Hand = Hand(rn.Hand)
		case "L", "l":
			n.Hand = HandLeft
		case "R", "r":
			n.Hand = HandRight
		default:
			return nil, fmt.Errorf("decode score: notes[%d]: unknown hand %q", i, rn.Hand)
		}
		s.Notes = append(s.Notes, n)
	}
	sortNotes(s.Notes)
	return s, nil
}

// MarshalScore encodes a score in the canonical JSON shape, times rounded to
// millisecond precision like the upstream converter.
func MarshalScore(s *Score) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("encode score: nil score")
	}
	raw := scoreJSON{
		Version:       s.Version,
		Title:         s.Title,
		Composer:      s.Composer,
		Duration:      round3(s.Duration),
		Tempo:         s.Tempo,
		TimeSignature: s.TimeSignature.String(),
		KeySignature:  s.KeySignature,
		Notes:         make([]noteJSON, 0, len(s.Notes)),
	}
	if raw.Version == 0 {
		raw.Version = 1
	}
	if len(s.Metadata) > 0 {
		raw.Metadata = make(map[string]any, len(s.Metadata))
		for k, v := range s.Metadata {
			raw.Metadata[k] = v
		}
	}
	for _, n := range s.Notes {
		nj := noteJSON{
			Pitch:    n.Pitch,
			Start:    round3(n.Start),
			Duration: round3(n.Duration),
			Hand:     string(n.Hand),
			Finger:   n.Finger,
		}
		if midi, err := ParsePitch(n.Pitch); err == nil {
			m := midi
			nj.MIDI = &m
		}
		v := round3(n.Velocity)
		nj.Velocity = &v
		raw.Notes = append(raw.Notes, nj)
	}
	return json.MarshalIndent(raw, "", "  ")
}

func metaString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}

func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
