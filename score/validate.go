package score

import (
	"fmt"
	"sort"
	"strings"
)

// Issue is a single validation finding, fatal or not.
type Issue struct {
	Field string
	Msg   string
}

func (i Issue) String() string { return i.Field + ": " + i.Msg }

// ValidationError aggregates the fatal issues that make a score unloadable.
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 1 {
		return "invalid score: " + e.Issues[0].String()
	}
	parts := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		parts[i] = issue.String()
	}
	return fmt.Sprintf("invalid score (%d problems): %s", len(e.Issues), strings.Join(parts, "; "))
}

// Validate checks a score against the data model. Fatal problems (missing
// title or composer, non-positive duration, tempo outside 40..300, malformed
// time signature, invalid pitch, velocity outside 0..1, negative start,
// non-positive note duration, finger outside 1..5) come back as a
// *ValidationError. Warnings are non-fatal: overlapping same-pitch notes and
// notes running past the score duration. A score with a non-nil error must
// not reach the engine.
func Validate(s *Score) (warnings []Issue, err error) {
	var fatal []Issue
	add := func(field, format string, args ...any) {
		fatal = append(fatal, Issue{Field: field, Msg: fmt.Sprintf(format, args...)})
	}
	if s == nil {
		add("score", "nil score")
		return nil, &ValidationError{Issues: fatal}
	}
	if strings.TrimSpace(s.Title) == "" {
		add("title", "missing")
	}
	if strings.TrimSpace(s.Composer) == "" {
		add("composer", "missing")
	}
	if s.Duration <= 0 {
		add("duration", "must be positive, got %g", s.Duration)
	}
	if s.Tempo < MinTempo || s.Tempo > MaxTempo {
		add("tempo", "%g BPM outside %d..%d", s.Tempo, MinTempo, MaxTempo)
	}
	if ts := s.TimeSignature; ts.Numerator < 2 || ts.Numerator > 12 {
		add("timeSignature", "numerator %d outside 2..12", ts.Numerator)
	}
	switch s.TimeSignature.Denominator {
	case 2, 4, 8, 16:
	default:
		add("timeSignature", "denominator %d not one of 2, 4, 8, 16", s.TimeSignature.Denominator)
	}
	for i, n := range s.Notes {
		field := fmt.Sprintf("notes[%d]", i)
		if _, perr := ParsePitch(n.Pitch); perr != nil {
			add(field+".pitch", "%v", perr)
		}
		if n.Start < 0 {
			add(field+".start", "negative start %g", n.Start)
		}
		if n.Duration <= 0 {
			add(field+".duration", "must be positive, got %g", n.Duration)
		}
		if n.Velocity < 0 || n.Velocity > 1 {
			add(field+".velocity", "%g outside 0..1", n.Velocity)
		}
		if n.Finger != 0 && (n.Finger < 1 || n.Finger > 5) {
			add(field+".finger", "%d outside 1..5", n.Finger)
		}
		if n.Hand != "" && n.Hand != HandLeft && n.Hand != HandRight {
			add(field+".hand", "unknown hand %q", n.Hand)
		}
		if s.Duration > 0 && n.Duration > 0 && n.End() > s.Duration+1e-9 {
			warnings = append(warnings, Issue{
				Field: field,
				Msg:   fmt.Sprintf("note ends at %g, past the score duration %g", n.End(), s.Duration),
			})
		}
	}
	warnings = append(warnings, overlapWarnings(s.Notes)...)
	if len(fatal) > 0 {
		return warnings, &ValidationError{Issues: fatal}
	}
	return warnings, nil
}

// overlapWarnings flags pairs of same-pitch notes whose sounding windows
// intersect. Output order is deterministic (pitches alphabetical, then
// start order).
func overlapWarnings(notes []Note) []Issue {
	byPitch := map[string][]int{}
	for i, n := range notes {
		byPitch[n.Pitch] = append(byPitch[n.Pitch], i)
	}
	pitches := make([]string, 0, len(byPitch))
	for p, idxs := range byPitch {
		if len(idxs) > 1 {
			pitches = append(pitches, p)
		}
	}
	sort.Strings(pitches)
	var out []Issue
	for _, p := range pitches {
		idxs := byPitch[p]
		sort.SliceStable(idxs, func(a, b int) bool {
			return notes[idxs[a]].Start < notes[idxs[b]].Start
		})
		for k := 1; k < len(idxs); k++ {
			prev, cur := notes[idxs[k-1]], notes[idxs[k]]
			if cur.Start < prev.End() {
				out = append(out, Issue{
					Field: fmt.Sprintf("notes[%d]", idxs[k]),
					Msg:   fmt.Sprintf("%s overlaps the previous %s note starting at %g", p, p, prev.Start),
				})
			}
		}
	}
	return out
}
