package score

// Timeline is the view of a score at one instant: the notes sounding now and
// the notes starting or stopping within the lookahead window.
type Timeline struct {
	Time    float64
	Active  []Note
	ToStart []Note
	ToStop  []Note
}

// TimelineAt computes the timeline at time t with the given lookahead
// horizon in seconds. Pure and deterministic; safe for any t including
// values outside [0, duration] and for a nil score. A note is active iff
// start <= t < start+duration. ToStart holds notes whose start falls in
// [t, t+lookahead); ToStop holds notes whose end falls in the same window.
func TimelineAt(s *Score, t, lookahead float64) Timeline {
	tl := Timeline{Time: t}
	if s == nil {
		return tl
	}
	horizon := t + lookahead
	for _, n := range s.Notes {
		if n.Start <= t && t < n.End() {
			tl.Active = append(tl.Active, n)
		}
		if n.Start >= t && n.Start < horizon {
			tl.ToStart = append(tl.ToStart, n)
		}
		if end := n.End(); end >= t && end < horizon {
			tl.ToStop = append(tl.ToStop, n)
		}
	}
	return tl
}
