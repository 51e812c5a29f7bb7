package coach

// measureStart returns the boundary index where the given 1-based measure
// begins, after clamping the measure number into [1, MeasureCount].
func (s *ScoreSequence) measureStart(measure int) int {
	if len(s.Boundaries) == 0 {
		return 0
	}
	if measure < 1 {
		measure = 1
	}
	if measure > len(s.Boundaries) {
		measure = len(s.Boundaries)
	}
	return s.Boundaries[measure-1]
}

// measureLen returns the number of gradable elements in the 1-based
// measure. All-rest measures have length zero.
func (s *ScoreSequence) measureLen(measure int) int {
	start := s.measureStart(measure)
	if measure >= len(s.Boundaries) {
		return len(s.Elements) - start
	}
	return s.Boundaries[measure] - start
}

// SeekMeasure resolves a 1-based measure number to the cursor index of its
// first gradable element. When the requested measure contains only rests,
// the cursor advances to the next measure that has elements. Deterministic
// and idempotent for an unchanged sequence; independent of any prior
// transport activity.
func (s *ScoreSequence) SeekMeasure(measure int) int {
	if len(s.Boundaries) == 0 || len(s.Elements) == 0 {
		return 0
	}
	if measure < 1 {
		measure = 1
	}
	if measure > len(s.Boundaries) {
		measure = len(s.Boundaries)
	}
	for m := measure; m <= len(s.Boundaries); m++ {
		if s.measureLen(m) > 0 {
			return s.measureStart(m)
		}
	}
	// Nothing gradable at or after the requested measure; fall back to its
	// boundary clamped into the element range.
	idx := s.measureStart(measure)
	if idx >= len(s.Elements) {
		idx = len(s.Elements) - 1
	}
	return idx
}

// pickIdleTarget chooses the effective target among simultaneous candidate
// elements while the transport is idle: the previous target wins if it is
// still among the candidates, otherwise the highest MIDI pitch.
func pickIdleTarget(candidates []MusicalElement, previous *MusicalElement) (MusicalElement, bool) {
	if len(candidates) == 0 {
		return MusicalElement{}, false
	}
	if previous != nil {
		for _, c := range candidates {
			if c.MIDIPitch == previous.MIDIPitch {
				return c, true
			}
		}
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.MIDIPitch > best.MIDIPitch {
			best = c
		}
	}
	return best, true
}
