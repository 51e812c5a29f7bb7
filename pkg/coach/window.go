package coach

import "math"

// gradingWindow accumulates pitch observations for the beat currently being
// graded. The sampling goroutine only ever raises the two flags; the beat
// scheduler is the sole reader and resetter. Flags are monotonic within a
// beat: once raised they stay raised until the next reset.
type gradingWindow struct {
	hadAnyPitch      bool
	hadAccuratePitch bool
}

func (w *gradingWindow) reset() {
	w.hadAnyPitch = false
	w.hadAccuratePitch = false
}

// observe records one usable sample's cents offset against the tolerance of
// the current target element. Callers have already filtered out samples
// with no information (low clarity, out of range, no target).
func (w *gradingWindow) observe(centsOff, tolerance float64) {
	w.hadAnyPitch = true
	if math.Abs(centsOff) <= tolerance {
		w.hadAccuratePitch = true
	}
}

// classify finalizes the window.
func (w *gradingWindow) classify() Classification {
	switch {
	case w.hadAccuratePitch:
		return Correct
	case w.hadAnyPitch:
		return Incorrect
	default:
		return Missed
	}
}
