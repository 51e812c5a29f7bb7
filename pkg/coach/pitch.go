package coach

import (
	"errors"
	"fmt"
	"math"
)

// ErrNoTarget signals that no target frequency could be resolved for a
// comparison. Samples compared against a missing target are inert.
var ErrNoTarget = errors.New("no target frequency")

var noteNames = []string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// FrequencyForPitch converts a MIDI pitch number to its equal-tempered
// frequency relative to the reference pitch for A4 (MIDI 69).
func FrequencyForPitch(midiPitch int, refHz float64) float64 {
	if refHz <= 0 {
		refHz = DefaultReferencePitch
	}
	return refHz * math.Pow(2, float64(midiPitch-69)/12)
}

// PitchName renders a MIDI pitch number as a display name like "A4" or "C#5".
func PitchName(midiPitch int) string {
	if midiPitch < 0 || midiPitch > 127 {
		return fmt.Sprintf("midi%d", midiPitch)
	}
	return fmt.Sprintf("%s%d", noteNames[midiPitch%12], midiPitch/12-1)
}

// CentsOffset returns the signed offset of freqHz from targetHz in cents
// (100 cents = one semitone). It returns ErrNoTarget when targetHz is not a
// positive frequency; callers must treat that sample as ungradable.
func CentsOffset(freqHz, targetHz float64) (float64, error) {
	if targetHz <= 0 {
		return 0, ErrNoTarget
	}
	if freqHz <= 0 {
		return 0, fmt.Errorf("non-positive detected frequency %.2f", freqHz)
	}
	return 1200 * math.Log2(freqHz/targetHz), nil
}

// NormalizeCents folds a cents value into the octave-relative window
// (-600, 600]. Used only for display feedback; grading decisions always use
// the raw offset.
func NormalizeCents(c float64) float64 {
	for c > 600 {
		c -= 1200
	}
	for c <= -600 {
		c += 1200
	}
	return c
}
