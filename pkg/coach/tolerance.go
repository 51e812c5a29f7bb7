package coach

// Intonation tolerance bounds in cents.
const (
	MinTolerance  = 5.0
	MaxTolerance  = 50.0
	baseTolerance = 20.0
)

// Tolerance maps an element's attributes to an intonation tolerance in
// cents, always within [MinTolerance, MaxTolerance]. It is total: a nil
// element and unknown attributes degrade to defaults rather than erroring.
//
// High positions, the thin E string, and short staccato attacks all make
// clean intonation harder to both play and measure, so each widens the
// window.
func Tolerance(el *MusicalElement) float64 {
	if el == nil {
		return baseTolerance
	}

	tol := baseTolerance
	switch oct := el.Octave(); {
	case oct >= 6:
		tol = 35
	case oct >= 5:
		tol = 30
	case oct <= 3:
		tol = 25
	}

	if el.Accidental != 0 {
		tol += 5
	}
	if el.Position > 1 {
		tol += 3 * float64(el.Position-1)
	}
	if el.String == StringE {
		tol += 3
	}
	if el.Articulation == ArticulationStaccato {
		tol += 2
	}

	if tol > MaxTolerance {
		tol = MaxTolerance
	}
	if tol < MinTolerance {
		tol = MinTolerance
	}
	return tol
}
