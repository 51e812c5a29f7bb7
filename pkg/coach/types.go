package coach

// Classification is the per-beat grading outcome.
type Classification int

const (
	// Correct means an in-tolerance pitch was sustained at some point
	// during the beat.
	Correct Classification = iota
	// Incorrect means pitch was detected but never within tolerance.
	Incorrect
	// Missed means no usable pitch was detected during the beat.
	Missed
)

func (c Classification) String() string {
	switch c {
	case Correct:
		return "correct"
	case Incorrect:
		return "incorrect"
	case Missed:
		return "missed"
	default:
		return "unknown"
	}
}

// StringName identifies the violin string an element is played on.
type StringName int

const (
	StringUnknown StringName = iota
	StringG
	StringD
	StringA
	StringE
)

// Articulation marks how an element is attacked.
type Articulation int

const (
	ArticulationNone Articulation = iota
	ArticulationLegato
	ArticulationStaccato
	ArticulationAccent
)

// Dynamic is the notated loudness of an element.
type Dynamic int

const (
	DynamicNone Dynamic = iota
	DynamicPP
	DynamicP
	DynamicMP
	DynamicMF
	DynamicF
	DynamicFF
)

// MusicalElement identifies one gradable pitch event in performance order.
// Immutable once built.
type MusicalElement struct {
	MIDIPitch    int          // 69 = A4
	Accidental   int          // semitone alteration as notated; 0 = natural
	Dynamic      Dynamic      // optional
	Articulation Articulation // optional
	String       StringName   // optional
	Position     int          // left-hand position; 0/1 = first position
}

// Octave returns the scientific-pitch octave of the element (C4 = middle C).
func (e MusicalElement) Octave() int {
	return e.MIDIPitch/12 - 1
}

// ScoreSequence is an ordered list of gradable elements plus the indices at
// which each measure begins. Built once per loaded score and treated as
// immutable for the whole session; replaced wholesale on reload.
type ScoreSequence struct {
	Name     string
	Elements []MusicalElement
	// Boundaries[i] is the index into Elements where measure i+1 begins.
	// Monotonically non-decreasing, Boundaries[0] == 0.
	Boundaries []int
}

// MeasureCount returns the number of measures in the sequence.
func (s *ScoreSequence) MeasureCount() int {
	return len(s.Boundaries)
}

// PitchSample is one detected pitch observation from the capture
// collaborator. Ephemeral; never retained beyond the current comparison.
type PitchSample struct {
	FrequencyHz float64
	Confidence  float64 // detector clarity in [0, 1]
	TimestampMs float64 // capture-relative time
}

// GradingEvent is emitted once per completed beat.
type GradingEvent struct {
	BeatIndex      int            `json:"beat_index"`
	Classification Classification `json:"classification"`
}

// TargetChangedEvent is emitted whenever the graded target changes: cursor
// advance, measure jump, reset, or idle note change.
type TargetChangedEvent struct {
	Element     MusicalElement `json:"element"`
	FrequencyHz float64        `json:"frequency_hz"`
	DisplayName string         `json:"display_name"`
}

// TempoChangedEvent is emitted whenever the dynamic tempo controller
// adjusts the effective tempo.
type TempoChangedEvent struct {
	BPM int `json:"bpm"`
}

// IntonationEvent carries the octave-normalized cents offset of the latest
// usable sample, for visual feedback only. Grading always uses the raw
// offset.
type IntonationEvent struct {
	Cents       float64 `json:"cents"`
	TargetHz    float64 `json:"target_hz"`
	DetectedHz  float64 `json:"detected_hz"`
	TargetName  string  `json:"target_name"`
	WithinRange bool    `json:"within_range"`
}
