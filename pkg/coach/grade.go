package coach

import (
	"math"
	"time"

	"github.com/andywang514/violin-coach/pkg/models"
)

// GradeOptions configures an offline grading pass.
type GradeOptions struct {
	BPM              int
	DynamicTempo     bool
	ReferencePitch   float64
	ClarityThreshold float64
	MinFrequency     float64
	MaxFrequency     float64
}

func (o *GradeOptions) fillDefaults(cfg *Config) {
	if o.BPM <= 0 {
		o.BPM = DefaultBaseBPM
	}
	if o.ReferencePitch <= 0 {
		o.ReferencePitch = cfg.ReferencePitch
	}
	if o.ClarityThreshold <= 0 {
		o.ClarityThreshold = cfg.ClarityThreshold
	}
	if o.MinFrequency <= 0 || o.MaxFrequency <= o.MinFrequency {
		o.MinFrequency = cfg.MinFrequency
		o.MaxFrequency = cfg.MaxFrequency
	}
}

// RecordingGrade is the outcome of replaying a recorded sample stream
// against a score sequence.
type RecordingGrade struct {
	Started      bool // false when the stable-accuracy gate was never satisfied
	Events       []GradingEvent
	TempoChanges []TempoChangedEvent
	Records      []models.BeatRecord
	Correct      int
	Incorrect    int
	Missed       int
	FinalBPM     int
}

// gradeRecording replays samples through the same window, threshold, and
// tempo components the live session uses, with time taken from the sample
// timestamps instead of a wall clock. Samples must be ordered by timestamp.
//
// Beats anchor at the instant the opening element has been matched by an
// uninterrupted in-tolerance streak of stableAccuracyHold, mirroring the
// live transport's AwaitingFirstCorrect gate.
func gradeRecording(seq *ScoreSequence, samples []PitchSample, opts GradeOptions) (*RecordingGrade, error) {
	if seq == nil || len(seq.Elements) == 0 {
		return nil, ErrEmptySequence
	}

	grade := &RecordingGrade{FinalBPM: opts.BPM}

	usable := func(s PitchSample) bool {
		return s.Confidence >= opts.ClarityThreshold &&
			s.FrequencyHz >= opts.MinFrequency && s.FrequencyHz <= opts.MaxFrequency
	}
	offsetFor := func(s PitchSample, el *MusicalElement) (float64, bool) {
		targetHz := FrequencyForPitch(el.MIDIPitch, opts.ReferencePitch)
		off, err := CentsOffset(s.FrequencyHz, targetHz)
		if err != nil {
			return 0, false
		}
		return off, true
	}

	// Find the beat anchor: the first moment an accurate streak against the
	// opening element has lasted stableAccuracyHold.
	holdMs := float64(stableAccuracyHold / time.Millisecond)
	first := &seq.Elements[0]
	firstTol := Tolerance(first)
	var anchorMs float64
	var stableStart float64
	stable := false
	found := false
	idx := 0
	for ; idx < len(samples); idx++ {
		s := samples[idx]
		if !usable(s) {
			continue
		}
		off, ok := offsetFor(s, first)
		if !ok {
			continue
		}
		if math.Abs(off) > firstTol {
			stable = false
			continue
		}
		if !stable {
			stable = true
			stableStart = s.TimestampMs
		}
		if s.TimestampMs-stableStart >= holdMs {
			anchorMs = s.TimestampMs
			found = true
			break
		}
	}
	if !found {
		return grade, nil
	}
	grade.Started = true

	var tempo tempoState
	tempo.setBase(opts.BPM)
	tempo.reset()

	epoch := time.Unix(0, 0)
	var window gradingWindow
	beatStart := anchorMs
	cursor := 0

	for cursor < len(seq.Elements) {
		el := &seq.Elements[cursor]
		tol := Tolerance(el)
		beatMs := float64(secondsPerBeat(tempo.currentBpm) / time.Millisecond)
		beatEnd := beatStart + beatMs

		window.reset()
		for ; idx < len(samples) && samples[idx].TimestampMs < beatEnd; idx++ {
			s := samples[idx]
			if s.TimestampMs < beatStart || !usable(s) {
				continue
			}
			off, ok := offsetFor(s, el)
			if !ok {
				continue
			}
			window.observe(off, tol)
		}

		cls := window.classify()
		grade.Events = append(grade.Events, GradingEvent{BeatIndex: cursor, Classification: cls})
		grade.Records = append(grade.Records, models.BeatRecord{
			BeatIndex:      cursor,
			Classification: cls.String(),
			BPM:            tempo.currentBpm,
			MIDIPitch:      el.MIDIPitch,
		})
		switch cls {
		case Correct:
			grade.Correct++
		case Incorrect:
			grade.Incorrect++
		case Missed:
			grade.Missed++
		}

		if opts.DynamicTempo {
			now := epoch.Add(time.Duration(beatEnd * float64(time.Millisecond)))
			if tempo.onClassification(cls, now) {
				grade.TempoChanges = append(grade.TempoChanges, TempoChangedEvent{BPM: tempo.currentBpm})
			}
		}

		cursor++
		beatStart = beatEnd
	}

	grade.FinalBPM = tempo.currentBpm
	return grade, nil
}
