package coach

import (
	"testing"
)

// sampleRun appends samples at a fixed frequency every stepMs from fromMs
// up to (not including) toMs.
func sampleRun(samples []PitchSample, freqHz, fromMs, toMs, stepMs float64) []PitchSample {
	for t := fromMs; t < toMs; t += stepMs {
		samples = append(samples, PitchSample{
			FrequencyHz: freqHz,
			Confidence:  0.9,
			TimestampMs: t,
		})
	}
	return samples
}

func defaultGradeOptions(bpm int) GradeOptions {
	opts := GradeOptions{BPM: bpm}
	opts.fillDefaults(defaultConfig())
	return opts
}

func TestGradeRecordingEmptySequence(t *testing.T) {
	if _, err := gradeRecording(&ScoreSequence{}, nil, defaultGradeOptions(60)); err != ErrEmptySequence {
		t.Errorf("Expected ErrEmptySequence, got %v", err)
	}
}

func TestGradeRecordingNeverStarted(t *testing.T) {
	seq := scaleSequence(69)

	// Low-confidence samples never satisfy the opening gate
	var samples []PitchSample
	for ms := 0.0; ms < 2000; ms += 10 {
		samples = append(samples, PitchSample{FrequencyHz: 440, Confidence: 0.1, TimestampMs: ms})
	}

	grade, err := gradeRecording(seq, samples, defaultGradeOptions(60))
	if err != nil {
		t.Fatalf("gradeRecording failed: %v", err)
	}
	if grade.Started {
		t.Error("Grade reports started despite unusable samples")
	}
	if len(grade.Events) != 0 {
		t.Errorf("Got %d events from an unstarted grade", len(grade.Events))
	}
}

func TestGradeRecordingScenario(t *testing.T) {
	// Three beats at 60 BPM: A4 held cleanly, silence, then a pitch far
	// off the third target
	seq := scaleSequence(69, 71, 72)
	a4 := FrequencyForPitch(69, DefaultReferencePitch)

	var samples []PitchSample
	// Hold A4 from the start; the gate opens at 250ms and the first beat
	// runs until 1250ms
	samples = sampleRun(samples, a4, 0, 1200, 10)
	// Beat 2 (1250-2250ms) is silent. Beat 3 (2250-3250ms) hears A4 again,
	// which is far from the C5 target but a real detected pitch
	samples = sampleRun(samples, a4, 2300, 3200, 10)

	grade, err := gradeRecording(seq, samples, defaultGradeOptions(60))
	if err != nil {
		t.Fatalf("gradeRecording failed: %v", err)
	}
	if !grade.Started {
		t.Fatal("Gate never opened on a clean A4 hold")
	}

	want := []Classification{Correct, Missed, Incorrect}
	if len(grade.Events) != len(want) {
		t.Fatalf("Got %d events, want %d", len(grade.Events), len(want))
	}
	for i, ev := range grade.Events {
		if ev.Classification != want[i] {
			t.Errorf("Beat %d classified %v, want %v", i, ev.Classification, want[i])
		}
	}
	if grade.Correct != 1 || grade.Missed != 1 || grade.Incorrect != 1 {
		t.Errorf("Counts = %d/%d/%d, want 1/1/1", grade.Correct, grade.Incorrect, grade.Missed)
	}
	if len(grade.Records) != 3 {
		t.Errorf("Got %d beat records, want 3", len(grade.Records))
	}
	if grade.FinalBPM != 60 {
		t.Errorf("FinalBPM = %d, want 60 without dynamic tempo", grade.FinalBPM)
	}
}

func TestGradeRecordingDynamicTempo(t *testing.T) {
	// Silence after the gate opens produces missed beats, which the
	// feedback loop answers by slowing down
	seq := scaleSequence(69, 71, 72, 74)
	a4 := FrequencyForPitch(69, DefaultReferencePitch)

	var samples []PitchSample
	samples = sampleRun(samples, a4, 0, 1200, 10)

	opts := defaultGradeOptions(80)
	opts.DynamicTempo = true
	grade, err := gradeRecording(seq, samples, opts)
	if err != nil {
		t.Fatalf("gradeRecording failed: %v", err)
	}
	if !grade.Started {
		t.Fatal("Gate never opened")
	}

	if len(grade.TempoChanges) == 0 {
		t.Fatal("Expected tempo changes from consecutive misses")
	}
	if grade.TempoChanges[0].BPM != 72 {
		t.Errorf("First tempo change = %d, want 72", grade.TempoChanges[0].BPM)
	}
	if grade.FinalBPM >= 80 {
		t.Errorf("FinalBPM = %d, expected a slowdown below 80", grade.FinalBPM)
	}
}

func TestGradeRecordingLateStart(t *testing.T) {
	// Nothing usable for two seconds, then a clean hold: beats anchor at
	// the hold, not at the start of the recording
	seq := scaleSequence(69, 69)
	a4 := FrequencyForPitch(69, DefaultReferencePitch)

	var samples []PitchSample
	samples = sampleRun(samples, a4, 2000, 4500, 10)

	grade, err := gradeRecording(seq, samples, defaultGradeOptions(60))
	if err != nil {
		t.Fatalf("gradeRecording failed: %v", err)
	}
	if !grade.Started {
		t.Fatal("Gate never opened on the late hold")
	}
	if grade.Correct != 2 {
		t.Errorf("Correct = %d, want 2", grade.Correct)
	}
}
