package models

import "time"

// PracticeResult summarizes one graded run through a score sequence.
type PracticeResult struct {
	ID           string    `json:"id"` // UUID
	ScoreName    string    `json:"score_name"`
	BaseBPM      int       `json:"base_bpm"`
	FinalBPM     int       `json:"final_bpm"`
	DynamicTempo bool      `json:"dynamic_tempo"`
	Beats        int       `json:"beats"`
	Correct      int       `json:"correct"`
	Incorrect    int       `json:"incorrect"`
	Missed       int       `json:"missed"`
	DurationMs   int       `json:"duration_ms"`
	CreatedAt    time.Time `json:"created_at"`
}

// Accuracy returns the fraction of beats graded correct, in [0, 1].
func (r PracticeResult) Accuracy() float64 {
	if r.Beats == 0 {
		return 0
	}
	return float64(r.Correct) / float64(r.Beats)
}

// BeatRecord is one beat's outcome within a stored practice result.
type BeatRecord struct {
	ResultID       string `json:"result_id"`
	BeatIndex      int    `json:"beat_index"`
	Classification string `json:"classification"`
	BPM            int    `json:"bpm"` // effective tempo when the beat closed
	MIDIPitch      int    `json:"midi_pitch"`
}
