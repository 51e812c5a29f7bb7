package main

import (
	"fmt"

	"github.com/andywang514/violin-coach/pkg/coach"
)

// Limits for pushed sample batches. Browsers detect pitch client side and
// post samples in small batches; anything much larger than a second of
// audio per batch suggests a misbehaving client.
const (
	MaxSamplesPerBatch = 2000
	MaxScoreFileBytes  = 5 << 20
)

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	DBPath         string
	ReferencePitch float64
	AllowedOrigins []string
}

// ErrorResponse is the JSON error envelope
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// SessionResponse describes a live session
type SessionResponse struct {
	ID        string `json:"id"`
	ScoreName string `json:"score_name"`
	State     string `json:"state"`
	Cursor    int    `json:"cursor"`
	BaseBPM   int    `json:"base_bpm"`
	BPM       int    `json:"bpm"`
	Elements  int    `json:"elements"`
	Measures  int    `json:"measures"`
}

// SampleDTO is one pushed pitch sample
type SampleDTO struct {
	FrequencyHz float64 `json:"frequency_hz"`
	Confidence  float64 `json:"confidence"`
	TimestampMs float64 `json:"timestamp_ms"`
}

// SamplesRequest is the body for POST /api/sessions/{id}/samples
type SamplesRequest struct {
	Samples []SampleDTO `json:"samples"`
}

// Validate checks if the request is valid
func (r *SamplesRequest) Validate() error {
	if len(r.Samples) == 0 {
		return fmt.Errorf("samples cannot be empty")
	}
	if len(r.Samples) > MaxSamplesPerBatch {
		return fmt.Errorf("too many samples: %d (maximum: %d)", len(r.Samples), MaxSamplesPerBatch)
	}
	return nil
}

func (r *SamplesRequest) toPitchSamples() []coach.PitchSample {
	out := make([]coach.PitchSample, 0, len(r.Samples))
	for _, s := range r.Samples {
		out = append(out, coach.PitchSample{
			FrequencyHz: s.FrequencyHz,
			Confidence:  s.Confidence,
			TimestampMs: s.TimestampMs,
		})
	}
	return out
}

// CommandRequest is the body for POST /api/sessions/{id}/commands
type CommandRequest struct {
	Action  string `json:"action"` // start, stop, jump, reset, set_bpm, dynamic_tempo, metronome
	Measure int    `json:"measure,omitempty"`
	BPM     int    `json:"bpm,omitempty"`
	Enabled bool   `json:"enabled,omitempty"`
}
