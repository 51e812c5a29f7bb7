package coach

import (
	"github.com/andywang514/violin-coach/pkg/models"
)

// Service is the top-level entry point: it creates live grading sessions,
// grades recordings offline, and manages stored practice results.
type Service interface {
	NewSession(seq *ScoreSequence, handlers SessionHandlers) (*Session, error)
	GradeRecording(seq *ScoreSequence, samples []PitchSample, opts GradeOptions) (*RecordingGrade, error)
	SaveResult(result models.PracticeResult, beats []models.BeatRecord) (string, error)
	GetResult(id string) (*models.PracticeResult, []models.BeatRecord, error)
	ListResults() ([]models.PracticeResult, error)
	DeleteResult(id string) error
	Close() error
}

// Storage persists practice results and their per-beat records.
type Storage interface {
	SaveResult(result models.PracticeResult, beats []models.BeatRecord) (string, error)
	GetResult(id string) (*models.PracticeResult, error)
	GetBeatRecords(id string) ([]models.BeatRecord, error)
	ListResults() ([]models.PracticeResult, error)
	DeleteResult(id string) error
	Close() error
}

type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
}
