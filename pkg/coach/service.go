package coach

import (
	"fmt"

	"github.com/andywang514/violin-coach/pkg/logger"
	"github.com/andywang514/violin-coach/pkg/models"
)

// coachService is the default implementation of the Service interface.
type coachService struct {
	storage Storage
	log     Logger
	config  *Config
}

func NewService(opts ...Option) (Service, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger()
	}

	var stor Storage
	var err error
	if cfg.Storage != nil {
		stor = cfg.Storage
	} else {
		stor, err = NewSQLiteStorage(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage: %w", err)
		}
	}

	return &coachService{
		storage: stor,
		log:     cfg.Logger,
		config:  cfg,
	}, nil
}

// NewSession creates a live grading session over the given sequence. The
// session is independent of the service's lifecycle apart from sharing its
// configuration and logger.
func (s *coachService) NewSession(seq *ScoreSequence, handlers SessionHandlers) (*Session, error) {
	sess, err := newSession(seq, handlers, s.config, s.log)
	if err != nil {
		return nil, err
	}
	s.log.Infof("Created session %s for score %q (%d elements, %d measures)",
		sess.ID(), seq.Name, len(seq.Elements), seq.MeasureCount())
	return sess, nil
}

// GradeRecording replays a recorded pitch-sample stream against a sequence.
func (s *coachService) GradeRecording(seq *ScoreSequence, samples []PitchSample, opts GradeOptions) (*RecordingGrade, error) {
	opts.fillDefaults(s.config)
	grade, err := gradeRecording(seq, samples, opts)
	if err != nil {
		return nil, fmt.Errorf("grading recording: %w", err)
	}
	if !grade.Started {
		s.log.Warnf("Recording never satisfied the stable-accuracy gate; nothing graded")
		return grade, nil
	}
	s.log.Infof("Graded %d beats: %d correct, %d incorrect, %d missed (final tempo %d bpm)",
		len(grade.Events), grade.Correct, grade.Incorrect, grade.Missed, grade.FinalBPM)
	return grade, nil
}

func (s *coachService) SaveResult(result models.PracticeResult, beats []models.BeatRecord) (string, error) {
	id, err := s.storage.SaveResult(result, beats)
	if err != nil {
		return "", fmt.Errorf("saving practice result: %w", err)
	}
	s.log.Infof("Saved practice result %s (%d beats)", id, len(beats))
	return id, nil
}

func (s *coachService) GetResult(id string) (*models.PracticeResult, []models.BeatRecord, error) {
	result, err := s.storage.GetResult(id)
	if err != nil {
		return nil, nil, err
	}
	beats, err := s.storage.GetBeatRecords(id)
	if err != nil {
		return nil, nil, err
	}
	return result, beats, nil
}

func (s *coachService) ListResults() ([]models.PracticeResult, error) {
	return s.storage.ListResults()
}

func (s *coachService) DeleteResult(id string) error {
	return s.storage.DeleteResult(id)
}

// Close releases all resources held by the service.
func (s *coachService) Close() error {
	return s.storage.Close()
}
