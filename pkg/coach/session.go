package coach

import (
	"errors"
	"math"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/google/uuid"

	"github.com/andywang514/violin-coach/pkg/models"
)

// Session errors.
var (
	// ErrEmptySequence is returned when the transport is asked to start
	// over a sequence with no gradable elements.
	ErrEmptySequence = errors.New("score sequence has no gradable elements")
	// ErrAlreadyListening is returned by Start while an activation is live.
	ErrAlreadyListening = errors.New("session is already listening")
)

// intonationDebounce coalesces the high-frequency display feed; grading is
// unaffected.
const intonationDebounce = 50 * time.Millisecond

type transportPhase int

const (
	phaseIdle transportPhase = iota
	phaseAwaiting
	phaseRunning
	phaseStopped
)

func (p transportPhase) String() string {
	switch p {
	case phaseIdle:
		return "idle"
	case phaseAwaiting:
		return "awaiting_first_correct"
	case phaseRunning:
		return "running"
	case phaseStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// SessionHandlers receives a session's events. Handlers are invoked from
// the session's own goroutines without the session lock held; nil handlers
// are skipped.
type SessionHandlers struct {
	Grading    func(GradingEvent)
	Target     func(TargetChangedEvent)
	Tempo      func(TempoChangedEvent)
	Intonation func(IntonationEvent)
}

// Session grades a live performance against one score sequence. Two
// independently clocked activities share it: the caller's sampling
// goroutine feeds OnPitchSample, and the session's own beat loop closes
// grading windows and advances the cursor at tempo-derived deadlines. A
// single mutex guards the shared state; the sampling side only raises
// window flags and reads the current target, the beat loop is the sole
// mutator of cursor, tempo, and window resets.
type Session struct {
	id       string
	seq      *ScoreSequence
	handlers SessionHandlers
	log      Logger
	now      func() time.Time

	refPitch float64
	clarity  float64
	minFreq  float64
	maxFreq  float64

	mu           sync.Mutex
	phase        transportPhase
	cursor       int
	window       gradingWindow
	tempo        tempoState
	dynamicTempo bool
	metronome    bool
	nextDeadline time.Time
	stableSince  time.Time
	stableValid  bool
	startedAt    time.Time
	activation   int
	stop         chan struct{}
	idleTarget   *MusicalElement

	counts  [3]int // indexed by Classification
	records []models.BeatRecord

	lastIntonation IntonationEvent
	hasIntonation  bool
	debounced      func(func())
}

func newSession(seq *ScoreSequence, handlers SessionHandlers, cfg *Config, log Logger) (*Session, error) {
	if seq == nil || len(seq.Elements) == 0 {
		return nil, ErrEmptySequence
	}
	s := &Session{
		id:        uuid.NewString(),
		seq:       seq,
		handlers:  handlers,
		log:       log,
		now:       cfg.Now,
		refPitch:  cfg.ReferencePitch,
		clarity:   cfg.ClarityThreshold,
		minFreq:   cfg.MinFrequency,
		maxFreq:   cfg.MaxFrequency,
		debounced: debounce.New(intonationDebounce),
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.tempo.setBase(DefaultBaseBPM)
	return s, nil
}

// ID returns the session's UUID.
func (s *Session) ID() string { return s.id }

// Sequence returns the score sequence the session grades against.
func (s *Session) Sequence() *ScoreSequence { return s.seq }

// State reports the transport phase as a status string.
func (s *Session) State() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase.String()
}

// Cursor returns the current cursor index.
func (s *Session) Cursor() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// CurrentBPM returns the effective tempo.
func (s *Session) CurrentBPM() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tempo.currentBpm
}

// BaseBPM returns the configured base tempo.
func (s *Session) BaseBPM() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tempo.baseBpm
}

// MetronomeEnabled reports whether the external metronome should click on
// beat boundaries. Click synthesis itself happens outside this core.
func (s *Session) MetronomeEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metronome
}

// Start begins listening. The cursor stays wherever it was previously
// positioned; a session that exhausted its sequence restarts from the
// first element. The transport enters AwaitingFirstCorrect and will not
// run beats until a stable in-tolerance streak is heard.
func (s *Session) Start() error {
	s.mu.Lock()
	if s.phase == phaseAwaiting || s.phase == phaseRunning {
		s.mu.Unlock()
		return ErrAlreadyListening
	}
	if len(s.seq.Elements) == 0 {
		s.mu.Unlock()
		return ErrEmptySequence
	}
	if s.cursor >= len(s.seq.Elements) {
		s.cursor = 0
	}
	s.phase = phaseAwaiting
	s.tempo.reset()
	s.window.reset()
	s.stableValid = false
	s.counts = [3]int{}
	s.records = nil
	s.activation++
	s.stop = make(chan struct{})
	s.startedAt = s.now()
	cursor := s.cursor
	target := s.targetEventLocked()
	s.mu.Unlock()

	s.log.Debugf("session %s: listening from cursor %d", s.id, cursor)
	s.emitTarget(target)
	return nil
}

// Stop cancels the activation from any state. Any pending beat timer is
// cancelled and the in-flight grading window is discarded without emitting
// a classification. The cursor is retained for inspection and reuse.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.phase != phaseAwaiting && s.phase != phaseRunning {
		s.mu.Unlock()
		return
	}
	s.phase = phaseStopped
	s.activation++
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
	s.window.reset()
	s.stableValid = false
	s.mu.Unlock()
	s.log.Debugf("session %s: stopped", s.id)
}

// OnPitchSample feeds one detected pitch into the session. Safe to call
// from the capture goroutine at any time; samples arriving outside an
// activation, below the clarity threshold, or outside the playable range
// are inert.
func (s *Session) OnPitchSample(sample PitchSample) {
	s.mu.Lock()
	if s.phase != phaseAwaiting && s.phase != phaseRunning {
		s.mu.Unlock()
		return
	}
	if sample.Confidence < s.clarity ||
		sample.FrequencyHz < s.minFreq || sample.FrequencyHz > s.maxFreq {
		s.mu.Unlock()
		return
	}

	el := s.seq.Elements[s.cursor]
	targetHz := FrequencyForPitch(el.MIDIPitch, s.refPitch)
	off, err := CentsOffset(sample.FrequencyHz, targetHz)
	if err != nil {
		s.mu.Unlock()
		return
	}
	tol := Tolerance(&el)
	accurate := math.Abs(off) <= tol

	switch s.phase {
	case phaseAwaiting:
		if accurate {
			now := s.now()
			if !s.stableValid {
				s.stableValid = true
				s.stableSince = now
			}
			if now.Sub(s.stableSince) >= stableAccuracyHold {
				s.enterRunningLocked(now)
			}
		} else {
			// Any failing sample clears the stable-accuracy streak.
			s.stableValid = false
		}
	case phaseRunning:
		s.window.observe(off, tol)
	}

	s.lastIntonation = IntonationEvent{
		Cents:       NormalizeCents(off),
		TargetHz:    targetHz,
		DetectedHz:  sample.FrequencyHz,
		TargetName:  PitchName(el.MIDIPitch),
		WithinRange: accurate,
	}
	s.hasIntonation = true
	s.mu.Unlock()

	if s.handlers.Intonation != nil {
		s.debounced(s.flushIntonation)
	}
}

func (s *Session) enterRunningLocked(now time.Time) {
	s.phase = phaseRunning
	s.window.reset()
	s.nextDeadline = now.Add(secondsPerBeat(s.tempo.currentBpm))
	go s.beatLoop(s.activation, s.stop)
	s.log.Debugf("session %s: running at %d bpm", s.id, s.tempo.currentBpm)
}

// beatLoop fires beat boundaries at absolute deadlines. The deadline is
// advanced by the beat interval from its previous value, never from "now",
// so timer latency does not accumulate.
func (s *Session) beatLoop(activation int, stop chan struct{}) {
	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		<-timer.C
	}
	for {
		s.mu.Lock()
		if s.activation != activation || s.phase != phaseRunning {
			s.mu.Unlock()
			return
		}
		wait := s.nextDeadline.Sub(s.now())
		s.mu.Unlock()

		if wait > 0 {
			timer.Reset(wait)
			select {
			case <-timer.C:
			case <-stop:
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				return
			}
			continue
		}

		s.mu.Lock()
		if s.activation != activation || s.phase != phaseRunning {
			s.mu.Unlock()
			return
		}
		grading, tempoEv, targetEv, done := s.closeBeatLocked()
		s.mu.Unlock()

		if s.handlers.Grading != nil {
			s.handlers.Grading(grading)
		}
		if tempoEv != nil && s.handlers.Tempo != nil {
			s.handlers.Tempo(*tempoEv)
		}
		if targetEv != nil {
			s.emitTarget(*targetEv)
		}
		if done {
			return
		}
	}
}

// closeBeatLocked finalizes the current grading window, applies the tempo
// feedback loop, advances the cursor, and schedules the next boundary.
func (s *Session) closeBeatLocked() (GradingEvent, *TempoChangedEvent, *TargetChangedEvent, bool) {
	now := s.now()
	cls := s.window.classify()
	ev := GradingEvent{BeatIndex: s.cursor, Classification: cls}
	s.counts[cls]++
	s.records = append(s.records, models.BeatRecord{
		BeatIndex:      s.cursor,
		Classification: cls.String(),
		BPM:            s.tempo.currentBpm,
		MIDIPitch:      s.seq.Elements[s.cursor].MIDIPitch,
	})

	var tempoEv *TempoChangedEvent
	if s.dynamicTempo && s.tempo.onClassification(cls, now) {
		tempoEv = &TempoChangedEvent{BPM: s.tempo.currentBpm}
	}

	s.window.reset()
	s.cursor++
	if s.cursor >= len(s.seq.Elements) {
		s.phase = phaseStopped
		s.activation++
		if s.stop != nil {
			close(s.stop)
			s.stop = nil
		}
		return ev, tempoEv, nil, true
	}

	// Tempo changes apply from here on, never retroactively.
	s.nextDeadline = s.nextDeadline.Add(secondsPerBeat(s.tempo.currentBpm))
	target := s.targetEventLocked()
	return ev, tempoEv, &target, false
}

// JumpToMeasure positions the cursor at the first gradable element of the
// requested 1-based measure, skipping all-rest measures. Legal in any
// state; repeated calls with the same measure are idempotent.
func (s *Session) JumpToMeasure(measure int) {
	s.mu.Lock()
	s.cursor = s.seq.SeekMeasure(measure)
	s.stableValid = false
	s.window.reset()
	target := s.targetEventLocked()
	s.mu.Unlock()
	s.emitTarget(target)
}

// ResetToStart rewinds the cursor to the first element.
func (s *Session) ResetToStart() {
	s.mu.Lock()
	s.cursor = 0
	s.stableValid = false
	s.window.reset()
	target := s.targetEventLocked()
	s.mu.Unlock()
	s.emitTarget(target)
}

// SetBaseBPM changes the base tempo, clamped to [MinBPM, MaxBPM]. While
// running, the effective tempo is only pulled down if it now exceeds the
// base; raises wait for the feedback loop.
func (s *Session) SetBaseBPM(bpm int) {
	s.mu.Lock()
	s.tempo.setBase(bpm)
	if s.phase != phaseRunning {
		s.tempo.currentBpm = s.tempo.baseBpm
	}
	s.mu.Unlock()
}

// SetDynamicTempoEnabled toggles the tempo feedback loop. When disabled the
// transport runs at the fixed base tempo.
func (s *Session) SetDynamicTempoEnabled(enabled bool) {
	s.mu.Lock()
	s.dynamicTempo = enabled
	s.mu.Unlock()
}

// SetMetronomeEnabled records whether the external metronome collaborator
// should click on beat boundaries.
func (s *Session) SetMetronomeEnabled(enabled bool) {
	s.mu.Lock()
	s.metronome = enabled
	s.mu.Unlock()
}

// SetIdleTarget changes the graded reference note while the transport is
// not listening, e.g. when the user selects a note in the UI. Among
// simultaneous candidates the previous target is preferred, else the
// highest pitch.
func (s *Session) SetIdleTarget(candidates []MusicalElement) {
	s.mu.Lock()
	if s.phase == phaseAwaiting || s.phase == phaseRunning {
		s.mu.Unlock()
		return
	}
	el, ok := pickIdleTarget(candidates, s.idleTarget)
	if !ok {
		s.mu.Unlock()
		return
	}
	s.idleTarget = &el
	target := TargetChangedEvent{
		Element:     el,
		FrequencyHz: FrequencyForPitch(el.MIDIPitch, s.refPitch),
		DisplayName: PitchName(el.MIDIPitch),
	}
	s.mu.Unlock()
	s.emitTarget(target)
}

// Summary snapshots the session into a storable practice result.
func (s *Session) Summary() models.PracticeResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	beats := s.counts[Correct] + s.counts[Incorrect] + s.counts[Missed]
	var durationMs int
	if !s.startedAt.IsZero() {
		durationMs = int(s.now().Sub(s.startedAt) / time.Millisecond)
	}
	return models.PracticeResult{
		ID:           s.id,
		ScoreName:    s.seq.Name,
		BaseBPM:      s.tempo.baseBpm,
		FinalBPM:     s.tempo.currentBpm,
		DynamicTempo: s.dynamicTempo,
		Beats:        beats,
		Correct:      s.counts[Correct],
		Incorrect:    s.counts[Incorrect],
		Missed:       s.counts[Missed],
		DurationMs:   durationMs,
		CreatedAt:    s.startedAt,
	}
}

// Records returns a copy of the per-beat outcomes graded so far, stamped
// with the session's result ID.
func (s *Session) Records() []models.BeatRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.BeatRecord, len(s.records))
	copy(out, s.records)
	for i := range out {
		out[i].ResultID = s.id
	}
	return out
}

func (s *Session) targetEventLocked() TargetChangedEvent {
	idx := s.cursor
	if idx >= len(s.seq.Elements) {
		idx = len(s.seq.Elements) - 1
	}
	el := s.seq.Elements[idx]
	return TargetChangedEvent{
		Element:     el,
		FrequencyHz: FrequencyForPitch(el.MIDIPitch, s.refPitch),
		DisplayName: PitchName(el.MIDIPitch),
	}
}

func (s *Session) emitTarget(ev TargetChangedEvent) {
	if s.handlers.Target != nil {
		s.handlers.Target(ev)
	}
}

func (s *Session) flushIntonation() {
	s.mu.Lock()
	if !s.hasIntonation {
		s.mu.Unlock()
		return
	}
	ev := s.lastIntonation
	s.hasIntonation = false
	s.mu.Unlock()
	if s.handlers.Intonation != nil {
		s.handlers.Intonation(ev)
	}
}
