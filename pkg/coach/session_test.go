package coach

import (
	"sync"
	"testing"
	"time"
)

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Debugf(string, ...interface{}) {}

// fakeClock is a manually advanced time source for deterministic scheduling
// tests.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Unix(1000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func testSession(t *testing.T, seq *ScoreSequence, handlers SessionHandlers, clock *fakeClock) *Session {
	t.Helper()
	cfg := defaultConfig()
	if clock != nil {
		cfg.Now = clock.Now
	}
	s, err := newSession(seq, handlers, cfg, nopLogger{})
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	t.Cleanup(s.Stop)
	return s
}

func scaleSequence(pitches ...int) *ScoreSequence {
	return &ScoreSequence{
		Name:       "test scale",
		Elements:   elementsWithPitches(pitches...),
		Boundaries: []int{0},
	}
}

// accurateSample returns a sample squarely on the given MIDI pitch.
func accurateSample(midi int) PitchSample {
	return PitchSample{
		FrequencyHz: FrequencyForPitch(midi, DefaultReferencePitch),
		Confidence:  0.9,
	}
}

func TestSessionRequiresElements(t *testing.T) {
	if _, err := newSession(&ScoreSequence{}, SessionHandlers{}, defaultConfig(), nopLogger{}); err != ErrEmptySequence {
		t.Errorf("Expected ErrEmptySequence, got %v", err)
	}
	if _, err := newSession(nil, SessionHandlers{}, defaultConfig(), nopLogger{}); err != ErrEmptySequence {
		t.Errorf("Expected ErrEmptySequence for nil sequence, got %v", err)
	}
}

func TestSessionStartStop(t *testing.T) {
	s := testSession(t, scaleSequence(60, 62, 64), SessionHandlers{}, newFakeClock())

	if got := s.State(); got != "idle" {
		t.Errorf("Initial state = %q, want idle", got)
	}

	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if got := s.State(); got != "awaiting_first_correct" {
		t.Errorf("State after Start = %q, want awaiting_first_correct", got)
	}

	// Starting twice is an error
	if err := s.Start(); err != ErrAlreadyListening {
		t.Errorf("Second Start returned %v, want ErrAlreadyListening", err)
	}

	s.Stop()
	if got := s.State(); got != "stopped" {
		t.Errorf("State after Stop = %q, want stopped", got)
	}

	// Stopping again is a no-op
	s.Stop()
	if got := s.State(); got != "stopped" {
		t.Errorf("State after second Stop = %q, want stopped", got)
	}

	// A stopped session can start listening again
	if err := s.Start(); err != nil {
		t.Errorf("Restart after Stop failed: %v", err)
	}
}

func TestSessionStartEmitsTarget(t *testing.T) {
	var mu sync.Mutex
	var targets []TargetChangedEvent
	handlers := SessionHandlers{
		Target: func(ev TargetChangedEvent) {
			mu.Lock()
			targets = append(targets, ev)
			mu.Unlock()
		},
	}
	s := testSession(t, scaleSequence(69, 71), handlers, newFakeClock())

	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(targets) != 1 {
		t.Fatalf("Expected one target event on Start, got %d", len(targets))
	}
	if targets[0].Element.MIDIPitch != 69 {
		t.Errorf("Target pitch = %d, want 69", targets[0].Element.MIDIPitch)
	}
	if targets[0].DisplayName != "A4" {
		t.Errorf("Target name = %q, want A4", targets[0].DisplayName)
	}
}

func TestSessionSampleFilters(t *testing.T) {
	clock := newFakeClock()
	s := testSession(t, scaleSequence(69), SessionHandlers{}, clock)
	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Low clarity, out-of-range, and pre-activation samples are all inert
	s.OnPitchSample(PitchSample{FrequencyHz: 440, Confidence: 0.2})
	s.OnPitchSample(PitchSample{FrequencyHz: 50, Confidence: 0.9})
	s.OnPitchSample(PitchSample{FrequencyHz: 9000, Confidence: 0.9})

	s.mu.Lock()
	stable := s.stableValid
	s.mu.Unlock()
	if stable {
		t.Error("Filtered samples started a stable-accuracy streak")
	}
	if got := s.State(); got != "awaiting_first_correct" {
		t.Errorf("State = %q, want awaiting_first_correct", got)
	}
}

func TestSessionAwaitingGate(t *testing.T) {
	clock := newFakeClock()
	s := testSession(t, scaleSequence(69, 71), SessionHandlers{}, clock)
	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// An accurate sample opens the streak but a 100ms streak is too short
	s.OnPitchSample(accurateSample(69))
	clock.Advance(100 * time.Millisecond)
	s.OnPitchSample(accurateSample(69))
	if got := s.State(); got != "awaiting_first_correct" {
		t.Errorf("State after 100ms streak = %q, want awaiting_first_correct", got)
	}

	// An inaccurate sample clears the streak entirely
	s.OnPitchSample(PitchSample{FrequencyHz: 500, Confidence: 0.9})
	clock.Advance(300 * time.Millisecond)
	s.OnPitchSample(accurateSample(69))
	if got := s.State(); got != "awaiting_first_correct" {
		t.Errorf("State right after streak reset = %q, want awaiting_first_correct", got)
	}

	// An uninterrupted 250ms streak starts the transport
	clock.Advance(250 * time.Millisecond)
	s.OnPitchSample(accurateSample(69))
	if got := s.State(); got != "running" {
		t.Errorf("State after stable streak = %q, want running", got)
	}
}

func TestSessionRestartRetainsCursor(t *testing.T) {
	s := testSession(t, &ScoreSequence{
		Name:       "two measures",
		Elements:   elementsWithPitches(60, 62, 64, 65),
		Boundaries: []int{0, 2},
	}, SessionHandlers{}, newFakeClock())

	s.JumpToMeasure(2)
	if got := s.Cursor(); got != 2 {
		t.Fatalf("Cursor after jump = %d, want 2", got)
	}

	// Start keeps the cursor where navigation left it
	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if got := s.Cursor(); got != 2 {
		t.Errorf("Cursor after Start = %d, want 2", got)
	}
	s.Stop()

	// An exhausted session restarts from the beginning
	s.mu.Lock()
	s.cursor = len(s.seq.Elements)
	s.mu.Unlock()
	if err := s.Start(); err != nil {
		t.Fatalf("Restart failed: %v", err)
	}
	if got := s.Cursor(); got != 0 {
		t.Errorf("Cursor after exhausted restart = %d, want 0", got)
	}
}

// runScenario puts the session into the running phase and closes one beat
// per entry, pre-loading the grading window as directed. It bypasses the
// awaiting gate so the scheduler step can be exercised deterministically.
type beatInput struct {
	observe  bool
	centsOff float64
}

func runScenario(t *testing.T, s *Session, clock *fakeClock, beats []beatInput) []GradingEvent {
	t.Helper()

	s.mu.Lock()
	s.phase = phaseRunning
	s.activation++
	s.stop = make(chan struct{})
	s.startedAt = clock.Now()
	s.nextDeadline = clock.Now().Add(secondsPerBeat(s.tempo.currentBpm))
	s.mu.Unlock()

	var events []GradingEvent
	for _, b := range beats {
		s.mu.Lock()
		if b.observe {
			s.window.observe(b.centsOff, Tolerance(&s.seq.Elements[s.cursor]))
		}
		clock.Advance(secondsPerBeat(s.tempo.currentBpm))
		grading, tempoEv, targetEv, done := s.closeBeatLocked()
		s.mu.Unlock()

		events = append(events, grading)
		if tempoEv != nil && s.handlers.Tempo != nil {
			s.handlers.Tempo(*tempoEv)
		}
		if targetEv != nil && s.handlers.Target != nil {
			s.handlers.Target(*targetEv)
		}
		if done {
			break
		}
	}
	return events
}

func TestSessionGradingScenario(t *testing.T) {
	clock := newFakeClock()
	s := testSession(t, scaleSequence(60, 62, 64), SessionHandlers{}, clock)
	s.SetBaseBPM(60)

	// Beat 1 hears an accurate pitch, beat 2 hears nothing, beat 3 hears
	// only an out-of-tolerance pitch
	events := runScenario(t, s, clock, []beatInput{
		{observe: true, centsOff: 5},
		{observe: false},
		{observe: true, centsOff: 45},
	})

	want := []Classification{Correct, Missed, Incorrect}
	if len(events) != len(want) {
		t.Fatalf("Got %d grading events, want %d", len(events), len(want))
	}
	for i, ev := range events {
		if ev.BeatIndex != i {
			t.Errorf("Event %d has beat index %d", i, ev.BeatIndex)
		}
		if ev.Classification != want[i] {
			t.Errorf("Beat %d classified %v, want %v", i, ev.Classification, want[i])
		}
	}

	// The sequence is exhausted, so the transport stopped itself
	if got := s.State(); got != "stopped" {
		t.Errorf("State after final beat = %q, want stopped", got)
	}

	summary := s.Summary()
	if summary.Beats != 3 || summary.Correct != 1 || summary.Incorrect != 1 || summary.Missed != 1 {
		t.Errorf("Summary counts = %d/%d/%d of %d beats, want 1/1/1 of 3",
			summary.Correct, summary.Incorrect, summary.Missed, summary.Beats)
	}

	records := s.Records()
	if len(records) != 3 {
		t.Fatalf("Got %d beat records, want 3", len(records))
	}
	for i, r := range records {
		if r.ResultID != s.ID() {
			t.Errorf("Record %d not stamped with the session ID", i)
		}
		if r.Classification != want[i].String() {
			t.Errorf("Record %d classification %q, want %q", i, r.Classification, want[i].String())
		}
	}
}

func TestSessionDynamicTempoScenario(t *testing.T) {
	clock := newFakeClock()
	var mu sync.Mutex
	var tempos []int
	handlers := SessionHandlers{
		Tempo: func(ev TempoChangedEvent) {
			mu.Lock()
			tempos = append(tempos, ev.BPM)
			mu.Unlock()
		},
	}
	s := testSession(t, scaleSequence(60, 62, 64, 65, 67, 69, 71, 72, 74, 76, 77, 79), handlers, clock)
	s.SetBaseBPM(80)
	s.SetDynamicTempoEnabled(true)

	// Two misses slow the tempo to 72; correct beats follow until one
	// lands more than five seconds after the last error and raises it
	beats := []beatInput{
		{observe: false},
		{observe: false},
	}
	for i := 0; i < 10; i++ {
		beats = append(beats, beatInput{observe: true, centsOff: 0})
	}
	runScenario(t, s, clock, beats)

	mu.Lock()
	defer mu.Unlock()
	if len(tempos) < 2 {
		t.Fatalf("Expected at least two tempo changes, got %v", tempos)
	}
	if tempos[0] != 72 {
		t.Errorf("First tempo change = %d, want 72", tempos[0])
	}
	if tempos[1] != 74 {
		t.Errorf("Second tempo change = %d, want 74", tempos[1])
	}
	if got := s.CurrentBPM(); got < 72 || got > 80 {
		t.Errorf("Final tempo %d outside the recovery range", got)
	}
}

func TestSessionDynamicTempoDisabled(t *testing.T) {
	clock := newFakeClock()
	s := testSession(t, scaleSequence(60, 62, 64, 65), SessionHandlers{}, clock)
	s.SetBaseBPM(80)

	runScenario(t, s, clock, []beatInput{
		{observe: false},
		{observe: false},
		{observe: false},
	})

	// Without the feedback loop the tempo never moves
	if got := s.CurrentBPM(); got != 80 {
		t.Errorf("Tempo = %d with feedback disabled, want 80", got)
	}
}

func TestSessionJumpAndReset(t *testing.T) {
	s := testSession(t, &ScoreSequence{
		Name:       "with rest measure",
		Elements:   elementsWithPitches(60, 62, 64, 65, 67, 69, 71, 72, 74, 76, 77, 79, 81, 83, 84, 86),
		Boundaries: []int{0, 4, 9, 9, 15},
	}, SessionHandlers{}, newFakeClock())

	s.JumpToMeasure(3)
	if got := s.Cursor(); got != 9 {
		t.Errorf("Cursor after jumping into a rest measure = %d, want 9", got)
	}

	s.JumpToMeasure(1)
	if got := s.Cursor(); got != 0 {
		t.Errorf("Cursor after JumpToMeasure(1) = %d, want 0", got)
	}

	s.JumpToMeasure(2)
	s.ResetToStart()
	if got := s.Cursor(); got != 0 {
		t.Errorf("Cursor after ResetToStart = %d, want 0", got)
	}
}

func TestSessionSetBaseBPM(t *testing.T) {
	s := testSession(t, scaleSequence(60), SessionHandlers{}, newFakeClock())

	s.SetBaseBPM(120)
	if got := s.BaseBPM(); got != 120 {
		t.Errorf("BaseBPM = %d, want 120", got)
	}
	if got := s.CurrentBPM(); got != 120 {
		t.Errorf("CurrentBPM = %d, want 120 while not running", got)
	}

	s.SetBaseBPM(20)
	if got := s.BaseBPM(); got != MinBPM {
		t.Errorf("BaseBPM clamped to %d, want %d", got, MinBPM)
	}
	s.SetBaseBPM(500)
	if got := s.BaseBPM(); got != MaxBPM {
		t.Errorf("BaseBPM clamped to %d, want %d", got, MaxBPM)
	}
}

func TestSessionIdleTarget(t *testing.T) {
	var mu sync.Mutex
	var targets []TargetChangedEvent
	handlers := SessionHandlers{
		Target: func(ev TargetChangedEvent) {
			mu.Lock()
			targets = append(targets, ev)
			mu.Unlock()
		},
	}
	s := testSession(t, scaleSequence(60), handlers, newFakeClock())

	// While idle the highest candidate wins
	s.SetIdleTarget(elementsWithPitches(62, 74, 67))
	mu.Lock()
	if len(targets) != 1 || targets[0].Element.MIDIPitch != 74 {
		t.Fatalf("Idle target events = %+v, want one event for pitch 74", targets)
	}
	mu.Unlock()

	// The previous target is preferred when still among the candidates
	s.SetIdleTarget(elementsWithPitches(74, 79))
	mu.Lock()
	if len(targets) != 2 || targets[1].Element.MIDIPitch != 74 {
		t.Fatalf("Second idle target = %+v, want pitch 74 retained", targets)
	}
	mu.Unlock()

	// While listening the idle target cannot change
	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	s.SetIdleTarget(elementsWithPitches(81))
	mu.Lock()
	defer mu.Unlock()
	// Start emits one target event of its own; no idle event may follow it
	if len(targets) != 3 {
		t.Fatalf("Expected 3 target events, got %d", len(targets))
	}
	if targets[2].Element.MIDIPitch != 60 {
		t.Errorf("Event after Start targets pitch %d, want the cursor element 60", targets[2].Element.MIDIPitch)
	}
}

func TestSessionRunsToCompletion(t *testing.T) {
	// End-to-end with the real clock: a two-note sequence at the maximum
	// tempo, fed a constant in-tune pitch. The gate should open and both
	// beats should grade correct within a generous deadline.
	var mu sync.Mutex
	var events []GradingEvent
	handlers := SessionHandlers{
		Grading: func(ev GradingEvent) {
			mu.Lock()
			events = append(events, ev)
			mu.Unlock()
		},
	}
	s := testSession(t, scaleSequence(69, 69), handlers, nil)
	s.SetBaseBPM(MaxBPM)

	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) && s.State() != "stopped" {
		s.OnPitchSample(accurateSample(69))
		time.Sleep(5 * time.Millisecond)
	}

	if got := s.State(); got != "stopped" {
		t.Fatalf("Session never finished, state = %q", got)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 2 {
		t.Fatalf("Got %d grading events, want 2", len(events))
	}
	for i, ev := range events {
		if ev.Classification != Correct {
			t.Errorf("Beat %d classified %v, want Correct", i, ev.Classification)
		}
	}
}
