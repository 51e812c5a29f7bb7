package coach

import "time"

// Dynamic tempo feedback constants.
const (
	// MinBPM is the floor the controller will never slow below.
	MinBPM = 40
	// MaxBPM bounds user-supplied base tempos.
	MaxBPM = 300

	slowdownStep   = 8
	speedupStep    = 2
	errorStreak    = 2
	recoveryWindow = 5 * time.Second

	// DefaultBaseBPM is used when a session never sets a base tempo.
	DefaultBaseBPM = 80
)

// tempoState is the dynamic tempo controller's feedback state. It is owned
// exclusively by the beat scheduler; invariant MinBPM <= currentBpm <=
// baseBpm, enforced by clamping at every computation.
type tempoState struct {
	baseBpm           int
	currentBpm        int
	consecutiveErrors int
	lastErrorAt       time.Time
}

func clampBPM(bpm int) int {
	if bpm < MinBPM {
		return MinBPM
	}
	if bpm > MaxBPM {
		return MaxBPM
	}
	return bpm
}

// reset restores the controller to the base tempo. Called whenever the
// transport (re)starts.
func (t *tempoState) reset() {
	t.baseBpm = clampBPM(t.baseBpm)
	t.currentBpm = t.baseBpm
	t.consecutiveErrors = 0
	t.lastErrorAt = time.Time{}
}

// setBase changes the base tempo, pulling the current tempo down with it if
// the new base is below it.
func (t *tempoState) setBase(bpm int) {
	t.baseBpm = clampBPM(bpm)
	if t.currentBpm > t.baseBpm || t.currentBpm == 0 {
		t.currentBpm = t.baseBpm
	}
}

// onClassification applies one beat's outcome to the feedback loop and
// reports whether the effective tempo changed. Two consecutive non-correct
// beats slow the tempo by slowdownStep; a correct beat after a clean
// recoveryWindow raises it by speedupStep, never above the base.
func (t *tempoState) onClassification(cls Classification, now time.Time) bool {
	if cls != Correct {
		t.consecutiveErrors++
		t.lastErrorAt = now
		if t.consecutiveErrors >= errorStreak {
			slowed := t.currentBpm - slowdownStep
			if slowed < MinBPM {
				slowed = MinBPM
			}
			if slowed != t.currentBpm {
				t.currentBpm = slowed
				return true
			}
		}
		return false
	}

	t.consecutiveErrors = 0
	if t.lastErrorAt.IsZero() || now.Sub(t.lastErrorAt) > recoveryWindow {
		raised := t.currentBpm + speedupStep
		if raised > t.baseBpm {
			raised = t.baseBpm
		}
		if raised != t.currentBpm {
			t.currentBpm = raised
			return true
		}
	}
	return false
}

// secondsPerBeat converts the effective tempo to the beat interval.
func secondsPerBeat(bpm int) time.Duration {
	if bpm <= 0 {
		bpm = DefaultBaseBPM
	}
	return time.Duration(float64(time.Minute) / float64(bpm))
}
