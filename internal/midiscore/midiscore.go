// Package midiscore loads Standard MIDI Files into the score sequences the
// grading engine consumes. The engine itself never looks inside a MIDI
// file; this package is the score-parsing collaborator.
package midiscore

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/andywang514/violin-coach/pkg/coach"
)

// ErrNoNotes is returned for MIDI files without a single note-on event.
var ErrNoNotes = errors.New("midi file contains no notes")

// Violin open strings as MIDI pitches.
const (
	openG = 55
	openD = 62
	openA = 69
	openE = 76
)

var sharpPitchClass = map[int]bool{1: true, 3: true, 6: true, 8: true, 10: true}

type noteEvent struct {
	tick int64
	key  uint8
}

type meterEvent struct {
	tick int64
	num  uint8
	den  uint8
}

// Load reads a Standard MIDI File from disk and converts it into a score
// sequence named after the file.
func Load(path string) (*coach.ScoreSequence, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading midi file: %w", err)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return Parse(data, name)
}

// Parse converts raw SMF bytes into a score sequence. The smf reader can
// panic on malformed input, so panics are converted to errors here.
func Parse(data []byte, name string) (seq *coach.ScoreSequence, err error) {
	defer func() {
		if r := recover(); r != nil {
			seq = nil
			err = fmt.Errorf("parsing midi file: %v", r)
		}
	}()

	mf, err := smf.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing midi file: %w", err)
	}
	return FromSMF(mf, name)
}

// FromSMF flattens all tracks of a parsed SMF into one gradable sequence:
// note-ons in tick order (simultaneous notes low to high), with measure
// boundaries derived from the file's time signatures.
func FromSMF(mf *smf.SMF, name string) (*coach.ScoreSequence, error) {
	ticksPerQuarter := int64(960)
	if mt, ok := mf.TimeFormat.(smf.MetricTicks); ok {
		ticksPerQuarter = int64(mt.Ticks4th())
	}

	var notes []noteEvent
	meters := []meterEvent{{tick: 0, num: 4, den: 4}}

	for _, track := range mf.Tracks {
		var absTicks int64
		for _, event := range track {
			absTicks += int64(event.Delta)
			var channel, key, velocity uint8
			var num, den uint8
			switch {
			case event.Message.GetNoteOn(&channel, &key, &velocity):
				if velocity > 0 {
					notes = append(notes, noteEvent{tick: absTicks, key: key})
				}
			case event.Message.GetMetaMeter(&num, &den):
				if num > 0 && den > 0 {
					meters = append(meters, meterEvent{tick: absTicks, num: num, den: den})
				}
			}
		}
	}

	if len(notes) == 0 {
		return nil, ErrNoNotes
	}

	sort.Slice(notes, func(i, j int) bool {
		if notes[i].tick != notes[j].tick {
			return notes[i].tick < notes[j].tick
		}
		return notes[i].key < notes[j].key
	})
	sort.Slice(meters, func(i, j int) bool { return meters[i].tick < meters[j].tick })

	elements := make([]coach.MusicalElement, 0, len(notes))
	for _, n := range notes {
		elements = append(elements, elementForKey(n.key))
	}

	boundaries := measureBoundaries(notes, meters, ticksPerQuarter)

	return &coach.ScoreSequence{
		Name:       name,
		Elements:   elements,
		Boundaries: boundaries,
	}, nil
}

func elementForKey(key uint8) coach.MusicalElement {
	el := coach.MusicalElement{MIDIPitch: int(key)}
	if sharpPitchClass[int(key)%12] {
		el.Accidental = 1
	}
	// The string a note is played on is not encoded in MIDI; assume the
	// lowest-position choice.
	switch {
	case key >= openE:
		el.String = coach.StringE
	case key >= openA:
		el.String = coach.StringA
	case key >= openD:
		el.String = coach.StringD
	default:
		el.String = coach.StringG
	}
	return el
}

// measureBoundaries walks measures from tick zero through the last note,
// honoring time-signature changes, and records the index of the first note
// at or past each measure start.
func measureBoundaries(notes []noteEvent, meters []meterEvent, ticksPerQuarter int64) []int {
	lastTick := notes[len(notes)-1].tick

	measureTicks := func(at int64) int64 {
		cur := meters[0]
		for _, m := range meters {
			if m.tick > at {
				break
			}
			cur = m
		}
		return ticksPerQuarter * 4 * int64(cur.num) / int64(cur.den)
	}

	var boundaries []int
	noteIdx := 0
	for tick := int64(0); tick <= lastTick; {
		for noteIdx < len(notes) && notes[noteIdx].tick < tick {
			noteIdx++
		}
		boundaries = append(boundaries, noteIdx)
		step := measureTicks(tick)
		if step <= 0 {
			break
		}
		tick += step
	}
	if len(boundaries) == 0 {
		boundaries = []int{0}
	}
	return boundaries
}
