// Package pitch converts MIDI note numbers to frequencies and names.
package pitch

import (
	"fmt"
	"math"
)

// A4 is the reference pitch: MIDI note 69 sounds at 440 Hz.
const (
	A4Note      = 69
	A4Frequency = 440.0
)

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// Frequency returns the equal-tempered fundamental of a MIDI note in Hz.
// Notes outside 0-127 are not rejected; the formula stays well defined.
func Frequency(note int) float64 {
	return A4Frequency * math.Pow(2, float64(note-A4Note)/12)
}

// Name returns the scientific pitch name of a note, e.g. 60 -> "C4".
func Name(note int) string {
	if note < 0 {
		return fmt.Sprintf("?%d", note)
	}
	return fmt.Sprintf("%s%d", noteNames[note%12], (note/12)-1)
}
