package graph

import (
	"fmt"
	"math"
	"strings"
)

// Waveform selects the shape an Oscillator produces.
type Waveform int

const (
	Sawtooth Waveform = iota
	Sine
	Square
	Triangle
)

func (w Waveform) String() string {
	switch w {
	case Sawtooth:
		return "saw"
	case Sine:
		return "sine"
	case Square:
		return "square"
	case Triangle:
		return "triangle"
	}
	return fmt.Sprintf("Waveform(%d)", int(w))
}

// ParseWaveform accepts the names printed by String plus a few aliases.
func ParseWaveform(s string) (Waveform, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "saw", "sawtooth":
		return Sawtooth, nil
	case "sine", "sin":
		return Sine, nil
	case "square", "pulse":
		return Square, nil
	case "triangle", "tri":
		return Triangle, nil
	}
	return Sawtooth, fmt.Errorf("%w: %q", ErrUnknownWaveform, s)
}

// sample evaluates one period of the waveform at phase p in [0,1).
// Output is in [-1,1].
func (w Waveform) sample(p float64) float64 {
	switch w {
	case Sine:
		return math.Sin(2 * math.Pi * p)
	case Square:
		if p < 0.5 {
			return 1
		}
		return -1
	case Triangle:
		if p < 0.5 {
			return 4*p - 1
		}
		return 3 - 4*p
	default:
		return 2*p - 1
	}
}
