package graph

import (
	"fmt"
	"math"

	"github.com/go-audio/audio"
)

// Oscillator is a per-voice source node. It renders a mono waveform at a
// fixed frequency and gain; neither changes after creation.
type Oscillator struct {
	node

	waveform  Waveform
	frequency float64
	gain      float64

	// step and phase are in cycles; phase is only touched by the render
	// goroutine.
	step  float64
	phase float64
}

func newOscillator(w Waveform, frequency, gain float64, sampleRate int) (*Oscillator, error) {
	if math.IsNaN(frequency) || math.IsInf(frequency, 0) || frequency <= 0 {
		return nil, fmt.Errorf("%w: frequency %v", ErrInvalidParameter, frequency)
	}
	if math.IsNaN(gain) || gain < 0 || gain > 1 {
		return nil, fmt.Errorf("%w: gain %v", ErrInvalidParameter, gain)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate %d", ErrInvalidParameter, sampleRate)
	}
	return &Oscillator{
		waveform:  w,
		frequency: frequency,
		gain:      gain,
		step:      frequency / float64(sampleRate),
	}, nil
}

func (o *Oscillator) Waveform() Waveform { return o.waveform }
func (o *Oscillator) Frequency() float64 { return o.frequency }
func (o *Oscillator) Gain() float64      { return o.gain }

// render fills buf.Data with the next len(buf.Data) mono samples.
func (o *Oscillator) render(buf *audio.FloatBuffer) {
	for i := range buf.Data {
		buf.Data[i] = o.gain * o.waveform.sample(o.phase)
		o.phase += o.step
		if o.phase >= 1 {
			o.phase -= math.Floor(o.phase)
		}
	}
}
