package graph

import (
	"fmt"

	"github.com/go-audio/audio"
)

// Converter is the per-voice conditioning node. It pulls the mono float64
// output of its oscillator and adapts it to the bus format by spreading
// each frame across every bus channel.
type Converter struct {
	node

	src    *Oscillator
	format audio.Format

	mono *audio.FloatBuffer
	out  *audio.FloatBuffer
}

func newConverter(format audio.Format) *Converter {
	return &Converter{
		format: format,
		mono: &audio.FloatBuffer{
			Format: &audio.Format{NumChannels: 1, SampleRate: format.SampleRate},
		},
		out: &audio.FloatBuffer{Format: &audio.Format{
			NumChannels: format.NumChannels,
			SampleRate:  format.SampleRate,
		}},
	}
}

// Format is the bus format the converter produces.
func (c *Converter) Format() audio.Format { return c.format }

// Source is the oscillator linked upstream, or nil.
func (c *Converter) Source() *Oscillator { return c.src }

// link connects osc -> c. A converter accepts exactly one upstream.
func (c *Converter) link(osc *Oscillator) error {
	if osc == nil {
		return fmt.Errorf("%w: nil oscillator", ErrLink)
	}
	if c.src != nil {
		return fmt.Errorf("%w: converter already has a source", ErrLink)
	}
	if c.format.NumChannels < 1 {
		return fmt.Errorf("%w: bus has %d channels", ErrLink, c.format.NumChannels)
	}
	c.src = osc
	return nil
}

// pull renders frames frames and returns them interleaved in the bus
// format. A stopped source contributes silence.
func (c *Converter) pull(frames int) []float64 {
	channels := c.format.NumChannels
	c.mono.Data = grow(c.mono.Data, frames)
	c.out.Data = grow(c.out.Data, frames*channels)

	if c.src == nil || c.src.State() != StatePlaying {
		clear(c.out.Data)
		return c.out.Data
	}
	c.src.render(c.mono)

	if channels == 1 {
		copy(c.out.Data, c.mono.Data)
		return c.out.Data
	}
	for f, v := range c.mono.Data {
		base := f * channels
		for ch := range channels {
			c.out.Data[base+ch] = v
		}
	}
	return c.out.Data
}

// grow returns buf resized to n, reallocating only when capacity is short.
func grow(buf []float64, n int) []float64 {
	if cap(buf) < n {
		return make([]float64, n)
	}
	return buf[:n]
}
