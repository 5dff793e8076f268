package graph

import (
	"fmt"
	"math"
	"slices"
	"sync"
	"sync/atomic"

	vecmath "github.com/cwbudde/algo-vecmath"
	"github.com/go-audio/audio"
)

// Mixer is the always-on bus summing every linked converter.
//
// The input list is copy-on-write: writers take mu and publish a new slice,
// the render goroutine loads the current slice without locking. A converter
// unlinked while a block is being rendered may contribute to that one block.
type Mixer struct {
	node

	format audio.Format
	gain   float64

	mu     sync.Mutex
	inputs atomic.Pointer[[]*Converter]

	// render goroutine only
	acc []float64
}

func newMixer(format audio.Format, gain float64) *Mixer {
	m := &Mixer{format: format, gain: gain}
	m.inputs.Store(&[]*Converter{})
	return m
}

func (m *Mixer) link(c *Converter) error {
	if c == nil {
		return fmt.Errorf("%w: nil converter", ErrLink)
	}
	if c.format.NumChannels != m.format.NumChannels || c.format.SampleRate != m.format.SampleRate {
		return fmt.Errorf("%w: converter format %+v does not match bus %+v", ErrLink, c.format, m.format)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	cur := *m.inputs.Load()
	if slices.Contains(cur, c) {
		return fmt.Errorf("%w: converter already linked", ErrLink)
	}
	next := make([]*Converter, len(cur), len(cur)+1)
	copy(next, cur)
	next = append(next, c)
	m.inputs.Store(&next)
	return nil
}

// unlink reports whether c was linked.
func (m *Mixer) unlink(c *Converter) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur := *m.inputs.Load()
	i := slices.Index(cur, c)
	if i < 0 {
		return false
	}
	next := make([]*Converter, 0, len(cur)-1)
	next = append(next, cur[:i]...)
	next = append(next, cur[i+1:]...)
	m.inputs.Store(&next)
	return true
}

func (m *Mixer) linked(c *Converter) bool {
	return slices.Contains(*m.inputs.Load(), c)
}

func (m *Mixer) inputCount() int { return len(*m.inputs.Load()) }

// render writes whole frames of interleaved float32 into dst and returns
// the number of samples written, plus the block's peak level before
// clipping. Trailing samples that do not fill a frame are zeroed.
func (m *Mixer) render(dst []float32) (int, float64) {
	channels := m.format.NumChannels
	n := (len(dst) / channels) * channels
	clear(dst[n:])
	if n == 0 {
		return 0, 0
	}

	m.acc = grow(m.acc, n)
	clear(m.acc)

	if m.State() == StatePlaying {
		for _, c := range *m.inputs.Load() {
			if c.State() != StatePlaying {
				continue
			}
			vecmath.AddBlockInPlace(m.acc, c.pull(n/channels))
		}
		vecmath.ScaleBlock(m.acc, m.acc, m.gain)
	}

	var peak float64
	for i, v := range m.acc {
		peak = max(peak, math.Abs(v))
		switch {
		case v > 1:
			v = 1
		case v < -1:
			v = -1
		}
		dst[i] = float32(v)
	}
	return n, peak
}
