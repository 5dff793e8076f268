package output

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-audio/audio"

	"github.com/chase3718/midisynth/graph"
)

// DefaultLatency is the render block length used by the sinks.
const DefaultLatency = 10 * time.Millisecond

// blockFrames converts a latency into whole frames, at least one.
func blockFrames(f audio.Format, latency time.Duration) int {
	if latency <= 0 {
		latency = DefaultLatency
	}
	return max(1, int(int64(f.SampleRate)*int64(latency)/int64(time.Second)))
}

// pump renders a block every period on its own goroutine and hands it to
// write. It paces non-device sinks at the audio rate so their output lines
// up with the live MIDI input.
type pump struct {
	mu      sync.Mutex
	stop    chan struct{}
	done    chan struct{}
	err     error
	written uint64
}

func (p *pump) start(r graph.Renderer, latency time.Duration, write func([]float32) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop != nil {
		return ErrRunning
	}
	f := r.Format()
	if f.NumChannels < 1 || f.SampleRate < 1 {
		return fmt.Errorf("%w: %+v", ErrFormat, f)
	}

	frames := blockFrames(f, latency)
	period := time.Duration(frames) * time.Second / time.Duration(f.SampleRate)
	buf := make([]float32, frames*f.NumChannels)

	p.stop = make(chan struct{})
	p.done = make(chan struct{})
	go p.loop(r, buf, period, write)
	return nil
}

func (p *pump) loop(r graph.Renderer, buf []float32, period time.Duration, write func([]float32) error) {
	defer close(p.done)
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			n := r.Render(buf)
			if err := write(buf[:n]); err != nil {
				p.mu.Lock()
				p.err = err
				p.mu.Unlock()
				return
			}
			p.mu.Lock()
			p.written += uint64(n)
			p.mu.Unlock()
		}
	}
}

// halt stops the loop and returns the first write error, if any.
func (p *pump) halt() error {
	p.mu.Lock()
	stop, done := p.stop, p.done
	p.mu.Unlock()
	if stop == nil {
		return ErrNotRunning
	}
	select {
	case <-stop:
	default:
		close(stop)
	}
	<-done

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// samples is the number of samples handed to write so far.
func (p *pump) samples() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written
}
