// Package synthtest holds test doubles shared by the synthesizer's
// package tests.
package synthtest

import (
	"sync"

	"github.com/chase3718/midisynth/graph"
)

// Sink is a graph.Sink that never renders on its own. Tests drive it with
// Pull, which stands in for the audio callback.
type Sink struct {
	// StartErr and StopErr are returned from Start and Stop when set.
	StartErr error
	StopErr  error

	mu     sync.Mutex
	r      graph.Renderer
	starts int
	stops  int
}

func (s *Sink) Start(r graph.Renderer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.StartErr != nil {
		return s.StartErr
	}
	s.r = r
	s.starts++
	return nil
}

func (s *Sink) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stops++
	s.r = nil
	return s.StopErr
}

// Pull renders frames frames of interleaved audio. It returns nil when the
// sink is not running.
func (s *Sink) Pull(frames int) []float32 {
	s.mu.Lock()
	r := s.r
	s.mu.Unlock()
	if r == nil {
		return nil
	}
	buf := make([]float32, frames*r.Format().NumChannels)
	n := r.Render(buf)
	return buf[:n]
}

func (s *Sink) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r != nil
}

func (s *Sink) Starts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.starts
}

func (s *Sink) Stops() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stops
}
