package output

import (
	"log/slog"
	"time"

	"github.com/chase3718/midisynth/graph"
)

// Null renders at the audio rate and discards the result. It keeps the
// graph running on hosts without a sound card.
type Null struct {
	pump
	latency time.Duration
	logger  *slog.Logger
}

func NewNull(latency time.Duration, logger *slog.Logger) *Null {
	if logger == nil {
		logger = slog.Default()
	}
	return &Null{latency: latency, logger: logger}
}

func (s *Null) Start(r graph.Renderer) error {
	if err := s.start(r, s.latency, func([]float32) error { return nil }); err != nil {
		return err
	}
	s.logger.Info("output: null sink started", "latency", s.latency)
	return nil
}

func (s *Null) Stop() error {
	err := s.halt()
	s.logger.Debug("output: null sink stopped", "samples", s.samples())
	return err
}

// Samples is how many samples were rendered and dropped.
func (s *Null) Samples() uint64 { return s.samples() }
