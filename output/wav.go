package output

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"sync"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/chase3718/midisynth/graph"
)

const (
	wavBitDepth = 16
	wavPCM      = 1
)

// WAV records the mixed signal to a 16-bit PCM file, rendering at the
// audio rate so the recording follows the performance in real time.
type WAV struct {
	pump
	path    string
	latency time.Duration
	logger  *slog.Logger

	encMu  sync.Mutex
	file   *os.File
	enc    *wav.Encoder
	intBuf *audio.IntBuffer
}

func NewWAV(path string, latency time.Duration, logger *slog.Logger) *WAV {
	if logger == nil {
		logger = slog.Default()
	}
	return &WAV{path: path, latency: latency, logger: logger}
}

func (s *WAV) Start(r graph.Renderer) error {
	f := r.Format()
	file, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("output: create %q: %w", s.path, err)
	}

	s.encMu.Lock()
	s.file = file
	s.enc = wav.NewEncoder(file, f.SampleRate, wavBitDepth, f.NumChannels, wavPCM)
	s.intBuf = &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: f.NumChannels, SampleRate: f.SampleRate},
		SourceBitDepth: wavBitDepth,
	}
	s.encMu.Unlock()

	if err := s.start(r, s.latency, s.write); err != nil {
		_ = file.Close()
		_ = os.Remove(s.path)
		return err
	}
	s.logger.Info("output: recording", "path", s.path, "sample_rate", f.SampleRate, "channels", f.NumChannels)
	return nil
}

func (s *WAV) write(samples []float32) error {
	s.encMu.Lock()
	defer s.encMu.Unlock()

	buf := s.intBuf
	buf.Data = grow(buf.Data, len(samples))
	for i, v := range samples {
		buf.Data[i] = toPCM16(v)
	}
	if err := s.enc.Write(buf); err != nil {
		return fmt.Errorf("output: write %q: %w", s.path, err)
	}
	return nil
}

// Stop stops rendering, then finalizes the WAV header and closes the file.
func (s *WAV) Stop() error {
	runErr := s.halt()
	if errors.Is(runErr, ErrNotRunning) {
		return runErr
	}

	s.encMu.Lock()
	defer s.encMu.Unlock()
	if s.file == nil {
		return runErr
	}
	encErr := s.enc.Close()
	fileErr := s.file.Close()
	s.file = nil
	s.logger.Info("output: recording closed", "path", s.path, "samples", s.samples())

	if err := errors.Join(runErr, encErr, fileErr); err != nil {
		return fmt.Errorf("output: close %q: %w", s.path, err)
	}
	return nil
}

func toPCM16(v float32) int {
	x := math.Round(float64(v) * math.MaxInt16)
	return int(max(math.MinInt16, min(math.MaxInt16, x)))
}

func grow(s []int, n int) []int {
	if cap(s) < n {
		return make([]int, n)
	}
	return s[:n]
}
