package synth

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-audio/audio"

	"github.com/chase3718/midisynth/graph"
)

var ErrInvalidConfig = errors.New("synth: invalid config")

// Config is the audio side of the synthesizer.
type Config struct {
	SampleRate int
	Channels   int
	Waveform   graph.Waveform
	// MasterGain scales the mixed bus. With many voices at full velocity
	// the sum clips at 1.
	MasterGain float64
	// MaxNodes caps voice nodes (two per voice). Zero means no cap.
	MaxNodes int
	// Latency is the output buffer length.
	Latency time.Duration
}

func DefaultConfig() Config {
	return Config{
		SampleRate: graph.DefaultSampleRate,
		Channels:   graph.DefaultChannels,
		Waveform:   graph.Sawtooth,
		MasterGain: graph.DefaultMasterGain,
		Latency:    10 * time.Millisecond,
	}
}

func (c Config) Validate() error {
	var errs []error
	if c.SampleRate < 8000 || c.SampleRate > 192000 {
		errs = append(errs, fmt.Errorf("sample rate %d out of range [8000, 192000]", c.SampleRate))
	}
	if c.Channels < 1 || c.Channels > 8 {
		errs = append(errs, fmt.Errorf("channel count %d out of range [1, 8]", c.Channels))
	}
	if c.Waveform < graph.Sawtooth || c.Waveform > graph.Triangle {
		errs = append(errs, fmt.Errorf("%w: %d", graph.ErrUnknownWaveform, int(c.Waveform)))
	}
	if math.IsNaN(c.MasterGain) || c.MasterGain < 0 || c.MasterGain > 1 {
		errs = append(errs, fmt.Errorf("master gain %v out of range [0, 1]", c.MasterGain))
	}
	if c.MaxNodes < 0 || c.MaxNodes == 1 {
		errs = append(errs, fmt.Errorf("max nodes %d must be 0 or at least 2", c.MaxNodes))
	}
	if c.Latency < 0 {
		errs = append(errs, fmt.Errorf("negative latency %v", c.Latency))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

func (c Config) Format() audio.Format {
	return audio.Format{NumChannels: c.Channels, SampleRate: c.SampleRate}
}
