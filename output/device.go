package output

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/chase3718/midisynth/graph"
)

// Device plays the mixed signal on the default audio device. The device
// pulls samples through Read on its own goroutine.
type Device struct {
	latency time.Duration
	logger  *slog.Logger

	renderer atomic.Pointer[graph.Renderer]
	samples  []float32

	mu     sync.Mutex
	ctx    *oto.Context
	player *oto.Player
}

// NewDevice returns a sink for the system's default output. latency sets
// the device buffer size; zero lets the driver choose.
func NewDevice(latency time.Duration, logger *slog.Logger) *Device {
	if logger == nil {
		logger = slog.Default()
	}
	return &Device{latency: latency, logger: logger}
}

// Start opens the device in the renderer's format and starts playback.
// A process can open the device once.
func (d *Device) Start(r graph.Renderer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.player != nil {
		return ErrRunning
	}

	f := r.Format()
	if f.NumChannels < 1 || f.SampleRate < 1 {
		return fmt.Errorf("%w: %+v", ErrFormat, f)
	}
	op := &oto.NewContextOptions{
		SampleRate:   f.SampleRate,
		ChannelCount: f.NumChannels,
		Format:       oto.FormatFloat32LE,
		BufferSize:   d.latency,
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return fmt.Errorf("output: open audio device: %w", err)
	}
	<-ready

	d.renderer.Store(&r)
	d.ctx = ctx
	d.player = ctx.NewPlayer(d)
	d.player.Play()

	d.logger.Info("output: device playing",
		"sample_rate", f.SampleRate,
		"channels", f.NumChannels,
		"latency", d.latency,
	)
	return nil
}

// Read implements io.Reader for the oto player: float32 little-endian,
// interleaved. It never blocks on the graph.
func (d *Device) Read(p []byte) (int, error) {
	rp := d.renderer.Load()
	if rp == nil {
		clear(p)
		return len(p), nil
	}
	r := *rp
	ch := r.Format().NumChannels

	// Whole frames only.
	n := len(p) / 4 / ch * ch
	if n == 0 {
		clear(p)
		return len(p), nil
	}
	if cap(d.samples) < n {
		d.samples = make([]float32, n)
	}
	samples := d.samples[:n]
	n = r.Render(samples)
	for i, v := range samples[:n] {
		binary.LittleEndian.PutUint32(p[4*i:], math.Float32bits(v))
	}
	return 4 * n, nil
}

// Stop detaches the renderer and closes the player. The oto context
// itself cannot be closed and lives until the process exits.
func (d *Device) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.player == nil {
		return ErrNotRunning
	}

	d.renderer.Store(nil)
	d.player.Pause()
	err := d.player.Close()
	d.player = nil
	if err := d.ctx.Suspend(); err != nil {
		d.logger.Debug("output: suspend device", "err", err)
	}
	d.logger.Info("output: device stopped")
	if err != nil {
		return fmt.Errorf("output: close player: %w", err)
	}
	return nil
}
