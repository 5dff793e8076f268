// Package graph is the audio graph the synthesizer plays through: an
// always-on mixing bus linked to an output sink, plus per-voice
// oscillator/converter pairs attached and detached while audio flows.
//
// The graph has a single mutator (the event dispatcher) and a single
// reader (the sink's render goroutine calling Render). Mutations never
// pause rendering.
package graph

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"

	"github.com/go-audio/audio"
)

const (
	DefaultSampleRate = 48000
	DefaultChannels   = 1
	DefaultMasterGain = 0.25
)

// Renderer is what a sink pulls audio from.
type Renderer interface {
	// Format of the interleaved samples Render produces.
	Format() audio.Format
	// Render fills dst with interleaved float32 samples in [-1,1] and
	// returns the number of samples written.
	Render(dst []float32) int
}

// Sink is the terminal node delivering the mixed signal to an output.
// Start begins pulling from r on the sink's own goroutine; Stop flushes
// and releases the output.
type Sink interface {
	Start(r Renderer) error
	Stop() error
}

// Stats is a snapshot of render counters.
type Stats struct {
	Frames uint64
	Peak   float64
}

// Option configures a Graph.
type Option func(*Graph)

// WithFormat sets the bus sample rate and channel count.
func WithFormat(f audio.Format) Option {
	return func(g *Graph) { g.format = f }
}

// WithWaveform sets the waveform of every oscillator the graph creates.
func WithWaveform(w Waveform) Option {
	return func(g *Graph) { g.waveform = w }
}

// WithMasterGain scales the bus output.
func WithMasterGain(gain float64) Option {
	return func(g *Graph) { g.gain = gain }
}

// WithMaxNodes caps the number of voice nodes the graph will allocate.
// Zero means no cap.
func WithMaxNodes(n int) Option {
	return func(g *Graph) { g.maxNodes = n }
}

func WithLogger(l *slog.Logger) Option {
	return func(g *Graph) { g.logger = l }
}

// Graph owns the bus, the sink and every voice node.
type Graph struct {
	logger   *slog.Logger
	format   audio.Format
	waveform Waveform
	gain     float64
	maxNodes int
	sink     Sink

	mu          sync.Mutex
	initialized bool
	closed      bool
	children    map[element]struct{}

	state  atomic.Int32
	bus    atomic.Pointer[Mixer]
	frames atomic.Uint64
	peak   atomic.Uint64 // math.Float64bits
}

// New returns an uninitialized graph that will play through sink.
func New(sink Sink, opts ...Option) *Graph {
	g := &Graph{
		logger:   slog.Default(),
		format:   audio.Format{NumChannels: DefaultChannels, SampleRate: DefaultSampleRate},
		waveform: Sawtooth,
		gain:     DefaultMasterGain,
		sink:     sink,
		children: make(map[element]struct{}),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Initialize builds the bus, links it to the sink and sets the graph
// playing. It must be called exactly once, before any AttachVoice.
func (g *Graph) Initialize() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return ErrShutdown
	}
	if g.initialized {
		return ErrAlreadyInitialized
	}
	if g.sink == nil {
		return fmt.Errorf("%w: no sink", ErrLink)
	}
	if g.format.NumChannels < 1 || g.format.SampleRate < 1 {
		return fmt.Errorf("%w: format %+v", ErrInvalidParameter, g.format)
	}
	if math.IsNaN(g.gain) || g.gain < 0 {
		return fmt.Errorf("%w: master gain %v", ErrInvalidParameter, g.gain)
	}

	bus := newMixer(g.format, g.gain)
	bus.setState(StatePlaying)
	g.bus.Store(bus)
	g.state.Store(int32(StatePlaying))

	if err := g.sink.Start(g); err != nil {
		bus.setState(StateNull)
		g.state.Store(int32(StateNull))
		return fmt.Errorf("graph: start sink: %w", err)
	}
	g.initialized = true

	g.logger.Info("graph: playing",
		"sample_rate", g.format.SampleRate,
		"channels", g.format.NumChannels,
		"waveform", g.waveform.String(),
		"master_gain", g.gain,
	)
	return nil
}

// AttachVoice creates an oscillator and a converter, links
// osc -> converter -> bus and then syncs both with the graph's run state,
// so a voice attached to a playing graph sounds immediately. On error
// nothing is left attached.
func (g *Graph) AttachVoice(frequency, amplitude float64) (*Oscillator, *Converter, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return nil, nil, ErrShutdown
	}
	if !g.initialized {
		return nil, nil, ErrNotInitialized
	}
	if g.maxNodes > 0 && len(g.children)+2 > g.maxNodes {
		return nil, nil, fmt.Errorf("%w: %d of %d nodes in use", ErrNodeAllocation, len(g.children), g.maxNodes)
	}

	osc, err := newOscillator(g.waveform, frequency, amplitude, g.format.SampleRate)
	if err != nil {
		return nil, nil, err
	}
	conv := newConverter(g.format)
	g.children[osc] = struct{}{}
	g.children[conv] = struct{}{}

	bus := g.bus.Load()
	if err := conv.link(osc); err != nil {
		g.dropLocked(osc, conv)
		return nil, nil, err
	}
	if err := bus.link(conv); err != nil {
		g.dropLocked(osc, conv)
		return nil, nil, err
	}

	parent := g.State()
	osc.syncState(parent)
	conv.syncState(parent)

	g.logger.Debug("graph: voice attached",
		"frequency", frequency,
		"amplitude", amplitude,
		"nodes", len(g.children),
	)
	return osc, conv, nil
}

// DetachVoice unlinks conv from the bus, stops both nodes, removes them
// from the graph and releases them. Nodes already detached, or nil, are
// skipped, so it is safe to call more than once.
func (g *Graph) DetachVoice(osc *Oscillator, conv *Converter) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if conv != nil {
		if bus := g.bus.Load(); bus != nil {
			bus.unlink(conv)
		}
	}
	g.dropLocked(osc, conv)

	g.logger.Debug("graph: voice detached", "nodes", len(g.children))
}

// dropLocked stops, removes and releases the given nodes.
func (g *Graph) dropLocked(osc *Oscillator, conv *Converter) {
	if conv != nil {
		conv.setState(StateNull)
		delete(g.children, conv)
		conv.release()
	}
	if osc != nil {
		osc.setState(StateNull)
		delete(g.children, osc)
		osc.release()
	}
}

// Shutdown stops every remaining voice node, the bus and the sink. The
// graph's own state goes to null last so the sink can drain what was
// already rendered. Later calls return nil.
func (g *Graph) Shutdown() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return nil
	}
	g.closed = true
	if !g.initialized {
		return nil
	}

	bus := g.bus.Load()
	remaining := len(g.children)
	for el := range g.children {
		if conv, ok := el.(*Converter); ok {
			bus.unlink(conv)
		}
		el.setState(StateNull)
		el.release()
	}
	clear(g.children)

	bus.setState(StateNull)
	err := g.sink.Stop()
	g.state.Store(int32(StateNull))

	g.logger.Info("graph: stopped", "released_nodes", remaining)
	if err != nil {
		return fmt.Errorf("graph: stop sink: %w", err)
	}
	return nil
}

// Render implements Renderer. It is called from the sink's goroutine.
func (g *Graph) Render(dst []float32) int {
	bus := g.bus.Load()
	if bus == nil {
		clear(dst)
		return len(dst)
	}
	n, peak := bus.render(dst)
	g.frames.Add(uint64(n / g.format.NumChannels))
	if peak > math.Float64frombits(g.peak.Load()) {
		g.peak.Store(math.Float64bits(peak))
	}
	return n
}

// Format implements Renderer.
func (g *Graph) Format() audio.Format { return g.format }

// State is the graph's top-level run state.
func (g *Graph) State() State { return State(g.state.Load()) }

// NodeCount is the number of voice nodes currently owned by the graph.
func (g *Graph) NodeCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.children)
}

// Voices is the number of converters linked into the bus.
func (g *Graph) Voices() int {
	bus := g.bus.Load()
	if bus == nil {
		return 0
	}
	return bus.inputCount()
}

// Linked reports whether conv currently feeds the bus.
func (g *Graph) Linked(conv *Converter) bool {
	bus := g.bus.Load()
	return bus != nil && bus.linked(conv)
}

// Stats returns the render counters.
func (g *Graph) Stats() Stats {
	return Stats{
		Frames: g.frames.Load(),
		Peak:   math.Float64frombits(g.peak.Load()),
	}
}
