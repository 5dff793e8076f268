package graph_test

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/go-audio/audio"

	"github.com/chase3718/midisynth/graph"
	"github.com/chase3718/midisynth/internal/synthtest"
)

func newPlaying(t *testing.T, opts ...graph.Option) (*graph.Graph, *synthtest.Sink) {
	t.Helper()
	sink := &synthtest.Sink{}
	g := graph.New(sink, opts...)
	if err := g.Initialize(); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	return g, sink
}

func TestInitialize(t *testing.T) {
	t.Parallel()

	g, sink := newPlaying(t)
	if g.State() != graph.StatePlaying {
		t.Errorf("State() = %v, want playing", g.State())
	}
	if sink.Starts() != 1 {
		t.Errorf("sink started %d times, want 1", sink.Starts())
	}
	if err := g.Initialize(); !errors.Is(err, graph.ErrAlreadyInitialized) {
		t.Errorf("second Initialize() error = %v, want ErrAlreadyInitialized", err)
	}
}

func TestInitializeSinkFailure(t *testing.T) {
	t.Parallel()

	startErr := errors.New("no audio device")
	g := graph.New(&synthtest.Sink{StartErr: startErr})
	if err := g.Initialize(); !errors.Is(err, startErr) {
		t.Fatalf("Initialize() error = %v, want %v", err, startErr)
	}
	if g.State() != graph.StateNull {
		t.Errorf("State() = %v after failed Initialize, want null", g.State())
	}
	if _, _, err := g.AttachVoice(440, 1); !errors.Is(err, graph.ErrNotInitialized) {
		t.Errorf("AttachVoice() error = %v, want ErrNotInitialized", err)
	}
}

func TestInitializeRejectsBadFormat(t *testing.T) {
	t.Parallel()

	g := graph.New(&synthtest.Sink{}, graph.WithFormat(audio.Format{NumChannels: 0, SampleRate: 48000}))
	if err := g.Initialize(); !errors.Is(err, graph.ErrInvalidParameter) {
		t.Errorf("Initialize() error = %v, want ErrInvalidParameter", err)
	}
}

func TestAttachBeforeInitialize(t *testing.T) {
	t.Parallel()

	g := graph.New(&synthtest.Sink{})
	if _, _, err := g.AttachVoice(440, 0.5); !errors.Is(err, graph.ErrNotInitialized) {
		t.Errorf("AttachVoice() error = %v, want ErrNotInitialized", err)
	}
	if g.NodeCount() != 0 {
		t.Errorf("NodeCount() = %d, want 0", g.NodeCount())
	}
}

func TestAttachVoiceStartsPlaying(t *testing.T) {
	t.Parallel()

	g, sink := newPlaying(t, graph.WithMasterGain(1))

	// Render a block first: the voice joins a graph that is already playing.
	if out := sink.Pull(64); len(out) != 64 {
		t.Fatalf("Pull() returned %d samples, want 64", len(out))
	}

	osc, conv, err := g.AttachVoice(440, 0.5)
	if err != nil {
		t.Fatalf("AttachVoice() error = %v", err)
	}
	if osc.State() != graph.StatePlaying || conv.State() != graph.StatePlaying {
		t.Errorf("node states = %v/%v, want playing", osc.State(), conv.State())
	}
	if conv.Source() != osc {
		t.Error("converter is not linked to the oscillator")
	}
	if !g.Linked(conv) {
		t.Error("converter is not linked to the bus")
	}
	if osc.Waveform() != graph.Sawtooth || osc.Frequency() != 440 || osc.Gain() != 0.5 {
		t.Errorf("oscillator = %v/%v/%v, want saw/440/0.5", osc.Waveform(), osc.Frequency(), osc.Gain())
	}
	if g.NodeCount() != 2 || g.Voices() != 1 {
		t.Errorf("NodeCount() = %d, Voices() = %d, want 2, 1", g.NodeCount(), g.Voices())
	}

	out := sink.Pull(480)
	var peak float64
	for _, v := range out {
		peak = math.Max(peak, math.Abs(float64(v)))
	}
	if peak < 0.45 || peak > 0.5 {
		t.Errorf("peak = %v, want close to 0.5", peak)
	}
	if g.Stats().Frames != 64+480 {
		t.Errorf("Stats().Frames = %d, want %d", g.Stats().Frames, 64+480)
	}
}

func TestAttachVoiceStereo(t *testing.T) {
	t.Parallel()

	g, sink := newPlaying(t,
		graph.WithFormat(audio.Format{NumChannels: 2, SampleRate: 44100}),
		graph.WithWaveform(graph.Square),
		graph.WithMasterGain(1),
	)
	if _, _, err := g.AttachVoice(100, 0.5); err != nil {
		t.Fatalf("AttachVoice() error = %v", err)
	}
	out := sink.Pull(8)
	if len(out) != 16 {
		t.Fatalf("Pull(8) returned %d samples, want 16", len(out))
	}
	for f := range 8 {
		if out[2*f] != 0.5 || out[2*f+1] != 0.5 {
			t.Errorf("frame %d = (%v, %v), want (0.5, 0.5)", f, out[2*f], out[2*f+1])
		}
	}
}

func TestAttachVoiceInvalidParameters(t *testing.T) {
	t.Parallel()

	g, _ := newPlaying(t)
	if _, _, err := g.AttachVoice(math.NaN(), 0.5); !errors.Is(err, graph.ErrInvalidParameter) {
		t.Errorf("AttachVoice(NaN) error = %v, want ErrInvalidParameter", err)
	}
	if _, _, err := g.AttachVoice(440, 2); !errors.Is(err, graph.ErrInvalidParameter) {
		t.Errorf("AttachVoice(gain 2) error = %v, want ErrInvalidParameter", err)
	}
	if g.NodeCount() != 0 || g.Voices() != 0 {
		t.Errorf("failed attach left %d nodes, %d voices", g.NodeCount(), g.Voices())
	}
}

func TestAttachVoiceNodeCapacity(t *testing.T) {
	t.Parallel()

	g, _ := newPlaying(t, graph.WithMaxNodes(4))
	for range 2 {
		if _, _, err := g.AttachVoice(440, 0.5); err != nil {
			t.Fatalf("AttachVoice() error = %v", err)
		}
	}
	if _, _, err := g.AttachVoice(880, 0.5); !errors.Is(err, graph.ErrNodeAllocation) {
		t.Fatalf("AttachVoice() past capacity error = %v, want ErrNodeAllocation", err)
	}
	if g.NodeCount() != 4 || g.Voices() != 2 {
		t.Errorf("NodeCount() = %d, Voices() = %d, want 4, 2", g.NodeCount(), g.Voices())
	}
}

func TestDetachVoice(t *testing.T) {
	t.Parallel()

	g, sink := newPlaying(t)
	osc, conv, err := g.AttachVoice(440, 1)
	if err != nil {
		t.Fatalf("AttachVoice() error = %v", err)
	}
	other, otherConv, err := g.AttachVoice(660, 1)
	if err != nil {
		t.Fatalf("AttachVoice() error = %v", err)
	}

	g.DetachVoice(osc, conv)
	if g.Linked(conv) {
		t.Error("converter still linked after DetachVoice")
	}
	if osc.State() != graph.StateNull || conv.State() != graph.StateNull {
		t.Errorf("detached node states = %v/%v, want null", osc.State(), conv.State())
	}
	if !osc.Released() || !conv.Released() {
		t.Error("detached nodes not released")
	}
	if g.NodeCount() != 2 || g.Voices() != 1 {
		t.Errorf("NodeCount() = %d, Voices() = %d, want 2, 1", g.NodeCount(), g.Voices())
	}
	if other.State() != graph.StatePlaying || !g.Linked(otherConv) {
		t.Error("detaching one voice disturbed another")
	}

	// Second detach and nil arguments are harmless.
	g.DetachVoice(osc, conv)
	g.DetachVoice(nil, nil)
	g.DetachVoice(nil, conv)
	if g.NodeCount() != 2 {
		t.Errorf("NodeCount() = %d after repeated detach, want 2", g.NodeCount())
	}
	if g.State() != graph.StatePlaying || !sink.Running() {
		t.Error("bus stopped after detach")
	}
}

func TestShutdown(t *testing.T) {
	t.Parallel()

	g, sink := newPlaying(t)
	var nodes []*graph.Oscillator
	for _, f := range []float64{220, 330, 440} {
		osc, _, err := g.AttachVoice(f, 0.3)
		if err != nil {
			t.Fatalf("AttachVoice() error = %v", err)
		}
		nodes = append(nodes, osc)
	}

	if err := g.Shutdown(); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if g.State() != graph.StateNull {
		t.Errorf("State() = %v, want null", g.State())
	}
	if g.NodeCount() != 0 || g.Voices() != 0 {
		t.Errorf("NodeCount() = %d, Voices() = %d after Shutdown, want 0", g.NodeCount(), g.Voices())
	}
	for _, osc := range nodes {
		if osc.State() != graph.StateNull || !osc.Released() {
			t.Errorf("oscillator %v still running after Shutdown", osc.Frequency())
		}
	}
	if sink.Stops() != 1 || sink.Running() {
		t.Errorf("sink stops = %d, running = %v, want 1, false", sink.Stops(), sink.Running())
	}

	if err := g.Shutdown(); err != nil {
		t.Errorf("second Shutdown() error = %v", err)
	}
	if sink.Stops() != 1 {
		t.Errorf("sink stopped %d times, want 1", sink.Stops())
	}
	if _, _, err := g.AttachVoice(440, 1); !errors.Is(err, graph.ErrShutdown) {
		t.Errorf("AttachVoice() after Shutdown error = %v, want ErrShutdown", err)
	}
}

func TestShutdownReportsSinkError(t *testing.T) {
	t.Parallel()

	stopErr := errors.New("device busy")
	sink := &synthtest.Sink{StopErr: stopErr}
	g := graph.New(sink)
	if err := g.Initialize(); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if err := g.Shutdown(); !errors.Is(err, stopErr) {
		t.Errorf("Shutdown() error = %v, want %v", err, stopErr)
	}
	if g.State() != graph.StateNull {
		t.Errorf("State() = %v, want null", g.State())
	}
}

func TestShutdownBeforeInitialize(t *testing.T) {
	t.Parallel()

	sink := &synthtest.Sink{}
	g := graph.New(sink)
	if err := g.Shutdown(); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
	if sink.Stops() != 0 {
		t.Errorf("sink stopped %d times, want 0", sink.Stops())
	}
	if err := g.Initialize(); !errors.Is(err, graph.ErrShutdown) {
		t.Errorf("Initialize() after Shutdown error = %v, want ErrShutdown", err)
	}
}

func TestMutateWhileRendering(t *testing.T) {
	t.Parallel()

	g, sink := newPlaying(t)

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
				sink.Pull(128)
			}
		}
	}()

	for i := range 200 {
		osc, conv, err := g.AttachVoice(110+float64(i), 0.2)
		if err != nil {
			t.Errorf("AttachVoice() error = %v", err)
			break
		}
		if i%3 != 0 {
			g.DetachVoice(osc, conv)
		}
	}
	close(done)
	wg.Wait()

	if g.Voices() != 67 || g.NodeCount() != 134 {
		t.Errorf("Voices() = %d, NodeCount() = %d, want 67, 134", g.Voices(), g.NodeCount())
	}
}
