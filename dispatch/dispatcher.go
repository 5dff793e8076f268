// Package dispatch turns the stream of note events into voice
// transitions: each note is either inactive or has exactly one voice
// attached to the audio graph.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"golang.org/x/time/rate"

	"github.com/chase3718/midisynth/graph"
	"github.com/chase3718/midisynth/pitch"
	"github.com/chase3718/midisynth/voice"
)

// Graph is the part of the audio graph the dispatcher mutates.
type Graph interface {
	AttachVoice(frequency, amplitude float64) (*graph.Oscillator, *graph.Converter, error)
	DetachVoice(osc *graph.Oscillator, conv *graph.Converter)
}

// Stats counts what the dispatcher did.
type Stats struct {
	Started  uint64
	Released uint64
	Dropped  uint64
	Ignored  uint64
	// Peak is the largest number of voices active at once.
	Peak int
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// WithWarnLimit bounds how often dropped voices are logged from Run.
func WithWarnLimit(every time.Duration, burst int) Option {
	return func(d *Dispatcher) { d.warnings = rate.NewLimiter(rate.Every(every), burst) }
}

// Dispatcher owns the voice registry and is the only mutator of the graph.
// It is not safe for concurrent use: one goroutine feeds it events, and
// Stats is read after Run returns.
type Dispatcher struct {
	graph    Graph
	voices   *voice.Registry
	logger   *slog.Logger
	warnings *rate.Limiter
	stats    Stats
}

func New(g Graph, voices *voice.Registry, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		graph:    g,
		voices:   voices,
		logger:   slog.Default(),
		warnings: rate.NewLimiter(rate.Every(time.Second), 5),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Voices exposes the registry for inspection.
func (d *Dispatcher) Voices() *voice.Registry { return d.voices }

func (d *Dispatcher) Stats() Stats { return d.stats }

// Run consumes events one at a time until ctx is cancelled or events is
// closed. Each event is fully applied before the next is read. Dropped
// voices are logged and do not stop the loop.
func (d *Dispatcher) Run(ctx context.Context, events <-chan Event) error {
	d.logger.Debug("dispatch: loop started")
	defer d.logger.Debug("dispatch: loop stopped", "active", d.voices.Len())

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := d.Handle(ev); err != nil && d.warnings.Allow() {
				d.logger.Warn("dispatch: event failed", "event", ev.String(), "err", err)
			}
		}
	}
}

// HandleMessage classifies a raw MIDI message and applies it.
func (d *Dispatcher) HandleMessage(msg midi.Message) error {
	ev := EventFromMessage(msg)
	if ev.Type == Other {
		d.logger.Debug("dispatch: unhandled message", "msg", msg.String())
	}
	return d.Handle(ev)
}

// Handle applies one event. Only a failed voice allocation returns an
// error; duplicates, strays and other message types are silent no-ops.
func (d *Dispatcher) Handle(ev Event) error {
	switch ev.Type {
	case NoteOn:
		// Velocity zero is the running-status spelling of note-off.
		if ev.Velocity == 0 {
			d.noteOff(ev.Note)
			return nil
		}
		return d.noteOn(ev.Note, ev.Velocity)
	case NoteOff:
		d.noteOff(ev.Note)
		return nil
	case Reset:
		if n := d.ReleaseAll(); n > 0 {
			d.logger.Warn("dispatch: input reset, released all voices", "count", n)
		}
		return nil
	}
	d.stats.Ignored++
	return nil
}

func (d *Dispatcher) noteOn(note, velocity int) error {
	if d.voices.IsActive(note) {
		d.logger.Debug("dispatch: note already active", "note", pitch.Name(note))
		return nil
	}

	freq := pitch.Frequency(note)
	amp := float64(min(velocity, 127)) / 127
	osc, conv, err := d.graph.AttachVoice(freq, amp)
	if err != nil {
		d.stats.Dropped++
		return fmt.Errorf("%w: note %d: %w", ErrVoiceDropped, note, err)
	}
	if _, created := d.voices.Create(note, freq, amp, osc, conv); !created {
		d.graph.DetachVoice(osc, conv)
		return nil
	}

	d.stats.Started++
	d.stats.Peak = max(d.stats.Peak, d.voices.Len())
	d.logger.Info("dispatch: note on",
		"note", pitch.Name(note),
		"midi_note", note,
		"velocity", velocity,
		"frequency", fmt.Sprintf("%.2f", freq),
		"active", d.voices.Len(),
	)
	return nil
}

func (d *Dispatcher) noteOff(note int) {
	v, ok := d.voices.Remove(note)
	if !ok {
		d.logger.Debug("dispatch: note off for inactive note", "note", pitch.Name(note))
		return
	}
	d.graph.DetachVoice(v.Oscillator, v.Conditioner)
	d.stats.Released++
	d.logger.Info("dispatch: note off",
		"note", pitch.Name(note),
		"midi_note", note,
		"active", d.voices.Len(),
	)
}

// ReleaseAll detaches every active voice and returns how many there were.
func (d *Dispatcher) ReleaseAll() int {
	drained := d.voices.Drain()
	for _, v := range drained {
		d.graph.DetachVoice(v.Oscillator, v.Conditioner)
		d.stats.Released++
	}
	return len(drained)
}
