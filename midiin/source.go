// Package midiin connects MIDI inputs to the dispatcher. Every source
// delivers note events on a channel in arrival order; a Reset event is
// sent when the device goes away.
package midiin

import (
	"context"
	"strings"
	"sync"

	"github.com/chase3718/midisynth/dispatch"
)

// Source is an open MIDI input.
type Source interface {
	// Events delivers note events in arrival order.
	Events() <-chan dispatch.Event
	// Run supervises the input until ctx is done or the input fails.
	Run(ctx context.Context) error
	// Close releases the device. Pending sends are abandoned.
	Close() error
}

// DefaultPreferred matches the keyboard the synthesizer was built for.
var DefaultPreferred = []string{"CASIO"}

// DefaultExcluded are virtual/system ports that are never auto-connected.
var DefaultExcluded = []string{"Midi Through", "Through Port", "Dummy"}

const defaultBuffer = 64

// feed is the send side shared by the sources: a buffered event channel
// and a done channel that unblocks senders on Close.
type feed struct {
	events    chan dispatch.Event
	done      chan struct{}
	closeOnce sync.Once
}

func newFeed(buffer int) *feed {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &feed{
		events: make(chan dispatch.Event, buffer),
		done:   make(chan struct{}),
	}
}

func (f *feed) Events() <-chan dispatch.Event { return f.events }

// send blocks until the event is queued or the feed is closed, so events
// are never reordered or silently dropped while the source is open.
func (f *feed) send(ev dispatch.Event) bool {
	select {
	case <-f.done:
		return false
	default:
	}
	select {
	case f.events <- ev:
		return true
	case <-f.done:
		return false
	}
}

// sendCtx is send that also gives up when ctx is done. Supervising
// goroutines use it so a full buffer cannot outlive cancellation.
func (f *feed) sendCtx(ctx context.Context, ev dispatch.Event) bool {
	select {
	case <-f.done:
		return false
	case <-ctx.Done():
		return false
	default:
	}
	select {
	case f.events <- ev:
		return true
	case <-f.done:
		return false
	case <-ctx.Done():
		return false
	}
}

// shut reports whether this call closed the feed.
func (f *feed) shut() bool {
	closed := false
	f.closeOnce.Do(func() {
		close(f.done)
		closed = true
	})
	return closed
}

func (f *feed) isClosed() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// -------------------- port selection --------------------

func containsCI(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

func excluded(name string, patterns []string) bool {
	for _, pat := range patterns {
		if containsCI(name, pat) {
			return true
		}
	}
	return false
}

// pickPreferred returns the first input matching a preferred pattern, in
// pattern order. With no match, a single remaining input is taken.
func pickPreferred(inputs, preferred []string) (string, bool) {
	for _, pat := range preferred {
		for _, name := range inputs {
			if containsCI(name, pat) {
				return name, true
			}
		}
	}
	if len(inputs) == 1 {
		return inputs[0], true
	}
	return "", false
}
