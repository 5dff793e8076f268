// Package voice tracks the notes that are currently sounding.
package voice

import (
	"maps"
	"slices"

	"github.com/chase3718/midisynth/graph"
)

// Voice is one sounding note and the graph nodes it owns.
type Voice struct {
	Note      int
	Frequency float64
	Amplitude float64

	Oscillator  *graph.Oscillator
	Conditioner *graph.Converter
}

// Registry maps active note numbers to their voice. It holds at most one
// voice per note. A Registry is not safe for concurrent use; the
// dispatcher is its only user.
type Registry struct {
	active map[int]*Voice
}

func NewRegistry() *Registry {
	return &Registry{active: make(map[int]*Voice)}
}

// Create registers a voice for note. If the note is already active the
// existing voice is returned with false and nothing changes.
func (r *Registry) Create(note int, frequency, amplitude float64, osc *graph.Oscillator, conv *graph.Converter) (*Voice, bool) {
	if v, ok := r.active[note]; ok {
		return v, false
	}
	v := &Voice{
		Note:        note,
		Frequency:   frequency,
		Amplitude:   amplitude,
		Oscillator:  osc,
		Conditioner: conv,
	}
	r.active[note] = v
	return v, true
}

// Remove unregisters and returns the voice for note, if any.
func (r *Registry) Remove(note int) (*Voice, bool) {
	v, ok := r.active[note]
	if ok {
		delete(r.active, note)
	}
	return v, ok
}

func (r *Registry) IsActive(note int) bool {
	_, ok := r.active[note]
	return ok
}

// Get returns the voice for note without removing it.
func (r *Registry) Get(note int) (*Voice, bool) {
	v, ok := r.active[note]
	return v, ok
}

func (r *Registry) Len() int { return len(r.active) }

// Notes returns the active note numbers in ascending order.
func (r *Registry) Notes() []int {
	return slices.Sorted(maps.Keys(r.active))
}

// Drain removes every voice and returns them ordered by note.
func (r *Registry) Drain() []*Voice {
	out := make([]*Voice, 0, len(r.active))
	for _, n := range r.Notes() {
		out = append(out, r.active[n])
	}
	clear(r.active)
	return out
}
