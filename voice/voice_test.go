package voice

import (
	"slices"
	"testing"
)

func TestCreateIsIdempotent(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	first, created := r.Create(60, 261.6, 0.5, nil, nil)
	if !created {
		t.Fatal("Create() = false for a new note")
	}

	second, created := r.Create(60, 999, 1, nil, nil)
	if created {
		t.Error("Create() = true for an active note")
	}
	if second != first {
		t.Error("Create() did not return the existing voice")
	}
	if second.Frequency != 261.6 || second.Amplitude != 0.5 {
		t.Errorf("existing voice changed to %v/%v", second.Frequency, second.Amplitude)
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
}

func TestRemove(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Create(60, 261.6, 0.5, nil, nil)

	v, ok := r.Remove(60)
	if !ok || v == nil || v.Note != 60 {
		t.Fatalf("Remove(60) = %v, %v", v, ok)
	}
	if r.IsActive(60) {
		t.Error("IsActive(60) after Remove")
	}

	// Stray and repeated removals are not errors.
	if v, ok := r.Remove(60); ok || v != nil {
		t.Errorf("second Remove(60) = %v, %v", v, ok)
	}
	if v, ok := r.Remove(72); ok || v != nil {
		t.Errorf("Remove(72) = %v, %v", v, ok)
	}
}

func TestNotesIndependent(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	for _, n := range []int{64, 60, 67} {
		r.Create(n, 0, 0, nil, nil)
	}
	r.Remove(60)

	if !r.IsActive(64) || !r.IsActive(67) || r.IsActive(60) {
		t.Errorf("active notes = %v, want [64 67]", r.Notes())
	}
	if got := r.Notes(); !slices.Equal(got, []int{64, 67}) {
		t.Errorf("Notes() = %v, want [64 67]", got)
	}
	if v, ok := r.Get(67); !ok || v.Note != 67 {
		t.Errorf("Get(67) = %v, %v", v, ok)
	}
}

func TestDrain(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	for _, n := range []int{72, 48, 60} {
		r.Create(n, 0, 0, nil, nil)
	}

	drained := r.Drain()
	var notes []int
	for _, v := range drained {
		notes = append(notes, v.Note)
	}
	if !slices.Equal(notes, []int{48, 60, 72}) {
		t.Errorf("Drain() notes = %v, want [48 60 72]", notes)
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d after Drain, want 0", r.Len())
	}
	if len(r.Drain()) != 0 {
		t.Error("second Drain() returned voices")
	}
}
