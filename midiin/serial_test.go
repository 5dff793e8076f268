package midiin

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/chase3718/midisynth/dispatch"
)

var quiet = slog.New(slog.DiscardHandler)

func recv(t *testing.T, events <-chan dispatch.Event) dispatch.Event {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
		return dispatch.Event{}
	}
}

func TestSerialSourceDeliversNotes(t *testing.T) {
	t.Parallel()

	r, w := io.Pipe()
	s := NewSerialSource(r, "test", quiet)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	go func() {
		// Note on, running-status release, a clock tick and a control change.
		_, _ = w.Write([]byte{0x90, 60, 100, 0xF8, 60, 0, 0xB0, 7, 100, 0x80, 64, 0})
	}()

	want := []struct{ note, vel int }{{60, 100}, {60, 0}, {64, 0}}
	for i, exp := range want {
		got := recv(t, s.Events())
		if got.Type == dispatch.Other || got.Type == dispatch.Reset || got.Note != exp.note || got.Velocity != exp.vel {
			t.Errorf("event %d = %v, want note %d vel %d", i, got, exp.note, exp.vel)
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close() after Run error = %v", err)
	}
}

func TestSerialSourceReadFailure(t *testing.T) {
	t.Parallel()

	r, w := io.Pipe()
	s := NewSerialSource(r, "test", quiet)
	linkErr := errors.New("cable pulled")
	_ = w.CloseWithError(linkErr)

	err := s.Run(context.Background())
	if !errors.Is(err, linkErr) {
		t.Fatalf("Run() error = %v, want %v", err, linkErr)
	}
	if ev := recv(t, s.Events()); ev.Type != dispatch.Reset {
		t.Errorf("event = %v, want reset", ev)
	}
}

func TestSerialSourceLostWithFullBuffer(t *testing.T) {
	t.Parallel()

	var stream []byte
	for range defaultBuffer {
		stream = append(stream, 0x90, 60, 100)
	}
	// Nobody drains the events: the buffer fills, then the stream ends.
	s := NewSerialSource(io.NopCloser(bytes.NewReader(stream)), "test", quiet)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, io.EOF) {
			t.Errorf("Run() error = %v, want %v", err, io.EOF)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancel with a full event buffer")
	}
	if n := len(s.Events()); n != defaultBuffer {
		t.Errorf("buffered events = %d, want %d", n, defaultBuffer)
	}
}
