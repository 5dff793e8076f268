package synthtest

import (
	"context"
	"sync"
	"time"

	"github.com/chase3718/midisynth/dispatch"
)

// Source is a midiin.Source fed by the test through Send.
type Source struct {
	// RunErr, when set, is returned by Run once the events sent so far
	// have been consumed.
	RunErr error

	once   sync.Once
	events chan dispatch.Event

	mu     sync.Mutex
	closes int
}

func (s *Source) init() {
	s.once.Do(func() { s.events = make(chan dispatch.Event, 64) })
}

func (s *Source) Events() <-chan dispatch.Event {
	s.init()
	return s.events
}

// Send queues events for the dispatcher.
func (s *Source) Send(events ...dispatch.Event) {
	s.init()
	for _, ev := range events {
		s.events <- ev
	}
}

// Drained reports whether every sent event has been received.
func (s *Source) Drained() bool {
	s.init()
	return len(s.events) == 0
}

func (s *Source) Run(ctx context.Context) error {
	s.init()
	if s.RunErr != nil {
		for len(s.events) > 0 {
			select {
			case <-ctx.Done():
				return nil
			default:
				time.Sleep(time.Millisecond)
			}
		}
		return s.RunErr
	}
	<-ctx.Done()
	return nil
}

func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

func (s *Source) Closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}
