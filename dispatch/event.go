package dispatch

import (
	"fmt"

	"gitlab.com/gomidi/midi/v2"
)

// EventType classifies an incoming event.
type EventType int

const (
	// Other is any MIDI message the synthesizer does not act on.
	Other EventType = iota
	NoteOn
	NoteOff
	// Reset is not a MIDI message. Inputs send it when their device goes
	// away so every sounding voice is released.
	Reset
)

func (t EventType) String() string {
	switch t {
	case Other:
		return "other"
	case NoteOn:
		return "note_on"
	case NoteOff:
		return "note_off"
	case Reset:
		return "reset"
	}
	return fmt.Sprintf("EventType(%d)", int(t))
}

// Event is a note message stripped down to what the dispatcher needs.
// Channel is deliberately dropped.
type Event struct {
	Type     EventType
	Note     int
	Velocity int
}

func (e Event) String() string {
	return fmt.Sprintf("%s note=%d vel=%d", e.Type, e.Note, e.Velocity)
}

// EventFromMessage classifies a raw MIDI message. A note-on with velocity
// zero is kept as a NoteOn here; the dispatcher treats it as a release.
func EventFromMessage(msg midi.Message) Event {
	var ch, key, vel uint8
	switch {
	case msg.GetNoteOn(&ch, &key, &vel):
		return Event{Type: NoteOn, Note: int(key), Velocity: int(vel)}
	case msg.GetNoteOff(&ch, &key, &vel):
		return Event{Type: NoteOff, Note: int(key), Velocity: int(vel)}
	}
	return Event{Type: Other}
}
