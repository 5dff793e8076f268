package midiin

import "errors"

var (
	ErrPortNotFound = errors.New("midiin: no matching MIDI input")
	ErrClosed       = errors.New("midiin: source closed")
)
