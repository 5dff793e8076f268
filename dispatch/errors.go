package dispatch

import "errors"

// ErrVoiceDropped wraps the graph error that kept a note-on from sounding.
var ErrVoiceDropped = errors.New("dispatch: voice dropped")
