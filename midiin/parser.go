package midiin

import "gitlab.com/gomidi/midi/v2"

// Parser assembles MIDI messages from a raw byte stream such as a DIN or
// USB-serial link. It keeps running status for channel messages, drops
// realtime bytes without disturbing a message in progress, and skips
// SysEx. The zero value is ready to use.
type Parser struct {
	status  byte
	need    int
	n       int
	data    [2]byte
	inSysEx bool
}

// Feed consumes one byte and returns a message when it completes one.
func (p *Parser) Feed(b byte) (midi.Message, bool) {
	switch {
	case b >= 0xF8:
		// Realtime: clock, start/stop, active sensing, reset.
		return nil, false
	case b == 0xF0:
		p.inSysEx = true
		p.status, p.n = 0, 0
		return nil, false
	case b == 0xF7:
		p.inSysEx = false
		return nil, false
	case b >= 0x80:
		p.inSysEx = false
		p.status, p.n = b, 0
		p.need = dataLen(b)
		if p.need == 0 {
			// Tune request has no data and no running status.
			p.status = 0
			return midi.Message{b}, true
		}
		return nil, false
	}

	if p.inSysEx || p.status == 0 {
		return nil, false
	}
	p.data[p.n] = b
	p.n++
	if p.n < p.need {
		return nil, false
	}

	msg := make(midi.Message, 0, 1+p.need)
	msg = append(msg, p.status)
	msg = append(msg, p.data[:p.need]...)
	p.n = 0
	if p.status >= 0xF0 {
		// System common messages cancel running status.
		p.status = 0
	}
	return msg, true
}

// dataLen is the number of data bytes following status byte b.
func dataLen(b byte) int {
	switch b & 0xF0 {
	case 0xC0, 0xD0:
		return 1
	case 0xF0:
		switch b {
		case 0xF1, 0xF3:
			return 1
		case 0xF2:
			return 2
		}
		return 0
	}
	return 2
}
