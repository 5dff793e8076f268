package midiin

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"go.bug.st/serial"

	"github.com/chase3718/midisynth/dispatch"
)

// DINBaud is the MIDI 1.0 wire rate. USB-serial bridges usually run
// faster; pass their rate to OpenSerial instead.
const DINBaud = 31250

// SerialSource reads a raw MIDI byte stream from a serial device.
type SerialSource struct {
	*feed

	port   io.ReadCloser
	name   string
	logger *slog.Logger
}

// OpenSerial opens the named serial device at the given baud rate.
func OpenSerial(name string, baud int, logger *slog.Logger) (*SerialSource, error) {
	mode := &serial.Mode{BaudRate: baud}
	p, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("midiin: open serial %q at %d baud: %w", name, baud, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("serial: port opened", "device", name, "baud", baud)
	return NewSerialSource(p, name, logger), nil
}

// NewSerialSource reads MIDI from an already open stream.
func NewSerialSource(r io.ReadCloser, name string, logger *slog.Logger) *SerialSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &SerialSource{
		feed:   newFeed(defaultBuffer),
		port:   r,
		name:   name,
		logger: logger,
	}
}

// Run reads until ctx is done, the stream ends, or a read fails. A failed
// or ended stream releases all voices and is returned as an error, since
// a serial link cannot be rediscovered.
func (s *SerialSource) Run(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() { errc <- s.read() }()

	select {
	case <-ctx.Done():
		_ = s.Close()
		<-errc
		return nil
	case err := <-errc:
		if s.isClosed() {
			return nil
		}
		s.logger.Warn("serial: input lost", "device", s.name, "err", err)
		s.sendCtx(ctx, dispatch.Event{Type: dispatch.Reset})
		return fmt.Errorf("midiin: serial %q: %w", s.name, err)
	}
}

func (s *SerialSource) read() error {
	var p Parser
	buf := make([]byte, 256)
	for {
		n, err := s.port.Read(buf)
		for _, b := range buf[:n] {
			msg, ok := p.Feed(b)
			if !ok {
				continue
			}
			ev := dispatch.EventFromMessage(msg)
			if ev.Type == dispatch.Other {
				s.logger.Debug("serial: unhandled message", "msg", msg.String())
				continue
			}
			if !s.send(ev) {
				return ErrClosed
			}
		}
		if err != nil {
			return err
		}
	}
}

// Close closes the port, which unblocks a pending read.
func (s *SerialSource) Close() error {
	if !s.shut() {
		return nil
	}
	s.logger.Info("serial: closing port", "device", s.name)
	if err := s.port.Close(); err != nil {
		return fmt.Errorf("midiin: close serial %q: %w", s.name, err)
	}
	return nil
}
