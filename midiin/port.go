package midiin

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/chase3718/midisynth/dispatch"
)

const defaultRescan = time.Second

// PortOptions selects and supervises a hardware MIDI input.
type PortOptions struct {
	// Preferred name patterns, tried in order (case-insensitive substring).
	Preferred []string
	// Excluded name patterns are never connected.
	Excluded []string
	// Rescan is how often Run checks that the device is still present.
	Rescan time.Duration
	// Buffer is the event channel capacity.
	Buffer int
	Logger *slog.Logger
}

func (o *PortOptions) defaults() {
	if o.Preferred == nil {
		o.Preferred = DefaultPreferred
	}
	if o.Excluded == nil {
		o.Excluded = DefaultExcluded
	}
	if o.Rescan <= 0 {
		o.Rescan = defaultRescan
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// portDriver is the part of a MIDI backend the watcher needs: list the
// input names and listen to one of them by name.
type portDriver interface {
	Inputs() ([]string, error)
	// Listen opens the named input and delivers its messages to onMsg. The
	// returned stop function stops listening and closes the input.
	Listen(name string, onMsg func(midi.Message), onErr func(error)) (stop func(), err error)
	Close() error
}

// rtmidiDriver is the portDriver for the host's rtmidi inputs.
type rtmidiDriver struct {
	drv *rtmididrv.Driver
}

func (d rtmidiDriver) Inputs() ([]string, error) {
	ins, err := d.drv.Ins()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ins))
	for _, in := range ins {
		names = append(names, in.String())
	}
	return names, nil
}

func (d rtmidiDriver) Listen(name string, onMsg func(midi.Message), onErr func(error)) (func(), error) {
	ins, err := d.drv.Ins()
	if err != nil {
		return nil, fmt.Errorf("midiin: list inputs: %w", err)
	}
	var found drivers.In
	for _, in := range ins {
		if in.String() == name {
			found = in
			break
		}
	}
	if found == nil {
		return nil, fmt.Errorf("%w: %q", ErrPortNotFound, name)
	}
	if err := found.Open(); err != nil {
		return nil, fmt.Errorf("midiin: open %q: %w", name, err)
	}
	stop, err := listenIn(found, onMsg, onErr)
	if err != nil {
		_ = found.Close()
		return nil, fmt.Errorf("midiin: listen %q: %w", name, err)
	}
	return stop, nil
}

func (d rtmidiDriver) Close() error { return d.drv.Close() }

func listenIn(in drivers.In, onMsg func(midi.Message), onErr func(error)) (func(), error) {
	stop, err := midi.ListenTo(in, func(msg midi.Message, _ int32) {
		onMsg(msg)
	}, midi.HandleError(onErr))
	if err != nil {
		return nil, err
	}
	return func() {
		stop()
		_ = in.Close()
	}, nil
}

// PortSource listens to a MIDI input. After the initial connection it
// watches for the device disappearing (hot-unplug), sends a Reset, and
// reconnects when a matching device shows up again.
type PortSource struct {
	*feed

	opts    PortOptions
	logger  *slog.Logger
	virtual bool

	mu           sync.Mutex
	drv          portDriver
	stopFn       func()
	connected    bool
	selectedName string
}

func newPortSource(drv portDriver, opts PortOptions) *PortSource {
	opts.defaults()
	return &PortSource{
		feed:   newFeed(opts.Buffer),
		opts:   opts,
		logger: opts.Logger,
		drv:    drv,
	}
}

// OpenPort connects to the preferred input. It fails with ErrPortNotFound,
// listing what is available, when nothing matches.
func OpenPort(opts PortOptions) (*PortSource, error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("midiin: rtmidi driver: %w", err)
	}
	s := newPortSource(rtmidiDriver{drv: drv}, opts)
	if err := s.connectPreferred(); err != nil {
		drv.Close()
		return nil, err
	}
	return s, nil
}

// OpenVirtual creates a virtual input named name that other programs can
// connect to. Virtual ports cannot disappear, so Run only waits.
func OpenVirtual(name string, opts PortOptions) (*PortSource, error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("midiin: rtmidi driver: %w", err)
	}
	in, err := drv.OpenVirtualIn(name)
	if err != nil {
		drv.Close()
		return nil, fmt.Errorf("midiin: open virtual input %q: %w", name, err)
	}
	s := newPortSource(rtmidiDriver{drv: drv}, opts)
	s.virtual = true

	s.mu.Lock()
	defer s.mu.Unlock()
	stop, err := listenIn(in, s.handle, func(err error) {
		s.logger.Warn("midi: listener error", "device", name, "err", err)
	})
	if err != nil {
		drv.Close()
		return nil, fmt.Errorf("midiin: listen %q: %w", name, err)
	}
	s.attach(name, stop)
	s.logger.Info("midi: virtual input open", "device", name)
	return s, nil
}

// connectPreferred makes the first connection.
func (s *PortSource) connectPreferred() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inputs, err := s.listInputs()
	if err != nil {
		return fmt.Errorf("midiin: list inputs: %w", err)
	}
	cand, ok := pickPreferred(inputs, s.opts.Preferred)
	if !ok {
		return fmt.Errorf("%w (patterns %q, available: %s)",
			ErrPortNotFound, s.opts.Preferred, strings.Join(inputs, ", "))
	}
	return s.connect(cand)
}

// Name is the connected device, or "" while disconnected.
func (s *PortSource) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedName
}

// Run rescans inputs on a ticker until ctx is done.
func (s *PortSource) Run(ctx context.Context) error {
	if s.virtual {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(s.opts.Rescan)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// Close stops listening and shuts the driver down.
func (s *PortSource) Close() error {
	if !s.shut() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeConn()
	if err := s.drv.Close(); err != nil {
		return fmt.Errorf("midiin: close driver: %w", err)
	}
	return nil
}

// tick checks the device is still present, or tries to reconnect.
func (s *PortSource) tick(ctx context.Context) {
	s.mu.Lock()
	if s.isClosed() {
		s.mu.Unlock()
		return
	}

	inputs, err := s.listInputs()
	if err != nil {
		s.mu.Unlock()
		s.logger.Error("midi: list inputs failed", "err", err)
		return
	}

	if s.connected {
		if slices.Contains(inputs, s.selectedName) {
			s.mu.Unlock()
			return
		}
		s.logger.Warn("midi: device disappeared", "device", s.selectedName)
		s.closeConn()
		s.mu.Unlock()
		s.sendCtx(ctx, dispatch.Event{Type: dispatch.Reset})
		return
	}
	defer s.mu.Unlock()

	cand, ok := pickPreferred(inputs, s.opts.Preferred)
	if !ok {
		return
	}
	if err := s.connect(cand); err != nil {
		s.logger.Error("midi: reconnect failed", "device", cand, "err", err)
	}
}

// handle runs on the driver's listener goroutine.
func (s *PortSource) handle(msg midi.Message) {
	ev := dispatch.EventFromMessage(msg)
	if ev.Type == dispatch.Other {
		s.logger.Debug("midi: unhandled message", "msg", msg.String())
		return
	}
	s.send(ev)
}

// -------------------- internal (callers hold mu) --------------------

func (s *PortSource) listInputs() ([]string, error) {
	all, err := s.drv.Inputs()
	if err != nil {
		return nil, err
	}
	var names []string
	for _, name := range all {
		if excluded(name, s.opts.Excluded) {
			s.logger.Debug("midi: input excluded", "device", name)
			continue
		}
		names = append(names, name)
	}
	s.logger.Debug("midi: inputs found", "count", len(names), "devices", strings.Join(names, ", "))
	return names, nil
}

func (s *PortSource) connect(name string) error {
	stop, err := s.drv.Listen(name, s.handle, func(listenErr error) {
		s.logger.Warn("midi: listener error", "device", name, "err", listenErr)
		// closeConn calls the listener's stop function, which must not run
		// on the listener goroutine.
		go s.dropConn(name)
	})
	if err != nil {
		return err
	}
	s.attach(name, stop)
	return nil
}

func (s *PortSource) attach(name string, stop func()) {
	s.stopFn = stop
	s.connected = true
	s.selectedName = name
	s.logger.Info("midi: connected", "device", name)
}

// dropConn handles a listener failure on device name.
func (s *PortSource) dropConn(name string) {
	s.mu.Lock()
	if !s.connected || s.selectedName != name || s.virtual {
		s.mu.Unlock()
		return
	}
	s.closeConn()
	s.mu.Unlock()
	s.send(dispatch.Event{Type: dispatch.Reset})
}

func (s *PortSource) closeConn() {
	if s.stopFn != nil {
		s.stopFn()
		s.stopFn = nil
	}
	if s.connected {
		s.logger.Info("midi: disconnected", "device", s.selectedName)
	}
	s.connected = false
	s.selectedName = ""
}
