// Package synth wires a MIDI source, the event dispatcher and the audio
// graph together and owns their lifecycle.
package synth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hako/durafmt"
	"golang.org/x/sync/errgroup"

	"github.com/chase3718/midisynth/dispatch"
	"github.com/chase3718/midisynth/graph"
	"github.com/chase3718/midisynth/midiin"
	"github.com/chase3718/midisynth/voice"
)

var shortUnits, _ = durafmt.DefaultUnitsCoder.Decode("y:yrs,wk:wks,d:d,h:h,m:m,s:s,ms:ms,us:us")

// Controller runs one synthesizer session.
type Controller struct {
	cfg    Config
	src    midiin.Source
	graph  *graph.Graph
	disp   *dispatch.Dispatcher
	logger *slog.Logger
}

// New validates cfg and builds the graph and dispatcher. Nothing is
// started until Run.
func New(cfg Config, src midiin.Source, sink graph.Sink, logger *slog.Logger) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if src == nil || sink == nil {
		return nil, fmt.Errorf("%w: source and sink are required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = slog.Default()
	}

	g := graph.New(sink,
		graph.WithFormat(cfg.Format()),
		graph.WithWaveform(cfg.Waveform),
		graph.WithMasterGain(cfg.MasterGain),
		graph.WithMaxNodes(cfg.MaxNodes),
		graph.WithLogger(logger),
	)
	return &Controller{
		cfg:    cfg,
		src:    src,
		graph:  g,
		disp:   dispatch.New(g, voice.NewRegistry(), dispatch.WithLogger(logger)),
		logger: logger,
	}, nil
}

func (c *Controller) Graph() *graph.Graph { return c.graph }

func (c *Controller) Dispatcher() *dispatch.Dispatcher { return c.disp }

// Run plays until ctx is cancelled or the source fails. Whatever ends the
// session, every voice is released, the graph is shut down and the source
// is closed before Run returns. A cancelled ctx is a clean exit.
func (c *Controller) Run(ctx context.Context) (err error) {
	if err := c.graph.Initialize(); err != nil {
		return errors.Join(fmt.Errorf("synth: start audio: %w", err), c.src.Close())
	}
	started := time.Now()
	c.logger.Info("synth: ready", "waveform", c.cfg.Waveform.String())

	defer func() {
		released := c.disp.ReleaseAll()
		shutdownErr := c.graph.Shutdown()
		closeErr := c.src.Close()
		c.summary(time.Since(started), released)
		err = errors.Join(err, shutdownErr, closeErr)
	}()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	eg, egCtx := errgroup.WithContext(runCtx)
	eg.Go(func() error {
		defer cancel()
		if err := c.src.Run(egCtx); err != nil {
			return fmt.Errorf("synth: midi input: %w", err)
		}
		return nil
	})
	eg.Go(func() (err error) {
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error("synth: dispatcher panic", "panic", r)
				err = fmt.Errorf("synth: dispatcher panic: %v", r)
			}
		}()
		return c.disp.Run(egCtx, c.src.Events())
	})
	return eg.Wait()
}

func (c *Controller) summary(uptime time.Duration, released int) {
	ds := c.disp.Stats()
	gs := c.graph.Stats()
	c.logger.Info("synth: stopped",
		"uptime", durafmt.Parse(uptime).LimitFirstN(2).Format(shortUnits),
		"notes", humanize.Comma(int64(ds.Started)),
		"dropped", ds.Dropped,
		"peak_polyphony", ds.Peak,
		"released_at_exit", released,
		"frames", humanize.Comma(int64(gs.Frames)),
		"peak_level", fmt.Sprintf("%.3f", gs.Peak),
	)
}
