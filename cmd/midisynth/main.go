// Command midisynth plays notes from a MIDI keyboard through a simple
// polyphonic oscillator synthesizer.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/chase3718/midisynth/graph"
	"github.com/chase3718/midisynth/midiin"
	"github.com/chase3718/midisynth/output"
	"github.com/chase3718/midisynth/synth"
)

type options struct {
	debug   bool
	list    bool
	ports   string
	virtual string
	serial  string
	baud    int
	wave    string
	sink    string
	out     string
	cfg     synth.Config
}

func parseFlags() options {
	o := options{cfg: synth.DefaultConfig()}
	flag.BoolVar(&o.debug, "debug", false, "enable debug logging (adds source location)")
	flag.BoolVar(&o.list, "list", false, "list MIDI inputs and serial ports, then exit")
	flag.StringVar(&o.ports, "port", strings.Join(midiin.DefaultPreferred, ","), "preferred MIDI input name patterns, comma separated")
	flag.StringVar(&o.virtual, "virtual", "", "create a virtual MIDI input with this name instead of opening a device")
	flag.StringVar(&o.serial, "serial", "", "read raw MIDI from this serial device instead of a MIDI port")
	flag.IntVar(&o.baud, "baud", midiin.DINBaud, "serial baud rate")
	flag.StringVar(&o.wave, "wave", o.cfg.Waveform.String(), "oscillator waveform: saw, sine, square, triangle")
	flag.Float64Var(&o.cfg.MasterGain, "gain", o.cfg.MasterGain, "master gain [0,1]")
	flag.IntVar(&o.cfg.SampleRate, "rate", o.cfg.SampleRate, "sample rate in Hz")
	flag.IntVar(&o.cfg.Channels, "channels", o.cfg.Channels, "output channel count")
	flag.DurationVar(&o.cfg.Latency, "latency", o.cfg.Latency, "output buffer latency")
	flag.IntVar(&o.cfg.MaxNodes, "max-nodes", 0, "cap on voice nodes, two per voice (0 = no cap)")
	flag.StringVar(&o.sink, "sink", "device", "audio output: device, wav or null")
	flag.StringVar(&o.out, "out", "midisynth.wav", "output file for -sink wav")
	flag.Parse()
	return o
}

func main() {
	o := parseFlags()
	initLogger(os.Stderr, o.debug)

	if o.list {
		if err := listPorts(); err != nil {
			logger.Error("list ports failed", "err", err)
			os.Exit(1)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, o); err != nil {
		logger.Error("midisynth failed", "err", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, o options) error {
	w, err := graph.ParseWaveform(o.wave)
	if err != nil {
		return err
	}
	o.cfg.Waveform = w
	if err := o.cfg.Validate(); err != nil {
		return err
	}

	logger.Info("midisynth starting",
		"sink", o.sink,
		"waveform", w.String(),
		"sample_rate", o.cfg.SampleRate,
		"channels", o.cfg.Channels,
		"gain", o.cfg.MasterGain,
		"latency", o.cfg.Latency,
		"debug", o.debug,
	)

	sink, err := openSink(o.sink, o.out, o.cfg.Latency)
	if err != nil {
		return err
	}
	src, err := openSource(o)
	if err != nil {
		return err
	}

	c, err := synth.New(o.cfg, src, sink, logger)
	if err != nil {
		return errors.Join(err, src.Close())
	}
	logger.Info("running, press Ctrl-C to stop")
	return c.Run(ctx)
}

func openSource(o options) (midiin.Source, error) {
	switch {
	case o.serial != "":
		return midiin.OpenSerial(o.serial, o.baud, logger)
	case o.virtual != "":
		return midiin.OpenVirtual(o.virtual, midiin.PortOptions{Logger: logger})
	}
	return midiin.OpenPort(midiin.PortOptions{
		Preferred: splitPatterns(o.ports),
		Logger:    logger,
	})
}

func openSink(kind, out string, latency time.Duration) (graph.Sink, error) {
	switch kind {
	case "device":
		return output.NewDevice(latency, logger), nil
	case "wav":
		return output.NewWAV(out, latency, logger), nil
	case "null":
		return output.NewNull(latency, logger), nil
	}
	return nil, fmt.Errorf("unknown sink %q (want device, wav or null)", kind)
}

func splitPatterns(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func listPorts() error {
	ports, err := midiin.ListPorts()
	fmt.Println("MIDI inputs:")
	for _, name := range ports.MIDI {
		fmt.Printf("  %s\n", name)
	}
	fmt.Println("Serial ports:")
	for _, name := range ports.Serial {
		fmt.Printf("  %s\n", name)
	}
	return err
}
