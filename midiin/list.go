package midiin

import (
	"fmt"

	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
	"go.bug.st/serial"
)

// Ports lists what the host offers as MIDI inputs.
type Ports struct {
	MIDI   []string
	Serial []string
}

// ListPorts enumerates rtmidi inputs and serial devices.
func ListPorts() (Ports, error) {
	var ports Ports

	drv, err := rtmididrv.New()
	if err != nil {
		return ports, fmt.Errorf("midiin: rtmidi driver: %w", err)
	}
	defer drv.Close()

	ins, err := drv.Ins()
	if err != nil {
		return ports, fmt.Errorf("midiin: list inputs: %w", err)
	}
	for _, in := range ins {
		ports.MIDI = append(ports.MIDI, in.String())
	}

	ports.Serial, err = serial.GetPortsList()
	if err != nil {
		return ports, fmt.Errorf("midiin: list serial ports: %w", err)
	}
	return ports, nil
}
