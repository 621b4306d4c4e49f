// Package serialport opens the UART to a PN532-class reader and exposes it
// behind a small io.ReadWriteCloser-shaped interface. Grounded on
// Witcher94's gateway-go, the only repo in the retrieved pack that opens
// a physical serial port (go.bug.st/serial).
package serialport

import (
	"time"

	"go.bug.st/serial"

	"github.com/nfc-tools/go_desfire/internal/desfireerr"
)

// Port is the minimal transport contract the PN532 frame layer needs.
type Port interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
	SetReadTimeout(d time.Duration) error
}

type serialPort struct {
	serial.Port
}

func (s *serialPort) SetReadTimeout(d time.Duration) error {
	return s.Port.SetReadTimeout(d)
}

// Options configures the serial connection to the reader.
type Options struct {
	PortName string
	BaudRate int
}

// DefaultOptions matches the PN532's default UART configuration: 115200
// baud, 8N1.
func DefaultOptions(portName string) Options {
	return Options{PortName: portName, BaudRate: 115200}
}

// Open opens the named serial port with the given options.
func Open(opts Options) (Port, error) {
	mode := &serial.Mode{
		BaudRate: opts.BaudRate,
		Parity:   serial.NoParity,
		DataBits: 8,
		StopBits: serial.OneStopBit,
	}

	p, err := serial.Open(opts.PortName, mode)
	if err != nil {
		return nil, desfireerr.New(desfireerr.LayerHardware, desfireerr.CodeNotConnected, "open %s: %v", opts.PortName, err)
	}

	return &serialPort{Port: p}, nil
}
