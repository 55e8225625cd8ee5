package modem

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.bug.st/serial"
)

//go:generate go tool mockgen -source=transport.go -destination=mock_transport_test.go -package=modem

// Transport represents an established, bidirectional byte stream to a
// cellular module.
//
// A Transport is assumed to be already connected and ready for use. It provides
// the low-level I/O primitives required to send AT commands and receive responses.
// Typical implementations include serial ports, TCP connections to emulators,
// or in-memory fakes used for testing.
type Transport interface {
	io.ReadWriteCloser
}

// Dialer opens a Transport to a cellular module.
//
// Dialer abstracts how the modem connection is created (for example, via a
// serial port, TCP-based emulator, or test double) and is intended to be used
// during module construction only. Once a Transport is obtained, the Dialer is
// no longer needed.
type Dialer interface {
	// Dial is responsible for creating and returning a connected Transport. It may
	// perform blocking operations and should respect cancellation and deadlines
	// provided by the context. Dial returns an error if the transport cannot be
	// established.
	Dial(ctx context.Context) (Transport, error)
}

// inputResetter is implemented by transports that can drop bytes buffered by
// the driver, such as serial.Port.
type inputResetter interface {
	ResetInputBuffer() error
}

// DefaultMode is the UART framing of SIMCom modules: 115200 baud, 8N1.
var DefaultMode = serial.Mode{
	BaudRate: 115200,
	DataBits: 8,
	Parity:   serial.NoParity,
	StopBits: serial.OneStopBit,
}

// SerialDialer opens a cellular module over a serial port using
// go.bug.st/serial. A nil Mode uses DefaultMode.
type SerialDialer struct {
	PortName string
	Mode     *serial.Mode
}

var _ Dialer = SerialDialer{}

func (d SerialDialer) Dial(ctx context.Context) (Transport, error) {
	if ctx == nil {
		return nil, errors.New("cellular: context is nil")
	}
	if d.PortName == "" {
		return nil, errors.New("cellular: serial port name is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mode := DefaultMode
	if d.Mode != nil {
		mode = *d.Mode
	}

	port, err := serial.Open(d.PortName, &mode)
	if err != nil {
		return nil, fmt.Errorf("cellular: open %s: %w", d.PortName, err)
	}
	return port, nil
}
