package discovery

import (
	"io"
	"time"

	"go.bug.st/serial"
)

// Channel is an open, duplex, byte-oriented connection to exactly one
// endpoint, bounded by the read timeout configured at open time. A
// channel has a single owner at a time; it is never duplicated or
// shared.
type Channel interface {
	io.ReadWriteCloser

	// SetReadTimeout bounds how long a Read may block.
	SetReadTimeout(t time.Duration) error
}

// Opener opens a named port at a given baud rate with a read timeout.
type Opener interface {
	Open(name string, baud int, timeout time.Duration) (Channel, error)
}

// serialOpener opens real serial ports.
type serialOpener struct{}

func (serialOpener) Open(name string, baud int, timeout time.Duration) (Channel, error) {
	mode := &serial.Mode{
		BaudRate: baud,
	}

	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, err
	}

	if err := port.SetReadTimeout(timeout); err != nil {
		port.Close()
		return nil, err
	}

	return port, nil
}
