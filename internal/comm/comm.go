// Package comm provides a small embeddable type for talking to lab/device
// hardware over a serial or TCP byte stream.
//
// Most usages boil down to embedding Bus in a type representing a piece of
// hardware, calling Open before the first transaction, and using Write/Read
// directly since device protocols in this codebase are framed in their own
// bespoke ways rather than by a single terminator byte.
package comm

import (
	"io"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/tarm/serial"

	"github.com/cfht-spirou/guideserv/util"
)

var errNotConnected = notConnectedError{}

type notConnectedError struct{}

func (notConnectedError) Error() string { return "comm: bus is not open" }

// Bus is a lazily (re)opened connection to a remote device, either over TCP
// or a local serial port. It is not safe for concurrent use — callers that
// share a Bus across goroutines must serialize their own access, matching
// the single-owner-thread model the frame loop uses for the camera and ISU
// channels.
type Bus struct {
	// Addr is the network address (host:port) or, if IsSerial, the
	// serial device path.
	Addr string

	// IsSerial selects serial transport instead of TCP.
	IsSerial bool

	// SerialConf is consulted when IsSerial is true.
	SerialConf *serial.Config

	// Timeout bounds TCP dial, read/write deadlines on connections that
	// support deadlines (TCP; a serial port uses SerialConf's own
	// ReadTimeout), and ReadUntil's overall wait.
	Timeout time.Duration

	Conn io.ReadWriteCloser
}

// NewBus returns a Bus with a sane default timeout.
func NewBus(addr string, isSerial bool, serialConf *serial.Config) *Bus {
	return &Bus{Addr: addr, IsSerial: isSerial, SerialConf: serialConf, Timeout: 3 * time.Second}
}

// Open establishes the connection if it is not already open, retrying with
// exponential backoff on transient failures. Connection-refused is treated
// as permanent since retrying it is pointless in the short window the frame
// loop can afford to stall.
func (b *Bus) Open() error {
	if b.Conn != nil {
		return nil
	}
	var refused bool
	op := func() error {
		err := b.open()
		if err == nil {
			return nil
		}
		if strings.Contains(strings.ToLower(err.Error()), "refused") {
			refused = true
			return nil
		}
		return err
	}
	bo := &backoff.ExponentialBackOff{
		InitialInterval:     25 * time.Millisecond,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         1 * time.Second,
		MaxElapsedTime:      3 * time.Second,
		Clock:               backoff.SystemClock,
	}
	if err := backoff.Retry(op, bo); err != nil {
		return err
	}
	if refused || b.Conn == nil {
		return notConnectedError{}
	}
	return nil
}

func (b *Bus) open() error {
	if b.IsSerial {
		conn, err := serial.OpenPort(b.SerialConf)
		if err != nil {
			return err
		}
		b.Conn = conn
		return nil
	}
	conn, err := util.TCPSetup(b.Addr, b.Timeout)
	if err != nil {
		return err
	}
	b.Conn = conn
	return nil
}

// Close closes and clears the connection. Calling Close on an already-closed
// Bus is a no-op.
func (b *Bus) Close() error {
	if b.Conn == nil {
		return nil
	}
	err := b.Conn.Close()
	b.Conn = nil
	return err
}

// Write writes p in full to the bus.
func (b *Bus) Write(p []byte) (int, error) {
	if b.Conn == nil {
		return 0, errNotConnected
	}
	if tc, ok := b.Conn.(interface{ SetWriteDeadline(time.Time) error }); ok {
		tc.SetWriteDeadline(time.Now().Add(b.Timeout))
	}
	return b.Conn.Write(p)
}

// Read reads into p from the bus.
func (b *Bus) Read(p []byte) (int, error) {
	if b.Conn == nil {
		return 0, errNotConnected
	}
	if tc, ok := b.Conn.(interface{ SetReadDeadline(time.Time) error }); ok {
		tc.SetReadDeadline(time.Now().Add(b.Timeout))
	}
	return b.Conn.Read(p)
}

// ReadUntil reads one byte at a time until wait is seen (inclusive) or the
// bus's Timeout elapses, matching the original serial transport's
// wait-character read convention for variable-length ASCII hex-token
// replies.
func (b *Bus) ReadUntil(wait byte) ([]byte, error) {
	if b.Conn == nil {
		return nil, errNotConnected
	}
	deadline := time.Now().Add(b.Timeout)
	var out []byte
	buf := make([]byte, 1)
	for {
		if time.Now().After(deadline) {
			return out, errTimeout{}
		}
		n, err := b.Conn.Read(buf)
		if err != nil {
			return out, err
		}
		if n == 0 {
			continue
		}
		out = append(out, buf[0])
		if buf[0] == wait {
			return out, nil
		}
	}
}

type errTimeout struct{}

func (errTimeout) Error() string { return "comm: read timed out waiting for terminator" }
func (errTimeout) Timeout() bool { return true }
