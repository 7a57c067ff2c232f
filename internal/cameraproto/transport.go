package cameraproto

import (
	"time"

	"github.com/cfht-spirou/guideserv/internal/comm"
)

// BusTransport adapts a comm.Bus — the serial sideband to the
// frame-grabber's camera command interface — into the Transport this
// codec drives. It writes the raw bytes for a token string, then reads
// back whatever the device replies within a quiet period, converting the
// result back to tokens. The 6-second per-byte timeout and 500ms
// inter-group quiet window mirror the source's own serial read
// discipline (§5).
type BusTransport struct {
	Bus *comm.Bus

	// QuietPeriod is how long to wait for more bytes before deciding a
	// reply is complete. Defaults to 500ms if zero.
	QuietPeriod time.Duration
	// ByteTimeout bounds how long a single Read may block. Defaults to
	// 6s if zero.
	ByteTimeout time.Duration
}

func (t *BusTransport) quiet() time.Duration {
	if t.QuietPeriod > 0 {
		return t.QuietPeriod
	}
	return 500 * time.Millisecond
}

func (t *BusTransport) byteTimeout() time.Duration {
	if t.ByteTimeout > 0 {
		return t.ByteTimeout
	}
	return 6 * time.Second
}

// SendRecv writes the bytes DecodeTokens(tokens) produces, then reads
// back whatever the device sends within the configured quiet period,
// returning it re-encoded as a token string.
func (t *BusTransport) SendRecv(tokens string) (string, error) {
	out, err := DecodeTokens(tokens)
	if err != nil {
		return "", err
	}
	if err := t.Bus.Open(); err != nil {
		return "", err
	}
	if _, err := t.Bus.Write(out); err != nil {
		return "", err
	}

	orig := t.Bus.Timeout
	t.Bus.Timeout = t.byteTimeout()
	defer func() { t.Bus.Timeout = orig }()

	var reply []byte
	buf := make([]byte, 64)
	for {
		n, err := t.Bus.Read(buf)
		if n > 0 {
			reply = append(reply, buf[:n]...)
		}
		if err != nil {
			break
		}
		if n == 0 {
			break
		}
		// A full 7/6/5-byte command's reply arrives in one read in
		// practice; later reads wait only the quiet period for stragglers.
		t.Bus.Timeout = t.quiet()
	}
	return EncodeTokens(reply), nil
}
