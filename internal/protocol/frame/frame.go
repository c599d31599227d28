package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
)

// PrefixLen is the size of the big-endian length prefix.
const PrefixLen = 4

var (
	ErrConnectionClosed = errors.New("frame: connection closed")
	ErrFrameTooLarge    = errors.New("frame: frame too large")
)

// Limits constrains frame decode/encode memory use.
type Limits struct {
	MaxPayloadBytes uint32
}

func DefaultLimits() Limits {
	return Limits{
		MaxPayloadBytes: 16 * 1024 * 1024,
	}
}

// WithDefaults fills zero limits.
func (l Limits) WithDefaults() Limits {
	if l.MaxPayloadBytes == 0 {
		l.MaxPayloadBytes = DefaultLimits().MaxPayloadBytes
	}
	return l
}

// ReadFrame reads one length-prefixed payload. A stream that ends before the
// prefix or payload is complete yields ErrConnectionClosed.
func ReadFrame(r io.Reader, limits Limits) ([]byte, error) {
	limits = limits.WithDefaults()
	var prefix [PrefixLen]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return nil, classify(err, "prefix")
	}
	n := binary.BigEndian.Uint32(prefix[:])
	if n > limits.MaxPayloadBytes {
		return nil, fmt.Errorf("%w: declared %d bytes, limit %d", ErrFrameTooLarge, n, limits.MaxPayloadBytes)
	}
	payload := make([]byte, n)
	if n == 0 {
		return payload, nil
	}
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, classify(err, "payload")
	}
	return payload, nil
}

// WriteFrame writes the prefix and payload, repeating partial writes until the
// whole frame is on the wire.
func WriteFrame(w io.Writer, payload []byte, limits Limits) error {
	limits = limits.WithDefaults()
	if uint64(len(payload)) > uint64(limits.MaxPayloadBytes) {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrFrameTooLarge, len(payload), limits.MaxPayloadBytes)
	}
	buf := make([]byte, PrefixLen+len(payload))
	binary.BigEndian.PutUint32(buf[:PrefixLen], uint32(len(payload)))
	copy(buf[PrefixLen:], payload)
	if err := writeFull(w, buf); err != nil {
		return classify(err, "write")
	}
	return nil
}

func writeFull(w io.Writer, buf []byte) error {
	for len(buf) > 0 {
		n, err := w.Write(buf)
		buf = buf[n:]
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
	}
	return nil
}

// classify maps end-of-stream conditions onto ErrConnectionClosed and keeps
// every other error, timeouts included, as is.
func classify(err error, stage string) error {
	switch {
	case errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, io.ErrClosedPipe),
		errors.Is(err, net.ErrClosed),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNABORTED),
		errors.Is(err, syscall.EPIPE):
		return fmt.Errorf("%w: %s: %v", ErrConnectionClosed, stage, err)
	default:
		return err
	}
}
