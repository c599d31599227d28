package frame

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"testing"
	"testing/iotest"
	"time"

	"github.com/danmuck/lvctl/internal/testutil/testlog"
)

// oneByteWriter accepts at most one byte per Write call.
type oneByteWriter struct {
	buf    bytes.Buffer
	writes int
}

func (w *oneByteWriter) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	w.writes++
	return w.buf.Write(p[:1])
}

func TestReadWriteFrameRoundTripSizes(t *testing.T) {
	testlog.Start(t)
	large := bytes.Repeat([]byte("0123456789abcdef"), 1<<14+3)
	for _, payload := range [][]byte{{}, {0x42}, large} {
		var w oneByteWriter
		if err := WriteFrame(&w, payload, DefaultLimits()); err != nil {
			t.Fatalf("write frame len=%d: %v", len(payload), err)
		}
		if w.writes != PrefixLen+len(payload) {
			t.Fatalf("expected %d partial writes, got %d", PrefixLen+len(payload), w.writes)
		}
		out, err := ReadFrame(iotest.OneByteReader(&w.buf), DefaultLimits())
		if err != nil {
			t.Fatalf("read frame len=%d: %v", len(payload), err)
		}
		if out == nil || !bytes.Equal(out, payload) {
			t.Fatalf("payload mismatch len got=%d want=%d", len(out), len(payload))
		}
	}
}

func TestReadFrameSequential(t *testing.T) {
	testlog.Start(t)
	var buf bytes.Buffer
	for _, p := range []string{"first", "", "third"} {
		if err := WriteFrame(&buf, []byte(p), DefaultLimits()); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	for _, want := range []string{"first", "", "third"} {
		got, err := ReadFrame(&buf, DefaultLimits())
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if string(got) != want {
			t.Fatalf("got %q want %q", got, want)
		}
	}
	if _, err := ReadFrame(&buf, DefaultLimits()); !errors.Is(err, ErrConnectionClosed) {
		t.Fatalf("expected ErrConnectionClosed at end of stream, got %v", err)
	}
}

func TestReadFrameTruncatedPayloadIsConnectionClosed(t *testing.T) {
	testlog.Start(t)
	var buf bytes.Buffer
	if err := WriteFrame(&buf, []byte("complete payload"), DefaultLimits()); err != nil {
		t.Fatalf("write: %v", err)
	}
	truncated := buf.Bytes()[:buf.Len()-5]
	_, err := ReadFrame(iotest.OneByteReader(bytes.NewReader(truncated)), DefaultLimits())
	if !errors.Is(err, ErrConnectionClosed) {
		t.Fatalf("expected ErrConnectionClosed, got %v", err)
	}
}

func TestReadFrameShortPrefixIsConnectionClosed(t *testing.T) {
	testlog.Start(t)
	_, err := ReadFrame(bytes.NewReader([]byte{0, 0}), DefaultLimits())
	if !errors.Is(err, ErrConnectionClosed) {
		t.Fatalf("expected ErrConnectionClosed, got %v", err)
	}
}

func TestReadFrameTooLarge(t *testing.T) {
	testlog.Start(t)
	prefix := make([]byte, PrefixLen)
	binary.BigEndian.PutUint32(prefix, 1025)
	_, err := ReadFrame(bytes.NewReader(prefix), Limits{MaxPayloadBytes: 1024})
	if !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("expected ErrFrameTooLarge, got %v", err)
	}

	if err := WriteFrame(io.Discard, make([]byte, 1025), Limits{MaxPayloadBytes: 1024}); !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("expected ErrFrameTooLarge on write, got %v", err)
	}
}

func TestReadFrameTimeoutIsNotConnectionClosed(t *testing.T) {
	testlog.Start(t)
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	_ = client.SetReadDeadline(time.Now().Add(20 * time.Millisecond))
	_, err := ReadFrame(client, DefaultLimits())
	var netErr net.Error
	if !errors.As(err, &netErr) || !netErr.Timeout() {
		t.Fatalf("expected timeout error, got %v", err)
	}
	if errors.Is(err, ErrConnectionClosed) {
		t.Fatalf("timeout misclassified as closed: %v", err)
	}
}

func TestReadFramePeerClose(t *testing.T) {
	testlog.Start(t)
	client, server := net.Pipe()
	defer client.Close()

	go func() {
		// prefix announces 10 bytes, only 3 arrive
		_, _ = server.Write([]byte{0, 0, 0, 10, 'a', 'b', 'c'})
		_ = server.Close()
	}()
	_, err := ReadFrame(client, DefaultLimits())
	if !errors.Is(err, ErrConnectionClosed) {
		t.Fatalf("expected ErrConnectionClosed, got %v", err)
	}
}
