package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/danmuck/lvctl/internal/protocol/frame"
	"github.com/danmuck/lvctl/internal/protocol/schema"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Client owns one connection to a VI host.
type Client struct {
	cfg    Config
	invoke Invoker

	// busy guards the exchange; a second caller fails fast instead of queueing.
	busy sync.Mutex

	connMu sync.Mutex
	conn   net.Conn
	closed bool
}

// Dial connects to cfg.Address. The connect timeout comes from cfg.Session;
// ctx can shorten it.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	cfg = cfg.WithDefaults()
	if cfg.Address == "" {
		return nil, ErrAddressRequired
	}
	dialer := net.Dialer{Timeout: cfg.Session.ConnectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", cfg.Address)
	if err != nil {
		log.Debug().Str("addr", cfg.Address).Err(err).Msg("client.Dial failed")
		return nil, dialFailure(ctx, err)
	}
	log.Debug().Str("addr", cfg.Address).Str("local", conn.LocalAddr().String()).Msg("client.Dial connected")
	return New(conn, cfg), nil
}

// New wraps an established connection. The Client takes ownership of conn.
func New(conn net.Conn, cfg Config) *Client {
	cfg = cfg.WithDefaults()
	if cfg.Address == "" && conn != nil && conn.RemoteAddr() != nil {
		cfg.Address = conn.RemoteAddr().String()
	}
	c := &Client{cfg: cfg, conn: conn}
	invoke := Invoker(c.exchange)
	for i := len(cfg.Middleware) - 1; i >= 0; i-- {
		invoke = cfg.Middleware[i](invoke)
	}
	c.invoke = invoke
	return c
}

// Addr returns the remote address the client was created for.
func (c *Client) Addr() string {
	return c.cfg.Address
}

// Call sends req and waits for the matching response. A request without a
// RequestID gets a generated one.
func (c *Client) Call(ctx context.Context, req schema.Request) (schema.Response, error) {
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	return c.invoke(ctx, req)
}

// Close closes the connection and aborts an in-flight call. It is safe to call
// more than once.
func (c *Client) Close() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// Usable reports whether the connection is still open.
func (c *Client) Usable() bool {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	return !c.closed && c.conn != nil
}

func (c *Client) current() (net.Conn, error) {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.closed || c.conn == nil {
		return nil, fmt.Errorf("%w: client connection is no longer usable", frame.ErrConnectionClosed)
	}
	return c.conn, nil
}

// invalidate closes conn if it is still the active connection.
func (c *Client) invalidate(conn net.Conn, cause error) {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn != conn {
		return
	}
	log.Debug().Str("addr", c.cfg.Address).Err(cause).Msg("client connection invalidated")
	_ = c.conn.Close()
	c.conn = nil
	c.closed = true
}

func (c *Client) exchange(ctx context.Context, req schema.Request) (schema.Response, error) {
	if !c.busy.TryLock() {
		return schema.Response{}, ErrConnectionBusy
	}
	defer c.busy.Unlock()

	conn, err := c.current()
	if err != nil {
		return schema.Response{}, callFailed(err)
	}
	if err := ctx.Err(); err != nil {
		return schema.Response{}, contextFailure(err)
	}

	// Encoding happens before any byte reaches the wire, so failures here
	// leave the connection usable.
	payload, err := schema.EncodeRequest(req)
	if err != nil {
		return schema.Response{}, callFailed(err)
	}
	if uint64(len(payload)) > uint64(c.cfg.Limits.MaxPayloadBytes) {
		return schema.Response{}, callFailed(fmt.Errorf("%w: request is %d bytes, limit %d",
			frame.ErrFrameTooLarge, len(payload), c.cfg.Limits.MaxPayloadBytes))
	}

	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	if err := conn.SetWriteDeadline(c.deadline(ctx, c.cfg.Session.WriteTimeout)); err != nil {
		c.invalidate(conn, err)
		return schema.Response{}, c.transportFailure(ctx, err)
	}
	if err := frame.WriteFrame(conn, payload, c.cfg.Limits); err != nil {
		c.invalidate(conn, err)
		return schema.Response{}, c.transportFailure(ctx, err)
	}

	if err := conn.SetReadDeadline(c.deadline(ctx, c.cfg.Session.ReadTimeout)); err != nil {
		c.invalidate(conn, err)
		return schema.Response{}, c.transportFailure(ctx, err)
	}
	body, err := frame.ReadFrame(conn, c.cfg.Limits)
	if err != nil {
		c.invalidate(conn, err)
		return schema.Response{}, c.transportFailure(ctx, err)
	}

	// The whole frame has been consumed; a bad body does not desync the
	// stream.
	resp, err := schema.DecodeResponse(body)
	if err != nil {
		return schema.Response{}, callFailed(err)
	}
	if resp.RequestID != "" && resp.RequestID != req.RequestID {
		err := fmt.Errorf("%w: sent %q, got %q", ErrRequestMismatch, req.RequestID, resp.RequestID)
		c.invalidate(conn, err)
		return schema.Response{}, callFailed(err)
	}
	if stop() {
		_ = conn.SetDeadline(time.Time{})
	}
	return resp, nil
}

func (c *Client) deadline(ctx context.Context, timeout time.Duration) time.Time {
	deadline := time.Now().Add(timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	return deadline
}

func (c *Client) transportFailure(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return contextFailure(ctxErr)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w: %v", ErrCallFailed, ErrCallTimedOut, err)
	}
	return callFailed(err)
}

// dialFailure classifies a connect error like a failed exchange.
func dialFailure(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return contextFailure(ctxErr)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return contextFailure(err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w: %v", ErrCallFailed, ErrCallTimedOut, err)
	}
	return callFailed(err)
}

func contextFailure(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w: %w", ErrCallFailed, ErrCallTimedOut, err)
	}
	return callFailed(err)
}
